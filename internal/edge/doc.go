// Package edge tracks the gateway nodes that sync sites to the cloud and
// provides the outbound push client used for best-effort command delivery.
//
// Nodes are created and refreshed by heartbeats. They are never deleted
// here; a node that stops heartbeating simply goes stale and its queued
// commands wait for the next poll.
package edge
