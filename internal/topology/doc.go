// Package topology manages the household/site/floor/room hierarchy.
//
// The registry uses it for ownership checks and room resolution. Room and
// floor changes fan out to every edge node at the affected site so local
// area registries track the cloud.
package topology
