package edge

import "errors"

// Edge errors.
var (
	// ErrNodeNotFound indicates the referenced edge node does not exist.
	ErrNodeNotFound = errors.New("edge: node not found")

	// ErrNoBaseURL indicates a push was attempted against a node that has
	// never announced a reachable endpoint.
	ErrNoBaseURL = errors.New("edge: node has no base url")
)
