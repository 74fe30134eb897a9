package edge

import "time"

// Status describes edge node connectivity as last reported.
type Status string

// Edge node statuses.
const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Node is one physical gateway syncing a site to the cloud. The id is
// supplied by the edge itself and stays stable across reconnects. Nodes
// are created and refreshed by heartbeats; nothing here deletes them.
type Node struct {
	ID         string     `json:"id"`
	SiteID     string     `json:"siteId"`
	Name       string     `json:"name"`
	BaseURL    string     `json:"baseUrl"`
	Version    string     `json:"version"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Online reports whether the node checked in within the given window.
func (n *Node) Online(window time.Duration, now time.Time) bool {
	if n.LastSeenAt == nil {
		return false
	}
	return now.Sub(*n.LastSeenAt) <= window
}

// Heartbeat is the payload an edge sends to announce liveness.
type Heartbeat struct {
	EdgeID      string `json:"edgeId"`
	HouseholdID string `json:"householdId"`
	SiteID      string `json:"siteId"`
	Status      string `json:"status"`
	Name        string `json:"name,omitempty"`
	BaseURL     string `json:"baseUrl,omitempty"`
	Version     string `json:"version,omitempty"`
}
