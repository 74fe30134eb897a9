package command

import (
	"encoding/json"
	"time"
)

// Status is a command's position in the delivery state machine.
//
// Transitions: queued -> sent -> {acked, failed}, plus sent -> queued
// when a push attempt fails (the edge being offline is expected, not
// terminal). Acked and failed are terminal.
type Status string

// Command statuses.
const (
	StatusQueued Status = "queued"
	StatusSent   Status = "sent"
	StatusAcked  Status = "acked"
	StatusFailed Status = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusAcked || s == StatusFailed
}

// Command is one unit of work the cloud wants an edge to execute,
// tracked through the delivery lifecycle. The payload is opaque beyond
// its type discriminator.
type Command struct {
	ID         string          `json:"id"`
	EdgeNodeID string          `json:"edgeNodeId"`
	SiteID     string          `json:"siteId"`
	Payload    json.RawMessage `json:"payload"`
	Status     Status          `json:"status"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	SentAt     *time.Time      `json:"sentAt,omitempty"`
	AckedAt    *time.Time      `json:"ackedAt,omitempty"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Control is the audit record of one user-issued device command.
type Control struct {
	ID            string    `json:"id"`
	DeviceID      string    `json:"deviceId"`
	UserID        string    `json:"userId,omitempty"`
	Command       string    `json:"command"`
	Payload       string    `json:"payload"`
	EdgeCommandID string    `json:"edgeCommandId,omitempty"`
	Pushed        bool      `json:"pushed"`
	Result        string    `json:"result,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// DispatchResult reports the outcome of a best-effort push.
type DispatchResult struct {
	Pushed bool            `json:"pushed"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}
