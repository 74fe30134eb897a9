package edge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/logging"
	"github.com/hearthlabs/hearth-cloud/internal/signature"
)

// commandPath is the edge-side endpoint commands are pushed to,
// relative to the node's announced base url. It is also the canonical
// path covered by the push signature.
const commandPath = "/api/command"

// PushRequest is the body of an outbound command push.
type PushRequest struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// PushResponse is whatever the edge returns from a successful push.
type PushResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Client pushes commands to edge nodes over their announced HTTP
// endpoint, signing each request with the shared-secret protocol the
// edges themselves use for the reverse direction.
//
// A push is best-effort: the edge being unreachable is an expected
// condition, reported as an error for the dispatcher to record, never
// retried here. Commands left queued are picked up by the edge's next
// poll.
type Client struct {
	http   *resty.Client
	codec  *signature.Codec
	logger *logging.Logger
}

// NewClient creates a push client.
//
// Parameters:
//   - codec: Signing codec sharing the edge protocol secret
//   - timeout: Per-push deadline; a slow edge must not stall callers past this
//   - logger: Structured logger
func NewClient(codec *signature.Codec, timeout time.Duration, logger *logging.Logger) *Client {
	http := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:   http,
		codec:  codec,
		logger: logger.With("component", "edge-push"),
	}
}

// Push delivers one command to a node.
//
// Parameters:
//   - ctx: Context for cancellation (the client timeout still applies)
//   - node: Target node; must have announced a base url
//   - commandID: Queue id of the command being delivered
//   - payload: Opaque command payload as stored
//
// Returns:
//   - *PushResponse: The edge's response on 2xx
//   - error: ErrNoBaseURL, transport errors, or non-2xx statuses
func (c *Client) Push(ctx context.Context, node *Node, commandID string, payload json.RawMessage) (*PushResponse, error) {
	if node.BaseURL == "" {
		return nil, ErrNoBaseURL
	}

	body, err := json.Marshal(PushRequest{ID: commandID, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshalling push request: %w", err)
	}

	// The signature covers the exact bytes sent, so the marshalled body
	// is passed to resty verbatim rather than re-serialized.
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := c.codec.Sign("POST", commandPath, ts, body)

	url := strings.TrimRight(node.BaseURL, "/") + commandPath

	var result PushResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(signature.HeaderEdgeID, node.ID).
		SetHeader(signature.HeaderTimestamp, ts).
		SetHeader(signature.HeaderSignature, sig).
		SetBody(body).
		SetResult(&result).
		Post(url)
	if err != nil {
		c.logger.Debug("push failed",
			"edge_id", node.ID,
			"command_id", commandID,
			"error", err,
		)
		return nil, fmt.Errorf("pushing command: %w", err)
	}

	if resp.IsError() {
		c.logger.Debug("push rejected",
			"edge_id", node.ID,
			"command_id", commandID,
			"status", resp.StatusCode(),
		)
		return nil, fmt.Errorf("pushing command: edge returned status %d", resp.StatusCode())
	}

	return &result, nil
}
