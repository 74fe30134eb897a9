package command

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hearthlabs/hearth-cloud/internal/edge"
	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/logging"
	"github.com/hearthlabs/hearth-cloud/internal/registry"
)

// Pusher delivers one command to an edge node. The edge HTTP client
// implements this; tests substitute a fake.
type Pusher interface {
	Push(ctx context.Context, node *edge.Node, commandID string, payload json.RawMessage) (*edge.PushResponse, error)
}

// Events receives command lifecycle notifications. The MQTT publisher
// and the websocket hub implement this; both are optional.
type Events interface {
	Publish(topic string, payload any)
}

// Service is the durable command queue and dispatcher.
//
// Delivery is push-or-poll: enqueue always succeeds when the edge
// exists, an inline push is attempted best-effort, and anything left
// queued is handed over on the edge's next poll. Handoff is
// at-least-once; a command stuck in sent after a crash waits for an ack
// and is never automatically redelivered.
type Service struct {
	repo      Repository
	edges     edge.Repository
	pusher    Pusher
	events    []Events
	batchSize int
	logger    *logging.Logger
}

// NewService creates a command service.
//
// Parameters:
//   - repo: Queue persistence
//   - edges: Edge node lookup for targeting and push endpoints
//   - pusher: Outbound push client (may be nil to disable pushes)
//   - batchSize: Maximum commands returned by one poll
//   - logger: Structured logger
//   - events: Optional lifecycle listeners
func NewService(repo Repository, edges edge.Repository, pusher Pusher, batchSize int, logger *logging.Logger, events ...Events) *Service {
	return &Service{
		repo:      repo,
		edges:     edges,
		pusher:    pusher,
		events:    events,
		batchSize: batchSize,
		logger:    logger.With("component", "command-queue"),
	}
}

// Enqueue creates a queued command for an edge node.
//
// Returns:
//   - *Command: The stored command in the queued state
//   - error: edge.ErrNodeNotFound if the target does not exist
func (s *Service) Enqueue(ctx context.Context, edgeNodeID string, payload json.RawMessage) (*Command, error) {
	node, err := s.edges.GetByID(ctx, edgeNodeID)
	if err != nil {
		return nil, err
	}

	cmd := &Command{
		EdgeNodeID: node.ID,
		SiteID:     node.SiteID,
		Payload:    payload,
	}
	if err := s.repo.Create(ctx, cmd); err != nil {
		return nil, err
	}

	s.emit("command.queued", cmd)
	return cmd, nil
}

// Dispatch attempts a best-effort synchronous push of one command.
//
// Success transitions the command to sent. Any failure (timeout, network
// error, non-2xx, missing base url) leaves it queued with the error text
// recorded; the edge being offline is an expected condition and the
// command stays retryable via poll.
func (s *Service) Dispatch(ctx context.Context, cmd *Command) DispatchResult {
	if s.pusher == nil {
		return DispatchResult{Pushed: false, Error: "push disabled"}
	}

	node, err := s.edges.GetByID(ctx, cmd.EdgeNodeID)
	if err != nil {
		return s.recordPushFailure(ctx, cmd, err)
	}

	// Mark sent before the attempt so an ack racing the response is not
	// applied to a queued command.
	if err := s.repo.MarkSent(ctx, cmd.ID); err != nil {
		return DispatchResult{Pushed: false, Error: err.Error()}
	}

	resp, err := s.pusher.Push(ctx, node, cmd.ID, cmd.Payload)
	if err != nil {
		return s.recordPushFailure(ctx, cmd, err)
	}

	cmd.Status = StatusSent
	s.emit("command.sent", cmd)

	var result json.RawMessage
	if resp != nil {
		result = resp.Result
	}
	return DispatchResult{Pushed: true, Result: result}
}

func (s *Service) recordPushFailure(ctx context.Context, cmd *Command, pushErr error) DispatchResult {
	if err := s.repo.MarkQueued(ctx, cmd.ID, pushErr.Error()); err != nil {
		s.logger.Error("recording push failure", "command_id", cmd.ID, "error", err)
	}
	cmd.Status = StatusQueued
	cmd.Error = pushErr.Error()

	s.logger.Debug("push failed, command left queued", "command_id", cmd.ID, "error", pushErr)
	return DispatchResult{Pushed: false, Error: pushErr.Error()}
}

// EnqueueAndDispatch creates a command and immediately attempts an
// inline push. The command is returned in its post-dispatch state.
func (s *Service) EnqueueAndDispatch(ctx context.Context, edgeNodeID string, payload json.RawMessage) (*Command, DispatchResult, error) {
	cmd, err := s.Enqueue(ctx, edgeNodeID, payload)
	if err != nil {
		return nil, DispatchResult{}, err
	}
	result := s.Dispatch(ctx, cmd)
	return cmd, result, nil
}

// Poll returns up to the configured batch of the edge's queued commands
// in FIFO creation order, atomically transitioning them to sent.
func (s *Service) Poll(ctx context.Context, edgeNodeID string) ([]Command, error) {
	commands, err := s.repo.SelectQueued(ctx, edgeNodeID, s.batchSize)
	if err != nil {
		return nil, err
	}
	if len(commands) > 0 {
		s.logger.Debug("commands polled", "edge_id", edgeNodeID, "count", len(commands))
	}
	return commands, nil
}

// Ack applies an edge-reported terminal transition.
//
// Any status other than "acked" is coerced to failed. Terminal commands
// are never re-mutated: a second ack returns the stored command along
// with ErrAlreadyFinal.
func (s *Service) Ack(ctx context.Context, commandID, status, errText string) (*Command, error) {
	final := StatusFailed
	if status == string(StatusAcked) {
		final = StatusAcked
	}

	cmd, err := s.repo.Finalize(ctx, commandID, final, errText)
	if err != nil {
		return cmd, err
	}

	s.emit("command."+string(final), cmd)
	return cmd, nil
}

// BroadcastToSite creates one queued command per edge node at the site.
// Used by topology fan-out; delivery happens on each edge's next poll.
func (s *Service) BroadcastToSite(ctx context.Context, siteID string, payload map[string]any) error {
	nodes, err := s.edges.ListBySite(ctx, siteID)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling broadcast payload: %w", err)
	}

	for _, node := range nodes {
		cmd := &Command{EdgeNodeID: node.ID, SiteID: siteID, Payload: body}
		if err := s.repo.Create(ctx, cmd); err != nil {
			return err
		}
		s.emit("command.queued", cmd)
	}
	return nil
}

// DeviceCommandResponse is what a user-origin device command returns.
type DeviceCommandResponse struct {
	OK            bool            `json:"ok"`
	DeviceID      string          `json:"deviceId"`
	ControlID     string          `json:"controlId"`
	EdgeCommandID string          `json:"edgeCommandId"`
	Pushed        bool            `json:"pushed"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
	HAEntityID    string          `json:"haEntityId,omitempty"`
}

// IssueDeviceCommand handles a direct user device-control request: it
// normalizes the intent, records the audit row, enqueues the command for
// the device's edge, and attempts an inline push before responding.
//
// A failed push is not a failure of this call; the response carries
// pushed=false and the command waits for the next poll.
func (s *Service) IssueDeviceCommand(ctx context.Context, userID string, device *registry.Device, entities []registry.Entity, in Intent) (*DeviceCommandResponse, error) {
	refs := make([]EntityRef, 0, len(entities))
	for _, e := range entities {
		refs = append(refs, EntityRef{EntityKey: e.EntityKey, HAEntityID: e.HAEntityID})
	}

	normalized, err := Normalize(device.Domain, refs, in)
	if err != nil {
		return nil, err
	}

	nodes, err := s.edges.ListBySite(ctx, device.SiteID)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, edge.ErrNodeNotFound
	}
	node := nodes[0]

	intentJSON, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshalling intent: %w", err)
	}
	ctrl := &Control{
		DeviceID: device.ID,
		UserID:   userID,
		Command:  normalized.Action,
		Payload:  string(intentJSON),
	}
	if err := s.repo.CreateControl(ctx, ctrl); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"type":        "device.command",
		"event":       "user.command",
		"ts":          time.Now().UTC().Format(time.RFC3339),
		"householdId": device.HouseholdID,
		"siteId":      device.SiteID,
		"deviceId":    device.ID,
		"deviceKey":   device.DeviceKey,
		"domain":      normalized.Domain,
		"devType":     string(device.Type),
		"action":      normalized.Action,
		"data":        normalized.Data,
		"userId":      userID,
		"entityKey":   normalized.EntityKey,
		"haEntityId":  normalized.HAEntityID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling command payload: %w", err)
	}

	cmd, dispatch, err := s.EnqueueAndDispatch(ctx, node.ID, payload)
	if err != nil {
		return nil, err
	}

	var resultStr string
	if dispatch.Result != nil {
		resultStr = string(dispatch.Result)
	}
	if err := s.repo.UpdateControl(ctx, ctrl.ID, cmd.ID, dispatch.Pushed, resultStr); err != nil {
		s.logger.Warn("updating control audit row", "control_id", ctrl.ID, "error", err)
	}

	return &DeviceCommandResponse{
		OK:            true,
		DeviceID:      device.ID,
		ControlID:     ctrl.ID,
		EdgeCommandID: cmd.ID,
		Pushed:        dispatch.Pushed,
		Result:        dispatch.Result,
		Error:         dispatch.Error,
		HAEntityID:    normalized.HAEntityID,
	}, nil
}

// Get retrieves a command by id.
func (s *Service) Get(ctx context.Context, id string) (*Command, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) emit(topic string, cmd *Command) {
	for _, e := range s.events {
		e.Publish(topic, cmd)
	}
}
