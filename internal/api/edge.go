package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hearthlabs/hearth-cloud/internal/command"
	"github.com/hearthlabs/hearth-cloud/internal/edge"
	"github.com/hearthlabs/hearth-cloud/internal/registry"
	"github.com/hearthlabs/hearth-cloud/internal/telemetry"
	"github.com/hearthlabs/hearth-cloud/internal/topology"
)

// handleHeartbeat upserts the calling edge node and bumps its last-seen
// time. The node id comes from the verified signature headers, not the
// body, so an edge cannot heartbeat on behalf of another.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var hb edge.Heartbeat
	if err := json.NewDecoder(r.Body).Decode(&hb); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	edgeID := edgeIDFromContext(r.Context())
	if hb.SiteID == "" {
		writeBadRequest(w, "siteId is required")
		return
	}

	if _, err := s.topoRepo.GetSite(r.Context(), hb.SiteID); err != nil {
		if errors.Is(err, topology.ErrSiteNotFound) {
			writeNotFound(w, "site not found")
			return
		}
		writeInternalError(w, "looking up site")
		return
	}

	node := &edge.Node{
		ID:      edgeID,
		SiteID:  hb.SiteID,
		Name:    hb.Name,
		BaseURL: hb.BaseURL,
		Version: hb.Version,
	}
	if err := s.edgeRepo.Upsert(r.Context(), node); err != nil {
		s.logger.Error("upserting edge node", "edge_id", edgeID, "error", err)
		writeInternalError(w, "storing heartbeat")
		return
	}

	// Anything other than an explicit offline report counts as online.
	status := edge.StatusOnline
	if hb.Status == string(edge.StatusOffline) {
		status = edge.StatusOffline
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"edgeId": edgeID,
		"status": status,
	})
}

// registerDevicesRequest is the edge device announcement batch.
type registerDevicesRequest struct {
	HouseholdID string               `json:"householdId,omitempty"`
	SiteID      string               `json:"siteId,omitempty"`
	Devices     []registry.DeviceRow `json:"devices"`
}

// handleRegisterDevices processes a device registration batch. Rows are
// handled independently; a failing row is reported in the response
// without aborting the rest.
func (s *Server) handleRegisterDevices(w http.ResponseWriter, r *http.Request) {
	var req registerDevicesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Devices) == 0 {
		writeBadRequest(w, "devices array is required")
		return
	}

	result, err := s.registry.RegisterDevices(r.Context(), req.HouseholdID, req.SiteID, req.Devices)
	if err != nil {
		s.logger.Error("registering devices", "error", err)
		writeInternalError(w, "registering devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"upserted":         result.Upserted,
		"entitiesUpserted": result.EntitiesUpserted,
		"devices":          result.Rows,
	})
}

// registerEntitiesRequest is the entity-only batch variant.
type registerEntitiesRequest struct {
	SiteID   string               `json:"siteId"`
	Entities []registry.EntityRow `json:"entities"`
}

func (s *Server) handleRegisterEntities(w http.ResponseWriter, r *http.Request) {
	var req registerEntitiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.SiteID == "" {
		writeBadRequest(w, "siteId is required")
		return
	}

	upserted, err := s.registry.RegisterEntities(r.Context(), req.SiteID, req.Entities)
	if err != nil {
		s.logger.Error("registering entities", "site_id", req.SiteID, "error", err)
		writeInternalError(w, "registering entities")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"upserted": upserted,
	})
}

// purgeRequest names the devices an edge still knows about; everything
// else at the site is hard-deleted.
type purgeRequest struct {
	SiteID   string   `json:"siteId"`
	KeepKeys []string `json:"keepKeys"`
}

func (s *Server) handlePurgeDevices(w http.ResponseWriter, r *http.Request) {
	var req purgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.SiteID == "" {
		writeBadRequest(w, "siteId is required")
		return
	}

	deleted, err := s.registry.Purge(r.Context(), req.SiteID, req.KeepKeys)
	if err != nil {
		if errors.Is(err, topology.ErrSiteNotFound) {
			writeNotFound(w, "site not found")
			return
		}
		s.logger.Error("purging devices", "site_id", req.SiteID, "error", err)
		writeInternalError(w, "purging devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"deleted": deleted,
	})
}

// sensorsLatestRequest is the telemetry ingest batch.
type sensorsLatestRequest struct {
	HouseholdID string           `json:"householdId"`
	SiteID      string           `json:"siteId"`
	Items       []telemetry.Item `json:"items"`
}

func (s *Server) handleSensorsLatest(w http.ResponseWriter, r *http.Request) {
	var req sensorsLatestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.SiteID == "" {
		writeBadRequest(w, "siteId is required")
		return
	}

	result, err := s.telemetry.Ingest(r.Context(), req.SiteID, req.HouseholdID, req.Items)
	if err != nil {
		s.logger.Error("ingesting telemetry", "site_id", req.SiteID, "error", err)
		writeInternalError(w, "ingesting telemetry")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"upserted": result.Upserted,
		"skipped":  result.Skipped,
	})
}

// polledCommand is the wire shape of one handed-over command.
type polledCommand struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// handlePollCommands returns the edge's queued commands in FIFO order,
// flipping them to sent in the same atomic step.
func (s *Server) handlePollCommands(w http.ResponseWriter, r *http.Request) {
	edgeID := edgeIDFromContext(r.Context())

	commands, err := s.commands.Poll(r.Context(), edgeID)
	if err != nil {
		s.logger.Error("polling commands", "edge_id", edgeID, "error", err)
		writeInternalError(w, "polling commands")
		return
	}

	out := make([]polledCommand, 0, len(commands))
	for _, cmd := range commands {
		out = append(out, polledCommand{ID: cmd.ID, Payload: cmd.Payload})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"commands": out,
	})
}

// ackRequest is the edge's report of a command's final outcome.
type ackRequest struct {
	CommandID string `json:"commandId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleAckCommand(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.CommandID == "" {
		writeBadRequest(w, "commandId is required")
		return
	}

	cmd, err := s.commands.Ack(r.Context(), req.CommandID, req.Status, req.Error)
	switch {
	case errors.Is(err, command.ErrCommandNotFound):
		writeNotFound(w, "command not found")
		return
	case errors.Is(err, command.ErrAlreadyFinal):
		writeError(w, http.StatusConflict, ErrCodeConflict, "command already in a terminal state")
		return
	case err != nil:
		s.logger.Error("acking command", "command_id", req.CommandID, "error", err)
		writeInternalError(w, "acking command")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"id":     cmd.ID,
		"status": string(cmd.Status),
		"error":  cmd.Error,
	})
}
