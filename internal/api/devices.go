package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hearthlabs/hearth-cloud/internal/command"
	"github.com/hearthlabs/hearth-cloud/internal/edge"
	"github.com/hearthlabs/hearth-cloud/internal/registry"
	"github.com/hearthlabs/hearth-cloud/internal/telemetry"
)

// loadOwnedDevice fetches a device and checks it belongs to the caller's
// household. Foreign devices are reported as not found rather than
// forbidden so ids cannot be probed across tenants.
func (s *Server) loadOwnedDevice(w http.ResponseWriter, r *http.Request) *registry.Device {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "authentication required")
		return nil
	}

	device, err := s.registry.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, registry.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return nil
		}
		writeInternalError(w, "looking up device")
		return nil
	}

	if device.HouseholdID != claims.HouseholdID {
		writeNotFound(w, "device not found")
		return nil
	}
	return device
}

// applyIsOn reduces the device's latest cached values to an on/off flag
// and persists it when it changed. The cache holds numbers, so each
// value is rendered back to its token form ("1", "0") before matching.
// Failures leave the stored flag alone; reads never fail because of
// this.
func (s *Server) applyIsOn(ctx context.Context, device *registry.Device, values []telemetry.LatestValue) {
	if len(values) == 0 {
		return
	}

	states := make([]telemetry.EntityState, 0, len(values))
	for _, v := range values {
		states = append(states, telemetry.EntityState{
			EntityKey: v.EntityKey,
			State:     strconv.FormatFloat(v.Value, 'f', -1, 64),
		})
	}

	isOn := telemetry.ComputeIsOn(device.Domain, states, device.IsOn)
	if isOn == device.IsOn {
		return
	}
	if err := s.registry.SetIsOn(ctx, device.ID, isOn); err != nil {
		s.logger.Warn("persisting device on flag", "device_id", device.ID, "error", err)
		return
	}
	device.IsOn = isOn
}

// refreshIsOn is applyIsOn with its own cache lookup, for handlers that
// do not already hold the latest values.
func (s *Server) refreshIsOn(ctx context.Context, device *registry.Device) {
	values, err := s.telemetry.DeviceLatest(ctx, device.SiteID, device.DeviceKey)
	if err != nil {
		s.logger.Warn("listing latest values", "device_id", device.ID, "error", err)
		return
	}
	s.applyIsOn(ctx, device, values)
}

// handleGetDevice returns one device with its entities. The on/off flag
// is recomputed from telemetry on the way out so it tracks what the
// edge last reported rather than the registration default.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	device := s.loadOwnedDevice(w, r)
	if device == nil {
		return
	}

	entities, err := s.registry.DeviceEntities(r.Context(), device)
	if err != nil {
		s.logger.Error("listing device entities", "device_id", device.ID, "error", err)
		writeInternalError(w, "listing device entities")
		return
	}

	s.refreshIsOn(r.Context(), device)

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"device":   device,
		"entities": entities,
	})
}

// handleDeviceSensors returns the latest cached value for each of the
// device's entities.
func (s *Server) handleDeviceSensors(w http.ResponseWriter, r *http.Request) {
	device := s.loadOwnedDevice(w, r)
	if device == nil {
		return
	}

	values, err := s.telemetry.DeviceLatest(r.Context(), device.SiteID, device.DeviceKey)
	if err != nil {
		s.logger.Error("listing latest values", "device_id", device.ID, "error", err)
		writeInternalError(w, "listing sensor values")
		return
	}

	s.applyIsOn(r.Context(), device, values)

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"values": values,
	})
}

// handleDeviceCommand normalizes a user intent and dispatches it to the
// device's edge node. A push failure is not an error; the response
// carries pushed=false and the command waits for the next poll.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	device := s.loadOwnedDevice(w, r)
	if device == nil {
		return
	}
	claims := claimsFromContext(r.Context())

	var in command.Intent
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if in.Action == "" {
		writeBadRequest(w, "action is required")
		return
	}

	entities, err := s.registry.DeviceEntities(r.Context(), device)
	if err != nil {
		s.logger.Error("listing device entities", "device_id", device.ID, "error", err)
		writeInternalError(w, "listing device entities")
		return
	}

	resp, err := s.commands.IssueDeviceCommand(r.Context(), claims.Subject, device, entities, in)
	switch {
	case errors.Is(err, command.ErrMissingTarget):
		writeBadRequest(w, "device has no controllable entity to target")
		return
	case errors.Is(err, command.ErrUnsupportedAction):
		writeBadRequest(w, "unsupported action for this device")
		return
	case errors.Is(err, edge.ErrNodeNotFound):
		writeNotFound(w, "no edge node registered for this site")
		return
	case err != nil:
		s.logger.Error("issuing device command", "device_id", device.ID, "error", err)
		writeInternalError(w, "issuing device command")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
