package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthlabs/hearth-cloud/internal/topology"
)

// requireOwnedSite verifies the site exists and belongs to the caller's
// household. Returns false after writing the error response.
func (s *Server) requireOwnedSite(w http.ResponseWriter, r *http.Request, siteID string) bool {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "authentication required")
		return false
	}

	owned, err := s.topoRepo.SiteBelongsToHousehold(r.Context(), siteID, claims.HouseholdID)
	if err != nil {
		writeInternalError(w, "checking site ownership")
		return false
	}
	if !owned {
		writeNotFound(w, "site not found")
		return false
	}
	return true
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	siteID := r.URL.Query().Get("siteId")
	if siteID == "" {
		writeBadRequest(w, "siteId query parameter is required")
		return
	}
	if !s.requireOwnedSite(w, r, siteID) {
		return
	}

	rooms, err := s.topoRepo.ListRoomsBySite(r.Context(), siteID)
	if err != nil {
		s.logger.Error("listing rooms", "site_id", siteID, "error", err)
		writeInternalError(w, "listing rooms")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"rooms": rooms,
	})
}

type createRoomRequest struct {
	SiteID  string  `json:"siteId"`
	Name    string  `json:"name"`
	FloorID *string `json:"floorId,omitempty"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.SiteID == "" || req.Name == "" {
		writeBadRequest(w, "siteId and name are required")
		return
	}
	if !s.requireOwnedSite(w, r, req.SiteID) {
		return
	}

	room, err := s.topology.CreateRoom(r.Context(), req.SiteID, req.Name, req.FloorID)
	if err != nil {
		s.logger.Error("creating room", "site_id", req.SiteID, "error", err)
		writeInternalError(w, "creating room")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":   true,
		"room": room,
	})
}

type renameRequest struct {
	Name  string `json:"name"`
	Level int    `json:"level,omitempty"`
}

// loadOwnedRoom fetches a room and checks its site belongs to the
// caller's household.
func (s *Server) loadOwnedRoom(w http.ResponseWriter, r *http.Request) *topology.Room {
	room, err := s.topoRepo.GetRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, topology.ErrRoomNotFound) {
			writeNotFound(w, "room not found")
			return nil
		}
		writeInternalError(w, "looking up room")
		return nil
	}
	if !s.requireOwnedSite(w, r, room.SiteID) {
		return nil
	}
	return room
}

func (s *Server) handleRenameRoom(w http.ResponseWriter, r *http.Request) {
	room := s.loadOwnedRoom(w, r)
	if room == nil {
		return
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	updated, err := s.topology.RenameRoom(r.Context(), room.ID, req.Name)
	if err != nil {
		s.logger.Error("renaming room", "room_id", room.ID, "error", err)
		writeInternalError(w, "renaming room")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"room": updated,
	})
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	room := s.loadOwnedRoom(w, r)
	if room == nil {
		return
	}

	if err := s.topology.DeleteRoom(r.Context(), room.ID); err != nil {
		s.logger.Error("deleting room", "room_id", room.ID, "error", err)
		writeInternalError(w, "deleting room")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type createFloorRequest struct {
	SiteID string `json:"siteId"`
	Name   string `json:"name"`
	Level  int    `json:"level"`
}

func (s *Server) handleCreateFloor(w http.ResponseWriter, r *http.Request) {
	var req createFloorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.SiteID == "" || req.Name == "" {
		writeBadRequest(w, "siteId and name are required")
		return
	}
	if !s.requireOwnedSite(w, r, req.SiteID) {
		return
	}

	floor, err := s.topology.CreateFloor(r.Context(), req.SiteID, req.Name, req.Level)
	if err != nil {
		s.logger.Error("creating floor", "site_id", req.SiteID, "error", err)
		writeInternalError(w, "creating floor")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":    true,
		"floor": floor,
	})
}

// loadOwnedFloor fetches a floor and checks its site belongs to the
// caller's household.
func (s *Server) loadOwnedFloor(w http.ResponseWriter, r *http.Request) *topology.Floor {
	floor, err := s.topoRepo.GetFloor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, topology.ErrFloorNotFound) {
			writeNotFound(w, "floor not found")
			return nil
		}
		writeInternalError(w, "looking up floor")
		return nil
	}
	if !s.requireOwnedSite(w, r, floor.SiteID) {
		return nil
	}
	return floor
}

func (s *Server) handleRenameFloor(w http.ResponseWriter, r *http.Request) {
	floor := s.loadOwnedFloor(w, r)
	if floor == nil {
		return
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	updated, err := s.topology.RenameFloor(r.Context(), floor.ID, req.Name, req.Level)
	if err != nil {
		s.logger.Error("renaming floor", "floor_id", floor.ID, "error", err)
		writeInternalError(w, "renaming floor")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"floor": updated,
	})
}

func (s *Server) handleDeleteFloor(w http.ResponseWriter, r *http.Request) {
	floor := s.loadOwnedFloor(w, r)
	if floor == nil {
		return
	}

	if err := s.topology.DeleteFloor(r.Context(), floor.ID); err != nil {
		s.logger.Error("deleting floor", "floor_id", floor.ID, "error", err)
		writeInternalError(w, "deleting floor")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
