package topology

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/logging"
)

// Broadcaster fans a command out to every edge node registered at a site.
// The command queue implements this; the indirection keeps topology free
// of a dependency on queue internals.
type Broadcaster interface {
	BroadcastToSite(ctx context.Context, siteID string, payload map[string]any) error
}

// Service coordinates room and floor changes with edge fan-out. Every
// create, rename, and delete is mirrored to all edges at the affected
// site so their local area registries stay in sync.
type Service struct {
	repo      Repository
	broadcast Broadcaster
	logger    *logging.Logger
}

// NewService creates a topology service.
func NewService(repo Repository, broadcast Broadcaster, logger *logging.Logger) *Service {
	return &Service{
		repo:      repo,
		broadcast: broadcast,
		logger:    logger.With("component", "topology"),
	}
}

// CreateRoom creates a room and announces it to the site's edges.
func (s *Service) CreateRoom(ctx context.Context, siteID, name string, floorID *string) (*Room, error) {
	if _, err := s.repo.GetSite(ctx, siteID); err != nil {
		return nil, err
	}

	room := &Room{
		ID:      uuid.NewString(),
		SiteID:  siteID,
		FloorID: floorID,
		Name:    name,
	}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}

	s.fanOut(ctx, siteID, map[string]any{
		"type":   "area.ensure",
		"kind":   "room",
		"areaId": room.ID,
		"name":   room.Name,
	})
	return room, nil
}

// RenameRoom renames a room and announces the change to the site's edges.
func (s *Service) RenameRoom(ctx context.Context, roomID, name string) (*Room, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	room.Name = name
	if err := s.repo.UpdateRoom(ctx, room); err != nil {
		return nil, err
	}

	s.fanOut(ctx, room.SiteID, map[string]any{
		"type":   "area.rename",
		"kind":   "room",
		"areaId": room.ID,
		"name":   room.Name,
	})
	return room, nil
}

// DeleteRoom removes a room and announces the removal to the site's edges.
func (s *Service) DeleteRoom(ctx context.Context, roomID string) error {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteRoom(ctx, roomID); err != nil {
		return err
	}

	s.fanOut(ctx, room.SiteID, map[string]any{
		"type":   "area.delete",
		"kind":   "room",
		"areaId": room.ID,
	})
	return nil
}

// CreateFloor creates a floor and announces it to the site's edges.
func (s *Service) CreateFloor(ctx context.Context, siteID, name string, level int) (*Floor, error) {
	if _, err := s.repo.GetSite(ctx, siteID); err != nil {
		return nil, err
	}

	floor := &Floor{
		ID:     uuid.NewString(),
		SiteID: siteID,
		Name:   name,
		Level:  level,
	}
	if err := s.repo.CreateFloor(ctx, floor); err != nil {
		return nil, err
	}

	s.fanOut(ctx, siteID, map[string]any{
		"type":   "area.ensure",
		"kind":   "floor",
		"areaId": floor.ID,
		"name":   floor.Name,
		"level":  floor.Level,
	})
	return floor, nil
}

// RenameFloor renames a floor and announces the change to the site's edges.
func (s *Service) RenameFloor(ctx context.Context, floorID, name string, level int) (*Floor, error) {
	floor, err := s.repo.GetFloor(ctx, floorID)
	if err != nil {
		return nil, err
	}

	floor.Name = name
	floor.Level = level
	if err := s.repo.UpdateFloor(ctx, floor); err != nil {
		return nil, err
	}

	s.fanOut(ctx, floor.SiteID, map[string]any{
		"type":   "area.rename",
		"kind":   "floor",
		"areaId": floor.ID,
		"name":   floor.Name,
		"level":  floor.Level,
	})
	return floor, nil
}

// DeleteFloor removes a floor and announces the removal to the site's edges.
func (s *Service) DeleteFloor(ctx context.Context, floorID string) error {
	floor, err := s.repo.GetFloor(ctx, floorID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteFloor(ctx, floorID); err != nil {
		return err
	}

	s.fanOut(ctx, floor.SiteID, map[string]any{
		"type":   "area.delete",
		"kind":   "floor",
		"areaId": floor.ID,
	})
	return nil
}

// fanOut broadcasts a topology change to the site's edges. Broadcast
// failures are logged but never fail the originating CRUD operation.
func (s *Service) fanOut(ctx context.Context, siteID string, payload map[string]any) {
	if s.broadcast == nil {
		return
	}
	if err := s.broadcast.BroadcastToSite(ctx, siteID, payload); err != nil {
		s.logger.Warn("topology fan-out failed",
			"site_id", siteID,
			"type", fmt.Sprint(payload["type"]),
			"error", err,
		)
	}
}
