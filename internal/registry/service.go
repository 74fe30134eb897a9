package registry

import (
	"context"

	"github.com/hearthlabs/hearth-cloud/internal/classify"
	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/logging"
	"github.com/hearthlabs/hearth-cloud/internal/topology"
)

// Service implements the idempotent device and entity registry. Edges
// re-announce their complete inventory on every reconnect, so every
// operation is an upsert and re-running a batch converges to the same
// stored state.
type Service struct {
	repo   Repository
	topo   topology.Repository
	logger *logging.Logger
}

// NewService creates a registry service.
func NewService(repo Repository, topo topology.Repository, logger *logging.Logger) *Service {
	return &Service{
		repo:   repo,
		topo:   topo,
		logger: logger.With("component", "registry"),
	}
}

// RegisterDevices processes a device registration batch row by row.
//
// Each row is validated, resolved, classified, and committed
// independently: a malformed row is reported in its RowResult while the
// rest of the batch proceeds. There is no whole-batch atomicity by
// design.
//
// Parameters:
//   - ctx: Request context
//   - defaultHouseholdID: Household applied to rows without their own
//   - defaultSiteID: Site applied to rows without their own
//   - rows: The announced devices
//
// Returns:
//   - *RegisterResult: Per-row outcomes plus upsert counts
//   - error: Only for infrastructure failures, never per-row problems
func (s *Service) RegisterDevices(ctx context.Context, defaultHouseholdID, defaultSiteID string, rows []DeviceRow) (*RegisterResult, error) {
	result := &RegisterResult{Rows: make([]RowResult, 0, len(rows))}

	for _, row := range rows {
		rowResult, entities := s.registerDevice(ctx, defaultHouseholdID, defaultSiteID, row)
		if rowResult.OK {
			result.Upserted++
			result.EntitiesUpserted += entities
		}
		result.Rows = append(result.Rows, rowResult)
	}

	return result, nil
}

// registerDevice commits one row and reports how many of its entities
// were actually upserted; rows skipped for a blank entityKey do not
// count.
func (s *Service) registerDevice(ctx context.Context, defaultHouseholdID, defaultSiteID string, row DeviceRow) (RowResult, int) {
	fail := func(err error) (RowResult, int) {
		s.logger.Warn("device row rejected", "device_key", row.DeviceKey, "error", err)
		return RowResult{DeviceKey: row.DeviceKey, OK: false, Error: err.Error()}, 0
	}

	if row.DeviceKey == "" {
		return fail(ErrMissingDeviceKey)
	}
	if row.Name == "" {
		return fail(ErrMissingName)
	}

	siteID := row.SiteID
	if siteID == "" {
		siteID = defaultSiteID
	}
	if siteID == "" {
		return fail(ErrMissingSite)
	}

	site, err := s.topo.GetSite(ctx, siteID)
	if err != nil {
		return fail(err)
	}

	householdID := row.HouseholdID
	if householdID == "" {
		householdID = defaultHouseholdID
	}
	if householdID == "" {
		householdID = site.HouseholdID
	}

	// An unresolved room leaves the device unplaced rather than failing.
	var roomID *string
	room, err := s.topo.ResolveRoom(ctx, householdID, row.RoomID, row.RoomName)
	if err != nil {
		return fail(err)
	}
	if room != nil {
		roomID = &room.ID
	}

	deviceType, domain := s.classifyRow(row)

	device := &Device{
		HouseholdID:  householdID,
		SiteID:       siteID,
		RoomID:       roomID,
		FloorID:      row.FloorID,
		DeviceKey:    row.DeviceKey,
		Name:         row.Name,
		Type:         deviceType,
		Domain:       domain,
		Manufacturer: row.Manufacturer,
		Model:        row.Model,
		SWVersion:    row.SWVersion,
		Position:     row.Position,
	}
	if err := s.repo.UpsertDevice(ctx, device); err != nil {
		return fail(err)
	}

	entitiesUpserted := 0
	for _, entityRow := range row.Entities {
		if entityRow.EntityKey == "" {
			s.logger.Warn("entity row skipped", "device_key", row.DeviceKey, "error", ErrMissingEntityKey)
			continue
		}
		entity := entityFromRow(siteID, row.DeviceKey, entityRow)
		if err := s.repo.UpsertEntity(ctx, entity); err != nil {
			return fail(err)
		}
		entitiesUpserted++
	}

	return RowResult{DeviceKey: row.DeviceKey, OK: true, DeviceID: device.ID}, entitiesUpserted
}

// classifyRow fills in type and domain from whatever metadata the row
// carries. Explicit values win; the classifier only covers gaps and
// never blocks the upsert.
func (s *Service) classifyRow(row DeviceRow) (classify.DeviceType, string) {
	meta := classify.Meta{
		Domain:       row.Domain,
		DeviceClass:  row.DeviceClass,
		Name:         row.Name,
		Model:        row.Model,
		Manufacturer: row.Manufacturer,
		TypeHint:     row.Type,
	}
	for _, e := range row.Entities {
		if e.HAEntityID != "" {
			meta.EntityIDs = append(meta.EntityIDs, e.HAEntityID)
		}
	}

	deviceType := classify.Coerce(row.Type)
	if row.Type == "" || !classify.IsAllowed(classify.DeviceType(row.Type)) {
		deviceType = classify.InferType(meta)
	}

	domain := row.Domain
	if domain == "" {
		domain = classify.InferDomain(meta)
	}

	return deviceType, domain
}

// RegisterEntities processes an entity-only batch. Each row names its
// parent by deviceKey; the parent device may not exist yet, which is
// tolerated (the composite key ties them together later).
func (s *Service) RegisterEntities(ctx context.Context, defaultSiteID string, rows []EntityRow) (int, error) {
	if defaultSiteID == "" {
		return 0, ErrMissingSite
	}
	if _, err := s.topo.GetSite(ctx, defaultSiteID); err != nil {
		return 0, err
	}

	upserted := 0
	for _, row := range rows {
		if row.EntityKey == "" || row.DeviceKey == "" {
			s.logger.Warn("entity row rejected",
				"device_key", row.DeviceKey,
				"entity_key", row.EntityKey,
			)
			continue
		}
		entity := entityFromRow(defaultSiteID, row.DeviceKey, row)
		if err := s.repo.UpsertEntity(ctx, entity); err != nil {
			return upserted, err
		}
		upserted++
	}
	return upserted, nil
}

// Purge hard-deletes every device at the site whose key is absent from
// keepKeys. This is a full-reconciliation sweep driven by the edge's
// complete inventory, not an incremental diff, and it is irreversible.
func (s *Service) Purge(ctx context.Context, siteID string, keepKeys []string) (int, error) {
	if _, err := s.topo.GetSite(ctx, siteID); err != nil {
		return 0, err
	}

	deleted, err := s.repo.PurgeBySite(ctx, siteID, keepKeys)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		s.logger.Info("devices purged", "site_id", siteID, "deleted", deleted, "kept", len(keepKeys))
	}
	return deleted, nil
}

// GetDevice retrieves a device by its generated id.
func (s *Service) GetDevice(ctx context.Context, id string) (*Device, error) {
	return s.repo.GetByID(ctx, id)
}

// SetIsOn persists the device's reduced on/off flag.
func (s *Service) SetIsOn(ctx context.Context, id string, isOn bool) error {
	return s.repo.SetIsOn(ctx, id, isOn)
}

// DeviceEntities retrieves the entities of one device.
func (s *Service) DeviceEntities(ctx context.Context, device *Device) ([]Entity, error) {
	return s.repo.ListEntities(ctx, device.SiteID, device.DeviceKey)
}

// IsSiteOwned reports whether the site belongs to the household. Used as
// the ownership precondition before issuing device commands.
func (s *Service) IsSiteOwned(ctx context.Context, siteID, householdID string) (bool, error) {
	return s.topo.SiteBelongsToHousehold(ctx, siteID, householdID)
}

func entityFromRow(siteID, deviceKey string, row EntityRow) *Entity {
	return &Entity{
		SiteID:       siteID,
		DeviceKey:    deviceKey,
		EntityKey:    row.EntityKey,
		Name:         row.Name,
		Domain:       row.Domain,
		DeviceClass:  row.DeviceClass,
		Unit:         row.Unit,
		StateClass:   row.StateClass,
		HAEntityID:   row.HAEntityID,
		Capabilities: row.Capabilities,
	}
}
