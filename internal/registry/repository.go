package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlabs/hearth-cloud/internal/classify"
)

// Repository defines persistence operations for devices and entities.
type Repository interface {
	// UpsertDevice creates or merges a device on (householdId, deviceKey).
	// Supplied non-empty fields overwrite; omitted fields keep the stored
	// value. The device is marked online either way.
	UpsertDevice(ctx context.Context, device *Device) error

	// GetByID retrieves a device by its generated id.
	// Returns ErrDeviceNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// GetByKey retrieves a device by its (householdId, deviceKey) identity.
	// Returns ErrDeviceNotFound if it does not exist.
	GetByKey(ctx context.Context, householdID, deviceKey string) (*Device, error)

	// ListBySite retrieves all devices at a site.
	ListBySite(ctx context.Context, siteID string) ([]Device, error)

	// UpsertEntity creates or merges an entity on (siteId, deviceKey, entityKey).
	UpsertEntity(ctx context.Context, entity *Entity) error

	// ListEntities retrieves the entities of one device.
	ListEntities(ctx context.Context, siteID, deviceKey string) ([]Entity, error)

	// SetIsOn updates the last-known on/off flag of a device.
	SetIsOn(ctx context.Context, id string, isOn bool) error

	// PurgeBySite hard-deletes every device at the site whose key is not
	// in keepKeys, returning the delete count. Destructive and
	// irreversible; the caller supplies its complete current inventory.
	PurgeBySite(ctx context.Context, siteID string, keepKeys []string) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, household_id, site_id, room_id, floor_id, device_key, name, type, domain,
	manufacturer, model, sw_version, position, is_on, is_online, created_at, updated_at`

// UpsertDevice creates or merges a device on its (householdId, deviceKey) key.
func (r *SQLiteRepository) UpsertDevice(ctx context.Context, device *Device) error {
	now := time.Now().UTC()
	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	query := `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(household_id, device_key) DO UPDATE SET
			site_id = excluded.site_id,
			room_id = COALESCE(excluded.room_id, devices.room_id),
			floor_id = COALESCE(excluded.floor_id, devices.floor_id),
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE devices.name END,
			type = CASE WHEN excluded.type != '' THEN excluded.type ELSE devices.type END,
			domain = CASE WHEN excluded.domain != '' THEN excluded.domain ELSE devices.domain END,
			manufacturer = CASE WHEN excluded.manufacturer != '' THEN excluded.manufacturer ELSE devices.manufacturer END,
			model = CASE WHEN excluded.model != '' THEN excluded.model ELSE devices.model END,
			sw_version = CASE WHEN excluded.sw_version != '' THEN excluded.sw_version ELSE devices.sw_version END,
			position = CASE WHEN excluded.position != '' THEN excluded.position ELSE devices.position END,
			is_online = 1,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		device.ID,
		device.HouseholdID,
		device.SiteID,
		nullableString(device.RoomID),
		nullableString(device.FloorID),
		device.DeviceKey,
		device.Name,
		string(device.Type),
		device.Domain,
		device.Manufacturer,
		device.Model,
		device.SWVersion,
		device.Position,
		boolToInt(device.IsOn),
		1,
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}

	// The conflict path keeps the original row id; reload it so the
	// caller sees the stored identity.
	stored, err := r.GetByKey(ctx, device.HouseholdID, device.DeviceKey)
	if err != nil {
		return err
	}
	device.ID = stored.ID
	device.CreatedAt = stored.CreatedAt
	return nil
}

// GetByID retrieves a device by its generated id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// GetByKey retrieves a device by its (householdId, deviceKey) identity.
func (r *SQLiteRepository) GetByKey(ctx context.Context, householdID, deviceKey string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE household_id = ? AND device_key = ?`

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, householdID, deviceKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by key: %w", err)
	}
	return device, nil
}

// ListBySite retrieves all devices at a site.
func (r *SQLiteRepository) ListBySite(ctx context.Context, siteID string) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE site_id = ? ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// UpsertEntity creates or merges an entity on its composite key.
func (r *SQLiteRepository) UpsertEntity(ctx context.Context, entity *Entity) error {
	now := time.Now().UTC()
	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	entity.UpdatedAt = now
	if entity.Capabilities == "" {
		entity.Capabilities = "{}"
	}

	query := `
		INSERT INTO device_entities (id, site_id, device_key, entity_key, name, domain,
			device_class, unit, state_class, ha_entity_id, capabilities, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_id, device_key, entity_key) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE device_entities.name END,
			domain = CASE WHEN excluded.domain != '' THEN excluded.domain ELSE device_entities.domain END,
			device_class = CASE WHEN excluded.device_class != '' THEN excluded.device_class ELSE device_entities.device_class END,
			unit = CASE WHEN excluded.unit != '' THEN excluded.unit ELSE device_entities.unit END,
			state_class = CASE WHEN excluded.state_class != '' THEN excluded.state_class ELSE device_entities.state_class END,
			ha_entity_id = CASE WHEN excluded.ha_entity_id != '' THEN excluded.ha_entity_id ELSE device_entities.ha_entity_id END,
			capabilities = CASE WHEN excluded.capabilities != '{}' THEN excluded.capabilities ELSE device_entities.capabilities END,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		entity.ID, entity.SiteID, entity.DeviceKey, entity.EntityKey,
		entity.Name, entity.Domain, entity.DeviceClass, entity.Unit,
		entity.StateClass, entity.HAEntityID, entity.Capabilities,
		entity.CreatedAt.Format(time.RFC3339), entity.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting entity: %w", err)
	}
	return nil
}

// ListEntities retrieves the entities of one device.
func (r *SQLiteRepository) ListEntities(ctx context.Context, siteID, deviceKey string) ([]Entity, error) {
	query := `
		SELECT id, site_id, device_key, entity_key, name, domain, device_class,
			unit, state_class, ha_entity_id, capabilities, created_at, updated_at
		FROM device_entities
		WHERE site_id = ? AND device_key = ?
		ORDER BY entity_key`

	rows, err := r.db.QueryContext(ctx, query, siteID, deviceKey)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var e Entity
		var createdAt, updatedAt string
		err := rows.Scan(&e.ID, &e.SiteID, &e.DeviceKey, &e.EntityKey, &e.Name,
			&e.Domain, &e.DeviceClass, &e.Unit, &e.StateClass, &e.HAEntityID,
			&e.Capabilities, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}

// SetIsOn updates the last-known on/off flag of a device.
func (r *SQLiteRepository) SetIsOn(ctx context.Context, id string, isOn bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE devices SET is_on = ?, updated_at = ? WHERE id = ?",
		boolToInt(isOn), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating device on flag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// PurgeBySite hard-deletes every device at the site not listed in keepKeys.
func (r *SQLiteRepository) PurgeBySite(ctx context.Context, siteID string, keepKeys []string) (int, error) {
	query := "DELETE FROM devices WHERE site_id = ?"
	args := []any{siteID}

	if len(keepKeys) > 0 {
		placeholders := strings.Repeat("?,", len(keepKeys))
		query += " AND device_key NOT IN (" + placeholders[:len(placeholders)-1] + ")"
		for _, key := range keepKeys {
			args = append(args, key)
		}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purging devices: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(affected), nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var d Device
	var roomID, floorID sql.NullString
	var typ string
	var isOn, isOnline int
	var createdAt, updatedAt string

	err := row.Scan(&d.ID, &d.HouseholdID, &d.SiteID, &roomID, &floorID,
		&d.DeviceKey, &d.Name, &typ, &d.Domain, &d.Manufacturer, &d.Model,
		&d.SWVersion, &d.Position, &isOn, &isOnline, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if roomID.Valid {
		d.RoomID = &roomID.String
	}
	if floorID.Valid {
		d.FloorID = &floorID.String
	}
	d.Type = classify.DeviceType(typ)
	d.IsOn = isOn != 0
	d.IsOnline = isOnline != 0
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return &d, nil
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
