package topology

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines persistence operations for the household/site/room
// topology. The registry and command producers depend on it for ownership
// checks and room resolution.
type Repository interface {
	// GetHousehold retrieves a household by id.
	// Returns ErrHouseholdNotFound if it does not exist.
	GetHousehold(ctx context.Context, id string) (*Household, error)

	// GetSite retrieves a site by id.
	// Returns ErrSiteNotFound if it does not exist.
	GetSite(ctx context.Context, id string) (*Site, error)

	// SiteBelongsToHousehold reports whether the site exists and is owned
	// by the given household.
	SiteBelongsToHousehold(ctx context.Context, siteID, householdID string) (bool, error)

	// ResolveRoom finds a room by id, or failing that by case-insensitive
	// name within the household's sites. A nil Room with a nil error means
	// the room could not be resolved; callers treat that as "unplaced",
	// not as a failure.
	ResolveRoom(ctx context.Context, householdID, roomID, roomName string) (*Room, error)

	// CreateFloor inserts a new floor.
	CreateFloor(ctx context.Context, floor *Floor) error

	// UpdateFloor renames or re-levels an existing floor.
	UpdateFloor(ctx context.Context, floor *Floor) error

	// DeleteFloor removes a floor by id.
	DeleteFloor(ctx context.Context, id string) error

	// GetFloor retrieves a floor by id.
	GetFloor(ctx context.Context, id string) (*Floor, error)

	// CreateRoom inserts a new room.
	CreateRoom(ctx context.Context, room *Room) error

	// UpdateRoom renames or moves an existing room.
	UpdateRoom(ctx context.Context, room *Room) error

	// DeleteRoom removes a room by id.
	DeleteRoom(ctx context.Context, id string) error

	// GetRoom retrieves a room by id.
	GetRoom(ctx context.Context, id string) (*Room, error)

	// ListRoomsBySite retrieves all rooms at a site ordered by name.
	ListRoomsBySite(ctx context.Context, siteID string) ([]Room, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed topology repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetHousehold retrieves a household by id.
func (r *SQLiteRepository) GetHousehold(ctx context.Context, id string) (*Household, error) {
	query := `SELECT id, name, created_at, updated_at FROM households WHERE id = ?`

	var h Household
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&h.ID, &h.Name, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHouseholdNotFound
		}
		return nil, fmt.Errorf("querying household: %w", err)
	}
	h.CreatedAt = parseTime(createdAt)
	h.UpdatedAt = parseTime(updatedAt)
	return &h, nil
}

// GetSite retrieves a site by id.
func (r *SQLiteRepository) GetSite(ctx context.Context, id string) (*Site, error) {
	query := `SELECT id, household_id, name, timezone, created_at, updated_at FROM sites WHERE id = ?`

	var s Site
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.HouseholdID, &s.Name, &s.Timezone, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSiteNotFound
		}
		return nil, fmt.Errorf("querying site: %w", err)
	}
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

// SiteBelongsToHousehold reports whether the site is owned by the household.
func (r *SQLiteRepository) SiteBelongsToHousehold(ctx context.Context, siteID, householdID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sites WHERE id = ? AND household_id = ?",
		siteID, householdID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking site ownership: %w", err)
	}
	return count > 0, nil
}

// ResolveRoom finds a room by id, falling back to a case-insensitive name
// lookup across the household's sites.
func (r *SQLiteRepository) ResolveRoom(ctx context.Context, householdID, roomID, roomName string) (*Room, error) {
	if roomID != "" {
		room, err := r.GetRoom(ctx, roomID)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, ErrRoomNotFound) {
			return nil, err
		}
	}

	if roomName == "" {
		return nil, nil
	}

	query := `
		SELECT r.id, r.site_id, r.floor_id, r.name, r.created_at, r.updated_at
		FROM rooms r
		JOIN sites s ON s.id = r.site_id
		WHERE s.household_id = ? AND LOWER(r.name) = LOWER(?)
		LIMIT 1`

	room, err := scanRoom(r.db.QueryRowContext(ctx, query, householdID, roomName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolving room by name: %w", err)
	}
	return room, nil
}

// CreateFloor inserts a new floor.
func (r *SQLiteRepository) CreateFloor(ctx context.Context, floor *Floor) error {
	now := time.Now().UTC()
	if floor.CreatedAt.IsZero() {
		floor.CreatedAt = now
	}
	floor.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO floors (id, site_id, name, level, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		floor.ID, floor.SiteID, floor.Name, floor.Level,
		floor.CreatedAt.Format(time.RFC3339), floor.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting floor: %w", err)
	}
	return nil
}

// UpdateFloor renames or re-levels an existing floor.
func (r *SQLiteRepository) UpdateFloor(ctx context.Context, floor *Floor) error {
	floor.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE floors SET name = ?, level = ?, updated_at = ? WHERE id = ?`,
		floor.Name, floor.Level, floor.UpdatedAt.Format(time.RFC3339), floor.ID,
	)
	if err != nil {
		return fmt.Errorf("updating floor: %w", err)
	}
	return checkAffected(result, ErrFloorNotFound)
}

// DeleteFloor removes a floor by id.
func (r *SQLiteRepository) DeleteFloor(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM floors WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting floor: %w", err)
	}
	return checkAffected(result, ErrFloorNotFound)
}

// GetFloor retrieves a floor by id.
func (r *SQLiteRepository) GetFloor(ctx context.Context, id string) (*Floor, error) {
	query := `SELECT id, site_id, name, level, created_at, updated_at FROM floors WHERE id = ?`

	var f Floor
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.SiteID, &f.Name, &f.Level, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFloorNotFound
		}
		return nil, fmt.Errorf("querying floor: %w", err)
	}
	f.CreatedAt = parseTime(createdAt)
	f.UpdatedAt = parseTime(updatedAt)
	return &f, nil
}

// CreateRoom inserts a new room.
func (r *SQLiteRepository) CreateRoom(ctx context.Context, room *Room) error {
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rooms (id, site_id, floor_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		room.ID, room.SiteID, nullableString(room.FloorID), room.Name,
		room.CreatedAt.Format(time.RFC3339), room.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting room: %w", err)
	}
	return nil
}

// UpdateRoom renames or moves an existing room.
func (r *SQLiteRepository) UpdateRoom(ctx context.Context, room *Room) error {
	room.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE rooms SET name = ?, floor_id = ?, updated_at = ? WHERE id = ?`,
		room.Name, nullableString(room.FloorID), room.UpdatedAt.Format(time.RFC3339), room.ID,
	)
	if err != nil {
		return fmt.Errorf("updating room: %w", err)
	}
	return checkAffected(result, ErrRoomNotFound)
}

// DeleteRoom removes a room by id.
func (r *SQLiteRepository) DeleteRoom(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting room: %w", err)
	}
	return checkAffected(result, ErrRoomNotFound)
}

// GetRoom retrieves a room by id.
func (r *SQLiteRepository) GetRoom(ctx context.Context, id string) (*Room, error) {
	query := `SELECT id, site_id, floor_id, name, created_at, updated_at FROM rooms WHERE id = ?`

	room, err := scanRoom(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("querying room: %w", err)
	}
	return room, nil
}

// ListRoomsBySite retrieves all rooms at a site ordered by name.
func (r *SQLiteRepository) ListRoomsBySite(ctx context.Context, siteID string) ([]Room, error) {
	query := `
		SELECT id, site_id, floor_id, name, created_at, updated_at
		FROM rooms WHERE site_id = ? ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		rooms = append(rooms, *room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rooms: %w", err)
	}
	return rooms, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*Room, error) {
	var room Room
	var floorID sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&room.ID, &room.SiteID, &floorID, &room.Name, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if floorID.Valid {
		room.FloorID = &floorID.String
	}
	room.CreatedAt = parseTime(createdAt)
	room.UpdatedAt = parseTime(updatedAt)
	return &room, nil
}

func checkAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s) //nolint:errcheck // Format is controlled
	return t
}
