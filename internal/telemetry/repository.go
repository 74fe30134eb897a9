package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrLatestNotFound indicates no latest value exists for the key.
var ErrLatestNotFound = errors.New("telemetry: latest value not found")

// Repository defines persistence operations for the telemetry cache and
// history.
type Repository interface {
	// Apply appends one reading to history and upserts the latest-value
	// row for its key, both inside one transaction. Last write wins on
	// the latest row regardless of the reading's own timestamp.
	Apply(ctx context.Context, latest *LatestValue) error

	// GetLatest retrieves the latest value for one key.
	// Returns ErrLatestNotFound if no value has been ingested.
	GetLatest(ctx context.Context, siteID, deviceKey, entityKey string) (*LatestValue, error)

	// ListLatestByDevice retrieves all latest values of one device.
	ListLatestByDevice(ctx context.Context, siteID, deviceKey string) ([]LatestValue, error)

	// History retrieves up to limit readings for one key, newest first.
	History(ctx context.Context, siteID, deviceKey, entityKey string, limit int) ([]Reading, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed telemetry repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Apply appends to history and upserts the latest-value row atomically.
func (r *SQLiteRepository) Apply(ctx context.Context, latest *LatestValue) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	recordedAt := latest.RecordedAt.UTC().Format(time.RFC3339)
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sensor_readings (site_id, device_key, entity_key, value, unit, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		latest.SiteID, latest.DeviceKey, latest.EntityKey, latest.Value, latest.Unit, recordedAt,
	)
	if err != nil {
		return fmt.Errorf("appending reading: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO latest_sensor_values (site_id, device_key, entity_key, value, unit,
			domain, device_class, state_class, ha_entity_id, recorded_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_id, device_key, entity_key) DO UPDATE SET
			value = excluded.value,
			unit = CASE WHEN excluded.unit != '' THEN excluded.unit ELSE latest_sensor_values.unit END,
			domain = CASE WHEN excluded.domain != '' THEN excluded.domain ELSE latest_sensor_values.domain END,
			device_class = CASE WHEN excluded.device_class != '' THEN excluded.device_class ELSE latest_sensor_values.device_class END,
			state_class = CASE WHEN excluded.state_class != '' THEN excluded.state_class ELSE latest_sensor_values.state_class END,
			ha_entity_id = CASE WHEN excluded.ha_entity_id != '' THEN excluded.ha_entity_id ELSE latest_sensor_values.ha_entity_id END,
			recorded_at = excluded.recorded_at,
			updated_at = excluded.updated_at`,
		latest.SiteID, latest.DeviceKey, latest.EntityKey, latest.Value, latest.Unit,
		latest.Domain, latest.DeviceClass, latest.StateClass, latest.HAEntityID,
		recordedAt, now,
	)
	if err != nil {
		return fmt.Errorf("upserting latest value: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing telemetry: %w", err)
	}
	return nil
}

// GetLatest retrieves the latest value for one key.
func (r *SQLiteRepository) GetLatest(ctx context.Context, siteID, deviceKey, entityKey string) (*LatestValue, error) {
	query := `
		SELECT site_id, device_key, entity_key, value, unit, domain, device_class,
			state_class, ha_entity_id, recorded_at, updated_at
		FROM latest_sensor_values
		WHERE site_id = ? AND device_key = ? AND entity_key = ?`

	latest, err := scanLatest(r.db.QueryRowContext(ctx, query, siteID, deviceKey, entityKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLatestNotFound
		}
		return nil, fmt.Errorf("querying latest value: %w", err)
	}
	return latest, nil
}

// ListLatestByDevice retrieves all latest values of one device.
func (r *SQLiteRepository) ListLatestByDevice(ctx context.Context, siteID, deviceKey string) ([]LatestValue, error) {
	query := `
		SELECT site_id, device_key, entity_key, value, unit, domain, device_class,
			state_class, ha_entity_id, recorded_at, updated_at
		FROM latest_sensor_values
		WHERE site_id = ? AND device_key = ?
		ORDER BY entity_key`

	rows, err := r.db.QueryContext(ctx, query, siteID, deviceKey)
	if err != nil {
		return nil, fmt.Errorf("querying latest values: %w", err)
	}
	defer rows.Close()

	var values []LatestValue
	for rows.Next() {
		latest, err := scanLatest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning latest value: %w", err)
		}
		values = append(values, *latest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating latest values: %w", err)
	}
	return values, nil
}

// History retrieves up to limit readings for one key, newest first.
func (r *SQLiteRepository) History(ctx context.Context, siteID, deviceKey, entityKey string, limit int) ([]Reading, error) {
	query := `
		SELECT id, site_id, device_key, entity_key, value, unit, recorded_at
		FROM sensor_readings
		WHERE site_id = ? AND device_key = ? AND entity_key = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, siteID, deviceKey, entityKey, limit)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var reading Reading
		var recordedAt string
		err := rows.Scan(&reading.ID, &reading.SiteID, &reading.DeviceKey,
			&reading.EntityKey, &reading.Value, &reading.Unit, &recordedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		reading.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt) //nolint:errcheck // Format is controlled
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return readings, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLatest(row rowScanner) (*LatestValue, error) {
	var v LatestValue
	var recordedAt, updatedAt string

	err := row.Scan(&v.SiteID, &v.DeviceKey, &v.EntityKey, &v.Value, &v.Unit,
		&v.Domain, &v.DeviceClass, &v.StateClass, &v.HAEntityID, &recordedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	v.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt) //nolint:errcheck // Format is controlled
	v.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)   //nolint:errcheck // Format is controlled
	return &v, nil
}
