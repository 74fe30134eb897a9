package telemetry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/database"
	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/logging"
	_ "github.com/hearthlabs/hearth-cloud/migrations"
)

func setupService(t *testing.T) (*Service, *database.DB) {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	return NewService(NewSQLiteRepository(db.DB), logging.Default()), db
}

func TestIngest_LastWriteWins(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	first := []Item{{DeviceKey: "living.light", EntityKey: "state", Value: float64(1)}}
	second := []Item{{DeviceKey: "living.light", EntityKey: "state", Value: float64(0)}}

	if _, err := svc.Ingest(ctx, "site-1", "hh-1", first); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if _, err := svc.Ingest(ctx, "site-1", "hh-1", second); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	latest, err := svc.Latest(ctx, "site-1", "living.light", "state")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Value != 0 {
		t.Errorf("latest value = %v, want 0", latest.Value)
	}

	// Exactly one latest row, two history rows.
	var latestCount, historyCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM latest_sensor_values").Scan(&latestCount); err != nil {
		t.Fatalf("counting latest rows: %v", err)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM sensor_readings").Scan(&historyCount); err != nil {
		t.Fatalf("counting history rows: %v", err)
	}
	if latestCount != 1 {
		t.Errorf("latest rows = %d, want 1", latestCount)
	}
	if historyCount != 2 {
		t.Errorf("history rows = %d, want 2", historyCount)
	}
}

func TestIngest_SkipsNonNumeric(t *testing.T) {
	svc, _ := setupService(t)

	result, err := svc.Ingest(context.Background(), "site-1", "hh-1", []Item{
		{DeviceKey: "d1", EntityKey: "temp", Value: 21.5},
		{DeviceKey: "d1", EntityKey: "state", Value: "unavailable"},
		{DeviceKey: "d1", EntityKey: "mode", Value: map[string]any{"nested": true}},
		{DeviceKey: "d1", EntityKey: "humidity", Value: "47.2"},
		{DeviceKey: "d1", EntityKey: "contact", Value: true},
		{DeviceKey: "", EntityKey: "temp", Value: 1.0},
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if result.Upserted != 3 {
		t.Errorf("Upserted = %d, want 3 (float, numeric string, bool)", result.Upserted)
	}
	if result.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", result.Skipped)
	}
}

func TestIngest_StoresMetadata(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, "site-1", "hh-1", []Item{
		{
			DeviceKey: "trv.hall", EntityKey: "temperature", Value: 19.5,
			Unit: "°C", Domain: "climate", DeviceClass: "temperature",
			StateClass: "measurement", HAEntityID: "sensor.hall_trv_temp",
			TS: "2026-08-15T12:00:00Z",
		},
	}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	latest, err := svc.Latest(ctx, "site-1", "trv.hall", "temperature")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Unit != "°C" || latest.Domain != "climate" || latest.HAEntityID != "sensor.hall_trv_temp" {
		t.Errorf("metadata not stored: %+v", latest)
	}
	if latest.RecordedAt.Format("2006-01-02") != "2026-08-15" {
		t.Errorf("RecordedAt = %v, want supplied timestamp", latest.RecordedAt)
	}
}

func TestLatest_NotFound(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Latest(context.Background(), "site-1", "nope", "state")
	if !errors.Is(err, ErrLatestNotFound) {
		t.Errorf("Latest() error = %v, want ErrLatestNotFound", err)
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	for i, ts := range []string{"2026-08-15T10:00:00Z", "2026-08-15T11:00:00Z", "2026-08-15T12:00:00Z"} {
		if _, err := svc.Ingest(ctx, "site-1", "hh-1", []Item{
			{DeviceKey: "d1", EntityKey: "temp", Value: float64(i), TS: ts},
		}); err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
	}

	readings, err := svc.History(ctx, "site-1", "d1", "temp", 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("History() returned %d readings, want 2", len(readings))
	}
	if readings[0].Value != 2 || readings[1].Value != 1 {
		t.Errorf("History() order = [%v, %v], want [2, 1]", readings[0].Value, readings[1].Value)
	}
}

func TestComputeIsOn(t *testing.T) {
	tests := []struct {
		name     string
		domain   string
		entities []EntityState
		fallback bool
		want     bool
	}{
		{"climate heat mode", "climate", []EntityState{{EntityKey: "hvac_mode", State: "heat"}}, false, true},
		{"climate off mode", "climate", []EntityState{{EntityKey: "mode", State: "off"}}, true, false},
		{"climate unknown mode", "climate", []EntityState{{EntityKey: "mode", State: "eco_weird"}}, true, true},
		{"climate no mode entity", "climate", []EntityState{{EntityKey: "temperature", State: "21"}}, false, false},

		{"switch on", "switch", []EntityState{{EntityKey: "state", State: "on"}}, false, true},
		{"switch off", "switch", []EntityState{{EntityKey: "state", State: "off"}}, true, false},
		{"light numeric on", "light", []EntityState{{EntityKey: "state", State: "1"}}, false, true},
		{"power entity", "switch", []EntityState{{EntityKey: "power_state", State: "ON"}}, false, true},
		{"unknown vocabulary", "light", []EntityState{{EntityKey: "state", State: "dimmed?"}}, true, true},
		{"no entities", "light", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeIsOn(tt.domain, tt.entities, tt.fallback); got != tt.want {
				t.Errorf("ComputeIsOn(%q) = %v, want %v", tt.domain, got, tt.want)
			}
		})
	}
}

func TestNumericValue(t *testing.T) {
	tests := []struct {
		input  any
		want   float64
		wantOK bool
	}{
		{21.5, 21.5, true},
		{"47.2", 47.2, true},
		{" 3 ", 3, true},
		{true, 1, true},
		{false, 0, true},
		{"unavailable", 0, false},
		{nil, 0, false},
		{[]any{1}, 0, false},
	}

	for _, tt := range tests {
		got, ok := numericValue(tt.input)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("numericValue(%v) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}
