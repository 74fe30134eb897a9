package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hearthlabs/hearth-cloud/internal/classify"
	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/database"
	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/logging"
	"github.com/hearthlabs/hearth-cloud/internal/topology"
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

	now := time.Now().UTC().Format(time.RFC3339)
	mustExec := func(query string, args ...any) {
		t.Helper()
		if _, err := db.Exec(query, args...); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}
	mustExec("INSERT INTO households (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)",
		"hh-1", "Test Household", now, now)
	mustExec("INSERT INTO sites (id, household_id, name, timezone, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		"site-1", "hh-1", "Test Site", "UTC", now, now)
	mustExec("INSERT INTO rooms (id, site_id, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		"room-1", "site-1", "Living Room", now, now)

	svc := NewService(
		NewSQLiteRepository(db.DB),
		topology.NewSQLiteRepository(db.DB),
		logging.Default(),
	)
	return svc, db
}

func TestRegisterDevices_StoresTypeAndDomain(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	result, err := svc.RegisterDevices(ctx, "hh-1", "site-1", []DeviceRow{
		{DeviceKey: "living.light", Name: "Living Light", Type: "light", Domain: "light"},
	})
	if err != nil {
		t.Fatalf("RegisterDevices() error = %v", err)
	}
	if result.Upserted != 1 {
		t.Fatalf("Upserted = %d, want 1", result.Upserted)
	}

	device, err := svc.repo.GetByKey(ctx, "hh-1", "living.light")
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}
	if device.Type != classify.TypeLight {
		t.Errorf("Type = %q, want light", device.Type)
	}
	if device.Domain != "light" {
		t.Errorf("Domain = %q, want light", device.Domain)
	}
}

func TestRegisterDevices_Idempotent(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	batch := []DeviceRow{
		{
			DeviceKey: "living.light", Name: "Living Light", Type: "light",
			Entities: []EntityRow{
				{EntityKey: "state", Domain: "light"},
				{EntityKey: "brightness", Domain: "light", Unit: "%"},
			},
		},
		{DeviceKey: "hall.trv", Name: "Hall Radiator", Domain: "climate"},
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.RegisterDevices(ctx, "hh-1", "site-1", batch); err != nil {
			t.Fatalf("RegisterDevices() pass %d error = %v", i+1, err)
		}
	}

	var deviceCount, entityCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM devices").Scan(&deviceCount); err != nil {
		t.Fatalf("counting devices: %v", err)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM device_entities").Scan(&entityCount); err != nil {
		t.Fatalf("counting entities: %v", err)
	}

	if deviceCount != 2 {
		t.Errorf("device count after replay = %d, want 2", deviceCount)
	}
	if entityCount != 2 {
		t.Errorf("entity count after replay = %d, want 2", entityCount)
	}
}

func TestRegisterDevices_PartialSuccess(t *testing.T) {
	svc, _ := setupService(t)

	result, err := svc.RegisterDevices(context.Background(), "hh-1", "site-1", []DeviceRow{
		{DeviceKey: "", Name: "No Key"},
		{DeviceKey: "good.device", Name: "Good Device", Type: "light"},
		{DeviceKey: "no.name", Name: ""},
	})
	if err != nil {
		t.Fatalf("RegisterDevices() error = %v", err)
	}

	if result.Upserted != 1 {
		t.Errorf("Upserted = %d, want 1", result.Upserted)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("row results = %d, want 3", len(result.Rows))
	}
	if result.Rows[0].OK || result.Rows[2].OK {
		t.Error("malformed rows should be rejected")
	}
	if !result.Rows[1].OK {
		t.Errorf("valid row rejected: %s", result.Rows[1].Error)
	}
}

func TestRegisterDevices_EntityCountSkipsBlankKeys(t *testing.T) {
	svc, _ := setupService(t)

	result, err := svc.RegisterDevices(context.Background(), "hh-1", "site-1", []DeviceRow{
		{
			DeviceKey: "living.light", Name: "Living Light", Type: "light",
			Entities: []EntityRow{
				{EntityKey: "state", Domain: "light"},
				{EntityKey: ""},
				{EntityKey: "brightness", Domain: "light", Unit: "%"},
			},
		},
	})
	if err != nil {
		t.Fatalf("RegisterDevices() error = %v", err)
	}

	if result.EntitiesUpserted != 2 {
		t.Errorf("EntitiesUpserted = %d, want 2 (blank entityKey skipped)", result.EntitiesUpserted)
	}
}

func TestRegisterDevices_UnknownSite(t *testing.T) {
	svc, _ := setupService(t)

	result, err := svc.RegisterDevices(context.Background(), "hh-1", "site-unknown", []DeviceRow{
		{DeviceKey: "d1", Name: "Device"},
	})
	if err != nil {
		t.Fatalf("RegisterDevices() error = %v", err)
	}
	if result.Rows[0].OK {
		t.Error("row against unknown site should be rejected")
	}
}

func TestRegisterDevices_RoomResolution(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	// Case-insensitive name lookup scoped to the household.
	if _, err := svc.RegisterDevices(ctx, "hh-1", "site-1", []DeviceRow{
		{DeviceKey: "d1", Name: "Lamp", Type: "light", RoomName: "living room"},
	}); err != nil {
		t.Fatalf("RegisterDevices() error = %v", err)
	}

	device, err := svc.repo.GetByKey(ctx, "hh-1", "d1")
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}
	if device.RoomID == nil || *device.RoomID != "room-1" {
		t.Errorf("RoomID = %v, want room-1", device.RoomID)
	}

	// An unresolvable room leaves the device unplaced, not rejected.
	result, err := svc.RegisterDevices(ctx, "hh-1", "site-1", []DeviceRow{
		{DeviceKey: "d2", Name: "Lamp 2", Type: "light", RoomName: "No Such Room"},
	})
	if err != nil {
		t.Fatalf("RegisterDevices() error = %v", err)
	}
	if !result.Rows[0].OK {
		t.Fatalf("row with unknown room rejected: %s", result.Rows[0].Error)
	}

	device, err = svc.repo.GetByKey(ctx, "hh-1", "d2")
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}
	if device.RoomID != nil {
		t.Errorf("RoomID = %v, want nil (unplaced)", *device.RoomID)
	}
}

func TestRegisterDevices_ClassifiesWhenTypeMissing(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.RegisterDevices(ctx, "hh-1", "site-1", []DeviceRow{
		{
			DeviceKey: "trv.bedroom", Name: "Bedroom Radiator",
			Entities: []EntityRow{{EntityKey: "mode", HAEntityID: "climate.bedroom_trv"}},
		},
	}); err != nil {
		t.Fatalf("RegisterDevices() error = %v", err)
	}

	device, err := svc.repo.GetByKey(ctx, "hh-1", "trv.bedroom")
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}
	if device.Type != classify.TypeThermostat {
		t.Errorf("inferred Type = %q, want thermostat", device.Type)
	}
	if device.Domain != "climate" {
		t.Errorf("inferred Domain = %q, want climate", device.Domain)
	}
}

func TestRegisterEntities_BeforeDevice(t *testing.T) {
	svc, db := setupService(t)

	// Entities may precede their parent device.
	upserted, err := svc.RegisterEntities(context.Background(), "site-1", []EntityRow{
		{DeviceKey: "future.device", EntityKey: "temperature", Unit: "°C"},
		{DeviceKey: "future.device", EntityKey: ""},
	})
	if err != nil {
		t.Fatalf("RegisterEntities() error = %v", err)
	}
	if upserted != 1 {
		t.Errorf("upserted = %d, want 1 (blank entityKey skipped)", upserted)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM device_entities WHERE device_key = 'future.device'").Scan(&count); err != nil {
		t.Fatalf("counting entities: %v", err)
	}
	if count != 1 {
		t.Errorf("entity count = %d, want 1", count)
	}
}

func TestPurge(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	if _, err := svc.RegisterDevices(ctx, "hh-1", "site-1", []DeviceRow{
		{DeviceKey: "keep.one", Name: "Keeper", Type: "light"},
		{DeviceKey: "drop.one", Name: "Dropper", Type: "light"},
		{DeviceKey: "drop.two", Name: "Dropper 2", Type: "light"},
	}); err != nil {
		t.Fatalf("RegisterDevices() error = %v", err)
	}

	deleted, err := svc.Purge(ctx, "site-1", []string{"keep.one"})
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM devices WHERE site_id = 'site-1'").Scan(&count); err != nil {
		t.Fatalf("counting devices: %v", err)
	}
	if count != 1 {
		t.Errorf("surviving devices = %d, want 1", count)
	}
}

func TestPurge_UnknownSite(t *testing.T) {
	svc, _ := setupService(t)

	if _, err := svc.Purge(context.Background(), "site-unknown", nil); err == nil {
		t.Error("Purge() against unknown site should fail")
	}
}
