package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/config"
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

	svc := NewService(NewSQLiteRepository(db.DB), config.JWTConfig{
		Secret:         "test-jwt-secret",
		AccessTokenTTL: 15,
	}, logging.Default())
	return svc, db
}

func seedMember(t *testing.T, db *database.DB, userID, householdID, role string) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.Exec(
		"INSERT INTO households (id, name, created_at, updated_at) VALUES (?, 'H', ?, ?)",
		householdID, now, now,
	); err != nil {
		t.Fatalf("seeding household: %v", err)
	}
	if _, err := db.Exec(
		"INSERT INTO household_members (household_id, user_id, role, created_at) VALUES (?, ?, ?, ?)",
		householdID, userID, role, now,
	); err != nil {
		t.Fatalf("seeding membership: %v", err)
	}
}

func TestLogin_Success(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Alice@Example.com", "hunter2hunter2", "Alice")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("Register() email = %q, want lowercased", user.Email)
	}
	seedMember(t, db, user.ID, "hh-1", "admin")

	result, err := svc.Login(ctx, "alice@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Token == "" {
		t.Error("Login() returned empty token")
	}
	if result.HouseholdID != "hh-1" || result.Role != RoleAdmin {
		t.Errorf("Login() scope = %s/%s, want hh-1/admin", result.HouseholdID, result.Role)
	}

	claims, err := ParseToken(result.Token, "test-jwt-secret")
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != user.ID || claims.HouseholdID != "hh-1" {
		t.Errorf("claims = %s/%s, want %s/hh-1", claims.Subject, claims.HouseholdID, user.ID)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "bob@example.com", "correct-password", "Bob")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	seedMember(t, db, user.ID, "hh-1", "member")

	if _, err := svc.Login(ctx, "bob@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_NoMembership(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "carol@example.com", "some-password", "Carol"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Registered but not yet added to a household.
	if _, err := svc.Login(ctx, "carol@example.com", "some-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_InvalidRoleCoercedToMember(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "dave@example.com", "some-password", "Dave")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	seedMember(t, db, user.ID, "hh-1", "superuser")

	result, err := svc.Login(ctx, "dave@example.com", "some-password")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Role != RoleMember {
		t.Errorf("Login() role = %s, want member", result.Role)
	}
}
