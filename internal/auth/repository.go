package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence operations for user accounts and
// household memberships.
type Repository interface {
	// CreateUser stores a new user account.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByEmail retrieves a user by email address.
	// Returns ErrUserNotFound if no account exists.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserByID retrieves a user by id.
	// Returns ErrUserNotFound if no account exists.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// PrimaryMembership returns the user's oldest household membership.
	// Returns ErrNoMembership if the user belongs to no household.
	PrimaryMembership(ctx context.Context, userID string) (*Membership, error)
}

// Membership links a user to a household with a role.
type Membership struct {
	HouseholdID string `json:"householdId"`
	UserID      string `json:"userId"`
	Role        Role   `json:"role"`
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed user repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateUser stores a new user account. An id is generated when the
// caller leaves it empty.
func (r *SQLiteRepository) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339)

	query := `
		INSERT INTO users (id, email, password_hash, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.DisplayName, nowStr, nowStr,
	)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetUserByEmail retrieves a user by email address.
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, display_name, created_at, updated_at
		FROM users WHERE email = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by id.
func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, email, password_hash, display_name, created_at, updated_at
		FROM users WHERE id = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return user, nil
}

// PrimaryMembership returns the user's oldest household membership.
// Users can belong to several households; the oldest one is the default
// tenant scope for a fresh access token.
func (r *SQLiteRepository) PrimaryMembership(ctx context.Context, userID string) (*Membership, error) {
	query := `
		SELECT household_id, user_id, role
		FROM household_members WHERE user_id = ?
		ORDER BY created_at LIMIT 1`

	var m Membership
	var role string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&m.HouseholdID, &m.UserID, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoMembership
		}
		return nil, fmt.Errorf("querying membership: %w", err)
	}

	m.Role = Role(role)
	if !IsValidRole(m.Role) {
		m.Role = RoleMember
	}
	return &m, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var user User
	var createdAt, updatedAt string

	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash,
		&user.DisplayName, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	user.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return &user, nil
}
