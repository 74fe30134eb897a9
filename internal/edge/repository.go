package edge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines persistence operations for edge nodes.
type Repository interface {
	// Upsert creates or refreshes a node from a heartbeat or registration.
	// Supplied non-empty fields are merged; last_seen_at is always bumped.
	Upsert(ctx context.Context, node *Node) error

	// GetByID retrieves a node by id.
	// Returns ErrNodeNotFound if the node does not exist.
	GetByID(ctx context.Context, id string) (*Node, error)

	// ListBySite retrieves all nodes registered at a site.
	ListBySite(ctx context.Context, siteID string) ([]Node, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed edge node repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Upsert creates or refreshes a node. Empty incoming fields keep the
// stored value so a minimal heartbeat does not wipe the base url.
func (r *SQLiteRepository) Upsert(ctx context.Context, node *Node) error {
	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339)

	query := `
		INSERT INTO edge_nodes (id, site_id, name, base_url, version, last_seen_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			site_id = excluded.site_id,
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE edge_nodes.name END,
			base_url = CASE WHEN excluded.base_url != '' THEN excluded.base_url ELSE edge_nodes.base_url END,
			version = CASE WHEN excluded.version != '' THEN excluded.version ELSE edge_nodes.version END,
			last_seen_at = excluded.last_seen_at,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		node.ID, node.SiteID, node.Name, node.BaseURL, node.Version,
		nowStr, nowStr, nowStr,
	)
	if err != nil {
		return fmt.Errorf("upserting edge node: %w", err)
	}

	node.LastSeenAt = &now
	node.UpdatedAt = now
	return nil
}

// GetByID retrieves a node by id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Node, error) {
	query := `
		SELECT id, site_id, name, base_url, version, last_seen_at, created_at, updated_at
		FROM edge_nodes WHERE id = ?`

	node, err := scanNode(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("querying edge node: %w", err)
	}
	return node, nil
}

// ListBySite retrieves all nodes registered at a site.
func (r *SQLiteRepository) ListBySite(ctx context.Context, siteID string) ([]Node, error) {
	query := `
		SELECT id, site_id, name, base_url, version, last_seen_at, created_at, updated_at
		FROM edge_nodes WHERE site_id = ? ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("querying edge nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning edge node: %w", err)
		}
		nodes = append(nodes, *node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating edge nodes: %w", err)
	}
	return nodes, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*Node, error) {
	var node Node
	var lastSeen sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&node.ID, &node.SiteID, &node.Name, &node.BaseURL,
		&node.Version, &lastSeen, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if lastSeen.Valid {
		if t, err := time.Parse(time.RFC3339, lastSeen.String); err == nil {
			node.LastSeenAt = &t
		}
	}
	node.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	node.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return &node, nil
}
