package command

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence operations for the command queue.
type Repository interface {
	// Create inserts a new command in the queued state.
	Create(ctx context.Context, cmd *Command) error

	// GetByID retrieves a command by id.
	// Returns ErrCommandNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Command, error)

	// SelectQueued atomically selects up to limit queued commands for the
	// edge in FIFO creation order and flips them to sent. The select and
	// transition are one transaction so concurrent pollers never
	// double-fetch a command.
	SelectQueued(ctx context.Context, edgeNodeID string, limit int) ([]Command, error)

	// MarkSent transitions a command to sent and records the send time.
	MarkSent(ctx context.Context, id string) error

	// MarkQueued returns a command to queued after a failed push attempt,
	// recording the error text. Only non-terminal commands transition.
	MarkQueued(ctx context.Context, id, errText string) error

	// Finalize moves a command to a terminal state with ack time. It only
	// transitions non-terminal commands; an attempt against a terminal
	// command returns ErrAlreadyFinal without mutating the row.
	Finalize(ctx context.Context, id string, status Status, errText string) (*Command, error)

	// CreateControl inserts a device-control audit row.
	CreateControl(ctx context.Context, ctrl *Control) error

	// UpdateControl records the push outcome on an audit row.
	UpdateControl(ctx context.Context, id, edgeCommandID string, pushed bool, result string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed command repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const commandColumns = `id, edge_node_id, site_id, payload, status, error, created_at, sent_at, acked_at, updated_at`

// Create inserts a new command in the queued state.
func (r *SQLiteRepository) Create(ctx context.Context, cmd *Command) error {
	now := time.Now().UTC()
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	cmd.Status = StatusQueued
	cmd.CreatedAt = now
	cmd.UpdatedAt = now
	if len(cmd.Payload) == 0 {
		cmd.Payload = json.RawMessage("{}")
	}

	// Nanosecond precision keeps FIFO order stable for commands created
	// within the same second.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO edge_commands (id, edge_node_id, site_id, payload, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, '', ?, ?)`,
		cmd.ID, cmd.EdgeNodeID, cmd.SiteID, string(cmd.Payload), string(cmd.Status),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting command: %w", err)
	}
	return nil
}

// GetByID retrieves a command by id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Command, error) {
	query := `SELECT ` + commandColumns + ` FROM edge_commands WHERE id = ?`

	cmd, err := scanCommand(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommandNotFound
		}
		return nil, fmt.Errorf("querying command: %w", err)
	}
	return cmd, nil
}

// SelectQueued atomically fetches and transitions queued commands.
func (r *SQLiteRepository) SelectQueued(ctx context.Context, edgeNodeID string, limit int) ([]Command, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	query := `
		SELECT ` + commandColumns + `
		FROM edge_commands
		WHERE edge_node_id = ? AND status = 'queued'
		ORDER BY created_at, id
		LIMIT ?`

	rows, err := tx.QueryContext(ctx, query, edgeNodeID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying queued commands: %w", err)
	}

	var commands []Command
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning command: %w", err)
		}
		commands = append(commands, *cmd)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating commands: %w", err)
	}
	rows.Close()

	if len(commands) == 0 {
		return nil, tx.Commit()
	}

	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339)

	ids := make([]any, 0, len(commands)+2)
	ids = append(ids, nowStr, nowStr)
	placeholders := make([]string, len(commands))
	for i := range commands {
		placeholders[i] = "?"
		ids = append(ids, commands[i].ID)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE edge_commands
		SET status = 'sent', sent_at = ?, updated_at = ?
		WHERE id IN (`+strings.Join(placeholders, ",")+`) AND status = 'queued'`,
		ids...,
	)
	if err != nil {
		return nil, fmt.Errorf("transitioning commands to sent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing poll: %w", err)
	}

	for i := range commands {
		commands[i].Status = StatusSent
		commands[i].SentAt = &now
		commands[i].UpdatedAt = now
	}
	return commands, nil
}

// MarkSent transitions a command to sent and records the send time.
func (r *SQLiteRepository) MarkSent(ctx context.Context, id string) error {
	nowStr := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx, `
		UPDATE edge_commands
		SET status = 'sent', sent_at = ?, error = '', updated_at = ?
		WHERE id = ? AND status IN ('queued', 'sent')`,
		nowStr, nowStr, id,
	)
	if err != nil {
		return fmt.Errorf("marking command sent: %w", err)
	}
	return checkAffected(result)
}

// MarkQueued returns a command to queued after a failed push attempt.
func (r *SQLiteRepository) MarkQueued(ctx context.Context, id, errText string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE edge_commands
		SET status = 'queued', error = ?, updated_at = ?
		WHERE id = ? AND status IN ('queued', 'sent')`,
		errText, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("requeueing command: %w", err)
	}
	return checkAffected(result)
}

// Finalize moves a command to a terminal state with ack time.
func (r *SQLiteRepository) Finalize(ctx context.Context, id string, status Status, errText string) (*Command, error) {
	nowStr := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx, `
		UPDATE edge_commands
		SET status = ?, error = ?, acked_at = ?, updated_at = ?
		WHERE id = ? AND status IN ('queued', 'sent')`,
		string(status), errText, nowStr, nowStr, id,
	)
	if err != nil {
		return nil, fmt.Errorf("finalizing command: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}

	cmd, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// The command exists but was already terminal.
		return cmd, ErrAlreadyFinal
	}
	return cmd, nil
}

// CreateControl inserts a device-control audit row.
func (r *SQLiteRepository) CreateControl(ctx context.Context, ctrl *Control) error {
	if ctrl.ID == "" {
		ctrl.ID = uuid.NewString()
	}
	ctrl.CreatedAt = time.Now().UTC()
	if ctrl.Payload == "" {
		ctrl.Payload = "{}"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_controls (id, device_id, user_id, command, payload, edge_command_id, pushed, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ctrl.ID, ctrl.DeviceID, nullableStr(ctrl.UserID), ctrl.Command, ctrl.Payload,
		nullableStr(ctrl.EdgeCommandID), boolToInt(ctrl.Pushed), ctrl.Result,
		ctrl.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting device control: %w", err)
	}
	return nil
}

// UpdateControl records the push outcome on an audit row.
func (r *SQLiteRepository) UpdateControl(ctx context.Context, id, edgeCommandID string, pushed bool, result string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE device_controls SET edge_command_id = ?, pushed = ?, result = ? WHERE id = ?`,
		nullableStr(edgeCommandID), boolToInt(pushed), result, id,
	)
	if err != nil {
		return fmt.Errorf("updating device control: %w", err)
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommand(row rowScanner) (*Command, error) {
	var cmd Command
	var payload, status string
	var sentAt, ackedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&cmd.ID, &cmd.EdgeNodeID, &cmd.SiteID, &payload, &status,
		&cmd.Error, &createdAt, &sentAt, &ackedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	cmd.Payload = json.RawMessage(payload)
	cmd.Status = Status(status)
	cmd.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	cmd.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	if sentAt.Valid {
		if t, err := time.Parse(time.RFC3339, sentAt.String); err == nil {
			cmd.SentAt = &t
		}
	}
	if ackedAt.Valid {
		if t, err := time.Parse(time.RFC3339, ackedAt.String); err == nil {
			cmd.AckedAt = &t
		}
	}
	return &cmd, nil
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCommandNotFound
	}
	return nil
}

func nullableStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
