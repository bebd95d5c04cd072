package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"banksync/internal/domain/connection"
	"banksync/internal/infrastructure/crypto"
)

// ConnectionRepository implements the connection.Repository interface for
// PostgreSQL. Secrets are encrypted before they touch the database and
// decrypted on the way out, so a dump never exposes bank credentials.
type ConnectionRepository struct {
	db        *DB
	encryptor *crypto.Encryptor
}

// NewConnectionRepository creates a new PostgreSQL connection repository
func NewConnectionRepository(db *DB, encryptor *crypto.Encryptor) *ConnectionRepository {
	return &ConnectionRepository{db: db, encryptor: encryptor}
}

// Create registers a new connection in draft status
func (r *ConnectionRepository) Create(ctx context.Context, params connection.CreateParams) (*connection.Connection, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	encSecret, err := r.encryptor.Encrypt(params.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	query := `
		INSERT INTO connections (id, name, environment, username, secret, status, sync_history_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, name, environment, username, status, sync_history_from, created_at, updated_at
	`

	var conn connection.Connection
	err = r.db.QueryRowContext(
		ctx, query,
		uuid.NewString(), params.Name, params.Environment, params.Username,
		encSecret, connection.StatusDraft, params.SyncHistoryFrom,
	).Scan(
		&conn.ID, &conn.Name, &conn.Environment, &conn.Username,
		&conn.Status, &conn.SyncHistoryFrom, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	conn.Secret = params.Secret
	return &conn, nil
}

// GetByID retrieves a connection by its ID, with the secret decrypted
func (r *ConnectionRepository) GetByID(ctx context.Context, id string) (*connection.Connection, error) {
	query := `
		SELECT id, name, environment, username, secret, status, sync_history_from,
		       last_success_at, last_error, discovered_at, created_at, updated_at
		FROM connections
		WHERE id = $1
	`

	conn, err := r.scanConnection(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, connection.ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return conn, nil
}

// List retrieves all connections
func (r *ConnectionRepository) List(ctx context.Context) ([]*connection.Connection, error) {
	query := `
		SELECT id, name, environment, username, secret, status, sync_history_from,
		       last_success_at, last_error, discovered_at, created_at, updated_at
		FROM connections
		ORDER BY created_at DESC
	`
	return r.listConnections(ctx, query)
}

// ListSyncable retrieves connections eligible for a scheduled sync pass
func (r *ConnectionRepository) ListSyncable(ctx context.Context) ([]*connection.Connection, error) {
	query := `
		SELECT id, name, environment, username, secret, status, sync_history_from,
		       last_success_at, last_error, discovered_at, created_at, updated_at
		FROM connections
		WHERE status IN ($1, $2)
		ORDER BY created_at
	`
	return r.listConnections(ctx, query, connection.StatusConnected, connection.StatusError)
}

// UpdateStatus sets status and last error together
func (r *ConnectionRepository) UpdateStatus(ctx context.Context, id, status, lastError string) error {
	query := `
		UPDATE connections
		SET status = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, lastError)
	if err != nil {
		return fmt.Errorf("failed to update connection status: %w", err)
	}
	return r.requireRow(result)
}

// MarkDiscovered records that account discovery completed for this connection
func (r *ConnectionRepository) MarkDiscovered(ctx context.Context, id string) error {
	query := `
		UPDATE connections
		SET discovered_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND discovered_at IS NULL
	`

	// Re-running discovery is harmless; only the first completion timestamp
	// is kept, so zero affected rows is not an error here.
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark connection discovered: %w", err)
	}
	return nil
}

// AdvanceWatermark moves last_success_at forward, never backward. GREATEST
// makes the monotonicity hold even under concurrent writers.
func (r *ConnectionRepository) AdvanceWatermark(ctx context.Context, id string, to time.Time) error {
	query := `
		UPDATE connections
		SET last_success_at = GREATEST(COALESCE(last_success_at, 'epoch'::timestamptz), $2),
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, to)
	if err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}
	return r.requireRow(result)
}

// UpdateCredentials replaces the credential pair and resets the connection
// to draft so the next connect re-validates and re-discovers.
func (r *ConnectionRepository) UpdateCredentials(ctx context.Context, id, username, secret string) error {
	encSecret, err := r.encryptor.Encrypt(secret)
	if err != nil {
		return fmt.Errorf("failed to encrypt secret: %w", err)
	}

	query := `
		UPDATE connections
		SET username = $2, secret = $3, status = $4, last_error = '', updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, username, encSecret, connection.StatusDraft)
	if err != nil {
		return fmt.Errorf("failed to update credentials: %w", err)
	}
	return r.requireRow(result)
}

// Delete removes a connection
func (r *ConnectionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return r.requireRow(result)
}

func (r *ConnectionRepository) listConnections(ctx context.Context, query string, args ...any) ([]*connection.Connection, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var conns []*connection.Connection
	for rows.Next() {
		conn, err := r.scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate connections: %w", err)
	}
	return conns, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ConnectionRepository) scanConnection(row rowScanner) (*connection.Connection, error) {
	var conn connection.Connection
	var encSecret string
	var lastSuccessAt, discoveredAt sql.NullTime
	var lastError sql.NullString

	err := row.Scan(
		&conn.ID, &conn.Name, &conn.Environment, &conn.Username, &encSecret,
		&conn.Status, &conn.SyncHistoryFrom, &lastSuccessAt, &lastError,
		&discoveredAt, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	conn.Secret, err = r.encryptor.Decrypt(encSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secret: %w", err)
	}

	if lastSuccessAt.Valid {
		conn.LastSuccessAt = &lastSuccessAt.Time
	}
	if lastError.Valid {
		conn.LastError = lastError.String
	}
	if discoveredAt.Valid {
		conn.DiscoveredAt = &discoveredAt.Time
	}
	return &conn, nil
}

func (r *ConnectionRepository) requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return connection.ErrConnectionNotFound
	}
	return nil
}
