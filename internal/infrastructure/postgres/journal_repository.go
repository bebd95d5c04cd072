package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"banksync/internal/domain/journal"
)

// JournalRepository implements the journal.Repository interface for
// PostgreSQL. Journals are owned by the ledger and read-only here; links
// are owned by the connector.
type JournalRepository struct {
	db *DB
}

// NewJournalRepository creates a new PostgreSQL journal repository
func NewJournalRepository(db *DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// ListJournals retrieves all ledger journals
func (r *JournalRepository) ListJournals(ctx context.Context) ([]*journal.Journal, error) {
	query := `
		SELECT id, name, iban, currency, created_at
		FROM journals
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list journals: %w", err)
	}
	defer rows.Close()

	var journals []*journal.Journal
	for rows.Next() {
		var j journal.Journal
		var iban sql.NullString
		if err := rows.Scan(&j.ID, &j.Name, &iban, &j.Currency, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal: %w", err)
		}
		if iban.Valid {
			j.IBAN = iban.String
		}
		journals = append(journals, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journals: %w", err)
	}
	return journals, nil
}

// GetJournal retrieves a journal by its ID
func (r *JournalRepository) GetJournal(ctx context.Context, id string) (*journal.Journal, error) {
	query := `
		SELECT id, name, iban, currency, created_at
		FROM journals
		WHERE id = $1
	`

	var j journal.Journal
	var iban sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(&j.ID, &j.Name, &iban, &j.Currency, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, journal.ErrJournalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get journal: %w", err)
	}
	if iban.Valid {
		j.IBAN = iban.String
	}
	return &j, nil
}

// CreateLink attaches a remote account (by canonical IBAN) to a journal
func (r *JournalRepository) CreateLink(ctx context.Context, params journal.CreateLinkParams) (*journal.Link, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO journal_links (id, connection_id, iban, journal_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (connection_id, iban) DO UPDATE SET journal_id = EXCLUDED.journal_id
		RETURNING id, connection_id, iban, journal_id, created_at
	`

	var link journal.Link
	err := r.db.QueryRowContext(
		ctx, query,
		uuid.NewString(), params.ConnectionID, params.IBAN, params.JournalID,
	).Scan(&link.ID, &link.ConnectionID, &link.IBAN, &link.JournalID, &link.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal link: %w", err)
	}
	return &link, nil
}

// GetLink retrieves the link for a connection + canonical IBAN pair
func (r *JournalRepository) GetLink(ctx context.Context, connectionID, iban string) (*journal.Link, error) {
	query := `
		SELECT id, connection_id, iban, journal_id, created_at
		FROM journal_links
		WHERE connection_id = $1 AND iban = $2
	`

	var link journal.Link
	err := r.db.QueryRowContext(ctx, query, connectionID, iban).Scan(
		&link.ID, &link.ConnectionID, &link.IBAN, &link.JournalID, &link.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, journal.ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get journal link: %w", err)
	}
	return &link, nil
}

// ListLinks retrieves all links for a connection
func (r *JournalRepository) ListLinks(ctx context.Context, connectionID string) ([]*journal.Link, error) {
	query := `
		SELECT id, connection_id, iban, journal_id, created_at
		FROM journal_links
		WHERE connection_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal links: %w", err)
	}
	defer rows.Close()

	var links []*journal.Link
	for rows.Next() {
		var link journal.Link
		if err := rows.Scan(&link.ID, &link.ConnectionID, &link.IBAN, &link.JournalID, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal link: %w", err)
		}
		links = append(links, &link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal links: %w", err)
	}
	return links, nil
}

// DeleteLinks removes every link for a connection (used on connection reset)
func (r *JournalRepository) DeleteLinks(ctx context.Context, connectionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM journal_links WHERE connection_id = $1`, connectionID); err != nil {
		return fmt.Errorf("failed to delete journal links: %w", err)
	}
	return nil
}
