package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"banksync/internal/domain/syncer"
)

// StatementRepository implements the syncer.StatementStore interface for
// PostgreSQL. trn_ref_no carries a UNIQUE constraint; it is the dedup key
// for the whole import pipeline.
type StatementRepository struct {
	db *DB
}

// NewStatementRepository creates a new PostgreSQL statement repository
func NewStatementRepository(db *DB) *StatementRepository {
	return &StatementRepository{db: db}
}

// ExistingRefs returns the subset of refs already stored, as a set
func (r *StatementRepository) ExistingRefs(ctx context.Context, refs []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(refs))
	if len(refs) == 0 {
		return existing, nil
	}

	query := `SELECT trn_ref_no FROM statement_lines WHERE trn_ref_no = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(refs))
	if err != nil {
		return nil, fmt.Errorf("failed to query existing references: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("failed to scan reference: %w", err)
		}
		existing[ref] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate references: %w", err)
	}
	return existing, nil
}

// InsertBatch stores the lines inside one transaction, skipping any whose
// reference number raced in since the caller's ExistingRefs check. Returns
// how many rows were actually written.
func (r *StatementRepository) InsertBatch(ctx context.Context, lines []*syncer.StatementLine) (int, error) {
	if len(lines) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO statement_lines (id, connection_id, journal_id, trn_ref_no, trn_date, amount, currency, payment_ref, counterparty_account)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (trn_ref_no) DO NOTHING
	`

	inserted := 0
	for _, line := range lines {
		result, err := tx.ExecContext(
			ctx, query,
			line.ID, line.ConnectionID, line.JournalID, line.TrnRefNo,
			line.Date, line.Amount, line.Currency, line.PaymentRef, line.CounterpartyAccount,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert statement line %s: %w", line.TrnRefNo, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to check affected rows: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit statement lines: %w", err)
	}
	return inserted, nil
}

// ListByJournal returns stored lines for one journal, newest first
func (r *StatementRepository) ListByJournal(ctx context.Context, journalID string, limit int) ([]*syncer.StatementLine, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, connection_id, journal_id, trn_ref_no, trn_date, amount, currency, payment_ref, counterparty_account, created_at
		FROM statement_lines
		WHERE journal_id = $1
		ORDER BY trn_date DESC, created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, journalID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list statement lines: %w", err)
	}
	defer rows.Close()

	var lines []*syncer.StatementLine
	for rows.Next() {
		var line syncer.StatementLine
		err := rows.Scan(
			&line.ID, &line.ConnectionID, &line.JournalID, &line.TrnRefNo,
			&line.Date, &line.Amount, &line.Currency, &line.PaymentRef,
			&line.CounterpartyAccount, &line.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan statement line: %w", err)
		}
		lines = append(lines, &line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate statement lines: %w", err)
	}
	return lines, nil
}
