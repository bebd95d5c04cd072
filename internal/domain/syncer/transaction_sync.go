package syncer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"banksync/internal/domain/connection"
	"banksync/internal/domain/journal"
	"banksync/internal/infrastructure/birbank"
)

// TransactionSync pulls statement pages for every linked account of a
// connection and imports the lines the store has not seen yet.
type TransactionSync struct {
	client birbank.ClientInterface
	tokens *connection.TokenManager
	store  StatementStore
	now    func() time.Time
}

// NewTransactionSync creates a new transaction sync service
func NewTransactionSync(client birbank.ClientInterface, tokens *connection.TokenManager, store StatementStore) *TransactionSync {
	return &TransactionSync{client: client, tokens: tokens, store: store, now: time.Now}
}

// SyncLinks runs one pass over the given links. The fetch window opens at
// the connection's watermark (or its history floor on the first pass) and
// closes today. Records dated before the history floor are counted and
// skipped; so are records whose date cannot be parsed. Errors from the bank
// abort the pass so the caller can classify and retry it whole.
func (s *TransactionSync) SyncLinks(ctx context.Context, conn *connection.Connection, links []*journal.Link) (*Result, error) {
	from := conn.SyncHistoryFrom
	if conn.LastSuccessAt != nil && conn.LastSuccessAt.After(from) {
		from = *conn.LastSuccessAt
	}
	to := s.now()

	result := &Result{ConnectionID: conn.ID, Accounts: len(links)}
	for _, link := range links {
		if err := s.syncLink(ctx, conn, link, from, to, result); err != nil {
			return nil, err
		}
	}

	log.Printf("Connection %s: sync found=%d imported=%d duplicates=%d parse_failures=%d history_skipped=%d",
		conn.ID, result.Found, result.Imported, result.Duplicates, result.ParseFailures, result.HistorySkipped)
	return result, nil
}

func (s *TransactionSync) syncLink(ctx context.Context, conn *connection.Connection, link *journal.Link, from, to time.Time, result *Result) error {
	for page := 1; ; page++ {
		token, err := s.tokens.ValidToken(ctx, conn)
		if err != nil {
			return err
		}

		pageData, err := s.client.AccountStatement(ctx, conn.Environment, token, birbank.StatementQuery{
			AccountNumber: link.IBAN,
			From:          from,
			To:            to,
			Page:          page,
		})
		if err != nil {
			return err
		}

		if err := s.importEntries(ctx, conn, link, pageData.Entries, result); err != nil {
			return err
		}

		if !pageData.MorePages || len(pageData.Entries) == 0 {
			return nil
		}
	}
}

// importEntries converts one page of raw entries into statement lines and
// stores the new ones. Dedup happens twice: against the store for refs seen
// in earlier passes, and within the batch itself because the bank sometimes
// repeats an entry across page boundaries.
func (s *TransactionSync) importEntries(ctx context.Context, conn *connection.Connection, link *journal.Link, entries []birbank.StatementEntry, result *Result) error {
	if len(entries) == 0 {
		return nil
	}
	result.Found += len(entries)

	refs := make([]string, 0, len(entries))
	for i := range entries {
		if entries[i].TrnRefNo != "" {
			refs = append(refs, entries[i].TrnRefNo)
		}
	}

	existing, err := s.store.ExistingRefs(ctx, refs)
	if err != nil {
		return fmt.Errorf("failed to check existing references: %w", err)
	}

	seen := make(map[string]struct{}, len(entries))
	var lines []*StatementLine
	for i := range entries {
		entry := &entries[i]

		if entry.TrnRefNo == "" {
			result.ParseFailures++
			log.Printf("Connection %s: skipping statement entry with no reference number (date=%q)", conn.ID, entry.TrnDt)
			continue
		}
		if _, dup := existing[entry.TrnRefNo]; dup {
			result.Duplicates++
			continue
		}
		if _, dup := seen[entry.TrnRefNo]; dup {
			result.Duplicates++
			continue
		}

		date, err := ParseStatementDate(entry.TrnDt)
		if err != nil {
			result.ParseFailures++
			log.Printf("Connection %s: skipping %s: %v", conn.ID, entry.TrnRefNo, err)
			continue
		}
		if date.Before(conn.SyncHistoryFrom) {
			result.HistorySkipped++
			continue
		}

		amount, err := entry.Amount()
		if err != nil {
			result.ParseFailures++
			log.Printf("Connection %s: skipping %s: %v", conn.ID, entry.TrnRefNo, err)
			continue
		}

		seen[entry.TrnRefNo] = struct{}{}
		lines = append(lines, &StatementLine{
			ID:                  uuid.NewString(),
			ConnectionID:        conn.ID,
			JournalID:           link.JournalID,
			TrnRefNo:            entry.TrnRefNo,
			Date:                date,
			Amount:              amount,
			Currency:            entry.Currency,
			PaymentRef:          entry.Reference(),
			CounterpartyAccount: entry.ContrAccount,
		})
		if date.After(result.LatestDate) {
			result.LatestDate = date
		}
	}

	if len(lines) == 0 {
		return nil
	}

	inserted, err := s.store.InsertBatch(ctx, lines)
	if err != nil {
		return fmt.Errorf("failed to store statement lines: %w", err)
	}
	result.Imported += inserted
	// A ref can land in the store between ExistingRefs and InsertBatch;
	// the store skips it and the difference counts as a duplicate.
	result.Duplicates += len(lines) - inserted
	return nil
}
