package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Domain errors
var (
	ErrConnectionNotReady = errors.New("connection has not completed initialization")
	ErrJournalNotLinked   = errors.New("journal is not linked to this connection")
)

// StatementLine is one imported bank transaction attached to a journal.
// TrnRefNo is the bank's reference number and the sole dedup key: a line
// whose reference already exists is never written again, whatever else
// changed.
type StatementLine struct {
	ID                  string          `json:"id"`
	ConnectionID        string          `json:"connectionId"`
	JournalID           string          `json:"journalId"`
	TrnRefNo            string          `json:"trnRefNo"`
	Date                time.Time       `json:"date"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	PaymentRef          string          `json:"paymentRef"`
	CounterpartyAccount string          `json:"counterpartyAccount"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// StatementStore persists imported statement lines. Implemented in the
// infrastructure layer.
type StatementStore interface {
	// ExistingRefs reports which of the given reference numbers are already
	// stored, as a set.
	ExistingRefs(ctx context.Context, refs []string) (map[string]struct{}, error)

	// InsertBatch stores the lines, silently skipping any whose reference
	// number already exists, and returns how many were actually written.
	InsertBatch(ctx context.Context, lines []*StatementLine) (int, error)

	// ListByJournal returns stored lines for one journal, newest first.
	ListByJournal(ctx context.Context, journalID string, limit int) ([]*StatementLine, error)
}

// Result summarizes one sync pass over a connection.
type Result struct {
	ConnectionID   string    `json:"connectionId"`
	Accounts       int       `json:"accounts"`
	Found          int       `json:"found"`
	Imported       int       `json:"imported"`
	Duplicates     int       `json:"duplicates"`
	ParseFailures  int       `json:"parseFailures"`
	HistorySkipped int       `json:"historySkipped"`
	LatestDate     time.Time `json:"latestDate"`
}

// DiscoveryResult summarizes one account discovery run.
type DiscoveryResult struct {
	ConnectionID  string   `json:"connectionId"`
	AccountsFound int      `json:"accountsFound"`
	Linked        int      `json:"linked"`
	AlreadyLinked int      `json:"alreadyLinked"`
	Pending       []string `json:"pending"` // labels of remote accounts with no matching journal
}
