package journal

import "context"

// Repository defines the interface for journal and link persistence.
// Journals themselves are owned by the ledger; links are owned here.
type Repository interface {
	ListJournals(ctx context.Context) ([]*Journal, error)
	GetJournal(ctx context.Context, id string) (*Journal, error)

	CreateLink(ctx context.Context, params CreateLinkParams) (*Link, error)
	GetLink(ctx context.Context, connectionID, iban string) (*Link, error)
	ListLinks(ctx context.Context, connectionID string) ([]*Link, error)
	DeleteLinks(ctx context.Context, connectionID string) error
}
