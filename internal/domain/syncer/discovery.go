package syncer

import (
	"context"
	"fmt"
	"log"

	"banksync/internal/domain/connection"
	"banksync/internal/domain/journal"
	"banksync/internal/infrastructure/birbank"
)

// DiscoveryService lists the remote accounts behind a connection and links
// each one to the local journal sharing its canonical IBAN. Accounts without
// a matching journal are reported as pending, never treated as failures; an
// operator links those by hand later.
type DiscoveryService struct {
	client   birbank.ClientInterface
	tokens   *connection.TokenManager
	journals journal.Repository
}

// NewDiscoveryService creates a new account discovery service
func NewDiscoveryService(client birbank.ClientInterface, tokens *connection.TokenManager, journals journal.Repository) *DiscoveryService {
	return &DiscoveryService{client: client, tokens: tokens, journals: journals}
}

// Discover fetches the connection's account list and auto-links by IBAN.
// Re-running is safe: accounts already linked are counted, not re-linked.
func (s *DiscoveryService) Discover(ctx context.Context, conn *connection.Connection) (*DiscoveryResult, error) {
	token, err := s.tokens.ValidToken(ctx, conn)
	if err != nil {
		return nil, err
	}

	accounts, err := s.client.ListAccounts(ctx, conn.Environment, token)
	if err != nil {
		return nil, err
	}

	candidates, err := s.journalsByIBAN(ctx)
	if err != nil {
		return nil, err
	}

	result := &DiscoveryResult{
		ConnectionID:  conn.ID,
		AccountsFound: len(accounts),
		Pending:       []string{},
	}

	for i := range accounts {
		acc := &accounts[i]
		iban := journal.CanonicalIBAN(acc.IBAN)
		if iban == "" {
			log.Printf("Connection %s: skipping remote account with empty IBAN (%s)", conn.ID, acc.Label())
			continue
		}

		existing, err := s.journals.GetLink(ctx, conn.ID, iban)
		if err != nil && err != journal.ErrLinkNotFound {
			return nil, fmt.Errorf("failed to check journal link: %w", err)
		}
		if existing != nil {
			result.AlreadyLinked++
			continue
		}

		target := journal.PickLinkTarget(candidates[iban])
		if target == nil {
			result.Pending = append(result.Pending, acc.Label())
			continue
		}

		_, err = s.journals.CreateLink(ctx, journal.CreateLinkParams{
			ConnectionID: conn.ID,
			IBAN:         iban,
			JournalID:    target.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to link account %s: %w", iban, err)
		}
		result.Linked++
		log.Printf("Connection %s: linked %s to journal %s (%s)", conn.ID, iban, target.ID, target.Name)
	}

	log.Printf("Connection %s: discovery found=%d linked=%d already=%d pending=%d",
		conn.ID, result.AccountsFound, result.Linked, result.AlreadyLinked, len(result.Pending))
	return result, nil
}

// journalsByIBAN indexes ledger journals by canonical IBAN. Several journals
// may share an IBAN; PickLinkTarget resolves the tie deterministically.
func (s *DiscoveryService) journalsByIBAN(ctx context.Context) (map[string][]*journal.Journal, error) {
	journals, err := s.journals.ListJournals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list journals: %w", err)
	}

	index := make(map[string][]*journal.Journal, len(journals))
	for _, j := range journals {
		iban := journal.CanonicalIBAN(j.IBAN)
		if iban == "" {
			continue
		}
		index[iban] = append(index[iban], j)
	}
	return index, nil
}
