package journal

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

// Domain errors
var (
	ErrJournalNotFound = errors.New("journal not found")
	ErrLinkNotFound    = errors.New("journal link not found")
)

// Journal is the ledger's representation of a bank account. The ledger
// collaborator owns it; this connector only reads journals and attaches
// statement lines to them.
type Journal struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IBAN      string    `json:"iban"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"createdAt"`
}

// Link maps a connection + canonical IBAN to a local journal. A remote
// account without a link is "pending": transactions for it are not fetched
// until an operator links it.
type Link struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connectionId"`
	IBAN         string    `json:"iban"`
	JournalID    string    `json:"journalId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CreateLinkParams contains parameters for creating a journal link.
type CreateLinkParams struct {
	ConnectionID string
	IBAN         string // canonical form
	JournalID    string
}

func (p CreateLinkParams) Validate() error {
	if p.ConnectionID == "" {
		return errors.New("connection ID is required")
	}
	if p.IBAN == "" {
		return errors.New("IBAN is required")
	}
	if p.JournalID == "" {
		return errors.New("journal ID is required")
	}
	return nil
}

// CanonicalIBAN normalizes an IBAN for matching: uppercase with all
// whitespace removed. Leading zeros are preserved; IBANs are fixed-width
// and stripping zeros would corrupt them.
func CanonicalIBAN(iban string) string {
	var b strings.Builder
	b.Grow(len(iban))
	for _, r := range iban {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// PickLinkTarget chooses which journal to link when several share the same
// canonical IBAN. The tie-break is deterministic: earliest creation time,
// then smallest ID. Returns nil for an empty slice.
func PickLinkTarget(candidates []*Journal) *Journal {
	var best *Journal
	for _, j := range candidates {
		if best == nil {
			best = j
			continue
		}
		if j.CreatedAt.Before(best.CreatedAt) ||
			(j.CreatedAt.Equal(best.CreatedAt) && j.ID < best.ID) {
			best = j
		}
	}
	return best
}
