package syncer

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are tried in order. The bank's statement feed normally uses
// the English month-name form ("Jan 2, 2026") but has been observed to flip
// to ISO and day-first forms between releases, so all three are accepted.
// Order matters: a value like "03-04-2026" must resolve day-first.
var dateLayouts = []string{
	"Jan 2, 2006",
	"2006-01-02",
	"02-01-2006",
}

// ParseError reports a statement date that matched none of the accepted
// layouts. The record carrying it is skipped, not fatal to the sync pass.
type ParseError struct {
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable statement date %q", e.Value)
}

// ParseStatementDate parses a transaction date from the bank's statement
// feed, trying each accepted layout in order.
func ParseStatementDate(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ParseError{Value: value}
}
