package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"banksync/internal/domain/journal"
	"banksync/internal/domain/syncer"
)

// JournalHandler exposes ledger journals and their imported statement lines
type JournalHandler struct {
	journals journal.Repository
	store    syncer.StatementStore
}

// NewJournalHandler creates a new journal handler
func NewJournalHandler(journals journal.Repository, store syncer.StatementStore) *JournalHandler {
	return &JournalHandler{journals: journals, store: store}
}

// HandleListJournals returns all ledger journals
func (h *JournalHandler) HandleListJournals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	journals, err := h.journals.ListJournals(r.Context())
	if err != nil {
		log.Printf("Error listing journals: %v", err)
		http.Error(w, "Failed to list journals", http.StatusInternalServerError)
		return
	}

	if journals == nil {
		journals = []*journal.Journal{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(journals)
}

// HandleJournalLines returns the imported statement lines of one journal,
// newest first. ?limit caps the page (default 100).
func (h *JournalHandler) HandleJournalLines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	journalID := r.PathValue("id")
	if _, err := h.journals.GetJournal(r.Context(), journalID); err != nil {
		if errors.Is(err, journal.ErrJournalNotFound) {
			http.Error(w, "Journal not found", http.StatusNotFound)
			return
		}
		log.Printf("Error getting journal %s: %v", journalID, err)
		http.Error(w, "Failed to get journal", http.StatusInternalServerError)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	lines, err := h.store.ListByJournal(r.Context(), journalID, limit)
	if err != nil {
		log.Printf("Error listing lines for journal %s: %v", journalID, err)
		http.Error(w, "Failed to list statement lines", http.StatusInternalServerError)
		return
	}

	if lines == nil {
		lines = []*syncer.StatementLine{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lines)
}
