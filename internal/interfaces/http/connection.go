package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"banksync/internal/domain/connection"
	"banksync/internal/domain/journal"
	"banksync/internal/domain/syncer"
)

// SyncOrchestrator is the lifecycle surface the handlers drive.
// Satisfied by syncer.Orchestrator.
type SyncOrchestrator interface {
	Connect(ctx context.Context, connID string) (*syncer.DiscoveryResult, error)
	RunSync(ctx context.Context, connID string) (*syncer.Result, error)
	RunSyncForJournal(ctx context.Context, connID, journalID string) (*syncer.Result, error)
	Reset(ctx context.Context, connID, username, secret string) error
	Delete(ctx context.Context, connID string) error
}

// ConnectionHandler exposes bank connection management to the admin surface
type ConnectionHandler struct {
	connections        connection.Repository
	journals           journal.Repository
	orchestrator       SyncOrchestrator
	historyDefaultDays int
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(connections connection.Repository, journals journal.Repository, orchestrator SyncOrchestrator, historyDefaultDays int) *ConnectionHandler {
	return &ConnectionHandler{
		connections:        connections,
		journals:           journals,
		orchestrator:       orchestrator,
		historyDefaultDays: historyDefaultDays,
	}
}

// HTTP request/response types (transport layer concerns)
type CreateConnectionRequest struct {
	Name            string `json:"name"`
	Environment     string `json:"environment"`
	Username        string `json:"username"`
	Secret          string `json:"secret"`
	SyncHistoryFrom string `json:"syncHistoryFrom"` // YYYY-MM-DD, defaults to N days back
}

type ResetConnectionRequest struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

// HandleConnections handles the collection endpoint (POST create, GET list)
func (h *ConnectionHandler) HandleConnections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreate(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ConnectionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	historyFrom := time.Now().AddDate(0, 0, -h.historyDefaultDays)
	if req.SyncHistoryFrom != "" {
		parsed, err := time.Parse("2006-01-02", req.SyncHistoryFrom)
		if err != nil {
			http.Error(w, "syncHistoryFrom must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		historyFrom = parsed
	}

	conn, err := h.connections.Create(r.Context(), connection.CreateParams{
		Name:            req.Name,
		Environment:     req.Environment,
		Username:        req.Username,
		Secret:          req.Secret,
		SyncHistoryFrom: historyFrom,
	})
	if err != nil {
		if errors.Is(err, connection.ErrInvalidEnvironment) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Error creating connection: %v", err)
		http.Error(w, "Failed to create connection", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(conn)
}

func (h *ConnectionHandler) handleList(w http.ResponseWriter, r *http.Request) {
	conns, err := h.connections.List(r.Context())
	if err != nil {
		log.Printf("Error listing connections: %v", err)
		http.Error(w, "Failed to list connections", http.StatusInternalServerError)
		return
	}

	if conns == nil {
		conns = []*connection.Connection{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conns)
}

// HandleConnectionByID handles operations on a specific connection (GET and DELETE)
func (h *ConnectionHandler) HandleConnectionByID(w http.ResponseWriter, r *http.Request) {
	connID := r.PathValue("id")
	if connID == "" {
		http.Error(w, "Connection ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r, connID)
	case http.MethodDelete:
		h.handleDelete(w, r, connID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ConnectionHandler) handleGet(w http.ResponseWriter, r *http.Request, connID string) {
	conn, err := h.connections.GetByID(r.Context(), connID)
	if err != nil {
		if errors.Is(err, connection.ErrConnectionNotFound) {
			http.Error(w, "Connection not found", http.StatusNotFound)
			return
		}
		log.Printf("Error getting connection %s: %v", connID, err)
		http.Error(w, "Failed to get connection", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conn)
}

func (h *ConnectionHandler) handleDelete(w http.ResponseWriter, r *http.Request, connID string) {
	err := h.orchestrator.Delete(r.Context(), connID)
	if err != nil {
		switch {
		case errors.Is(err, connection.ErrConnectionNotFound):
			http.Error(w, "Connection not found", http.StatusNotFound)
		case errors.Is(err, connection.ErrSyncInProgress):
			http.Error(w, "Sync in progress", http.StatusConflict)
		default:
			log.Printf("Error deleting connection %s: %v", connID, err)
			http.Error(w, "Failed to delete connection", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleConnect validates credentials and runs account discovery
func (h *ConnectionHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	connID := r.PathValue("id")
	result, err := h.orchestrator.Connect(r.Context(), connID)
	if err != nil {
		h.writeLifecycleError(w, connID, "connect", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// HandleSync triggers a sync pass, optionally restricted to one journal via
// the ?journal= query parameter.
func (h *ConnectionHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	connID := r.PathValue("id")
	journalID := r.URL.Query().Get("journal")

	var result *syncer.Result
	var err error
	if journalID != "" {
		result, err = h.orchestrator.RunSyncForJournal(r.Context(), connID, journalID)
	} else {
		result, err = h.orchestrator.RunSync(r.Context(), connID)
	}
	if err != nil {
		h.writeLifecycleError(w, connID, "sync", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// HandleReset replaces credentials and returns the connection to draft
func (h *ConnectionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ResetConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Secret == "" {
		http.Error(w, "username and secret are required", http.StatusBadRequest)
		return
	}

	connID := r.PathValue("id")
	if err := h.orchestrator.Reset(r.Context(), connID, req.Username, req.Secret); err != nil {
		h.writeLifecycleError(w, connID, "reset", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleConnectionLinks lists the journal links discovered for a connection
func (h *ConnectionHandler) HandleConnectionLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	connID := r.PathValue("id")
	links, err := h.journals.ListLinks(r.Context(), connID)
	if err != nil {
		log.Printf("Error listing links for connection %s: %v", connID, err)
		http.Error(w, "Failed to list links", http.StatusInternalServerError)
		return
	}

	if links == nil {
		links = []*journal.Link{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(links)
}

// writeLifecycleError maps lifecycle errors to HTTP statuses. A failed pass
// is reported 502: the bank refused, not this service.
func (h *ConnectionHandler) writeLifecycleError(w http.ResponseWriter, connID, op string, err error) {
	switch {
	case errors.Is(err, connection.ErrConnectionNotFound):
		http.Error(w, "Connection not found", http.StatusNotFound)
	case errors.Is(err, connection.ErrSyncInProgress):
		http.Error(w, "Sync in progress", http.StatusConflict)
	case errors.Is(err, syncer.ErrConnectionNotReady):
		http.Error(w, "Connection must be connected first", http.StatusConflict)
	case errors.Is(err, syncer.ErrJournalNotLinked):
		http.Error(w, "Journal is not linked to this connection", http.StatusNotFound)
	default:
		log.Printf("Connection %s: %s failed: %v", connID, op, err)
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}
