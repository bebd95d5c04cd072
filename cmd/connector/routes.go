package main

import (
	"net/http"

	httphandlers "banksync/internal/interfaces/http"
	"banksync/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", httphandlers.HandleHealth)

	// Connection lifecycle
	mux.HandleFunc("/api/connections", deps.ConnectionHandler.HandleConnections)
	mux.HandleFunc("/api/connections/{id}", deps.ConnectionHandler.HandleConnectionByID)
	mux.HandleFunc("/api/connections/{id}/connect", deps.ConnectionHandler.HandleConnect)
	mux.HandleFunc("/api/connections/{id}/sync", deps.ConnectionHandler.HandleSync)
	mux.HandleFunc("/api/connections/{id}/reset", deps.ConnectionHandler.HandleReset)
	mux.HandleFunc("/api/connections/{id}/links", deps.ConnectionHandler.HandleConnectionLinks)

	// Journals and imported lines
	mux.HandleFunc("/api/journals", deps.JournalHandler.HandleListJournals)
	mux.HandleFunc("/api/journals/{id}/lines", deps.JournalHandler.HandleJournalLines)

	// Admin alerts
	mux.HandleFunc("/api/alerts", deps.AlertHandler.HandleAlerts)
	mux.HandleFunc("/api/alerts/{id}/ack", deps.AlertHandler.HandleAcknowledge)
	mux.HandleFunc("/api/devices", deps.AlertHandler.HandleRegisterDevice)

	// Apply global middleware
	handler := middleware.Logging(middleware.Telemetry(middleware.Tracing(mux)))
	return middleware.Recovery(handler)
}
