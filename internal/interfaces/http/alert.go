package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"banksync/internal/domain/notification"
)

// AlertHandler exposes admin alerts and device registration
type AlertHandler struct {
	service *notification.Service
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(service *notification.Service) *AlertHandler {
	return &AlertHandler{service: service}
}

type RegisterDeviceRequest struct {
	Token string `json:"token"`
	Label string `json:"label"`
}

// AlertListResponse pairs the page with the total so the admin UI can
// render the open-alerts badge without a second request.
type AlertListResponse struct {
	Alerts []*notification.Alert `json:"alerts"`
	Total  int                   `json:"total"`
}

// HandleAlerts lists alerts. ?open=true restricts to unacknowledged ones;
// ?page and ?perPage control pagination.
func (h *AlertHandler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	openOnly := q.Get("open") == "true"
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))

	alerts, total, err := h.service.ListAlerts(r.Context(), openOnly, page, perPage)
	if err != nil {
		log.Printf("Error listing alerts: %v", err)
		http.Error(w, "Failed to list alerts", http.StatusInternalServerError)
		return
	}

	if alerts == nil {
		alerts = []*notification.Alert{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AlertListResponse{Alerts: alerts, Total: total})
}

// HandleAcknowledge closes an alert
func (h *AlertHandler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	alertID := r.PathValue("id")
	if err := h.service.Acknowledge(r.Context(), alertID); err != nil {
		if errors.Is(err, notification.ErrAlertNotFound) {
			http.Error(w, "Alert not found", http.StatusNotFound)
			return
		}
		log.Printf("Error acknowledging alert %s: %v", alertID, err)
		http.Error(w, "Failed to acknowledge alert", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRegisterDevice registers an admin device token for push alerts
func (h *AlertHandler) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	device, err := h.service.RegisterDevice(r.Context(), notification.RegisterDeviceParams{
		Token: req.Token,
		Label: req.Label,
	})
	if err != nil {
		if errors.Is(err, notification.ErrInvalidToken) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Error registering device: %v", err)
		http.Error(w, "Failed to register device", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(device)
}
