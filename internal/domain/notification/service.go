package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Service contains the business logic for admin alerting. The stored alert
// record is authoritative; the FCM push is best-effort and its failure never
// fails the alert.
type Service struct {
	repo      Repository
	messenger Messenger
}

// NewService creates a new notification service. messenger may be nil when
// push delivery is not configured; alerts are then record-only.
func NewService(repo Repository, messenger Messenger) *Service {
	return &Service{repo: repo, messenger: messenger}
}

// NotifySyncFailure raises the persistent, admin-facing alert required when
// a sync pass ends in the error state. The alert is sticky: it stays open
// until acknowledged.
func (s *Service) NotifySyncFailure(ctx context.Context, connectionID, connectionName, cause string) error {
	alert, err := s.repo.CreateAlert(ctx, CreateAlertParams{
		ConnectionID: connectionID,
		Severity:     SeverityCritical,
		Title:        fmt.Sprintf("Bank sync failed: %s", connectionName),
		Message:      cause,
		Sticky:       true,
	})
	if err != nil {
		return fmt.Errorf("failed to store sync failure alert: %w", err)
	}

	s.push(ctx, alert)
	return nil
}

// RegisterDevice registers an administrator device for push delivery.
func (s *Service) RegisterDevice(ctx context.Context, params RegisterDeviceParams) (*DeviceToken, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.UpsertDeviceToken(ctx, params)
}

// ListAlerts returns paginated alerts, optionally only unacknowledged ones.
func (s *Service) ListAlerts(ctx context.Context, openOnly bool, page, perPage int) ([]*Alert, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.repo.ListAlerts(ctx, openOnly, page, perPage)
}

// Acknowledge marks an alert as handled by an administrator.
func (s *Service) Acknowledge(ctx context.Context, alertID string) error {
	if alertID == "" {
		return errors.New("alert ID is required")
	}
	return s.repo.Acknowledge(ctx, alertID)
}

// push delivers the alert to all registered admin devices. Errors are
// logged, not returned: the stored record already carries the alert.
func (s *Service) push(ctx context.Context, alert *Alert) {
	if s.messenger == nil {
		return
	}

	tokens, err := s.repo.ActiveDeviceTokens(ctx)
	if err != nil {
		log.Printf("Alert %s: failed to list admin device tokens: %v", alert.ID, err)
		return
	}
	if len(tokens) == 0 {
		log.Printf("Alert %s: no admin devices registered, record-only", alert.ID)
		return
	}

	data := map[string]string{
		"alertId":      alert.ID,
		"connectionId": alert.ConnectionID,
		"severity":     alert.Severity,
		"sticky":       "true",
	}
	if err := s.messenger.SendMulticast(ctx, tokens, alert.Title, alert.Message, data); err != nil {
		log.Printf("Alert %s: push delivery failed: %v", alert.ID, err)
	}
}
