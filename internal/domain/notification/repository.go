package notification

import "context"

// Repository defines the interface for alert data access.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	// Alerts
	CreateAlert(ctx context.Context, params CreateAlertParams) (*Alert, error)
	ListAlerts(ctx context.Context, openOnly bool, page, perPage int) ([]*Alert, int, error)
	Acknowledge(ctx context.Context, alertID string) error

	// Admin device tokens
	UpsertDeviceToken(ctx context.Context, params RegisterDeviceParams) (*DeviceToken, error)
	ActiveDeviceTokens(ctx context.Context) ([]string, error)
	DeactivateToken(ctx context.Context, token string) error
}
