package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"banksync/internal/domain/notification"
)

// AlertRepository implements the notification.Repository interface for
// PostgreSQL, covering both admin alerts and admin device tokens.
type AlertRepository struct {
	db *DB
}

// NewAlertRepository creates a new PostgreSQL alert repository
func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// CreateAlert stores a new alert
func (r *AlertRepository) CreateAlert(ctx context.Context, params notification.CreateAlertParams) (*notification.Alert, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO alerts (id, connection_id, severity, title, message, sticky)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, connection_id, severity, title, message, sticky, created_at
	`

	var alert notification.Alert
	err := r.db.QueryRowContext(
		ctx, query,
		uuid.NewString(), params.ConnectionID, params.Severity, params.Title, params.Message, params.Sticky,
	).Scan(
		&alert.ID, &alert.ConnectionID, &alert.Severity,
		&alert.Title, &alert.Message, &alert.Sticky, &alert.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}
	return &alert, nil
}

// ListAlerts returns a page of alerts plus the total count. openOnly
// restricts to unacknowledged alerts.
func (r *AlertRepository) ListAlerts(ctx context.Context, openOnly bool, page, perPage int) ([]*notification.Alert, int, error) {
	where := ""
	if openOnly {
		where = "WHERE acknowledged_at IS NULL"
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM alerts %s`, where)
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, connection_id, severity, title, message, sticky, acknowledged_at, created_at
		FROM alerts
		%s
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, where)

	rows, err := r.db.QueryContext(ctx, query, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*notification.Alert
	for rows.Next() {
		var alert notification.Alert
		var acknowledgedAt sql.NullTime
		err := rows.Scan(
			&alert.ID, &alert.ConnectionID, &alert.Severity,
			&alert.Title, &alert.Message, &alert.Sticky,
			&acknowledgedAt, &alert.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert: %w", err)
		}
		if acknowledgedAt.Valid {
			alert.AcknowledgedAt = &acknowledgedAt.Time
		}
		alerts = append(alerts, &alert)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, total, nil
}

// Acknowledge closes an alert. Acknowledging twice is a no-op, not an error.
func (r *AlertRepository) Acknowledge(ctx context.Context, alertID string) error {
	query := `
		UPDATE alerts
		SET acknowledged_at = COALESCE(acknowledged_at, NOW())
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, alertID)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return notification.ErrAlertNotFound
	}
	return nil
}

// UpsertDeviceToken registers an admin device, reactivating the token if it
// was previously deactivated.
func (r *AlertRepository) UpsertDeviceToken(ctx context.Context, params notification.RegisterDeviceParams) (*notification.DeviceToken, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO admin_device_tokens (id, token, label, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (token) DO UPDATE SET label = EXCLUDED.label, is_active = TRUE
		RETURNING id, token, label, is_active, created_at
	`

	var device notification.DeviceToken
	err := r.db.QueryRowContext(ctx, query, uuid.NewString(), params.Token, params.Label).Scan(
		&device.ID, &device.Token, &device.Label, &device.IsActive, &device.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert device token: %w", err)
	}
	return &device, nil
}

// ActiveDeviceTokens returns the raw token strings of all active devices
func (r *AlertRepository) ActiveDeviceTokens(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT token FROM admin_device_tokens WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate device tokens: %w", err)
	}
	return tokens, nil
}

// DeactivateToken marks a token inactive after FCM reports it invalid
func (r *AlertRepository) DeactivateToken(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE admin_device_tokens SET is_active = FALSE WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to deactivate device token: %w", err)
	}
	return nil
}
