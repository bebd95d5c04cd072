package notification

import (
	"errors"
	"time"
)

// Alert severities
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

var validSeverities = map[string]struct{}{
	SeverityCritical: {},
	SeverityWarning:  {},
	SeverityInfo:     {},
}

// Domain errors
var (
	ErrAlertNotFound   = errors.New("alert not found")
	ErrInvalidSeverity = errors.New("invalid alert severity")
	ErrInvalidToken    = errors.New("device token is required")
)

// Alert is a persistent, admin-facing notification. Sticky alerts stay open
// until an administrator acknowledges them; they never auto-dismiss.
type Alert struct {
	ID             string     `json:"id"`
	ConnectionID   string     `json:"connectionId"`
	Severity       string     `json:"severity"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	Sticky         bool       `json:"sticky"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// DeviceToken is a registered FCM token belonging to an administrator.
type DeviceToken struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Label     string    `json:"label"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateAlertParams contains parameters for storing an alert.
type CreateAlertParams struct {
	ConnectionID string
	Severity     string
	Title        string
	Message      string
	Sticky       bool
}

func (p CreateAlertParams) Validate() error {
	if p.ConnectionID == "" {
		return errors.New("connection ID is required")
	}
	if p.Title == "" {
		return errors.New("alert title is required")
	}
	if p.Message == "" {
		return errors.New("alert message is required")
	}
	if !IsValidSeverity(p.Severity) {
		return ErrInvalidSeverity
	}
	return nil
}

// RegisterDeviceParams contains parameters for registering an admin device.
type RegisterDeviceParams struct {
	Token string
	Label string
}

func (p RegisterDeviceParams) Validate() error {
	if p.Token == "" {
		return ErrInvalidToken
	}
	return nil
}

func IsValidSeverity(s string) bool {
	_, ok := validSeverities[s]
	return ok
}
