package notification

import (
	"context"
	"errors"
	"testing"
	"time"
)

// MockRepo implements Repository
type MockRepo struct {
	CreateAlertFunc        func(ctx context.Context, params CreateAlertParams) (*Alert, error)
	ListAlertsFunc         func(ctx context.Context, openOnly bool, page, perPage int) ([]*Alert, int, error)
	AcknowledgeFunc        func(ctx context.Context, alertID string) error
	UpsertDeviceTokenFunc  func(ctx context.Context, params RegisterDeviceParams) (*DeviceToken, error)
	ActiveDeviceTokensFunc func(ctx context.Context) ([]string, error)
	DeactivateTokenFunc    func(ctx context.Context, token string) error
}

func (m *MockRepo) CreateAlert(ctx context.Context, params CreateAlertParams) (*Alert, error) {
	if m.CreateAlertFunc != nil {
		return m.CreateAlertFunc(ctx, params)
	}
	return &Alert{ID: "a1", ConnectionID: params.ConnectionID, Severity: params.Severity,
		Title: params.Title, Message: params.Message, Sticky: params.Sticky, CreatedAt: time.Now()}, nil
}
func (m *MockRepo) ListAlerts(ctx context.Context, openOnly bool, page, perPage int) ([]*Alert, int, error) {
	if m.ListAlertsFunc != nil {
		return m.ListAlertsFunc(ctx, openOnly, page, perPage)
	}
	return nil, 0, nil
}
func (m *MockRepo) Acknowledge(ctx context.Context, alertID string) error {
	if m.AcknowledgeFunc != nil {
		return m.AcknowledgeFunc(ctx, alertID)
	}
	return nil
}
func (m *MockRepo) UpsertDeviceToken(ctx context.Context, params RegisterDeviceParams) (*DeviceToken, error) {
	if m.UpsertDeviceTokenFunc != nil {
		return m.UpsertDeviceTokenFunc(ctx, params)
	}
	return &DeviceToken{ID: "d1", Token: params.Token, IsActive: true}, nil
}
func (m *MockRepo) ActiveDeviceTokens(ctx context.Context) ([]string, error) {
	if m.ActiveDeviceTokensFunc != nil {
		return m.ActiveDeviceTokensFunc(ctx)
	}
	return nil, nil
}
func (m *MockRepo) DeactivateToken(ctx context.Context, token string) error {
	if m.DeactivateTokenFunc != nil {
		return m.DeactivateTokenFunc(ctx, token)
	}
	return nil
}

// MockMessenger implements Messenger
type MockMessenger struct {
	SendFunc          func(ctx context.Context, token string, title, body string, data map[string]string) error
	SendMulticastFunc func(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

func (m *MockMessenger) Send(ctx context.Context, token string, title, body string, data map[string]string) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, token, title, body, data)
	}
	return nil
}
func (m *MockMessenger) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	if m.SendMulticastFunc != nil {
		return m.SendMulticastFunc(ctx, tokens, title, body, data)
	}
	return nil
}

func TestNotifySyncFailure_StoresStickyAlert(t *testing.T) {
	var stored CreateAlertParams
	repo := &MockRepo{
		CreateAlertFunc: func(ctx context.Context, params CreateAlertParams) (*Alert, error) {
			stored = params
			return &Alert{ID: "a1", ConnectionID: params.ConnectionID, Sticky: params.Sticky}, nil
		},
	}

	svc := NewService(repo, nil)
	err := svc.NotifySyncFailure(context.Background(), "conn-1", "Main Bank", "authentication rejected (401)")
	if err != nil {
		t.Fatalf("NotifySyncFailure() failed: %v", err)
	}

	if !stored.Sticky {
		t.Error("alert is not sticky")
	}
	if stored.Severity != SeverityCritical {
		t.Errorf("severity = %q, want critical", stored.Severity)
	}
	if stored.Message != "authentication rejected (401)" {
		t.Errorf("message = %q, want the verbatim cause", stored.Message)
	}
	if stored.ConnectionID != "conn-1" {
		t.Errorf("connectionID = %q", stored.ConnectionID)
	}
}

func TestNotifySyncFailure_PushesToAdminDevices(t *testing.T) {
	repo := &MockRepo{
		ActiveDeviceTokensFunc: func(ctx context.Context) ([]string, error) {
			return []string{"tok-1", "tok-2"}, nil
		},
	}

	var pushed []string
	messenger := &MockMessenger{
		SendMulticastFunc: func(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
			pushed = tokens
			return nil
		},
	}

	svc := NewService(repo, messenger)
	if err := svc.NotifySyncFailure(context.Background(), "conn-1", "Main Bank", "bank error (503)"); err != nil {
		t.Fatalf("NotifySyncFailure() failed: %v", err)
	}

	if len(pushed) != 2 {
		t.Errorf("pushed to %d devices, want 2", len(pushed))
	}
}

func TestNotifySyncFailure_PushFailureDoesNotFailAlert(t *testing.T) {
	repo := &MockRepo{
		ActiveDeviceTokensFunc: func(ctx context.Context) ([]string, error) {
			return []string{"tok-1"}, nil
		},
	}
	messenger := &MockMessenger{
		SendMulticastFunc: func(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
			return errors.New("fcm unavailable")
		},
	}

	svc := NewService(repo, messenger)
	if err := svc.NotifySyncFailure(context.Background(), "conn-1", "Main Bank", "network error"); err != nil {
		t.Errorf("NotifySyncFailure() = %v, want nil when only the push fails", err)
	}
}

func TestNotifySyncFailure_StoreFailurePropagates(t *testing.T) {
	repo := &MockRepo{
		CreateAlertFunc: func(ctx context.Context, params CreateAlertParams) (*Alert, error) {
			return nil, errors.New("db down")
		},
	}

	svc := NewService(repo, nil)
	if err := svc.NotifySyncFailure(context.Background(), "conn-1", "Main Bank", "cause"); err == nil {
		t.Error("NotifySyncFailure() = nil, want error when the record cannot be stored")
	}
}

func TestRegisterDevice_Validates(t *testing.T) {
	svc := NewService(&MockRepo{}, nil)

	if _, err := svc.RegisterDevice(context.Background(), RegisterDeviceParams{}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("RegisterDevice() = %v, want ErrInvalidToken", err)
	}

	dt, err := svc.RegisterDevice(context.Background(), RegisterDeviceParams{Token: "tok-1", Label: "ops phone"})
	if err != nil {
		t.Fatalf("RegisterDevice() failed: %v", err)
	}
	if dt.Token != "tok-1" {
		t.Errorf("Token = %q", dt.Token)
	}
}

func TestListAlerts_ClampsPagination(t *testing.T) {
	var gotPage, gotPerPage int
	repo := &MockRepo{
		ListAlertsFunc: func(ctx context.Context, openOnly bool, page, perPage int) ([]*Alert, int, error) {
			gotPage, gotPerPage = page, perPage
			return nil, 0, nil
		},
	}

	svc := NewService(repo, nil)
	if _, _, err := svc.ListAlerts(context.Background(), true, 0, 1000); err != nil {
		t.Fatalf("ListAlerts() failed: %v", err)
	}

	if gotPage != 1 || gotPerPage != 20 {
		t.Errorf("pagination = (%d, %d), want (1, 20)", gotPage, gotPerPage)
	}
}
