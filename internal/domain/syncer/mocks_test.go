package syncer

import (
	"context"
	"net/http"
	"time"

	"banksync/internal/domain/connection"
	"banksync/internal/domain/journal"
	"banksync/internal/infrastructure/birbank"
)

// MockBirbankClient implements birbank.ClientInterface
type MockBirbankClient struct {
	LoginFunc            func(ctx context.Context, environment, username, password string) (*birbank.LoginResult, error)
	ListAccountsFunc     func(ctx context.Context, environment, token string) ([]birbank.RemoteAccount, error)
	AccountStatementFunc func(ctx context.Context, environment, token string, q birbank.StatementQuery) (*birbank.StatementPage, error)
}

func (m *MockBirbankClient) Login(ctx context.Context, environment, username, password string) (*birbank.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, environment, username, password)
	}
	return &birbank.LoginResult{Token: "test-token"}, nil
}

func (m *MockBirbankClient) ListAccounts(ctx context.Context, environment, token string) ([]birbank.RemoteAccount, error) {
	if m.ListAccountsFunc != nil {
		return m.ListAccountsFunc(ctx, environment, token)
	}
	return nil, nil
}

func (m *MockBirbankClient) AccountStatement(ctx context.Context, environment, token string, q birbank.StatementQuery) (*birbank.StatementPage, error) {
	if m.AccountStatementFunc != nil {
		return m.AccountStatementFunc(ctx, environment, token, q)
	}
	return &birbank.StatementPage{}, nil
}

// MockConnectionRepo implements connection.Repository
type MockConnectionRepo struct {
	GetByIDFunc          func(ctx context.Context, id string) (*connection.Connection, error)
	UpdateStatusFunc     func(ctx context.Context, id, status, lastError string) error
	MarkDiscoveredFunc   func(ctx context.Context, id string) error
	AdvanceWatermarkFunc func(ctx context.Context, id string, to time.Time) error
}

func (m *MockConnectionRepo) Create(ctx context.Context, params connection.CreateParams) (*connection.Connection, error) {
	return nil, nil
}
func (m *MockConnectionRepo) GetByID(ctx context.Context, id string) (*connection.Connection, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, connection.ErrConnectionNotFound
}
func (m *MockConnectionRepo) List(ctx context.Context) ([]*connection.Connection, error) {
	return nil, nil
}
func (m *MockConnectionRepo) ListSyncable(ctx context.Context) ([]*connection.Connection, error) {
	return nil, nil
}
func (m *MockConnectionRepo) UpdateStatus(ctx context.Context, id, status, lastError string) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status, lastError)
	}
	return nil
}
func (m *MockConnectionRepo) MarkDiscovered(ctx context.Context, id string) error {
	if m.MarkDiscoveredFunc != nil {
		return m.MarkDiscoveredFunc(ctx, id)
	}
	return nil
}
func (m *MockConnectionRepo) AdvanceWatermark(ctx context.Context, id string, to time.Time) error {
	if m.AdvanceWatermarkFunc != nil {
		return m.AdvanceWatermarkFunc(ctx, id, to)
	}
	return nil
}
func (m *MockConnectionRepo) UpdateCredentials(ctx context.Context, id, username, secret string) error {
	return nil
}
func (m *MockConnectionRepo) Delete(ctx context.Context, id string) error { return nil }

// MockJournalRepo implements journal.Repository
type MockJournalRepo struct {
	ListJournalsFunc func(ctx context.Context) ([]*journal.Journal, error)
	CreateLinkFunc   func(ctx context.Context, params journal.CreateLinkParams) (*journal.Link, error)
	GetLinkFunc      func(ctx context.Context, connectionID, iban string) (*journal.Link, error)
	ListLinksFunc    func(ctx context.Context, connectionID string) ([]*journal.Link, error)
	DeleteLinksFunc  func(ctx context.Context, connectionID string) error
}

func (m *MockJournalRepo) ListJournals(ctx context.Context) ([]*journal.Journal, error) {
	if m.ListJournalsFunc != nil {
		return m.ListJournalsFunc(ctx)
	}
	return nil, nil
}
func (m *MockJournalRepo) GetJournal(ctx context.Context, id string) (*journal.Journal, error) {
	return nil, journal.ErrJournalNotFound
}
func (m *MockJournalRepo) CreateLink(ctx context.Context, params journal.CreateLinkParams) (*journal.Link, error) {
	if m.CreateLinkFunc != nil {
		return m.CreateLinkFunc(ctx, params)
	}
	return &journal.Link{ConnectionID: params.ConnectionID, IBAN: params.IBAN, JournalID: params.JournalID}, nil
}
func (m *MockJournalRepo) GetLink(ctx context.Context, connectionID, iban string) (*journal.Link, error) {
	if m.GetLinkFunc != nil {
		return m.GetLinkFunc(ctx, connectionID, iban)
	}
	return nil, journal.ErrLinkNotFound
}
func (m *MockJournalRepo) ListLinks(ctx context.Context, connectionID string) ([]*journal.Link, error) {
	if m.ListLinksFunc != nil {
		return m.ListLinksFunc(ctx, connectionID)
	}
	return nil, nil
}
func (m *MockJournalRepo) DeleteLinks(ctx context.Context, connectionID string) error {
	if m.DeleteLinksFunc != nil {
		return m.DeleteLinksFunc(ctx, connectionID)
	}
	return nil
}

// MockStatementStore implements StatementStore
type MockStatementStore struct {
	ExistingRefsFunc func(ctx context.Context, refs []string) (map[string]struct{}, error)
	InsertBatchFunc  func(ctx context.Context, lines []*StatementLine) (int, error)
}

func (m *MockStatementStore) ExistingRefs(ctx context.Context, refs []string) (map[string]struct{}, error) {
	if m.ExistingRefsFunc != nil {
		return m.ExistingRefsFunc(ctx, refs)
	}
	return map[string]struct{}{}, nil
}
func (m *MockStatementStore) InsertBatch(ctx context.Context, lines []*StatementLine) (int, error) {
	if m.InsertBatchFunc != nil {
		return m.InsertBatchFunc(ctx, lines)
	}
	return len(lines), nil
}
func (m *MockStatementStore) ListByJournal(ctx context.Context, journalID string, limit int) ([]*StatementLine, error) {
	return nil, nil
}

// MockNotifier implements Notifier
type MockNotifier struct {
	Calls []string
}

func (m *MockNotifier) NotifySyncFailure(ctx context.Context, connectionID, connectionName, cause string) error {
	m.Calls = append(m.Calls, cause)
	return nil
}

// MockHeaders implements birbank.HeaderProvider
type MockHeaders struct {
	Refreshes int
}

func (m *MockHeaders) Apply(h http.Header) {}
func (m *MockHeaders) Refresh()            { m.Refreshes++ }

func testConnection(status string) *connection.Connection {
	return &connection.Connection{
		ID:              "conn-1",
		Name:            "Main Operating",
		Environment:     connection.EnvSandbox,
		Username:        "corp-user",
		Secret:          "corp-pass",
		Status:          status,
		SyncHistoryFrom: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}
