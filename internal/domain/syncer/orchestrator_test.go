package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"banksync/internal/domain/connection"
	"banksync/internal/domain/journal"
	"banksync/internal/infrastructure/birbank"
)

type orchestratorFixture struct {
	client   *MockBirbankClient
	conns    *MockConnectionRepo
	journals *MockJournalRepo
	store    *MockStatementStore
	notifier *MockNotifier
	headers  *MockHeaders
	guard    *connection.Guard
	orch     *Orchestrator
}

func newOrchestratorFixture(conn *connection.Connection) *orchestratorFixture {
	f := &orchestratorFixture{
		client:   &MockBirbankClient{},
		conns:    &MockConnectionRepo{},
		journals: &MockJournalRepo{},
		store:    &MockStatementStore{},
		notifier: &MockNotifier{},
		headers:  &MockHeaders{},
		guard:    connection.NewGuard(),
	}
	f.conns.GetByIDFunc = func(ctx context.Context, id string) (*connection.Connection, error) {
		if id == conn.ID {
			return conn, nil
		}
		return nil, connection.ErrConnectionNotFound
	}
	f.journals.ListLinksFunc = func(ctx context.Context, connectionID string) ([]*journal.Link, error) {
		return []*journal.Link{testLink()}, nil
	}

	tokens := connection.NewTokenManager(f.client)
	f.orch = NewOrchestrator(
		f.conns, f.journals,
		NewDiscoveryService(f.client, tokens, f.journals),
		NewTransactionSync(f.client, tokens, f.store),
		tokens, f.headers, f.guard, f.notifier,
		3, time.Millisecond,
	)
	return f
}

func TestRunSyncSuccessAdvancesWatermark(t *testing.T) {
	conn := testConnection(connection.StatusConnected)
	f := newOrchestratorFixture(conn)
	f.client.AccountStatementFunc = func(ctx context.Context, environment, token string, q birbank.StatementQuery) (*birbank.StatementPage, error) {
		return &birbank.StatementPage{Entries: []birbank.StatementEntry{
			{TrnRefNo: "AZ1", TrnDt: "Jun 10, 2026", LcyAmount: "5"},
		}}, nil
	}

	var watermark time.Time
	f.conns.AdvanceWatermarkFunc = func(ctx context.Context, id string, to time.Time) error {
		watermark = to
		return nil
	}
	var finalStatus string
	f.conns.UpdateStatusFunc = func(ctx context.Context, id, status, lastError string) error {
		finalStatus = status
		return nil
	}

	before := time.Now()
	result, err := f.orch.RunSync(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}

	if result.Imported != 1 {
		t.Errorf("Imported = %d, want 1", result.Imported)
	}
	if watermark.Before(before) {
		t.Errorf("watermark %v should be at or after the pass start", watermark)
	}
	if finalStatus != connection.StatusConnected {
		t.Errorf("status = %s, want connected", finalStatus)
	}
	if len(f.notifier.Calls) != 0 {
		t.Errorf("no alert expected on success, got %v", f.notifier.Calls)
	}
}

func TestRunSyncExhaustedRetriesLeavesWatermarkUntouched(t *testing.T) {
	conn := testConnection(connection.StatusConnected)
	f := newOrchestratorFixture(conn)

	attempts := 0
	f.client.AccountStatementFunc = func(ctx context.Context, environment, token string, q birbank.StatementQuery) (*birbank.StatementPage, error) {
		attempts++
		return nil, &birbank.ServerError{Status: 503, Message: "maintenance"}
	}

	watermarkMoved := false
	f.conns.AdvanceWatermarkFunc = func(ctx context.Context, id string, to time.Time) error {
		watermarkMoved = true
		return nil
	}
	var gotStatus, gotError string
	f.conns.UpdateStatusFunc = func(ctx context.Context, id, status, lastError string) error {
		gotStatus, gotError = status, lastError
		return nil
	}

	_, err := f.orch.RunSync(context.Background(), conn.ID)
	if err == nil {
		t.Fatal("RunSync should fail after exhausting retries")
	}

	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if watermarkMoved {
		t.Error("watermark must not move on a failed pass")
	}
	if gotStatus != connection.StatusError {
		t.Errorf("status = %s, want error", gotStatus)
	}
	var srvErr *birbank.ServerError
	if !errors.As(err, &srvErr) || gotError != err.Error() {
		t.Errorf("lastError = %q, want the verbatim cause %q", gotError, err.Error())
	}
	if len(f.notifier.Calls) != 1 {
		t.Fatalf("alerts raised = %d, want exactly 1", len(f.notifier.Calls))
	}
}

func TestRunSyncStaleTokenGetsOneFreeRetry(t *testing.T) {
	conn := testConnection(connection.StatusConnected)
	f := newOrchestratorFixture(conn)

	logins := 0
	f.client.LoginFunc = func(ctx context.Context, environment, username, password string) (*birbank.LoginResult, error) {
		logins++
		return &birbank.LoginResult{Token: "tok"}, nil
	}
	statements := 0
	f.client.AccountStatementFunc = func(ctx context.Context, environment, token string, q birbank.StatementQuery) (*birbank.StatementPage, error) {
		statements++
		if statements == 1 {
			return nil, &birbank.AuthError{Status: 401, Message: "token expired"}
		}
		return &birbank.StatementPage{}, nil
	}

	if _, err := f.orch.RunSync(context.Background(), conn.ID); err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}
	if logins != 2 {
		t.Errorf("logins = %d, want 2 (initial + forced refresh)", logins)
	}
	if statements != 2 {
		t.Errorf("statement calls = %d, want 2", statements)
	}
}

func TestRunSyncPersistentAuthFailureDoesNotLoop(t *testing.T) {
	conn := testConnection(connection.StatusConnected)
	f := newOrchestratorFixture(conn)

	logins := 0
	f.client.LoginFunc = func(ctx context.Context, environment, username, password string) (*birbank.LoginResult, error) {
		logins++
		return nil, &birbank.AuthError{Status: 401, Message: "bad credentials"}
	}

	_, err := f.orch.RunSync(context.Background(), conn.ID)
	var authErr *birbank.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError", err)
	}
	if logins != 2 {
		t.Errorf("logins = %d, want 2 (original + single auth retry)", logins)
	}
	if len(f.notifier.Calls) != 1 {
		t.Errorf("alerts raised = %d, want exactly 1", len(f.notifier.Calls))
	}
}

func TestRunSyncForbiddenRotatesHeaders(t *testing.T) {
	conn := testConnection(connection.StatusConnected)
	f := newOrchestratorFixture(conn)

	calls := 0
	f.client.AccountStatementFunc = func(ctx context.Context, environment, token string, q birbank.StatementQuery) (*birbank.StatementPage, error) {
		calls++
		if calls == 1 {
			return nil, &birbank.ForbiddenError{Status: 403}
		}
		return &birbank.StatementPage{}, nil
	}

	if _, err := f.orch.RunSync(context.Background(), conn.ID); err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}
	if f.headers.Refreshes != 1 {
		t.Errorf("header refreshes = %d, want 1", f.headers.Refreshes)
	}
}

func TestRunSyncRejectsConcurrentPass(t *testing.T) {
	conn := testConnection(connection.StatusConnected)
	f := newOrchestratorFixture(conn)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.client.AccountStatementFunc = func(ctx context.Context, environment, token string, q birbank.StatementQuery) (*birbank.StatementPage, error) {
		once.Do(func() {
			close(started)
			<-release
		})
		return &birbank.StatementPage{}, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.orch.RunSync(context.Background(), conn.ID)
	}()

	<-started
	_, err := f.orch.RunSync(context.Background(), conn.ID)
	if !errors.Is(err, connection.ErrSyncInProgress) {
		t.Errorf("err = %v, want ErrSyncInProgress", err)
	}

	close(release)
	wg.Wait()

	if _, err := f.orch.RunSync(context.Background(), conn.ID); err != nil {
		t.Errorf("sync after release should succeed, got %v", err)
	}
}

func TestRunSyncRejectsDraftConnection(t *testing.T) {
	conn := testConnection(connection.StatusDraft)
	f := newOrchestratorFixture(conn)

	_, err := f.orch.RunSync(context.Background(), conn.ID)
	if !errors.Is(err, ErrConnectionNotReady) {
		t.Errorf("err = %v, want ErrConnectionNotReady", err)
	}
}

func TestRunSyncForJournalFiltersLinks(t *testing.T) {
	conn := testConnection(connection.StatusConnected)
	f := newOrchestratorFixture(conn)
	f.journals.ListLinksFunc = func(ctx context.Context, connectionID string) ([]*journal.Link, error) {
		return []*journal.Link{
			{ID: "link-1", ConnectionID: conn.ID, IBAN: "AZ21NABZ00000000137010001944", JournalID: "j-1"},
			{ID: "link-2", ConnectionID: conn.ID, IBAN: "AZ77NABZ00000000137010002944", JournalID: "j-2"},
		}, nil
	}

	var fetched []string
	f.client.AccountStatementFunc = func(ctx context.Context, environment, token string, q birbank.StatementQuery) (*birbank.StatementPage, error) {
		fetched = append(fetched, q.AccountNumber)
		return &birbank.StatementPage{}, nil
	}
	watermarkMoved := false
	f.conns.AdvanceWatermarkFunc = func(ctx context.Context, id string, to time.Time) error {
		watermarkMoved = true
		return nil
	}

	if _, err := f.orch.RunSyncForJournal(context.Background(), conn.ID, "j-2"); err != nil {
		t.Fatalf("RunSyncForJournal failed: %v", err)
	}

	if len(fetched) != 1 || fetched[0] != "AZ77NABZ00000000137010002944" {
		t.Errorf("fetched = %v, want only the linked account of j-2", fetched)
	}
	if watermarkMoved {
		t.Error("a targeted pass must not move the connection watermark")
	}

	if _, err := f.orch.RunSyncForJournal(context.Background(), conn.ID, "j-unknown"); !errors.Is(err, ErrJournalNotLinked) {
		t.Errorf("err = %v, want ErrJournalNotLinked", err)
	}
}

func TestConnectRunsDiscoveryAndMarks(t *testing.T) {
	conn := testConnection(connection.StatusDraft)
	f := newOrchestratorFixture(conn)

	f.client.ListAccountsFunc = func(ctx context.Context, environment, token string) ([]birbank.RemoteAccount, error) {
		return []birbank.RemoteAccount{{IBAN: "AZ21NABZ00000000137010001944", Currency: "AZN"}}, nil
	}
	f.journals.ListJournalsFunc = func(ctx context.Context) ([]*journal.Journal, error) {
		return []*journal.Journal{{ID: "j-1", IBAN: "AZ21NABZ00000000137010001944"}}, nil
	}

	var statuses []string
	f.conns.UpdateStatusFunc = func(ctx context.Context, id, status, lastError string) error {
		statuses = append(statuses, status)
		return nil
	}
	marked := false
	f.conns.MarkDiscoveredFunc = func(ctx context.Context, id string) error {
		marked = true
		return nil
	}

	result, err := f.orch.Connect(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if result.Linked != 1 {
		t.Errorf("Linked = %d, want 1", result.Linked)
	}
	if !marked {
		t.Error("Connect should mark discovery complete")
	}
	want := []string{connection.StatusConnecting, connection.StatusConnected}
	if len(statuses) != 2 || statuses[0] != want[0] || statuses[1] != want[1] {
		t.Errorf("status transitions = %v, want %v", statuses, want)
	}
}

func TestConnectFailureLandsInError(t *testing.T) {
	conn := testConnection(connection.StatusDraft)
	f := newOrchestratorFixture(conn)
	f.client.LoginFunc = func(ctx context.Context, environment, username, password string) (*birbank.LoginResult, error) {
		return nil, &birbank.AuthError{Status: 401, Message: "bad credentials"}
	}

	var statuses []string
	f.conns.UpdateStatusFunc = func(ctx context.Context, id, status, lastError string) error {
		statuses = append(statuses, status)
		return nil
	}

	if _, err := f.orch.Connect(context.Background(), conn.ID); err == nil {
		t.Fatal("Connect should fail when login fails")
	}
	if len(statuses) != 2 || statuses[1] != connection.StatusError {
		t.Errorf("status transitions = %v, want connecting then error", statuses)
	}
	if len(f.notifier.Calls) != 1 {
		t.Errorf("alerts raised = %d, want 1", len(f.notifier.Calls))
	}
}

func TestResetRejectedWhileSyncing(t *testing.T) {
	conn := testConnection(connection.StatusConnected)
	f := newOrchestratorFixture(conn)

	f.guard.Acquire(conn.ID)
	defer f.guard.Release(conn.ID)

	err := f.orch.Reset(context.Background(), conn.ID, "new-user", "new-pass")
	if !errors.Is(err, connection.ErrSyncInProgress) {
		t.Errorf("err = %v, want ErrSyncInProgress", err)
	}
}

func TestResetClearsLinks(t *testing.T) {
	conn := testConnection(connection.StatusConnected)
	f := newOrchestratorFixture(conn)

	linksDeleted := false
	f.journals.DeleteLinksFunc = func(ctx context.Context, connectionID string) error {
		linksDeleted = true
		return nil
	}

	if err := f.orch.Reset(context.Background(), conn.ID, "new-user", "new-pass"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if !linksDeleted {
		t.Error("Reset should delete the connection's journal links")
	}
}
