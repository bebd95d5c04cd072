package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"banksync/internal/domain/connection"
	"banksync/internal/domain/journal"
	"banksync/internal/infrastructure/birbank"
)

var (
	syncMeter        = otel.Meter("banksync/syncer")
	syncDuration, _  = syncMeter.Float64Histogram("sync.pass.duration", metric.WithDescription("Sync pass duration in seconds"), metric.WithUnit("s"))
	syncTotal, _     = syncMeter.Int64Counter("sync.pass.total", metric.WithDescription("Total sync passes by outcome"))
	linesImported, _ = syncMeter.Int64Counter("sync.lines.imported", metric.WithDescription("Statement lines imported"))
)

// Notifier raises persistent alerts toward administrators.
// Satisfied by notification.Service.
type Notifier interface {
	NotifySyncFailure(ctx context.Context, connectionID, connectionName, cause string) error
}

// Orchestrator drives the connection lifecycle: initial connect with account
// discovery, sync passes, and credential resets. It owns the retry policy
// for the bank's transient failures and the status transitions that the
// admin surface reads.
type Orchestrator struct {
	connections connection.Repository
	journals    journal.Repository
	discovery   *DiscoveryService
	txSync      *TransactionSync
	tokens      *connection.TokenManager
	headers     birbank.HeaderProvider
	guard       *connection.Guard
	notifier    Notifier

	maxRetries int
	backoff    time.Duration
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates a new sync orchestrator. maxRetries is the total
// attempt budget per pass; backoff is the base delay, scaled linearly per
// attempt.
func NewOrchestrator(
	connections connection.Repository,
	journals journal.Repository,
	discovery *DiscoveryService,
	txSync *TransactionSync,
	tokens *connection.TokenManager,
	headers birbank.HeaderProvider,
	guard *connection.Guard,
	notifier Notifier,
	maxRetries int,
	backoff time.Duration,
) *Orchestrator {
	return &Orchestrator{
		connections: connections,
		journals:    journals,
		discovery:   discovery,
		txSync:      txSync,
		tokens:      tokens,
		headers:     headers,
		guard:       guard,
		notifier:    notifier,
		maxRetries:  maxRetries,
		backoff:     backoff,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Connect validates the connection's credentials and runs account discovery,
// moving it draft → connecting → connected. A failure lands it in error
// status with the cause recorded verbatim.
func (o *Orchestrator) Connect(ctx context.Context, connID string) (*DiscoveryResult, error) {
	conn, err := o.connections.GetByID(ctx, connID)
	if err != nil {
		return nil, err
	}

	if err := o.guard.Acquire(conn.ID); err != nil {
		return nil, err
	}
	defer o.guard.Release(conn.ID)

	if err := o.connections.UpdateStatus(ctx, conn.ID, connection.StatusConnecting, ""); err != nil {
		return nil, err
	}

	var result *DiscoveryResult
	err = o.withRetries(ctx, conn, func() error {
		r, err := o.discovery.Discover(ctx, conn)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		o.fail(ctx, conn, "connect", err)
		return nil, err
	}

	if err := o.connections.MarkDiscovered(ctx, conn.ID); err != nil {
		return nil, err
	}
	if err := o.connections.UpdateStatus(ctx, conn.ID, connection.StatusConnected, ""); err != nil {
		return nil, err
	}

	log.Printf("Connection %s: connected (%d accounts, %d pending)", conn.ID, result.AccountsFound, len(result.Pending))
	return result, nil
}

// RunSync runs one sync pass over every linked account of the connection.
func (o *Orchestrator) RunSync(ctx context.Context, connID string) (*Result, error) {
	return o.runSync(ctx, connID, "")
}

// RunSyncForJournal runs one pass restricted to the link backing a single
// journal, for targeted refreshes from the admin surface.
func (o *Orchestrator) RunSyncForJournal(ctx context.Context, connID, journalID string) (*Result, error) {
	if journalID == "" {
		return nil, ErrJournalNotLinked
	}
	return o.runSync(ctx, connID, journalID)
}

func (o *Orchestrator) runSync(ctx context.Context, connID, journalID string) (*Result, error) {
	conn, err := o.connections.GetByID(ctx, connID)
	if err != nil {
		return nil, err
	}
	if !conn.Syncable() {
		return nil, ErrConnectionNotReady
	}

	if err := o.guard.Acquire(conn.ID); err != nil {
		return nil, err
	}
	defer o.guard.Release(conn.ID)

	links, err := o.journals.ListLinks(ctx, conn.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal links: %w", err)
	}
	if journalID != "" {
		links = filterLinks(links, journalID)
		if len(links) == 0 {
			return nil, ErrJournalNotLinked
		}
	}

	// The watermark advances to the pass start, not its end, so anything
	// posted while the pass ran falls inside the next window.
	start := o.now()

	var result *Result
	err = o.withRetries(ctx, conn, func() error {
		r, err := o.txSync.SyncLinks(ctx, conn, links)
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	elapsed := o.now().Sub(start).Seconds()
	if err != nil {
		syncDuration.Record(ctx, elapsed, metric.WithAttributes(attribute.String("outcome", "error")))
		syncTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		o.fail(ctx, conn, "sync", err)
		return nil, err
	}

	// Only a full pass moves the watermark; a targeted pass leaves the
	// other accounts' windows untouched.
	if journalID == "" {
		if err := o.connections.AdvanceWatermark(ctx, conn.ID, start); err != nil {
			return nil, err
		}
	}
	if err := o.connections.UpdateStatus(ctx, conn.ID, connection.StatusConnected, ""); err != nil {
		return nil, err
	}

	syncDuration.Record(ctx, elapsed, metric.WithAttributes(attribute.String("outcome", "success")))
	syncTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "success")))
	linesImported.Add(ctx, int64(result.Imported))
	return result, nil
}

// Reset replaces the connection's credentials and tears down its derived
// state (links, cached token), returning it to draft for a fresh Connect.
func (o *Orchestrator) Reset(ctx context.Context, connID, username, secret string) error {
	if o.guard.Busy(connID) {
		return connection.ErrSyncInProgress
	}
	if username == "" || secret == "" {
		return errors.New("username and secret are required")
	}

	if err := o.connections.UpdateCredentials(ctx, connID, username, secret); err != nil {
		return err
	}
	if err := o.journals.DeleteLinks(ctx, connID); err != nil {
		return err
	}
	o.tokens.Forget(connID)

	log.Printf("Connection %s: credentials reset, back to draft", connID)
	return nil
}

// Delete removes the connection and everything derived from it. Rejected
// while a pass is running so the pass never writes against a gone row.
func (o *Orchestrator) Delete(ctx context.Context, connID string) error {
	if o.guard.Busy(connID) {
		return connection.ErrSyncInProgress
	}
	if err := o.journals.DeleteLinks(ctx, connID); err != nil {
		return err
	}
	if err := o.connections.Delete(ctx, connID); err != nil {
		return err
	}
	o.tokens.Forget(connID)
	return nil
}

// fail records the error status and raises the admin alert. The cause is
// stored verbatim so the operator sees exactly what the bank said.
func (o *Orchestrator) fail(ctx context.Context, conn *connection.Connection, op string, cause error) {
	log.Printf("Connection %s: %s failed: %v", conn.ID, op, cause)

	if err := o.connections.UpdateStatus(ctx, conn.ID, connection.StatusError, cause.Error()); err != nil {
		log.Printf("Connection %s: failed to record error status: %v", conn.ID, err)
	}
	if err := o.notifier.NotifySyncFailure(ctx, conn.ID, conn.Name, cause.Error()); err != nil {
		log.Printf("Connection %s: failed to raise alert: %v", conn.ID, err)
	}
}

// withRetries runs fn under the transient-failure policy:
//   - 401 (stale token): invalidate the cache and retry once, immediately.
//   - 403 (bot detection): rotate browser headers, back off, retry.
//   - 5xx and network errors: back off, retry.
//   - anything else is permanent and returns as-is.
//
// Total attempts are capped at maxRetries; the one free auth retry does not
// consume the budget.
func (o *Orchestrator) withRetries(ctx context.Context, conn *connection.Connection, fn func() error) error {
	authRetried := false
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var authErr *birbank.AuthError
		var forbiddenErr *birbank.ForbiddenError
		var serverErr *birbank.ServerError
		var networkErr *birbank.NetworkError

		switch {
		case errors.As(err, &authErr):
			if authRetried {
				return err
			}
			authRetried = true
			attempt--
			o.tokens.Invalidate(conn.ID)
			log.Printf("Connection %s: token rejected, retrying with fresh login", conn.ID)
			continue

		case errors.As(err, &forbiddenErr):
			if attempt >= o.maxRetries {
				return err
			}
			o.headers.Refresh()
			log.Printf("Connection %s: request blocked (attempt %d/%d), rotating headers", conn.ID, attempt, o.maxRetries)

		case errors.As(err, &serverErr), errors.As(err, &networkErr):
			if attempt >= o.maxRetries {
				return err
			}
			log.Printf("Connection %s: transient failure (attempt %d/%d): %v", conn.ID, attempt, o.maxRetries, err)

		default:
			return err
		}

		if err := o.sleep(ctx, o.backoff*time.Duration(attempt)); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func filterLinks(links []*journal.Link, journalID string) []*journal.Link {
	var out []*journal.Link
	for _, l := range links {
		if l.JournalID == journalID {
			out = append(out, l)
		}
	}
	return out
}
