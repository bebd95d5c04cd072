package scheduler

import (
	"context"
	"errors"
	"log"

	"banksync/internal/domain/connection"
	"banksync/internal/domain/syncer"
)

// SyncRunner runs one sync pass for a connection. Satisfied by
// syncer.Orchestrator.
type SyncRunner interface {
	RunSync(ctx context.Context, connID string) (*syncer.Result, error)
}

// SyncJob is one scheduled sync pass for one bank connection.
// It implements the Job interface.
type SyncJob struct {
	conn   *connection.Connection
	runner SyncRunner
}

// NewSyncJob creates a new sync job for the given connection.
func NewSyncJob(conn *connection.Connection, runner SyncRunner) *SyncJob {
	return &SyncJob{conn: conn, runner: runner}
}

// Execute runs the sync pass. An overlapping manual trigger is benign: the
// running pass covers the same window, so the job logs and succeeds. Real
// failures are already recorded and alerted by the orchestrator; returning
// them here only feeds the pool's metrics and logs.
func (j *SyncJob) Execute(ctx context.Context) error {
	result, err := j.runner.RunSync(ctx, j.conn.ID)
	if err != nil {
		if errors.Is(err, connection.ErrSyncInProgress) {
			log.Printf("Connection %s: scheduled sync skipped, a pass is already running", j.conn.ID)
			return nil
		}
		return err
	}

	log.Printf("Connection %s: scheduled sync imported %d lines (%d duplicates)",
		j.conn.ID, result.Imported, result.Duplicates)
	return nil
}

// ConnectionID returns the connection ID for this job.
func (j *SyncJob) ConnectionID() string {
	return j.conn.ID
}

// Description returns a human-readable description of this job.
func (j *SyncJob) Description() string {
	return "bank statement sync"
}
