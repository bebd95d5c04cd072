package scheduler

import (
	"context"
	"errors"
	"testing"

	"banksync/internal/domain/connection"
	"banksync/internal/domain/syncer"
)

type stubRunner struct {
	err error
}

func (r *stubRunner) RunSync(ctx context.Context, connID string) (*syncer.Result, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &syncer.Result{ConnectionID: connID}, nil
}

func TestSyncJobOverlapIsNotAFailure(t *testing.T) {
	conn := &connection.Connection{ID: "conn-1", Status: connection.StatusConnected}
	job := NewSyncJob(conn, &stubRunner{err: connection.ErrSyncInProgress})

	if err := job.Execute(context.Background()); err != nil {
		t.Errorf("overlapping pass should be skipped quietly, got %v", err)
	}
}

func TestSyncJobPropagatesRealErrors(t *testing.T) {
	conn := &connection.Connection{ID: "conn-1", Status: connection.StatusConnected}
	job := NewSyncJob(conn, &stubRunner{err: errors.New("bank down")})

	if err := job.Execute(context.Background()); err == nil {
		t.Error("real sync failures should propagate to the worker pool")
	}
}

func TestParseScheduleTime(t *testing.T) {
	st, err := ParseScheduleTime("06:30")
	if err != nil {
		t.Fatalf("ParseScheduleTime failed: %v", err)
	}
	if st.Hour != 6 || st.Minute != 30 {
		t.Errorf("parsed %+v, want 06:30", st)
	}

	for _, bad := range []string{"24:00", "12:60", "noon", ""} {
		if _, err := ParseScheduleTime(bad); err == nil {
			t.Errorf("ParseScheduleTime(%q) should fail", bad)
		}
	}
}
