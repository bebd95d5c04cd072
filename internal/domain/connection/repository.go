package connection

import (
	"context"
	"time"
)

// Repository defines the interface for connection persistence.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Connection, error)
	GetByID(ctx context.Context, id string) (*Connection, error)
	List(ctx context.Context) ([]*Connection, error)

	// ListSyncable returns connections eligible for a scheduled pass
	// (connected or error status).
	ListSyncable(ctx context.Context) ([]*Connection, error)

	// UpdateStatus sets the status and last error message together so the
	// health surface is always consistent.
	UpdateStatus(ctx context.Context, id, status, lastError string) error

	// MarkDiscovered records that account discovery completed once for this
	// connection's lifetime.
	MarkDiscovered(ctx context.Context, id string) error

	// AdvanceWatermark moves lastSuccessAt forward to the given time.
	// Implementations must never move it backward.
	AdvanceWatermark(ctx context.Context, id string, to time.Time) error

	// UpdateCredentials replaces username and secret, returning the
	// connection to draft for re-initialization.
	UpdateCredentials(ctx context.Context, id, username, secret string) error

	Delete(ctx context.Context, id string) error
}
