package connection

import (
	"errors"
	"time"
)

// Connection statuses
const (
	StatusDraft      = "draft"
	StatusConnecting = "connecting"
	StatusConnected  = "connected"
	StatusError      = "error"
)

// Environments
const (
	EnvProduction = "production"
	EnvSandbox    = "sandbox"
)

var validEnvironments = map[string]struct{}{
	EnvProduction: {},
	EnvSandbox:    {},
}

// Domain errors
var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrInvalidEnvironment = errors.New("environment must be 'production' or 'sandbox'")
	ErrSyncInProgress     = errors.New("sync already in progress for this connection")
)

// DefaultTokenTTL is the validity window applied when the bank declares none.
const DefaultTokenTTL = 50 * time.Minute

// tokenRefreshSkew makes a token count as stale slightly before its real
// expiry, so a statement fetch started near the boundary never races it.
const tokenRefreshSkew = 5 * time.Minute

// Connection is the durable configuration and health surface for one bank
// credential pair. Secret is plaintext in memory only; the repository
// encrypts it at rest.
type Connection struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Environment     string     `json:"environment"`
	Username        string     `json:"username"`
	Secret          string     `json:"-"`
	Status          string     `json:"status"`
	SyncHistoryFrom time.Time  `json:"syncHistoryFrom"`
	LastSuccessAt   *time.Time `json:"lastSuccessAt"`
	LastError       string     `json:"lastError"`
	DiscoveredAt    *time.Time `json:"discoveredAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// TokenCache is the cached bearer token for one connection. It is replaced
// whole on refresh, never mutated in place.
type TokenCache struct {
	Value    string
	IssuedAt time.Time
	TTL      time.Duration
}

// Valid reports whether the cached token may still be used at the given
// time. The refresh skew means the answer flips to false five minutes
// before the real expiry.
func (t TokenCache) Valid(now time.Time) bool {
	if t.Value == "" {
		return false
	}
	return now.Add(tokenRefreshSkew).Before(t.IssuedAt.Add(t.TTL))
}

// CreateParams contains everything needed to register a connection.
type CreateParams struct {
	Name            string
	Environment     string
	Username        string
	Secret          string
	SyncHistoryFrom time.Time // zero value: repository applies the default floor
}

func (p CreateParams) Validate() error {
	if p.Name == "" {
		return errors.New("connection name is required")
	}
	if _, ok := validEnvironments[p.Environment]; !ok {
		return ErrInvalidEnvironment
	}
	if p.Username == "" {
		return errors.New("username is required")
	}
	if p.Secret == "" {
		return errors.New("secret is required")
	}
	return nil
}

// Syncable reports whether a scheduled pass should pick this connection up.
// Draft connections have never been initialized; error connections are
// retried so a transient bank outage heals without operator action.
func (c *Connection) Syncable() bool {
	return c.Status == StatusConnected || c.Status == StatusError
}
