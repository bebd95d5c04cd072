package connection

import (
	"context"
	"log"
	"sync"
	"time"

	"banksync/internal/infrastructure/birbank"
)

// TokenManager owns the bearer-token lifecycle for every connection. A
// cached token is reused while it is inside its validity window; otherwise
// exactly one login runs per connection, even under concurrent callers,
// because each connection has its own mutex held across the refresh.
type TokenManager struct {
	client birbank.ClientInterface
	now    func() time.Time

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	tokens map[string]TokenCache
}

func NewTokenManager(client birbank.ClientInterface) *TokenManager {
	return &TokenManager{
		client: client,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
		tokens: make(map[string]TokenCache),
	}
}

// connLock returns the mutex guarding one connection's token cache.
func (m *TokenManager) connLock(connID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[connID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[connID] = lock
	}
	return lock
}

// ValidToken returns a token usable right now, logging in when the cache is
// empty or stale. Login failures propagate unwrapped so callers can classify
// them (birbank.AuthError in particular).
func (m *TokenManager) ValidToken(ctx context.Context, conn *Connection) (string, error) {
	lock := m.connLock(conn.ID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	cached := m.tokens[conn.ID]
	m.mu.Unlock()

	if cached.Valid(m.now()) {
		return cached.Value, nil
	}

	result, err := m.client.Login(ctx, conn.Environment, conn.Username, conn.Secret)
	if err != nil {
		return "", err
	}

	ttl := DefaultTokenTTL
	if result.ExpiresIn > 0 {
		ttl = time.Duration(result.ExpiresIn) * time.Second
	}

	fresh := TokenCache{Value: result.Token, IssuedAt: m.now(), TTL: ttl}
	m.mu.Lock()
	m.tokens[conn.ID] = fresh
	m.mu.Unlock()

	log.Printf("Connection %s: token refreshed (ttl=%s)", conn.ID, ttl)
	return fresh.Value, nil
}

// Invalidate discards the cached token so the next ValidToken call logs in
// again. Used after the bank rejects a token mid-pass.
func (m *TokenManager) Invalidate(connID string) {
	m.mu.Lock()
	delete(m.tokens, connID)
	m.mu.Unlock()
}

// Forget drops all cached state for a deleted connection.
func (m *TokenManager) Forget(connID string) {
	m.mu.Lock()
	delete(m.tokens, connID)
	delete(m.locks, connID)
	m.mu.Unlock()
}
