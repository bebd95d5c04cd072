package connection

import "sync"

// Guard enforces one sync pass per connection at a time. A second trigger
// for the same connection is rejected with ErrSyncInProgress rather than
// queued; sync passes for different connections run independently.
type Guard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{active: make(map[string]struct{})}
}

// Acquire claims the connection for the caller. The caller must Release
// with the same ID when the pass ends, success or not.
func (g *Guard) Acquire(connID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.active[connID]; busy {
		return ErrSyncInProgress
	}
	g.active[connID] = struct{}{}
	return nil
}

func (g *Guard) Release(connID string) {
	g.mu.Lock()
	delete(g.active, connID)
	g.mu.Unlock()
}

// Busy reports whether a pass is currently running for the connection.
func (g *Guard) Busy(connID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.active[connID]
	return busy
}
