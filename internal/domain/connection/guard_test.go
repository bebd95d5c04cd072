package connection

import (
	"errors"
	"sync"
	"testing"
)

func TestGuard_RejectsSecondAcquire(t *testing.T) {
	g := NewGuard()

	if err := g.Acquire("conn-1"); err != nil {
		t.Fatalf("first Acquire() failed: %v", err)
	}

	err := g.Acquire("conn-1")
	if !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("second Acquire() error = %v, want ErrSyncInProgress", err)
	}
}

func TestGuard_ConnectionsIndependent(t *testing.T) {
	g := NewGuard()

	if err := g.Acquire("conn-1"); err != nil {
		t.Fatalf("Acquire(conn-1) failed: %v", err)
	}
	if err := g.Acquire("conn-2"); err != nil {
		t.Errorf("Acquire(conn-2) failed while conn-1 held: %v", err)
	}
}

func TestGuard_ReleaseAllowsReacquire(t *testing.T) {
	g := NewGuard()

	if err := g.Acquire("conn-1"); err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	g.Release("conn-1")

	if err := g.Acquire("conn-1"); err != nil {
		t.Errorf("Acquire() after Release() failed: %v", err)
	}
}

func TestGuard_Busy(t *testing.T) {
	g := NewGuard()

	if g.Busy("conn-1") {
		t.Error("Busy() = true before Acquire")
	}

	g.Acquire("conn-1")
	if !g.Busy("conn-1") {
		t.Error("Busy() = false while held")
	}

	g.Release("conn-1")
	if g.Busy("conn-1") {
		t.Error("Busy() = true after Release")
	}
}

func TestGuard_ConcurrentAcquireSingleWinner(t *testing.T) {
	g := NewGuard()

	const callers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Acquire("conn-1"); err == nil {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if acquired != 1 {
		t.Errorf("%d concurrent Acquire() calls succeeded, want exactly 1", acquired)
	}
}
