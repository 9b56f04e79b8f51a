package notify

import (
	"sync"
	"testing"
)

type nopConn struct{}

func (nopConn) Send(payload []byte) error { return nil }

func TestRegistry_RegisterAndFilter(t *testing.T) {
	r := NewRegistry()
	r.Register(nopConn{}, "u1", "admin", "org-1")
	r.Register(nopConn{}, "u2", "admin", "org-2")
	r.Register(nopConn{}, "u1", "requester", "org-1")

	if got := len(r.ByRole("admin", "org-1")); got != 1 {
		t.Errorf("ByRole(admin, org-1) = %d conns, want 1", got)
	}
	if got := len(r.ByIdentity("u1")); got != 2 {
		t.Errorf("ByIdentity(u1) = %d conns, want 2", got)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	unregister := r.Register(nopConn{}, "u1", "admin", "org-1")
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	unregister()
	if r.Len() != 0 {
		t.Errorf("Len = %d after unregister, want 0", r.Len())
	}
	unregister() // idempotent
	if r.Len() != 0 {
		t.Errorf("Len = %d after double unregister, want 0", r.Len())
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unregister := r.Register(nopConn{}, "u", "admin", "org-1")
			r.ByRole("admin", "org-1")
			unregister()
		}()
	}
	wg.Wait()
	if r.Len() != 0 {
		t.Errorf("Len = %d after concurrent churn, want 0", r.Len())
	}
}
