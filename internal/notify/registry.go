package notify

import "sync"

// PushConn is one live push connection. The core only ever writes.
type PushConn interface {
	Send(payload []byte) error
}

// Registry tracks live push connections tagged with identity, role, and
// organization. It is constructed once per process and injected wherever
// push fan-out is needed; tests substitute an isolated instance.
type Registry struct {
	mu      sync.RWMutex
	nextID  int
	entries map[int]*registryEntry
}

type registryEntry struct {
	conn     PushConn
	identity string
	role     string
	orgID    string
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int]*registryEntry)}
}

// Register adds a live connection and returns its unregister function.
func (r *Registry) Register(conn PushConn, identity, role, orgID string) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.entries[id] = &registryEntry{conn: conn, identity: identity, role: role, orgID: orgID}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.entries, id)
		r.mu.Unlock()
	}
}

// ByRole returns every live connection matching both role and organization.
func (r *Registry) ByRole(role, orgID string) []PushConn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var conns []PushConn
	for _, e := range r.entries {
		if e.role == role && e.orgID == orgID {
			conns = append(conns, e.conn)
		}
	}
	return conns
}

// ByIdentity returns every live connection belonging to one party.
func (r *Registry) ByIdentity(identity string) []PushConn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var conns []PushConn
	for _, e := range r.entries {
		if e.identity == identity {
			conns = append(conns, e.conn)
		}
	}
	return conns
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
