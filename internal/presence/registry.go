package presence

import "sync"

// Conn is one live realtime connection for a user. The transport layer
// provides the implementation (a websocket in production, a fake in tests).
type Conn interface {
	// Send queues an already-encoded event for delivery. It must not
	// block: a connection that cannot accept the event returns an error
	// and the event is dropped for that handle.
	Send(event []byte) error
	// Close tears the connection down. Safe to call more than once.
	Close()
}

// Registry tracks the set of live connections per user. A user may hold
// several at once (multi-device). State is entirely transient and rebuilt
// from empty on process restart.
type Registry struct {
	mu    sync.RWMutex
	conns map[uint64]map[Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uint64]map[Conn]struct{})}
}

// Register adds a connection under the user. Never rejects.
func (r *Registry) Register(userID uint64, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[userID] = set
	}
	set[c] = struct{}{}
}

// Remove drops one connection. When the last one for a user goes, the
// entry is purged and the user is fully offline.
func (r *Registry) Remove(userID uint64, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
}

// HandlesFor returns a snapshot of the user's live connections. The
// returned slice is owned by the caller; registry mutations after the
// call do not affect it. Unknown users yield an empty slice.
func (r *Registry) HandlesFor(userID uint64) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.conns[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Online reports whether the user has at least one live connection.
func (r *Registry) Online(userID uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// ActiveUsers returns how many users currently hold at least one connection.
func (r *Registry) ActiveUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
