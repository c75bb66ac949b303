package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/collabpad/backend/internal/model/session"
)

// Peer is the transport handle a session is keyed by.
type Peer interface {
	// Send queues one serialized event without blocking. It reports false
	// when the event was not accepted.
	Send(payload []byte) bool
	// Open reports whether the transport can still carry events.
	Open() bool
}

// IDGenerator produces session identifiers. Implementations must never
// return the same value twice within a process.
type IDGenerator func() string

// Registry tracks live sessions in insertion order.
type Registry struct {
	mu      sync.RWMutex
	newID   IDGenerator
	order   []Peer
	entries map[Peer]*session.Session
}

// New builds an empty registry. A nil generator falls back to random UUIDs.
func New(newID IDGenerator) *Registry {
	if newID == nil {
		newID = uuid.NewString
	}
	return &Registry{
		newID:   newID,
		entries: make(map[Peer]*session.Session),
	}
}

// Register stores a session for peer and returns its fresh id. Registering
// a peer twice keeps the original entry.
func (r *Registry) Register(peer Peer) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[peer]; ok {
		return existing.ID
	}

	s := &session.Session{
		ID:          r.newID(),
		ConnectedAt: time.Now().UTC(),
	}
	r.entries[peer] = s
	r.order = append(r.order, peer)
	return s.ID
}

// SetCursor records the last pointer position of peer. Unknown peers are ignored.
func (r *Registry) SetCursor(peer Peer, cursor session.Cursor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.entries[peer]
	if !ok {
		return false
	}
	c := cursor
	s.CursorPosition = &c
	return true
}

// Remove deletes the session of peer, returning it when it existed.
func (r *Registry) Remove(peer Peer) (session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.entries[peer]
	if !ok {
		return session.Session{}, false
	}
	delete(r.entries, peer)
	for i, p := range r.order {
		if p == peer {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *s, true
}

// Lookup returns a copy of the session registered for peer.
func (r *Registry) Lookup(peer Peer) (session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.entries[peer]
	if !ok {
		return session.Session{}, false
	}
	return *s, true
}

// List returns the user list snapshot in insertion order.
func (r *Registry) List() []session.UserInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]session.UserInfo, 0, len(r.order))
	for _, p := range r.order {
		users = append(users, r.entries[p].Info())
	}
	return users
}

// Peers returns the registered handles in insertion order.
func (r *Registry) Peers() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Peer(nil), r.order...)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
