package collab

import (
	"context"
	"sync"

	"github.com/zhouzirui/collabpad/backend/internal/service/registry"
)

// State is the lifecycle position of one connection.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn drives one connection through connecting → open → closed.
type Conn struct {
	svc  *Service
	peer registry.Peer

	mu    sync.Mutex
	state State
	id    string
}

// Open registers the session and sends it the init event.
func (c *Conn) Open(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnecting {
		return "", ErrAlreadyOpened
	}
	c.id = c.svc.open(c.peer)
	c.state = StateOpen
	return c.id, nil
}

// Receive handles one inbound frame. A returned error means the frame was
// dropped; the connection stays usable.
func (c *Conn) Receive(ctx context.Context, raw []byte) error {
	c.mu.Lock()
	state, id := c.state, c.id
	c.mu.Unlock()

	if state != StateOpen {
		return ErrNotOpen
	}
	return c.svc.receive(ctx, c.peer, id, raw)
}

// Close removes the session and notifies the remaining ones. Safe to call
// more than once; only the first call broadcasts.
func (c *Conn) Close(_ context.Context) {
	c.mu.Lock()
	prev := c.state
	c.state = StateClosed
	c.mu.Unlock()

	if prev != StateOpen {
		return
	}
	c.svc.close(c.peer)
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ID returns the session id, empty before Open.
func (c *Conn) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}
