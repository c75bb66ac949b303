package ws

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// peer adapts a websocket connection to registry.Peer. Sends only enqueue;
// the connection's writer goroutine owns every write.
type peer struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

func newPeer(conn *websocket.Conn, buffer int) *peer {
	if buffer < 1 {
		buffer = 1
	}
	return &peer{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// Send queues payload, dropping it when the queue is full or the peer is closed.
func (p *peer) Send(payload []byte) bool {
	if p.closed.Load() {
		return false
	}
	select {
	case p.send <- payload:
		return true
	default:
		return false
	}
}

// Open reports whether the transport is still usable.
func (p *peer) Open() bool {
	return !p.closed.Load()
}

// shutdown marks the peer closed and stops its writer. The send channel is
// never closed so concurrent Sends stay safe.
func (p *peer) shutdown() {
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.done)
	})
}
