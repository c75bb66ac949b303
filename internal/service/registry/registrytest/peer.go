// Package registrytest provides an in-memory peer for exercising the
// registry, broadcaster and protocol handler without a network.
package registrytest

import (
	"sync"

	"github.com/zhouzirui/collabpad/backend/internal/model/message"
)

// Peer records every payload it accepts.
type Peer struct {
	mu       sync.Mutex
	payloads [][]byte
	closed   bool
	full     bool
}

// NewPeer returns an open peer.
func NewPeer() *Peer {
	return &Peer{}
}

// Send implements registry.Peer.
func (p *Peer) Send(payload []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.full {
		return false
	}
	p.payloads = append(p.payloads, append([]byte(nil), payload...))
	return true
}

// Open implements registry.Peer.
func (p *Peer) Open() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

// Close marks the transport closed.
func (p *Peer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// SetFull makes Send reject payloads as a saturated queue would.
func (p *Peer) SetFull(full bool) {
	p.mu.Lock()
	p.full = full
	p.mu.Unlock()
}

// Payloads returns a copy of the accepted payloads.
func (p *Peer) Payloads() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.payloads...)
}

// Events decodes the accepted payloads, skipping anything unparsable.
func (p *Peer) Events() []message.Event {
	var events []message.Event
	for _, raw := range p.Payloads() {
		if ev, err := message.ParseEvent(raw); err == nil {
			events = append(events, ev)
		}
	}
	return events
}

// EventsOfType filters Events by discriminator.
func (p *Peer) EventsOfType(msgType string) []message.Event {
	var out []message.Event
	for _, ev := range p.Events() {
		if ev.Type == msgType {
			out = append(out, ev)
		}
	}
	return out
}

// Reset forgets recorded payloads.
func (p *Peer) Reset() {
	p.mu.Lock()
	p.payloads = nil
	p.mu.Unlock()
}
