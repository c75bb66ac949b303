package broadcast

import (
	"encoding/json"
	"log"

	"github.com/zhouzirui/collabpad/backend/internal/metrics"
	"github.com/zhouzirui/collabpad/backend/internal/service/registry"
)

// Engine fans events out to the sessions of a registry.
type Engine struct {
	registry *registry.Registry
	metrics  *metrics.Collector
}

// New builds an engine over reg. m may be nil.
func New(reg *registry.Registry, m *metrics.Collector) *Engine {
	return &Engine{registry: reg, metrics: m}
}

// Broadcast serializes event once and offers it to every open peer except
// exclude, which may be nil. Closed peers are skipped but stay registered;
// removal belongs to the transport's close path. It returns the number of
// peers that accepted the event.
func (e *Engine) Broadcast(msgType string, event any, exclude registry.Peer) int {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[broadcast] marshal %s failed: %v", msgType, err)
		return 0
	}

	delivered := 0
	for _, peer := range e.registry.Peers() {
		if exclude != nil && peer == exclude {
			continue
		}
		if !peer.Open() {
			continue
		}
		if !peer.Send(payload) {
			e.metrics.SendDropped()
			continue
		}
		delivered++
	}
	e.metrics.BroadcastSent(msgType, delivered)
	return delivered
}

// Send offers event to a single peer.
func (e *Engine) Send(peer registry.Peer, event any) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[broadcast] marshal direct event failed: %v", err)
		return false
	}
	if !peer.Open() {
		return false
	}
	if !peer.Send(payload) {
		e.metrics.SendDropped()
		return false
	}
	return true
}
