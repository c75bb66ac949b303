package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Message handling outcomes used as the status label.
const (
	StatusOK      = "ok"
	StatusDropped = "dropped"
)

// Config configures the collector.
type Config struct {
	// Namespace prefixes every metric name (default: "collab").
	Namespace string

	// ConstLabels are added to all metrics.
	ConstLabels prometheus.Labels
}

// Option configures the collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// Collector holds the editor's Prometheus metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	activeSessions  prometheus.Gauge
	sessionsTotal   prometheus.Counter
	messagesTotal   *prometheus.CounterVec
	broadcastsTotal *prometheus.CounterVec
	recipientsTotal *prometheus.CounterVec
	sendDropped     prometheus.Counter
	wsErrors        *prometheus.CounterVec
}

// New registers the collector's metrics with reg.
func New(reg prometheus.Registerer, opts ...Option) *Collector {
	cfg := Config{Namespace: "collab"}
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(reg)

	return &Collector{
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "active_sessions",
			Help:        "Number of open editor sessions",
			ConstLabels: cfg.ConstLabels,
		}),
		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "sessions_total",
			Help:        "Total number of sessions opened",
			ConstLabels: cfg.ConstLabels,
		}),
		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "messages_total",
			Help:        "Inbound messages by type and outcome",
			ConstLabels: cfg.ConstLabels,
		}, []string{"type", "status"}),
		broadcastsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "broadcasts_total",
			Help:        "Broadcasts emitted by event type",
			ConstLabels: cfg.ConstLabels,
		}, []string{"type"}),
		recipientsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "broadcast_recipients_total",
			Help:        "Deliveries accepted by recipient queues, by event type",
			ConstLabels: cfg.ConstLabels,
		}, []string{"type"}),
		sendDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "send_dropped_total",
			Help:        "Events dropped because a recipient queue was full",
			ConstLabels: cfg.ConstLabels,
		}),
		wsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "websocket_errors_total",
			Help:        "WebSocket errors by kind",
			ConstLabels: cfg.ConstLabels,
		}, []string{"type"}),
	}
}

// SessionOpened records a session entering the open state.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.activeSessions.Inc()
	c.sessionsTotal.Inc()
}

// SessionClosed records a session leaving the registry.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.activeSessions.Dec()
}

// MessageHandled records an inbound message outcome. Unknown types are
// folded into "unknown" to keep label cardinality bounded.
func (c *Collector) MessageHandled(msgType, status string) {
	if c == nil {
		return
	}
	switch msgType {
	case "update", "cursor", "selection":
	default:
		msgType = "unknown"
	}
	c.messagesTotal.WithLabelValues(msgType, status).Inc()
}

// BroadcastSent records one broadcast and how many recipients accepted it.
func (c *Collector) BroadcastSent(msgType string, recipients int) {
	if c == nil {
		return
	}
	c.broadcastsTotal.WithLabelValues(msgType).Inc()
	c.recipientsTotal.WithLabelValues(msgType).Add(float64(recipients))
}

// SendDropped records an event rejected by a saturated recipient.
func (c *Collector) SendDropped() {
	if c == nil {
		return
	}
	c.sendDropped.Inc()
}

// WebSocketError records a transport error.
func (c *Collector) WebSocketError(kind string) {
	if c == nil {
		return
	}
	c.wsErrors.WithLabelValues(kind).Inc()
}

// NewRegistry returns a registry preloaded with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
