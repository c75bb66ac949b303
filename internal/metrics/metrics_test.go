package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.SessionOpened()
	c.SessionOpened()
	c.SessionClosed()
	c.MessageHandled("update", StatusOK)
	c.MessageHandled("bogus", StatusDropped)
	c.BroadcastSent("update", 3)
	c.SendDropped()

	if got := testutil.ToFloat64(c.activeSessions); got != 1 {
		t.Fatalf("expected 1 active session, got %v", got)
	}
	if got := testutil.ToFloat64(c.sessionsTotal); got != 2 {
		t.Fatalf("expected 2 sessions total, got %v", got)
	}
	if got := testutil.ToFloat64(c.messagesTotal.WithLabelValues("unknown", StatusDropped)); got != 1 {
		t.Fatalf("expected unknown type folded, got %v", got)
	}
	if got := testutil.ToFloat64(c.recipientsTotal.WithLabelValues("update")); got != 3 {
		t.Fatalf("expected 3 recipients, got %v", got)
	}
	if got := testutil.ToFloat64(c.sendDropped); got != 1 {
		t.Fatalf("expected 1 dropped send, got %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.SessionOpened()
	c.SessionClosed()
	c.MessageHandled("update", StatusOK)
	c.BroadcastSent("update", 1)
	c.SendDropped()
	c.WebSocketError("read")
}

func TestHandlerServesNamespacedMetrics(t *testing.T) {
	reg := NewRegistry()
	c := New(reg, WithNamespace("editor"))
	c.SessionOpened()

	resp := httptest.NewRecorder()
	Handler(reg).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "editor_active_sessions 1") {
		t.Fatalf("expected editor_active_sessions in output")
	}
}
