package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/collabpad/backend/internal/config"
	"github.com/zhouzirui/collabpad/backend/internal/metrics"
	"github.com/zhouzirui/collabpad/backend/internal/service/collab"
)

// Handler WebSocket 协同编辑处理器
type Handler struct {
	svc      *collab.Service
	cfg      config.SessionConfig
	metrics  *metrics.Collector
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器。checkOrigin 为 nil 时接受所有来源。
func New(svc *collab.Service, cfg config.SessionConfig, checkOrigin func(r *http.Request) bool, m *metrics.Collector) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Handler{
		svc:     svc,
		cfg:     cfg,
		metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.ServeHTTP)
}

// ServeHTTP upgrades the request and runs the session until the transport closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		h.metrics.WebSocketError("upgrade")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	p := newPeer(conn, h.cfg.SendBuffer)
	c := h.svc.Attach(p)

	defer func() {
		p.shutdown()
		c.Close(context.Background())
		cancel()
		conn.Close()
	}()

	go h.writeLoop(ctx, p)

	id, err := c.Open(ctx)
	if err != nil {
		log.Printf("[ws] open failed: %v", err)
		return
	}
	log.Printf("[ws] new connection session=%s remote=%s", id, r.RemoteAddr)

	conn.SetReadLimit(h.cfg.MaxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error session=%s: %v", id, err)
				h.metrics.WebSocketError("read")
			}
			log.Printf("[ws] connection closed session=%s", id)
			return
		}

		conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))

		if err := c.Receive(ctx, data); err != nil {
			log.Printf("[ws] dropped message session=%s: %v", id, err)
		}
	}
}

// writeLoop drains the peer's queue and sends keepalive pings. A failed
// write closes the connection, which ends the read loop and runs cleanup.
func (h *Handler) writeLoop(ctx context.Context, p *peer) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case payload := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := p.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.writeFailed(p, err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := p.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				h.writeFailed(p, err)
				return
			}
		}
	}
}

func (h *Handler) writeFailed(p *peer, err error) {
	log.Printf("[ws] write failed: %v", err)
	h.metrics.WebSocketError("write")
	p.shutdown()
	p.conn.Close()
}
