package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zhouzirui/collabpad/backend/internal/config"
	"github.com/zhouzirui/collabpad/backend/internal/handler/api"
	"github.com/zhouzirui/collabpad/backend/internal/handler/ws"
	"github.com/zhouzirui/collabpad/backend/internal/metrics"
	middlewarePkg "github.com/zhouzirui/collabpad/backend/internal/middleware"
	"github.com/zhouzirui/collabpad/backend/internal/service/collab"
	"github.com/zhouzirui/collabpad/backend/pkg/utils"
	"github.com/zhouzirui/collabpad/backend/web"
)

// NewRouter wires HTTP routes to the collaboration service. gatherer may be
// nil, in which case no metrics endpoint is mounted.
func NewRouter(cfg *config.Config, svc *collab.Service, m *metrics.Collector, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	checkOrigin := func(r *http.Request) bool {
		return cfg.Server.OriginAllowed(r.Header.Get("Origin"))
	}
	wsHandler := ws.New(svc, cfg.Session, checkOrigin, m)
	apiHandler := api.New(svc)
	static := web.Handler(cfg.Server.StaticDir)

	wsHandler.RegisterRoutes(r)

	// Older clients dial the site root directly.
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		if websocket.IsWebSocketUpgrade(req) {
			wsHandler.ServeHTTP(w, req)
			return
		}
		static.ServeHTTP(w, req)
	})
	r.Handle("/*", static)

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.CORS)
		api.NotFound(utils.NotFound)
		api.MethodNotAllowed(utils.MethodNotAllowed)
		apiHandler.RegisterRoutes(api)
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": svc.Sessions(),
		})
	})

	if cfg.Metrics.Enabled && gatherer != nil {
		r.Handle(cfg.Metrics.Path, metrics.Handler(gatherer))
	}

	return r
}
