package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zhouzirui/collabpad/backend/internal/config"
	"github.com/zhouzirui/collabpad/backend/internal/handler"
	"github.com/zhouzirui/collabpad/backend/internal/metrics"
	"github.com/zhouzirui/collabpad/backend/internal/service/collab"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	var (
		collector *metrics.Collector
		gatherer  prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg := metrics.NewRegistry()
		collector = metrics.New(reg)
		gatherer = reg
		log.Printf("metrics exposed on %s", cfg.Metrics.Path)
	} else {
		log.Println("metrics disabled by configuration")
	}

	collabService := collab.NewService(collab.WithMetrics(collector))

	router := handler.NewRouter(cfg, collabService, collector, gatherer)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Collabpad server listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// runServer blocks until ctx is cancelled or the listener fails. Hijacked
// websocket connections are not tracked by Shutdown; they end with the process.
func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
