// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/matthewbaird/adbatch/internal/activity"
	"github.com/matthewbaird/adbatch/internal/batch"
	"github.com/matthewbaird/adbatch/internal/eventbus"
	"github.com/matthewbaird/adbatch/internal/fieldschema"
	"github.com/matthewbaird/adbatch/internal/handler"
	"github.com/matthewbaird/adbatch/internal/stage"
)

// Config holds server configuration.
type Config struct {
	Port         string
	Platform     string
	Stager       *stage.Stager
	Store        *batch.Store
	Registry     *fieldschema.Registry
	Bus          *eventbus.Bus
	Activity     activity.Store
	RateLimitRPS float64
	Logger       logrus.FieldLogger
}

// NewRouter registers every route and wraps them with middleware.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(handler.Recovery(cfg.Logger), handler.Logging(cfg.Logger))
	if cfg.RateLimitRPS > 0 {
		burst := int(cfg.RateLimitRPS * 2)
		r.Use(handler.NewRateLimiter(cfg.RateLimitRPS, burst, 10*time.Minute).Middleware(cfg.Logger))
	}

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	bh := handler.NewBatchHandler(cfg.Stager, cfg.Store, cfg.Registry, cfg.Platform, cfg.Logger)
	feed := handler.NewFeed(cfg.Bus, cfg.Store, cfg.Logger)
	var history http.Handler
	if cfg.Activity != nil {
		history = handler.NewActivityHandler(cfg.Activity, cfg.Store, cfg.Logger)
	}
	r.Route("/v1", func(r chi.Router) {
		bh.Routes(r, feed, history)
	})
	return r
}

// Run starts the HTTP server and shuts it down when ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	cfg.Logger.WithField("addr", addr).Info("starting server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
