// File: internal/server/server.go

// Package server exposes the HTTP trigger surface: per-platform scrape
// endpoints, a credential entry form, and the scheduled all-platform batch.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
	"github.com/couchwatch/couchwatch/internal/config"
	"github.com/couchwatch/couchwatch/internal/scrape"
)

const shutdownGrace = 15 * time.Second

// Server wires the HTTP routes to the scrape pipeline.
type Server struct {
	cfg      config.ServerConfig
	runner   *scrape.Runner
	batch    *scrape.BatchRunner
	resolver scrape.AdapterResolver
	creds    schemas.CredentialStore
	resume   schemas.ResumeDataStore
	enabled  []schemas.Platform
	logger   *zap.Logger

	// scrapeMu serializes browser work. One browser process at a time keeps
	// memory bounded; concurrent triggers get 409 rather than a queue.
	scrapeMu sync.Mutex
}

// New wires the server. enabled is the batch execution order.
func New(
	cfg config.ServerConfig,
	runner *scrape.Runner,
	batch *scrape.BatchRunner,
	resolver scrape.AdapterResolver,
	creds schemas.CredentialStore,
	resume schemas.ResumeDataStore,
	enabled []schemas.Platform,
	logger *zap.Logger,
) *Server {
	return &Server{
		cfg:      cfg,
		runner:   runner,
		batch:    batch,
		resolver: resolver,
		creds:    creds,
		resume:   resume,
		enabled:  enabled,
		logger:   logger.Named("server"),
	}
}

// Router builds the route table. Health stays outside the auth gate;
// everything else requires the API key or an allowlisted caller.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	protected := r.NewRoute().Subrouter()
	protected.Use(s.authMiddleware)
	protected.HandleFunc("/batch", s.handleBatch).Methods(http.MethodPost)
	protected.HandleFunc("/{platform}/scrape", s.handleScrape).Methods(http.MethodGet)
	protected.HandleFunc("/{platform}/login", s.handleLoginForm).Methods(http.MethodGet)
	protected.HandleFunc("/{platform}/login", s.handleLoginSubmit).Methods(http.MethodPost)
	return r
}

// Run serves until ctx is canceled, then shuts down gracefully. When a batch
// interval is configured the all-platform scrape runs on that schedule.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cfg.BatchInterval > 0 {
		go s.runSchedule(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("HTTP server stopped.")
	return nil
}

// runSchedule fires the batch on the configured interval. Overlap is
// impossible: the scrape mutex is held for the duration of each batch.
func (s *Server) runSchedule(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.BatchInterval)
	defer ticker.Stop()

	s.logger.Info("Batch schedule active", zap.Duration("interval", s.cfg.BatchInterval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.scrapeMu.Lock()
		summary, err := s.batch.RunAll(ctx, s.enabled)
		s.scrapeMu.Unlock()

		var batchErr *scrape.BatchError
		switch {
		case err == nil:
			s.logger.Info("Scheduled batch succeeded", zap.Int("platforms", summary.Succeeded))
		case errors.As(err, &batchErr):
			s.logger.Warn("Scheduled batch finished with failures",
				zap.Int("succeeded", summary.Succeeded),
				zap.Int("failed", summary.Failed),
				zap.Error(err),
			)
		default:
			s.logger.Error("Scheduled batch aborted.", zap.Error(err))
		}
	}
}
