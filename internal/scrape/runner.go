// File: internal/scrape/runner.go

// Package scrape coordinates a full continue-watching run for one platform:
// context acquisition, authentication, rail extraction, normalization and
// session persistence. Failure policy is fail-fast with no retries; the one
// guaranteed side effect on every exit path is releasing the browser context.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
	"github.com/couchwatch/couchwatch/internal/auth"
	"github.com/couchwatch/couchwatch/internal/config"
)

// AdapterResolver maps a platform to its registered adapter.
type AdapterResolver interface {
	Resolve(platform schemas.Platform) (schemas.ServiceAdapter, error)
}

// Result summarizes one completed platform run.
type Result struct {
	RunID     string
	Platform  schemas.Platform
	Data      schemas.ContinueWatchingData
	RailFound bool
	Duration  time.Duration
}

// Runner executes the scrape pipeline for a single platform at a time.
type Runner struct {
	factory  schemas.BrowserFactory
	sessions schemas.SessionStore
	auth     *auth.Orchestrator
	cfg      config.ScrapeConfig
	logger   *zap.Logger
}

// NewRunner wires the scrape pipeline.
func NewRunner(factory schemas.BrowserFactory, sessions schemas.SessionStore, authOrch *auth.Orchestrator, cfg config.ScrapeConfig, logger *zap.Logger) *Runner {
	return &Runner{
		factory:  factory,
		sessions: sessions,
		auth:     authOrch,
		cfg:      cfg,
		logger:   logger.Named("scrape"),
	}
}

// Run performs one full scrape of the adapter's platform. A missing
// continue-watching rail is a valid empty result, not an error. On failure a
// diagnostic screenshot is captured best-effort and the original error is
// returned unmodified.
func (r *Runner) Run(ctx context.Context, adapter schemas.ServiceAdapter) (result *Result, err error) {
	platform := adapter.Platform()
	runID := uuid.New().String()
	log := r.logger.With(
		zap.String("platform", platform.String()),
		zap.String("run_id", runID),
	)
	started := time.Now()

	state, err := r.sessions.LoadSessionState(ctx, platform)
	if err != nil {
		return nil, err
	}

	bc, page, err := r.factory.Create(ctx, state)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Cleanup must run even when the caller's context is already dead.
		cleanupCtx := context.WithoutCancel(ctx)
		if err != nil {
			r.captureDiagnostic(cleanupCtx, log, platform, page)
		}
		if cerr := bc.Close(cleanupCtx); cerr != nil {
			log.Error("Failed to release browser context.", zap.Error(cerr))
		}
	}()

	if err = page.Navigate(ctx, adapter.BrowseURL()); err != nil {
		return nil, err
	}

	if err = r.auth.EnsureAuthenticated(ctx, adapter, page); err != nil {
		return nil, err
	}

	// Login and profile flows can strand the page on an account or profile
	// document; land back on the browse surface before extracting.
	if err = page.Navigate(ctx, adapter.BrowseURL()); err != nil {
		return nil, err
	}

	// Rails mount late on every platform; residual DOM churn is tolerated
	// but a hard failure of the stability probe itself is not.
	if serr := page.WaitStable(ctx); serr != nil {
		if !errors.Is(serr, schemas.ErrDOMUnstable) {
			err = serr
			return nil, err
		}
		log.Warn("Page content did not stabilize; extracting anyway.", zap.Error(serr))
	}

	items, railFound, err := adapter.ExtractContinueWatching(ctx, page)
	if err != nil {
		return nil, err
	}
	if !railFound {
		log.Info("Continue-watching rail not present; treating as empty result.")
	}

	data, err := adapter.FormatRawContinueWatchingData(ctx, items, page)
	if err != nil {
		return nil, err
	}

	// Extraction touched the platform; snapshot whatever auth material it
	// refreshed along the way.
	snapshot, err := page.SessionState(ctx)
	if err != nil {
		return nil, err
	}
	if err = r.sessions.SaveSessionState(ctx, platform, snapshot); err != nil {
		return nil, err
	}

	result = &Result{
		RunID:     runID,
		Platform:  platform,
		Data:      data,
		RailFound: railFound,
		Duration:  time.Since(started),
	}
	log.Info("Scrape complete",
		zap.Int("items", len(data)),
		zap.Bool("rail_found", railFound),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// captureDiagnostic writes a full-page screenshot for a failed run. Strictly
// best-effort; a capture failure only logs.
func (r *Runner) captureDiagnostic(ctx context.Context, log *zap.Logger, platform schemas.Platform, page schemas.Page) {
	buf, err := page.Screenshot(ctx)
	if err != nil {
		log.Warn("Failed to capture diagnostic screenshot.", zap.Error(err))
		return
	}

	if err := os.MkdirAll(r.cfg.ScreenshotDir, 0o755); err != nil {
		log.Warn("Failed to create screenshot directory.", zap.Error(err))
		return
	}

	name := fmt.Sprintf("%s_%s.png", platform, diagnosticTimestamp(time.Now()))
	path := filepath.Join(r.cfg.ScreenshotDir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		log.Warn("Failed to write diagnostic screenshot.", zap.Error(err))
		return
	}
	log.Info("Diagnostic screenshot captured.", zap.String("path", path))
}

var timestampSanitizer = strings.NewReplacer(":", "-", ".", "-")

// diagnosticTimestamp renders a filesystem-safe UTC timestamp.
func diagnosticTimestamp(t time.Time) string {
	return timestampSanitizer.Replace(t.UTC().Format("2006-01-02T15:04:05.000Z"))
}
