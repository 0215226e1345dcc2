// File: internal/auth/orchestrator.go

// Package auth drives a platform from whatever state a freshly seeded
// browser context lands in to an authenticated, profile-resolved page. It is
// a strict fail-fast state machine: no retries, no credential prompting, no
// partial recovery.
package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
	"github.com/couchwatch/couchwatch/internal/config"
)

// State names one position in the authentication flow. Transitions are
// strictly forward; a failed step moves to StateFailed and the run aborts.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateLoggingIn       State = "logging_in"
	StateProfileGate     State = "profile_gate"
	StateReady           State = "ready"
	StateFailed          State = "failed"
)

// Orchestrator resolves authentication for one page at a time. It owns no
// browser resources; the caller acquires and releases the context.
type Orchestrator struct {
	sessions schemas.SessionStore
	cfg      config.ScrapeConfig
	logger   *zap.Logger
}

// NewOrchestrator wires the authentication state machine. The session store
// receives a snapshot whenever a fresh login produced new auth material.
func NewOrchestrator(sessions schemas.SessionStore, cfg config.ScrapeConfig, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.Named("auth"),
	}
}

// EnsureAuthenticated takes a page that has already landed on the platform's
// browse URL and returns once the platform is ready to scrape: logged in and
// past any profiles gate. A page that is already authenticated short-circuits
// without touching the login flow. Errors propagate unmodified so the caller
// can classify them with errors.Is/errors.As.
func (o *Orchestrator) EnsureAuthenticated(ctx context.Context, adapter schemas.ServiceAdapter, page schemas.Page) error {
	platform := adapter.Platform()
	log := o.logger.With(zap.String("platform", platform.String()))

	state := StateUnauthenticated
	freshLogin := false

	loggedIn, err := adapter.IsLoggedIn(ctx, page)
	if err != nil {
		return o.fail(log, state, fmt.Errorf("login check failed: %w", err))
	}

	if !loggedIn {
		state = o.transition(log, state, StateLoggingIn)
		if err := adapter.Login(ctx, page); err != nil {
			return o.fail(log, state, err)
		}
		freshLogin = true

		// Post-login redirects can chain through several documents; give
		// the final one time to load before probing for a profiles gate.
		if err := page.WaitDOMContentLoaded(ctx, o.cfg.LoginSettleTimeout); err != nil {
			return o.fail(log, state, &schemas.AuthenticationError{
				Platform: platform,
				Reason:   "page did not settle after login",
				Err:      err,
			})
		}
	}

	if adapter.SupportsProfiles() {
		gated, err := adapter.IsProfilesGate(ctx, page)
		if err != nil {
			return o.fail(log, state, fmt.Errorf("profiles gate check failed: %w", err))
		}
		if gated {
			state = o.transition(log, state, StateProfileGate)
			if err := adapter.SelectProfile(ctx, page, o.cfg.ProfileName); err != nil {
				return o.fail(log, state, err)
			}
			if err := page.WaitDOMContentLoaded(ctx, o.cfg.NavigationTimeout); err != nil {
				return o.fail(log, state, fmt.Errorf("page did not settle after profile selection: %w", err))
			}
		}
	}

	state = o.transition(log, state, StateReady)

	// Session material is refreshed after every successful auth pass, not
	// only after a fresh login, so later runs benefit from rotated cookies
	// even when extraction fails downstream.
	snapshot, err := page.SessionState(ctx)
	if err != nil {
		return o.fail(log, state, err)
	}
	if err := o.sessions.SaveSessionState(ctx, platform, snapshot); err != nil {
		return o.fail(log, state, err)
	}

	log.Info("Platform authenticated", zap.Bool("fresh_login", freshLogin))
	return nil
}

func (o *Orchestrator) transition(log *zap.Logger, from, to State) State {
	log.Debug("Auth state transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return to
}

// fail logs the terminal transition and hands the error back untouched.
func (o *Orchestrator) fail(log *zap.Logger, from State, err error) error {
	log.Warn("Auth state transition",
		zap.String("from", string(from)),
		zap.String("to", string(StateFailed)),
		zap.Error(err),
	)
	return err
}
