// File: internal/platforms/registry.go

// Package platforms holds the per-provider adapters and the registry that
// hands them to the orchestration layer. Adapters encode selectors, URLs and
// flow quirks; everything generic lives in the scrape and auth packages.
package platforms

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
)

// gateDetector is implemented by adapters whose profiles-gate detection is
// live. The registry uses it to refuse half-wired adapters: a live detector
// paired with a stub SelectProfile would hang every run that hits the gate.
type gateDetector interface {
	DetectsProfilesGate() bool
}

// Registry holds the registered adapters keyed by platform.
type Registry struct {
	adapters map[schemas.Platform]schemas.ServiceAdapter
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		adapters: make(map[schemas.Platform]schemas.ServiceAdapter),
		logger:   logger.Named("platforms"),
	}
}

// Register validates and installs an adapter. Registering the same platform
// twice, or an adapter that detects a profiles gate it cannot resolve, is a
// configuration error surfaced at startup rather than mid-run.
func (r *Registry) Register(adapter schemas.ServiceAdapter) error {
	platform := adapter.Platform()
	if _, exists := r.adapters[platform]; exists {
		return fmt.Errorf("adapter for %s already registered", platform)
	}

	if d, ok := adapter.(gateDetector); ok && d.DetectsProfilesGate() && !adapter.SupportsProfiles() {
		return fmt.Errorf("adapter for %s detects a profiles gate but does not implement profile selection", platform)
	}

	r.adapters[platform] = adapter
	r.logger.Debug("Adapter registered",
		zap.String("platform", platform.String()),
		zap.Bool("profiles", adapter.SupportsProfiles()),
	)
	return nil
}

// Resolve returns the adapter for a platform.
func (r *Registry) Resolve(platform schemas.Platform) (schemas.ServiceAdapter, error) {
	adapter, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %q", platform)
	}
	return adapter, nil
}

// Platforms lists the registered platforms in stable order.
func (r *Registry) Platforms() []schemas.Platform {
	out := make([]schemas.Platform, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewDefaultRegistry builds a registry with every shipped adapter installed.
func NewDefaultRegistry(creds schemas.CredentialStore, logger *zap.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	adapters := []schemas.ServiceAdapter{
		NewNetflix(creds, logger),
		NewPrime(creds, logger),
		NewHBO(creds, logger),
		NewApple(creds, logger),
		NewDisney(creds, logger),
		NewParamount(logger),
	}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}
