package scrape

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
	"github.com/couchwatch/couchwatch/internal/auth"
	"github.com/couchwatch/couchwatch/internal/config"
)

// fakeResolver hands out one pre-built adapter per platform.
type fakeResolver struct {
	adapters map[schemas.Platform]schemas.ServiceAdapter
}

func (f *fakeResolver) Resolve(platform schemas.Platform) (schemas.ServiceAdapter, error) {
	adapter, ok := f.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %q", platform)
	}
	return adapter, nil
}

type fakeResumeStore struct {
	saved map[schemas.Platform]schemas.ContinueWatchingData
}

func (f *fakeResumeStore) SaveResumeData(ctx context.Context, platform schemas.Platform, data schemas.ContinueWatchingData) error {
	if f.saved == nil {
		f.saved = make(map[schemas.Platform]schemas.ContinueWatchingData)
	}
	f.saved[platform] = data
	return nil
}

// batchFixture builds a batch runner around fake adapters so per-platform
// side effects stay observable.
type batchFixture struct {
	batch  *BatchRunner
	resume *fakeResumeStore
}

func newBatchFixture(t *testing.T, adapters map[schemas.Platform]*fakeAdapter) *batchFixture {
	t.Helper()

	resolved := make(map[schemas.Platform]schemas.ServiceAdapter, len(adapters))
	for p, a := range adapters {
		resolved[p] = a
	}

	factory := &freshContextFactory{}

	cfg := config.ScrapeConfig{
		ScreenshotDir:      t.TempDir(),
		NavigationTimeout:  time.Second,
		LoginSettleTimeout: time.Second,
		Stability: config.StabilityConfig{
			Interval:    10 * time.Millisecond,
			QuietPeriod: 20 * time.Millisecond,
			Timeout:     50 * time.Millisecond,
		},
	}
	sessions := &fakeSessionStore{}
	runner := NewRunner(factory, sessions, auth.NewOrchestrator(sessions, cfg, zap.NewNop()), cfg, zap.NewNop())

	resume := &fakeResumeStore{}
	return &batchFixture{
		batch:  NewBatchRunner(runner, &fakeResolver{adapters: resolved}, resume, zap.NewNop()),
		resume: resume,
	}
}

// freshContextFactory hands out a new fake context and page per call, the
// way the real factory launches a fresh browser process per platform.
type freshContextFactory struct{}

func (f *freshContextFactory) Create(ctx context.Context, state *schemas.SessionState) (schemas.BrowserContext, schemas.Page, error) {
	return &fakeContext{}, &fakePage{}, nil
}

func TestBatchRunAll(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	t.Run("one failing platform never stops the batch", func(t *testing.T) {
		adapters := map[schemas.Platform]*fakeAdapter{
			schemas.PlatformNetflix: {
				platform:  schemas.PlatformNetflix,
				railFound: true,
				items:     []schemas.ContinueWatchingItem{{Title: "Dark", Href: "/watch/80100172"}},
			},
			schemas.PlatformHBO: {
				platform:   schemas.PlatformHBO,
				extractErr: errors.New("tile list never rendered"),
			},
			schemas.PlatformDisney: {
				platform:  schemas.PlatformDisney,
				railFound: true,
				items:     []schemas.ContinueWatchingItem{{Title: "Andor", Href: "/series/andor"}},
			},
		}
		fx := newBatchFixture(t, adapters)

		order := []schemas.Platform{schemas.PlatformNetflix, schemas.PlatformHBO, schemas.PlatformDisney}
		summary, err := fx.batch.RunAll(ctx, order)

		require.Error(t, err)
		var batchErr *BatchError
		require.ErrorAs(t, err, &batchErr)
		require.Len(t, batchErr.Failures, 1)
		assert.Equal(t, schemas.PlatformHBO, batchErr.Failures[0].Platform)
		assert.Contains(t, err.Error(), "hbo")

		assert.Equal(t, 2, summary.Succeeded)
		assert.Equal(t, 1, summary.Failed)
		assert.Len(t, summary.Results, 2)

		// Every platform got its attempt and its result persisted.
		assert.Contains(t, fx.resume.saved, schemas.PlatformNetflix)
		assert.Contains(t, fx.resume.saved, schemas.PlatformDisney)
		assert.NotContains(t, fx.resume.saved, schemas.PlatformHBO)
	})

	t.Run("clean batch reports no error", func(t *testing.T) {
		adapters := map[schemas.Platform]*fakeAdapter{
			schemas.PlatformNetflix: {platform: schemas.PlatformNetflix, railFound: true},
		}
		fx := newBatchFixture(t, adapters)

		summary, err := fx.batch.RunAll(ctx, []schemas.Platform{schemas.PlatformNetflix})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Succeeded)
		assert.Zero(t, summary.Failed)
	})

	t.Run("unregistered platform counts as a failure", func(t *testing.T) {
		fx := newBatchFixture(t, map[schemas.Platform]*fakeAdapter{})

		summary, err := fx.batch.RunAll(ctx, []schemas.Platform{schemas.PlatformParamount})
		require.Error(t, err)
		assert.Equal(t, 1, summary.Failed)
	})

	t.Run("canceled context stops between platforms", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		fx := newBatchFixture(t, map[schemas.Platform]*fakeAdapter{
			schemas.PlatformNetflix: {platform: schemas.PlatformNetflix},
		})

		_, err := fx.batch.RunAll(canceled, []schemas.Platform{schemas.PlatformNetflix})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBatchErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	batchErr := &BatchError{Failures: []PlatformFailure{
		{Platform: schemas.PlatformHBO, Err: inner},
	}}
	assert.ErrorIs(t, batchErr, inner)
}
