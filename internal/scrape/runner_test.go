package scrape

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
	"github.com/couchwatch/couchwatch/internal/auth"
	"github.com/couchwatch/couchwatch/internal/config"
)

type fakePage struct {
	stableErr       error
	screenshotCalls int
	screenshotErr   error
	navigations     []string
}

func (f *fakePage) Navigate(ctx context.Context, url string) error {
	f.navigations = append(f.navigations, url)
	return nil
}
func (f *fakePage) URL(ctx context.Context) (string, error)        { return "https://example.com", nil }
func (f *fakePage) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	return nil
}
func (f *fakePage) IsVisible(ctx context.Context, sel string) (bool, error) { return false, nil }
func (f *fakePage) Count(ctx context.Context, sel string) (int, error)      { return 0, nil }
func (f *fakePage) Attribute(ctx context.Context, sel, name string) (string, bool, error) {
	return "", false, nil
}
func (f *fakePage) Fill(ctx context.Context, sel, value string, timeout time.Duration) error {
	return nil
}
func (f *fakePage) Click(ctx context.Context, sel string, timeout time.Duration) error { return nil }
func (f *fakePage) ClickText(ctx context.Context, sel, text string) (bool, error)      { return true, nil }
func (f *fakePage) WaitURLMatch(ctx context.Context, pattern *regexp.Regexp, timeout time.Duration) error {
	return nil
}
func (f *fakePage) WaitDOMContentLoaded(ctx context.Context, timeout time.Duration) error {
	return nil
}
func (f *fakePage) WaitStable(ctx context.Context) error                   { return f.stableErr }
func (f *fakePage) LazyScroll(ctx context.Context, steps, px int) error    { return nil }
func (f *fakePage) Evaluate(ctx context.Context, js string, out any) error { return nil }
func (f *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	f.screenshotCalls++
	if f.screenshotErr != nil {
		return nil, f.screenshotErr
	}
	return []byte("png-bytes"), nil
}
func (f *fakePage) SessionState(ctx context.Context) (*schemas.SessionState, error) {
	return &schemas.SessionState{Cookies: []schemas.Cookie{{Name: "sid"}}}, nil
}

type fakeContext struct {
	closeCalls int
}

func (f *fakeContext) Close(ctx context.Context) error {
	f.closeCalls++
	return nil
}

type fakeFactory struct {
	page      *fakePage
	bc        *fakeContext
	createErr error
	seenState *schemas.SessionState
}

func (f *fakeFactory) Create(ctx context.Context, state *schemas.SessionState) (schemas.BrowserContext, schemas.Page, error) {
	f.seenState = state
	if f.createErr != nil {
		return nil, nil, f.createErr
	}
	return f.bc, f.page, nil
}

type fakeAdapter struct {
	platform    schemas.Platform
	items       []schemas.ContinueWatchingItem
	railFound   bool
	extractErr  error
	formatCalls int
	formatErr   error
}

func (f *fakeAdapter) Platform() schemas.Platform { return f.platform }
func (f *fakeAdapter) BrowseURL() string          { return "https://example.com/browse" }
func (f *fakeAdapter) SupportsProfiles() bool     { return false }
func (f *fakeAdapter) IsLoggedIn(ctx context.Context, page schemas.Page) (bool, error) {
	return true, nil
}
func (f *fakeAdapter) Login(ctx context.Context, page schemas.Page) error { return nil }
func (f *fakeAdapter) IsProfilesGate(ctx context.Context, page schemas.Page) (bool, error) {
	return false, nil
}
func (f *fakeAdapter) SelectProfile(ctx context.Context, page schemas.Page, profileName string) error {
	return schemas.ErrUnsupportedOperation
}
func (f *fakeAdapter) ExtractContinueWatching(ctx context.Context, page schemas.Page) ([]schemas.ContinueWatchingItem, bool, error) {
	if f.extractErr != nil {
		return nil, false, f.extractErr
	}
	return f.items, f.railFound, nil
}
func (f *fakeAdapter) FormatRawContinueWatchingData(ctx context.Context, items []schemas.ContinueWatchingItem, page schemas.Page) (schemas.ContinueWatchingData, error) {
	f.formatCalls++
	if f.formatErr != nil {
		return nil, f.formatErr
	}
	data := make(schemas.ContinueWatchingData, len(items))
	for i, item := range items {
		data[i] = schemas.ContinueWatchingEntry{Title: item.Title, ID: item.Href}
	}
	return data, nil
}

type fakeSessionStore struct {
	loaded    *schemas.SessionState
	loadErr   error
	saveCalls int
}

func (f *fakeSessionStore) LoadSessionState(ctx context.Context, platform schemas.Platform) (*schemas.SessionState, error) {
	return f.loaded, f.loadErr
}
func (f *fakeSessionStore) SaveSessionState(ctx context.Context, platform schemas.Platform, state *schemas.SessionState) error {
	f.saveCalls++
	return nil
}

func newTestRunner(t *testing.T, factory *fakeFactory, sessions *fakeSessionStore) *Runner {
	t.Helper()
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
	authOrch := auth.NewOrchestrator(sessions, cfg, zap.NewNop())
	return NewRunner(factory, sessions, authOrch, cfg, zap.NewNop())
}

func TestRunnerRun(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path releases the context and saves the session", func(t *testing.T) {
		factory := &fakeFactory{page: &fakePage{}, bc: &fakeContext{}}
		sessions := &fakeSessionStore{loaded: &schemas.SessionState{Cookies: []schemas.Cookie{{Name: "old"}}}}
		adapter := &fakeAdapter{
			platform:  schemas.PlatformNetflix,
			railFound: true,
			items: []schemas.ContinueWatchingItem{
				{Title: "Severance", Href: "/watch/81234567"},
			},
		}

		result, err := newTestRunner(t, factory, sessions).Run(ctx, adapter)
		require.NoError(t, err)
		assert.True(t, result.RailFound)
		assert.Len(t, result.Data, 1)
		assert.Equal(t, 1, factory.bc.closeCalls)
		assert.Equal(t, 2, sessions.saveCalls, "snapshot persists after auth and again after extraction")
		assert.Same(t, sessions.loaded, factory.seenState, "saved session seeds the new context")
		assert.Zero(t, factory.page.screenshotCalls)
		assert.Equal(t, []string{adapter.BrowseURL(), adapter.BrowseURL()}, factory.page.navigations,
			"auth can strand the page elsewhere, so the runner lands back on browse")
	})

	t.Run("missing rail is a valid empty result", func(t *testing.T) {
		factory := &fakeFactory{page: &fakePage{}, bc: &fakeContext{}}
		adapter := &fakeAdapter{platform: schemas.PlatformDisney, railFound: false}

		result, err := newTestRunner(t, factory, &fakeSessionStore{}).Run(ctx, adapter)
		require.NoError(t, err)
		assert.False(t, result.RailFound)
		assert.Empty(t, result.Data)
		assert.Equal(t, 1, adapter.formatCalls, "normalization runs even with no items")
	})

	t.Run("extraction failure screenshots once and propagates unmodified", func(t *testing.T) {
		factory := &fakeFactory{page: &fakePage{}, bc: &fakeContext{}}
		sessions := &fakeSessionStore{}
		extractErr := errors.New("selector vanished")
		adapter := &fakeAdapter{platform: schemas.PlatformHBO, extractErr: extractErr}

		runner := newTestRunner(t, factory, sessions)
		_, err := runner.Run(ctx, adapter)
		require.Error(t, err)
		assert.Same(t, extractErr, err, "pipeline errors reach the boundary unwrapped")
		assert.Equal(t, 1, factory.page.screenshotCalls)
		assert.Equal(t, 1, factory.bc.closeCalls, "context released on the failure path")
		assert.Equal(t, 1, sessions.saveCalls, "only the post-auth snapshot lands; extraction never completed")

		entries, readErr := os.ReadDir(runner.cfg.ScreenshotDir)
		require.NoError(t, readErr)
		require.Len(t, entries, 1)
		assert.Regexp(t, `^hbo_\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z\.png$`, entries[0].Name())
	})

	t.Run("screenshot failure never masks the original error", func(t *testing.T) {
		page := &fakePage{screenshotErr: errors.New("tab already gone")}
		factory := &fakeFactory{page: page, bc: &fakeContext{}}
		extractErr := errors.New("selector vanished")
		adapter := &fakeAdapter{platform: schemas.PlatformHBO, extractErr: extractErr}

		_, err := newTestRunner(t, factory, &fakeSessionStore{}).Run(ctx, adapter)
		assert.Same(t, extractErr, err)
	})

	t.Run("unstable DOM downgrades to a warning", func(t *testing.T) {
		page := &fakePage{stableErr: schemas.ErrDOMUnstable}
		factory := &fakeFactory{page: page, bc: &fakeContext{}}
		adapter := &fakeAdapter{platform: schemas.PlatformPrime, railFound: true}

		result, err := newTestRunner(t, factory, &fakeSessionStore{}).Run(ctx, adapter)
		require.NoError(t, err)
		assert.True(t, result.RailFound)
	})

	t.Run("hard stability probe failure is fatal", func(t *testing.T) {
		page := &fakePage{stableErr: errors.New("target crashed")}
		factory := &fakeFactory{page: page, bc: &fakeContext{}}
		adapter := &fakeAdapter{platform: schemas.PlatformPrime}

		_, err := newTestRunner(t, factory, &fakeSessionStore{}).Run(ctx, adapter)
		require.Error(t, err)
		assert.Equal(t, 1, factory.bc.closeCalls)
	})

	t.Run("factory failure aborts before any navigation", func(t *testing.T) {
		createErr := &schemas.ResourceError{Op: "launch", Err: errors.New("no chrome binary")}
		factory := &fakeFactory{createErr: createErr}
		adapter := &fakeAdapter{platform: schemas.PlatformApple}

		_, err := newTestRunner(t, factory, &fakeSessionStore{}).Run(ctx, adapter)
		require.Error(t, err)
		var resErr *schemas.ResourceError
		assert.ErrorAs(t, err, &resErr)
	})
}

func TestDiagnosticTimestamp(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 4, 5, 123_000_000, time.UTC)
	got := diagnosticTimestamp(ts)
	assert.Equal(t, "2026-08-30T10-04-05-123Z", got)
	assert.NotContains(t, got, ":")
	assert.NotContains(t, got, ".")
}
