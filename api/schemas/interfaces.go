// File: api/schemas/interfaces.go
package schemas

import (
	"context"
	"regexp"
	"time"
)

// Page is the handle an adapter drives. It abstracts the underlying CDP
// session so orchestration code and per-platform adapters can be exercised
// against fakes. Every blocking operation takes a context; element waits
// carry their own timeout.
type Page interface {
	// Navigate loads a URL and returns once DOM content has loaded. It does
	// not wait for network idle; platforms vary in background polling that
	// never truly idles.
	Navigate(ctx context.Context, url string) error

	// URL reports the page's current location.
	URL(ctx context.Context) (string, error)

	// WaitVisible blocks until the selector matches a visible element or the
	// timeout elapses.
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error

	// IsVisible is a side-effect-free visibility probe. A missing selector
	// yields (false, nil), not an error.
	IsVisible(ctx context.Context, sel string) (bool, error)

	// Count reports how many elements match the selector.
	Count(ctx context.Context, sel string) (int, error)

	// Attribute returns the named attribute of the first match. The bool is
	// false when the element or attribute is absent.
	Attribute(ctx context.Context, sel, name string) (string, bool, error)

	// Fill types a value into the first element matching the selector.
	Fill(ctx context.Context, sel, value string, timeout time.Duration) error

	// Click clicks the first element matching the selector.
	Click(ctx context.Context, sel string, timeout time.Duration) error

	// ClickText clicks the first element matching sel whose text contains
	// text (any element when text is empty). Returns false when nothing
	// matched.
	ClickText(ctx context.Context, sel, text string) (bool, error)

	// WaitURLMatch polls the location until it matches the pattern or the
	// timeout elapses.
	WaitURLMatch(ctx context.Context, pattern *regexp.Regexp, timeout time.Duration) error

	// WaitDOMContentLoaded blocks until document.readyState leaves
	// "loading", bounded by timeout.
	WaitDOMContentLoaded(ctx context.Context, timeout time.Duration) error

	// WaitStable waits for DOM content load, network settle and rendered
	// markup quiescence. Returns ErrDOMUnstable when the markup never goes
	// quiet within bounds; callers treat that as a warning.
	WaitStable(ctx context.Context) error

	// LazyScroll scrolls the page in steps to force lazy rails to mount.
	LazyScroll(ctx context.Context, steps, px int) error

	// Evaluate runs a JavaScript expression and unmarshals its JSON result
	// into out.
	Evaluate(ctx context.Context, js string, out any) error

	// Screenshot captures a full-page PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// SessionState snapshots the context's cookies and the current origin's
	// localStorage.
	SessionState(ctx context.Context) (*SessionState, error)
}

// BrowserContext owns one isolated browser process and its page. The caller
// that acquires it must release it on every exit path.
type BrowserContext interface {
	// Close tears down the page and the browser process. Safe to call more
	// than once.
	Close(ctx context.Context) error
}

// BrowserFactory produces a fresh isolated browser context, optionally
// pre-seeded with a saved session state, and a page handle within it.
type BrowserFactory interface {
	Create(ctx context.Context, state *SessionState) (BrowserContext, Page, error)
}

// ServiceAdapter binds the per-platform capability set. Adapters are
// stateless with respect to orchestration; side effects happen only through
// the page they are given.
type ServiceAdapter interface {
	Platform() Platform

	// BrowseURL is the landing page holding the continue-watching rail.
	BrowseURL() string

	// SupportsProfiles reports whether SelectProfile is genuinely
	// implemented. The registry refuses adapters whose profiles-gate
	// detector is live while selection is a stub.
	SupportsProfiles() bool

	// IsLoggedIn is a side-effect-free predicate; it must not navigate.
	IsLoggedIn(ctx context.Context, page Page) (bool, error)

	// Login performs credential entry and submit. Fails wrapping
	// ErrCredentialsMissing when no credentials are stored, or with an
	// AuthenticationError when expected UI never appears within bounds.
	Login(ctx context.Context, page Page) error

	// IsProfilesGate detects a profile-selection screen. A merely absent
	// detection selector yields (false, nil).
	IsProfilesGate(ctx context.Context, page Page) (bool, error)

	// SelectProfile resolves the profiles gate. Platforms without a profile
	// concept return ErrUnsupportedOperation.
	SelectProfile(ctx context.Context, page Page, profileName string) error

	// ExtractContinueWatching locates the continue-watching rail and
	// collects its cards. railFound=false with a nil error is the valid
	// "no resume content visible" outcome, distinct from a lookup failure.
	ExtractContinueWatching(ctx context.Context, page Page) (items []ContinueWatchingItem, railFound bool, err error)

	// FormatRawContinueWatchingData normalizes raw items into the canonical
	// index -> {title,id} mapping. It is the one extraction step permitted
	// to navigate (e.g. resolving a show title for an episode deep link).
	FormatRawContinueWatchingData(ctx context.Context, items []ContinueWatchingItem, page Page) (ContinueWatchingData, error)
}

// SessionStore persists session snapshots keyed by platform, at most one
// live session per platform. Load returning (nil, nil) is the normal
// "no saved session" outcome, not an error.
type SessionStore interface {
	LoadSessionState(ctx context.Context, platform Platform) (*SessionState, error)
	SaveSessionState(ctx context.Context, platform Platform, state *SessionState) error
}

// CredentialStore persists login credentials, encrypted at rest, at most one
// set per platform (last write wins). Load returning (nil, nil) means no
// credentials are stored.
type CredentialStore interface {
	LoadCredentials(ctx context.Context, platform Platform) (*Credentials, error)
	SaveCredentials(ctx context.Context, platform Platform, email, password string) error
}

// ResumeDataStore persists the normalized scrape output.
type ResumeDataStore interface {
	SaveResumeData(ctx context.Context, platform Platform, data ContinueWatchingData) error
}
