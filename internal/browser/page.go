// File: internal/browser/page.go
package browser

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
	"github.com/couchwatch/couchwatch/internal/config"
)

// Page drives one tab over CDP. All selector lookups are CSS.
type Page struct {
	ctx        context.Context
	logger     *zap.Logger
	navTimeout time.Duration
	stability  config.StabilityConfig
	// slowMo inserts a pause after each input action so a human can follow
	// along in a headful browser.
	slowMo time.Duration
}

var _ schemas.Page = (*Page)(nil)

// run executes chromedp actions against the tab, bounded by timeout and
// abandoned if the caller's context is canceled.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx := p.ctx
	cancel := func() {}
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads the URL and waits for DOM content to load. Network idle is
// deliberately not part of the contract here.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating", zap.String("url", url))
	err := p.run(ctx, p.navTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, 10*time.Second, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read page location: %w", err)
	}
	return loc, nil
}

func (p *Page) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	err := p.run(ctx, timeout, chromedp.WaitVisible(sel, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("element %q did not become visible: %w", sel, err)
	}
	return nil
}

// IsVisible probes visibility without waiting. Selectors that match nothing
// yield (false, nil).
func (p *Page) IsVisible(ctx context.Context, sel string) (bool, error) {
	js := fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (!el) return false;
  const r = el.getBoundingClientRect();
  return !!(r.width || r.height || el.getClientRects().length);
})()`, sel)
	var visible bool
	if err := p.Evaluate(ctx, js, &visible); err != nil {
		return false, fmt.Errorf("failed to probe visibility of %q: %w", sel, err)
	}
	return visible, nil
}

func (p *Page) Count(ctx context.Context, sel string) (int, error) {
	js := fmt.Sprintf(`document.querySelectorAll(%q).length`, sel)
	var n int
	if err := p.Evaluate(ctx, js, &n); err != nil {
		return 0, fmt.Errorf("failed to count %q: %w", sel, err)
	}
	return n, nil
}

// Attribute reads the named attribute off the first match. The bool is false
// when the element is missing or the attribute is unset.
func (p *Page) Attribute(ctx context.Context, sel, name string) (string, bool, error) {
	js := fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (!el) return { found: false, value: "" };
  const v = el.getAttribute(%q);
  if (v === null) return { found: false, value: "" };
  return { found: true, value: v };
})()`, sel, name)
	var res struct {
		Found bool   `json:"found"`
		Value string `json:"value"`
	}
	if err := p.Evaluate(ctx, js, &res); err != nil {
		return "", false, fmt.Errorf("failed to read attribute %q of %q: %w", name, sel, err)
	}
	return res.Value, res.Found, nil
}

func (p *Page) Fill(ctx context.Context, sel, value string, timeout time.Duration) error {
	err := p.run(ctx, timeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to fill %q: %w", sel, err)
	}
	p.pause(ctx)
	return nil
}

func (p *Page) Click(ctx context.Context, sel string, timeout time.Duration) error {
	err := p.run(ctx, timeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to click %q: %w", sel, err)
	}
	p.pause(ctx)
	return nil
}

// ClickText clicks the first match of sel whose textContent contains text,
// case-insensitively. An empty text clicks the first match outright.
func (p *Page) ClickText(ctx context.Context, sel, text string) (bool, error) {
	js := fmt.Sprintf(`(() => {
  const want = %q.toLowerCase();
  for (const el of document.querySelectorAll(%q)) {
    const got = (el.textContent || "").trim().toLowerCase();
    if (want === "" || got.includes(want)) {
      el.click();
      return true;
    }
  }
  return false;
})()`, text, sel)
	var clicked bool
	if err := p.Evaluate(ctx, js, &clicked); err != nil {
		return false, fmt.Errorf("failed to click %q by text: %w", sel, err)
	}
	if clicked {
		p.pause(ctx)
	}
	return clicked, nil
}

// WaitURLMatch polls the location until the pattern matches. The last
// observed URL is carried in the timeout error for diagnostics.
func (p *Page) WaitURLMatch(ctx context.Context, pattern *regexp.Regexp, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	var last string
	for {
		loc, err := p.URL(ctx)
		if err != nil {
			return err
		}
		if pattern.MatchString(loc) {
			return nil
		}
		last = loc
		if time.Now().After(deadline) {
			return fmt.Errorf("url did not match %s within %s (last %q)", pattern, timeout, last)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Page) WaitDOMContentLoaded(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		var state string
		if err := p.Evaluate(ctx, `document.readyState`, &state); err != nil {
			return fmt.Errorf("failed to read document readyState: %w", err)
		}
		if state != "loading" {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("document stayed in readyState=loading for %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// stabilityHashJS fingerprints the rendered markup inside the page so the
// quiescence poll never ships the document across the wire.
const stabilityHashJS = `(() => {
  const s = document.body ? document.body.innerHTML : "";
  let h = 2166136261;
  for (let i = 0; i < s.length; i++) {
    h ^= s.charCodeAt(i);
    h = Math.imul(h, 16777619);
  }
  return h >>> 0;
})()`

// WaitStable waits for DOM content load, then polls a fingerprint of the
// rendered markup until it holds unchanged for a quiet period. Markup that
// never settles within the bound yields ErrDOMUnstable; callers downgrade
// that to a warning because animated rails mutate forever.
func (p *Page) WaitStable(ctx context.Context) error {
	if err := p.WaitDOMContentLoaded(ctx, p.navTimeout); err != nil {
		return err
	}

	deadline := time.Now().Add(p.stability.Timeout)
	ticker := time.NewTicker(p.stability.Interval)
	defer ticker.Stop()

	var lastHash uint64
	var quietSince time.Time
	for {
		var hash uint64
		if err := p.Evaluate(ctx, stabilityHashJS, &hash); err != nil {
			return fmt.Errorf("failed to fingerprint page content: %w", err)
		}

		now := time.Now()
		if quietSince.IsZero() || hash != lastHash {
			lastHash = hash
			quietSince = now
		} else if now.Sub(quietSince) >= p.stability.QuietPeriod {
			return nil
		}

		if now.After(deadline) {
			return fmt.Errorf("content still mutating after %s: %w", p.stability.Timeout, schemas.ErrDOMUnstable)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LazyScroll walks the viewport down in steps, pausing between each so
// lazily mounted sections get a chance to render.
func (p *Page) LazyScroll(ctx context.Context, steps, px int) error {
	for i := 0; i < steps; i++ {
		js := fmt.Sprintf(`window.scrollBy(0, %d)`, px)
		if err := p.run(ctx, 10*time.Second, chromedp.Evaluate(js, nil)); err != nil {
			return fmt.Errorf("failed to scroll page: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(350 * time.Millisecond):
		}
	}
	return nil
}

func (p *Page) Evaluate(ctx context.Context, js string, out any) error {
	if err := p.run(ctx, 15*time.Second, chromedp.Evaluate(js, out)); err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, 20*time.Second, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, &schemas.ResourceError{Op: "screenshot", Err: err}
	}
	return buf, nil
}

// SessionState snapshots every cookie in the browser plus the localStorage
// of the origin the tab currently sits on. Storage from other origins is
// re-captured the next time a run lands there.
func (p *Page) SessionState(ctx context.Context) (*schemas.SessionState, error) {
	state := &schemas.SessionState{}

	err := p.run(ctx, 15*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		state.Cookies = make([]schemas.Cookie, 0, len(cookies))
		for _, c := range cookies {
			state.Cookies = append(state.Cookies, schemas.Cookie{
				Domain:   c.Domain,
				Path:     c.Path,
				Name:     c.Name,
				Value:    c.Value,
				Expires:  c.Expires,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
				SameSite: schemas.SameSite(c.SameSite),
			})
		}
		return nil
	}))
	if err != nil {
		return nil, &schemas.ResourceError{Op: "snapshot cookies", Err: err}
	}

	var origin schemas.OriginState
	js := `(() => {
  const items = [];
  for (let i = 0; i < localStorage.length; i++) {
    const k = localStorage.key(i);
    items.push({ name: k, value: localStorage.getItem(k) });
  }
  return { origin: location.origin, localStorage: items };
})()`
	if err := p.Evaluate(ctx, js, &origin); err != nil {
		return nil, &schemas.ResourceError{Op: "snapshot localStorage", Err: err}
	}
	if origin.Origin != "" {
		state.Origins = []schemas.OriginState{origin}
	}

	p.logger.Debug("Session state captured",
		zap.Int("cookies", len(state.Cookies)),
		zap.String("origin", origin.Origin),
	)
	return state, nil
}

// pause applies the configured slow-motion delay after an input action.
func (p *Page) pause(ctx context.Context) {
	if p.slowMo <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(p.slowMo):
	}
}
