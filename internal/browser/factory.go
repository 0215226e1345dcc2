// File: internal/browser/factory.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
	"github.com/couchwatch/couchwatch/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const closeGracePeriod = 10 * time.Second

// Factory creates isolated browser execution contexts. Every Create call
// launches its own browser process; nothing is shared between platforms.
type Factory struct {
	browserCfg config.BrowserConfig
	scrapeCfg  config.ScrapeConfig
	env        config.RunEnvironment
	logger     *zap.Logger
}

var _ schemas.BrowserFactory = (*Factory)(nil)

// NewFactory wires a factory from configuration. The run environment decides
// headless vs. headful and input slow-motion; it is injected here rather
// than read from ambient state by orchestration code.
func NewFactory(browserCfg config.BrowserConfig, scrapeCfg config.ScrapeConfig, env config.RunEnvironment, logger *zap.Logger) *Factory {
	return &Factory{
		browserCfg: browserCfg,
		scrapeCfg:  scrapeCfg,
		env:        env,
		logger:     logger.Named("browser_factory"),
	}
}

// buildAllocatorOptions assembles the launch flags for one isolated browser
// process.
func (f *Factory) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	headless := f.browserCfg.Headless
	if f.env == config.EnvDebug {
		headless = false
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", headless),
		// Drop the default flag that advertises automation to the page.
		chromedp.Flag("enable-automation", false),
		// Keep platforms from silently prompting for hardware-bound
		// authenticators that can never be satisfied headlessly.
		chromedp.Flag("disable-features", "WebAuthentication"),
		chromedp.Flag("disable-blink-features", "CredentialManager,WebAuthenticationAPI"),
	)

	for _, arg := range f.browserCfg.Args {
		opts = append(opts, chromedp.Flag(trimFlag(arg)))
	}

	// Flags required for running inside containers.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}

	return opts
}

// Create launches a browser process and returns an isolated context plus a
// page handle within it. When state is non-nil the context is seeded with
// its cookies before any navigation, and each new document restores the
// matching origin's localStorage before page scripts run. The caller owns
// the context and must release it on every exit path.
func (f *Factory) Create(ctx context.Context, state *schemas.SessionState) (schemas.BrowserContext, schemas.Page, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, f.buildAllocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	bc := &Context{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		logger:      f.logger,
	}

	// An empty run starts the browser process and opens the tab.
	if err := chromedp.Run(tabCtx); err != nil {
		bc.Close(ctx)
		return nil, nil, &schemas.ResourceError{Op: "launch", Err: err}
	}

	if state != nil {
		if err := f.seed(tabCtx, state); err != nil {
			bc.Close(ctx)
			return nil, nil, &schemas.ResourceError{Op: "seed session state", Err: err}
		}
		f.logger.Debug("Context seeded from saved session state",
			zap.Int("cookies", len(state.Cookies)),
			zap.Int("origins", len(state.Origins)),
		)
	}

	slowMo := f.browserCfg.SlowMotion
	if f.env == config.EnvDebug && slowMo == 0 {
		slowMo = 100 * time.Millisecond
	}

	pg := &Page{
		ctx:        tabCtx,
		logger:     f.logger.Named("page"),
		navTimeout: f.scrapeCfg.NavigationTimeout,
		stability:  f.scrapeCfg.Stability,
		slowMo:     slowMo,
	}
	return bc, pg, nil
}

// seed installs the saved cookies and registers a script that restores
// localStorage for matching origins on every new document.
func (f *Factory) seed(tabCtx context.Context, state *schemas.SessionState) error {
	params := make([]*network.CookieParam, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		p := &network.CookieParam{
			Domain:   c.Domain,
			Path:     c.Path,
			Name:     c.Name,
			Value:    c.Value,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		if c.Expires > 0 {
			sec := int64(c.Expires)
			nsec := int64((c.Expires - float64(sec)) * float64(time.Second))
			exp := cdp.TimeSinceEpoch(time.Unix(sec, nsec))
			p.Expires = &exp
		}
		params = append(params, p)
	}

	actions := []chromedp.Action{}
	if len(params) > 0 {
		actions = append(actions, network.SetCookies(params))
	}
	if len(state.Origins) > 0 {
		script, err := storageSeedScript(state.Origins)
		if err != nil {
			return err
		}
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}))
	}
	if len(actions) == 0 {
		return nil
	}
	return chromedp.Run(tabCtx, actions...)
}

// storageSeedScript renders the localStorage restore script for the saved
// origins. The script is a no-op on origins that were never captured.
func storageSeedScript(origins []schemas.OriginState) (string, error) {
	blob, err := json.Marshal(origins)
	if err != nil {
		return "", fmt.Errorf("failed to encode origin storage: %w", err)
	}
	return fmt.Sprintf(`(() => {
  const seeds = %s;
  for (const o of seeds) {
    if (location.origin !== o.origin) continue;
    for (const item of o.localStorage) {
      try { localStorage.setItem(item.name, item.value); } catch (e) {}
    }
  }
})();`, string(blob)), nil
}

// trimFlag splits a raw "--name=value" argument into chromedp.Flag inputs.
func trimFlag(arg string) (string, any) {
	name := arg
	for len(name) > 0 && name[0] == '-' {
		name = name[1:]
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '=' {
			return name[:i], name[i+1:]
		}
	}
	return name, true
}

// Context owns one browser process and the single tab inside it.
type Context struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ schemas.BrowserContext = (*Context)(nil)

// Close releases the tab and terminates the browser process. It is safe to
// call on every exit path, including after a failed Create.
func (c *Context) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() {
			// chromedp.Cancel performs the graceful browser shutdown; the
			// plain cancel funcs below are the hard stop.
			done <- chromedp.Cancel(c.tabCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				c.closeErr = &schemas.ResourceError{Op: "close", Err: err}
			}
		case <-time.After(closeGracePeriod):
			c.logger.Warn("Timeout closing browser gracefully; forcing termination.")
		case <-ctx.Done():
			c.logger.Warn("Caller context done while closing browser; forcing termination.", zap.Error(ctx.Err()))
		}

		c.tabCancel()
		c.allocCancel()
	})
	return c.closeErr
}
