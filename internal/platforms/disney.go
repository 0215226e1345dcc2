// File: internal/platforms/disney.go
package platforms

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
)

const (
	disneyBrowseURL = "https://www.disneyplus.com/home"
	disneyLoginURL  = "https://www.disneyplus.com/login"
)

var disneyIDPattern = regexp.MustCompile(`/(?:video|movies|series)/([^/?]+)`)

// Disney scrapes Disney+. Email and password live on separate documents, and
// fresh sessions hit an avatar-based profile picker.
type Disney struct {
	creds  schemas.CredentialStore
	logger *zap.Logger
}

var _ schemas.ServiceAdapter = (*Disney)(nil)

func NewDisney(creds schemas.CredentialStore, logger *zap.Logger) *Disney {
	return &Disney{creds: creds, logger: logger.Named("disney")}
}

func (d *Disney) Platform() schemas.Platform { return schemas.PlatformDisney }
func (d *Disney) BrowseURL() string          { return disneyBrowseURL }
func (d *Disney) SupportsProfiles() bool     { return true }
func (d *Disney) DetectsProfilesGate() bool  { return true }

func (d *Disney) IsLoggedIn(ctx context.Context, page schemas.Page) (bool, error) {
	visible, err := page.IsVisible(ctx, `a[href*="/login"]`)
	if err != nil {
		return false, err
	}
	return !visible, nil
}

func (d *Disney) Login(ctx context.Context, page schemas.Page) error {
	creds, err := loadCredentials(ctx, d.creds, d.Platform())
	if err != nil {
		return err
	}

	if err := page.Navigate(ctx, disneyLoginURL); err != nil {
		return err
	}
	if err := page.Fill(ctx, `input[type="email"]`, creds.Email, loginFieldTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: d.Platform(), Reason: "email field not found", Err: err}
	}
	if err := page.Click(ctx, `button[type="submit"]`, loginStepTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: d.Platform(), Reason: "continue button not found", Err: err}
	}
	if err := page.Fill(ctx, `input[type="password"]`, creds.Password, loginFieldTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: d.Platform(), Reason: "password field not found", Err: err}
	}
	if err := page.Click(ctx, `button[type="submit"]`, loginStepTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: d.Platform(), Reason: "submit button not found", Err: err}
	}
	if err := waitURLLeaves(ctx, page, "/login", loginRedirectTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: d.Platform(), Reason: "sign-in did not complete", Err: err}
	}
	return nil
}

func (d *Disney) IsProfilesGate(ctx context.Context, page schemas.Page) (bool, error) {
	return page.IsVisible(ctx, `[data-testid="avatar-selector"]`)
}

// SelectProfile clicks the avatar matching profileName, or the first avatar
// when no name is configured.
func (d *Disney) SelectProfile(ctx context.Context, page schemas.Page, profileName string) error {
	clicked, err := page.ClickText(ctx, `[data-testid="profile-avatar"], [data-testid="avatar-selector"] button`, profileName)
	if err != nil {
		return err
	}
	if !clicked {
		return &schemas.AuthenticationError{
			Platform: d.Platform(),
			Reason:   "profile " + profileName + " not found on gate",
		}
	}
	return nil
}

const disneyRailJS = `(() => {
  for (const h of document.querySelectorAll("h2")) {
    const t = (h.textContent || "").trim().toLowerCase();
    if (!t.includes("continue watching") && !t.includes("keep watching")) continue;
    const section = h.closest("section") || h.closest('div[class*="collection"]') || h.parentElement;
    if (!section) continue;
    const items = [];
    const seen = new Set();
    for (const a of section.querySelectorAll('a[href*="/video/"], a[href*="/movies/"], a[href*="/series/"]')) {
      const href = a.getAttribute("href") || "";
      if (!href || seen.has(href)) continue;
      seen.add(href);
      const title = (a.getAttribute("aria-label") || a.textContent || "").trim();
      items.push({ title: title, href: href });
    }
    return { railFound: true, items: items };
  }
  return { railFound: false, items: [] };
})()`

func (d *Disney) ExtractContinueWatching(ctx context.Context, page schemas.Page) ([]schemas.ContinueWatchingItem, bool, error) {
	return scanRail(ctx, page, disneyRailJS)
}

func (d *Disney) FormatRawContinueWatchingData(ctx context.Context, items []schemas.ContinueWatchingItem, page schemas.Page) (schemas.ContinueWatchingData, error) {
	return formatByPattern(items, disneyIDPattern, d.logger), nil
}
