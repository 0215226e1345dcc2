// File: internal/platforms/netflix.go
package platforms

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
)

const (
	netflixBrowseURL = "https://www.netflix.com/browse"
	netflixLoginURL  = "https://www.netflix.com/login"
)

var (
	// Logins land on the profile picker, the browse page or the account page
	// depending on the account's state.
	netflixPostLoginURL = regexp.MustCompile(`netflix\.com/(profiles|browse|YourAccount)`)
	netflixIDPattern    = regexp.MustCompile(`/(?:watch|title)/(\d+)`)
)

// Netflix scrapes netflix.com. Profiles are a first-class concept here: most
// accounts hit the "Who's watching?" gate on every fresh session.
type Netflix struct {
	creds  schemas.CredentialStore
	logger *zap.Logger
}

var _ schemas.ServiceAdapter = (*Netflix)(nil)

func NewNetflix(creds schemas.CredentialStore, logger *zap.Logger) *Netflix {
	return &Netflix{creds: creds, logger: logger.Named("netflix")}
}

func (n *Netflix) Platform() schemas.Platform { return schemas.PlatformNetflix }
func (n *Netflix) BrowseURL() string          { return netflixBrowseURL }
func (n *Netflix) SupportsProfiles() bool     { return true }
func (n *Netflix) DetectsProfilesGate() bool  { return true }

// IsLoggedIn: anonymous visitors to /browse get bounced to the login page.
func (n *Netflix) IsLoggedIn(ctx context.Context, page schemas.Page) (bool, error) {
	loc, err := page.URL(ctx)
	if err != nil {
		return false, err
	}
	return !strings.Contains(loc, "/login"), nil
}

func (n *Netflix) Login(ctx context.Context, page schemas.Page) error {
	creds, err := loadCredentials(ctx, n.creds, n.Platform())
	if err != nil {
		return err
	}

	if err := page.Navigate(ctx, netflixLoginURL); err != nil {
		return err
	}
	if err := page.Fill(ctx, `input[name="userLoginId"]`, creds.Email, loginFieldTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: n.Platform(), Reason: "email field not found", Err: err}
	}
	if err := page.Fill(ctx, `input[name="password"]`, creds.Password, loginFieldTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: n.Platform(), Reason: "password field not found", Err: err}
	}
	if err := page.Click(ctx, `button[data-uia="sign-in-button"]`, loginStepTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: n.Platform(), Reason: "sign-in button not found", Err: err}
	}
	if err := page.WaitURLMatch(ctx, netflixPostLoginURL, loginRedirectTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: n.Platform(), Reason: "login did not redirect", Err: err}
	}
	return nil
}

func (n *Netflix) IsProfilesGate(ctx context.Context, page schemas.Page) (bool, error) {
	return page.IsVisible(ctx, `[data-uia="profile-link"], [data-uia="profile-button"]`)
}

// SelectProfile clicks the tile matching profileName, or the first tile when
// no name is configured. A named profile that is not on screen is fatal;
// guessing a different household member would scrape the wrong resume list.
func (n *Netflix) SelectProfile(ctx context.Context, page schemas.Page, profileName string) error {
	clicked, err := page.ClickText(ctx, `[data-uia="profile-link"], [data-uia="profile-button"]`, profileName)
	if err != nil {
		return err
	}
	if !clicked {
		return &schemas.AuthenticationError{
			Platform: n.Platform(),
			Reason:   "profile " + profileName + " not found on gate",
		}
	}
	return nil
}

const netflixRailJS = `(() => {
  for (const h of document.querySelectorAll("h2, h3")) {
    const t = (h.textContent || "").trim().toLowerCase();
    if (!t.includes("continue watching")) continue;
    const section = h.closest(".lolomoRow, section, [data-list-context]") || h.parentElement;
    if (!section) continue;
    const items = [];
    const seen = new Set();
    for (const a of section.querySelectorAll('a[href*="/watch/"], a[href*="/title/"]')) {
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

func (n *Netflix) ExtractContinueWatching(ctx context.Context, page schemas.Page) ([]schemas.ContinueWatchingItem, bool, error) {
	return scanRail(ctx, page, netflixRailJS)
}

func (n *Netflix) FormatRawContinueWatchingData(ctx context.Context, items []schemas.ContinueWatchingItem, page schemas.Page) (schemas.ContinueWatchingData, error) {
	return formatByPattern(items, netflixIDPattern, n.logger), nil
}
