// File: internal/platforms/hbo.go
package platforms

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
)

const (
	hboBrowseURL = "https://play.hbomax.com"
	hboSignInURL = "https://play.max.com/signIn"
)

var (
	hboPostLoginURL = regexp.MustCompile(`(profile|home|browse)`)
	hboIDPattern    = regexp.MustCompile(`/watch/([^/?]+)`)
)

// HBO scrapes HBO Max. Sign-in still runs on the play.max.com flow; the
// profiles gate is skipped for single-profile accounts, which is the only
// configuration this adapter supports.
type HBO struct {
	creds  schemas.CredentialStore
	logger *zap.Logger
}

var _ schemas.ServiceAdapter = (*HBO)(nil)

func NewHBO(creds schemas.CredentialStore, logger *zap.Logger) *HBO {
	return &HBO{creds: creds, logger: logger.Named("hbo")}
}

func (h *HBO) Platform() schemas.Platform { return schemas.PlatformHBO }
func (h *HBO) BrowseURL() string          { return hboBrowseURL }
func (h *HBO) SupportsProfiles() bool     { return false }

func (h *HBO) IsLoggedIn(ctx context.Context, page schemas.Page) (bool, error) {
	href, ok, err := page.Attribute(ctx, `#header-secondary-nav-item`, "href")
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return !strings.Contains(href, "auth.hbomax.com/login"), nil
}

func (h *HBO) Login(ctx context.Context, page schemas.Page) error {
	creds, err := loadCredentials(ctx, h.creds, h.Platform())
	if err != nil {
		return err
	}

	if err := page.Navigate(ctx, hboSignInURL); err != nil {
		return err
	}
	if err := page.Fill(ctx, `input[name="username"], input[type="email"]`, creds.Email, loginFieldTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: h.Platform(), Reason: "email field not found", Err: err}
	}
	if err := page.Fill(ctx, `input[name="password"], input[type="password"]`, creds.Password, loginFieldTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: h.Platform(), Reason: "password field not found", Err: err}
	}
	if err := page.Click(ctx, `button[type="submit"]`, loginStepTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: h.Platform(), Reason: "submit button not found", Err: err}
	}
	if err := page.WaitURLMatch(ctx, hboPostLoginURL, loginRedirectTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: h.Platform(), Reason: "sign-in did not complete", Err: err}
	}
	return nil
}

func (h *HBO) IsProfilesGate(ctx context.Context, page schemas.Page) (bool, error) {
	return false, nil
}

func (h *HBO) SelectProfile(ctx context.Context, page schemas.Page, profileName string) error {
	return schemas.ErrUnsupportedOperation
}

const hboRailJS = `(() => {
  for (const section of document.querySelectorAll("section")) {
    if (!section.querySelector('div[id="tileList"]')) continue;
    const h2 = section.querySelector("h2");
    if (!h2 || !(h2.textContent || "").trim().toLowerCase().includes("continue watching")) continue;
    const items = [];
    const seen = new Set();
    for (const a of section.querySelectorAll('a[href*="/video/watch"]')) {
      const href = a.getAttribute("href") || "";
      if (!href || seen.has(href)) continue;
      seen.add(href);
      const primary = a.querySelector('span[class*="StyledPrimaryTitle"]');
      const title = ((primary ? primary.textContent : a.textContent) || "").trim();
      items.push({ title: title, href: href });
    }
    return { railFound: true, items: items };
  }
  return { railFound: false, items: [] };
})()`

func (h *HBO) ExtractContinueWatching(ctx context.Context, page schemas.Page) ([]schemas.ContinueWatchingItem, bool, error) {
	return scanRail(ctx, page, hboRailJS)
}

func (h *HBO) FormatRawContinueWatchingData(ctx context.Context, items []schemas.ContinueWatchingItem, page schemas.Page) (schemas.ContinueWatchingData, error) {
	return formatByPattern(items, hboIDPattern, h.logger), nil
}
