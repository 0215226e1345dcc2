// File: internal/platforms/prime.go
package platforms

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
)

const primeBrowseURL = "https://www.amazon.com/gp/video/storefront"

var primeIDPattern = regexp.MustCompile(`/detail/([A-Z0-9]+)`)

// Prime scrapes Prime Video through the amazon.com storefront. Sign-in runs
// on the shared Amazon account flow, which splits email and password across
// two documents.
type Prime struct {
	creds  schemas.CredentialStore
	logger *zap.Logger
}

var _ schemas.ServiceAdapter = (*Prime)(nil)

func NewPrime(creds schemas.CredentialStore, logger *zap.Logger) *Prime {
	return &Prime{creds: creds, logger: logger.Named("prime")}
}

func (p *Prime) Platform() schemas.Platform { return schemas.PlatformPrime }
func (p *Prime) BrowseURL() string          { return primeBrowseURL }
func (p *Prime) SupportsProfiles() bool     { return false }

// IsLoggedIn inspects the account link in the nav bar; anonymous visitors
// get a link into the sign-in flow.
func (p *Prime) IsLoggedIn(ctx context.Context, page schemas.Page) (bool, error) {
	href, ok, err := page.Attribute(ctx, `#nav-link-accountList`, "href")
	if err != nil {
		return false, err
	}
	if !ok {
		href, ok, err = page.Attribute(ctx, `#nav-link-accountList a`, "href")
		if err != nil || !ok {
			return false, err
		}
	}
	return !strings.Contains(href, "/ap/signin"), nil
}

func (p *Prime) Login(ctx context.Context, page schemas.Page) error {
	creds, err := loadCredentials(ctx, p.creds, p.Platform())
	if err != nil {
		return err
	}

	if err := page.Click(ctx, `#nav-link-accountList`, loginStepTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: p.Platform(), Reason: "account link not found", Err: err}
	}
	if err := page.Fill(ctx, `#ap_email, #ap_email_login`, creds.Email, loginFieldTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: p.Platform(), Reason: "email field not found", Err: err}
	}
	// The continue button is absent when Amazon shows email and password on
	// one form; a failed click there is not fatal.
	if err := page.Click(ctx, `#continue`, loginStepTimeout/2); err != nil {
		p.logger.Debug("No continue step; assuming single-form sign-in.", zap.Error(err))
	}
	if err := page.Fill(ctx, `#ap_password`, creds.Password, loginFieldTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: p.Platform(), Reason: "password field not found", Err: err}
	}
	if err := page.Click(ctx, `#signInSubmit`, loginStepTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: p.Platform(), Reason: "submit button not found", Err: err}
	}
	if err := waitURLLeaves(ctx, page, "/ap/signin", loginRedirectTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: p.Platform(), Reason: "sign-in did not complete", Err: err}
	}
	return nil
}

func (p *Prime) IsProfilesGate(ctx context.Context, page schemas.Page) (bool, error) {
	return false, nil
}

func (p *Prime) SelectProfile(ctx context.Context, page schemas.Page, profileName string) error {
	return schemas.ErrUnsupportedOperation
}

const primeRailJS = `(() => {
  for (const section of document.querySelectorAll('section[data-testid="standard-carousel"]')) {
    const label = section.querySelector('span[data-testid="carousel-title"] p, span[data-testid="carousel-title"]');
    if (!label) continue;
    const t = (label.textContent || "").trim().toLowerCase();
    if (t !== "continue watching") continue;
    const items = [];
    const seen = new Set();
    for (const a of section.querySelectorAll('a[href*="/detail/"]')) {
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

func (p *Prime) ExtractContinueWatching(ctx context.Context, page schemas.Page) ([]schemas.ContinueWatchingItem, bool, error) {
	return scanRail(ctx, page, primeRailJS)
}

func (p *Prime) FormatRawContinueWatchingData(ctx context.Context, items []schemas.ContinueWatchingItem, page schemas.Page) (schemas.ContinueWatchingData, error) {
	return formatByPattern(items, primeIDPattern, p.logger), nil
}
