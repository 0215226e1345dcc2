// File: internal/platforms/apple.go
package platforms

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
)

const appleBrowseURL = "https://tv.apple.com"

var appleIDPattern = regexp.MustCompile(`/(?:movie|episode)/([^/?]+)`)

// Apple scrapes Apple TV+. Sign-in is the two-step Apple ID flow; the rail's
// episode cards omit the show title, so normalization resolves titles by
// visiting each deep link.
type Apple struct {
	creds  schemas.CredentialStore
	logger *zap.Logger
}

var _ schemas.ServiceAdapter = (*Apple)(nil)

func NewApple(creds schemas.CredentialStore, logger *zap.Logger) *Apple {
	return &Apple{creds: creds, logger: logger.Named("apple")}
}

func (a *Apple) Platform() schemas.Platform { return schemas.PlatformApple }
func (a *Apple) BrowseURL() string          { return appleBrowseURL }
func (a *Apple) SupportsProfiles() bool     { return false }

func (a *Apple) IsLoggedIn(ctx context.Context, page schemas.Page) (bool, error) {
	visible, err := page.IsVisible(ctx, `button[data-testid="sign-in-button"]`)
	if err != nil {
		return false, err
	}
	return !visible, nil
}

func (a *Apple) Login(ctx context.Context, page schemas.Page) error {
	creds, err := loadCredentials(ctx, a.creds, a.Platform())
	if err != nil {
		return err
	}

	if err := page.Click(ctx, `button[data-testid="sign-in-button"]`, loginStepTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: a.Platform(), Reason: "sign-in button not found", Err: err}
	}
	if err := page.Fill(ctx, `input#account_name_text_field`, creds.Email, loginFieldTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: a.Platform(), Reason: "Apple ID field not found", Err: err}
	}
	if err := page.Click(ctx, `#sign-in`, loginStepTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: a.Platform(), Reason: "continue button not found", Err: err}
	}
	if err := page.Fill(ctx, `input#password_text_field`, creds.Password, loginFieldTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: a.Platform(), Reason: "password field not found", Err: err}
	}
	if err := page.Click(ctx, `#sign-in`, loginStepTimeout); err != nil {
		return &schemas.AuthenticationError{Platform: a.Platform(), Reason: "submit button not found", Err: err}
	}

	// No reliable post-login URL exists; poll the sign-in button away.
	deadline := time.Now().Add(loginRedirectTimeout)
	for {
		loggedIn, err := a.IsLoggedIn(ctx, page)
		if err != nil {
			return err
		}
		if loggedIn {
			return nil
		}
		if time.Now().After(deadline) {
			return &schemas.AuthenticationError{Platform: a.Platform(), Reason: "sign-in button still visible after login"}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (a *Apple) IsProfilesGate(ctx context.Context, page schemas.Page) (bool, error) {
	return false, nil
}

func (a *Apple) SelectProfile(ctx context.Context, page schemas.Page, profileName string) error {
	return schemas.ErrUnsupportedOperation
}

const appleRailJS = `(() => {
  for (const span of document.querySelectorAll("h2 > a > span, h2 span")) {
    const t = (span.textContent || "").trim().toLowerCase();
    if (!t.includes("continue watching")) continue;
    const content = span.closest('div[data-testid="section-content"], section') ||
      (span.closest("h2") ? span.closest("h2").parentElement : null);
    if (!content) continue;
    const shelf = content.querySelector("div.shelf") || content;
    const items = [];
    const seen = new Set();
    for (const el of shelf.querySelectorAll('a[href*="/movie/"], a[href*="/episode/"]')) {
      const href = el.getAttribute("href") || "";
      if (!href || seen.has(href)) continue;
      seen.add(href);
      const title = (el.getAttribute("aria-label") || el.textContent || "").trim();
      items.push({ title: title, href: href });
    }
    return { railFound: true, items: items };
  }
  return { railFound: false, items: [] };
})()`

func (a *Apple) ExtractContinueWatching(ctx context.Context, page schemas.Page) ([]schemas.ContinueWatchingItem, bool, error) {
	return scanRail(ctx, page, appleRailJS)
}

// FormatRawContinueWatchingData resolves episode cards with no visible title
// by navigating to the card's deep link and reading the show link there.
// This is the one normalization step allowed to navigate.
func (a *Apple) FormatRawContinueWatchingData(ctx context.Context, items []schemas.ContinueWatchingItem, page schemas.Page) (schemas.ContinueWatchingData, error) {
	data := make(schemas.ContinueWatchingData, len(items))
	idx := 0
	for _, item := range items {
		m := appleIDPattern.FindStringSubmatch(item.Href)
		if m == nil {
			a.logger.Debug("Dropping card without a recognizable content id", zap.String("href", item.Href))
			continue
		}

		title := strings.TrimSpace(item.Title)
		if title == "" && strings.Contains(item.Href, "/episode/") {
			resolved, err := a.resolveEpisodeTitle(ctx, page, item.Href)
			if err != nil {
				a.logger.Warn("Failed to resolve episode title; keeping card untitled.",
					zap.String("href", item.Href), zap.Error(err))
			} else {
				title = resolved
			}
		}

		data[idx] = schemas.ContinueWatchingEntry{Title: title, ID: m[1]}
		idx++
	}
	return data, nil
}

func (a *Apple) resolveEpisodeTitle(ctx context.Context, page schemas.Page, href string) (string, error) {
	url := href
	if strings.HasPrefix(href, "/") {
		url = appleBrowseURL + href
	}
	if err := page.Navigate(ctx, url); err != nil {
		return "", err
	}
	var title string
	err := page.Evaluate(ctx, `(() => {
  const a = document.querySelector('a[href*="/show/"]');
  return a ? (a.textContent || "").trim() : "";
})()`, &title)
	if err != nil {
		return "", err
	}
	return title, nil
}
