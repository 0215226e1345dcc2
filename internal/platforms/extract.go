// File: internal/platforms/extract.go
package platforms

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
)

// Shared flow timeouts. Login field waits are short because a missing field
// means a changed page, not a slow one; redirects after submit are generous.
const (
	loginFieldTimeout    = 15 * time.Second
	loginStepTimeout     = 10 * time.Second
	loginRedirectTimeout = 60 * time.Second

	lazyScrollSteps = 4
	lazyScrollPx    = 800
)

// railResult is the JSON shape every adapter's rail-scan script returns.
// railFound=false with no items is the valid "no resume content" outcome.
type railResult struct {
	RailFound bool                           `json:"railFound"`
	Items     []schemas.ContinueWatchingItem `json:"items"`
}

// scanRail scrolls lazily mounted sections into view and runs the adapter's
// rail-scan script.
func scanRail(ctx context.Context, page schemas.Page, js string) ([]schemas.ContinueWatchingItem, bool, error) {
	if err := page.LazyScroll(ctx, lazyScrollSteps, lazyScrollPx); err != nil {
		return nil, false, err
	}
	var res railResult
	if err := page.Evaluate(ctx, js, &res); err != nil {
		return nil, false, fmt.Errorf("rail scan failed: %w", err)
	}
	return res.Items, res.RailFound, nil
}

// formatByPattern normalizes raw items into the canonical index mapping,
// deriving each entry's ID from the first capture group of idPattern. Items
// whose href does not yield an ID are dropped; the index stays dense.
func formatByPattern(items []schemas.ContinueWatchingItem, idPattern *regexp.Regexp, log *zap.Logger) schemas.ContinueWatchingData {
	data := make(schemas.ContinueWatchingData, len(items))
	idx := 0
	for _, item := range items {
		m := idPattern.FindStringSubmatch(item.Href)
		if m == nil {
			log.Debug("Dropping card without a recognizable content id", zap.String("href", item.Href))
			continue
		}
		data[idx] = schemas.ContinueWatchingEntry{
			Title: strings.TrimSpace(item.Title),
			ID:    m[len(m)-1],
		}
		idx++
	}
	return data
}

// waitURLLeaves polls the page location until it no longer contains substr.
// Several providers redirect through interstitial hosts after login, so a
// positive match list is impossible; "not on the login page anymore" is the
// robust signal.
func waitURLLeaves(ctx context.Context, page schemas.Page, substr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		loc, err := page.URL(ctx)
		if err != nil {
			return err
		}
		if !strings.Contains(loc, substr) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("still on %q after %s (url %q)", substr, timeout, loc)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// loadCredentials fetches stored credentials for a platform, turning absence
// into the fatal ErrCredentialsMissing sentinel.
func loadCredentials(ctx context.Context, store schemas.CredentialStore, platform schemas.Platform) (*schemas.Credentials, error) {
	creds, err := store.LoadCredentials(ctx, platform)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, fmt.Errorf("%s: %w", platform, schemas.ErrCredentialsMissing)
	}
	return creds, nil
}
