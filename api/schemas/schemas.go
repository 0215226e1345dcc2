// File: api/schemas/schemas.go
// Shared data model for the scrape orchestration core. Kept free of browser
// and database imports so every layer can depend on it.
package schemas

import (
	"fmt"
)

// Platform identifies one streaming provider integration.
type Platform string

const (
	PlatformNetflix   Platform = "netflix"
	PlatformPrime     Platform = "prime"
	PlatformHBO       Platform = "hbo"
	PlatformApple     Platform = "apple"
	PlatformDisney    Platform = "disney"
	PlatformParamount Platform = "paramount"
)

// AllPlatforms lists every known platform in batch execution order.
var AllPlatforms = []Platform{
	PlatformNetflix,
	PlatformPrime,
	PlatformHBO,
	PlatformApple,
	PlatformDisney,
	PlatformParamount,
}

// ParsePlatform validates a user supplied platform name.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	for _, known := range AllPlatforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

func (p Platform) String() string { return string(p) }

// SameSite mirrors the cookie SameSite attribute as serialized by the
// browser ("Strict", "Lax" or "None").
type SameSite string

const (
	SameSiteStrict SameSite = "Strict"
	SameSiteLax    SameSite = "Lax"
	SameSiteNone   SameSite = "None"
)

// Cookie is one browser cookie inside a session snapshot. Expires is epoch
// seconds; values <= 0 mean a session cookie with no expiry.
type Cookie struct {
	Domain   string   `json:"domain"`
	Path     string   `json:"path,omitempty"`
	Name     string   `json:"name"`
	Value    string   `json:"value"`
	Expires  float64  `json:"expires,omitempty"`
	HTTPOnly bool     `json:"httpOnly,omitempty"`
	Secure   bool     `json:"secure,omitempty"`
	SameSite SameSite `json:"sameSite,omitempty"`
}

// StorageItem is a single localStorage entry.
type StorageItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OriginState carries the localStorage captured for one origin.
type OriginState struct {
	Origin       string        `json:"origin"`
	LocalStorage []StorageItem `json:"localStorage"`
}

// SessionState is the serialized authentication material of one browser
// context: cookies plus per-origin local storage. It is owned by exactly one
// platform and replaced wholesale on every save.
type SessionState struct {
	Cookies []Cookie      `json:"cookies"`
	Origins []OriginState `json:"origins"`
}

// EarliestExpiry returns the smallest positive cookie expiry in epoch
// seconds. The second return is false when no cookie carries a positive
// expiry, in which case the session has no natural expiration.
func (s *SessionState) EarliestExpiry() (int64, bool) {
	var min float64
	found := false
	for _, c := range s.Cookies {
		if c.Expires <= 0 {
			continue
		}
		if !found || c.Expires < min {
			min = c.Expires
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return int64(min), true
}

// Credentials is a stored login for one platform.
type Credentials struct {
	Email    string
	Password string
}

// ContinueWatchingItem is the raw extraction unit produced by an adapter:
// the visible title of a card and the deep link it points at.
type ContinueWatchingItem struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

// ContinueWatchingEntry is one normalized resume entry.
type ContinueWatchingEntry struct {
	Title string `json:"title"`
	ID    string `json:"id"`
}

// ContinueWatchingData is the canonical scrape output: a dense integer index
// mapped to normalized entries, ordered as the platform presented them.
// Integer keys serialize as JSON object keys ("0", "1", ...).
type ContinueWatchingData map[int]ContinueWatchingEntry
