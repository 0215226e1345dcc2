package platforms

import (
	"context"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
)

func TestNetflixIsLoggedIn(t *testing.T) {
	adapter := NewNetflix(nullCredStore{}, zap.NewNop())

	t.Run("browse page means logged in", func(t *testing.T) {
		page := &fakeStaticPage{url: "https://www.netflix.com/browse"}
		loggedIn, err := adapter.IsLoggedIn(context.Background(), page)
		require.NoError(t, err)
		assert.True(t, loggedIn)
	})

	t.Run("login redirect means logged out", func(t *testing.T) {
		page := &fakeStaticPage{url: "https://www.netflix.com/login?nextpage=browse"}
		loggedIn, err := adapter.IsLoggedIn(context.Background(), page)
		require.NoError(t, err)
		assert.False(t, loggedIn)
	})
}

func TestNetflixLoginWithoutCredentials(t *testing.T) {
	adapter := NewNetflix(nullCredStore{}, zap.NewNop())
	err := adapter.Login(context.Background(), &fakeStaticPage{})
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrCredentialsMissing)
	assert.Contains(t, err.Error(), "netflix")
}

func TestPrimeIsLoggedIn(t *testing.T) {
	adapter := NewPrime(nullCredStore{}, zap.NewNop())

	t.Run("account link pointing at signin means logged out", func(t *testing.T) {
		page := &fakeStaticPage{attrs: map[string]string{
			"#nav-link-accountList\x00href": "https://www.amazon.com/ap/signin?openid.pape=...",
		}}
		loggedIn, err := adapter.IsLoggedIn(context.Background(), page)
		require.NoError(t, err)
		assert.False(t, loggedIn)
	})

	t.Run("account link elsewhere means logged in", func(t *testing.T) {
		page := &fakeStaticPage{attrs: map[string]string{
			"#nav-link-accountList\x00href": "https://www.amazon.com/gp/css/homepage.html",
		}}
		loggedIn, err := adapter.IsLoggedIn(context.Background(), page)
		require.NoError(t, err)
		assert.True(t, loggedIn)
	})

	t.Run("nested anchor is consulted as fallback", func(t *testing.T) {
		page := &fakeStaticPage{attrs: map[string]string{
			"#nav-link-accountList a\x00href": "https://www.amazon.com/gp/css/homepage.html",
		}}
		loggedIn, err := adapter.IsLoggedIn(context.Background(), page)
		require.NoError(t, err)
		assert.True(t, loggedIn)
	})
}

func TestHBOIsLoggedIn(t *testing.T) {
	adapter := NewHBO(nullCredStore{}, zap.NewNop())

	t.Run("missing nav item means logged out", func(t *testing.T) {
		loggedIn, err := adapter.IsLoggedIn(context.Background(), &fakeStaticPage{})
		require.NoError(t, err)
		assert.False(t, loggedIn)
	})

	t.Run("nav item without login link means logged in", func(t *testing.T) {
		page := &fakeStaticPage{attrs: map[string]string{
			"#header-secondary-nav-item\x00href": "https://play.hbomax.com/profile",
		}}
		loggedIn, err := adapter.IsLoggedIn(context.Background(), page)
		require.NoError(t, err)
		assert.True(t, loggedIn)
	})
}

func TestAppleIsLoggedIn(t *testing.T) {
	adapter := NewApple(nullCredStore{}, zap.NewNop())

	t.Run("visible sign-in button means logged out", func(t *testing.T) {
		page := &fakeStaticPage{visible: map[string]bool{
			`button[data-testid="sign-in-button"]`: true,
		}}
		loggedIn, err := adapter.IsLoggedIn(context.Background(), page)
		require.NoError(t, err)
		assert.False(t, loggedIn)
	})

	t.Run("absent sign-in button means logged in", func(t *testing.T) {
		loggedIn, err := adapter.IsLoggedIn(context.Background(), &fakeStaticPage{})
		require.NoError(t, err)
		assert.True(t, loggedIn)
	})
}

func TestParamountIsLoggedIn(t *testing.T) {
	adapter := NewParamount(zap.NewNop())

	t.Run("upsell login link present means logged out", func(t *testing.T) {
		page := &fakeStaticPage{counts: map[string]int{
			`a[href="/account/flow/f-upsell/action/login/"]`: 1,
		}}
		loggedIn, err := adapter.IsLoggedIn(context.Background(), page)
		require.NoError(t, err)
		assert.False(t, loggedIn)
	})

	t.Run("no upsell link means logged in", func(t *testing.T) {
		loggedIn, err := adapter.IsLoggedIn(context.Background(), &fakeStaticPage{})
		require.NoError(t, err)
		assert.True(t, loggedIn)
	})
}

// Extraction runs against a page whose Evaluate decodes the canned rail JSON
// the scan script would produce in the browser.
func TestExtractContinueWatching(t *testing.T) {
	railJSON := `{"railFound":true,"items":[
		{"title":"Dark","href":"/watch/80100172"},
		{"title":"The Crown","href":"/title/80025678"}
	]}`
	page := &fakeStaticPage{evalFn: func(js string, out any) error {
		return jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(railJSON, out)
	}}

	adapter := NewNetflix(nullCredStore{}, zap.NewNop())
	items, railFound, err := adapter.ExtractContinueWatching(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, railFound)
	require.Len(t, items, 2)

	data, err := adapter.FormatRawContinueWatchingData(context.Background(), items, page)
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Equal(t, "80100172", data[0].ID)
	assert.Equal(t, "The Crown", data[1].Title)
}

func TestExtractMissingRail(t *testing.T) {
	page := &fakeStaticPage{evalFn: func(js string, out any) error {
		return jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(`{"railFound":false,"items":[]}`, out)
	}}

	adapter := NewDisney(nullCredStore{}, zap.NewNop())
	items, railFound, err := adapter.ExtractContinueWatching(context.Background(), page)
	require.NoError(t, err)
	assert.False(t, railFound)
	assert.Empty(t, items)
}

func TestAppleFormatResolvesEpisodeTitles(t *testing.T) {
	adapter := NewApple(nullCredStore{}, zap.NewNop())

	page := &fakeStaticPage{evalFn: func(js string, out any) error {
		// The only evaluation during formatting reads the show link text.
		return jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(`"Severance"`, out)
	}}

	items := []schemas.ContinueWatchingItem{
		{Title: "", Href: "/episode/umc.cmc.abc?showId=umc.cmc.show"},
		{Title: "CODA", Href: "/movie/umc.cmc.coda"},
	}
	data, err := adapter.FormatRawContinueWatchingData(context.Background(), items, page)
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Equal(t, "Severance", data[0].Title)
	assert.Equal(t, "umc.cmc.abc", data[0].ID)
	assert.Equal(t, "CODA", data[1].Title)
	assert.Equal(t, "https://tv.apple.com/episode/umc.cmc.abc?showId=umc.cmc.show", page.url,
		"episode resolution navigates to the deep link")
}
