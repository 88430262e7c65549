package provider

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/habityzer/layer/config"
	"github.com/stretchr/testify/require"
)

const (
	testClientID     = "test-client-id"
	testClientSecret = "test-client-secret"
	testRedirect     = "https://app.example.com/api/kinde/callback"
	testLogout       = "https://app.example.com/"
)

func testLayerConfig(tp *TestProvider) *config.Config {
	return &config.Config{
		Cookies: config.Cookies{
			Prefix:           "app_",
			IdTokenName:      "id_token",
			AccessTokenName:  "access_token",
			RefreshTokenName: "refresh_token",
			E2ETokenName:     "kinde_token",
			SameSite:         http.SameSiteLaxMode,
			MaxAge:           168 * time.Hour,
		},
		Guard: config.Guard{
			LoginPath:      "/api/kinde/login",
			AppTokenPrefix: "app_",
			ClockSkew:      30 * time.Second,
		},
		Provider: config.Provider{
			Issuer:               tp.Addr(),
			ClientID:             testClientID,
			ClientSecret:         testClientSecret,
			RedirectURL:          testRedirect,
			LogoutRedirectURL:    testLogout,
			PostLoginRedirectURL: "/dashboard",
			Scopes:               []string{"profile", "email", "offline"},
			CA:                   tp.CACert(),
		},
	}
}

func testStartProvider(t *testing.T) (*TestProvider, *Provider) {
	t.Helper()
	require := require.New(t)
	tp := StartTestProvider(t)
	tp.SetClientCreds(testClientID, testClientSecret)
	tp.SetAllowedRedirectURIs([]string{testRedirect})

	pc, err := NewConfig(testLayerConfig(tp))
	require.NoError(err)
	p, err := NewProvider(context.Background(), pc)
	require.NoError(err)
	t.Cleanup(p.Done)
	return tp, p
}

// testAuthCode follows the provider's auth URL for s and returns the state and
// code sent back to the redirect URL.
func testAuthCode(t *testing.T, tp *TestProvider, p *Provider, s *State) (state, code string) {
	t.Helper()
	require := require.New(t)
	authURL, err := p.AuthURL(s)
	require.NoError(err)

	resp, err := tp.HTTPClient().Get(authURL)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(err)
	require.Empty(loc.Query().Get("error"))
	return loc.Query().Get("state"), loc.Query().Get("code")
}

func testCookies(resp *http.Response) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range resp.Cookies() {
		out[c.Name] = c
	}
	return out
}
