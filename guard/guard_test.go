package guard

import (
	"errors"
	"testing"
	"time"

	"github.com/habityzer/layer/config"
	"github.com/habityzer/layer/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		config    func() *config.Config
		wantErr   bool
		wantIsErr error
	}{
		{
			name:   "valid",
			config: func() *config.Config { return testConfig(route.PrivateByDefault, []string{"/"}, nil) },
		},
		{
			name:      "nil-config",
			config:    func() *config.Config { return nil },
			wantErr:   true,
			wantIsErr: ErrNilParameter,
		},
		{
			name: "missing-login-path",
			config: func() *config.Config {
				c := testConfig(route.PrivateByDefault, []string{"/"}, nil)
				c.Guard.LoginPath = ""
				return c
			},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "bad-mode",
			config: func() *config.Config {
				return testConfig(route.Mode("sometimes"), []string{"/"}, nil)
			},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "missing-app-token-prefix",
			config: func() *config.Config {
				c := testConfig(route.PrivateByDefault, []string{"/"}, nil)
				c.Guard.AppTokenPrefix = ""
				return c
			},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			g, err := New(tt.config())
			if tt.wantErr {
				require.Error(err)
				assert.Nil(g)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.Equal(testLoginPath, g.LoginPath())
		})
	}
}

func TestGuard_Decide(t *testing.T) {
	t.Parallel()
	live := testToken(t, time.Hour)
	expired := testToken(t, -time.Hour)
	withinSkew := testToken(t, 30*time.Second)

	privateGuard := testGuard(t, testConfig(route.PrivateByDefault, []string{"/", "/blog"}, nil))
	publicGuard := testGuard(t, testConfig(route.PublicByDefault, []string{"/"}, []string{"/dashboard"}))

	tests := []struct {
		name  string
		guard *Guard
		path  string
		src   CredentialSource
		want  Decision
	}{
		{
			name:  "no-cookies-redirects",
			guard: privateGuard,
			path:  "/dashboard",
			src:   Values{},
			want:  Decision{Outcome: RedirectToLogin, Path: "/dashboard", RequiresAuth: true},
		},
		{
			name:  "nil-source-redirects",
			guard: privateGuard,
			path:  "/dashboard",
			want:  Decision{Outcome: RedirectToLogin, Path: "/dashboard", RequiresAuth: true},
		},
		{
			name:  "empty-cookie-values-are-absent",
			guard: privateGuard,
			path:  "/dashboard",
			src:   Values{testIdCookie: "", testAccessCookie: ""},
			want:  Decision{Outcome: RedirectToLogin, Path: "/dashboard", RequiresAuth: true},
		},
		{
			name:  "scoped-app-token-allows",
			guard: privateGuard,
			path:  "/dashboard",
			src:   Values{testScopedE2E: "app_test123", testAccessCookie: expired},
			want: Decision{
				Outcome: Allow, Path: "/dashboard", RequiresAuth: true,
				HasAccessToken: true, HasAppToken: true,
			},
		},
		{
			name:  "legacy-app-token-allows",
			guard: privateGuard,
			path:  "/dashboard",
			src:   Values{testLegacyE2E: "app_test123"},
			want:  Decision{Outcome: Allow, Path: "/dashboard", RequiresAuth: true, HasAppToken: true},
		},
		{
			name:  "e2e-cookie-without-marker-is-ignored",
			guard: privateGuard,
			path:  "/dashboard",
			src:   Values{testScopedE2E: "test123"},
			want:  Decision{Outcome: RedirectToLogin, Path: "/dashboard", RequiresAuth: true},
		},
		{
			name:  "expired-access-token-clears",
			guard: privateGuard,
			path:  "/dashboard",
			src:   Values{testAccessCookie: expired},
			want: Decision{
				Outcome: ClearAndRedirectToLogin, Path: "/dashboard", RequiresAuth: true,
				HasAccessToken: true,
			},
		},
		{
			name:  "token-inside-skew-window-clears",
			guard: privateGuard,
			path:  "/dashboard",
			src:   Values{testIdCookie: withinSkew},
			want: Decision{
				Outcome: ClearAndRedirectToLogin, Path: "/dashboard", RequiresAuth: true,
				HasIdToken: true,
			},
		},
		{
			name:  "garbage-tokens-clear",
			guard: privateGuard,
			path:  "/settings/profile",
			src:   Values{testIdCookie: "not-a-jwt", testAccessCookie: "a.b.c"},
			want: Decision{
				Outcome: ClearAndRedirectToLogin, Path: "/settings/profile", RequiresAuth: true,
				HasIdToken: true, HasAccessToken: true,
			},
		},
		{
			name:  "live-id-token-allows",
			guard: privateGuard,
			path:  "/dashboard",
			src:   Values{testIdCookie: live, testAccessCookie: expired},
			want: Decision{
				Outcome: Allow, Path: "/dashboard", RequiresAuth: true,
				HasIdToken: true, HasAccessToken: true, IdTokenUsable: true,
			},
		},
		{
			name:  "live-access-token-allows",
			guard: privateGuard,
			path:  "/dashboard",
			src:   Values{testAccessCookie: live},
			want: Decision{
				Outcome: Allow, Path: "/dashboard", RequiresAuth: true,
				HasAccessToken: true, AccessTokenUsable: true,
			},
		},
		{
			name:  "app-token-in-access-slot-is-usable",
			guard: privateGuard,
			path:  "/dashboard",
			src:   Values{testAccessCookie: "app_in_access_slot"},
			want: Decision{
				Outcome: Allow, Path: "/dashboard", RequiresAuth: true,
				HasAccessToken: true, AccessTokenUsable: true,
			},
		},
		{
			name:  "public-root",
			guard: privateGuard,
			path:  "/",
			want:  Decision{Outcome: Allow, Path: "/"},
		},
		{
			name:  "public-child",
			guard: privateGuard,
			path:  "/blog/first-post",
			want:  Decision{Outcome: Allow, Path: "/blog/first-post"},
		},
		{
			name:  "public-lookalike-is-protected",
			guard: privateGuard,
			path:  "/blogger",
			want:  Decision{Outcome: RedirectToLogin, Path: "/blogger", RequiresAuth: true},
		},
		{
			name:  "skip-api",
			guard: privateGuard,
			path:  "/api/symfony/users",
			want:  Decision{Outcome: Skip, Path: "/api/symfony/users"},
		},
		{
			name:  "skip-assets",
			guard: privateGuard,
			path:  "/_app/entry.js",
			want:  Decision{Outcome: Skip, Path: "/_app/entry.js"},
		},
		{
			name:  "empty-path-skips",
			guard: privateGuard,
			path:  "",
			want:  Decision{Outcome: Skip},
		},
		{
			name:  "public-by-default-unlisted",
			guard: publicGuard,
			path:  "/pricing",
			want:  Decision{Outcome: Allow, Path: "/pricing"},
		},
		{
			name:  "public-by-default-protected",
			guard: publicGuard,
			path:  "/dashboard/stats",
			want:  Decision{Outcome: RedirectToLogin, Path: "/dashboard/stats", RequiresAuth: true},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.guard.Decide(tt.path, tt.src)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGuard_Decide_trace(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	logger, lines := testTraceLogger(t)
	g := testGuard(t, testConfig(route.PrivateByDefault, []string{"/"}, nil), WithLogger(logger))

	g.Decide("/dashboard", Values{testAccessCookie: testToken(t, -time.Hour)})
	assert.Equal([]string{
		EventRouteCheck,
		EventCookieState,
		EventTokenEvaluation,
		EventTokensUnusable,
	}, messages(lines()))
	for _, l := range lines() {
		assert.Equal("/dashboard", l.Path)
	}
}

func TestGuard_Decide_roundTrip(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	g := testGuard(t, testConfig(route.PrivateByDefault, []string{"/"}, nil))

	src := Values{testIdCookie: testToken(t, -time.Hour), testAccessCookie: testToken(t, -time.Minute)}
	d := g.Decide("/dashboard", src)
	require.Equal(t, ClearAndRedirectToLogin, d.Outcome)
	assert.True(d.Redirect())
	assert.True(d.ClearCredentials())

	for _, c := range g.expiredCookies() {
		assert.Equal("", c.Value)
		assert.Equal("/", c.Path)
		assert.Less(c.MaxAge, 0)
		src[c.Name] = c.Value
	}
	again := g.Decide("/dashboard", src)
	assert.Equal(RedirectToLogin, again.Outcome)
	assert.False(again.ClearCredentials())
}

func TestCookies_Credential(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	c := Cookies{nil, {Name: "a", Value: "first"}, {Name: "a", Value: "second"}, {Name: "empty"}}

	v, ok := c.Credential("a")
	assert.True(ok)
	assert.Equal("first", v)

	_, ok = c.Credential("empty")
	assert.False(ok)

	_, ok = c.Credential("missing")
	assert.False(ok)
}
