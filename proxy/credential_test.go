package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/habityzer/layer/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string, publicRoutes ...string) *config.Config {
	return &config.Config{
		Cookies: config.Cookies{
			Prefix:           "app_",
			IdTokenName:      "id_token",
			AccessTokenName:  "access_token",
			RefreshTokenName: "refresh_token",
			E2ETokenName:     "kinde_token",
		},
		Guard: config.Guard{
			LoginPath:      "/api/kinde/login",
			AppTokenPrefix: "app_",
		},
		Proxy: config.Proxy{
			BaseURL:        baseURL,
			Prefix:         "/api/symfony",
			Timeout:        5 * time.Second,
			PublicRoutes:   publicRoutes,
			TokenNamespace: "kinde_",
		},
	}
}

type testTokens struct {
	access    string
	accessErr error
	id        string
	idErr     error
}

func (s *testTokens) AccessToken(context.Context, http.ResponseWriter, *http.Request) (string, error) {
	return s.access, s.accessErr
}

func (s *testTokens) IdToken(context.Context, *http.Request) (string, error) {
	return s.id, s.idErr
}

func TestCredential_Authorization(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		cred         Credential
		want         string
		wantRedacted string
	}{
		{name: "none", cred: Credential{Kind: KindNone}},
		{
			name:         "app",
			cred:         Credential{Kind: KindApp, Token: "app_test123456789"},
			want:         "Bearer app_test123456789",
			wantRedacted: "Bearer app_test12...",
		},
		{
			name:         "access",
			cred:         Credential{Kind: KindAccess, Token: "eyJhbGciOiJFUzI1NiJ9.e30.sig"},
			want:         "Bearer kinde_eyJhbGciOiJFUzI1NiJ9.e30.sig",
			wantRedacted: "Bearer kinde_eyJhbGciOi...",
		},
		{
			name:         "short-id",
			cred:         Credential{Kind: KindId, Token: "abc"},
			want:         "Bearer kinde_abc",
			wantRedacted: "Bearer kinde_abc...",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert := assert.New(t)
			assert.Equal(tt.want, tt.cred.Authorization("kinde_"))
			assert.Equal(tt.wantRedacted, tt.cred.redacted("kinde_"))
		})
	}
}

func TestSelector_Select(t *testing.T) {
	t.Parallel()
	c := testConfig("http://backend.test", "/api/public/**", "/health")

	tests := []struct {
		name      string
		tokens    TokenSource
		cookies   map[string]string
		path      string
		want      Credential
		wantIsErr error
	}{
		{
			name:   "public-glob",
			tokens: &testTokens{access: "access"},
			path:   "/api/public/plans",
			want:   Credential{Kind: KindNone},
		},
		{
			name:   "public-glob-base",
			tokens: &testTokens{},
			path:   "/api/public",
			want:   Credential{Kind: KindNone},
		},
		{
			name: "public-exact",
			path: "/health",
			want: Credential{Kind: KindNone},
		},
		{
			name:      "public-lookalike",
			path:      "/healthz",
			wantIsErr: ErrUnauthenticated,
		},
		{
			name:    "scoped-e2e-app-token",
			tokens:  &testTokens{access: "access"},
			cookies: map[string]string{"app_kinde_token": "app_test123"},
			path:    "/users/5",
			want:    Credential{Kind: KindApp, Token: "app_test123"},
		},
		{
			name:    "e2e-without-marker",
			tokens:  &testTokens{access: "access"},
			cookies: map[string]string{"app_kinde_token": "test123"},
			path:    "/users/5",
			want:    Credential{Kind: KindAccess, Token: "access"},
		},
		{
			name:    "legacy-e2e-cookie-not-used",
			tokens:  &testTokens{access: "access"},
			cookies: map[string]string{"kinde_token": "app_test123"},
			path:    "/users/5",
			want:    Credential{Kind: KindAccess, Token: "access"},
		},
		{
			name:   "access-error-falls-back",
			tokens: &testTokens{accessErr: errors.New("refresh failed"), id: "id"},
			path:   "/users/5",
			want:   Credential{Kind: KindId, Token: "id"},
		},
		{
			name:   "blank-access-falls-back",
			tokens: &testTokens{access: "  ", id: "id"},
			path:   "/users/5",
			want:   Credential{Kind: KindId, Token: "id"},
		},
		{
			name:   "unsendable-access-falls-back",
			tokens: &testTokens{access: "bad\r\ntoken", id: "id"},
			path:   "/users/5",
			want:   Credential{Kind: KindId, Token: "id"},
		},
		{
			name:      "id-error",
			tokens:    &testTokens{idErr: errors.New("no session")},
			path:      "/users/5",
			wantIsErr: ErrUnauthenticated,
		},
		{
			name:      "nothing",
			tokens:    &testTokens{},
			path:      "/users/5",
			wantIsErr: ErrUnauthenticated,
		},
		{
			name:      "no-token-source",
			path:      "/users/5",
			wantIsErr: ErrUnauthenticated,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			s, err := NewSelector(c, tt.tokens)
			require.NoError(err)
			r := httptest.NewRequest(http.MethodGet, "/api/symfony"+tt.path, nil)
			for k, v := range tt.cookies {
				r.AddCookie(&http.Cookie{Name: k, Value: v})
			}
			got, err := s.Select(context.Background(), httptest.NewRecorder(), r, tt.path)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestNewSelector(t *testing.T) {
	t.Parallel()
	_, err := NewSelector(nil, nil)
	assert.Truef(t, errors.Is(err, ErrNilParameter), "wanted \"%s\" but got \"%s\"", ErrNilParameter, err)

	c := testConfig("http://backend.test")
	c.Guard.AppTokenPrefix = ""
	_, err = NewSelector(c, nil)
	assert.Truef(t, errors.Is(err, ErrInvalidParameter), "wanted \"%s\" but got \"%s\"", ErrInvalidParameter, err)
}
