package config

import "time"

// Runtime is the layer's own configuration surface. It is read by the route
// guards, the backend proxy and the session helpers.
type Runtime struct {
	CookiePrefix       string   `env:"AUTH_COOKIE_PREFIX"`
	IdTokenName        string   `env:"AUTH_ID_TOKEN_NAME"`
	AccessTokenName    string   `env:"AUTH_ACCESS_TOKEN_NAME"`
	RefreshTokenName   string   `env:"AUTH_REFRESH_TOKEN_NAME"`
	LoginPath          string   `env:"AUTH_LOGIN_PATH"`
	AppTokenPrefix     string   `env:"AUTH_APP_TOKEN_PREFIX"`
	E2ETokenCookieName string   `env:"AUTH_E2E_TOKEN_COOKIE_NAME"`
	ClockSkewSeconds   *float64 `env:"AUTH_CLOCK_SKEW_SECONDS"`

	// Mode is "privateByDefault" (the default) or "publicByDefault".
	Mode            string   `env:"AUTH_MODE"`
	PublicRoutes    []string `env:"AUTH_PUBLIC_ROUTES"     envSeparator:","`
	ProtectedRoutes []string `env:"AUTH_PROTECTED_ROUTES"  envSeparator:","`
	PublicAPIRoutes []string `env:"AUTH_PUBLIC_API_ROUTES" envSeparator:","`
	SkipPrefixes    []string `env:"AUTH_SKIP_PREFIXES"     envSeparator:"," envDefault:"/api,/_app,/static,/assets"`

	APIBaseURL     string        `env:"API_BASE_URL"`
	APIPrefix      string        `env:"API_PREFIX"                envDefault:"/api/symfony"`
	APITimeout     time.Duration `env:"API_TIMEOUT"               envDefault:"30s"`
	APICA          string        `env:"API_CA_PEM"`
	TokenNamespace string        `env:"API_PROVIDER_TOKEN_PREFIX" envDefault:"kinde_"`

	Environment string `env:"APP_ENV" envDefault:"development"`
}

// Module is the configuration surface of the OIDC provider integration. Some
// of its values are mirrored into the runtime surface when the runtime
// surface leaves them out.
type Module struct {
	Issuer               string   `env:"OIDC_ISSUER"`
	ClientID             string   `env:"OIDC_CLIENT_ID"`
	ClientSecret         string   `env:"OIDC_CLIENT_SECRET"`
	RedirectURL          string   `env:"OIDC_REDIRECT_URL"`
	LogoutRedirectURL    string   `env:"OIDC_LOGOUT_REDIRECT_URL"`
	PostLoginRedirectURL string   `env:"OIDC_POST_LOGIN_REDIRECT_URL" envDefault:"/dashboard"`
	Scopes               []string `env:"OIDC_SCOPES"                  envSeparator:"," envDefault:"profile,email,offline"`
	ProviderCA           string   `env:"OIDC_PROVIDER_CA"`

	CookiePrefix   string        `env:"OIDC_COOKIE_PREFIX"`
	CookieSecure   *bool         `env:"OIDC_COOKIE_SECURE"`
	CookieSameSite string        `env:"OIDC_COOKIE_SAME_SITE" envDefault:"lax"`
	CookieMaxAge   time.Duration `env:"OIDC_COOKIE_MAX_AGE"   envDefault:"168h"`

	PublicRoutes []string `env:"OIDC_PUBLIC_ROUTES" envSeparator:","`
}
