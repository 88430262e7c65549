package config

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/habityzer/layer/route"
	"github.com/hashicorp/go-multierror"
)

// defaultPublicRoutes apply when neither surface lists public routes.
var defaultPublicRoutes = []string{"/"}

// Merge reconciles the runtime and module surfaces into one Config and
// validates it. Precedence is fixed: a runtime value always wins, and the
// module's cookie prefix and public routes are used only when the runtime
// surface leaves them unset. Every validation failure is reported, not just
// the first.
func Merge(rt Runtime, mod Module) (*Config, error) {
	const op = "config.Merge"
	var errs *multierror.Error
	requireString := func(v, key string) string {
		if strings.TrimSpace(v) == "" {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", key, ErrMissingConfig))
		}
		return v
	}
	invalid := func(key, format string, a ...interface{}) {
		errs = multierror.Append(errs, fmt.Errorf("%s: %s: %w", key, fmt.Sprintf(format, a...), ErrInvalidConfig))
	}

	// mirror module values the runtime surface left out
	if strings.TrimSpace(rt.CookiePrefix) == "" && strings.TrimSpace(mod.CookiePrefix) != "" {
		rt.CookiePrefix = mod.CookiePrefix
	}
	if rt.PublicRoutes == nil && mod.PublicRoutes != nil {
		rt.PublicRoutes = mod.PublicRoutes
	}
	if rt.PublicRoutes == nil {
		rt.PublicRoutes = defaultPublicRoutes
	}

	c := &Config{
		Environment: rt.Environment,
		Cookies: Cookies{
			Prefix:           requireString(rt.CookiePrefix, "AUTH_COOKIE_PREFIX"),
			IdTokenName:      requireString(rt.IdTokenName, "AUTH_ID_TOKEN_NAME"),
			AccessTokenName:  requireString(rt.AccessTokenName, "AUTH_ACCESS_TOKEN_NAME"),
			RefreshTokenName: requireString(rt.RefreshTokenName, "AUTH_REFRESH_TOKEN_NAME"),
			E2ETokenName:     requireString(rt.E2ETokenCookieName, "AUTH_E2E_TOKEN_COOKIE_NAME"),
			MaxAge:           mod.CookieMaxAge,
		},
		Guard: Guard{
			PublicRoutes:    cleanList(rt.PublicRoutes),
			ProtectedRoutes: cleanList(rt.ProtectedRoutes),
			SkipPrefixes:    cleanList(rt.SkipPrefixes),
			LoginPath:       requireString(rt.LoginPath, "AUTH_LOGIN_PATH"),
			AppTokenPrefix:  requireString(rt.AppTokenPrefix, "AUTH_APP_TOKEN_PREFIX"),
		},
		Proxy: Proxy{
			BaseURL:        strings.TrimRight(requireString(rt.APIBaseURL, "API_BASE_URL"), "/"),
			Prefix:         strings.TrimRight(rt.APIPrefix, "/"),
			Timeout:        rt.APITimeout,
			CA:             rt.APICA,
			PublicRoutes:   cleanList(rt.PublicAPIRoutes),
			TokenNamespace: rt.TokenNamespace,
		},
		Provider: Provider{
			Issuer:               requireString(mod.Issuer, "OIDC_ISSUER"),
			ClientID:             requireString(mod.ClientID, "OIDC_CLIENT_ID"),
			ClientSecret:         requireString(mod.ClientSecret, "OIDC_CLIENT_SECRET"),
			RedirectURL:          requireString(mod.RedirectURL, "OIDC_REDIRECT_URL"),
			LogoutRedirectURL:    requireString(mod.LogoutRedirectURL, "OIDC_LOGOUT_REDIRECT_URL"),
			PostLoginRedirectURL: mod.PostLoginRedirectURL,
			Scopes:               cleanList(mod.Scopes),
			CA:                   mod.ProviderCA,
		},
	}

	// the provider writes the cookies the guards read, so both must agree
	modPrefix := requireString(mod.CookiePrefix, "OIDC_COOKIE_PREFIX")
	if modPrefix != "" && rt.CookiePrefix != "" && modPrefix != rt.CookiePrefix {
		invalid("OIDC_COOKIE_PREFIX", "module prefix %q differs from runtime prefix %q", modPrefix, rt.CookiePrefix)
	}

	switch {
	case rt.ClockSkewSeconds == nil:
		errs = multierror.Append(errs, fmt.Errorf("AUTH_CLOCK_SKEW_SECONDS: %w", ErrMissingConfig))
	case math.IsNaN(*rt.ClockSkewSeconds) || math.IsInf(*rt.ClockSkewSeconds, 0) || *rt.ClockSkewSeconds < 0:
		invalid("AUTH_CLOCK_SKEW_SECONDS", "%v is not a non-negative number", *rt.ClockSkewSeconds)
	default:
		c.Guard.ClockSkew = time.Duration(*rt.ClockSkewSeconds * float64(time.Second))
	}

	mode, err := route.ParseMode(rt.Mode)
	if err != nil {
		invalid("AUTH_MODE", "%q is not privateByDefault or publicByDefault", rt.Mode)
	}
	c.Guard.Mode = mode

	if c.Guard.LoginPath != "" && !strings.HasPrefix(c.Guard.LoginPath, "/") {
		if u, err := url.Parse(c.Guard.LoginPath); err != nil || !u.IsAbs() {
			invalid("AUTH_LOGIN_PATH", "%q is neither a path nor an absolute URL", c.Guard.LoginPath)
		}
	}
	if c.Proxy.BaseURL != "" {
		if u, err := url.Parse(c.Proxy.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			invalid("API_BASE_URL", "%q is not an http(s) URL", c.Proxy.BaseURL)
		}
	}
	if c.Proxy.Prefix != "" && !strings.HasPrefix(c.Proxy.Prefix, "/") {
		invalid("API_PREFIX", "%q must start with /", c.Proxy.Prefix)
	}
	if c.Proxy.Timeout <= 0 {
		invalid("API_TIMEOUT", "%s must be positive", c.Proxy.Timeout)
	}
	if c.Provider.Issuer != "" {
		if u, err := url.Parse(c.Provider.Issuer); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			invalid("OIDC_ISSUER", "%q is not an http(s) URL", c.Provider.Issuer)
		}
	}
	if c.Cookies.MaxAge < 0 {
		invalid("OIDC_COOKIE_MAX_AGE", "%s is negative", c.Cookies.MaxAge)
	}

	sameSite, ok := parseSameSite(mod.CookieSameSite)
	if !ok {
		invalid("OIDC_COOKIE_SAME_SITE", "%q is not lax, strict or none", mod.CookieSameSite)
	}
	c.Cookies.SameSite = sameSite
	if mod.CookieSecure != nil {
		c.Cookies.Secure = *mod.CookieSecure
	} else {
		c.Cookies.Secure = c.Production()
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

func parseSameSite(s string) (http.SameSite, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode, true
	case "strict":
		return http.SameSiteStrictMode, true
	case "none":
		return http.SameSiteNoneMode, true
	default:
		return http.SameSiteDefaultMode, false
	}
}

// cleanList trims entries, drops empty ones and always returns a fresh slice.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
