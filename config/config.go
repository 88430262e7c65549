// Package config assembles the layer's configuration from its two surfaces
// into one validated Config.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/habityzer/layer/route"
	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
)

// LegacyE2EStorageKey is the unscoped key an older client used to persist the
// E2E app token. It is only ever cleared.
const LegacyE2EStorageKey = "e2e_app_token"

// EnvProduction is the environment name that suppresses diagnostic tracing.
const EnvProduction = "production"

// Config is the merged configuration. It is built once by Merge or Load and
// must be treated as read-only afterwards.
type Config struct {
	Cookies     Cookies
	Guard       Guard
	Proxy       Proxy
	Provider    Provider
	Environment string
}

// Cookies names and shapes the credential cookies. Names are the prefix
// followed by a base name.
type Cookies struct {
	Prefix           string
	IdTokenName      string
	AccessTokenName  string
	RefreshTokenName string
	E2ETokenName     string

	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// IdToken is the scoped id token cookie name.
func (c Cookies) IdToken() string { return c.Prefix + c.IdTokenName }

// AccessToken is the scoped access token cookie name.
func (c Cookies) AccessToken() string { return c.Prefix + c.AccessTokenName }

// RefreshToken is the scoped refresh token cookie name.
func (c Cookies) RefreshToken() string { return c.Prefix + c.RefreshTokenName }

// E2EToken is the scoped E2E app token cookie name.
func (c Cookies) E2EToken() string { return c.Prefix + c.E2ETokenName }

// LegacyE2EToken is the unscoped E2E cookie name.
func (c Cookies) LegacyE2EToken() string { return c.E2ETokenName }

// E2EStorageKey is the scoped counterpart of LegacyE2EStorageKey.
func (c Cookies) E2EStorageKey() string { return c.Prefix + LegacyE2EStorageKey }

// Guard configures route guarding.
type Guard struct {
	Mode            route.Mode
	PublicRoutes    []string
	ProtectedRoutes []string
	SkipPrefixes    []string
	LoginPath       string
	AppTokenPrefix  string
	ClockSkew       time.Duration
}

// Proxy configures the backend API proxy.
type Proxy struct {
	BaseURL        string
	Prefix         string
	Timeout        time.Duration
	CA             string
	PublicRoutes   []string
	TokenNamespace string
}

// Provider configures the OIDC provider integration.
type Provider struct {
	Issuer               string
	ClientID             string
	ClientSecret         string
	RedirectURL          string
	LogoutRedirectURL    string
	PostLoginRedirectURL string
	Scopes               []string
	CA                   string
}

// Production reports whether the configured environment is production.
func (c *Config) Production() bool {
	return c != nil && c.Environment == EnvProduction
}

// Logger returns a named logger for the layer's components. Non-production
// environments log at debug level.
func (c *Config) Logger(name string) hclog.Logger {
	level := hclog.Debug
	if c.Production() {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:  name,
		Level: level,
	})
}

// TraceLogger returns the logger used for auth decision tracing. It discards
// everything in production.
func (c *Config) TraceLogger(name string) hclog.Logger {
	if c.Production() {
		return hclog.NewNullLogger()
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:  name,
		Level: hclog.Trace,
	})
}

// Load reads both configuration surfaces from the environment and merges them.
//
// Supported options:
//
//	WithEnvFiles
//	WithEnvironment
func Load(opt ...Option) (*Config, error) {
	const op = "config.Load"
	opts := getLoadOpts(opt...)

	parseOpts := env.Options{}
	if opts.withEnvironment != nil {
		parseOpts.Environment = opts.withEnvironment
	} else {
		for _, f := range opts.withEnvFiles {
			if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%s: unable to load %s: %w", op, f, err)
			}
		}
	}

	var rt Runtime
	if err := env.ParseWithOptions(&rt, parseOpts); err != nil {
		return nil, fmt.Errorf("%s: parse runtime env: %v: %w", op, err, ErrInvalidConfig)
	}
	var mod Module
	if err := env.ParseWithOptions(&mod, parseOpts); err != nil {
		return nil, fmt.Errorf("%s: parse module env: %v: %w", op, err, ErrInvalidConfig)
	}
	c, err := Merge(rt, mod)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}
