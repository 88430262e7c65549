package provider

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/habityzer/layer/config"
	sdkhttp "github.com/habityzer/layer/sdk/http"
)

// DefaultHTTPTimeout bounds every call to the provider.
const DefaultHTTPTimeout = 30 * time.Second

// Config represents the configuration for the OIDC authorization code flow
// the layer runs against its provider.
type Config struct {
	// Issuer is the provider's issuer URL. Discovery happens at
	// Issuer/.well-known/openid-configuration.
	Issuer string

	// ClientId is the relying party id
	ClientId string

	// ClientSecret is the relying party secret
	ClientSecret ClientSecret

	// RedirectURL is the callback URL registered with the provider.
	RedirectURL string

	// LogoutRedirectURL is where the provider sends the user after logout.
	LogoutRedirectURL string

	// PostLoginRedirectURL is where the callback sends the user after a
	// successful login.
	PostLoginRedirectURL string

	// Scopes are requested in addition to the required "openid" scope.
	Scopes []string

	// SupportedSigningAlgs lists the id_token signing algorithms accepted.
	SupportedSigningAlgs []string

	// ProviderCA is an optional CA cert to use when sending requests to the
	// provider.
	ProviderCA string
}

// NewConfig builds the provider configuration from the merged layer
// configuration and validates it.
func NewConfig(c *config.Config) (*Config, error) {
	const op = "provider.NewConfig"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	pc := &Config{
		Issuer:               c.Provider.Issuer,
		ClientId:             c.Provider.ClientID,
		ClientSecret:         ClientSecret(c.Provider.ClientSecret),
		RedirectURL:          c.Provider.RedirectURL,
		LogoutRedirectURL:    c.Provider.LogoutRedirectURL,
		PostLoginRedirectURL: c.Provider.PostLoginRedirectURL,
		Scopes:               append([]string(nil), c.Provider.Scopes...),
		SupportedSigningAlgs: []string{oidc.RS256, oidc.ES256},
		ProviderCA:           c.Provider.CA,
	}
	if err := pc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pc, nil
}

// Validate the provider configuration. It doesn't verify the Issuer is
// discoverable via an http request.
func (c *Config) Validate() error {
	const op = "provider.(Config).Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	switch {
	case c.ClientId == "":
		return fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	case c.ClientSecret == "":
		return fmt.Errorf("%s: client secret is empty: %w", op, ErrInvalidParameter)
	case c.Issuer == "":
		return fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter)
	case c.RedirectURL == "":
		return fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter)
	case c.LogoutRedirectURL == "":
		return fmt.Errorf("%s: logout redirect URL is empty: %w", op, ErrInvalidParameter)
	case len(c.SupportedSigningAlgs) == 0:
		return fmt.Errorf("%s: supported algorithms is empty: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(c.Issuer)
	if err != nil {
		return fmt.Errorf("%s: issuer %s is invalid (%s): %w", op, c.Issuer, err, ErrInvalidIssuer)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%s: issuer %s schema is not http or https: %w", op, c.Issuer, ErrInvalidIssuer)
	}
	return nil
}

// HTTPClient creates a new http client for the provider configured.
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "provider.(Config).HTTPClient"
	client, err := sdkhttp.NewClient(c.ProviderCA, DefaultHTTPTimeout)
	if err != nil {
		if errors.Is(err, sdkhttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}
