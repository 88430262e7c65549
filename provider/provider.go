// Package provider binds the layer to its OIDC provider: it runs the
// authorization code flow, stores the resulting tokens in cookies and refreshes
// them on behalf of the backend proxy.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Provider provides integration with a provider using the typical
// 3-legged OIDC authorization code flow.
type Provider struct {
	config   *Config
	provider *oidc.Provider
	client   *http.Client

	// endSessionURL is the discovered end_session_endpoint, if any.
	endSessionURL string

	mu sync.Mutex

	// backgroundCtx is the context used by the provider for background
	// activities like refreshing JWKs key sets.
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities running
	// in spawned go routines.
	backgroundCtxCancel context.CancelFunc
}

// NewProvider creates and initializes a Provider. Initializing the provider
// includes an http request to the provider's issuer for discovery, bounded by
// ctx.
//
// See Provider.Done() which must be called to release provider resources.
func NewProvider(ctx context.Context, c *Config) (*Provider, error) {
	const op = "provider.NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	// initializing the Provider with it's background ctx/cancel will
	// allow us to use p.Done() to release any resources when returning errors
	// from this function.
	p := &Provider{
		config:              c,
		backgroundCtx:       bgCtx,
		backgroundCtxCancel: cancel,
	}

	client, err := c.HTTPClient()
	if err != nil {
		p.Done()
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	p.client = client

	// the key set keeps the discovery context for its later refreshes, so
	// discovery runs on the background context and ctx only bounds the wait
	type discovery struct {
		provider *oidc.Provider
		err      error
	}
	done := make(chan discovery, 1)
	go func() {
		provider, err := oidc.NewProvider(oidc.ClientContext(p.backgroundCtx, client), c.Issuer)
		done <- discovery{provider, err}
	}()
	var d discovery
	select {
	case <-ctx.Done():
		p.Done()
		return nil, fmt.Errorf("%s: discovery: %w", op, ctx.Err())
	case d = <-done:
	}
	if d.err != nil {
		p.Done()
		return nil, fmt.Errorf("%s: unable to create provider: %w", op, d.err)
	}
	provider := d.provider
	p.provider = provider

	var claims struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&claims); err != nil {
		p.Done()
		return nil, fmt.Errorf("%s: unable to read provider metadata: %w", op, err)
	}
	p.endSessionURL = claims.EndSessionEndpoint
	return p, nil
}

// Done with the provider's background resources and must be called for every
// Provider created
func (p *Provider) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
}

// Config returns the provider's configuration.
func (p *Provider) Config() *Config { return p.config }

func (p *Provider) oauth2Config() *oauth2.Config {
	// Add the "openid" scope, which is a required scope for oidc flows
	scopes := []string{oidc.ScopeOpenID}
	for _, s := range p.config.Scopes {
		if s != oidc.ScopeOpenID {
			scopes = append(scopes, s)
		}
	}
	return &oauth2.Config{
		ClientID:     p.config.ClientId,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  p.config.RedirectURL,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       scopes,
	}
}

// AuthURL will generate a URL the caller can use to kick off an OIDC
// authorization code flow with the provider.
func (p *Provider) AuthURL(s *State) (string, error) {
	const op = "provider.(Provider).AuthURL"
	if s == nil {
		return "", fmt.Errorf("%s: state is nil: %w", op, ErrNilParameter)
	}
	if s.Id() == s.Nonce() {
		return "", fmt.Errorf("%s: state id and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	return p.oauth2Config().AuthCodeURL(s.Id(), oidc.Nonce(s.Nonce())), nil
}

// Exchange will request tokens from the token endpoint using the
// authorizationCode and authorizationState received in the authentication
// response. The id_token's signature, audience and nonce are verified.
func (p *Provider) Exchange(ctx context.Context, s *State, authorizationState, authorizationCode string) (*Token, error) {
	const op = "provider.(Provider).Exchange"
	switch {
	case s == nil:
		return nil, fmt.Errorf("%s: state is nil: %w", op, ErrNilParameter)
	case s.Id() != authorizationState:
		return nil, fmt.Errorf("%s: authentication state and authorization state are not equal: %w", op, ErrResponseStateInvalid)
	case s.IsExpired():
		return nil, fmt.Errorf("%s: authentication state is expired: %w", op, ErrExpiredState)
	case authorizationCode == "":
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}

	oauth2Token, err := p.oauth2Config().Exchange(oidc.ClientContext(ctx, p.client), authorizationCode)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %v: %w", op, err, ErrLoginFailed)
	}
	t, err := p.token(oauth2Token, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if t.IdToken == "" {
		return nil, fmt.Errorf("%s: id_token is missing from auth code exchange: %w", op, ErrMissingIdToken)
	}
	if err := p.VerifyIdToken(ctx, t.IdToken, s.Nonce()); err != nil {
		return nil, fmt.Errorf("%s: id_token failed verification: %w", op, err)
	}
	return t, nil
}

// Refresh trades a refresh_token for a new set of tokens. A refreshed
// id_token, when the provider sends one, is verified without a nonce; a
// missing one is not an error.
func (p *Provider) Refresh(ctx context.Context, refreshToken RefreshToken) (*Token, error) {
	const op = "provider.(Provider).Refresh"
	if refreshToken == "" {
		return nil, fmt.Errorf("%s: refresh token is empty: %w", op, ErrInvalidParameter)
	}
	ts := p.oauth2Config().TokenSource(oidc.ClientContext(ctx, p.client), &oauth2.Token{RefreshToken: string(refreshToken)})
	oauth2Token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrRefreshFailed)
	}
	t, err := p.token(oauth2Token, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if t.IdToken != "" {
		if err := p.VerifyIdToken(ctx, t.IdToken, ""); err != nil {
			return nil, fmt.Errorf("%s: refreshed id_token failed verification: %w", op, err)
		}
	}
	return t, nil
}

func (p *Provider) token(ot *oauth2.Token, previousRefresh RefreshToken) (*Token, error) {
	const op = "provider.(Provider).token"
	if ot == nil || ot.AccessToken == "" {
		return nil, fmt.Errorf("%s: access_token is missing: %w", op, ErrLoginFailed)
	}
	t := &Token{
		AccessToken:  AccessToken(ot.AccessToken),
		RefreshToken: RefreshToken(ot.RefreshToken),
		Expiry:       ot.Expiry,
	}
	if t.RefreshToken == "" {
		t.RefreshToken = previousRefresh
	}
	if raw, ok := ot.Extra("id_token").(string); ok {
		t.IdToken = IdToken(raw)
	}
	return t, nil
}

// VerifyIdToken will verify the inbound IdToken. It verifies it's been signed
// by the provider for this client and, when nonce is not empty, that it
// carries the nonce.
func (p *Provider) VerifyIdToken(ctx context.Context, t IdToken, nonce string) error {
	const op = "provider.(Provider).VerifyIdToken"
	if t == "" {
		return fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	verifier := p.provider.Verifier(&oidc.Config{
		ClientID:             p.config.ClientId,
		SupportedSigningAlgs: p.config.SupportedSigningAlgs,
	})
	oidcIdToken, err := verifier.Verify(oidc.ClientContext(ctx, p.client), string(t))
	if err != nil {
		return fmt.Errorf("%s: %v: %w", op, err, ErrIdTokenVerificationFailed)
	}
	if nonce != "" && oidcIdToken.Nonce != nonce {
		return fmt.Errorf("%s: invalid id_token nonce: %w", op, ErrInvalidNonce)
	}
	return nil
}

// EndSessionURL returns the URL that ends the user's session at the provider
// and sends them on to the configured logout redirect. It uses the discovered
// end_session_endpoint and falls back to the issuer's /logout.
func (p *Provider) EndSessionURL() (string, error) {
	const op = "provider.(Provider).EndSessionURL"
	endpoint, param := p.endSessionURL, "post_logout_redirect_uri"
	if endpoint == "" {
		endpoint, param = strings.TrimRight(p.config.Issuer, "/")+"/logout", "redirect"
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%s: end session endpoint %q: %v: %w", op, endpoint, err, ErrInvalidIssuer)
	}
	q := u.Query()
	q.Set(param, p.config.LogoutRedirectURL)
	if param == "post_logout_redirect_uri" {
		q.Set("client_id", p.config.ClientId)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
