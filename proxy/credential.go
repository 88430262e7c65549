package proxy

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/habityzer/layer/config"
	"github.com/habityzer/layer/jwt"
	"github.com/habityzer/layer/route"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/net/http/httpguts"
)

// TokenSource supplies provider-issued tokens for a request. AccessToken may
// refresh an expired session and rewrite the session cookies through w.
type TokenSource interface {
	AccessToken(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, error)
	IdToken(ctx context.Context, r *http.Request) (string, error)
}

// CredentialKind names where a selected credential came from.
type CredentialKind string

const (
	// KindNone means the call is made without a credential.
	KindNone CredentialKind = "none"

	// KindApp is an E2E app token, sent without a namespace.
	KindApp CredentialKind = "app"

	// KindAccess is the provider's access token.
	KindAccess CredentialKind = "access"

	// KindId is the provider's id token, used when no access token is
	// available.
	KindId CredentialKind = "id"
)

// Credential is the credential attached to one backend call.
type Credential struct {
	Kind  CredentialKind
	Token string
}

// Authorization returns the Authorization header value for c. Provider
// tokens carry namespace in front of the token so the backend can tell them
// from app tokens. It returns "" for KindNone.
func (c Credential) Authorization(namespace string) string {
	switch c.Kind {
	case KindNone:
		return ""
	case KindApp:
		return "Bearer " + c.Token
	default:
		return "Bearer " + namespace + c.Token
	}
}

// redacted is the Authorization value with the token cut to its first ten
// characters, for logs.
func (c Credential) redacted(namespace string) string {
	if c.Kind == KindNone {
		return ""
	}
	t := c.Token
	if len(t) > 10 {
		t = t[:10]
	}
	if c.Kind == KindApp {
		return "Bearer " + t + "..."
	}
	return "Bearer " + namespace + t + "..."
}

// Selector picks the credential for a backend call.
type Selector struct {
	publicRoutes []string
	e2eCookie    string
	evaluator    *jwt.Evaluator
	tokens       TokenSource
	logger       hclog.Logger
}

// NewSelector creates a Selector. tokens may be nil when only public routes
// and app tokens are used.
//
// Supported options:
//
//	WithLogger
func NewSelector(c *config.Config, tokens TokenSource, opt ...Option) (*Selector, error) {
	const op = "proxy.NewSelector"
	if c == nil {
		return nil, fmt.Errorf("%s: missing config: %w", op, ErrNilParameter)
	}
	evaluator, err := jwt.NewEvaluator(c.Guard.AppTokenPrefix)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrInvalidParameter)
	}
	opts := getProxyOpts(opt...)
	return &Selector{
		publicRoutes: append([]string(nil), c.Proxy.PublicRoutes...),
		e2eCookie:    c.Cookies.E2EToken(),
		evaluator:    evaluator,
		tokens:       tokens,
		logger:       opts.withLogger,
	}, nil
}

// Select returns the credential for a call to the backend path, in order:
// nothing for a public API route, the scoped E2E app token, the provider
// access token, the provider id token. It returns ErrUnauthenticated when none
// is available. Values that cannot be sent in a header count as absent.
func (s *Selector) Select(ctx context.Context, w http.ResponseWriter, r *http.Request, path string) (Credential, error) {
	const op = "proxy.(Selector).Select"
	if route.MatchAPI(path, s.publicRoutes) {
		return Credential{Kind: KindNone}, nil
	}
	if c, err := r.Cookie(s.e2eCookie); err == nil && s.evaluator.IsAppToken(c.Value) && sendable(c.Value) {
		return Credential{Kind: KindApp, Token: c.Value}, nil
	}
	if s.tokens == nil {
		return Credential{}, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}
	access, err := s.tokens.AccessToken(ctx, w, r)
	switch {
	case err != nil:
		s.logger.Debug("access token unavailable, trying id token", "path", path, "error", err)
	case sendable(access):
		return Credential{Kind: KindAccess, Token: access}, nil
	}
	id, err := s.tokens.IdToken(ctx, r)
	if err != nil {
		return Credential{}, fmt.Errorf("%s: %v: %w", op, err, ErrUnauthenticated)
	}
	if sendable(id) {
		return Credential{Kind: KindId, Token: id}, nil
	}
	return Credential{}, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
}

func sendable(token string) bool {
	return strings.TrimSpace(token) != "" && httpguts.ValidHeaderFieldValue(token)
}
