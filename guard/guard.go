// Package guard decides whether a page navigation may proceed, based on the
// credential cookies it carries. The decision itself is a pure function over a
// CredentialSource; the server middleware and the client navigator are thin
// edges that read cookies, clear them and redirect.
package guard

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/habityzer/layer/config"
	"github.com/habityzer/layer/jwt"
	"github.com/habityzer/layer/route"
	"github.com/hashicorp/go-hclog"
)

// Outcome is the result of a guard decision.
type Outcome string

const (
	// Skip means the path is not guarded at all (assets, API, framework).
	Skip Outcome = "skip"

	// Allow lets the navigation proceed.
	Allow Outcome = "allow"

	// RedirectToLogin sends the user to the login path.
	RedirectToLogin Outcome = "redirect"

	// ClearAndRedirectToLogin clears the id and access token cookies before
	// sending the user to the login path.
	ClearAndRedirectToLogin Outcome = "clear-and-redirect"
)

// Trace event names. Both edges emit the same names so their traces can be
// compared line by line.
const (
	EventRouteCheck      = "route-check"
	EventCookieState     = "cookie-state"
	EventAllowAppToken   = "allow-e2e-app-token"
	EventMissingCookies  = "redirect-missing-auth-cookies"
	EventTokenEvaluation = "token-evaluation"
	EventTokensUnusable  = "redirect-all-auth-tokens-invalid-or-expired"
	EventAllowProtected  = "allow-protected-route"
)

const (
	serverLoggerName = "auth-guard-server"
	clientLoggerName = "auth-guard-client"

	edgeServer = "server"
	edgeClient = "client"
)

// CredentialSource gives read access to the credentials that accompany a
// navigation. An empty value counts as absent.
type CredentialSource interface {
	Credential(name string) (string, bool)
}

// Cookies adapts a cookie slice, such as http.Request.Cookies or
// http.CookieJar.Cookies, to a CredentialSource. The first cookie with a
// given name wins.
type Cookies []*http.Cookie

// Credential implements CredentialSource.
func (c Cookies) Credential(name string) (string, bool) {
	for _, ck := range c {
		if ck != nil && ck.Name == name {
			return ck.Value, ck.Value != ""
		}
	}
	return "", false
}

// Values is a CredentialSource backed by a map of cookie names to values.
type Values map[string]string

// Credential implements CredentialSource.
func (v Values) Credential(name string) (string, bool) {
	s, ok := v[name]
	return s, ok && s != ""
}

// Decision records the outcome of a guard evaluation together with the facts
// it was based on.
type Decision struct {
	Outcome      Outcome
	Path         string
	RequiresAuth bool

	HasIdToken     bool
	HasAccessToken bool
	HasAppToken    bool

	IdTokenUsable     bool
	AccessTokenUsable bool
}

// Redirect reports whether the decision sends the user to the login path.
func (d Decision) Redirect() bool {
	return d.Outcome == RedirectToLogin || d.Outcome == ClearAndRedirectToLogin
}

// ClearCredentials reports whether the id and access token cookies must be
// cleared before redirecting.
func (d Decision) ClearCredentials() bool {
	return d.Outcome == ClearAndRedirectToLogin
}

// Guard evaluates navigations against the configured routes and credential
// cookies. It holds only read-only configuration and is safe for concurrent
// use.
type Guard struct {
	cookies      config.Cookies
	loginPath    string
	skipPrefixes []string
	classifier   *route.Classifier
	evaluator    *jwt.Evaluator
	logger       hclog.Logger
	recorder     Recorder
}

// New creates a Guard from the merged configuration.
//
// Supported options:
//
//	WithLogger
//	WithRecorder
//	WithNow
func New(c *config.Config, opt ...Option) (*Guard, error) {
	const op = "guard.New"
	if c == nil {
		return nil, fmt.Errorf("%s: missing config: %w", op, ErrNilParameter)
	}
	if c.Guard.LoginPath == "" {
		return nil, fmt.Errorf("%s: missing login path: %w", op, ErrInvalidParameter)
	}
	opts := getGuardOpts(opt...)
	classifier, err := route.NewClassifier(c.Guard.Mode, c.Guard.PublicRoutes, c.Guard.ProtectedRoutes)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrInvalidParameter)
	}
	evaluator, err := jwt.NewEvaluator(c.Guard.AppTokenPrefix, jwt.WithClockSkew(c.Guard.ClockSkew), jwt.WithNow(opts.withNow))
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrInvalidParameter)
	}
	return &Guard{
		cookies:      c.Cookies,
		loginPath:    c.Guard.LoginPath,
		skipPrefixes: append([]string(nil), c.Guard.SkipPrefixes...),
		classifier:   classifier,
		evaluator:    evaluator,
		logger:       opts.withLogger,
		recorder:     opts.withRecorder,
	}, nil
}

// LoginPath returns the redirect target for unauthenticated navigations.
func (g *Guard) LoginPath() string { return g.loginPath }

// Decide evaluates a navigation to path. It reads src but never modifies it;
// acting on the decision is left to the caller. Traces go to the guard's
// logger.
func (g *Guard) Decide(path string, src CredentialSource) Decision {
	return g.decide(path, src, g.logger)
}

func (g *Guard) decide(path string, src CredentialSource, logger hclog.Logger) Decision {
	d := Decision{Path: path}
	if src == nil {
		src = Values(nil)
	}
	if path == "" || g.skipped(path) {
		d.Outcome = Skip
		return d
	}

	d.RequiresAuth = g.classifier.RequiresAuth(path)
	logger.Trace(EventRouteCheck, "path", path, "mode", g.classifier.Mode(), "requires_auth", d.RequiresAuth)
	if !d.RequiresAuth {
		d.Outcome = Allow
		return d
	}

	idToken, hasId := src.Credential(g.cookies.IdToken())
	accessToken, hasAccess := src.Credential(g.cookies.AccessToken())
	scoped, hasScoped := src.Credential(g.cookies.E2EToken())
	legacy, hasLegacy := src.Credential(g.cookies.LegacyE2EToken())
	d.HasIdToken, d.HasAccessToken = hasId, hasAccess
	logger.Trace(EventCookieState,
		"path", path,
		"cookie_prefix", g.cookies.Prefix,
		"has_id_token", hasId,
		"has_access_token", hasAccess,
		"has_scoped_e2e_token", hasScoped,
		"has_legacy_e2e_token", hasLegacy,
	)

	if (hasScoped && g.evaluator.IsAppToken(scoped)) || (hasLegacy && g.evaluator.IsAppToken(legacy)) {
		d.HasAppToken = true
		d.Outcome = Allow
		logger.Trace(EventAllowAppToken, "path", path)
		return d
	}

	if !hasId && !hasAccess {
		d.Outcome = RedirectToLogin
		logger.Trace(EventMissingCookies, "path", path)
		return d
	}

	d.IdTokenUsable = hasId && g.evaluator.Usable(idToken)
	d.AccessTokenUsable = hasAccess && g.evaluator.Usable(accessToken)
	logger.Trace(EventTokenEvaluation, "path", path, "id_token_usable", d.IdTokenUsable, "access_token_usable", d.AccessTokenUsable)

	if !d.IdTokenUsable && !d.AccessTokenUsable {
		d.Outcome = ClearAndRedirectToLogin
		logger.Trace(EventTokensUnusable, "path", path)
		return d
	}

	d.Outcome = Allow
	logger.Trace(EventAllowProtected, "path", path)
	return d
}

func (g *Guard) skipped(path string) bool {
	for _, p := range g.skipPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (g *Guard) record(edge string, d Decision) {
	if g.recorder != nil {
		g.recorder.GuardDecision(edge, string(d.Outcome))
	}
}

// expiredCookies returns the cookies that clear the id and access tokens.
func (g *Guard) expiredCookies() []*http.Cookie {
	names := []string{g.cookies.IdToken(), g.cookies.AccessToken()}
	out := make([]*http.Cookie, 0, len(names))
	for _, n := range names {
		out = append(out, &http.Cookie{
			Name:     n,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Secure:   g.cookies.Secure,
			SameSite: g.cookies.SameSite,
		})
	}
	return out
}
