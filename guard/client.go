package guard

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-hclog"
)

// Navigation is the client edge's answer to a route change.
type Navigation struct {
	Decision Decision

	// Location is the absolute URL of a full-page navigation to perform
	// instead of the route change. It is empty when the change may proceed.
	Location string
}

// Proceed reports whether the route change may go ahead.
func (n Navigation) Proceed() bool { return n.Location == "" }

// Navigator guards route changes of a client that keeps its cookies in an
// http.CookieJar. A client cannot answer with an HTTP redirect, so a denied
// route change becomes a full-page navigation to the login path.
type Navigator struct {
	guard  *Guard
	jar    http.CookieJar
	base   *url.URL
	logger hclog.Logger
}

// Navigator creates a route change hook over jar. Cookies are read and cleared
// for the origin of base.
func (g *Guard) Navigator(jar http.CookieJar, base *url.URL) (*Navigator, error) {
	const op = "guard.(Guard).Navigator"
	switch {
	case jar == nil:
		return nil, fmt.Errorf("%s: missing cookie jar: %w", op, ErrNilParameter)
	case base == nil:
		return nil, fmt.Errorf("%s: missing base URL: %w", op, ErrNilParameter)
	case !base.IsAbs() || base.Host == "":
		return nil, fmt.Errorf("%s: base URL %q is not absolute: %w", op, base, ErrInvalidParameter)
	}
	return &Navigator{
		guard:  g,
		jar:    jar,
		base:   base,
		logger: g.logger.ResetNamed(clientLoggerName),
	}, nil
}

// Navigate evaluates a route change to path. Unusable id and access tokens
// are removed from the jar before the navigation is returned.
func (n *Navigator) Navigate(path string) Navigation {
	target := n.base.ResolveReference(&url.URL{Path: path})
	d := n.guard.decide(path, Cookies(n.jar.Cookies(target)), n.logger)
	n.guard.record(edgeClient, d)
	if !d.Redirect() {
		return Navigation{Decision: d}
	}
	if d.ClearCredentials() {
		n.jar.SetCookies(n.base.ResolveReference(&url.URL{Path: "/"}), n.guard.expiredCookies())
	}
	login, err := url.Parse(n.guard.loginPath)
	if err != nil {
		// login paths are validated when the configuration is merged
		login = &url.URL{Path: n.guard.loginPath}
	}
	return Navigation{Decision: d, Location: n.base.ResolveReference(login).String()}
}
