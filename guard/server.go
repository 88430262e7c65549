package guard

import (
	"net/http"
	"strings"
)

// Qualifies reports whether r is a top-level page navigation: a GET or HEAD
// from a client that accepts HTML.
func Qualifies(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}

// Middleware guards page navigations before they are rendered. Requests that
// do not qualify pass through untouched. Unauthenticated navigations get a 302
// to the login path; when the presented tokens are all unusable the id and
// access token cookies are expired in the same response.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	logger := g.logger.ResetNamed(serverLoggerName)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !Qualifies(r) {
			next.ServeHTTP(w, r)
			return
		}
		d := g.decide(r.URL.Path, Cookies(r.Cookies()), logger)
		g.record(edgeServer, d)
		if !d.Redirect() {
			next.ServeHTTP(w, r)
			return
		}
		if d.ClearCredentials() {
			for _, c := range g.expiredCookies() {
				http.SetCookie(w, c)
			}
		}
		http.Redirect(w, r, g.loginPath, http.StatusFound)
	})
}
