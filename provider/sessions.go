package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/habityzer/layer/config"
	"github.com/habityzer/layer/jwt"
	"github.com/hashicorp/go-hclog"
)

// DefaultStateTTL is how long a login attempt may take.
const DefaultStateTTL = 10 * time.Minute

// stateCookieName is appended to the cookie prefix.
const stateCookieName = "oidc_state"

// Sessions keeps the provider's tokens in cookies. It serves the login,
// callback and logout endpoints and hands tokens to the backend proxy,
// refreshing an expired access token when a refresh token is present.
type Sessions struct {
	provider  *Provider
	cookies   config.Cookies
	evaluator *jwt.Evaluator
	logger    hclog.Logger
	stateTTL  time.Duration
	now       func() time.Time
}

type sessionsOptions struct {
	withLogger   hclog.Logger
	withStateTTL time.Duration
	withNow      func() time.Time
}

func sessionsDefaults() sessionsOptions {
	return sessionsOptions{
		withLogger:   hclog.NewNullLogger(),
		withStateTTL: DefaultStateTTL,
		withNow:      time.Now,
	}
}

func getSessionsOpts(opt ...Option) sessionsOptions {
	opts := sessionsDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// NewSessions creates Sessions for p using the cookie and guard settings of c.
//
// Supported options:
//
//	WithLogger
//	WithStateTTL
//	WithNow
func NewSessions(p *Provider, c *config.Config, opt ...Option) (*Sessions, error) {
	const op = "provider.NewSessions"
	switch {
	case p == nil:
		return nil, fmt.Errorf("%s: provider is nil: %w", op, ErrNilParameter)
	case c == nil:
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	opts := getSessionsOpts(opt...)
	evaluator, err := jwt.NewEvaluator(c.Guard.AppTokenPrefix, jwt.WithClockSkew(c.Guard.ClockSkew), jwt.WithNow(opts.withNow))
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrInvalidParameter)
	}
	return &Sessions{
		provider:  p,
		cookies:   c.Cookies,
		evaluator: evaluator,
		logger:    opts.withLogger,
		stateTTL:  opts.withStateTTL,
		now:       opts.withNow,
	}, nil
}

// LoginHandler starts the authorization code flow: it remembers a new State
// in a cookie and redirects to the provider.
func (s *Sessions) LoginHandler() http.HandlerFunc {
	const op = "provider.(Sessions).LoginHandler"
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := NewState(s.stateTTL, WithNow(s.now))
		if err != nil {
			s.logger.Error("unable to create login state", "op", op, "error", err)
			http.Error(w, "unable to start login", http.StatusInternalServerError)
			return
		}
		authURL, err := s.provider.AuthURL(st)
		if err != nil {
			s.logger.Error("unable to create auth url", "op", op, "error", err)
			http.Error(w, "unable to start login", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     s.stateCookie(),
			Value:    st.encode(),
			Path:     "/",
			MaxAge:   int(s.stateTTL.Seconds()),
			HttpOnly: true,
			Secure:   s.cookies.Secure,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler completes the flow: it checks the returned state against
// the state cookie, exchanges the code, stores the tokens in cookies and
// redirects to the post-login URL.
func (s *Sessions) CallbackHandler() http.HandlerFunc {
	const op = "provider.(Sessions).CallbackHandler"
	return func(w http.ResponseWriter, r *http.Request) {
		// the state cookie is single use
		s.expire(w, s.stateCookie(), true)

		if e := r.FormValue("error"); e != "" {
			s.logger.Warn("provider returned an error", "op", op, "error", e, "description", r.FormValue("error_description"))
			http.Error(w, "login failed: "+e, http.StatusUnauthorized)
			return
		}
		c, err := r.Cookie(s.stateCookie())
		if err != nil {
			s.logger.Warn("callback without login state", "op", op)
			http.Error(w, "login state not found", http.StatusBadRequest)
			return
		}
		st, err := decodeState(c.Value)
		if err != nil {
			s.logger.Warn("unreadable login state", "op", op, "error", err)
			http.Error(w, "login state not found", http.StatusBadRequest)
			return
		}
		if st.IsExpired(WithNow(s.now)) {
			http.Error(w, "login state expired", http.StatusBadRequest)
			return
		}
		t, err := s.provider.Exchange(r.Context(), st, r.FormValue("state"), r.FormValue("code"))
		if err != nil {
			s.logger.Error("unable to complete login", "op", op, "error", err)
			status := http.StatusInternalServerError
			if errors.Is(err, ErrResponseStateInvalid) || errors.Is(err, ErrInvalidParameter) {
				status = http.StatusBadRequest
			}
			http.Error(w, "unable to complete login", status)
			return
		}
		s.store(w, t)
		target := s.provider.config.PostLoginRedirectURL
		if target == "" {
			target = "/"
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// LogoutHandler clears the session cookies and redirects to the provider's
// end session URL.
func (s *Sessions) LogoutHandler() http.HandlerFunc {
	const op = "provider.(Sessions).LogoutHandler"
	return func(w http.ResponseWriter, r *http.Request) {
		s.Clear(w)
		target, err := s.provider.EndSessionURL()
		if err != nil {
			s.logger.Error("unable to build end session url", "op", op, "error", err)
			target = s.provider.config.LogoutRedirectURL
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// Clear expires the id, access and refresh token cookies.
func (s *Sessions) Clear(w http.ResponseWriter) {
	s.expire(w, s.cookies.IdToken(), false)
	s.expire(w, s.cookies.AccessToken(), false)
	s.expire(w, s.cookies.RefreshToken(), true)
}

// AccessToken returns the session's access token. When the token is no longer
// usable and a refresh token is available, the session is refreshed and the
// new tokens are written to w.
func (s *Sessions) AccessToken(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, error) {
	const op = "provider.(Sessions).AccessToken"
	access := cookieValue(r, s.cookies.AccessToken())
	if access != "" && s.evaluator.Usable(access) {
		return access, nil
	}
	refresh := cookieValue(r, s.cookies.RefreshToken())
	if refresh == "" {
		return "", fmt.Errorf("%s: %w", op, ErrNoSession)
	}
	t, err := s.provider.Refresh(ctx, RefreshToken(refresh))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if w != nil {
		s.store(w, t)
	}
	s.logger.Debug("refreshed session", "op", op)
	return string(t.AccessToken), nil
}

// IdToken returns the session's id token as found in its cookie.
func (s *Sessions) IdToken(_ context.Context, r *http.Request) (string, error) {
	const op = "provider.(Sessions).IdToken"
	if v := cookieValue(r, s.cookies.IdToken()); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s: %w", op, ErrNoSession)
}

func (s *Sessions) stateCookie() string { return s.cookies.Prefix + stateCookieName }

// store writes t to the session cookies. The id and access tokens stay
// readable by scripts since the client guard inspects them.
func (s *Sessions) store(w http.ResponseWriter, t *Token) {
	maxAge := int(s.cookies.MaxAge.Seconds())
	set := func(name, value string, httpOnly bool) {
		if value == "" {
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			MaxAge:   maxAge,
			HttpOnly: httpOnly,
			Secure:   s.cookies.Secure,
			SameSite: s.cookies.SameSite,
		})
	}
	set(s.cookies.IdToken(), string(t.IdToken), false)
	set(s.cookies.AccessToken(), string(t.AccessToken), false)
	set(s.cookies.RefreshToken(), string(t.RefreshToken), true)
}

func (s *Sessions) expire(w http.ResponseWriter, name string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: httpOnly,
		Secure:   s.cookies.Secure,
		SameSite: s.cookies.SameSite,
	})
}

func cookieValue(r *http.Request, name string) string {
	if r == nil {
		return ""
	}
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
