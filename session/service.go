// Package session serves the signed in user's backend profile and tears a
// session down on logout.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/habityzer/layer/config"
	"github.com/habityzer/layer/jwt"
	"github.com/habityzer/layer/proxy"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"
)

// ProfilePath is the backend path answering with the current user's Profile.
const ProfilePath = "/api/authentication"

// Fetcher performs an authenticated GET against the backend on behalf of r.
// *proxy.Forwarder is a Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, w http.ResponseWriter, r *http.Request, path string) (*proxy.Response, error)
}

// Service fetches and caches profiles per session. A session is identified by
// the credential the backend call would carry, never by unverified claims
// inside it.
type Service struct {
	cookies   config.Cookies
	evaluator *jwt.Evaluator
	fetcher   Fetcher
	cache     Cache
	group     singleflight.Group
	logger    hclog.Logger
}

// New creates a Service fetching through f.
//
// Supported options:
//
//	WithLogger
//	WithCache
func New(c *config.Config, f Fetcher, opt ...Option) (*Service, error) {
	const op = "session.New"
	switch {
	case c == nil:
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	case f == nil:
		return nil, fmt.Errorf("%s: fetcher is nil: %w", op, ErrNilParameter)
	case c.Cookies.IdTokenName == "" || c.Cookies.AccessTokenName == "":
		return nil, fmt.Errorf("%s: cookie names are empty: %w", op, ErrInvalidParameter)
	}
	e, err := jwt.NewEvaluator(c.Guard.AppTokenPrefix, jwt.WithClockSkew(c.Guard.ClockSkew))
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrInvalidParameter)
	}
	opts := getServiceOpts(opt...)
	return &Service{
		cookies:   c.Cookies,
		evaluator: e,
		fetcher:   f,
		cache:     opts.withCache,
		logger:    opts.withLogger,
	}, nil
}

// Profile returns the profile of r's session. It returns (nil, nil) when the
// request carries no session or the backend does not recognize it.
//
// Concurrent calls for one session share a single backend request, which is
// not cancelled when the caller that started it goes away. A session whose
// access token has to be refreshed first is fetched on its own so the rotated
// cookies are written to w.
func (s *Service) Profile(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Profile, error) {
	const op = "session.(Service).Profile"
	if r == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	key, ok := s.key(r)
	if !ok {
		return nil, nil
	}
	if p, ok := s.cache.Get(key); ok {
		return p, nil
	}
	if s.refreshing(r) {
		p, err := s.fetch(ctx, w, r)
		if err != nil {
			s.logger.Warn("unable to fetch profile", "op", op, "error", err)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if p != nil {
			s.cache.Add(key, p)
		}
		return p, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		// a call that just finished may have filled the cache
		if p, ok := s.cache.Get(key); ok {
			return p, nil
		}
		// no refresh happens here, so no caller's response is written to
		p, err := s.fetch(shared, nil, r)
		if err != nil || p == nil {
			return p, err
		}
		s.cache.Add(key, p)
		return p, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			s.logger.Warn("unable to fetch profile", "op", op, "error", res.Err)
			return nil, fmt.Errorf("%s: %w", op, res.Err)
		}
		return res.Val.(*Profile), nil
	}
}

// refreshing reports whether fetching for r will refresh the provider
// session: no app token, no usable access token, but a refresh token.
func (s *Service) refreshing(r *http.Request) bool {
	if v := cookieValue(r, s.cookies.E2EToken()); v != "" && s.evaluator.IsAppToken(v) {
		return false
	}
	if v := cookieValue(r, s.cookies.AccessToken()); v != "" && s.evaluator.Usable(v) {
		return false
	}
	return cookieValue(r, s.cookies.RefreshToken()) != ""
}

func (s *Service) fetch(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Profile, error) {
	const op = "session.(Service).fetch"
	resp, err := s.fetcher.Fetch(ctx, w, r, ProfilePath)
	var upstream *proxy.UpstreamError
	switch {
	case err == nil:
	case errors.Is(err, proxy.ErrUnauthenticated):
		s.logger.Debug("no credential for profile", "op", op)
		return nil, nil
	case errors.As(err, &upstream) && upstream.StatusCode == http.StatusUnauthorized:
		s.logger.Debug("backend does not recognize the session", "op", op)
		return nil, nil
	default:
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrFetchFailed)
	}
	var p Profile
	if err := json.Unmarshal(resp.Body, &p); err != nil {
		return nil, fmt.Errorf("%s: unable to decode profile: %v: %w", op, err, ErrFetchFailed)
	}
	return &p, nil
}

// Forget drops the cached profile of r's session.
func (s *Service) Forget(r *http.Request) {
	if key, ok := s.key(r); ok {
		s.cache.Remove(key)
	}
}

// key identifies r's session by the first credential present, in the order
// the proxy selects them. Only a caller holding that exact credential can hit
// the entry. The key is a digest so raw credentials are never held as cache
// keys.
func (s *Service) key(r *http.Request) (string, bool) {
	if v := cookieValue(r, s.cookies.E2EToken()); v != "" && s.evaluator.IsAppToken(v) {
		return digest(s.cookies.E2EToken() + ":" + v), true
	}
	for _, name := range []string{s.cookies.AccessToken(), s.cookies.IdToken(), s.cookies.RefreshToken()} {
		if v := cookieValue(r, name); v != "" {
			return digest(name + ":" + v), true
		}
	}
	return "", false
}

func digest(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

func cookieValue(r *http.Request, name string) string {
	if name == "" {
		return ""
	}
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
