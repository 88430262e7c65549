// Package jwt inspects JWT credentials without verifying them: it decodes
// payloads and decides whether a credential is still usable.
package jwt

import (
	"fmt"
	"strings"
	"time"
)

// Evaluator decides whether a credential is currently usable. It never
// verifies signatures: the backend is the party that trusts or rejects a
// token, the evaluator only keeps obviously stale tokens from being treated as
// a session.
type Evaluator struct {
	appTokenPrefix string
	clockSkew      time.Duration
	now            func() time.Time
}

// NewEvaluator creates an Evaluator. Tokens starting with appTokenPrefix are
// always usable, so the prefix may not be empty.
//
// Supported options:
//
//	WithClockSkew
//	WithNow
func NewEvaluator(appTokenPrefix string, opt ...Option) (*Evaluator, error) {
	const op = "jwt.NewEvaluator"
	if strings.TrimSpace(appTokenPrefix) == "" {
		return nil, fmt.Errorf("%s: app token prefix is empty: %w", op, ErrInvalidParameter)
	}
	opts := getEvaluatorOpts(opt...)
	if opts.withClockSkew < 0 {
		return nil, fmt.Errorf("%s: clock skew %s is negative: %w", op, opts.withClockSkew, ErrInvalidParameter)
	}
	return &Evaluator{
		appTokenPrefix: appTokenPrefix,
		clockSkew:      opts.withClockSkew,
		now:            opts.withNow,
	}, nil
}

// AppTokenPrefix returns the marker identifying app tokens.
func (e *Evaluator) AppTokenPrefix() string { return e.appTokenPrefix }

// IsAppToken reports whether token carries the evaluator's app token marker.
func (e *Evaluator) IsAppToken(token string) bool {
	return IsAppToken(token, e.appTokenPrefix)
}

// Usable reports whether token may be treated as a live credential: an app
// token, or a JWT whose exp lies beyond now plus the clock skew. Malformed
// tokens are simply not usable.
func (e *Evaluator) Usable(token string) bool {
	if e == nil || token == "" {
		return false
	}
	if e.IsAppToken(token) {
		return true
	}
	exp, ok := Expiry(token)
	if !ok {
		return false
	}
	nowSeconds := float64(e.now().Unix())
	return exp > nowSeconds+e.clockSkew.Seconds()
}

// IsAppToken reports whether token starts with the non-empty prefix.
func IsAppToken(token, prefix string) bool {
	return prefix != "" && strings.HasPrefix(token, prefix)
}
