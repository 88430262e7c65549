// Package route classifies request paths as public or protected.
package route

import (
	"fmt"
	"strings"
)

// Mode selects how unlisted routes are treated.
type Mode string

const (
	// PrivateByDefault protects every route except the public ones.
	PrivateByDefault Mode = "privateByDefault"

	// PublicByDefault protects only the listed protected routes.
	PublicByDefault Mode = "publicByDefault"
)

// ParseMode converts s into a Mode. The empty string is PrivateByDefault.
func ParseMode(s string) (Mode, error) {
	const op = "route.ParseMode"
	switch Mode(strings.TrimSpace(s)) {
	case "", PrivateByDefault:
		return PrivateByDefault, nil
	case PublicByDefault:
		return PublicByDefault, nil
	default:
		return "", fmt.Errorf("%s: unknown mode %q: %w", op, s, ErrInvalidParameter)
	}
}

// Match reports whether path is pattern itself or lies beneath it.
func Match(path, pattern string) bool {
	return path == pattern || strings.HasPrefix(path, pattern+"/")
}

// MatchAny reports whether path matches any of patterns.
func MatchAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if Match(path, p) {
			return true
		}
	}
	return false
}

// MatchAPI matches backend API paths. Patterns may carry a trailing "/**",
// which is accepted for compatibility and stripped before matching.
func MatchAPI(path string, patterns []string) bool {
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "/**"); ok {
			p = prefix
		}
		if Match(path, p) {
			return true
		}
	}
	return false
}

// Classifier decides whether a path requires authentication.
type Classifier struct {
	mode      Mode
	public    []string
	protected []string
}

// NewClassifier creates a Classifier. The route lists are copied.
func NewClassifier(mode Mode, public, protected []string) (*Classifier, error) {
	const op = "route.NewClassifier"
	if mode != PrivateByDefault && mode != PublicByDefault {
		return nil, fmt.Errorf("%s: unknown mode %q: %w", op, mode, ErrInvalidParameter)
	}
	return &Classifier{
		mode:      mode,
		public:    append([]string(nil), public...),
		protected: append([]string(nil), protected...),
	}, nil
}

// Mode returns the classifier's matching mode.
func (c *Classifier) Mode() Mode { return c.mode }

// RequiresAuth reports whether path is protected.
func (c *Classifier) RequiresAuth(path string) bool {
	if c.mode == PublicByDefault {
		return MatchAny(path, c.protected)
	}
	return !MatchAny(path, c.public)
}
