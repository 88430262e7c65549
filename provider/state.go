package provider

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/habityzer/layer/sdk/id"
)

// DefaultStateExpirySkew defines a default time skew when checking a State's
// expiration.
const DefaultStateExpirySkew = 1 * time.Second

// State represents one login attempt. Its Id is sent as the oauth "state"
// parameter and its Nonce ends up in the id_token; the two are never equal.
type State struct {
	id         string
	nonce      string
	expiration time.Time
}

// NewState creates a new State that expires after expireIn.
//
// Supported options:
//
//	WithNow
func NewState(expireIn time.Duration, opt ...Option) (*State, error) {
	const op = "provider.NewState"
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	opts := getStOpts(opt...)
	nonce, err := id.New("n")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's nonce: %v: %w", op, err, ErrIdGeneratorFailed)
	}
	stateId, err := id.New("st")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's id: %v: %w", op, err, ErrIdGeneratorFailed)
	}
	return &State{
		id:         stateId,
		nonce:      nonce,
		expiration: opts.withNow().Add(expireIn).Truncate(time.Second),
	}, nil
}

func (s *State) Id() string    { return s.id }
func (s *State) Nonce() string { return s.nonce }

// Expiration returns when the state stops being acceptable.
func (s *State) Expiration() time.Time { return s.expiration }

// IsExpired returns true if the state has expired.
//
// Supported options:
//
//	WithExpirySkew
//	WithNow
func (s *State) IsExpired(opt ...Option) bool {
	opts := getStOpts(opt...)
	return s.expiration.Before(opts.withNow().Add(opts.withExpirySkew))
}

// encode returns the state as a cookie value.
func (s *State) encode() string {
	return strings.Join([]string{s.id, s.nonce, strconv.FormatInt(s.expiration.Unix(), 10)}, ".")
}

// decodeState parses a cookie value written by encode.
func decodeState(v string) (*State, error) {
	const op = "provider.decodeState"
	parts := strings.Split(v, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[0] == parts[1] {
		return nil, fmt.Errorf("%s: malformed state: %w", op, ErrResponseStateInvalid)
	}
	exp, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: malformed state expiry: %w", op, ErrResponseStateInvalid)
	}
	return &State{id: parts[0], nonce: parts[1], expiration: time.Unix(exp, 0)}, nil
}

// stOptions is the set of available options for State functions
type stOptions struct {
	withExpirySkew time.Duration
	withNow        func() time.Time
}

// stDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func stDefaults() stOptions {
	return stOptions{
		withExpirySkew: DefaultStateExpirySkew,
		withNow:        time.Now,
	}
}

// getStOpts gets the state defaults and applies the opt overrides passed in
func getStOpts(opt ...Option) stOptions {
	opts := stDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
