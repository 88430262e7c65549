package session

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/habityzer/layer/config"
	"github.com/habityzer/layer/jwt"
	"github.com/habityzer/layer/proxy"
)

func testConfig() *config.Config {
	return &config.Config{
		Cookies: config.Cookies{
			Prefix:           "app_",
			IdTokenName:      "id_token",
			AccessTokenName:  "access_token",
			RefreshTokenName: "refresh_token",
			E2ETokenName:     "kinde_token",
			SameSite:         http.SameSiteLaxMode,
		},
		Guard: config.Guard{
			AppTokenPrefix: "app_",
			ClockSkew:      30 * time.Second,
		},
	}
}

const testProfileJSON = `{
	"id": 42,
	"email": "alice@example.com",
	"name": "Alice",
	"picture": null,
	"subscription_tier": "pro",
	"is_premium": true,
	"roles": ["ROLE_USER"],
	"kinde_id": "kp_alice",
	"created_at": "2024-01-02T03:04:05+00:00",
	"updated_at": "2024-02-03T04:05:06+00:00"
}`

type testFetcher struct {
	mu    sync.Mutex
	calls int
	paths []string
	body  string
	err   error

	// writers are the response writers handed to each call.
	writers []http.ResponseWriter

	// started, when set, receives once per call; the call then waits for
	// release or for its context to end.
	started chan struct{}
	release chan struct{}
}

func (f *testFetcher) Fetch(ctx context.Context, w http.ResponseWriter, _ *http.Request, path string) (*proxy.Response, error) {
	f.mu.Lock()
	f.calls++
	f.paths = append(f.paths, path)
	f.writers = append(f.writers, w)
	body, err := f.body, f.err
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &proxy.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(body)}, nil
}

func (f *testFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *testFetcher) responseWriters() []http.ResponseWriter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]http.ResponseWriter(nil), f.writers...)
}

func testIdToken(t *testing.T, sub string) string {
	t.Helper()
	return jwt.TestToken(t, sub, time.Now().Add(time.Hour), nil)
}
