package guard

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/habityzer/layer/config"
	"github.com/habityzer/layer/jwt"
	"github.com/habityzer/layer/route"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

const (
	testIdCookie     = "app_id_token"
	testAccessCookie = "app_access_token"
	testScopedE2E    = "app_kinde_token"
	testLegacyE2E    = "kinde_token"
	testLoginPath    = "/api/kinde/login"
)

func testNow() time.Time { return time.Unix(1700000000, 0) }

func testConfig(mode route.Mode, public, protected []string) *config.Config {
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
			Mode:            mode,
			PublicRoutes:    public,
			ProtectedRoutes: protected,
			SkipPrefixes:    []string{"/api", "/_app", "/static", "/assets"},
			LoginPath:       testLoginPath,
			AppTokenPrefix:  "app_",
			ClockSkew:       30 * time.Second,
		},
	}
}

// testToken returns an unsigned JWT expiring at the given offset from testNow.
func testToken(t *testing.T, expOffset time.Duration) string {
	t.Helper()
	exp := testNow().Add(expOffset).Unix()
	return jwt.TestEncodeToken(t, `{"alg":"ES256","typ":"JWT"}`, fmt.Sprintf(`{"sub":"user-1","exp":%d}`, exp))
}

func testGuard(t *testing.T, c *config.Config, opt ...Option) *Guard {
	t.Helper()
	g, err := New(c, append([]Option{WithNow(testNow)}, opt...)...)
	require.NoError(t, err)
	return g
}

type testRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *testRecorder) GuardDecision(edge, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, edge+":"+outcome)
}

func (r *testRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes...)
}

// testTraceLogger returns a JSON trace logger and a func listing the logger
// names and messages written so far.
func testTraceLogger(t *testing.T) (hclog.Logger, func() []traceLine) {
	t.Helper()
	var mu sync.Mutex
	buf := &bytes.Buffer{}
	l := hclog.New(&hclog.LoggerOptions{
		Level:      hclog.Trace,
		Output:     &lockedWriter{mu: &mu, w: buf},
		JSONFormat: true,
	})
	return l, func() []traceLine {
		mu.Lock()
		defer mu.Unlock()
		var lines []traceLine
		sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
		for sc.Scan() {
			var tl traceLine
			require.NoError(t, json.Unmarshal(sc.Bytes(), &tl))
			lines = append(lines, tl)
		}
		return lines
	}
}

type traceLine struct {
	Module  string `json:"@module"`
	Message string `json:"@message"`
	Path    string `json:"path"`
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func messages(lines []traceLine) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Message)
	}
	return out
}
