package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	assert := assert.New(t)

	before := testutil.ToFloat64(GuardDecisionsTotal.WithLabelValues("server", "allow"))
	Default.GuardDecision("server", "allow")
	assert.Equal(before+1, testutil.ToFloat64(GuardDecisionsTotal.WithLabelValues("server", "allow")))

	before = testutil.ToFloat64(ProxyRequestsTotal.WithLabelValues(http.MethodGet, "404"))
	Default.ProxyRequest(http.MethodGet, http.StatusNotFound, 20*time.Millisecond)
	assert.Equal(before+1, testutil.ToFloat64(ProxyRequestsTotal.WithLabelValues(http.MethodGet, "404")))

	before = testutil.ToFloat64(ProxyCredentialTotal.WithLabelValues("app"))
	Default.Credential("app")
	assert.Equal(before+1, testutil.ToFloat64(ProxyCredentialTotal.WithLabelValues("app")))

	var none *Recorder
	assert.NotPanics(func() {
		none.GuardDecision("client", "skip")
		none.ProxyRequest(http.MethodPost, 0, time.Second)
		none.Credential("none")
	})
}

func TestHandler(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	Default.Credential("id")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), "auth_layer_proxy_credential_total")
}

func TestMiddleware(t *testing.T) {
	assert := assert.New(t)
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/symfony", "418"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/symfony/users/5", nil))
	assert.Equal(http.StatusTeapot, rec.Code)
	assert.Equal(before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/symfony", "418")))
}

func TestPathBucket(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input string
		want  string
	}{
		{"", "/"},
		{"/", "/"},
		{"/metrics", "/metrics"},
		{"/dashboard", "/dashboard"},
		{"/api/me", "/api/me"},
		{"/api/symfony/users/5", "/api/symfony"},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, pathBucket(tt.input), "pathBucket(%q)", tt.input)
	}
}
