// Package metrics exposes Prometheus collectors for the guards, the backend
// proxy and the gateway's HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "auth_layer"

var (
	GuardDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total guard decisions by edge (server, client) and outcome.",
	}, []string{"edge", "outcome"})

	ProxyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "proxy_requests_total",
		Help:      "Total proxied backend calls by method and relayed status code.",
	}, []string{"method", "status"})

	ProxyUpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "proxy_upstream_duration_seconds",
		Help:      "Backend call latency in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method"})

	ProxyCredentialTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "proxy_credential_total",
		Help:      "Total credentials attached to backend calls by kind (none, app, access, id).",
	}, []string{"kind"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total gateway HTTP requests by method, path bucket and status code.",
	}, []string{"method", "path", "status"})
)

// Recorder feeds the package collectors. The zero value is ready to use; a
// nil *Recorder records nothing.
type Recorder struct{}

// Default is the Recorder wired by the gateway.
var Default = &Recorder{}

// GuardDecision counts one guard outcome for edge.
func (r *Recorder) GuardDecision(edge, outcome string) {
	if r == nil {
		return
	}
	GuardDecisionsTotal.WithLabelValues(edge, outcome).Inc()
}

// ProxyRequest counts one backend call and its latency. A status of zero
// means no response was relayed.
func (r *Recorder) ProxyRequest(method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	ProxyRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	ProxyUpstreamDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Credential counts the kind of credential attached to a backend call.
func (r *Recorder) Credential(kind string) {
	if r == nil {
		return
	}
	ProxyCredentialTotal.WithLabelValues(kind).Inc()
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts for the gateway.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		HTTPRequestsTotal.WithLabelValues(r.Method, pathBucket(r.URL.Path), strconv.Itoa(rw.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Flush keeps streamed proxy responses streaming.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// pathBucket keeps at most the first two path segments so proxied backend
// ids do not explode label cardinality.
func pathBucket(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	if p == "/metrics" {
		return p
	}
	segments := strings.SplitN(strings.TrimPrefix(p, "/"), "/", 3)
	if len(segments) > 2 {
		segments = segments[:2]
	}
	return "/" + strings.Join(segments, "/")
}
