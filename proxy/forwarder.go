// Package proxy forwards API calls to the backend with the caller's
// credential attached.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/habityzer/layer/config"
	sdkhttp "github.com/habityzer/layer/sdk/http"
	"github.com/habityzer/layer/sdk/id"
	"github.com/hashicorp/go-hclog"
)

// RequestIdHeader tags every backend call.
const RequestIdHeader = "X-Request-Id"

// forwarded request headers; everything else stays at the edge.
var forwardedHeaders = []string{"Content-Type", "Accept", "Accept-Language"}

// relayed response headers.
var relayedHeaders = []string{"Content-Type", "Content-Disposition", "Location", "Cache-Control", RequestIdHeader}

// Forwarder relays calls made under a path prefix to the backend. It is an
// http.Handler and is safe for concurrent use.
type Forwarder struct {
	baseURL   string
	prefix    string
	namespace string
	client    *http.Client
	selector  *Selector
	logger    hclog.Logger
	recorder  Recorder
}

// NewForwarder creates a Forwarder for the configured backend.
//
// Supported options:
//
//	WithLogger
//	WithRecorder
//	WithHTTPClient
func NewForwarder(c *config.Config, tokens TokenSource, opt ...Option) (*Forwarder, error) {
	const op = "proxy.NewForwarder"
	if c == nil {
		return nil, fmt.Errorf("%s: missing config: %w", op, ErrNilParameter)
	}
	if c.Proxy.BaseURL == "" {
		return nil, fmt.Errorf("%s: missing backend base URL: %w", op, ErrInvalidParameter)
	}
	opts := getProxyOpts(opt...)
	selector, err := NewSelector(c, tokens, WithLogger(opts.withLogger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	client := opts.withHTTPClient
	if client == nil {
		if client, err = sdkhttp.NewClient(c.Proxy.CA, c.Proxy.Timeout); err != nil {
			return nil, fmt.Errorf("%s: backend client: %v: %w", op, err, ErrInvalidParameter)
		}
	}
	return &Forwarder{
		baseURL:   strings.TrimRight(c.Proxy.BaseURL, "/"),
		prefix:    strings.TrimRight(c.Proxy.Prefix, "/"),
		namespace: c.Proxy.TokenNamespace,
		client:    client,
		selector:  selector,
		logger:    opts.withLogger,
		recorder:  opts.withRecorder,
	}, nil
}

// Response is a buffered backend answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetch performs a GET of the backend path on behalf of r and buffers the
// answer. Non-2xx answers and transport failures are returned as
// *UpstreamError; a missing credential as ErrUnauthenticated.
func (f *Forwarder) Fetch(ctx context.Context, w http.ResponseWriter, r *http.Request, path string) (*Response, error) {
	const op = "proxy.(Forwarder).Fetch"
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	cred, err := f.selector.Select(ctx, w, r, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrInvalidParameter)
	}
	req.Header.Set("Accept", "application/json")
	f.decorate(req, r, cred)
	f.recordCredential(cred)

	resp, err := f.do(req, cred)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, &UpstreamError{StatusCode: http.StatusBadGateway, Message: err.Error()})
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: %w", op, &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Payload:    body,
		})
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// ServeHTTP strips the prefix from the request path and relays the call to
// the backend. The backend's status, content type and body come back
// unchanged, errors included.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "proxy.(Forwarder).ServeHTTP"
	ctx := r.Context()

	escaped := strings.TrimPrefix(r.URL.EscapedPath(), f.prefix)
	if !strings.HasPrefix(escaped, "/") {
		escaped = "/" + escaped
	}
	path := strings.TrimPrefix(r.URL.Path, f.prefix)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	cred, err := f.selector.Select(ctx, w, r, path)
	if err != nil {
		f.logger.Warn("rejecting backend call", "op", op, "path", path, "error", err)
		writeError(w, http.StatusUnauthorized, "Unauthorized - Please log in")
		return
	}
	f.recordCredential(cred)

	target := f.baseURL + escaped
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	body, length, err := outboundBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ContentLength = length
	for _, h := range forwardedHeaders {
		if v := r.Header.Values(h); len(v) > 0 {
			req.Header[h] = append([]string(nil), v...)
		}
	}
	f.decorate(req, r, cred)

	resp, err := f.do(req, cred)
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			writeError(w, upstream.StatusCode, upstream.Message)
			return
		}
		writeError(w, http.StatusBadGateway, http.StatusText(http.StatusBadGateway))
		return
	}
	defer resp.Body.Close()

	for _, h := range relayedHeaders {
		if v := resp.Header.Values(h); len(v) > 0 {
			w.Header()[h] = append([]string(nil), v...)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		f.logger.Error("relaying backend response", "op", op, "path", path, "error", err)
	}
}

// decorate sets the Authorization and request id headers of req.
func (f *Forwarder) decorate(req, in *http.Request, cred Credential) {
	if auth := cred.Authorization(f.namespace); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	reqId := in.Header.Get(RequestIdHeader)
	if reqId == "" {
		if generated, err := id.New("req"); err == nil {
			reqId = generated
		}
	}
	if reqId != "" {
		req.Header.Set(RequestIdHeader, reqId)
	}
}

// do sends req once. Failures to reach the backend come back as
// *UpstreamError with 504 for timeouts and 502 otherwise.
func (f *Forwarder) do(req *http.Request, cred Credential) (*http.Response, error) {
	start := time.Now()
	f.logger.Debug("request to backend",
		"url", req.URL.Redacted(),
		"method", req.Method,
		"authorization", cred.redacted(f.namespace),
		"credential", cred.Kind,
		"request_id", req.Header.Get(RequestIdHeader),
		"has_body", req.Body != nil && req.Body != http.NoBody,
	)
	resp, err := f.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		status := http.StatusBadGateway
		if timedOut(err) {
			status = http.StatusGatewayTimeout
		}
		f.logger.Error("backend call failed", "url", req.URL.Redacted(), "method", req.Method, "status", status, "error", err)
		f.recordRequest(req.Method, status, elapsed)
		return nil, &UpstreamError{StatusCode: status, Message: http.StatusText(status)}
	}
	f.logger.Debug("backend response received", "url", req.URL.Redacted(), "method", req.Method, "status", resp.StatusCode, "elapsed", elapsed)
	f.recordRequest(req.Method, resp.StatusCode, elapsed)
	return resp, nil
}

func (f *Forwarder) recordRequest(method string, status int, elapsed time.Duration) {
	if f.recorder != nil {
		f.recorder.ProxyRequest(method, status, elapsed)
	}
}

func (f *Forwarder) recordCredential(c Credential) {
	if f.recorder != nil {
		f.recorder.Credential(string(c.Kind))
	}
}

// outboundBody returns the body to send upstream and its length. GET and HEAD
// carry none. Multipart bodies are streamed untouched with the caller's
// length; anything else is buffered and sent with a fixed length.
func outboundBody(r *http.Request) (io.Reader, int64, error) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Body == nil || r.Body == http.NoBody {
		return nil, 0, nil
	}
	if isMultipart(r.Header.Get("Content-Type")) {
		return r.Body, r.ContentLength, nil
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(b), int64(len(b)), nil
}

func isMultipart(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.HasPrefix(mt, "multipart/")
}

func timedOut(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// writeError answers with the JSON error shape the frontend expects.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		StatusCode    int    `json:"statusCode"`
		StatusMessage string `json:"statusMessage"`
	}{status, message})
}
