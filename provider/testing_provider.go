package provider

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/habityzer/layer/jwt"
	"github.com/habityzer/layer/sdk/id"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	gojwt "gopkg.in/square/go-jose.v2/jwt"
)

// TestProvider is a disposable OIDC provider for tests. It serves discovery,
// authorization, token (authorization_code and refresh_token grants), key set
// and end session endpoints over TLS.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string
	jwks       *jose.JSONWebKeySet

	mu                  sync.Mutex
	clientID            string
	clientSecret        string
	allowedRedirectURIs []string
	subject             string
	customClaims        map[string]interface{}
	tokenLifetime       time.Duration
	omitIdToken         bool
	disableEndSession   bool

	// nonces issued by /auth, keyed by the code handed out with them
	nonces map[string]string
	// refreshTokens that /token accepts
	refreshTokens map[string]bool
	// refreshes counts successful refresh_token grants
	refreshes int

	ecdsaPublicKey  string
	ecdsaPrivateKey string

	t *testing.T
}

// StartTestProvider creates a disposable TestProvider that stops when the
// test ends.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		subject:       "kp_6f1c2b8e4a3d4e0f9b7a",
		tokenLifetime: time.Hour,
		nonces:        map[string]string{},
		refreshTokens: map[string]bool{},
		t:             t,
	}
	p.ecdsaPublicKey, p.ecdsaPrivateKey = jwt.TestGenerateKeys(t)
	p.jwks = testJWKS(t, p.ecdsaPublicKey)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()
	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// SetClientCreds is for configuring the client information required for the
// OIDC workflows.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetAllowedRedirectURIs allows you to configure the allowed redirect URIs for
// the OIDC workflow. When empty, any redirect URI is accepted.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetSubject sets the sub claim of issued tokens.
func (p *TestProvider) SetSubject(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subject = sub
}

// SetCustomClaims lets you set claims to return in the tokens issued.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// SetTokenLifetime sets how long issued tokens stay valid. A negative
// lifetime issues tokens that are already expired.
func (p *TestProvider) SetTokenLifetime(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenLifetime = d
}

// OmitIdTokens forces an error state where the /token endpoint does not return
// id_token.
func (p *TestProvider) OmitIdTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIdToken = true
}

// DisableEndSession omits end_session_endpoint from the discovery document.
func (p *TestProvider) DisableEndSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableEndSession = true
}

// Refreshes returns the number of successful refresh_token grants.
func (p *TestProvider) Refreshes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshes
}

// IssueRefreshToken returns a refresh token the /token endpoint accepts.
func (p *TestProvider) IssueRefreshToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.newRefreshToken()
}

// Addr returns the current base URL for the test provider's running webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// SigningKeys returns the test provider's pem-encoded keys used to sign JWTs.
func (p *TestProvider) SigningKeys() (pub, priv string) {
	return p.ecdsaPublicKey, p.ecdsaPrivateKey
}

// HTTPClient returns a client that trusts the test provider and does not
// follow redirects.
func (p *TestProvider) HTTPClient() *http.Client {
	c := p.httpServer.Client()
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

func (p *TestProvider) newRefreshToken() string {
	rt, err := id.New("rt")
	require.NoError(p.t, err)
	p.refreshTokens[rt] = true
	return rt
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()
	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)
	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}
	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.WriteHeader(statusCode)
	_ = p.writeJSON(w, &body)
}

func (p *TestProvider) redirectAllowed(uri string) bool {
	if len(p.allowedRedirectURIs) == 0 {
		return true
	}
	for _, allowed := range p.allowedRedirectURIs {
		if allowed == uri {
			return true
		}
	}
	return false
}

// clientAuthenticated accepts either client_secret_basic or
// client_secret_post.
func (p *TestProvider) clientAuthenticated(req *http.Request) bool {
	clientID, secret, ok := req.BasicAuth()
	if ok {
		clientID, _ = url.QueryUnescape(clientID)
		secret, _ = url.QueryUnescape(secret)
	} else {
		clientID, secret = req.FormValue("client_id"), req.FormValue("client_secret")
	}
	return clientID == p.clientID && secret == p.clientSecret
}

// signTokens issues an id_token and an access_token for the configured
// subject.
func (p *TestProvider) signTokens(nonce string) (idToken, accessToken string) {
	now := time.Now()
	std := gojwt.Claims{
		Subject:   p.subject,
		Issuer:    p.Addr(),
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now.Add(-5 * time.Second)),
		Expiry:    gojwt.NewNumericDate(now.Add(p.tokenLifetime)),
		Audience:  gojwt.Audience{p.clientID},
	}
	idClaims := map[string]interface{}{}
	for k, v := range p.customClaims {
		idClaims[k] = v
	}
	if nonce != "" {
		idClaims["nonce"] = nonce
	}
	idToken = jwt.TestSignJWT(p.t, p.ecdsaPrivateKey, std, idClaims)

	std.Audience = gojwt.Audience{p.Addr() + "/api"}
	accessToken = jwt.TestSignJWT(p.t, p.ecdsaPrivateKey, std, map[string]interface{}{"scp": []string{"openid", "profile", "email", "offline"}})
	return idToken, accessToken
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.t.Helper()

	w.Header().Set("Content-Type", "application/json")

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reply := struct {
			Issuer             string   `json:"issuer"`
			AuthEndpoint       string   `json:"authorization_endpoint"`
			TokenEndpoint      string   `json:"token_endpoint"`
			JWKSURI            string   `json:"jwks_uri"`
			EndSessionEndpoint string   `json:"end_session_endpoint,omitempty"`
			Algorithms         []string `json:"id_token_signing_alg_values_supported"`
		}{
			Issuer:             p.Addr(),
			AuthEndpoint:       p.Addr() + "/oauth2/auth",
			TokenEndpoint:      p.Addr() + "/oauth2/token",
			JWKSURI:            p.Addr() + "/.well-known/jwks.json",
			EndSessionEndpoint: p.Addr() + "/oauth2/logout",
			Algorithms:         []string{"ES256"},
		}
		if p.disableEndSession {
			reply.EndSessionEndpoint = ""
		}
		_ = p.writeJSON(w, &reply)

	case "/oauth2/auth":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		qv := req.URL.Query()
		switch {
		case qv.Get("response_type") != "code":
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
			return
		case !strings.Contains(" "+qv.Get("scope")+" ", " openid "):
			p.writeAuthErrorResponse(w, req, "invalid_scope", "")
			return
		case qv.Get("client_id") != p.clientID:
			p.writeAuthErrorResponse(w, req, "unauthorized_client", "")
			return
		case qv.Get("state") == "":
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
			return
		case qv.Get("redirect_uri") == "" || !p.redirectAllowed(qv.Get("redirect_uri")):
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		code, err := id.New("code")
		require.NoError(p.t, err)
		p.nonces[code] = qv.Get("nonce")

		redirectURI := qv.Get("redirect_uri") +
			"?state=" + url.QueryEscape(qv.Get("state")) +
			"&code=" + url.QueryEscape(code)
		http.Redirect(w, req, redirectURI, http.StatusFound)

	case "/.well-known/jwks.json":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = p.writeJSON(w, p.jwks)

	case "/oauth2/token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !p.clientAuthenticated(req) {
			p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "bad client credentials")
			return
		}
		var nonce string
		switch req.FormValue("grant_type") {
		case "authorization_code":
			n, ok := p.nonces[req.FormValue("code")]
			switch {
			case !ok:
				p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
				return
			case !p.redirectAllowed(req.FormValue("redirect_uri")):
				p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
				return
			}
			delete(p.nonces, req.FormValue("code"))
			nonce = n
		case "refresh_token":
			rt := req.FormValue("refresh_token")
			if !p.refreshTokens[rt] {
				p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unknown refresh token")
				return
			}
			delete(p.refreshTokens, rt)
			p.refreshes++
		default:
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "unsupported_grant_type", "")
			return
		}

		idToken, accessToken := p.signTokens(nonce)
		reply := struct {
			AccessToken  string `json:"access_token"`
			TokenType    string `json:"token_type"`
			ExpiresIn    int64  `json:"expires_in"`
			RefreshToken string `json:"refresh_token"`
			IdToken      string `json:"id_token,omitempty"`
		}{
			AccessToken:  accessToken,
			TokenType:    "bearer",
			ExpiresIn:    int64(p.tokenLifetime.Seconds()),
			RefreshToken: p.newRefreshToken(),
			IdToken:      idToken,
		}
		if p.omitIdToken {
			reply.IdToken = ""
		}
		_ = p.writeJSON(w, &reply)

	case "/oauth2/logout":
		target := req.URL.Query().Get("post_logout_redirect_uri")
		if target == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		http.Redirect(w, req, target, http.StatusFound)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// testJWKS converts a pem-encoded public key into JWKS data suitable for a
// verification endpoint response
func testJWKS(t *testing.T, pubKey string) *jose.JSONWebKeySet {
	t.Helper()
	require := require.New(t)

	block, _ := pem.Decode([]byte(pubKey))
	require.NotNil(block)

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(err)

	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       pub,
				Algorithm: "ES256",
				Use:       "sig",
			},
		},
	}
}
