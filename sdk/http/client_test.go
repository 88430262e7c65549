package http

import (
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	tlsSrv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(tlsSrv.Close)
	caPEM := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: tlsSrv.Certificate().Raw}))

	tests := []struct {
		name       string
		caPEM      string
		path       string
		wantStatus int
		wantErr    bool
		wantIsErr  error
		wantReqErr bool
	}{
		{
			name:      "invalid-pem",
			caPEM:     "not a certificate",
			wantErr:   true,
			wantIsErr: ErrInvalidCertificatePem,
		},
		{
			name:       "with-ca",
			caPEM:      caPEM,
			path:       "/",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "redirect-not-followed",
			caPEM:      caPEM,
			path:       "/redirect",
			wantStatus: http.StatusFound,
		},
		{
			name:       "system-roots-reject-test-ca",
			path:       "/",
			wantReqErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			c, err := NewClient(tt.caPEM, time.Second)
			if tt.wantErr {
				require.Error(err)
				assert.Nil(c)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.Equal(time.Second, c.Timeout)

			resp, err := c.Get(tlsSrv.URL + tt.path)
			if tt.wantReqErr {
				require.Error(err)
				return
			}
			require.NoError(err)
			defer resp.Body.Close()
			assert.Equal(tt.wantStatus, resp.StatusCode)
		})
	}
}
