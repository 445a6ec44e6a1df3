// Copyright (c) 2025 Cue Protocol
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@cueprotocol.io for commercial licensing options.

package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cueprotocol/go-passkey/pkg/passkey"
	"github.com/cueprotocol/go-passkey/pkg/ratelimit"
)

func newTestService(t *testing.T) (*passkey.Service, *passkey.JWTIssuer) {
	t.Helper()

	key, err := passkey.GenerateSigningKey()
	require.NoError(t, err)
	issuer, err := passkey.NewJWTIssuer(key, passkey.TokenConfig{Issuer: "test", Audience: "test"})
	require.NoError(t, err)

	svc, err := passkey.NewService(passkey.ServiceParams{
		Config: &passkey.Config{
			RPID:          "example.com",
			RPDisplayName: "Example Corp",
			RPOrigins:     []string{"https://example.com"},
		},
		Users:       passkey.NewInMemoryUserStore(),
		Credentials: passkey.NewInMemoryCredentialStore(),
		Rewards:     passkey.NewInMemoryRewardLedger(100),
		Tokens:      issuer,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, issuer
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(nil)
	require.Error(t, err)

	_, err = NewServer(&Config{})
	require.Error(t, err)
}

func TestNewServer_Defaults(t *testing.T) {
	svc, _ := newTestService(t)

	server, err := NewServer(&Config{Service: svc})
	require.NoError(t, err)
	assert.Equal(t, 8080, server.Port())
}

func TestServer_Healthz(t *testing.T) {
	svc, _ := newTestService(t)

	server, err := NewServer(&Config{Service: svc})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])

	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestServer_AuthRoutesMounted(t *testing.T) {
	svc, issuer := newTestService(t)

	server, err := NewServer(&Config{Service: svc, Keys: issuer})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/start", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_JWKSWithoutKeys(t *testing.T) {
	svc, _ := newTestService(t)

	server, err := NewServer(&Config{Service: svc})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	svc, _ := newTestService(t)

	server, err := NewServer(&Config{Service: svc, MetricsEnabled: true})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotZero(t, rec.Body.Len())
}

func TestServer_RateLimitOnAuthRoutes(t *testing.T) {
	svc, _ := newTestService(t)

	limiter := ratelimit.New(&ratelimit.Config{
		Enabled:           true,
		RequestsPerMinute: 60,
		Burst:             1,
	})
	defer limiter.Stop()

	server, err := NewServer(&Config{Service: svc, Limiter: limiter})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/start", nil)
	req.RemoteAddr = "203.0.113.7:1234"

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// The limiter fronts only the auth routes.
	rec = httptest.NewRecorder()
	health := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	health.RemoteAddr = "203.0.113.7:1234"
	server.Router().ServeHTTP(rec, health)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	svc, _ := newTestService(t)

	server, err := NewServer(&Config{Service: svc})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/start", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}
