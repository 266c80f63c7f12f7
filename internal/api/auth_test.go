package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterz/internal/config"
)

func authConfig() config.APIConfig {
	return config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "X-Api-Key",
			APIKeys: []config.APIClientKey{
				{Key: "web", Name: "web app"},
				{Key: "kiosk", Name: "kiosk", Permissions: []string{permReadCatalog}},
			},
		},
	}
}

func serveThrough(a *HTTPAuth, r *http.Request) int {
	rec := httptest.NewRecorder()
	a.Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, r)
	return rec.Code
}

func TestHTTPAuth(t *testing.T) {
	a := NewHTTPAuth(authConfig())

	tests := []struct {
		name   string
		path   string
		key    string
		status int
	}{
		{"missing key", "/api/v1/yachts", "", http.StatusUnauthorized},
		{"invalid key", "/api/v1/yachts", "nope", http.StatusUnauthorized},
		{"allow all", "/api/v1/drafts/d1", "web", http.StatusNoContent},
		{"scoped allowed", "/api/v1/yachts/y1", "kiosk", http.StatusNoContent},
		{"scoped denied", "/api/v1/checkout/s1", "kiosk", http.StatusForbidden},
		{"probe without key", "/healthz", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				r.Header.Set("x-api-key", tt.key)
			}
			assert.Equal(t, tt.status, serveThrough(a, r))
		})
	}
}

func TestHTTPAuth_RateLimit(t *testing.T) {
	cfg := config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 2}}
	a := NewHTTPAuth(cfg)

	req := func(remote string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/yachts", nil)
		r.RemoteAddr = remote
		return r
	}

	assert.Equal(t, http.StatusNoContent, serveThrough(a, req("10.0.0.1:1234")))
	assert.Equal(t, http.StatusNoContent, serveThrough(a, req("10.0.0.1:1235")))
	assert.Equal(t, http.StatusTooManyRequests, serveThrough(a, req("10.0.0.1:1236")))
	// another client has its own bucket
	assert.Equal(t, http.StatusNoContent, serveThrough(a, req("10.0.0.2:1234")))
}

func TestHTTPAuth_ClientKey(t *testing.T) {
	a := NewHTTPAuth(config.APIConfig{})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": "u42"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.168.1.5:4000"
	assert.Equal(t, "ip:192.168.1.5", a.clientKey(r))

	r.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, "user:u42", a.clientKey(r))

	r.Header.Set("X-Api-Key", "web")
	assert.Equal(t, "key:web", a.clientKey(r))
}

func TestRequiredPermission(t *testing.T) {
	paths := map[string]string{
		"/api/v1/yachts/top":       permReadCatalog,
		"/api/v1/drafts":           permWriteDrafts,
		"/api/v1/checkout/s1/open": permWriteCheckout,
		"/api/v1/rides/export":     permReadRides,
		"/api/v1/auth/signin":      permAccount,
		"/api/v1/account":          permAccount,
		"/api/v1/queries":          permAccount,
		"/metrics":                 "",
	}
	for path, want := range paths {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		assert.Equal(t, want, requiredPermission(r), path)
	}
}
