package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equinix-labs/equinix-docs-mcp-server/internal/config"
	"github.com/equinix-labs/equinix-docs-mcp-server/internal/logging"
)

func newTestConfig(tokenURL string) *config.Config {
	cfg := &config.Config{
		APIs: map[string]*config.APIConfig{
			"metal":  {Specs: []config.SpecSource{{URL: "https://example.com/metal.yaml"}}, AuthType: config.AuthTypeMetalToken},
			"fabric": {Specs: []config.SpecSource{{URL: "https://example.com/fabric.yaml"}}, AuthType: config.AuthTypeClientCredentials},
			"open":   {Specs: []config.SpecSource{{URL: "https://example.com/open.yaml"}}},
		},
	}
	cfg.ApplyDefaults()
	if tokenURL != "" {
		cfg.Auth.ClientCredentials.TokenURL = tokenURL
	}
	return cfg
}

func TestAuthHeadersMetalToken(t *testing.T) {
	t.Setenv(EnvMetalToken, "metal-secret")

	m := NewManager(newTestConfig(""), logging.Discard())
	headers, err := m.AuthHeaders(context.Background(), "metal")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Auth-Token": "metal-secret"}, headers)
}

func TestAuthHeadersMetalTokenMissing(t *testing.T) {
	t.Setenv(EnvMetalToken, "")

	m := NewManager(newTestConfig(""), logging.Discard())
	_, err := m.AuthHeaders(context.Background(), "metal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvMetalToken)
}

func TestAuthHeadersClientCredentials(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "client_credentials", body["grant_type"])
		assert.Equal(t, "id-123", body["client_id"])
		assert.Equal(t, "secret-456", body["client_secret"])

		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-abc",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer server.Close()
	t.Setenv(EnvClientID, "id-123")
	t.Setenv(EnvClientSecret, "secret-456")

	m := NewManager(newTestConfig(server.URL), logging.Discard())
	headers, err := m.AuthHeaders(context.Background(), "fabric")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer tok-abc"}, headers)

	// Second call is served from the token cache.
	_, err = m.AuthHeaders(context.Background(), "fabric")
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())

	// Clearing the cache forces a refresh.
	m.ClearTokenCache()
	_, err = m.AuthHeaders(context.Background(), "fabric")
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestAuthHeadersClientCredentialsMissingEnv(t *testing.T) {
	t.Setenv(EnvClientID, "")
	t.Setenv(EnvClientSecret, "")

	m := NewManager(newTestConfig(""), logging.Discard())
	_, err := m.AuthHeaders(context.Background(), "fabric")
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvClientID)
}

func TestAuthHeadersTokenEndpointError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer server.Close()
	t.Setenv(EnvClientID, "id")
	t.Setenv(EnvClientSecret, "bad")

	m := NewManager(newTestConfig(server.URL), logging.Discard())
	_, err := m.AuthHeaders(context.Background(), "fabric")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestAuthHeadersNoAuthType(t *testing.T) {
	m := NewManager(newTestConfig(""), logging.Discard())
	headers, err := m.AuthHeaders(context.Background(), "open")
	require.NoError(t, err)
	assert.Empty(t, headers)
}

func TestAuthHeadersUnknownNamespace(t *testing.T) {
	m := NewManager(newTestConfig(""), logging.Discard())
	_, err := m.AuthHeaders(context.Background(), "nope")
	require.Error(t, err)
}
