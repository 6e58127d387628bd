// Package auth resolves per-request credentials for the two Equinix
// credential models: OAuth2 client credentials and the Metal API token.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/equinix-labs/equinix-docs-mcp-server/internal/config"
)

// Environment variables holding credentials. They are read per call, not
// cached at startup, so rotating a credential does not require a restart.
const (
	EnvClientID     = "EQUINIX_CLIENT_ID"
	EnvClientSecret = "EQUINIX_CLIENT_SECRET"
	EnvMetalToken   = "EQUINIX_METAL_TOKEN"
)

// expirySkew is subtracted from a token's lifetime so we never present a
// token that expires mid-request.
const expirySkew = 60 * time.Second

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// Manager issues the auth headers for an API namespace. OAuth2 tokens are
// fetched lazily and cached until shortly before expiry; the Metal token is
// passed through from the environment.
type Manager struct {
	cfg    *config.Config
	client *http.Client
	logger *slog.Logger

	mu     sync.Mutex
	tokens map[string]cachedToken
}

func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
		tokens: map[string]cachedToken{},
	}
}

// AuthHeaders returns the headers to attach to a request against the given
// namespace. A namespace with no auth_type gets no headers.
func (m *Manager) AuthHeaders(ctx context.Context, namespace string) (map[string]string, error) {
	api, ok := m.cfg.APIConfigFor(namespace)
	if !ok {
		return nil, fmt.Errorf("namespace %s not configured", namespace)
	}
	switch api.AuthType {
	case config.AuthTypeMetalToken:
		token := os.Getenv(EnvMetalToken)
		if token == "" {
			return nil, fmt.Errorf("%s is not set", EnvMetalToken)
		}
		return map[string]string{m.cfg.Auth.MetalToken.HeaderName: token}, nil
	case config.AuthTypeClientCredentials:
		token, err := m.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"Authorization": "Bearer " + token}, nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("namespace %s: unsupported auth_type %q", namespace, api.AuthType)
	}
}

// ClearTokenCache drops all cached tokens, forcing a refresh on next use.
func (m *Manager) ClearTokenCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = map[string]cachedToken{}
}

func (m *Manager) accessToken(ctx context.Context) (string, error) {
	tokenURL := m.cfg.Auth.ClientCredentials.TokenURL

	m.mu.Lock()
	cached, ok := m.tokens[tokenURL]
	m.mu.Unlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.value, nil
	}

	clientID := os.Getenv(EnvClientID)
	clientSecret := os.Getenv(EnvClientSecret)
	if clientID == "" || clientSecret == "" {
		return "", fmt.Errorf("%s and %s must be set", EnvClientID, EnvClientSecret)
	}

	token, expiresIn, err := m.fetchToken(ctx, tokenURL, clientID, clientSecret)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.tokens[tokenURL] = cachedToken{
		value:     token,
		expiresAt: time.Now().Add(time.Duration(expiresIn)*time.Second - expirySkew),
	}
	m.mu.Unlock()

	m.logger.Info("obtained access token", "token_url", tokenURL, "expires_in", expiresIn)
	return token, nil
}

// fetchToken performs the client credentials grant. The Equinix token
// endpoint takes a JSON body rather than the form encoding RFC 6749
// prescribes.
func (m *Manager) fetchToken(ctx context.Context, tokenURL, clientID, clientSecret string) (string, int64, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     clientID,
		"client_secret": clientSecret,
	})
	if err != nil {
		return "", 0, fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("fetch token: status %d: %s", resp.StatusCode, truncate(data, 200))
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", 0, fmt.Errorf("parse token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", 0, fmt.Errorf("token response missing access_token")
	}
	if parsed.ExpiresIn <= 0 {
		parsed.ExpiresIn = 3600
	}
	return parsed.AccessToken, parsed.ExpiresIn, nil
}

func truncate(data []byte, limit int) string {
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
