package spec

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equinix-labs/equinix-docs-mcp-server/internal/logging"
)

func newTestFetcher(t *testing.T) (*Fetcher, *Cache) {
	t.Helper()
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	return NewFetcher(cache, 5*time.Second, logging.Discard()), cache
}

func TestFetchAndCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("openapi: 3.0.0\ninfo:\n  title: Widgets\n  version: 1.0.0\npaths: {}\n"))
	}))
	defer server.Close()

	fetcher, cache := newTestFetcher(t)
	doc, err := fetcher.FetchAndCache(context.Background(), "widgets_0", server.URL)
	require.NoError(t, err)
	assert.Equal(t, "3.0.0", doc["openapi"])

	cached, err := cache.LoadRaw("widgets_0")
	require.NoError(t, err)
	assert.Equal(t, doc, cached)
}

func TestFetchAndCacheConvertsSwagger2(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"swagger": "2.0",
			"info": {"title": "Legacy", "version": "1.0.0"},
			"host": "api.example.com",
			"basePath": "/v1",
			"paths": {}
		}`))
	}))
	defer server.Close()

	fetcher, _ := newTestFetcher(t)
	doc, err := fetcher.FetchAndCache(context.Background(), "legacy_0", server.URL)
	require.NoError(t, err)
	assert.Equal(t, "3.0.0", doc["openapi"])
	assert.NotContains(t, doc, "swagger")
	servers := doc["servers"].([]any)
	assert.Equal(t, "https://api.example.com/v1", servers[0].(map[string]any)["url"])
}

func TestFetchFallsBackToCache(t *testing.T) {
	fetcher, cache := newTestFetcher(t)
	stale := map[string]any{"openapi": "3.0.0", "info": map[string]any{"title": "Stale"}}
	require.NoError(t, cache.SaveRaw("widgets_0", stale))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	doc, err := fetcher.FetchAndCache(context.Background(), "widgets_0", server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Stale", doc["info"].(map[string]any)["title"])
}

func TestFetchFailsWithoutCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher, _ := newTestFetcher(t)
	_, err := fetcher.FetchAndCache(context.Background(), "missing_0", server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestParseSpecRepairsKnownYAMLBugs(t *testing.T) {
	doc, err := parseSpec([]byte("openapi: 3.0.0\ninfo:\n  title: T\nx-check:\n  example: =\n  operator: =\n"))
	require.NoError(t, err)
	check := doc["x-check"].(map[string]any)
	assert.Equal(t, "", check["example"])
	assert.Equal(t, "", check["operator"])
}

func TestParseSpecNormalizesNonStringKeys(t *testing.T) {
	doc, err := parseSpec([]byte("responses:\n  200:\n    description: ok\n  404:\n    description: missing\n"))
	require.NoError(t, err)
	responses := doc["responses"].(map[string]any)
	assert.Contains(t, responses, "200")
	assert.Contains(t, responses, "404")
}
