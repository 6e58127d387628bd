package spec

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/equinix-labs/equinix-docs-mcp-server/internal/swagger2"
)

// yamlRepairs are literal fixes for known-malformed YAML emitted by at least
// one vendor spec: stray !!value tags and bare `=` scalars. This is a lossy
// heuristic for specific upstream bugs, not a general repair pass; do not
// grow it beyond documents we actually ingest.
var yamlRepairs = [][2]string{
	{"!!value", ""},
	{"example: =", "example: ''"},
	{"operator: =", "operator: ''"},
	{"- =", "- ''"},
}

type Fetcher struct {
	client *http.Client
	cache  *Cache
	logger *slog.Logger
}

func NewFetcher(cache *Cache, timeout time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		cache:  cache,
		logger: logger,
	}
}

// FetchAndCache retrieves and parses a spec document, converting Swagger 2.0
// inputs to OpenAPI 3.0, and writes the result to the raw cache under key.
// On fetch or parse failure the last cached copy is returned instead; if no
// cache exists the error is reported and the source contributes nothing.
func (f *Fetcher) FetchAndCache(ctx context.Context, key, url string) (map[string]any, error) {
	doc, err := f.fetch(ctx, url)
	if err != nil {
		f.logger.Warn("spec fetch failed, trying cache", "key", key, "url", url, "error", err)
		cached, cacheErr := f.cache.LoadRaw(key)
		if cacheErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
		f.logger.Warn("using cached spec", "key", key, "path", f.cache.RawPath(key))
		return cached, nil
	}

	if swagger2.IsSwagger2(doc) {
		f.logger.Info("converting Swagger 2.0 spec to OpenAPI 3.x", "url", url)
		converted, err := swagger2.Convert(doc)
		if err != nil {
			// Degrade: keep the unconverted document so the rest of the
			// namespace still processes. Downstream failures on missing
			// OAS3 structures log separately.
			f.logger.Error("swagger conversion failed, keeping original", "url", url, "error", err)
		} else {
			doc = converted
		}
	}

	if err := f.cache.SaveRaw(key, doc); err != nil {
		f.logger.Warn("spec cache write failed", "key", key, "error", err)
	}
	f.logger.Info("fetched spec", "key", key, "url", url)
	return doc, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml, text/yaml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch spec: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch spec: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}

	return parseSpec(data)
}

func parseSpec(data []byte) (map[string]any, error) {
	content := string(data)
	for _, repair := range yamlRepairs {
		content = strings.ReplaceAll(content, repair[0], repair[1])
	}
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("parse spec: %w", err)
	}
	normalizeTree(doc)
	return doc, nil
}
