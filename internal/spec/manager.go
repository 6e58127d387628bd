package spec

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/equinix-labs/equinix-docs-mcp-server/internal/config"
	"github.com/equinix-labs/equinix-docs-mcp-server/internal/overlay"
)

const (
	defaultFetchTimeout     = 30 * time.Second
	defaultFetchConcurrency = 4

	// metalBasePath is forced for the Metal namespace when its spec omits a
	// server path: Metal's published spec serves from the API root but every
	// real endpoint lives under this prefix.
	metalBasePath = "/metal/v1"
)

// Manager drives the spec lifecycle: fetch each configured source, fold
// sources into one document per namespace, apply overlays and filters,
// namespace-prefix the components, normalize security, and assemble the
// per-namespace results into the single merged document the tool registry
// consumes.
type Manager struct {
	cfg      *config.Config
	cache    *Cache
	fetcher  *Fetcher
	overlays *overlay.Manager
	logger   *slog.Logger

	// Validate, when set, is called on each fetched document and its result
	// logged. Never fails the pipeline.
	Validate func(ctx context.Context, doc map[string]any) error
}

func NewManager(cfg *config.Config, logger *slog.Logger) (*Manager, error) {
	cache, err := NewCache(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	return &Manager{
		cfg:      cfg,
		cache:    cache,
		fetcher:  NewFetcher(cache, defaultFetchTimeout, logger),
		overlays: overlay.NewManager(logger),
		logger:   logger,
	}, nil
}

func (m *Manager) Cache() *Cache { return m.cache }

// UpdateSpecs refreshes every enabled namespace concurrently. A namespace
// that fails is logged and skipped so one broken vendor spec cannot take the
// whole merged document down; the error returned reflects only total failure
// (zero namespaces processed successfully).
func (m *Manager) UpdateSpecs(ctx context.Context) error {
	names := m.enabledNamespaces()
	if len(names) == 0 {
		return fmt.Errorf("no enabled APIs configured")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultFetchConcurrency)
	results := make([]error, len(names))
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			results[i] = m.processNamespace(ctx, name)
			return nil
		})
	}
	g.Wait()

	failed := 0
	for i, err := range results {
		if err != nil {
			failed++
			m.logger.Error("namespace update failed", "namespace", names[i], "error", err)
		}
	}
	if failed == len(names) {
		return fmt.Errorf("all %d namespaces failed to update", failed)
	}
	m.logger.Info("spec update complete", "namespaces", len(names)-failed, "failed", failed)
	return nil
}

// processNamespace runs the full merge pipeline for one namespace and writes
// the result to the merged cache. The pipeline always starts from freshly
// fetched (or freshly re-read) pristine sources, so re-running it never
// double-prefixes anything.
func (m *Manager) processNamespace(ctx context.Context, namespace string) error {
	api, ok := m.cfg.APIConfigFor(namespace)
	if !ok {
		return fmt.Errorf("namespace %s not configured", namespace)
	}

	// The first source seeds the namespace document whole, info, servers,
	// and root security included; later sources fold in paths, components,
	// and $defs only.
	var base map[string]any
	for i, src := range api.Specs {
		key := fmt.Sprintf("%s_%d", namespace, i)
		doc, err := m.fetcher.FetchAndCache(ctx, key, src.URL)
		if err != nil {
			return fmt.Errorf("source %d: %w", i, err)
		}
		if m.Validate != nil {
			if err := m.Validate(ctx, doc); err != nil {
				m.logger.Warn("spec validation reported issues",
					"namespace", namespace, "source", i, "error", err)
			}
		}

		basePath := ExtractBasePath(doc)
		if basePath == "" && namespace == "metal" {
			basePath = metalBasePath
		}
		PrependBasePath(doc, basePath)
		if base == nil {
			base = doc
		} else {
			foldSource(base, doc)
		}

		if src.Overlay != "" {
			ov, err := m.overlays.Load(src.Overlay)
			if err != nil {
				m.logger.Warn("overlay load failed, skipping",
					"namespace", namespace, "path", src.Overlay, "error", err)
			} else {
				base = m.overlays.Apply(base, namespace, ov)
			}
		}
	}

	if paths, ok := asMap(base["paths"]); ok {
		base["paths"] = FilterPaths(paths, api.IncludePatterns(), api.ExcludePatterns())
	}

	PrefixComponents(base, namespace, m.logger)
	tagOperations(base, namespace, api.ServiceName)
	NormalizeSecurity(base, api, m.cfg.Auth)

	if err := CheckRefIntegrity(namespace, base); err != nil {
		return err
	}
	if err := m.cache.SaveMerged(namespace, base); err != nil {
		return fmt.Errorf("save merged spec: %w", err)
	}
	m.logger.Info("namespace merged", "namespace", namespace,
		"paths", len(asMapOrEmpty(base["paths"])))
	return nil
}

// HasAllCachedSpecs reports whether every enabled namespace has a merged
// cache entry, i.e. whether serve can start without a refresh.
func (m *Manager) HasAllCachedSpecs() bool {
	for _, name := range m.enabledNamespaces() {
		if !m.cache.HasMerged(name) {
			return false
		}
	}
	return true
}

// MergedSpec assembles the combined document from the per-namespace merged
// caches. Namespaces without a cache entry are skipped with a warning.
func (m *Manager) MergedSpec() (map[string]any, error) {
	merged := map[string]map[string]any{}
	for _, name := range m.enabledNamespaces() {
		doc, err := m.cache.LoadMerged(name)
		if err != nil {
			m.logger.Warn("merged spec missing for namespace, skipping",
				"namespace", name, "error", err)
			continue
		}
		merged[name] = doc
	}
	if len(merged) == 0 {
		return nil, fmt.Errorf("no merged specs available; run a refresh first")
	}
	return AssembleMergedSpec(merged, AssembleOptions{}), nil
}

// WriteMergedSpec assembles the combined document and writes it as YAML.
func (m *Manager) WriteMergedSpec(path string) error {
	doc, err := m.MergedSpec()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode merged spec: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write merged spec: %w", err)
	}
	m.logger.Info("wrote merged spec", "path", path)
	return nil
}

func (m *Manager) enabledNamespaces() []string {
	var names []string
	for _, name := range m.cfg.APINames() {
		if api, ok := m.cfg.APIConfigFor(name); ok && api.IsEnabled() {
			names = append(names, name)
		}
	}
	return names
}

func asMapOrEmpty(v any) map[string]any {
	if m, ok := asMap(v); ok {
		return m
	}
	return map[string]any{}
}
