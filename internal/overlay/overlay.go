// Package overlay loads and applies OpenAPI overlay documents.
//
// Only the actions the Equinix overlays need are implemented: replacing
// $.info.title and $.servers. Anything else is ignored; this is not a
// general JSONPath engine.
package overlay

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

type Manager struct {
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]map[string]any
}

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger: logger,
		cache:  map[string]map[string]any{},
	}
}

// Load reads an overlay file, caching it by absolute path. A changed overlay
// on disk is not picked up until ClearCache is called.
func (m *Manager) Load(path string) (map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve overlay path: %w", err)
	}

	m.mu.Lock()
	cached, ok := m.cache[abs]
	m.mu.Unlock()
	if ok {
		return cached, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read overlay: %w", err)
	}
	var overlay map[string]any
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse overlay: %w", err)
	}

	m.mu.Lock()
	m.cache[abs] = overlay
	m.mu.Unlock()
	return overlay, nil
}

// Cached returns a previously loaded overlay.
func (m *Manager) Cached(path string) (map[string]any, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	overlay, ok := m.cache[abs]
	return overlay, ok
}

func (m *Manager) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = map[string]map[string]any{}
}

// Apply applies the overlay's actions to the spec and returns it. Supported
// targets are $.info.title and $.servers; unknown targets are skipped.
func (m *Manager) Apply(spec map[string]any, namespace string, overlay map[string]any) map[string]any {
	actions, ok := overlay["actions"].([]any)
	if !ok {
		return spec
	}
	for _, a := range actions {
		action, ok := a.(map[string]any)
		if !ok {
			continue
		}
		target, _ := action["target"].(string)
		update := action["update"]
		switch target {
		case "$.info.title":
			if info, ok := spec["info"].(map[string]any); ok {
				info["title"] = update
			}
		case "$.servers":
			spec["servers"] = update
		default:
			m.logger.Debug("skipping unsupported overlay action",
				"namespace", namespace, "target", target)
		}
	}
	return spec
}

// CreateTemplate writes a starter overlay for an API namespace. The metal
// template carries an extra path-prefix hint action; the prefix itself is
// applied by base-path extraction during merge, not by the overlay engine.
func (m *Manager) CreateTemplate(path, serviceName, namespace string) error {
	title := titleCase(serviceName)
	overlay := map[string]any{
		"overlay": "1.0.0",
		"info": map[string]any{
			"title":       fmt.Sprintf("Overlay for %s", serviceName),
			"version":     "1.0.0",
			"description": fmt.Sprintf("Overlay spec to normalize the %s API", serviceName),
		},
		"actions": []any{
			map[string]any{
				"target": "$.info.title",
				"update": fmt.Sprintf("Equinix %s API", title),
			},
			map[string]any{
				"target": "$.servers",
				"update": []any{
					map[string]any{
						"url":         "https://api.equinix.com",
						"description": "Equinix API Server",
					},
				},
			},
		},
	}
	if namespace == "metal" {
		actions := overlay["actions"].([]any)
		overlay["actions"] = append(actions, map[string]any{
			"target": "$.paths.*",
			"update": map[string]any{"path_prefix": "/metal/v1"},
		})
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create overlay dir: %w", err)
	}
	data, err := yaml.Marshal(overlay)
	if err != nil {
		return fmt.Errorf("encode overlay: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write overlay: %w", err)
	}
	return nil
}

// titleCase mirrors Python's str.title(): the first letter of every alpha
// run is uppercased, the rest lowercased.
func titleCase(s string) string {
	out := []rune(s)
	prevAlpha := false
	for i, r := range out {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		switch {
		case isAlpha && !prevAlpha:
			if r >= 'a' && r <= 'z' {
				out[i] = r - 'a' + 'A'
			}
		case isAlpha:
			if r >= 'A' && r <= 'Z' {
				out[i] = r - 'A' + 'a'
			}
		}
		prevAlpha = isAlpha
	}
	return string(out)
}
