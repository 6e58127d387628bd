package spec

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Cache owns the on-disk spec cache directory. Raw per-source documents are
// stored as {namespace}_{sourceIndex}.yaml and per-namespace merge results
// as {namespace}-merged.yaml. Files are regenerated idempotently; the merged
// file doubles as the synchronization boundary between the merge phase and
// top-level assembly.
type Cache struct {
	dir string
}

func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) Dir() string { return c.dir }

func (c *Cache) RawPath(key string) string {
	return filepath.Join(c.dir, key+".yaml")
}

func (c *Cache) MergedPath(namespace string) string {
	return filepath.Join(c.dir, namespace+"-merged.yaml")
}

func (c *Cache) SaveRaw(key string, doc map[string]any) error {
	return c.write(c.RawPath(key), doc)
}

func (c *Cache) LoadRaw(key string) (map[string]any, error) {
	return c.read(c.RawPath(key))
}

func (c *Cache) SaveMerged(namespace string, doc map[string]any) error {
	return c.write(c.MergedPath(namespace), doc)
}

func (c *Cache) LoadMerged(namespace string) (map[string]any, error) {
	return c.read(c.MergedPath(namespace))
}

func (c *Cache) HasMerged(namespace string) bool {
	_, err := os.Stat(c.MergedPath(namespace))
	return err == nil
}

func (c *Cache) write(path string, doc map[string]any) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode spec: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write spec cache: %w", err)
	}
	return nil
}

func (c *Cache) read(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec cache: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse spec cache: %w", err)
	}
	normalizeTree(doc)
	return doc, nil
}
