// Package spec fetches, converts, merges, and assembles OpenAPI documents.
//
// Documents are plain map[string]any trees as decoded from YAML. Each
// namespace's working tree is exclusively owned during its merge pass and
// only published through the cache once complete.
package spec

import (
	"fmt"
	"sort"
)

var httpMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"patch": true, "head": true, "options": true, "trace": true,
}

// DeepMerge merges src into dst: maps merge recursively, anything else
// overwrites. Returns dst.
func DeepMerge(dst, src map[string]any) map[string]any {
	for k, v := range src {
		if srcMap, ok := asMap(v); ok {
			dstMap, ok := asMap(dst[k])
			if !ok {
				dstMap = map[string]any{}
			}
			dst[k] = DeepMerge(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
	return dst
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func ensureMap(parent map[string]any, key string) map[string]any {
	if m, ok := asMap(parent[key]); ok {
		return m
	}
	m := map[string]any{}
	parent[key] = m
	return m
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalizeTree rewrites map[any]any nodes (YAML mappings with non-string
// keys, e.g. unquoted response codes) into map[string]any so the whole tree
// has one shape.
func normalizeTree(v any) any {
	switch node := v.(type) {
	case map[string]any:
		for k, value := range node {
			node[k] = normalizeTree(value)
		}
		return node
	case map[any]any:
		out := make(map[string]any, len(node))
		for k, value := range node {
			out[fmt.Sprint(k)] = normalizeTree(value)
		}
		return out
	case []any:
		for i, item := range node {
			node[i] = normalizeTree(item)
		}
		return node
	default:
		return v
	}
}

// namespaceTitle mirrors Python's str.title() for namespace keys:
// "metal" -> "Metal", "network-edge" -> "Network-Edge".
func namespaceTitle(s string) string {
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
