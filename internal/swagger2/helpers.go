package swagger2

import "sort"

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

// stringSlice returns op-level values, falling back to document-level ones.
func stringSlice(opValue, docValue any) []string {
	source := opValue
	if source == nil {
		source = docValue
	}
	items, ok := asSlice(source)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func pop(m map[string]any, key string) any {
	v := m[key]
	delete(m, key)
	return v
}

func popScopes(m map[string]any) any {
	v := pop(m, "scopes")
	if v == nil {
		return map[string]any{}
	}
	return v
}
