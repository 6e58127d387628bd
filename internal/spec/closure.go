package spec

import "strings"

// CollectDefsRefs gathers the names referenced by #/$defs/{name} pointers
// anywhere under node.
func CollectDefsRefs(node any, names map[string]bool) {
	switch v := node.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok {
			if name, found := strings.CutPrefix(ref, "#/$defs/"); found {
				names[name] = true
			}
		}
		for _, value := range v {
			CollectDefsRefs(value, names)
		}
	case []any:
		for _, item := range v {
			CollectDefsRefs(item, names)
		}
	}
}

// DefsClosure returns the transitive closure of $defs entries reachable from
// root: the directly referenced names plus everything those definitions
// reference, to a fixed point. Unknown names are skipped so a schema with a
// dangling ref still yields the reachable part of its closure.
func DefsClosure(root any, defs map[string]any) map[string]any {
	pending := map[string]bool{}
	CollectDefsRefs(root, pending)

	closure := map[string]any{}
	for len(pending) > 0 {
		next := map[string]bool{}
		for name := range pending {
			if _, done := closure[name]; done {
				continue
			}
			schema, ok := defs[name]
			if !ok {
				continue
			}
			closure[name] = schema
			CollectDefsRefs(schema, next)
		}
		for name := range closure {
			delete(next, name)
		}
		pending = next
	}
	return closure
}
