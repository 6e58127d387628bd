package spec

import (
	"encoding/json"
	"sort"
	"strings"
)

// AssembleOptions controls the top-level document produced by
// AssembleMergedSpec.
type AssembleOptions struct {
	Title     string
	Version   string
	ServerURL string
}

func (o *AssembleOptions) applyDefaults() {
	if o.Title == "" {
		o.Title = "Equinix MCP Combined API"
	}
	if o.Version == "" {
		o.Version = "1.0.0"
	}
	if o.ServerURL == "" {
		o.ServerURL = "https://api.equinix.com"
	}
}

// AssembleMergedSpec combines per-namespace merged documents into one OpenAPI
// 3.1 document. Namespaces are folded in sorted key order so the output is
// deterministic regardless of fetch order. Schemas live under root $defs; the
// per-namespace components.schemas shadow copies are dropped here, and any
// remaining #/components/schemas/ refs are redirected to #/$defs/.
func AssembleMergedSpec(merged map[string]map[string]any, opts AssembleOptions) map[string]any {
	opts.applyDefaults()
	doc := map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":       opts.Title,
			"version":     opts.Version,
			"description": "Combined OpenAPI document for Equinix APIs, one namespace per vendor spec.",
		},
		"servers": []any{
			map[string]any{"url": opts.ServerURL},
		},
		"paths":      map[string]any{},
		"components": map[string]any{},
		"$defs":      map[string]any{},
	}

	namespaces := make([]string, 0, len(merged))
	for namespace := range merged {
		namespaces = append(namespaces, namespace)
	}
	sort.Strings(namespaces)

	paths := doc["paths"].(map[string]any)
	components := doc["components"].(map[string]any)
	defs := doc["$defs"].(map[string]any)
	var security []any
	seenRequirements := map[string]bool{}

	for _, namespace := range namespaces {
		nsDoc := merged[namespace]

		if nsPaths, ok := asMap(nsDoc["paths"]); ok {
			for path, item := range nsPaths {
				paths[path] = item
			}
		}
		if nsDefs, ok := asMap(nsDoc["$defs"]); ok {
			DeepMerge(defs, nsDefs)
		}
		if nsComponents, ok := asMap(nsDoc["components"]); ok {
			for componentType, bag := range nsComponents {
				if componentType == "schemas" {
					// Shadow of $defs, already folded above.
					if schemas, ok := asMap(bag); ok {
						DeepMerge(defs, schemas)
					}
					continue
				}
				if src, ok := asMap(bag); ok {
					DeepMerge(ensureMap(components, componentType), src)
				}
			}
		}
		if nsSecurity, ok := asSlice(nsDoc["security"]); ok {
			for _, requirement := range nsSecurity {
				key := requirementKey(requirement)
				if seenRequirements[key] {
					continue
				}
				seenRequirements[key] = true
				security = append(security, requirement)
			}
		}
	}

	if len(security) > 0 {
		doc["security"] = security
	}
	redirectSchemaRefs(doc)
	if len(defs) == 0 {
		delete(doc, "$defs")
	}
	if len(components) == 0 {
		delete(doc, "components")
	}
	return doc
}

// requirementKey serializes a security requirement with sorted scheme names
// so structurally equal requirements dedupe.
func requirementKey(requirement any) string {
	m, ok := asMap(requirement)
	if !ok {
		raw, _ := json.Marshal(requirement)
		return string(raw)
	}
	names := sortedKeys(m)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		scopes, _ := json.Marshal(m[name])
		parts = append(parts, name+"="+string(scopes))
	}
	return strings.Join(parts, ";")
}

// redirectSchemaRefs rewrites the legacy #/components/schemas/ ref form to
// #/$defs/. Merge passes already emit the $defs form; this catches refs
// introduced by overlays or hand-edited sources.
func redirectSchemaRefs(node any) {
	switch v := node.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok {
			if name, found := strings.CutPrefix(ref, "#/components/schemas/"); found {
				v["$ref"] = "#/$defs/" + name
			}
		}
		for _, value := range v {
			redirectSchemaRefs(value)
		}
	case []any:
		for _, item := range v {
			redirectSchemaRefs(item)
		}
	}
}
