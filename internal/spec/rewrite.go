package spec

import (
	"log/slog"
	"strings"
)

// prefixedComponentTypes are the component bags whose entity names get
// namespace-prefixed during a merge pass.
var prefixedComponentTypes = []string{
	"schemas", "requestBodies", "responses", "parameters",
	"examples", "headers", "securitySchemes",
}

// RefMapping maps (componentType, originalName) to the namespace-prefixed
// name for one merge pass. It is discarded once the pass completes.
type RefMapping map[string]map[string]string

// BuildRefMapping assigns every component entity in the document its
// prefixed identity "{Namespace.title()}{Name}". $defs entries count as
// schemas: JSON-Schema-style specs declare schemas there instead of under
// components.schemas.
func BuildRefMapping(doc map[string]any, namespace string) RefMapping {
	prefix := namespaceTitle(namespace)
	mapping := RefMapping{}

	add := func(componentType, name string) {
		bag, ok := mapping[componentType]
		if !ok {
			bag = map[string]string{}
			mapping[componentType] = bag
		}
		bag[name] = prefix + name
	}

	if components, ok := asMap(doc["components"]); ok {
		for _, componentType := range prefixedComponentTypes {
			if bag, ok := asMap(components[componentType]); ok {
				for name := range bag {
					add(componentType, name)
				}
			}
		}
	}
	if defs, ok := asMap(doc["$defs"]); ok {
		for name := range defs {
			add("schemas", name)
		}
	}
	return mapping
}

// PrefixComponents renames every component entity to its prefixed identity
// and rewrites each $ref that targeted the original identity. Schemas become
// primary under $defs with a shadow copy under components.schemas for
// 3.0-style consumers; the shadow is folded away again at top-level assembly.
func PrefixComponents(doc map[string]any, namespace string, logger *slog.Logger) RefMapping {
	mapping := BuildRefMapping(doc, namespace)
	rewriteRefs(doc, mapping)

	components, hasComponents := asMap(doc["components"])

	// Schemas: fold components.schemas and $defs into one prefixed bag,
	// $defs authoritative when both declare the same entity.
	combined := map[string]any{}
	rename := func(bag map[string]any) {
		for _, name := range sortedKeys(bag) {
			prefixed := mapping["schemas"][name]
			if _, exists := combined[prefixed]; exists {
				logger.Warn("schema name collision after prefixing, last write wins",
					"namespace", namespace, "name", prefixed)
			}
			combined[prefixed] = bag[name]
		}
	}
	if hasComponents {
		if schemas, ok := asMap(components["schemas"]); ok {
			rename(schemas)
		}
	}
	if defs, ok := asMap(doc["$defs"]); ok {
		rename(defs)
	}
	if len(combined) > 0 {
		doc["$defs"] = combined
		shadow := make(map[string]any, len(combined))
		for name, schema := range combined {
			shadow[name] = schema
		}
		if !hasComponents {
			components = ensureMap(doc, "components")
		}
		components["schemas"] = shadow
	}

	// Remaining component bags rename in place.
	if components != nil {
		for _, componentType := range prefixedComponentTypes {
			if componentType == "schemas" {
				continue
			}
			bag, ok := asMap(components[componentType])
			if !ok {
				continue
			}
			renamed := make(map[string]any, len(bag))
			for name, entity := range bag {
				renamed[mapping[componentType][name]] = entity
			}
			components[componentType] = renamed
		}
	}
	return mapping
}

// rewriteRefs walks the document rewriting every $ref that points at a
// mapped entity, plus security requirement keys for renamed securitySchemes.
// Refs outside the mapping's domain are left alone.
func rewriteRefs(node any, mapping RefMapping) {
	switch v := node.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok {
			v["$ref"] = rewriteRef(ref, mapping)
		}
		for key, value := range v {
			if key == "security" {
				if requirements, ok := asSlice(value); ok {
					v[key] = rewriteSecurityRequirements(requirements, mapping)
					continue
				}
			}
			rewriteRefs(value, mapping)
		}
	case []any:
		for _, item := range v {
			rewriteRefs(item, mapping)
		}
	}
}

func rewriteRef(ref string, mapping RefMapping) string {
	switch {
	case strings.HasPrefix(ref, "#/components/"):
		rest := strings.TrimPrefix(ref, "#/components/")
		componentType, name, ok := strings.Cut(rest, "/")
		if !ok {
			return ref
		}
		prefixed, ok := mapping[componentType][name]
		if !ok {
			return ref
		}
		if componentType == "schemas" {
			return "#/$defs/" + prefixed
		}
		return "#/components/" + componentType + "/" + prefixed
	case strings.HasPrefix(ref, "#/$defs/"):
		if prefixed, ok := mapping["schemas"][strings.TrimPrefix(ref, "#/$defs/")]; ok {
			return "#/$defs/" + prefixed
		}
	case strings.HasPrefix(ref, "#/definitions/"):
		if prefixed, ok := mapping["schemas"][strings.TrimPrefix(ref, "#/definitions/")]; ok {
			return "#/$defs/" + prefixed
		}
	case !strings.ContainsAny(ref, "#/"):
		// Bare relative name; some vendor schemas reference siblings this way.
		if prefixed, ok := mapping["schemas"][ref]; ok {
			return "#/$defs/" + prefixed
		}
	}
	return ref
}

func rewriteSecurityRequirements(requirements []any, mapping RefMapping) []any {
	schemes := mapping["securitySchemes"]
	if len(schemes) == 0 {
		return requirements
	}
	out := make([]any, 0, len(requirements))
	for _, r := range requirements {
		requirement, ok := asMap(r)
		if !ok {
			out = append(out, r)
			continue
		}
		renamed := make(map[string]any, len(requirement))
		for name, scopes := range requirement {
			if prefixed, ok := schemes[name]; ok {
				renamed[prefixed] = scopes
			} else {
				renamed[name] = scopes
			}
		}
		out = append(out, renamed)
	}
	return out
}
