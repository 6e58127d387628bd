package spec

import (
	"strings"

	"github.com/equinix-labs/equinix-docs-mcp-server/internal/config"
)

// Canonical security scheme names shared across namespaces. They are added
// after the prefixing pass, so they stay unprefixed and deduplicate at
// top-level assembly.
const (
	SchemeClientCredentials = "ClientCredentials"
	SchemeMetalToken        = "MetalToken"
	schemeBearerAuth        = "BearerAuth"
)

// NormalizeSecurity converts the implicit header-based auth convention found
// in raw vendor specs into OpenAPI's native security requirement model:
// ensure the scheme for the namespace's auth type exists, strip inline
// Authorization header parameters (those operations inherit the root
// default), opt all other operations out with security: [], and finally set
// a root default requirement if none exists.
func NormalizeSecurity(doc map[string]any, api *config.APIConfig, auth config.AuthSettings) {
	ensureSecurityScheme(doc, api, auth)
	promoteAuthHeaders(doc)
	ensureDefaultSecurity(doc, api)
}

// ensureSecurityScheme adds the scheme matching auth_type without ever
// overwriting an existing definition.
func ensureSecurityScheme(doc map[string]any, api *config.APIConfig, auth config.AuthSettings) {
	schemes := ensureMap(ensureMap(doc, "components"), "securitySchemes")
	switch api.AuthType {
	case config.AuthTypeClientCredentials:
		if _, ok := schemes[SchemeClientCredentials]; !ok {
			schemes[SchemeClientCredentials] = map[string]any{
				"type": "oauth2",
				"flows": map[string]any{
					"clientCredentials": map[string]any{
						"tokenUrl": auth.ClientCredentials.TokenURL,
						"scopes":   map[string]any{},
					},
				},
			}
		}
	case config.AuthTypeMetalToken:
		if _, ok := schemes[SchemeMetalToken]; !ok {
			schemes[SchemeMetalToken] = map[string]any{
				"type": "apiKey",
				"in":   "header",
				"name": auth.MetalToken.HeaderName,
			}
		}
	}
}

// promoteAuthHeaders strips Authorization header parameters from operations.
// An operation that declared one inherits the document's root default
// security; an operation that never declared one and carries no security of
// its own gets security: [] as an explicit, auditable opt-out.
func promoteAuthHeaders(doc map[string]any) {
	components, _ := asMap(doc["components"])

	// Component parameters that are Authorization headers, keyed by name,
	// so $ref-based parameters are recognized too.
	authParamKeys := map[string]bool{}
	if params, ok := asMap(components["parameters"]); ok {
		for key, p := range params {
			if param, ok := asMap(p); ok && isAuthHeaderParam(param) {
				authParamKeys[key] = true
			}
		}
	}

	ensureBearerScheme(doc)

	paths, ok := asMap(doc["paths"])
	if !ok {
		return
	}
	for _, item := range paths {
		pathItem, ok := asMap(item)
		if !ok {
			continue
		}
		for method, o := range pathItem {
			if !httpMethods[strings.ToLower(method)] {
				continue
			}
			op, ok := asMap(o)
			if !ok {
				continue
			}
			normalizeOperationSecurity(op, authParamKeys)
		}
	}
}

func normalizeOperationSecurity(op map[string]any, authParamKeys map[string]bool) {
	params, _ := asSlice(op["parameters"])
	kept := make([]any, 0, len(params))
	foundAuth := false
	for _, p := range params {
		param, ok := asMap(p)
		if !ok {
			kept = append(kept, p)
			continue
		}
		if ref, ok := param["$ref"].(string); ok {
			if key, found := strings.CutPrefix(ref, "#/components/parameters/"); found && authParamKeys[key] {
				foundAuth = true
				continue
			}
		}
		if isAuthHeaderParam(param) {
			foundAuth = true
			continue
		}
		kept = append(kept, p)
	}

	if foundAuth {
		if len(kept) > 0 {
			op["parameters"] = kept
		} else {
			delete(op, "parameters")
		}
		return
	}
	if _, declared := op["security"]; !declared {
		op["security"] = []any{}
	}
}

// isAuthHeaderParam matches an Authorization header parameter,
// case-insensitively, accepting an optional Bearer x-prefix extension.
func isAuthHeaderParam(param map[string]any) bool {
	if param["in"] != "header" {
		return false
	}
	name, _ := param["name"].(string)
	if !strings.EqualFold(name, "authorization") {
		return false
	}
	xPrefix := param["x-prefix"]
	if xPrefix == nil {
		xPrefix = param["x_prefix"]
	}
	if xPrefix == nil {
		return true
	}
	prefix, ok := xPrefix.(string)
	return ok && strings.HasPrefix(strings.ToLower(strings.TrimSpace(prefix)), "bearer")
}

// ensureBearerScheme keeps specs that reference bearer auth valid after the
// Authorization parameters are stripped.
func ensureBearerScheme(doc map[string]any) {
	schemes := ensureMap(ensureMap(doc, "components"), "securitySchemes")
	for _, v := range schemes {
		if scheme, ok := asMap(v); ok &&
			scheme["type"] == "http" && scheme["scheme"] == "bearer" {
			return
		}
	}
	if _, ok := schemes[schemeBearerAuth]; !ok {
		schemes[schemeBearerAuth] = map[string]any{
			"type":         "http",
			"scheme":       "bearer",
			"bearerFormat": "JWT",
		}
	}
}

// ensureDefaultSecurity sets a single root requirement matching auth_type
// when the document has none.
func ensureDefaultSecurity(doc map[string]any, api *config.APIConfig) {
	if security, ok := asSlice(doc["security"]); ok && len(security) > 0 {
		return
	}
	switch api.AuthType {
	case config.AuthTypeClientCredentials:
		doc["security"] = []any{map[string]any{SchemeClientCredentials: []any{}}}
	case config.AuthTypeMetalToken:
		doc["security"] = []any{map[string]any{SchemeMetalToken: []any{}}}
	}
}
