package spec

import (
	"net/url"
	"strings"
)

// ExtractBasePath derives the path component of servers[0].url, with any
// trailing slash stripped. Vendor specs whose server URL already encodes a
// version segment (e.g. /fabric/v4) get their paths normalized from it.
func ExtractBasePath(doc map[string]any) string {
	servers, ok := asSlice(doc["servers"])
	if !ok || len(servers) == 0 {
		return ""
	}
	server, ok := asMap(servers[0])
	if !ok {
		return ""
	}
	serverURL, _ := server["url"].(string)
	if serverURL == "" {
		return ""
	}
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(parsed.Path, "/")
}

// PrependBasePath rewrites every paths key to start with basePath.
func PrependBasePath(doc map[string]any, basePath string) {
	if basePath == "" {
		return
	}
	paths, ok := asMap(doc["paths"])
	if !ok {
		return
	}
	rewritten := make(map[string]any, len(paths))
	for path, item := range paths {
		rewritten[basePath+path] = item
	}
	doc["paths"] = rewritten
}

// foldSource merges a later source into the namespace base document. Path
// entries overwrite on collision; components and $defs deep-merge.
func foldSource(base, src map[string]any) {
	if srcPaths, ok := asMap(src["paths"]); ok {
		basePaths := ensureMap(base, "paths")
		for path, item := range srcPaths {
			basePaths[path] = item
		}
	}
	if srcComponents, ok := asMap(src["components"]); ok {
		DeepMerge(ensureMap(base, "components"), srcComponents)
	}
	if srcDefs, ok := asMap(src["$defs"]); ok {
		DeepMerge(ensureMap(base, "$defs"), srcDefs)
	}
}

// tagOperations prefixes every operationId with the namespace key and tags
// the operation with the namespace's service name. Prefixed ids are globally
// unique because namespace keys are.
func tagOperations(doc map[string]any, namespace, serviceName string) {
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
			if id, ok := op["operationId"].(string); ok {
				op["operationId"] = namespace + "_" + id
			}
			if serviceName != "" {
				tagOperation(op, serviceName)
			}
		}
	}
}

func tagOperation(op map[string]any, tag string) {
	tags, ok := asSlice(op["tags"])
	if !ok {
		op["tags"] = []any{tag}
		return
	}
	for _, t := range tags {
		if t == tag {
			return
		}
	}
	op["tags"] = append(tags, tag)
}
