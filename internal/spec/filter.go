package spec

import (
	"regexp"
	"strings"
)

// FilterPaths applies include/exclude operationId filters: with include
// patterns an operation must match at least one; an operation matching any
// exclude pattern is dropped. Patterns are evaluated against the original
// operationId, before namespace prefixing, so filter authors write them
// against the vendor's ids. Path entries left without operations are
// removed entirely.
func FilterPaths(paths map[string]any, include, exclude []*regexp.Regexp) map[string]any {
	if len(include) == 0 && len(exclude) == 0 {
		return paths
	}

	filtered := make(map[string]any, len(paths))
	for path, item := range paths {
		pathItem, ok := asMap(item)
		if !ok {
			continue
		}
		keptItem := map[string]any{}
		for method, o := range pathItem {
			op, ok := asMap(o)
			if !ok || !httpMethods[strings.ToLower(method)] {
				keptItem[method] = o
				continue
			}
			id, ok := op["operationId"].(string)
			if !ok {
				keptItem[method] = o
				continue
			}
			if keepOperation(id, include, exclude) {
				keptItem[method] = o
			}
		}
		if hasOperations(keptItem) {
			filtered[path] = keptItem
		}
	}
	return filtered
}

func keepOperation(id string, include, exclude []*regexp.Regexp) bool {
	if len(include) > 0 {
		included := false
		for _, re := range include {
			if re.MatchString(id) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, re := range exclude {
		if re.MatchString(id) {
			return false
		}
	}
	return true
}

func hasOperations(pathItem map[string]any) bool {
	for method := range pathItem {
		if httpMethods[strings.ToLower(method)] {
			return true
		}
	}
	return false
}
