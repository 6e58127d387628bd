package spec

import (
	"fmt"
	"sort"
	"strings"
)

// RefIntegrityError reports $ref pointers that do not resolve within the
// document. A dangling ref reaching a consumer makes the whole tool unusable,
// so a namespace that fails this check is dropped from the merge rather than
// shipped broken.
type RefIntegrityError struct {
	Namespace string
	Refs      []string
}

func (e *RefIntegrityError) Error() string {
	return fmt.Sprintf("namespace %s: unresolvable refs: %s",
		e.Namespace, strings.Join(e.Refs, ", "))
}

// CheckRefIntegrity verifies that every local $ref in the document resolves
// to an existing node. External (non-fragment) refs are not checked.
func CheckRefIntegrity(namespace string, doc map[string]any) error {
	dangling := map[string]struct{}{}
	collectDanglingRefs(doc, doc, dangling)
	if len(dangling) == 0 {
		return nil
	}
	refs := make([]string, 0, len(dangling))
	for ref := range dangling {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return &RefIntegrityError{Namespace: namespace, Refs: refs}
}

func collectDanglingRefs(node any, root map[string]any, dangling map[string]struct{}) {
	switch v := node.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok && strings.HasPrefix(ref, "#/") {
			if !resolvePointer(root, ref) {
				dangling[ref] = struct{}{}
			}
		}
		for _, value := range v {
			collectDanglingRefs(value, root, dangling)
		}
	case []any:
		for _, item := range v {
			collectDanglingRefs(item, root, dangling)
		}
	}
}

// resolvePointer reports whether a "#/a/b/c" fragment resolves in the
// document, applying JSON Pointer token unescaping (~1 -> /, ~0 -> ~).
func resolvePointer(root map[string]any, ref string) bool {
	var current any = root
	for _, token := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		token = strings.ReplaceAll(token, "~1", "/")
		token = strings.ReplaceAll(token, "~0", "~")
		node, ok := asMap(current)
		if !ok {
			return false
		}
		current, ok = node[token]
		if !ok {
			return false
		}
	}
	return true
}
