package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefsClosure(t *testing.T) {
	defs := map[string]any{
		"Order": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"items": map[string]any{
					"type":  "array",
					"items": map[string]any{"$ref": "#/$defs/LineItem"},
				},
			},
		},
		"LineItem": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"price": map[string]any{"$ref": "#/$defs/Money"},
			},
		},
		"Money": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"amount":   map[string]any{"type": "string"},
				"currency": map[string]any{"type": "string"},
			},
		},
		"Unrelated": map[string]any{"type": "boolean"},
	}
	root := map[string]any{
		"schema": map[string]any{"$ref": "#/$defs/Order"},
	}

	closure := DefsClosure(root, defs)
	assert.Len(t, closure, 3)
	assert.Contains(t, closure, "Order")
	assert.Contains(t, closure, "LineItem")
	assert.Contains(t, closure, "Money")
	assert.NotContains(t, closure, "Unrelated")
}

func TestDefsClosureCycle(t *testing.T) {
	defs := map[string]any{
		"Node": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"parent": map[string]any{"$ref": "#/$defs/Node"},
			},
		},
	}
	root := map[string]any{"$ref": "#/$defs/Node"}

	closure := DefsClosure(root, defs)
	assert.Len(t, closure, 1)
	assert.Contains(t, closure, "Node")
}

func TestDefsClosureDanglingRef(t *testing.T) {
	defs := map[string]any{
		"Known": map[string]any{
			"properties": map[string]any{
				"other": map[string]any{"$ref": "#/$defs/Missing"},
			},
		},
	}
	root := map[string]any{"$ref": "#/$defs/Known"}

	closure := DefsClosure(root, defs)
	assert.Len(t, closure, 1)
	assert.Contains(t, closure, "Known")
}

func TestDefsClosureEmptyRoot(t *testing.T) {
	closure := DefsClosure(map[string]any{"type": "string"}, map[string]any{
		"Unused": map[string]any{},
	})
	assert.Empty(t, closure)
}

func TestCollectDefsRefsIgnoresOtherRefForms(t *testing.T) {
	names := map[string]bool{}
	CollectDefsRefs(map[string]any{
		"a": map[string]any{"$ref": "#/components/schemas/Other"},
		"b": []any{map[string]any{"$ref": "#/$defs/Wanted"}},
	}, names)
	assert.Equal(t, map[string]bool{"Wanted": true}, names)
}
