// Package tools turns the merged OpenAPI document into callable MCP tools:
// one tool per operation, with a JSON Schema input contract derived from the
// operation's parameters and request body.
package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/equinix-labs/equinix-docs-mcp-server/internal/spec"
)

var httpMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"patch": true, "head": true, "options": true, "trace": true,
}

// Descriptor is everything needed to list and invoke one operation as a tool.
type Descriptor struct {
	OperationID string
	Namespace   string
	ServiceName string
	Method      string
	Path        string
	Summary     string

	// Parameters are the operation's resolved parameter objects.
	Parameters []map[string]any
	// RequestBody is the operation's requestBody object, nil when absent.
	RequestBody map[string]any

	// InputSchema is the tool's argument contract: one property per
	// parameter plus "body" when a request body exists, with the $defs
	// closure of every referenced schema attached.
	InputSchema map[string]any
	// OutputSchema describes the success response payload, nil when the
	// operation declares none.
	OutputSchema map[string]any
}

// Tool pairs a descriptor with its compiled argument validator. The validator
// is best effort: schemas the compiler rejects leave it nil and arguments
// pass through unvalidated.
type Tool struct {
	Descriptor
	validator *jsonschema.Schema
}

// ValidateArgs checks call arguments against the input schema.
func (t *Tool) ValidateArgs(args map[string]any) error {
	if t.validator == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := t.validator.Validate(anyify(args)); err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", t.OperationID, err)
	}
	return nil
}

// Registry holds the tool set built from one merged document.
type Registry struct {
	tools  map[string]*Tool
	logger *slog.Logger
}

// NewRegistry walks the merged document and registers a tool for every
// operation carrying an operationId. Operations without one cannot be
// addressed and are skipped with a warning.
func NewRegistry(doc map[string]any, logger *slog.Logger) (*Registry, error) {
	paths, ok := doc["paths"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("merged document has no paths")
	}
	defs, _ := doc["$defs"].(map[string]any)
	components, _ := doc["components"].(map[string]any)
	componentParams, _ := components["parameters"].(map[string]any)

	r := &Registry{tools: map[string]*Tool{}, logger: logger}
	for path, item := range paths {
		pathItem, ok := item.(map[string]any)
		if !ok {
			continue
		}
		pathParams := resolveParameters(parameterList(pathItem["parameters"]), componentParams, logger)
		for method, o := range pathItem {
			if !httpMethods[strings.ToLower(method)] {
				continue
			}
			op, ok := o.(map[string]any)
			if !ok {
				continue
			}
			id, ok := op["operationId"].(string)
			if !ok || id == "" {
				logger.Warn("operation without operationId skipped",
					"path", path, "method", method)
				continue
			}
			if _, exists := r.tools[id]; exists {
				logger.Warn("duplicate operationId, keeping first", "operation_id", id)
				continue
			}
			r.tools[id] = buildTool(id, method, path, op, pathParams, componentParams, defs, logger)
		}
	}
	if len(r.tools) == 0 {
		return nil, fmt.Errorf("merged document has no addressable operations")
	}
	logger.Info("tool registry built", "tools", len(r.tools))
	return r, nil
}

// Get looks a tool up by operationId.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns all tools sorted by operationId.
func (r *Registry) Tools() []*Tool {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name])
	}
	return out
}

func (r *Registry) Len() int { return len(r.tools) }

func buildTool(id, method, path string, op map[string]any,
	pathParams []map[string]any, componentParams, defs map[string]any,
	logger *slog.Logger) *Tool {

	params := append(append([]map[string]any{}, pathParams...),
		resolveParameters(parameterList(op["parameters"]), componentParams, logger)...)
	body, _ := op["requestBody"].(map[string]any)
	summary, _ := op["summary"].(string)
	if summary == "" {
		summary, _ = op["description"].(string)
	}

	d := Descriptor{
		OperationID: id,
		Namespace:   namespaceOf(id),
		Method:      strings.ToUpper(method),
		Path:        path,
		Summary:     summary,
		Parameters:  params,
		RequestBody: body,
	}
	if tags, ok := op["tags"].([]any); ok && len(tags) > 0 {
		if s, ok := tags[len(tags)-1].(string); ok {
			d.ServiceName = s
		}
	}
	d.InputSchema = buildInputSchema(params, body, defs)
	d.OutputSchema = buildOutputSchema(op, defs)

	tool := &Tool{Descriptor: d}
	tool.validator = compileValidator(id, d.InputSchema, logger)
	return tool
}

// namespaceOf extracts the namespace prefix from a prefixed operationId.
func namespaceOf(operationID string) string {
	namespace, _, ok := strings.Cut(operationID, "_")
	if !ok {
		return operationID
	}
	return namespace
}

// buildInputSchema flattens parameters into top-level properties and exposes
// the request body under "body". The $defs closure reachable from any
// property is attached so the schema is self-contained.
func buildInputSchema(params []map[string]any, body map[string]any, defs map[string]any) map[string]any {
	properties := map[string]any{}
	var required []any

	for _, param := range params {
		name, _ := param["name"].(string)
		if name == "" {
			continue
		}
		schema, ok := param["schema"].(map[string]any)
		if !ok {
			schema = map[string]any{}
		}
		prop := map[string]any{}
		for k, v := range schema {
			prop[k] = v
		}
		if desc, ok := param["description"].(string); ok && prop["description"] == nil {
			prop["description"] = desc
		}
		properties[name] = prop
		if r, ok := param["required"].(bool); ok && r {
			required = append(required, name)
		}
	}

	if body != nil {
		if schema := requestBodySchema(body); schema != nil {
			properties["body"] = schema
			if r, ok := body["required"].(bool); ok && r {
				required = append(required, "body")
			}
		}
	}

	input := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		sort.Slice(required, func(i, j int) bool {
			return required[i].(string) < required[j].(string)
		})
		input["required"] = required
	}
	attachDefsClosure(input, defs)
	return input
}

func buildOutputSchema(op map[string]any, defs map[string]any) map[string]any {
	responses, ok := op["responses"].(map[string]any)
	if !ok {
		return nil
	}
	for _, code := range []string{"200", "201", "202", "default"} {
		response, ok := responses[code].(map[string]any)
		if !ok {
			continue
		}
		schema := contentSchema(response["content"])
		if schema == nil {
			continue
		}
		out := map[string]any{}
		for k, v := range schema {
			out[k] = v
		}
		attachDefsClosure(out, defs)
		return out
	}
	return nil
}

func requestBodySchema(body map[string]any) map[string]any {
	return contentSchema(body["content"])
}

// contentSchema picks the schema of the JSON media type, falling back to the
// first media type present.
func contentSchema(v any) map[string]any {
	content, ok := v.(map[string]any)
	if !ok || len(content) == 0 {
		return nil
	}
	mediaTypes := make([]string, 0, len(content))
	for mt := range content {
		mediaTypes = append(mediaTypes, mt)
	}
	sort.Strings(mediaTypes)
	chosen := mediaTypes[0]
	for _, mt := range mediaTypes {
		if mt == "application/json" || strings.HasSuffix(mt, "+json") {
			chosen = mt
			break
		}
	}
	media, ok := content[chosen].(map[string]any)
	if !ok {
		return nil
	}
	schema, _ := media["schema"].(map[string]any)
	return schema
}

// attachDefsClosure embeds the transitive $defs closure the schema needs.
func attachDefsClosure(schema map[string]any, defs map[string]any) {
	if len(defs) == 0 {
		return
	}
	closure := spec.DefsClosure(schema, defs)
	if len(closure) > 0 {
		schema["$defs"] = closure
	}
}

func compileValidator(id string, schema map[string]any, logger *slog.Logger) *jsonschema.Schema {
	raw, err := json.Marshal(schema)
	if err != nil {
		logger.Warn("input schema not encodable, skipping validator",
			"operation_id", id, "error", err)
		return nil
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("input.json", bytes.NewReader(raw)); err != nil {
		logger.Warn("input schema rejected, skipping validator",
			"operation_id", id, "error", err)
		return nil
	}
	compiled, err := compiler.Compile("input.json")
	if err != nil {
		logger.Warn("input schema failed to compile, skipping validator",
			"operation_id", id, "error", err)
		return nil
	}
	return compiled
}

// resolveParameters replaces #/components/parameters/ refs with their
// targets. Unresolvable refs are dropped; ref integrity was already enforced
// during the merge, so in practice this only guards hand-edited documents.
func resolveParameters(params []map[string]any, componentParams map[string]any,
	logger *slog.Logger) []map[string]any {

	out := make([]map[string]any, 0, len(params))
	for _, param := range params {
		ref, ok := param["$ref"].(string)
		if !ok {
			out = append(out, param)
			continue
		}
		name, found := strings.CutPrefix(ref, "#/components/parameters/")
		if !found {
			logger.Warn("unresolvable parameter ref dropped", "ref", ref)
			continue
		}
		resolved, ok := componentParams[name].(map[string]any)
		if !ok {
			logger.Warn("unresolvable parameter ref dropped", "ref", ref)
			continue
		}
		out = append(out, resolved)
	}
	return out
}

func parameterList(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if param, ok := item.(map[string]any); ok {
			out = append(out, param)
		}
	}
	return out
}

// anyify round-trips a value through JSON so the validator sees the types it
// expects (float64 numbers, no custom map types).
func anyify(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
