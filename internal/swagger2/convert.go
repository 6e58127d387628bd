// Package swagger2 converts Swagger 2.0 documents to OpenAPI 3.0.
//
// The conversion covers the fields exercised by the vendor specs this server
// ingests: servers synthesis, component relocation, security definition flows,
// body/formData parameters, response content, schema fixups, and internal
// $ref rewriting. It is not a general-purpose converter.
package swagger2

import (
	"fmt"
	"strings"

	"github.com/mohae/deepcopy"
)

var operationMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

// IsSwagger2 reports whether the decoded document declares swagger 2.0.
func IsSwagger2(doc map[string]any) bool {
	v, _ := doc["swagger"].(string)
	return v == "2.0"
}

// Convert converts a Swagger 2.0 document to OpenAPI 3.0. The input is never
// mutated; conversion operates on a deep copy.
func Convert(swagger map[string]any) (map[string]any, error) {
	if swagger == nil {
		return nil, fmt.Errorf("swagger2: nil document")
	}
	out, ok := deepcopy.Copy(swagger).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("swagger2: document copy failed")
	}

	out["openapi"] = "3.0.0"
	delete(out, "swagger")

	convertServers(swagger, out)

	if _, ok := out["info"]; !ok {
		out["info"] = map[string]any{"title": "Converted API", "version": "1.0.0"}
	}

	components := ensureMap(out, "components")
	for _, componentType := range []string{"parameters", "responses"} {
		if v, ok := out[componentType]; ok {
			components[componentType] = v
			delete(out, componentType)
		}
	}
	if v, ok := out["definitions"]; ok {
		components["schemas"] = v
		delete(out, "definitions")
	}
	if v, ok := out["securityDefinitions"]; ok {
		if secdefs, ok := v.(map[string]any); ok {
			components["securitySchemes"] = convertSecurityDefinitions(secdefs)
		}
		delete(out, "securityDefinitions")
	}

	promoteDefaultSecurity(swagger, out)

	if schemas, ok := asMap(components["schemas"]); ok {
		for _, schema := range schemas {
			if s, ok := asMap(schema); ok {
				fixUpSchema(s)
			}
		}
	}

	if paths, ok := asMap(out["paths"]); ok {
		for _, pathItem := range paths {
			item, ok := asMap(pathItem)
			if !ok {
				continue
			}
			for method, op := range item {
				if !operationMethods[strings.ToLower(method)] {
					continue
				}
				if operation, ok := asMap(op); ok {
					convertOperation(operation, out)
				}
			}
		}
	}

	// The per-operation pass creates new structures (requestBody, content)
	// that carry refs, so the ref rewrite must run last.
	fixupRefs(out)

	delete(out, "consumes")
	delete(out, "produces")

	return out, nil
}

func convertServers(swagger, out map[string]any) {
	scheme := "https"
	if schemes, ok := asSlice(swagger["schemes"]); ok && len(schemes) > 0 {
		if s, ok := schemes[0].(string); ok && s != "" {
			scheme = s
		}
	}
	if host, ok := swagger["host"].(string); ok && host != "" {
		url := scheme + "://" + host
		if basePath, ok := swagger["basePath"].(string); ok {
			url += basePath
		}
		out["servers"] = []any{map[string]any{"url": url}}
	}
	delete(out, "host")
	delete(out, "basePath")
	delete(out, "schemes")
}

// promoteDefaultSecurity keeps top-level security as-is when present.
// Otherwise every declared scheme becomes a requirement alternative, so auth
// applies by default; the security normalizer corrects this per operation.
func promoteDefaultSecurity(swagger, out map[string]any) {
	if _, ok := swagger["security"]; ok {
		return
	}
	components, _ := asMap(out["components"])
	schemes, ok := asMap(components["securitySchemes"])
	if !ok || len(schemes) == 0 {
		return
	}
	requirements := make([]any, 0, len(schemes))
	for _, name := range sortedKeys(schemes) {
		requirements = append(requirements, map[string]any{name: []any{}})
	}
	out["security"] = requirements
}

func convertSecurityDefinitions(secdefs map[string]any) map[string]any {
	for _, v := range secdefs {
		scheme, ok := asMap(v)
		if !ok {
			continue
		}
		switch scheme["type"] {
		case "basic":
			scheme["type"] = "http"
			scheme["scheme"] = "basic"
		case "oauth2":
			flow, _ := scheme["flow"].(string)
			delete(scheme, "flow")
			flows := map[string]any{}
			switch flow {
			case "implicit":
				flows["implicit"] = map[string]any{
					"authorizationUrl": pop(scheme, "authorizationUrl"),
					"scopes":           popScopes(scheme),
				}
			case "password":
				flows["password"] = map[string]any{
					"tokenUrl": pop(scheme, "tokenUrl"),
					"scopes":   popScopes(scheme),
				}
			case "application":
				flows["clientCredentials"] = map[string]any{
					"tokenUrl": pop(scheme, "tokenUrl"),
					"scopes":   popScopes(scheme),
				}
			case "accessCode":
				flows["authorizationCode"] = map[string]any{
					"authorizationUrl": pop(scheme, "authorizationUrl"),
					"tokenUrl":         pop(scheme, "tokenUrl"),
					"scopes":           popScopes(scheme),
				}
			}
			scheme["flows"] = flows
		case "apiKey":
			// name and in carry over unchanged
		}
	}
	return secdefs
}

func convertOperation(op, doc map[string]any) {
	consumes := stringSlice(op["consumes"], doc["consumes"])
	produces := stringSlice(op["produces"], doc["produces"])
	if len(consumes) == 0 {
		consumes = []string{"application/json"}
	}
	if len(produces) == 0 {
		produces = []string{"application/json"}
	}
	delete(op, "consumes")
	delete(op, "produces")

	if params, ok := asSlice(op["parameters"]); ok {
		var bodyParam map[string]any
		var formDataParams []map[string]any
		remaining := make([]any, 0, len(params))
		for _, p := range params {
			param, ok := asMap(p)
			if !ok {
				remaining = append(remaining, p)
				continue
			}
			switch param["in"] {
			case "body":
				if bodyParam == nil {
					bodyParam = param
				}
			case "formData":
				formDataParams = append(formDataParams, param)
			default:
				remaining = append(remaining, convertParameter(param))
			}
		}

		if bodyParam != nil {
			content := map[string]any{}
			for _, contentType := range consumes {
				schema := bodyParam["schema"]
				if schema == nil {
					schema = map[string]any{}
				}
				content[contentType] = map[string]any{"schema": schema}
			}
			requestBody := map[string]any{"content": content}
			if desc, ok := bodyParam["description"].(string); ok && desc != "" {
				requestBody["description"] = desc
			}
			if required, ok := bodyParam["required"].(bool); ok && required {
				requestBody["required"] = true
			}
			op["requestBody"] = requestBody
		}

		if len(formDataParams) > 0 {
			convertFormData(op, formDataParams)
		}

		if len(remaining) > 0 {
			op["parameters"] = remaining
		} else {
			delete(op, "parameters")
		}
	}

	if responses, ok := asMap(op["responses"]); ok {
		for _, r := range responses {
			response, ok := asMap(r)
			if !ok {
				continue
			}
			if schema, ok := response["schema"]; ok {
				delete(response, "schema")
				content := map[string]any{}
				for _, contentType := range produces {
					content[contentType] = map[string]any{"schema": schema}
				}
				response["content"] = content
			}
			if headers, ok := asMap(response["headers"]); ok {
				for _, h := range headers {
					header, ok := asMap(h)
					if !ok {
						continue
					}
					if t, ok := header["type"]; ok {
						schema := map[string]any{"type": t}
						delete(header, "type")
						if f, ok := header["format"]; ok {
							schema["format"] = f
							delete(header, "format")
						}
						header["schema"] = schema
					}
				}
			}
		}
	}
}

// convertFormData collects formData parameters into a single requestBody
// object schema. Any file parameter makes the body multipart.
func convertFormData(op map[string]any, params []map[string]any) {
	contentType := "application/x-www-form-urlencoded"
	for _, param := range params {
		if param["type"] == "file" {
			contentType = "multipart/form-data"
			break
		}
	}

	requestBody, ok := asMap(op["requestBody"])
	if !ok {
		requestBody = map[string]any{"content": map[string]any{}}
		op["requestBody"] = requestBody
	}
	content := ensureMap(requestBody, "content")
	entry, ok := asMap(content[contentType])
	if !ok {
		entry = map[string]any{"schema": map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}}
		content[contentType] = entry
	}
	schema, _ := asMap(entry["schema"])
	properties := ensureMap(schema, "properties")

	var required []any
	if existing, ok := asSlice(schema["required"]); ok {
		required = existing
	}
	for _, param := range params {
		name, _ := param["name"].(string)
		if name == "" {
			continue
		}
		prop := map[string]any{}
		for k, v := range param {
			if k == "name" || k == "in" || k == "required" {
				continue
			}
			prop[k] = v
		}
		if param["type"] == "file" {
			prop["type"] = "string"
			prop["format"] = "binary"
		}
		properties[name] = prop
		if r, ok := param["required"].(bool); ok && r {
			required = append(required, name)
		}
	}
	if len(required) > 0 {
		schema["required"] = required
	}
}

// convertParameter moves bare schema keywords on a parameter into a schema
// object, as OAS3 requires.
func convertParameter(param map[string]any) map[string]any {
	if _, hasSchema := param["schema"]; hasSchema {
		return param
	}
	if _, hasType := param["type"]; !hasType {
		return param
	}
	schema := map[string]any{}
	for _, key := range []string{
		"type", "format", "items", "default", "maximum", "exclusiveMaximum",
		"minimum", "exclusiveMinimum", "maxLength", "minLength", "pattern",
		"maxItems", "minItems", "uniqueItems", "enum", "multipleOf",
		"collectionFormat",
	} {
		if v, ok := param[key]; ok {
			schema[key] = v
			delete(param, key)
		}
	}
	param["schema"] = schema
	return param
}

// fixUpSchema applies OAS3 fixups to a schema and every subschema reachable
// via items, properties, allOf, anyOf, oneOf, and not.
func fixUpSchema(schema map[string]any) {
	walkSchema(schema, fixUpSubSchema)
}

func walkSchema(schema map[string]any, fn func(map[string]any)) {
	fn(schema)
	if items, ok := asMap(schema["items"]); ok {
		walkSchema(items, fn)
	}
	if properties, ok := asMap(schema["properties"]); ok {
		for _, p := range properties {
			if prop, ok := asMap(p); ok {
				walkSchema(prop, fn)
			}
		}
	}
	for _, key := range []string{"allOf", "anyOf", "oneOf"} {
		if subs, ok := asSlice(schema[key]); ok {
			for _, s := range subs {
				if sub, ok := asMap(s); ok {
					walkSchema(sub, fn)
				}
			}
		}
	}
	if not, ok := asMap(schema["not"]); ok {
		walkSchema(not, fn)
	}
}

func fixUpSubSchema(schema map[string]any) {
	if d, ok := schema["discriminator"].(string); ok {
		schema["discriminator"] = map[string]any{"propertyName": d}
	}
	if schema["type"] == "file" {
		schema["type"] = "string"
		schema["format"] = "binary"
	}
	delete(schema, "allowEmptyValue")
	if schema["type"] == "null" {
		delete(schema, "type")
		schema["nullable"] = true
	}
	if v, ok := schema["x-nullable"]; ok {
		schema["nullable"] = v
		delete(schema, "x-nullable")
	}
}

func rewriteRef(ref string) string {
	switch {
	case strings.HasPrefix(ref, "#/definitions/"):
		return "#/components/schemas/" + strings.TrimPrefix(ref, "#/definitions/")
	case strings.HasPrefix(ref, "#/parameters/"):
		return "#/components/parameters/" + strings.TrimPrefix(ref, "#/parameters/")
	case strings.HasPrefix(ref, "#/responses/"):
		return "#/components/responses/" + strings.TrimPrefix(ref, "#/responses/")
	}
	return ref
}

// fixupRefs rewrites every $ref in the document to its OAS3 location.
func fixupRefs(obj any) {
	switch v := obj.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok {
			v["$ref"] = rewriteRef(ref)
		}
		for _, value := range v {
			fixupRefs(value)
		}
	case []any:
		for _, item := range v {
			fixupRefs(item)
		}
	}
}
