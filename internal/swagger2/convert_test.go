package swagger2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopkg.in/yaml.v3"
)

func decode(t *testing.T, doc string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(doc), &out))
	return out
}

const minimalSwagger = `
swagger: "2.0"
info:
  title: Widgets
  version: "1.0"
host: api.example.com
basePath: /v1
schemes: [https]
consumes: [application/json]
produces: [application/json]
paths:
  /widgets:
    get:
      operationId: listWidgets
      responses:
        "200":
          description: ok
          schema:
            $ref: "#/definitions/Widget"
    post:
      operationId: createWidget
      parameters:
        - name: body
          in: body
          required: true
          schema:
            $ref: "#/definitions/Widget"
      responses:
        "201":
          description: created
definitions:
  Widget:
    type: object
    properties:
      id:
        type: string
`

func TestConvertServers(t *testing.T) {
	out, err := Convert(decode(t, minimalSwagger))
	require.NoError(t, err)

	assert.Equal(t, "3.0.0", out["openapi"])
	assert.NotContains(t, out, "swagger")
	assert.NotContains(t, out, "host")
	assert.NotContains(t, out, "basePath")
	assert.NotContains(t, out, "schemes")

	servers := out["servers"].([]any)
	require.Len(t, servers, 1)
	assert.Equal(t, "https://api.example.com/v1", servers[0].(map[string]any)["url"])
}

func TestConvertServersDefaultScheme(t *testing.T) {
	out, err := Convert(decode(t, "swagger: \"2.0\"\nhost: api.example.com\n"))
	require.NoError(t, err)
	servers := out["servers"].([]any)
	assert.Equal(t, "https://api.example.com", servers[0].(map[string]any)["url"])
}

func TestConvertDoesNotMutateInput(t *testing.T) {
	in := decode(t, minimalSwagger)
	_, err := Convert(in)
	require.NoError(t, err)
	assert.Equal(t, "2.0", in["swagger"])
	assert.Contains(t, in, "definitions")
	assert.NotContains(t, in, "components")
}

func TestConvertBodyParameterRoundTrip(t *testing.T) {
	out, err := Convert(decode(t, minimalSwagger))
	require.NoError(t, err)

	// Definitions relocated with content preserved.
	components := out["components"].(map[string]any)
	schemas := components["schemas"].(map[string]any)
	widget := schemas["Widget"].(map[string]any)
	props := widget["properties"].(map[string]any)
	assert.Equal(t, "string", props["id"].(map[string]any)["type"])

	// Body parameter became a requestBody, refs rewritten.
	paths := out["paths"].(map[string]any)
	post := paths["/widgets"].(map[string]any)["post"].(map[string]any)
	require.NotContains(t, post, "parameters")
	body := post["requestBody"].(map[string]any)
	assert.Equal(t, true, body["required"])
	schema := body["content"].(map[string]any)["application/json"].(map[string]any)["schema"].(map[string]any)
	assert.Equal(t, "#/components/schemas/Widget", schema["$ref"])

	// Response schema moved under content with the ref rewritten.
	get := paths["/widgets"].(map[string]any)["get"].(map[string]any)
	resp := get["responses"].(map[string]any)["200"].(map[string]any)
	require.NotContains(t, resp, "schema")
	respSchema := resp["content"].(map[string]any)["application/json"].(map[string]any)["schema"].(map[string]any)
	assert.Equal(t, "#/components/schemas/Widget", respSchema["$ref"])
}

func TestConvertQueryParameter(t *testing.T) {
	out, err := Convert(decode(t, `
swagger: "2.0"
paths:
  /widgets:
    get:
      operationId: listWidgets
      parameters:
        - name: limit
          in: query
          type: integer
          format: int32
      responses:
        "200":
          description: ok
`))
	require.NoError(t, err)

	get := out["paths"].(map[string]any)["/widgets"].(map[string]any)["get"].(map[string]any)
	params := get["parameters"].([]any)
	require.Len(t, params, 1)
	param := params[0].(map[string]any)
	assert.NotContains(t, param, "type")
	schema := param["schema"].(map[string]any)
	assert.Equal(t, "integer", schema["type"])
	assert.Equal(t, "int32", schema["format"])
}

func TestConvertFormData(t *testing.T) {
	out, err := Convert(decode(t, `
swagger: "2.0"
paths:
  /upload:
    post:
      operationId: upload
      parameters:
        - name: file
          in: formData
          type: file
          required: true
        - name: label
          in: formData
          type: string
      responses:
        "200":
          description: ok
`))
	require.NoError(t, err)

	post := out["paths"].(map[string]any)["/upload"].(map[string]any)["post"].(map[string]any)
	content := post["requestBody"].(map[string]any)["content"].(map[string]any)
	entry, ok := content["multipart/form-data"].(map[string]any)
	require.True(t, ok, "file parameter should force multipart")
	schema := entry["schema"].(map[string]any)
	props := schema["properties"].(map[string]any)
	file := props["file"].(map[string]any)
	assert.Equal(t, "string", file["type"])
	assert.Equal(t, "binary", file["format"])
	assert.Contains(t, props, "label")
	assert.Equal(t, []any{"file"}, schema["required"])
}

func TestConvertSecurityDefinitions(t *testing.T) {
	out, err := Convert(decode(t, `
swagger: "2.0"
securityDefinitions:
  basicAuth:
    type: basic
  oauth:
    type: oauth2
    flow: application
    tokenUrl: https://example.com/token
    scopes:
      read: read access
  apiKey:
    type: apiKey
    in: header
    name: X-Auth-Token
`))
	require.NoError(t, err)

	schemes := out["components"].(map[string]any)["securitySchemes"].(map[string]any)

	basic := schemes["basicAuth"].(map[string]any)
	assert.Equal(t, "http", basic["type"])
	assert.Equal(t, "basic", basic["scheme"])

	oauth := schemes["oauth"].(map[string]any)
	flows := oauth["flows"].(map[string]any)
	cc := flows["clientCredentials"].(map[string]any)
	assert.Equal(t, "https://example.com/token", cc["tokenUrl"])
	assert.Equal(t, "read access", cc["scopes"].(map[string]any)["read"])
	assert.NotContains(t, oauth, "flow")

	apiKey := schemes["apiKey"].(map[string]any)
	assert.Equal(t, "apiKey", apiKey["type"])
	assert.Equal(t, "X-Auth-Token", apiKey["name"])

	// No top-level security in the source: every scheme becomes an
	// alternative requirement.
	security := out["security"].([]any)
	require.Len(t, security, 3)
	names := map[string]bool{}
	for _, req := range security {
		for name := range req.(map[string]any) {
			names[name] = true
		}
	}
	assert.True(t, names["basicAuth"] && names["oauth"] && names["apiKey"])
}

func TestConvertKeepsExplicitSecurity(t *testing.T) {
	out, err := Convert(decode(t, `
swagger: "2.0"
security:
  - apiKey: []
securityDefinitions:
  apiKey:
    type: apiKey
    in: header
    name: X-Auth-Token
  other:
    type: basic
`))
	require.NoError(t, err)

	security := out["security"].([]any)
	require.Len(t, security, 1)
	assert.Contains(t, security[0].(map[string]any), "apiKey")
}

func TestSchemaFixups(t *testing.T) {
	out, err := Convert(decode(t, `
swagger: "2.0"
definitions:
  Pet:
    type: object
    discriminator: petType
    properties:
      doc:
        type: file
        allowEmptyValue: true
      note:
        type: "null"
      name:
        type: string
        x-nullable: true
      tags:
        type: array
        items:
          type: file
`))
	require.NoError(t, err)

	pet := out["components"].(map[string]any)["schemas"].(map[string]any)["Pet"].(map[string]any)
	assert.Equal(t, map[string]any{"propertyName": "petType"}, pet["discriminator"])

	props := pet["properties"].(map[string]any)
	doc := props["doc"].(map[string]any)
	assert.Equal(t, "string", doc["type"])
	assert.Equal(t, "binary", doc["format"])
	assert.NotContains(t, doc, "allowEmptyValue")

	note := props["note"].(map[string]any)
	assert.NotContains(t, note, "type")
	assert.Equal(t, true, note["nullable"])

	name := props["name"].(map[string]any)
	assert.Equal(t, true, name["nullable"])
	assert.NotContains(t, name, "x-nullable")

	items := props["tags"].(map[string]any)["items"].(map[string]any)
	assert.Equal(t, "binary", items["format"])
}

func TestRefRewriteForms(t *testing.T) {
	assert.Equal(t, "#/components/schemas/X", rewriteRef("#/definitions/X"))
	assert.Equal(t, "#/components/parameters/X", rewriteRef("#/parameters/X"))
	assert.Equal(t, "#/components/responses/X", rewriteRef("#/responses/X"))
	assert.Equal(t, "#/components/schemas/X", rewriteRef("#/components/schemas/X"))
	assert.Equal(t, "https://example.com/x.yaml#/definitions/X", rewriteRef("https://example.com/x.yaml#/definitions/X"))
}
