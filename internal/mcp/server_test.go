package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equinix-labs/equinix-docs-mcp-server/internal/logging"
	"github.com/equinix-labs/equinix-docs-mcp-server/internal/tools"
)

type fakeInvoker struct {
	result *tools.Result
	err    error
	called string
	args   map[string]any
}

func (f *fakeInvoker) Invoke(ctx context.Context, tool *tools.Tool, args map[string]any) (*tools.Result, error) {
	f.called = tool.OperationID
	f.args = args
	return f.result, f.err
}

func testServer(t *testing.T, invoker *fakeInvoker) *Server {
	t.Helper()
	doc := map[string]any{
		"paths": map[string]any{
			"/metal/v1/devices": map[string]any{
				"get": map[string]any{
					"operationId": "metal_findDevices",
					"summary":     "List devices",
					"tags":        []any{"Equinix Metal"},
					"responses": map[string]any{
						"200": map[string]any{"description": "ok"},
					},
				},
			},
		},
	}
	registry, err := tools.NewRegistry(doc, logging.Discard())
	require.NoError(t, err)
	return NewServer(registry, invoker, logging.Discard())
}

// roundTrip feeds newline-delimited requests through Serve and decodes the
// responses.
func roundTrip(t *testing.T, s *Server, requests ...string) []map[string]any {
	t.Helper()
	in := strings.NewReader(strings.Join(requests, "\n"))
	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), in, &out))

	var responses []map[string]any
	dec := json.NewDecoder(&out)
	for dec.More() {
		var resp map[string]any
		require.NoError(t, dec.Decode(&resp))
		responses = append(responses, resp)
	}
	return responses
}

func TestInitialize(t *testing.T) {
	s := testServer(t, &fakeInvoker{})
	responses := roundTrip(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)

	require.Len(t, responses, 1)
	result := responses[0]["result"].(map[string]any)
	assert.Equal(t, protocolVersion, result["protocolVersion"])
	info := result["serverInfo"].(map[string]any)
	assert.Equal(t, "equinix-docs-mcp-server", info["name"])
}

func TestToolsList(t *testing.T) {
	s := testServer(t, &fakeInvoker{})
	responses := roundTrip(t, s,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)

	require.Len(t, responses, 1)
	result := responses[0]["result"].(map[string]any)
	list := result["tools"].([]any)
	require.Len(t, list, 1)
	entry := list[0].(map[string]any)
	assert.Equal(t, "metal_findDevices", entry["name"])
	assert.Equal(t, "[Equinix Metal] List devices", entry["description"])
	assert.Contains(t, entry, "inputSchema")
}

func TestToolsCall(t *testing.T) {
	invoker := &fakeInvoker{result: &tools.Result{
		Status:      200,
		ContentType: "application/json",
		Body:        map[string]any{"devices": []any{}},
	}}
	s := testServer(t, invoker)
	responses := roundTrip(t, s,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"metal_findDevices","arguments":{}}}`)

	require.Len(t, responses, 1)
	assert.Equal(t, "metal_findDevices", invoker.called)
	result := responses[0]["result"].(map[string]any)
	assert.Equal(t, false, result["isError"])

	content := result["content"].([]any)[0].(map[string]any)
	var envelope map[string]any
	require.NoError(t, json.Unmarshal([]byte(content["text"].(string)), &envelope))
	assert.Equal(t, float64(200), envelope["status"])
	assert.Equal(t, "application/json", envelope["content_type"])
}

func TestToolsCallAPIErrorIsFlagged(t *testing.T) {
	invoker := &fakeInvoker{result: &tools.Result{Status: 404}}
	s := testServer(t, invoker)
	responses := roundTrip(t, s,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"metal_findDevices"}}`)

	result := responses[0]["result"].(map[string]any)
	assert.Equal(t, true, result["isError"])
}

func TestToolsCallUnknownTool(t *testing.T) {
	s := testServer(t, &fakeInvoker{})
	responses := roundTrip(t, s,
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"nope"}}`)

	rpcErr := responses[0]["error"].(map[string]any)
	assert.Equal(t, float64(-32601), rpcErr["code"])
}

func TestToolsCallInvokerError(t *testing.T) {
	invoker := &fakeInvoker{err: assert.AnError}
	s := testServer(t, invoker)
	responses := roundTrip(t, s,
		`{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"metal_findDevices"}}`)

	rpcErr := responses[0]["error"].(map[string]any)
	assert.Equal(t, float64(-32000), rpcErr["code"])
}

func TestNotificationGetsNoResponse(t *testing.T) {
	s := testServer(t, &fakeInvoker{})
	responses := roundTrip(t, s,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":7,"method":"ping"}`)

	require.Len(t, responses, 1)
	assert.Equal(t, float64(7), responses[0]["id"])
}

func TestUnknownMethod(t *testing.T) {
	s := testServer(t, &fakeInvoker{})
	responses := roundTrip(t, s,
		`{"jsonrpc":"2.0","id":8,"method":"resources/list"}`)

	rpcErr := responses[0]["error"].(map[string]any)
	assert.Equal(t, float64(-32601), rpcErr["code"])
}

func TestInvalidJSONRPCVersion(t *testing.T) {
	s := testServer(t, &fakeInvoker{})
	responses := roundTrip(t, s,
		`{"jsonrpc":"1.0","id":9,"method":"ping"}`)

	rpcErr := responses[0]["error"].(map[string]any)
	assert.Equal(t, float64(-32600), rpcErr["code"])
}
