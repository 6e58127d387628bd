// Package mcp serves the tool registry over MCP's JSON-RPC 2.0 stdio
// transport.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/equinix-labs/equinix-docs-mcp-server/internal/tools"
)

const protocolVersion = "2025-06-18"

// Invoker executes a tool call against the upstream API.
type Invoker interface {
	Invoke(ctx context.Context, tool *tools.Tool, args map[string]any) (*tools.Result, error)
}

type Server struct {
	registry *tools.Registry
	invoker  Invoker
	logger   *slog.Logger

	name    string
	version string
}

func NewServer(registry *tools.Registry, invoker Invoker, logger *slog.Logger) *Server {
	return &Server{
		registry: registry,
		invoker:  invoker,
		logger:   logger,
		name:     "equinix-docs-mcp-server",
		version:  "0.1.0",
	}
}

// Serve reads newline-delimited JSON-RPC requests until EOF or context
// cancellation.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	dec := json.NewDecoder(in)
	enc := json.NewEncoder(out)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var req rpcRequest
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		resp := s.handleRequest(ctx, &req)
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req *rpcRequest) *rpcResponse {
	if req.Jsonrpc != "2.0" {
		return rpcErrorResponse(req.ID, -32600, "invalid jsonrpc version", nil)
	}
	if len(req.ID) == 0 || string(req.ID) == "null" {
		// Notification; no response.
		return nil
	}

	switch req.Method {
	case "initialize":
		return rpcSuccess(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{"list": true, "call": true},
			},
			"serverInfo": map[string]any{
				"name":    s.name,
				"version": s.version,
			},
		})
	case "tools/list":
		return s.handleListTools(req.ID)
	case "tools/call":
		return s.handleCallTool(ctx, req.ID, req.Params)
	case "ping":
		return rpcSuccess(req.ID, map[string]any{})
	default:
		return rpcErrorResponse(req.ID, -32601, "method not found", nil)
	}
}

func (s *Server) handleListTools(id json.RawMessage) *rpcResponse {
	all := s.registry.Tools()
	result := make([]map[string]any, 0, len(all))
	for _, tool := range all {
		entry := map[string]any{
			"name":        tool.OperationID,
			"description": toolDescription(tool),
			"inputSchema": tool.InputSchema,
		}
		if tool.OutputSchema != nil {
			entry["outputSchema"] = tool.OutputSchema
		}
		result = append(result, entry)
	}
	return rpcSuccess(id, map[string]any{"tools": result})
}

func toolDescription(tool *tools.Tool) string {
	desc := tool.Summary
	if desc == "" {
		desc = tool.Method + " " + tool.Path
	}
	if tool.ServiceName != "" {
		desc = "[" + tool.ServiceName + "] " + desc
	}
	return desc
}

func (s *Server) handleCallTool(ctx context.Context, id, params json.RawMessage) *rpcResponse {
	var payload toolCallParams
	if err := json.Unmarshal(params, &payload); err != nil {
		return rpcErrorResponse(id, -32602, "invalid params", nil)
	}
	if payload.Name == "" {
		return rpcErrorResponse(id, -32602, "missing tool name", nil)
	}
	tool, ok := s.registry.Get(payload.Name)
	if !ok {
		return rpcErrorResponse(id, -32601, "unknown tool", nil)
	}

	result, err := s.invoker.Invoke(ctx, tool, payload.Arguments)
	if err != nil {
		s.logger.Error("tool call failed", "tool", payload.Name, "error", err)
		return rpcErrorResponse(id, -32000, err.Error(), nil)
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return rpcErrorResponse(id, -32000, "failed to encode tool response", nil)
	}
	return rpcSuccess(id, map[string]any{
		"content": []map[string]any{{"type": "text", "text": string(encoded)}},
		"isError": result.Status >= 400,
	})
}

// RPC types

type rpcRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func rpcSuccess(id json.RawMessage, result any) *rpcResponse {
	return &rpcResponse{
		Jsonrpc: "2.0",
		ID:      id,
		Result:  result,
	}
}

func rpcErrorResponse(id json.RawMessage, code int, message string, data any) *rpcResponse {
	return &rpcResponse{
		Jsonrpc: "2.0",
		ID:      id,
		Error: &rpcError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}
