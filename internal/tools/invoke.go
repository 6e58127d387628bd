package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AuthProvider resolves the auth headers for an API namespace.
type AuthProvider interface {
	AuthHeaders(ctx context.Context, namespace string) (map[string]string, error)
}

// Result is the tool invocation envelope returned to MCP clients.
type Result struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        any    `json:"body"`
}

// Invoker executes tools as HTTP requests against the API gateway.
type Invoker struct {
	client  *http.Client
	baseURL string
	auth    AuthProvider
	logger  *slog.Logger
}

func NewInvoker(baseURL string, auth AuthProvider, logger *slog.Logger) *Invoker {
	return &Invoker{
		client:  &http.Client{Timeout: 120 * time.Second},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		auth:    auth,
		logger:  logger,
	}
}

// Invoke validates args against the tool's input schema, builds the HTTP
// request from them, attaches the namespace's auth headers, and returns the
// response envelope. Non-2xx responses are returned as results, not errors:
// the caller decides how to surface an API-level failure.
func (inv *Invoker) Invoke(ctx context.Context, tool *Tool, args map[string]any) (*Result, error) {
	if err := tool.ValidateArgs(args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}

	req, err := inv.buildRequest(ctx, tool, args)
	if err != nil {
		return nil, err
	}

	headers, err := inv.auth.AuthHeaders(ctx, tool.Namespace)
	if err != nil {
		return nil, fmt.Errorf("resolve auth for %s: %w", tool.Namespace, err)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	start := time.Now()
	resp, err := inv.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", tool.OperationID, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response for %s: %w", tool.OperationID, err)
	}

	inv.logger.Info("tool invoked",
		"operation_id", tool.OperationID,
		"method", tool.Method,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	return &Result{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        decodeBody(data, resp.Header.Get("Content-Type")),
	}, nil
}

func (inv *Invoker) buildRequest(ctx context.Context, tool *Tool, args map[string]any) (*http.Request, error) {
	path := tool.Path
	query := url.Values{}
	headers := map[string]string{}

	for _, param := range tool.Parameters {
		name, _ := param["name"].(string)
		value, present := args[name]
		if name == "" || !present {
			continue
		}
		in, _ := param["in"].(string)
		switch in {
		case "path":
			path = strings.ReplaceAll(path, "{"+name+"}",
				url.PathEscape(stringify(value)))
		case "query":
			appendQuery(query, name, value)
		case "header":
			headers[name] = stringify(value)
		}
	}
	if strings.Contains(path, "{") {
		return nil, fmt.Errorf("%s: unresolved path parameters in %s", tool.OperationID, path)
	}

	var body io.Reader
	contentType := ""
	if raw, ok := args["body"]; ok && raw != nil {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	fullURL := inv.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, tool.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	return req, nil
}

// appendQuery flattens array values into repeated query parameters, the
// OpenAPI form/explode default.
func appendQuery(query url.Values, name string, value any) {
	if items, ok := value.([]any); ok {
		for _, item := range items {
			query.Add(name, stringify(item))
		}
		return
	}
	query.Add(name, stringify(value))
}

func stringify(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		// JSON numbers decode as float64; render integers without a
		// fractional part.
		if value == float64(int64(value)) {
			return fmt.Sprintf("%d", int64(value))
		}
		return fmt.Sprintf("%g", value)
	case bool:
		return fmt.Sprintf("%t", value)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}

// decodeBody parses JSON responses into structured data and returns anything
// else as a string.
func decodeBody(data []byte, contentType string) any {
	if len(data) == 0 {
		return nil
	}
	mediaType := contentType
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") || mediaType == "" {
		var parsed any
		if err := json.Unmarshal(data, &parsed); err == nil {
			return parsed
		}
	}
	return string(data)
}
