package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
)

// apiTool runs a POST endpoint on behalf of an MCP client.
type apiTool struct {
	api    *ServerAPI
	router *Router
	logger *slog.Logger
}

func newAPITool(api *ServerAPI, router *Router, logger *slog.Logger) *apiTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &apiTool{api: api, router: router, logger: logger}
}

func (t *apiTool) Description() string {
	if t.api.IsData() {
		return fmt.Sprintf("Returns the configured response of POST /api/%s", t.api.Name)
	}
	return fmt.Sprintf("Posts a body to remote resource %q through POST /api/%s", t.api.Command, t.api.Name)
}

// Tool creates and returns the MCP tool configuration
func (t *apiTool) Tool() mcp.Tool {
	return mcp.NewTool(
		t.api.Name,
		mcp.WithDescription(t.Description()),
		mcp.WithString("body", mcp.Description("Request body sent upstream")),
	)
}

// Handler returns the tool's execution handler
func (t *apiTool) Handler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, _, body, ok := t.api.ResolveAsData(); ok {
		return mcp.NewToolResultText(string(body)), nil
	}

	var body []byte
	if s, ok := req.GetArguments()["body"].(string); ok {
		body = []byte(s)
	}
	if len(body) > maxPostBody {
		return mcp.NewToolResultError("body exceeds 1 MiB"), nil
	}

	result, err := t.router.Run(ctx, t.api, nil, body)
	if err != nil {
		if errors.Is(err, ErrInternal) {
			t.logger.Error("Tool command resource is missing", "tool", t.api.Name, "command", t.api.Command, "error", err)
			return mcp.NewToolResultError("internal error"), nil
		}
		t.logger.Warn("Tool command failed", "tool", t.api.Name, "command", t.api.Command, "error", err)
		return mcp.NewToolResultError("not found"), nil
	}
	if !utf8.Valid(result.Data) {
		return mcp.NewToolResultError(fmt.Sprintf("%s returned %d bytes of binary data", t.api.Command, len(result.Data))), nil
	}
	return mcp.NewToolResultText(string(result.Data)), nil
}
