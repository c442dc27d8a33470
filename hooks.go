package gateway

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func newServerHooks(logger *slog.Logger) *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddBeforeAny(func(ctx context.Context, id any, method mcp.MCPMethod, message any) {
		logger.Debug("MCP request", "method", method, "id", id)
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		logger.Warn("MCP request failed", "method", method, "id", id, "error", err)
	})

	hooks.AddAfterInitialize(func(ctx context.Context, id any, message *mcp.InitializeRequest, result *mcp.InitializeResult) {
		logger.Info("MCP client connected",
			"client", message.Params.ClientInfo.Name,
			"client_version", message.Params.ClientInfo.Version,
			"protocol", result.ProtocolVersion,
		)
	})

	hooks.AddAfterReadResource(func(ctx context.Context, id any, message *mcp.ReadResourceRequest, result *mcp.ReadResourceResult) {
		logger.Debug("MCP resource read", "uri", message.Params.URI, "contents", len(result.Contents))
	})

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, message *mcp.CallToolRequest) {
		logger.Debug("MCP tool call", "tool", message.Params.Name, "id", id)
	})

	return hooks
}
