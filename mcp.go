package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const resourceScheme = "gateway://api/"

// Errors returned to MCP clients in place of upstream detail.
var (
	errResourceNotFound = errors.New("not found")
	errResourceInternal = errors.New("internal error")
)

// setupMCP exposes the GET endpoints as MCP resources and the POST
// endpoints as MCP tools. Endpoints that require headers stay HTTP only,
// since MCP requests carry none.
func (s *Server) setupMCP() {
	for _, api := range s.router.APIs(http.MethodGet) {
		if len(api.RequiredHeaders) > 0 {
			s.logger.Debug("Endpoint requires headers, not exposed over MCP", "api", api.Name)
			continue
		}
		res := s.newAPIResource(api)
		s.AddResource(res.Resource, res.Handler)
		s.logger.Info("Added resource endpoint", "name", api.Name, "uri", res.Resource.URI)
	}

	for _, api := range s.router.APIs(http.MethodPost) {
		if len(api.RequiredHeaders) > 0 {
			s.logger.Debug("Endpoint requires headers, not exposed over MCP", "api", api.Name)
			continue
		}
		tool := newAPITool(api, s.router, s.logger)
		s.AddTool(tool.Tool(), tool.Handler)
		s.logger.Info("Added tool endpoint", "name", api.Name)
	}

	s.mcpServer = server.NewMCPServer(
		s.config.Name, s.config.Version,
		server.WithResourceCapabilities(true, true),
		server.WithToolCapabilities(true),
		server.WithLogging(),
		server.WithHooks(newServerHooks(s.logger)),
	)

	s.mcpServer.AddTools(s.tools...)
	s.mcpServer.AddResources(s.resources...)
}

// AddTool adds a tool to the server.
func (s *Server) AddTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.tools = append(s.tools, server.ServerTool{
		Tool:    tool,
		Handler: handler,
	})
}

// AddResource adds a resource to the server.
func (s *Server) AddResource(resource mcp.Resource, handler server.ResourceHandlerFunc) {
	s.resources = append(s.resources, server.ServerResource{
		Resource: resource,
		Handler:  handler,
	})
}

func (s *Server) newAPIResource(api *ServerAPI) server.ServerResource {
	uri := resourceScheme + api.Name

	mimeType := "application/json"
	description := fmt.Sprintf("Canned response of /api/%s", api.Name)
	if api.IsData() {
		mimeType = api.ContentType
	} else if res, ok := s.gateway.Resource(api.Command); ok {
		mimeType = res.Model().MIME()
		description = fmt.Sprintf("Remote resource %q (%s) behind /api/%s", api.Command, res.Model(), api.Name)
	}

	return server.ServerResource{
		Resource: mcp.Resource{
			URI:         uri,
			Name:        api.Name,
			Description: description,
			MIMEType:    mimeType,
		},
		Handler: func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			if _, contentType, body, ok := api.ResolveAsData(); ok {
				return []mcp.ResourceContents{
					mcp.TextResourceContents{URI: uri, MIMEType: contentType, Text: string(body)},
				}, nil
			}

			result, err := s.router.Run(ctx, api, nil, nil)
			if err != nil {
				if errors.Is(err, ErrInternal) {
					s.logger.Error("Resource command is missing", "api", api.Name, "command", api.Command, "error", err)
					return nil, errResourceInternal
				}
				s.logger.Warn("Resource read failed", "api", api.Name, "command", api.Command, "error", err)
				return nil, errResourceNotFound
			}
			return []mcp.ResourceContents{resultContents(uri, result)}, nil
		},
	}
}

func resultContents(uri string, result *CachedResult) mcp.ResourceContents {
	if result.Model == ModelBytes {
		return mcp.BlobResourceContents{
			URI:      uri,
			MIMEType: result.Model.MIME(),
			Blob:     base64.StdEncoding.EncodeToString(result.Data),
		}
	}
	return mcp.TextResourceContents{
		URI:      uri,
		MIMEType: result.Model.MIME(),
		Text:     string(result.Data),
	}
}
