package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
	"github.com/kirillkom/interview-rag-assistant/internal/core/ports"
)

const (
	serverName    = "interview-rag-assistant"
	serverVersion = "1.0.0"
)

// NewServer exposes every registry tool over MCP with the same descriptors the chat model sees.
func NewServer(runner ports.ToolRunner, logger *slog.Logger) *server.MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions("Interview scheduling tools and document search over ingested candidate material."),
		server.WithRecovery(),
	)

	for _, descriptor := range runner.Descriptors() {
		s.AddTool(toolFromDescriptor(descriptor), toolHandler(runner, descriptor.Name, logger))
	}
	return s
}

// Handler serves the MCP server over streamable HTTP.
func Handler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s)
}

func toolFromDescriptor(d domain.ToolDescriptor) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(d.Description)}
	for _, p := range d.Parameters {
		propertyOpts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			propertyOpts = append(propertyOpts, mcp.Required())
		}
		opts = append(opts, mcp.WithString(p.Name, propertyOpts...))
	}
	return mcp.NewTool(d.Name, opts...)
}

func toolHandler(runner ports.ToolRunner, name string, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		call, err := runner.Parse(name, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := runner.Execute(ctx, call)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", name, err)), nil
		}
		logger.Info("mcp_tool_call", "tool", name, "status", result.Status)

		body, err := json.Marshal(result.Document())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode %s result: %v", name, err)), nil
		}
		if result.Status == domain.ToolStatusError {
			return mcp.NewToolResultError(string(body)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}
