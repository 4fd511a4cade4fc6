// Package mcpadapter exposes the resolver over MCP stdio, so local
// agents and ops tooling can drive it without the HTTP surface.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/teamply/intent-resolver/internal/core/ports"
)

// New builds an MCP server with the resolve_intent and session_stats
// tools registered.
func New(resolver ports.IntentResolver, sessions ports.SessionStore, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"intent-resolver",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	resolve := &resolveTool{resolver: resolver}
	s.AddTool(resolve.definition(), resolve.handle)

	stats := &statsTool{sessions: sessions}
	s.AddTool(stats.definition(), stats.handle)

	return s
}

type resolveTool struct {
	resolver ports.IntentResolver
}

func (t *resolveTool) definition() mcp.Tool {
	return mcp.NewTool("resolve_intent",
		mcp.WithDescription(
			"Resolve a free-text chat message into a structured intent "+
				"(action, parameters, message) for the given user.",
		),
		mcp.WithNumber("user_id",
			mcp.Required(),
			mcp.Description("Numeric user identifier owning the conversation"),
		),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The chat message to interpret"),
		),
	)
}

func (t *resolveTool) handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetInt("user_id", 0)
	if userID <= 0 {
		return mcp.NewToolResultError("'user_id' must be a positive integer"), nil
	}
	message := req.GetString("message", "")
	if message == "" {
		return mcp.NewToolResultError("'message' is required"), nil
	}

	result, err := t.resolver.Resolve(ctx, int64(userID), message)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resolve failed: %v", err)), nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

type statsTool struct {
	sessions ports.SessionStore
}

func (t *statsTool) definition() mcp.Tool {
	return mcp.NewTool("session_stats",
		mcp.WithDescription("Report live conversation-context counts and timestamps."),
	)
}

func (t *statsTool) handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.sessions.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode stats: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}
