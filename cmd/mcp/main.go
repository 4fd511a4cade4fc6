// MCP entry point: exposes resolve_intent and session_stats over stdio
// so local agents and ops tooling can drive the resolver directly.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/teamply/intent-resolver/internal/adapters/mcp"
	"github.com/teamply/intent-resolver/internal/bootstrap"
	"github.com/teamply/intent-resolver/internal/config"
)

var version = "dev"

func main() {
	cfg := config.Load()

	app, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	s := mcpadapter.New(app.ResolveUC, app.Sessions, version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "mcp server error: %v\n", err)
		os.Exit(1)
	}
}
