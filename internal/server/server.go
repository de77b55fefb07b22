// Package server runs the analysis tools as an MCP server over stdio.
package server

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const instructions = `Staged requirement analysis. Load an artifact with load_artifact, ` +
	`run the requirements stage, then userStories. Pick a system pair with set_systems ` +
	`before running fitGap. Only one stage runs at a time.`

// Server wraps the MCP server with its logger.
type Server struct {
	mcp    *mcp.Server
	logger *slog.Logger
}

// New creates an MCP server reporting version.
func New(version string, logger *slog.Logger) *Server {
	impl := &mcp.Implementation{
		Name:    "reqjourney",
		Version: version,
	}
	return &Server{
		mcp:    mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions}),
		logger: logger,
	}
}

// Run serves stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying server for tool registration.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Setup installs request logging.
func (s *Server) Setup() {
	s.mcp.AddReceivingMiddleware(LoggingMiddleware(s.logger))
}
