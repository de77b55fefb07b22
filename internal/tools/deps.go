// Package tools provides the MCP tool handlers that drive an orchestrator.
package tools

import (
	"log/slog"

	"github.com/raphaelgruber/reqjourney-go/internal/service"
)

// Dependencies holds shared services for tool handlers. Handlers capture
// it by closure.
type Dependencies struct {
	Orchestrator *service.Orchestrator
	Logger       *slog.Logger
}

func (d *Dependencies) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
