package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

// SetSystemsInput defines the input schema for set_systems.
type SetSystemsInput struct {
	Source      string `json:"source" jsonschema:"Current system, e.g. Oracle ERP"`
	Destination string `json:"destination" jsonschema:"Target system, e.g. D365 F&O"`
}

// NewSetSystemsHandler selects the fit-gap system pair.
func NewSetSystemsHandler(deps *Dependencies) mcp.ToolHandlerFor[SetSystemsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SetSystemsInput) (*mcp.CallToolResult, any, error) {
		o := deps.Orchestrator
		if err := o.SetSystemPair(models.SystemPair{Source: input.Source, Destination: input.Destination}); err != nil {
			return ErrorResult(err.Error(), systemsHint(o.Catalog())), nil, nil
		}
		pair, _ := o.SystemPair()
		return TextResult(fmt.Sprintf("System pair set: %s", pair)), nil, nil
	}
}

// ListSystemsInput is empty; list_systems takes no arguments.
type ListSystemsInput struct{}

// NewListSystemsHandler lists the catalog and the selected pair.
func NewListSystemsHandler(deps *Dependencies) mcp.ToolHandlerFor[ListSystemsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, _ ListSystemsInput) (*mcp.CallToolResult, any, error) {
		o := deps.Orchestrator
		lines := o.Catalog().Systems()
		if pair, ok := o.SystemPair(); ok {
			lines = append(lines, "", "Selected: "+pair.String())
		}
		return TextResult(FormatResults(lines)), nil, nil
	}
}
