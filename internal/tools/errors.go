package tools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
	"github.com/raphaelgruber/reqjourney-go/internal/service"
)

// ErrorResult creates a tool error result with optional recovery hint,
// formatted as "{msg}. {hint}". IsError lets the model see the failure and
// correct its next call.
func ErrorResult(msg, hint string) *mcp.CallToolResult {
	text := msg
	if hint != "" {
		text = msg + ". " + hint
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// TextResult creates a success result with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// FormatResults joins items with newlines for list output.
func FormatResults(items []string) string {
	return strings.Join(items, "\n")
}

// stageErrorResult explains a refused RunStage and what to call next.
func stageErrorResult(err error, o *service.Orchestrator) *mcp.CallToolResult {
	var (
		invalid *service.InvalidArtifactError
		dep     *service.DependencyMissingError
	)
	switch {
	case errors.Is(err, service.ErrNoArtifact):
		return ErrorResult(err.Error(), "Call load_artifact first")
	case errors.Is(err, service.ErrAlreadyRunning):
		return ErrorResult(err.Error(), "Call get_job until it finishes, then retry")
	case errors.As(err, &invalid):
		return ErrorResult(err.Error(), acceptedHint(o))
	case errors.As(err, &dep):
		var steps []string
		for _, m := range dep.Missing {
			if m == "systemPair" {
				steps = append(steps, "call set_systems")
			} else {
				steps = append(steps, "run the "+m+" stage")
			}
		}
		return ErrorResult(err.Error(), "First "+strings.Join(steps, " and "))
	}
	return ErrorResult(err.Error(), "")
}

func acceptedHint(o *service.Orchestrator) string {
	a := o.Artifact()
	if a == nil {
		return ""
	}
	rule, ok := o.Validator().Rule(a.InputType)
	if !ok {
		return "Input type must be BRD, Audio or Video"
	}
	hint := fmt.Sprintf("%s accepts %s", a.InputType, strings.Join(rule.Extensions, ", "))
	if rule.MaxBytes > 0 {
		hint += fmt.Sprintf(" up to %d MB", rule.MaxBytes/(1024*1024))
	}
	return hint
}

func systemsHint(c *models.Catalog) string {
	return "Available systems: " + strings.Join(c.Systems(), ", ")
}
