package tools

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
	"github.com/raphaelgruber/reqjourney-go/internal/service"
)

// LoadArtifactInput defines the input schema for load_artifact.
type LoadArtifactInput struct {
	Path      string `json:"path,omitempty" jsonschema:"Absolute path of the file to analyze"`
	InputType string `json:"input_type,omitempty" jsonschema:"BRD (default), Audio or Video"`
}

// NewLoadArtifactHandler selects a local file as the artifact. Selecting a
// new file discards every cached result.
func NewLoadArtifactHandler(deps *Dependencies) mcp.ToolHandlerFor[LoadArtifactInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input LoadArtifactInput) (*mcp.CallToolResult, any, error) {
		if input.Path == "" {
			return ErrorResult("path is required", "Pass the absolute path of a BRD, recording or transcript"), nil, nil
		}
		inputType := models.InputBRD
		if input.InputType != "" {
			var err error
			if inputType, err = models.ParseInputType(input.InputType); err != nil {
				return ErrorResult(err.Error(), "Use BRD, Audio or Video"), nil, nil
			}
		}

		data, err := os.ReadFile(input.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return ErrorResult("file not found: "+input.Path, "Check the path and try again"), nil, nil
			}
			return ErrorResult("failed to read file: "+err.Error(), ""), nil, nil
		}

		o := deps.Orchestrator
		a := models.NewArtifact(input.Path, inputType, data)
		contextID := o.SetArtifact(a)
		deps.logger().Info("artifact loaded", "artifact", a.Name, "input_type", inputType, "context_id", contextID)

		var invalid *service.InvalidArtifactError
		if err := o.ValidateArtifact(); errors.As(err, &invalid) {
			return ErrorResult(fmt.Sprintf("loaded %s but it cannot be analyzed: %v", a.Name, err), acceptedHint(o)), nil, nil
		}
		return TextResult(fmt.Sprintf("Loaded %s (%s, %.1f MB). Context %s. Next: run_stage requirements.",
			a.Name, inputType, a.SizeMB(), contextID)), nil, nil
	}
}
