package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
	"github.com/raphaelgruber/reqjourney-go/internal/service"
)

// RunStageInput defines the input schema for run_stage.
type RunStageInput struct {
	Stage string `json:"stage" jsonschema:"requirements, userStories or fitGap"`
	Wait  bool   `json:"wait,omitempty" jsonschema:"Block until the job finishes and return its results"`
}

// NewRunStageHandler starts a stage, optionally waiting for its result.
func NewRunStageHandler(deps *Dependencies) mcp.ToolHandlerFor[RunStageInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RunStageInput) (*mcp.CallToolResult, any, error) {
		stage, err := models.ParseStage(input.Stage)
		if err != nil {
			return ErrorResult(err.Error(), "Use requirements, userStories or fitGap"), nil, nil
		}

		o := deps.Orchestrator
		job, err := o.RunStage(ctx, stage)
		if err != nil {
			return stageErrorResult(err, o), nil, nil
		}
		if !input.Wait {
			return TextResult(fmt.Sprintf("Started %s job %s. Call get_job to follow it.", stage.Title(), job.ID)), nil, nil
		}

		select {
		case <-job.Done():
		case <-ctx.Done():
			return TextResult(fmt.Sprintf("Job %s is still running. Call get_job to follow it.", job.ID)), nil, nil
		}

		snap := job.Snapshot()
		if snap.Status == service.JobStatusFailed {
			return ErrorResult(fmt.Sprintf("%s failed: %s", stage.Title(), snap.Error), "Retry with run_stage"), nil, nil
		}
		if snap.Discarded {
			return TextResult(fmt.Sprintf("%s finished but its result was discarded because the inputs changed.", stage.Title())), nil, nil
		}
		result, ok := o.Result(stage)
		if !ok {
			return ErrorResult("result missing after successful job", ""), nil, nil
		}
		text, err := formatResult(result)
		if err != nil {
			return nil, nil, err
		}
		return TextResult(text), nil, nil
	}
}

// GetJobInput is empty; get_job takes no arguments.
type GetJobInput struct{}

// NewGetJobHandler reports the active job, or the last finished one.
func NewGetJobHandler(deps *Dependencies) mcp.ToolHandlerFor[GetJobInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, _ GetJobInput) (*mcp.CallToolResult, any, error) {
		o := deps.Orchestrator
		if job, ok := o.ActiveJob(); ok {
			return TextResult(formatJob(job.Snapshot())), nil, nil
		}
		if job, ok := o.LastJob(); ok {
			return TextResult(formatJob(job.Snapshot())), nil, nil
		}
		return TextResult("No jobs yet."), nil, nil
	}
}

// GetResultsInput defines the input schema for get_results.
type GetResultsInput struct {
	Stage string `json:"stage" jsonschema:"requirements, userStories or fitGap"`
}

// NewGetResultsHandler returns the cached result for a stage as JSON.
func NewGetResultsHandler(deps *Dependencies) mcp.ToolHandlerFor[GetResultsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GetResultsInput) (*mcp.CallToolResult, any, error) {
		stage, err := models.ParseStage(input.Stage)
		if err != nil {
			return ErrorResult(err.Error(), "Use requirements, userStories or fitGap"), nil, nil
		}
		result, ok := deps.Orchestrator.Result(stage)
		if !ok {
			return ErrorResult("no "+string(stage)+" result", "Run the stage with run_stage first"), nil, nil
		}
		text, err := formatResult(result)
		if err != nil {
			return nil, nil, err
		}
		return TextResult(text), nil, nil
	}
}

func formatJob(s service.JobSnapshot) string {
	text := fmt.Sprintf("Job %s: %s %s (%d%%)", s.ID, s.Stage.Title(), s.Status, s.Progress)
	switch {
	case s.Error != "":
		text += fmt.Sprintf("\nError (%s): %s", s.ErrorKind, s.Error)
	case s.Discarded:
		text += "\nResult discarded: the artifact or system pair changed while it ran."
	case s.Status == service.JobStatusSucceeded:
		text += fmt.Sprintf("\n%d entries in %s", s.Entries, s.Duration.Round(time.Millisecond))
	}
	return text
}

func formatResult(r models.Result) (string, error) {
	data, err := json.MarshalIndent(models.EncodeResult(r), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}
