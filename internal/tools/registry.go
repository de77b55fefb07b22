package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers every tool with server. Called after server
// creation and before Run.
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "load_artifact",
		Description: "Select a local BRD, meeting recording or transcript as the artifact to analyze. Replaces any previous artifact and its results.",
	}, NewLoadArtifactHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_systems",
		Description: "Choose the source and destination systems used by the fitGap stage",
	}, NewSetSystemsHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_systems",
		Description: "List the systems a fit-gap pair may be drawn from",
	}, NewListSystemsHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_stage",
		Description: "Run an analysis stage: requirements, then userStories; fitGap also needs set_systems",
	}, NewRunStageHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_job",
		Description: "Show the running job's progress, or how the last job ended",
	}, NewGetJobHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_results",
		Description: "Return the cached result of a stage as JSON",
	}, NewGetResultsHandler(deps))
}
