package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

const systemPrompt = `You are a requirements analyst and solution architect specializing in enterprise system migrations.
Analyze ONLY the provided material. Do not invent requirements or make assumptions beyond what is explicitly stated.
Respond with a single JSON object and nothing else.`

const requirementsPrompt = `**Input Type:** %s

Extract every business requirement found in the material below.
Give each requirement an id (REQ-001, REQ-002, ...), a one-sentence description,
a priority (High, Medium or Low) and its source location using the bracketed
part labels when present (for example "BRD p.12").

Return:
{"requirements": [{"id": "REQ-001", "description": "...", "priority": "High", "source": "BRD p.12"}]}

Material:
%s`

const userStoriesPrompt = `Convert each requirement below into exactly one user story of the form
"As a [role], I want [goal] so that [benefit]".
Give each story an id (US-001, US-002, ...), a priority (High, Medium or Low) and
set "related" to the id of the requirement it was derived from. Use only these requirement ids.

Return:
{"userStories": [{"id": "US-001", "story": "As a ...", "priority": "High", "related": "REQ-001"}]}

Requirements:
%s`

const fitGapPrompt = `Assess how well each requirement below is met when migrating from %s to %s.
For each requirement give:
- "fit": Yes (standard functionality), Partial (needs configuration or customization) or No (gap)
- "gap": a short description of what is missing or needed
- "effort": Low, Medium or High
Use only these requirement ids and include every one of them.

Return:
{"fitGap": [{"requirement": "REQ-001", "fit": "Partial", "gap": "...", "effort": "Medium"}]}

Requirements:
%s`

const mediaMaterial = "The attached %s recording is the material. Base the analysis only on what is said or shown in it."

// buildPrompt renders the user prompt for req. material is the decoded
// document text, or empty when the artifact is attached as media.
func buildPrompt(req Request, material string) (string, error) {
	switch req.Stage {
	case models.StageRequirements:
		if material == "" {
			material = fmt.Sprintf(mediaMaterial, strings.ToLower(string(req.Artifact.InputType)))
		}
		return fmt.Sprintf(requirementsPrompt, req.Artifact.InputType.Describe(), material), nil

	case models.StageUserStories:
		reqs, err := requirementsJSON(req.Requirements)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(userStoriesPrompt, reqs), nil

	case models.StageFitGap:
		reqs, err := requirementsJSON(req.Requirements)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(fitGapPrompt, req.Pair.Source, req.Pair.Destination, reqs), nil
	}
	return "", fmt.Errorf("unknown stage: %s", req.Stage)
}

func requirementsJSON(r *models.RequirementsResult) (string, error) {
	data, err := json.MarshalIndent(r.Requirements, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode requirements: %w", err)
	}
	return string(data), nil
}

// expectedOutputBytes is a rough size of a complete answer, used to
// scale streamed progress.
func expectedOutputBytes(req Request) int {
	const perEntry = 220
	if req.Requirements != nil && req.Requirements.Len() > 0 {
		return perEntry * req.Requirements.Len()
	}
	return perEntry * 8
}
