package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

// cleanJSON strips markdown code fences and any prose around the outermost
// JSON object that models tend to add.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.IndexAny(s, "{[")
	end := strings.LastIndexAny(s, "}]")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

// Raw shapes accepted from model output. Enum fields are strings so that
// casing variants can be normalized.
type rawRequirement struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Source      string `json:"source"`
}

type rawStory struct {
	ID       string `json:"id"`
	Story    string `json:"story"`
	Priority string `json:"priority"`
	Related  string `json:"related"`
}

type rawEntry struct {
	Requirement string `json:"requirement"`
	Fit         string `json:"fit"`
	Gap         string `json:"gap"`
	Effort      string `json:"effort"`
}

type rawOutput struct {
	Requirements []rawRequirement `json:"requirements"`
	UserStories  []rawStory       `json:"userStories"`
	FitGap       []rawEntry       `json:"fitGap"`
}

// ParseResult decodes model output for stage into a typed result.
func ParseResult(stage models.Stage, text string, pair models.SystemPair) (models.Result, error) {
	cleaned := cleanJSON(text)
	var out rawOutput
	if strings.HasPrefix(cleaned, "[") {
		if err := parseBareArray(stage, cleaned, &out); err != nil {
			return nil, err
		}
	} else if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("%w: decode model output: %v", models.ErrInvalidResult, err)
	}

	switch stage {
	case models.StageRequirements:
		reqs := make([]models.Requirement, 0, len(out.Requirements))
		for i, r := range out.Requirements {
			p, err := models.ParsePriority(r.Priority)
			if err != nil {
				p = models.PriorityMedium
			}
			id := strings.TrimSpace(r.ID)
			if id == "" {
				id = fmt.Sprintf("REQ-%03d", i+1)
			}
			reqs = append(reqs, models.Requirement{ID: id, Description: strings.TrimSpace(r.Description), Priority: p, Source: r.Source})
		}
		return &models.RequirementsResult{Requirements: reqs}, nil

	case models.StageUserStories:
		stories := make([]models.UserStory, 0, len(out.UserStories))
		for i, s := range out.UserStories {
			p, err := models.ParsePriority(s.Priority)
			if err != nil {
				p = models.PriorityMedium
			}
			id := strings.TrimSpace(s.ID)
			if id == "" {
				id = fmt.Sprintf("US-%03d", i+1)
			}
			stories = append(stories, models.UserStory{ID: id, Story: strings.TrimSpace(s.Story), Priority: p, Related: strings.TrimSpace(s.Related)})
		}
		return &models.UserStoriesResult{Stories: stories}, nil

	case models.StageFitGap:
		entries := make([]models.FitGapEntry, 0, len(out.FitGap))
		for _, e := range out.FitGap {
			fit, err := models.ParseFit(e.Fit)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", models.ErrInvalidResult, err)
			}
			effort, err := models.ParseEffort(e.Effort)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", models.ErrInvalidResult, err)
			}
			entries = append(entries, models.FitGapEntry{
				Requirement: strings.TrimSpace(e.Requirement),
				Source:      pair.Source,
				Destination: pair.Destination,
				Fit:         fit,
				Gap:         strings.TrimSpace(e.Gap),
				Effort:      effort,
			})
		}
		return &models.FitGapResult{Pair: pair, Entries: entries}, nil
	}
	return nil, fmt.Errorf("%w: unknown stage %q", models.ErrInvalidResult, stage)
}

func parseBareArray(stage models.Stage, s string, out *rawOutput) error {
	var err error
	switch stage {
	case models.StageRequirements:
		err = json.Unmarshal([]byte(s), &out.Requirements)
	case models.StageUserStories:
		err = json.Unmarshal([]byte(s), &out.UserStories)
	case models.StageFitGap:
		err = json.Unmarshal([]byte(s), &out.FitGap)
	}
	if err != nil {
		return fmt.Errorf("%w: decode model output: %v", models.ErrInvalidResult, err)
	}
	return nil
}
