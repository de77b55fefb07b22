package extraction

import (
	"context"
	"strings"
	"time"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

// DemoClient returns canned analysis data after a simulated delay. It is
// useful without model credentials and as the fixture for end-to-end tests.
type DemoClient struct {
	// Steps is how many progress events precede the result.
	Steps int
	// Interval is the delay between progress events.
	Interval time.Duration
	// Fail, when set, is returned as the terminal error.
	Fail error
}

func NewDemoClient() *DemoClient {
	return &DemoClient{Steps: 6, Interval: progressInterval}
}

func (c *DemoClient) Submit(ctx context.Context, req Request) (<-chan Event, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)

		step := progressCap / max(c.Steps, 1)
		for i := 1; i <= c.Steps; i++ {
			if c.Interval > 0 {
				select {
				case <-time.After(c.Interval):
				case <-ctx.Done():
					send(ctx, out, Event{Err: ctx.Err()})
					return
				}
			}
			if !send(ctx, out, Event{Progress: min(i*step, progressCap)}) {
				return
			}
		}

		if c.Fail != nil {
			send(ctx, out, Event{Err: c.Fail})
			return
		}
		send(ctx, out, Event{Result: DemoResult(req)})
	}()
	return out, nil
}

var demoRequirements = []models.Requirement{
	{ID: "REQ-001", Description: "System must support multi-currency transactions", Priority: models.PriorityHigh, Source: "BRD p.12"},
	{ID: "REQ-002", Description: "Approval workflows for purchases above $10,000", Priority: models.PriorityMedium, Source: "BRD p.15"},
	{ID: "REQ-003", Description: "Integration with existing payment gateway", Priority: models.PriorityHigh, Source: "BRD p.8"},
	{ID: "REQ-004", Description: "Role-based access control for financial reports", Priority: models.PriorityMedium, Source: "BRD p.23"},
	{ID: "REQ-005", Description: "Support for tax calculations across multiple jurisdictions", Priority: models.PriorityHigh, Source: "BRD p.17"},
}

var demoStories = map[string]models.UserStory{
	"REQ-001": {ID: "US-001", Story: "As a Finance Manager, I want to process transactions in multiple currencies so that I can support our global operations", Priority: models.PriorityHigh},
	"REQ-002": {ID: "US-002", Story: "As a Department Head, I want approval workflows for large purchases so that I can maintain budget control", Priority: models.PriorityMedium},
	"REQ-003": {ID: "US-003", Story: "As a Customer, I want to use my existing payment methods so that I don't have to update my payment information", Priority: models.PriorityHigh},
	"REQ-004": {ID: "US-004", Story: "As a CFO, I want role-based access to financial reports so that sensitive information is protected", Priority: models.PriorityMedium},
	"REQ-005": {ID: "US-005", Story: "As a Tax Accountant, I want automated tax calculations for multiple regions so that I can ensure compliance", Priority: models.PriorityHigh},
}

var demoFitGap = map[string]struct {
	fit    models.Fit
	gap    string
	effort models.Effort
}{
	"REQ-001": {models.FitPartial, "Currency conversion logic needs customization", models.EffortMedium},
	"REQ-002": {models.FitYes, "Standard functionality available", models.EffortLow},
	"REQ-003": {models.FitNo, "Custom integration required", models.EffortHigh},
	"REQ-004": {models.FitPartial, "Basic roles available, custom roles needed", models.EffortMedium},
	"REQ-005": {models.FitYes, "Configuration required", models.EffortMedium},
}

// DemoResult builds the canned result for req. Stories and fit-gap entries
// are derived from req.Requirements so references always resolve.
func DemoResult(req Request) models.Result {
	switch req.Stage {
	case models.StageUserStories:
		stories := make([]models.UserStory, 0, req.Requirements.Len())
		for _, r := range req.Requirements.Requirements {
			s, ok := demoStories[r.ID]
			if !ok {
				s = models.UserStory{
					ID:       "US-" + strings.TrimPrefix(r.ID, "REQ-"),
					Story:    "As a user, I want " + r.Description,
					Priority: r.Priority,
				}
			}
			s.Related = r.ID
			stories = append(stories, s)
		}
		return &models.UserStoriesResult{Stories: stories}

	case models.StageFitGap:
		entries := make([]models.FitGapEntry, 0, req.Requirements.Len())
		for _, r := range req.Requirements.Requirements {
			fg, ok := demoFitGap[r.ID]
			if !ok {
				fg.fit, fg.gap, fg.effort = models.FitPartial, "Requires further analysis", models.EffortMedium
			}
			entries = append(entries, models.FitGapEntry{
				Requirement: r.ID,
				Source:      req.Pair.Source,
				Destination: req.Pair.Destination,
				Fit:         fg.fit,
				Gap:         fg.gap,
				Effort:      fg.effort,
			})
		}
		return &models.FitGapResult{Pair: req.Pair, Entries: entries}
	}

	reqs := make([]models.Requirement, len(demoRequirements))
	copy(reqs, demoRequirements)
	return &models.RequirementsResult{Requirements: reqs}
}
