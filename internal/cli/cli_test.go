package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/reqjourney-go/internal/extraction"
	"github.com/raphaelgruber/reqjourney-go/internal/models"
	"github.com/raphaelgruber/reqjourney-go/internal/service"
)

func TestParseStages(t *testing.T) {
	tests := []struct {
		in      string
		want    []models.Stage
		wantErr bool
	}{
		{"requirements", []models.Stage{models.StageRequirements}, false},
		{"fitGap,requirements", []models.Stage{models.StageRequirements, models.StageFitGap}, false},
		{"user-stories, requirements, requirements", []models.Stage{models.StageRequirements, models.StageUserStories}, false},
		{"requirements,userStories,fitGap", models.Stages, false},
		{"", nil, true},
		{" , ", nil, true},
		{"requirements,deploy", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseStages(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderResult(t *testing.T) {
	req := extraction.Request{
		Stage:    models.StageRequirements,
		Artifact: models.NewArtifact("spec.pdf", models.InputBRD, []byte("x")),
	}
	reqs := extraction.DemoResult(req)

	var buf bytes.Buffer
	renderResult(&buf, plainTheme, reqs)
	out := buf.String()
	assert.Contains(t, out, "Requirements")
	assert.Contains(t, out, "REQ-001")
	assert.Contains(t, out, "REQ-005")

	req.Stage = models.StageFitGap
	req.Requirements = reqs.(*models.RequirementsResult)
	req.Pair = models.DefaultSystemPair
	buf.Reset()
	renderResult(&buf, plainTheme, extraction.DemoResult(req))
	assert.Contains(t, buf.String(), "Oracle ERP -> D365 F&O")
}

func TestPrintJobProgress(t *testing.T) {
	o := service.NewOrchestrator(&extraction.DemoClient{Steps: 3, Interval: time.Millisecond})
	o.SetArtifact(models.NewArtifact("spec.pdf", models.InputBRD, []byte("brd")))

	job, err := o.RunStage(context.Background(), models.StageRequirements)
	require.NoError(t, err)

	var buf bytes.Buffer
	printJobProgress(&buf, job)
	o.Wait()

	out := buf.String()
	assert.Contains(t, out, "✓ Requirements")
	assert.Contains(t, out, "5 entries")
}

func TestPrintJobProgress_Failure(t *testing.T) {
	o := service.NewOrchestrator(&extraction.DemoClient{Steps: 1, Fail: assert.AnError})
	o.SetArtifact(models.NewArtifact("spec.pdf", models.InputBRD, []byte("brd")))

	job, err := o.RunStage(context.Background(), models.StageRequirements)
	require.NoError(t, err)

	var buf bytes.Buffer
	printJobProgress(&buf, job)
	o.Wait()
	assert.Contains(t, buf.String(), "✗ Requirements failed")
}

func TestJobFormatting(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local)
	completed := started.Add(1500 * time.Millisecond)
	durationMs := int64(1500)
	msg, kind := "model refused", "upstream"

	job := models.AnalysisJob{
		ID:          surrealmodels.RecordID{Table: "analysis_job", ID: "3f2a91c0"},
		Stage:       "fitGap",
		ContextID:   "ctx-1",
		Status:      "failed",
		Progress:    100,
		Error:       &msg,
		ErrorKind:   &kind,
		StartedAt:   started,
		CompletedAt: &completed,
		DurationMs:  &durationMs,
	}

	line := formatJobLine(job)
	assert.Contains(t, line, "3f2a91c0")
	assert.Contains(t, line, "fitGap")
	assert.Contains(t, line, "2026-03-01 09:30:00")

	var buf bytes.Buffer
	printJob(&buf, &job)
	out := buf.String()
	assert.Contains(t, out, "Job: 3f2a91c0")
	assert.Contains(t, out, "Duration: 1.5s")
	assert.Contains(t, out, "Error (upstream): model refused")
	assert.NotContains(t, out, "Entries")
}
