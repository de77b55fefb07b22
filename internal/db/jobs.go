package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
	"github.com/raphaelgruber/reqjourney-go/internal/service"
)

// JobFilter narrows ListJobs. Zero fields match everything.
type JobFilter struct {
	Stage     string
	Status    string
	ContextID string
	Limit     int
}

const defaultJobLimit = 50

// UpsertJob writes the latest state of a job, creating the record on first use.
func (c *Client) UpsertJob(ctx context.Context, job service.JobSnapshot) error {
	var (
		errMsg, errKind *string
		durationMs      *int64
	)
	if job.Error != "" {
		errMsg, errKind = &job.Error, &job.ErrorKind
	}
	if job.CompletedAt != nil {
		ms := job.Duration.Milliseconds()
		durationMs = &ms
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("analysis_job", $id) SET
			stage = $stage,
			context_id = $context_id,
			status = $status,
			progress = $progress,
			entries = $entries,
			discarded = $discarded,
			error = $error,
			error_kind = $error_kind,
			started_at = $started_at,
			completed_at = $completed_at,
			duration_ms = $duration_ms
	`, map[string]any{
		"id":           job.ID,
		"stage":        string(job.Stage),
		"context_id":   job.ContextID,
		"status":       string(job.Status),
		"progress":     job.Progress,
		"entries":      job.Entries,
		"discarded":    job.Discarded,
		"error":        errMsg,
		"error_kind":   errKind,
		"started_at":   job.StartedAt.UTC(),
		"completed_at": utcPtr(job.CompletedAt),
		"duration_ms":  durationMs,
	})
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", job.ID, wrapQueryError(err))
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// GetJob returns the job with id, or ErrNotFound.
func (c *Client) GetJob(ctx context.Context, id string) (*models.AnalysisJob, error) {
	results, err := surrealdb.Query[[]models.AnalysisJob](ctx, c.db, `
		SELECT * FROM type::record("analysis_job", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get job: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// ListJobs returns jobs matching f, most recent first.
func (c *Client) ListJobs(ctx context.Context, f JobFilter) ([]models.AnalysisJob, error) {
	var conds []string
	vars := map[string]any{}
	if f.Stage != "" {
		conds = append(conds, "stage = $stage")
		vars["stage"] = f.Stage
	}
	if f.Status != "" {
		conds = append(conds, "status = $status")
		vars["status"] = f.Status
	}
	if f.ContextID != "" {
		conds = append(conds, "context_id = $context_id")
		vars["context_id"] = f.ContextID
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultJobLimit
	}
	vars["limit"] = limit

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	sql := fmt.Sprintf(`SELECT * FROM analysis_job %s ORDER BY started_at DESC LIMIT $limit`, where)

	results, err := surrealdb.Query[[]models.AnalysisJob](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.AnalysisJob{}, nil
	}
	return (*results)[0].Result, nil
}

// DeleteJobsBefore removes finished jobs that started before cutoff and
// returns how many were deleted.
func (c *Client) DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	results, err := surrealdb.Query[[]models.AnalysisJob](ctx, c.db, `
		DELETE analysis_job WHERE started_at < $cutoff AND completed_at != NONE RETURN BEFORE
	`, map[string]any{"cutoff": cutoff.UTC()})
	if err != nil {
		return 0, fmt.Errorf("delete jobs: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}
