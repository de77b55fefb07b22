package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// AnalysisJob is the persisted record of one stage run.
type AnalysisJob struct {
	ID          surrealmodels.RecordID `json:"id"`
	Stage       string                 `json:"stage"`
	ContextID   string                 `json:"context_id"`
	Status      string                 `json:"status"`
	Progress    int                    `json:"progress"`
	Entries     int                    `json:"entries"`
	Discarded   bool                   `json:"discarded"`
	Error       *string                `json:"error,omitempty"`
	ErrorKind   *string                `json:"error_kind,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	DurationMs  *int64                 `json:"duration_ms,omitempty"`
}

// JobID returns the record key, or "" if the ID is not a string key.
func (j AnalysisJob) JobID() string {
	id, err := RecordIDString(j.ID)
	if err != nil {
		return ""
	}
	return id
}
