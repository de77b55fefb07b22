package api

import (
	"time"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

// jobRecord is the JSON view of a persisted job.
type jobRecord struct {
	ID          string     `json:"id"`
	Stage       string     `json:"stage"`
	ContextID   string     `json:"contextId"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	Entries     int        `json:"entries"`
	Discarded   bool       `json:"discarded,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorKind   string     `json:"errorKind,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	DurationMs  *int64     `json:"durationMs,omitempty"`
}

func toJobRecord(j models.AnalysisJob) jobRecord {
	r := jobRecord{
		ID:          j.JobID(),
		Stage:       j.Stage,
		ContextID:   j.ContextID,
		Status:      j.Status,
		Progress:    j.Progress,
		Entries:     j.Entries,
		Discarded:   j.Discarded,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		DurationMs:  j.DurationMs,
	}
	if j.Error != nil {
		r.Error = *j.Error
	}
	if j.ErrorKind != nil {
		r.ErrorKind = *j.ErrorKind
	}
	return r
}

func toJobRecords(jobs []models.AnalysisJob) []jobRecord {
	out := make([]jobRecord, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobRecord(j))
	}
	return out
}
