// Package service implements the staged analysis workflow: artifact
// validation, per-stage result caching, job tracking and orchestration.
package service

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

// JobStatus represents the state of a stage job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether s is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// maxRunningProgress keeps 100 reserved for the terminal transition.
const maxRunningProgress = 99

// historySize bounds the finished jobs a tracker remembers.
const historySize = 50

// Job is one stage run.
type Job struct {
	ID        string
	Stage     models.Stage
	ContextID string

	mu          sync.RWMutex
	status      JobStatus
	progress    int
	err         *ServiceError
	entries     int
	discarded   bool
	startedAt   time.Time
	completedAt *time.Time
	duration    time.Duration
	done        chan struct{}
	subs        []chan JobSnapshot
}

// JobSnapshot is a point-in-time copy of a job, safe to share.
type JobSnapshot struct {
	ID          string        `json:"id"`
	Stage       models.Stage  `json:"stage"`
	ContextID   string        `json:"contextId"`
	Status      JobStatus     `json:"status"`
	Progress    int           `json:"progress"`
	Error       string        `json:"error,omitempty"`
	ErrorKind   string        `json:"errorKind,omitempty"`
	Entries     int           `json:"entries"`
	Discarded   bool          `json:"discarded,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err returns the failure recorded on the job, if any.
func (j *Job) Err() *ServiceError {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Snapshot returns a thread-safe copy of job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.snapshotLocked()
}

func (j *Job) snapshotLocked() JobSnapshot {
	s := JobSnapshot{
		ID:          j.ID,
		Stage:       j.Stage,
		ContextID:   j.ContextID,
		Status:      j.status,
		Progress:    j.progress,
		Entries:     j.entries,
		Discarded:   j.discarded,
		StartedAt:   j.startedAt,
		CompletedAt: j.completedAt,
		Duration:    j.duration,
	}
	if j.err != nil {
		s.Error = j.err.Message
		s.ErrorKind = j.err.Kind
	}
	return s
}

// Subscribe streams snapshots on every change, starting with the current
// state. The channel only keeps the latest snapshot if the reader falls
// behind, and is closed after the terminal snapshot. cancel detaches early.
func (j *Job) Subscribe() (<-chan JobSnapshot, func()) {
	ch := make(chan JobSnapshot, 1)
	j.mu.Lock()
	defer j.mu.Unlock()

	ch <- j.snapshotLocked()
	if j.status.Terminal() {
		close(ch)
		return ch, func() {}
	}
	j.subs = append(j.subs, ch)

	cancel := func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if i := slices.Index(j.subs, ch); i >= 0 {
			j.subs = slices.Delete(j.subs, i, i+1)
			close(ch)
		}
	}
	return ch, cancel
}

// publishLocked must be called with j.mu held.
func (j *Job) publishLocked() {
	snap := j.snapshotLocked()
	for _, ch := range j.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	if snap.Status.Terminal() {
		for _, ch := range j.subs {
			close(ch)
		}
		j.subs = nil
	}
}

// JobObserver is notified when jobs start and finish. Implementations must
// not block for long; they run on the goroutine driving the job.
type JobObserver interface {
	JobStarted(JobSnapshot)
	JobFinished(JobSnapshot)
}

// JobTracker owns the single active job slot and the job lifecycle.
type JobTracker struct {
	mu        sync.Mutex
	active    *Job
	last      *Job
	history   []*Job
	observers []JobObserver
	logger    *slog.Logger
	now       func() time.Time
}

// NewJobTracker creates a tracker notifying the given observers.
func NewJobTracker(logger *slog.Logger, observers ...JobObserver) *JobTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobTracker{
		observers: observers,
		logger:    logger,
		now:       time.Now,
	}
}

// Start creates a pending job for stage, or fails with ErrAlreadyRunning
// while another job is pending or running.
func (t *JobTracker) Start(stage models.Stage, contextID string) (*Job, error) {
	t.mu.Lock()
	if t.active != nil {
		t.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	job := &Job{
		ID:        uuid.New().String()[:8],
		Stage:     stage,
		ContextID: contextID,
		status:    JobStatusPending,
		startedAt: t.now(),
		done:      make(chan struct{}),
	}
	t.active = job
	observers := slices.Clone(t.observers)
	t.mu.Unlock()

	t.logger.Info("job created", "job_id", job.ID, "stage", stage, "context_id", contextID)
	snap := job.Snapshot()
	for _, o := range observers {
		o.JobStarted(snap)
	}
	return job, nil
}

// MarkRunning moves a pending job to running.
func (t *JobTracker) MarkRunning(job *Job) {
	job.mu.Lock()
	defer job.mu.Unlock()
	if job.status != JobStatusPending {
		return
	}
	job.status = JobStatusRunning
	job.publishLocked()
}

// ReportProgress records value, clamped to [0, 99]. Progress never moves
// backwards and is ignored once the job is terminal.
func (t *JobTracker) ReportProgress(job *Job, value int) {
	value = max(0, min(value, maxRunningProgress))

	job.mu.Lock()
	defer job.mu.Unlock()
	if job.status.Terminal() || value <= job.progress {
		return
	}
	if job.status == JobStatusPending {
		job.status = JobStatusRunning
	}
	job.progress = value
	job.publishLocked()
}

// Complete marks job succeeded with entries results. A discarded job
// belonged to a context that has since been replaced.
func (t *JobTracker) Complete(job *Job, entries int, discarded bool) {
	t.finish(job, func() {
		job.status = JobStatusSucceeded
		job.entries = entries
		job.discarded = discarded
	})
	t.logger.Info("job completed",
		"job_id", job.ID, "stage", job.Stage, "entries", entries, "discarded", discarded)
}

// Fail marks job failed. Non-service errors are wrapped as upstream
// service errors.
func (t *JobTracker) Fail(job *Job, err error) {
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		svcErr = NewServiceError(ServiceKindUpstream, err)
	}
	t.finish(job, func() {
		job.status = JobStatusFailed
		job.err = svcErr
	})
	t.logger.Error("job failed", "job_id", job.ID, "stage", job.Stage, "kind", svcErr.Kind, "error", svcErr.Message)
}

func (t *JobTracker) finish(job *Job, apply func()) {
	job.mu.Lock()
	if job.status.Terminal() {
		job.mu.Unlock()
		return
	}
	apply()
	now := t.now()
	job.progress = 100
	job.completedAt = &now
	job.duration = now.Sub(job.startedAt)
	snap := job.snapshotLocked()
	job.mu.Unlock()

	// Free the slot before anyone waiting on Done can observe the job.
	t.mu.Lock()
	if t.active == job {
		t.active = nil
	}
	t.last = job
	t.history = append(t.history, job)
	if len(t.history) > historySize {
		t.history = slices.Delete(t.history, 0, len(t.history)-historySize)
	}
	observers := slices.Clone(t.observers)
	t.mu.Unlock()

	job.mu.Lock()
	job.publishLocked()
	close(job.done)
	job.mu.Unlock()

	for _, o := range observers {
		o.JobFinished(snap)
	}
}

// Active returns the pending or running job, if any.
func (t *JobTracker) Active() (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active, t.active != nil
}

// Last returns the most recently finished job, if any.
func (t *JobTracker) Last() (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.last != nil
}

// History returns finished jobs, most recent first.
func (t *JobTracker) History() []JobSnapshot {
	t.mu.Lock()
	jobs := slices.Clone(t.history)
	t.mu.Unlock()

	out := make([]JobSnapshot, 0, len(jobs))
	for i := len(jobs) - 1; i >= 0; i-- {
		out = append(out, jobs[i].Snapshot())
	}
	return out
}
