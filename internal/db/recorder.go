package db

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/reqjourney-go/internal/service"
)

// JobStore is the subset of Client the recorder writes through.
type JobStore interface {
	UpsertJob(ctx context.Context, job service.JobSnapshot) error
}

const (
	recorderQueueSize = 64
	recorderTimeout   = 5 * time.Second
)

// JobRecorder persists job transitions in the background. It implements
// service.JobObserver so it can be attached to any tracker. Writes that
// cannot be queued are dropped and logged; jobs never wait on the database.
type JobRecorder struct {
	store  JobStore
	logger *slog.Logger
	queue  chan service.JobSnapshot
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewJobRecorder starts a recorder writing to store.
func NewJobRecorder(store JobStore, logger *slog.Logger) *JobRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &JobRecorder{
		store:  store,
		logger: logger,
		queue:  make(chan service.JobSnapshot, recorderQueueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *JobRecorder) run() {
	defer close(r.done)
	for snap := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), recorderTimeout)
		err := r.store.UpsertJob(ctx, snap)
		cancel()
		if err == nil {
			continue
		}
		if errors.Is(err, ErrTransactionConflict) {
			r.logger.Debug("job write conflicted, skipping", "job_id", snap.ID, "status", snap.Status)
			continue
		}
		r.logger.Warn("failed to record job", "job_id", snap.ID, "status", snap.Status, "error", err)
	}
}

func (r *JobRecorder) enqueue(snap service.JobSnapshot) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- snap:
	default:
		r.logger.Warn("job recorder queue full, dropping write", "job_id", snap.ID, "status", snap.Status)
	}
}

// JobStarted implements service.JobObserver.
func (r *JobRecorder) JobStarted(snap service.JobSnapshot) { r.enqueue(snap) }

// JobFinished implements service.JobObserver.
func (r *JobRecorder) JobFinished(snap service.JobSnapshot) { r.enqueue(snap) }

// Close stops accepting writes and waits for queued ones to flush or ctx
// to expire.
func (r *JobRecorder) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
