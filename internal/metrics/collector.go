// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
	"github.com/raphaelgruber/reqjourney-go/internal/service"
)

// Operation name prefixes. Each is suffixed with the stage, e.g.
// "job_requirements" or "llm_fitGap". analyze_ covers the one-shot
// /analyze endpoint.
const (
	OpJobPrefix     = "job_"
	OpLLMPrefix     = "llm_"
	OpAnalyzePrefix = "analyze_"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	TotalInputTokens  int64
	TotalOutputTokens int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Failures    int64   `json:"failures"`
	TotalTimeMs int64   `json:"totalTimeMs"`
	AvgTimeMs   float64 `json:"avgTimeMs"`
	MinTimeMs   int64   `json:"minTimeMs"`
	MaxTimeMs   int64   `json:"maxTimeMs"`

	TotalInputTokens  *int64 `json:"totalInputTokens,omitempty"`
	TotalOutputTokens *int64 `json:"totalOutputTokens,omitempty"`
}

// JobCounts tallies job outcomes.
type JobCounts struct {
	Started   int64 `json:"started"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Discarded int64 `json:"discarded"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64                       `json:"uptimeSeconds"`
	Jobs          JobCounts                     `json:"jobs"`
	Operations    map[string]*OperationSnapshot `json:"operations"`
}

// Collector aggregates in-memory runtime statistics. It observes jobs and
// model calls. All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
	jobs      JobCounts
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate requires the write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

func (m *OperationMetrics) observe(d time.Duration, failed bool) {
	m.Count++
	if failed {
		m.Failures++
	}
	m.TotalTime += d
	m.MinTime = min(m.MinTime, d)
	m.MaxTime = max(m.MaxTime, d)
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getOrCreate(op).observe(duration, failed)
}

// RecordLLMUsage records one model call for stage.
func (c *Collector) RecordLLMUsage(stage models.Stage, _ string, d time.Duration, inputTokens, outputTokens int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(OpLLMPrefix + string(stage))
	m.observe(d, err != nil)
	m.TotalInputTokens += int64(inputTokens)
	m.TotalOutputTokens += int64(outputTokens)
}

// JobStarted implements service.JobObserver.
func (c *Collector) JobStarted(service.JobSnapshot) {
	c.mu.Lock()
	c.jobs.Started++
	c.mu.Unlock()
}

// JobFinished implements service.JobObserver.
func (c *Collector) JobFinished(job service.JobSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	failed := job.Status == service.JobStatusFailed
	switch {
	case failed:
		c.jobs.Failed++
	case job.Discarded:
		c.jobs.Discarded++
	default:
		c.jobs.Succeeded++
	}
	c.getOrCreate(OpJobPrefix+string(job.Stage)).observe(job.Duration, failed)
}

func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}
	snap := &OperationSnapshot{
		Count:       m.Count,
		Failures:    m.Failures,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
	if m.TotalInputTokens > 0 || m.TotalOutputTokens > 0 {
		in, out := m.TotalInputTokens, m.TotalOutputTokens
		snap.TotalInputTokens = &in
		snap.TotalOutputTokens = &out
	}
	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ops := make(map[string]*OperationSnapshot, len(c.ops))
	for name, m := range c.ops {
		if s := snapshotOp(m); s != nil {
			ops[name] = s
		}
	}
	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Jobs:          c.jobs,
		Operations:    ops,
	}
}
