package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/reqjourney-go/internal/extraction"
	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

// AnalysisContext is the state of one analysis: the selected artifact, the
// system pair and the per-stage results. Replacing the artifact starts a
// new context with a new ID.
type AnalysisContext struct {
	ID       string
	Artifact *models.Artifact
	Pair     models.SystemPair
	Cache    *StageCache

	validated     bool
	validationErr error
}

// State is a read-only view of an orchestrator for presentation layers.
type State struct {
	ContextID string                                 `json:"contextId"`
	Artifact  *models.Artifact                       `json:"artifact,omitempty"`
	Pair      *models.SystemPair                     `json:"pair,omitempty"`
	Completed []models.Stage                         `json:"completed"`
	Runnable  []models.Stage                         `json:"runnable"`
	Results   map[models.Stage]models.ResultEnvelope `json:"results,omitempty"`
	ActiveJob *JobSnapshot                           `json:"activeJob,omitempty"`
	LastJob   *JobSnapshot                           `json:"lastJob,omitempty"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCascadeOnRerun makes a successful requirements re-run drop the cached
// user stories and fit-gap results derived from the previous requirements.
func WithCascadeOnRerun(on bool) Option {
	return func(o *Orchestrator) { o.cascadeOnRerun = on }
}

// WithJobTimeout bounds each extraction run. Zero means no limit.
func WithJobTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.jobTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithCatalog(c *models.Catalog) Option {
	return func(o *Orchestrator) { o.catalog = c }
}

func WithValidator(v *ArtifactValidator) Option {
	return func(o *Orchestrator) { o.validator = v }
}

// WithObservers registers job observers on the orchestrator's tracker.
func WithObservers(obs ...JobObserver) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs...) }
}

// Orchestrator runs the three analysis stages over one AnalysisContext. It
// is the only writer of that context; all mutations take o.mu.
type Orchestrator struct {
	mu sync.Mutex
	ac *AnalysisContext

	client    extraction.Client
	validator *ArtifactValidator
	tracker   *JobTracker
	catalog   *models.Catalog
	observers []JobObserver

	cascadeOnRerun bool
	jobTimeout     time.Duration
	logger         *slog.Logger
	wg             sync.WaitGroup
}

// NewOrchestrator creates an orchestrator with an empty context.
func NewOrchestrator(client extraction.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{client: client}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.validator == nil {
		o.validator = NewArtifactValidator(Limits{})
	}
	if o.catalog == nil {
		o.catalog = models.NewCatalog(nil)
	}
	o.tracker = NewJobTracker(o.logger, o.observers...)
	o.ac = newContext()
	return o
}

func newContext() *AnalysisContext {
	return &AnalysisContext{ID: uuid.New().String(), Cache: NewStageCache()}
}

// Catalog returns the systems a pair may be drawn from.
func (o *Orchestrator) Catalog() *models.Catalog { return o.catalog }

// Validator returns the rules artifacts are checked against.
func (o *Orchestrator) Validator() *ArtifactValidator { return o.validator }

// Tracker exposes the job tracker for history queries.
func (o *Orchestrator) Tracker() *JobTracker { return o.tracker }

// SetArtifact selects a and starts a new context. The system pair carries
// over; cached results do not. A nil artifact is the same as RemoveArtifact.
func (o *Orchestrator) SetArtifact(a *models.Artifact) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	pair := o.ac.Pair
	o.ac = newContext()
	o.ac.Artifact = a
	o.ac.Pair = pair

	if a != nil {
		o.logger.Info("artifact selected",
			"context_id", o.ac.ID, "artifact", a.Name, "input_type", a.InputType, "size", a.Size)
	}
	return o.ac.ID
}

// RemoveArtifact clears the artifact and every cached result.
func (o *Orchestrator) RemoveArtifact() {
	o.SetArtifact(nil)
}

// Artifact returns the selected artifact, if any.
func (o *Orchestrator) Artifact() *models.Artifact {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ac.Artifact
}

// ContextID identifies the current context.
func (o *Orchestrator) ContextID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ac.ID
}

// SetSystemPair validates both systems against the catalog. Changing the
// pair drops only the fit-gap result.
func (o *Orchestrator) SetSystemPair(pair models.SystemPair) error {
	resolved, err := o.catalog.Pair(pair.Source, pair.Destination)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ac.Pair == resolved {
		return nil
	}
	o.ac.Pair = resolved
	removed := o.ac.Cache.Invalidate(func(s models.Stage) bool { return s == models.StageFitGap })
	o.logger.Info("system pair changed", "context_id", o.ac.ID, "pair", resolved.String(), "invalidated", removed)
	return nil
}

// SystemPair returns the selected pair and whether one is set.
func (o *Orchestrator) SystemPair() (models.SystemPair, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ac.Pair, !o.ac.Pair.IsZero()
}

// Result returns the cached result for stage.
func (o *Orchestrator) Result(stage models.Stage) (models.Result, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ac.Cache.Get(stage)
}

// ActiveJob returns the pending or running job.
func (o *Orchestrator) ActiveJob() (*Job, bool) {
	return o.tracker.Active()
}

// LastJob returns the most recently finished job.
func (o *Orchestrator) LastJob() (*Job, bool) {
	return o.tracker.Last()
}

// RunStage starts stage and returns its job without waiting for it. The
// preconditions are checked in order: an artifact is selected, the
// artifact is valid, the stage's dependencies are cached, and no other
// job is active. A failed precondition creates no job.
func (o *Orchestrator) RunStage(ctx context.Context, stage models.Stage) (*Job, error) {
	if !stage.Valid() {
		return nil, fmt.Errorf("unknown stage: %q", stage)
	}

	job, req, err := o.startJob(stage)
	if err != nil {
		return nil, err
	}

	// Submit runs outside o.mu. The slot is already held, and a context
	// replaced meanwhile is caught when the result arrives.
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if o.jobTimeout > 0 {
		runCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), o.jobTimeout)
	} else {
		runCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
	}

	events, err := o.client.Submit(runCtx, req)
	if err != nil {
		cancel()
		o.tracker.Fail(job, submitError(err))
		return job, nil
	}
	o.tracker.MarkRunning(job)

	o.wg.Add(1)
	go o.consume(runCtx, cancel, job, req, events)
	return job, nil
}

// startJob checks the preconditions against the current context and
// claims the job slot.
func (o *Orchestrator) startJob(stage models.Stage) (*Job, extraction.Request, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ac := o.ac

	if err := o.validateLocked(ac); err != nil {
		return nil, extraction.Request{}, err
	}

	req := extraction.Request{Stage: stage, Artifact: ac.Artifact}
	if err := o.resolveDependencies(ac, &req); err != nil {
		return nil, extraction.Request{}, err
	}

	job, err := o.tracker.Start(stage, ac.ID)
	if err != nil {
		return nil, extraction.Request{}, err
	}
	return job, req, nil
}

// ValidateArtifact checks the selected artifact now instead of on the
// first RunStage. The outcome is remembered for the context.
func (o *Orchestrator) ValidateArtifact() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.validateLocked(o.ac)
}

func (o *Orchestrator) validateLocked(ac *AnalysisContext) error {
	if ac.Artifact == nil {
		return ErrNoArtifact
	}
	if !ac.validated {
		ac.validationErr = o.validator.Validate(ac.Artifact, ac.Artifact.InputType)
		ac.validated = true
	}
	return ac.validationErr
}

func (o *Orchestrator) resolveDependencies(ac *AnalysisContext, req *extraction.Request) error {
	if req.Stage == models.StageRequirements {
		return nil
	}

	var missing []string
	if r, ok := ac.Cache.Get(models.StageRequirements); ok {
		req.Requirements = r.(*models.RequirementsResult)
	} else {
		missing = append(missing, string(models.StageRequirements))
	}
	if req.Stage == models.StageFitGap {
		if ac.Pair.IsZero() {
			missing = append(missing, "systemPair")
		}
		req.Pair = ac.Pair
	}
	if len(missing) > 0 {
		return &DependencyMissingError{Stage: req.Stage, Missing: missing}
	}
	return nil
}

// consume drains one submission stream into the tracker.
func (o *Orchestrator) consume(ctx context.Context, cancel context.CancelFunc, job *Job, req extraction.Request, events <-chan extraction.Event) {
	defer o.wg.Done()
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("extraction consumer panicked", "job_id", job.ID, "panic", r)
			o.tracker.Fail(job, &ServiceError{Message: fmt.Sprintf("internal panic: %v", r), Kind: ServiceKindUpstream})
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				o.tracker.Fail(job, &ServiceError{
					Message: "extraction stream ended without a result",
					Kind:    ServiceKindStream,
				})
				return
			}
			switch {
			case ev.Err != nil:
				o.tracker.Fail(job, submitError(ev.Err))
				return
			case ev.Result != nil:
				o.finish(job, req, ev.Result)
				return
			default:
				o.tracker.ReportProgress(job, ev.Progress)
			}
		case <-ctx.Done():
			o.tracker.Fail(job, &ServiceError{
				Message: "extraction timed out",
				Kind:    ServiceKindTimeout,
				Err:     ctx.Err(),
			})
			return
		}
	}
}

// finish applies a successful result if its context and inputs are still
// current.
func (o *Orchestrator) finish(job *Job, req extraction.Request, result models.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := checkResult(req, result); err != nil {
		o.tracker.Fail(job, NewServiceError(ServiceKindInvalidResult, err))
		return
	}

	ac := o.ac
	if ac.ID != job.ContextID {
		o.logger.Info("discarding result for replaced artifact", "job_id", job.ID, "stage", job.Stage)
		o.tracker.Complete(job, result.Len(), true)
		return
	}
	if req.Stage == models.StageFitGap && ac.Pair != req.Pair {
		o.logger.Info("discarding fit-gap for previous system pair", "job_id", job.ID, "pair", req.Pair.String())
		o.tracker.Complete(job, result.Len(), true)
		return
	}

	if req.Stage == models.StageRequirements && o.cascadeOnRerun {
		if removed := ac.Cache.Invalidate(func(s models.Stage) bool { return s == models.StageRequirements }); len(removed) > 0 {
			o.logger.Info("requirements re-run invalidated results", "context_id", ac.ID, "stages", removed)
		}
	}
	ac.Cache.Put(req.Stage, result)
	o.tracker.Complete(job, result.Len(), false)
}

// checkResult enforces the result shape and its references to the
// requirements the job was started with.
func checkResult(req extraction.Request, result models.Result) error {
	if result.Stage() != req.Stage {
		return fmt.Errorf("%w: expected %s, got %s", models.ErrStageMismatch, req.Stage, result.Stage())
	}
	switch r := result.(type) {
	case *models.RequirementsResult:
		return r.Validate()
	case *models.UserStoriesResult:
		return r.ValidateAgainst(req.Requirements)
	case *models.FitGapResult:
		if r.Pair.IsZero() {
			r.Pair = req.Pair
		}
		return r.ValidateAgainst(req.Requirements)
	}
	return fmt.Errorf("%w: unexpected result type %T", models.ErrInvalidResult, result)
}

func submitError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	switch {
	case errors.Is(err, extraction.ErrFatal):
		return NewServiceError(ServiceKindFatal, err)
	case errors.Is(err, models.ErrInvalidResult), errors.Is(err, models.ErrStageMismatch):
		return NewServiceError(ServiceKindInvalidResult, err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewServiceError(ServiceKindTimeout, err)
	}
	return NewServiceError(ServiceKindUpstream, err)
}

// Wait blocks until every running extraction has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Snapshot returns the presentation view of the orchestrator.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	ac := o.ac
	st := State{
		ContextID: ac.ID,
		Artifact:  ac.Artifact,
		Completed: ac.Cache.Stages(),
		Results:   make(map[models.Stage]models.ResultEnvelope),
	}
	if !ac.Pair.IsZero() {
		pair := ac.Pair
		st.Pair = &pair
	}
	for _, s := range st.Completed {
		r, _ := ac.Cache.Get(s)
		st.Results[s] = models.EncodeResult(r)
	}
	if ac.Artifact != nil && (!ac.validated || ac.validationErr == nil) {
		for _, s := range models.Stages {
			var req extraction.Request
			req.Stage = s
			if o.resolveDependencies(ac, &req) == nil {
				st.Runnable = append(st.Runnable, s)
			}
		}
	}
	o.mu.Unlock()

	if job, ok := o.tracker.Active(); ok {
		snap := job.Snapshot()
		st.ActiveJob = &snap
		st.Runnable = nil
	}
	if job, ok := o.tracker.Last(); ok {
		snap := job.Snapshot()
		st.LastJob = &snap
	}
	return st
}
