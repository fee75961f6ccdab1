package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amine-CS96/seo-expert/internal/interfaces"
	"github.com/amine-CS96/seo-expert/internal/model"
	"github.com/amine-CS96/seo-expert/internal/progress"
	"github.com/amine-CS96/seo-expert/internal/session"
)

type RunEventType string

const (
	RunEventStatus RunEventType = "status"
	RunEventStep   RunEventType = "step"
	RunEventResult RunEventType = "result"
)

// RunEvent is one streamed update for an audit run.
type RunEvent struct {
	RunID string       `json:"run_id"`
	Type  RunEventType `json:"type"`

	// For status changes
	Status RunStatus         `json:"status,omitempty"`
	Error  *model.AuditError `json:"error,omitempty"`

	// For completed progress steps
	StepID    string `json:"step_id,omitempty"`
	StepLabel string `json:"step_label,omitempty"`

	// For results; the token collects the report from the handoff store.
	HandoffToken string `json:"handoff_token,omitempty"`
}

type RunStatus string

const (
	RunPending  RunStatus = "pending"
	RunRunning  RunStatus = "running"
	RunDone     RunStatus = "done"
	RunFailed   RunStatus = "failed"
	RunCanceled RunStatus = "canceled"
)

// Run is one audit submission. Generation ties the run to the session state
// machine: a resolution presented with a superseded generation is dropped.
type Run struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	Email             string            `json:"email"`
	IncludeScreenshot bool              `json:"include_screenshot"`
	Generation        uint64            `json:"generation"`
	Status            RunStatus         `json:"status"`
	Error             *model.AuditError `json:"error,omitempty"`
	StartedAt         time.Time         `json:"started_at"`
	EndedAt           time.Time         `json:"ended_at"`
	CompletedSteps    []string          `json:"completed_steps,omitempty"`
	HandoffToken      string            `json:"handoff_token,omitempty"`

	Report *model.AuditReport `json:"-"`
	Events chan RunEvent      `json:"-"`

	// eventsClosed is flipped under the orchestrator mutex before Events is
	// closed, so concurrent emitters never send on a closed channel.
	eventsClosed bool
}

// ErrRunNotFound is returned for operations on an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// ErrRunNotRetryable is returned when retry is requested for a run that did
// not fail (or whose failure has been superseded).
var ErrRunNotRetryable = errors.New("run is not in a retryable state")

// Orchestrator drives audit runs: it submits to the session state machine,
// plays the staged progress sequence, calls the analysis service and lands
// results in the handoff and history stores.
type Orchestrator struct {
	cfg    *Config
	comps  *Components
	logger interfaces.Logger

	runsMu     sync.Mutex
	runs       map[string]*Run
	runCancels map[string]context.CancelFunc
}

// NewOrchestrator ties together config, components and logger.
func NewOrchestrator(cfg *Config, comps *Components, logger interfaces.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Orchestrator{
		cfg:        cfg,
		comps:      comps,
		logger:     logger.With(interfaces.Field{Key: "component", Value: "orchestrator"}),
		runs:       make(map[string]*Run),
		runCancels: make(map[string]context.CancelFunc),
	}
}

// Session exposes the audit session state machine.
func (o *Orchestrator) Session() *session.Session {
	return o.comps.Session
}

// StartAudit validates the request and, if it is well formed, submits it and
// starts the run. Field errors are returned without starting anything.
func (o *Orchestrator) StartAudit(ctx context.Context, url, email string, includeScreenshot bool) (*Run, []model.FieldError, error) {
	req := model.AuditRequest{URL: url, Email: email, IncludeScreenshot: includeScreenshot}
	if fieldErrs := req.Validate(); len(fieldErrs) > 0 {
		return nil, fieldErrs, nil
	}

	gen := o.comps.Session.Submit(url, email)

	run := &Run{
		ID:                uuid.New().String(),
		URL:               url,
		Email:             email,
		IncludeScreenshot: includeScreenshot,
		Generation:        gen,
		Status:            RunPending,
		StartedAt:         time.Now().UTC(),
		Events:            make(chan RunEvent, 32),
	}
	o.setRun(run)

	runCtx, cancel := context.WithCancel(ctx)
	o.setCancel(run.ID, cancel)

	o.emitRunEvent(run.ID, RunEvent{RunID: run.ID, Type: RunEventStatus, Status: RunPending})

	go o.execute(runCtx, run.ID, gen, req)

	return run, nil, nil
}

// RetryRun re-submits a failed run with its original URL and email. The
// session must still be showing that failure; anything else is not
// retryable.
func (o *Orchestrator) RetryRun(ctx context.Context, runID string) (*Run, error) {
	o.runsMu.Lock()
	run, ok := o.runs[runID]
	if !ok {
		o.runsMu.Unlock()
		return nil, ErrRunNotFound
	}
	if run.Status != RunFailed {
		o.runsMu.Unlock()
		return nil, ErrRunNotRetryable
	}
	o.runsMu.Unlock()

	gen, ok := o.comps.Session.Retry()
	if !ok {
		return nil, ErrRunNotRetryable
	}

	o.runsMu.Lock()
	run.Generation = gen
	run.Status = RunPending
	run.Error = nil
	run.CompletedSteps = nil
	run.StartedAt = time.Now().UTC()
	run.EndedAt = time.Time{}
	// Fresh channel: the previous one may still hold events from the
	// failed attempt.
	run.Events = make(chan RunEvent, 32)
	run.eventsClosed = false
	req := model.AuditRequest{URL: run.URL, Email: run.Email, IncludeScreenshot: run.IncludeScreenshot}
	o.runsMu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	o.setCancel(runID, cancel)

	o.emitRunEvent(runID, RunEvent{RunID: runID, Type: RunEventStatus, Status: RunPending})

	go o.execute(runCtx, runID, gen, req)

	return run, nil
}

// CancelRun aborts a running audit. The progress playback stops, the
// analyzer call is abandoned and the session returns to idle.
func (o *Orchestrator) CancelRun(runID string) {
	if cancel := o.getCancel(runID); cancel != nil {
		cancel()
	}
}

// GetRun returns the run for an ID, or nil.
func (o *Orchestrator) GetRun(runID string) *Run {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	return o.runs[runID]
}

// ListRuns returns all known runs.
func (o *Orchestrator) ListRuns() []*Run {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	out := make([]*Run, 0, len(o.runs))
	for _, r := range o.runs {
		out = append(out, r)
	}
	return out
}

// StartHandoffPruner sweeps abandoned handoff entries until ctx is done.
func (o *Orchestrator) StartHandoffPruner(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(o.cfg.HandoffPruneEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := o.comps.Handoff.PruneOlderThan(ctx, o.cfg.HandoffTTL)
				if err != nil {
					o.logger.Warn("handoff prune failed",
						interfaces.Field{Key: "error", Value: err.Error()})
					continue
				}
				if n > 0 {
					o.logger.Info("pruned abandoned handoff entries",
						interfaces.Field{Key: "count", Value: n})
				}
			}
		}
	}()
}

type fetchOutcome struct {
	report   *model.AuditReport
	auditErr *model.AuditError
}

// execute runs one audit attempt. The analyzer call starts immediately but
// its outcome is only consumed after progress playback finishes, so the
// staged sequence always plays out in full before anything resolves.
func (o *Orchestrator) execute(runCtx context.Context, runID string, gen uint64, req model.AuditRequest) {
	defer func() {
		o.runsMu.Lock()
		if run, ok := o.runs[runID]; ok {
			run.EndedAt = time.Now().UTC()
		}
		o.runsMu.Unlock()
		o.deleteCancel(runID)
	}()

	o.setRunStatus(runID, RunRunning, nil)
	o.emitRunEvent(runID, RunEvent{RunID: runID, Type: RunEventStatus, Status: RunRunning})

	outcomeCh := make(chan fetchOutcome, 1)
	go func() {
		report, auditErr := o.comps.Analyzer.Analyze(runCtx, req)
		outcomeCh <- fetchOutcome{report: report, auditErr: auditErr}
	}()

	sim := progress.NewSimulator(o.cfg.Steps, func(step progress.Step) {
		o.runsMu.Lock()
		if run, ok := o.runs[runID]; ok {
			run.CompletedSteps = append(run.CompletedSteps, step.ID)
		}
		o.runsMu.Unlock()
		o.emitRunEvent(runID, RunEvent{
			RunID:     runID,
			Type:      RunEventStep,
			StepID:    step.ID,
			StepLabel: step.Label,
		})
	}, o.logger)
	sim.Start(runCtx)

	select {
	case <-runCtx.Done():
		o.finishCanceled(runID, gen)
		return
	case <-sim.Done():
	}

	var outcome fetchOutcome
	select {
	case <-runCtx.Done():
		o.finishCanceled(runID, gen)
		return
	case outcome = <-outcomeCh:
	}

	if outcome.auditErr != nil {
		o.comps.Session.ResolveError(gen, outcome.auditErr)
		o.setRunStatus(runID, RunFailed, outcome.auditErr)
		o.emitRunEvent(runID, RunEvent{
			RunID:  runID,
			Type:   RunEventStatus,
			Status: RunFailed,
			Error:  outcome.auditErr,
		})
		return
	}

	report := outcome.report

	token, err := o.comps.Handoff.Put(runCtx, report)
	if err != nil {
		// The report is still served from the session; only the
		// cross-navigation pickup is lost.
		o.logger.Warn("storing handoff report failed",
			interfaces.Field{Key: "run_id", Value: runID},
			interfaces.Field{Key: "error", Value: err.Error()})
		token = ""
	}

	if _, err := o.comps.History.Record(runCtx, req.Email, report); err != nil {
		o.logger.Warn("recording audit history failed",
			interfaces.Field{Key: "run_id", Value: runID},
			interfaces.Field{Key: "error", Value: err.Error()})
	}

	o.comps.Session.ResolveSuccess(gen, report)

	o.runsMu.Lock()
	if run, ok := o.runs[runID]; ok {
		run.Status = RunDone
		run.Report = report
		run.HandoffToken = token
	}
	o.runsMu.Unlock()

	o.emitRunEvent(runID, RunEvent{
		RunID:        runID,
		Type:         RunEventResult,
		Status:       RunDone,
		HandoffToken: token,
	})
}

// finishCanceled marks the run canceled and, when the run's generation is
// still current, returns the session to idle. A superseded run's
// cancellation must not touch the newer submission's session state.
// The events channel is closed here and only here: completed and failed
// runs keep theirs open so a retry can reuse the run.
func (o *Orchestrator) finishCanceled(runID string, gen uint64) {
	o.setRunStatus(runID, RunCanceled, nil)
	o.comps.Session.ResetIfCurrent(gen)
	o.emitRunEvent(runID, RunEvent{RunID: runID, Type: RunEventStatus, Status: RunCanceled})

	// The flag and the close happen under the same mutex emitRunEvent sends
	// under, so a step callback racing the cancellation cannot send on the
	// closed channel.
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	if run, ok := o.runs[runID]; ok && run.Events != nil && !run.eventsClosed {
		run.eventsClosed = true
		close(run.Events)
	}
}

func (o *Orchestrator) setRun(run *Run) {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	o.runs[run.ID] = run
}

func (o *Orchestrator) setRunStatus(runID string, status RunStatus, auditErr *model.AuditError) {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	if run, ok := o.runs[runID]; ok {
		run.Status = status
		run.Error = auditErr
	}
}

func (o *Orchestrator) emitRunEvent(runID string, ev RunEvent) {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	run, ok := o.runs[runID]
	if !ok || run.Events == nil || run.eventsClosed {
		return
	}

	// Non-blocking send; drop if buffer is full. Holding the mutex here is
	// safe (the channel is buffered and the send never blocks) and pairs
	// with the closed flag in finishCanceled.
	select {
	case run.Events <- ev:
	default:
	}
}

func (o *Orchestrator) setCancel(runID string, cancel context.CancelFunc) {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	o.runCancels[runID] = cancel
}

func (o *Orchestrator) deleteCancel(runID string) {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	delete(o.runCancels, runID)
}

func (o *Orchestrator) getCancel(runID string) context.CancelFunc {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	return o.runCancels[runID]
}
