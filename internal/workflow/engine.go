package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/irevahq/payments/internal/domain/model"
	"github.com/irevahq/payments/internal/domain/repository"
)

// ErrWorkflowNotFound is returned for operations on an unknown workflow id
var ErrWorkflowNotFound = errors.New("workflow not found")

// Func is a registered workflow definition. It runs steps through the
// RunContext and returns the terminal output. Every step's side effect must
// be idempotent via a natural key, so re-executing after a crash is safe.
type Func func(rc *RunContext, input model.JSONB) (model.JSONB, error)

// RetryPolicy bounds per-step retries with exponential backoff
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxAttempts     int
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxAttempts:     5,
	}
}

// PermanentError marks a step failure that must not be retried
// (business-rule failures such as an exceeded property cap).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps an error so the retry loop fails the step immediately
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

type runState struct {
	cancel   context.CancelFunc
	done     chan struct{}
	canceled bool
}

// Engine executes registered workflows in-process, backed by persisted
// WorkflowRun records. The persisted record is authoritative: idempotent
// start rides on the run id being the primary key, and interrupted runs are
// resumed from their durable state at the next boot.
type Engine struct {
	repo   repository.WorkflowRunRepository
	retry  RetryPolicy
	logger *zap.Logger

	mu   sync.Mutex
	runs map[string]*runState
	defs map[string]Func

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewEngine creates a workflow engine
func NewEngine(repo repository.WorkflowRunRepository, retry RetryPolicy, logger *zap.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		repo:       repo,
		retry:      retry,
		logger:     logger,
		runs:       make(map[string]*runState),
		defs:       make(map[string]Func),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// Register binds a workflow kind to its definition. Must be called before
// Start or Resume for that kind.
func (e *Engine) Register(kind string, fn Func) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defs[kind] = fn
}

// Start begins the workflow, or resolves to the existing run when the id was
// already started.
func (e *Engine) Start(ctx context.Context, kind, workflowID string, input model.JSONB) (Handle, error) {
	e.mu.Lock()
	_, registered := e.defs[kind]
	e.mu.Unlock()
	if !registered {
		return nil, fmt.Errorf("unregistered workflow kind: %s", kind)
	}

	run := &model.WorkflowRun{
		ID:     workflowID,
		Kind:   kind,
		Input:  input,
		Status: model.WorkflowStatusRunning,
	}

	existing, created, err := e.repo.Insert(ctx, run)
	if err != nil {
		return nil, err
	}

	if !created {
		// Already started. A non-terminal run without an in-process state is
		// an interrupted run from a previous boot; relaunch it.
		if !existing.Status.IsTerminal() {
			e.launch(existing)
		}
		return e.GetHandle(workflowID), nil
	}

	e.launch(run)

	e.logger.Info("Workflow started",
		zap.String("workflow_id", workflowID),
		zap.String("kind", kind))

	return e.GetHandle(workflowID), nil
}

// GetHandle returns a handle to an existing run without starting anything
func (e *Engine) GetHandle(workflowID string) Handle {
	return &engineHandle{engine: e, id: workflowID}
}

// Result blocks until the run reaches a terminal state or ctx expires
func (e *Engine) Result(ctx context.Context, workflowID string) (*Result, error) {
	return e.GetHandle(workflowID).Result(ctx)
}

// Cancel requests cooperative cancellation. In-flight steps observe the
// canceled context at their next suspension point; effects already applied
// stay applied (steps are idempotent checkpoints, never half-rolled-back).
func (e *Engine) Cancel(ctx context.Context, workflowID string) error {
	e.mu.Lock()
	state, ok := e.runs[workflowID]
	if ok {
		state.canceled = true
		state.cancel()
	}
	e.mu.Unlock()

	if ok {
		e.logger.Info("Workflow cancellation requested",
			zap.String("workflow_id", workflowID))
		return nil
	}

	run, err := e.repo.Get(ctx, workflowID)
	if err != nil {
		return err
	}
	if run == nil {
		return ErrWorkflowNotFound
	}
	if run.Status.IsTerminal() {
		return nil
	}

	// Interrupted run from a previous boot; cancel it directly.
	reason := "canceled"
	return e.repo.Finish(ctx, workflowID, model.WorkflowStatusCanceled, nil, &reason)
}

// Query returns the persisted state of a run, or nil
func (e *Engine) Query(ctx context.Context, workflowID string) (*model.WorkflowRun, error) {
	return e.repo.Get(ctx, workflowID)
}

// Resume relaunches runs that were interrupted by a previous shutdown.
// Idempotent steps make re-execution from the top safe.
func (e *Engine) Resume(ctx context.Context) error {
	runs, err := e.repo.ListRunning(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to resume workflows: %w", err)
	}

	for _, run := range runs {
		e.mu.Lock()
		_, registered := e.defs[run.Kind]
		e.mu.Unlock()
		if !registered {
			e.logger.Warn("Skipping resume of unregistered workflow kind",
				zap.String("workflow_id", run.ID),
				zap.String("kind", run.Kind))
			continue
		}
		e.launch(run)
		e.logger.Info("Workflow resumed",
			zap.String("workflow_id", run.ID),
			zap.String("kind", run.Kind),
			zap.String("current_step", run.CurrentStep))
	}
	return nil
}

// Shutdown stops accepting cancellations, interrupts in-flight runs, and
// waits for them to settle. Interrupted runs stay in running status and are
// picked up by Resume at the next boot.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.baseCancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) launch(run *model.WorkflowRun) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, running := e.runs[run.ID]; running {
		return
	}

	ctx, cancel := context.WithCancel(e.baseCtx)
	state := &runState{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	e.runs[run.ID] = state
	fn := e.defs[run.Kind]

	e.wg.Add(1)
	go e.execute(ctx, state, run, fn)
}

func (e *Engine) execute(ctx context.Context, state *runState, run *model.WorkflowRun, fn Func) {
	defer e.wg.Done()
	defer close(state.done)
	defer func() {
		e.mu.Lock()
		delete(e.runs, run.ID)
		e.mu.Unlock()
	}()

	rc := &RunContext{
		ctx:        ctx,
		workflowID: run.ID,
		engine:     e,
	}

	output, err := fn(rc, run.Input)
	if err == nil {
		if finishErr := e.repo.Finish(context.Background(), run.ID, model.WorkflowStatusCompleted, output, nil); finishErr != nil {
			e.logger.Error("Failed to record workflow completion",
				zap.String("workflow_id", run.ID),
				zap.Error(finishErr))
		}
		return
	}

	if errors.Is(err, context.Canceled) {
		e.mu.Lock()
		canceled := state.canceled
		e.mu.Unlock()

		if canceled {
			reason := "canceled"
			if finishErr := e.repo.Finish(context.Background(), run.ID, model.WorkflowStatusCanceled, nil, &reason); finishErr != nil {
				e.logger.Error("Failed to record workflow cancellation",
					zap.String("workflow_id", run.ID),
					zap.Error(finishErr))
			}
			return
		}

		// Engine shutdown, not a user cancel: leave the run in running
		// status so the next boot resumes it.
		e.logger.Info("Workflow interrupted by shutdown, will resume",
			zap.String("workflow_id", run.ID))
		return
	}

	reason := err.Error()
	e.logger.Warn("Workflow failed",
		zap.String("workflow_id", run.ID),
		zap.String("kind", run.Kind),
		zap.String("reason", reason))
	if finishErr := e.repo.Finish(context.Background(), run.ID, model.WorkflowStatusFailed, nil, &reason); finishErr != nil {
		e.logger.Error("Failed to record workflow failure",
			zap.String("workflow_id", run.ID),
			zap.Error(finishErr))
	}
}

// RunContext is passed to workflow definitions; it carries the run's
// cancellation context and the step execution helper.
type RunContext struct {
	ctx        context.Context
	workflowID string
	engine     *Engine
}

// Context returns the run's cancellation context
func (rc *RunContext) Context() context.Context { return rc.ctx }

// WorkflowID returns the id of the executing run
func (rc *RunContext) WorkflowID() string { return rc.workflowID }

// Logger returns the engine logger
func (rc *RunContext) Logger() *zap.Logger { return rc.engine.logger }

// Step runs one named step under the engine's retry policy. The step name is
// persisted before execution so an interrupted run records where it stopped.
// A PermanentError fails the step without further attempts; cancellation is
// observed between attempts.
func (rc *RunContext) Step(name string, fn func(ctx context.Context) error) error {
	if err := rc.ctx.Err(); err != nil {
		return err
	}

	if err := rc.engine.repo.SetStep(rc.ctx, rc.workflowID, name); err != nil {
		rc.engine.logger.Warn("Failed to persist workflow step",
			zap.String("workflow_id", rc.workflowID),
			zap.String("step", name),
			zap.Error(err))
	}

	policy := rc.engine.retry
	backoff := policy.InitialInterval

	for attempt := 1; ; attempt++ {
		if err := rc.ctx.Err(); err != nil {
			return err
		}

		err := fn(rc.ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) {
			return err
		}

		var perm *PermanentError
		if errors.As(err, &perm) {
			return fmt.Errorf("step %s: %w", name, perm.Err)
		}

		if attempt >= policy.MaxAttempts {
			return fmt.Errorf("step %s failed after %d attempts: %w", name, attempt, err)
		}

		rc.engine.logger.Warn("Workflow step failed, retrying",
			zap.String("workflow_id", rc.workflowID),
			zap.String("step", name),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-rc.ctx.Done():
			return rc.ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * policy.Multiplier)
		if backoff > policy.MaxInterval {
			backoff = policy.MaxInterval
		}
	}
}

type engineHandle struct {
	engine *Engine
	id     string
}

func (h *engineHandle) WorkflowID() string { return h.id }

// Result blocks until the run finishes or ctx expires. An expiry returns the
// context error; callers treat that as "unknown, check again later".
func (h *engineHandle) Result(ctx context.Context) (*Result, error) {
	h.engine.mu.Lock()
	state, inProcess := h.engine.runs[h.id]
	h.engine.mu.Unlock()

	if inProcess {
		select {
		case <-state.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// Poll the persisted record; it is authoritative either way.
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		result, err := h.load(ctx)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// load returns the terminal result, or nil while the run is still going
func (h *engineHandle) load(ctx context.Context) (*Result, error) {
	run, err := h.engine.repo.Get(ctx, h.id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrWorkflowNotFound
	}
	if !run.Status.IsTerminal() {
		return nil, nil
	}

	result := &Result{
		WorkflowID: run.ID,
		Status:     run.Status,
		Output:     run.Result,
	}
	if run.FailureReason != nil {
		result.FailureReason = *run.FailureReason
	}
	return result, nil
}
