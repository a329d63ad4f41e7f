package temporal

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"stencilacore/pipeline"
	"stencilacore/telemetry"
)

type temporalRunContext struct {
	engine *Engine
	wctx   workflow.Context
	runID  string
	events chan<- pipeline.Event

	goCtx context.Context
}

// newTemporalRunContext adapts a Temporal workflow.Context into
// pipeline.RunContext. Context() is backed by a deterministic workflow.Go
// coroutine that closes a plain channel when wctx is cancelled, so
// pipeline.Run's select on rc.Context().Done() observes cancellation
// without the package depending on Temporal types.
func newTemporalRunContext(e *Engine, wctx workflow.Context, events chan<- pipeline.Event) *temporalRunContext {
	rc := &temporalRunContext{
		engine: e,
		wctx:   wctx,
		runID:  workflow.GetInfo(wctx).WorkflowExecution.ID,
		events: events,
	}
	rc.goCtx = newWorkflowGoContext(wctx)
	return rc
}

func (rc *temporalRunContext) Context() context.Context { return rc.goCtx }
func (rc *temporalRunContext) RunID() string             { return rc.runID }
func (rc *temporalRunContext) Logger() telemetry.Logger   { return rc.engine.logger }
func (rc *temporalRunContext) Metrics() telemetry.Metrics { return rc.engine.metrics }
func (rc *temporalRunContext) Tracer() telemetry.Tracer   { return rc.engine.tracer }
func (rc *temporalRunContext) Now() time.Time             { return workflow.Now(rc.wctx) }

// Emit sends ev directly to the run's event channel. This is a deliberate
// exception to strict workflow determinism (see doc.go): events are
// best-effort observability, not durable state, so a replay re-emitting or
// skipping one is acceptable.
func (rc *temporalRunContext) Emit(ev pipeline.Event) {
	if rc.events == nil {
		return
	}
	select {
	case rc.events <- ev:
	default:
	}
}

// Checkpoint runs the durable checkpoint activity so the write survives
// worker crashes; it is retried automatically by Temporal's activity retry
// machinery using the engine's default activity options.
func (rc *temporalRunContext) Checkpoint(ctx context.Context, cp *pipeline.Checkpoint) error {
	actx := workflow.WithActivityOptions(rc.wctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 5,
		},
	})
	fut := workflow.ExecuteActivity(actx, checkpointActivityName, rc.runID, cp)
	if err := fut.Get(actx, nil); err != nil {
		return normalizeTemporalError(err)
	}
	rc.Emit(&pipeline.CheckpointWrittenEvent{})
	return nil
}

// ExecuteStage schedules stage.Agent.Agent as a Temporal activity, with
// ActivityOptions derived from the stage's RetryPolicy so retries are
// handled by Temporal's own retry machinery rather than a hand-rolled loop
// (unlike the inmem engine, which owns its retry loop directly).
func (rc *temporalRunContext) ExecuteStage(_ context.Context, req pipeline.StageExecutionRequest) (pipeline.Future, error) {
	actx := workflow.WithActivityOptions(rc.wctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         convertRetryPolicy(req.Stage.RetryPolicy),
	})
	fut := workflow.ExecuteActivity(actx, req.Stage.Agent.Agent, req.Input)
	return &temporalFuture{future: fut, ctx: actx}, nil
}

func (rc *temporalRunContext) SignalChannel(name string) pipeline.SignalChannel {
	return &temporalSignalChannel{ctx: rc.wctx, ch: workflow.GetSignalChannel(rc.wctx, name)}
}

type temporalFuture struct {
	future workflow.Future
	ctx    workflow.Context
}

func (f *temporalFuture) Get(_ context.Context) (*pipeline.Outcome, error) {
	var out *pipeline.Outcome
	if err := f.future.Get(f.ctx, &out); err != nil {
		return nil, normalizeTemporalError(err)
	}
	return out, nil
}

func (f *temporalFuture) IsReady() bool { return f.future.IsReady() }

type temporalSignalChannel struct {
	ctx workflow.Context
	ch  workflow.ReceiveChannel
}

func (s *temporalSignalChannel) Receive(_ context.Context, dest any) error {
	s.ch.Receive(s.ctx, dest)
	return nil
}

func (s *temporalSignalChannel) ReceiveAsync(dest any) bool {
	return s.ch.ReceiveAsync(dest)
}

// normalizeTemporalError translates Temporal cancellation errors to
// context.Canceled so errors.IsRetryable/IsTerminal classification doesn't
// need to depend on Temporal SDK error types.
func normalizeTemporalError(err error) error {
	if err == nil {
		return nil
	}
	if temporal.IsCanceledError(err) {
		return context.Canceled
	}
	return err
}

// newWorkflowGoContext returns a context.Context whose Done() channel
// closes when wctx is cancelled. A workflow.Go coroutine selects on wctx's
// own Done() channel (deterministic: driven by the workflow's replay-safe
// cancellation signal, not wall-clock time) and closes a plain Go channel
// in response, which is itself a safe, non-blocking operation under
// Temporal's cooperative scheduler.
func newWorkflowGoContext(wctx workflow.Context) context.Context {
	done := make(chan struct{})
	gc := &workflowGoContext{done: done}
	workflow.Go(wctx, func(ctx workflow.Context) {
		sel := workflow.NewSelector(ctx)
		sel.AddReceive(ctx.Done(), func(workflow.ReceiveChannel, bool) {})
		sel.Select(ctx)
		gc.err = ctx.Err()
		close(done)
	})
	return gc
}

type workflowGoContext struct {
	done chan struct{}
	err  error
}

func (c *workflowGoContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (c *workflowGoContext) Done() <-chan struct{}       { return c.done }
func (c *workflowGoContext) Err() error                  { return c.err }
func (c *workflowGoContext) Value(any) any                { return nil }
