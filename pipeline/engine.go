package pipeline

import (
	"context"
	"time"

	"stencilacore/telemetry"
)

// Engine abstracts durable execution of pipeline runs so the inmem and
// Temporal-backed adapters can share the same scheduling algorithm. A
// Stage collapses what a source durable-workflow system normally splits
// between a workflow and its activities: one Pipeline run is the workflow,
// and each Stage's agent call is a single durable activity invocation.
type Engine interface {
	// RegisterStageHandler binds a StageHandler to an agent name. Stages
	// whose AgentSpec.Agent matches invoke this handler when scheduled.
	RegisterStageHandler(ctx context.Context, agent string, handler StageHandler) error

	// StartRun launches a new pipeline run and returns a handle for
	// interacting with it. req.ID must be unique for the engine instance.
	StartRun(ctx context.Context, req RunStartRequest) (RunHandle, error)
}

// StageHandler executes one stage's agent call. It is the engine-agnostic
// unit of durable work a Stage resolves to; implementations typically
// render in.PromptTemplate against in.Context and invoke an llm.Client.
type StageHandler func(ctx context.Context, in *StageInput) (*Outcome, error)

// StageInput is what a StageHandler receives: the stage definition, its
// run's id, and a read-only snapshot of the shared Context at invocation
// time.
type StageInput struct {
	RunID   string
	Stage   *Stage
	Context Snapshot
}

// RunStartRequest describes how to launch a pipeline run.
type RunStartRequest struct {
	// ID is the run identifier; must be unique within the engine instance.
	ID string
	// Pipeline is the graph to execute. It is validated before the run
	// starts; a structural violation returns a Pipeline-kind error and no
	// run is started.
	Pipeline *Pipeline
	// InitialContext seeds the run's Context. A nil value starts from an
	// empty Context.
	InitialContext *Context
	// Resume, when true, rehydrates InitialContext and the start node from
	// the most recently written Checkpoint for ID instead of starting from
	// Pipeline.Start with InitialContext.
	Resume bool
	// Checkpoints persists a Checkpoint after every stage completion. A nil
	// store disables checkpointing (development/test only).
	Checkpoints CheckpointStore
	// Events receives every event the run emits. Sends are non-blocking: a
	// full channel drops the event rather than stalling the run. A nil
	// channel disables event emission.
	Events chan<- Event
}

// RunContext exposes engine operations to the generic scheduling loop
// (Run, in runner.go). It wraps engine-specific contexts (an in-process
// goroutine, a Temporal workflow.Context, etc.) behind a uniform API.
type RunContext interface {
	// Context returns the Go context for the run.
	Context() context.Context
	// RunID returns the run's identifier.
	RunID() string
	// ExecuteStage schedules a stage's agent call and returns a Future for
	// its Outcome. The engine applies req.Stage.RetryPolicy: a Retryable
	// error (per errors.IsRetryable) is retried up to MaxAttempts with
	// exponential backoff before the Future resolves to the final error.
	ExecuteStage(ctx context.Context, req StageExecutionRequest) (Future, error)
	// SignalChannel returns a channel for the given signal name, used to
	// deliver interview answers and cancellation requests.
	SignalChannel(name string) SignalChannel
	// Logger returns a logger scoped to this run.
	Logger() telemetry.Logger
	// Metrics returns a metrics recorder scoped to this run.
	Metrics() telemetry.Metrics
	// Tracer returns a tracer scoped to this run.
	Tracer() telemetry.Tracer
	// Now returns the current time in a manner safe for the engine's
	// execution model (e.g. replay-safe under Temporal).
	Now() time.Time
	// Emit publishes an event on the run's event channel, if any.
	Emit(ev Event)
	// Checkpoint persists cp via the engine's configured CheckpointStore,
	// if any, and emits CheckpointWritten on success.
	Checkpoint(ctx context.Context, cp *Checkpoint) error
}

// StageExecutionRequest names the stage to execute and the input to pass
// its StageHandler.
type StageExecutionRequest struct {
	Stage *Stage
	Input *StageInput
}

// Future represents a pending stage Outcome.
type Future interface {
	// Get blocks until the stage completes and returns its Outcome, or the
	// terminal error if retries were exhausted.
	Get(ctx context.Context) (*Outcome, error)
	// IsReady reports whether Get will return without blocking.
	IsReady() bool
}

// RunHandle lets callers interact with a running pipeline execution.
type RunHandle interface {
	// Wait blocks until the run completes and returns its final Outcome.
	Wait(ctx context.Context) (*Outcome, error)
	// Signal delivers an out-of-band message to the run, e.g. an interview
	// answer ("interview_answer") or a cancel request ("cancel").
	Signal(ctx context.Context, name string, payload any) error
	// Cancel requests cooperative cancellation: the current stage's agent
	// call is asked to stop, the run emits PipelineFailed{reason:
	// "cancelled"}, and the most recent checkpoint is preserved.
	Cancel(ctx context.Context) error
}

// SignalChannel exposes signal delivery in an engine-agnostic way.
type SignalChannel interface {
	Receive(ctx context.Context, dest any) error
	ReceiveAsync(dest any) bool
}

// Interview signal names understood by the generic scheduling loop.
const (
	SignalInterviewAnswer = "interview_answer"
	SignalCancel          = "cancel"
)
