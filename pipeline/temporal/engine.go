package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/interceptor"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	coreerrors "stencilacore/errors"
	"stencilacore/pipeline"
	"stencilacore/telemetry"
)

const pipelineWorkflowName = "StencilaPipelineRun"
const checkpointActivityName = "stencila.pipeline.checkpoint"

// Options configures the Temporal engine adapter. Either Client or
// ClientOptions must be provided, along with a default TaskQueue.
type Options struct {
	Client        client.Client
	ClientOptions *client.Options
	WorkerOptions WorkerOptions

	Instrumentation        InstrumentationOptions
	DisableWorkerAutoStart bool

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer

	// Checkpoints persists Checkpoints via the durable checkpoint activity.
	// A nil store disables checkpointing.
	Checkpoints pipeline.CheckpointStore
}

// WorkerOptions configures the single worker the engine manages. Unlike a
// multi-queue deployment, every stage handler and the pipeline workflow run
// on this one task queue; this is a deliberate simplification over a
// per-queue worker pool, appropriate for a pipeline engine where stage
// count (not queue topology) is the scaling axis.
type WorkerOptions struct {
	TaskQueue string
	Options   worker.Options
}

// InstrumentationOptions configures OTEL tracing/metrics interceptors,
// enabled by default.
type InstrumentationOptions struct {
	DisableTracing  bool
	DisableMetrics  bool
	TracerOptions   temporalotel.TracerOptions
	MetricsOptions  temporalotel.MetricsHandlerOptions
}

// Engine implements pipeline.Engine using Temporal as the durable execution
// backend. One Temporal workflow type (pipelineWorkflowName) runs
// pipeline.Run for every pipeline graph; each stage's agent name becomes a
// Temporal activity name, registered as handlers are added via
// RegisterStageHandler.
type Engine struct {
	client      client.Client
	closeClient bool

	defaultQueue      string
	workerOpts        worker.Options
	autoStartDisabled bool

	logger      telemetry.Logger
	metrics     telemetry.Metrics
	tracer      telemetry.Tracer
	checkpoints pipeline.CheckpointStore

	mu            sync.Mutex
	w             worker.Worker
	workerStarted bool
	handlers      map[string]pipeline.StageHandler

	runs sync.Map // runID -> chan<- pipeline.Event
}

// New constructs a Temporal engine adapter.
func New(opts Options) (*Engine, error) {
	if opts.WorkerOptions.TaskQueue == "" {
		return nil, fmt.Errorf("temporal pipeline engine: a default task queue is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}

	inst, err := configureInstrumentation(opts.Instrumentation)
	if err != nil {
		return nil, err
	}

	cli := opts.Client
	closeClient := false
	if cli == nil {
		if opts.ClientOptions == nil {
			return nil, fmt.Errorf("temporal pipeline engine: client options are required when Client is nil")
		}
		clientOpts := *opts.ClientOptions
		applyClientInstrumentation(&clientOpts, inst)
		cli, err = client.NewLazyClient(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("temporal pipeline engine: create client: %w", err)
		}
		closeClient = true
	}

	workerOpts := opts.WorkerOptions.Options
	applyWorkerInstrumentation(&workerOpts, inst)

	e := &Engine{
		client:            cli,
		closeClient:       closeClient,
		defaultQueue:      opts.WorkerOptions.TaskQueue,
		workerOpts:        workerOpts,
		autoStartDisabled: opts.DisableWorkerAutoStart,
		logger:            logger,
		metrics:           metrics,
		tracer:            tracer,
		checkpoints:       opts.Checkpoints,
		handlers:          make(map[string]pipeline.StageHandler),
	}

	w := worker.New(e.client, e.defaultQueue, e.workerOpts)
	w.RegisterWorkflowWithOptions(e.pipelineWorkflow, workflow.RegisterOptions{Name: pipelineWorkflowName})
	w.RegisterActivityWithOptions(e.checkpointActivity, activity.RegisterOptions{Name: checkpointActivityName})
	e.w = w

	return e, nil
}

// RegisterStageHandler binds handler to agent and registers it as a
// Temporal activity named agent, so stages whose AgentSpec.Agent matches
// invoke it durably (retried per the stage's RetryPolicy, converted to a
// Temporal retry policy).
func (e *Engine) RegisterStageHandler(_ context.Context, agent string, handler pipeline.StageHandler) error {
	if agent == "" || handler == nil {
		return fmt.Errorf("temporal pipeline engine: invalid stage handler registration")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.handlers[agent]; dup {
		return fmt.Errorf("temporal pipeline engine: stage handler for agent %q already registered", agent)
	}
	e.handlers[agent] = handler
	e.w.RegisterActivityWithOptions(func(actx context.Context, in *pipeline.StageInput) (*pipeline.Outcome, error) {
		out, err := handler(actx, in)
		if err != nil && !coreerrors.IsRetryable(err) {
			return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), string(coreerrors.KindOf(err)), err)
		}
		return out, err
	}, activity.RegisterOptions{Name: agent})
	return nil
}

type runInput struct {
	Pipeline  *pipeline.Pipeline
	Start     []pipeline.StageID
	Context   pipeline.Snapshot
	Completed []pipeline.StageID
	Retries   map[string]uint32
}

// StartRun launches a new pipeline run as a Temporal workflow execution.
// Checkpoints are written only to Options.Checkpoints; req.Checkpoints, when
// set, is used only to read the checkpoint a Resume starts from.
func (e *Engine) StartRun(ctx context.Context, req pipeline.RunStartRequest) (pipeline.RunHandle, error) {
	if req.ID == "" {
		return nil, fmt.Errorf("temporal pipeline engine: run id is required")
	}
	if req.Pipeline == nil {
		return nil, fmt.Errorf("temporal pipeline engine: pipeline is required")
	}
	if err := req.Pipeline.Validate(); err != nil {
		return nil, err
	}
	if !e.autoStartDisabled {
		e.ensureWorkerStarted()
	}

	start := []pipeline.StageID{req.Pipeline.Start}
	var snap pipeline.Snapshot
	if req.InitialContext != nil {
		snap = req.InitialContext.Snapshot()
	}
	var completed []pipeline.StageID
	retries := map[string]uint32{}

	store := req.Checkpoints
	if store == nil {
		store = e.checkpoints
	}
	if req.Resume && store != nil {
		if cp, err := store.Read(ctx, req.ID); err == nil && cp != nil {
			start = []pipeline.StageID{cp.CurrentNode}
			snap = cp.Context
			completed = cp.CompletedNodes
			retries = cp.NodeRetries
		}
	}

	if req.Events != nil {
		e.runs.Store(req.ID, req.Events)
	}

	opts := client.StartWorkflowOptions{ID: req.ID, TaskQueue: e.defaultQueue}
	run, err := e.client.ExecuteWorkflow(ctx, opts, pipelineWorkflowName, runInput{
		Pipeline:  req.Pipeline,
		Start:     start,
		Context:   snap,
		Completed: completed,
		Retries:   retries,
	})
	if err != nil {
		e.runs.Delete(req.ID)
		return nil, err
	}

	return &runHandle{run: run, client: e.client, engine: e, runID: req.ID}, nil
}

// Worker returns a controller for manually starting the engine's worker
// when DisableWorkerAutoStart is set.
func (e *Engine) Worker() *WorkerController { return &WorkerController{engine: e} }

// Close shuts down the Temporal client if the engine created it.
//
//nolint:unparam // error return kept for interface symmetry with the inmem engine.
func (e *Engine) Close() error {
	if e.closeClient && e.client != nil {
		e.client.Close()
	}
	return nil
}

func (e *Engine) ensureWorkerStarted() {
	e.mu.Lock()
	if e.workerStarted {
		e.mu.Unlock()
		return
	}
	e.workerStarted = true
	w := e.w
	e.mu.Unlock()
	go func() {
		if err := w.Run(worker.InterruptCh()); err != nil {
			e.logger.Error(context.Background(), "temporal pipeline worker exited", "err", err)
		}
	}()
}

// WorkerController manages the engine's single worker lifecycle.
type WorkerController struct{ engine *Engine }

//nolint:unparam // error return kept for interface symmetry; starting never fails synchronously.
func (c *WorkerController) Start() error {
	c.engine.ensureWorkerStarted()
	return nil
}

func (c *WorkerController) Stop() { c.engine.w.Stop() }

func (e *Engine) pipelineWorkflow(wctx workflow.Context, in runInput) (*pipeline.Outcome, error) {
	events, _ := e.runs.Load(workflow.GetInfo(wctx).WorkflowExecution.ID)
	var eventsCh chan<- pipeline.Event
	if events != nil {
		eventsCh, _ = events.(chan<- pipeline.Event)
	}
	rc := newTemporalRunContext(e, wctx, eventsCh)
	ctxState := pipeline.FromSnapshot(in.Context)
	return pipeline.Run(rc, in.Pipeline, in.Start, ctxState, in.Completed, in.Retries)
}

func (e *Engine) checkpointActivity(ctx context.Context, runID string, cp *pipeline.Checkpoint) error {
	if e.checkpoints == nil {
		return nil
	}
	return e.checkpoints.Write(ctx, runID, cp)
}

func configureInstrumentation(opts InstrumentationOptions) (*instrumentation, error) {
	inst := &instrumentation{}
	if !opts.DisableTracing {
		tracer, err := temporalotel.NewTracingInterceptor(opts.TracerOptions)
		if err != nil {
			return nil, fmt.Errorf("temporal pipeline engine: configure tracing interceptor: %w", err)
		}
		inst.tracer = tracer
	}
	if !opts.DisableMetrics {
		inst.metrics = temporalotel.NewMetricsHandler(opts.MetricsOptions)
	}
	if inst.tracer == nil && inst.metrics == nil {
		return nil, nil
	}
	return inst, nil
}

type instrumentation struct {
	tracer  interceptor.Interceptor
	metrics client.MetricsHandler
}

func applyClientInstrumentation(opts *client.Options, inst *instrumentation) {
	if inst == nil {
		return
	}
	if inst.tracer != nil {
		opts.Interceptors = append(opts.Interceptors, inst.tracer)
	}
	if inst.metrics != nil && opts.MetricsHandler == nil {
		opts.MetricsHandler = inst.metrics
	}
}

func applyWorkerInstrumentation(opts *worker.Options, inst *instrumentation) {
	if inst == nil {
		return
	}
	if inst.tracer != nil {
		opts.Interceptors = append(opts.Interceptors, inst.tracer)
	}
}

func convertRetryPolicy(r pipeline.RetryPolicy) *temporalsdk.RetryPolicy {
	if r.MaxAttempts == 0 && r.InitialBackoffMS == 0 {
		return nil
	}
	policy := &temporalsdk.RetryPolicy{}
	if r.MaxAttempts > 0 {
		//nolint:gosec // MaxAttempts is a small positive stage config value.
		policy.MaximumAttempts = int32(r.MaxAttempts)
	}
	if r.InitialBackoffMS > 0 {
		policy.InitialInterval = time.Duration(r.InitialBackoffMS) * time.Millisecond
	}
	if r.MaxBackoffMS > 0 {
		policy.MaximumInterval = time.Duration(r.MaxBackoffMS) * time.Millisecond
	}
	return policy
}

type runHandle struct {
	run    client.WorkflowRun
	client client.Client
	engine *Engine
	runID  string
}

func (h *runHandle) Wait(ctx context.Context) (*pipeline.Outcome, error) {
	defer h.engine.runs.Delete(h.runID)
	var out *pipeline.Outcome
	if err := h.run.Get(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *runHandle) Signal(ctx context.Context, name string, payload any) error {
	return h.client.SignalWorkflow(ctx, h.run.GetID(), h.run.GetRunID(), name, payload)
}

func (h *runHandle) Cancel(ctx context.Context) error {
	return h.client.CancelWorkflow(ctx, h.run.GetID(), h.run.GetRunID())
}
