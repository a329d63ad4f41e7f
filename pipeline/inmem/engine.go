// Package inmem provides a single-process, non-durable implementation of
// pipeline.Engine suitable for local development, tests, and simple
// single-process runs. It is not crash-safe beyond whatever CheckpointStore
// the caller configures and should not be used as the only durability layer
// in production; see pipeline/temporal for that.
package inmem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"sync"
	"time"

	"stencilacore/pipeline"
	"stencilacore/telemetry"

	coreerrors "stencilacore/errors"
)

type (
	eng struct {
		mu       sync.RWMutex
		handlers map[string]pipeline.StageHandler
	}

	handle struct {
		mu     sync.Mutex
		done   chan struct{}
		err    error
		result *pipeline.Outcome
		rc     *runContext
	}

	runContext struct {
		ctx     context.Context
		cancel  context.CancelFunc
		runID   string
		logger  telemetry.Logger
		metrics telemetry.Metrics
		tracer  telemetry.Tracer
		eng     *eng
		events  chan<- pipeline.Event
		store   pipeline.CheckpointStore

		sigMu *sync.Mutex
		sigs  map[string]*signalChan
	}

	future struct {
		mu     sync.Mutex
		ready  chan struct{}
		result *pipeline.Outcome
		err    error
	}

	signalChan struct{ ch chan any }
)

// New returns a new in-memory Engine implementation.
func New() pipeline.Engine {
	return &eng{}
}

func (e *eng) RegisterStageHandler(_ context.Context, agent string, handler pipeline.StageHandler) error {
	if agent == "" || handler == nil {
		return errors.New("invalid stage handler registration")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[string]pipeline.StageHandler)
	}
	if _, dup := e.handlers[agent]; dup {
		return fmt.Errorf("stage handler for agent %q already registered", agent)
	}
	e.handlers[agent] = handler
	return nil
}

func (e *eng) StartRun(ctx context.Context, req pipeline.RunStartRequest) (pipeline.RunHandle, error) {
	if req.ID == "" {
		return nil, errors.New("run id is required")
	}
	if req.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if err := req.Pipeline.Validate(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	rc := &runContext{
		ctx:     runCtx,
		cancel:  cancel,
		runID:   req.ID,
		logger:  telemetry.NewNoopLogger(),
		metrics: telemetry.NewNoopMetrics(),
		tracer:  telemetry.NewNoopTracer(),
		eng:     e,
		events:  req.Events,
		store:   req.Checkpoints,
		sigMu:   &sync.Mutex{},
		sigs:    make(map[string]*signalChan),
	}
	h := &handle{done: make(chan struct{}), rc: rc}

	start := []pipeline.StageID{req.Pipeline.Start}
	initial := req.InitialContext
	var completed []pipeline.StageID
	retries := map[string]uint32{}

	if req.Resume && req.Checkpoints != nil {
		cp, err := req.Checkpoints.Read(ctx, req.ID)
		if err == nil && cp != nil {
			start = []pipeline.StageID{cp.CurrentNode}
			initial = pipeline.FromSnapshot(cp.Context)
			completed = cp.CompletedNodes
			retries = cp.NodeRetries
		}
	}

	go func() {
		defer close(h.done)
		defer cancel()
		outcome, err := pipeline.Run(rc, req.Pipeline, start, initial, completed, retries)
		h.mu.Lock()
		h.result = outcome
		h.err = err
		h.mu.Unlock()
	}()

	return h, nil
}

func (h *handle) Wait(ctx context.Context) (*pipeline.Outcome, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, h.err
	}
}

func (h *handle) Signal(ctx context.Context, name string, payload any) error {
	ch := h.rc.SignalChannel(name).(*signalChan)
	select {
	case ch.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return errors.New("run completed")
	}
}

// Cancel requests cooperative cancellation: it cancels the run's context
// directly (rather than only queuing a signal) so a stage blocked in its
// agent call observes ctx.Done() immediately.
func (h *handle) Cancel(ctx context.Context) error {
	h.rc.cancel()
	return nil
}

func (rc *runContext) Context() context.Context { return rc.ctx }
func (rc *runContext) RunID() string            { return rc.runID }
func (rc *runContext) Logger() telemetry.Logger   { return rc.logger }
func (rc *runContext) Metrics() telemetry.Metrics { return rc.metrics }
func (rc *runContext) Tracer() telemetry.Tracer   { return rc.tracer }
func (rc *runContext) Now() time.Time             { return time.Now() }

func (rc *runContext) Emit(ev pipeline.Event) {
	if rc.events == nil {
		return
	}
	select {
	case rc.events <- ev:
	default:
	}
}

func (rc *runContext) Checkpoint(ctx context.Context, cp *pipeline.Checkpoint) error {
	if rc.store == nil {
		return nil
	}
	if err := rc.store.Write(ctx, rc.runID, cp); err != nil {
		return err
	}
	rc.Emit(&pipeline.CheckpointWrittenEvent{Path: rc.runID})
	return nil
}

func (rc *runContext) SignalChannel(name string) pipeline.SignalChannel {
	rc.sigMu.Lock()
	defer rc.sigMu.Unlock()
	ch, ok := rc.sigs[name]
	if !ok {
		ch = &signalChan{ch: make(chan any, 1)}
		rc.sigs[name] = ch
	}
	return ch
}

// ExecuteStage looks up the StageHandler registered for the stage's agent
// and runs it under the stage's RetryPolicy: a Retryable error (per
// errors.IsRetryable) is retried with exponential backoff (±10% jitter) up to
// MaxAttempts, emitting StageRetrying before each retry; any other error
// (or a retryable error that exhausts its attempts) resolves the Future.
func (rc *runContext) ExecuteStage(ctx context.Context, req pipeline.StageExecutionRequest) (pipeline.Future, error) {
	rc.eng.mu.RLock()
	handler, ok := rc.eng.handlers[req.Stage.Agent.Agent]
	rc.eng.mu.RUnlock()
	if !ok {
		return nil, coreerrors.Newf(coreerrors.KindHandlerFailed, "no stage handler registered for agent %q", req.Stage.Agent.Agent)
	}

	f := &future{ready: make(chan struct{})}
	policy := req.Stage.RetryPolicy
	go func() {
		defer close(f.ready)
		maxAttempts := policy.MaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = 1
		}
		var lastErr error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			outcome, err := handler(ctx, req.Input)
			if err == nil {
				f.mu.Lock()
				f.result = outcome
				f.mu.Unlock()
				return
			}
			lastErr = err
			if !coreerrors.IsRetryable(err) || attempt >= maxAttempts {
				break
			}
			rc.Emit(&pipeline.StageRetryingEvent{Attempt: attempt, Max: maxAttempts})
			backoff := backoffFor(policy, attempt)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = maxAttempts
			}
		}
		f.mu.Lock()
		f.err = lastErr
		f.mu.Unlock()
	}()
	return f, nil
}

func backoffFor(policy pipeline.RetryPolicy, attempt int) time.Duration {
	initial := policy.InitialBackoffMS
	if initial <= 0 {
		initial = 200
	}
	maxMS := policy.MaxBackoffMS
	if maxMS <= 0 {
		maxMS = 5000
	}
	backoff := float64(initial) * math.Pow(2, float64(attempt-1))
	if backoff > float64(maxMS) {
		backoff = float64(maxMS)
	}
	jitter := backoff * 0.1 * (rand.Float64()*2 - 1) //nolint:gosec // jitter doesn't need crypto rand
	backoff += jitter
	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff) * time.Millisecond
}

func (f *future) Get(ctx context.Context) (*pipeline.Outcome, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.ready:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.result, f.err
	}
}

func (f *future) IsReady() bool {
	select {
	case <-f.ready:
		return true
	default:
		return false
	}
}

func (s *signalChan) Receive(ctx context.Context, dest any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case v := <-s.ch:
		assignResult(dest, v)
		return nil
	}
}

func (s *signalChan) ReceiveAsync(dest any) bool {
	select {
	case v := <-s.ch:
		assignResult(dest, v)
		return true
	default:
		return false
	}
}

func assignResult(dst any, src any) {
	if dst == nil || src == nil {
		return
	}
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return
	}
	sv := reflect.ValueOf(src)
	if sv.IsValid() && sv.Type().AssignableTo(dv.Elem().Type()) {
		dv.Elem().Set(sv)
		return
	}
	if dv.Elem().Kind() == reflect.Interface && sv.Type().Implements(dv.Elem().Type()) {
		dv.Elem().Set(sv)
		return
	}
}
