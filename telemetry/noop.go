package telemetry

import (
	"context"
	"time"
)

type (
	noopLogger  struct{}
	noopMetrics struct{}
	noopTracer  struct{}
)

// NewNoopLogger returns a Logger that discards everything, used in tests and
// as a safe default when no logging backend is configured.
func NewNoopLogger() Logger { return noopLogger{} }

// NewNoopMetrics returns a Metrics that discards everything.
func NewNoopMetrics() Metrics { return noopMetrics{} }

// NewNoopTracer returns a Tracer that never samples.
func NewNoopTracer() Tracer { return noopTracer{} }

func (noopLogger) Debug(context.Context, string, ...any) {}
func (noopLogger) Info(context.Context, string, ...any)  {}
func (noopLogger) Warn(context.Context, string, ...any)  {}
func (noopLogger) Error(context.Context, string, ...any) {}

func (noopMetrics) IncCounter(context.Context, string, ...any)                      {}
func (noopMetrics) ObserveDuration(context.Context, string, time.Duration, ...any) {}
func (noopMetrics) SetGauge(context.Context, string, float64, ...any)              {}

func (noopTracer) StartSpan(ctx context.Context, _ string) (context.Context, func()) {
	return ctx, func() {}
}
