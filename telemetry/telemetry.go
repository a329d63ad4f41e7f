// Package telemetry defines the logging, metrics, and tracing capability
// set used throughout the core. Components accept these interfaces rather
// than importing a concrete backend, so tests can inject the no-op
// implementation and production wiring can inject the clue/OTEL backend.
package telemetry

import (
	"context"
	"time"
)

type (
	// Logger emits structured, leveled log lines.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters, gauges, and histograms scoped to the core.
	Metrics interface {
		// IncCounter increments a named counter by one, tagged with keyvals.
		IncCounter(ctx context.Context, name string, keyvals ...any)
		// ObserveDuration records a duration against a named histogram.
		ObserveDuration(ctx context.Context, name string, d time.Duration, keyvals ...any)
		// SetGauge records an instantaneous value against a named gauge.
		SetGauge(ctx context.Context, name string, value float64, keyvals ...any)
	}

	// Tracer creates spans for request/stage-scoped tracing.
	Tracer interface {
		// StartSpan starts a span named name and returns a context carrying it
		// plus a function that ends the span.
		StartSpan(ctx context.Context, name string) (context.Context, func())
	}
)
