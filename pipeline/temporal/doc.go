// Package temporal implements pipeline.Engine backed by Temporal
// (https://temporal.io), giving pipeline runs durable execution: a run's
// state survives process restarts and worker crashes, resuming from its
// Temporal event history.
//
// # Determinism
//
// Pipeline.Run (the generic scheduler shared with the inmem engine) runs
// inside the Temporal workflow function, so it must stay deterministic.
// Every side effect crosses an activity boundary: stage execution runs as
// a Temporal activity named after the stage's Agent, and checkpoint writes
// run as a dedicated activity backed by the configured CheckpointStore.
// Event emission is the one exception: it is treated as best-effort
// observability, not durable workflow state, and is delivered via a direct
// (non-activity) channel send from within the workflow function — a replay
// may re-emit or skip events, which callers should tolerate the same way
// they tolerate at-least-once activity semantics elsewhere.
//
// # Constructing an Engine
//
//	eng, err := temporal.New(temporal.Options{
//	    ClientOptions: &client.Options{HostPort: "temporal:7233", Namespace: "default"},
//	    WorkerOptions: temporal.WorkerOptions{TaskQueue: "stencila.pipeline"},
//	})
//	if err != nil { log.Fatal(err) }
//	defer eng.Close()
package temporal
