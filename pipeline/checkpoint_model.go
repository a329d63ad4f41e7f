package pipeline

import (
	"context"
	"time"
)

// Checkpoint is the authoritative resume state for a pipeline run, written
// after each stage completion: {timestamp, current_node, completed_nodes,
// node_retries, context:{values, logs}}. No other state need be preserved
// between runs: a resumed run starts from CurrentNode with Context
// rehydrated from the snapshot.
type Checkpoint struct {
	Timestamp      time.Time          `json:"timestamp"`
	CurrentNode    StageID            `json:"current_node"`
	CompletedNodes []StageID          `json:"completed_nodes"`
	NodeRetries    map[string]uint32  `json:"node_retries"`
	Context        Snapshot           `json:"context"`
}

// CheckpointStore persists and loads Checkpoints for a run. Implementations
// must make Write atomic: a reader must never observe a partially written
// checkpoint. The pipeline package depends only on this interface; the
// checkpoint and checkpoint/mongo subpackages provide concrete backends so
// callers can wire either without the pipeline package importing them.
type CheckpointStore interface {
	Write(ctx context.Context, runID string, cp *Checkpoint) error
	Read(ctx context.Context, runID string) (*Checkpoint, error)
}
