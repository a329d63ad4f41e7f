package pipeline

import "github.com/google/uuid"

// NewRunID allocates a fresh run identifier, following the same short-form
// convention as schema.NewNodeId: an 8-character slice of a UUIDv4 behind a
// kind prefix, so run ids stay readable in logs and checkpoint filenames
// while remaining collision-safe across processes.
func NewRunID() string {
	return "run_" + uuid.New().String()[:8]
}
