package checkpoint_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	coreerrors "stencilacore/errors"
	"stencilacore/pipeline"
	"stencilacore/pipeline/checkpoint"
)

func TestFileStoreWriteThenReadRoundTrips(t *testing.T) {
	store := checkpoint.NewFileStore(t.TempDir())
	cp := &pipeline.Checkpoint{
		Timestamp:      time.Unix(1700000000, 0).UTC(),
		CurrentNode:    "summarize",
		CompletedNodes: []pipeline.StageID{"fetch"},
		NodeRetries:    map[string]uint32{"fetch": 1},
		Context:        pipeline.Snapshot{Values: map[string]json.RawMessage{}, Logs: []string{"started"}},
	}

	require.NoError(t, store.Write(context.Background(), "run-1", cp))

	got, err := store.Read(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, cp.CurrentNode, got.CurrentNode)
	require.Equal(t, cp.CompletedNodes, got.CompletedNodes)
	require.Equal(t, cp.NodeRetries, got.NodeRetries)
	require.Equal(t, cp.Context.Logs, got.Context.Logs)
	require.True(t, cp.Timestamp.Equal(got.Timestamp))
}

func TestFileStoreWriteOverwritesPreviousCheckpoint(t *testing.T) {
	store := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, store.Write(context.Background(), "run-1", &pipeline.Checkpoint{CurrentNode: "a"}))
	require.NoError(t, store.Write(context.Background(), "run-1", &pipeline.Checkpoint{CurrentNode: "b"}))

	got, err := store.Read(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, pipeline.StageID("b"), got.CurrentNode)
}

func TestFileStoreReadMissingRunIsNotFound(t *testing.T) {
	store := checkpoint.NewFileStore(t.TempDir())
	_, err := store.Read(context.Background(), "never-written")
	require.Equal(t, coreerrors.KindNodeNotFound, coreerrors.KindOf(err))
}

func TestFileStoreReadCorruptFileIsJSONError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run-1.json"), []byte("{not json"), 0o644))

	store := checkpoint.NewFileStore(dir)
	_, err := store.Read(context.Background(), "run-1")
	require.Equal(t, coreerrors.KindJSON, coreerrors.KindOf(err))
}

func TestFileStoreWriteRejectsCancelledContext(t *testing.T) {
	store := checkpoint.NewFileStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Write(ctx, "run-1", &pipeline.Checkpoint{})
	require.Equal(t, coreerrors.KindCancelled, coreerrors.KindOf(err))
}

func TestFileStoreCreatesDirectoryOnFirstWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "checkpoints")
	store := checkpoint.NewFileStore(dir)

	require.NoError(t, store.Write(context.Background(), "run-1", &pipeline.Checkpoint{CurrentNode: "a"}))

	_, err := os.Stat(dir)
	require.NoError(t, err)
}
