package mongo

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stencilacore/pipeline"
)

func TestToDocumentConvertsCheckpointFields(t *testing.T) {
	cp := &pipeline.Checkpoint{
		Timestamp:      time.Unix(1700000000, 0).UTC(),
		CurrentNode:    "summarize",
		CompletedNodes: []pipeline.StageID{"fetch", "classify"},
		NodeRetries:    map[string]uint32{"fetch": 2},
		Context: pipeline.Snapshot{
			Values: map[string]json.RawMessage{"topic": json.RawMessage(`"go"`)},
			Logs:   []string{"fetch ok"},
		},
	}

	doc := toDocument("run-42", cp)

	require.Equal(t, "run-42", doc.RunID)
	require.Equal(t, "summarize", doc.CurrentNode)
	require.Equal(t, []string{"fetch", "classify"}, doc.CompletedNodes)
	require.Equal(t, map[string]uint32{"fetch": 2}, doc.NodeRetries)
	require.Equal(t, `"go"`, doc.ContextValues["topic"])
	require.Equal(t, []string{"fetch ok"}, doc.ContextLogs)
	require.True(t, cp.Timestamp.Equal(doc.Timestamp))
}

func TestCheckpointDocumentToCheckpointRoundTrips(t *testing.T) {
	cp := &pipeline.Checkpoint{
		Timestamp:      time.Unix(1700000000, 0).UTC(),
		CurrentNode:    "summarize",
		CompletedNodes: []pipeline.StageID{"fetch"},
		NodeRetries:    map[string]uint32{"fetch": 1},
		Context: pipeline.Snapshot{
			Values: map[string]json.RawMessage{"topic": json.RawMessage(`"go"`)},
			Logs:   []string{"fetch ok"},
		},
	}

	doc := toDocument("run-42", cp)
	got := doc.toCheckpoint()

	require.Equal(t, cp.CurrentNode, got.CurrentNode)
	require.Equal(t, cp.CompletedNodes, got.CompletedNodes)
	require.Equal(t, cp.NodeRetries, got.NodeRetries)
	require.Equal(t, cp.Context.Logs, got.Context.Logs)
	require.JSONEq(t, string(cp.Context.Values["topic"]), string(got.Context.Values["topic"]))
	require.True(t, cp.Timestamp.Equal(got.Timestamp))
}

func TestCheckpointDocumentToCheckpointSkipsNonStringContextValues(t *testing.T) {
	doc := checkpointDocument{
		RunID:       "run-1",
		CurrentNode: "a",
		ContextValues: map[string]any{
			"ok":  `"value"`,
			"bad": 42, // not stored as a string, should be dropped rather than panic
		},
	}

	got := doc.toCheckpoint()
	require.Contains(t, got.Context.Values, "ok")
	require.NotContains(t, got.Context.Values, "bad")
}
