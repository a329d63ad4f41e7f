package pipeline_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"stencilacore/pipeline"
)

func TestContextSetGetRoundTrip(t *testing.T) {
	c := pipeline.NewContext()
	require.NoError(t, c.Set("count", 3))

	var got int
	ok, err := c.Get("count", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, got)
}

func TestContextGetMissingKey(t *testing.T) {
	c := pipeline.NewContext()
	var got string
	ok, err := c.Get("missing", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestContextGetStringStringifiesPrimitivesAndMissingIsEmpty(t *testing.T) {
	c := pipeline.NewContext()
	require.NoError(t, c.Set("n", 42))
	require.NoError(t, c.Set("s", "hello"))
	require.NoError(t, c.Set("obj", map[string]any{"a": 1}))

	s, ok := c.GetString("n")
	require.True(t, ok)
	require.Equal(t, "42", s)

	s, ok = c.GetString("s")
	require.True(t, ok)
	require.Equal(t, "hello", s)

	s, ok = c.GetString("obj")
	require.True(t, ok)
	require.JSONEq(t, `{"a":1}`, s)

	s, ok = c.GetString("nope")
	require.False(t, ok)
	require.Equal(t, "", s)
}

func TestContextApplyUpdatesMergesValues(t *testing.T) {
	c := pipeline.NewContext()
	require.NoError(t, c.Set("a", 1))
	c.ApplyUpdates(map[string]json.RawMessage{"b": json.RawMessage(`"two"`)})

	var a int
	ok, _ := c.Get("a", &a)
	require.True(t, ok)
	require.Equal(t, 1, a)

	var b string
	ok, _ = c.Get("b", &b)
	require.True(t, ok)
	require.Equal(t, "two", b)
}

func TestContextAppendLogAndLogs(t *testing.T) {
	c := pipeline.NewContext()
	c.AppendLog("first")
	c.AppendLog("second")
	require.Equal(t, []string{"first", "second"}, c.Logs())
}

func TestContextSnapshotIsIndependentOfFurtherMutation(t *testing.T) {
	c := pipeline.NewContext()
	require.NoError(t, c.Set("k", "v1"))
	snap := c.Snapshot()

	require.NoError(t, c.Set("k", "v2"))

	var fromSnap string
	require.NoError(t, json.Unmarshal(snap.Values["k"], &fromSnap))
	require.Equal(t, "v1", fromSnap)

	var current string
	_, _ = c.Get("k", &current)
	require.Equal(t, "v2", current)
}

func TestContextDeepCloneIsIndependent(t *testing.T) {
	c := pipeline.NewContext()
	require.NoError(t, c.Set("k", "v1"))
	c.AppendLog("entry")

	clone := c.DeepClone()
	require.NoError(t, c.Set("k", "v2"))
	c.AppendLog("another")

	var cloned string
	ok, _ := clone.Get("k", &cloned)
	require.True(t, ok)
	require.Equal(t, "v1", cloned)
	require.Equal(t, []string{"entry"}, clone.Logs())
}

func TestFromSnapshotRehydratesContext(t *testing.T) {
	snap := pipeline.Snapshot{
		Values: map[string]json.RawMessage{"k": json.RawMessage(`"v"`)},
		Logs:   []string{"l1"},
	}
	c := pipeline.FromSnapshot(snap)

	var v string
	ok, err := c.Get("k", &v)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
	require.Equal(t, []string{"l1"}, c.Logs())
}
