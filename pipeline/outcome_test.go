package pipeline_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"stencilacore/pipeline"
)

func TestOutcomeMarshalUsesOutcomeWireKey(t *testing.T) {
	o := pipeline.Outcome{
		Status:         pipeline.StatusSuccess,
		PreferredLabel: "approved",
		ContextUpdates: map[string]json.RawMessage{"reviewed": json.RawMessage(`true`)},
	}
	raw, err := json.Marshal(o)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"outcome": "success",
		"preferred_next_label": "approved",
		"context_updates": {"reviewed": true}
	}`, string(raw))
}

func TestOutcomeUnmarshalCanonicalLabelField(t *testing.T) {
	var o pipeline.Outcome
	require.NoError(t, json.Unmarshal([]byte(`{
		"outcome": "fail",
		"preferred_next_label": "retry-path",
		"failure_reason": "timed out"
	}`), &o))

	require.Equal(t, pipeline.StatusFail, o.Status)
	require.Equal(t, "retry-path", o.PreferredLabel)
	require.Equal(t, "timed out", o.FailureReason)
}

func TestOutcomeUnmarshalAliasLabelField(t *testing.T) {
	var o pipeline.Outcome
	require.NoError(t, json.Unmarshal([]byte(`{
		"outcome": "partial_success",
		"preferred_label": "needs-review"
	}`), &o))

	require.Equal(t, pipeline.StatusPartialSuccess, o.Status)
	require.Equal(t, "needs-review", o.PreferredLabel)
}

func TestOutcomeUnmarshalCanonicalLabelWinsOverAlias(t *testing.T) {
	var o pipeline.Outcome
	require.NoError(t, json.Unmarshal([]byte(`{
		"outcome": "success",
		"preferred_next_label": "canonical",
		"preferred_label": "alias"
	}`), &o))

	require.Equal(t, "canonical", o.PreferredLabel)
}

func TestOutcomeIsSuccessLike(t *testing.T) {
	require.True(t, pipeline.Outcome{Status: pipeline.StatusSuccess}.IsSuccessLike())
	require.True(t, pipeline.Outcome{Status: pipeline.StatusPartialSuccess}.IsSuccessLike())
	require.False(t, pipeline.Outcome{Status: pipeline.StatusFail}.IsSuccessLike())
	require.False(t, pipeline.Outcome{Status: pipeline.StatusRetry}.IsSuccessLike())
	require.False(t, pipeline.Outcome{Status: pipeline.StatusSkipped}.IsSuccessLike())
}
