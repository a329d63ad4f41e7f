package pipeline

import "encoding/json"

// Status classifies how a stage's execution ended.
type Status string

const (
	// StatusSuccess means the stage fully accomplished its task.
	StatusSuccess Status = "success"
	// StatusPartialSuccess means the stage made progress but did not
	// finish; the pipeline may still advance via on_success.
	StatusPartialSuccess Status = "partial_success"
	// StatusFail means the stage failed outright.
	StatusFail Status = "fail"
	// StatusRetry means the stage reported that it wants another attempt.
	// Run does not re-run the stage on this status: it is not success-like,
	// so the stage routes over its on_failure edges like StatusFail, and the
	// engines' retry policies apply only to Retryable errors.
	StatusRetry Status = "retry"
	// StatusSkipped means the stage was bypassed without running.
	StatusSkipped Status = "skipped"
)

// Outcome is what a stage hands back to the scheduler: a status, the label
// it prefers to route on, a failure reason when applicable, and any context
// updates to merge in before the next stage starts.
type Outcome struct {
	Status         Status
	PreferredLabel string
	FailureReason  string
	ContextUpdates map[string]json.RawMessage
}

// wireOutcome is Outcome's JSON wire shape: the field carrying Status is
// named "outcome", not "status", and "preferred_label" is accepted as an
// alias for the canonical "preferred_next_label" on decode.
type wireOutcome struct {
	Outcome             Status                     `json:"outcome"`
	PreferredNextLabel  string                     `json:"preferred_next_label,omitempty"`
	PreferredLabelAlias string                     `json:"preferred_label,omitempty"`
	FailureReason       string                     `json:"failure_reason,omitempty"`
	ContextUpdates      map[string]json.RawMessage `json:"context_updates,omitempty"`
}

// MarshalJSON implements the wire contract: {"outcome": ..., ...}.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireOutcome{
		Outcome:            o.Status,
		PreferredNextLabel: o.PreferredLabel,
		FailureReason:      o.FailureReason,
		ContextUpdates:     o.ContextUpdates,
	})
}

// UnmarshalJSON accepts either "preferred_next_label" or its "preferred_label"
// alias; the canonical field wins if both are present.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var w wireOutcome
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	label := w.PreferredNextLabel
	if label == "" {
		label = w.PreferredLabelAlias
	}
	o.Status = w.Outcome
	o.PreferredLabel = label
	o.FailureReason = w.FailureReason
	o.ContextUpdates = w.ContextUpdates
	return nil
}

// IsSuccessLike reports whether status should be treated as forward
// progress when resolving the next edge (Success or PartialSuccess).
func (o Outcome) IsSuccessLike() bool {
	return o.Status == StatusSuccess || o.Status == StatusPartialSuccess
}
