package pipeline

import (
	coreerrors "stencilacore/errors"
)

// StageID identifies a stage within a Pipeline's graph.
type StageID string

// Fidelity hints at how much the stage's agent call should be allowed to
// cost, analogous to a model-size tier (e.g. cheap triage vs. full
// reasoning); the scheduler passes it through to the agent spec unmodified.
type Fidelity string

// Default fidelity tiers. Callers may define their own string values;
// these are the ones the pipeline itself reasons about for defaults.
const (
	FidelityLow    Fidelity = "low"
	FidelityMedium Fidelity = "medium"
	FidelityHigh   Fidelity = "high"
)

// RetryPolicy configures the exponential-backoff-with-jitter retry loop a
// stage runs under when it fails with a Retryable error.
type RetryPolicy struct {
	MaxAttempts int
	// InitialBackoffMS and MaxBackoffMS bound the exponential schedule;
	// the in-process engine varies each delay by a random ±10%.
	InitialBackoffMS int
	MaxBackoffMS     int
}

// DefaultRetryPolicy is used for stages that don't configure one explicitly.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoffMS: 200, MaxBackoffMS: 5000}
}

// AgentSpec names the agent a stage invokes and the model fidelity it
// should run at; it is opaque to the pipeline package beyond that, since
// resolving it to an llm.Client and prompt is the caller's concern.
type AgentSpec struct {
	Agent    string
	Fidelity Fidelity
}

// Edge is an outgoing transition from a stage, selected when the stage's
// Outcome.PreferredLabel matches Label.
type Edge struct {
	Label string
	To    StageID
}

// Stage is one node in a Pipeline's graph: {id, agent_spec, prompt_template,
// on_success?, on_failure?, retry_policy, fidelity}.
type Stage struct {
	ID             StageID
	Agent          AgentSpec
	PromptTemplate string
	OnSuccess      []Edge
	OnFailure      []Edge
	RetryPolicy    RetryPolicy

	// ConcurrencyGroup names a group of sibling stages. Run does not consult
	// it: every stage in the current frontier runs concurrently whatever its
	// group (or none), and the frontier's stages join before the next one.
	ConcurrencyGroup string
}

// Pipeline is a directed graph of Stages with exactly one start node and at
// least one exit node (a stage with no outgoing edges).
type Pipeline struct {
	Start  StageID
	Stages map[StageID]*Stage
}

// New constructs an empty Pipeline with the given start node id. Stages
// must be added with AddStage before the pipeline is valid.
func New(start StageID) *Pipeline {
	return &Pipeline{Start: start, Stages: make(map[StageID]*Stage)}
}

// AddStage registers a stage in the pipeline, defaulting its retry policy
// if unset.
func (p *Pipeline) AddStage(s *Stage) {
	if s.RetryPolicy.MaxAttempts == 0 {
		s.RetryPolicy = DefaultRetryPolicy()
	}
	p.Stages[s.ID] = s
}

// Validate checks structural well-formedness, returning the first
// violation found as one of the Pipeline-kind errors (NoStartNode,
// NoExitNode, UnreachableNode, NodeNotFound, InvalidPipeline).
func (p *Pipeline) Validate() error {
	if p.Start == "" {
		return coreerrors.New(coreerrors.KindNoStartNode, "pipeline has no start node")
	}
	if _, ok := p.Stages[p.Start]; !ok {
		return coreerrors.Newf(coreerrors.KindNoStartNode, "start node %q not found among stages", p.Start)
	}
	if len(p.Stages) == 0 {
		return coreerrors.New(coreerrors.KindInvalidPipeline, "pipeline has no stages")
	}

	hasExit := false
	for id, s := range p.Stages {
		if len(s.OnSuccess) == 0 && len(s.OnFailure) == 0 {
			hasExit = true
		}
		for _, e := range append(append([]Edge{}, s.OnSuccess...), s.OnFailure...) {
			if _, ok := p.Stages[e.To]; !ok {
				return coreerrors.Newf(coreerrors.KindNodeNotFound, "stage %q edge %q targets unknown stage %q", id, e.Label, e.To)
			}
		}
	}
	if !hasExit {
		return coreerrors.New(coreerrors.KindNoExitNode, "pipeline has no exit node")
	}

	reachable := map[StageID]bool{p.Start: true}
	queue := []StageID{p.Start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		s := p.Stages[id]
		for _, e := range append(append([]Edge{}, s.OnSuccess...), s.OnFailure...) {
			if !reachable[e.To] {
				reachable[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	for id := range p.Stages {
		if !reachable[id] {
			return coreerrors.Newf(coreerrors.KindUnreachableNode, "stage %q is unreachable from start", id)
		}
	}
	return nil
}

// ResolveEdge selects the outgoing edge matching outcome from stage s. Edges
// are consulted from OnSuccess when the outcome is success-like, OnFailure
// otherwise. A label that matches no edge on a non-exit stage is an
// unresolvable preferred_next_label and is reported as InvalidCondition,
// per the taxonomy's structural-error category.
func ResolveEdge(s *Stage, outcome Outcome) (StageID, bool, error) {
	edges := s.OnFailure
	if outcome.IsSuccessLike() {
		edges = s.OnSuccess
	}
	if len(edges) == 0 {
		// Exit node for this branch: nothing to resolve, run ends here.
		return "", false, nil
	}
	for _, e := range edges {
		if e.Label == outcome.PreferredLabel {
			return e.To, true, nil
		}
	}
	// A single unlabeled edge acts as the default/fallthrough.
	if len(edges) == 1 && edges[0].Label == "" {
		return edges[0].To, true, nil
	}
	return "", false, coreerrors.Newf(coreerrors.KindInvalidCondition,
		"stage %q: no edge matches preferred label %q", s.ID, outcome.PreferredLabel)
}

// String implements fmt.Stringer.
func (id StageID) String() string { return string(id) }
