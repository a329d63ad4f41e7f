package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	coreerrors "stencilacore/errors"
)

// Run executes pipeline p on rc starting from frontier start (normally
// []StageID{p.Start}, or the stages named in a resumed Checkpoint's
// current_node). It implements the single-threaded cooperative scheduler:
// at each step every stage in the current frontier runs (concurrently when
// there is more than one, satisfying the "parallel siblings join at their
// common successor" scheduling model), and the next frontier is the
// deduplicated union of the edges each stage's Outcome resolves to. Run
// returns the terminal Outcome (success or failure) once the frontier is
// empty, or a pipeline-structural error if the graph cannot be resolved.
func Run(rc RunContext, p *Pipeline, start []StageID, ctxState *Context, completed []StageID, retries map[string]uint32) (*Outcome, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if ctxState == nil {
		ctxState = NewContext()
	}
	if retries == nil {
		retries = make(map[string]uint32)
	}
	completedSet := make(map[StageID]bool, len(completed))
	for _, id := range completed {
		completedSet[id] = true
	}

	rc.Emit(&PipelineStartedEvent{baseEvent: baseEvent{runID: rc.RunID()}, Start: p.Start})

	frontier := append([]StageID(nil), start...)
	var last *Outcome

	for len(frontier) > 0 {
		select {
		case <-rc.Context().Done():
			rc.Emit(&PipelineFailedEvent{baseEvent: baseEvent{runID: rc.RunID()}, Reason: "cancelled"})
			return nil, coreerrors.New(coreerrors.KindCancelled, "pipeline run cancelled")
		default:
		}

		results, err := runFrontier(rc, p, frontier, ctxState)
		if err != nil {
			rc.Emit(&PipelineFailedEvent{baseEvent: baseEvent{runID: rc.RunID()}, Reason: err.Error()})
			return nil, err
		}
		if rc.Context().Err() != nil {
			// Cancelled while the frontier ran: commit none of its outcomes.
			rc.Emit(&PipelineFailedEvent{baseEvent: baseEvent{runID: rc.RunID()}, Reason: "cancelled"})
			return nil, coreerrors.New(coreerrors.KindCancelled, "pipeline run cancelled")
		}

		next := make(map[StageID]bool)
		for id, outcome := range results {
			last = outcome
			ctxState.ApplyUpdates(outcome.ContextUpdates)
			completedSet[id] = true

			stage := p.Stages[id]
			to, ok, err := ResolveEdge(stage, *outcome)
			if err != nil {
				rc.Emit(&PipelineFailedEvent{baseEvent: baseEvent{runID: rc.RunID()}, Reason: err.Error()})
				return nil, err
			}
			if !outcome.IsSuccessLike() && !ok {
				// Terminal failure with no on_failure edge: fail the pipeline.
				rc.Emit(&PipelineFailedEvent{baseEvent: baseEvent{runID: rc.RunID()}, Reason: outcome.FailureReason})
				return outcome, coreerrors.Newf(coreerrors.KindHandlerFailed, "stage %q failed: %s", id, outcome.FailureReason)
			}
			if ok {
				next[to] = true
			}
		}

		completedList := make([]StageID, 0, len(completedSet))
		for id := range completedSet {
			completedList = append(completedList, id)
		}
		sort.Slice(completedList, func(i, j int) bool { return completedList[i] < completedList[j] })

		nextList := make([]StageID, 0, len(next))
		for id := range next {
			nextList = append(nextList, id)
		}
		sort.Slice(nextList, func(i, j int) bool { return nextList[i] < nextList[j] })

		var currentNode StageID
		if len(nextList) > 0 {
			currentNode = nextList[0]
		}
		cp := &Checkpoint{
			Timestamp:      rc.Now(),
			CurrentNode:    currentNode,
			CompletedNodes: completedList,
			NodeRetries:    cloneRetries(retries),
			Context:        ctxState.Snapshot(),
		}
		if err := rc.Checkpoint(rc.Context(), cp); err != nil {
			return nil, err
		}

		frontier = nextList
	}

	if last == nil {
		last = &Outcome{Status: StatusSuccess}
	}
	rc.Emit(&PipelineCompletedEvent{baseEvent: baseEvent{runID: rc.RunID()}, Outcome: *last})
	return last, nil
}

// runFrontier executes every stage in frontier, concurrently when there is
// more than one, and returns each stage's Outcome keyed by StageID.
func runFrontier(rc RunContext, p *Pipeline, frontier []StageID, ctxState *Context) (map[StageID]*Outcome, error) {
	type result struct {
		id      StageID
		outcome *Outcome
		err     error
	}
	resultsCh := make(chan result, len(frontier))
	var wg sync.WaitGroup
	for _, id := range frontier {
		stage, ok := p.Stages[id]
		if !ok {
			return nil, coreerrors.Newf(coreerrors.KindNodeNotFound, "stage %q not found", id)
		}
		wg.Add(1)
		go func(stage *Stage) {
			defer wg.Done()
			outcome, err := executeStage(rc, stage, ctxState)
			resultsCh <- result{id: stage.ID, outcome: outcome, err: err}
		}(stage)
	}
	wg.Wait()
	close(resultsCh)

	out := make(map[StageID]*Outcome, len(frontier))
	for r := range resultsCh {
		if r.err != nil {
			return nil, r.err
		}
		out[r.id] = r.outcome
	}
	return out, nil
}

func executeStage(rc RunContext, stage *Stage, ctxState *Context) (*Outcome, error) {
	rc.Emit(&StageStartedEvent{baseEvent: baseEvent{runID: rc.RunID(), stageID: stage.ID}})
	rc.Emit(&StageInputEvent{
		baseEvent: baseEvent{runID: rc.RunID(), stageID: stage.ID},
		Agent:     stage.Agent.Agent,
		Input:     stage.PromptTemplate,
	})

	req := StageExecutionRequest{
		Stage: stage,
		Input: &StageInput{
			RunID:   rc.RunID(),
			Stage:   stage,
			Context: ctxState.Snapshot(),
		},
	}
	fut, err := rc.ExecuteStage(rc.Context(), req)
	if err != nil {
		rc.Emit(&StageFailedEvent{baseEvent: baseEvent{runID: rc.RunID(), stageID: stage.ID}, Reason: err.Error()})
		return nil, err
	}
	outcome, err := fut.Get(rc.Context())
	if err != nil {
		rc.Emit(&StageFailedEvent{baseEvent: baseEvent{runID: rc.RunID(), stageID: stage.ID}, Reason: err.Error()})
		if coreerrors.IsPipeline(err) {
			return nil, err
		}
		return &Outcome{Status: StatusFail, FailureReason: err.Error()}, nil
	}
	rc.Emit(&StageOutputEvent{baseEvent: baseEvent{runID: rc.RunID(), stageID: stage.ID}, Output: fmt.Sprintf("%v", outcome.Status)})
	if outcome.IsSuccessLike() {
		rc.Emit(&StageCompletedEvent{baseEvent: baseEvent{runID: rc.RunID(), stageID: stage.ID}, Outcome: *outcome})
	} else {
		rc.Emit(&StageFailedEvent{baseEvent: baseEvent{runID: rc.RunID(), stageID: stage.ID}, Reason: outcome.FailureReason})
	}
	return outcome, nil
}

func cloneRetries(src map[string]uint32) map[string]uint32 {
	out := make(map[string]uint32, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
