package pipeline

import (
	"stencilacore/llm"
)

// EventType identifies one of the observable events a pipeline run emits on
// its event channel.
type EventType string

const (
	PipelineStarted    EventType = "pipeline_started"
	StageStarted       EventType = "stage_started"
	StageInput         EventType = "stage_input"
	StageSessionEvent  EventType = "stage_session_event"
	StageOutput        EventType = "stage_output"
	StageCompleted     EventType = "stage_completed"
	StageFailed        EventType = "stage_failed"
	StageRetrying      EventType = "stage_retrying"
	PipelineCompleted  EventType = "pipeline_completed"
	PipelineFailed     EventType = "pipeline_failed"
	InterviewRequested EventType = "interview_requested"
	InterviewAnswered  EventType = "interview_answered"
	CheckpointWritten  EventType = "checkpoint_written"
)

// Event is the interface every pipeline event implements. Subscribers use a
// type switch on the concrete type (or Type() for quick filtering) to
// access event-specific fields.
type Event interface {
	// Type returns the event's discriminator.
	Type() EventType
	// RunID returns the pipeline run this event belongs to.
	RunID() string
	// StageID returns the stage this event concerns, empty for
	// pipeline-scoped events (PipelineStarted/Completed/Failed).
	StageID() StageID
}

type baseEvent struct {
	runID   string
	stageID StageID
}

func (e baseEvent) RunID() string    { return e.runID }
func (e baseEvent) StageID() StageID { return e.stageID }

type (
	// PipelineStartedEvent fires once when a run begins.
	PipelineStartedEvent struct {
		baseEvent
		Start StageID
	}

	// StageStartedEvent fires when the scheduler begins executing a stage.
	StageStartedEvent struct {
		baseEvent
		Attempt int
	}

	// StageInputEvent carries the agent and input payload handed to a
	// stage's agent call.
	StageInputEvent struct {
		baseEvent
		Agent string
		Input string
	}

	// StageSessionEventEvent forwards a raw provider stream event observed
	// while a stage's agent call is in flight.
	StageSessionEventEvent struct {
		baseEvent
		Provider string
		Stream   llm.StreamEvent
	}

	// StageOutputEvent carries a stage's raw text/content output, prior to
	// being classified into an Outcome.
	StageOutputEvent struct {
		baseEvent
		Output string
	}

	// StageCompletedEvent fires when a stage finishes with a success-like
	// Outcome.
	StageCompletedEvent struct {
		baseEvent
		Outcome Outcome
	}

	// StageFailedEvent fires when a stage exhausts its retries or hits a
	// terminal error.
	StageFailedEvent struct {
		baseEvent
		Reason string
	}

	// StageRetryingEvent fires before each retry attempt of a stage that
	// failed with a retryable error.
	StageRetryingEvent struct {
		baseEvent
		Attempt int
		Max     int
	}

	// PipelineCompletedEvent fires once when the run reaches an exit node
	// successfully.
	PipelineCompletedEvent struct {
		baseEvent
		Outcome Outcome
	}

	// PipelineFailedEvent fires once when the run cannot continue: a
	// terminal stage error with no on_failure edge, a structural pipeline
	// error, or cancellation ("cancelled" reason).
	PipelineFailedEvent struct {
		baseEvent
		Reason string
	}

	// InterviewRequestedEvent fires when a stage suspends to ask the
	// operator a question before continuing.
	InterviewRequestedEvent struct {
		baseEvent
		Prompt string
	}

	// InterviewAnsweredEvent fires when the operator's answer to an
	// InterviewRequested is recorded.
	InterviewAnsweredEvent struct {
		baseEvent
		Text string
	}

	// CheckpointWrittenEvent fires after a checkpoint is durably written to
	// its configured path.
	CheckpointWrittenEvent struct {
		baseEvent
		Path string
	}
)

func (e *PipelineStartedEvent) Type() EventType    { return PipelineStarted }
func (e *StageStartedEvent) Type() EventType       { return StageStarted }
func (e *StageInputEvent) Type() EventType         { return StageInput }
func (e *StageSessionEventEvent) Type() EventType  { return StageSessionEvent }
func (e *StageOutputEvent) Type() EventType        { return StageOutput }
func (e *StageCompletedEvent) Type() EventType     { return StageCompleted }
func (e *StageFailedEvent) Type() EventType        { return StageFailed }
func (e *StageRetryingEvent) Type() EventType      { return StageRetrying }
func (e *PipelineCompletedEvent) Type() EventType  { return PipelineCompleted }
func (e *PipelineFailedEvent) Type() EventType     { return PipelineFailed }
func (e *InterviewRequestedEvent) Type() EventType { return InterviewRequested }
func (e *InterviewAnsweredEvent) Type() EventType  { return InterviewAnswered }
func (e *CheckpointWrittenEvent) Type() EventType  { return CheckpointWritten }
