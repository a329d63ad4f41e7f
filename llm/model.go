// Package llm defines the unified request/response/stream schema shared by
// every provider adapter (spec §4.2): a single set of Go types that
// anthropic/openai/gemini/bedrock translators convert to and from, so
// callers never import a provider SDK directly.
package llm

import (
	"context"
	"encoding/json"
	"time"
)

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentPart is a marker interface implemented by every message content
// block: text, images, audio, tool use/result, thinking, and redacted
// thinking (spec §4.2 extends the teacher's model.Part with Audio and
// RedactedThinking variants, and an Extension escape hatch for
// provider-specific content).
type ContentPart interface{ isContentPart() }

type (
	// TextPart is plain assistant- or user-visible text.
	TextPart struct{ Text string }

	// ImagePart carries inline image bytes.
	ImagePart struct {
		Format string // "png", "jpeg", "webp", "gif"
		Bytes  []byte
	}

	// AudioPart carries inline audio bytes, for providers with native audio
	// input/output support.
	AudioPart struct {
		Format string // "wav", "mp3"
		Bytes  []byte
	}

	// ThinkingPart is provider-issued reasoning content.
	ThinkingPart struct {
		Text      string
		Signature string
		Index     int
		Final     bool
	}

	// RedactedThinkingPart carries reasoning content the provider redacted;
	// it is opaque and dropped on replay to providers that reject it back
	// (e.g. OpenAI's Responses API), per spec §4.2.
	RedactedThinkingPart struct{ Payload []byte }

	// ToolUsePart declares a tool invocation requested by the assistant.
	// RawArguments and ParseError are populated instead of Input when a
	// stream accumulator's collected argument bytes fail to parse as JSON
	// (spec §4.2). The non-streaming decoders copy the provider's argument
	// payload into Input as-is and do not set these fields.
	ToolUsePart struct {
		ID           string
		Name         string
		Input        json.RawMessage
		RawArguments string
		ParseError   string
	}

	// ToolResultPart carries the result of a tool invocation, attached to a
	// user-role message so the model can read it on the next turn.
	ToolResultPart struct {
		ToolUseID string
		Content   any
		IsError   bool
	}

	// CacheCheckpointPart marks a cache boundary; providers that don't
	// support prompt caching ignore it.
	CacheCheckpointPart struct{}

	// ExtensionPart escapes to a provider-specific content shape that has
	// no unified representation (spec §4.2's "Extension" part).
	ExtensionPart struct {
		Provider string
		Raw      json.RawMessage
	}
)

func (TextPart) isContentPart()             {}
func (ImagePart) isContentPart()            {}
func (AudioPart) isContentPart()            {}
func (ThinkingPart) isContentPart()         {}
func (RedactedThinkingPart) isContentPart() {}
func (ToolUsePart) isContentPart()          {}
func (ToolResultPart) isContentPart()       {}
func (CacheCheckpointPart) isContentPart()  {}
func (ExtensionPart) isContentPart()        {}

// Message is a single turn in a conversation.
type Message struct {
	Role  Role
	Parts []ContentPart
	Meta  map[string]any
}

// ToolDefinition describes a tool exposed to the model, with a JSON Schema
// input shape (spec §4.2). llm/middleware's schema validator checks the
// tool-call payloads a provider returns against InputSchema; the schema
// itself is not checked before the request is sent, and a schema that fails
// to compile is skipped.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema any
}

// ToolChoiceMode controls how a Request asks the model to use tools.
type ToolChoiceMode string

const (
	ToolChoiceAuto ToolChoiceMode = "auto"
	ToolChoiceNone ToolChoiceMode = "none"
	ToolChoiceAny  ToolChoiceMode = "any"
	ToolChoiceTool ToolChoiceMode = "tool"
)

// ToolChoice configures tool-use behavior for a Request.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string
}

// ThinkingOptions configures provider reasoning behavior.
type ThinkingOptions struct {
	Enable       bool
	Interleaved  bool
	BudgetTokens int
}

// CacheOptions configures prompt caching; providers without caching support
// ignore it.
type CacheOptions struct {
	AfterSystem bool
	AfterTools  bool
}

// TokenUsage tracks token counts for a single model call.
type TokenUsage struct {
	InputTokens      int
	OutputTokens     int
	TotalTokens      int
	CacheReadTokens  int
	CacheWriteTokens int
}

// Request captures everything needed to invoke a model, independent of
// which provider ultimately serves it.
type Request struct {
	Model       string
	Messages    []*Message
	Temperature float32
	MaxTokens   int
	Tools       []*ToolDefinition
	ToolChoice  *ToolChoice
	Stream      bool
	Thinking    *ThinkingOptions
	Cache       *CacheOptions
}

// DefaultMaxTokens is applied when a Request doesn't set MaxTokens and the
// provider requires an explicit cap (Anthropic; spec §4.2, grounded on
// original_source's translate_request.rs DEFAULT_MAX_TOKENS constant).
const DefaultMaxTokens = 4096

// FinishReasonKind is the unified taxonomy every provider's raw stop/finish
// reason is coerced into (spec §4.2).
type FinishReasonKind string

const (
	FinishStop         FinishReasonKind = "stop"
	FinishLength        FinishReasonKind = "length"
	FinishToolCalls     FinishReasonKind = "tool_calls"
	FinishContentFilter FinishReasonKind = "content_filter"
	FinishOther         FinishReasonKind = "other"
)

// FinishReason pairs the unified Reason with the provider's original string,
// kept around for diagnostics and logging.
type FinishReason struct {
	Reason FinishReasonKind
	Raw    string
}

// RateLimitInfo surfaces provider-reported rate-limit headroom, when the
// provider's response carries it (spec §4.2 "rate_limit?"). A nil
// *RateLimitInfo on a Response means the provider didn't report any.
type RateLimitInfo struct {
	LimitRequests     int
	RemainingRequests int
	LimitTokens       int
	RemainingTokens   int
	ResetRequests     time.Duration
	ResetTokens       time.Duration
}

// Response is the unified result of a non-streaming Complete call, or the
// fully-accumulated result a stream's Finish event carries (spec §4.2).
type Response struct {
	ID       string
	Model    string
	Provider string
	// Message is always role=Assistant: the single assistant turn the
	// model produced, as a flat ordered list of ContentParts.
	Message      Message
	FinishReason FinishReason
	Usage        TokenUsage
	RateLimit    *RateLimitInfo
	Warnings     []string
	// Raw is the provider's original response payload, kept for callers
	// that need to inspect fields the unified schema doesn't expose.
	Raw json.RawMessage
}

// FinishReasonFor coerces a provider's raw stop/finish-reason string into the
// unified FinishReasonKind taxonomy. sawToolCall forces FinishToolCalls
// regardless of what the provider reported, per spec §4.2's stream
// finalization rule ("when accumulated content contains any ToolCall, coerce
// finish_reason.reason to ToolCalls regardless of the provider-reported
// reason") — applied uniformly to both the streaming and non-streaming paths
// so invariant 5 (spec §8) holds.
func FinishReasonFor(raw string, sawToolCall bool) FinishReason {
	if sawToolCall {
		return FinishReason{Reason: FinishToolCalls, Raw: raw}
	}
	switch raw {
	case "end_turn", "stop", "stop_sequence", "STOP", "completed":
		return FinishReason{Reason: FinishStop, Raw: raw}
	case "max_tokens", "length", "MAX_TOKENS", "incomplete":
		return FinishReason{Reason: FinishLength, Raw: raw}
	case "tool_use", "tool_calls", "function_call":
		return FinishReason{Reason: FinishToolCalls, Raw: raw}
	case "content_filter", "SAFETY", "RECITATION":
		return FinishReason{Reason: FinishContentFilter, Raw: raw}
	default:
		return FinishReason{Reason: FinishOther, Raw: raw}
	}
}

// AssembleResponse builds the unified Response from a flat, ordered slice of
// accumulated ContentParts. Both a provider's non-streaming decodeResponse
// and its stream accumulator's Finish event call this, so the two paths are
// guaranteed to produce identical Message.Parts for identical model output
// (spec §8 invariant 5).
func AssembleResponse(id, model, provider string, parts []ContentPart, reason FinishReason, usage TokenUsage) *Response {
	return &Response{
		ID:           id,
		Model:        model,
		Provider:     provider,
		Message:      Message{Role: RoleAssistant, Parts: parts},
		FinishReason: reason,
		Usage:        usage,
	}
}

// StreamEventType discriminates a StreamEvent (spec §4.2's stream event
// vocabulary).
type StreamEventType string

const (
	StreamEventStart          StreamEventType = "stream_start"
	StreamEventTextStart      StreamEventType = "text_start"
	StreamEventTextDelta      StreamEventType = "text_delta"
	StreamEventTextEnd        StreamEventType = "text_end"
	StreamEventReasoningStart StreamEventType = "reasoning_start"
	StreamEventReasoningDelta StreamEventType = "reasoning_delta"
	StreamEventReasoningEnd   StreamEventType = "reasoning_end"
	StreamEventToolCallStart  StreamEventType = "tool_call_start"
	StreamEventToolCallDelta  StreamEventType = "tool_call_delta"
	StreamEventToolCallEnd    StreamEventType = "tool_call_end"
	StreamEventFinish         StreamEventType = "finish"
	StreamEventError          StreamEventType = "error"
	StreamEventProviderEvent  StreamEventType = "provider_event"
)

// StreamEvent is one incremental event from a streaming model call. Which
// fields are populated depends on Type; see the StreamEvent* constants.
type StreamEvent struct {
	Type StreamEventType

	// ID identifies the content block a Text*/Reasoning* event belongs to,
	// so a consumer can demultiplex interleaved blocks (spec §4.2).
	ID    string
	Delta string

	// ToolCall is set on ToolCallStart (name/id known, no arguments yet)
	// and ToolCallEnd (final, parsed-or-raw arguments).
	ToolCall      *ToolUsePart
	ToolCallDelta *ToolCallDelta

	// FinishReason, Usage, and Response are set only on StreamEventFinish.
	FinishReason FinishReason
	Usage        TokenUsage
	Response     *Response

	// Err is set only on StreamEventError.
	Err error

	// Raw is set only on StreamEventProviderEvent, for provider-specific
	// events the unified vocabulary has no slot for.
	Raw json.RawMessage
}

// ToolCallDelta is an incremental, best-effort fragment of a tool call's
// input JSON, streamed before the call is finalized.
type ToolCallDelta struct {
	ID    string
	Name  string
	Delta string
}

// Client is the provider-agnostic model client every translator implements.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Stream(ctx context.Context, req *Request) (Streamer, error)
}

// Streamer delivers incremental StreamEvents from a Stream call.
type Streamer interface {
	Recv() (StreamEvent, error)
	Close() error
	Metadata() map[string]any
}
