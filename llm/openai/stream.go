package openai

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/responses"

	"stencilacore/llm"
)

// streamer adapts an OpenAI Responses SSE stream into llm.Streamer, mirroring
// the anthropic package's background-drain-into-channel pattern so both
// provider streamers share the same consumption contract.
type streamer struct {
	raw    *ssestream.Stream[responses.ResponseStreamEventUnion]
	events chan llm.StreamEvent
	done   chan struct{}

	mu    sync.Mutex
	meta  map[string]any
	err   error
	usage llm.TokenUsage
}

func newStreamer(raw *ssestream.Stream[responses.ResponseStreamEventUnion]) *streamer {
	s := &streamer{
		raw:    raw,
		events: make(chan llm.StreamEvent, 16),
		done:   make(chan struct{}),
		meta:   map[string]any{},
	}
	go s.run()
	return s
}

// toolCallState accumulates a function_call item's streamed argument
// fragments, keyed by output index, until the item closes.
type toolCallState struct {
	callID string
	name   string
	args   string
}

func (s *streamer) run() {
	defer close(s.events)
	defer close(s.done)

	tools := map[int64]*toolCallState{}
	textBlocks := map[int64]*strings.Builder{}
	textOrder := []int64{}
	reasoningBlocks := map[int64]*strings.Builder{}
	reasoningOrder := []int64{}
	toolOrder := []int64{}
	finalToolParts := map[int64]llm.ToolUsePart{}
	sawToolCall := false
	responseID, model := "", ""
	started := false

	emitStart := func() {
		if !started {
			started = true
			s.emit(llm.StreamEvent{Type: llm.StreamEventStart})
		}
	}

	for s.raw.Next() {
		emitStart()
		event := s.raw.Current()
		switch variant := event.AsAny().(type) {
		case responses.ResponseCreatedEvent:
			s.mu.Lock()
			responseID = variant.Response.ID
			model = string(variant.Response.Model)
			s.meta["response_id"] = variant.Response.ID
			s.mu.Unlock()

		case responses.ResponseOutputItemAddedEvent:
			if fc, ok := variant.Item.AsAny().(responses.ResponseFunctionToolCall); ok {
				tools[variant.OutputIndex] = &toolCallState{callID: fc.CallID, name: fc.Name}
				toolOrder = append(toolOrder, variant.OutputIndex)
				sawToolCall = true
				id := strconv.FormatInt(variant.OutputIndex, 10)
				s.emit(llm.StreamEvent{
					Type:     llm.StreamEventToolCallStart,
					ID:       id,
					ToolCall: &llm.ToolUsePart{ID: fc.CallID, Name: fc.Name},
				})
			}

		case responses.ResponseOutputTextDeltaEvent:
			id := strconv.FormatInt(variant.OutputIndex, 10)
			if _, ok := textBlocks[variant.OutputIndex]; !ok {
				textBlocks[variant.OutputIndex] = &strings.Builder{}
				textOrder = append(textOrder, variant.OutputIndex)
				s.emit(llm.StreamEvent{Type: llm.StreamEventTextStart, ID: id})
			}
			textBlocks[variant.OutputIndex].WriteString(variant.Delta)
			s.emit(llm.StreamEvent{Type: llm.StreamEventTextDelta, ID: id, Delta: variant.Delta})

		case responses.ResponseReasoningSummaryTextDeltaEvent:
			id := strconv.FormatInt(variant.OutputIndex, 10)
			if _, ok := reasoningBlocks[variant.OutputIndex]; !ok {
				reasoningBlocks[variant.OutputIndex] = &strings.Builder{}
				reasoningOrder = append(reasoningOrder, variant.OutputIndex)
				s.emit(llm.StreamEvent{Type: llm.StreamEventReasoningStart, ID: id})
			}
			reasoningBlocks[variant.OutputIndex].WriteString(variant.Delta)
			s.emit(llm.StreamEvent{Type: llm.StreamEventReasoningDelta, ID: id, Delta: variant.Delta})

		case responses.ResponseFunctionCallArgumentsDeltaEvent:
			ts := tools[variant.OutputIndex]
			if ts == nil {
				continue
			}
			ts.args += variant.Delta
			s.emit(llm.StreamEvent{
				Type: llm.StreamEventToolCallDelta,
				ID:   strconv.FormatInt(variant.OutputIndex, 10),
				ToolCallDelta: &llm.ToolCallDelta{
					ID: ts.callID, Name: ts.name, Delta: variant.Delta,
				},
			})

		case responses.ResponseFunctionCallArgumentsDoneEvent:
			ts := tools[variant.OutputIndex]
			if ts == nil {
				continue
			}
			raw := ts.args
			if raw == "" {
				raw = "{}"
			}
			part := llm.ToolUsePart{ID: ts.callID, Name: ts.name}
			var probe json.RawMessage
			if err := json.Unmarshal([]byte(raw), &probe); err != nil {
				part.RawArguments = raw
				part.ParseError = err.Error()
			} else {
				part.Input = probe
			}
			finalToolParts[variant.OutputIndex] = part
			s.emit(llm.StreamEvent{
				Type: llm.StreamEventToolCallEnd, ID: strconv.FormatInt(variant.OutputIndex, 10), ToolCall: &part,
			})
			delete(tools, variant.OutputIndex)

		case responses.ResponseCompletedEvent:
			s.mu.Lock()
			s.usage = llm.TokenUsage{
				InputTokens:  int(variant.Response.Usage.InputTokens),
				OutputTokens: int(variant.Response.Usage.OutputTokens),
				TotalTokens:  int(variant.Response.Usage.TotalTokens),
			}
			usage := s.usage
			s.mu.Unlock()
			for idx := range textBlocks {
				s.emit(llm.StreamEvent{Type: llm.StreamEventTextEnd, ID: strconv.FormatInt(idx, 10)})
			}
			for idx := range reasoningBlocks {
				s.emit(llm.StreamEvent{Type: llm.StreamEventReasoningEnd, ID: strconv.FormatInt(idx, 10)})
			}
			stop := string(variant.Response.Status)
			reason := llm.FinishReasonFor(stop, sawToolCall)

			var parts []llm.ContentPart
			for _, idx := range textOrder {
				parts = append(parts, llm.TextPart{Text: textBlocks[idx].String()})
			}
			for _, idx := range reasoningOrder {
				parts = append(parts, llm.ThinkingPart{Text: reasoningBlocks[idx].String(), Final: true})
			}
			for _, idx := range toolOrder {
				if p, ok := finalToolParts[idx]; ok {
					parts = append(parts, p)
				}
			}
			resp := llm.AssembleResponse(responseID, model, "openai", parts, reason, usage)
			s.emit(llm.StreamEvent{Type: llm.StreamEventFinish, FinishReason: reason, Usage: usage, Response: resp})

		case responses.ResponseFailedEvent, responses.ResponseErrorEvent:
			_ = variant
			s.mu.Lock()
			s.err = llm.NewSdkError(llm.SdkErrorStream, "openai: response stream reported an error event")
			s.mu.Unlock()
		}
	}
	emitStart()

	if err := s.raw.Err(); err != nil && err != io.EOF {
		s.mu.Lock()
		if s.err == nil {
			s.err = translateError(err)
		}
		s.mu.Unlock()
	}
}

func (s *streamer) emit(ev llm.StreamEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Recv implements llm.Streamer.
func (s *streamer) Recv() (llm.StreamEvent, error) {
	ev, ok := <-s.events
	if ok {
		return ev, nil
	}
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return llm.StreamEvent{}, err
	}
	return llm.StreamEvent{}, io.EOF
}

// Close implements llm.Streamer.
func (s *streamer) Close() error { return s.raw.Close() }

// Metadata implements llm.Streamer.
func (s *streamer) Metadata() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.meta)+1)
	for k, v := range s.meta {
		out[k] = v
	}
	out["usage"] = s.usage
	return out
}
