package anthropic

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"stencilacore/llm"
)

// streamer adapts an Anthropic SSE stream into llm.Streamer, draining the
// underlying stream on a background goroutine into a buffered channel so a
// slow consumer never blocks the SDK's read loop, grounded on
// features/model/anthropic/stream.go's anthropicStreamer.
type streamer struct {
	raw    *ssestream.Stream[sdk.MessageStreamEventUnion]
	events chan llm.StreamEvent
	done   chan struct{}

	mu    sync.Mutex
	meta  map[string]any
	err   error
	usage llm.TokenUsage
}

func newStreamer(raw *ssestream.Stream[sdk.MessageStreamEventUnion]) *streamer {
	s := &streamer{
		raw:    raw,
		events: make(chan llm.StreamEvent, 16),
		done:   make(chan struct{}),
		meta:   map[string]any{},
	}
	go s.run()
	return s
}

// blockAccumulator tracks the in-progress content block currently being
// streamed, keyed by its index in the message's content array.
type blockAccumulator struct {
	kind      string // "text", "thinking", "tool_use", "redacted_thinking"
	toolID    string
	toolName  string
	signature string
	text      strings.Builder
	jsonInput strings.Builder
}

func (s *streamer) run() {
	defer close(s.events)
	defer close(s.done)

	blocks := map[int64]*blockAccumulator{}
	order := []int64{}
	final := map[int64]llm.ContentPart{}
	sawToolCall := false
	stopReason := ""
	messageID, model := "", ""
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
		switch event.Type {
		case "content_block_start":
			cb := event.ContentBlock
			acc := &blockAccumulator{}
			id := strconv.FormatInt(event.Index, 10)
			switch variant := cb.AsAny().(type) {
			case sdk.TextBlock:
				acc.kind = "text"
				s.emit(llm.StreamEvent{Type: llm.StreamEventTextStart, ID: id})
			case sdk.ThinkingBlock:
				acc.kind = "thinking"
				s.emit(llm.StreamEvent{Type: llm.StreamEventReasoningStart, ID: id})
			case sdk.ToolUseBlock:
				acc.kind = "tool_use"
				acc.toolID = variant.ID
				acc.toolName = variant.Name
				sawToolCall = true
				s.emit(llm.StreamEvent{
					Type:     llm.StreamEventToolCallStart,
					ID:       id,
					ToolCall: &llm.ToolUsePart{ID: variant.ID, Name: variant.Name},
				})
			case sdk.RedactedThinkingBlock:
				acc.kind = "redacted_thinking"
				final[event.Index] = llm.RedactedThinkingPart{Payload: []byte(variant.Data)}
			}
			blocks[event.Index] = acc
			order = append(order, event.Index)

		case "content_block_delta":
			acc := blocks[event.Index]
			if acc == nil {
				continue
			}
			id := strconv.FormatInt(event.Index, 10)
			switch delta := event.Delta.AsAny().(type) {
			case sdk.TextDelta:
				acc.text.WriteString(delta.Text)
				s.emit(llm.StreamEvent{Type: llm.StreamEventTextDelta, ID: id, Delta: delta.Text})
			case sdk.ThinkingDelta:
				acc.text.WriteString(delta.Thinking)
				s.emit(llm.StreamEvent{Type: llm.StreamEventReasoningDelta, ID: id, Delta: delta.Thinking})
			case sdk.SignatureDelta:
				acc.signature = delta.Signature
			case sdk.InputJSONDelta:
				acc.jsonInput.WriteString(delta.PartialJSON)
				s.emit(llm.StreamEvent{
					Type: llm.StreamEventToolCallDelta,
					ID:   id,
					ToolCallDelta: &llm.ToolCallDelta{
						ID: acc.toolID, Name: acc.toolName, Delta: delta.PartialJSON,
					},
				})
			}

		case "content_block_stop":
			acc := blocks[event.Index]
			if acc == nil {
				continue
			}
			id := strconv.FormatInt(event.Index, 10)
			switch acc.kind {
			case "text":
				final[event.Index] = llm.TextPart{Text: acc.text.String()}
				s.emit(llm.StreamEvent{Type: llm.StreamEventTextEnd, ID: id})
			case "thinking":
				final[event.Index] = llm.ThinkingPart{Text: acc.text.String(), Signature: acc.signature, Final: true}
				s.emit(llm.StreamEvent{Type: llm.StreamEventReasoningEnd, ID: id})
			case "tool_use":
				raw := acc.jsonInput.String()
				if raw == "" {
					raw = "{}"
				}
				part := llm.ToolUsePart{ID: acc.toolID, Name: acc.toolName}
				var probe json.RawMessage
				if err := json.Unmarshal([]byte(raw), &probe); err != nil {
					part.RawArguments = raw
					part.ParseError = err.Error()
				} else {
					part.Input = probe
				}
				final[event.Index] = part
				s.emit(llm.StreamEvent{Type: llm.StreamEventToolCallEnd, ID: id, ToolCall: &part})
			}
			delete(blocks, event.Index)

		case "message_delta":
			if event.Delta.StopReason != "" {
				stopReason = string(event.Delta.StopReason)
			}
			s.mu.Lock()
			s.usage.OutputTokens += int(event.Usage.OutputTokens)
			s.usage.TotalTokens = s.usage.InputTokens + s.usage.OutputTokens
			s.mu.Unlock()

		case "message_start":
			s.mu.Lock()
			s.usage.InputTokens = int(event.Message.Usage.InputTokens)
			s.usage.CacheReadTokens = int(event.Message.Usage.CacheReadInputTokens)
			s.usage.CacheWriteTokens = int(event.Message.Usage.CacheCreationInputTokens)
			messageID = event.Message.ID
			model = string(event.Message.Model)
			s.meta["message_id"] = event.Message.ID
			s.mu.Unlock()

		case "message_stop":
			// Finish is assembled once after the loop exits, so there is
			// nothing to do here beyond letting the loop terminate.
		}
	}
	emitStart()

	if err := s.raw.Err(); err != nil && err != io.EOF {
		s.mu.Lock()
		s.err = translateError(err)
		s.mu.Unlock()
		return
	}

	var parts []llm.ContentPart
	for _, idx := range order {
		if p, ok := final[idx]; ok {
			parts = append(parts, p)
		}
	}

	s.mu.Lock()
	usage := s.usage
	s.mu.Unlock()
	reason := llm.FinishReasonFor(stopReason, sawToolCall)
	resp := llm.AssembleResponse(messageID, model, "anthropic", parts, reason, usage)
	s.emit(llm.StreamEvent{Type: llm.StreamEventFinish, FinishReason: reason, Usage: usage, Response: resp})
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
func (s *streamer) Close() error {
	return s.raw.Close()
}

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
