package gemini

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"sync"

	"google.golang.org/genai"

	"stencilacore/llm"
)

// streamer adapts Gemini's whole-response JSON stream into llm.Streamer.
// Each yielded *genai.GenerateContentResponse repeats the full candidate
// text accumulated so far rather than an incremental delta, so the streamer
// tracks a per-block cursor and emits only the newly-appended suffix on
// each response, keeping the event contract consistent with
// anthropic/openai's delta-shaped StreamEvents.
type streamer struct {
	events chan llm.StreamEvent
	done   chan struct{}

	mu    sync.Mutex
	meta  map[string]any
	err   error
	usage llm.TokenUsage
}

func newStreamer(seq iter2) *streamer {
	s := &streamer{
		events: make(chan llm.StreamEvent, 16),
		done:   make(chan struct{}),
		meta:   map[string]any{},
	}
	go s.run(seq)
	return s
}

// textBlockID is the synthetic block id used for Gemini's single running
// text accumulation, since the provider carries no native block index.
const textBlockID = "0"

func (s *streamer) run(seq iter2) {
	defer close(s.events)
	defer close(s.done)

	var textSeen strings.Builder
	var parts []llm.ContentPart
	textStarted := false
	sawToolCall := false
	stopReason := ""
	responseID, model := "", ""
	started := false
	toolIndex := 0

	emitStart := func() {
		if !started {
			started = true
			s.emit(llm.StreamEvent{Type: llm.StreamEventStart})
		}
	}

	seq(func(resp *genai.GenerateContentResponse, err error) bool {
		emitStart()
		if err != nil {
			s.mu.Lock()
			s.err = translateError(err)
			s.mu.Unlock()
			return false
		}
		if resp.ResponseID != "" {
			responseID = resp.ResponseID
		}
		if resp.ModelVersion != "" {
			model = resp.ModelVersion
		}
		if len(resp.Candidates) == 0 {
			return true
		}
		cand := resp.Candidates[0]
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				switch {
				case part.Text != "":
					if !textStarted {
						textStarted = true
						s.emit(llm.StreamEvent{Type: llm.StreamEventTextStart, ID: textBlockID})
					}
					full := part.Text
					seen := textSeen.String()
					var delta string
					if strings.HasPrefix(full, seen) {
						delta = full[len(seen):]
					} else {
						// Response diverged from the tracked prefix (e.g. a
						// new candidate turn); emit it whole.
						delta = full
					}
					if delta != "" {
						s.emit(llm.StreamEvent{Type: llm.StreamEventTextDelta, ID: textBlockID, Delta: delta})
					}
					textSeen.Reset()
					textSeen.WriteString(full)
				case part.FunctionCall != nil:
					sawToolCall = true
					payload, _ := marshalArgs(part.FunctionCall.Args)
					id := strconv.Itoa(toolIndex)
					toolIndex++
					callPart := llm.ToolUsePart{Name: part.FunctionCall.Name}
					var probe json.RawMessage
					if err := json.Unmarshal(payload, &probe); err != nil {
						callPart.RawArguments = string(payload)
						callPart.ParseError = err.Error()
					} else {
						callPart.Input = payload
					}
					s.emit(llm.StreamEvent{Type: llm.StreamEventToolCallStart, ID: id, ToolCall: &llm.ToolUsePart{Name: part.FunctionCall.Name}})
					s.emit(llm.StreamEvent{Type: llm.StreamEventToolCallEnd, ID: id, ToolCall: &callPart})
					parts = append(parts, callPart)
				}
			}
		}
		if cand.FinishReason != "" {
			stopReason = string(cand.FinishReason)
		}
		if resp.UsageMetadata != nil {
			s.mu.Lock()
			s.usage = llm.TokenUsage{
				InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
				OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
			}
			s.mu.Unlock()
		}
		return true
	})
	emitStart()

	s.mu.Lock()
	err := s.err
	usage := s.usage
	s.mu.Unlock()
	if err != nil {
		return
	}

	if textStarted {
		s.emit(llm.StreamEvent{Type: llm.StreamEventTextEnd, ID: textBlockID})
	}
	var finalParts []llm.ContentPart
	if textSeen.Len() > 0 {
		finalParts = append(finalParts, llm.TextPart{Text: textSeen.String()})
	}
	finalParts = append(finalParts, parts...)

	reason := llm.FinishReasonFor(stopReason, sawToolCall)
	resp := llm.AssembleResponse(responseID, model, "gemini", finalParts, reason, usage)
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

// Close implements llm.Streamer. Gemini's streaming iterator carries no
// separate close handle; cancellation is driven entirely by the context
// passed to Stream.
func (s *streamer) Close() error { return nil }

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
