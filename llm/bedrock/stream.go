package bedrock

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"stencilacore/llm"
)

// streamer adapts a Bedrock ConverseStream event channel into llm.Streamer,
// grounded 1:1 on features/model/bedrock/stream.go's event switch over
// ConverseStreamOutputMember* variants.
type streamer struct {
	output *bedrockruntime.ConverseStreamOutput
	events chan llm.StreamEvent
	done   chan struct{}

	mu    sync.Mutex
	meta  map[string]any
	err   error
	usage llm.TokenUsage
}

func newStreamer(output *bedrockruntime.ConverseStreamOutput) *streamer {
	s := &streamer{
		output: output,
		events: make(chan llm.StreamEvent, 16),
		done:   make(chan struct{}),
		meta:   map[string]any{},
	}
	go s.run()
	return s
}

type blockState struct {
	kind      string // "text", "reasoning", or "tool_use"
	toolID    string
	toolName  string
	jsonInput strings.Builder
	text      strings.Builder
}

func (s *streamer) run() {
	defer close(s.events)
	defer close(s.done)

	blocks := map[int32]*blockState{}
	var order []int32
	final := map[int32]llm.ContentPart{}
	signatures := map[int32]string{}
	sawToolCall := false
	stopReason := ""
	started := false

	emitStart := func() {
		if !started {
			started = true
			s.emit(llm.StreamEvent{Type: llm.StreamEventStart})
		}
	}

	stream := s.output.GetStream()
	for event := range stream.Events() {
		emitStart()
		switch e := event.(type) {
		case *brtypes.ConverseStreamOutputMemberContentBlockStart:
			start := e.Value
			idx := ptrValue(start.ContentBlockIndex)
			bs := &blockState{}
			if tu, ok := start.Start.(*brtypes.ContentBlockStartMemberToolUse); ok {
				bs.kind = "tool_use"
				if tu.Value.Name != nil {
					bs.toolName = *tu.Value.Name
				}
				if tu.Value.ToolUseId != nil {
					bs.toolID = *tu.Value.ToolUseId
				}
				sawToolCall = true
				s.emit(llm.StreamEvent{
					Type: llm.StreamEventToolCallStart, ID: strconv.Itoa(int(idx)),
					ToolCall: &llm.ToolUsePart{ID: bs.toolID, Name: bs.toolName},
				})
			}
			blocks[idx] = bs
			order = append(order, idx)

		case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
			delta := e.Value
			idx := ptrValue(delta.ContentBlockIndex)
			id := strconv.Itoa(int(idx))
			bs := blocks[idx]
			switch d := delta.Delta.(type) {
			case *brtypes.ContentBlockDeltaMemberText:
				if bs == nil {
					bs = &blockState{kind: "text"}
					blocks[idx] = bs
					order = append(order, idx)
					s.emit(llm.StreamEvent{Type: llm.StreamEventTextStart, ID: id})
				} else if bs.kind == "" {
					bs.kind = "text"
					s.emit(llm.StreamEvent{Type: llm.StreamEventTextStart, ID: id})
				}
				bs.text.WriteString(d.Value)
				s.emit(llm.StreamEvent{Type: llm.StreamEventTextDelta, ID: id, Delta: d.Value})
			case *brtypes.ContentBlockDeltaMemberReasoningContent:
				switch rd := d.Value.(type) {
				case *brtypes.ReasoningContentBlockDeltaMemberText:
					if bs == nil {
						bs = &blockState{kind: "reasoning"}
						blocks[idx] = bs
						order = append(order, idx)
						s.emit(llm.StreamEvent{Type: llm.StreamEventReasoningStart, ID: id})
					} else if bs.kind == "" {
						bs.kind = "reasoning"
						s.emit(llm.StreamEvent{Type: llm.StreamEventReasoningStart, ID: id})
					}
					bs.text.WriteString(rd.Value)
					s.emit(llm.StreamEvent{Type: llm.StreamEventReasoningDelta, ID: id, Delta: rd.Value})
				case *brtypes.ReasoningContentBlockDeltaMemberSignature:
					// Signature arrives after the reasoning text completes;
					// correlated by block index on content_block_stop.
					signatures[idx] = rd.Value
				}
			case *brtypes.ContentBlockDeltaMemberToolUse:
				if bs == nil {
					continue
				}
				frag := ""
				if d.Value.Input != nil {
					frag = *d.Value.Input
				}
				bs.jsonInput.WriteString(frag)
				s.emit(llm.StreamEvent{
					Type: llm.StreamEventToolCallDelta, ID: id,
					ToolCallDelta: &llm.ToolCallDelta{ID: bs.toolID, Name: bs.toolName, Delta: frag},
				})
			}

		case *brtypes.ConverseStreamOutputMemberContentBlockStop:
			idx := ptrValue(e.Value.ContentBlockIndex)
			id := strconv.Itoa(int(idx))
			bs := blocks[idx]
			if bs == nil {
				continue
			}
			switch bs.kind {
			case "tool_use":
				raw := bs.jsonInput.String()
				if raw == "" {
					raw = "{}"
				}
				part := llm.ToolUsePart{ID: bs.toolID, Name: bs.toolName}
				var probe json.RawMessage
				if err := json.Unmarshal([]byte(raw), &probe); err != nil {
					part.RawArguments = raw
					part.ParseError = err.Error()
				} else {
					part.Input = probe
				}
				final[idx] = part
				s.emit(llm.StreamEvent{Type: llm.StreamEventToolCallEnd, ID: id, ToolCall: &part})
			case "text":
				final[idx] = llm.TextPart{Text: bs.text.String()}
				s.emit(llm.StreamEvent{Type: llm.StreamEventTextEnd, ID: id})
			case "reasoning":
				final[idx] = llm.ThinkingPart{Text: bs.text.String(), Signature: signatures[idx], Final: true}
				s.emit(llm.StreamEvent{Type: llm.StreamEventReasoningEnd, ID: id})
			}
			delete(blocks, idx)

		case *brtypes.ConverseStreamOutputMemberMessageStop:
			stopReason = string(e.Value.StopReason)

		case *brtypes.ConverseStreamOutputMemberMetadata:
			if u := e.Value.Usage; u != nil {
				s.mu.Lock()
				s.usage = llm.TokenUsage{
					InputTokens:      int(ptrValue(u.InputTokens)),
					OutputTokens:     int(ptrValue(u.OutputTokens)),
					TotalTokens:      int(ptrValue(u.TotalTokens)),
					CacheReadTokens:  int(ptrValue(u.CacheReadInputTokens)),
					CacheWriteTokens: int(ptrValue(u.CacheWriteInputTokens)),
				}
				s.mu.Unlock()
			}
		}
	}
	emitStart()

	if err := stream.Close(); err != nil {
		s.mu.Lock()
		s.err = translateError(err)
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	usage := s.usage
	s.mu.Unlock()

	var parts []llm.ContentPart
	for _, idx := range order {
		if p, ok := final[idx]; ok {
			parts = append(parts, p)
		}
	}

	reason := llm.FinishReasonFor(stopReason, sawToolCall)
	resp := llm.AssembleResponse("", "", "bedrock", parts, reason, usage)
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
func (s *streamer) Close() error { return s.output.GetStream().Close() }

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
