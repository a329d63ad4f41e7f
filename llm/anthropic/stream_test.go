package anthropic

import (
	"encoding/json"
	"io"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"stencilacore/llm"
)

// testDecoder feeds a fixed sequence of events to the ssestream.Stream.
type testDecoder struct {
	events []ssestream.Event
	i      int
}

func (d *testDecoder) Event() ssestream.Event { return d.events[d.i-1] }

func (d *testDecoder) Next() bool {
	if d.i >= len(d.events) {
		return false
	}
	d.i++
	return true
}

func (d *testDecoder) Close() error { return nil }
func (d *testDecoder) Err() error   { return nil }

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func unmarshalEvent(t *testing.T, raw string) sdk.MessageStreamEventUnion {
	t.Helper()
	var ev sdk.MessageStreamEventUnion
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return ev
}

func TestStreamerTextAndToolCall(t *testing.T) {
	textStart := unmarshalEvent(t, `{
		"type": "content_block_start",
		"index": 0,
		"content_block": { "type": "text", "text": "" }
	}`)
	textDelta := unmarshalEvent(t, `{
		"type": "content_block_delta",
		"index": 0,
		"delta": { "type": "text_delta", "text": "hello" }
	}`)
	textStop := unmarshalEvent(t, `{
		"type": "content_block_stop",
		"index": 0
	}`)
	toolStart := unmarshalEvent(t, `{
		"type": "content_block_start",
		"index": 1,
		"content_block": { "type": "tool_use", "id": "t1", "name": "search" }
	}`)
	toolDelta := unmarshalEvent(t, `{
		"type": "content_block_delta",
		"index": 1,
		"delta": { "type": "input_json_delta", "partial_json": "{\"x\":1}" }
	}`)
	toolStop := unmarshalEvent(t, `{
		"type": "content_block_stop",
		"index": 1
	}`)
	stop := unmarshalEvent(t, `{ "type": "message_stop" }`)

	events := []ssestream.Event{
		{Type: "content_block_start", Data: mustJSON(textStart)},
		{Type: "content_block_delta", Data: mustJSON(textDelta)},
		{Type: "content_block_stop", Data: mustJSON(textStop)},
		{Type: "content_block_start", Data: mustJSON(toolStart)},
		{Type: "content_block_delta", Data: mustJSON(toolDelta)},
		{Type: "content_block_stop", Data: mustJSON(toolStop)},
		{Type: "message_stop", Data: mustJSON(stop)},
	}

	dec := &testDecoder{events: events}
	raw := ssestream.NewStream[sdk.MessageStreamEventUnion](dec, nil)
	s := newStreamer(raw)
	defer s.Close()

	var startCount int
	var sawText, sawToolCallEnd, sawFinish bool
	var finishReason llm.FinishReason
	var finalResponse *llm.Response
	for {
		ev, err := s.Recv()
		if err != nil {
			if err != io.EOF {
				t.Fatalf("Recv: %v", err)
			}
			break
		}
		switch ev.Type {
		case llm.StreamEventStart:
			startCount++
		case llm.StreamEventTextDelta:
			if ev.Delta == "hello" {
				sawText = true
			}
		case llm.StreamEventToolCallEnd:
			if ev.ToolCall != nil && ev.ToolCall.Name == "search" && ev.ToolCall.ID == "t1" {
				sawToolCallEnd = true
			}
		case llm.StreamEventFinish:
			sawFinish = true
			finishReason = ev.FinishReason
			finalResponse = ev.Response
		}
	}

	if startCount != 1 {
		t.Fatalf("expected exactly one StreamStart event, got %d", startCount)
	}
	if !sawText {
		t.Fatal("expected a text delta event for \"hello\"")
	}
	if !sawToolCallEnd {
		t.Fatal("expected a finalized tool call event")
	}
	if !sawFinish {
		t.Fatal("expected a Finish event")
	}
	if finishReason.Reason != llm.FinishToolCalls {
		t.Fatalf("expected finish reason coerced to tool_calls, got %q", finishReason.Reason)
	}
	if finalResponse == nil || len(finalResponse.Message.Parts) != 2 {
		t.Fatalf("expected Finish.response.message to carry 2 parts, got %+v", finalResponse)
	}
	if got := finalResponse.Message.Parts[0].(llm.TextPart).Text; got != "hello" {
		t.Fatalf("unexpected accumulated text %q", got)
	}
}
