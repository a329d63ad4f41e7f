package openai

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/responses"

	"stencilacore/llm"
)

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

func unmarshalEvent(t *testing.T, raw string) responses.ResponseStreamEventUnion {
	t.Helper()
	var ev responses.ResponseStreamEventUnion
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return ev
}

func TestStreamerTextAndFunctionCall(t *testing.T) {
	textDelta := unmarshalEvent(t, `{
		"type": "response.output_text.delta",
		"delta": "hello"
	}`)
	itemAdded := unmarshalEvent(t, `{
		"type": "response.output_item.added",
		"output_index": 0,
		"item": { "type": "function_call", "call_id": "call_1", "name": "search" }
	}`)
	argsDelta := unmarshalEvent(t, `{
		"type": "response.function_call_arguments.delta",
		"output_index": 0,
		"delta": "{\"q\":1}"
	}`)
	argsDone := unmarshalEvent(t, `{
		"type": "response.function_call_arguments.done",
		"output_index": 0
	}`)
	completed := unmarshalEvent(t, `{
		"type": "response.completed",
		"response": { "status": "completed", "usage": { "input_tokens": 10, "output_tokens": 5, "total_tokens": 15 } }
	}`)

	events := []ssestream.Event{
		{Type: "response.output_text.delta", Data: mustJSON(textDelta)},
		{Type: "response.output_item.added", Data: mustJSON(itemAdded)},
		{Type: "response.function_call_arguments.delta", Data: mustJSON(argsDelta)},
		{Type: "response.function_call_arguments.done", Data: mustJSON(argsDone)},
		{Type: "response.completed", Data: mustJSON(completed)},
	}

	dec := &testDecoder{events: events}
	raw := ssestream.NewStream[responses.ResponseStreamEventUnion](dec, nil)
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
			if ev.ToolCall != nil && ev.ToolCall.Name == "search" && ev.ToolCall.ID == "call_1" {
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
		t.Fatal("expected a text delta event")
	}
	if !sawToolCallEnd {
		t.Fatal("expected a finalized function call event")
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
}
