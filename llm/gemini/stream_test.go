package gemini

import (
	"io"
	"testing"

	"google.golang.org/genai"

	"stencilacore/llm"
)

func TestStreamerDerivesTextDeltasFromWholeResponsePrefix(t *testing.T) {
	chunks := []*genai.GenerateContentResponse{
		{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "Hel"}}}}}},
		{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "Hello"}}}}}},
		{Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: "Hello"}}},
			FinishReason: genai.FinishReasonStop,
		}}},
	}
	seq := func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	}

	s := newStreamer(seq)
	defer s.Close()

	var texts []string
	var sawFinish bool
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
		case llm.StreamEventTextDelta:
			texts = append(texts, ev.Delta)
		case llm.StreamEventFinish:
			sawFinish = true
			finishReason = ev.FinishReason
			finalResponse = ev.Response
		}
	}

	if len(texts) != 2 || texts[0] != "Hel" || texts[1] != "lo" {
		t.Fatalf("expected deltas [\"Hel\",\"lo\"], got %v", texts)
	}
	if !sawFinish {
		t.Fatal("expected a Finish event")
	}
	if finishReason.Raw != string(genai.FinishReasonStop) {
		t.Fatalf("unexpected raw finish reason %q", finishReason.Raw)
	}
	if finalResponse == nil || len(finalResponse.Message.Parts) != 1 {
		t.Fatalf("expected Finish.response.message to carry 1 part, got %+v", finalResponse)
	}
	if got := finalResponse.Message.Parts[0].(llm.TextPart).Text; got != "Hello" {
		t.Fatalf("unexpected accumulated text %q", got)
	}
}

func TestStreamerEmitsFunctionCall(t *testing.T) {
	chunks := []*genai.GenerateContentResponse{
		{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
			{FunctionCall: &genai.FunctionCall{Name: "search", Args: map[string]any{"q": "go"}}},
		}}}}},
	}
	seq := func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	}

	s := newStreamer(seq)
	defer s.Close()

	var sawToolCallEnd bool
	var finishReason llm.FinishReason
	for {
		ev, err := s.Recv()
		if err != nil {
			if err != io.EOF {
				t.Fatalf("Recv: %v", err)
			}
			break
		}
		if ev.Type == llm.StreamEventToolCallEnd && ev.ToolCall != nil && ev.ToolCall.Name == "search" {
			sawToolCallEnd = true
		}
		if ev.Type == llm.StreamEventFinish {
			finishReason = ev.FinishReason
		}
	}

	if !sawToolCallEnd {
		t.Fatal("expected a finalized function call event")
	}
	if finishReason.Reason != llm.FinishToolCalls {
		t.Fatalf("expected finish reason coerced to tool_calls, got %q", finishReason.Reason)
	}
}
