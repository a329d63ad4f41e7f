package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"stencilacore/llm"
)

type stubModelsClient struct {
	resp   *genai.GenerateContentResponse
	err    error
	chunks []*genai.GenerateContentResponse
}

func (s *stubModelsClient) GenerateContent(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return s.resp, s.err
}

func (s *stubModelsClient) GenerateContentStream(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) iter2 {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range s.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

func sampleRequest() *llm.Request {
	return &llm.Request{
		Messages: []*llm.Message{
			{Role: llm.RoleUser, Parts: []llm.ContentPart{llm.TextPart{Text: "hi"}}},
		},
	}
}

func TestCompleteDecodesTextResponse(t *testing.T) {
	stub := &stubModelsClient{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content:      &genai.Content{Role: "model", Parts: []*genai.Part{{Text: "world"}}},
				FinishReason: genai.FinishReasonStop,
			},
		},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount: 10, CandidatesTokenCount: 5, TotalTokenCount: 15,
		},
	}}
	cl := &Client{models: stub, opts: Options{DefaultModel: "gemini-2.5-pro"}}

	resp, err := cl.Complete(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(resp.Message.Parts) != 1 {
		t.Fatalf("expected 1 content part, got %d", len(resp.Message.Parts))
	}
	if got := resp.Message.Parts[0].(llm.TextPart).Text; got != "world" {
		t.Fatalf("unexpected text %q", got)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Fatalf("expected total tokens 15, got %d", resp.Usage.TotalTokens)
	}
}

func TestCompleteDecodesFunctionCall(t *testing.T) {
	stub := &stubModelsClient{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{Role: "model", Parts: []*genai.Part{
					{FunctionCall: &genai.FunctionCall{Name: "search", Args: map[string]any{"q": "go"}}},
				}},
			},
		},
	}}
	cl := &Client{models: stub, opts: Options{DefaultModel: "gemini-2.5-pro"}}

	resp, err := cl.Complete(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(resp.Message.Parts) != 1 {
		t.Fatalf("expected 1 content part, got %d", len(resp.Message.Parts))
	}
	toolUse, ok := resp.Message.Parts[0].(llm.ToolUsePart)
	if !ok || toolUse.Name != "search" {
		t.Fatalf("unexpected tool call: %+v", resp.Message.Parts[0])
	}
	if resp.FinishReason.Reason != llm.FinishToolCalls {
		t.Fatalf("expected finish reason tool_calls, got %q", resp.FinishReason.Reason)
	}
}

func TestCompleteRejectsMissingModel(t *testing.T) {
	stub := &stubModelsClient{}
	cl := &Client{models: stub, opts: Options{}}

	_, err := cl.Complete(context.Background(), sampleRequest())
	if err == nil {
		t.Fatal("expected error for missing model")
	}
	var sdkErr *llm.SdkError
	if !errors.As(err, &sdkErr) || sdkErr.Kind != llm.SdkErrorInvalidRequest {
		t.Fatalf("expected SdkErrorInvalidRequest, got %v", err)
	}
}

func TestTranslateErrorClassifiesRateLimited(t *testing.T) {
	stub := &stubModelsClient{err: &genai.APIError{Code: 429}}
	cl := &Client{models: stub, opts: Options{DefaultModel: "gemini-2.5-pro"}}

	_, err := cl.Complete(context.Background(), sampleRequest())
	var sdkErr *llm.SdkError
	if !errors.As(err, &sdkErr) {
		t.Fatalf("expected *llm.SdkError, got %T", err)
	}
	if sdkErr.Kind != llm.SdkErrorRateLimited {
		t.Fatalf("expected SdkErrorRateLimited, got %v", sdkErr.Kind)
	}
}
