package openai

import (
	"context"
	"errors"
	"testing"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/responses"

	"stencilacore/llm"
)

type stubResponsesClient struct {
	lastParams responses.ResponseNewParams
	resp       *responses.Response
	err        error
	stream     *ssestream.Stream[responses.ResponseStreamEventUnion]
}

func (s *stubResponsesClient) New(_ context.Context, body responses.ResponseNewParams, _ ...option.RequestOption) (*responses.Response, error) {
	s.lastParams = body
	return s.resp, s.err
}

func (s *stubResponsesClient) NewStreaming(_ context.Context, body responses.ResponseNewParams, _ ...option.RequestOption) *ssestream.Stream[responses.ResponseStreamEventUnion] {
	s.lastParams = body
	if s.stream == nil {
		s.stream = ssestream.NewStream[responses.ResponseStreamEventUnion](&noopDecoder{}, nil)
	}
	return s.stream
}

type noopDecoder struct{}

func (n *noopDecoder) Event() ssestream.Event { return ssestream.Event{} }
func (n *noopDecoder) Next() bool             { return false }
func (n *noopDecoder) Close() error           { return nil }
func (n *noopDecoder) Err() error             { return nil }

func sampleRequest() *llm.Request {
	return &llm.Request{
		Messages: []*llm.Message{
			{Role: llm.RoleUser, Parts: []llm.ContentPart{llm.TextPart{Text: "hello"}}},
		},
	}
}

func TestCompleteDecodesTextResponse(t *testing.T) {
	stub := &stubResponsesClient{resp: &responses.Response{
		Output: []responses.ResponseOutputItemUnion{
			{
				Type: "message",
				Content: []responses.ResponseOutputMessageContentUnion{
					{Type: "output_text", Text: "world"},
				},
			},
		},
		Usage: responses.ResponseUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}}
	cl := NewWithResponsesClient(stub, nil, Options{DefaultModel: "gpt-5"})

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
	stub := &stubResponsesClient{resp: &responses.Response{
		Output: []responses.ResponseOutputItemUnion{
			{Type: "function_call", CallID: "call_1", Name: "search", Arguments: `{"q":"go"}`},
		},
	}}
	cl := NewWithResponsesClient(stub, nil, Options{DefaultModel: "gpt-5"})

	resp, err := cl.Complete(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(resp.Message.Parts) != 1 {
		t.Fatalf("expected 1 content part, got %d", len(resp.Message.Parts))
	}
	toolUse, ok := resp.Message.Parts[0].(llm.ToolUsePart)
	if !ok {
		t.Fatalf("expected ToolUsePart, got %T", resp.Message.Parts[0])
	}
	if toolUse.Name != "search" || toolUse.ID != "call_1" {
		t.Fatalf("unexpected tool call: %+v", toolUse)
	}
	if resp.FinishReason.Reason != llm.FinishToolCalls {
		t.Fatalf("expected finish reason tool_calls, got %q", resp.FinishReason.Reason)
	}
}

func TestCompleteRejectsMissingModel(t *testing.T) {
	stub := &stubResponsesClient{}
	cl := NewWithResponsesClient(stub, nil, Options{})

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
	apiErr := &openaisdk.Error{StatusCode: 429}
	stub := &stubResponsesClient{err: apiErr}
	cl := NewWithResponsesClient(stub, nil, Options{DefaultModel: "gpt-5"})

	_, err := cl.Complete(context.Background(), sampleRequest())
	var sdkErr *llm.SdkError
	if !errors.As(err, &sdkErr) {
		t.Fatalf("expected *llm.SdkError, got %T", err)
	}
	if sdkErr.Kind != llm.SdkErrorRateLimited {
		t.Fatalf("expected SdkErrorRateLimited, got %v", sdkErr.Kind)
	}
}
