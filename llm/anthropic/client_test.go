package anthropic

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"stencilacore/llm"
)

type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
	stream     *ssestream.Stream[sdk.MessageStreamEventUnion]
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func (s *stubMessagesClient) NewStreaming(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	s.lastParams = body
	if s.stream == nil {
		s.stream = ssestream.NewStream[sdk.MessageStreamEventUnion](&noopDecoder{}, nil)
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
	stub := &stubMessagesClient{resp: &sdk.Message{
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "world"},
		},
		StopReason: sdk.StopReasonEndTurn,
		Usage:      sdk.Usage{InputTokens: 10, OutputTokens: 5},
	}}
	cl := NewWithMessagesClient(stub, nil, Options{DefaultModel: "claude-sonnet"})

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
	if resp.FinishReason.Reason != llm.FinishStop {
		t.Fatalf("expected FinishStop, got %v", resp.FinishReason.Reason)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Fatalf("expected total tokens 15, got %d", resp.Usage.TotalTokens)
	}
}

func TestCompleteDecodesToolUse(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{
		Content: []sdk.ContentBlockUnion{
			{Type: "tool_use", Name: "search", ID: "tool-1", Input: []byte(`{"q":"go"}`)},
		},
		StopReason: sdk.StopReasonToolUse,
	}}
	cl := NewWithMessagesClient(stub, nil, Options{DefaultModel: "claude-sonnet"})

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
	if toolUse.Name != "search" || toolUse.ID != "tool-1" {
		t.Fatalf("unexpected tool call: %+v", toolUse)
	}
	if resp.FinishReason.Reason != llm.FinishToolCalls {
		t.Fatalf("expected FinishToolCalls, got %v", resp.FinishReason.Reason)
	}
}

func TestCompleteRejectsMissingModel(t *testing.T) {
	stub := &stubMessagesClient{}
	cl := NewWithMessagesClient(stub, nil, Options{})

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
	apiErr := &sdk.Error{StatusCode: 429}
	stub := &stubMessagesClient{err: apiErr}
	cl := NewWithMessagesClient(stub, nil, Options{DefaultModel: "claude-sonnet"})

	_, err := cl.Complete(context.Background(), sampleRequest())
	var sdkErr *llm.SdkError
	if !errors.As(err, &sdkErr) {
		t.Fatalf("expected *llm.SdkError, got %T", err)
	}
	if sdkErr.Kind != llm.SdkErrorRateLimited {
		t.Fatalf("expected SdkErrorRateLimited, got %v", sdkErr.Kind)
	}
}
