package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"stencilacore/llm"
)

type stubRuntimeClient struct {
	converseOutput *bedrockruntime.ConverseOutput
	converseErr    error
	streamOutput   *bedrockruntime.ConverseStreamOutput
	streamErr      error
}

func (s *stubRuntimeClient) Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return s.converseOutput, s.converseErr
}

func (s *stubRuntimeClient) ConverseStream(context.Context, *bedrockruntime.ConverseStreamInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	return s.streamOutput, s.streamErr
}

type fakeAPIError struct {
	code string
	msg  string
}

func (e *fakeAPIError) Error() string          { return e.msg }
func (e *fakeAPIError) ErrorCode() string       { return e.code }
func (e *fakeAPIError) ErrorMessage() string    { return e.msg }
func (e *fakeAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

func sampleRequest() *llm.Request {
	return &llm.Request{
		Messages: []*llm.Message{
			{Role: llm.RoleUser, Parts: []llm.ContentPart{llm.TextPart{Text: "hi"}}},
		},
	}
}

func TestCompleteDecodesTextResponse(t *testing.T) {
	stub := &stubRuntimeClient{converseOutput: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: "world"},
				},
			},
		},
		StopReason: brtypes.StopReasonEndTurn,
		Usage: &brtypes.TokenUsage{
			InputTokens: aws.Int32(10), OutputTokens: aws.Int32(5), TotalTokens: aws.Int32(15),
		},
	}}
	cl, err := New(stub, Options{DefaultModel: "anthropic.claude-3"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

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

func TestCompleteDecodesToolUse(t *testing.T) {
	input := document.NewLazyDocument(map[string]any{"q": "go"})
	stub := &stubRuntimeClient{converseOutput: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
						ToolUseId: aws.String("tool-1"), Name: aws.String("search"), Input: input,
					}},
				},
			},
		},
		StopReason: brtypes.StopReasonToolUse,
	}}
	cl, err := New(stub, Options{DefaultModel: "anthropic.claude-3"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := cl.Complete(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(resp.Message.Parts) != 1 {
		t.Fatalf("expected 1 content part, got %d", len(resp.Message.Parts))
	}
	toolUse, ok := resp.Message.Parts[0].(llm.ToolUsePart)
	if !ok || toolUse.Name != "search" || toolUse.ID != "tool-1" {
		t.Fatalf("unexpected tool call: %+v", resp.Message.Parts[0])
	}
	if resp.FinishReason.Reason != llm.FinishToolCalls {
		t.Fatalf("expected finish reason tool_calls, got %q", resp.FinishReason.Reason)
	}
}

func TestNewRejectsMissingDefaultModel(t *testing.T) {
	_, err := New(&stubRuntimeClient{}, Options{})
	if err == nil {
		t.Fatal("expected error for missing default model")
	}
}

func TestTranslateErrorClassifiesThrottling(t *testing.T) {
	stub := &stubRuntimeClient{converseErr: &fakeAPIError{code: "ThrottlingException", msg: "slow down"}}
	cl, err := New(stub, Options{DefaultModel: "anthropic.claude-3"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = cl.Complete(context.Background(), sampleRequest())
	var sdkErr *llm.SdkError
	if !errors.As(err, &sdkErr) {
		t.Fatalf("expected *llm.SdkError, got %T", err)
	}
	if sdkErr.Kind != llm.SdkErrorRateLimited {
		t.Fatalf("expected SdkErrorRateLimited, got %v", sdkErr.Kind)
	}
}
