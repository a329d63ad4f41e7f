package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"stencilacore/llm"
)

func sampleToolDefs() []*llm.ToolDefinition {
	return []*llm.ToolDefinition{
		{
			Name:        "compute",
			Description: "computes a value",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"x": map[string]any{"type": "number"},
				},
				"required": []string{"x"},
			},
		},
	}
}

type completeOnlyClient struct {
	resp *llm.Response
}

func (c *completeOnlyClient) Complete(context.Context, *llm.Request) (*llm.Response, error) {
	return c.resp, nil
}

func (c *completeOnlyClient) Stream(context.Context, *llm.Request) (llm.Streamer, error) {
	return nil, nil
}

func TestToolSchemaValidatorAcceptsConformantPayload(t *testing.T) {
	payload, _ := json.Marshal(map[string]any{"x": 1})
	client := &completeOnlyClient{resp: &llm.Response{
		Message: llm.Message{Role: llm.RoleAssistant, Parts: []llm.ContentPart{
			llm.ToolUsePart{ID: "call_1", Name: "compute", Input: payload},
		}},
	}}
	wrapped := WrapToolSchemaValidation(client)

	resp, err := wrapped.Complete(context.Background(), &llm.Request{Tools: sampleToolDefs()})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(resp.Message.Parts) != 1 {
		t.Fatalf("expected tool call to pass through, got %+v", resp.Message.Parts)
	}
}

func TestToolSchemaValidatorRejectsViolatingPayload(t *testing.T) {
	payload, _ := json.Marshal(map[string]any{"x": "not a number"})
	client := &completeOnlyClient{resp: &llm.Response{
		Message: llm.Message{Role: llm.RoleAssistant, Parts: []llm.ContentPart{
			llm.ToolUsePart{ID: "call_1", Name: "compute", Input: payload},
		}},
	}}
	wrapped := WrapToolSchemaValidation(client)

	_, err := wrapped.Complete(context.Background(), &llm.Request{Tools: sampleToolDefs()})
	if err == nil {
		t.Fatal("expected schema violation to be rejected")
	}
	var sdkErr *llm.SdkError
	if !errors.As(err, &sdkErr) {
		t.Fatalf("expected an *llm.SdkError, got %T", err)
	}
	if sdkErr.Kind != llm.SdkErrorInvalidRequest {
		t.Fatalf("expected SdkErrorInvalidRequest, got %v", sdkErr.Kind)
	}
}

func TestToolSchemaValidatorRejectsMissingRequiredField(t *testing.T) {
	payload, _ := json.Marshal(map[string]any{})
	client := &completeOnlyClient{resp: &llm.Response{
		Message: llm.Message{Role: llm.RoleAssistant, Parts: []llm.ContentPart{
			llm.ToolUsePart{ID: "call_1", Name: "compute", Input: payload},
		}},
	}}
	wrapped := WrapToolSchemaValidation(client)

	_, err := wrapped.Complete(context.Background(), &llm.Request{Tools: sampleToolDefs()})
	if err == nil {
		t.Fatal("expected missing required field to be rejected")
	}
}

func TestToolSchemaValidatorIgnoresUndeclaredTool(t *testing.T) {
	payload, _ := json.Marshal(map[string]any{"anything": true})
	client := &completeOnlyClient{resp: &llm.Response{
		Message: llm.Message{Role: llm.RoleAssistant, Parts: []llm.ContentPart{
			llm.ToolUsePart{ID: "call_1", Name: "unknown_tool", Input: payload},
		}},
	}}
	wrapped := WrapToolSchemaValidation(client)

	resp, err := wrapped.Complete(context.Background(), &llm.Request{Tools: sampleToolDefs()})
	if err != nil {
		t.Fatalf("expected tool calls with no matching schema to pass through, got: %v", err)
	}
	if len(resp.Message.Parts) != 1 {
		t.Fatalf("expected tool call to pass through, got %+v", resp.Message.Parts)
	}
}
