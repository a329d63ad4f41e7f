package gemini

import (
	"encoding/json"
	"errors"
	"testing"

	"stencilacore/llm"
)

func TestEncodeRequestSplitsSystemInstruction(t *testing.T) {
	req := &llm.Request{
		Messages: []*llm.Message{
			{Role: llm.RoleSystem, Parts: []llm.ContentPart{llm.TextPart{Text: "be concise"}}},
			{Role: llm.RoleUser, Parts: []llm.ContentPart{llm.TextPart{Text: "hi"}}},
		},
	}
	contents, cfg, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if cfg.SystemInstruction == nil || len(cfg.SystemInstruction.Parts) != 1 {
		t.Fatalf("expected system instruction to be set, got %+v", cfg.SystemInstruction)
	}
	if len(contents) != 1 || contents[0].Role != "user" {
		t.Fatalf("unexpected contents: %+v", contents)
	}
}

func TestEncodeRequestAssistantRoleIsModel(t *testing.T) {
	req := &llm.Request{
		Messages: []*llm.Message{
			{Role: llm.RoleUser, Parts: []llm.ContentPart{llm.TextPart{Text: "hi"}}},
			{Role: llm.RoleAssistant, Parts: []llm.ContentPart{llm.TextPart{Text: "hello"}}},
		},
	}
	contents, _, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if contents[1].Role != "model" {
		t.Fatalf("expected assistant role to translate to \"model\", got %q", contents[1].Role)
	}
}

func TestFindFunctionNameCorrelatesByID(t *testing.T) {
	input, _ := json.Marshal(map[string]any{"x": 1})
	msgs := []*llm.Message{
		{Role: llm.RoleUser, Parts: []llm.ContentPart{llm.TextPart{Text: "compute x"}}},
		{Role: llm.RoleAssistant, Parts: []llm.ContentPart{
			llm.ToolUsePart{ID: "call_1", Name: "compute", Input: input},
		}},
	}
	name, err := findFunctionName(msgs, "call_1")
	if err != nil {
		t.Fatalf("findFunctionName: %v", err)
	}
	if name != "compute" {
		t.Fatalf("expected function name %q, got %q", "compute", name)
	}
}

func TestFindFunctionNameMissingCorrelationErrors(t *testing.T) {
	_, err := findFunctionName(nil, "call_missing")
	if err == nil {
		t.Fatal("expected error for unmatched tool_call_id")
	}
	var sdkErr *llm.SdkError
	if !errors.As(err, &sdkErr) || sdkErr.Kind != llm.SdkErrorInvalidRequest {
		t.Fatalf("expected SdkErrorInvalidRequest, got %v", err)
	}
}
