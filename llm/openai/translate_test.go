package openai

import (
	"testing"

	"stencilacore/llm"
)

func TestEncodeRequestConcatenatesInstructions(t *testing.T) {
	req := &llm.Request{
		Messages: []*llm.Message{
			{Role: llm.RoleSystem, Parts: []llm.ContentPart{llm.TextPart{Text: "be terse"}}},
			{Role: llm.RoleSystem, Parts: []llm.ContentPart{llm.TextPart{Text: "cite sources"}}},
			{Role: llm.RoleUser, Parts: []llm.ContentPart{llm.TextPart{Text: "hi"}}},
		},
	}
	params, err := EncodeRequest(req, "gpt-5")
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if !params.Instructions.Valid() || params.Instructions.Value != "be terse\n\ncite sources" {
		t.Fatalf("instructions not concatenated: %+v", params.Instructions)
	}
}

func TestEncodeRequestRejectsEmptyInput(t *testing.T) {
	_, err := EncodeRequest(&llm.Request{}, "gpt-5")
	if err == nil {
		t.Fatal("expected error for empty messages")
	}
}

func TestEncodeRequestDropsRedactedThinking(t *testing.T) {
	req := &llm.Request{
		Messages: []*llm.Message{
			{Role: llm.RoleAssistant, Parts: []llm.ContentPart{
				llm.RedactedThinkingPart{Payload: []byte("opaque")},
				llm.TextPart{Text: "answer"},
			}},
		},
	}
	params, err := EncodeRequest(req, "gpt-5")
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if len(params.Input.OfInputItemList) != 1 {
		t.Fatalf("expected redacted thinking to be dropped, got %d items", len(params.Input.OfInputItemList))
	}
}

func TestEncodeRequestFunctionCallOutputCorrelatesByCallID(t *testing.T) {
	req := &llm.Request{
		Messages: []*llm.Message{
			{Role: llm.RoleUser, Parts: []llm.ContentPart{
				llm.ToolResultPart{ToolUseID: "call_1", Content: "42"},
			}},
		},
	}
	params, err := EncodeRequest(req, "gpt-5")
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if len(params.Input.OfInputItemList) != 1 {
		t.Fatalf("expected one function_call_output item, got %d", len(params.Input.OfInputItemList))
	}
}
