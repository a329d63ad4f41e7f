package anthropic

import (
	"testing"

	"stencilacore/llm"
)

func TestEncodeRequestMergesConsecutiveSameRoleMessages(t *testing.T) {
	req := &llm.Request{
		Messages: []*llm.Message{
			{Role: llm.RoleUser, Parts: []llm.ContentPart{llm.TextPart{Text: "first"}}},
			{Role: llm.RoleUser, Parts: []llm.ContentPart{llm.TextPart{Text: "second"}}},
		},
	}
	params, err := EncodeRequest(req, "claude-sonnet")
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if len(params.Messages) != 1 {
		t.Fatalf("expected consecutive user messages to merge into one, got %d", len(params.Messages))
	}
	if len(params.Messages[0].Content) != 2 {
		t.Fatalf("expected merged message to carry both blocks, got %d", len(params.Messages[0].Content))
	}
}

func TestEncodeRequestConcatenatesSystemMessages(t *testing.T) {
	req := &llm.Request{
		Messages: []*llm.Message{
			{Role: llm.RoleSystem, Parts: []llm.ContentPart{llm.TextPart{Text: "be helpful"}}},
			{Role: llm.RoleUser, Parts: []llm.ContentPart{llm.TextPart{Text: "hi"}}},
		},
	}
	params, err := EncodeRequest(req, "claude-sonnet")
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if len(params.System) != 1 || params.System[0].Text != "be helpful" {
		t.Fatalf("system block not translated correctly: %+v", params.System)
	}
}

func TestEncodeRequestRejectsEmptyMessages(t *testing.T) {
	_, err := EncodeRequest(&llm.Request{}, "claude-sonnet")
	if err == nil {
		t.Fatal("expected error for empty messages")
	}
}

func TestEncodeRequestThinkingBudgetValidation(t *testing.T) {
	req := &llm.Request{
		Messages:  []*llm.Message{{Role: llm.RoleUser, Parts: []llm.ContentPart{llm.TextPart{Text: "hi"}}}},
		MaxTokens: 2000,
		Thinking:  &llm.ThinkingOptions{Enable: true, BudgetTokens: 512},
	}
	if _, err := EncodeRequest(req, "claude-sonnet"); err == nil {
		t.Fatal("expected rejection of thinking budget below 1024")
	}

	req.Thinking.BudgetTokens = 3000
	if _, err := EncodeRequest(req, "claude-sonnet"); err == nil {
		t.Fatal("expected rejection of thinking budget exceeding max_tokens")
	}

	req.Thinking.BudgetTokens = 1024
	if _, err := EncodeRequest(req, "claude-sonnet"); err != nil {
		t.Fatalf("expected valid thinking budget to be accepted: %v", err)
	}
}

func TestEncodeRequestAppliesDefaultMaxTokens(t *testing.T) {
	req := &llm.Request{
		Messages: []*llm.Message{{Role: llm.RoleUser, Parts: []llm.ContentPart{llm.TextPart{Text: "hi"}}}},
	}
	params, err := EncodeRequest(req, "claude-sonnet")
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if params.MaxTokens != llm.DefaultMaxTokens {
		t.Fatalf("expected default max tokens %d, got %d", llm.DefaultMaxTokens, params.MaxTokens)
	}
}
