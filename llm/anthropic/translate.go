// Package anthropic translates llm.Request/Response/StreamEvent into calls
// against the Anthropic Messages API via github.com/anthropics/anthropic-sdk-go,
// grounded on features/model/anthropic/client.go and stream.go.
package anthropic

import (
	"encoding/json"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"stencilacore/llm"
)

// encodeMessages translates a Request's transcript into Anthropic message
// params plus a concatenated system block list, merging consecutive
// same-role messages (the Messages API rejects adjacent same-role turns)
// and rendering tool results as content blocks on a user-role message.
func encodeMessages(msgs []*llm.Message, cache *llm.CacheOptions) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	var system []sdk.TextBlockParam
	var conversation []sdk.MessageParam

	for _, m := range msgs {
		if m == nil {
			continue
		}
		if m.Role == llm.RoleSystem {
			for _, p := range m.Parts {
				if tp, ok := p.(llm.TextPart); ok && tp.Text != "" {
					system = append(system, sdk.TextBlockParam{Text: tp.Text})
				}
			}
			continue
		}

		blocks, err := encodeBlocks(m.Parts)
		if err != nil {
			return nil, nil, err
		}
		if len(blocks) == 0 {
			continue
		}

		role := sdk.MessageParamRoleUser
		if m.Role == llm.RoleAssistant {
			role = sdk.MessageParamRoleAssistant
		}

		// Merge into the previous message if it shares the same role —
		// Anthropic rejects two consecutive messages with the same role.
		if n := len(conversation); n > 0 && conversation[n-1].Role == role {
			conversation[n-1].Content = append(conversation[n-1].Content, blocks...)
			continue
		}
		conversation = append(conversation, sdk.MessageParam{Role: role, Content: blocks})
	}

	if len(conversation) == 0 {
		return nil, nil, fmt.Errorf("anthropic: at least one user/assistant message is required")
	}

	if cache != nil {
		applyCacheControl(system, conversation, cache)
	}
	return conversation, system, nil
}

func encodeBlocks(parts []llm.ContentPart) ([]sdk.ContentBlockParamUnion, error) {
	blocks := make([]sdk.ContentBlockParamUnion, 0, len(parts))
	for _, part := range parts {
		switch v := part.(type) {
		case llm.TextPart:
			if v.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(v.Text))
			}
		case llm.ToolUsePart:
			if v.Name == "" {
				return nil, fmt.Errorf("anthropic: tool_use part missing name")
			}
			var input any
			if len(v.Input) > 0 {
				if err := json.Unmarshal(v.Input, &input); err != nil {
					return nil, fmt.Errorf("anthropic: decode tool_use input: %w", err)
				}
			}
			blocks = append(blocks, sdk.NewToolUseBlock(v.ID, input, v.Name))
		case llm.ToolResultPart:
			blocks = append(blocks, encodeToolResult(v))
		case llm.CacheCheckpointPart:
			// handled by applyCacheControl against the finished block list
		default:
			// Audio/Thinking/RedactedThinking/Extension parts have no
			// Anthropic request-side encoding; they are response-only or
			// provider-specific and are dropped on replay.
		}
	}
	return blocks, nil
}

func encodeToolResult(v llm.ToolResultPart) sdk.ContentBlockParamUnion {
	var content string
	switch c := v.Content.(type) {
	case nil:
		content = ""
	case string:
		content = c
	case []byte:
		content = string(c)
	default:
		if data, err := json.Marshal(c); err == nil {
			content = string(data)
		}
	}
	return sdk.NewToolResultBlock(v.ToolUseID, content, v.IsError)
}

// applyCacheControl injects Anthropic cache-control markers at the
// boundaries CacheOptions asks for: after the last system block, after the
// last tool definition (handled by the caller when building params.Tools),
// and on the second-to-last message (so the cached prefix includes
// everything but the final, still-changing turn), per original_source's
// translate_request.rs.
func applyCacheControl(system []sdk.TextBlockParam, conversation []sdk.MessageParam, cache *llm.CacheOptions) {
	if cache.AfterSystem && len(system) > 0 {
		system[len(system)-1].CacheControl = sdk.NewCacheControlEphemeralParam()
	}
	if n := len(conversation); n >= 2 {
		target := conversation[n-2].Content
		if len(target) > 0 {
			withCacheControl(&target[len(target)-1])
		}
	}
}

func withCacheControl(block *sdk.ContentBlockParamUnion) {
	switch {
	case block.OfText != nil:
		block.OfText.CacheControl = sdk.NewCacheControlEphemeralParam()
	case block.OfToolUse != nil:
		block.OfToolUse.CacheControl = sdk.NewCacheControlEphemeralParam()
	case block.OfToolResult != nil:
		block.OfToolResult.CacheControl = sdk.NewCacheControlEphemeralParam()
	}
}

func encodeTools(defs []*llm.ToolDefinition, cache *llm.CacheOptions) []sdk.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		if def == nil {
			continue
		}
		out = append(out, sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{
			Properties: def.InputSchema,
		}, def.Name, sdk.ToolParam{Description: sdk.String(def.Description)}))
	}
	if cache != nil && cache.AfterTools && len(out) > 0 {
		last := &out[len(out)-1]
		if last.OfTool != nil {
			last.OfTool.CacheControl = sdk.NewCacheControlEphemeralParam()
		}
	}
	return out
}

func encodeToolChoice(tc *llm.ToolChoice) sdk.ToolChoiceUnionParam {
	switch tc.Mode {
	case llm.ToolChoiceNone:
		return sdk.ToolChoiceUnionParam{OfNone: &sdk.ToolChoiceNoneParam{}}
	case llm.ToolChoiceAny:
		return sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}
	case llm.ToolChoiceTool:
		return sdk.ToolChoiceUnionParam{OfTool: &sdk.ToolChoiceToolParam{Name: tc.Name}}
	default:
		return sdk.ToolChoiceUnionParam{OfAuto: &sdk.ToolChoiceAutoParam{}}
	}
}

// EncodeRequest translates req into Anthropic Messages params. model is the
// resolved concrete model identifier (see Options.DefaultModel).
func EncodeRequest(req *llm.Request, model string) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("anthropic: messages are required")
	}
	conversation, system, err := encodeMessages(req.Messages, req.Cache)
	if err != nil {
		return nil, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}

	params := &sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  conversation,
	}
	if len(system) > 0 {
		params.System = system
	}
	if tools := encodeTools(req.Tools, req.Cache); len(tools) > 0 {
		params.Tools = tools
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(float64(req.Temperature))
	}
	if req.ToolChoice != nil {
		params.ToolChoice = encodeToolChoice(req.ToolChoice)
	}
	if req.Thinking != nil && req.Thinking.Enable {
		budget := req.Thinking.BudgetTokens
		if budget <= 0 {
			return nil, fmt.Errorf("anthropic: thinking budget is required when thinking is enabled")
		}
		if budget < 1024 {
			return nil, fmt.Errorf("anthropic: thinking budget %d must be >= 1024", budget)
		}
		if int64(budget) >= int64(maxTokens) {
			return nil, fmt.Errorf("anthropic: thinking budget %d must be less than max_tokens %d", budget, maxTokens)
		}
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(int64(budget))
	}
	return params, nil
}
