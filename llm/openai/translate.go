// Package openai translates llm.Request/Response/StreamEvent into calls
// against the OpenAI Responses API via github.com/openai/openai-go,
// grounded on the teacher's Chat-Completions adapter
// (features/model/openai/client.go) generalized to the Responses API shape
// named by the unified provider schema, and cross-checked against
// original_source/rust/models3/src/providers/openai/translate_request.rs
// for the exact instructions/input-array/function_call shape.
package openai

import (
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"

	"stencilacore/llm"
)

// encodeInput flattens a Request's transcript into the Responses API's
// single input array, concatenating system messages into the separate
// Instructions field rather than an input item (the Responses API has no
// system-role input item).
func encodeInput(msgs []*llm.Message) (instructions string, input responses.ResponseInputParam, err error) {
	var sys []string
	for _, m := range msgs {
		if m == nil {
			continue
		}
		if m.Role == llm.RoleSystem {
			for _, p := range m.Parts {
				if tp, ok := p.(llm.TextPart); ok && tp.Text != "" {
					sys = append(sys, tp.Text)
				}
			}
			continue
		}

		items, encErr := encodeItems(m)
		if encErr != nil {
			return "", nil, encErr
		}
		input = append(input, items...)
	}
	if len(sys) == 1 {
		instructions = sys[0]
	} else if len(sys) > 1 {
		for i, s := range sys {
			if i > 0 {
				instructions += "\n\n"
			}
			instructions += s
		}
	}
	if len(input) == 0 {
		return "", nil, fmt.Errorf("openai: at least one user/assistant message is required")
	}
	return instructions, input, nil
}

func encodeItems(m *llm.Message) ([]responses.ResponseInputItemUnionParam, error) {
	role := responses.EasyInputMessageRoleUser
	if m.Role == llm.RoleAssistant {
		role = responses.EasyInputMessageRoleAssistant
	}

	var items []responses.ResponseInputItemUnionParam
	var textContent string

	for _, part := range m.Parts {
		switch v := part.(type) {
		case llm.TextPart:
			textContent += v.Text
		case llm.ToolUsePart:
			// Assistant-issued tool calls become their own function_call
			// item rather than message content.
			items = append(items, responses.ResponseInputItemParamOfFunctionCall(string(v.Input), v.ID, v.Name))
		case llm.ToolResultPart:
			// Tool results are submitted as function_call_output items,
			// correlated back to the originating call_id, not as a
			// user-role message (spec §4.2's OpenAI tool-result shape).
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(v.ToolUseID, encodeToolResultOutput(v)))
		case llm.RedactedThinkingPart:
			// RedactedThinking is never replayed into a follow-up request;
			// OpenAI's Responses API rejects opaque reasoning payloads it
			// didn't itself issue in the same response chain.
		default:
			// Audio/Thinking/CacheCheckpoint/Extension parts have no
			// Responses-API request-side encoding.
		}
	}

	if textContent != "" {
		items = append([]responses.ResponseInputItemUnionParam{
			responses.ResponseInputItemParamOfMessage(textContent, role),
		}, items...)
	}
	return items, nil
}

func encodeToolResultOutput(v llm.ToolResultPart) string {
	switch c := v.Content.(type) {
	case nil:
		return ""
	case string:
		return c
	case []byte:
		return string(c)
	default:
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Sprintf("%v", c)
		}
		return string(data)
	}
}

func encodeTools(defs []*llm.ToolDefinition) []responses.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]responses.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		if def == nil {
			continue
		}
		out = append(out, responses.ToolParamOfFunction(def.Name, def.InputSchema, true))
	}
	return out
}

// EncodeRequest translates req into Responses API params.
func EncodeRequest(req *llm.Request, model string) (*responses.ResponseNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("openai: messages are required")
	}
	instructions, input, err := encodeInput(req.Messages)
	if err != nil {
		return nil, err
	}

	params := &responses.ResponseNewParams{
		Model: openai.ChatModel(model),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: input},
	}
	if instructions != "" {
		params.Instructions = openai.String(instructions)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	params.MaxOutputTokens = openai.Int(int64(maxTokens))
	if req.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}
	if tools := encodeTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}
	if req.ToolChoice != nil {
		switch req.ToolChoice.Mode {
		case llm.ToolChoiceNone:
			params.ToolChoice.OfToolChoiceMode = openai.Opt(responses.ToolChoiceOptionsNone)
		case llm.ToolChoiceAny:
			params.ToolChoice.OfToolChoiceMode = openai.Opt(responses.ToolChoiceOptionsRequired)
		case llm.ToolChoiceTool:
			params.ToolChoice.OfFunctionTool = &responses.ToolChoiceFunctionParam{Name: req.ToolChoice.Name}
		default:
			params.ToolChoice.OfToolChoiceMode = openai.Opt(responses.ToolChoiceOptionsAuto)
		}
	}
	if req.Thinking != nil && req.Thinking.Enable {
		params.Reasoning = responses.ReasoningParam{Effort: responses.ReasoningEffortMedium}
	}
	return params, nil
}
