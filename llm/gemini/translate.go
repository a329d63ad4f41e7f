// Package gemini translates llm.Request/Response/StreamEvent into calls
// against the Gemini generateContent API via google.golang.org/genai. The
// teacher carries no Gemini adapter, so this package is grounded entirely on
// original_source/rust/models3/src/providers/gemini/translate_request.rs,
// adopting google.golang.org/genai as used by the theRebelliousNerd-codenerd
// and ternarybob-iter example repos.
package gemini

import (
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"stencilacore/llm"
)

// encodeContents translates a Request's transcript into Gemini's
// systemInstruction + contents shape. Gemini has no dedicated tool-role
// message: a ToolResultPart is rendered as a functionResponse part on a
// user-role content entry, correlated back to the call that produced it by
// **name**, not id, since Gemini identifies function responses by function
// name (findFunctionName scans prior model turns for a matching tool-call
// id, grounded on the original's find_function_name).
func encodeContents(msgs []*llm.Message) (system *genai.Content, contents []*genai.Content, err error) {
	var systemParts []*genai.Part

	for i, m := range msgs {
		if m == nil {
			continue
		}
		if m.Role == llm.RoleSystem {
			for _, p := range m.Parts {
				if tp, ok := p.(llm.TextPart); ok && tp.Text != "" {
					systemParts = append(systemParts, genai.NewPartFromText(tp.Text))
				} else {
					return nil, nil, fmt.Errorf("gemini: system instructions only support text content")
				}
			}
			continue
		}

		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		parts, encErr := encodeParts(m.Parts, msgs[:i])
		if encErr != nil {
			return nil, nil, encErr
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	if len(systemParts) > 0 {
		system = &genai.Content{Parts: systemParts}
	}
	if len(contents) == 0 {
		return nil, nil, fmt.Errorf("gemini: at least one user/assistant message is required")
	}
	return system, contents, nil
}

func encodeParts(parts []llm.ContentPart, allMessages []*llm.Message) ([]*genai.Part, error) {
	var out []*genai.Part
	for _, part := range parts {
		switch v := part.(type) {
		case llm.TextPart:
			if v.Text != "" {
				out = append(out, genai.NewPartFromText(v.Text))
			}
		case llm.ImagePart:
			out = append(out, genai.NewPartFromBytes(v.Bytes, "image/"+v.Format))
		case llm.ToolUsePart:
			var args map[string]any
			if len(v.Input) > 0 {
				if err := json.Unmarshal(v.Input, &args); err != nil {
					return nil, llm.NewSdkError(llm.SdkErrorInvalidRequest,
						fmt.Sprintf("gemini: decode tool_use input: %v", err))
				}
			}
			out = append(out, genai.NewPartFromFunctionCall(v.Name, args))
		case llm.ToolResultPart:
			name, err := findFunctionName(allMessages, v.ToolUseID)
			if err != nil {
				return nil, err
			}
			out = append(out, genai.NewPartFromFunctionResponse(name, wrapToolResult(v.Content)))
		default:
			// Audio/Thinking/RedactedThinking/CacheCheckpoint/Extension
			// parts have no Gemini request-side encoding.
		}
	}
	return out, nil
}

// findFunctionName scans prior assistant turns, most recent first, for the
// function call that produced toolCallID, since Gemini's functionResponse
// part is keyed by function name rather than call id.
func findFunctionName(messages []*llm.Message, toolCallID string) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m == nil || m.Role != llm.RoleAssistant {
			continue
		}
		for _, p := range m.Parts {
			if tu, ok := p.(llm.ToolUsePart); ok && tu.ID == toolCallID {
				return tu.Name, nil
			}
		}
	}
	return "", llm.NewSdkError(llm.SdkErrorInvalidRequest,
		fmt.Sprintf("gemini: no function name found for tool_call_id %q", toolCallID))
}

func wrapToolResult(content any) map[string]any {
	switch c := content.(type) {
	case nil:
		return map[string]any{"result": ""}
	case string:
		return map[string]any{"result": c}
	case map[string]any:
		return c
	default:
		data, err := json.Marshal(c)
		if err != nil {
			return map[string]any{"result": fmt.Sprintf("%v", c)}
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err == nil {
			return decoded
		}
		return map[string]any{"result": string(data)}
	}
}

func encodeTools(defs []*llm.ToolDefinition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		if def == nil {
			continue
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func encodeToolChoice(tc *llm.ToolChoice) *genai.ToolConfig {
	mode := genai.FunctionCallingConfigModeAuto
	switch tc.Mode {
	case llm.ToolChoiceNone:
		mode = genai.FunctionCallingConfigModeNone
	case llm.ToolChoiceAny:
		mode = genai.FunctionCallingConfigModeAny
	case llm.ToolChoiceTool:
		return &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 genai.FunctionCallingConfigModeAny,
			AllowedFunctionNames: []string{tc.Name},
		}}
	}
	return &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode}}
}

// EncodeRequest translates req into a GenerateContentConfig plus the
// contents array genai.Client.Models.GenerateContent expects.
func EncodeRequest(req *llm.Request) (contents []*genai.Content, cfg *genai.GenerateContentConfig, err error) {
	if len(req.Messages) == 0 {
		return nil, nil, fmt.Errorf("gemini: messages are required")
	}
	system, contents, err := encodeContents(req.Messages)
	if err != nil {
		return nil, nil, err
	}

	cfg = &genai.GenerateContentConfig{}
	if system != nil {
		cfg.SystemInstruction = system
	}
	if req.Temperature > 0 {
		t := req.Temperature
		cfg.Temperature = &t
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	cfg.MaxOutputTokens = int32(maxTokens)
	if tools := encodeTools(req.Tools); len(tools) > 0 {
		cfg.Tools = tools
	}
	if req.ToolChoice != nil {
		cfg.ToolConfig = encodeToolChoice(req.ToolChoice)
	}
	return contents, cfg, nil
}
