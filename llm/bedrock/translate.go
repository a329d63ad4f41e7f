// Package bedrock translates llm.Request/Response/StreamEvent into calls
// against the AWS Bedrock Converse API, grounded 1:1 on
// features/model/bedrock/client.go and stream.go.
package bedrock

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"stencilacore/llm"
)

// encodeMessages translates a Request's transcript into Bedrock Converse
// message/system blocks, splitting system-role messages out into the
// separate SystemContentBlock list the Converse API requires.
func encodeMessages(msgs []*llm.Message, cacheAfterSystem bool) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	conversation := make([]brtypes.Message, 0, len(msgs))
	system := make([]brtypes.SystemContentBlock, 0, len(msgs))

	for _, m := range msgs {
		if m == nil {
			continue
		}
		if m.Role == llm.RoleSystem {
			for _, p := range m.Parts {
				switch v := p.(type) {
				case llm.TextPart:
					if v.Text != "" {
						system = append(system, &brtypes.SystemContentBlockMemberText{Value: v.Text})
					}
				case llm.CacheCheckpointPart:
					system = append(system, &brtypes.SystemContentBlockMemberCachePoint{
						Value: brtypes.CachePointBlock{Type: brtypes.CachePointTypeDefault},
					})
				}
			}
			continue
		}

		blocks, err := encodeContentBlocks(m.Parts)
		if err != nil {
			return nil, nil, err
		}
		if len(blocks) == 0 {
			continue
		}
		role := brtypes.ConversationRoleUser
		if m.Role == llm.RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		conversation = append(conversation, brtypes.Message{Role: role, Content: blocks})
	}

	if len(conversation) == 0 {
		return nil, nil, fmt.Errorf("bedrock: at least one user/assistant message is required")
	}
	if cacheAfterSystem && len(system) > 0 {
		system = append(system, &brtypes.SystemContentBlockMemberCachePoint{
			Value: brtypes.CachePointBlock{Type: brtypes.CachePointTypeDefault},
		})
	}
	return conversation, system, nil
}

func encodeContentBlocks(parts []llm.ContentPart) ([]brtypes.ContentBlock, error) {
	blocks := make([]brtypes.ContentBlock, 0, len(parts))
	for _, part := range parts {
		switch v := part.(type) {
		case llm.TextPart:
			if v.Text != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: v.Text})
			}
		case llm.ThinkingPart:
			if v.Signature != "" && v.Text != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberReasoningContent{
					Value: &brtypes.ReasoningContentBlockMemberReasoningText{
						Value: brtypes.ReasoningTextBlock{
							Text:      aws.String(v.Text),
							Signature: aws.String(v.Signature),
						},
					},
				})
			}
		case llm.RedactedThinkingPart:
			blocks = append(blocks, &brtypes.ContentBlockMemberReasoningContent{
				Value: &brtypes.ReasoningContentBlockMemberRedactedContent{Value: v.Payload},
			})
		case llm.ToolUsePart:
			tb := brtypes.ToolUseBlock{Input: toDocument(v.Input)}
			if v.Name != "" {
				tb.Name = aws.String(v.Name)
			}
			if v.ID != "" {
				tb.ToolUseId = aws.String(v.ID)
			}
			blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: tb})
		case llm.ToolResultPart:
			tr := brtypes.ToolResultBlock{}
			if v.ToolUseID != "" {
				tr.ToolUseId = aws.String(v.ToolUseID)
			}
			if s, ok := v.Content.(string); ok {
				tr.Content = []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: s}}
			} else {
				tr.Content = []brtypes.ToolResultContentBlock{
					&brtypes.ToolResultContentBlockMemberJson{Value: toDocumentAny(v.Content)},
				}
			}
			blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{Value: tr})
		case llm.CacheCheckpointPart:
			blocks = append(blocks, &brtypes.ContentBlockMemberCachePoint{
				Value: brtypes.CachePointBlock{Type: brtypes.CachePointTypeDefault},
			})
		default:
			// Audio/Extension parts have no Bedrock Converse encoding.
		}
	}
	return blocks, nil
}

func toDocument(raw json.RawMessage) document.Interface {
	if len(raw) == 0 {
		return document.NewLazyDocument(map[string]any{})
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return document.NewLazyDocument(map[string]any{})
	}
	return document.NewLazyDocument(v)
}

func toDocumentAny(v any) document.Interface {
	if v == nil {
		return document.NewLazyDocument(map[string]any{})
	}
	return document.NewLazyDocument(v)
}

func decodeDocument(doc document.Interface) json.RawMessage {
	if doc == nil {
		return nil
	}
	data, err := doc.MarshalSmithyDocument()
	if err != nil || len(data) == 0 {
		return nil
	}
	return json.RawMessage(data)
}

func encodeTools(defs []*llm.ToolDefinition, choice *llm.ToolChoice, cacheAfterTools bool) (*brtypes.ToolConfiguration, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	toolList := make([]brtypes.Tool, 0, len(defs))
	for _, def := range defs {
		if def == nil || def.Name == "" {
			continue
		}
		spec := brtypes.ToolSpecification{
			Name:        aws.String(def.Name),
			Description: aws.String(def.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: toDocumentAny(def.InputSchema)},
		}
		toolList = append(toolList, &brtypes.ToolMemberToolSpec{Value: spec})
	}
	if len(toolList) == 0 {
		return nil, nil
	}
	if cacheAfterTools {
		toolList = append(toolList, &brtypes.ToolMemberCachePoint{
			Value: brtypes.CachePointBlock{Type: brtypes.CachePointTypeDefault},
		})
	}
	cfg := &brtypes.ToolConfiguration{Tools: toolList}
	if choice == nil {
		return cfg, nil
	}
	switch choice.Mode {
	case llm.ToolChoiceNone, llm.ToolChoiceAuto, "":
		// Auto/none are the provider default shape; the teacher's adapter
		// omits ToolChoice in both cases and relies on transcript content
		// to steer behavior.
	case llm.ToolChoiceAny:
		cfg.ToolChoice = &brtypes.ToolChoiceMemberAny{Value: brtypes.AnyToolChoice{}}
	case llm.ToolChoiceTool:
		cfg.ToolChoice = &brtypes.ToolChoiceMemberTool{Value: brtypes.SpecificToolChoice{Name: aws.String(choice.Name)}}
	}
	return cfg, nil
}
