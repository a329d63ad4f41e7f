package bedrock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"stencilacore/llm"
)

const defaultThinkingBudget = 16384

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client this
// adapter needs, matching *bedrockruntime.Client so callers can pass either
// the real client or a fake in tests.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Options configures the Bedrock client adapter.
type Options struct {
	DefaultModel   string
	MaxTokens      int
	Temperature    float32
	ThinkingBudget int
	CacheAfterSystem bool
	CacheAfterTools  bool
}

// Client implements llm.Client on top of AWS Bedrock Converse.
type Client struct {
	runtime RuntimeClient
	opts    Options
}

// New initializes a Bedrock-backed model client.
func New(runtime RuntimeClient, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model identifier is required")
	}
	if opts.ThinkingBudget <= 0 {
		opts.ThinkingBudget = defaultThinkingBudget
	}
	return &Client{runtime: runtime, opts: opts}, nil
}

func (c *Client) resolveModelID(req *llm.Request) string {
	if req.Model != "" {
		return req.Model
	}
	return c.opts.DefaultModel
}

func (c *Client) effectiveMaxTokens(requested int) *int32 {
	v := requested
	if v <= 0 {
		v = c.opts.MaxTokens
	}
	if v <= 0 {
		return nil
	}
	v32 := int32(v)
	return &v32
}

func (c *Client) effectiveTemperature(requested float32) *float32 {
	v := requested
	if v <= 0 {
		v = c.opts.Temperature
	}
	if v <= 0 {
		return nil
	}
	return &v
}

func (c *Client) inferenceConfig(req *llm.Request) *brtypes.InferenceConfiguration {
	cfg := &brtypes.InferenceConfiguration{}
	cfg.MaxTokens = c.effectiveMaxTokens(req.MaxTokens)
	cfg.Temperature = c.effectiveTemperature(req.Temperature)
	if cfg.MaxTokens == nil && cfg.Temperature == nil {
		return nil
	}
	return cfg
}

func (c *Client) buildConverseInput(req *llm.Request) (*bedrockruntime.ConverseInput, error) {
	cache := req.Cache != nil
	cacheAfterSystem := c.opts.CacheAfterSystem || (cache && req.Cache.AfterSystem)
	cacheAfterTools := c.opts.CacheAfterTools || (cache && req.Cache.AfterTools)

	conversation, system, err := encodeMessages(req.Messages, cacheAfterSystem)
	if err != nil {
		return nil, err
	}
	toolConfig, err := encodeTools(req.Tools, req.ToolChoice, cacheAfterTools)
	if err != nil {
		return nil, err
	}
	model := c.resolveModelID(req)
	return &bedrockruntime.ConverseInput{
		ModelId:        &model,
		Messages:       conversation,
		System:         system,
		ToolConfig:     toolConfig,
		InferenceConfig: c.inferenceConfig(req),
	}, nil
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	input, err := c.buildConverseInput(req)
	if err != nil {
		return nil, llm.NewSdkError(llm.SdkErrorInvalidRequest, err.Error())
	}
	output, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return nil, translateError(err)
	}
	return translateResponse(output)
}

// Stream implements llm.Client.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Streamer, error) {
	input, err := c.buildConverseInput(req)
	if err != nil {
		return nil, llm.NewSdkError(llm.SdkErrorInvalidRequest, err.Error())
	}
	streamInput := &bedrockruntime.ConverseStreamInput{
		ModelId:         input.ModelId,
		Messages:        input.Messages,
		System:          input.System,
		ToolConfig:      input.ToolConfig,
		InferenceConfig: input.InferenceConfig,
	}
	if req.Thinking != nil && req.Thinking.Enable {
		streamInput.AdditionalModelRequestFields = thinkingDocument(c.opts.ThinkingBudget)
	}
	output, err := c.runtime.ConverseStream(ctx, streamInput)
	if err != nil {
		return nil, translateError(err)
	}
	return newStreamer(output), nil
}

func thinkingDocument(budget int) document.Interface {
	return toDocumentAny(map[string]any{
		"reasoning_config": map[string]any{"type": "enabled", "budget_tokens": budget},
	})
}

func translateResponse(output *bedrockruntime.ConverseOutput) (*llm.Response, error) {
	if output == nil {
		return nil, fmt.Errorf("bedrock: response is nil")
	}
	var content []llm.ContentPart
	sawToolCall := false
	msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage)
	if ok {
		for _, block := range msg.Value.Content {
			switch v := block.(type) {
			case *brtypes.ContentBlockMemberText:
				if v.Value != "" {
					content = append(content, llm.TextPart{Text: v.Value})
				}
			case *brtypes.ContentBlockMemberToolUse:
				payload := decodeDocument(v.Value.Input)
				name := ""
				if v.Value.Name != nil {
					name = *v.Value.Name
				}
				id := ""
				if v.Value.ToolUseId != nil {
					id = *v.Value.ToolUseId
				}
				content = append(content, llm.ToolUsePart{ID: id, Name: name, Input: payload})
				sawToolCall = true
			}
		}
	}
	var usage llm.TokenUsage
	if output.Usage != nil {
		usage = llm.TokenUsage{
			InputTokens:      int(ptrValue(output.Usage.InputTokens)),
			OutputTokens:     int(ptrValue(output.Usage.OutputTokens)),
			TotalTokens:      int(ptrValue(output.Usage.TotalTokens)),
			CacheReadTokens:  int(ptrValue(output.Usage.CacheReadInputTokens)),
			CacheWriteTokens: int(ptrValue(output.Usage.CacheWriteInputTokens)),
		}
	}
	reason := llm.FinishReasonFor(string(output.StopReason), sawToolCall)
	return llm.AssembleResponse("", "", "bedrock", content, reason, usage), nil
}

func ptrValue[T ~int32 | ~int64](ptr *T) T {
	if ptr == nil {
		return 0
	}
	return *ptr
}

func translateError(err error) error {
	var apiErr smithy.APIError
	details := llm.ProviderDetails{Provider: "bedrock"}
	if errors.As(err, &apiErr) {
		details.RawBody = apiErr.ErrorMessage()
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return llm.WrapSdkError(llm.SdkErrorRateLimited, err, details)
		case "AccessDeniedException", "UnrecognizedClientException":
			return llm.WrapSdkError(llm.SdkErrorAuthentication, err, details)
		case "ValidationException", "ModelErrorException":
			return llm.WrapSdkError(llm.SdkErrorInvalidRequest, err, details)
		}
	}
	return llm.WrapSdkError(llm.SdkErrorServer, err, details)
}
