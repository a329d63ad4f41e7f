package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/responses"

	"stencilacore/llm"
)

// Options configures a Client's default model resolution.
type Options struct {
	DefaultModel string
}

// ResponsesClient is the subset of the OpenAI SDK this package depends on.
type ResponsesClient interface {
	New(ctx context.Context, params responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error)
	NewStreaming(ctx context.Context, params responses.ResponseNewParams, opts ...option.RequestOption) *ssestream.Stream[responses.ResponseStreamEventUnion]
}

// Client implements llm.Client against the OpenAI Responses API.
type Client struct {
	responses ResponsesClient
	auth      llm.Authentication
	opts      Options
}

// New constructs a Client from an explicit Authentication capability.
func New(auth llm.Authentication, opts Options) *Client {
	sdkClient := openaisdk.NewClient(option.WithAPIKey(""))
	return NewWithResponsesClient(&sdkClient.Responses, auth, opts)
}

// NewWithResponsesClient constructs a Client against an explicit
// ResponsesClient, letting tests substitute a fake in place of the real SDK.
func NewWithResponsesClient(responses ResponsesClient, auth llm.Authentication, opts Options) *Client {
	return &Client{responses: responses, auth: auth, opts: opts}
}

// NewFromAPIKey wraps a bare API key in a StaticKey credential.
func NewFromAPIKey(apiKey string, opts Options) *Client {
	return New(llm.StaticKey{Key: apiKey}, opts)
}

func (c *Client) resolveModelID(req *llm.Request) (string, error) {
	if req.Model != "" {
		return req.Model, nil
	}
	if c.opts.DefaultModel == "" {
		return "", fmt.Errorf("openai: no model specified on request and no default configured")
	}
	return c.opts.DefaultModel, nil
}

func (c *Client) requestOptions(ctx context.Context) ([]option.RequestOption, error) {
	if c.auth == nil {
		return nil, nil
	}
	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, llm.WrapSdkError(llm.SdkErrorAuthentication, err, llm.ProviderDetails{Provider: "openai"})
	}
	return []option.RequestOption{option.WithAPIKey(token)}, nil
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	model, err := c.resolveModelID(req)
	if err != nil {
		return nil, llm.NewSdkError(llm.SdkErrorInvalidRequest, err.Error())
	}
	params, err := EncodeRequest(req, model)
	if err != nil {
		return nil, llm.NewSdkError(llm.SdkErrorInvalidRequest, err.Error())
	}
	opts, err := c.requestOptions(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.responses.New(ctx, *params, opts...)
	if err != nil {
		return nil, translateError(err)
	}
	return decodeResponse(resp), nil
}

// Stream implements llm.Client.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Streamer, error) {
	model, err := c.resolveModelID(req)
	if err != nil {
		return nil, llm.NewSdkError(llm.SdkErrorInvalidRequest, err.Error())
	}
	params, err := EncodeRequest(req, model)
	if err != nil {
		return nil, llm.NewSdkError(llm.SdkErrorInvalidRequest, err.Error())
	}
	opts, err := c.requestOptions(ctx)
	if err != nil {
		return nil, err
	}

	stream := c.responses.NewStreaming(ctx, *params, opts...)
	return newStreamer(stream), nil
}

func decodeResponse(resp *responses.Response) *llm.Response {
	var content []llm.ContentPart
	sawToolCall := false
	for _, item := range resp.Output {
		switch variant := item.AsAny().(type) {
		case responses.ResponseOutputMessage:
			for _, c := range variant.Content {
				if text := c.OfOutputText; text != nil {
					content = append(content, llm.TextPart{Text: text.Text})
				}
			}
		case responses.ResponseFunctionToolCall:
			content = append(content, llm.ToolUsePart{
				ID: variant.CallID, Name: variant.Name, Input: []byte(variant.Arguments),
			})
			sawToolCall = true
		case responses.ResponseReasoningItem:
			for _, s := range variant.Summary {
				content = append(content, llm.ThinkingPart{Text: s.Text, Final: true})
			}
		}
	}
	usage := llm.TokenUsage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		TotalTokens:  int(resp.Usage.TotalTokens),
	}
	reason := llm.FinishReasonFor(string(resp.Status), sawToolCall)
	return llm.AssembleResponse(resp.ID, string(resp.Model), "openai", content, reason, usage)
}

// translateError normalizes an OpenAI SDK error into the unified SdkError
// taxonomy.
func translateError(err error) error {
	var apiErr *openaisdk.Error
	if !errors.As(err, &apiErr) {
		return llm.WrapSdkError(llm.SdkErrorNetworkTimeout, err, llm.ProviderDetails{Provider: "openai"})
	}
	details := llm.ProviderDetails{
		Provider:   "openai",
		StatusCode: apiErr.StatusCode,
		RawBody:    apiErr.RawJSON(),
		RequestID:  apiErr.RequestID,
	}
	kind := llm.SdkErrorServer
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		kind = llm.SdkErrorRateLimited
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		kind = llm.SdkErrorAuthentication
	case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		kind = llm.SdkErrorInvalidRequest
	}
	return llm.WrapSdkError(kind, apiErr, details)
}
