package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"stencilacore/llm"
)

// ModelClass selects between an Options-configured model tier when a
// Request doesn't pin an exact model string.
type ModelClass string

const (
	ModelClassDefault ModelClass = "default"
	ModelClassHigh    ModelClass = "high"
	ModelClassSmall   ModelClass = "small"
)

// Options configures a Client's default model resolution.
type Options struct {
	DefaultModel string
	HighModel    string
	SmallModel   string
}

// MessagesClient is the subset of the Anthropic SDK this package depends
// on, narrowed to an interface so tests can substitute a fake.
type MessagesClient interface {
	New(ctx context.Context, params sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, params sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Client implements llm.Client against the Anthropic Messages API.
type Client struct {
	messages MessagesClient
	auth     llm.Authentication
	opts     Options
}

// New constructs a Client from an explicit Authentication capability, so
// callers can supply a StaticKey, OAuthToken, or CodexCli credential.
func New(auth llm.Authentication, opts Options) *Client {
	sdkClient := sdk.NewClient(option.WithAPIKey(""))
	return NewWithMessagesClient(&sdkClient.Messages, auth, opts)
}

// NewWithMessagesClient constructs a Client against an explicit
// MessagesClient, letting tests substitute a fake in place of the real SDK.
func NewWithMessagesClient(messages MessagesClient, auth llm.Authentication, opts Options) *Client {
	return &Client{messages: messages, auth: auth, opts: opts}
}

// NewFromAPIKey is a convenience constructor wrapping a bare API key in a
// StaticKey credential.
func NewFromAPIKey(apiKey string, opts Options) *Client {
	return New(llm.StaticKey{Key: apiKey}, opts)
}

func (c *Client) resolveModelID(req *llm.Request) (string, error) {
	if req.Model != "" {
		return req.Model, nil
	}
	if c.opts.DefaultModel == "" {
		return "", fmt.Errorf("anthropic: no model specified on request and no default configured")
	}
	return c.opts.DefaultModel, nil
}

func (c *Client) requestOptions(ctx context.Context) ([]option.RequestOption, error) {
	if c.auth == nil {
		return nil, nil
	}
	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, WrapTransportError(err)
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

	msg, err := c.messages.New(ctx, *params, opts...)
	if err != nil {
		return nil, translateError(err)
	}
	return decodeResponse(msg), nil
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

	stream := c.messages.NewStreaming(ctx, *params, opts...)
	return newStreamer(stream), nil
}

func decodeResponse(msg *sdk.Message) *llm.Response {
	var content []llm.ContentPart
	sawToolCall := false
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case sdk.TextBlock:
			content = append(content, llm.TextPart{Text: variant.Text})
		case sdk.ToolUseBlock:
			input, _ := json.Marshal(variant.Input)
			content = append(content, llm.ToolUsePart{ID: variant.ID, Name: variant.Name, Input: input})
			sawToolCall = true
		case sdk.ThinkingBlock:
			content = append(content, llm.ThinkingPart{Text: variant.Thinking, Signature: variant.Signature, Final: true})
		case sdk.RedactedThinkingBlock:
			content = append(content, llm.RedactedThinkingPart{Payload: []byte(variant.Data)})
		}
	}
	usage := llm.TokenUsage{
		InputTokens:      int(msg.Usage.InputTokens),
		OutputTokens:     int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		CacheReadTokens:  int(msg.Usage.CacheReadInputTokens),
		CacheWriteTokens: int(msg.Usage.CacheCreationInputTokens),
	}
	reason := llm.FinishReasonFor(string(msg.StopReason), sawToolCall)
	resp := llm.AssembleResponse(msg.ID, string(msg.Model), "anthropic", content, reason, usage)
	return resp
}

// WrapTransportError normalizes a non-API transport failure (e.g. a
// credential refresh error) into an SdkError.
func WrapTransportError(err error) error {
	return llm.WrapSdkError(llm.SdkErrorAuthentication, err, llm.ProviderDetails{Provider: "anthropic"})
}

// translateError normalizes an Anthropic SDK error into the unified
// SdkError taxonomy, grounded on the status-code classification in
// features/model/anthropic/client.go.
func translateError(err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return llm.WrapSdkError(llm.SdkErrorNetworkTimeout, err, llm.ProviderDetails{Provider: "anthropic"})
	}
	details := llm.ProviderDetails{
		Provider:   "anthropic",
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
