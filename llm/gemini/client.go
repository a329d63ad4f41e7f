package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/genai"

	"stencilacore/llm"
)

func marshalArgs(args map[string]any) ([]byte, error) {
	if args == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(args)
}

// Options configures a Client's default model resolution.
type Options struct {
	DefaultModel string
}

// ModelsClient is the subset of the genai SDK this package depends on.
type ModelsClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter2
}

// iter2 mirrors genai's iter.Seq2[*GenerateContentResponse, error] without
// importing the iterator alias directly, keeping this file buildable
// against either an iterator-based or callback-based SDK revision.
type iter2 = func(yield func(*genai.GenerateContentResponse, error) bool)

// Client implements llm.Client against the Gemini generateContent API.
type Client struct {
	models ModelsClient
	opts   Options
}

// New constructs a Client from a genai API key, matching the query-parameter
// authentication scheme Gemini uses (no bearer/header credential to wrap in
// an llm.Authentication capability).
func New(apiKey string, opts Options) (*Client, error) {
	sdkClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{models: sdkClient.Models, opts: opts}, nil
}

func (c *Client) resolveModelID(req *llm.Request) (string, error) {
	if req.Model != "" {
		return req.Model, nil
	}
	if c.opts.DefaultModel == "" {
		return "", fmt.Errorf("gemini: no model specified on request and no default configured")
	}
	return c.opts.DefaultModel, nil
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	model, err := c.resolveModelID(req)
	if err != nil {
		return nil, llm.NewSdkError(llm.SdkErrorInvalidRequest, err.Error())
	}
	contents, cfg, err := EncodeRequest(req)
	if err != nil {
		return nil, llm.NewSdkError(llm.SdkErrorInvalidRequest, err.Error())
	}

	resp, err := c.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, translateError(err)
	}
	return decodeResponse(resp), nil
}

// Stream implements llm.Client. Gemini's streaming transport is a sequence
// of whole JSON response objects rather than an SSE event stream, so the
// streamer here differs from anthropic/openai's block-delta accumulators:
// each yielded response carries the full candidate text seen so far, from
// which this package derives incremental text deltas.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Streamer, error) {
	model, err := c.resolveModelID(req)
	if err != nil {
		return nil, llm.NewSdkError(llm.SdkErrorInvalidRequest, err.Error())
	}
	contents, cfg, err := EncodeRequest(req)
	if err != nil {
		return nil, llm.NewSdkError(llm.SdkErrorInvalidRequest, err.Error())
	}

	seq := c.models.GenerateContentStream(ctx, model, contents, cfg)
	return newStreamer(seq), nil
}

func decodeResponse(resp *genai.GenerateContentResponse) *llm.Response {
	var content []llm.ContentPart
	sawToolCall := false
	var rawFinish string
	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		rawFinish = string(cand.FinishReason)
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				switch {
				case part.Text != "":
					content = append(content, llm.TextPart{Text: part.Text})
				case part.FunctionCall != nil:
					payload, _ := marshalArgs(part.FunctionCall.Args)
					content = append(content, llm.ToolUsePart{Name: part.FunctionCall.Name, Input: payload})
					sawToolCall = true
				}
			}
		}
	}
	var usage llm.TokenUsage
	if resp.UsageMetadata != nil {
		usage = llm.TokenUsage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	reason := llm.FinishReasonFor(rawFinish, sawToolCall)
	return llm.AssembleResponse(resp.ResponseID, resp.ModelVersion, "gemini", content, reason, usage)
}

func translateError(err error) error {
	var apiErr *genai.APIError
	var code int
	if e, ok := asAPIError(err, &apiErr); ok {
		code = e.Code
	}
	details := llm.ProviderDetails{Provider: "gemini", StatusCode: code}
	kind := llm.SdkErrorServer
	switch {
	case code == http.StatusTooManyRequests:
		kind = llm.SdkErrorRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = llm.SdkErrorAuthentication
	case code >= 400 && code < 500:
		kind = llm.SdkErrorInvalidRequest
	case err == io.ErrUnexpectedEOF:
		kind = llm.SdkErrorNetworkTimeout
	}
	return llm.WrapSdkError(kind, err, details)
}

func asAPIError(err error, target **genai.APIError) (*genai.APIError, bool) {
	if ae, ok := err.(*genai.APIError); ok {
		return ae, true
	}
	return nil, false
}
