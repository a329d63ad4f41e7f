package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"text/template"

	coreerrors "stencilacore/errors"
	"stencilacore/llm"
)

// NewAgentStageHandler returns a StageHandler that renders a stage's
// PromptTemplate against the run Context, invokes client to get the
// model's response, and parses the response text as an Outcome. When
// stream is true the call uses client.Stream and publishes a
// StageSessionEvent for every provider stream event on events (mirroring
// what executeStage's own StageInput/StageOutput events record at the
// stage level); otherwise it uses client.Complete directly.
//
// This is the one place the pipeline and llm packages meet: every other
// pipeline component is provider-agnostic, and every other llm component
// is pipeline-agnostic.
func NewAgentStageHandler(client llm.Client, model string, stream bool, events chan<- Event) StageHandler {
	return func(ctx context.Context, in *StageInput) (*Outcome, error) {
		prompt, err := renderPromptTemplate(in.Stage.PromptTemplate, in.Context)
		if err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindInvalidPrompt, err, "render stage prompt template")
		}

		req := &llm.Request{
			Model: model,
			Messages: []*llm.Message{
				{Role: llm.RoleUser, Parts: []llm.ContentPart{llm.TextPart{Text: prompt}}},
			},
			Stream: stream,
		}

		var text string
		if stream {
			text, err = runStreamingStage(ctx, client, req, in, events)
		} else {
			text, err = runCompleteStage(ctx, client, req)
		}
		if err != nil {
			return nil, classifyAgentError(err)
		}

		outcome, err := parseOutcomeText(text)
		if err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindJSON, err, "parse stage outcome from agent response")
		}
		return outcome, nil
	}
}

func runCompleteStage(ctx context.Context, client llm.Client, req *llm.Request) (string, error) {
	resp, err := client.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

func runStreamingStage(ctx context.Context, client llm.Client, req *llm.Request, in *StageInput, events chan<- Event) (string, error) {
	stream, err := client.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var text strings.Builder
	for {
		ev, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		publishStreamEvent(events, in, ev)
		if ev.Type == llm.StreamEventTextDelta {
			text.WriteString(ev.Delta)
		}
		if ev.Type == llm.StreamEventFinish {
			break
		}
	}
	return text.String(), nil
}

func publishStreamEvent(events chan<- Event, in *StageInput, ev llm.StreamEvent) {
	if events == nil {
		return
	}
	select {
	case events <- &StageSessionEventEvent{
		baseEvent: baseEvent{runID: in.RunID, stageID: in.Stage.ID},
		Provider:  in.Stage.Agent.Agent,
		Stream:    ev,
	}:
	default:
	}
}

func responseText(resp *llm.Response) string {
	var sb strings.Builder
	for _, part := range resp.Message.Parts {
		if t, ok := part.(llm.TextPart); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// classifyAgentError maps an llm.SdkError's retry classification onto the
// pipeline's own Kind taxonomy so errors.IsRetryable/IsTerminal/IsPipeline
// apply uniformly regardless of whether a failure originated in a provider
// call or elsewhere in a stage.
func classifyAgentError(err error) error {
	sdkErr, ok := err.(*llm.SdkError)
	if !ok {
		return coreerrors.Wrap(coreerrors.KindHandlerFailed, err, "agent call failed")
	}
	switch sdkErr.Kind {
	case llm.SdkErrorRateLimited:
		return coreerrors.Wrap(coreerrors.KindRateLimited, sdkErr, "agent call rate limited")
	case llm.SdkErrorNetworkTimeout:
		return coreerrors.Wrap(coreerrors.KindNetworkTimeout, sdkErr, "agent call timed out")
	case llm.SdkErrorServer, llm.SdkErrorStream:
		if sdkErr.IsRetryable() {
			return coreerrors.Wrap(coreerrors.KindTemporaryUnavailable, sdkErr, "agent call failed, retryable")
		}
		return coreerrors.Wrap(coreerrors.KindHandlerFailed, sdkErr, "agent call failed")
	case llm.SdkErrorAuthentication:
		return coreerrors.Wrap(coreerrors.KindAuthenticationFailed, sdkErr, "agent call authentication failed")
	case llm.SdkErrorInvalidRequest:
		return coreerrors.Wrap(coreerrors.KindInvalidPrompt, sdkErr, "agent call rejected the request")
	default:
		return coreerrors.Wrap(coreerrors.KindHandlerFailed, sdkErr, "agent call failed")
	}
}

// renderPromptTemplate renders tmpl as a text/template against ctx's
// current values, exposing each key as a top-level template field and the
// whole map under ".Context" for callers that want to range over it.
func renderPromptTemplate(tmpl string, ctx Snapshot) (string, error) {
	t, err := template.New("stage-prompt").Parse(tmpl)
	if err != nil {
		return "", err
	}
	data := make(map[string]any, len(ctx.Values)+1)
	values := make(map[string]any, len(ctx.Values))
	for k, raw := range ctx.Values {
		values[k] = decodeForTemplate(raw)
	}
	for k, v := range values {
		data[k] = v
	}
	data["Context"] = values
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func decodeForTemplate(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

// parseOutcomeText parses an agent's raw text response as an Outcome. It
// tolerates leading/trailing prose by taking the first top-level JSON
// object found in the text, since models commonly wrap JSON in a short
// preamble despite instructions not to.
func parseOutcomeText(text string) (*Outcome, error) {
	obj := extractJSONObject(text)
	var out Outcome
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return text
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text[start:]
}
