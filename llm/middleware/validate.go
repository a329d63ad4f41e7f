package middleware

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"stencilacore/llm"
)

// ToolSchemaValidator wraps an llm.Client so every ToolCall a provider
// returns is checked against the matching ToolDefinition.InputSchema before
// it reaches the caller, grounded 1:1 on
// registry/service.go's validatePayloadJSONAgainstSchema (compile-then-
// validate against santhosh-tekuri/jsonschema/v6, the same library the
// teacher's tool registry uses for payload validation).
type ToolSchemaValidator struct {
	next llm.Client
}

// WrapToolSchemaValidation returns an llm.Client that validates tool-call
// payloads against the request's declared tool schemas.
func WrapToolSchemaValidation(next llm.Client) llm.Client {
	return &ToolSchemaValidator{next: next}
}

// Complete implements llm.Client.
func (v *ToolSchemaValidator) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	resp, err := v.next.Complete(ctx, req)
	if err != nil || resp == nil {
		return resp, err
	}
	schemas := schemasByName(req.Tools)
	for _, part := range resp.Message.Parts {
		call, ok := part.(llm.ToolUsePart)
		if !ok {
			continue
		}
		if err := validateToolCall(call, schemas); err != nil {
			return nil, llm.NewSdkError(llm.SdkErrorInvalidRequest, err.Error())
		}
	}
	return resp, nil
}

// Stream implements llm.Client. Streamed tool calls are validated as they
// finalize, by wrapping the returned Streamer.
func (v *ToolSchemaValidator) Stream(ctx context.Context, req *llm.Request) (llm.Streamer, error) {
	stream, err := v.next.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &validatingStreamer{next: stream, schemas: schemasByName(req.Tools)}, nil
}

type validatingStreamer struct {
	next    llm.Streamer
	schemas map[string]*jsonschema.Schema
}

func (s *validatingStreamer) Recv() (llm.StreamEvent, error) {
	ev, err := s.next.Recv()
	if err != nil || ev.Type != llm.StreamEventToolCallEnd || ev.ToolCall == nil {
		return ev, err
	}
	if verr := validateToolCall(*ev.ToolCall, s.schemas); verr != nil {
		return llm.StreamEvent{}, llm.NewSdkError(llm.SdkErrorInvalidRequest, verr.Error())
	}
	return ev, nil
}

func (s *validatingStreamer) Close() error           { return s.next.Close() }
func (s *validatingStreamer) Metadata() map[string]any { return s.next.Metadata() }

func schemasByName(defs []*llm.ToolDefinition) map[string]*jsonschema.Schema {
	out := make(map[string]*jsonschema.Schema, len(defs))
	for _, def := range defs {
		if def == nil || def.InputSchema == nil {
			continue
		}
		compiled, err := compileSchema(def.Name, def.InputSchema)
		if err != nil {
			continue
		}
		out[def.Name] = compiled
	}
	return out
}

func compileSchema(name string, schema any) (*jsonschema.Schema, error) {
	// jsonschema only accepts plain decoded-JSON values ([]any, float64, ...),
	// so a schema built from Go literals like []string is normalized first.
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("middleware: encode schema for tool %q: %w", name, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("middleware: decode schema for tool %q: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	resourceName := name + ".json"
	if err := c.AddResource(resourceName, doc); err != nil {
		return nil, fmt.Errorf("middleware: add schema resource for tool %q: %w", name, err)
	}
	compiled, err := c.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("middleware: compile schema for tool %q: %w", name, err)
	}
	return compiled, nil
}

func validateToolCall(call llm.ToolUsePart, schemas map[string]*jsonschema.Schema) error {
	schema, ok := schemas[call.Name]
	if !ok {
		return nil
	}
	var payload any
	if len(call.Input) > 0 {
		if err := json.Unmarshal(call.Input, &payload); err != nil {
			return fmt.Errorf("middleware: tool %q call payload is not valid JSON: %w", call.Name, err)
		}
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("middleware: tool %q call payload failed schema validation: %w", call.Name, err)
	}
	return nil
}
