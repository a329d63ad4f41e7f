package schema

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes g as {"type": ..., "id": ..., <props...>}, flattening
// Props to the top level the way the original schema's JSON does.
func (g *Generic) MarshalJSON() ([]byte, error) {
	flat := map[string]any{"type": g.Type}
	if g.ID.UID != "" {
		flat["id"] = g.ID.String()
	}
	for k, v := range g.Props {
		encoded, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("schema: encode property %q of %s: %w", k, g.Type, err)
		}
		flat[k] = encoded
	}
	if g.Exec != nil {
		flat["executionMetadata"] = g.Exec
	}
	return json.Marshal(flat)
}

// UnmarshalJSON decodes a wire node into g, dispatching sequence vs scalar
// properties by inspecting each raw value's JSON kind: an array decodes as
// a []Node, an object carrying "type" decodes as a nested Generic, anything
// else decodes as a primitive Go value.
func (g *Generic) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if t, ok := raw["type"]; ok {
		if err := json.Unmarshal(t, &g.Type); err != nil {
			return fmt.Errorf("schema: decode type: %w", err)
		}
	}
	delete(raw, "type")

	if idRaw, ok := raw["id"]; ok {
		var s string
		if err := json.Unmarshal(idRaw, &s); err == nil {
			uid := s
			if idx := lastUnderscore(s); idx >= 0 {
				uid = s[idx+1:]
			}
			g.ID = NodeId{Type: g.Type, UID: uid}
		}
	}
	delete(raw, "id")

	if execRaw, ok := raw["executionMetadata"]; ok {
		var exec ExecutionMetadata
		if err := json.Unmarshal(execRaw, &exec); err != nil {
			return fmt.Errorf("schema: decode executionMetadata: %w", err)
		}
		g.Exec = &exec
	}
	delete(raw, "executionMetadata")

	g.Props = make(map[string]any, len(raw))
	for k, v := range raw {
		val, err := decodeValue(v)
		if err != nil {
			return fmt.Errorf("schema: decode property %q of %s: %w", k, g.Type, err)
		}
		g.Props[k] = val
	}
	return nil
}

// MarshalJSON encodes a Cord as its discriminated wire form; authorship runs
// are not serialized since they are a server-side bookkeeping detail, not
// part of the document's visible content (spec §3.3).
func (c Cord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  NodeType `json:"type"`
		Value string   `json:"value"`
	}{Type: NodeTypeCord, Value: c.text})
}

// encodeValue converts a Props value into something encoding/json can
// marshal directly.
func encodeValue(v any) (any, error) {
	switch x := v.(type) {
	case Cord:
		return x, nil
	case []Node:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

// decodeValue decodes a raw JSON value into a Props value: arrays become
// []Node (recursing via DecodeNode on each element), objects carrying a
// "type" discriminator become a nested *Generic, and everything else
// becomes the corresponding primitive wrapper type.
func decodeValue(raw json.RawMessage) (any, error) {
	trimmed := skipSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, err
		}
		nodes := make([]Node, len(elems))
		for i, e := range elems {
			n, err := DecodeNode(e)
			if err != nil {
				return nil, err
			}
			nodes[i] = n
		}
		return nodes, nil
	case '{':
		return DecodeNode(raw)
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return String(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return Boolean(b), nil
	case 'n':
		return Null{}, nil
	default:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
		return Number(f), nil
	}
}

func lastUnderscore(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '_' {
			return i
		}
	}
	return -1
}

func skipSpace(raw json.RawMessage) json.RawMessage {
	i := 0
	for i < len(raw) && (raw[i] == ' ' || raw[i] == '\t' || raw[i] == '\n' || raw[i] == '\r') {
		i++
	}
	return raw[i:]
}

// DecodeNode decodes a single wire value into a Node: a primitive-shaped
// value (string/number/bool/null/array of primitives) decodes directly; an
// object carrying a "type" field decodes as a *Generic, with "type" ==
// "Cord" handled specially since Cord isn't Generic-backed.
func DecodeNode(raw json.RawMessage) (Node, error) {
	trimmed := skipSpace(raw)
	if len(trimmed) == 0 {
		return Null{}, nil
	}
	if trimmed[0] != '{' {
		v, err := decodeValue(raw)
		if err != nil {
			return nil, err
		}
		if n, ok := v.(Node); ok {
			return n, nil
		}
		return nil, fmt.Errorf("schema: value did not decode to a Node")
	}

	var probe struct {
		Type  NodeType `json:"type"`
		Value string   `json:"value"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	if probe.Type == NodeTypeCord {
		return NewCord(probe.Value, 0), nil
	}
	g := &Generic{}
	if err := json.Unmarshal(raw, g); err != nil {
		return nil, err
	}
	return g, nil
}
