package codec

import (
	"bytes"
	"context"
	"encoding/json"

	"stencilacore/schema"
)

// JSONCodec round-trips a Node tree through its native discriminated JSON
// encoding (schema.Generic's MarshalJSON/UnmarshalJSON). It is the only
// lossless codec: every property, including execution metadata, survives
// a round trip.
type JSONCodec struct{}

// Name implements Codec.
func (JSONCodec) Name() string { return "json" }

// CanDecode sniffs for a leading '{' after whitespace, since every encoded
// node is a JSON object.
func (JSONCodec) CanDecode(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Decode implements Codec.
func (JSONCodec) Decode(_ context.Context, data []byte) (schema.Node, error) {
	return schema.DecodeNode(json.RawMessage(data))
}

// Encode implements Codec.
func (JSONCodec) Encode(_ context.Context, node schema.Node) ([]byte, error) {
	return json.Marshal(node)
}

// SupportsLossless implements Codec.
func (JSONCodec) SupportsLossless() bool { return true }
