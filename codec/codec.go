// Package codec defines the format-conversion boundary: a process-wide
// registry of Codec implementations, each responsible for one on-disk or
// wire format (spec §4's "Codec interface" component).
package codec

import (
	"context"
	"fmt"
	"sync"

	"stencilacore/schema"
)

// Codec converts between a schema.Node tree and a format's byte
// representation. CanDecode is checked before Decode is attempted, so a
// codec can decline based on a cheap sniff (extension, magic bytes)
// without committing to a full parse.
type Codec interface {
	// Name identifies the format, e.g. "json", "markdown", "html".
	Name() string
	// CanDecode reports whether data looks like this codec's format.
	CanDecode(data []byte) bool
	// Decode parses data into a Node tree.
	Decode(ctx context.Context, data []byte) (schema.Node, error)
	// Encode serializes a Node tree into this codec's format.
	Encode(ctx context.Context, node schema.Node) ([]byte, error)
	// SupportsLossless reports whether round-tripping through this codec
	// preserves every schema property, or only a lossy subset (e.g. Markdown
	// drops execution metadata).
	SupportsLossless() bool
}

// Registry holds the process-wide set of known codecs, keyed by name.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry constructs an empty Registry. Callers typically Register
// every codec they link in during program initialization.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// Register adds or replaces the codec for its Name().
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Name()] = c
}

// Get returns the codec registered under name, if any.
func (r *Registry) Get(name string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[name]
	return c, ok
}

// Sniff returns the first registered codec whose CanDecode accepts data.
// Iteration order over the registry is not guaranteed; callers with
// ambiguous formats should call Get with an explicit name instead.
func (r *Registry) Sniff(data []byte) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.codecs {
		if c.CanDecode(data) {
			return c, true
		}
	}
	return nil, false
}

// Decode looks up the codec named by format and decodes data with it.
func (r *Registry) Decode(ctx context.Context, format string, data []byte) (schema.Node, error) {
	c, ok := r.Get(format)
	if !ok {
		return nil, fmt.Errorf("codec: no codec registered for format %q", format)
	}
	return c.Decode(ctx, data)
}

// Encode looks up the codec named by format and encodes node with it.
func (r *Registry) Encode(ctx context.Context, format string, node schema.Node) ([]byte, error) {
	c, ok := r.Get(format)
	if !ok {
		return nil, fmt.Errorf("codec: no codec registered for format %q", format)
	}
	return c.Encode(ctx, node)
}
