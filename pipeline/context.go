package pipeline

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Context is the mutable state threaded through a pipeline run: a
// String->JSON value map shared by every stage, plus an append-only log of
// free-text notes. Stages read it to form prompts and write to it via an
// Outcome's ContextUpdates; a Snapshot is what gets persisted in a
// Checkpoint and handed to the next stage.
//
// Context has no teacher-package analogue: the closest relatives are the
// runtime's per-run agent state map and its run-loop state threading
// discipline, neither of which snapshot or keep a log. Its shape here
// follows directly from the copy-on-snapshot / append-only-log semantics.
type Context struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
	logs   []string
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{values: make(map[string]json.RawMessage)}
}

// Set stores v under k, marshaling it to JSON. It returns an error if v is
// not JSON-marshalable.
func (c *Context) Set(k string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[string]json.RawMessage)
	}
	c.values[k] = raw
	return nil
}

// SetRaw stores a pre-encoded JSON value under k.
func (c *Context) SetRaw(k string, raw json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[string]json.RawMessage)
	}
	c.values[k] = raw
}

// Get unmarshals the value stored under k into out. It reports false if k is
// absent.
func (c *Context) Get(k string, out any) (bool, error) {
	c.mu.RLock()
	raw, ok := c.values[k]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

// GetString returns the value stored under k as a string: a JSON string
// value is returned verbatim, a JSON primitive (number, bool, null) is
// stringified, and a JSON array or object is re-serialized as compact
// JSON. It returns "" if k is absent.
func (c *Context) GetString(k string) (string, bool) {
	c.mu.RLock()
	raw, ok := c.values[k]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw), true
	}
	switch t := v.(type) {
	case nil:
		return "", true
	case float64, bool:
		return fmt.Sprint(t), true
	default:
		return string(raw), true
	}
}

// ApplyUpdates merges updates into the context, overwriting any existing
// keys. Updates are applied atomically with respect to concurrent readers.
func (c *Context) ApplyUpdates(updates map[string]json.RawMessage) {
	if len(updates) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[string]json.RawMessage)
	}
	for k, v := range updates {
		c.values[k] = v
	}
}

// AppendLog appends a free-text note to the run's log. Logs are never
// overwritten, only grown.
func (c *Context) AppendLog(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, s)
}

// Logs returns a copy of the accumulated log entries, in append order.
func (c *Context) Logs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.logs))
	copy(out, c.logs)
	return out
}

// Snapshot is a deep, immutable view of a Context's values and log at a
// point in time, suitable for serializing into a Checkpoint.
type Snapshot struct {
	Values map[string]json.RawMessage `json:"values"`
	Logs   []string                   `json:"logs"`
}

// Snapshot captures the current state of the context for checkpointing.
func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	values := make(map[string]json.RawMessage, len(c.values))
	for k, v := range c.values {
		cp := make(json.RawMessage, len(v))
		copy(cp, v)
		values[k] = cp
	}
	logs := make([]string, len(c.logs))
	copy(logs, c.logs)
	return Snapshot{Values: values, Logs: logs}
}

// DeepClone returns an independent copy of the context: mutations to the
// clone never affect the receiver and vice versa.
func (c *Context) DeepClone() *Context {
	snap := c.Snapshot()
	return &Context{values: snap.Values, logs: snap.Logs}
}

// FromSnapshot rebuilds a Context from a previously captured Snapshot, used
// when resuming a run from a Checkpoint.
func FromSnapshot(snap Snapshot) *Context {
	values := make(map[string]json.RawMessage, len(snap.Values))
	for k, v := range snap.Values {
		values[k] = v
	}
	logs := make([]string, len(snap.Logs))
	copy(logs, snap.Logs)
	return &Context{values: values, logs: logs}
}
