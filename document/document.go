// Package document implements the single-writer Document wrapper around a
// schema.Node tree: the root held by a running pipeline or editing session,
// with a subscription signal fired whenever the root is replaced (spec
// §3.6/§6).
package document

import (
	"sync"

	"stencilacore/schema"
)

// Document owns one schema.Node tree under a single-writer discipline: all
// mutation goes through Document.Update, which replaces the whole root
// value (the tree itself is persistent/immutable, built by patch.Apply), and
// broadcasts the new root to subscribers. Grounded on the teacher's session
// package's single-owner-state-plus-subscriber-channel pattern.
type Document struct {
	mu      sync.RWMutex
	root    schema.Node
	path    string
	format  string
	authors []schema.AuthorID

	subs   map[int]chan schema.Node
	nextID int
}

// New constructs a Document over an initial root.
func New(root schema.Node, path, format string) *Document {
	return &Document{
		root:   root,
		path:   path,
		format: format,
		subs:   make(map[int]chan schema.Node),
	}
}

// Root returns the current root node.
func (d *Document) Root() schema.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.root
}

// Path returns the document's source path, if any.
func (d *Document) Path() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.path
}

// Format returns the document's source format name (a codec.Codec.Name()).
func (d *Document) Format() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.format
}

// Authors returns the set of authors who have contributed to the document,
// updated on every Update call via schema.CollectAuthors.
func (d *Document) Authors() []schema.AuthorID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]schema.AuthorID, len(d.authors))
	copy(out, d.authors)
	return out
}

// Update replaces the document's root and notifies subscribers. Only one
// writer may call Update at a time per spec §3.6's single-writer rule; the
// caller (typically the sync layer or a pipeline stage) is responsible for
// serializing calls, e.g. via the owning session's single goroutine.
func (d *Document) Update(root schema.Node) {
	d.mu.Lock()
	d.root = root
	d.authors = schema.CollectAuthors(root)
	subs := make([]chan schema.Node, 0, len(d.subs))
	for _, ch := range d.subs {
		subs = append(subs, ch)
	}
	d.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- root:
		default:
			// Slow subscriber: drop rather than block the writer. A
			// subscriber that cares about every intermediate root should
			// drain its channel promptly.
		}
	}
}

// Subscribe registers a channel that receives the new root after every
// Update call, and returns an unsubscribe function.
func (d *Document) Subscribe() (<-chan schema.Node, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	ch := make(chan schema.Node, 1)
	d.subs[id] = ch
	return ch, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if existing, ok := d.subs[id]; ok {
			close(existing)
			delete(d.subs, id)
		}
	}
}
