// Package patch implements the diff/apply engine that turns one schema.Node
// tree into another: computing a Patch between two trees, applying a Patch
// to a tree, and the authorship bookkeeping that keeps schema.Cord runs
// correct across both (spec §4.1, §8).
package patch

import (
	"fmt"

	"stencilacore/errors"
	"stencilacore/schema"
)

// PatchOp names the kind of edit a PatchEntry performs.
type PatchOp string

const (
	OpSet    PatchOp = "set"    // replace the value at Path wholesale
	OpPush   PatchOp = "push"   // append a value to the sequence at Path
	OpAppend PatchOp = "append" // append multiple values to the sequence at Path
	OpInsert PatchOp = "insert" // insert a value at a sequence index
	OpRemove PatchOp = "remove" // remove the value at Path
	OpClear  PatchOp = "clear"  // empty the sequence at Path
	OpApply  PatchOp = "apply"  // apply schema.CordOps to the Cord at Path
)

// PathStep is one segment of a PatchPath: either a named property, a
// sequence index, or a node id (used as the path's first step to locate the
// target node within the tree before descending by property/index).
type PathStep struct {
	Property string
	Index    int
	HasIndex bool
	NodeID   *schema.NodeId
}

// Prop builds a property-name path step.
func Prop(name string) PathStep { return PathStep{Property: name} }

// Idx builds a sequence-index path step.
func Idx(i int) PathStep { return PathStep{Index: i, HasIndex: true} }

// ByID builds a node-id path step, used as the first step of a path to
// locate a node anywhere in the tree regardless of structural position.
func ByID(id schema.NodeId) PathStep { return PathStep{NodeID: &id} }

// PatchPath addresses a location within a document tree.
type PatchPath []PathStep

// String renders a path in "id.content[2].value" form for diagnostics.
func (p PatchPath) String() string {
	s := ""
	for _, step := range p {
		switch {
		case step.NodeID != nil:
			s += step.NodeID.String()
		case step.HasIndex:
			s += fmt.Sprintf("[%d]", step.Index)
		default:
			if s != "" {
				s += "."
			}
			s += step.Property
		}
	}
	return s
}

// PatchEntry is a single edit within a Patch.
type PatchEntry struct {
	Op     PatchOp
	Path   PatchPath
	Value  any // for Set/Push/Insert; element type matches the target property
	Values []any // for Append
	Ops    []schema.CordOp // for Apply
	Author schema.AuthorID
}

// Patch is an ordered batch of edits, applied atomically: if any entry
// fails with a structural error (PathNotFound, TypeMismatch), the whole
// patch is rejected and the tree is left unchanged (spec §4.1).
type Patch struct {
	Entries []PatchEntry
}

// Validate checks a patch for internal consistency before it is applied:
// currently, that no two Apply entries targeting the same Cord have
// overlapping CordOp ranges (spec §3.4 Open Question, resolved as
// whole-patch rejection).
func Validate(p Patch) error {
	byPath := map[string][]schema.CordOp{}
	for _, e := range p.Entries {
		if e.Op != OpApply {
			continue
		}
		key := e.Path.String()
		for _, newOp := range e.Ops {
			for _, existing := range byPath[key] {
				if newOp.Overlaps(existing) {
					return errors.New(errors.KindOverlap,
						fmt.Sprintf("overlapping CordOps at path %q", key)).
						WithDetails(map[string]any{"path": key})
				}
			}
		}
		byPath[key] = append(byPath[key], e.Ops...)
	}
	return nil
}
