package patch

import (
	"fmt"

	"stencilacore/errors"
	"stencilacore/schema"
)

// Apply applies p to root, returning the resulting tree. The whole patch is
// rejected (root returned unchanged, non-nil error) if any entry targets a
// path that does not exist (PathNotFound) or targets a value of the wrong
// shape (TypeMismatch). CordOp ranges that fall outside a Cord's current
// bounds are clamped rather than rejected, per Cord's own semantics (spec
// §3.4, §4.1).
func Apply(root schema.Node, p Patch) (schema.Node, error) {
	if err := Validate(p); err != nil {
		return root, err
	}
	result := root
	for i, e := range p.Entries {
		next, err := applyEntry(result, e)
		if err != nil {
			return root, fmt.Errorf("patch: entry %d (%s %s): %w", i, e.Op, e.Path, err)
		}
		result = next
	}
	return result, nil
}

func applyEntry(root schema.Node, e PatchEntry) (schema.Node, error) {
	if len(e.Path) == 0 {
		return applyAtRoot(root, e)
	}
	return descend(root, e.Path, e)
}

func applyAtRoot(root schema.Node, e PatchEntry) (schema.Node, error) {
	switch e.Op {
	case OpSet:
		v, ok := e.Value.(schema.Node)
		if !ok {
			return nil, errors.New(errors.KindTypeMismatch, "root Set value is not a Node")
		}
		return v, nil
	case OpApply:
		c, ok := root.(schema.Cord)
		if !ok {
			return nil, errors.New(errors.KindTypeMismatch, "root is not a Cord")
		}
		return c.Apply(e.Ops), nil
	default:
		return nil, errors.New(errors.KindTypeMismatch, fmt.Sprintf("op %s not valid at root", e.Op))
	}
}

// descend walks path against root, applying e's operation once the parent
// container named by all but the last step has been located.
func descend(root schema.Node, path PatchPath, e PatchEntry) (schema.Node, error) {
	g, ok := root.(*schema.Generic)
	if !ok {
		return nil, errors.New(errors.KindTypeMismatch, "cannot descend into non-Generic node")
	}
	step := path[0]
	rest := path[1:]

	switch {
	case step.NodeID != nil:
		found, ok := findByID(g, *step.NodeID)
		if !ok {
			return nil, errors.New(errors.KindPathNotFound, fmt.Sprintf("no node with id %s", step.NodeID))
		}
		if len(rest) == 0 {
			if e.Op != OpSet {
				return nil, errors.New(errors.KindTypeMismatch, fmt.Sprintf("op %s not valid targeting a whole node by id", e.Op))
			}
			updated, ok := e.Value.(schema.Node)
			if !ok {
				return nil, errors.New(errors.KindTypeMismatch, "Set value is not a Node")
			}
			return replaceByID(g, *step.NodeID, updated), nil
		}
		updated, err := descend(found, rest, e)
		if err != nil {
			return nil, err
		}
		return replaceByID(g, *step.NodeID, updated), nil

	case step.Property != "":
		val, ok := g.Props[step.Property]
		if !ok {
			return nil, errors.New(errors.KindPathNotFound, fmt.Sprintf("no property %q on %s", step.Property, g.Type))
		}
		if len(rest) == 0 {
			updatedVal, err := applyToValue(val, e)
			if err != nil {
				return nil, err
			}
			out := shallowCopy(g)
			out.Props[step.Property] = updatedVal
			return out, nil
		}

		if len(rest) == 1 && rest[0].HasIndex && (e.Op == OpInsert || e.Op == OpRemove) {
			// Insert/Remove paths end in the index to insert at or remove,
			// so the op applies to the sequence itself (see indexOf).
			updatedVal, err := applyToValue(val, e)
			if err != nil {
				return nil, err
			}
			out := shallowCopy(g)
			out.Props[step.Property] = updatedVal
			return out, nil
		}

		if rest[0].HasIndex {
			seq, ok := val.([]schema.Node)
			if !ok {
				return nil, errors.New(errors.KindTypeMismatch, fmt.Sprintf("property %q is not a sequence", step.Property))
			}
			idx := rest[0].Index
			if idx < 0 || idx >= len(seq) {
				return nil, errors.New(errors.KindPathNotFound, fmt.Sprintf("index %d out of range on %q", idx, step.Property))
			}
			remaining := rest[1:]
			if len(remaining) == 0 {
				updatedElem, err := applyToValue(seq[idx], e)
				if err != nil {
					return nil, err
				}
				newElem, ok := updatedElem.(schema.Node)
				if !ok {
					return nil, errors.New(errors.KindTypeMismatch, "sequence element update is not a Node")
				}
				out := shallowCopy(g)
				newSeq := make([]schema.Node, len(seq))
				copy(newSeq, seq)
				newSeq[idx] = newElem
				out.Props[step.Property] = newSeq
				return out, nil
			}
			updatedElem, err := descend(seq[idx], remaining, e)
			if err != nil {
				return nil, err
			}
			out := shallowCopy(g)
			newSeq := make([]schema.Node, len(seq))
			copy(newSeq, seq)
			newSeq[idx] = updatedElem
			out.Props[step.Property] = newSeq
			return out, nil
		}

		childNode, ok := val.(schema.Node)
		if !ok {
			return nil, errors.New(errors.KindTypeMismatch, fmt.Sprintf("property %q is not a node", step.Property))
		}
		updatedChild, err := descend(childNode, rest, e)
		if err != nil {
			return nil, err
		}
		out := shallowCopy(g)
		out.Props[step.Property] = updatedChild
		return out, nil

	default:
		return nil, errors.New(errors.KindTypeMismatch, "path step has neither property nor id")
	}
}

// applyToValue applies e's operation to a single Props value (a Cord,
// []Node sequence, or scalar) once the parent property has been located.
func applyToValue(val any, e PatchEntry) (any, error) {
	switch e.Op {
	case OpSet:
		return e.Value, nil

	case OpApply:
		c, ok := val.(schema.Cord)
		if !ok {
			return nil, errors.New(errors.KindTypeMismatch, "target value is not a Cord")
		}
		return c.Apply(e.Ops), nil

	case OpPush:
		seq, ok := val.([]schema.Node)
		if !ok {
			return nil, errors.New(errors.KindTypeMismatch, "target value is not a sequence")
		}
		node, ok := e.Value.(schema.Node)
		if !ok {
			return nil, errors.New(errors.KindTypeMismatch, "Push value is not a Node")
		}
		out := make([]schema.Node, len(seq)+1)
		copy(out, seq)
		out[len(seq)] = node
		return out, nil

	case OpAppend:
		seq, ok := val.([]schema.Node)
		if !ok {
			return nil, errors.New(errors.KindTypeMismatch, "target value is not a sequence")
		}
		out := make([]schema.Node, len(seq), len(seq)+len(e.Values))
		copy(out, seq)
		for _, v := range e.Values {
			node, ok := v.(schema.Node)
			if !ok {
				return nil, errors.New(errors.KindTypeMismatch, "Append value is not a Node")
			}
			out = append(out, node)
		}
		return out, nil

	case OpInsert:
		seq, ok := val.([]schema.Node)
		if !ok {
			return nil, errors.New(errors.KindTypeMismatch, "target value is not a sequence")
		}
		idx := indexOf(e)
		if idx < 0 || idx > len(seq) {
			return nil, errors.New(errors.KindPathNotFound, "sequence index out of range")
		}
		node, ok := e.Value.(schema.Node)
		if !ok {
			return nil, errors.New(errors.KindTypeMismatch, "Insert value is not a Node")
		}
		out := make([]schema.Node, 0, len(seq)+1)
		out = append(out, seq[:idx]...)
		out = append(out, node)
		out = append(out, seq[idx:]...)
		return out, nil

	case OpRemove:
		seq, ok := val.([]schema.Node)
		if !ok {
			return nil, errors.New(errors.KindTypeMismatch, "target value is not a sequence")
		}
		idx := indexOf(e)
		if idx < 0 || idx >= len(seq) {
			return nil, errors.New(errors.KindPathNotFound, "sequence index out of range")
		}
		out := make([]schema.Node, 0, len(seq)-1)
		out = append(out, seq[:idx]...)
		out = append(out, seq[idx+1:]...)
		return out, nil

	case OpClear:
		if _, ok := val.([]schema.Node); !ok {
			return nil, errors.New(errors.KindTypeMismatch, "target value is not a sequence")
		}
		return []schema.Node{}, nil

	default:
		return nil, errors.New(errors.KindTypeMismatch, fmt.Sprintf("unknown op %s", e.Op))
	}
}

// indexOf extracts the sequence index from e's last path step, defaulting
// to -1 (invalid) if the path carries no index step.
func indexOf(e PatchEntry) int {
	if len(e.Path) == 0 {
		return -1
	}
	last := e.Path[len(e.Path)-1]
	if !last.HasIndex {
		return -1
	}
	return last.Index
}

// shallowCopy copies a Generic's Props map (one level deep) so edits don't
// mutate a tree still referenced elsewhere (e.g. the pipeline Context log,
// spec §4.3).
func shallowCopy(g *schema.Generic) *schema.Generic {
	out := &schema.Generic{Type: g.Type, ID: g.ID, Exec: g.Exec, Props: make(map[string]any, len(g.Props))}
	for k, v := range g.Props {
		out.Props[k] = v
	}
	return out
}

func findByID(root schema.Node, id schema.NodeId) (schema.Node, bool) {
	g, ok := root.(*schema.Generic)
	if !ok {
		return nil, false
	}
	if g.ID == id {
		return g, true
	}
	for _, v := range g.Props {
		switch pv := v.(type) {
		case []schema.Node:
			for _, c := range pv {
				if found, ok := findByID(c, id); ok {
					return found, true
				}
			}
		case schema.Node:
			if found, ok := findByID(pv, id); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// replaceByID returns a copy of root with the node identified by id
// replaced by updated, copying every ancestor on the path to it.
func replaceByID(root *schema.Generic, id schema.NodeId, updated schema.Node) *schema.Generic {
	if root.ID == id {
		if u, ok := updated.(*schema.Generic); ok {
			return u
		}
		return root
	}
	out := shallowCopy(root)
	for k, v := range root.Props {
		switch pv := v.(type) {
		case []schema.Node:
			newSeq := make([]schema.Node, len(pv))
			changed := false
			for i, c := range pv {
				if cg, ok := c.(*schema.Generic); ok {
					replaced := replaceByID(cg, id, updated)
					newSeq[i] = replaced
					if replaced != cg {
						changed = true
					}
				} else {
					newSeq[i] = c
				}
			}
			if changed {
				out.Props[k] = newSeq
			}
		case *schema.Generic:
			replaced := replaceByID(pv, id, updated)
			if replaced != pv {
				out.Props[k] = replaced
			}
		}
	}
	return out
}
