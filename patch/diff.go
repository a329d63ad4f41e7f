package patch

import (
	"context"
	"sort"
	"time"

	"stencilacore/schema"
)

// similarityThreshold is the minimum Similarity score at which two nodes in
// different positions are considered "the same node, edited/moved" rather
// than "delete + insert" (spec §4.1, §8 property 2).
const similarityThreshold = 0.5

// cordDiffTimeout bounds how long the Patience-diff based Cord differ may
// run before falling back to a single whole-Cord replace (spec §4.1).
const cordDiffTimeout = 15 * time.Second

// Diff computes a Patch that transforms `from` into `to`. Sequence-valued
// properties are aligned with a similarity matrix: candidate pairs are taken
// greedily by descending similarity, then any pair that breaks increasing
// order in both sequences is dropped, so the kept pairs are monotonic but
// not guaranteed to be the longest or highest-scoring such alignment (an
// edit-distance-free alignment, matching how Stencila's original
// implementation avoids full O(n^3) tree diff); Cord-valued properties are
// diffed with Patience diff.
func Diff(from, to schema.Node) Patch {
	var entries []PatchEntry
	diffNodes(nil, from, to, &entries)
	return Patch{Entries: entries}
}

func diffNodes(path PatchPath, from, to schema.Node, out *[]PatchEntry) {
	if from == nil && to == nil {
		return
	}
	if from == nil || to == nil || from.NodeType() != to.NodeType() {
		*out = append(*out, PatchEntry{Op: OpSet, Path: path, Value: to})
		return
	}

	switch fv := from.(type) {
	case schema.Cord:
		tv := to.(schema.Cord)
		if fv.String() == tv.String() {
			return
		}
		ops := DiffCord(context.Background(), fv, tv)
		if len(ops) == 0 {
			return
		}
		*out = append(*out, PatchEntry{Op: OpApply, Path: path, Ops: ops})

	case *schema.Generic:
		tv := to.(*schema.Generic)
		diffGeneric(path, fv, tv, out)

	default:
		if schema.Similarity(from, to) < 1 {
			*out = append(*out, PatchEntry{Op: OpSet, Path: path, Value: to})
		}
	}
}

func diffGeneric(path PatchPath, from, to *schema.Generic, out *[]PatchEntry) {
	keys := unionPropKeys(from.Props, to.Props)
	for _, k := range keys {
		fv, fok := from.Props[k]
		tv, tok := to.Props[k]
		propPath := append(append(PatchPath{}, path...), Prop(k))

		switch {
		case fok != tok:
			// Apply can neither add nor delete a property, so a change in
			// the property set replaces the whole node.
			*out = append(*out, PatchEntry{Op: OpSet, Path: path, Value: to})
			return
		default:
			diffPropValue(propPath, fv, tv, out)
		}
	}
}

func diffPropValue(path PatchPath, from, to any, out *[]PatchEntry) {
	switch fv := from.(type) {
	case []schema.Node:
		tv, ok := to.([]schema.Node)
		if !ok {
			*out = append(*out, PatchEntry{Op: OpSet, Path: path, Value: to})
			return
		}
		diffSequence(path, fv, tv, out)

	case schema.Cord:
		tv, ok := to.(schema.Cord)
		if !ok {
			*out = append(*out, PatchEntry{Op: OpSet, Path: path, Value: to})
			return
		}
		diffNodes(path, fv, tv, out)

	case schema.Node:
		tv, ok := to.(schema.Node)
		if !ok {
			*out = append(*out, PatchEntry{Op: OpSet, Path: path, Value: to})
			return
		}
		diffNodes(path, fv, tv, out)

	default:
		if from != to {
			*out = append(*out, PatchEntry{Op: OpSet, Path: path, Value: to})
		}
	}
}

// diffSequence aligns two node sequences using a similarity matrix and a
// monotonic alignment (see alignGreedyLIS and enforceMonotonic),
// then emits Remove/Insert/per-element-diff entries for the aligned result.
// Ties in the similarity matrix are broken by preferring the pairing
// closest to the diagonal (i.e. least position movement), matching the
// expectation that edits are usually local.
func diffSequence(path PatchPath, from, to []schema.Node, out *[]PatchEntry) {
	n, m := len(from), len(to)
	if n == 0 {
		for _, node := range to {
			*out = append(*out, PatchEntry{Op: OpPush, Path: path, Value: node})
		}
		return
	}
	if m == 0 {
		*out = append(*out, PatchEntry{Op: OpClear, Path: path})
		return
	}

	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, m)
		for j := range sim[i] {
			sim[i][j] = schema.Similarity(from[i], to[j])
		}
	}

	matchTo := alignGreedyLIS(sim, similarityThreshold)

	matchedFrom := make([]bool, n)
	for i, j := range matchTo {
		if j >= 0 {
			matchedFrom[i] = true
		}
	}

	// Remove unmatched `from` elements, from highest index to lowest so
	// earlier indices stay valid as we go.
	for i := n - 1; i >= 0; i-- {
		if !matchedFrom[i] {
			*out = append(*out, PatchEntry{Op: OpRemove, Path: append(append(PatchPath{}, path...), Idx(i))})
		}
	}

	// Insert unmatched `to` elements and diff matched pairs, walking `to` in
	// order so insertions land at the right final index.
	matchedAtTo := make(map[int]int, len(matchTo))
	for i, j := range matchTo {
		if j >= 0 {
			matchedAtTo[j] = i
		}
	}
	for j, node := range to {
		if i, ok := matchedAtTo[j]; ok {
			elemPath := append(append(PatchPath{}, path...), Idx(j))
			diffNodes(elemPath, from[i], node, out)
			continue
		}
		*out = append(*out, PatchEntry{Op: OpInsert, Path: append(append(PatchPath{}, path...), Idx(j)), Value: node})
	}
}

// alignGreedyLIS returns, for each index in `from`, the matched index in
// `to` (or -1 if unmatched), choosing pairs above threshold greedily by
// descending similarity and enforcing that matched indices increase
// monotonically in both sequences (a longest-increasing-subsequence-style
// alignment over candidate pairs).
func alignGreedyLIS(sim [][]float64, threshold float64) []int {
	n := len(sim)
	m := 0
	if n > 0 {
		m = len(sim[0])
	}
	type candidate struct {
		i, j  int
		score float64
	}
	var candidates []candidate
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			if sim[i][j] >= threshold {
				candidates = append(candidates, candidate{i, j, sim[i][j]})
			}
		}
	}
	// Sort candidates by descending score, then by proximity to the
	// diagonal (ties broken toward local, non-moving edits).
	sort.Slice(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.score != cb.score {
			return ca.score > cb.score
		}
		return abs(ca.i-ca.j) < abs(cb.i-cb.j)
	})

	matchTo := make([]int, n)
	usedTo := make([]bool, m)
	for i := range matchTo {
		matchTo[i] = -1
	}
	for _, c := range candidates {
		if matchTo[c.i] != -1 || usedTo[c.j] {
			continue
		}
		matchTo[c.i] = c.j
		usedTo[c.j] = true
	}
	return enforceMonotonic(matchTo)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// enforceMonotonic walks matchTo in `from` order and keeps each matched pair
// whose `to` index is greater than that of the last pair kept, dropping the
// rest. An early pair with a large `to` index can therefore drop a longer
// increasing run after it ([5, 0, 1, 2] keeps only 5); the result is not
// guaranteed to be the longest increasing subsequence.
func enforceMonotonic(matchTo []int) []int {
	out := make([]int, len(matchTo))
	copy(out, matchTo)
	lastJ := -1
	for i, j := range out {
		if j == -1 {
			continue
		}
		if j <= lastJ {
			out[i] = -1
			continue
		}
		lastJ = j
	}
	return out
}

func unionPropKeys(a, b map[string]any) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var keys []string
	for k := range a {
		seen[k] = true
		keys = append(keys, k)
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}
