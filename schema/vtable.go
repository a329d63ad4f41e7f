package schema

// This file implements the capability set spec §9 asks to be schema-driven
// rather than hand-dispatched per variant: Similarity, Strip, and
// CollectAuthors all walk Generic.Props generically, so adding a new node
// type never requires touching this file.

// Similarity returns a score in [0, 1] estimating how alike two nodes are,
// used by the sequence-diff alignment step in the patch package to decide
// whether two nodes at different positions are "the same node moved/edited"
// versus "different nodes" (spec §4.1, §8 property 2).
func Similarity(a, b Node) float64 {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return 1
		}
		return 0
	}
	if a.NodeType() != b.NodeType() {
		return 0
	}
	switch av := a.(type) {
	case Cord:
		bv := b.(Cord)
		return cordSimilarity(av, bv)
	case String:
		if av == b.(String) {
			return 1
		}
		return 0
	case Integer:
		if av == b.(Integer) {
			return 1
		}
		return 0
	case Number:
		if av == b.(Number) {
			return 1
		}
		return 0
	case Boolean:
		if av == b.(Boolean) {
			return 1
		}
		return 0
	case Null:
		return 1
	case *Generic:
		return genericSimilarity(av, b.(*Generic))
	default:
		return 0
	}
}

// cordSimilarity approximates text similarity by shared-length ratio; the
// patch package's Patience-diff based Cord differ (patch.DiffCord) computes
// the precise edit script once two Cords have been judged similar enough to
// align.
func cordSimilarity(a, b Cord) float64 {
	if a.text == b.text {
		return 1
	}
	maxLen := len(a.text)
	if len(b.text) > maxLen {
		maxLen = len(b.text)
	}
	if maxLen == 0 {
		return 1
	}
	common := commonPrefixSuffix(a.text, b.text)
	return float64(common) / float64(maxLen)
}

func commonPrefixSuffix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	m := 0
	for m < len(a)-n && m < len(b)-n && a[len(a)-1-m] == b[len(b)-1-m] {
		m++
	}
	return n + m
}

// sameTypeFloor is the minimum score genericSimilarity returns for two
// same-typed nodes, keeping it strictly above 0 so same-type nodes always
// outrank a different-typed node (which Similarity scores at exactly 0)
// per spec §3.4's "same-type always beats different-type" guarantee.
const sameTypeFloor = 1e-9

// genericSimilarity compares two same-typed Generic nodes property by
// property: scalar properties contribute 1 or 0, sequence properties
// contribute the summed pairwise similarity of their common prefix divided
// by the longer sequence's length, and
// the overall score is the mean across all properties present on either
// side.
func genericSimilarity(a, b *Generic) float64 {
	keys := unionKeys(a.Props, b.Props)
	if len(keys) == 0 {
		return 1
	}
	total := 0.0
	for _, k := range keys {
		av, aok := a.Props[k]
		bv, bok := b.Props[k]
		if !aok || !bok {
			continue
		}
		total += propSimilarity(av, bv)
	}
	score := total / float64(len(keys))
	if score < sameTypeFloor {
		return sameTypeFloor
	}
	return score
}

func propSimilarity(a, b any) float64 {
	switch av := a.(type) {
	case []Node:
		bv, ok := b.([]Node)
		if !ok {
			return 0
		}
		return sequenceSimilarity(av, bv)
	case Cord:
		bv, ok := b.(Cord)
		if !ok {
			return 0
		}
		return cordSimilarity(av, bv)
	case Node:
		bv, ok := b.(Node)
		if !ok {
			return 0
		}
		return Similarity(av, bv)
	default:
		if a == b {
			return 1
		}
		return 0
	}
}

func sequenceSimilarity(a, b []Node) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += Similarity(a[i], b[i])
	}
	return sum / float64(maxLen)
}

func unionKeys(a, b map[string]any) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var keys []string
	for k := range a {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// Strip returns a copy of n with the named scopes removed, used to produce
// a comparison view of a node that ignores e.g. execution metadata or
// authorship when computing equality (spec §4.1's strip capability).
// Recognized scopes: "executionMetadata", "id", "authors", "provenance", "code".
func Strip(n Node, scopes ...string) Node {
	g, ok := n.(*Generic)
	if !ok {
		return n
	}
	remove := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		remove[s] = true
	}
	out := &Generic{Type: g.Type, Props: make(map[string]any, len(g.Props))}
	if !remove["id"] {
		out.ID = g.ID
	}
	if !remove["executionMetadata"] {
		out.Exec = g.Exec
	}
	for k, v := range g.Props {
		if remove["authors"] && k == "authors" {
			continue
		}
		if remove["provenance"] && k == "provenance" {
			continue
		}
		if remove["code"] && k == "code" {
			continue
		}
		if seq, ok := v.([]Node); ok {
			stripped := make([]Node, len(seq))
			for i, c := range seq {
				stripped[i] = Strip(c, scopes...)
			}
			out.Props[k] = stripped
			continue
		}
		out.Props[k] = v
	}
	return out
}

// CollectAuthors walks n and returns the set of AuthorIDs attributed to any
// Cord reachable from it, used to compute a node's "authors" summary
// property after an edit.
func CollectAuthors(n Node) []AuthorID {
	seen := map[AuthorID]bool{}
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case Cord:
			for _, r := range v.runs {
				seen[r.Author] = true
			}
		case *Generic:
			for _, val := range v.Props {
				switch pv := val.(type) {
				case []Node:
					for _, c := range pv {
						walk(c)
					}
				case Cord:
					for _, r := range pv.runs {
						seen[r.Author] = true
					}
				case Node:
					walk(pv)
				}
			}
		}
	}
	walk(n)
	out := make([]AuthorID, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	return out
}
