package schema

import "strings"

// AuthorID identifies the author (human or machine) of a run of text within
// a Cord. MAX_U16 (AuthorUnknown) is reserved for "no author recorded"
// (spec §3.2); 0 is a valid, assignable author id.
type AuthorID uint16

// AuthorUnknown is the sentinel AuthorID meaning "no author recorded".
const AuthorUnknown AuthorID = 1<<16 - 1

// Run is a contiguous span of a Cord's text attributed to a single author,
// recorded as a byte length rather than a substring so that runs can be
// spliced without re-slicing the whole string on every edit.
type Run struct {
	Author AuthorID
	Bytes  int
}

// Cord is a UTF-8 string paired with a run-list recording which author wrote
// each byte span (spec §3.3). Authorship is maintained incrementally by
// Insert/Delete/Replace rather than recomputed from scratch, mirroring
// original_source/rust/schema/src/implem/cord.rs.
type Cord struct {
	text string
	runs []Run
}

// NewCord constructs a Cord whose entire text is attributed to author.
func NewCord(text string, author AuthorID) Cord {
	c := Cord{text: text}
	if len(text) > 0 {
		c.runs = []Run{{Author: author, Bytes: len(text)}}
	}
	return c
}

// String returns the Cord's current text.
func (c Cord) String() string { return c.text }

// Len returns the byte length of the Cord's text.
func (c Cord) Len() int { return len(c.text) }

// Runs returns a copy of the Cord's authorship run-list.
func (c Cord) Runs() []Run {
	out := make([]Run, len(c.runs))
	copy(out, c.runs)
	return out
}

// runsTotal sums the byte lengths across all runs; used in invariant checks.
func runsTotal(runs []Run) int {
	n := 0
	for _, r := range runs {
		n += r.Bytes
	}
	return n
}

// normalize merges adjacent runs sharing the same author, the standard
// post-edit cleanup step in cord.rs so run-lists don't grow unboundedly.
func normalize(runs []Run) []Run {
	out := make([]Run, 0, len(runs))
	for _, r := range runs {
		if r.Bytes == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Author == r.Author {
			out[n-1].Bytes += r.Bytes
			continue
		}
		out = append(out, r)
	}
	return out
}

// splitAt splits runs at byte offset pos, returning the runs before and at-
// or-after pos. pos must be within [0, runsTotal(runs)].
func splitAt(runs []Run, pos int) (before, after []Run) {
	if pos <= 0 {
		return nil, runs
	}
	offset := 0
	for i, r := range runs {
		if offset+r.Bytes <= pos {
			before = append(before, r)
			offset += r.Bytes
			continue
		}
		// pos falls inside run i.
		lead := pos - offset
		if lead > 0 {
			before = append(before, Run{Author: r.Author, Bytes: lead})
		}
		if rest := r.Bytes - lead; rest > 0 {
			after = append(after, Run{Author: r.Author, Bytes: rest})
		}
		after = append(after, runs[i+1:]...)
		return before, after
	}
	return before, nil
}

// clampRange clamps [from, to) to the Cord's current bounds, per spec §3.4's
// rule that out-of-range CordOps are silently clamped rather than rejected.
func (c Cord) clampRange(from, to int) (int, int) {
	n := len(c.text)
	if from < 0 {
		from = 0
	}
	if from > n {
		from = n
	}
	if to < from {
		to = from
	}
	if to > n {
		to = n
	}
	return from, to
}

// Insert inserts text at byte offset at, attributing the new run to author.
// at is clamped into [0, len(c.text)].
func (c Cord) Insert(at int, text string, author AuthorID) Cord {
	at, _ = c.clampRange(at, at)
	if text == "" {
		return c
	}
	var b strings.Builder
	b.Grow(len(c.text) + len(text))
	b.WriteString(c.text[:at])
	b.WriteString(text)
	b.WriteString(c.text[at:])

	before, after := splitAt(c.runs, at)
	runs := append(append(before, Run{Author: author, Bytes: len(text)}), after...)

	return Cord{text: b.String(), runs: normalize(runs)}
}

// Delete removes the byte range [from, to) from the Cord, clamping the range
// into bounds first.
func (c Cord) Delete(from, to int) Cord {
	from, to = c.clampRange(from, to)
	if from == to {
		return c
	}
	text := c.text[:from] + c.text[to:]

	beforeFrom, _ := splitAt(c.runs, from)
	_, afterTo := splitAt(c.runs, to)
	runs := append(beforeFrom, afterTo...)

	return Cord{text: text, runs: normalize(runs)}
}

// Replace replaces the byte range [from, to) with text, attributing the
// replacement to author. Implemented as Delete followed by Insert, matching
// cord.rs's apply_ops composition.
func (c Cord) Replace(from, to int, text string, author AuthorID) Cord {
	from, to = c.clampRange(from, to)
	return c.Delete(from, to).Insert(from, text, author)
}
