package patch

import (
	"context"
	"time"

	"stencilacore/schema"
)

// DiffCord computes the CordOps that transform from's text into to's text,
// using a Patience diff: align unique common lines (here, unique common
// bytes-runs split on newlines) as anchors, then recurse between anchors.
// If diffing does not complete within cordDiffTimeout, it falls back to a
// single whole-Cord replace (spec §4.1).
func DiffCord(ctx context.Context, from, to schema.Cord) []schema.CordOp {
	ctx, cancel := context.WithTimeout(ctx, cordDiffTimeout)
	defer cancel()

	a, b := from.String(), to.String()
	if a == b {
		return nil
	}

	deadline, _ := ctx.Deadline()
	ops := patienceDiff(a, b, 0, 0, deadline)
	if ops == nil {
		// Timed out or gave up: single whole-range replace.
		return []schema.CordOp{{Kind: schema.CordOpReplace, From: 0, To: len(a), Text: b}}
	}
	return ops
}

// patienceDiff recursively aligns the longest run of lines common to both a
// and b (patience-diff's "unique common subsequence of anchor lines"), then
// diffs the unmatched spans on either side, emitting byte-offset CordOps
// relative to the original `from` string via aOffset/bOffset bookkeeping.
func patienceDiff(a, b string, aOffset, bOffset int, deadline time.Time) []schema.CordOp {
	if !deadline.IsZero() && time.Now().After(deadline) {
		return nil
	}
	if a == b {
		return []schema.CordOp{}
	}
	if a == "" {
		return []schema.CordOp{{Kind: schema.CordOpInsert, From: aOffset, Text: b}}
	}
	if b == "" {
		return []schema.CordOp{{Kind: schema.CordOpDelete, From: aOffset, To: aOffset + len(a)}}
	}

	aLines := splitLines(a)
	bLines := splitLines(b)

	anchor, ok := longestUniqueCommonRun(aLines, bLines)
	if !ok {
		// No shared anchor line: treat the whole span as one replace.
		return []schema.CordOp{{Kind: schema.CordOpReplace, From: aOffset, To: aOffset + len(a), Text: b}}
	}

	aBefore, aMatch, aAfter := splitByLineRange(aLines, anchor.aStart, anchor.aEnd)
	bBefore, _, bAfter := splitByLineRange(bLines, anchor.bStart, anchor.bEnd)

	// The span after the anchor is emitted first: Cord.Apply runs ops in
	// sequence, so descending offsets keep each original-`from` offset valid.
	// A nil (timed-out) result from either side is passed up unchanged.
	matchLen := len(aMatch)
	after := patienceDiff(aAfter, bAfter, aOffset+len(aBefore)+matchLen, bOffset+len(bBefore)+matchLen, deadline)
	before := patienceDiff(aBefore, bBefore, aOffset, bOffset, deadline)
	if after == nil || before == nil {
		return nil
	}
	return append(after, before...)
}

type lineRun struct {
	aStart, aEnd int // line indices in aLines
	bStart, bEnd int // line indices in bLines
}

// longestUniqueCommonRun finds the longest contiguous run of lines that
// appears, unbroken, in both aLines and bLines, where the run's first line
// occurs exactly once in each (patience diff's uniqueness restriction, which
// keeps the algorithm near-linear on typical text edits); the lines that
// extend the run need not be unique.
func longestUniqueCommonRun(aLines, bLines []string) (lineRun, bool) {
	aCount := map[string]int{}
	for _, l := range aLines {
		aCount[l]++
	}
	bCount := map[string]int{}
	for _, l := range bLines {
		bCount[l]++
	}
	bIndex := map[string]int{}
	for i, l := range bLines {
		if bCount[l] == 1 {
			bIndex[l] = i
		}
	}

	best := lineRun{}
	bestLen := 0
	i := 0
	for i < len(aLines) {
		l := aLines[i]
		j, unique := bIndex[l]
		if aCount[l] != 1 || !unique {
			i++
			continue
		}
		// Extend the run forward as far as both sides keep matching.
		runLen := 1
		for i+runLen < len(aLines) && j+runLen < len(bLines) && aLines[i+runLen] == bLines[j+runLen] {
			runLen++
		}
		if runLen > bestLen {
			bestLen = runLen
			best = lineRun{aStart: i, aEnd: i + runLen, bStart: j, bEnd: j + runLen}
		}
		i += runLen
	}
	return best, bestLen > 0
}

func splitByLineRange(lines []string, start, end int) (before, match, after string) {
	before = joinLines(lines[:start])
	match = joinLines(lines[start:end])
	after = joinLines(lines[end:])
	return
}

// splitLines splits on '\n', keeping the delimiter attached to each line
// (except possibly the last) so joinLines(splitLines(s)) == s exactly.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func joinLines(lines []string) string {
	total := 0
	for _, l := range lines {
		total += len(l)
	}
	out := make([]byte, 0, total)
	for _, l := range lines {
		out = append(out, l...)
	}
	return string(out)
}
