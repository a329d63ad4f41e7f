package schema

import "testing"

func TestCordInsertAttributesNewRun(t *testing.T) {
	c := NewCord("hello world", 1)
	c = c.Insert(5, " there", 2)

	if got, want := c.String(), "hello there world"; got != want {
		t.Fatalf("text = %q, want %q", got, want)
	}
	runs := c.Runs()
	if len(runs) != 3 {
		t.Fatalf("runs = %#v, want 3 runs", runs)
	}
	if runs[1].Author != 2 || runs[1].Bytes != len(" there") {
		t.Fatalf("middle run = %#v, want author 2 len %d", runs[1], len(" there"))
	}
	if got := runsTotal(runs); got != len(c.text) {
		t.Fatalf("runsTotal = %d, want %d", got, len(c.text))
	}
}

func TestCordDeleteAcrossRunBoundary(t *testing.T) {
	c := NewCord("abc", 1)
	c = c.Insert(3, "def", 2) // "abcdef", runs: 1:3, 2:3
	c = c.Delete(2, 4)        // removes "cd", spans both runs

	if got, want := c.String(), "abef"; got != want {
		t.Fatalf("text = %q, want %q", got, want)
	}
	if got := runsTotal(c.Runs()); got != len(c.text) {
		t.Fatalf("runsTotal = %d, want %d", got, len(c.text))
	}
}

func TestCordReplaceIsDeleteThenInsert(t *testing.T) {
	c := NewCord("the quick fox", 1)
	c = c.Replace(4, 9, "slow", 2)

	if got, want := c.String(), "the slow fox"; got != want {
		t.Fatalf("text = %q, want %q", got, want)
	}
}

func TestCordOutOfRangeOpsAreClamped(t *testing.T) {
	c := NewCord("abc", 1)

	inserted := c.Insert(100, "x", 2)
	if got, want := inserted.String(), "abcx"; got != want {
		t.Fatalf("clamped insert = %q, want %q", got, want)
	}

	deleted := c.Delete(-5, 100)
	if got, want := deleted.String(), ""; got != want {
		t.Fatalf("clamped delete = %q, want %q", got, want)
	}
}

func TestCordApplySequence(t *testing.T) {
	c := NewCord("", 0)
	ops := []CordOp{
		{Kind: CordOpInsert, From: 0, To: 0, Text: "hello", Author: 1},
		{Kind: CordOpInsert, From: 5, To: 5, Text: " world", Author: 2},
		{Kind: CordOpReplace, From: 0, To: 5, Text: "goodbye", Author: 3},
	}
	c = c.Apply(ops)
	if got, want := c.String(), "goodbye world"; got != want {
		t.Fatalf("text = %q, want %q", got, want)
	}
}

func TestCordOpOverlaps(t *testing.T) {
	a := CordOp{Kind: CordOpDelete, From: 0, To: 5}
	b := CordOp{Kind: CordOpDelete, From: 3, To: 8}
	if !a.Overlaps(b) {
		t.Fatal("expected overlap")
	}

	c := CordOp{Kind: CordOpInsert, From: 5, To: 5}
	d := CordOp{Kind: CordOpInsert, From: 5, To: 5}
	if c.Overlaps(d) {
		t.Fatal("two zero-width inserts at same point should not overlap")
	}

	e := CordOp{Kind: CordOpDelete, From: 0, To: 5}
	f := CordOp{Kind: CordOpDelete, From: 5, To: 10}
	if e.Overlaps(f) {
		t.Fatal("adjacent, non-intersecting ranges should not overlap")
	}
}
