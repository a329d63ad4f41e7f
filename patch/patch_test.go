package patch

import (
	"context"
	"testing"

	"stencilacore/errors"
	"stencilacore/schema"
)

func TestApplySetOnProperty(t *testing.T) {
	root := schema.NewParagraph(schema.NewText("hello", 1))
	p := Patch{Entries: []PatchEntry{
		{Op: OpSet, Path: PatchPath{Prop("content")}, Value: []schema.Node{schema.NewText("bye", 1)}},
	}}

	result, err := Apply(root, p)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	g := result.(*schema.Generic)
	content := g.Children("content")
	if len(content) != 1 {
		t.Fatalf("content len = %d, want 1", len(content))
	}
}

func TestApplyPushAppendsToSequence(t *testing.T) {
	root := schema.NewList(false, schema.NewListItem(schema.NewText("a", 1)))
	p := Patch{Entries: []PatchEntry{
		{Op: OpPush, Path: PatchPath{Prop("items")}, Value: schema.Node(schema.NewListItem(schema.NewText("b", 1)))},
	}}
	result, err := Apply(root, p)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	items := result.(*schema.Generic).Children("items")
	if len(items) != 2 {
		t.Fatalf("items len = %d, want 2", len(items))
	}
}

func TestApplyRejectsPathNotFound(t *testing.T) {
	root := schema.NewParagraph(schema.NewText("hello", 1))
	p := Patch{Entries: []PatchEntry{
		{Op: OpSet, Path: PatchPath{Prop("nonexistent")}, Value: schema.String("x")},
	}}
	_, err := Apply(root, p)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.KindOf(err) != errors.KindPathNotFound {
		t.Fatalf("kind = %v, want PathNotFound", errors.KindOf(err))
	}
}

func TestApplyRejectsWholePatchOnOverlap(t *testing.T) {
	root := schema.NewCodeChunk("abcdef", "python", 1)
	p := Patch{Entries: []PatchEntry{
		{Op: OpApply, Path: PatchPath{Prop("code")}, Ops: []schema.CordOp{
			{Kind: schema.CordOpDelete, From: 0, To: 3},
		}},
		{Op: OpApply, Path: PatchPath{Prop("code")}, Ops: []schema.CordOp{
			{Kind: schema.CordOpDelete, From: 2, To: 5},
		}},
	}}
	_, err := Apply(root, p)
	if err == nil {
		t.Fatal("expected overlap rejection")
	}
	if errors.KindOf(err) != errors.KindOverlap {
		t.Fatalf("kind = %v, want Overlap", errors.KindOf(err))
	}
}

func TestApplyCordOpAgainstProperty(t *testing.T) {
	root := schema.NewCodeChunk("print(1)", "python", 1)
	p := Patch{Entries: []PatchEntry{
		{Op: OpApply, Path: PatchPath{Prop("code")}, Ops: []schema.CordOp{
			{Kind: schema.CordOpReplace, From: 6, To: 7, Text: "2", Author: 2},
		}},
	}}
	result, err := Apply(root, p)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	code, _ := result.(*schema.Generic).Get("code")
	if got, want := code.(schema.Cord).String(), "print(2)"; got != want {
		t.Fatalf("code = %q, want %q", got, want)
	}
}

func TestDiffDetectsTextChange(t *testing.T) {
	from := schema.NewParagraph(schema.NewText("hello world", 1))
	to := schema.NewParagraph(schema.NewText("hello there", 1))

	p := Diff(from, to)
	if len(p.Entries) == 0 {
		t.Fatal("expected at least one diff entry")
	}
	result, err := Apply(from, p)
	if err != nil {
		t.Fatalf("apply diff: %v", err)
	}
	content := result.(*schema.Generic).Children("content")
	text, _ := content[0].(*schema.Generic).Get("value")
	if got, want := text.(schema.Cord).String(), "hello there"; got != want {
		t.Fatalf("roundtrip text = %q, want %q", got, want)
	}
}

func TestDiffSequenceInsertAndRemove(t *testing.T) {
	from := schema.NewList(false,
		schema.NewListItem(schema.NewText("a", 1)),
		schema.NewListItem(schema.NewText("b", 1)),
	)
	to := schema.NewList(false,
		schema.NewListItem(schema.NewText("a", 1)),
		schema.NewListItem(schema.NewText("c", 1)),
		schema.NewListItem(schema.NewText("b", 1)),
	)

	p := Diff(from, to)
	result, err := Apply(from, p)
	if err != nil {
		t.Fatalf("apply diff: %v", err)
	}
	items := result.(*schema.Generic).Children("items")
	if len(items) != 3 {
		t.Fatalf("items len = %d, want 3", len(items))
	}
}

func TestDiffCordProducesRoundtrippableOps(t *testing.T) {
	from := schema.NewCord("the quick brown fox\njumps over\nthe lazy dog", 1)
	to := schema.NewCord("the quick brown fox\nleaps over\nthe lazy dog", 1)

	ops := DiffCord(context.Background(), from, to)
	applied := from.Apply(ops)
	if got, want := applied.String(), to.String(); got != want {
		t.Fatalf("roundtrip = %q, want %q", got, want)
	}
}

func TestDiffCordIdenticalProducesNoOps(t *testing.T) {
	c := schema.NewCord("same text", 1)
	ops := DiffCord(context.Background(), c, c)
	if len(ops) != 0 {
		t.Fatalf("expected no ops, got %v", ops)
	}
}
