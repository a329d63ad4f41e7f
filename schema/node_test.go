package schema

import (
	"encoding/json"
	"testing"
)

func TestGenericJSONRoundTrip(t *testing.T) {
	par := NewParagraph(NewText("hello", 1), NewStrong(NewText("world", 2)))

	data, err := json.Marshal(par)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Generic
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != NodeTypeParagraph {
		t.Fatalf("type = %s, want %s", decoded.Type, NodeTypeParagraph)
	}
	content := decoded.Children("content")
	if len(content) != 2 {
		t.Fatalf("content length = %d, want 2", len(content))
	}
	if content[0].NodeType() != NodeTypeText {
		t.Fatalf("content[0] type = %s, want Text", content[0].NodeType())
	}
	text, ok := content[0].(*Generic)
	if !ok {
		t.Fatalf("content[0] is not *Generic: %T", content[0])
	}
	value, ok := text.Get("value")
	if !ok {
		t.Fatal("expected value property")
	}
	cord, ok := value.(Cord)
	if !ok {
		t.Fatalf("value is not a Cord: %T", value)
	}
	if got, want := cord.String(), "hello"; got != want {
		t.Fatalf("cord text = %q, want %q", got, want)
	}
	if content[1].NodeType() != NodeTypeStrong {
		t.Fatalf("content[1] type = %s, want Strong", content[1].NodeType())
	}
}

func TestSimilarityIdenticalIsOne(t *testing.T) {
	a := NewParagraph(NewText("hello", 1))
	b := NewParagraph(NewText("hello", 1))
	if got := Similarity(a, b); got != 1 {
		t.Fatalf("similarity = %v, want 1", got)
	}
}

func TestSimilarityDifferentTypesIsZero(t *testing.T) {
	a := NewParagraph(NewText("hello", 1))
	b := NewHeading(1, NewText("hello", 1))
	if got := Similarity(a, b); got != 0 {
		t.Fatalf("similarity = %v, want 0", got)
	}
}

func TestStripRemovesExecutionMetadata(t *testing.T) {
	cc := NewCodeChunk("1 + 1", "python", 1)
	cc.Exec.Status = "succeeded"

	stripped := Strip(cc, "executionMetadata")
	g, ok := stripped.(*Generic)
	if !ok {
		t.Fatalf("stripped result is not *Generic: %T", stripped)
	}
	if g.Exec != nil {
		t.Fatalf("expected exec metadata stripped, got %#v", g.Exec)
	}
}

func TestCollectAuthorsWalksTree(t *testing.T) {
	par := NewParagraph(NewText("a", 1), NewEmphasis(NewText("b", 2)))
	authors := CollectAuthors(par)
	seen := map[AuthorID]bool{}
	for _, a := range authors {
		seen[a] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("authors = %v, want both 1 and 2", authors)
	}
}
