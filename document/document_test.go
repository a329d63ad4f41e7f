package document

import (
	"testing"
	"time"

	"stencilacore/schema"
)

func TestUpdateNotifiesSubscribers(t *testing.T) {
	root := schema.NewArticle(schema.NewParagraph(schema.NewText("v1", 1)))
	doc := New(root, "doc.json", "json")

	ch, unsubscribe := doc.Subscribe()
	defer unsubscribe()

	next := schema.NewArticle(schema.NewParagraph(schema.NewText("v2", 1)))
	doc.Update(next)

	select {
	case got := <-ch:
		if got.NodeType() != schema.NodeTypeArticle {
			t.Fatalf("got type %s, want Article", got.NodeType())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update notification")
	}

	if doc.Root() != next {
		t.Fatal("Root() should reflect the latest Update")
	}
}

func TestAuthorsTrackedAcrossUpdates(t *testing.T) {
	doc := New(schema.NewParagraph(schema.NewText("a", 1)), "", "json")
	doc.Update(schema.NewParagraph(schema.NewText("a", 1), schema.NewText("b", 2)))

	authors := doc.Authors()
	seen := map[schema.AuthorID]bool{}
	for _, a := range authors {
		seen[a] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("authors = %v, want both 1 and 2", authors)
	}
}
