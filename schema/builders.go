package schema

// Convenience constructors for the node shapes exercised by the patch,
// diff, and codec layers. Each mirrors a node type from spec §3.1, built on
// top of Generic rather than a bespoke struct (see node.go).

// NewText builds a Text inline node whose content is author-attributed.
func NewText(text string, author AuthorID) *Generic {
	g := NewGeneric(NodeTypeText)
	g.Set("value", NewCord(text, author))
	return g
}

// NewParagraph builds a Paragraph block node from its inline content.
func NewParagraph(content ...Node) *Generic {
	g := NewGeneric(NodeTypeParagraph)
	g.Set("content", nodeSlice(content))
	return g
}

// NewHeading builds a Heading block node at the given level (1-6).
func NewHeading(level int, content ...Node) *Generic {
	g := NewGeneric(NodeTypeHeading)
	g.Set("level", Integer(level))
	g.Set("content", nodeSlice(content))
	return g
}

// NewList builds a List block node; ordered selects numbered vs bulleted.
func NewList(ordered bool, items ...Node) *Generic {
	g := NewGeneric(NodeTypeList)
	order := "unordered"
	if ordered {
		order = "ascending"
	}
	g.Set("order", String(order))
	g.Set("items", nodeSlice(items))
	return g
}

// NewListItem builds a ListItem block node.
func NewListItem(content ...Node) *Generic {
	g := NewGeneric(NodeTypeListItem)
	g.Set("content", nodeSlice(content))
	return g
}

// NewTable builds a Table block node from its rows.
func NewTable(rows ...Node) *Generic {
	g := NewGeneric(NodeTypeTable)
	g.Set("rows", nodeSlice(rows))
	return g
}

// NewTableRow builds a TableRow from its cells.
func NewTableRow(cells ...Node) *Generic {
	g := NewGeneric(NodeTypeTableRow)
	g.Set("cells", nodeSlice(cells))
	return g
}

// NewTableCell builds a TableCell from its block content.
func NewTableCell(content ...Node) *Generic {
	g := NewGeneric(NodeTypeTableCell)
	g.Set("content", nodeSlice(content))
	return g
}

// NewCodeChunk builds an executable CodeChunk node (spec §3.5).
func NewCodeChunk(code, language string, author AuthorID) *Generic {
	g := NewGeneric(NodeTypeCodeChunk)
	g.Set("code", NewCord(code, author))
	g.Set("programmingLanguage", String(language))
	g.Exec = &ExecutionMetadata{}
	return g
}

// NewCodeBlock builds a non-executable CodeBlock node.
func NewCodeBlock(code, language string, author AuthorID) *Generic {
	g := NewGeneric(NodeTypeCodeBlock)
	g.Set("code", NewCord(code, author))
	g.Set("programmingLanguage", String(language))
	return g
}

// NewArticle builds an Article root node from its block content.
func NewArticle(content ...Node) *Generic {
	g := NewGeneric(NodeTypeArticle)
	g.Set("content", nodeSlice(content))
	return g
}

// NewEmphasis builds an Emphasis inline node.
func NewEmphasis(content ...Node) *Generic {
	g := NewGeneric(NodeTypeEmphasis)
	g.Set("content", nodeSlice(content))
	return g
}

// NewStrong builds a Strong inline node.
func NewStrong(content ...Node) *Generic {
	g := NewGeneric(NodeTypeStrong)
	g.Set("content", nodeSlice(content))
	return g
}

// NewLink builds a Link inline node.
func NewLink(target string, content ...Node) *Generic {
	g := NewGeneric(NodeTypeLink)
	g.Set("target", String(target))
	g.Set("content", nodeSlice(content))
	return g
}

// nodeSlice normalizes a variadic []Node into the canonical sequence
// property representation ([]Node, never nil-vs-empty ambiguous).
func nodeSlice(nodes []Node) []Node {
	if nodes == nil {
		return []Node{}
	}
	return nodes
}
