// Package schema implements the typed structured-document core: the Node
// tree, NodeId identity, the Cord authored-text primitive, and CordOp edits
// (spec §3). Concrete node variants are represented uniformly as a
// NodeType-tagged Generic node (spec §9's recommendation: "generate the
// dispatch table from a schema definition to avoid ~150 hand-written
// cases") rather than one hand-written Go struct per variant.
package schema

// NodeType tags every node variant. The full list mirrors spec §3.1 and the
// original Stencila schema (original_source rust/schema/src/implem/node.rs).
type NodeType string

const (
	// Primitives.
	NodeTypeNull            NodeType = "Null"
	NodeTypeBoolean         NodeType = "Boolean"
	NodeTypeInteger         NodeType = "Integer"
	NodeTypeUnsignedInteger NodeType = "UnsignedInteger"
	NodeTypeNumber          NodeType = "Number"
	NodeTypeString          NodeType = "String"
	NodeTypeArray           NodeType = "Array"
	NodeTypeObject          NodeType = "Object"
	NodeTypeCord            NodeType = "Cord"

	// Inline content.
	NodeTypeText              NodeType = "Text"
	NodeTypeEmphasis          NodeType = "Emphasis"
	NodeTypeStrong            NodeType = "Strong"
	NodeTypeStrikeout         NodeType = "Strikeout"
	NodeTypeUnderline         NodeType = "Underline"
	NodeTypeSubscript         NodeType = "Subscript"
	NodeTypeSuperscript       NodeType = "Superscript"
	NodeTypeCodeInline        NodeType = "CodeInline"
	NodeTypeMathInline        NodeType = "MathInline"
	NodeTypeLink              NodeType = "Link"
	NodeTypeCitation          NodeType = "Citation"
	NodeTypeCitationGroup     NodeType = "CitationGroup"
	NodeTypeImageObject       NodeType = "ImageObject"
	NodeTypeAudioObject       NodeType = "AudioObject"
	NodeTypeVideoObject       NodeType = "VideoObject"
	NodeTypeNote              NodeType = "Note"
	NodeTypeStyledInline      NodeType = "StyledInline"
	NodeTypeParameter         NodeType = "Parameter"
	NodeTypeInstructionInline NodeType = "InstructionInline"
	NodeTypeQuoteInline       NodeType = "QuoteInline"

	// Block content.
	NodeTypeParagraph        NodeType = "Paragraph"
	NodeTypeHeading          NodeType = "Heading"
	NodeTypeList             NodeType = "List"
	NodeTypeListItem         NodeType = "ListItem"
	NodeTypeTable            NodeType = "Table"
	NodeTypeTableRow         NodeType = "TableRow"
	NodeTypeTableCell        NodeType = "TableCell"
	NodeTypeFigure           NodeType = "Figure"
	NodeTypeCodeBlock        NodeType = "CodeBlock"
	NodeTypeCodeChunk        NodeType = "CodeChunk"
	NodeTypeCodeExpression   NodeType = "CodeExpression"
	NodeTypeMathBlock        NodeType = "MathBlock"
	NodeTypeQuoteBlock       NodeType = "QuoteBlock"
	NodeTypeThematicBreak    NodeType = "ThematicBreak"
	NodeTypeIncludeBlock     NodeType = "IncludeBlock"
	NodeTypeCallBlock        NodeType = "CallBlock"
	NodeTypeCallArgument     NodeType = "CallArgument"
	NodeTypeForBlock         NodeType = "ForBlock"
	NodeTypeIfBlock          NodeType = "IfBlock"
	NodeTypeIfBlockClause    NodeType = "IfBlockClause"
	NodeTypeAdmonition       NodeType = "Admonition"
	NodeTypeClaim            NodeType = "Claim"
	NodeTypeForm             NodeType = "Form"
	NodeTypeStyledBlock      NodeType = "StyledBlock"
	NodeTypeInstructionBlock NodeType = "InstructionBlock"
	NodeTypeSuggestionBlock  NodeType = "SuggestionBlock"
	NodeTypeSuggestionInline NodeType = "SuggestionInline"
	NodeTypeChat             NodeType = "Chat"
	NodeTypeChatMessage      NodeType = "ChatMessage"
	NodeTypeSection          NodeType = "Section"
	NodeTypeRawBlock         NodeType = "RawBlock"
	NodeTypePage             NodeType = "Page"

	// Creative works.
	NodeTypeArticle             NodeType = "Article"
	NodeTypePrompt              NodeType = "Prompt"
	NodeTypeCollection          NodeType = "Collection"
	NodeTypePeriodical          NodeType = "Periodical"
	NodeTypeReview              NodeType = "Review"
	NodeTypeSoftwareSourceCode  NodeType = "SoftwareSourceCode"
	NodeTypeSoftwareApplication NodeType = "SoftwareApplication"
	NodeTypeDatatable           NodeType = "Datatable"
	NodeTypeDatatableColumn     NodeType = "DatatableColumn"
	NodeTypeFile                NodeType = "File"
	NodeTypeDirectory           NodeType = "Directory"

	// Meta.
	NodeTypeAuthorRole            NodeType = "AuthorRole"
	NodeTypeReference             NodeType = "Reference"
	NodeTypeCompilationMessage    NodeType = "CompilationMessage"
	NodeTypeExecutionMessage      NodeType = "ExecutionMessage"
	NodeTypeExecutionDependency   NodeType = "ExecutionDependency"
	NodeTypeExecutionDependant    NodeType = "ExecutionDependant"
	NodeTypeCompilationDigest     NodeType = "CompilationDigest"
	NodeTypeProvenanceCount       NodeType = "ProvenanceCount"
	NodeTypeEnumValidator         NodeType = "EnumValidator"
	NodeTypeNumberValidator       NodeType = "NumberValidator"
	NodeTypeStringValidator       NodeType = "StringValidator"
	NodeTypeDateValidator         NodeType = "DateValidator"
	NodeTypeArrayValidator        NodeType = "ArrayValidator"
	NodeTypeTupleValidator        NodeType = "TupleValidator"
	NodeTypeBooleanValidator      NodeType = "BooleanValidator"
	NodeTypeConstantValidator     NodeType = "ConstantValidator"
	NodeTypeArrayHint             NodeType = "ArrayHint"
	NodeTypeObjectHint            NodeType = "ObjectHint"
	NodeTypeStringHint            NodeType = "StringHint"
	NodeTypeDatatableHint         NodeType = "DatatableHint"
	NodeTypeDatatableColumnHint   NodeType = "DatatableColumnHint"
)

// category membership tables, used by IsInline/IsBlock/etc below. These
// replace ~150 hand-written switch arms with a single generated table per
// spec §9's recommendation.
var inlineTypes = map[NodeType]bool{
	NodeTypeText: true, NodeTypeEmphasis: true, NodeTypeStrong: true,
	NodeTypeStrikeout: true, NodeTypeUnderline: true, NodeTypeSubscript: true,
	NodeTypeSuperscript: true, NodeTypeCodeInline: true, NodeTypeMathInline: true,
	NodeTypeLink: true, NodeTypeCitation: true, NodeTypeCitationGroup: true,
	NodeTypeImageObject: true, NodeTypeAudioObject: true, NodeTypeVideoObject: true,
	NodeTypeNote: true, NodeTypeStyledInline: true, NodeTypeParameter: true,
	NodeTypeInstructionInline: true, NodeTypeQuoteInline: true,
	NodeTypeSuggestionInline: true, NodeTypeCodeExpression: true,
	NodeTypeBoolean: true, NodeTypeInteger: true, NodeTypeUnsignedInteger: true,
	NodeTypeNumber: true, NodeTypeNull: true,
}

var blockTypes = map[NodeType]bool{
	NodeTypeParagraph: true, NodeTypeHeading: true, NodeTypeList: true,
	NodeTypeListItem: true, NodeTypeTable: true, NodeTypeTableRow: true,
	NodeTypeTableCell: true, NodeTypeFigure: true, NodeTypeCodeBlock: true,
	NodeTypeCodeChunk: true, NodeTypeMathBlock: true, NodeTypeQuoteBlock: true,
	NodeTypeThematicBreak: true, NodeTypeIncludeBlock: true, NodeTypeCallBlock: true,
	NodeTypeForBlock: true, NodeTypeIfBlock: true, NodeTypeIfBlockClause: true,
	NodeTypeAdmonition: true, NodeTypeClaim: true, NodeTypeForm: true,
	NodeTypeStyledBlock: true, NodeTypeInstructionBlock: true,
	NodeTypeSuggestionBlock: true, NodeTypeChat: true, NodeTypeChatMessage: true,
	NodeTypeSection: true, NodeTypeRawBlock: true, NodeTypePage: true,
}

var creativeWorkTypes = map[NodeType]bool{
	NodeTypeArticle: true, NodeTypePrompt: true, NodeTypeChat: true,
	NodeTypeCollection: true, NodeTypePeriodical: true, NodeTypeReview: true,
	NodeTypeSoftwareSourceCode: true, NodeTypeSoftwareApplication: true,
	NodeTypeDatatable: true, NodeTypeFile: true, NodeTypeDirectory: true,
	NodeTypeImageObject: true, NodeTypeAudioObject: true, NodeTypeVideoObject: true,
}

// executableTypes lists node types that carry execution metadata (spec §3.5).
var executableTypes = map[NodeType]bool{
	NodeTypeCodeChunk: true, NodeTypeCodeExpression: true, NodeTypeForBlock: true,
	NodeTypeIfBlock: true, NodeTypeIncludeBlock: true, NodeTypeCallBlock: true,
	NodeTypeMathBlock: true,
}

// primitiveTypes have no NodeId and are compared by value, not identity.
var primitiveTypes = map[NodeType]bool{
	NodeTypeNull: true, NodeTypeBoolean: true, NodeTypeInteger: true,
	NodeTypeUnsignedInteger: true, NodeTypeNumber: true, NodeTypeString: true,
	NodeTypeArray: true, NodeTypeObject: true, NodeTypeCord: true,
}

// IsInline reports whether t is an inline-content variant.
func IsInline(t NodeType) bool { return inlineTypes[t] }

// IsBlock reports whether t is a block-content variant.
func IsBlock(t NodeType) bool { return blockTypes[t] }

// IsCreativeWork reports whether t is a creative-work variant.
func IsCreativeWork(t NodeType) bool { return creativeWorkTypes[t] }

// IsExecutable reports whether t carries execution metadata (spec §3.5).
func IsExecutable(t NodeType) bool { return executableTypes[t] }

// IsPrimitive reports whether t is a primitive variant with no NodeId.
func IsPrimitive(t NodeType) bool { return primitiveTypes[t] }
