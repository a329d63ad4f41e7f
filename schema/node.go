package schema

import (
	"fmt"

	"github.com/google/uuid"
)

// NodeId is the stable identity of a non-primitive node within a document
// tree. Identity survives content edits: a NodeId names a slot, not a
// value, so a patch can target "the node with this id" regardless of how
// its properties have since changed (spec §3.2).
type NodeId struct {
	Type NodeType
	UID  string
}

// String renders a NodeId as the compact "<Type>_<uid>" form used on the
// wire and in patch paths, e.g. "par_3f9a2b11".
func (id NodeId) String() string {
	return fmt.Sprintf("%s_%s", abbreviate(id.Type), id.UID)
}

var abbreviations = map[NodeType]string{
	NodeTypeParagraph: "par", NodeTypeHeading: "hea", NodeTypeText: "txt",
	NodeTypeCodeChunk: "cdc", NodeTypeCodeBlock: "cdb", NodeTypeTable: "tbl",
	NodeTypeArticle: "art", NodeTypeList: "lst", NodeTypeListItem: "lsi",
}

func abbreviate(t NodeType) string {
	if a, ok := abbreviations[t]; ok {
		return a
	}
	if len(t) <= 3 {
		return string(t)
	}
	return string(t[:3])
}

// NewNodeId allocates a fresh identity for a node of the given type, using
// the first 8 hex characters of a UUIDv4 as the unique suffix (matching the
// teacher's own run/agent id convention of trimming a uuid.New() down to a
// short display form).
func NewNodeId(t NodeType) NodeId {
	return NodeId{Type: t, UID: uuid.New().String()[:8]}
}

// Node is implemented by every variant in the document tree: the eight
// primitive kinds plus Cord, and every non-primitive kind represented by
// Generic. A single marker interface plus a NodeType tag lets the patch,
// diff, and codec layers dispatch through one table (vtable.go) instead of
// ~150 hand-written type switches (spec §9 design note).
type Node interface {
	NodeType() NodeType
}

// Generic represents any non-primitive node variant uniformly: its
// properties live in Props, keyed by the JSON property name the original
// schema gives that field. A property value is one of: a primitive Go
// value, a Node, a []Node (an ordered sequence property, e.g. a
// Paragraph's "content"), or a Cord (e.g. a CodeBlock's "code").
//
// This collapses the ~150-variant tagged union into one struct type,
// trading per-field Go struct accessors for schema-driven property lookup
// (spec §9: "an arena with indices is an alternative for deep trees").
// Property shapes for built-in node types are documented in builders.go.
type Generic struct {
	Type  NodeType
	ID    NodeId
	Props map[string]any

	// Exec holds execution metadata (spec §3.5) for executable node types
	// (IsExecutable(Type) == true); nil otherwise.
	Exec *ExecutionMetadata
}

// NodeType implements Node.
func (g *Generic) NodeType() NodeType { return g.Type }

// NewGeneric allocates a Generic node of type t with a fresh NodeId.
func NewGeneric(t NodeType) *Generic {
	return &Generic{Type: t, ID: NewNodeId(t), Props: map[string]any{}}
}

// Get returns the named property and whether it was present.
func (g *Generic) Get(name string) (any, bool) {
	v, ok := g.Props[name]
	return v, ok
}

// Set assigns the named property.
func (g *Generic) Set(name string, value any) { g.Props[name] = value }

// Children returns the ordered sequence property named name, or nil if it
// is absent or not a sequence.
func (g *Generic) Children(name string) []Node {
	v, ok := g.Props[name]
	if !ok {
		return nil
	}
	seq, ok := v.([]Node)
	if !ok {
		return nil
	}
	return seq
}

// primitive node wrapper types. Each is a named type over a plain Go value
// so it can carry a NodeType() method; primitives have no NodeId (spec
// §3.1: "primitives are compared by value, not identity").
type (
	Null            struct{}
	Boolean         bool
	Integer         int64
	UnsignedInteger uint64
	Number          float64
	String          string
	Array           []any
	Object          map[string]any
)

func (Null) NodeType() NodeType            { return NodeTypeNull }
func (Boolean) NodeType() NodeType         { return NodeTypeBoolean }
func (Integer) NodeType() NodeType         { return NodeTypeInteger }
func (UnsignedInteger) NodeType() NodeType { return NodeTypeUnsignedInteger }
func (Number) NodeType() NodeType          { return NodeTypeNumber }
func (String) NodeType() NodeType          { return NodeTypeString }
func (Array) NodeType() NodeType           { return NodeTypeArray }
func (Object) NodeType() NodeType          { return NodeTypeObject }
func (Cord) NodeType() NodeType            { return NodeTypeCord }

// ExecutionMetadata is embedded by every executable node type: CodeChunk,
// CodeExpression, ForBlock, IfBlock, IncludeBlock, CallBlock, MathBlock
// (spec §3.5).
type ExecutionMetadata struct {
	// Status is the last known execution status: "scheduled", "running",
	// "succeeded", "failed", "pending", or "" if never executed.
	Status string

	// CompilationDigest summarizes the node's static content at the time it
	// was last compiled, used to detect whether re-execution is needed.
	CompilationDigest string
	// ExecutionDigest summarizes the node's content at the time it was last
	// executed.
	ExecutionDigest string

	// Dependencies lists the ids of nodes this node reads from.
	Dependencies []NodeId
	// Dependants lists the ids of nodes that read from this node.
	Dependants []NodeId

	// Messages collects compilation and execution diagnostics.
	CompilationMessages []CompilationMessage
	ExecutionMessages    []ExecutionMessage

	// Duration is how long the last execution took, in milliseconds.
	DurationMs int64
	// EndedAt is a Unix-epoch-milliseconds timestamp, or 0 if never run.
	EndedAt int64

	// Count is incremented on every execution attempt, used to order
	// concurrent completions (spec §3.5's "last write wins by count").
	Count int64
}

// CompilationMessage is a diagnostic produced while statically compiling an
// executable node (e.g. a parse error in a CodeChunk's code).
type CompilationMessage struct {
	Level   string // "error", "warning", "info"
	Message string
	// ErrorType, if non-empty, names the class of error (e.g. "SyntaxError").
	ErrorType string
}

// ExecutionMessage is a diagnostic produced while executing an executable
// node (e.g. a runtime exception raised by a CodeChunk).
type ExecutionMessage struct {
	Level   string
	Message string
	Trace   string
}
