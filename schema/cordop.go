package schema

// CordOpKind discriminates the three edit operations a CordOp can carry
// (spec §3.4).
type CordOpKind string

const (
	CordOpInsert  CordOpKind = "insert"
	CordOpDelete  CordOpKind = "delete"
	CordOpReplace CordOpKind = "replace"
)

// CordOp is a single authored edit against a Cord's byte range [From, To).
// For Insert, From == To is the insertion point and To is ignored. Ranges
// outside the Cord's current bounds are clamped, never rejected (spec
// §3.4, mirrored from original_source cord.rs apply_insert/apply_delete).
type CordOp struct {
	Kind   CordOpKind
	From   int
	To     int
	Text   string
	Author AuthorID
}

// Apply applies ops to c in order, returning the resulting Cord. Each op is
// applied against the Cord state left by the previous one.
func (c Cord) Apply(ops []CordOp) Cord {
	for _, op := range ops {
		switch op.Kind {
		case CordOpInsert:
			c = c.Insert(op.From, op.Text, op.Author)
		case CordOpDelete:
			c = c.Delete(op.From, op.To)
		case CordOpReplace:
			c = c.Replace(op.From, op.To, op.Text, op.Author)
		}
	}
	return c
}

// Overlaps reports whether two CordOps' ranges intersect, used by the patch
// engine to reject a batch containing overlapping edits to the same Cord
// (spec §3.4 Open Question, resolved in favor of whole-patch rejection).
func (op CordOp) Overlaps(other CordOp) bool {
	from, to := op.From, op.To
	if op.Kind == CordOpInsert {
		to = from
	}
	oFrom, oTo := other.From, other.To
	if other.Kind == CordOpInsert {
		oTo = oFrom
	}
	// Two zero-width insertion points at the same offset are not considered
	// overlapping; they simply both insert there, in list order.
	if from == to && oFrom == oTo {
		return false
	}
	return from < oTo && oFrom < to
}
