// Package rowstore persists table rows across three backing variants —
// pure in-memory, page-cached file-backed, and delimited text-file
// backed — behind one Store interface, mirroring how HSQLDB's RowStore
// hierarchy hides persistence strategy from Table and IndexTree.
package rowstore

import (
	"github.com/relaxdb/engine/internal/index"
)

// Row is a byte-addressable table record: its Data holds typed column
// values, Nodes holds one index.Node per index the owning table
// maintains (nil until the row is linked into that index), RowAction is
// an opaque handle into the session's transaction journal, and
// CascadeDeleted marks a row already deleted (pending commit) by the
// table's delete path, so a repeat delete of the same row is a no-op.
type Row struct {
	Pos            int64
	Data           []any
	Nodes          []*index.Node
	RowAction      any
	CascadeDeleted bool
}

// NewRow allocates a Row with a Nodes slice pre-sized to numIndexes, per
// the "pre-size each row with one node slot per index" design note:
// adding an index later means rebuilding the table, not growing rows.
func NewRow(pos int64, data []any, numIndexes int) *Row {
	return &Row{
		Pos:   pos,
		Data:  data,
		Nodes: make([]*index.Node, numIndexes),
	}
}

// Linked reports whether the row is currently linked into every index
// (true) or into none (false); per the data-model invariant these are
// the only two states a committed row may be observed in.
func (r *Row) Linked() bool {
	for _, n := range r.Nodes {
		if n == nil {
			return false
		}
	}
	return len(r.Nodes) > 0
}
