package catalog

import (
	"github.com/relaxdb/engine/internal/dberr"
	"github.com/relaxdb/engine/internal/rowstore"
)

// ColumnEdit describes a single column insert/drop/substitute step for
// copyAdjustArray, keyed by the position in the *old* row layout it
// applies at.
type ColumnEdit struct {
	Kind        ColumnEditKind
	AtOrdinal   int // ordinal in the OLD schema this edit acts on (EditInsert goes before it)
	NewValue    any // for EditInsert/EditSubstitute
}

type ColumnEditKind int

const (
	EditKeep ColumnEditKind = iota
	EditInsert
	EditDrop
	EditSubstitute
)

// CopyAdjustArray translates one old row's Data into the shape newSchema
// expects, applying edits in old-column order. An EditInsert at ordinal
// i places NewValue immediately before old column i (or at the end when
// AtOrdinal == len(oldData)); EditDrop omits old column i entirely;
// EditSubstitute replaces old column i's value with NewValue.
func CopyAdjustArray(oldData []any, edits []ColumnEdit, newWidth int) []any {
	byOrdinal := make(map[int]ColumnEdit, len(edits))
	for _, e := range edits {
		byOrdinal[e.AtOrdinal] = e
	}

	out := make([]any, 0, newWidth)
	for i, v := range oldData {
		if e, ok := byOrdinal[i]; ok {
			switch e.Kind {
			case EditInsert:
				out = append(out, e.NewValue, v)
				continue
			case EditDrop:
				continue
			case EditSubstitute:
				out = append(out, e.NewValue)
				continue
			}
		}
		out = append(out, v)
	}
	if e, ok := byOrdinal[len(oldData)]; ok && e.Kind == EditInsert {
		out = append(out, e.NewValue)
	}
	return out
}

// MoveData copies every row of src into dst, translating each row via
// edits. Each translated row is checked against dst's column limits and
// constraints (checkRowDataInsert) and then materialized and indexed
// directly (dst.indexRow), the same low-level path InsertRow uses — moveData
// does not re-fire triggers or journal an InsertAction for a table the
// caller cannot yet see. On any row's failure dst.Store is released and
// the error is returned; src is never touched.
func MoveData(session SessionContext, src, dst *Table, edits []ColumnEdit) error {
	scanner, ok := src.Store.(rowstore.Scanner)
	if !ok {
		return dberr.New(dberr.KindInvalidArgument, src.Name, "source store does not support scanning for DDL rebuild")
	}

	var rowErr error
	scanner.Scan(func(r *rowstore.Row) bool {
		newData := CopyAdjustArray(r.Data, edits, dst.Schema.NumCols())
		if err := dst.checkRowDataInsert(session, newData); err != nil {
			rowErr = err
			return false
		}
		if _, err := dst.indexRow(newData); err != nil {
			rowErr = err
			return false
		}
		return true
	})

	if rowErr != nil {
		_ = dst.Store.Release()
		return rowErr
	}
	return nil
}

// AddColumn builds a new Table definition with col appended at the end
// and every existing row carried forward with col's value defaulted to
// nil, per the "construct a new Table, then moveData" DDL rule.
func AddColumn(session SessionContext, t *Table, col Column, store rowstore.Store) (*Table, error) {
	newSchema := t.Schema.WithColumn(col)
	dst, err := cloneTableShape(t, newSchema, store)
	if err != nil {
		return nil, err
	}
	edits := []ColumnEdit{{Kind: EditInsert, AtOrdinal: t.Schema.NumCols(), NewValue: nil}}
	if err := MoveData(session, t, dst, edits); err != nil {
		return nil, err
	}
	return dst, nil
}

// DropColumn builds a new Table definition with ordinal removed.
func DropColumn(session SessionContext, t *Table, ordinal int, store rowstore.Store) (*Table, error) {
	if ordinal < 0 || ordinal >= t.Schema.NumCols() {
		return nil, dberr.New(dberr.KindInvalidArgument, t.Name, "column ordinal out of range")
	}
	for _, idx := range t.IndexColumns {
		for _, ord := range idx {
			if ord == ordinal {
				return nil, dberr.New(dberr.KindConstraintViolation, t.Name, "column is part of an index")
			}
		}
	}

	newSchema := t.Schema.WithoutColumn(ordinal)
	dst, err := cloneTableShape(t, newSchema, store)
	if err != nil {
		return nil, err
	}
	edits := []ColumnEdit{{Kind: EditDrop, AtOrdinal: ordinal}}
	if err := MoveData(session, t, dst, edits); err != nil {
		return nil, err
	}
	return dst, nil
}

// AddConstraint adds c to t. CHECK/NOT NULL/FOREIGN KEY constraints need
// no new index and are appended in place, returning t itself. A PRIMARY
// KEY/UNIQUE constraint without a matching existing index needs a new
// index, and every row's Nodes slice is fixed-width from the moment the
// store allocates it (see rowstore.NewRow) — so, like AddColumn/
// DropColumn, that case builds a fresh Table over a wider index list and
// moves every row across; store is the backing store for that fresh
// table and is only touched when a rebuild is actually needed. On any
// row's constraint violation the fresh store is released, t is left
// unchanged, and nil is returned with the error.
func AddConstraint(session SessionContext, t *Table, c *Constraint, store rowstore.Store) (*Table, error) {
	if c.Kind == ConstraintForeignKey && len(c.Columns) > 0 {
		// materialise the referencing side's lookup path for this
		// constraint now, rather than resolving it by name on every
		// cascade
		path, err := GetConstraintPath(t.Schema.byName, c.Columns)
		if err != nil {
			return nil, err
		}
		c.Path = path
	}

	needsIndex := false
	if c.Kind == ConstraintPrimaryKey || c.Kind == ConstraintUnique {
		ords, err := t.Schema.resolveOrdinals(c.Columns)
		if err != nil {
			return nil, err
		}
		needsIndex = t.indexForColumns(ords) == nil
	}

	if !needsIndex {
		t.Constraints = append(t.Constraints, c)
		return t, nil
	}

	dst, err := cloneTableShape(t, t.Schema, store)
	if err != nil {
		return nil, err
	}
	if _, err := dst.AddIndex(IndexDef{
		Name: c.Name, Columns: c.Columns,
		Unique: true, NullsDistinct: c.Kind == ConstraintUnique && c.NullsDistinct,
	}); err != nil {
		return nil, err
	}
	if err := MoveData(session, t, dst, nil); err != nil {
		return nil, err
	}
	dst.Constraints = append(dst.Constraints, c)
	return dst, nil
}

// DropConstraint removes the named constraint. It does not drop the
// backing index a PRIMARY KEY/UNIQUE constraint may have created; use
// DropIndex separately once nothing else depends on it.
func (t *Table) DropConstraint(name string) error {
	for i, c := range t.Constraints {
		if c.Name == name {
			t.Constraints = append(t.Constraints[:i], t.Constraints[i+1:]...)
			return nil
		}
	}
	return dberr.ErrConstraintNotFound
}

// GetConstraintPath returns the ordinal path (in defaultColumnMap order)
// that a newly added foreign key constraint's columns occupy, used to
// materialise the cascade path immediately when the constraint is
// created rather than discovering it lazily on first cascade. Unlike
// the routine this is modeled on, it always computes the path for a
// non-empty column list — the original short-circuited before its
// result was ever used, silently discarding the computation.
func GetConstraintPath(defaultColumnMap map[string]int, columns []string) ([]int, error) {
	if len(columns) == 0 {
		return nil, nil
	}
	path := make([]int, len(columns))
	for i, name := range columns {
		ord, ok := defaultColumnMap[name]
		if !ok {
			return nil, dberr.New(dberr.KindInvalidArgument, name, "column not present in default column map")
		}
		path[i] = ord
	}
	return path, nil
}

func cloneTableShape(t *Table, schema *Schema, store rowstore.Store) (*Table, error) {
	dst := &Table{
		Name:           t.Name,
		Schema:         schema,
		Store:          store,
		Triggers:       t.Triggers,
		Identity:       NewIdentity(t.Identity.Peek()),
		IdentityColumn: t.IdentityColumn,
		Logged:         t.Logged,
		Registry:       t.Registry,
	}
	for _, cons := range t.Constraints {
		dst.Constraints = append(dst.Constraints, cons)
	}
	for i, tree := range t.Indexes {
		names := make([]string, len(t.IndexColumns[i]))
		for j, ord := range t.IndexColumns[i] {
			if ord >= len(t.Schema.Columns) {
				continue
			}
			names[j] = t.Schema.Columns[ord].Name
		}
		if _, err := dst.AddIndex(IndexDef{
			Name: tree.Name, Columns: names, Unique: tree.Unique, NullsDistinct: tree.NullsDistinct,
		}); err != nil {
			return nil, err
		}
	}
	return dst, nil
}
