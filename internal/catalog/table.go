package catalog

import (
	"fmt"
	"sync"

	"github.com/relaxdb/engine/internal/dberr"
	"github.com/relaxdb/engine/internal/index"
	"github.com/relaxdb/engine/internal/rowstore"
)

// Registry resolves a table by name, letting a Table's foreign-key
// constraints and cascades reach other tables without holding direct
// pointers into a cyclic table graph.
type Registry interface {
	Table(name string) (*Table, bool)
	AllTables() []*Table
}

// IndexDef describes one index to be built by NewTable/AddIndex.
type IndexDef struct {
	Name          string
	Columns       []string
	Unique        bool
	NullsDistinct bool
}

// Table owns a schema, its backing constraints/triggers/identity, its
// ordered index list (position 0 is the primary), and the RowStore that
// actually persists its rows.
type Table struct {
	mu sync.Mutex

	Name    string
	Schema  *Schema
	Store   rowstore.Store
	Indexes []*index.Tree

	// IndexColumns holds the column ordinals each entry of Indexes was
	// built over, in the same order; used to locate the index backing a
	// particular PRIMARY KEY/UNIQUE constraint for foreign-key lookups.
	IndexColumns [][]int

	Constraints []*Constraint
	Triggers    *TriggerList
	Identity    *Identity

	// IdentityColumn is the ordinal of the identity column, or -1.
	IdentityColumn int

	Logged bool

	Registry Registry
}

func NewTable(name string, schema *Schema, store rowstore.Store, indexDefs []IndexDef) (*Table, error) {
	t := &Table{
		Name:           name,
		Schema:         schema,
		Store:          store,
		Triggers:       NewTriggerList(),
		Identity:       NewIdentity(1),
		IdentityColumn: -1,
		Logged:         true,
	}

	for _, def := range indexDefs {
		if _, err := t.AddIndex(def); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddIndex builds and appends a new IndexTree over def.Columns.
func (t *Table) AddIndex(def IndexDef) (*index.Tree, error) {
	ordinals, colTypes, err := t.indexOrdinals(def.Columns)
	if err != nil {
		return nil, err
	}

	ordinal := len(t.Indexes)

	cmp := func(a, b index.RowHandle) int {
		ra, rb := a.(*rowstore.Row), b.(*rowstore.Row)
		return compareRows(ra.Data, rb.Data, ordinals, colTypes)
	}
	isNull := func(a index.RowHandle) bool {
		ra := a.(*rowstore.Row)
		return allNull(ra.Data, ordinals)
	}

	tree := index.NewTree(def.Name, def.Unique, cmp, isNull)
	tree.NullsDistinct = def.NullsDistinct
	tree.Relink = func(row index.RowHandle, node *index.Node) {
		r := row.(*rowstore.Row)
		if ordinal < len(r.Nodes) {
			r.Nodes[ordinal] = node
		}
	}
	tree.SetKeyCompare(func(key []any, row index.RowHandle) int {
		r := row.(*rowstore.Row)
		return compareRowNonUnique(key, ordinals, colTypes, r.Data)
	})
	tree.SetShadow(func(row index.RowHandle) bool {
		r := row.(*rowstore.Row)
		return r.CascadeDeleted
	})

	t.Indexes = append(t.Indexes, tree)
	t.IndexColumns = append(t.IndexColumns, ordinals)
	return tree, nil
}

// indexForColumns returns the index built over exactly ordinals, or nil.
func (t *Table) indexForColumns(ordinals []int) *index.Tree {
	for i, cols := range t.IndexColumns {
		if intSliceEqual(cols, ordinals) {
			return t.Indexes[i]
		}
	}
	return nil
}

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (t *Table) indexOrdinals(cols []string) ([]int, []rowstore.ColumnType, error) {
	ords, err := t.Schema.resolveOrdinals(cols)
	if err != nil {
		return nil, nil, err
	}
	types := make([]rowstore.ColumnType, len(ords))
	for i, o := range ords {
		types[i] = t.Schema.Columns[o].Type
	}
	return ords, types, nil
}

// setIdentityColumn implements step 1 of insertRow: assign the next
// sequence value when the identity column is null, else observe the
// user-supplied value so future generated values never collide.
func (t *Table) setIdentityColumn(data []any) {
	if t.IdentityColumn < 0 {
		return
	}
	if data[t.IdentityColumn] == nil {
		data[t.IdentityColumn] = t.Identity.Next()
		return
	}
	if v, ok := data[t.IdentityColumn].(int64); ok {
		t.Identity.Advance(v)
	}
}

// checkRowDataInsert implements step 3 of insertRow.
func (t *Table) checkRowDataInsert(session SessionContext, data []any) error {
	for i, col := range t.Schema.Columns {
		v := data[i]
		if v == nil {
			continue
		}
		if col.MaxLength > 0 {
			switch s := v.(type) {
			case string:
				if len(s) > col.MaxLength {
					return dberr.New(dberr.KindConstraintViolation, col.Name, "value exceeds column length")
				}
			case []byte:
				if len(s) > col.MaxLength {
					return dberr.New(dberr.KindConstraintViolation, col.Name, "value exceeds column length")
				}
			}
		}
	}

	for _, c := range t.Constraints {
		switch c.Kind {
		case ConstraintCheck:
			if c.Check == nil {
				continue
			}
			ok, err := c.Check(data, t.Schema)
			if err != nil {
				return err
			}
			if !ok {
				return dberr.New(dberr.KindConstraintViolation, c.Name, "check constraint violated")
			}
		case ConstraintNotNull:
			ords, _, err := t.indexOrdinals(c.Columns)
			if err != nil {
				return err
			}
			for _, ord := range ords {
				if data[ord] == nil {
					return dberr.New(dberr.KindConstraintViolation, c.Name,
						fmt.Sprintf("column %q must not be null", t.Schema.Columns[ord].Name))
				}
			}
		}
	}

	for i, col := range t.Schema.Columns {
		if col.NotNull && data[i] == nil {
			return dberr.New(dberr.KindConstraintViolation, col.Name, "column must not be null")
		}
	}

	if session == nil || session.ReferentialIntegrity() {
		if err := t.checkForeignKeysInsert(data); err != nil {
			return err
		}
	}

	return nil
}

func (t *Table) checkForeignKeysInsert(data []any) error {
	for _, c := range t.Constraints {
		if c.Kind != ConstraintForeignKey {
			continue
		}
		ords, _, err := t.indexOrdinals(c.Columns)
		if err != nil {
			return err
		}
		if allNull(data, ords) {
			continue // MATCH SIMPLE: an all-null FK tuple never needs to match
		}

		if t.Registry == nil {
			return dberr.New(dberr.KindInvalidArgument, c.Name, "no catalog registry to validate foreign key")
		}
		refTable, ok := t.Registry.Table(c.RefTable)
		if !ok {
			return dberr.New(dberr.KindNotFound, c.RefTable, "referenced table not found")
		}

		refOrds, err := refTable.Schema.resolveOrdinals(c.RefColumns)
		if err != nil {
			return err
		}
		tree := refTable.indexForColumns(refOrds)
		if tree == nil {
			return dberr.New(dberr.KindInvalidArgument, c.Name, "referenced columns are not indexed")
		}

		key := make([]any, len(ords))
		for i, ord := range ords {
			key[i] = data[ord]
		}
		if it := tree.FindFirstRowIterator(key); !it.Valid() {
			return dberr.New(dberr.KindConstraintViolation, c.Name, "foreign key constraint violation")
		}
	}
	return nil
}

// indexRow implements step 4 of insertRow: allocate the row through the
// store and link it into every index, rolling back on partial failure.
func (t *Table) indexRow(data []any) (*rowstore.Row, error) {
	row, err := t.Store.GetNewCachedObject(data)
	if err != nil {
		return nil, err
	}

	for i, tree := range t.Indexes {
		node, err := tree.Insert(row)
		if err != nil {
			for j := 0; j < i; j++ {
				t.Indexes[j].Delete(row.Nodes[j])
				row.Nodes[j] = nil
			}
			_ = t.Store.Remove(row.Pos)
			return nil, err
		}
		row.Nodes[i] = node
	}
	return row, nil
}

// InsertRow performs the full transactional insert sequence described
// for Table.insertRow: identity assignment, BEFORE triggers, constraint
// checks, index installation, and journal recording.
func (t *Table) InsertRow(session SessionContext, data []any) (*rowstore.Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.setIdentityColumn(data)

	refIntegrity := session == nil || session.ReferentialIntegrity()

	if refIntegrity {
		var err error
		data, err = t.Triggers.FireRow(session, BeforeInsert, nil, data)
		if err != nil {
			return nil, err
		}
	}

	if err := t.checkRowDataInsert(session, data); err != nil {
		return nil, err
	}

	row, err := t.indexRow(data)
	if err != nil {
		return nil, err
	}

	if session != nil {
		session.AddInsertAction(t.Name, row)
	}

	if refIntegrity {
		if _, err := t.Triggers.FireRow(session, AfterInsert, nil, data); err != nil {
			return row, err
		}
	}

	return row, nil
}

// DeleteNoCheck marks row for removal and journals a DeleteAction. It
// does not unlink the row from its indexes: that happens when the
// transaction manager actually commits the delete, preserving
// within-transaction snapshot isolation. A row already cascade-deleted
// is left untouched (cascade-cycle safety).
func (t *Table) DeleteNoCheck(session SessionContext, row *rowstore.Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if row.CascadeDeleted {
		return nil
	}
	row.CascadeDeleted = true

	if session != nil {
		session.AddDeleteAction(t.Name, row)
	}
	return nil
}

// ApplyDelete physically unlinks row from every index and releases its
// store slot. Called by the transaction manager on commit, once for
// every row DeleteNoCheck marked during the transaction.
func (t *Table) ApplyDelete(row *rowstore.Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, tree := range t.Indexes {
		tree.Delete(row.Nodes[i])
		row.Nodes[i] = nil
	}
	return t.Store.Remove(row.Pos)
}

// DeleteNoCheckFromLog locates the row matching data (via the table's
// indexes, primary first, else a linear scan over every row) and
// delegates to DeleteNoCheck. Used to replay a delete log record.
func (t *Table) DeleteNoCheckFromLog(session SessionContext, data []any) error {
	row, err := t.findRowByData(data)
	if err != nil {
		return err
	}
	return t.DeleteNoCheck(session, row)
}

// findRowByData locates the row whose every column matches data. It
// probes each index in order, primary (Indexes[0]) first; a probe looks
// at a single entry with an equal key and is accepted only when all of
// that row's columns match. Otherwise it falls back to a full linear
// scan when the store supports one.
func (t *Table) findRowByData(data []any) (*rowstore.Row, error) {
	probe := &rowstore.Row{Data: data}

	for _, tree := range t.Indexes {
		if node := tree.FindEqual(probe); node != nil {
			if row, ok := node.Row.(*rowstore.Row); ok && dataEquals(row.Data, data) {
				return row, nil
			}
		}
	}

	scanner, ok := t.Store.(rowstore.Scanner)
	if !ok {
		return nil, dberr.New(dberr.KindNotFound, t.Name, "row not found and store does not support scanning")
	}
	var found *rowstore.Row
	scanner.Scan(func(r *rowstore.Row) bool {
		if dataEquals(r.Data, data) {
			found = r
			return false
		}
		return true
	})
	if found == nil {
		return nil, dberr.New(dberr.KindNotFound, t.Name, "row not found by linear scan")
	}
	return found, nil
}

func dataEquals(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if fmt.Sprint(a[i]) != fmt.Sprint(b[i]) {
			return false
		}
	}
	return true
}

type UpdatePair struct {
	Row     *rowstore.Row
	NewData []any
}

// Update implements delete-then-insert semantics over a row set: every
// old row is deleted before any new row is inserted, which is what lets
// a single UPDATE swap unique-key values between rows. Deletion goes only
// as far as DeleteNoCheck: the old row stays linked in every index and its
// store slot stays allocated until the surrounding transaction actually
// commits, exactly like every other delete path (see DeleteNoCheck's own
// doc comment). Physically unlinking it here, before commit, would leave
// a rolled-back UPDATE with no old row to restore. Because the old row is
// still present (merely marked CascadeDeleted), each unique index's
// uniqueness check must look past it — see Tree's shadow callback,
// installed by AddIndex — or re-inserting a row whose key was never
// really available yet would spuriously fail as a duplicate.
func (t *Table) Update(session SessionContext, pairs []UpdatePair) ([]*rowstore.Row, error) {
	for _, p := range pairs {
		if p.Row.CascadeDeleted {
			return nil, dberr.New(dberr.KindInvalidArgument, t.Name, "row already cascade-deleted")
		}
		if err := t.checkRowDataInsert(session, p.NewData); err != nil {
			return nil, err
		}
	}

	for _, p := range pairs {
		if err := t.DeleteNoCheck(session, p.Row); err != nil {
			return nil, err
		}
	}

	out := make([]*rowstore.Row, 0, len(pairs))
	for _, p := range pairs {
		row, err := t.InsertRow(session, p.NewData)
		if err != nil {
			return out, err
		}
		out = append(out, row)
	}
	return out, nil
}
