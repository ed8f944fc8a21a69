package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaxdb/engine/internal/index"
	"github.com/relaxdb/engine/internal/rowstore"
)

// nonScanningStore forwards to an underlying MemoryStore without
// exposing Scan, forcing scanMatching onto its index-probe fallback
// path — the one CachedStore/TextStore-backed tables actually take,
// since neither of those implements rowstore.Scanner.
type nonScanningStore struct {
	inner *rowstore.MemoryStore
}

var _ rowstore.Store = nonScanningStore{}

func newNonScanningStore(numIndex int) nonScanningStore {
	return nonScanningStore{inner: rowstore.NewMemoryStore(numIndex)}
}

func (s nonScanningStore) GetNewCachedObject(vals []any) (*rowstore.Row, error) {
	return s.inner.GetNewCachedObject(vals)
}
func (s nonScanningStore) Get(pos int64) (*rowstore.Row, error) { return s.inner.Get(pos) }
func (s nonScanningStore) GetAccessor(i int) *index.Node        { return s.inner.GetAccessor(i) }
func (s nonScanningStore) SetAccessor(i int, n *index.Node)     { s.inner.SetAccessor(i, n) }
func (s nonScanningStore) Commit(row *rowstore.Row) error       { return s.inner.Commit(row) }
func (s nonScanningStore) Remove(pos int64) error               { return s.inner.Remove(pos) }
func (s nonScanningStore) Release() error                       { return s.inner.Release() }

func newTable(t *testing.T, name string, cols []Column, idxCol string) *Table {
	t.Helper()
	schema := NewSchema(cols)
	tbl, err := NewTable(name, schema, rowstore.NewMemoryStore(1),
		[]IndexDef{{Name: "pk", Columns: []string{idxCol}, Unique: true}})
	require.NoError(t, err)
	return tbl
}

// TestCascadeDelete_TerminatesOnCycle builds A(id), B(a_id -> A.id CASCADE)
// with B also self-referencing B(parent -> B.id CASCADE), matching the
// cascade-cycle scenario: deleting a row in A whose cascade chain runs
// back into B through B's own foreign key must terminate and touch every
// reachable row exactly once.
func TestCascadeDelete_TerminatesOnCycle(t *testing.T) {
	reg := newFakeRegistry()

	a := newTable(t, "a", []Column{{Name: "id", Type: rowstore.TypeInt64}}, "id")
	reg.add(a)

	b := newTable(t, "b", []Column{
		{Name: "id", Type: rowstore.TypeInt64},
		{Name: "a_id", Type: rowstore.TypeInt64},
		{Name: "parent", Type: rowstore.TypeInt64},
	}, "id")
	b.Constraints = append(b.Constraints,
		&Constraint{Name: "fk_a", Kind: ConstraintForeignKey, Columns: []string{"a_id"}, RefTable: "a", RefColumns: []string{"id"}, OnDelete: ActionCascade},
		&Constraint{Name: "fk_self", Kind: ConstraintForeignKey, Columns: []string{"parent"}, RefTable: "b", RefColumns: []string{"id"}, OnDelete: ActionCascade},
	)
	reg.add(b)

	sess := newFakeSession()
	sess.refIntegrity = false // allow inserting B rows whose self-FK target doesn't exist yet

	aRow, err := a.InsertRow(sess, []any{int64(1)})
	require.NoError(t, err)

	b1, err := b.InsertRow(sess, []any{int64(1), int64(1), nil})
	require.NoError(t, err)
	b2, err := b.InsertRow(sess, []any{int64(2), int64(1), int64(1)})
	require.NoError(t, err)
	// b3 -> parent b2 -> parent b1: every B row is reached both through
	// fk_a and again through the fk_self chain, exercising the multi-hop
	// walk's visited guard
	b3, err := b.InsertRow(sess, []any{int64(3), int64(1), int64(2)})
	require.NoError(t, err)

	require.NoError(t, a.DeleteNoCheck(sess, aRow))
	require.NoError(t, a.CascadeDelete(sess, aRow))

	assert.True(t, b1.CascadeDeleted)
	assert.True(t, b2.CascadeDeleted)
	assert.True(t, b3.CascadeDeleted)

	// Every cascade-deleted row must have gone through deleteNoCheck's
	// journal, not just been flagged in memory, or a commit would never
	// unlink them from their indexes and store.
	assert.Len(t, sess.deletes, 4) // aRow + b1 + b2 + b3

	for _, row := range []*rowstore.Row{b1, b2, b3} {
		require.NoError(t, b.ApplyDelete(row))
	}
	assert.Equal(t, 0, b.Indexes[0].Count())
}

// TestCascadeDelete_IndexFallbackFindsAllMatches exercises scanMatching's
// non-Scanner fallback (the path a CachedStore/TextStore-backed
// referencing table actually takes) with more than one row sharing the
// same foreign key value, verifying every match is cascaded rather than
// only the first one FindFirstRowIterator lands on.
func TestCascadeDelete_IndexFallbackFindsAllMatches(t *testing.T) {
	reg := newFakeRegistry()

	a := newTable(t, "a", []Column{{Name: "id", Type: rowstore.TypeInt64}}, "id")
	reg.add(a)

	bSchema := NewSchema([]Column{
		{Name: "id", Type: rowstore.TypeInt64},
		{Name: "a_id", Type: rowstore.TypeInt64},
	})
	b, err := NewTable("b", bSchema, newNonScanningStore(2), []IndexDef{
		{Name: "pk", Columns: []string{"id"}, Unique: true},
		{Name: "fk_a_idx", Columns: []string{"a_id"}},
	})
	require.NoError(t, err)
	b.Constraints = append(b.Constraints, &Constraint{
		Name: "fk_a", Kind: ConstraintForeignKey, Columns: []string{"a_id"}, RefTable: "a", RefColumns: []string{"id"}, OnDelete: ActionCascade,
	})
	reg.add(b)

	sess := newFakeSession()
	aRow, err := a.InsertRow(sess, []any{int64(1)})
	require.NoError(t, err)
	b1, err := b.InsertRow(sess, []any{int64(1), int64(1)})
	require.NoError(t, err)
	b2, err := b.InsertRow(sess, []any{int64(2), int64(1)})
	require.NoError(t, err)
	b3, err := b.InsertRow(sess, []any{int64(3), int64(1)})
	require.NoError(t, err)

	require.NoError(t, a.DeleteNoCheck(sess, aRow))
	require.NoError(t, a.CascadeDelete(sess, aRow))

	assert.True(t, b1.CascadeDeleted)
	assert.True(t, b2.CascadeDeleted)
	assert.True(t, b3.CascadeDeleted)
}

func TestCascadeDelete_SetNull(t *testing.T) {
	reg := newFakeRegistry()

	a := newTable(t, "a", []Column{{Name: "id", Type: rowstore.TypeInt64}}, "id")
	reg.add(a)

	b := newTable(t, "b", []Column{
		{Name: "id", Type: rowstore.TypeInt64},
		{Name: "a_id", Type: rowstore.TypeInt64},
	}, "id")
	b.Constraints = append(b.Constraints, &Constraint{
		Name: "fk_a", Kind: ConstraintForeignKey, Columns: []string{"a_id"}, RefTable: "a", RefColumns: []string{"id"}, OnDelete: ActionSetNull,
	})
	reg.add(b)

	sess := newFakeSession()
	aRow, err := a.InsertRow(sess, []any{int64(1)})
	require.NoError(t, err)
	bRow, err := b.InsertRow(sess, []any{int64(1), int64(1)})
	require.NoError(t, err)

	require.NoError(t, a.DeleteNoCheck(sess, aRow))
	require.NoError(t, a.CascadeDelete(sess, aRow))

	// SET NULL rewrites the row through Update, which leaves the old row
	// in the store until its delete is applied on commit.
	require.NoError(t, b.ApplyDelete(bRow))

	found := false
	ms := b.Store.(*rowstore.MemoryStore)
	ms.Scan(func(r *rowstore.Row) bool {
		if r.Data[0] == int64(1) {
			found = true
			assert.Nil(t, r.Data[1])
		}
		return true
	})
	assert.True(t, found)
}
