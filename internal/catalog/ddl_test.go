package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaxdb/engine/internal/rowstore"
)

func TestCopyAdjustArray(t *testing.T) {
	old := []any{int64(1), int64(2), int64(3)}

	// insert before the last column
	got := CopyAdjustArray(old, []ColumnEdit{{Kind: EditInsert, AtOrdinal: 2, NewValue: "x"}}, 4)
	assert.Equal(t, []any{int64(1), int64(2), "x", int64(3)}, got)

	// insert at the end
	got = CopyAdjustArray(old, []ColumnEdit{{Kind: EditInsert, AtOrdinal: 3, NewValue: "y"}}, 4)
	assert.Equal(t, []any{int64(1), int64(2), int64(3), "y"}, got)

	// drop the middle column
	got = CopyAdjustArray(old, []ColumnEdit{{Kind: EditDrop, AtOrdinal: 1}}, 2)
	assert.Equal(t, []any{int64(1), int64(3)}, got)

	// substitute a column value
	got = CopyAdjustArray(old, []ColumnEdit{{Kind: EditSubstitute, AtOrdinal: 0, NewValue: int64(99)}}, 3)
	assert.Equal(t, []any{int64(99), int64(2), int64(3)}, got)
}

func TestMoveData_CarriesRowsForward(t *testing.T) {
	src := newIntTable(t, "src", 1, []IndexDef{{Name: "pk", Columns: []string{"a"}, Unique: true}}, -1)
	sess := newFakeSession()
	_, err := src.InsertRow(sess, []any{int64(1), int64(10)})
	require.NoError(t, err)
	_, err = src.InsertRow(sess, []any{int64(2), int64(20)})
	require.NoError(t, err)

	dstSchema := NewSchema([]Column{
		{Name: "a", Type: rowstore.TypeInt64, NotNull: true},
		{Name: "b", Type: rowstore.TypeInt64},
		{Name: "c", Type: rowstore.TypeInt64},
	})
	dst, err := NewTable("src", dstSchema, rowstore.NewMemoryStore(1),
		[]IndexDef{{Name: "pk", Columns: []string{"a"}, Unique: true}})
	require.NoError(t, err)

	edits := []ColumnEdit{{Kind: EditInsert, AtOrdinal: 2, NewValue: nil}}
	require.NoError(t, MoveData(sess, src, dst, edits))

	dstStore := dst.Store.(*rowstore.MemoryStore)
	assert.Equal(t, 2, dstStore.Len())
	assert.Equal(t, 2, dst.Indexes[0].Count())
}

func TestMoveData_SkipsTriggersAndJournal(t *testing.T) {
	src := newIntTable(t, "src", 1, []IndexDef{{Name: "pk", Columns: []string{"a"}, Unique: true}}, -1)
	var fired int
	src.Triggers.Add(&Trigger{
		Name: "bi", Event: BeforeInsert, Row: true,
		Fire: func(session SessionContext, oldData, newData []any) ([]any, error) {
			fired++
			return nil, nil
		},
	})
	sess := newFakeSession()
	_, err := src.InsertRow(sess, []any{int64(1), int64(10)})
	require.NoError(t, err)
	require.Equal(t, 1, fired)
	require.Len(t, sess.inserts, 1)

	dstSchema := NewSchema([]Column{
		{Name: "a", Type: rowstore.TypeInt64, NotNull: true},
		{Name: "b", Type: rowstore.TypeInt64},
	})
	dst, err := NewTable("src", dstSchema, rowstore.NewMemoryStore(1),
		[]IndexDef{{Name: "pk", Columns: []string{"a"}, Unique: true}})
	require.NoError(t, err)
	dst.Triggers = src.Triggers // moveData must not fire these either

	require.NoError(t, MoveData(sess, src, dst, nil))

	assert.Equal(t, 1, fired, "MoveData must not re-fire the source table's triggers")
	assert.Len(t, sess.inserts, 1, "MoveData must not journal an InsertAction for the rebuilt table")
	assert.Equal(t, 1, dst.Indexes[0].Count())
}

func TestMoveData_ReleasesDstOnRowFailure(t *testing.T) {
	src := newIntTable(t, "src", 0, nil, -1)
	sess := newFakeSession()
	_, err := src.InsertRow(sess, []any{int64(1), int64(10)})
	require.NoError(t, err)
	_, err = src.InsertRow(sess, []any{int64(2), int64(10)})
	require.NoError(t, err)

	// dst enforces uniqueness on b, which src's rows both share -> the
	// second insert during MoveData must fail and dst.Store gets released.
	dstSchema := NewSchema([]Column{
		{Name: "a", Type: rowstore.TypeInt64, NotNull: true},
		{Name: "b", Type: rowstore.TypeInt64},
	})
	dstStore := rowstore.NewMemoryStore(1)
	dst, err := NewTable("src", dstSchema, dstStore, []IndexDef{{Name: "ub", Columns: []string{"b"}, Unique: true}})
	require.NoError(t, err)

	err = MoveData(sess, src, dst, nil)
	assert.Error(t, err)
	assert.Equal(t, 0, dstStore.Len())

	// src is untouched
	srcStore := src.Store.(*rowstore.MemoryStore)
	assert.Equal(t, 2, srcStore.Len())
}

func TestAddColumn(t *testing.T) {
	tbl := newIntTable(t, "t", 1, []IndexDef{{Name: "pk", Columns: []string{"a"}, Unique: true}}, -1)
	sess := newFakeSession()
	_, err := tbl.InsertRow(sess, []any{int64(1), int64(10)})
	require.NoError(t, err)

	newStore := rowstore.NewMemoryStore(1)
	grown, err := AddColumn(sess, tbl, Column{Name: "c", Type: rowstore.TypeInt64}, newStore)
	require.NoError(t, err)

	assert.Equal(t, 3, grown.Schema.NumCols())
	assert.Equal(t, 1, grown.Indexes[0].Count())

	gs := grown.Store.(*rowstore.MemoryStore)
	var seen bool
	gs.Scan(func(r *rowstore.Row) bool {
		seen = true
		assert.Nil(t, r.Data[2])
		return true
	})
	assert.True(t, seen)
}

func TestDropColumn(t *testing.T) {
	tbl := newIntTable(t, "t", 1, []IndexDef{{Name: "pk", Columns: []string{"a"}, Unique: true}}, -1)
	sess := newFakeSession()
	_, err := tbl.InsertRow(sess, []any{int64(1), int64(10)})
	require.NoError(t, err)

	newStore := rowstore.NewMemoryStore(1)
	shrunk, err := DropColumn(sess, tbl, 1, newStore)
	require.NoError(t, err)
	assert.Equal(t, 1, shrunk.Schema.NumCols())
	assert.Equal(t, "a", shrunk.Schema.Columns[0].Name)
}

func TestDropColumn_RejectsIndexedColumn(t *testing.T) {
	tbl := newIntTable(t, "t", 1, []IndexDef{{Name: "pk", Columns: []string{"a"}, Unique: true}}, -1)
	_, err := DropColumn(newFakeSession(), tbl, 0, rowstore.NewMemoryStore(1))
	assert.Error(t, err)
}

func TestAddConstraint_BuildsBackingIndex(t *testing.T) {
	tbl := newIntTable(t, "t", 0, nil, -1)
	sess := newFakeSession()
	_, err := tbl.InsertRow(sess, []any{int64(1), int64(10)})
	require.NoError(t, err)
	_, err = tbl.InsertRow(sess, []any{int64(2), int64(20)})
	require.NoError(t, err)

	grown, err := AddConstraint(sess, tbl, &Constraint{
		Name: "uq_a", Kind: ConstraintUnique, Columns: []string{"a"},
	}, rowstore.NewMemoryStore(1))
	require.NoError(t, err)
	require.Len(t, grown.Indexes, 1)
	assert.Equal(t, 2, grown.Indexes[0].Count())
}

func TestAddConstraint_RollsBackOnDuplicate(t *testing.T) {
	tbl := newIntTable(t, "t", 0, nil, -1)
	sess := newFakeSession()
	_, err := tbl.InsertRow(sess, []any{int64(1), int64(10)})
	require.NoError(t, err)
	_, err = tbl.InsertRow(sess, []any{int64(2), int64(10)})
	require.NoError(t, err)

	_, err = AddConstraint(sess, tbl, &Constraint{
		Name: "uq_b", Kind: ConstraintUnique, Columns: []string{"b"},
	}, rowstore.NewMemoryStore(1))
	assert.Error(t, err)
	// t itself is untouched
	assert.Len(t, tbl.Indexes, 0)
	assert.Len(t, tbl.Constraints, 0)
}

func TestAddConstraint_NoIndexNeededMutatesInPlace(t *testing.T) {
	tbl := newIntTable(t, "t", 0, nil, -1)
	sess := newFakeSession()

	got, err := AddConstraint(sess, tbl, &Constraint{
		Name: "chk_a", Kind: ConstraintCheck,
	}, nil)
	require.NoError(t, err)
	assert.Same(t, tbl, got)
	assert.Len(t, tbl.Constraints, 1)
}

func TestDropConstraint(t *testing.T) {
	tbl := newIntTable(t, "t", 0, nil, -1)
	tbl.Constraints = append(tbl.Constraints, &Constraint{Name: "chk_a", Kind: ConstraintCheck})

	require.NoError(t, tbl.DropConstraint("chk_a"))
	assert.Len(t, tbl.Constraints, 0)

	err := tbl.DropConstraint("chk_a")
	assert.Error(t, err)
}

func TestGetConstraintPath(t *testing.T) {
	colMap := map[string]int{"a": 0, "b": 1, "c": 2}

	path, err := GetConstraintPath(colMap, []string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, path)

	path, err = GetConstraintPath(colMap, nil)
	require.NoError(t, err)
	assert.Nil(t, path)

	_, err = GetConstraintPath(colMap, []string{"nope"})
	assert.Error(t, err)
}

func TestCloneTableShape_PreservesIndexesAcrossColumnShift(t *testing.T) {
	tbl := newIntTable(t, "t", 1, []IndexDef{{Name: "pk", Columns: []string{"b"}, Unique: true}}, -1)
	sess := newFakeSession()
	_, err := tbl.InsertRow(sess, []any{int64(1), int64(10)})
	require.NoError(t, err)

	// Dropping "a" shifts "b" from ordinal 1 to ordinal 0; the pk index
	// must follow.
	newStore := rowstore.NewMemoryStore(1)
	shrunk, err := DropColumn(sess, tbl, 0, newStore)
	require.NoError(t, err)

	require.Len(t, shrunk.Indexes, 1)
	assert.Equal(t, []int{0}, shrunk.IndexColumns[0])
	assert.Equal(t, 1, shrunk.Indexes[0].Count())
}
