package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaxdb/engine/internal/rowstore"
)

func newIntTable(t *testing.T, name string, numIndexes int, defs []IndexDef, idCol int) *Table {
	t.Helper()
	schema := NewSchema([]Column{
		{Name: "a", Type: rowstore.TypeInt64, NotNull: true},
		{Name: "b", Type: rowstore.TypeInt64},
	})
	store := rowstore.NewMemoryStore(numIndexes)
	tbl, err := NewTable(name, schema, store, defs)
	require.NoError(t, err)
	tbl.IdentityColumn = idCol
	return tbl
}

func TestTable_InsertAssignsIdentity(t *testing.T) {
	tbl := newIntTable(t, "t", 1, []IndexDef{{Name: "pk", Columns: []string{"a"}, Unique: true}}, 0)
	sess := newFakeSession()

	row, err := tbl.InsertRow(sess, []any{nil, int64(10)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), row.Data[0])

	row2, err := tbl.InsertRow(sess, []any{int64(10), int64(20)})
	require.NoError(t, err)
	assert.Equal(t, int64(10), row2.Data[0])

	row3, err := tbl.InsertRow(sess, []any{nil, int64(30)})
	require.NoError(t, err)
	assert.Equal(t, int64(11), row3.Data[0])
}

func TestTable_UniqueRollbackScenario(t *testing.T) {
	// Primary key on (a), secondary unique-less index on (b): scenario 3.
	tbl := newIntTable(t, "t", 2, []IndexDef{
		{Name: "pk", Columns: []string{"a"}, Unique: true},
		{Name: "sec", Columns: []string{"b"}},
	}, -1)
	sess := newFakeSession()

	_, err := tbl.InsertRow(sess, []any{int64(1), int64(10)})
	require.NoError(t, err)

	_, err = tbl.InsertRow(sess, []any{int64(1), int64(20)})
	require.Error(t, err)

	assert.Equal(t, 1, tbl.Indexes[1].Count())
	ms := tbl.Store.(*rowstore.MemoryStore)
	assert.Equal(t, 1, ms.Len())
}

func TestTable_NotNullViolation(t *testing.T) {
	tbl := newIntTable(t, "t", 0, nil, -1)
	sess := newFakeSession()

	_, err := tbl.InsertRow(sess, []any{nil, int64(1)})
	assert.Error(t, err)
}

func TestTable_BeforeTriggerMutatesRow(t *testing.T) {
	tbl := newIntTable(t, "t", 0, nil, -1)
	tbl.Triggers.Add(&Trigger{
		Name: "double_b", Event: BeforeInsert, Row: true,
		Fire: func(session SessionContext, oldData, newData []any) ([]any, error) {
			newData[1] = newData[1].(int64) * 2
			return newData, nil
		},
	})

	row, err := tbl.InsertRow(newFakeSession(), []any{int64(1), int64(5)})
	require.NoError(t, err)
	assert.Equal(t, int64(10), row.Data[1])
}

func TestTable_TriggersSkippedWhenReferentialIntegrityOff(t *testing.T) {
	tbl := newIntTable(t, "t", 0, nil, -1)
	var beforeFired, afterFired int
	tbl.Triggers.Add(&Trigger{
		Name: "bi", Event: BeforeInsert, Row: true,
		Fire: func(session SessionContext, oldData, newData []any) ([]any, error) {
			beforeFired++
			return nil, nil
		},
	})
	tbl.Triggers.Add(&Trigger{
		Name: "ai", Event: AfterInsert, Row: true,
		Fire: func(session SessionContext, oldData, newData []any) ([]any, error) {
			afterFired++
			return nil, nil
		},
	})

	sess := newFakeSession()
	sess.refIntegrity = false

	_, err := tbl.InsertRow(sess, []any{int64(1), int64(10)})
	require.NoError(t, err)
	assert.Equal(t, 0, beforeFired)
	assert.Equal(t, 0, afterFired)

	sess.refIntegrity = true
	_, err = tbl.InsertRow(sess, []any{int64(2), int64(20)})
	require.NoError(t, err)
	assert.Equal(t, 1, beforeFired)
	assert.Equal(t, 1, afterFired)
}

func TestTable_DeleteThenApply(t *testing.T) {
	tbl := newIntTable(t, "t", 1, []IndexDef{{Name: "pk", Columns: []string{"a"}, Unique: true}}, -1)
	sess := newFakeSession()

	row, err := tbl.InsertRow(sess, []any{int64(1), int64(10)})
	require.NoError(t, err)

	require.NoError(t, tbl.DeleteNoCheck(sess, row))
	assert.True(t, row.CascadeDeleted)
	// idempotent
	require.NoError(t, tbl.DeleteNoCheck(sess, row))

	require.NoError(t, tbl.ApplyDelete(row))
	assert.Equal(t, 0, tbl.Indexes[0].Count())
}

func TestTable_DeleteNoCheckFromLog(t *testing.T) {
	tbl := newIntTable(t, "t", 1, []IndexDef{{Name: "pk", Columns: []string{"a"}, Unique: true}}, -1)
	sess := newFakeSession()

	_, err := tbl.InsertRow(sess, []any{int64(1), int64(10)})
	require.NoError(t, err)

	require.NoError(t, tbl.DeleteNoCheckFromLog(sess, []any{int64(1), int64(10)}))
	assert.Len(t, sess.deletes, 1)
}

func TestTable_UpdateSwapsUniqueKeys(t *testing.T) {
	tbl := newIntTable(t, "t", 1, []IndexDef{{Name: "pk", Columns: []string{"a"}, Unique: true}}, -1)
	sess := newFakeSession()

	r1, err := tbl.InsertRow(sess, []any{int64(1), int64(10)})
	require.NoError(t, err)
	r2, err := tbl.InsertRow(sess, []any{int64(2), int64(20)})
	require.NoError(t, err)

	_, err = tbl.Update(sess, []UpdatePair{
		{Row: r1, NewData: []any{int64(2), int64(10)}},
		{Row: r2, NewData: []any{int64(1), int64(20)}},
	})
	require.NoError(t, err)

	// The old rows stay linked until their deletes are applied on commit.
	require.NoError(t, tbl.ApplyDelete(r1))
	require.NoError(t, tbl.ApplyDelete(r2))
	assert.Equal(t, 2, tbl.Indexes[0].Count())
}

func TestTable_ForeignKeyViolation(t *testing.T) {
	reg := newFakeRegistry()

	parentSchema := NewSchema([]Column{{Name: "id", Type: rowstore.TypeInt64}})
	parent, err := NewTable("parent", parentSchema, rowstore.NewMemoryStore(1),
		[]IndexDef{{Name: "pk", Columns: []string{"id"}, Unique: true}})
	require.NoError(t, err)
	reg.add(parent)

	childSchema := NewSchema([]Column{
		{Name: "id", Type: rowstore.TypeInt64},
		{Name: "parent_id", Type: rowstore.TypeInt64},
	})
	child, err := NewTable("child", childSchema, rowstore.NewMemoryStore(1),
		[]IndexDef{{Name: "pk", Columns: []string{"id"}, Unique: true}})
	require.NoError(t, err)
	child.Constraints = append(child.Constraints, &Constraint{
		Name: "fk_parent", Kind: ConstraintForeignKey,
		Columns: []string{"parent_id"}, RefTable: "parent", RefColumns: []string{"id"},
		OnDelete: ActionCascade,
	})
	reg.add(child)

	sess := newFakeSession()
	_, err = child.InsertRow(sess, []any{int64(1), int64(99)})
	assert.Error(t, err)

	_, err = parent.InsertRow(sess, []any{int64(99)})
	require.NoError(t, err)

	_, err = child.InsertRow(sess, []any{int64(1), int64(99)})
	assert.NoError(t, err)
}
