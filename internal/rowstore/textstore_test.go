package rowstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextStore_WriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	specs := []ColumnSpec{{Type: TypeInt64}, {Type: TypeString}}
	path := filepath.Join(t.TempDir(), "rows.csv")
	ts := NewTextStore(path, ',', specs, 1)

	row, err := ts.GetNewCachedObject([]any{int64(1), "alice"})
	require.NoError(t, err)

	got, err := ts.Get(row.Pos)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "alice"}, got.Data)
}

func TestTextStore_RemoveBlanksLineButKeepsOtherPositions(t *testing.T) {
	t.Parallel()

	specs := []ColumnSpec{{Type: TypeInt64}}
	path := filepath.Join(t.TempDir(), "rows.csv")
	ts := NewTextStore(path, ',', specs, 1)

	r1, err := ts.GetNewCachedObject([]any{int64(1)})
	require.NoError(t, err)
	r2, err := ts.GetNewCachedObject([]any{int64(2)})
	require.NoError(t, err)

	require.NoError(t, ts.Remove(r1.Pos))

	_, err = ts.Get(r1.Pos)
	assert.Error(t, err)

	got2, err := ts.Get(r2.Pos)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2)}, got2.Data)
}
