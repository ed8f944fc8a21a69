package rowstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRow_RoundTrip(t *testing.T) {
	t.Parallel()

	specs := []ColumnSpec{
		{Type: TypeInt64},
		{Type: TypeString, MaxLength: 32},
		{Type: TypeBool},
		{Type: TypeFloat64},
		{Type: TypeBytes},
	}
	values := []any{int64(42), "hello", true, 3.5, []byte{1, 2, 3}}

	buf, err := EncodeRow(values, specs)
	require.NoError(t, err)

	out, err := DecodeRow(buf, specs)
	require.NoError(t, err)
	assert.Equal(t, values, out)
}

func TestEncodeDecodeRow_NullBitmap(t *testing.T) {
	t.Parallel()

	specs := []ColumnSpec{{Type: TypeInt64}, {Type: TypeString}}
	values := []any{nil, "x"}

	buf, err := EncodeRow(values, specs)
	require.NoError(t, err)

	out, err := DecodeRow(buf, specs)
	require.NoError(t, err)
	assert.Nil(t, out[0])
	assert.Equal(t, "x", out[1])
}

func TestEncodeRow_ValueTooLong(t *testing.T) {
	t.Parallel()

	specs := []ColumnSpec{{Type: TypeString, MaxLength: 2}}
	_, err := EncodeRow([]any{"abc"}, specs)
	assert.Error(t, err)
}
