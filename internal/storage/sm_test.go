package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageManager(t *testing.T) {
	fs := LocalFileSet{Dir: "../../data/test/base", Base: "segment"}
	sm := NewStorageManager()

	// Load page
	pg, err := sm.LoadPage(fs, 0)
	require.NoError(t, err)
	assert.NotNil(t, pg)
	assert.IsType(t, &Page{}, pg)
}

func TestStorageManager_ReadWritePageWrongSizeRejected(t *testing.T) {
	fs := LocalFileSet{Dir: t.TempDir(), Base: "segment"}
	sm := NewStorageManager()

	err := sm.ReadPage(fs, 0, make([]byte, PageSize-1))
	assert.ErrorIs(t, err, ErrReadExceedPageSize)

	err = sm.WritePage(fs, 0, make([]byte, PageSize+1))
	assert.ErrorIs(t, err, ErrWriteExceedPageSize)
}

func TestStorageManager_PagesPerSegmentMatchesConstant(t *testing.T) {
	sm := NewStorageManager()
	assert.Equal(t, MaxPagePerSegment, sm.pagesPerSegment())
}
