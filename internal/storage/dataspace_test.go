package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobalDataSpaceManager_GrowsFileWhenFreeListEmpty(t *testing.T) {
	m := NewGlobalDataSpaceManager(NewStorageManager(), LocalFileSet{}, 8)

	pos, ok := m.GetFileBlocks(1, 100)
	assert.True(t, ok)
	assert.Equal(t, int64(0), pos)
	assert.Equal(t, int64(100), m.FileLimit())

	pos2, ok := m.GetFileBlocks(1, 50)
	assert.True(t, ok)
	assert.Equal(t, int64(100), pos2)
	assert.Equal(t, int64(150), m.FileLimit())
}

func TestGlobalDataSpaceManager_ReusesFreedExtent(t *testing.T) {
	m := NewGlobalDataSpaceManager(NewStorageManager(), LocalFileSet{}, 8)

	m.FreeTableSpaceRange(1, 500, 600) // one 100-unit extent at pos 500

	pos, ok := m.GetFileBlocks(1, 80)
	assert.True(t, ok)
	assert.Equal(t, int64(500), pos)
	// the file never grew to satisfy this request
	assert.Equal(t, int64(0), m.FileLimit())
}

func TestGlobalDataSpaceManager_FreeTableSpaceDrainsIndex(t *testing.T) {
	m := NewGlobalDataSpaceManager(NewStorageManager(), LocalFileSet{}, 8)

	idx := NewFreeBlockIndex(4)
	idx.Add(1000, 30)
	idx.Add(2000, 70)

	m.FreeTableSpace(1, idx)

	pos, ok := m.GetFileBlocks(1, 30)
	assert.True(t, ok)
	assert.Equal(t, int64(1000), pos)

	pos2, ok := m.GetFileBlocks(1, 70)
	assert.True(t, ok)
	assert.Equal(t, int64(2000), pos2)
}

func TestGlobalDataSpaceManager_FreeTableSpaceNilIndexIsNoop(t *testing.T) {
	m := NewGlobalDataSpaceManager(NewStorageManager(), LocalFileSet{}, 8)
	m.FreeTableSpace(1, nil)
	assert.Equal(t, int64(0), m.FileLimit())
}

func TestGlobalDataSpaceManager_FullFreeListResetsBeforeAdd(t *testing.T) {
	m := NewGlobalDataSpaceManager(NewStorageManager(), LocalFileSet{}, 2)

	m.FreeTableSpaceRange(1, 0, 10)
	m.FreeTableSpaceRange(1, 20, 40)
	assert.Equal(t, 2, m.free.Len())

	// index is now full; adding a third extent must reset first rather
	// than silently drop the add
	m.FreeTableSpaceRange(1, 100, 150)
	assert.Equal(t, 1, m.free.Len())

	pos, ok := m.GetFileBlocks(1, 50)
	assert.True(t, ok)
	assert.Equal(t, int64(100), pos)
}
