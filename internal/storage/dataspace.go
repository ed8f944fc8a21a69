package storage

import "sync"

// GlobalDataSpaceManager is the single, database-wide DataSpaceManager
// every table's TableSpaceAllocator shares. It owns one growable shared
// data file (identified by a FileSet) and a size-ordered index of
// extents released by any table, so one table's freed space can be
// reused by another rather than leaking to the end of the file forever.
type GlobalDataSpaceManager struct {
	mu sync.Mutex

	fs   FileSet
	sm   *StorageManager
	free *FreeBlockIndex

	// fileLimit is the current end of the shared file, in scale units.
	fileLimit int64
}

func NewGlobalDataSpaceManager(sm *StorageManager, fs FileSet, freeIndexCapacity int) *GlobalDataSpaceManager {
	return &GlobalDataSpaceManager{
		fs:   fs,
		sm:   sm,
		free: NewFreeBlockIndex(freeIndexCapacity),
	}
}

// GetFileBlocks first tries to satisfy the request from the shared free
// list (the smallest extent that fits, via
// FreeBlockIndex.FindFirstGreaterEqualKeyIndex), falling back to growing
// the shared file. spaceID is accepted to match the DataSpaceManager
// interface; a whole-database free list does not partition by it.
func (m *GlobalDataSpaceManager) GetFileBlocks(spaceID int32, blockCount int) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := int64(blockCount)
	if i := m.free.FindFirstGreaterEqualKeyIndex(size); i >= 0 {
		pos := m.free.GetValue(i)
		m.free.Remove(i)
		return pos, true
	}

	pos := m.fileLimit
	m.fileLimit += size
	return pos, true
}

func (m *GlobalDataSpaceManager) FreeTableSpace(spaceID int32, index *FreeBlockIndex) {
	if index == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < index.Len(); i++ {
		if m.free.Full() {
			m.free.Reset()
		}
		m.free.Add(index.GetValue(i), index.GetKey(i))
	}
}

func (m *GlobalDataSpaceManager) FreeTableSpaceRange(spaceID int32, pos, limit int64) {
	if limit <= pos {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.free.Full() {
		m.free.Reset()
	}
	m.free.Add(pos, limit-pos)
}

// FileLimit reports the current end of the shared file, in scale units.
func (m *GlobalDataSpaceManager) FileLimit() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fileLimit
}
