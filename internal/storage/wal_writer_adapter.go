package storage

import (
	"fmt"
	"math"
)

// WALWriter adapts StorageManager to wal.PageWriter so wal.Manager.Recover
// can redo page images straight onto disk on database open, without the
// wal package importing storage (that import would cycle back through
// this file).
type WALWriter struct {
	SM *StorageManager
}

func NewWALWriter(sm *StorageManager) *WALWriter {
	return &WALWriter{SM: sm}
}

// WritePage applies one redone page image during recovery. It writes
// straight through StorageManager, bypassing the buffer pool: recovery
// runs before the pool has cached anything for these files, and caching
// a page the pool will reload fresh on first real access would only
// waste a frame.
func (w *WALWriter) WritePage(dir, base string, pageID uint32, pageBytes []byte) error {
	if w == nil || w.SM == nil {
		return nil
	}
	if pageID > math.MaxInt32 {
		return fmt.Errorf("storage: pageID overflow: %d", pageID)
	}
	fs := LocalFileSet{Dir: dir, Base: base}
	return w.SM.WritePage(fs, int32(pageID), pageBytes)
}
