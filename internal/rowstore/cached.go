package rowstore

import (
	"fmt"
	"sync"

	"github.com/relaxdb/engine/internal/alias/bx"
	"github.com/relaxdb/engine/internal/bufferpool"
	"github.com/relaxdb/engine/internal/index"
	"github.com/relaxdb/engine/internal/storage"
)

// lengthPrefixSize is the on-disk header written before every encoded
// row so Get can know how many bytes to hand to DecodeRow without a
// second round-trip.
const lengthPrefixSize = 4

// CachedStore persists rows at byte positions carved out of a shared
// data file by a storage.TableSpaceAllocator, caching pages through a
// bufferpool.Manager. Unlike the teacher's slotted Page API (fixed
// slots per page), row bytes are written directly into the cached
// page's buffer at the position's intra-page offset, since a row's
// on-disk address here is an arbitrary byte position, not a slot index
// — a single row may not straddle a page boundary.
type CachedStore struct {
	mu sync.Mutex

	alloc *storage.TableSpaceAllocator
	bp    bufferpool.Manager
	scale int64
	specs []ColumnSpec

	accessors []*index.Node
}

func NewCachedStore(alloc *storage.TableSpaceAllocator, bp bufferpool.Manager, scale int64, specs []ColumnSpec, numIndex int) *CachedStore {
	return &CachedStore{
		alloc:     alloc,
		bp:        bp,
		scale:     scale,
		specs:     specs,
		accessors: make([]*index.Node, numIndex),
	}
}

func (s *CachedStore) byteOffset(pos int64) int64 { return pos * s.scale }

func (s *CachedStore) pageAndOffset(bytePos int64) (uint32, int) {
	return uint32(bytePos / storage.PageSize), int(bytePos % storage.PageSize)
}

func (s *CachedStore) GetNewCachedObject(columnValues []any) (*Row, error) {
	encoded, err := EncodeRow(columnValues, s.specs)
	if err != nil {
		return nil, err
	}

	total := int64(lengthPrefixSize + len(encoded))

	s.mu.Lock()
	defer s.mu.Unlock()

	pos, err := s.alloc.GetFilePosition(total, false)
	if err != nil {
		return nil, err
	}

	bytePos := s.byteOffset(pos)
	pageID, off := s.pageAndOffset(bytePos)
	if off+int(total) > storage.PageSize {
		return nil, fmt.Errorf("rowstore: row of %d bytes straddles a page boundary at offset %d", total, off)
	}

	page, err := s.bp.GetPage(pageID)
	if err != nil {
		return nil, err
	}

	var lenBuf [lengthPrefixSize]byte
	bx.PutU32(lenBuf[:], uint32(len(encoded)))
	copy(page.Buf[off:], lenBuf[:])
	copy(page.Buf[off+lengthPrefixSize:], encoded)

	if err := s.bp.Unpin(page, true); err != nil {
		return nil, err
	}

	return NewRow(pos, columnValues, len(s.accessors)), nil
}

func (s *CachedStore) Get(pos int64) (*Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bytePos := s.byteOffset(pos)
	pageID, off := s.pageAndOffset(bytePos)

	page, err := s.bp.GetPage(pageID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.bp.Unpin(page, false) }()

	if off+lengthPrefixSize > storage.PageSize {
		return nil, fmt.Errorf("rowstore: corrupt row header at pos %d", pos)
	}
	n := int(bx.U32(page.Buf[off : off+lengthPrefixSize]))
	start := off + lengthPrefixSize
	if start+n > storage.PageSize {
		return nil, fmt.Errorf("rowstore: corrupt row body at pos %d", pos)
	}

	values, err := DecodeRow(page.Buf[start:start+n], s.specs)
	if err != nil {
		return nil, err
	}
	return NewRow(pos, values, len(s.accessors)), nil
}

func (s *CachedStore) GetAccessor(i int) *index.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.accessors) {
		return nil
	}
	return s.accessors[i]
}

func (s *CachedStore) SetAccessor(i int, n *index.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.accessors) {
		return
	}
	s.accessors[i] = n
}

func (s *CachedStore) Commit(row *Row) error { return nil }

func (s *CachedStore) Remove(pos int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bytePos := s.byteOffset(pos)
	pageID, off := s.pageAndOffset(bytePos)

	page, err := s.bp.GetPage(pageID)
	if err != nil {
		return err
	}
	n := int(bx.U32(page.Buf[off : off+lengthPrefixSize]))
	size := int64(lengthPrefixSize + n)

	if err := s.bp.Unpin(page, false); err != nil {
		return err
	}

	s.alloc.Release(pos, size)
	return nil
}

func (s *CachedStore) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alloc.Close()
	return s.bp.FlushAll()
}
