package rowstore

import (
	"sync"

	"github.com/relaxdb/engine/internal/dberr"
	"github.com/relaxdb/engine/internal/index"
)

// Store abstracts over the persistence strategy backing a table's rows.
// Table and IndexTree only ever see this interface.
type Store interface {
	// GetNewCachedObject allocates a Row for columnValues, assigning it
	// a stable position for cached/text variants; memory variants use a
	// pure heap position with no file semantics.
	GetNewCachedObject(columnValues []any) (*Row, error)

	// Get materialises the row at pos.
	Get(pos int64) (*Row, error)

	// GetAccessor/SetAccessor hold the root Node pointer for a given
	// index ordinal — the persisted "index root" for cached/text tables.
	GetAccessor(indexOrdinal int) *index.Node
	SetAccessor(indexOrdinal int, node *index.Node)

	// Commit finalizes a previously allocated row. It is a no-op in every
	// store here: cached and text stores write the row's bytes when
	// GetNewCachedObject allocates it.
	Commit(row *Row) error

	// Remove releases the storage occupied by pos.
	Remove(pos int64) error

	// Release discards the entire store (used when a DDL rebuild fails
	// and the half-built new store must be torn down).
	Release() error
}

// Scanner is implemented by stores that can walk every row they hold
// (including rows marked CascadeDeleted whose removal is pending), used
// as the last-resort lookup path when a table has no index usable for
// a delete-log replay.
type Scanner interface {
	// Scan calls fn for every row until fn returns false or rows are
	// exhausted.
	Scan(fn func(row *Row) bool)
}

// MemoryStore keeps every row in a Go map keyed by a monotonically
// increasing pseudo-position; there is no on-disk representation.
type MemoryStore struct {
	mu        sync.RWMutex
	rows      map[int64]*Row
	nextPos   int64
	numIndex  int
	accessors []*index.Node
}

func NewMemoryStore(numIndex int) *MemoryStore {
	return &MemoryStore{
		rows:      make(map[int64]*Row),
		numIndex:  numIndex,
		accessors: make([]*index.Node, numIndex),
	}
}

func (s *MemoryStore) GetNewCachedObject(columnValues []any) (*Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.nextPos
	s.nextPos++

	row := NewRow(pos, columnValues, s.numIndex)
	s.rows[pos] = row
	return row, nil
}

func (s *MemoryStore) Get(pos int64) (*Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[pos]
	if !ok {
		return nil, dberr.New(dberr.KindNotFound, "", "row not found in memory store")
	}
	return row, nil
}

func (s *MemoryStore) GetAccessor(i int) *index.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.accessors) {
		return nil
	}
	return s.accessors[i]
}

func (s *MemoryStore) SetAccessor(i int, n *index.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.accessors) {
		return
	}
	s.accessors[i] = n
}

func (s *MemoryStore) Commit(row *Row) error { return nil }

func (s *MemoryStore) Remove(pos int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, pos)
	return nil
}

func (s *MemoryStore) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[int64]*Row)
	s.accessors = make([]*index.Node, s.numIndex)
	return nil
}

func (s *MemoryStore) Scan(fn func(row *Row) bool) {
	s.mu.RLock()
	rows := make([]*Row, 0, len(s.rows))
	for _, r := range s.rows {
		rows = append(rows, r)
	}
	s.mu.RUnlock()

	for _, r := range rows {
		if !fn(r) {
			return
		}
	}
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
