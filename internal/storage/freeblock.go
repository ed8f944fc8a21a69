package storage

import "sort"

// FreeBlockIndex is an ordered index of (position, size) pairs sorted by
// size, ascending. It supports first-fit-by-minimum-size lookups the way
// TableSpaceAllocator needs when reusing a released extent.
//
// Entries are kept in two parallel slices so that GetKey/GetValue can hand
// back plain values without an intermediate struct allocation.
type FreeBlockIndex struct {
	sizes     []int64
	positions []int64
	capacity  int
}

func NewFreeBlockIndex(capacity int) *FreeBlockIndex {
	if capacity <= 0 {
		capacity = 1
	}
	return &FreeBlockIndex{
		sizes:     make([]int64, 0, capacity),
		positions: make([]int64, 0, capacity),
		capacity:  capacity,
	}
}

// Len returns the number of tracked free extents.
func (f *FreeBlockIndex) Len() int { return len(f.sizes) }

func (f *FreeBlockIndex) Capacity() int { return f.capacity }

// Full reports whether the index has reached capacity; the caller must
// hand the set back to the global space manager and call Reset before
// the next Add.
func (f *FreeBlockIndex) Full() bool { return len(f.sizes) >= f.capacity }

// Add inserts a (pos, size) pair, keeping sizes sorted ascending.
// Ties on size are broken by insertion order (stable).
func (f *FreeBlockIndex) Add(pos, size int64) {
	i := sort.Search(len(f.sizes), func(i int) bool { return f.sizes[i] > size })
	f.sizes = append(f.sizes, 0)
	f.positions = append(f.positions, 0)
	copy(f.sizes[i+1:], f.sizes[i:])
	copy(f.positions[i+1:], f.positions[i:])
	f.sizes[i] = size
	f.positions[i] = pos
}

// FindFirstGreaterEqualKeyIndex returns the index of the first entry whose
// size is >= minSize, or -1 if none qualifies.
func (f *FreeBlockIndex) FindFirstGreaterEqualKeyIndex(minSize int64) int {
	i := sort.Search(len(f.sizes), func(i int) bool { return f.sizes[i] >= minSize })
	if i >= len(f.sizes) {
		return -1
	}
	return i
}

func (f *FreeBlockIndex) GetKey(i int) int64 { return f.sizes[i] }

func (f *FreeBlockIndex) GetValue(i int) int64 { return f.positions[i] }

// Remove deletes the entry at index i, preserving sort order.
func (f *FreeBlockIndex) Remove(i int) {
	f.sizes = append(f.sizes[:i], f.sizes[i+1:]...)
	f.positions = append(f.positions[:i], f.positions[i+1:]...)
}

// Reset clears the index; the caller is responsible for handing the
// previously tracked extents back to the global space manager first.
func (f *FreeBlockIndex) Reset() {
	f.sizes = f.sizes[:0]
	f.positions = f.positions[:0]
}
