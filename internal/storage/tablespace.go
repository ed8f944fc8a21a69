package storage

import (
	"fmt"

	"github.com/relaxdb/engine/internal/dberr"
)

// DataSpaceManager is the global, cross-table space manager. Each
// TableSpaceAllocator asks it for fresh extents and hands back released
// ones on close or when its free-block index fills up.
type DataSpaceManager interface {
	// GetFileBlocks reserves an extent of blockCount scale units (the
	// caller's extent size in bytes divided by its scale) and returns its
	// position, also in scale units, or ok=false if the file cannot grow.
	GetFileBlocks(spaceID int32, blockCount int) (position int64, ok bool)

	// FreeTableSpace hands the accumulated free extents of a closing or
	// resetting allocator back to the global manager.
	FreeTableSpace(spaceID int32, index *FreeBlockIndex)

	// FreeTableSpaceRange hands a single [pos, limit) tail back.
	FreeTableSpaceRange(spaceID int32, pos, limit int64)
}

// maxInt31 mirrors Java's Integer.MAX_VALUE, the boundary past which a
// scaled position no longer fits the 32-bit on-disk position field.
const maxInt31 = int64(1<<31 - 1)

// TableSpaceAllocator hands out row/block positions from a shared data
// file on behalf of a single table (or one of its indexes / lobs). It
// first looks for a fitting extent in a size-ordered free list of
// previously released extents and falls back to bump-allocating from a
// "fresh" extent.
type TableSpaceAllocator struct {
	spaceManager DataSpaceManager
	spaceID      int32

	scale              int64
	mainBlockSize      int64
	fixedBlockSizeUnit int64

	lookup *FreeBlockIndex

	freshPos     int64
	freshFreePos int64
	freshLimit   int64

	freeBlockSize int64
}

type TableSpaceAllocatorConfig struct {
	SpaceID            int32
	Scale              int64
	MainBlockSize      int64
	FixedBlockSizeUnit int64
	Capacity           int
}

func NewTableSpaceAllocator(sm DataSpaceManager, cfg TableSpaceAllocatorConfig) *TableSpaceAllocator {
	return &TableSpaceAllocator{
		spaceManager:       sm,
		spaceID:            cfg.SpaceID,
		scale:              cfg.Scale,
		mainBlockSize:      cfg.MainBlockSize,
		fixedBlockSizeUnit: cfg.FixedBlockSizeUnit,
		lookup:             NewFreeBlockIndex(cfg.Capacity),
	}
}

func ceilToMultiple(v, unit int64) int64 {
	if unit <= 0 {
		return v
	}
	if r := v % unit; r != 0 {
		v += unit - r
	}
	return v
}

// getNewMainBlock releases the fresh extent's unused tail and requests a
// new extent from the global manager, doubling mainBlockSize until it
// can hold rowSize.
func (a *TableSpaceAllocator) getNewMainBlock(rowSize int64) bool {
	released := a.freshLimit - a.freshFreePos
	if released > 0 {
		a.releaseInternal(a.freshFreePos/a.scale, released)
	}

	blockSize := a.mainBlockSize
	for blockSize < rowSize {
		blockSize += blockSize
	}

	pos, ok := a.spaceManager.GetFileBlocks(a.spaceID, int(blockSize/a.scale))
	if !ok {
		return false
	}

	a.freshPos = pos * a.scale
	a.freshFreePos = a.freshPos
	a.freshLimit = a.freshPos + blockSize
	return true
}

// getNewBlock bump-allocates rowSize bytes from the fresh extent,
// growing the extent via getNewMainBlock if necessary.
func (a *TableSpaceAllocator) getNewBlock(rowSize int64, asBlocks bool) int64 {
	if asBlocks {
		rowSize = ceilToMultiple(rowSize, a.fixedBlockSizeUnit)
	}

	if a.freshFreePos+rowSize > a.freshLimit {
		if !a.getNewMainBlock(rowSize) {
			return -1
		}
	}

	position := a.freshFreePos
	if asBlocks {
		aligned := ceilToMultiple(position, a.fixedBlockSizeUnit)
		released := aligned - position
		if released > 0 {
			a.releaseInternal(position/a.scale, released)
			a.freshFreePos = aligned
			position = aligned
		}
	}

	a.freshFreePos += rowSize
	return position / a.scale
}

// GetFilePosition returns a scale-divided file position with room for
// rowSize bytes, or -1 (wrapped as dberr.KindOutOfSpace) on failure.
// rowSize is first rounded up to a multiple of scale, so every position
// handed out is scale-aligned.
func (a *TableSpaceAllocator) GetFilePosition(rowSize int64, asBlocks bool) (int64, error) {
	rowSize = ceilToMultiple(rowSize, a.scale)
	if a.lookup.Capacity() == 0 {
		if p := a.getNewBlock(rowSize, asBlocks); p >= 0 {
			return p, nil
		}
		return -1, a.noSpace(rowSize)
	}

	if asBlocks {
		rowSize = ceilToMultiple(rowSize, a.fixedBlockSizeUnit)
	}

	if rowSize > maxInt31 {
		if p := a.getNewBlock(rowSize, asBlocks); p >= 0 {
			return p, nil
		}
		return -1, a.noSpace(rowSize)
	}

	index := a.lookup.FindFirstGreaterEqualKeyIndex(rowSize)
	if index == -1 {
		if p := a.getNewBlock(rowSize, asBlocks); p >= 0 {
			return p, nil
		}
		return -1, a.noSpace(rowSize)
	}

	if asBlocks {
		unit := a.fixedBlockSizeUnit / a.scale
		for ; index < a.lookup.Len(); index++ {
			if unit == 0 || a.lookup.GetValue(index)%unit == 0 {
				break
			}
		}
		if index == a.lookup.Len() {
			if p := a.getNewBlock(rowSize, asBlocks); p >= 0 {
				return p, nil
			}
			return -1, a.noSpace(rowSize)
		}
	}

	size := a.lookup.GetKey(index)
	pos := a.lookup.GetValue(index)
	diff := size - rowSize

	a.lookup.Remove(index)

	// A remainder smaller than one scale unit cannot hold a row and is
	// not kept.
	if diff > 0 && diff >= a.scale {
		a.lookup.Add(pos+rowSize/a.scale, diff)
	}

	a.freeBlockSize -= rowSize
	return pos, nil
}

func (a *TableSpaceAllocator) noSpace(rowSize int64) error {
	return dberr.New(dberr.KindOutOfSpace, fmt.Sprintf("space:%d", a.spaceID),
		fmt.Sprintf("requested %d bytes", rowSize))
}

// Release marks [pos, pos+size/scale) free for reuse. Positions at or
// beyond 2^31 are dropped: on close they remain the global manager's
// responsibility via the fresh-extent tail, never through lookup.
func (a *TableSpaceAllocator) Release(pos, size int64) {
	a.releaseInternal(pos, size)
}

func (a *TableSpaceAllocator) releaseInternal(pos, size int64) {
	if a.lookup.Full() {
		a.resetList()
	}
	if pos > maxInt31 {
		return
	}
	a.lookup.Add(pos, size)
	a.freeBlockSize += size
}

func (a *TableSpaceAllocator) resetList() {
	a.spaceManager.FreeTableSpace(a.spaceID, a.lookup)
	a.lookup.Reset()
}

// Close hands the free list and the fresh extent's tail back to the
// global manager and resets local state.
func (a *TableSpaceAllocator) Close() {
	a.spaceManager.FreeTableSpace(a.spaceID, a.lookup)
	a.spaceManager.FreeTableSpaceRange(a.spaceID, a.freshFreePos, a.freshLimit)
	a.lookup.Reset()
	a.freshPos = 0
	a.freshFreePos = 0
	a.freshLimit = 0
}

func (a *TableSpaceAllocator) FreeBlockCount() int { return a.lookup.Len() }
func (a *TableSpaceAllocator) FreeBlockSize() int64 { return a.freeBlockSize }
