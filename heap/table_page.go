package heap

import (
	"encoding/binary"

	"minirel/buffer"
	"minirel/common"
)

const (
	// Slotted page layout:
	// [pageID(4)][prevPageID(4)][nextPageID(4)][freeSpacePtr(4)][slotCount(4)]
	// [slot directory: offset(4) size(4) per slot][free space][tuples...]
	// Tuples grow from the page tail toward the directory.
	tablePageHeaderSize  = 20
	offsetPageID         = 0
	offsetPrevPageID     = 4
	offsetNextPageID     = 8
	offsetFreeSpacePtr   = 12
	offsetSlotCount      = 16
	slotEntrySize        = 8

	// deleteFlag in a slot's size word marks a tombstoned tuple.
	deleteFlag = uint32(1) << 31
)

// TablePage is the slotted-page view over a buffer pool page.
type TablePage struct {
	*buffer.Page
}

// Init formats an empty heap page.
func (p TablePage) Init(pageID, prevPageID common.PageID) {
	d := p.Data()
	binary.BigEndian.PutUint32(d[offsetPageID:], uint32(pageID))
	binary.BigEndian.PutUint32(d[offsetPrevPageID:], uint32(prevPageID))
	invalidNext := common.InvalidPageID
	binary.BigEndian.PutUint32(d[offsetNextPageID:], uint32(invalidNext))
	binary.BigEndian.PutUint32(d[offsetFreeSpacePtr:], common.PageSize)
	binary.BigEndian.PutUint32(d[offsetSlotCount:], 0)
}

// TablePageID returns the page id recorded in the page image.
func (p TablePage) TablePageID() common.PageID {
	return common.PageID(int32(binary.BigEndian.Uint32(p.Data()[offsetPageID:])))
}

// PrevPageID returns the previous page in the heap chain.
func (p TablePage) PrevPageID() common.PageID {
	return common.PageID(int32(binary.BigEndian.Uint32(p.Data()[offsetPrevPageID:])))
}

// SetPrevPageID links the page to its predecessor.
func (p TablePage) SetPrevPageID(id common.PageID) {
	binary.BigEndian.PutUint32(p.Data()[offsetPrevPageID:], uint32(id))
}

// NextPageID returns the next page in the heap chain.
func (p TablePage) NextPageID() common.PageID {
	return common.PageID(int32(binary.BigEndian.Uint32(p.Data()[offsetNextPageID:])))
}

// SetNextPageID links the page to its successor.
func (p TablePage) SetNextPageID(id common.PageID) {
	binary.BigEndian.PutUint32(p.Data()[offsetNextPageID:], uint32(id))
}

func (p TablePage) freeSpacePtr() uint32 {
	return binary.BigEndian.Uint32(p.Data()[offsetFreeSpacePtr:])
}

func (p TablePage) setFreeSpacePtr(v uint32) {
	binary.BigEndian.PutUint32(p.Data()[offsetFreeSpacePtr:], v)
}

// SlotCount returns the length of the slot directory, including empty
// and tombstoned slots.
func (p TablePage) SlotCount() uint32 {
	return binary.BigEndian.Uint32(p.Data()[offsetSlotCount:])
}

func (p TablePage) setSlotCount(v uint32) {
	binary.BigEndian.PutUint32(p.Data()[offsetSlotCount:], v)
}

func (p TablePage) slotOffset(slot uint32) uint32 {
	return binary.BigEndian.Uint32(p.Data()[tablePageHeaderSize+slotEntrySize*slot:])
}

func (p TablePage) slotSize(slot uint32) uint32 {
	return binary.BigEndian.Uint32(p.Data()[tablePageHeaderSize+slotEntrySize*slot+4:])
}

func (p TablePage) setSlot(slot, offset, size uint32) {
	d := p.Data()
	binary.BigEndian.PutUint32(d[tablePageHeaderSize+slotEntrySize*slot:], offset)
	binary.BigEndian.PutUint32(d[tablePageHeaderSize+slotEntrySize*slot+4:], size)
}

// freeSpaceRemaining is the gap between the slot directory and the
// tuple area.
func (p TablePage) freeSpaceRemaining() uint32 {
	dirEnd := tablePageHeaderSize + slotEntrySize*p.SlotCount()
	return p.freeSpacePtr() - dirEnd
}

// MaxTupleSize is the largest tuple a single empty page can hold.
const MaxTupleSize = common.PageSize - tablePageHeaderSize - slotEntrySize

// InsertTuple stores a tuple and returns its slot. Empty slots left by
// applied deletes are reused before the directory grows. Reports false
// when the page lacks space.
func (p TablePage) InsertTuple(tuple []byte) (uint32, bool) {
	size := uint32(len(tuple))
	count := p.SlotCount()
	for slot := uint32(0); slot < count; slot++ {
		if p.slotOffset(slot) == 0 && p.slotSize(slot) == 0 {
			if p.freeSpaceRemaining() < size {
				return 0, false
			}
			off := p.freeSpacePtr() - size
			copy(p.Data()[off:], tuple)
			p.setFreeSpacePtr(off)
			p.setSlot(slot, off, size)
			return slot, true
		}
	}
	if p.freeSpaceRemaining() < size+slotEntrySize {
		return 0, false
	}
	off := p.freeSpacePtr() - size
	copy(p.Data()[off:], tuple)
	p.setFreeSpacePtr(off)
	p.setSlotCount(count + 1)
	p.setSlot(count, off, size)
	return count, true
}

// GetTuple returns the tuple bytes at a slot. Empty and tombstoned
// slots report false.
func (p TablePage) GetTuple(slot uint32) ([]byte, bool) {
	if slot >= p.SlotCount() {
		return nil, false
	}
	off, size := p.slotOffset(slot), p.slotSize(slot)
	if off == 0 || size&deleteFlag != 0 {
		return nil, false
	}
	return p.Data()[off : off+size], true
}

// MarkDelete tombstones a live slot.
func (p TablePage) MarkDelete(slot uint32) bool {
	if slot >= p.SlotCount() {
		return false
	}
	off, size := p.slotOffset(slot), p.slotSize(slot)
	if off == 0 || size&deleteFlag != 0 {
		return false
	}
	p.setSlot(slot, off, size|deleteFlag)
	return true
}

// RollbackDelete clears a tombstone.
func (p TablePage) RollbackDelete(slot uint32) bool {
	if slot >= p.SlotCount() {
		return false
	}
	off, size := p.slotOffset(slot), p.slotSize(slot)
	if off == 0 || size&deleteFlag == 0 {
		return false
	}
	p.setSlot(slot, off, size&^deleteFlag)
	return true
}

// ApplyDelete physically frees a slot and compacts the tuple area. The
// slot entry stays in the directory (zeroed) so other row ids remain
// stable.
func (p TablePage) ApplyDelete(slot uint32) bool {
	if slot >= p.SlotCount() {
		return false
	}
	off, size := p.slotOffset(slot), p.slotSize(slot)&^deleteFlag
	if off == 0 {
		return false
	}
	d := p.Data()
	free := p.freeSpacePtr()
	// Shift every tuple below the freed one up by its size.
	copy(d[free+size:off+size], d[free:off])
	count := p.SlotCount()
	for s := uint32(0); s < count; s++ {
		if o := p.slotOffset(s); o != 0 && o < off {
			p.setSlot(s, o+size, p.slotSize(s))
		}
	}
	p.setSlot(slot, 0, 0)
	p.setFreeSpacePtr(free + size)
	return true
}

// UpdateTuple replaces a live tuple in place. The new image must fit
// the existing slot; callers fall back to delete+insert otherwise.
func (p TablePage) UpdateTuple(slot uint32, tuple []byte) bool {
	if slot >= p.SlotCount() {
		return false
	}
	off, size := p.slotOffset(slot), p.slotSize(slot)
	if off == 0 || size&deleteFlag != 0 {
		return false
	}
	if uint32(len(tuple)) > size {
		return false
	}
	copy(p.Data()[off:], tuple)
	p.setSlot(slot, off, uint32(len(tuple)))
	return true
}

// FirstTupleSlot returns the first live slot on the page.
func (p TablePage) FirstTupleSlot() (uint32, bool) {
	return p.nextLiveSlot(0)
}

// NextTupleSlot returns the first live slot after the given one.
func (p TablePage) NextTupleSlot(slot uint32) (uint32, bool) {
	return p.nextLiveSlot(slot + 1)
}

func (p TablePage) nextLiveSlot(from uint32) (uint32, bool) {
	for s := from; s < p.SlotCount(); s++ {
		if off, size := p.slotOffset(s), p.slotSize(s); off != 0 && size&deleteFlag == 0 {
			return s, true
		}
	}
	return 0, false
}
