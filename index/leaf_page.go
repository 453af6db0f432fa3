package index

import (
	"encoding/binary"

	"minirel/common"
	"minirel/record"
)

// LeafPage stores sorted (key, row id) pairs plus the forward link of
// the leaf chain.
type LeafPage struct {
	treePage
}

// Init formats an empty leaf.
func (p LeafPage) Init(pageID, parentID common.PageID, keySize, maxSize int32) {
	p.initHeader(pageTypeLeaf, pageID, parentID, keySize, maxSize)
	p.SetNextPageID(common.InvalidPageID)
}

// NextPageID returns the next leaf in key order.
func (p LeafPage) NextPageID() common.PageID {
	return common.PageID(int32(binary.BigEndian.Uint32(p.Data()[offsetNextLeaf:])))
}

// SetNextPageID links the leaf chain.
func (p LeafPage) SetNextPageID(id common.PageID) {
	binary.BigEndian.PutUint32(p.Data()[offsetNextLeaf:], uint32(id))
}

func (p LeafPage) entrySize() int32 {
	return p.KeySize() + ridSize
}

func (p LeafPage) entryOffset(i int32) int32 {
	return leafHeaderSize + i*p.entrySize()
}

// KeyAt returns the key of entry i, aliasing the page image.
func (p LeafPage) KeyAt(i int32) []byte {
	off := p.entryOffset(i)
	return p.Data()[off : off+p.KeySize()]
}

// ValueAt returns the row id of entry i.
func (p LeafPage) ValueAt(i int32) common.RowID {
	off := p.entryOffset(i) + p.KeySize()
	return common.RowIDFromUint64(binary.BigEndian.Uint64(p.Data()[off:]))
}

func (p LeafPage) setEntry(i int32, key []byte, rid common.RowID) {
	off := p.entryOffset(i)
	copy(p.Data()[off:off+p.KeySize()], key)
	binary.BigEndian.PutUint64(p.Data()[off+p.KeySize():], rid.Get())
}

// KeyIndex returns the first index whose key is >= the given key, i.e.
// the insertion point.
func (p LeafPage) KeyIndex(key []byte, cmp record.Comparator) int32 {
	lo, hi := int32(0), p.Size()
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(p.KeyAt(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Lookup finds the row id stored under key.
func (p LeafPage) Lookup(key []byte, cmp record.Comparator) (common.RowID, bool) {
	i := p.KeyIndex(key, cmp)
	if i < p.Size() && cmp(p.KeyAt(i), key) == 0 {
		return p.ValueAt(i), true
	}
	return common.InvalidRowID, false
}

// Insert adds a (key, row id) pair in sorted position and returns the
// new size. The caller has already ruled out duplicates.
func (p LeafPage) Insert(key []byte, rid common.RowID, cmp record.Comparator) int32 {
	i := p.KeyIndex(key, cmp)
	p.shiftRight(i)
	p.setEntry(i, key, rid)
	p.setSize(p.Size() + 1)
	return p.Size()
}

// RemoveRecord deletes the entry for key, reporting whether it existed.
func (p LeafPage) RemoveRecord(key []byte, cmp record.Comparator) bool {
	i := p.KeyIndex(key, cmp)
	if i >= p.Size() || cmp(p.KeyAt(i), key) != 0 {
		return false
	}
	p.shiftLeft(i)
	p.setSize(p.Size() - 1)
	return true
}

// shiftRight opens a hole at index i.
func (p LeafPage) shiftRight(i int32) {
	es := p.entrySize()
	start := p.entryOffset(i)
	end := p.entryOffset(p.Size())
	copy(p.Data()[start+es:end+es], p.Data()[start:end])
}

// shiftLeft closes the hole at index i.
func (p LeafPage) shiftLeft(i int32) {
	es := p.entrySize()
	start := p.entryOffset(i)
	end := p.entryOffset(p.Size())
	copy(p.Data()[start:], p.Data()[start+es:end])
}

// MoveHalfTo moves the upper half of the entries into an empty
// recipient (the new right sibling).
func (p LeafPage) MoveHalfTo(recipient LeafPage) {
	size := p.Size()
	splitAt := size / 2
	moved := size - splitAt
	copy(recipient.Data()[recipient.entryOffset(0):], p.Data()[p.entryOffset(splitAt):p.entryOffset(size)])
	recipient.setSize(moved)
	p.setSize(splitAt)
}

// MoveAllTo appends every entry to the recipient (the left sibling
// during a coalesce).
func (p LeafPage) MoveAllTo(recipient LeafPage) {
	size, rsize := p.Size(), recipient.Size()
	copy(recipient.Data()[recipient.entryOffset(rsize):], p.Data()[p.entryOffset(0):p.entryOffset(size)])
	recipient.setSize(rsize + size)
	p.setSize(0)
}

// MoveFirstToEndOf shifts this page's first entry onto the tail of the
// left sibling (redistribution from the right neighbor).
func (p LeafPage) MoveFirstToEndOf(recipient LeafPage) {
	recipient.setEntry(recipient.Size(), p.KeyAt(0), p.ValueAt(0))
	recipient.setSize(recipient.Size() + 1)
	p.shiftLeft(0)
	p.setSize(p.Size() - 1)
}

// MoveLastToFrontOf shifts this page's last entry onto the head of the
// right sibling (redistribution from the left neighbor).
func (p LeafPage) MoveLastToFrontOf(recipient LeafPage) {
	last := p.Size() - 1
	key, rid := copyKey(p.KeyAt(last)), p.ValueAt(last)
	p.setSize(last)
	recipient.shiftRight(0)
	recipient.setEntry(0, key, rid)
	recipient.setSize(recipient.Size() + 1)
}
