package index

import (
	"encoding/binary"

	"minirel/buffer"
	"minirel/common"
	"minirel/record"
)

// InternalPage stores (key, child page id) pairs. The key of entry 0
// is a dummy; entry i >= 1 separates the subtrees of entries i-1 and
// i: every key under child i is >= key i, every key under child i-1 is
// below it.
type InternalPage struct {
	treePage
}

// Init formats an empty internal page.
func (p InternalPage) Init(pageID, parentID common.PageID, keySize, maxSize int32) {
	p.initHeader(pageTypeInternal, pageID, parentID, keySize, maxSize)
}

func (p InternalPage) entrySize() int32 {
	return p.KeySize() + childSize
}

func (p InternalPage) entryOffset(i int32) int32 {
	return treeHeaderSize + i*p.entrySize()
}

// KeyAt returns the key of entry i, aliasing the page image. Entry 0's
// key is meaningless.
func (p InternalPage) KeyAt(i int32) []byte {
	off := p.entryOffset(i)
	return p.Data()[off : off+p.KeySize()]
}

// SetKeyAt overwrites the separator key of entry i.
func (p InternalPage) SetKeyAt(i int32, key []byte) {
	off := p.entryOffset(i)
	copy(p.Data()[off:off+p.KeySize()], key)
}

// ValueAt returns the child page id of entry i.
func (p InternalPage) ValueAt(i int32) common.PageID {
	off := p.entryOffset(i) + p.KeySize()
	return common.PageID(int32(binary.BigEndian.Uint32(p.Data()[off:])))
}

func (p InternalPage) setValueAt(i int32, id common.PageID) {
	off := p.entryOffset(i) + p.KeySize()
	binary.BigEndian.PutUint32(p.Data()[off:], uint32(id))
}

func (p InternalPage) setEntry(i int32, key []byte, child common.PageID) {
	copy(p.Data()[p.entryOffset(i):], key)
	p.setValueAt(i, child)
}

// ValueIndex returns the position of the given child, or -1.
func (p InternalPage) ValueIndex(child common.PageID) int32 {
	for i := int32(0); i < p.Size(); i++ {
		if p.ValueAt(i) == child {
			return i
		}
	}
	return -1
}

// Lookup returns the child whose key range contains the given key.
func (p InternalPage) Lookup(key []byte, cmp record.Comparator) common.PageID {
	// Binary search over the separators (entries 1..size-1) for the
	// last one that is <= key.
	lo, hi := int32(1), p.Size()
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(p.KeyAt(mid), key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return p.ValueAt(lo - 1)
}

// PopulateNewRoot initializes a fresh root after the old root split.
func (p InternalPage) PopulateNewRoot(oldChild common.PageID, key []byte, newChild common.PageID) {
	p.setValueAt(0, oldChild)
	p.setEntry(1, key, newChild)
	p.setSize(2)
}

// InsertNodeAfter places (key, newChild) immediately after the entry
// pointing at oldChild and returns the new size.
func (p InternalPage) InsertNodeAfter(oldChild common.PageID, key []byte, newChild common.PageID) int32 {
	idx := p.ValueIndex(oldChild) + 1
	p.shiftRight(idx)
	p.setEntry(idx, key, newChild)
	p.setSize(p.Size() + 1)
	return p.Size()
}

// Remove deletes entry i, closing the hole.
func (p InternalPage) Remove(i int32) {
	p.shiftLeft(i)
	p.setSize(p.Size() - 1)
}

// RemoveAndReturnOnlyChild empties a size-1 root and returns its lone
// child.
func (p InternalPage) RemoveAndReturnOnlyChild() common.PageID {
	child := p.ValueAt(0)
	p.setSize(0)
	return child
}

func (p InternalPage) shiftRight(i int32) {
	es := p.entrySize()
	start := p.entryOffset(i)
	end := p.entryOffset(p.Size())
	copy(p.Data()[start+es:end+es], p.Data()[start:end])
}

func (p InternalPage) shiftLeft(i int32) {
	es := p.entrySize()
	start := p.entryOffset(i)
	end := p.entryOffset(p.Size())
	copy(p.Data()[start:], p.Data()[start+es:end])
}

// MoveHalfTo moves the upper half of the entries into an empty
// recipient and reparents the moved children. The first moved key
// becomes the recipient's dummy slot and is pushed up as the
// separator.
func (p InternalPage) MoveHalfTo(recipient InternalPage, pool *buffer.Pool) error {
	size := p.Size()
	splitAt := size / 2
	moved := size - splitAt
	copy(recipient.Data()[recipient.entryOffset(0):], p.Data()[p.entryOffset(splitAt):p.entryOffset(size)])
	recipient.setSize(moved)
	p.setSize(splitAt)
	return recipient.reparentChildren(0, moved, pool)
}

// MoveAllTo appends every entry to the recipient (the left sibling
// during a coalesce). The dummy slot's key is replaced by the
// separator pulled down from the parent.
func (p InternalPage) MoveAllTo(recipient InternalPage, middleKey []byte, pool *buffer.Pool) error {
	size, rsize := p.Size(), recipient.Size()
	copy(recipient.Data()[recipient.entryOffset(rsize):], p.Data()[p.entryOffset(0):p.entryOffset(size)])
	recipient.SetKeyAt(rsize, middleKey)
	recipient.setSize(rsize + size)
	p.setSize(0)
	return recipient.reparentChildren(rsize, size, pool)
}

// MoveFirstToEndOf rotates this page's first entry onto the tail of
// the left sibling. The old parent separator (middleKey) labels the
// moved entry; the caller installs the returned key as the new parent
// separator.
func (p InternalPage) MoveFirstToEndOf(recipient InternalPage, middleKey []byte, pool *buffer.Pool) ([]byte, error) {
	newMiddle := copyKey(p.KeyAt(1))
	child := p.ValueAt(0)
	recipient.setEntry(recipient.Size(), middleKey, child)
	recipient.setSize(recipient.Size() + 1)
	p.shiftLeft(0)
	p.setSize(p.Size() - 1)
	if err := recipient.reparentChildren(recipient.Size()-1, 1, pool); err != nil {
		return nil, err
	}
	return newMiddle, nil
}

// MoveLastToFrontOf rotates this page's last entry onto the head of
// the right sibling. The recipient's old dummy gets the parent
// separator (middleKey); the moved key is returned as the new parent
// separator.
func (p InternalPage) MoveLastToFrontOf(recipient InternalPage, middleKey []byte, pool *buffer.Pool) ([]byte, error) {
	last := p.Size() - 1
	newMiddle := copyKey(p.KeyAt(last))
	child := p.ValueAt(last)
	p.setSize(last)
	recipient.SetKeyAt(0, middleKey)
	recipient.shiftRight(0)
	recipient.setEntry(0, nil, child)
	recipient.setSize(recipient.Size() + 1)
	if err := recipient.reparentChildren(0, 1, pool); err != nil {
		return nil, err
	}
	return newMiddle, nil
}

// reparentChildren points count children starting at entry from back
// at this page.
func (p InternalPage) reparentChildren(from, count int32, pool *buffer.Pool) error {
	for i := from; i < from+count; i++ {
		childID := p.ValueAt(i)
		child, err := pool.FetchPage(childID)
		if err != nil {
			return err
		}
		treePage{child}.SetParentPageID(p.TreePageID())
		pool.UnpinPage(childID, true)
	}
	return nil
}
