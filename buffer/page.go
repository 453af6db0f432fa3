package buffer

import "minirel/common"

// Page is a fixed-size block resident in a buffer pool frame. The pool
// is the only owner; every other component borrows a page between a
// matched FetchPage/UnpinPage pair.
type Page struct {
	id       common.PageID
	data     [common.PageSize]byte
	pinCount int
	dirty    bool
}

// ID returns the logical page id, or InvalidPageID for a free frame.
func (p *Page) ID() common.PageID {
	return p.id
}

// Data returns the raw page image. Mutating it requires unpinning with
// dirty=true afterwards.
func (p *Page) Data() []byte {
	return p.data[:]
}

// PinCount returns the number of outstanding borrows.
func (p *Page) PinCount() int {
	return p.pinCount
}

// IsDirty reports whether the in-memory image differs from disk.
func (p *Page) IsDirty() bool {
	return p.dirty
}

// reset clears the frame for reuse by a different logical page.
func (p *Page) reset() {
	p.id = common.InvalidPageID
	p.pinCount = 0
	p.dirty = false
	for i := range p.data {
		p.data[i] = 0
	}
}
