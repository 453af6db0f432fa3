package index

import (
	"encoding/binary"

	"minirel/buffer"
	"minirel/common"
)

// RootsPage is the well-known directory page mapping index ids to
// their B+ tree root page ids. Layout:
// [count(4)][indexID(4) rootPageID(4)]...
type RootsPage struct {
	*buffer.Page
}

const rootsEntrySize = 8

// MaxIndexCount bounds the number of indexes one database can hold.
const MaxIndexCount = (common.PageSize - 4) / rootsEntrySize

func (p RootsPage) count() uint32 {
	return binary.BigEndian.Uint32(p.Data())
}

func (p RootsPage) setCount(n uint32) {
	binary.BigEndian.PutUint32(p.Data(), n)
}

func (p RootsPage) entry(i uint32) (common.IndexID, common.PageID) {
	off := 4 + i*rootsEntrySize
	id := common.IndexID(binary.BigEndian.Uint32(p.Data()[off:]))
	root := common.PageID(int32(binary.BigEndian.Uint32(p.Data()[off+4:])))
	return id, root
}

func (p RootsPage) setEntry(i uint32, id common.IndexID, root common.PageID) {
	off := 4 + i*rootsEntrySize
	binary.BigEndian.PutUint32(p.Data()[off:], uint32(id))
	binary.BigEndian.PutUint32(p.Data()[off+4:], uint32(root))
}

// RootID looks up the root of an index.
func (p RootsPage) RootID(id common.IndexID) (common.PageID, bool) {
	for i := uint32(0); i < p.count(); i++ {
		if eid, root := p.entry(i); eid == id {
			return root, true
		}
	}
	return common.InvalidPageID, false
}

// SetRootID records the root of an index, creating the entry on first
// use. Reports false when the directory is full.
func (p RootsPage) SetRootID(id common.IndexID, root common.PageID) bool {
	for i := uint32(0); i < p.count(); i++ {
		if eid, _ := p.entry(i); eid == id {
			p.setEntry(i, id, root)
			return true
		}
	}
	n := p.count()
	if n >= MaxIndexCount {
		return false
	}
	p.setEntry(n, id, root)
	p.setCount(n + 1)
	return true
}

// DeleteRootID drops an index's entry.
func (p RootsPage) DeleteRootID(id common.IndexID) bool {
	n := p.count()
	for i := uint32(0); i < n; i++ {
		if eid, _ := p.entry(i); eid == id {
			if i < n-1 {
				lastID, lastRoot := p.entry(n - 1)
				p.setEntry(i, lastID, lastRoot)
			}
			p.setCount(n - 1)
			return true
		}
	}
	return false
}
