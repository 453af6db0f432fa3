package index

import (
	"encoding/binary"

	"minirel/buffer"
	"minirel/common"
)

// B+ tree pages share a common header; the page type discriminant
// selects the leaf or internal payload interpretation.
//
// Header layout:
// [pageType(1)][pad(3)][size(4)][maxSize(4)][parentPageID(4)][pageID(4)][keySize(4)]
// Leaf pages add [nextPageID(4)].
const (
	pageTypeInternal = 1
	pageTypeLeaf     = 2

	offsetPageType = 0
	offsetSize     = 4
	offsetMaxSize  = 8
	offsetParent   = 12
	offsetSelf     = 16
	offsetKeySize  = 20

	treeHeaderSize = 24

	offsetNextLeaf = 24
	leafHeaderSize = 28

	// ridSize is the encoded width of a row id in a leaf entry.
	ridSize = 8
	// childSize is the encoded width of a child page id in an internal
	// entry.
	childSize = 4
)

// treePage is the typed view of the shared B+ tree page header.
type treePage struct {
	*buffer.Page
}

func (p treePage) initHeader(pageType byte, pageID, parentID common.PageID, keySize, maxSize int32) {
	d := p.Data()
	d[offsetPageType] = pageType
	binary.BigEndian.PutUint32(d[offsetSize:], 0)
	binary.BigEndian.PutUint32(d[offsetMaxSize:], uint32(maxSize))
	binary.BigEndian.PutUint32(d[offsetParent:], uint32(parentID))
	binary.BigEndian.PutUint32(d[offsetSelf:], uint32(pageID))
	binary.BigEndian.PutUint32(d[offsetKeySize:], uint32(keySize))
}

// IsLeaf reports whether the page is a leaf.
func (p treePage) IsLeaf() bool {
	return p.Data()[offsetPageType] == pageTypeLeaf
}

// Size returns the entry count. For internal pages this includes the
// leading dummy slot.
func (p treePage) Size() int32 {
	return int32(binary.BigEndian.Uint32(p.Data()[offsetSize:]))
}

func (p treePage) setSize(n int32) {
	binary.BigEndian.PutUint32(p.Data()[offsetSize:], uint32(n))
}

// MaxSize returns the entry capacity before a split is required.
func (p treePage) MaxSize() int32 {
	return int32(binary.BigEndian.Uint32(p.Data()[offsetMaxSize:]))
}

// MinSize returns the smallest legal entry count for a non-root page.
func (p treePage) MinSize() int32 {
	return (p.MaxSize() + 1) / 2
}

// ParentPageID returns the parent, or InvalidPageID for the root.
func (p treePage) ParentPageID() common.PageID {
	return common.PageID(int32(binary.BigEndian.Uint32(p.Data()[offsetParent:])))
}

// SetParentPageID records a new parent.
func (p treePage) SetParentPageID(id common.PageID) {
	binary.BigEndian.PutUint32(p.Data()[offsetParent:], uint32(id))
}

// TreePageID returns the page's own id as recorded in the image.
func (p treePage) TreePageID() common.PageID {
	return common.PageID(int32(binary.BigEndian.Uint32(p.Data()[offsetSelf:])))
}

// KeySize returns the fixed encoded key width of this tree.
func (p treePage) KeySize() int32 {
	return int32(binary.BigEndian.Uint32(p.Data()[offsetKeySize:]))
}

// IsRoot reports whether the page has no parent.
func (p treePage) IsRoot() bool {
	return p.ParentPageID() == common.InvalidPageID
}

// copyKey detaches a key from the page image so it survives subsequent
// page mutations and evictions.
func copyKey(key []byte) []byte {
	out := make([]byte, len(key))
	copy(out, key)
	return out
}
