package index

import (
	"fmt"

	"minirel/buffer"
	"minirel/common"
	"minirel/record"
)

// BTree is a durable ordered map from encoded keys to row ids. It owns
// only its root page id; every page access goes through the buffer
// pool, and every structural change keeps each page self-consistent
// before it is unpinned dirty.
type BTree struct {
	indexID         common.IndexID
	pool            *buffer.Pool
	cmp             record.Comparator
	keySize         int32
	leafMaxSize     int32
	internalMaxSize int32
	rootPageID      common.PageID
}

// DefaultMaxSize computes the entry capacity of a page for the given
// encoded key width. One entry slot is kept in reserve because an
// overflowing page holds MaxSize+1 entries until it is split.
func DefaultMaxSize(keySize int, leaf bool) int32 {
	if leaf {
		return int32((common.PageSize-leafHeaderSize)/(keySize+ridSize)) - 1
	}
	return int32((common.PageSize-treeHeaderSize)/(keySize+childSize)) - 1
}

// NewBTree opens the tree for an index, loading its root from the
// index-roots directory page. Pass zero sizes to derive capacities
// from the key width.
func NewBTree(indexID common.IndexID, pool *buffer.Pool, cmp record.Comparator, keySize int, leafMaxSize, internalMaxSize int32) (*BTree, error) {
	if leafMaxSize == 0 {
		leafMaxSize = DefaultMaxSize(keySize, true)
	}
	if internalMaxSize == 0 {
		internalMaxSize = DefaultMaxSize(keySize, false)
	}
	t := &BTree{
		indexID:         indexID,
		pool:            pool,
		cmp:             cmp,
		keySize:         int32(keySize),
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		rootPageID:      common.InvalidPageID,
	}
	page, err := pool.FetchPage(common.IndexRootsPageID)
	if err != nil {
		return nil, fmt.Errorf("open index %d: %w", indexID, err)
	}
	if root, ok := (RootsPage{page}).RootID(indexID); ok {
		t.rootPageID = root
	}
	pool.UnpinPage(common.IndexRootsPageID, false)
	return t, nil
}

// RootPageID returns the current root, or InvalidPageID when empty.
func (t *BTree) RootPageID() common.PageID {
	return t.rootPageID
}

// IsEmpty reports whether the tree holds no entries.
func (t *BTree) IsEmpty() bool {
	return t.rootPageID == common.InvalidPageID
}

// updateRootPageID persists the root in the index-roots directory.
// Called on every root change.
func (t *BTree) updateRootPageID() error {
	page, err := t.pool.FetchPage(common.IndexRootsPageID)
	if err != nil {
		return err
	}
	ok := (RootsPage{page}).SetRootID(t.indexID, t.rootPageID)
	t.pool.UnpinPage(common.IndexRootsPageID, ok)
	if !ok {
		return fmt.Errorf("index roots directory full: %w", common.ErrFailed)
	}
	return nil
}

// findLeafPage descends from the root to the leaf responsible for key
// (or the leftmost leaf) and returns it pinned.
func (t *BTree) findLeafPage(key []byte, leftMost bool) (*buffer.Page, error) {
	page, err := t.pool.FetchPage(t.rootPageID)
	if err != nil {
		return nil, err
	}
	for !(treePage{page}).IsLeaf() {
		node := InternalPage{treePage{page}}
		var childID common.PageID
		if leftMost {
			childID = node.ValueAt(0)
		} else {
			childID = node.Lookup(key, t.cmp)
		}
		child, err := t.pool.FetchPage(childID)
		if err != nil {
			t.pool.UnpinPage(page.ID(), false)
			return nil, err
		}
		t.pool.UnpinPage(page.ID(), false)
		page = child
	}
	return page, nil
}

// GetValue performs a point lookup. Returns ErrKeyNotFound when the
// key is absent.
func (t *BTree) GetValue(key []byte) (common.RowID, error) {
	if t.IsEmpty() {
		return common.InvalidRowID, common.ErrKeyNotFound
	}
	page, err := t.findLeafPage(key, false)
	if err != nil {
		return common.InvalidRowID, err
	}
	leaf := LeafPage{treePage{page}}
	rid, ok := leaf.Lookup(key, t.cmp)
	t.pool.UnpinPage(page.ID(), false)
	if !ok {
		return common.InvalidRowID, common.ErrKeyNotFound
	}
	return rid, nil
}

// Insert adds a (key, row id) entry. Keys are unique; inserting a
// present key fails with ErrUniqueKeyCollision and leaves the tree
// untouched.
func (t *BTree) Insert(key []byte, rid common.RowID) error {
	if t.IsEmpty() {
		return t.startNewTree(key, rid)
	}
	page, err := t.findLeafPage(key, false)
	if err != nil {
		return err
	}
	leaf := LeafPage{treePage{page}}
	if _, ok := leaf.Lookup(key, t.cmp); ok {
		t.pool.UnpinPage(page.ID(), false)
		return common.ErrUniqueKeyCollision
	}
	leaf.Insert(key, rid, t.cmp)
	if leaf.Size() > leaf.MaxSize() {
		if err := t.splitLeaf(leaf); err != nil {
			t.pool.UnpinPage(page.ID(), true)
			return err
		}
	}
	t.pool.UnpinPage(page.ID(), true)
	return nil
}

// startNewTree creates the first leaf, which is also the root.
func (t *BTree) startNewTree(key []byte, rid common.RowID) error {
	page, err := t.pool.NewPage()
	if err != nil {
		return fmt.Errorf("b+ tree out of memory: %w", err)
	}
	leaf := LeafPage{treePage{page}}
	leaf.Init(page.ID(), common.InvalidPageID, t.keySize, t.leafMaxSize)
	leaf.Insert(key, rid, t.cmp)
	t.rootPageID = page.ID()
	err = t.updateRootPageID()
	t.pool.UnpinPage(page.ID(), true)
	return err
}

// splitLeaf moves the upper half of an overflowing leaf into a new
// right sibling and installs the separator in the parent.
func (t *BTree) splitLeaf(leaf LeafPage) error {
	page, err := t.pool.NewPage()
	if err != nil {
		return fmt.Errorf("b+ tree out of memory: %w", err)
	}
	sibling := LeafPage{treePage{page}}
	sibling.Init(page.ID(), leaf.ParentPageID(), t.keySize, t.leafMaxSize)
	leaf.MoveHalfTo(sibling)
	sibling.SetNextPageID(leaf.NextPageID())
	leaf.SetNextPageID(sibling.TreePageID())

	sep := copyKey(sibling.KeyAt(0))
	err = t.insertIntoParent(leaf.treePage, sep, sibling.treePage)
	t.pool.UnpinPage(page.ID(), true)
	return err
}

// splitInternal moves the upper half of an overflowing internal page
// into a new sibling and installs the pushed-up separator in the
// parent.
func (t *BTree) splitInternal(node InternalPage) error {
	page, err := t.pool.NewPage()
	if err != nil {
		return fmt.Errorf("b+ tree out of memory: %w", err)
	}
	sibling := InternalPage{treePage{page}}
	sibling.Init(page.ID(), node.ParentPageID(), t.keySize, t.internalMaxSize)
	if err := node.MoveHalfTo(sibling, t.pool); err != nil {
		t.pool.UnpinPage(page.ID(), true)
		return err
	}

	// The first moved key sits in the sibling's dummy slot; it rises
	// into the parent as the separator between the two halves.
	sep := copyKey(sibling.KeyAt(0))
	err = t.insertIntoParent(node.treePage, sep, sibling.treePage)
	t.pool.UnpinPage(page.ID(), true)
	return err
}

// insertIntoParent links a freshly split-off sibling into the parent
// of the old node, splitting upward as needed. Both pages stay pinned
// by the caller.
func (t *BTree) insertIntoParent(old treePage, key []byte, sibling treePage) error {
	if old.IsRoot() {
		page, err := t.pool.NewPage()
		if err != nil {
			return fmt.Errorf("b+ tree out of memory: %w", err)
		}
		root := InternalPage{treePage{page}}
		root.Init(page.ID(), common.InvalidPageID, t.keySize, t.internalMaxSize)
		root.PopulateNewRoot(old.TreePageID(), key, sibling.TreePageID())
		old.SetParentPageID(page.ID())
		sibling.SetParentPageID(page.ID())
		t.rootPageID = page.ID()
		err = t.updateRootPageID()
		t.pool.UnpinPage(page.ID(), true)
		return err
	}

	parentID := old.ParentPageID()
	page, err := t.pool.FetchPage(parentID)
	if err != nil {
		return err
	}
	parent := InternalPage{treePage{page}}
	sibling.SetParentPageID(parentID)
	parent.InsertNodeAfter(old.TreePageID(), key, sibling.TreePageID())
	if parent.Size() > parent.MaxSize() {
		if err := t.splitInternal(parent); err != nil {
			t.pool.UnpinPage(parentID, true)
			return err
		}
	}
	t.pool.UnpinPage(parentID, true)
	return nil
}

// Remove deletes the entry for key. Removing an absent key is a no-op.
func (t *BTree) Remove(key []byte) error {
	if t.IsEmpty() {
		return nil
	}
	page, err := t.findLeafPage(key, false)
	if err != nil {
		return err
	}
	leaf := LeafPage{treePage{page}}
	if !leaf.RemoveRecord(key, t.cmp) {
		t.pool.UnpinPage(page.ID(), false)
		return nil
	}
	return t.coalesceOrRedistribute(page)
}

// coalesceOrRedistribute restores the size invariant of a node after a
// removal. It takes ownership of the pinned page and unpins it on
// every path.
func (t *BTree) coalesceOrRedistribute(page *buffer.Page) error {
	node := treePage{page}
	if node.IsRoot() {
		return t.adjustRoot(page)
	}

	// Refresh the parent separator when a leaf's minimum changed; an
	// internal node's first real key is not its subtree minimum, so
	// only leaves propagate here.
	parentID := node.ParentPageID()
	parentPage, err := t.pool.FetchPage(parentID)
	if err != nil {
		t.pool.UnpinPage(page.ID(), true)
		return err
	}
	parent := InternalPage{treePage{parentPage}}
	idx := parent.ValueIndex(node.TreePageID())
	parentDirty := false
	if node.IsLeaf() && idx > 0 && node.Size() > 0 {
		parent.SetKeyAt(idx, LeafPage{node}.KeyAt(0))
		parentDirty = true
	}

	if node.Size() >= node.MinSize() {
		t.pool.UnpinPage(parentID, parentDirty)
		t.pool.UnpinPage(page.ID(), true)
		return nil
	}

	// Pick a neighbor through the parent's child array: the right one
	// for the first child, the left one for the last, and for middle
	// children whichever side admits a redistribution.
	leftIdx, rightIdx := idx-1, idx+1
	var siblingIdx int32
	switch {
	case idx == 0:
		siblingIdx = rightIdx
	case idx == parent.Size()-1:
		siblingIdx = leftIdx
	default:
		siblingIdx = leftIdx
		leftPage, err := t.pool.FetchPage(parent.ValueAt(leftIdx))
		if err != nil {
			t.pool.UnpinPage(parentID, parentDirty)
			t.pool.UnpinPage(page.ID(), true)
			return err
		}
		leftSize := treePage{leftPage}.Size()
		t.pool.UnpinPage(leftPage.ID(), false)
		if node.Size()+leftSize <= node.MaxSize() {
			// Left would coalesce; prefer the right side if it can
			// redistribute instead.
			rightPage, err := t.pool.FetchPage(parent.ValueAt(rightIdx))
			if err != nil {
				t.pool.UnpinPage(parentID, parentDirty)
				t.pool.UnpinPage(page.ID(), true)
				return err
			}
			rightSize := treePage{rightPage}.Size()
			t.pool.UnpinPage(rightPage.ID(), false)
			if node.Size()+rightSize > node.MaxSize() {
				siblingIdx = rightIdx
			}
		}
	}

	siblingID := parent.ValueAt(siblingIdx)
	siblingPage, err := t.pool.FetchPage(siblingID)
	if err != nil {
		t.pool.UnpinPage(parentID, parentDirty)
		t.pool.UnpinPage(page.ID(), true)
		return err
	}
	sibling := treePage{siblingPage}

	if node.Size()+sibling.Size() > node.MaxSize() {
		err = t.redistribute(node, sibling, parent, idx, siblingIdx)
		t.pool.UnpinPage(siblingID, true)
		t.pool.UnpinPage(parentID, true)
		t.pool.UnpinPage(page.ID(), true)
		return err
	}
	return t.coalesce(node, sibling, parent, idx, siblingIdx)
}

// redistribute moves a single entry between node and its sibling and
// rotates the separator through the parent.
func (t *BTree) redistribute(node, sibling treePage, parent InternalPage, idx, siblingIdx int32) error {
	siblingIsRight := siblingIdx > idx
	if node.IsLeaf() {
		leaf, neighbor := LeafPage{node}, LeafPage{sibling}
		if siblingIsRight {
			neighbor.MoveFirstToEndOf(leaf)
			parent.SetKeyAt(siblingIdx, neighbor.KeyAt(0))
		} else {
			neighbor.MoveLastToFrontOf(leaf)
			parent.SetKeyAt(idx, leaf.KeyAt(0))
		}
		return nil
	}

	inode, neighbor := InternalPage{node}, InternalPage{sibling}
	if siblingIsRight {
		middle := copyKey(parent.KeyAt(siblingIdx))
		newMiddle, err := neighbor.MoveFirstToEndOf(inode, middle, t.pool)
		if err != nil {
			return err
		}
		parent.SetKeyAt(siblingIdx, newMiddle)
	} else {
		middle := copyKey(parent.KeyAt(idx))
		newMiddle, err := neighbor.MoveLastToFrontOf(inode, middle, t.pool)
		if err != nil {
			return err
		}
		parent.SetKeyAt(idx, newMiddle)
	}
	return nil
}

// coalesce merges node with its sibling into the left page of the
// pair, deletes the emptied right page, removes the separator from the
// parent, and recurses upward. It unpins node, sibling, and parent.
func (t *BTree) coalesce(node, sibling treePage, parent InternalPage, idx, siblingIdx int32) error {
	left, right := node, sibling
	leftIdx := idx
	if siblingIdx < idx {
		left, right = sibling, node
		leftIdx = siblingIdx
	}
	rightIdx := leftIdx + 1

	if node.IsLeaf() {
		l, r := LeafPage{left}, LeafPage{right}
		r.MoveAllTo(l)
		l.SetNextPageID(r.NextPageID())
	} else {
		l, r := InternalPage{left}, InternalPage{right}
		if err := r.MoveAllTo(l, parent.KeyAt(rightIdx), t.pool); err != nil {
			t.pool.UnpinPage(left.ID(), true)
			t.pool.UnpinPage(right.ID(), true)
			t.pool.UnpinPage(parent.ID(), true)
			return err
		}
	}
	parent.Remove(rightIdx)

	rightID := right.ID()
	t.pool.UnpinPage(left.ID(), true)
	t.pool.UnpinPage(rightID, true)
	if _, err := t.pool.DeletePage(rightID); err != nil {
		t.pool.UnpinPage(parent.ID(), true)
		return err
	}
	// The parent lost an entry; restore its invariant next.
	return t.coalesceOrRedistribute(parent.Page)
}

// adjustRoot collapses an under-filled root: an empty leaf root empties
// the tree, an internal root with one child promotes that child. Takes
// ownership of the pinned root page.
func (t *BTree) adjustRoot(page *buffer.Page) error {
	node := treePage{page}
	switch {
	case node.IsLeaf() && node.Size() == 0:
		rootID := page.ID()
		t.pool.UnpinPage(rootID, true)
		if _, err := t.pool.DeletePage(rootID); err != nil {
			return err
		}
		t.rootPageID = common.InvalidPageID
		return t.updateRootPageID()

	case !node.IsLeaf() && node.Size() == 1:
		root := InternalPage{node}
		childID := root.RemoveAndReturnOnlyChild()
		oldRootID := page.ID()
		t.pool.UnpinPage(oldRootID, true)
		if _, err := t.pool.DeletePage(oldRootID); err != nil {
			return err
		}
		child, err := t.pool.FetchPage(childID)
		if err != nil {
			return err
		}
		treePage{child}.SetParentPageID(common.InvalidPageID)
		t.pool.UnpinPage(childID, true)
		t.rootPageID = childID
		return t.updateRootPageID()
	}
	t.pool.UnpinPage(page.ID(), true)
	return nil
}

// Destroy drains the tree by removing the first key until it is empty.
func (t *BTree) Destroy() error {
	for !t.IsEmpty() {
		page, err := t.findLeafPage(nil, true)
		if err != nil {
			return err
		}
		leaf := LeafPage{treePage{page}}
		key := copyKey(leaf.KeyAt(0))
		t.pool.UnpinPage(page.ID(), false)
		if err := t.Remove(key); err != nil {
			return err
		}
	}
	return nil
}

// Begin returns an iterator positioned before the first entry.
func (t *BTree) Begin() (*Iterator, error) {
	if t.IsEmpty() {
		return &Iterator{pool: t.pool}, nil
	}
	page, err := t.findLeafPage(nil, true)
	if err != nil {
		return nil, err
	}
	return newIterator(t.pool, page, 0), nil
}

// BeginAt returns an iterator positioned before the first entry whose
// key is >= the given key.
func (t *BTree) BeginAt(key []byte) (*Iterator, error) {
	if t.IsEmpty() {
		return &Iterator{pool: t.pool}, nil
	}
	page, err := t.findLeafPage(key, false)
	if err != nil {
		return nil, err
	}
	leaf := LeafPage{treePage{page}}
	return newIterator(t.pool, page, leaf.KeyIndex(key, t.cmp)), nil
}
