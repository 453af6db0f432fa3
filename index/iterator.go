package index

import (
	"minirel/buffer"
	"minirel/common"
)

// Iterator is a forward cursor over the leaf chain. It keeps its
// current leaf pinned; Close releases the pin. Holding an iterator
// across structural changes to the same tree is not allowed.
type Iterator struct {
	pool      *buffer.Pool
	page      *buffer.Page // pinned current leaf, nil when exhausted
	index     int32
	err       error
	firstCall bool
}

func newIterator(pool *buffer.Pool, page *buffer.Page, index int32) *Iterator {
	return &Iterator{pool: pool, page: page, index: index, firstCall: true}
}

// Next advances to the next entry, reporting whether one exists. The
// first call positions the iterator on its starting entry.
func (it *Iterator) Next() bool {
	if it.err != nil || it.page == nil {
		return false
	}
	if it.firstCall {
		it.firstCall = false
	} else {
		it.index++
	}
	leaf := LeafPage{treePage{it.page}}
	for it.index >= leaf.Size() {
		next := leaf.NextPageID()
		it.pool.UnpinPage(it.page.ID(), false)
		it.page = nil
		if next == common.InvalidPageID {
			return false
		}
		page, err := it.pool.FetchPage(next)
		if err != nil {
			it.err = err
			return false
		}
		it.page = page
		it.index = 0
		leaf = LeafPage{treePage{page}}
	}
	return true
}

// Key returns the current entry's encoded key.
func (it *Iterator) Key() []byte {
	if it.page == nil {
		return nil
	}
	leaf := LeafPage{treePage{it.page}}
	return copyKey(leaf.KeyAt(it.index))
}

// Value returns the current entry's row id.
func (it *Iterator) Value() common.RowID {
	if it.page == nil {
		return common.InvalidRowID
	}
	return LeafPage{treePage{it.page}}.ValueAt(it.index)
}

// Error returns any error encountered during iteration.
func (it *Iterator) Error() error {
	return it.err
}

// Close releases the pin on the current leaf.
func (it *Iterator) Close() {
	if it.page != nil {
		it.pool.UnpinPage(it.page.ID(), false)
		it.page = nil
	}
}
