package heap

import (
	"minirel/common"
	"minirel/record"
)

// Iterator walks every live row of a table heap in page-chain order.
// It materializes the current row; pages are pinned only inside Next.
type Iterator struct {
	heap    *TableHeap
	rid     common.RowID
	row     *record.Row
	err     error
	started bool
	done    bool
}

// Next advances to the next live row, reporting whether one exists.
func (it *Iterator) Next() bool {
	if it.err != nil || it.done {
		return false
	}
	if !it.started {
		it.started = true
		return it.seekFirst()
	}
	return it.advance()
}

// Row returns the row at the current position.
func (it *Iterator) Row() *record.Row {
	return it.row
}

// RowID returns the id of the current row.
func (it *Iterator) RowID() common.RowID {
	return it.rid
}

// Error returns any error encountered during iteration.
func (it *Iterator) Error() error {
	return it.err
}

func (it *Iterator) seekFirst() bool {
	curID := it.heap.firstPageID
	for curID != common.InvalidPageID {
		page, err := it.heap.pool.FetchPage(curID)
		if err != nil {
			it.err = err
			return false
		}
		tp := TablePage{page}
		slot, ok := tp.FirstTupleSlot()
		next := tp.NextPageID()
		it.heap.pool.UnpinPage(curID, false)
		if ok {
			return it.load(common.RowID{PageID: curID, Slot: slot})
		}
		curID = next
	}
	it.done = true
	return false
}

func (it *Iterator) advance() bool {
	curID := it.rid.PageID
	page, err := it.heap.pool.FetchPage(curID)
	if err != nil {
		it.err = err
		return false
	}
	tp := TablePage{page}
	if slot, ok := tp.NextTupleSlot(it.rid.Slot); ok {
		it.heap.pool.UnpinPage(curID, false)
		return it.load(common.RowID{PageID: curID, Slot: slot})
	}
	nextID := tp.NextPageID()
	it.heap.pool.UnpinPage(curID, false)

	for nextID != common.InvalidPageID {
		page, err := it.heap.pool.FetchPage(nextID)
		if err != nil {
			it.err = err
			return false
		}
		tp := TablePage{page}
		slot, ok := tp.FirstTupleSlot()
		following := tp.NextPageID()
		it.heap.pool.UnpinPage(nextID, false)
		if ok {
			return it.load(common.RowID{PageID: nextID, Slot: slot})
		}
		nextID = following
	}
	it.done = true
	return false
}

func (it *Iterator) load(rid common.RowID) bool {
	row, err := it.heap.GetRow(rid)
	if err != nil {
		it.err = err
		return false
	}
	it.rid = rid
	it.row = row
	return true
}
