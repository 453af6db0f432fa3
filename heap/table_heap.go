package heap

import (
	"fmt"

	"minirel/buffer"
	"minirel/common"
	"minirel/record"
)

// tailAppendThreshold is the chain length beyond which inserts skip the
// first-fit scan and go straight to the last page. First-fit over a
// long chain is quadratic in the number of pages.
const tailAppendThreshold = 500

// TableHeap is a doubly linked chain of slotted pages holding the
// tuples of one table. It owns only its page ids; every page access
// goes through the buffer pool.
type TableHeap struct {
	pool        *buffer.Pool
	schema      *record.Schema
	firstPageID common.PageID
	lastPageID  common.PageID
	totalPages  int
}

// NewTableHeap creates an empty heap with one fresh page.
func NewTableHeap(pool *buffer.Pool, schema *record.Schema) (*TableHeap, error) {
	page, err := pool.NewPage()
	if err != nil {
		return nil, fmt.Errorf("create table heap: %w", err)
	}
	tp := TablePage{page}
	tp.Init(page.ID(), common.InvalidPageID)
	pool.UnpinPage(page.ID(), true)
	return &TableHeap{
		pool:        pool,
		schema:      schema,
		firstPageID: page.ID(),
		lastPageID:  page.ID(),
		totalPages:  1,
	}, nil
}

// OpenTableHeap attaches to an existing heap rooted at firstPageID and
// walks the chain to recover the tail position.
func OpenTableHeap(pool *buffer.Pool, schema *record.Schema, firstPageID common.PageID) (*TableHeap, error) {
	h := &TableHeap{
		pool:        pool,
		schema:      schema,
		firstPageID: firstPageID,
		lastPageID:  firstPageID,
	}
	cur := firstPageID
	for cur != common.InvalidPageID {
		page, err := pool.FetchPage(cur)
		if err != nil {
			return nil, fmt.Errorf("open table heap: %w", err)
		}
		next := TablePage{page}.NextPageID()
		pool.UnpinPage(cur, false)
		h.lastPageID = cur
		h.totalPages++
		cur = next
	}
	return h, nil
}

// FirstPageID returns the root of the page chain.
func (h *TableHeap) FirstPageID() common.PageID {
	return h.firstPageID
}

// Schema returns the row schema of the table.
func (h *TableHeap) Schema() *record.Schema {
	return h.schema
}

// InsertRow stores a row and fills in its RowID. After the chain grows
// past the tail-append threshold, the first-fit scan is skipped and new
// rows go to the last page directly.
func (h *TableHeap) InsertRow(row *record.Row) error {
	tuple := make([]byte, row.SerializedSize())
	row.SerializeTo(tuple)
	if len(tuple) > MaxTupleSize {
		return common.ErrTupleTooLarge
	}

	startID := h.firstPageID
	if h.totalPages > tailAppendThreshold {
		startID = h.lastPageID
	}

	curID := startID
	for {
		page, err := h.pool.FetchPage(curID)
		if err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
		tp := TablePage{page}
		if slot, ok := tp.InsertTuple(tuple); ok {
			h.pool.UnpinPage(curID, true)
			row.RowID = common.RowID{PageID: curID, Slot: slot}
			return nil
		}
		next := tp.NextPageID()
		if next != common.InvalidPageID {
			h.pool.UnpinPage(curID, false)
			curID = next
			continue
		}

		// End of chain: grow it by one page and insert there.
		newPage, err := h.pool.NewPage()
		if err != nil {
			h.pool.UnpinPage(curID, false)
			return fmt.Errorf("insert row: %w", err)
		}
		np := TablePage{newPage}
		np.Init(newPage.ID(), curID)
		tp.SetNextPageID(newPage.ID())
		slot, ok := np.InsertTuple(tuple)
		h.pool.UnpinPage(curID, true)
		h.pool.UnpinPage(newPage.ID(), true)
		if !ok {
			return common.ErrTupleTooLarge
		}
		h.lastPageID = newPage.ID()
		h.totalPages++
		row.RowID = common.RowID{PageID: newPage.ID(), Slot: slot}
		return nil
	}
}

// GetRow reads the row at the given id.
func (h *TableHeap) GetRow(rid common.RowID) (*record.Row, error) {
	page, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return nil, fmt.Errorf("get row: %w", err)
	}
	defer h.pool.UnpinPage(rid.PageID, false)
	tuple, ok := TablePage{page}.GetTuple(rid.Slot)
	if !ok {
		return nil, common.ErrKeyNotFound
	}
	row, _ := record.DeserializeRow(tuple, h.schema)
	row.RowID = rid
	return row, nil
}

// MarkDelete tombstones the row at the given id.
func (h *TableHeap) MarkDelete(rid common.RowID) bool {
	page, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return false
	}
	ok := TablePage{page}.MarkDelete(rid.Slot)
	h.pool.UnpinPage(rid.PageID, ok)
	return ok
}

// RollbackDelete clears a tombstone set by MarkDelete.
func (h *TableHeap) RollbackDelete(rid common.RowID) bool {
	page, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return false
	}
	ok := TablePage{page}.RollbackDelete(rid.Slot)
	h.pool.UnpinPage(rid.PageID, ok)
	return ok
}

// ApplyDelete physically frees the row's slot.
func (h *TableHeap) ApplyDelete(rid common.RowID) bool {
	page, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return false
	}
	ok := TablePage{page}.ApplyDelete(rid.Slot)
	h.pool.UnpinPage(rid.PageID, ok)
	return ok
}

// UpdateRow replaces the row at rid in place. The new image must fit
// the existing slot; otherwise the update fails and the old row is
// untouched (callers may delete and re-insert instead).
func (h *TableHeap) UpdateRow(row *record.Row, rid common.RowID) error {
	tuple := make([]byte, row.SerializedSize())
	row.SerializeTo(tuple)
	page, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return fmt.Errorf("update row: %w", err)
	}
	ok := TablePage{page}.UpdateTuple(rid.Slot, tuple)
	h.pool.UnpinPage(rid.PageID, ok)
	if !ok {
		return common.ErrFailed
	}
	row.RowID = rid
	return nil
}

// Begin returns an iterator positioned before the first live row.
func (h *TableHeap) Begin() *Iterator {
	return &Iterator{heap: h}
}

// FreeHeap releases every page of the chain back to the disk manager.
// The heap is unusable afterwards.
func (h *TableHeap) FreeHeap() error {
	cur := h.firstPageID
	for cur != common.InvalidPageID {
		page, err := h.pool.FetchPage(cur)
		if err != nil {
			return fmt.Errorf("free heap: %w", err)
		}
		next := TablePage{page}.NextPageID()
		h.pool.UnpinPage(cur, false)
		if _, err := h.pool.DeletePage(cur); err != nil {
			return err
		}
		cur = next
	}
	h.firstPageID = common.InvalidPageID
	h.lastPageID = common.InvalidPageID
	h.totalPages = 0
	return nil
}
