package buffer

import (
	"fmt"

	"minirel/common"
	"minirel/disk"
)

// Pool is a fixed-size cache of pages over the disk manager. It owns
// every resident page, enforces at-most-one resident copy per logical
// id, and coordinates pin counts, dirty flags, and eviction.
//
// Frame state invariant: every frame is in exactly one of three states:
// pinned-and-mapped, unpinned-and-mapped (a replacer candidate), or on
// the free list.
type Pool struct {
	frames    []Page
	pageTable map[common.PageID]common.FrameID
	freeList  []common.FrameID
	replacer  Replacer
	diskMgr   *disk.Manager
}

// NewPool creates a buffer pool with the given number of frames. A nil
// replacer selects the LRU policy.
func NewPool(poolSize int, diskMgr *disk.Manager, replacer Replacer) *Pool {
	if replacer == nil {
		replacer = NewLRUReplacer(poolSize)
	}
	p := &Pool{
		frames:    make([]Page, poolSize),
		pageTable: make(map[common.PageID]common.FrameID, poolSize),
		freeList:  make([]common.FrameID, 0, poolSize),
		replacer:  replacer,
		diskMgr:   diskMgr,
	}
	for i := range p.frames {
		p.frames[i].id = common.InvalidPageID
		p.freeList = append(p.freeList, common.FrameID(i))
	}
	return p
}

// FetchPage returns the resident page for a logical id, reading it from
// disk if necessary. The returned page is pinned; the caller must
// balance with UnpinPage. Returns ErrNoFreeFrame when every frame is
// pinned.
func (p *Pool) FetchPage(pageID common.PageID) (*Page, error) {
	if pageID < 0 {
		return nil, common.ErrInvalidPage
	}
	if frame, ok := p.pageTable[pageID]; ok {
		page := &p.frames[frame]
		page.pinCount++
		p.replacer.Pin(frame)
		return page, nil
	}

	frame, err := p.acquireFrame()
	if err != nil {
		return nil, err
	}
	page := &p.frames[frame]
	if err := p.diskMgr.ReadPage(pageID, page.Data()); err != nil {
		p.freeList = append(p.freeList, frame)
		return nil, err
	}
	page.id = pageID
	page.pinCount = 1
	page.dirty = false
	p.pageTable[pageID] = frame
	return page, nil
}

// NewPage allocates a fresh logical page on disk and returns it zeroed
// and pinned.
func (p *Pool) NewPage() (*Page, error) {
	frame, err := p.acquireFrame()
	if err != nil {
		return nil, err
	}
	pageID, err := p.diskMgr.AllocatePage()
	if err != nil {
		p.freeList = append(p.freeList, frame)
		return nil, err
	}
	page := &p.frames[frame]
	page.reset()
	page.id = pageID
	page.pinCount = 1
	p.pageTable[pageID] = frame
	return page, nil
}

// UnpinPage releases one borrow of a resident page, folding the
// caller's dirty flag into the page. The frame becomes a replacer
// candidate when its pin count reaches zero. Reports false if the page
// is not resident.
func (p *Pool) UnpinPage(pageID common.PageID, isDirty bool) bool {
	frame, ok := p.pageTable[pageID]
	if !ok {
		return false
	}
	page := &p.frames[frame]
	if isDirty {
		page.dirty = true
	}
	if page.pinCount > 0 {
		page.pinCount--
	}
	if page.pinCount == 0 {
		p.replacer.Unpin(frame)
	}
	return true
}

// FlushPage writes a resident page to disk unconditionally and clears
// its dirty flag. Reports false if the page is not resident.
func (p *Pool) FlushPage(pageID common.PageID) bool {
	frame, ok := p.pageTable[pageID]
	if !ok {
		return false
	}
	page := &p.frames[frame]
	if err := p.diskMgr.WritePage(pageID, page.Data()); err != nil {
		fmt.Printf("error flushing page %d: %v\n", pageID, err)
		return false
	}
	page.dirty = false
	return true
}

// DeletePage removes a page from the pool and deallocates it on disk.
// Reports false when the page is resident with a nonzero pin count.
func (p *Pool) DeletePage(pageID common.PageID) (bool, error) {
	frame, ok := p.pageTable[pageID]
	if !ok {
		return true, p.diskMgr.DeallocatePage(pageID)
	}
	page := &p.frames[frame]
	if page.pinCount != 0 {
		return false, nil
	}
	if err := p.diskMgr.DeallocatePage(pageID); err != nil {
		return false, err
	}
	delete(p.pageTable, pageID)
	p.replacer.Pin(frame)
	page.reset()
	p.freeList = append(p.freeList, frame)
	return true, nil
}

// FlushAll writes every resident page to disk.
func (p *Pool) FlushAll() {
	for pageID := range p.pageTable {
		p.FlushPage(pageID)
	}
}

// Close flushes all resident pages. The disk manager is closed by its
// owner, not here.
func (p *Pool) Close() {
	p.FlushAll()
}

// CheckAllUnpinned reports whether no frame holds a pinned page. Used
// by tests at the boundary of public operations.
func (p *Pool) CheckAllUnpinned() bool {
	ok := true
	for i := range p.frames {
		if p.frames[i].pinCount != 0 {
			fmt.Printf("page %d pin count: %d\n", p.frames[i].id, p.frames[i].pinCount)
			ok = false
		}
	}
	return ok
}

// FreeSize returns the number of frames available for new pages (free
// frames plus replacer candidates).
func (p *Pool) FreeSize() int {
	return len(p.freeList) + p.replacer.Size()
}

// acquireFrame obtains a frame for a new resident page: free list
// first, then a replacer victim (written back if dirty).
func (p *Pool) acquireFrame() (common.FrameID, error) {
	if n := len(p.freeList); n > 0 {
		frame := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return frame, nil
	}
	frame, ok := p.replacer.Victim()
	if !ok {
		return 0, common.ErrNoFreeFrame
	}
	victim := &p.frames[frame]
	if victim.dirty {
		if err := p.diskMgr.WritePage(victim.id, victim.Data()); err != nil {
			return 0, err
		}
		victim.dirty = false
	}
	delete(p.pageTable, victim.id)
	return frame, nil
}
