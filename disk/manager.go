package disk

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ncw/directio"

	"minirel/common"
)

// File is the storage the manager reads and writes pages against.
// *os.File satisfies it, as does an in-memory file used as a virtual
// disk in tests.
type File interface {
	io.ReaderAt
	io.WriterAt
}

// Config holds configuration for the disk manager
type Config struct {
	Path     string
	DirectIO bool // open the file with O_DIRECT and stage I/O in aligned blocks
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig(path string) Config {
	return Config{Path: path}
}

// Manager owns the database file. It maps logical page ids onto the
// physical layout (meta page, then repeating extents of one bitmap page
// plus BitmapSize data pages) and tracks allocation in the bitmaps.
type Manager struct {
	file    File
	meta    *FileMeta
	bitmaps map[common.PageID]*BitmapPage // keyed by physical page id

	// tailExtent is a hint: the first extent believed to have free
	// pages. Allocation scans forward from it, deallocation rewinds it.
	tailExtent uint32

	aligned []byte // staging block for direct I/O, nil otherwise
	closed  bool
}

// NewManager opens or creates the database file at cfg.Path.
func NewManager(cfg Config) (*Manager, error) {
	var (
		f   *os.File
		err error
	)
	if cfg.DirectIO {
		f, err = directio.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE, 0644)
	} else {
		f, err = os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE, 0644)
	}
	if err != nil {
		return nil, fmt.Errorf("open database file: %w", err)
	}
	m := NewManagerWithFile(f)
	if cfg.DirectIO {
		m.aligned = directio.AlignedBlock(common.PageSize)
	}
	return m, nil
}

// NewManagerWithFile builds a manager over an already open file. Tests
// pass a memory-backed file here to get a virtual disk.
func NewManagerWithFile(f File) *Manager {
	m := &Manager{
		file:    f,
		bitmaps: make(map[common.PageID]*BitmapPage),
	}
	var buf [common.PageSize]byte
	m.readPhysical(0, buf[:])
	m.meta = LoadFileMeta(buf[:])
	m.tailExtent = m.meta.NumExtents
	for i := uint32(0); i < m.meta.NumExtents; i++ {
		if m.meta.ExtentUsedPage[i] < BitmapSize {
			m.tailExtent = i
			break
		}
	}
	return m
}

// mapPageID translates a logical page id to its physical position,
// skipping the meta page and the interleaved bitmap pages.
func mapPageID(logical common.PageID) common.PageID {
	return logical/BitmapSize + 2 + logical
}

// bitmapPhysicalID returns the physical id of the bitmap page of the
// given extent.
func bitmapPhysicalID(extent uint32) common.PageID {
	return common.PageID(extent)*(BitmapSize+1) + 1
}

// PhysicalToLogical is the inverse of the id mapping. Meta and bitmap
// physical pages have no logical id and map to InvalidPageID.
func PhysicalToLogical(physical common.PageID) common.PageID {
	if physical == 0 || (physical-1)%(BitmapSize+1) == 0 {
		return common.InvalidPageID
	}
	return physical - (physical-1)/(BitmapSize+1) - 2
}

// ReadPage reads a logical page into buf. Reads beyond the end of the
// file yield zeroed bytes; an unallocated page is all zeros.
func (m *Manager) ReadPage(logical common.PageID, buf []byte) error {
	if logical < 0 {
		return common.ErrInvalidPage
	}
	return m.readPhysical(mapPageID(logical), buf)
}

// WritePage writes a logical page from buf.
func (m *Manager) WritePage(logical common.PageID, buf []byte) error {
	if logical < 0 {
		return common.ErrInvalidPage
	}
	return m.writePhysical(mapPageID(logical), buf)
}

// AllocatePage reserves a free logical page and returns its id. A new
// extent is appended when every existing extent is full.
func (m *Manager) AllocatePage() (common.PageID, error) {
	if m.meta.NumAllocatedPages >= m.meta.NumExtents*BitmapSize {
		if m.meta.NumExtents >= MaxExtents {
			return common.InvalidPageID, fmt.Errorf("allocate page: %w: file is at maximum size", common.ErrFailed)
		}
		extent := m.meta.NumExtents
		bp := NewBitmapPage()
		if err := m.writePhysical(bitmapPhysicalID(extent), bp.Data()); err != nil {
			return common.InvalidPageID, err
		}
		m.bitmaps[bitmapPhysicalID(extent)] = bp
		m.meta.NumExtents++
		m.meta.ExtentUsedPage = append(m.meta.ExtentUsedPage, 0)
		m.tailExtent = extent
	}
	for m.tailExtent < m.meta.NumExtents && m.meta.ExtentUsedPage[m.tailExtent] >= BitmapSize {
		m.tailExtent++
	}

	bp, err := m.bitmapForExtent(m.tailExtent)
	if err != nil {
		return common.InvalidPageID, err
	}
	off, ok := bp.Allocate()
	if !ok {
		return common.InvalidPageID, fmt.Errorf("allocate page: %w: bitmap full but meta disagrees", common.ErrFailed)
	}
	m.meta.ExtentUsedPage[m.tailExtent]++
	m.meta.NumAllocatedPages++
	if err := m.flushAllocationState(m.tailExtent, bp); err != nil {
		return common.InvalidPageID, err
	}
	return common.PageID(m.tailExtent)*BitmapSize + common.PageID(off), nil
}

// DeallocatePage returns a logical page to the free pool. Deallocating
// an already free page is a no-op.
func (m *Manager) DeallocatePage(logical common.PageID) error {
	if logical < 0 {
		return common.ErrInvalidPage
	}
	extent := uint32(logical) / BitmapSize
	bp, err := m.bitmapForExtent(extent)
	if err != nil {
		return err
	}
	if !bp.Deallocate(uint32(logical) % BitmapSize) {
		return nil
	}
	m.meta.NumAllocatedPages--
	m.meta.ExtentUsedPage[extent]--
	if m.tailExtent > extent {
		m.tailExtent = extent
	}
	return m.flushAllocationState(extent, bp)
}

// IsPageFree reports whether the logical page is unallocated.
func (m *Manager) IsPageFree(logical common.PageID) (bool, error) {
	if logical < 0 {
		return false, common.ErrInvalidPage
	}
	bp, err := m.bitmapForExtent(uint32(logical) / BitmapSize)
	if err != nil {
		return false, err
	}
	return bp.IsFree(uint32(logical) % BitmapSize), nil
}

// NumAllocatedPages returns the global allocation count.
func (m *Manager) NumAllocatedPages() uint32 {
	return m.meta.NumAllocatedPages
}

// Close flushes allocation metadata and closes the underlying file if
// it is closable.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	if err := m.flushMeta(); err != nil {
		return err
	}
	for phys, bp := range m.bitmaps {
		if err := m.writePhysical(phys, bp.Data()); err != nil {
			return err
		}
	}
	if s, ok := m.file.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			return fmt.Errorf("sync database file: %w", err)
		}
	}
	if c, ok := m.file.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// flushAllocationState persists the meta page and one bitmap page after
// an allocate/deallocate, keeping the file reopenable at any point.
func (m *Manager) flushAllocationState(extent uint32, bp *BitmapPage) error {
	if err := m.writePhysical(bitmapPhysicalID(extent), bp.Data()); err != nil {
		return err
	}
	return m.flushMeta()
}

func (m *Manager) flushMeta() error {
	var buf [common.PageSize]byte
	m.meta.Serialize(buf[:])
	return m.writePhysical(0, buf[:])
}

func (m *Manager) bitmapForExtent(extent uint32) (*BitmapPage, error) {
	phys := bitmapPhysicalID(extent)
	if bp, ok := m.bitmaps[phys]; ok {
		return bp, nil
	}
	var buf [common.PageSize]byte
	if err := m.readPhysical(phys, buf[:]); err != nil {
		return nil, err
	}
	bp := LoadBitmapPage(buf[:])
	m.bitmaps[phys] = bp
	return bp, nil
}

func (m *Manager) readPhysical(physical common.PageID, buf []byte) error {
	off := int64(physical) * common.PageSize
	dst := buf
	if m.aligned != nil {
		dst = m.aligned
	}
	n, err := m.file.ReadAt(dst, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read physical page %d: %w", physical, err)
	}
	// Short reads past the end of the file are legal and zero-filled.
	for i := n; i < common.PageSize; i++ {
		dst[i] = 0
	}
	if m.aligned != nil {
		copy(buf, m.aligned)
	}
	return nil
}

func (m *Manager) writePhysical(physical common.PageID, buf []byte) error {
	off := int64(physical) * common.PageSize
	src := buf
	if m.aligned != nil {
		copy(m.aligned, buf)
		src = m.aligned
	}
	if _, err := m.file.WriteAt(src[:common.PageSize], off); err != nil {
		return fmt.Errorf("write physical page %d: %w", physical, err)
	}
	return nil
}
