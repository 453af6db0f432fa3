package disk

import (
	"encoding/binary"

	"minirel/common"
)

const (
	// File meta page layout (physical page 0):
	// [numAllocatedPages(4)][numExtents(4)][extentUsedPage(4) x numExtents]
	metaOffsetAllocated = 0
	metaOffsetExtents   = 4
	metaHeaderSize      = 8

	// MaxExtents is the number of extent counters that fit on the meta
	// page, which bounds the addressable size of one database file.
	MaxExtents = (common.PageSize - metaHeaderSize) / 4
)

// FileMeta is the in-memory image of physical page 0: global allocation
// counters plus the per-extent used-page counts.
type FileMeta struct {
	NumAllocatedPages uint32
	NumExtents        uint32
	ExtentUsedPage    []uint32
}

// LoadFileMeta decodes the meta page image. A zeroed page decodes to an
// empty file (no extents), which is how a fresh database starts.
func LoadFileMeta(buf []byte) *FileMeta {
	m := &FileMeta{
		NumAllocatedPages: binary.BigEndian.Uint32(buf[metaOffsetAllocated:]),
		NumExtents:        binary.BigEndian.Uint32(buf[metaOffsetExtents:]),
	}
	if m.NumExtents > MaxExtents {
		m.NumExtents = MaxExtents
	}
	m.ExtentUsedPage = make([]uint32, m.NumExtents)
	for i := uint32(0); i < m.NumExtents; i++ {
		m.ExtentUsedPage[i] = binary.BigEndian.Uint32(buf[metaHeaderSize+4*i:])
	}
	return m
}

// Serialize writes the meta image into a page-sized buffer.
func (m *FileMeta) Serialize(buf []byte) {
	binary.BigEndian.PutUint32(buf[metaOffsetAllocated:], m.NumAllocatedPages)
	binary.BigEndian.PutUint32(buf[metaOffsetExtents:], m.NumExtents)
	for i, used := range m.ExtentUsedPage {
		binary.BigEndian.PutUint32(buf[metaHeaderSize+4*i:], used)
	}
}

// ExtentUsed returns the used-page count of an extent, treating extents
// beyond the current count as empty.
func (m *FileMeta) ExtentUsed(extent uint32) uint32 {
	if extent >= m.NumExtents {
		return 0
	}
	return m.ExtentUsedPage[extent]
}
