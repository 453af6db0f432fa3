package disk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dsnet/golib/memfile"
	is "github.com/stretchr/testify/require"

	"minirel/common"
)

func newTestManager() *Manager {
	return NewManagerWithFile(memfile.New(nil))
}

func TestManagerAllocate(t *testing.T) {
	m := newTestManager()

	for i := 0; i < 64; i++ {
		id, err := m.AllocatePage()
		is.NoError(t, err)
		is.Equal(t, common.PageID(i), id)

		free, err := m.IsPageFree(id)
		is.NoError(t, err)
		is.False(t, free)
	}
	is.Equal(t, uint32(64), m.NumAllocatedPages())
}

func TestManagerDeallocate(t *testing.T) {
	m := newTestManager()
	for i := 0; i < 8; i++ {
		m.AllocatePage()
	}

	is.NoError(t, m.DeallocatePage(5))
	free, err := m.IsPageFree(5)
	is.NoError(t, err)
	is.True(t, free)
	is.Equal(t, uint32(7), m.NumAllocatedPages())

	// Deallocating twice is a no-op.
	is.NoError(t, m.DeallocatePage(5))
	is.Equal(t, uint32(7), m.NumAllocatedPages())

	// The freed id is reused before new ones.
	id, err := m.AllocatePage()
	is.NoError(t, err)
	is.Equal(t, common.PageID(5), id)
}

func TestManagerReadWriteRoundTrip(t *testing.T) {
	m := newTestManager()
	id, err := m.AllocatePage()
	is.NoError(t, err)

	var page [common.PageSize]byte
	for i := range page {
		page[i] = byte(i % 251)
	}
	is.NoError(t, m.WritePage(id, page[:]))

	var got [common.PageSize]byte
	is.NoError(t, m.ReadPage(id, got[:]))
	is.Equal(t, page, got)
}

func TestManagerReadUnallocatedIsZero(t *testing.T) {
	m := newTestManager()

	var got [common.PageSize]byte
	got[0] = 0xff
	is.NoError(t, m.ReadPage(1234, got[:]))
	is.Equal(t, [common.PageSize]byte{}, got)
}

func TestManagerExtentBoundary(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates a full extent")
	}
	m := newTestManager()

	for i := 0; i < BitmapSize; i++ {
		id, err := m.AllocatePage()
		is.NoError(t, err)
		is.Equal(t, common.PageID(i), id)
	}

	// One more allocation forces a second extent.
	id, err := m.AllocatePage()
	is.NoError(t, err)
	is.Equal(t, common.PageID(BitmapSize), id)
	is.Equal(t, uint32(BitmapSize+1), m.NumAllocatedPages())
}

func TestPhysicalToLogical(t *testing.T) {
	// Meta and bitmap pages have no logical id.
	is.Equal(t, common.InvalidPageID, PhysicalToLogical(0))
	is.Equal(t, common.InvalidPageID, PhysicalToLogical(1))
	is.Equal(t, common.PageID(0), PhysicalToLogical(2))
	is.Equal(t, common.PageID(1), PhysicalToLogical(3))

	for logical := common.PageID(0); logical < 100; logical++ {
		is.Equal(t, logical, PhysicalToLogical(mapPageID(logical)))
	}
}

func TestManagerReopen(t *testing.T) {
	dir, err := os.MkdirTemp("", "minirel-disk-*")
	is.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "test.db")

	m, err := NewManager(DefaultConfig(path))
	is.NoError(t, err)
	var ids []common.PageID
	for i := 0; i < 16; i++ {
		id, err := m.AllocatePage()
		is.NoError(t, err)
		ids = append(ids, id)
	}
	is.NoError(t, m.DeallocatePage(ids[3]))

	var page [common.PageSize]byte
	copy(page[:], "persist me")
	is.NoError(t, m.WritePage(ids[7], page[:]))
	is.NoError(t, m.Close())

	m2, err := NewManager(DefaultConfig(path))
	is.NoError(t, err)
	defer m2.Close()

	is.Equal(t, uint32(15), m2.NumAllocatedPages())
	free, err := m2.IsPageFree(ids[3])
	is.NoError(t, err)
	is.True(t, free)
	free, err = m2.IsPageFree(ids[7])
	is.NoError(t, err)
	is.False(t, free)

	var got [common.PageSize]byte
	is.NoError(t, m2.ReadPage(ids[7], got[:]))
	is.Equal(t, page, got)
}
