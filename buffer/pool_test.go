package buffer

import (
	"math/rand"
	"testing"

	"github.com/dsnet/golib/memfile"
	is "github.com/stretchr/testify/require"

	"minirel/common"
	"minirel/disk"
)

func newTestPool(poolSize int) *Pool {
	return NewPool(poolSize, disk.NewManagerWithFile(memfile.New(nil)), nil)
}

func TestPoolAllFramesPinned(t *testing.T) {
	pool := newTestPool(10)

	var pages []*Page
	for i := 0; i < 10; i++ {
		page, err := pool.NewPage()
		is.NoError(t, err)
		pages = append(pages, page)
	}

	// Every frame is pinned; an eleventh page cannot be admitted.
	_, err := pool.NewPage()
	is.ErrorIs(t, err, common.ErrNoFreeFrame)
	_, err = pool.FetchPage(pages[0].ID())
	is.NoError(t, err) // resident pages still fetch
	pool.UnpinPage(pages[0].ID(), false)

	for _, page := range pages {
		is.True(t, pool.UnpinPage(page.ID(), false))
	}
	is.True(t, pool.CheckAllUnpinned())

	_, err = pool.NewPage()
	is.NoError(t, err)
}

func TestPoolDirtyEviction(t *testing.T) {
	pool := newTestPool(1)

	first, err := pool.NewPage()
	is.NoError(t, err)
	firstID := first.ID()
	copy(first.Data(), "marker bytes")
	is.True(t, pool.UnpinPage(firstID, true))

	// A second page takes the only frame, forcing the dirty first page
	// out to disk.
	second, err := pool.NewPage()
	is.NoError(t, err)
	is.NotEqual(t, firstID, second.ID())
	is.True(t, pool.UnpinPage(second.ID(), false))

	back, err := pool.FetchPage(firstID)
	is.NoError(t, err)
	is.Equal(t, []byte("marker bytes"), back.Data()[:12])
	pool.UnpinPage(firstID, false)
}

func TestPoolBinaryDataSurvivesEviction(t *testing.T) {
	const poolSize = 10
	pool := newTestPool(poolSize)
	rng := rand.New(rand.NewSource(1))

	page, err := pool.NewPage()
	is.NoError(t, err)
	id := page.ID()

	var data [common.PageSize]byte
	rng.Read(data[:])
	copy(page.Data(), data[:])
	is.True(t, pool.UnpinPage(id, true))

	// Churn enough pages through the pool to evict the first one.
	for i := 0; i < poolSize*2; i++ {
		p, err := pool.NewPage()
		is.NoError(t, err)
		pool.UnpinPage(p.ID(), false)
	}

	back, err := pool.FetchPage(id)
	is.NoError(t, err)
	is.Equal(t, data[:], back.Data())
	pool.UnpinPage(id, false)
}

func TestPoolDeletePage(t *testing.T) {
	pool := newTestPool(4)

	page, err := pool.NewPage()
	is.NoError(t, err)
	id := page.ID()

	// Pinned pages cannot be deleted.
	ok, err := pool.DeletePage(id)
	is.NoError(t, err)
	is.False(t, ok)

	pool.UnpinPage(id, false)
	ok, err = pool.DeletePage(id)
	is.NoError(t, err)
	is.True(t, ok)

	// Deleting a non-resident page succeeds and deallocates on disk.
	ok, err = pool.DeletePage(id)
	is.NoError(t, err)
	is.True(t, ok)

	is.Equal(t, 4, pool.FreeSize())
}

func TestPoolUnpinNotResident(t *testing.T) {
	pool := newTestPool(2)
	is.False(t, pool.UnpinPage(99, false))
}

func TestPoolFlushThenRefetchIsByteIdentical(t *testing.T) {
	pool := newTestPool(1)

	page, err := pool.NewPage()
	is.NoError(t, err)
	id := page.ID()
	copy(page.Data(), "flushed content")
	is.True(t, pool.FlushPage(id))
	is.True(t, pool.UnpinPage(id, false))

	// Evict by cycling another page through the single frame.
	other, err := pool.NewPage()
	is.NoError(t, err)
	pool.UnpinPage(other.ID(), false)

	back, err := pool.FetchPage(id)
	is.NoError(t, err)
	is.Equal(t, []byte("flushed content"), back.Data()[:15])
	pool.UnpinPage(id, false)
}
