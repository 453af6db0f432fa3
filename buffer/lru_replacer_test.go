package buffer

import (
	"testing"

	is "github.com/stretchr/testify/require"

	"minirel/common"
)

func TestLRUReplacerVictimOrder(t *testing.T) {
	r := NewLRUReplacer(7)

	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(3)
	r.Unpin(4)
	r.Unpin(5)
	r.Unpin(6)
	// Repeated unpin keeps the original position.
	r.Unpin(1)
	is.Equal(t, 6, r.Size())

	for _, want := range []common.FrameID{1, 2, 3} {
		frame, ok := r.Victim()
		is.True(t, ok)
		is.Equal(t, want, frame)
	}

	// Pin removes candidates; pinning a victim'd frame is a no-op.
	r.Pin(3)
	r.Pin(4)
	is.Equal(t, 2, r.Size())

	r.Unpin(4)
	for _, want := range []common.FrameID{5, 6, 4} {
		frame, ok := r.Victim()
		is.True(t, ok)
		is.Equal(t, want, frame)
	}

	_, ok := r.Victim()
	is.False(t, ok)
	is.Equal(t, 0, r.Size())
}
