package buffer

import (
	"testing"

	is "github.com/stretchr/testify/require"

	"minirel/common"
)

func TestCLOCKReplacerVictim(t *testing.T) {
	r := NewCLOCKReplacer(7)

	for f := common.FrameID(1); f <= 6; f++ {
		r.Unpin(f)
	}
	is.Equal(t, 6, r.Size())

	// The hand starts at frame 0 (not a candidate) and sweeps upward.
	for _, want := range []common.FrameID{1, 2, 3} {
		frame, ok := r.Victim()
		is.True(t, ok)
		is.Equal(t, want, frame)
	}

	r.Pin(4)
	is.Equal(t, 2, r.Size())

	r.Unpin(4)
	is.Equal(t, 3, r.Size())

	// 4 rejoined with its reference bit clear; the hand stands at 4, so
	// the sweep takes it first, then 5 and 6.
	for _, want := range []common.FrameID{4, 5, 6} {
		frame, ok := r.Victim()
		is.True(t, ok)
		is.Equal(t, want, frame)
	}

	_, ok := r.Victim()
	is.False(t, ok)
}

func TestCLOCKReplacerReferenceBit(t *testing.T) {
	r := NewCLOCKReplacer(4)
	r.Unpin(0)
	r.Unpin(1)

	// Pin+unpin leaves the frame a candidate with its bit cleared by
	// the unpin, so the sweep still finds it.
	r.Pin(0)
	r.Unpin(0)

	frame, ok := r.Victim()
	is.True(t, ok)
	is.Equal(t, common.FrameID(0), frame)

	frame, ok = r.Victim()
	is.True(t, ok)
	is.Equal(t, common.FrameID(1), frame)
}
