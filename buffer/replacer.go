package buffer

import "minirel/common"

// Replacer tracks the frames that are candidates for eviction and
// picks victims according to its policy.
type Replacer interface {
	// Victim selects a frame for reuse and removes it from the
	// candidate set. Reports false when no frame is a candidate.
	Victim() (common.FrameID, bool)

	// Pin removes a frame from the candidate set because a caller now
	// holds its page.
	Pin(frame common.FrameID)

	// Unpin makes a frame a candidate once its page's pin count
	// reaches zero.
	Unpin(frame common.FrameID)

	// Size returns the number of candidate frames.
	Size() int
}
