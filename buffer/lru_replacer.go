package buffer

import (
	"container/list"

	"minirel/common"
)

// LRUReplacer evicts the least recently unpinned frame. Candidates are
// kept in unpin order in a list with a map for O(1) membership.
type LRUReplacer struct {
	order *list.List // front = most recently unpinned
	elems map[common.FrameID]*list.Element
}

// NewLRUReplacer creates an LRU replacer with no candidates.
func NewLRUReplacer(numFrames int) *LRUReplacer {
	return &LRUReplacer{
		order: list.New(),
		elems: make(map[common.FrameID]*list.Element, numFrames),
	}
}

// Victim removes and returns the least recently unpinned frame.
func (r *LRUReplacer) Victim() (common.FrameID, bool) {
	back := r.order.Back()
	if back == nil {
		return 0, false
	}
	frame := back.Value.(common.FrameID)
	r.order.Remove(back)
	delete(r.elems, frame)
	return frame, true
}

// Pin removes a frame from the candidate set.
func (r *LRUReplacer) Pin(frame common.FrameID) {
	if elem, ok := r.elems[frame]; ok {
		r.order.Remove(elem)
		delete(r.elems, frame)
	}
}

// Unpin inserts a frame as the most recently unpinned candidate.
// Unpinning a frame already present keeps its position.
func (r *LRUReplacer) Unpin(frame common.FrameID) {
	if _, ok := r.elems[frame]; ok {
		return
	}
	r.elems[frame] = r.order.PushFront(frame)
}

// Size returns the number of candidate frames.
func (r *LRUReplacer) Size() int {
	return r.order.Len()
}
