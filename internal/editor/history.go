package editor

// DefaultHistoryDepth bounds both undo stacks. When recording would exceed it
// the oldest snapshot is evicted from the bottom of past.
const DefaultHistoryDepth = 50

// history holds the bounded past/future snapshot stacks for one editor
// session. Not safe for concurrent use; the owning session serializes access.
type history struct {
	depth  int
	past   []Snapshot
	future []Snapshot
}

func newHistory(depth int) *history {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	return &history{depth: depth}
}

// record pushes the pre-mutation snapshot onto past and discards the future
// stack: a new edit invalidates every pending redo.
func (h *history) record(snap Snapshot) {
	if len(h.past) >= h.depth {
		h.past = append(h.past[:0], h.past[len(h.past)-h.depth+1:]...)
	}
	h.past = append(h.past, snap)
	h.future = h.future[:0]
}

// undo pops the most recent past snapshot and parks the current state on the
// future stack. Reports false when there is nothing to undo.
func (h *history) undo(current Snapshot) (Snapshot, bool) {
	if len(h.past) == 0 {
		return Snapshot{}, false
	}
	top := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	if len(h.future) >= h.depth {
		h.future = append(h.future[:0], h.future[len(h.future)-h.depth+1:]...)
	}
	h.future = append(h.future, current)
	return top, true
}

// redo is the mirror of undo.
func (h *history) redo(current Snapshot) (Snapshot, bool) {
	if len(h.future) == 0 {
		return Snapshot{}, false
	}
	top := h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	if len(h.past) >= h.depth {
		h.past = append(h.past[:0], h.past[len(h.past)-h.depth+1:]...)
	}
	h.past = append(h.past, current)
	return top, true
}

func (h *history) canUndo() bool { return len(h.past) > 0 }
func (h *history) canRedo() bool { return len(h.future) > 0 }

// reset clears both stacks. Loading a different portfolio starts a fresh
// session, not an undoable edit.
func (h *history) reset() {
	h.past = h.past[:0]
	h.future = h.future[:0]
}
