package core

// Snapshot is an opaque full-canvas raster (a PNG data URL on the wire).
// The core stores and forwards snapshots verbatim and never decodes them.
type Snapshot string

// EmptySnapshot stands for a blank canvas.
const EmptySnapshot Snapshot = ""

// HistoryStack is an undo/redo stack of full snapshots with a cursor.
// Index 0 is the earliest reachable state; the cursor is -1 only while the
// stack is empty.
type HistoryStack struct {
	entries  []Snapshot
	step     int
	capacity int
}

// NewHistoryStack creates an empty stack. capacity <= 0 means unbounded.
func NewHistoryStack(capacity int) *HistoryStack {
	return &HistoryStack{step: -1, capacity: capacity}
}

// Push drops the redo tail beyond the cursor, appends snap and moves the
// cursor onto it.
func (h *HistoryStack) Push(snap Snapshot) {
	if h.step < len(h.entries)-1 {
		h.entries = h.entries[:h.step+1]
	}
	h.entries = append(h.entries, snap)
	h.step = len(h.entries) - 1

	if h.capacity > 0 && len(h.entries) > h.capacity {
		drop := len(h.entries) - h.capacity
		h.entries = append([]Snapshot(nil), h.entries[drop:]...)
		h.step -= drop
	}
}

// Undo moves the cursor back. It reports false when already at index 0
// (or empty); callers must not broadcast in that case.
func (h *HistoryStack) Undo() (Snapshot, bool) {
	if h.step <= 0 {
		return EmptySnapshot, false
	}
	h.step--
	return h.entries[h.step], true
}

// Redo moves the cursor forward. It reports false at the latest entry.
func (h *HistoryStack) Redo() (Snapshot, bool) {
	if h.step >= len(h.entries)-1 {
		return EmptySnapshot, false
	}
	h.step++
	return h.entries[h.step], true
}

// Current returns the snapshot at the cursor, or EmptySnapshot when empty.
func (h *HistoryStack) Current() Snapshot {
	if h.step < 0 {
		return EmptySnapshot
	}
	return h.entries[h.step]
}

// Reset replaces the whole stack with a single entry.
func (h *HistoryStack) Reset(snap Snapshot) {
	h.entries = []Snapshot{snap}
	h.step = 0
}

// Len returns the number of stored snapshots.
func (h *HistoryStack) Len() int {
	return len(h.entries)
}

// Step returns the cursor position.
func (h *HistoryStack) Step() int {
	return h.step
}
