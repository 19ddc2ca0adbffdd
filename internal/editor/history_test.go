package editor

import "testing"

func snap(title string) Snapshot {
	return Snapshot{Title: title}
}

func TestHistoryUndoRedoRoundTrip(t *testing.T) {
	h := newHistory(10)

	h.record(snap("v1"))
	h.record(snap("v2"))

	if !h.canUndo() {
		t.Fatal("expected canUndo after records")
	}

	restored, ok := h.undo(snap("v3"))
	if !ok || restored.Title != "v2" {
		t.Fatalf("undo = %q, %v; want v2, true", restored.Title, ok)
	}
	if !h.canRedo() {
		t.Fatal("expected canRedo after undo")
	}

	redone, ok := h.redo(restored)
	if !ok || redone.Title != "v3" {
		t.Fatalf("redo = %q, %v; want v3, true", redone.Title, ok)
	}
}

func TestHistoryUndoEmptyIsNoop(t *testing.T) {
	h := newHistory(10)
	if _, ok := h.undo(snap("current")); ok {
		t.Fatal("undo on empty past should report false")
	}
	if _, ok := h.redo(snap("current")); ok {
		t.Fatal("redo on empty future should report false")
	}
}

func TestHistoryRecordClearsFuture(t *testing.T) {
	h := newHistory(10)
	h.record(snap("v1"))
	if _, ok := h.undo(snap("v2")); !ok {
		t.Fatal("undo failed")
	}
	if !h.canRedo() {
		t.Fatal("expected redo available")
	}

	// A new edit discards the redo branch.
	h.record(snap("v1-b"))
	if h.canRedo() {
		t.Fatal("record should clear future stack")
	}
	if _, ok := h.redo(snap("x")); ok {
		t.Fatal("redo after new edit should be a no-op")
	}
}

func TestHistoryEvictsOldestAtCap(t *testing.T) {
	h := newHistory(3)
	h.record(snap("a"))
	h.record(snap("b"))
	h.record(snap("c"))
	h.record(snap("d"))

	if got := len(h.past); got != 3 {
		t.Fatalf("past depth = %d, want 3", got)
	}
	// Oldest entry "a" is gone; three undos bottom out at "b".
	titles := []string{}
	current := snap("current")
	for {
		restored, ok := h.undo(current)
		if !ok {
			break
		}
		titles = append(titles, restored.Title)
		current = restored
	}
	want := []string{"d", "c", "b"}
	if len(titles) != len(want) {
		t.Fatalf("undo sequence %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("undo sequence %v, want %v", titles, want)
		}
	}
}
