package editor

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"testing"
	"time"
)

// fakeStore implements PortfolioStore for tests. Function fields override
// individual calls; the zero value succeeds and records saves.
type fakeStore struct {
	mu      sync.Mutex
	fetchFn func(ctx context.Context, id string) (Content, int, error)
	saveFn  func(ctx context.Context, id string, content Content, version int) (int, error)
	slugFn  func(ctx context.Context, candidate, excludeID string) (bool, error)
	saves   []Content
}

func (f *fakeStore) FetchPortfolio(ctx context.Context, id string) (Content, int, error) {
	if f.fetchFn != nil {
		return f.fetchFn(ctx, id)
	}
	return Content{}, 1, nil
}

func (f *fakeStore) SavePortfolio(ctx context.Context, id string, content Content, version int) (int, error) {
	f.mu.Lock()
	f.saves = append(f.saves, content)
	f.mu.Unlock()
	if f.saveFn != nil {
		return f.saveFn(ctx, id, content, version)
	}
	return version + 1, nil
}

func (f *fakeStore) SlugAvailable(ctx context.Context, candidate, excludeID string) (bool, error) {
	if f.slugFn != nil {
		return f.slugFn(ctx, candidate, excludeID)
	}
	return true, nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

// newTestSession returns a session whose timers are far enough out that
// auto-save never interferes unless a test wants it to.
func newTestSession(t *testing.T, store *fakeStore) *Session {
	t.Helper()
	if store == nil {
		store = &fakeStore{}
	}
	s := NewSession(store, "pf_test", Options{Debounce: time.Hour, SavedFor: time.Hour, ErrorFor: time.Hour})
	t.Cleanup(s.Close)
	return s
}

func mustValidate(t *testing.T, doc Document) {
	t.Helper()
	if err := doc.Validate(); err != nil {
		t.Fatalf("document invariant broken: %v", err)
	}
}

func TestAddSectionAppendsAndReindexes(t *testing.T) {
	s := newTestSession(t, nil)
	s.Dispatch(AddSection{Kind: SectionHero})
	s.Dispatch(AddSection{Kind: SectionAbout})
	at := 1
	s.Dispatch(AddSection{Kind: SectionSkills, At: &at})

	doc := s.State()
	mustValidate(t, doc)
	kinds := []SectionKind{}
	for _, sec := range doc.Sections {
		kinds = append(kinds, sec.Kind)
	}
	want := []SectionKind{SectionHero, SectionSkills, SectionAbout}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	if !doc.Dirty {
		t.Fatal("add_section should dirty the document")
	}
}

func TestAddSectionUnknownKindIsNoop(t *testing.T) {
	s := newTestSession(t, nil)
	s.Dispatch(AddSection{Kind: SectionKind("banner")})
	if got := len(s.State().Sections); got != 0 {
		t.Fatalf("sections = %d, want 0", got)
	}
}

func TestRemoveSectionClearsSelection(t *testing.T) {
	s := newTestSession(t, nil)
	s.Dispatch(AddSection{Kind: SectionHero})
	s.Dispatch(AddSection{Kind: SectionAbout})
	id := s.State().Sections[0].ID
	s.Dispatch(SelectSection{ID: id})
	s.Dispatch(RemoveSection{ID: id})

	doc := s.State()
	mustValidate(t, doc)
	if len(doc.Sections) != 1 || doc.Sections[0].Kind != SectionAbout {
		t.Fatalf("unexpected sections after remove: %+v", doc.Sections)
	}
	if doc.SelectedSectionID != "" {
		t.Fatalf("selection = %q, want cleared", doc.SelectedSectionID)
	}
}

func TestRemoveMissingSectionIsByteForByteNoop(t *testing.T) {
	s := newTestSession(t, nil)
	s.Dispatch(AddSection{Kind: SectionHero})
	s.Dispatch(SelectSection{ID: s.State().Sections[0].ID})
	before := s.State()

	s.Dispatch(RemoveSection{ID: "nonexistent"})
	s.Dispatch(MoveSection{ID: "nonexistent", To: 0})
	s.Dispatch(DuplicateSection{ID: "nonexistent"})
	s.Dispatch(UpdateSectionData{ID: "nonexistent", Data: json.RawMessage(`{"x":1}`)})

	after := s.State()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("missing-id commands changed state:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestMoveSectionReordersDensely(t *testing.T) {
	s := newTestSession(t, nil)
	s.Dispatch(AddSection{Kind: SectionHero})
	s.Dispatch(AddSection{Kind: SectionAbout})
	s.Dispatch(AddSection{Kind: SectionContact})
	id := s.State().Sections[2].ID

	s.Dispatch(MoveSection{ID: id, To: 0})

	doc := s.State()
	mustValidate(t, doc)
	if doc.Sections[0].ID != id {
		t.Fatalf("section %s not moved to front", id)
	}

	// Out-of-range target is a no-op.
	before := s.State()
	s.Dispatch(MoveSection{ID: id, To: 3})
	if !reflect.DeepEqual(before, s.State()) {
		t.Fatal("out-of-range move should be a no-op")
	}
}

func TestDuplicateSectionDeepCopiesAfterOriginal(t *testing.T) {
	s := newTestSession(t, nil)
	s.Dispatch(AddSection{Kind: SectionProjects})
	s.Dispatch(AddSection{Kind: SectionContact})
	original := s.State().Sections[0]
	s.Dispatch(UpdateSectionData{ID: original.ID, Data: json.RawMessage(`{"items":["p1"]}`)})

	s.Dispatch(DuplicateSection{ID: original.ID})

	doc := s.State()
	mustValidate(t, doc)
	if len(doc.Sections) != 3 {
		t.Fatalf("sections = %d, want 3", len(doc.Sections))
	}
	dup := doc.Sections[1]
	if dup.ID == original.ID {
		t.Fatal("duplicate must get a fresh id")
	}
	if dup.Kind != SectionProjects || string(dup.Data) != `{"items":["p1"]}` {
		t.Fatalf("duplicate payload mismatch: %+v", dup)
	}
}

func TestUpdateSectionStylingMerges(t *testing.T) {
	s := newTestSession(t, nil)
	s.Dispatch(AddSection{Kind: SectionHero})
	id := s.State().Sections[0].ID

	s.Dispatch(UpdateSectionStyling{ID: id, Styling: json.RawMessage(`{"bg":"dark","pad":8}`)})
	s.Dispatch(UpdateSectionStyling{ID: id, Styling: json.RawMessage(`{"bg":"light"}`)})

	var styling map[string]any
	if err := json.Unmarshal(s.State().Sections[0].Styling, &styling); err != nil {
		t.Fatalf("unmarshal styling: %v", err)
	}
	if styling["bg"] != "light" {
		t.Fatalf("bg = %v, want light (override wins)", styling["bg"])
	}
	if styling["pad"] != float64(8) {
		t.Fatalf("pad = %v, want 8 (base preserved)", styling["pad"])
	}
}

func TestOrderInvariantAcrossStructuralSequence(t *testing.T) {
	s := newTestSession(t, nil)
	s.Dispatch(AddSection{Kind: SectionHero})
	s.Dispatch(AddSection{Kind: SectionAbout})
	s.Dispatch(AddSection{Kind: SectionSkills})
	s.Dispatch(AddSection{Kind: SectionProjects})
	first := s.State().Sections[0].ID
	s.Dispatch(DuplicateSection{ID: first})
	s.Dispatch(MoveSection{ID: first, To: 3})
	s.Dispatch(RemoveSection{ID: s.State().Sections[0].ID})
	zero := 0
	s.Dispatch(AddSection{Kind: SectionContact, At: &zero})

	doc := s.State()
	mustValidate(t, doc)
	for i, sec := range doc.Sections {
		if sec.Order != i {
			t.Fatalf("sections[%d].Order = %d", i, sec.Order)
		}
	}
}

func TestEphemeralFlagsDoNotDirtyOrRecord(t *testing.T) {
	s := newTestSession(t, nil)
	s.Dispatch(SetPreviewMode{On: true})
	s.Dispatch(SetPreviewDevice{Device: "mobile"})
	s.Dispatch(SetDragging{On: true})
	s.Dispatch(SelectSection{ID: ""})

	doc := s.State()
	if doc.Dirty {
		t.Fatal("flag-only commands must not dirty the document")
	}
	if s.CanUndo() {
		t.Fatal("flag-only commands must not be history-worthy")
	}
	if !doc.PreviewMode || doc.PreviewDevice != "mobile" || !doc.Dragging {
		t.Fatalf("flags not applied: %+v", doc)
	}
}

func TestLoadPortfolioResetsHistoryAndDirty(t *testing.T) {
	s := newTestSession(t, nil)
	s.Dispatch(AddSection{Kind: SectionHero})
	if !s.CanUndo() || !s.State().Dirty {
		t.Fatal("precondition: session has history and dirt")
	}

	s.Dispatch(LoadPortfolio{Title: "Loaded", Sections: []Section{
		{ID: "s1", Kind: SectionAbout, Editable: true},
	}})

	doc := s.State()
	mustValidate(t, doc)
	if doc.Dirty {
		t.Fatal("load must leave the document clean")
	}
	if s.CanUndo() || s.CanRedo() {
		t.Fatal("load must clear history")
	}
	if doc.Title != "Loaded" || len(doc.Sections) != 1 {
		t.Fatalf("load did not replace content: %+v", doc)
	}
}
