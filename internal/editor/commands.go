package editor

import (
	"encoding/json"
	"log"

	"folio/api/internal/util"
)

// Command is one state transition of the editor reducer. apply is pure: it
// never mutates the input document and returns the next state together with
// whether anything actually changed. recordsHistory marks commands whose
// pre-state is pushed onto the undo stack; dirties marks commands that leave
// unsaved changes behind.
//
// Field-level commands (UpdateSectionData, UpdateSectionStyling, UpdateTitle)
// arrive only at commit boundaries (blur/Enter), never per keystroke, so every
// dispatch of them is a completed, history-worthy edit.
type Command interface {
	apply(Document) (Document, bool)
	recordsHistory() bool
	dirties() bool
	name() string
}

// AddSection inserts a freshly created section of the given kind. At is the
// insertion index; nil appends. Out-of-range indexes are clamped.
type AddSection struct {
	Kind SectionKind
	At   *int
}

func (c AddSection) recordsHistory() bool { return true }
func (c AddSection) dirties() bool        { return true }
func (c AddSection) name() string         { return "add_section" }

func (c AddSection) apply(doc Document) (Document, bool) {
	if !c.Kind.Valid() {
		log.Printf("editor: add_section: unknown kind %q", c.Kind)
		return doc, false
	}
	index := len(doc.Sections)
	if c.At != nil {
		index = *c.At
		if index < 0 {
			index = 0
		}
		if index > len(doc.Sections) {
			index = len(doc.Sections)
		}
	}
	section := Section{
		ID:       util.NewShortID("sec"),
		Kind:     c.Kind,
		Data:     json.RawMessage(`{}`),
		Editable: true,
	}
	next := doc
	sections := cloneSections(doc.Sections)
	sections = append(sections, Section{})
	copy(sections[index+1:], sections[index:])
	sections[index] = section
	reindex(sections)
	next.Sections = sections
	return next, true
}

// RemoveSection deletes the section with the given id and clears the
// selection if it pointed there.
type RemoveSection struct {
	ID string
}

func (c RemoveSection) recordsHistory() bool { return true }
func (c RemoveSection) dirties() bool        { return true }
func (c RemoveSection) name() string         { return "remove_section" }

func (c RemoveSection) apply(doc Document) (Document, bool) {
	index := doc.indexOf(c.ID)
	if index < 0 {
		log.Printf("editor: remove_section: no section %q", c.ID)
		return doc, false
	}
	next := doc
	sections := cloneSections(doc.Sections)
	sections = append(sections[:index], sections[index+1:]...)
	reindex(sections)
	next.Sections = sections
	if next.SelectedSectionID == c.ID {
		next.SelectedSectionID = ""
	}
	return next, true
}

// MoveSection relocates a section to a new position in the sequence.
type MoveSection struct {
	ID string
	To int
}

func (c MoveSection) recordsHistory() bool { return true }
func (c MoveSection) dirties() bool        { return true }
func (c MoveSection) name() string         { return "move_section" }

func (c MoveSection) apply(doc Document) (Document, bool) {
	index := doc.indexOf(c.ID)
	if index < 0 {
		log.Printf("editor: move_section: no section %q", c.ID)
		return doc, false
	}
	if c.To < 0 || c.To >= len(doc.Sections) {
		log.Printf("editor: move_section: index %d out of range", c.To)
		return doc, false
	}
	if c.To == index {
		return doc, false
	}
	next := doc
	sections := cloneSections(doc.Sections)
	moved := sections[index]
	sections = append(sections[:index], sections[index+1:]...)
	sections = append(sections, Section{})
	copy(sections[c.To+1:], sections[c.To:])
	sections[c.To] = moved
	reindex(sections)
	next.Sections = sections
	return next, true
}

// DuplicateSection inserts a deep copy of a section, with a fresh id,
// immediately after the original.
type DuplicateSection struct {
	ID string
}

func (c DuplicateSection) recordsHistory() bool { return true }
func (c DuplicateSection) dirties() bool        { return true }
func (c DuplicateSection) name() string         { return "duplicate_section" }

func (c DuplicateSection) apply(doc Document) (Document, bool) {
	index := doc.indexOf(c.ID)
	if index < 0 {
		log.Printf("editor: duplicate_section: no section %q", c.ID)
		return doc, false
	}
	next := doc
	sections := cloneSections(doc.Sections)
	dup := sections[index].clone()
	dup.ID = util.NewShortID("sec")
	sections = append(sections, Section{})
	copy(sections[index+2:], sections[index+1:])
	sections[index+1] = dup
	reindex(sections)
	next.Sections = sections
	return next, true
}

// UpdateSectionData replaces a section's payload wholesale. The payload is
// opaque here; merging partial edits is the UI's concern.
type UpdateSectionData struct {
	ID   string
	Data json.RawMessage
}

func (c UpdateSectionData) recordsHistory() bool { return true }
func (c UpdateSectionData) dirties() bool        { return true }
func (c UpdateSectionData) name() string         { return "update_section_data" }

func (c UpdateSectionData) apply(doc Document) (Document, bool) {
	index := doc.indexOf(c.ID)
	if index < 0 {
		log.Printf("editor: update_section_data: no section %q", c.ID)
		return doc, false
	}
	next := doc
	sections := cloneSections(doc.Sections)
	sections[index].Data = append(json.RawMessage(nil), c.Data...)
	next.Sections = sections
	return next, true
}

// UpdateSectionStyling shallow-merges styling overrides into the section's
// existing styling object.
type UpdateSectionStyling struct {
	ID      string
	Styling json.RawMessage
}

func (c UpdateSectionStyling) recordsHistory() bool { return true }
func (c UpdateSectionStyling) dirties() bool        { return true }
func (c UpdateSectionStyling) name() string         { return "update_section_styling" }

func (c UpdateSectionStyling) apply(doc Document) (Document, bool) {
	index := doc.indexOf(c.ID)
	if index < 0 {
		log.Printf("editor: update_section_styling: no section %q", c.ID)
		return doc, false
	}
	next := doc
	sections := cloneSections(doc.Sections)
	sections[index].Styling = mergeStyling(sections[index].Styling, c.Styling)
	next.Sections = sections
	return next, true
}

func mergeStyling(base, overlay json.RawMessage) json.RawMessage {
	if len(overlay) == 0 {
		return base
	}
	var baseMap, overlayMap map[string]json.RawMessage
	if len(base) > 0 {
		if err := json.Unmarshal(base, &baseMap); err != nil {
			baseMap = nil
		}
	}
	if err := json.Unmarshal(overlay, &overlayMap); err != nil {
		// Not an object; treat the overlay as authoritative.
		return append(json.RawMessage(nil), overlay...)
	}
	if baseMap == nil {
		baseMap = make(map[string]json.RawMessage, len(overlayMap))
	}
	for key, value := range overlayMap {
		baseMap[key] = value
	}
	merged, err := json.Marshal(baseMap)
	if err != nil {
		return append(json.RawMessage(nil), overlay...)
	}
	return merged
}

// SelectSection updates the selection. Empty id clears it. Selecting a
// missing section is a logged no-op so the selection invariant holds.
type SelectSection struct {
	ID string
}

func (c SelectSection) recordsHistory() bool { return false }
func (c SelectSection) dirties() bool        { return false }
func (c SelectSection) name() string         { return "select_section" }

func (c SelectSection) apply(doc Document) (Document, bool) {
	if c.ID != "" && doc.indexOf(c.ID) < 0 {
		log.Printf("editor: select_section: no section %q", c.ID)
		return doc, false
	}
	if doc.SelectedSectionID == c.ID {
		return doc, false
	}
	next := doc
	next.SelectedSectionID = c.ID
	return next, true
}

// SetPreviewMode toggles the preview flag. Ephemeral; never persisted.
type SetPreviewMode struct {
	On bool
}

func (c SetPreviewMode) recordsHistory() bool { return false }
func (c SetPreviewMode) dirties() bool        { return false }
func (c SetPreviewMode) name() string         { return "set_preview_mode" }

func (c SetPreviewMode) apply(doc Document) (Document, bool) {
	if doc.PreviewMode == c.On {
		return doc, false
	}
	next := doc
	next.PreviewMode = c.On
	return next, true
}

// SetPreviewDevice picks the preview viewport (desktop, tablet, mobile).
type SetPreviewDevice struct {
	Device string
}

func (c SetPreviewDevice) recordsHistory() bool { return false }
func (c SetPreviewDevice) dirties() bool        { return false }
func (c SetPreviewDevice) name() string         { return "set_preview_device" }

func (c SetPreviewDevice) apply(doc Document) (Document, bool) {
	if doc.PreviewDevice == c.Device {
		return doc, false
	}
	next := doc
	next.PreviewDevice = c.Device
	return next, true
}

// SetDragging marks a drag-in-progress. Ephemeral; excluded from snapshots.
type SetDragging struct {
	On bool
}

func (c SetDragging) recordsHistory() bool { return false }
func (c SetDragging) dirties() bool        { return false }
func (c SetDragging) name() string         { return "set_dragging" }

func (c SetDragging) apply(doc Document) (Document, bool) {
	if doc.Dragging == c.On {
		return doc, false
	}
	next := doc
	next.Dragging = c.On
	return next, true
}

// UpdateTitle replaces the portfolio title.
type UpdateTitle struct {
	Title string
}

func (c UpdateTitle) recordsHistory() bool { return true }
func (c UpdateTitle) dirties() bool        { return true }
func (c UpdateTitle) name() string         { return "update_title" }

func (c UpdateTitle) apply(doc Document) (Document, bool) {
	if doc.Title == c.Title {
		return doc, false
	}
	next := doc
	next.Title = c.Title
	return next, true
}

// LoadPortfolio replaces the document wholesale with stored content. The
// session resets history around it; the load itself is not an undoable edit.
type LoadPortfolio struct {
	Title    string
	Sections []Section
}

func (c LoadPortfolio) recordsHistory() bool { return false }
func (c LoadPortfolio) dirties() bool        { return false }
func (c LoadPortfolio) name() string         { return "load_portfolio" }

func (c LoadPortfolio) apply(doc Document) (Document, bool) {
	sections := cloneSections(c.Sections)
	reindex(sections)
	next := Document{
		Sections:      sections,
		Title:         c.Title,
		PreviewDevice: doc.PreviewDevice,
	}
	return next, true
}

// SetUnsavedChanges sets the dirty flag explicitly. The synchronizer uses it
// to clear dirtiness after a confirmed save.
type SetUnsavedChanges struct {
	Dirty bool
}

func (c SetUnsavedChanges) recordsHistory() bool { return false }
func (c SetUnsavedChanges) dirties() bool        { return false }
func (c SetUnsavedChanges) name() string         { return "set_unsaved_changes" }

func (c SetUnsavedChanges) apply(doc Document) (Document, bool) {
	if doc.Dirty == c.Dirty {
		return doc, false
	}
	next := doc
	next.Dirty = c.Dirty
	return next, true
}
