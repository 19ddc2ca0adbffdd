// Package editor implements the portfolio editor state engine: the in-memory
// document model, bounded undo/redo history, the command reducer, and the
// debounced persistence synchronizer that reconciles drafts with the store.
package editor

import (
	"encoding/json"
	"fmt"
)

type SectionKind string

const (
	SectionHero       SectionKind = "hero"
	SectionAbout      SectionKind = "about"
	SectionSkills     SectionKind = "skills"
	SectionProjects   SectionKind = "projects"
	SectionContact    SectionKind = "contact"
	SectionExperience SectionKind = "experience"
	SectionEducation  SectionKind = "education"
	SectionTemplate   SectionKind = "template"
)

var sectionKinds = map[SectionKind]struct{}{
	SectionHero:       {},
	SectionAbout:      {},
	SectionSkills:     {},
	SectionProjects:   {},
	SectionContact:    {},
	SectionExperience: {},
	SectionEducation:  {},
	SectionTemplate:   {},
}

// Valid reports whether k is one of the known section kinds.
func (k SectionKind) Valid() bool {
	_, ok := sectionKinds[k]
	return ok
}

// Section is one addressable content block inside a portfolio document. Data
// and Styling are opaque to the engine: the presentational layer owns their
// schemas, the engine only carries them.
type Section struct {
	ID       string          `json:"id"`
	Kind     SectionKind     `json:"kind"`
	Data     json.RawMessage `json:"data,omitempty"`
	Styling  json.RawMessage `json:"styling,omitempty"`
	Order    int             `json:"order"`
	Editable bool            `json:"editable"`
}

func (s Section) clone() Section {
	out := s
	if s.Data != nil {
		out.Data = append(json.RawMessage(nil), s.Data...)
	}
	if s.Styling != nil {
		out.Styling = append(json.RawMessage(nil), s.Styling...)
	}
	return out
}

func cloneSections(sections []Section) []Section {
	if sections == nil {
		return nil
	}
	out := make([]Section, len(sections))
	for i, s := range sections {
		out[i] = s.clone()
	}
	return out
}

// reindex rewrites every section's Order to its slice position. Position in
// the slice is the source of truth; Order is a denormalized mirror.
func reindex(sections []Section) {
	for i := range sections {
		sections[i].Order = i
	}
}

// Document is the in-memory editable state of one portfolio draft. Dragging,
// PreviewMode and PreviewDevice are ephemeral UI flags: part of state, never
// persisted. Dirty is true iff there are mutations not yet durably saved.
type Document struct {
	Sections          []Section
	SelectedSectionID string
	Title             string
	Dirty             bool
	Dragging          bool
	PreviewMode       bool
	PreviewDevice     string
}

// Content is the persistable subset of a Document: exactly what the store
// serializes and what a save round-trip carries.
type Content struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Content returns a deep copy of the document's persistable fields.
func (d Document) Content() Content {
	return Content{Title: d.Title, Sections: cloneSections(d.Sections)}
}

func (d Document) indexOf(id string) int {
	for i, s := range d.Sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Snapshot is an immutable copy of the history-relevant subset of Document
// state, taken before every structural mutation. The Dragging flag and the
// dirty bit are deliberately outside it.
type Snapshot struct {
	Sections          []Section
	SelectedSectionID string
	Title             string
	PreviewMode       bool
	PreviewDevice     string
}

func (d Document) snapshot() Snapshot {
	return Snapshot{
		Sections:          cloneSections(d.Sections),
		SelectedSectionID: d.SelectedSectionID,
		Title:             d.Title,
		PreviewMode:       d.PreviewMode,
		PreviewDevice:     d.PreviewDevice,
	}
}

// restore returns a copy of d with the snapshot's fields applied. Ephemeral
// drag state survives, the dirty bit is the caller's concern.
func (d Document) restore(snap Snapshot) Document {
	next := d
	next.Sections = cloneSections(snap.Sections)
	next.SelectedSectionID = snap.SelectedSectionID
	next.Title = snap.Title
	next.PreviewMode = snap.PreviewMode
	next.PreviewDevice = snap.PreviewDevice
	return next
}

// Validate checks the structural invariants: section ids pairwise distinct,
// Order dense and equal to slice position, selection pointing at a real
// section when set.
func (d Document) Validate() error {
	seen := make(map[string]struct{}, len(d.Sections))
	for i, s := range d.Sections {
		if s.ID == "" {
			return fmt.Errorf("section at %d has empty id", i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate section id %s", s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Order != i {
			return fmt.Errorf("section %s has order %d at position %d", s.ID, s.Order, i)
		}
	}
	if d.SelectedSectionID != "" {
		if _, ok := seen[d.SelectedSectionID]; !ok {
			return fmt.Errorf("selection points at missing section %s", d.SelectedSectionID)
		}
	}
	return nil
}
