package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrSessionClosed is returned by operations on a torn-down session.
	ErrSessionClosed = errors.New("editor session closed")
	// ErrSaveInFlight is returned by SaveNow when a save round-trip is
	// already running; the caller can retry once the status leaves "saving".
	ErrSaveInFlight = errors.New("save already in flight")
)

// Options tunes the session's timers and history depth. Zero values pick the
// defaults.
type Options struct {
	// Debounce is the quiet period after the last qualifying edit before an
	// auto-save fires.
	Debounce time.Duration
	// FollowUp is the short delay before the single queued save that covers
	// edits made while a save was in flight.
	FollowUp time.Duration
	// SavedFor and ErrorFor bound how long the transient status stages are
	// shown before reverting to idle.
	SavedFor time.Duration
	ErrorFor time.Duration
	// SaveTimeout bounds one store round-trip.
	SaveTimeout time.Duration
	// HistoryDepth caps the undo/redo stacks.
	HistoryDepth int
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 3 * time.Second
	}
	if o.FollowUp <= 0 {
		o.FollowUp = 250 * time.Millisecond
	}
	if o.SavedFor <= 0 {
		o.SavedFor = 2 * time.Second
	}
	if o.ErrorFor <= 0 {
		o.ErrorFor = 4 * time.Second
	}
	if o.SaveTimeout <= 0 {
		o.SaveTimeout = 10 * time.Second
	}
	if o.HistoryDepth <= 0 {
		o.HistoryDepth = DefaultHistoryDepth
	}
	return o
}

// Session owns one portfolio draft: the document, its undo/redo history, and
// the synchronizer that reconciles the draft with the store. One session per
// open editor; construct with NewSession, tear down with Close.
//
// All entry points serialize on an internal mutex, the Go rendition of the
// original single-threaded dispatch loop. Timer callbacks take the same lock,
// so observable state never changes mid-dispatch.
type Session struct {
	store PortfolioStore
	opts  Options

	mu          sync.Mutex
	portfolioID string
	doc         Document
	hist        *history
	version     int
	closed      bool

	saveState   saveState
	debounce    *time.Timer
	statusTimer *time.Timer
	status      Status
	subs        map[int]func(Status)
	nextSub     int
	lastSavedAt time.Time
}

// NewSession creates an editor session for the portfolio with the given id.
// The document starts empty; call Load to hydrate it from the store.
func NewSession(store PortfolioStore, portfolioID string, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		store:       store,
		opts:        opts,
		portfolioID: portfolioID,
		hist:        newHistory(opts.HistoryDepth),
		status:      StatusIdle,
		subs:        make(map[int]func(Status)),
	}
}

// Load fetches the stored portfolio and replaces the document wholesale,
// clearing history. A failed load is returned to the caller and not retried.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	id := s.portfolioID
	s.mu.Unlock()

	content, version, err := s.store.FetchPortfolio(ctx, id)
	if err != nil {
		return fmt.Errorf("load portfolio %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	next, _ := LoadPortfolio{Title: content.Title, Sections: content.Sections}.apply(s.doc)
	s.doc = next
	s.hist.reset()
	s.version = version
	return nil
}

// Dispatch runs one command through the reducer. History-worthy commands push
// the pre-state onto the undo stack; dirtying commands mark the document
// unsaved and poke the synchronizer. Commands targeting missing sections are
// logged no-ops.
func (s *Session) Dispatch(cmd Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if load, ok := cmd.(LoadPortfolio); ok {
		next, _ := load.apply(s.doc)
		s.doc = next
		s.hist.reset()
		return
	}
	var pre Snapshot
	if cmd.recordsHistory() {
		pre = s.doc.snapshot()
	}
	next, applied := cmd.apply(s.doc)
	if !applied {
		return
	}
	if cmd.recordsHistory() {
		s.hist.record(pre)
	}
	s.doc = next
	if cmd.dirties() {
		s.doc.Dirty = true
		s.noteChangeLocked()
	}
}

// State returns a deep copy of the current document for rendering.
func (s *Session) State() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.doc
	out.Sections = cloneSections(s.doc.Sections)
	return out
}

// Undo reverts the most recent history-worthy mutation. No-op when the past
// stack is empty.
func (s *Session) Undo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	snap, ok := s.hist.undo(s.doc.snapshot())
	if !ok {
		return
	}
	s.doc = s.doc.restore(snap)
	s.doc.Dirty = true
	s.noteChangeLocked()
}

// Redo re-applies the most recently undone mutation. No-op when the future
// stack is empty.
func (s *Session) Redo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	snap, ok := s.hist.redo(s.doc.snapshot())
	if !ok {
		return
	}
	s.doc = s.doc.restore(snap)
	s.doc.Dirty = true
	s.noteChangeLocked()
}

// CanUndo reports whether the past stack is non-empty, for disabling the
// corresponding control.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.canUndo()
}

// CanRedo reports whether the future stack is non-empty.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.canRedo()
}

// PortfolioID returns the id this session edits.
func (s *Session) PortfolioID() string {
	return s.portfolioID
}

// Version returns the store version the session last loaded or saved.
func (s *Session) Version() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// LastSavedAt returns when the last successful save completed, zero if none.
func (s *Session) LastSavedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSavedAt
}

// Close tears the session down: pending timers are stopped and further
// operations become no-ops. An in-flight save is not canceled; it completes
// against the store but schedules no follow-up.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.debounce != nil {
		s.debounce.Stop()
	}
	if s.statusTimer != nil {
		s.statusTimer.Stop()
	}
}
