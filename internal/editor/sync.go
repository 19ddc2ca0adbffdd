package editor

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Status is the save indicator surfaced to the UI. Saved and Error are
// transient stages shown for a fixed duration before reverting to Idle.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
	StatusError  Status = "error"
)

// saveState is the synchronizer's explicit state machine, replacing the ad
// hoc boolean flags of the original design.
//
//	saveIdle          no timer armed, nothing in flight
//	saveScheduled     debounce (or follow-up) timer armed
//	saveSaving        one save round-trip in flight
//	saveSavingPending in flight, with edits that arrived during the flight;
//	                  completion schedules exactly one follow-up save
type saveState int

const (
	saveIdle saveState = iota
	saveScheduled
	saveSaving
	saveSavingPending
)

// noteChangeLocked reacts to a qualifying document change. Auto-save never
// arms without a portfolio id, without unsaved changes, or for an empty
// section list (an empty document is a not-yet-initialized session, not an
// intentional deletion).
func (s *Session) noteChangeLocked() {
	if s.closed || s.portfolioID == "" || !s.doc.Dirty || len(s.doc.Sections) == 0 {
		return
	}
	switch s.saveState {
	case saveIdle:
		s.saveState = saveScheduled
		s.armDebounceLocked(s.opts.Debounce)
	case saveScheduled:
		// A continuous stream of edits keeps deferring the save until the
		// stream pauses.
		s.armDebounceLocked(s.opts.Debounce)
	case saveSaving:
		s.saveState = saveSavingPending
	case saveSavingPending:
		// Repeated in-flight edits coalesce into the single follow-up.
	}
}

func (s *Session) armDebounceLocked(delay time.Duration) {
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(delay, s.onDebounceFire)
}

func (s *Session) onDebounceFire() {
	s.mu.Lock()
	if s.closed || s.saveState != saveScheduled {
		s.mu.Unlock()
		return
	}
	if !s.doc.Dirty || len(s.doc.Sections) == 0 {
		s.saveState = saveIdle
		s.mu.Unlock()
		return
	}
	s.saveState = saveSaving
	id := s.portfolioID
	content := s.doc.Content()
	version := s.version
	s.setStatusLocked(StatusSaving)
	s.mu.Unlock()

	newVersion, err := s.save(id, content, version)

	s.mu.Lock()
	s.finishSaveLocked(id, newVersion, err)
	s.mu.Unlock()
}

// SaveNow performs a save immediately, bypassing the debounce timer. Unlike
// auto-save, failures are returned to the caller so the UI can present a
// blocking error. Returns ErrSaveInFlight while a round-trip is running.
func (s *Session) SaveNow(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	switch s.saveState {
	case saveSaving, saveSavingPending:
		s.mu.Unlock()
		return ErrSaveInFlight
	case saveScheduled:
		if s.debounce != nil {
			s.debounce.Stop()
		}
	}
	s.saveState = saveSaving
	id := s.portfolioID
	content := s.doc.Content()
	version := s.version
	s.setStatusLocked(StatusSaving)
	s.mu.Unlock()

	newVersion, err := s.store.SavePortfolio(ctx, id, content, version)

	s.mu.Lock()
	s.finishSaveLocked(id, newVersion, err)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save portfolio %s: %w", id, err)
	}
	return nil
}

func (s *Session) save(id string, content Content, version int) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.SaveTimeout)
	defer cancel()
	return s.store.SavePortfolio(ctx, id, content, version)
}

// finishSaveLocked completes one save round-trip. Success clears the dirty
// flag unless edits arrived during the flight; either way a set pending flag
// schedules exactly one follow-up save after a short delay, so edits made
// during a save are never silently dropped.
func (s *Session) finishSaveLocked(id string, newVersion int, err error) {
	pending := s.saveState == saveSavingPending
	if err != nil {
		log.Printf("editor: save portfolio %s: %v", id, err)
		s.setStatusLocked(StatusError)
		s.armStatusRevertLocked(s.opts.ErrorFor)
	} else {
		s.version = newVersion
		s.lastSavedAt = time.Now()
		if !pending {
			s.doc.Dirty = false
		}
		s.setStatusLocked(StatusSaved)
		s.armStatusRevertLocked(s.opts.SavedFor)
	}
	if pending && !s.closed {
		s.saveState = saveScheduled
		s.armDebounceLocked(s.opts.FollowUp)
	} else {
		s.saveState = saveIdle
	}
}

// Status returns the current save indicator stage.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Subscribe registers a callback invoked on every status transition and
// returns an unsubscribe func. Callbacks run with the session lock held and
// must not call back into the session.
func (s *Session) Subscribe(fn func(Status)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Session) setStatusLocked(status Status) {
	if s.status == status {
		return
	}
	s.status = status
	for _, fn := range s.subs {
		fn(status)
	}
}

func (s *Session) armStatusRevertLocked(after time.Duration) {
	if s.statusTimer != nil {
		s.statusTimer.Stop()
	}
	s.statusTimer = time.AfterFunc(after, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		if s.status == StatusSaved || s.status == StatusError {
			s.setStatusLocked(StatusIdle)
		}
	})
}
