package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"folio/api/internal/editor"
)

// editorSession returns the live editor session for a portfolio, creating and
// hydrating one on first use. Sessions are keyed by portfolio id; a second
// user can never reach one because ownership is checked before lookup.
func (s *Service) editorSession(ctx context.Context, userID, portfolioID string) (*editor.Session, error) {
	if _, err := s.ownedPortfolio(ctx, userID, portfolioID); err != nil {
		return nil, err
	}

	s.editorMu.Lock()
	s.pruneEditorSessionsLocked()
	if rec, ok := s.editors[portfolioID]; ok {
		rec.lastUsed = time.Now()
		s.editorMu.Unlock()
		return rec.session, nil
	}
	s.editorMu.Unlock()

	sess := editor.NewSession(s.store, portfolioID, editor.Options{
		Debounce: s.cfg.AutosaveDebounce,
	})
	if err := sess.Load(ctx); err != nil {
		sess.Close()
		return nil, fmt.Errorf("load editor session: %w", err)
	}

	s.editorMu.Lock()
	defer s.editorMu.Unlock()
	if rec, ok := s.editors[portfolioID]; ok {
		// Another request created the session while we were loading.
		sess.Close()
		rec.lastUsed = time.Now()
		return rec.session, nil
	}
	s.editors[portfolioID] = &editorSessionRecord{
		session:  sess,
		userID:   userID,
		lastUsed: time.Now(),
	}
	return sess, nil
}

// pruneEditorSessionsLocked closes sessions idle past the TTL. Pending edits
// are flushed by the session's own debounce before it ever goes idle that long.
func (s *Service) pruneEditorSessionsLocked() {
	if s.editorTTL <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.editorTTL)
	for id, rec := range s.editors {
		if rec.lastUsed.Before(cutoff) {
			rec.session.Close()
			delete(s.editors, id)
		}
	}
}

// CloseEditorSession tears down the live session for a portfolio, if any.
func (s *Service) CloseEditorSession(portfolioID string) {
	s.editorMu.Lock()
	defer s.editorMu.Unlock()
	if rec, ok := s.editors[portfolioID]; ok {
		rec.session.Close()
		delete(s.editors, portfolioID)
	}
}

// CloseAllEditorSessions is called on shutdown.
func (s *Service) CloseAllEditorSessions() {
	s.editorMu.Lock()
	defer s.editorMu.Unlock()
	for id, rec := range s.editors {
		rec.session.Close()
		delete(s.editors, id)
	}
}

// EditorCommandInput is one command posted by the editor UI.
type EditorCommandInput struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Service) DispatchEditorCommand(ctx context.Context, userID, portfolioID string, input EditorCommandInput) (map[string]any, error) {
	cmd, err := decodeCommand(input)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	sess, err := s.editorSession(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}
	sess.Dispatch(cmd)
	return editorStatePayload(sess), nil
}

func (s *Service) EditorState(ctx context.Context, userID, portfolioID string) (map[string]any, error) {
	sess, err := s.editorSession(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}
	return editorStatePayload(sess), nil
}

func (s *Service) EditorUndo(ctx context.Context, userID, portfolioID string) (map[string]any, error) {
	sess, err := s.editorSession(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}
	sess.Undo()
	return editorStatePayload(sess), nil
}

func (s *Service) EditorRedo(ctx context.Context, userID, portfolioID string) (map[string]any, error) {
	sess, err := s.editorSession(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}
	sess.Redo()
	return editorStatePayload(sess), nil
}

func (s *Service) EditorSave(ctx context.Context, userID, portfolioID string) (map[string]any, error) {
	sess, err := s.editorSession(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}
	if err := sess.SaveNow(ctx); err != nil {
		if errors.Is(err, editor.ErrSaveInFlight) {
			return nil, domainError(http.StatusConflict, "SAVE_IN_FLIGHT", "A save is already in progress", nil)
		}
		if errors.Is(err, editor.ErrVersionConflict) {
			return nil, domainError(http.StatusConflict, "VERSION_CONFLICT", "Portfolio was saved elsewhere, reload the editor", nil)
		}
		return nil, err
	}
	return editorStatePayload(sess), nil
}

func (s *Service) EditorStatus(ctx context.Context, userID, portfolioID string) (map[string]any, error) {
	sess, err := s.editorSession(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"status":  string(sess.Status()),
		"version": sess.Version(),
	}
	if at := sess.LastSavedAt(); !at.IsZero() {
		payload["lastSavedAt"] = at
	}
	return payload, nil
}

func editorStatePayload(sess *editor.Session) map[string]any {
	doc := sess.State()
	return map[string]any{
		"title":             doc.Title,
		"sections":          doc.Sections,
		"selectedSectionId": doc.SelectedSectionID,
		"dirty":             doc.Dirty,
		"dragging":          doc.Dragging,
		"previewMode":       doc.PreviewMode,
		"previewDevice":     doc.PreviewDevice,
		"canUndo":           sess.CanUndo(),
		"canRedo":           sess.CanRedo(),
		"saveStatus":        string(sess.Status()),
		"version":           sess.Version(),
	}
}

// decodeCommand maps a wire command onto an editor command. Load is excluded:
// hydration happens through session creation, not through the command channel.
func decodeCommand(input EditorCommandInput) (editor.Command, error) {
	payload := input.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	switch input.Type {
	case "add_section":
		var body struct {
			Kind string `json:"kind"`
			At   *int   `json:"at"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("invalid add_section payload")
		}
		return editor.AddSection{Kind: editor.SectionKind(body.Kind), At: body.At}, nil
	case "remove_section":
		var body struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("invalid remove_section payload")
		}
		return editor.RemoveSection{ID: body.ID}, nil
	case "move_section":
		var body struct {
			ID string `json:"id"`
			To int    `json:"to"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("invalid move_section payload")
		}
		return editor.MoveSection{ID: body.ID, To: body.To}, nil
	case "duplicate_section":
		var body struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("invalid duplicate_section payload")
		}
		return editor.DuplicateSection{ID: body.ID}, nil
	case "update_section_data":
		var body struct {
			ID   string          `json:"id"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("invalid update_section_data payload")
		}
		return editor.UpdateSectionData{ID: body.ID, Data: body.Data}, nil
	case "update_section_styling":
		var body struct {
			ID      string          `json:"id"`
			Styling json.RawMessage `json:"styling"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("invalid update_section_styling payload")
		}
		return editor.UpdateSectionStyling{ID: body.ID, Styling: body.Styling}, nil
	case "select_section":
		var body struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("invalid select_section payload")
		}
		return editor.SelectSection{ID: body.ID}, nil
	case "set_preview_mode":
		var body struct {
			On bool `json:"on"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("invalid set_preview_mode payload")
		}
		return editor.SetPreviewMode{On: body.On}, nil
	case "set_preview_device":
		var body struct {
			Device string `json:"device"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("invalid set_preview_device payload")
		}
		return editor.SetPreviewDevice{Device: body.Device}, nil
	case "set_dragging":
		var body struct {
			On bool `json:"on"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("invalid set_dragging payload")
		}
		return editor.SetDragging{On: body.On}, nil
	case "update_title":
		var body struct {
			Title string `json:"title"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("invalid update_title payload")
		}
		return editor.UpdateTitle{Title: body.Title}, nil
	case "set_unsaved_changes":
		var body struct {
			Dirty bool `json:"dirty"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("invalid set_unsaved_changes payload")
		}
		return editor.SetUnsavedChanges{Dirty: body.Dirty}, nil
	default:
		return nil, fmt.Errorf("unknown command type %q", input.Type)
	}
}
