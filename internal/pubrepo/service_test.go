package pubrepo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"folio/api/internal/editor"
)

func sampleContent(title string) editor.Content {
	return editor.Content{
		Title: title,
		Sections: []editor.Section{
			{
				ID:       "sec_hero01",
				Kind:     editor.SectionHero,
				Data:     json.RawMessage(`{"heading":"Hi, I'm Avery","tagline":"Designer"}`),
				Styling:  json.RawMessage(`{"background":"#fff"}`),
				Order:    0,
				Editable: true,
			},
			{
				ID:       "sec_about1",
				Kind:     editor.SectionAbout,
				Data:     json.RawMessage(`{"body":"I build things."}`),
				Order:    1,
				Editable: true,
			},
		},
	}
}

func TestPublishLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	first, err := svc.CommitPublish("pfl_1", sampleContent("Portfolio"), "Avery", "Publish v1")
	if err != nil {
		t.Fatalf("CommitPublish() error = %v", err)
	}
	if first.Hash == "" {
		t.Fatal("expected commit hash")
	}
	if _, err := os.Stat(filepath.Join(tempDir, "pfl_1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	updated := sampleContent("Portfolio v2")
	second, err := svc.CommitPublish("pfl_1", updated, "Avery", "Publish v2")
	if err != nil {
		t.Fatalf("CommitPublish() error = %v", err)
	}

	history, err := svc.History("pfl_1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 publish records, got %d", len(history))
	}
	if history[0].Hash != second.Hash {
		t.Fatalf("expected newest record first, got %+v", history[0])
	}

	got, err := svc.ContentAt("pfl_1", second.Hash)
	if err != nil {
		t.Fatalf("ContentAt() error = %v", err)
	}
	if got.Title != "Portfolio v2" {
		t.Fatalf("unexpected content title: %q", got.Title)
	}
	if len(got.Sections) != 2 || got.Sections[0].Kind != editor.SectionHero {
		t.Fatalf("unexpected sections after round-trip: %+v", got.Sections)
	}

	old, err := svc.ContentAt("pfl_1", first.Hash)
	if err != nil {
		t.Fatalf("ContentAt() old hash error = %v", err)
	}
	if old.Title != "Portfolio" {
		t.Fatalf("expected first published title, got %q", old.Title)
	}
}

func TestHistoryWithoutRepo(t *testing.T) {
	svc := New(t.TempDir())

	history, err := svc.History("pfl_missing", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d records", len(history))
	}
}

func TestHistoryLimit(t *testing.T) {
	svc := New(t.TempDir())

	for i := 0; i < 5; i++ {
		if _, err := svc.CommitPublish("pfl_1", sampleContent(fmt.Sprintf("v%d", i)), "Avery", fmt.Sprintf("Publish %d", i)); err != nil {
			t.Fatalf("CommitPublish() error = %v", err)
		}
	}

	history, err := svc.History("pfl_1", 3)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 records with limit, got %d", len(history))
	}
}

func TestConcurrentPublishSamePortfolio(t *testing.T) {
	svc := New(t.TempDir())

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			content := sampleContent(fmt.Sprintf("title-%02d", idx))
			if _, err := svc.CommitPublish("pfl_1", content, "Avery", fmt.Sprintf("Publish %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("CommitPublish() concurrent error = %v", err)
		}
	}

	history, err := svc.History("pfl_1", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != writers {
		t.Fatalf("expected %d publish records, got %d", writers, len(history))
	}
	if !strings.HasPrefix(history[0].Message, "Publish ") {
		t.Fatalf("unexpected head record after concurrent publishes: %+v", history[0])
	}
}
