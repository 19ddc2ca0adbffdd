// Package pubrepo keeps a git-backed publish history per portfolio: every
// publish commits the published content, so past published versions can be
// listed, viewed, and restored.
package pubrepo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"folio/api/internal/editor"
	"folio/api/internal/store"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const contentFile = "content.json"

// Service manages one repository per portfolio under baseDir. All publishes
// land on main; there is no branching.
type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// CommitPublish records one published version, initializing the repository on
// first publish.
func (s *Service) CommitPublish(portfolioID string, content editor.Content, author, message string) (store.PublishRecord, error) {
	lock := s.portfolioLock(portfolioID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(portfolioID)
	if err != nil {
		return store.PublishRecord{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return store.PublishRecord{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return store.PublishRecord{}, fmt.Errorf("marshal content: %w", err)
	}
	root := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(root, contentFile), append(payload, '\n'), 0o644); err != nil {
		return store.PublishRecord{}, fmt.Errorf("write %s: %w", contentFile, err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return store.PublishRecord{}, fmt.Errorf("git add content: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@folio.dev", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return store.PublishRecord{}, fmt.Errorf("commit content: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return store.PublishRecord{}, fmt.Errorf("read commit object: %w", err)
	}
	return toPublishRecord(commitObj), nil
}

// History lists publish records, newest first.
func (s *Service) History(portfolioID string, limit int) ([]store.PublishRecord, error) {
	lock := s.portfolioLock(portfolioID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(portfolioID))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil
		}
		return nil, fmt.Errorf("open repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var items []store.PublishRecord
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toPublishRecord(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// ContentAt returns the published content at a commit, by full or abbreviated
// hash.
func (s *Service) ContentAt(portfolioID, hash string) (editor.Content, error) {
	lock := s.portfolioLock(portfolioID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(portfolioID))
	if err != nil {
		return editor.Content{}, fmt.Errorf("open repo: %w", err)
	}
	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return editor.Content{}, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return editor.Content{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readContentFromCommit(commitObj)
}

func (s *Service) openOrInit(portfolioID string) (*git.Repository, error) {
	path := s.repoPath(portfolioID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(portfolioID string) string {
	return filepath.Join(s.baseDir, portfolioID)
}

func (s *Service) portfolioLock(portfolioID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[portfolioID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[portfolioID] = lock
	}
	return lock
}

func readContentFromCommit(commitObj *object.Commit) (editor.Content, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return editor.Content{}, fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return editor.Content{}, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return editor.Content{}, fmt.Errorf("read content bytes: %w", err)
	}
	var content editor.Content
	if err := json.Unmarshal(raw, &content); err != nil {
		return editor.Content{}, fmt.Errorf("decode commit content: %w", err)
	}
	return content, nil
}

func toPublishRecord(commitObj *object.Commit) store.PublishRecord {
	return store.PublishRecord{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			out = append(out, r)
		case r == ' ' || r == '-' || r == '_':
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
