package editor

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by FetchPortfolio for unknown ids.
	ErrNotFound = errors.New("portfolio not found")
	// ErrVersionConflict is returned by SavePortfolio when the stored row has
	// moved past the version the editor loaded, i.e. another session saved in
	// between.
	ErrVersionConflict = errors.New("portfolio version conflict")
)

// PortfolioStore is the persistence service the engine saves against. The
// engine never interprets stored content; it round-trips the persistable
// subset of the document plus an integer version used for optimistic
// concurrency.
type PortfolioStore interface {
	// FetchPortfolio returns the stored content and its current version.
	FetchPortfolio(ctx context.Context, id string) (Content, int, error)

	// SavePortfolio replaces the stored content if the row is still at
	// expectedVersion, returning the new version. Saving identical content
	// twice yields the same stored state.
	SavePortfolio(ctx context.Context, id string, content Content, expectedVersion int) (int, error)

	// SlugAvailable reports whether candidate is free, ignoring the portfolio
	// identified by excludeID so a document keeps its own slug across saves.
	SlugAvailable(ctx context.Context, candidate string, excludeID string) (bool, error)
}
