package editor

import (
	"context"
	"errors"
	"fmt"
)

// maxSlugProbes caps the uniqueness probe so a pathological corpus cannot
// keep the resolver looping.
const maxSlugProbes = 50

// ErrSlugExhausted is returned when no free slug was found within the probe
// budget.
var ErrSlugExhausted = errors.New("no free slug within probe budget")

// Slugify derives a URL slug from a human title: lowercased, runs of
// non-alphanumeric characters collapsed to a single hyphen, leading and
// trailing hyphens trimmed. Empty results fall back to "portfolio".
func Slugify(title string) string {
	slug := make([]rune, 0, len(title))
	lastHyphen := true
	for _, ch := range title {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			slug = append(slug, ch)
			lastHyphen = false
		case ch >= 'A' && ch <= 'Z':
			slug = append(slug, ch+('a'-'A'))
			lastHyphen = false
		default:
			if !lastHyphen {
				slug = append(slug, '-')
				lastHyphen = true
			}
		}
	}
	for len(slug) > 0 && slug[len(slug)-1] == '-' {
		slug = slug[:len(slug)-1]
	}
	if len(slug) == 0 {
		return "portfolio"
	}
	return string(slug)
}

// ResolveSlug probes the store for a free variant of the title's base slug:
// base, base-1, base-2, and so on. The portfolio's own id is excluded from
// the collision check so an unchanged title keeps its slug across saves.
func ResolveSlug(ctx context.Context, store PortfolioStore, title, excludeID string) (string, error) {
	base := Slugify(title)
	candidate := base
	for attempt := 0; attempt < maxSlugProbes; attempt++ {
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d", base, attempt)
		}
		free, err := store.SlugAvailable(ctx, candidate, excludeID)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if free {
			return candidate, nil
		}
	}
	return "", ErrSlugExhausted
}
