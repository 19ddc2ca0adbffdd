package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery over the published portfolios, ranked with
// ts_rank and snippeted with ts_headline.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM portfolios p
		WHERE p.published AND p.fts @@ plainto_tsquery('english', $1)`,
		q.Text,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT p.id, p.title, COALESCE(p.slug, ''), u.display_name,
			ts_headline('english', coalesce(p.content::text, ''), plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet
		FROM portfolios p
		JOIN users u ON u.id = p.user_id
		WHERE p.published AND p.fts @@ plainto_tsquery('english', $1)
		ORDER BY ts_rank(p.fts, plainto_tsquery('english', $1)) DESC
		LIMIT %d OFFSET %d`, limit, offset),
		q.Text,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Slug, &r.OwnerName, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every published portfolio for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]PortfolioRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT p.id, p.title, COALESCE(p.slug, ''), u.display_name, p.content::text
		FROM portfolios p
		JOIN users u ON u.id = p.user_id
		WHERE p.published
	`)
	if err != nil {
		return nil, fmt.Errorf("load portfolios: %w", err)
	}
	defer rows.Close()

	records := make([]PortfolioRecord, 0)
	for rows.Next() {
		var rec PortfolioRecord
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Slug, &rec.OwnerName, &rec.Body); err != nil {
			return nil, fmt.Errorf("scan portfolio: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate portfolios: %w", err)
	}
	return records, nil
}
