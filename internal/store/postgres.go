package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"folio/api/internal/editor"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- users ----

const userColumns = `id, display_name, email, password_hash, is_email_verified,
	COALESCE(verification_token, ''), verification_expires_at, deactivated_at, created_at, updated_at`

func scanUser(row *sql.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash,
		&user.IsEmailVerified, &user.VerificationToken, &user.VerificationExpiresAt,
		&user.DeactivatedAt, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, is_email_verified, verification_token, verification_expires_at)
		VALUES ($1, $2, LOWER($3), $4, $5, NULLIF($6, ''), $7)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.IsEmailVerified,
		user.VerificationToken, user.VerificationExpiresAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = LOWER($1)`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, err
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user by email: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, err
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user by id: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token = $2, verification_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_email_verified = TRUE, verification_token = NULL, verification_expires_at = NULL, updated_at = NOW()
		WHERE verification_token = $1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email rows: %w", err)
	}
	if affected == 0 {
		return errors.New("invalid or expired verification token")
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at) VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("insert password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token = $1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.New("invalid or expired reset token")
	}
	if err != nil {
		return "", fmt.Errorf("lookup password reset: %w", err)
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE password_resets SET used_at = NOW() WHERE token = $1
	`, token)
	if err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	return nil
}

// ---- refresh sessions (Postgres fallback when Redis is not configured) ----

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM refresh_sessions WHERE token_hash = $1 AND expires_at > NOW()
	`, tokenHash).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, errors.New("refresh session not found or expired")
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup refresh session: %w", err)
	}
	return s.GetUserByID(ctx, userID)
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// ---- portfolios ----

const portfolioColumns = `id, user_id, title, COALESCE(slug, ''), content, version,
	published, published_at, created_at, updated_at`

func scanPortfolio(row *sql.Row) (Portfolio, error) {
	var p Portfolio
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Slug, &p.Content, &p.Version,
		&p.Published, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *PostgresStore) CreatePortfolio(ctx context.Context, p Portfolio) error {
	content := p.Content
	if len(content) == 0 {
		content = json.RawMessage(`{"title":"","sections":[]}`)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolios (id, user_id, title, content, version)
		VALUES ($1, $2, $3, $4, 1)
	`, p.ID, p.UserID, p.Title, []byte(content))
	if err != nil {
		return fmt.Errorf("insert portfolio: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPortfolio(ctx context.Context, portfolioID string) (Portfolio, error) {
	p, err := scanPortfolio(s.db.QueryRowContext(ctx,
		`SELECT `+portfolioColumns+` FROM portfolios WHERE id = $1`, portfolioID))
	if errors.Is(err, sql.ErrNoRows) {
		return Portfolio{}, editor.ErrNotFound
	}
	if err != nil {
		return Portfolio{}, fmt.Errorf("lookup portfolio: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPublishedBySlug(ctx context.Context, slug string) (Portfolio, error) {
	p, err := scanPortfolio(s.db.QueryRowContext(ctx,
		`SELECT `+portfolioColumns+` FROM portfolios WHERE slug = $1 AND published`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return Portfolio{}, editor.ErrNotFound
	}
	if err != nil {
		return Portfolio{}, fmt.Errorf("lookup published portfolio: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPortfoliosByUser(ctx context.Context, userID string) ([]Portfolio, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+portfolioColumns+` FROM portfolios WHERE user_id = $1 ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list portfolios: %w", err)
	}
	defer rows.Close()

	var out []Portfolio
	for rows.Next() {
		var p Portfolio
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Slug, &p.Content, &p.Version,
			&p.Published, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan portfolio: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListPublished(ctx context.Context) ([]Portfolio, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+portfolioColumns+` FROM portfolios WHERE published ORDER BY published_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}
	defer rows.Close()

	var out []Portfolio
	for rows.Next() {
		var p Portfolio
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Slug, &p.Content, &p.Version,
			&p.Published, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan portfolio: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeletePortfolio(ctx context.Context, portfolioID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM portfolios WHERE id = $1`, portfolioID); err != nil {
		return fmt.Errorf("delete portfolio: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetPublished(ctx context.Context, portfolioID, slug string, published bool) error {
	var err error
	if published {
		_, err = s.db.ExecContext(ctx, `
			UPDATE portfolios SET slug = $2, published = TRUE, published_at = NOW(), updated_at = NOW()
			WHERE id = $1
		`, portfolioID, slug)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE portfolios SET published = FALSE, updated_at = NOW() WHERE id = $1
		`, portfolioID)
	}
	if err != nil {
		return fmt.Errorf("set published: %w", err)
	}
	return nil
}

// ---- editor.PortfolioStore ----

// FetchPortfolio returns the stored draft content and its version for editor
// hydration.
func (s *PostgresStore) FetchPortfolio(ctx context.Context, portfolioID string) (editor.Content, int, error) {
	var raw []byte
	var version int
	err := s.db.QueryRowContext(ctx,
		`SELECT content, version FROM portfolios WHERE id = $1`, portfolioID).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return editor.Content{}, 0, editor.ErrNotFound
	}
	if err != nil {
		return editor.Content{}, 0, fmt.Errorf("fetch portfolio content: %w", err)
	}
	var content editor.Content
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &content); err != nil {
			return editor.Content{}, 0, fmt.Errorf("decode portfolio content: %w", err)
		}
	}
	return content, version, nil
}

// SavePortfolio replaces the draft content if the row is still at
// expectedVersion. A stale version yields editor.ErrVersionConflict so the
// session can surface the conflict instead of silently overwriting another
// tab's save.
func (s *PostgresStore) SavePortfolio(ctx context.Context, portfolioID string, content editor.Content, expectedVersion int) (int, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return 0, fmt.Errorf("encode portfolio content: %w", err)
	}
	var newVersion int
	err = s.db.QueryRowContext(ctx, `
		UPDATE portfolios
		SET content = $2, title = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $4
		RETURNING version
	`, portfolioID, raw, content.Title, expectedVersion).Scan(&newVersion)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if probeErr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM portfolios WHERE id = $1)`, portfolioID).Scan(&exists); probeErr != nil {
			return 0, fmt.Errorf("probe portfolio: %w", probeErr)
		}
		if !exists {
			return 0, editor.ErrNotFound
		}
		return 0, editor.ErrVersionConflict
	}
	if err != nil {
		return 0, fmt.Errorf("save portfolio content: %w", err)
	}
	return newVersion, nil
}

// SlugAvailable reports whether candidate is unclaimed, ignoring excludeID so
// a portfolio keeps its own slug across republishes.
func (s *PostgresStore) SlugAvailable(ctx context.Context, candidate, excludeID string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM portfolios WHERE slug = $1 AND id <> $2)
	`, candidate, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return !taken, nil
}
