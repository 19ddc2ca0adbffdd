package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"folio/api/internal/assets"
	"folio/api/internal/auth"
	"folio/api/internal/authpw"
	"folio/api/internal/config"
	"folio/api/internal/editor"
	"folio/api/internal/email"
	"folio/api/internal/export"
	"folio/api/internal/search"
	"folio/api/internal/store"
	"folio/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

// dataStore is the portfolio/user persistence surface the service depends on.
// store.PostgresStore implements it; tests substitute a fake.
type dataStore interface {
	editor.PortfolioStore

	GetUserByID(context.Context, string) (store.User, error)
	CreatePortfolio(context.Context, store.Portfolio) error
	GetPortfolio(context.Context, string) (store.Portfolio, error)
	GetPublishedBySlug(context.Context, string) (store.Portfolio, error)
	ListPortfoliosByUser(context.Context, string) ([]store.Portfolio, error)
	ListPublished(context.Context) ([]store.Portfolio, error)
	DeletePortfolio(context.Context, string) error
	SetPublished(context.Context, string, string, bool) error
	Ping(ctx context.Context) error
}

// refreshStore holds refresh sessions. Backed by Redis when configured,
// otherwise by the refresh_sessions table in Postgres.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// publishRepo records one commit per publish and serves past published versions.
type publishRepo interface {
	CommitPublish(portfolioID string, content editor.Content, author, message string) (store.PublishRecord, error)
	History(portfolioID string, limit int) ([]store.PublishRecord, error)
	ContentAt(portfolioID, hash string) (editor.Content, error)
}

// assetStore keeps uploaded portfolio images.
type assetStore interface {
	Upload(ctx context.Context, portfolioID, contentType string, size int64, body io.Reader) (assets.Asset, error)
	DownloadURL(ctx context.Context, key string) (string, error)
	DeletePortfolioAssets(ctx context.Context, portfolioID string) error
}

type editorSessionRecord struct {
	session  *editor.Session
	userID   string
	lastUsed time.Time
}

type Service struct {
	cfg     config.Config
	store   dataStore
	refresh refreshStore
	pub     publishRepo
	search  *search.Service
	assets  assetStore
	authPw  *authpw.Service
	email   *email.Service
	export  *export.Service

	editorTTL time.Duration
	editorMu  sync.Mutex
	editors   map[string]*editorSessionRecord
}

func New(cfg config.Config, data dataStore, refresh refreshStore, pub publishRepo, searchSvc *search.Service) *Service {
	s := &Service{
		cfg:       cfg,
		store:     data,
		refresh:   refresh,
		pub:       pub,
		search:    searchSvc,
		editorTTL: cfg.SessionTTL,
		editors:   make(map[string]*editorSessionRecord),
	}
	s.export = export.NewService(exportAdapter{s})
	return s
}

// SetAssetStore wires S3-backed asset uploads. Upload routes answer 503 until
// a store is set.
func (s *Service) SetAssetStore(store assetStore) {
	s.assets = store
}

// SetAuthPasswordService wires the email/password auth flow.
func (s *Service) SetAuthPasswordService(svc *authpw.Service) {
	s.authPw = svc
}

// SetEmailService wires outbound email.
func (s *Service) SetEmailService(svc *email.Service) {
	s.email = svc
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authPw
}

func (s *Service) EmailService() *email.Service {
	return s.email
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func (s *Service) PublicBaseURL() string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/")
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ---- sessions ----

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	partial, err := s.refresh.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	// The refresh store may carry only the user id; re-read the full row.
	user, err := s.store.GetUserByID(ctx, partial.ID)
	if err != nil {
		return Session{}, err
	}
	if err := s.refresh.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.refresh.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	if user.DeactivatedAt != nil {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.refresh.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// ---- portfolios ----

// starterSections is the content of a freshly created portfolio.
func starterSections() []editor.Section {
	return []editor.Section{
		{
			ID:       util.NewShortID("sec"),
			Kind:     editor.SectionHero,
			Data:     json.RawMessage(`{"heading":"","tagline":""}`),
			Order:    0,
			Editable: true,
		},
		{
			ID:       util.NewShortID("sec"),
			Kind:     editor.SectionAbout,
			Data:     json.RawMessage(`{"body":""}`),
			Order:    1,
			Editable: true,
		},
	}
}

func (s *Service) CreatePortfolio(ctx context.Context, userID, title string) (map[string]any, error) {
	portfolioTitle := strings.TrimSpace(title)
	if portfolioTitle == "" {
		portfolioTitle = "Untitled Portfolio"
	}

	content := editor.Content{Title: portfolioTitle, Sections: starterSections()}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal starter content: %w", err)
	}

	portfolio := store.Portfolio{
		ID:      util.NewID("pfl"),
		UserID:  userID,
		Title:   portfolioTitle,
		Content: raw,
		Version: 1,
	}
	if err := s.store.CreatePortfolio(ctx, portfolio); err != nil {
		return nil, err
	}
	return portfolioPayload(portfolio, s.PublicBaseURL()), nil
}

func (s *Service) ListPortfolios(ctx context.Context, userID string) ([]map[string]any, error) {
	portfolios, err := s.store.ListPortfoliosByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(portfolios))
	for _, p := range portfolios {
		items = append(items, portfolioPayload(p, s.PublicBaseURL()))
	}
	return items, nil
}

// ownedPortfolio loads a portfolio and enforces ownership. Foreign portfolios
// read as not-found so ids do not leak.
func (s *Service) ownedPortfolio(ctx context.Context, userID, portfolioID string) (store.Portfolio, error) {
	portfolio, err := s.store.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return store.Portfolio{}, err
	}
	if portfolio.UserID != userID {
		return store.Portfolio{}, sql.ErrNoRows
	}
	return portfolio, nil
}

func (s *Service) GetPortfolioSummary(ctx context.Context, userID, portfolioID string) (map[string]any, error) {
	portfolio, err := s.ownedPortfolio(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}
	return portfolioPayload(portfolio, s.PublicBaseURL()), nil
}

func (s *Service) DeletePortfolio(ctx context.Context, userID, portfolioID string) error {
	if _, err := s.ownedPortfolio(ctx, userID, portfolioID); err != nil {
		return err
	}
	s.CloseEditorSession(portfolioID)
	if err := s.store.DeletePortfolio(ctx, portfolioID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeletePortfolio(portfolioID)
	}
	if s.assets != nil {
		if err := s.assets.DeletePortfolioAssets(ctx, portfolioID); err != nil {
			log.Printf("app: delete assets for %s: %v", portfolioID, err)
		}
	}
	return nil
}

// ---- publishing ----

func (s *Service) Publish(ctx context.Context, userID, portfolioID, requestedSlug string) (map[string]any, error) {
	portfolio, err := s.ownedPortfolio(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	content, _, err := s.store.FetchPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if len(content.Sections) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cannot publish an empty portfolio", nil)
	}

	base := strings.TrimSpace(requestedSlug)
	if base == "" {
		base = content.Title
	}
	slug := portfolio.Slug
	// Re-resolve only when unpublished or when the caller asked for a new slug.
	if !portfolio.Published || (requestedSlug != "" && editor.Slugify(requestedSlug) != portfolio.Slug) {
		slug, err = editor.ResolveSlug(ctx, s.store, base, portfolioID)
		if err != nil {
			if errors.Is(err, editor.ErrSlugExhausted) {
				return nil, domainError(http.StatusConflict, "SLUG_EXHAUSTED", "No free slug variant available, pick a different name", nil)
			}
			return nil, err
		}
	}

	if err := s.store.SetPublished(ctx, portfolioID, slug, true); err != nil {
		return nil, err
	}

	record, err := s.pub.CommitPublish(portfolioID, content, user.DisplayName, "Publish "+slug)
	if err != nil {
		return nil, fmt.Errorf("record publish: %w", err)
	}

	if s.search != nil {
		s.search.IndexPortfolio(search.PortfolioRecord{
			ID:        portfolioID,
			Title:     content.Title,
			Slug:      slug,
			OwnerName: user.DisplayName,
			Body:      sectionText(content),
		})
	}

	return map[string]any{
		"id":          portfolioID,
		"slug":        slug,
		"published":   true,
		"publicUrl":   s.PublicBaseURL() + "/p/" + slug,
		"publishHash": record.Hash,
	}, nil
}

func (s *Service) Unpublish(ctx context.Context, userID, portfolioID string) (map[string]any, error) {
	portfolio, err := s.ownedPortfolio(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetPublished(ctx, portfolioID, portfolio.Slug, false); err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.DeletePortfolio(portfolioID)
	}
	return map[string]any{"id": portfolioID, "published": false}, nil
}

func (s *Service) PublishHistory(ctx context.Context, userID, portfolioID string, limit int) (map[string]any, error) {
	if _, err := s.ownedPortfolio(ctx, userID, portfolioID); err != nil {
		return nil, err
	}
	records, err := s.pub.History(portfolioID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		items = append(items, map[string]any{
			"hash":      rec.Hash,
			"message":   strings.TrimSpace(rec.Message),
			"author":    rec.Author,
			"createdAt": rec.CreatedAt,
		})
	}
	return map[string]any{"publishes": items}, nil
}

func (s *Service) PublishedVersion(ctx context.Context, userID, portfolioID, hash string) (map[string]any, error) {
	if _, err := s.ownedPortfolio(ctx, userID, portfolioID); err != nil {
		return nil, err
	}
	content, err := s.pub.ContentAt(portfolioID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Published version not found", nil)
	}
	return map[string]any{
		"hash":    hash,
		"title":   content.Title,
		"content": content,
	}, nil
}

// RestorePublishedVersion copies a past published version over the draft. Any
// open editor session is closed so the next load picks up the restored state.
func (s *Service) RestorePublishedVersion(ctx context.Context, userID, portfolioID, hash string) (map[string]any, error) {
	if _, err := s.ownedPortfolio(ctx, userID, portfolioID); err != nil {
		return nil, err
	}
	content, err := s.pub.ContentAt(portfolioID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Published version not found", nil)
	}

	s.CloseEditorSession(portfolioID)

	_, version, err := s.store.FetchPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	newVersion, err := s.store.SavePortfolio(ctx, portfolioID, content, version)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":      portfolioID,
		"hash":    hash,
		"version": newVersion,
	}, nil
}

// ---- public site ----

func (s *Service) PublicPortfolio(ctx context.Context, slug string) (map[string]any, error) {
	portfolio, err := s.store.GetPublishedBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, portfolio.UserID)
	if err != nil {
		return nil, err
	}
	var content editor.Content
	if err := json.Unmarshal(portfolio.Content, &content); err != nil {
		return nil, fmt.Errorf("decode portfolio content: %w", err)
	}
	payload := map[string]any{
		"slug":      portfolio.Slug,
		"title":     portfolio.Title,
		"ownerName": user.DisplayName,
		"content":   content,
	}
	if portfolio.PublishedAt != nil {
		payload["publishedAt"] = portfolio.PublishedAt
	}
	return payload, nil
}

func (s *Service) ListPublishedPortfolios(ctx context.Context) ([]map[string]any, error) {
	portfolios, err := s.store.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(portfolios))
	for _, p := range portfolios {
		item := map[string]any{
			"slug":  p.Slug,
			"title": p.Title,
		}
		if p.PublishedAt != nil {
			item["publishedAt"] = p.PublishedAt
		}
		items = append(items, item)
	}
	return items, nil
}

// ---- search ----

func (s *Service) Search(ctx context.Context, text string, limit, offset int) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}
	}
	return s.search.Search(search.Query{Text: text, Limit: limit, Offset: offset})
}

// ---- export ----

// exportAdapter feeds the export service from the store and publish history.
type exportAdapter struct {
	s *Service
}

func (a exportAdapter) GetPortfolio(ctx context.Context, id string) (export.Portfolio, error) {
	portfolio, err := a.s.store.GetPortfolio(ctx, id)
	if err != nil {
		return export.Portfolio{}, err
	}
	user, err := a.s.store.GetUserByID(ctx, portfolio.UserID)
	if err != nil {
		return export.Portfolio{}, err
	}
	out := export.Portfolio{
		ID:        portfolio.ID,
		Title:     portfolio.Title,
		OwnerName: user.DisplayName,
		Slug:      portfolio.Slug,
	}
	if portfolio.PublishedAt != nil {
		out.PublishedAt = *portfolio.PublishedAt
	}
	return out, nil
}

func (a exportAdapter) GetPortfolioContent(ctx context.Context, portfolioID, version string) (editor.Content, error) {
	if version == "" || version == "latest" {
		content, _, err := a.s.store.FetchPortfolio(ctx, portfolioID)
		return content, err
	}
	return a.s.pub.ContentAt(portfolioID, version)
}

func (s *Service) ExportPortfolio(ctx context.Context, userID string, req export.Request) (*export.Result, error) {
	if _, err := s.ownedPortfolio(ctx, userID, req.PortfolioID); err != nil {
		return nil, err
	}
	return s.export.Export(ctx, req)
}

// ---- assets ----

func (s *Service) UploadAsset(ctx context.Context, userID, portfolioID, contentType string, size int64, body io.Reader) (assets.Asset, error) {
	if s.assets == nil {
		return assets.Asset{}, domainError(http.StatusServiceUnavailable, "ASSETS_UNAVAILABLE", "Asset storage not configured", nil)
	}
	if _, err := s.ownedPortfolio(ctx, userID, portfolioID); err != nil {
		return assets.Asset{}, err
	}
	return s.assets.Upload(ctx, portfolioID, contentType, size, body)
}

func (s *Service) AssetDownloadURL(ctx context.Context, userID, key string) (string, error) {
	if s.assets == nil {
		return "", domainError(http.StatusServiceUnavailable, "ASSETS_UNAVAILABLE", "Asset storage not configured", nil)
	}
	portfolioID, _, ok := strings.Cut(key, "/")
	if !ok {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid asset key", nil)
	}
	if _, err := s.ownedPortfolio(ctx, userID, portfolioID); err != nil {
		return "", err
	}
	return s.assets.DownloadURL(ctx, key)
}

// ---- helpers ----

func portfolioPayload(p store.Portfolio, baseURL string) map[string]any {
	payload := map[string]any{
		"id":        p.ID,
		"title":     p.Title,
		"slug":      p.Slug,
		"version":   p.Version,
		"published": p.Published,
		"updatedAt": p.UpdatedAt,
		"createdAt": p.CreatedAt,
	}
	if p.Published && p.Slug != "" {
		payload["publicUrl"] = baseURL + "/p/" + p.Slug
	}
	if p.PublishedAt != nil {
		payload["publishedAt"] = p.PublishedAt
	}
	return payload
}

// sectionText flattens section data values into one searchable string.
func sectionText(content editor.Content) string {
	var parts []string
	for _, sec := range content.Sections {
		var data map[string]interface{}
		if err := json.Unmarshal(sec.Data, &data); err != nil {
			continue
		}
		collectStrings(data, &parts)
	}
	return strings.Join(parts, " ")
}

func collectStrings(value interface{}, out *[]string) {
	switch v := value.(type) {
	case string:
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			*out = append(*out, trimmed)
		}
	case []interface{}:
		for _, item := range v {
			collectStrings(item, out)
		}
	case map[string]interface{}:
		for _, item := range v {
			collectStrings(item, out)
		}
	}
}
