package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"folio/api/internal/editor"
	"folio/api/internal/store"
)

func newTestServer(fs *fakeStore, fr *fakeRefresh, fp *fakePub) (*Service, *HTTPServer) {
	svc := newTestService(fs, fr, fp)
	return svc, NewHTTPServer(svc, "*")
}

func authHeader(t *testing.T, svc *Service) string {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return "Bearer " + session.Token
}

func doRequest(server *HTTPServer, method, path, token string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return response
}

func TestHealthEndpoint(t *testing.T) {
	_, server := newTestServer(&fakeStore{}, &fakeRefresh{}, &fakePub{})

	rr := doRequest(server, http.MethodGet, "/api/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if response := decodeResponse(t, rr); response["ok"] != true {
		t.Fatalf("expected ok=true, got %v", response["ok"])
	}
}

func TestReadyEndpointReportsDatabaseFailure(t *testing.T) {
	fs := &fakeStore{
		pingFn: func(context.Context) error {
			return errors.New("connection refused")
		},
	}
	_, server := newTestServer(fs, &fakeRefresh{}, &fakePub{})

	rr := doRequest(server, http.MethodGet, "/api/ready", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if response := decodeResponse(t, rr); response["status"] != "not_ready" {
		t.Fatalf("expected not_ready, got %v", response["status"])
	}
}

func TestPortfolioRoutesRequireAuth(t *testing.T) {
	_, server := newTestServer(&fakeStore{}, &fakeRefresh{}, &fakePub{})

	rr := doRequest(server, http.MethodGet, "/api/portfolios", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if response := decodeResponse(t, rr); response["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %v", response["code"])
	}
}

func TestCreatePortfolioOverHTTP(t *testing.T) {
	var created store.Portfolio
	fs := &fakeStore{
		createPortfolioFn: func(_ context.Context, p store.Portfolio) error {
			created = p
			return nil
		},
	}
	svc, server := newTestServer(fs, &fakeRefresh{}, &fakePub{})
	token := authHeader(t, svc)

	rr := doRequest(server, http.MethodPost, "/api/portfolios", token, `{"title":"Design Work"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if created.Title != "Design Work" {
		t.Fatalf("expected stored title Design Work, got %q", created.Title)
	}
	if created.UserID != "usr_1" {
		t.Fatalf("expected owner usr_1, got %q", created.UserID)
	}
}

func TestGetForeignPortfolioIsNotFound(t *testing.T) {
	fs := &fakeStore{
		getPortfolioFn: func(_ context.Context, portfolioID string) (store.Portfolio, error) {
			return store.Portfolio{ID: portfolioID, UserID: "usr_other"}, nil
		},
	}
	svc, server := newTestServer(fs, &fakeRefresh{}, &fakePub{})
	token := authHeader(t, svc)

	rr := doRequest(server, http.MethodGet, "/api/portfolios/pfl_1", token, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPublishOverHTTP(t *testing.T) {
	var publishedSlug string
	fs := &fakeStore{
		setPublishedFn: func(_ context.Context, _, slug string, published bool) error {
			publishedSlug = slug
			return nil
		},
	}
	svc, server := newTestServer(fs, &fakeRefresh{}, &fakePub{})
	token := authHeader(t, svc)

	rr := doRequest(server, http.MethodPost, "/api/portfolios/pfl_1/publish", token, `{"slug":"avery-builds"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if publishedSlug != "avery-builds" {
		t.Fatalf("expected slug avery-builds, got %q", publishedSlug)
	}
	response := decodeResponse(t, rr)
	if response["publicUrl"] != "http://localhost:5173/p/avery-builds" {
		t.Fatalf("unexpected publicUrl %v", response["publicUrl"])
	}
}

func TestPublishEmptyPortfolioOverHTTP(t *testing.T) {
	fs := &fakeStore{
		fetchPortfolioFn: func(context.Context, string) (editor.Content, int, error) {
			return editor.Content{Title: "Empty"}, 1, nil
		},
	}
	svc, server := newTestServer(fs, &fakeRefresh{}, &fakePub{})
	token := authHeader(t, svc)

	rr := doRequest(server, http.MethodPost, "/api/portfolios/pfl_1/publish", token, `{}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if response := decodeResponse(t, rr); response["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", response["code"])
	}
}

func TestEditorCommandOverHTTP(t *testing.T) {
	svc, server := newTestServer(&fakeStore{}, &fakeRefresh{}, &fakePub{})
	t.Cleanup(svc.CloseAllEditorSessions)
	token := authHeader(t, svc)

	rr := doRequest(server, http.MethodPost, "/api/portfolios/pfl_1/editor/commands", token,
		`{"type":"add_section","payload":{"kind":"projects"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	response := decodeResponse(t, rr)
	sections, ok := response["sections"].([]any)
	if !ok || len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %v", response["sections"])
	}
	if response["dirty"] != true {
		t.Fatal("expected dirty=true")
	}

	rr = doRequest(server, http.MethodGet, "/api/portfolios/pfl_1/editor/state", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from state, got %d", rr.Code)
	}
	response = decodeResponse(t, rr)
	if response["canUndo"] != true {
		t.Fatal("expected canUndo=true after command")
	}
}

func TestEditorUnknownCommandOverHTTP(t *testing.T) {
	svc, server := newTestServer(&fakeStore{}, &fakeRefresh{}, &fakePub{})
	t.Cleanup(svc.CloseAllEditorSessions)
	token := authHeader(t, svc)

	rr := doRequest(server, http.MethodPost, "/api/portfolios/pfl_1/editor/commands", token,
		`{"type":"load_portfolio","payload":{}}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestEditorSaveOverHTTP(t *testing.T) {
	saves := 0
	fs := &fakeStore{
		savePortfolioFn: func(_ context.Context, _ string, _ editor.Content, expectedVersion int) (int, error) {
			saves++
			return expectedVersion + 1, nil
		},
	}
	svc, server := newTestServer(fs, &fakeRefresh{}, &fakePub{})
	t.Cleanup(svc.CloseAllEditorSessions)
	token := authHeader(t, svc)

	rr := doRequest(server, http.MethodPost, "/api/portfolios/pfl_1/editor/commands", token,
		`{"type":"update_title","payload":{"title":"Renamed"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = doRequest(server, http.MethodPost, "/api/portfolios/pfl_1/editor/save", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from save, got %d: %s", rr.Code, rr.Body.String())
	}
	if saves != 1 {
		t.Fatalf("expected 1 save, got %d", saves)
	}
	response := decodeResponse(t, rr)
	if response["version"] != float64(2) {
		t.Fatalf("expected version 2 after save, got %v", response["version"])
	}
}

func TestPublicPortfolioBySlug(t *testing.T) {
	raw, _ := json.Marshal(sampleDraft("Avery Builds"))
	fs := &fakeStore{
		getPublishedBySlugFn: func(_ context.Context, slug string) (store.Portfolio, error) {
			if slug != "avery-builds" {
				t.Fatalf("unexpected slug lookup %q", slug)
			}
			return store.Portfolio{
				ID: "pfl_1", UserID: "usr_1", Title: "Avery Builds",
				Slug: slug, Content: raw, Published: true,
			}, nil
		},
	}
	_, server := newTestServer(fs, &fakeRefresh{}, &fakePub{})

	rr := doRequest(server, http.MethodGet, "/p/avery-builds", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	response := decodeResponse(t, rr)
	if response["ownerName"] != "Avery" {
		t.Fatalf("expected ownerName Avery, got %v", response["ownerName"])
	}
	if response["title"] != "Avery Builds" {
		t.Fatalf("expected title, got %v", response["title"])
	}
}

func TestPublicPortfolioUnknownSlug(t *testing.T) {
	_, server := newTestServer(&fakeStore{}, &fakeRefresh{}, &fakePub{})

	rr := doRequest(server, http.MethodGet, "/p/no-such-site", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc, server := newTestServer(&fakeStore{}, &fakeRefresh{}, &fakePub{})
	token := authHeader(t, svc)

	rr := doRequest(server, http.MethodPost, "/api/portfolios/pfl_1/export", token, `{"format":"xlsx"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestSearchValidatesLimit(t *testing.T) {
	_, server := newTestServer(&fakeStore{}, &fakeRefresh{}, &fakePub{})

	rr := doRequest(server, http.MethodGet, "/api/search?q=design&limit=abc", "", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestSearchWithoutBackendReturnsEmpty(t *testing.T) {
	_, server := newTestServer(&fakeStore{}, &fakeRefresh{}, &fakePub{})

	rr := doRequest(server, http.MethodGet, "/api/search?q=design", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	response := decodeResponse(t, rr)
	results, ok := response["results"].([]any)
	if !ok || len(results) != 0 {
		t.Fatalf("expected empty results, got %v", response["results"])
	}
}

func TestPublishHistoryOverHTTP(t *testing.T) {
	svc, server := newTestServer(&fakeStore{}, &fakeRefresh{}, &fakePub{})
	token := authHeader(t, svc)

	rr := doRequest(server, http.MethodGet, "/api/portfolios/pfl_1/publishes", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	response := decodeResponse(t, rr)
	publishes, ok := response["publishes"].([]any)
	if !ok || len(publishes) != 1 {
		t.Fatalf("expected 1 publish record, got %v", response["publishes"])
	}
}

func TestSessionEndpointWithoutToken(t *testing.T) {
	_, server := newTestServer(&fakeStore{}, &fakeRefresh{}, &fakePub{})

	rr := doRequest(server, http.MethodGet, "/api/session", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if response := decodeResponse(t, rr); response["authenticated"] != false {
		t.Fatalf("expected authenticated=false, got %v", response["authenticated"])
	}
}
