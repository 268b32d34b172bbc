package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/yakovlavrinov/test-qtim/internal/articles"
	"github.com/yakovlavrinov/test-qtim/internal/auth"
	"github.com/yakovlavrinov/test-qtim/internal/cache"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	sessions := auth.NewService(newMemUsers(), issuer)

	qc := cache.NewQueryCache(cache.NewMemoryStore())
	arts := articles.NewService(newMemArticles(), qc, time.Minute)

	api := New(ReadyProbe{Cache: qc}, "test", sessions, arts)
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) register(email, password string) auth.TokenPair {
	c.t.Helper()
	resp := c.post("/v1/auth/register", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("unexpected register status: %d", resp.StatusCode)
	}
	pair := decode[auth.TokenPair](c.t, resp)
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		c.t.Fatalf("incomplete token pair issued")
	}
	return pair
}

func bearer(pair auth.TokenPair) map[string]string {
	return map[string]string{"Authorization": "Bearer " + pair.AccessToken}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAuthRegisterLoginRefreshLogoutFlow(t *testing.T) {
	api := newTestAPI(t)

	pair := api.register("reader@example.com", "hunter22")

	// Duplicate registration conflicts regardless of email case.
	resp := api.post("/v1/auth/register", map[string]any{
		"email":    "Reader@Example.com",
		"password": "hunter22",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", resp.StatusCode)
	}

	// Login with the wrong password yields 401.
	resp = api.post("/v1/auth/login", map[string]any{
		"email":    "reader@example.com",
		"password": "wrong-password",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", resp.StatusCode)
	}

	// A fresh login supersedes the registration session.
	resp = api.post("/v1/auth/login", map[string]any{
		"email":    "reader@example.com",
		"password": "hunter22",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	loginPair := decode[auth.TokenPair](t, resp)

	resp = api.post("/v1/auth/refresh", map[string]any{
		"refresh_token": pair.RefreshToken,
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("stale refresh status = %d, want 401", resp.StatusCode)
	}

	// Refresh rotates: the new pair works, the used token does not.
	resp = api.post("/v1/auth/refresh", map[string]any{
		"refresh_token": loginPair.RefreshToken,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", resp.StatusCode)
	}
	rotated := decode[auth.TokenPair](t, resp)

	resp = api.post("/v1/auth/refresh", map[string]any{
		"refresh_token": loginPair.RefreshToken,
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replayed refresh status = %d, want 401", resp.StatusCode)
	}

	resp = api.post("/v1/auth/logout", nil, bearer(rotated))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", resp.StatusCode)
	}

	resp = api.post("/v1/auth/refresh", map[string]any{
		"refresh_token": rotated.RefreshToken,
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d, want 401", resp.StatusCode)
	}
}

func TestArticlesCRUDFlow(t *testing.T) {
	api := newTestAPI(t)
	pair := api.register("author@example.com", "hunter22")
	authHeader := bearer(pair)

	resp := api.post("/v1/articles", map[string]any{
		"title":       "First",
		"description": "first body",
	}, authHeader)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	created := decode[articles.Article](t, resp)
	if created.ID == "" || created.AuthorID == "" {
		t.Fatalf("created article missing ids: %+v", created)
	}

	// Reads are public.
	resp = api.get("/v1/articles/"+created.ID, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	got := decode[articles.Article](t, resp)
	if got.Title != "First" {
		t.Fatalf("unexpected title: %q", got.Title)
	}

	resp = api.get("/v1/articles", url.Values{"authorId": []string{created.AuthorID}}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200", resp.StatusCode)
	}
	page := decode[articles.ListResult](t, resp)
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("unexpected page: total=%d items=%d", page.Total, len(page.Items))
	}

	resp = api.do(http.MethodPatch, "/v1/articles/"+created.ID, map[string]any{
		"title": "First, revised",
	}, authHeader)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d, want 200", resp.StatusCode)
	}
	updated := decode[articles.Article](t, resp)
	if updated.Title != "First, revised" || updated.Description != "first body" {
		t.Fatalf("patch applied wrong fields: %+v", updated)
	}

	// The cached read must reflect the update.
	resp = api.get("/v1/articles/"+created.ID, nil, nil)
	got = decode[articles.Article](t, resp)
	if got.Title != "First, revised" {
		t.Fatalf("stale read after update: %q", got.Title)
	}

	resp = api.do(http.MethodDelete, "/v1/articles/"+created.ID, nil, authHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}

	resp = api.get("/v1/articles/"+created.ID, nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.StatusCode)
	}

	resp = api.do(http.MethodDelete, "/v1/articles/"+created.ID, nil, authHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestArticlesRequireAuthForWrites(t *testing.T) {
	api := newTestAPI(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"create", http.MethodPost, "/v1/articles", map[string]any{"title": "t", "description": "d"}},
		{"update", http.MethodPatch, "/v1/articles/some-id", map[string]any{"title": "t"}},
		{"delete", http.MethodDelete, "/v1/articles/some-id", nil},
		{"logout", http.MethodPost, "/v1/auth/logout", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := api.do(tc.method, tc.path, tc.body, nil)
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", resp.StatusCode)
			}

			resp = api.do(tc.method, tc.path, tc.body, map[string]string{
				"Authorization": "Bearer not-a-jwt",
			})
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("garbage token status = %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestListQueryValidation(t *testing.T) {
	api := newTestAPI(t)

	cases := []url.Values{
		{"page": []string{"0"}},
		{"page": []string{"abc"}},
		{"limit": []string{"-5"}},
		{"fromDate": []string{"2025-13-40"}},
		{"toDate": []string{"not-a-date"}},
	}
	for _, params := range cases {
		resp := api.get("/v1/articles", params, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("params %v: status = %d, want 400", params, resp.StatusCode)
		}
	}
}

func TestHealthAndInfoEndpoints(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	health := decode[map[string]any](t, resp)
	if health["status"] != "ok" {
		t.Fatalf("unexpected health payload: %v", health)
	}

	resp = api.get("/readyz", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d", resp.StatusCode)
	}

	resp = api.get("/v1/info", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info status = %d", resp.StatusCode)
	}
	info := decode[map[string]any](t, resp)
	if info["version"] != "test" {
		t.Fatalf("unexpected info payload: %v", info)
	}

	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/auth/register", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
	if resp.Header.Get("Allow") != http.MethodPost {
		t.Fatalf("unexpected Allow header: %q", resp.Header.Get("Allow"))
	}
}

// --- in-memory stores ---

type memUsers struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]*auth.User)}
}

func (m *memUsers) Create(ctx context.Context, u *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return auth.ErrConflict
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memUsers) FindByID(ctx context.Context, id string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) SetRefreshHash(ctx context.Context, id, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.RefreshHash = fingerprint
	return nil
}

func (m *memUsers) RotateRefreshHash(ctx context.Context, id, oldFingerprint, newFingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.RefreshHash != oldFingerprint {
		return auth.ErrUnauthorized
	}
	u.RefreshHash = newFingerprint
	return nil
}

func (m *memUsers) ClearRefreshHash(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.RefreshHash = ""
	}
	return nil
}

type memArticles struct {
	mu   sync.Mutex
	rows map[string]*articles.Article
}

func newMemArticles() *memArticles {
	return &memArticles{rows: make(map[string]*articles.Article)}
}

func (m *memArticles) Create(ctx context.Context, a *articles.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.rows[a.ID] = &cp
	return nil
}

func (m *memArticles) FindByID(ctx context.Context, id string) (*articles.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, articles.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memArticles) FindPage(ctx context.Context, q articles.ListQuery) ([]articles.Article, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []articles.Article
	for _, a := range m.rows {
		if q.AuthorID != "" && a.AuthorID != q.AuthorID {
			continue
		}
		if !q.From.IsZero() && a.PublishedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && a.PublishedAt.After(q.To) {
			continue
		}
		matched = append(matched, *a)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].PublishedAt.After(matched[j].PublishedAt)
	})
	total := len(matched)
	start := (q.Page - 1) * q.Limit
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *memArticles) Update(ctx context.Context, a *articles.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[a.ID]; !ok {
		return articles.ErrNotFound
	}
	cp := *a
	m.rows[a.ID] = &cp
	return nil
}

func (m *memArticles) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return articles.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}
