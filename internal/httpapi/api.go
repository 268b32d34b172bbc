package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/yakovlavrinov/test-qtim/internal/articles"
	"github.com/yakovlavrinov/test-qtim/internal/auth"
	"github.com/yakovlavrinov/test-qtim/internal/cache"
	"github.com/yakovlavrinov/test-qtim/internal/obs"
)

// ReadyProbe checks the backing stores for the readiness endpoint. The cache
// is reported but not required: the service degrades to persistence-only
// reads when it is down.
type ReadyProbe struct {
	DB    *sql.DB
	Cache *cache.QueryCache
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

func (rp ReadyProbe) CacheHealthy(ctx context.Context) bool {
	if rp.Cache == nil {
		return true
	}
	return rp.Cache.Ping(ctx) == nil
}

// API — HTTP слой.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	sessions   *auth.Service
	articles   *articles.Service

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, sessions *auth.Service, arts *articles.Service) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		sessions:   sessions,
		articles:   arts,
		rateBurst:  20,
		ratePerSec: 10,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// auth
	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)

	// articles
	a.mux.HandleFunc("/v1/articles", a.handleArticlesCollection)
	a.mux.HandleFunc("/v1/articles/", a.handleArticleResource)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler возвращает http.Handler для сервера.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = RequestID(h)
	h = Logging(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "articles-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"cache":  a.readyProbe.CacheHealthy(r.Context()),
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "articles-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
