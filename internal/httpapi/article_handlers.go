package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yakovlavrinov/test-qtim/internal/articles"
	"github.com/yakovlavrinov/test-qtim/internal/audit"
	"github.com/yakovlavrinov/test-qtim/internal/auth"
)

type createArticleRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type updateArticleRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (a *API) handleArticlesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listArticles(w, r)
	case http.MethodPost:
		a.createArticle(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleArticleResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/articles/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getArticle(w, r, id)
	case http.MethodPatch:
		a.updateArticle(w, r, id)
	case http.MethodDelete:
		a.deleteArticle(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) listArticles(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.articles.List(r.Context(), q)
	if err != nil {
		handleArticleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) getArticle(w http.ResponseWriter, r *http.Request, id string) {
	art, err := a.articles.Get(r.Context(), id)
	if err != nil {
		handleArticleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, art)
}

func (a *API) createArticle(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}

	var req createArticleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	art, err := a.articles.Create(r.Context(), articles.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		AuthorID:    userID,
	})
	if err != nil {
		handleArticleError(w, r, err)
		return
	}

	ctx := auth.ContextWithUser(r.Context(), userID)
	_ = audit.LogEvent(ctx, "articles.created", map[string]any{"article_id": art.ID})
	writeJSON(w, http.StatusCreated, art)
}

func (a *API) updateArticle(w http.ResponseWriter, r *http.Request, id string) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}

	var req updateArticleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	art, err := a.articles.Update(r.Context(), id, articles.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		handleArticleError(w, r, err)
		return
	}

	ctx := auth.ContextWithUser(r.Context(), userID)
	_ = audit.LogEvent(ctx, "articles.updated", map[string]any{"article_id": id})
	writeJSON(w, http.StatusOK, art)
}

func (a *API) deleteArticle(w http.ResponseWriter, r *http.Request, id string) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}

	if err := a.articles.Delete(r.Context(), id); err != nil {
		handleArticleError(w, r, err)
		return
	}

	ctx := auth.ContextWithUser(r.Context(), userID)
	_ = audit.LogEvent(ctx, "articles.deleted", map[string]any{"article_id": id})
	w.WriteHeader(http.StatusNoContent)
}

func parseListQuery(r *http.Request) (articles.ListQuery, error) {
	var q articles.ListQuery
	values := r.URL.Query()

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return q, errors.New("page must be a positive integer")
		}
		q.Page = page
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return q, errors.New("limit must be a positive integer")
		}
		q.Limit = limit
	}
	q.AuthorID = strings.TrimSpace(values.Get("authorId"))

	if raw := values.Get("fromDate"); raw != "" {
		from, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return q, errors.New("fromDate must be formatted as YYYY-MM-DD")
		}
		q.From = from
	}
	if raw := values.Get("toDate"); raw != "" {
		to, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return q, errors.New("toDate must be formatted as YYYY-MM-DD")
		}
		q.To = to
	}
	return q, nil
}

func handleArticleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, articles.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, articles.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "article not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
