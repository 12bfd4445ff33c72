package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keepgoing-web/keepgoing/internal/apperr"
	"github.com/keepgoing-web/keepgoing/internal/blogservice"
	"github.com/keepgoing-web/keepgoing/internal/models"
	"github.com/keepgoing-web/keepgoing/internal/query"
	"github.com/keepgoing-web/keepgoing/internal/sse"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers. events may be nil when no SSE broker
// is running; mutations then go unannounced.
type Handler struct {
	svc    *blogservice.Service
	events *sse.Broker
}

// NewHandler creates a new Handler.
func NewHandler(svc *blogservice.Service, events *sse.Broker) *Handler {
	return &Handler{svc: svc, events: events}
}

func (h *Handler) notify(kind, id string) {
	if h.events != nil {
		h.events.PublishPostEvent(kind, id)
	}
}

// writeError maps service errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("temporarily unavailable"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListPosts handles GET /api/posts. Filter, sort, and pagination parameters
// are decoded from the query string; see query.ParseFilter.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	f := query.ParseFilter(r.URL.Query())
	page, err := h.svc.ListPosts(r.Context(), f)
	if err != nil {
		writeError(w, err, "list posts")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetPost handles GET /api/posts/{id}.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	post, err := h.svc.GetPost(r.Context(), id)
	if err != nil {
		writeError(w, err, "get post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// CreatePost handles POST /api/posts.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreatePostRequest
	if !readJSON(w, r, &req) {
		return
	}
	post, err := h.svc.CreatePost(r.Context(), req)
	if err != nil {
		writeError(w, err, "create post")
		return
	}
	h.notify("created", post.ID)
	writeJSON(w, http.StatusCreated, post)
}

// UpdatePost handles PUT /api/posts/{id}. The body is a partial payload that
// merges over the stored post.
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	var req UpdatePostRequest
	if !readJSON(w, r, &req) {
		return
	}
	post, err := h.svc.UpdatePost(r.Context(), id, req.Patch())
	if err != nil {
		writeError(w, err, "update post")
		return
	}
	h.notify("updated", post.ID)
	writeJSON(w, http.StatusOK, post)
}

// DeletePost handles DELETE /api/posts/{id}.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	if err := h.svc.DeletePost(r.Context(), id); err != nil {
		writeError(w, err, "delete post")
		return
	}
	h.notify("deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// ListCategories handles GET /api/categories with an optional "q" name filter.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.ListCategories(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err, "list categories")
		return
	}
	if cats == nil {
		cats = []models.Category{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": cats,
		"total":      len(cats),
	})
}

// CreateCategory handles POST /api/categories.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !readJSON(w, r, &req) {
		return
	}
	cat, err := h.svc.CreateCategory(r.Context(), req.Name, req.ParentID)
	if err != nil {
		writeError(w, err, "create category")
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

// ListTags handles GET /api/tags with an optional "q" name filter.
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.ListTags(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err, "list tags")
		return
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tags":  tags,
		"total": len(tags),
	})
}

// CreateTag handles POST /api/tags.
func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req CreateTagRequest
	if !readJSON(w, r, &req) {
		return
	}
	tag, err := h.svc.CreateTag(r.Context(), req.Name)
	if err != nil {
		writeError(w, err, "create tag")
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}
