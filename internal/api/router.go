package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/keepgoing-web/keepgoing/internal/blogservice"
	"github.com/keepgoing-web/keepgoing/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, receives post change events and serves GET /events
// inside the auth group.
// uploadsDir is the directory backing attachment uploads.
func NewRouter(svc *blogservice.Service, authEnabled bool, token string, broker *sse.Broker, uploadsDir string) chi.Router {
	h := NewHandler(svc, broker)
	ah := NewAttachmentHandler(uploadsDir)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Posts CRUD + filtered listing.
	r.Get("/posts", h.ListPosts)
	r.Post("/posts", h.CreatePost)
	r.Get("/posts/{id}", h.GetPost)
	r.Put("/posts/{id}", h.UpdatePost)
	r.Delete("/posts/{id}", h.DeletePost)

	// Taxonomy.
	r.Get("/categories", h.ListCategories)
	r.Post("/categories", h.CreateCategory)
	r.Get("/tags", h.ListTags)
	r.Post("/tags", h.CreateTag)

	// Attachments (editor image uploads).
	r.Post("/attachments", ah.Upload)
	r.Get("/attachments/{filename}", ah.ServeFile)

	// SSE endpoint (protected by same auth middleware).
	if broker != nil {
		r.Get("/events", broker.ServeHTTP)
	}

	return r
}
