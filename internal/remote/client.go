// Package remote defines the client-side boundary to the post/taxonomy
// backend: a typed interface, an HTTP implementation, and an in-memory
// implementation used offline and in tests.
package remote

import (
	"context"

	"github.com/keepgoing-web/keepgoing/internal/models"
	"github.com/keepgoing-web/keepgoing/internal/query"
)

// PostPayload is the body for creating a post.
type PostPayload struct {
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Visibility    string   `json:"visibility"`
	AICollectable bool     `json:"aiCollectable"`
	CategoryID    *string  `json:"categoryId,omitempty"`
	TagIDs        []string `json:"tagIds,omitempty"`
}

// PostPatch is a partial update. Nil fields are left unchanged. CategoryID
// uses a double pointer: outer nil means unchanged, inner nil clears. A
// non-nil TagIDs slice replaces the tag set.
type PostPatch struct {
	Title         *string
	Content       *string
	Visibility    *string
	AICollectable *bool
	CategoryID    **string
	TagIDs        []string
}

// Client is the remote post/taxonomy boundary. Pages are 1-indexed.
// Implementations return apperr sentinels: ErrNotFound for missing ids,
// ErrInvalid for rejected payloads, ErrUnavailable for transient failures.
type Client interface {
	ListPosts(ctx context.Context, f query.Filter) (*query.Page, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	CreatePost(ctx context.Context, payload PostPayload) (*models.Post, error)
	UpdatePost(ctx context.Context, id string, patch PostPatch) (*models.Post, error)
	DeletePost(ctx context.Context, id string) error

	ListCategories(ctx context.Context, nameQuery string) ([]models.Category, error)
	CreateCategory(ctx context.Context, name string, parentID *string) (*models.Category, error)
	ListTags(ctx context.Context, nameQuery string) ([]models.Tag, error)
	CreateTag(ctx context.Context, name string) (*models.Tag, error)
}
