// Package blogservice coordinates store access, input validation, and
// category/tag joining for the post API.
package blogservice

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/keepgoing-web/keepgoing/internal/apperr"
	"github.com/keepgoing-web/keepgoing/internal/models"
	"github.com/keepgoing-web/keepgoing/internal/query"
	"github.com/keepgoing-web/keepgoing/internal/store"
)

// Service is the server-side realization of the post/taxonomy contract.
type Service struct {
	db *store.DB
}

// NewService creates a new post service.
func NewService(db *store.DB) *Service {
	return &Service{db: db}
}

// PostInput is the payload for creating a post.
type PostInput struct {
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Visibility    string   `json:"visibility"`
	AICollectable bool     `json:"aiCollectable"`
	CategoryID    *string  `json:"categoryId"`
	TagIDs        []string `json:"tagIds"`
}

// Validate checks the payload before it reaches the store.
func (in PostInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.Content, validation.Required),
		validation.Field(&in.Visibility, validation.In(models.VisibilityPublic, models.VisibilityPrivate, models.VisibilityCollectable)),
	)
}

// ListPosts returns one page of posts matching the filter, with category and
// tag objects joined in.
func (s *Service) ListPosts(_ context.Context, f query.Filter) (*query.Page, error) {
	f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	posts, total, err := s.db.ListPosts(f)
	if err != nil {
		return nil, err
	}
	if err := s.join(posts); err != nil {
		return nil, err
	}
	return query.PageMeta(posts, total, f.Page, f.Size), nil
}

// GetPost returns a single post by id with its category and tags joined.
func (s *Service) GetPost(_ context.Context, id string) (*models.Post, error) {
	p, err := s.db.GetPost(id)
	if err != nil {
		return nil, err
	}
	joined := []models.Post{*p}
	if err := s.join(joined); err != nil {
		return nil, err
	}
	return &joined[0], nil
}

// CreatePost validates the payload and inserts the post. Empty visibility
// defaults to PUBLIC, matching the write flow's default.
func (s *Service) CreatePost(ctx context.Context, in PostInput) (*models.Post, error) {
	if in.Visibility == "" {
		in.Visibility = models.VisibilityPublic
	}
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	p, err := s.db.CreatePost(models.Post{
		Title:         in.Title,
		Content:       in.Content,
		Visibility:    in.Visibility,
		AICollectable: in.AICollectable,
		CategoryID:    in.CategoryID,
		TagIDs:        in.TagIDs,
	})
	if err != nil {
		return nil, err
	}
	return s.GetPost(ctx, p.ID)
}

// UpdatePost merges a partial patch over the stored post.
func (s *Service) UpdatePost(ctx context.Context, id string, patch store.PostPatch) (*models.Post, error) {
	if patch.Visibility != nil && !models.ValidVisibility(*patch.Visibility) {
		return nil, fmt.Errorf("%w: visibility %q", apperr.ErrInvalid, *patch.Visibility)
	}
	if patch.Title != nil && *patch.Title == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", apperr.ErrInvalid)
	}
	if _, err := s.db.UpdatePost(id, patch); err != nil {
		return nil, err
	}
	return s.GetPost(ctx, id)
}

// DeletePost removes a post.
func (s *Service) DeletePost(_ context.Context, id string) error {
	return s.db.DeletePost(id)
}

// ListCategories returns categories, optionally filtered by name substring.
func (s *Service) ListCategories(_ context.Context, nameQuery string) ([]models.Category, error) {
	return s.db.ListCategories(nameQuery)
}

// CreateCategory creates a category, optionally under a parent.
func (s *Service) CreateCategory(_ context.Context, name string, parentID *string) (*models.Category, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperr.ErrInvalid)
	}
	return s.db.CreateCategory(name, parentID)
}

// ListTags returns tags, optionally filtered by name substring.
func (s *Service) ListTags(_ context.Context, nameQuery string) ([]models.Tag, error) {
	return s.db.ListTags(nameQuery)
}

// CreateTag creates a tag with a unique name.
func (s *Service) CreateTag(_ context.Context, name string) (*models.Tag, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperr.ErrInvalid)
	}
	return s.db.CreateTag(name)
}

// join attaches Category and Tags objects to each post in place, resolved
// from a single taxonomy fetch.
func (s *Service) join(posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	cats, err := s.db.ListCategories("")
	if err != nil {
		return err
	}
	tags, err := s.db.ListTags("")
	if err != nil {
		return err
	}
	catByID := make(map[string]models.Category, len(cats))
	for _, c := range cats {
		catByID[c.ID] = c
	}
	tagByID := make(map[string]models.Tag, len(tags))
	for _, t := range tags {
		tagByID[t.ID] = t
	}
	for i := range posts {
		p := &posts[i]
		p.Category = nil
		if p.CategoryID != nil {
			if c, ok := catByID[*p.CategoryID]; ok {
				cc := c
				p.Category = &cc
			}
		}
		p.Tags = make([]models.Tag, 0, len(p.TagIDs))
		for _, id := range p.TagIDs {
			if t, ok := tagByID[id]; ok {
				p.Tags = append(p.Tags, t)
			}
		}
	}
	return nil
}
