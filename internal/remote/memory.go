package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keepgoing-web/keepgoing/internal/apperr"
	"github.com/keepgoing-web/keepgoing/internal/models"
	"github.com/keepgoing-web/keepgoing/internal/query"
)

// Memory is the in-memory mock backend. It keeps posts, categories, and
// tags in plain slices and answers listings through the deterministic
// query engine, mirroring the HTTP backend's semantics exactly.
type Memory struct {
	mu         sync.Mutex
	posts      []models.Post
	categories []models.Category
	tags       []models.Tag
}

var _ Client = (*Memory)(nil)

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

// Seed replaces the backend's contents. Intended for test and demo setup.
func (m *Memory) Seed(posts []models.Post, categories []models.Category, tags []models.Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append([]models.Post(nil), posts...)
	m.categories = append([]models.Category(nil), categories...)
	m.tags = append([]models.Tag(nil), tags...)
}

// joinedLocked returns copies of posts with Category and Tags objects attached.
func (m *Memory) joinedLocked() []models.Post {
	catByID := make(map[string]models.Category, len(m.categories))
	for _, c := range m.categories {
		catByID[c.ID] = c
	}
	tagByID := make(map[string]models.Tag, len(m.tags))
	for _, t := range m.tags {
		tagByID[t.ID] = t
	}

	out := make([]models.Post, len(m.posts))
	for i, p := range m.posts {
		p.Category = nil
		if p.CategoryID != nil {
			if c, ok := catByID[*p.CategoryID]; ok {
				cc := c
				p.Category = &cc
			}
		}
		tags := make([]models.Tag, 0, len(p.TagIDs))
		for _, id := range p.TagIDs {
			if t, ok := tagByID[id]; ok {
				tags = append(tags, t)
			}
		}
		p.Tags = tags
		out[i] = p
	}
	return out
}

// ListPosts filters, sorts, and paginates the in-memory set.
func (m *Memory) ListPosts(_ context.Context, f query.Filter) (*query.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return f.Apply(m.joinedLocked()), nil
}

// GetPost returns a joined copy of the post, or ErrNotFound.
func (m *Memory) GetPost(_ context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.joinedLocked() {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("post %s: %w", id, apperr.ErrNotFound)
}

// CreatePost assigns an id and timestamps and prepends the post.
func (m *Memory) CreatePost(ctx context.Context, payload PostPayload) (*models.Post, error) {
	if payload.Title == "" || payload.Content == "" {
		return nil, fmt.Errorf("title and content are required: %w", apperr.ErrInvalid)
	}
	visibility := payload.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	if !models.ValidVisibility(visibility) {
		return nil, fmt.Errorf("visibility %q: %w", visibility, apperr.ErrInvalid)
	}

	m.mu.Lock()
	now := time.Now().UTC()
	p := models.Post{
		ID:            uuid.NewString(),
		Title:         payload.Title,
		Content:       payload.Content,
		Visibility:    visibility,
		AICollectable: payload.AICollectable,
		CategoryID:    payload.CategoryID,
		TagIDs:        append([]string(nil), payload.TagIDs...),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if p.TagIDs == nil {
		p.TagIDs = []string{}
	}
	m.posts = append([]models.Post{p}, m.posts...)
	id := p.ID
	m.mu.Unlock()

	return m.GetPost(ctx, id)
}

// UpdatePost merges the patch over the stored post and bumps updated_at.
func (m *Memory) UpdatePost(ctx context.Context, id string, patch PostPatch) (*models.Post, error) {
	if patch.Visibility != nil && !models.ValidVisibility(*patch.Visibility) {
		return nil, fmt.Errorf("visibility %q: %w", *patch.Visibility, apperr.ErrInvalid)
	}

	m.mu.Lock()
	idx := -1
	for i := range m.posts {
		if m.posts[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return nil, fmt.Errorf("post %s: %w", id, apperr.ErrNotFound)
	}

	p := &m.posts[idx]
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	if patch.Visibility != nil {
		p.Visibility = *patch.Visibility
	}
	if patch.AICollectable != nil {
		p.AICollectable = *patch.AICollectable
	}
	if patch.CategoryID != nil {
		p.CategoryID = *patch.CategoryID
	}
	if patch.TagIDs != nil {
		p.TagIDs = append([]string(nil), patch.TagIDs...)
	}
	p.UpdatedAt = time.Now().UTC()
	m.mu.Unlock()

	return m.GetPost(ctx, id)
}

// DeletePost removes the post. Hard delete, no tombstone.
func (m *Memory) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.posts {
		if m.posts[i].ID == id {
			m.posts = append(m.posts[:i], m.posts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("post %s: %w", id, apperr.ErrNotFound)
}

// ListCategories returns categories, optionally filtered by a
// case-insensitive name substring.
func (m *Memory) ListCategories(_ context.Context, nameQuery string) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Category, 0, len(m.categories))
	q := strings.ToLower(nameQuery)
	for _, c := range m.categories {
		if q != "" && !strings.Contains(strings.ToLower(c.Name), q) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// CreateCategory appends a category. The parent, when given, must exist.
func (m *Memory) CreateCategory(_ context.Context, name string, parentID *string) (*models.Category, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", apperr.ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if parentID != nil {
		found := false
		for _, c := range m.categories {
			if c.ID == *parentID {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("parent %s: %w", *parentID, apperr.ErrInvalid)
		}
	}
	c := models.Category{
		ID:        uuid.NewString(),
		Name:      name,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	}
	m.categories = append(m.categories, c)
	return &c, nil
}

// ListTags returns tags, optionally filtered by a case-insensitive name
// substring.
func (m *Memory) ListTags(_ context.Context, nameQuery string) ([]models.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Tag, 0, len(m.tags))
	q := strings.ToLower(nameQuery)
	for _, t := range m.tags {
		if q != "" && !strings.Contains(strings.ToLower(t.Name), q) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// CreateTag appends a tag; names are unique.
func (m *Memory) CreateTag(_ context.Context, name string) (*models.Tag, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", apperr.ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tags {
		if strings.EqualFold(t.Name, name) {
			return nil, fmt.Errorf("tag %q: %w", name, apperr.ErrAlreadyExists)
		}
	}
	t := models.Tag{ID: uuid.NewString(), Name: name}
	m.tags = append(m.tags, t)
	return &t, nil
}
