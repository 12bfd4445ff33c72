// Package models defines the domain types for KeepGoing.
package models

import "time"

// Visibility values for a post.
const (
	VisibilityPublic      = "PUBLIC"
	VisibilityPrivate     = "PRIVATE"
	VisibilityCollectable = "AI_COLLECTABLE"
)

// Visibilities lists every valid visibility value.
var Visibilities = []string{VisibilityPublic, VisibilityPrivate, VisibilityCollectable}

// ValidVisibility reports whether v is a known visibility value.
func ValidVisibility(v string) bool {
	for _, known := range Visibilities {
		if v == known {
			return true
		}
	}
	return false
}

// Post is a blog post. CategoryID and TagIDs are the persisted references;
// Category and Tags are joined in by the service layer and never stored.
type Post struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Visibility    string    `json:"visibility"`
	AICollectable bool      `json:"aiCollectable"`
	CategoryID    *string   `json:"categoryId"`
	TagIDs        []string  `json:"tagIds"`
	Category      *Category `json:"category,omitempty"`
	Tags          []Tag     `json:"tags,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasTag reports whether the post references the given tag id.
func (p *Post) HasTag(tagID string) bool {
	for _, id := range p.TagIDs {
		if id == tagID {
			return true
		}
	}
	return false
}

// Category is a directory in the post tree. ParentID is nil for roots;
// the chain of parents must terminate (the store rejects cycles).
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parentId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Tag is a flat, free-form label.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RecentPost is a bounded recency entry kept by the recency store.
type RecentPost struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
