package api

import (
	"encoding/json"

	"github.com/keepgoing-web/keepgoing/internal/blogservice"
	"github.com/keepgoing-web/keepgoing/internal/store"
)

// CreatePostRequest is the request body for creating a post (aliased from
// the service layer, which owns validation).
type CreatePostRequest = blogservice.PostInput

// OptionalString distinguishes an absent JSON field from an explicit null.
// Set is true whenever the field appeared in the payload; Value is nil for
// an explicit null.
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON records presence before decoding the value.
func (o *OptionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// UpdatePostRequest is the partial-update body for a post. Absent fields are
// left unchanged; categoryId: null clears the category; a tagIds array
// (including an empty one) replaces the tag set, while a null or absent
// tagIds leaves it alone.
type UpdatePostRequest struct {
	Title         *string        `json:"title"`
	Content       *string        `json:"content"`
	Visibility    *string        `json:"visibility"`
	AICollectable *bool          `json:"aiCollectable"`
	CategoryID    OptionalString `json:"categoryId"`
	TagIDs        *[]string      `json:"tagIds"`
}

// Patch converts the request into a store patch.
func (r UpdatePostRequest) Patch() store.PostPatch {
	p := store.PostPatch{
		Title:         r.Title,
		Content:       r.Content,
		Visibility:    r.Visibility,
		AICollectable: r.AICollectable,
	}
	if r.CategoryID.Set {
		v := r.CategoryID.Value
		p.CategoryID = &v
	}
	if r.TagIDs != nil {
		p.TagIDs = *r.TagIDs
	}
	return p
}

// CreateCategoryRequest is the request body for creating a category.
type CreateCategoryRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parentId"`
}

// CreateTagRequest is the request body for creating a tag.
type CreateTagRequest struct {
	Name string `json:"name"`
}

// AttachmentUploadResponse is returned after a successful attachment upload.
type AttachmentUploadResponse struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
}
