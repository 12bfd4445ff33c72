package query

import "github.com/keepgoing-web/keepgoing/internal/models"

// Page is one page of a post listing plus its pagination metadata.
// Pages are 1-indexed at every boundary in this module.
type Page struct {
	Posts      []models.Post `json:"posts"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	Size       int           `json:"size"`
	TotalPages int           `json:"totalPages"`
	HasNext    bool          `json:"hasNext"`
	HasPrev    bool          `json:"hasPrev"`
}

// NewPage slices the already filtered and sorted posts into the requested
// page and fills in the metadata. TotalPages is never below 1, so an empty
// result still reads as a single empty page.
func NewPage(matched []models.Post, page, size int) *Page {
	total := len(matched)
	totalPages := (total + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}

	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	return &Page{
		Posts:      matched[start:end],
		Total:      total,
		Page:       page,
		Size:       size,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// PageMeta builds a Page around posts that were already paginated elsewhere
// (e.g. by the store's SQL LIMIT/OFFSET) given the unpaginated total.
func PageMeta(posts []models.Post, total, page, size int) *Page {
	totalPages := (total + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}
	return &Page{
		Posts:      posts,
		Total:      total,
		Page:       page,
		Size:       size,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
