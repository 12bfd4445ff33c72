// Package query implements the post filter model and the deterministic
// in-memory filter/sort/paginate engine behind every post listing.
package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/keepgoing-web/keepgoing/internal/models"
)

// Sort fields and orders accepted by a Filter.
const (
	SortCreatedAt = "createdAt"
	SortUpdatedAt = "updatedAt"
	SortTitle     = "title"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// CategoryUncategorized is the sentinel category filter matching posts
// without a category.
const CategoryUncategorized = "uncategorized"

// Default pagination values.
const (
	DefaultPage = 1
	DefaultSize = 10
)

// Filter is the structured filter/sort/pagination state for a post query.
// Zero values mean "unconstrained" for every field except Page and Size.
type Filter struct {
	Query         string
	CategoryID    string
	TagIDs        []string
	Visibility    string
	AICollectable *bool
	DateFrom      *time.Time
	DateTo        *time.Time
	Sort          string
	Order         string
	Page          int
	Size          int
}

// NewFilter returns a Filter with default sort, order, and pagination.
func NewFilter() Filter {
	return Filter{
		Sort:  SortCreatedAt,
		Order: OrderDesc,
		Page:  DefaultPage,
		Size:  DefaultSize,
	}
}

// Normalize fills in defaults for unset sort/order/pagination fields.
func (f *Filter) Normalize() {
	if f.Sort == "" {
		f.Sort = SortCreatedAt
	}
	if f.Order == "" {
		f.Order = OrderDesc
	}
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Size < 1 {
		f.Size = DefaultSize
	}
}

// Validate checks the filter after normalization.
func (f Filter) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Sort, validation.Required, validation.In(SortCreatedAt, SortUpdatedAt, SortTitle)),
		validation.Field(&f.Order, validation.Required, validation.In(OrderAsc, OrderDesc)),
		validation.Field(&f.Visibility, validation.In(models.VisibilityPublic, models.VisibilityPrivate, models.VisibilityCollectable)),
		validation.Field(&f.Page, validation.Required, validation.Min(1)),
		validation.Field(&f.Size, validation.Required, validation.Min(1)),
	)
}

// Matches reports whether a single post satisfies every active predicate.
func (f Filter) Matches(p *models.Post) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(p.Title), q) &&
			!strings.Contains(strings.ToLower(p.Content), q) {
			return false
		}
	}
	switch f.CategoryID {
	case "":
	case CategoryUncategorized:
		if p.CategoryID != nil {
			return false
		}
	default:
		if p.CategoryID == nil || *p.CategoryID != f.CategoryID {
			return false
		}
	}
	if len(f.TagIDs) > 0 {
		// Membership in any selected tag matches (OR, not AND).
		matched := false
		for _, id := range f.TagIDs {
			if p.HasTag(id) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if f.Visibility != "" && p.Visibility != f.Visibility {
		return false
	}
	if f.AICollectable != nil && p.AICollectable != *f.AICollectable {
		return false
	}
	if f.DateFrom != nil && p.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && p.CreatedAt.After(*f.DateTo) {
		return false
	}
	return true
}

// Apply filters, sorts, and paginates posts deterministically. The sort is
// stable: posts with equal keys keep their original relative order regardless
// of direction, so pagination across identical timestamps is reproducible.
func (f Filter) Apply(posts []models.Post) *Page {
	f.Normalize()

	matched := make([]models.Post, 0, len(posts))
	for i := range posts {
		if f.Matches(&posts[i]) {
			matched = append(matched, posts[i])
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		c := f.compare(&matched[i], &matched[j])
		if f.Order == OrderAsc {
			return c < 0
		}
		return c > 0
	})

	return NewPage(matched, f.Page, f.Size)
}

// compare orders two posts ascending by the filter's sort field.
func (f Filter) compare(a, b *models.Post) int {
	switch f.Sort {
	case SortTitle:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

// ParseCollectable coerces a wire value for the aiCollectable filter into a
// strict boolean. Empty input means "unconstrained".
func ParseCollectable(raw string) *bool {
	if raw == "" {
		return nil
	}
	v := raw == "true" || raw == "1"
	return &v
}

// Values encodes the filter as URL query parameters. Unset fields are
// omitted; tag ids are comma-joined under a single "tagId" key.
func (f Filter) Values() url.Values {
	f.Normalize()
	v := url.Values{}
	if f.Query != "" {
		v.Set("q", f.Query)
	}
	if f.CategoryID != "" {
		v.Set("categoryId", f.CategoryID)
	}
	if len(f.TagIDs) > 0 {
		v.Set("tagId", strings.Join(f.TagIDs, ","))
	}
	if f.Visibility != "" {
		v.Set("visibility", f.Visibility)
	}
	if f.AICollectable != nil {
		v.Set("aiCollectable", strconv.FormatBool(*f.AICollectable))
	}
	if f.DateFrom != nil {
		v.Set("dateFrom", f.DateFrom.UTC().Format(time.RFC3339))
	}
	if f.DateTo != nil {
		v.Set("dateTo", f.DateTo.UTC().Format(time.RFC3339))
	}
	v.Set("sort", f.Sort)
	v.Set("order", f.Order)
	v.Set("page", strconv.Itoa(f.Page))
	v.Set("size", strconv.Itoa(f.Size))
	return v
}

// ParseFilter decodes URL query parameters into a normalized Filter.
// It is the server-side inverse of Values.
func ParseFilter(v url.Values) Filter {
	f := Filter{
		Query:         v.Get("q"),
		CategoryID:    v.Get("categoryId"),
		Visibility:    v.Get("visibility"),
		AICollectable: ParseCollectable(v.Get("aiCollectable")),
		Sort:          v.Get("sort"),
		Order:         v.Get("order"),
	}
	if raw := v.Get("tagId"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				f.TagIDs = append(f.TagIDs, id)
			}
		}
	}
	f.DateFrom = parseTime(v.Get("dateFrom"))
	f.DateTo = parseTime(v.Get("dateTo"))
	f.Page, _ = strconv.Atoi(v.Get("page"))
	f.Size, _ = strconv.Atoi(v.Get("size"))
	f.Normalize()
	return f
}

// parseTime accepts RFC 3339 timestamps or bare dates; malformed input is
// treated as unset.
func parseTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t
	}
	return nil
}
