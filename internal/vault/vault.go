// Package vault implements the shared session cache consumed by every view:
// the full post working set, the category and tag lists, the shared filter
// state, derived counts, and the recent-post list.
package vault

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/keepgoing-web/keepgoing/internal/models"
	"github.com/keepgoing-web/keepgoing/internal/query"
	"github.com/keepgoing-web/keepgoing/internal/recency"
	"github.com/keepgoing-web/keepgoing/internal/remote"
)

// DefaultWorkingSetSize is the bulk fetch size for the working set. Sized
// for typical personal use; this layer does not paginate.
const DefaultWorkingSetSize = 200

// Cache is the single shared owner of the session's post working set,
// taxonomy lists, and filter state. Construct one per session and pass it
// by reference to every consumer.
type Cache struct {
	client remote.Client
	recent *recency.Store
	logger *slog.Logger

	workingSetSize int

	// flight coalesces overlapping refreshes into one in-flight fetch.
	flight singleflight.Group

	mu         sync.Mutex
	posts      []models.Post
	categories []models.Category
	tags       []models.Tag
	filter     query.Filter
}

// Option configures a Cache.
type Option func(*Cache)

// WithWorkingSetSize overrides the bulk fetch size.
func WithWorkingSetSize(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.workingSetSize = n
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// NewCache creates a Cache backed by the given remote client and recency
// store.
func NewCache(client remote.Client, recent *recency.Store, opts ...Option) *Cache {
	c := &Cache{
		client:         client,
		recent:         recent,
		logger:         slog.Default(),
		workingSetSize: DefaultWorkingSetSize,
		filter:         query.NewFilter(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load fetches categories, tags, and the full post working set. Metadata
// and post fetches run concurrently; a metadata failure never blocks the
// posts, and a post-fetch failure leaves the previous working set in place.
// The return value reports whether the working set was replaced.
func (c *Cache) Load(ctx context.Context) bool {
	return c.Refresh(ctx)
}

// Refresh re-runs the same whole-working-set fetch as Load. Views call it
// after any create/update/delete so that every consumer observes a
// consistent picture. Overlapping calls are coalesced into one fetch, which
// also keeps fetch completions ordered: no stale result can land after a
// fresher one.
func (c *Cache) Refresh(ctx context.Context) bool {
	v, _, _ := c.flight.Do("refresh", func() (any, error) {
		return c.fetch(ctx), nil
	})
	updated, _ := v.(bool)
	return updated
}

func (c *Cache) fetch(ctx context.Context) bool {
	var (
		cats    []models.Category
		tags    []models.Tag
		page    *query.Page
		catErr  error
		tagErr  error
		postErr error
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cats, catErr = c.client.ListCategories(gCtx, "")
		return nil
	})
	g.Go(func() error {
		tags, tagErr = c.client.ListTags(gCtx, "")
		return nil
	})
	g.Go(func() error {
		f := query.NewFilter()
		f.Size = c.workingSetSize
		page, postErr = c.client.ListPosts(gCtx, f)
		return nil
	})
	_ = g.Wait() // goroutines report through the captured error vars

	c.mu.Lock()
	defer c.mu.Unlock()

	metaOK := catErr == nil && tagErr == nil
	if metaOK {
		c.categories = cats
		c.tags = tags
	} else {
		err := catErr
		if err == nil {
			err = tagErr
		}
		c.logger.Warn("vault: metadata fetch failed", slog.String("error", err.Error()))
	}

	if postErr != nil {
		// Stale but available beats an empty view.
		c.logger.Warn("vault: post fetch failed, keeping previous working set",
			slog.String("error", postErr.Error()))
		return false
	}

	// Join posts to the categories from this fetch cycle and dedupe by id
	// (last write wins by array position).
	var catByID map[string]models.Category
	if metaOK {
		catByID = make(map[string]models.Category, len(cats))
		for _, cat := range cats {
			catByID[cat.ID] = cat
		}
	}

	seen := make(map[string]int, len(page.Posts))
	deduped := make([]models.Post, 0, len(page.Posts))
	for _, p := range page.Posts {
		p.Category = nil
		if p.CategoryID != nil && catByID != nil {
			if cat, ok := catByID[*p.CategoryID]; ok {
				cc := cat
				p.Category = &cc
			}
		}
		if idx, dup := seen[p.ID]; dup {
			deduped[idx] = p
			continue
		}
		seen[p.ID] = len(deduped)
		deduped = append(deduped, p)
	}
	c.posts = deduped
	return true
}

// Posts returns a copy of the current working set.
func (c *Cache) Posts() []models.Post {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Post, len(c.posts))
	copy(out, c.posts)
	return out
}

// Categories returns a copy of the current category list.
func (c *Cache) Categories() []models.Category {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Tags returns a copy of the current tag list.
func (c *Cache) Tags() []models.Tag {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Tag, len(c.tags))
	copy(out, c.tags)
	return out
}

// Filter returns a copy of the shared filter state.
func (c *Cache) Filter() query.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.filter
	f.TagIDs = append([]string(nil), c.filter.TagIDs...)
	return f
}

// SetQuery updates the shared free-text query and resets the page.
func (c *Cache) SetQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filter.Query == q {
		return
	}
	c.filter.Query = q
	c.filter.Page = 1
}

// SetCategoryFilter selects a category (empty for all, the uncategorized
// sentinel for posts without one) and resets the page.
func (c *Cache) SetCategoryFilter(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filter.CategoryID == id {
		return
	}
	c.filter.CategoryID = id
	c.filter.Page = 1
}

// ToggleTag adds the tag id to the selection if absent, removes it if
// present, and resets the page.
func (c *Cache) ToggleTag(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.filter.TagIDs {
		if existing == id {
			c.filter.TagIDs = append(c.filter.TagIDs[:i], c.filter.TagIDs[i+1:]...)
			c.filter.Page = 1
			return
		}
	}
	c.filter.TagIDs = append(c.filter.TagIDs, id)
	c.filter.Page = 1
}

// RemoveTag drops the tag id from the selection, resetting the page when
// something was actually removed.
func (c *Cache) RemoveTag(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.filter.TagIDs {
		if existing == id {
			c.filter.TagIDs = append(c.filter.TagIDs[:i], c.filter.TagIDs[i+1:]...)
			c.filter.Page = 1
			return
		}
	}
}

// ResetFilters clears every filter field and restores sort, order, size,
// and page to their defaults. Calling it twice is the same as once.
func (c *Cache) ResetFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = query.NewFilter()
}

// SetPage updates only the page; it is the one transition that does not
// reset pagination.
func (c *Cache) SetPage(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if page < 1 {
		page = 1
	}
	c.filter.Page = page
}

// CreateCategory delegates to the remote client and appends the result to
// the local list. Categories are append-only within a session, so no full
// refresh is needed.
func (c *Cache) CreateCategory(ctx context.Context, name string, parentID *string) (*models.Category, error) {
	cat, err := c.client.CreateCategory(ctx, name, parentID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.categories = append(c.categories, *cat)
	c.mu.Unlock()
	return cat, nil
}

// RecordRecentPost records the post in the durable recency list and returns
// the updated entries.
func (c *Cache) RecordRecentPost(post models.RecentPost) []models.RecentPost {
	return c.recent.Record(post)
}

// RecentPosts returns the persisted recency entries, most recent first.
func (c *Cache) RecentPosts() []models.RecentPost {
	return c.recent.Get()
}

// TagCounts derives, from the current working set, how many posts reference
// each tag. Computed on read; never stored.
func (c *Cache) TagCounts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[string]int)
	for i := range c.posts {
		for _, id := range c.posts[i].TagIDs {
			counts[id]++
		}
	}
	return counts
}

// CategoryCounts derives the number of direct posts per category id.
// Children's posts are not rolled up into parents.
func (c *Cache) CategoryCounts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[string]int)
	for i := range c.posts {
		if c.posts[i].CategoryID != nil {
			counts[*c.posts[i].CategoryID]++
		}
	}
	return counts
}

// UncategorizedCount derives the number of posts without a category.
func (c *Cache) UncategorizedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for i := range c.posts {
		if c.posts[i].CategoryID == nil {
			n++
		}
	}
	return n
}

// Tree derives the category tree with attached posts from the current
// flat lists. Recomputed on every call so it can never go stale relative
// to the cache.
func (c *Cache) Tree() *Tree {
	c.mu.Lock()
	cats := make([]models.Category, len(c.categories))
	copy(cats, c.categories)
	posts := make([]models.Post, len(c.posts))
	copy(posts, c.posts)
	c.mu.Unlock()
	return BuildTree(cats, posts)
}

// Stats summarizes the working set for the dashboard.
type Stats struct {
	TotalPosts       int
	PublicPosts      int
	PrivatePosts     int
	CollectablePosts int
	Uncategorized    int
	Categories       int
	Tags             int
}

// Stats derives dashboard counts from the current working set.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		TotalPosts: len(c.posts),
		Categories: len(c.categories),
		Tags:       len(c.tags),
	}
	for i := range c.posts {
		p := &c.posts[i]
		switch p.Visibility {
		case models.VisibilityPublic:
			s.PublicPosts++
		case models.VisibilityPrivate:
			s.PrivatePosts++
		}
		if p.AICollectable {
			s.CollectablePosts++
		}
		if p.CategoryID == nil {
			s.Uncategorized++
		}
	}
	return s
}
