package vault

import (
	"context"
	"sync"
	"time"

	"github.com/keepgoing-web/keepgoing/internal/models"
	"github.com/keepgoing-web/keepgoing/internal/query"
	"github.com/keepgoing-web/keepgoing/internal/remote"
)

// State is the lifecycle of a view's data load.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	}
	return "unknown"
}

// ListView presents paginated post listings. Predicate state (text query,
// category, tag selection) is shared through the cache so the sidebar and
// other views stay in step, but page, size, sort, and order belong to this
// view alone, and every load issues its own ListPosts call so the total
// reflects the full result set rather than the cache's bounded working set.
type ListView struct {
	cache  *Cache
	client remote.Client

	mu    sync.Mutex
	state State
	local query.Filter // page/size/sort/order owned by this view
	page  *query.Page
}

// NewListView creates a list view sharing predicates through the cache and
// fetching pages through the client.
func NewListView(cache *Cache, client remote.Client) *ListView {
	return &ListView{
		cache:  cache,
		client: client,
		state:  StateIdle,
		local:  query.NewFilter(),
	}
}

// Filter returns the effective filter: the cache's shared predicates merged
// with this view's own pagination and ordering.
func (v *ListView) Filter() query.Filter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filterLocked()
}

func (v *ListView) filterLocked() query.Filter {
	f := v.cache.Filter()
	f.Page = v.local.Page
	f.Size = v.local.Size
	f.Sort = v.local.Sort
	f.Order = v.local.Order
	return f
}

// Load fetches the current page through the remote client. On failure the
// view keeps its previous result when it has one; StateError is reported
// only when there is nothing to show.
func (v *ListView) Load(ctx context.Context) error {
	v.mu.Lock()
	v.state = StateLoading
	f := v.filterLocked()
	v.mu.Unlock()

	page, err := v.client.ListPosts(ctx, f)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		if v.page == nil {
			v.state = StateError
		} else {
			v.state = StateReady
		}
		return err
	}
	v.page = page
	v.state = StateReady
	return nil
}

// State reports the view's lifecycle state.
func (v *ListView) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Page returns the current visible page, or nil before the first load.
func (v *ListView) Page() *query.Page {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.page
}

// SetQuery updates the shared text filter, returns to page 1, and reloads.
func (v *ListView) SetQuery(ctx context.Context, q string) error {
	v.cache.SetQuery(q)
	v.resetPage()
	return v.Load(ctx)
}

// SetCategory updates the shared category filter, returns to page 1, and
// reloads.
func (v *ListView) SetCategory(ctx context.Context, id string) error {
	v.cache.SetCategoryFilter(id)
	v.resetPage()
	return v.Load(ctx)
}

// ToggleTag flips a tag in the shared selection, returns to page 1, and
// reloads.
func (v *ListView) ToggleTag(ctx context.Context, id string) error {
	v.cache.ToggleTag(id)
	v.resetPage()
	return v.Load(ctx)
}

// SetPage moves this view to another page of the same result. Other views
// over the same cache are unaffected.
func (v *ListView) SetPage(ctx context.Context, page int) error {
	v.mu.Lock()
	if page < 1 {
		page = 1
	}
	v.local.Page = page
	v.mu.Unlock()
	return v.Load(ctx)
}

// SetSort changes this view's sort key and direction and returns to page 1.
func (v *ListView) SetSort(ctx context.Context, sort, order string) error {
	v.mu.Lock()
	v.local.Sort = sort
	v.local.Order = order
	v.local.Page = 1
	v.mu.Unlock()
	return v.Load(ctx)
}

// Reset clears the shared predicates, restores this view's pagination
// defaults, and reloads.
func (v *ListView) Reset(ctx context.Context) error {
	v.cache.ResetFilters()
	v.mu.Lock()
	v.local = query.NewFilter()
	v.mu.Unlock()
	return v.Load(ctx)
}

func (v *ListView) resetPage() {
	v.mu.Lock()
	v.local.Page = 1
	v.mu.Unlock()
}

// DetailView loads a single post and records it in the recency list once
// it is successfully shown.
type DetailView struct {
	cache  *Cache
	client remote.Client

	mu    sync.Mutex
	state State
	err   error
	post  *models.Post
}

// NewDetailView creates a detail view.
func NewDetailView(cache *Cache, client remote.Client) *DetailView {
	return &DetailView{cache: cache, client: client, state: StateIdle}
}

// Open fetches the post by id. A successful open records the post as
// recently viewed before the view reports ready, so the recency list is
// current the moment the post is on screen.
func (d *DetailView) Open(ctx context.Context, id string) (*models.Post, error) {
	d.mu.Lock()
	d.state = StateLoading
	d.mu.Unlock()

	post, err := d.client.GetPost(ctx, id)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.state = StateError
		d.err = err
		d.post = nil
		return nil, err
	}
	d.cache.RecordRecentPost(models.RecentPost{ID: post.ID, Title: post.Title})
	d.state = StateReady
	d.err = nil
	d.post = post
	return post, nil
}

// State reports the view's lifecycle state.
func (d *DetailView) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err returns the last open error, if any.
func (d *DetailView) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Editor performs post mutations through the remote client and refreshes
// the whole cache afterwards so every view sees a consistent state.
type Editor struct {
	cache  *Cache
	client remote.Client
}

// NewEditor creates an editor bound to the cache and client.
func NewEditor(cache *Cache, client remote.Client) *Editor {
	return &Editor{cache: cache, client: client}
}

// Create creates a post and refreshes the cache.
func (e *Editor) Create(ctx context.Context, payload remote.PostPayload) (*models.Post, error) {
	post, err := e.client.CreatePost(ctx, payload)
	if err != nil {
		return nil, err
	}
	e.cache.Refresh(ctx)
	return post, nil
}

// Update applies a partial update and refreshes the cache.
func (e *Editor) Update(ctx context.Context, id string, patch remote.PostPatch) (*models.Post, error) {
	post, err := e.client.UpdatePost(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	e.cache.Refresh(ctx)
	return post, nil
}

// Delete removes a post and refreshes the cache.
func (e *Editor) Delete(ctx context.Context, id string) error {
	if err := e.client.DeletePost(ctx, id); err != nil {
		return err
	}
	e.cache.Refresh(ctx)
	return nil
}

// Debouncer delays a callback until input has been quiet for the
// configured interval. Used to avoid re-filtering on every keystroke of
// the text query.
type Debouncer struct {
	d     time.Duration
	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a debouncer with the given quiet interval.
func NewDebouncer(d time.Duration) *Debouncer {
	return &Debouncer{d: d}
}

// Trigger schedules fn after the quiet interval, cancelling any pending
// invocation.
func (b *Debouncer) Trigger(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.d, fn)
}

// Stop cancels any pending invocation.
func (b *Debouncer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
