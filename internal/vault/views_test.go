package vault

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/keepgoing-web/keepgoing/internal/models"
	"github.com/keepgoing-web/keepgoing/internal/remote"
)

// bulkMemory seeds n posts with ascending creation dates.
func bulkMemory(n int) *remote.Memory {
	posts := make([]models.Post, 0, n)
	for i := 0; i < n; i++ {
		ts := date("2024-01-01").AddDate(0, 0, i)
		posts = append(posts, models.Post{
			ID:         fmt.Sprintf("p%d", i+1),
			Title:      fmt.Sprintf("Post %d", i+1),
			Content:    "body",
			Visibility: models.VisibilityPublic,
			CreatedAt:  ts,
			UpdatedAt:  ts,
		})
	}
	m := remote.NewMemory()
	m.Seed(posts, nil, nil)
	return m
}

func TestListViewStateMachine(t *testing.T) {
	m := seededMemory()
	c := testCache(t, m)
	v := NewListView(c, m)

	if v.State() != StateIdle {
		t.Fatalf("initial state = %s, want idle", v.State())
	}
	if err := v.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.State() != StateReady {
		t.Fatalf("state = %s, want ready", v.State())
	}
	page := v.Page()
	if page == nil || page.Total != 2 {
		t.Fatalf("page = %+v, want total 2", page)
	}
}

func TestListViewErrorStateWithNoData(t *testing.T) {
	flaky := &flakyClient{Client: seededMemory(), failPosts: true}
	c := testCache(t, flaky)
	v := NewListView(c, flaky)

	if err := v.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if v.State() != StateError {
		t.Errorf("state = %s, want error when nothing could be loaded", v.State())
	}

	// A later successful load recovers.
	flaky.failPosts = false
	_ = v.Load(context.Background())
	if v.State() != StateReady {
		t.Errorf("state = %s, want ready after recovery", v.State())
	}
}

func TestListViewKeepsResultOnFailedReload(t *testing.T) {
	flaky := &flakyClient{Client: seededMemory()}
	c := testCache(t, flaky)
	v := NewListView(c, flaky)
	_ = v.Load(context.Background())

	flaky.failPosts = true
	_ = v.Load(context.Background())
	if page := v.Page(); page == nil || page.Total != 2 {
		t.Errorf("prior result lost on failed reload: %+v", page)
	}
	if v.State() != StateReady {
		t.Errorf("state = %s, want ready while stale result is shown", v.State())
	}
}

func TestListViewFiltering(t *testing.T) {
	m := seededMemory()
	c := testCache(t, m)
	v := NewListView(c, m)
	_ = v.Load(context.Background())

	if err := v.SetQuery(context.Background(), "pasta"); err != nil {
		t.Fatalf("SetQuery: %v", err)
	}
	page := v.Page()
	if page.Total != 1 || page.Posts[0].ID != "p2" {
		t.Errorf("filtered page = %+v", page)
	}

	if err := v.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if v.Page().Total != 2 {
		t.Errorf("reset page total = %d, want 2", v.Page().Total)
	}
}

func TestListViewPageStateIsLocal(t *testing.T) {
	m := bulkMemory(25)
	c := testCache(t, m)
	v1 := NewListView(c, m)
	v2 := NewListView(c, m)
	_ = v1.Load(context.Background())
	_ = v2.Load(context.Background())

	if err := v1.SetPage(context.Background(), 3); err != nil {
		t.Fatalf("SetPage: %v", err)
	}
	if got := v1.Page().Page; got != 3 {
		t.Fatalf("v1 page = %d, want 3", got)
	}
	if got := v2.Filter().Page; got != 1 {
		t.Errorf("v2 page = %d, want 1 after v1 paged", got)
	}
	_ = v2.Load(context.Background())
	if got := v2.Page().Page; got != 1 {
		t.Errorf("v2 visible page = %d, want 1", got)
	}

	// Predicate changes still flow between views through the cache.
	if err := v1.SetQuery(context.Background(), "Post 7"); err != nil {
		t.Fatalf("SetQuery: %v", err)
	}
	if got := v2.Filter().Query; got != "Post 7" {
		t.Errorf("v2 query = %q, want shared predicate", got)
	}
}

func TestListViewTotalBeyondWorkingSet(t *testing.T) {
	m := bulkMemory(25)
	c := testCache(t, m, WithWorkingSetSize(10))
	c.Load(context.Background())
	if got := len(c.Posts()); got != 10 {
		t.Fatalf("working set = %d, want capped at 10", got)
	}

	v := NewListView(c, m)
	if err := v.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	page := v.Page()
	if page.Total != 25 {
		t.Errorf("total = %d, want 25 from the listing call, not the working set", page.Total)
	}
	if len(page.Posts) != 10 || page.TotalPages != 3 {
		t.Errorf("page shape = %d posts / %d pages, want 10 / 3", len(page.Posts), page.TotalPages)
	}

	if err := v.SetPage(context.Background(), 3); err != nil {
		t.Fatalf("SetPage: %v", err)
	}
	if got := len(v.Page().Posts); got != 5 {
		t.Errorf("last page posts = %d, want 5", got)
	}
}

func TestListViewSortIsLocal(t *testing.T) {
	m := bulkMemory(3)
	c := testCache(t, m)
	v := NewListView(c, m)
	_ = v.Load(context.Background())

	if err := v.SetSort(context.Background(), "createdAt", "asc"); err != nil {
		t.Fatalf("SetSort: %v", err)
	}
	if got := v.Page().Posts[0].ID; got != "p1" {
		t.Errorf("first post = %s, want p1 in ascending order", got)
	}
	if got := c.Filter().Order; got != "desc" {
		t.Errorf("shared filter order = %q, view ordering must stay local", got)
	}
}

func TestDetailViewRecordsRecent(t *testing.T) {
	c := testCache(t, seededMemory())
	d := NewDetailView(c, seededMemory())

	post, err := d.Open(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if d.State() != StateReady || post.ID != "p1" {
		t.Fatalf("state = %s, post = %+v", d.State(), post)
	}

	recent := c.RecentPosts()
	if len(recent) != 1 || recent[0].ID != "p1" || recent[0].Title != "Go" {
		t.Errorf("recent = %v, want p1 recorded on open", recent)
	}
}

func TestDetailViewOpenMissing(t *testing.T) {
	c := testCache(t, seededMemory())
	d := NewDetailView(c, seededMemory())

	if _, err := d.Open(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for missing post")
	}
	if d.State() != StateError {
		t.Errorf("state = %s, want error", d.State())
	}
	if got := c.RecentPosts(); len(got) != 0 {
		t.Errorf("failed open must not record recency: %v", got)
	}
}

func TestEditorMutationsRefreshCache(t *testing.T) {
	m := seededMemory()
	c := testCache(t, m)
	c.Load(context.Background())
	e := NewEditor(c, m)

	created, err := e.Create(context.Background(), remote.PostPayload{Title: "New", Content: "body"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := len(c.Posts()); got != 3 {
		t.Errorf("posts after create = %d, want 3", got)
	}

	title := "Renamed"
	if _, err := e.Update(context.Background(), created.ID, remote.PostPatch{Title: &title}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	found := false
	for _, p := range c.Posts() {
		if p.ID == created.ID && p.Title == "Renamed" {
			found = true
		}
	}
	if !found {
		t.Error("update not visible in cache after refresh")
	}

	if err := e.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := len(c.Posts()); got != 2 {
		t.Errorf("posts after delete = %d, want 2", got)
	}
}

func TestDebouncerCoalesces(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	d := NewDebouncer(50 * time.Millisecond)
	for i := 0; i < 5; i++ {
		d.Trigger(func() {
			mu.Lock()
			calls++
			mu.Unlock()
		})
	}

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	got := calls
	mu.Unlock()
	if got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestDebouncerStop(t *testing.T) {
	var mu sync.Mutex
	called := false

	d := NewDebouncer(50 * time.Millisecond)
	d.Trigger(func() {
		mu.Lock()
		called = true
		mu.Unlock()
	})
	d.Stop()

	time.Sleep(120 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if called {
		t.Error("stopped debouncer still fired")
	}
}
