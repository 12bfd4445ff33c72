package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/keepgoing-web/keepgoing/internal/blogservice"
	"github.com/keepgoing-web/keepgoing/internal/models"
	"github.com/keepgoing-web/keepgoing/internal/sse"
	"github.com/keepgoing-web/keepgoing/internal/store"
)

// testEnv sets up a temp SQLite store, service, and router for testing.
// An empty authToken means auth is disabled.
func testEnv(t *testing.T, authToken string) (*blogservice.Service, http.Handler) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "api-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := blogservice.NewService(db)
	router := NewRouter(svc, authToken != "", authToken, nil, t.TempDir())
	return svc, router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
	return out
}

func createPost(t *testing.T, router http.Handler, body map[string]any) models.Post {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/posts", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create post: status %d: %s", w.Code, w.Body.String())
	}
	return decode[models.Post](t, w)
}

func TestCreateAndGetPost(t *testing.T) {
	_, router := testEnv(t, "")

	created := createPost(t, router, map[string]any{
		"title":   "Hello",
		"content": "first post",
	})
	if created.ID == "" {
		t.Fatal("created post has no id")
	}
	// Omitted visibility defaults to PUBLIC.
	if created.Visibility != models.VisibilityPublic {
		t.Errorf("visibility = %q, want PUBLIC", created.Visibility)
	}

	w := doJSON(t, router, http.MethodGet, "/posts/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}
	got := decode[models.Post](t, w)
	if got.Title != "Hello" || got.Content != "first post" {
		t.Errorf("got %+v", got)
	}
}

func TestGetPostNotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := doJSON(t, router, http.MethodGet, "/posts/ghost", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCreatePostValidation(t *testing.T) {
	_, router := testEnv(t, "")

	// Missing title.
	if w := doJSON(t, router, http.MethodPost, "/posts", map[string]any{"content": "x"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing title: status = %d, want 400", w.Code)
	}
	// Unknown visibility value.
	w := doJSON(t, router, http.MethodPost, "/posts", map[string]any{
		"title": "x", "content": "y", "visibility": "SECRET",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad visibility: status = %d, want 400", w.Code)
	}
	// Unknown category id.
	w = doJSON(t, router, http.MethodPost, "/posts", map[string]any{
		"title": "x", "content": "y", "categoryId": "ghost",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad category: status = %d, want 400", w.Code)
	}
}

func TestUpdatePostPartial(t *testing.T) {
	_, router := testEnv(t, "")

	catW := doJSON(t, router, http.MethodPost, "/categories", map[string]any{"name": "go"})
	cat := decode[models.Category](t, catW)

	created := createPost(t, router, map[string]any{
		"title": "before", "content": "body", "categoryId": cat.ID,
	})

	// Only the title is patched.
	w := doJSON(t, router, http.MethodPut, "/posts/"+created.ID, map[string]any{"title": "after"})
	if w.Code != http.StatusOK {
		t.Fatalf("update: status %d: %s", w.Code, w.Body.String())
	}
	got := decode[models.Post](t, w)
	if got.Title != "after" || got.Content != "body" {
		t.Errorf("got %+v", got)
	}
	if got.CategoryID == nil || *got.CategoryID != cat.ID {
		t.Error("absent categoryId field must leave the category unchanged")
	}

	// Explicit null clears the category.
	req := httptest.NewRequest(http.MethodPut, "/posts/"+created.ID,
		bytes.NewReader([]byte(`{"categoryId": null}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear category: status %d", rec.Code)
	}
	got = decode[models.Post](t, rec)
	if got.CategoryID != nil {
		t.Errorf("categoryId = %v, want cleared", *got.CategoryID)
	}
}

func TestUpdatePostTags(t *testing.T) {
	_, router := testEnv(t, "")
	tagW := doJSON(t, router, http.MethodPost, "/tags", map[string]any{"name": "go"})
	tag := decode[models.Tag](t, tagW)

	created := createPost(t, router, map[string]any{
		"title": "x", "content": "y", "tagIds": []string{tag.ID},
	})

	// An explicit empty array clears tags; an absent field keeps them.
	w := doJSON(t, router, http.MethodPut, "/posts/"+created.ID, map[string]any{"tagIds": []string{}})
	got := decode[models.Post](t, w)
	if len(got.TagIDs) != 0 {
		t.Errorf("tagIds = %v, want empty", got.TagIDs)
	}
}

func TestDeletePost(t *testing.T) {
	_, router := testEnv(t, "")
	created := createPost(t, router, map[string]any{"title": "x", "content": "y"})

	if w := doJSON(t, router, http.MethodDelete, "/posts/"+created.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/posts/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: status %d, want 404", w.Code)
	}
	if w := doJSON(t, router, http.MethodDelete, "/posts/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete: status %d, want 404", w.Code)
	}
}

func TestListPostsFiltered(t *testing.T) {
	_, router := testEnv(t, "")
	createPost(t, router, map[string]any{"title": "Go patterns", "content": "channels"})
	createPost(t, router, map[string]any{"title": "Cooking", "content": "pasta", "visibility": "PRIVATE"})

	w := doJSON(t, router, http.MethodGet, "/posts?q=go", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status %d", w.Code)
	}
	page := decode[struct {
		Posts []models.Post `json:"posts"`
		Total int           `json:"total"`
		Page  int           `json:"page"`
	}](t, w)
	if page.Total != 1 || len(page.Posts) != 1 || page.Posts[0].Title != "Go patterns" {
		t.Errorf("page = %+v", page)
	}
	if page.Page != 1 {
		t.Errorf("page number = %d, want 1", page.Page)
	}

	// A bad sort field is rejected, not silently ignored.
	if w := doJSON(t, router, http.MethodGet, "/posts?sort=popularity", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad sort: status %d, want 400", w.Code)
	}
}

func TestListCategoriesAndTags(t *testing.T) {
	_, router := testEnv(t, "")

	// Empty lists serialize as arrays, not null.
	w := doJSON(t, router, http.MethodGet, "/categories", nil)
	if body := w.Body.String(); !bytes.Contains([]byte(body), []byte(`"categories":[]`)) {
		t.Errorf("empty categories body = %s", body)
	}

	doJSON(t, router, http.MethodPost, "/categories", map[string]any{"name": "go"})
	doJSON(t, router, http.MethodPost, "/tags", map[string]any{"name": "life"})

	w = doJSON(t, router, http.MethodGet, "/tags", nil)
	out := decode[struct {
		Tags  []models.Tag `json:"tags"`
		Total int          `json:"total"`
	}](t, w)
	if out.Total != 1 || out.Tags[0].Name != "life" {
		t.Errorf("tags = %+v", out)
	}

	// Duplicate tag name conflicts.
	if w := doJSON(t, router, http.MethodPost, "/tags", map[string]any{"name": "life"}); w.Code != http.StatusConflict {
		t.Errorf("duplicate tag: status %d, want 409", w.Code)
	}
}

func TestAuthToken(t *testing.T) {
	_, router := testEnv(t, "secret")

	if w := doJSON(t, router, http.MethodGet, "/posts", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token: status %d, want 200", w.Code)
	}
}

func TestAttachmentUploadAndServe(t *testing.T) {
	_, router := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "pic.png")
	if err != nil {
		t.Fatal(err)
	}
	content := []byte("png-bytes")
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: status %d: %s", w.Code, w.Body.String())
	}
	resp := decode[AttachmentUploadResponse](t, w)
	if resp.Filename == "" || resp.Size != int64(len(content)) {
		t.Errorf("resp = %+v", resp)
	}

	get := httptest.NewRequest(http.MethodGet, "/attachments/"+resp.Filename, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, get)
	if rec.Code != http.StatusOK {
		t.Fatalf("serve: status %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), content) {
		t.Error("served bytes differ from uploaded bytes")
	}
}

func TestAttachmentTraversalRejected(t *testing.T) {
	_, router := testEnv(t, "")
	req := httptest.NewRequest(http.MethodGet, "/attachments/..%2Fsecret", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusOK {
		t.Error("path traversal must not be served")
	}
}

// waitEvent drains the subscription until the named event arrives, skipping
// interleaved events such as stats.updated.
func waitEvent(t *testing.T, sub chan []byte, event, id string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw, ok := <-sub:
			if !ok {
				t.Fatalf("subscription closed waiting for %s", event)
			}
			msg := string(raw)
			if !strings.Contains(msg, "event: "+event) {
				continue
			}
			if !strings.Contains(msg, `"id":"`+id+`"`) {
				t.Fatalf("%s payload = %q, want id %s", event, msg, id)
			}
			return
		case <-deadline:
			t.Fatalf("timed out waiting for %s", event)
		}
	}
}

func TestMutationEventsPublished(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "events-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	broker := sse.NewBroker(time.Hour)
	t.Cleanup(broker.Close)

	svc := blogservice.NewService(db)
	router := NewRouter(svc, false, "", broker, t.TempDir())
	sub := broker.Subscribe()

	created := createPost(t, router, map[string]any{"title": "Hello", "content": "body"})
	waitEvent(t, sub, "post.created", created.ID)

	w := doJSON(t, router, http.MethodPut, "/posts/"+created.ID, map[string]any{"title": "Renamed"})
	if w.Code != http.StatusOK {
		t.Fatalf("update: status %d: %s", w.Code, w.Body.String())
	}
	waitEvent(t, sub, "post.updated", created.ID)

	w = doJSON(t, router, http.MethodDelete, "/posts/"+created.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", w.Code)
	}
	waitEvent(t, sub, "post.deleted", created.ID)
}
