package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/keepgoing-web/keepgoing/internal/apperr"
	"github.com/keepgoing-web/keepgoing/internal/models"
	"github.com/keepgoing-web/keepgoing/internal/query"
)

// HTTPClient talks to the REST API over HTTP with optional bearer auth.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the API rooted at baseURL
// (e.g. "http://localhost:8080/api"). token may be empty when the server
// runs with auth disabled.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// do issues a request and decodes the response into out (if non-nil).
// Network failures map to ErrUnavailable; HTTP statuses map to the apperr
// taxonomy.
func (c *HTTPClient) do(ctx context.Context, method, path string, q url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w: %v", method, path, apperr.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = resp.Status
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("remote: %s: %w", msg, apperr.ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("remote: %s: %w", msg, apperr.ErrAlreadyExists)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("remote: %s: %w", msg, apperr.ErrInvalid)
	default:
		return fmt.Errorf("remote: HTTP %d: %s: %w", resp.StatusCode, msg, apperr.ErrUnavailable)
	}
}

// ListPosts fetches one page of posts matching the filter.
func (c *HTTPClient) ListPosts(ctx context.Context, f query.Filter) (*query.Page, error) {
	var page query.Page
	if err := c.do(ctx, http.MethodGet, "/posts", f.Values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetPost fetches a single post by id.
func (c *HTTPClient) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(id), nil, nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// CreatePost submits a new post.
func (c *HTTPClient) CreatePost(ctx context.Context, payload PostPayload) (*models.Post, error) {
	var post models.Post
	if err := c.do(ctx, http.MethodPost, "/posts", nil, payload, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost submits a partial update. Only fields present in the patch
// appear in the JSON body, so the server merges rather than replaces.
func (c *HTTPClient) UpdatePost(ctx context.Context, id string, patch PostPatch) (*models.Post, error) {
	body := map[string]any{}
	if patch.Title != nil {
		body["title"] = *patch.Title
	}
	if patch.Content != nil {
		body["content"] = *patch.Content
	}
	if patch.Visibility != nil {
		body["visibility"] = *patch.Visibility
	}
	if patch.AICollectable != nil {
		body["aiCollectable"] = *patch.AICollectable
	}
	if patch.CategoryID != nil {
		body["categoryId"] = *patch.CategoryID
	}
	if patch.TagIDs != nil {
		body["tagIds"] = patch.TagIDs
	}

	var post models.Post
	if err := c.do(ctx, http.MethodPut, "/posts/"+url.PathEscape(id), nil, body, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// DeletePost removes a post.
func (c *HTTPClient) DeletePost(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id), nil, nil, nil)
}

// ListCategories fetches all categories, optionally filtered by name.
func (c *HTTPClient) ListCategories(ctx context.Context, nameQuery string) ([]models.Category, error) {
	q := url.Values{}
	if nameQuery != "" {
		q.Set("q", nameQuery)
	}
	var resp struct {
		Categories []models.Category `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/categories", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// CreateCategory creates a category, optionally under a parent.
func (c *HTTPClient) CreateCategory(ctx context.Context, name string, parentID *string) (*models.Category, error) {
	body := map[string]any{"name": name, "parentId": parentID}
	var cat models.Category
	if err := c.do(ctx, http.MethodPost, "/categories", nil, body, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// ListTags fetches all tags, optionally filtered by name.
func (c *HTTPClient) ListTags(ctx context.Context, nameQuery string) ([]models.Tag, error) {
	q := url.Values{}
	if nameQuery != "" {
		q.Set("q", nameQuery)
	}
	var resp struct {
		Tags []models.Tag `json:"tags"`
	}
	if err := c.do(ctx, http.MethodGet, "/tags", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tags, nil
}

// CreateTag creates a tag.
func (c *HTTPClient) CreateTag(ctx context.Context, name string) (*models.Tag, error) {
	body := map[string]any{"name": name}
	var tag models.Tag
	if err := c.do(ctx, http.MethodPost, "/tags", nil, body, &tag); err != nil {
		return nil, err
	}
	return &tag, nil
}
