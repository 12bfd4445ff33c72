package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/keepgoing-web/keepgoing/internal/apperr"
	"github.com/keepgoing-web/keepgoing/internal/models"
	"github.com/keepgoing-web/keepgoing/internal/query"
)

// PostPatch is a partial update merged over an existing post. Nil fields are
// left unchanged. CategoryID uses a double pointer: outer nil means
// unchanged, inner nil clears the category. A non-nil empty TagIDs slice
// clears all tags.
type PostPatch struct {
	Title         *string
	Content       *string
	Visibility    *string
	AICollectable *bool
	CategoryID    **string
	TagIDs        []string
}

// postColumns are the selected columns, in scan order.
var postColumns = []string{"id", "title", "content", "visibility", "ai_collectable", "category_id", "created_at", "updated_at"}

// CreatePost inserts a post with a fresh id and both timestamps set to now.
// Unknown category or tag references surface as apperr.ErrInvalid.
func (db *DB) CreatePost(p models.Post) (*models.Post, error) {
	p.ID = uuid.NewString()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO posts (id, title, content, visibility, ai_collectable, category_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Title, p.Content, p.Visibility, p.AICollectable, p.CategoryID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, wrapConstraint(err, "store: insert post")
	}
	if err := replaceTags(tx, p.ID, p.TagIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return db.GetPost(p.ID)
}

// GetPost returns a post by id, or apperr.ErrNotFound.
func (db *DB) GetPost(id string) (*models.Post, error) {
	q, args, err := builder.Select(postColumns...).From("posts").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build get: %w", err)
	}
	p, err := scanPost(db.conn.QueryRow(q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("store: get post: %w", err)
	}
	tags, err := db.tagIDsFor([]string{id})
	if err != nil {
		return nil, err
	}
	p.TagIDs = tags[id]
	if p.TagIDs == nil {
		p.TagIDs = []string{}
	}
	return p, nil
}

// UpdatePost merges the patch over the stored post, preserving id and
// created_at and bumping updated_at.
func (db *DB) UpdatePost(id string, patch PostPatch) (*models.Post, error) {
	if _, err := db.GetPost(id); err != nil {
		return nil, err
	}

	upd := builder.Update("posts").Where(sq.Eq{"id": id}).
		Set("updated_at", time.Now().UTC())
	if patch.Title != nil {
		upd = upd.Set("title", *patch.Title)
	}
	if patch.Content != nil {
		upd = upd.Set("content", *patch.Content)
	}
	if patch.Visibility != nil {
		upd = upd.Set("visibility", *patch.Visibility)
	}
	if patch.AICollectable != nil {
		upd = upd.Set("ai_collectable", *patch.AICollectable)
	}
	if patch.CategoryID != nil {
		upd = upd.Set("category_id", *patch.CategoryID)
	}

	q, args, err := upd.ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build update: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(q, args...); err != nil {
		return nil, wrapConstraint(err, "store: update post")
	}
	if patch.TagIDs != nil {
		if err := replaceTags(tx, id, patch.TagIDs); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return db.GetPost(id)
}

// DeletePost removes a post and its tag links. Hard delete, no tombstone.
func (db *DB) DeletePost(id string) error {
	res, err := db.conn.Exec(`DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListPosts filters, sorts, and paginates posts in SQL. Ties on the sort key
// fall back to rowid order, which preserves insertion order regardless of
// direction and keeps pagination deterministic.
func (db *DB) ListPosts(f query.Filter) ([]models.Post, int, error) {
	f.Normalize()

	conds := postConds(f)

	countQ := builder.Select("COUNT(*)").From("posts")
	for _, c := range conds {
		countQ = countQ.Where(c)
	}
	q, args, err := countQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("store: build count: %w", err)
	}
	var total int
	if err := db.conn.QueryRow(q, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count posts: %w", err)
	}

	dir := "ASC"
	if f.Order == query.OrderDesc {
		dir = "DESC"
	}
	sortCol := map[string]string{
		query.SortCreatedAt: "created_at",
		query.SortUpdatedAt: "updated_at",
		query.SortTitle:     "LOWER(title)",
	}[f.Sort]

	sel := builder.Select(postColumns...).From("posts")
	for _, c := range conds {
		sel = sel.Where(c)
	}
	sel = sel.OrderBy(sortCol+" "+dir, "rowid ASC").
		Limit(uint64(f.Size)).
		Offset(uint64((f.Page - 1) * f.Size))

	q, args, err = sel.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("store: build list: %w", err)
	}
	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	var ids []string
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, *p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	tagsByPost, err := db.tagIDsFor(ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range posts {
		posts[i].TagIDs = tagsByPost[posts[i].ID]
		if posts[i].TagIDs == nil {
			posts[i].TagIDs = []string{}
		}
	}
	return posts, total, nil
}

// postConds translates the filter predicates into squirrel conditions.
func postConds(f query.Filter) []sq.Sqlizer {
	var conds []sq.Sqlizer
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		like := "%" + q + "%"
		conds = append(conds, sq.Or{
			sq.Expr("LOWER(title) LIKE ?", like),
			sq.Expr("LOWER(content) LIKE ?", like),
		})
	}
	switch f.CategoryID {
	case "":
	case query.CategoryUncategorized:
		conds = append(conds, sq.Eq{"category_id": nil})
	default:
		conds = append(conds, sq.Eq{"category_id": f.CategoryID})
	}
	if len(f.TagIDs) > 0 {
		args := make([]any, len(f.TagIDs))
		for i, id := range f.TagIDs {
			args[i] = id
		}
		conds = append(conds, sq.Expr(
			"id IN (SELECT post_id FROM post_tags WHERE tag_id IN ("+sq.Placeholders(len(args))+"))",
			args...))
	}
	if f.Visibility != "" {
		conds = append(conds, sq.Eq{"visibility": f.Visibility})
	}
	if f.AICollectable != nil {
		conds = append(conds, sq.Eq{"ai_collectable": *f.AICollectable})
	}
	if f.DateFrom != nil {
		conds = append(conds, sq.GtOrEq{"created_at": f.DateFrom.UTC()})
	}
	if f.DateTo != nil {
		conds = append(conds, sq.LtOrEq{"created_at": f.DateTo.UTC()})
	}
	return conds
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner) (*models.Post, error) {
	var p models.Post
	var category sql.NullString
	if err := s.Scan(&p.ID, &p.Title, &p.Content, &p.Visibility, &p.AICollectable,
		&category, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if category.Valid {
		p.CategoryID = &category.String
	}
	return &p, nil
}

// tagIDsFor returns the tag ids for each of the given post ids.
func (db *DB) tagIDsFor(postIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(postIDs))
	for i, id := range postIDs {
		args[i] = id
	}
	rows, err := db.conn.Query(
		`SELECT post_id, tag_id FROM post_tags WHERE post_id IN (`+sq.Placeholders(len(args))+`) ORDER BY rowid`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("store: post tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var postID, tagID string
		if err := rows.Scan(&postID, &tagID); err != nil {
			return nil, err
		}
		out[postID] = append(out[postID], tagID)
	}
	return out, rows.Err()
}

// replaceTags rewrites the post_tags rows for a post inside tx.
func replaceTags(tx *sql.Tx, postID string, tagIDs []string) error {
	if _, err := tx.Exec(`DELETE FROM post_tags WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("store: clear tags: %w", err)
	}
	if len(tagIDs) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO post_tags (post_id, tag_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare tag insert: %w", err)
	}
	defer stmt.Close()
	for _, tagID := range tagIDs {
		if _, err := stmt.Exec(postID, tagID); err != nil {
			return wrapConstraint(err, "store: insert tag link")
		}
	}
	return nil
}

// wrapConstraint maps foreign-key violations (unknown category or tag id) to
// apperr.ErrInvalid.
func wrapConstraint(err error, msg string) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%s: %w: %v", msg, apperr.ErrInvalid, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
