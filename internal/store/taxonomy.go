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
)

// ListCategories returns all categories, optionally narrowed by a
// case-insensitive name substring.
func (db *DB) ListCategories(nameQuery string) ([]models.Category, error) {
	sel := builder.Select("id", "name", "parent_id", "created_at").
		From("categories").OrderBy("created_at ASC", "rowid ASC")
	if q := strings.ToLower(strings.TrimSpace(nameQuery)); q != "" {
		sel = sel.Where(sq.Expr("LOWER(name) LIKE ?", "%"+q+"%"))
	}
	q, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build categories: %w", err)
	}
	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var c models.Category
		var parent sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &parent, &c.CreatedAt); err != nil {
			return nil, err
		}
		if parent.Valid {
			c.ParentID = &parent.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory inserts a category, optionally under a parent. The parent
// must exist; a missing parent surfaces as apperr.ErrInvalid.
func (db *DB) CreateCategory(name string, parentID *string) (*models.Category, error) {
	c := models.Category{
		ID:        uuid.NewString(),
		Name:      name,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.conn.Exec(`INSERT INTO categories (id, name, parent_id, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.ParentID, c.CreatedAt)
	if err != nil {
		return nil, wrapConstraint(err, "store: insert category")
	}
	return &c, nil
}

// insertCategory inserts a category with a caller-chosen id. Used by the
// seed importer, which must preserve fixture ids; it guards against parent
// cycles since fixture ids are not store-generated.
func (db *DB) insertCategory(c models.Category) error {
	if err := db.checkParentChain(c); err != nil {
		return err
	}
	_, err := db.conn.Exec(`
		INSERT INTO categories (id, name, parent_id, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, parent_id = excluded.parent_id
	`, c.ID, c.Name, c.ParentID, c.CreatedAt)
	if err != nil {
		return wrapConstraint(err, "store: upsert category")
	}
	return nil
}

// checkParentChain walks the prospective ancestor chain and rejects
// self-references and cycles.
func (db *DB) checkParentChain(c models.Category) error {
	seen := map[string]struct{}{c.ID: {}}
	cur := c.ParentID
	for cur != nil {
		if _, ok := seen[*cur]; ok {
			return fmt.Errorf("store: category %s: parent chain cycle: %w", c.ID, apperr.ErrInvalid)
		}
		seen[*cur] = struct{}{}
		var next sql.NullString
		err := db.conn.QueryRow(`SELECT parent_id FROM categories WHERE id = ?`, *cur).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			// Parent not inserted yet; the FK constraint has the final say.
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: walk parents: %w", err)
		}
		if !next.Valid {
			return nil
		}
		cur = &next.String
	}
	return nil
}

// ListTags returns all tags, optionally narrowed by a case-insensitive name
// substring.
func (db *DB) ListTags(nameQuery string) ([]models.Tag, error) {
	sel := builder.Select("id", "name").From("tags").OrderBy("rowid ASC")
	if q := strings.ToLower(strings.TrimSpace(nameQuery)); q != "" {
		sel = sel.Where(sq.Expr("LOWER(name) LIKE ?", "%"+q+"%"))
	}
	q, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build tags: %w", err)
	}
	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list tags: %w", err)
	}
	defer rows.Close()

	var out []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTag inserts a tag. Names are unique; creating an existing name
// returns apperr.ErrAlreadyExists.
func (db *DB) CreateTag(name string) (*models.Tag, error) {
	t := models.Tag{ID: uuid.NewString(), Name: name}
	_, err := db.conn.Exec(`INSERT INTO tags (id, name) VALUES (?, ?)`, t.ID, t.Name)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
			return nil, fmt.Errorf("store: tag %q: %w", name, apperr.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("store: insert tag: %w", err)
	}
	return &t, nil
}

// upsertTag inserts a tag with a caller-chosen id, used by the seed importer.
func (db *DB) upsertTag(t models.Tag) error {
	_, err := db.conn.Exec(`
		INSERT INTO tags (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, t.ID, t.Name)
	if err != nil {
		return fmt.Errorf("store: upsert tag: %w", err)
	}
	return nil
}

// upsertPost inserts a post with caller-chosen id and timestamps, used by
// the seed importer.
func (db *DB) upsertPost(p models.Post) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO posts (id, title, content, visibility, ai_collectable, category_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title          = excluded.title,
			content        = excluded.content,
			visibility     = excluded.visibility,
			ai_collectable = excluded.ai_collectable,
			category_id    = excluded.category_id,
			created_at     = excluded.created_at,
			updated_at     = excluded.updated_at
	`, p.ID, p.Title, p.Content, p.Visibility, p.AICollectable, p.CategoryID, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return wrapConstraint(err, "store: upsert post")
	}
	if err := replaceTags(tx, p.ID, p.TagIDs); err != nil {
		return err
	}
	return tx.Commit()
}
