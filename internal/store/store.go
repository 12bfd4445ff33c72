// Package store provides the SQLite-backed post and taxonomy store.
package store

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS categories (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	parent_id  TEXT REFERENCES categories(id),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tags (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS posts (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL DEFAULT '',
	content        TEXT NOT NULL DEFAULT '',
	visibility     TEXT NOT NULL DEFAULT 'PUBLIC',
	ai_collectable INTEGER NOT NULL DEFAULT 0,
	category_id    TEXT REFERENCES categories(id),
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_category ON posts(category_id);
CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at);

CREATE TABLE IF NOT EXISTS post_tags (
	post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	tag_id  TEXT NOT NULL REFERENCES tags(id),
	UNIQUE(post_id, tag_id)
);

CREATE INDEX IF NOT EXISTS idx_post_tags_tag ON post_tags(tag_id);
`

// builder is the squirrel statement builder configured for SQLite placeholders.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// DB wraps a sql.DB with post/taxonomy operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Empty reports whether the store holds no posts, categories, or tags.
// The seed importer uses this to decide whether to load the fixture.
func (db *DB) Empty() (bool, error) {
	var n int
	err := db.conn.QueryRow(`
		SELECT (SELECT COUNT(*) FROM posts)
		     + (SELECT COUNT(*) FROM categories)
		     + (SELECT COUNT(*) FROM tags)
	`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: count: %w", err)
	}
	return n == 0, nil
}
