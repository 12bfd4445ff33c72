package store

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/keepgoing-web/keepgoing/internal/models"
)

// Seed is the YAML fixture format for demo/offline data.
type Seed struct {
	Categories []SeedCategory `yaml:"categories"`
	Tags       []SeedTag      `yaml:"tags"`
	Posts      []SeedPost     `yaml:"posts"`
}

// SeedCategory mirrors models.Category for the fixture file.
type SeedCategory struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	ParentID *string `yaml:"parent_id"`
}

// SeedTag mirrors models.Tag for the fixture file.
type SeedTag struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// SeedPost mirrors models.Post for the fixture file. Timestamps default to
// import time when omitted; updated_at defaults to created_at.
type SeedPost struct {
	ID            string     `yaml:"id"`
	Title         string     `yaml:"title"`
	Content       string     `yaml:"content"`
	Visibility    string     `yaml:"visibility"`
	AICollectable bool       `yaml:"ai_collectable"`
	CategoryID    *string    `yaml:"category_id"`
	TagIDs        []string   `yaml:"tag_ids"`
	CreatedAt     *time.Time `yaml:"created_at"`
	UpdatedAt     *time.Time `yaml:"updated_at"`
}

// ImportSeed reads the YAML fixture at path and upserts its contents.
// Categories are inserted parents-first so the foreign key holds; entries
// that fail (cycles, dangling references) are skipped with a warning rather
// than aborting the rest of the import.
func ImportSeed(db *DB, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("seed: read %s: %w", path, err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("seed: parse %s: %w", path, err)
	}

	for _, c := range orderByParent(seed.Categories) {
		cat := models.Category{ID: c.ID, Name: c.Name, ParentID: c.ParentID, CreatedAt: time.Now().UTC()}
		if err := db.insertCategory(cat); err != nil {
			logger.Warn("seed: category skipped", slog.String("id", c.ID), slog.String("error", err.Error()))
		}
	}
	for _, t := range seed.Tags {
		if err := db.upsertTag(models.Tag{ID: t.ID, Name: t.Name}); err != nil {
			logger.Warn("seed: tag skipped", slog.String("id", t.ID), slog.String("error", err.Error()))
		}
	}
	for _, sp := range seed.Posts {
		p := models.Post{
			ID:            sp.ID,
			Title:         sp.Title,
			Content:       sp.Content,
			Visibility:    sp.Visibility,
			AICollectable: sp.AICollectable,
			CategoryID:    sp.CategoryID,
			TagIDs:        sp.TagIDs,
		}
		if p.Visibility == "" {
			p.Visibility = models.VisibilityPublic
		}
		now := time.Now().UTC()
		if sp.CreatedAt != nil {
			p.CreatedAt = *sp.CreatedAt
		} else {
			p.CreatedAt = now
		}
		if sp.UpdatedAt != nil {
			p.UpdatedAt = *sp.UpdatedAt
		} else {
			p.UpdatedAt = p.CreatedAt
		}
		if err := db.upsertPost(p); err != nil {
			logger.Warn("seed: post skipped", slog.String("id", sp.ID), slog.String("error", err.Error()))
		}
	}

	logger.Info("seed: imported",
		slog.Int("categories", len(seed.Categories)),
		slog.Int("tags", len(seed.Tags)),
		slog.Int("posts", len(seed.Posts)))
	return nil
}

// orderByParent sorts categories so parents precede children. Entries whose
// parent never appears are kept last and left to the FK constraint.
func orderByParent(cats []SeedCategory) []SeedCategory {
	placed := make(map[string]struct{}, len(cats))
	var out []SeedCategory
	remaining := append([]SeedCategory(nil), cats...)
	for len(remaining) > 0 {
		progress := false
		var next []SeedCategory
		for _, c := range remaining {
			if c.ParentID == nil {
				placed[c.ID] = struct{}{}
				out = append(out, c)
				progress = true
				continue
			}
			if _, ok := placed[*c.ParentID]; ok {
				placed[c.ID] = struct{}{}
				out = append(out, c)
				progress = true
				continue
			}
			next = append(next, c)
		}
		remaining = next
		if !progress {
			// Unresolvable parents (cycle or dangling reference).
			out = append(out, remaining...)
			break
		}
	}
	return out
}
