package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"store77/pricetracker/pkg/models"
)

// CategoryRepo provides persistence for categories, keyed by slug
type CategoryRepo struct {
	DB *sql.DB
}

// NewCategoryRepo creates a new category repository
func NewCategoryRepo(db *sql.DB) *CategoryRepo {
	return &CategoryRepo{DB: db}
}

// UpsertBySlug creates the category or refreshes its name and url if a
// category with the same slug already exists.
func (r *CategoryRepo) UpsertBySlug(ctx context.Context, name, slug, url string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO categories (id, name, slug, url)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			name       = excluded.name,
			url        = excluded.url,
			updated_at = CURRENT_TIMESTAMP
	`, uuid.NewString(), name, slug, url)
	if err != nil {
		return fmt.Errorf("upsert category %q: %w", slug, err)
	}
	return nil
}

// FindBySlug returns the category with the given slug, or nil if absent
func (r *CategoryRepo) FindBySlug(ctx context.Context, slug string) (*models.Category, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, name, slug, url, parent_id, created_at, updated_at
		FROM categories
		WHERE slug = ?
	`, slug)

	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category by slug: %w", err)
	}
	return c, nil
}

// FindAll returns all categories ordered by name
func (r *CategoryRepo) FindAll(ctx context.Context) ([]models.Category, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, name, slug, url, parent_id, created_at, updated_at
		FROM categories
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// CountProducts returns the number of products per category id
func (r *CategoryRepo) CountProducts(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT category_id, COUNT(*)
		FROM products
		WHERE category_id IS NOT NULL
		GROUP BY category_id
	`)
	if err != nil {
		return nil, fmt.Errorf("count products per category: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan product count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*models.Category, error) {
	var (
		c        models.Category
		parentID sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.URL, &parentID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if parentID.Valid {
		c.ParentID = &parentID.String
	}
	return &c, nil
}
