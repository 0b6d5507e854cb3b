package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"store77/pricetracker/pkg/models"
)

// ProductRepo provides persistence for products, keyed by slug
type ProductRepo struct {
	DB *sql.DB
}

// NewProductRepo creates a new product repository
func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{DB: db}
}

// UpsertProduct carries the fields written by an upsert. The external id
// is only set on create, matching first-sighting semantics.
type UpsertProduct struct {
	ExternalID    *string
	Name          string
	Slug          string
	Description   *string
	OriginalPrice int64
	FinalPrice    int64
	ImageURL      *string
	ExternalURL   string
	CategoryID    *string
}

// UpsertBySlug creates the product or refreshes its fields if a product
// with the same slug already exists. Products are always marked active
// on a successful write.
func (r *ProductRepo) UpsertBySlug(ctx context.Context, p UpsertProduct) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO products (
			id, external_id, name, slug, description,
			original_price, final_price, image_url, external_url,
			category_id, is_active
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(slug) DO UPDATE SET
			name           = excluded.name,
			description    = excluded.description,
			original_price = excluded.original_price,
			final_price    = excluded.final_price,
			image_url      = excluded.image_url,
			external_url   = excluded.external_url,
			category_id    = excluded.category_id,
			is_active      = 1,
			updated_at     = CURRENT_TIMESTAMP
	`, uuid.NewString(), p.ExternalID, p.Name, p.Slug, p.Description,
		p.OriginalPrice, p.FinalPrice, p.ImageURL, p.ExternalURL, p.CategoryID)
	if err != nil {
		return fmt.Errorf("upsert product %q: %w", p.Slug, err)
	}
	return nil
}

// ListQuery contains filters and pagination for product listing
type ListQuery struct {
	CategorySlug string
	Search       string
	Limit        int
	Offset       int
}

// List returns products matching the query, newest first
func (r *ProductRepo) List(ctx context.Context, q ListQuery) ([]models.Product, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// Count returns the number of products matching the query
func (r *ProductRepo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

// GetByID returns the product with the given id, or nil if absent
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*models.Product, error) {
	row := r.DB.QueryRowContext(ctx, selectProduct+` WHERE p.id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return p, nil
}

// GetBySlug returns the product with the given slug, or nil if absent
func (r *ProductRepo) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	row := r.DB.QueryRowContext(ctx, selectProduct+` WHERE p.slug = ?`, slug)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product by slug: %w", err)
	}
	return p, nil
}

const selectProduct = `
	SELECT p.id, p.external_id, p.name, p.slug, p.description,
	       p.original_price, p.final_price, p.image_url, p.external_url,
	       p.category_id, p.is_active, p.created_at, p.updated_at
	FROM products p`

func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	var sb strings.Builder
	var args []any

	if countOnly {
		sb.WriteString(`SELECT COUNT(*) FROM products p`)
	} else {
		sb.WriteString(selectProduct)
	}

	var where []string
	if q.CategorySlug != "" {
		where = append(where, `p.category_id IN (SELECT id FROM categories WHERE slug = ?)`)
		args = append(args, q.CategorySlug)
	}
	if q.Search != "" {
		where = append(where, `(p.name LIKE ? OR p.description LIKE ?)`)
		pattern := "%" + q.Search + "%"
		args = append(args, pattern, pattern)
	}
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	if !countOnly {
		sb.WriteString(" ORDER BY p.updated_at DESC")
		if q.Limit > 0 {
			sb.WriteString(" LIMIT ? OFFSET ?")
			args = append(args, q.Limit, q.Offset)
		}
	}

	return sb.String(), args
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var (
		p          models.Product
		externalID sql.NullString
		desc       sql.NullString
		imageURL   sql.NullString
		categoryID sql.NullString
	)
	if err := row.Scan(
		&p.ID, &externalID, &p.Name, &p.Slug, &desc,
		&p.OriginalPrice, &p.FinalPrice, &imageURL, &p.ExternalURL,
		&categoryID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if externalID.Valid {
		p.ExternalID = &externalID.String
	}
	if desc.Valid {
		p.Description = &desc.String
	}
	if imageURL.Valid {
		p.ImageURL = &imageURL.String
	}
	if categoryID.Valid {
		p.CategoryID = &categoryID.String
	}
	return &p, nil
}
