package models

import "time"

// Category is a persisted product category, keyed by slug.
// The scraper only ever creates root-level categories; ParentID is
// maintained externally.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	URL       string    `json:"url"`
	ParentID  *string   `json:"parentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Product is a persisted product, keyed by slug derived from its name.
// Prices are stored in minor currency units (kopecks).
type Product struct {
	ID            string    `json:"id"`
	ExternalID    *string   `json:"externalId,omitempty"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Description   *string   `json:"description,omitempty"`
	OriginalPrice int64     `json:"originalPrice"`
	FinalPrice    int64     `json:"finalPrice"`
	ImageURL      *string   `json:"imageUrl,omitempty"`
	ExternalURL   string    `json:"externalUrl"`
	CategoryID    *string   `json:"categoryId,omitempty"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
