package scraper

import (
	"context"

	"store77/pricetracker/pkg/models"
	"store77/pricetracker/services/store"
)

// ParsedCategory is a category extracted from the site's menu. It lives
// for one pipeline pass only.
type ParsedCategory struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Slug string `json:"slug"`
}

// ParsedProduct is a product card extracted from a category page. Prices
// are in minor currency units (kopecks). It lives for one pipeline pass
// only; empty optional fields mean "absent".
type ParsedProduct struct {
	ExternalID    *string `json:"externalId"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	OriginalPrice int64   `json:"originalPrice"`
	FinalPrice    int64   `json:"finalPrice"`
	ImageURL      string  `json:"imageUrl,omitempty"`
	ExternalURL   string  `json:"externalUrl"`
	CategorySlug  string  `json:"categorySlug,omitempty"`
}

// Stats aggregates the outcome of a full scrape run
type Stats struct {
	Categories int `json:"categories"`
	Products   int `json:"products"`
	Errors     int `json:"errors"`
}

// Fetcher retrieves raw HTML for a URL
type Fetcher interface {
	FetchPage(ctx context.Context, url string, useBrowser bool) (string, error)
	BrowserActive() bool
}

// CategoryStore is the category persistence used by the reconciler
type CategoryStore interface {
	UpsertBySlug(ctx context.Context, name, slug, url string) error
	FindBySlug(ctx context.Context, slug string) (*models.Category, error)
	FindAll(ctx context.Context) ([]models.Category, error)
}

// ProductStore is the product persistence used by the reconciler
type ProductStore interface {
	UpsertBySlug(ctx context.Context, p store.UpsertProduct) error
}
