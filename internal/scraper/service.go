package scraper

import (
	"context"
	"time"

	"store77/pricetracker/internal/browser"
	"store77/pricetracker/logger"
	"store77/pricetracker/services/store"
)

// Inter-category delay range while browser fetching is active, to keep
// the request rate below the site's bot-detection threshold.
const (
	categoryDelayMin = 2 * time.Second
	categoryDelayMax = 5 * time.Second
)

// Service runs the scraping pipeline: fetch, parse, normalize and
// reconcile into storage. Categories are processed sequentially on
// purpose; parallelizing them would hammer the target site.
type Service struct {
	baseURL    string
	fetcher    Fetcher
	parser     *Parser
	categories CategoryStore
	products   ProductStore
	log        *logger.Logger

	// delay is swappable in tests
	delay func(ctx context.Context, min, max time.Duration) error
}

// NewService creates a scraper service
func NewService(baseURL string, fetcher Fetcher, categories CategoryStore, products ProductStore) *Service {
	return &Service{
		baseURL:    baseURL,
		fetcher:    fetcher,
		parser:     NewParser(baseURL),
		categories: categories,
		products:   products,
		log:        logger.ForComponent("scraper"),
		delay:      browser.RandomDelay,
	}
}

// ParseCategories fetches the main page and extracts categories
func (s *Service) ParseCategories(ctx context.Context) ([]ParsedCategory, error) {
	s.log.Info().Msg("Starting category parsing")

	html, err := s.fetcher.FetchPage(ctx, s.baseURL, true)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to fetch main page")
		return nil, err
	}

	categories := s.parser.ParseCategories(html)
	s.log.Info().Int("total", len(categories)).Msg("Parsed categories")
	return categories, nil
}

// SaveCategories upserts parsed categories by slug. Per-item failures
// are logged and skipped; the returned count only includes successes.
func (s *Service) SaveCategories(ctx context.Context, categories []ParsedCategory) int {
	saved := 0
	for _, c := range categories {
		if err := s.categories.UpsertBySlug(ctx, c.Name, c.Slug, c.URL); err != nil {
			s.log.Error().Err(err).Str("category", c.Name).Msg("Failed to save category")
			continue
		}
		saved++
	}

	s.log.Info().
		Int("total", len(categories)).
		Int("saved", saved).
		Int("failed", len(categories)-saved).
		Msg("Saved categories")
	return saved
}

// ParseProductsFromCategory fetches a category page and extracts its
// product cards
func (s *Service) ParseProductsFromCategory(ctx context.Context, categoryURL, categorySlug string) ([]ParsedProduct, error) {
	s.log.Info().Str("url", categoryURL).Msg("Parsing products from category")

	html, err := s.fetcher.FetchPage(ctx, categoryURL, true)
	if err != nil {
		s.log.Error().Err(err).Str("url", categoryURL).Msg("Failed to fetch category page")
		return nil, err
	}

	products := s.parser.ParseProducts(html, categorySlug)
	s.log.Info().
		Str("url", categoryURL).
		Int("products", len(products)).
		Msg("Parsed products from category")
	return products, nil
}

// SaveProducts upserts parsed products by slug, resolving the category
// slug to an id when possible. Every successful write marks the product
// active. Per-item failures are logged and skipped.
func (s *Service) SaveProducts(ctx context.Context, products []ParsedProduct) int {
	saved := 0
	for _, p := range products {
		if err := s.saveProduct(ctx, p); err != nil {
			s.log.Error().Err(err).Str("product", p.Name).Msg("Failed to save product")
			continue
		}
		saved++
	}

	s.log.Info().
		Int("total", len(products)).
		Int("saved", saved).
		Int("failed", len(products)-saved).
		Msg("Saved products")
	return saved
}

func (s *Service) saveProduct(ctx context.Context, p ParsedProduct) error {
	var categoryID *string
	if p.CategorySlug != "" {
		category, err := s.categories.FindBySlug(ctx, p.CategorySlug)
		if err != nil {
			return err
		}
		if category != nil {
			categoryID = &category.ID
		}
	}

	record := store.UpsertProduct{
		ExternalID:    p.ExternalID,
		Name:          p.Name,
		Slug:          GenerateSlug(p.Name),
		OriginalPrice: p.OriginalPrice,
		FinalPrice:    p.FinalPrice,
		ExternalURL:   p.ExternalURL,
		CategoryID:    categoryID,
	}
	if p.Description != "" {
		record.Description = &p.Description
	}
	if p.ImageURL != "" {
		record.ImageURL = &p.ImageURL
	}

	return s.products.UpsertBySlug(ctx, record)
}

// ScrapeAll runs a full pipeline pass: categories first, then each
// stored category's products. One category failing never aborts the
// batch; a failure during category discovery is fatal to the run.
func (s *Service) ScrapeAll(ctx context.Context) (Stats, error) {
	s.log.Info().Msg("Starting full scrape")
	start := time.Now()

	parsed, err := s.ParseCategories(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Categories: s.SaveCategories(ctx, parsed)}

	stored, err := s.categories.FindAll(ctx)
	if err != nil {
		return Stats{}, err
	}

	for _, category := range stored {
		products, err := s.ParseProductsFromCategory(ctx, category.URL, category.Slug)
		if err != nil {
			stats.Errors++
			s.log.Error().Err(err).Str("category", category.Name).Msg("Error scraping category")
			continue
		}

		if len(products) > 0 {
			stats.Products += s.SaveProducts(ctx, products)
		}

		if s.fetcher.BrowserActive() {
			if err := s.delay(ctx, categoryDelayMin, categoryDelayMax); err != nil {
				return stats, err
			}
		}
	}

	s.log.Info().
		Int("categories", stats.Categories).
		Int("products", stats.Products).
		Int("errors", stats.Errors).
		Dur("duration", time.Since(start)).
		Msg("Full scrape finished")

	return stats, nil
}
