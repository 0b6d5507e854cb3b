package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"store77/pricetracker/pkg/models"
	"store77/pricetracker/services/store"
)

type fakeFetcher struct {
	pages  map[string]string
	errs   map[string]error
	active bool
}

func (f *fakeFetcher) FetchPage(ctx context.Context, url string, useBrowser bool) (string, error) {
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	return f.pages[url], nil
}

func (f *fakeFetcher) BrowserActive() bool { return f.active }

type fakeCategoryStore struct {
	upsertErrs map[string]error
	bySlug     map[string]*models.Category
	all        []models.Category
	allErr     error
	upserted   []string
}

func (s *fakeCategoryStore) UpsertBySlug(ctx context.Context, name, slug, url string) error {
	if err, ok := s.upsertErrs[slug]; ok {
		return err
	}
	s.upserted = append(s.upserted, slug)
	return nil
}

func (s *fakeCategoryStore) FindBySlug(ctx context.Context, slug string) (*models.Category, error) {
	return s.bySlug[slug], nil
}

func (s *fakeCategoryStore) FindAll(ctx context.Context) ([]models.Category, error) {
	return s.all, s.allErr
}

type fakeProductStore struct {
	failSlugs map[string]bool
	saved     []store.UpsertProduct
}

func (s *fakeProductStore) UpsertBySlug(ctx context.Context, p store.UpsertProduct) error {
	if s.failSlugs[p.Slug] {
		return errors.New("constraint violation")
	}
	s.saved = append(s.saved, p)
	return nil
}

func newTestService(f *fakeFetcher, cs *fakeCategoryStore, ps *fakeProductStore) *Service {
	s := NewService(baseURL, f, cs, ps)
	s.delay = func(ctx context.Context, min, max time.Duration) error { return nil }
	return s
}

func TestSaveCategoriesCountsOnlySuccesses(t *testing.T) {
	cs := &fakeCategoryStore{upsertErrs: map[string]error{"noutbuki": errors.New("db locked")}}
	s := newTestService(&fakeFetcher{}, cs, &fakeProductStore{})

	saved := s.SaveCategories(context.Background(), []ParsedCategory{
		{Name: "Телефоны", Slug: "telefony", URL: baseURL + "/telefony/"},
		{Name: "Ноутбуки", Slug: "noutbuki", URL: baseURL + "/noutbuki/"},
		{Name: "Часы", Slug: "chasy", URL: baseURL + "/chasy/"},
	})

	assert.Equal(t, 2, saved)
	assert.Equal(t, []string{"telefony", "chasy"}, cs.upserted)
}

func TestSaveProductsCountsOnlySuccesses(t *testing.T) {
	ps := &fakeProductStore{failSlugs: map[string]bool{"сломанный-товар": true}}
	s := newTestService(&fakeFetcher{}, &fakeCategoryStore{}, ps)

	saved := s.SaveProducts(context.Background(), []ParsedProduct{
		{Name: "Хороший товар", ExternalURL: baseURL + "/product/1"},
		{Name: "Сломанный товар", ExternalURL: baseURL + "/product/2"},
	})

	assert.Equal(t, 1, saved)
	require.Len(t, ps.saved, 1)
	assert.Equal(t, "хороший-товар", ps.saved[0].Slug)
}

func TestSaveProductsResolvesCategoryAndOptionalFields(t *testing.T) {
	cs := &fakeCategoryStore{bySlug: map[string]*models.Category{
		"telefony": {ID: "cat-1", Slug: "telefony"},
	}}
	ps := &fakeProductStore{}
	s := newTestService(&fakeFetcher{}, cs, ps)

	desc := "128GB, титановый"
	saved := s.SaveProducts(context.Background(), []ParsedProduct{
		{
			Name:         "iPhone 15",
			Description:  desc,
			ImageURL:     baseURL + "/upload/i.jpg",
			ExternalURL:  baseURL + "/product/1",
			CategorySlug: "telefony",
		},
		{
			Name:         "Товар без категории",
			ExternalURL:  baseURL + "/product/2",
			CategorySlug: "unknown",
		},
	})

	assert.Equal(t, 2, saved)
	require.Len(t, ps.saved, 2)

	first := ps.saved[0]
	require.NotNil(t, first.CategoryID)
	assert.Equal(t, "cat-1", *first.CategoryID)
	require.NotNil(t, first.Description)
	assert.Equal(t, desc, *first.Description)
	require.NotNil(t, first.ImageURL)

	second := ps.saved[1]
	assert.Nil(t, second.CategoryID)
	assert.Nil(t, second.Description)
	assert.Nil(t, second.ImageURL)
}

func TestScrapeAllIsolatesCategoryFailures(t *testing.T) {
	mainHTML := `
	<div class="catalog_menu">
		<a href="/telefony/">Телефоны</a>
		<a href="/noutbuki/">Ноутбуки</a>
	</div>`
	productsHTML := `
	<div class="blocks_product">
		<a href="/product/1">iPhone 15 Pro</a>
		<div class="bp_text_price">129 990 ₽</div>
	</div>`

	f := &fakeFetcher{
		pages: map[string]string{
			baseURL:                mainHTML,
			baseURL + "/telefony/": productsHTML,
		},
		errs: map[string]error{
			baseURL + "/noutbuki/": errors.New("503 from upstream"),
		},
	}
	cs := &fakeCategoryStore{all: []models.Category{
		{ID: "c1", Name: "Ноутбуки", Slug: "noutbuki", URL: baseURL + "/noutbuki/"},
		{ID: "c2", Name: "Телефоны", Slug: "telefony", URL: baseURL + "/telefony/"},
	}}
	ps := &fakeProductStore{}
	s := newTestService(f, cs, ps)

	stats, err := s.ScrapeAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Categories)
	assert.Equal(t, 1, stats.Products)
	assert.Equal(t, 1, stats.Errors)
	require.Len(t, ps.saved, 1)
	assert.Equal(t, int64(12999000), ps.saved[0].OriginalPrice)
}

func TestScrapeAllFailsWhenDiscoveryFails(t *testing.T) {
	f := &fakeFetcher{errs: map[string]error{baseURL: errors.New("connection refused")}}
	s := newTestService(f, &fakeCategoryStore{}, &fakeProductStore{})

	stats, err := s.ScrapeAll(context.Background())
	require.Error(t, err)
	assert.Zero(t, stats.Categories)
	assert.Zero(t, stats.Products)
}

func TestScrapeAllFailsWhenCategoryListingFails(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{baseURL: `<div class="catalog_menu"><a href="/x/">Товары</a></div>`}}
	cs := &fakeCategoryStore{allErr: errors.New("db gone")}
	s := newTestService(f, cs, &fakeProductStore{})

	_, err := s.ScrapeAll(context.Background())
	require.Error(t, err)
}

func TestScrapeAllSkipsDelayWithoutBrowser(t *testing.T) {
	f := &fakeFetcher{
		pages: map[string]string{
			baseURL:                `<div class="catalog_menu"><a href="/telefony/">Телефоны</a></div>`,
			baseURL + "/telefony/": "<html></html>",
		},
		active: false,
	}
	cs := &fakeCategoryStore{all: []models.Category{
		{ID: "c1", Name: "Телефоны", Slug: "telefony", URL: baseURL + "/telefony/"},
	}}
	s := newTestService(f, cs, &fakeProductStore{})

	delayed := false
	s.delay = func(ctx context.Context, min, max time.Duration) error {
		delayed = true
		return nil
	}

	_, err := s.ScrapeAll(context.Background())
	require.NoError(t, err)
	assert.False(t, delayed)
}
