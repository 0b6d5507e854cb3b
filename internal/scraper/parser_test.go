package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "https://store77.net"

func TestParseCategories(t *testing.T) {
	html := `
	<div class="catalog_menu">
		<a href="/telefony/">Телефоны</a>
		<a href="/noutbuki/">Ноутбуки</a>
		<a href="/telefony-dup/">Телефоны</a>
		<a href="javascript:void(0)">Акции</a>
		<a href="#">Меню</a>
		<a href="/login">Вход</a>
		<a href="/cart">Корзина</a>
		<a href="/account">Кабинет</a>
		<a href="/x">Ч</a>
	</div>`

	categories := NewParser(baseURL).ParseCategories(html)

	require.Len(t, categories, 2)
	assert.Equal(t, "Телефоны", categories[0].Name)
	assert.Equal(t, "https://store77.net/telefony/", categories[0].URL)
	assert.Equal(t, "телефоны", categories[0].Slug)
	assert.Equal(t, "ноутбуки", categories[1].Slug)
}

func TestParseCategoriesFirstStrategyWins(t *testing.T) {
	// Both containers match different strategies; only the first
	// successful one contributes results.
	html := `
	<div class="catalog_menu">
		<a href="/telefony/">Телефоны</a>
	</div>
	<div class="main_menu">
		<a href="/noutbuki/">Ноутбуки</a>
	</div>`

	categories := NewParser(baseURL).ParseCategories(html)

	require.Len(t, categories, 1)
	assert.Equal(t, "телефоны", categories[0].Slug)
}

func TestParseCategoriesFallsBackToLaterStrategy(t *testing.T) {
	html := `
	<div class="main_menu">
		<a href="/telefony/">Телефоны</a>
	</div>`

	categories := NewParser(baseURL).ParseCategories(html)

	require.Len(t, categories, 1)
	assert.Equal(t, "телефоны", categories[0].Slug)
}

func TestParseCategoriesNoMatches(t *testing.T) {
	assert.Empty(t, NewParser(baseURL).ParseCategories("<html><body><p>nothing here</p></body></html>"))
	assert.Empty(t, NewParser(baseURL).ParseCategories(""))
}

func TestParseProducts(t *testing.T) {
	html := `
	<div class="blocks_product">
		<div class="bp_product_img"><img src="/upload/iphone.jpg"></div>
		<a href="/product/12345">iPhone 15 Pro 256GB</a>
		<div class="bp_text_info">iPhone 15 Pro 256GB Titanium</div>
		<div class="bp_text_price">129 990 ₽</div>
	</div>
	<div class="blocks_product">
		<a href="/product/67890">Samsung Galaxy S24</a>
		<div class="bp_text_info">Samsung Galaxy S24 Ultra</div>
	</div>`

	products := NewParser(baseURL).ParseProducts(html, "telefony")

	require.Len(t, products, 2)

	first := products[0]
	require.NotNil(t, first.ExternalID)
	assert.Equal(t, "12345", *first.ExternalID)
	assert.Equal(t, "iPhone 15 Pro 256GB Titanium", first.Name)
	assert.Equal(t, int64(12999000), first.OriginalPrice)
	assert.Equal(t, int64(12899000), first.FinalPrice)
	assert.Equal(t, "https://store77.net/upload/iphone.jpg", first.ImageURL)
	assert.Equal(t, "https://store77.net/product/12345", first.ExternalURL)
	assert.Equal(t, "telefony", first.CategorySlug)

	// Missing price and image are not extraction failures
	second := products[1]
	assert.Equal(t, int64(0), second.OriginalPrice)
	assert.Equal(t, int64(0), second.FinalPrice)
	assert.Empty(t, second.ImageURL)
}

func TestParseProductsDeduplicatesByURL(t *testing.T) {
	html := `
	<div class="blocks_product">
		<a href="/product/1">Первый товар</a>
		<div class="bp_text_price">5000 ₽</div>
	</div>
	<div class="blocks_product">
		<a href="/product/1">Первый товар повтор</a>
	</div>`

	products := NewParser(baseURL).ParseProducts(html, "")

	require.Len(t, products, 1)
	assert.Equal(t, int64(500000), products[0].OriginalPrice)
}

func TestParseProductsLazyImageAttribute(t *testing.T) {
	html := `
	<div class="blocks_product">
		<a href="/product/2">Ноутбук ASUS VivoBook</a>
		<img data-src="/upload/asus.jpg">
	</div>`

	products := NewParser(baseURL).ParseProducts(html, "noutbuki")

	require.Len(t, products, 1)
	assert.Equal(t, "https://store77.net/upload/asus.jpg", products[0].ImageURL)
}

func TestParseProductsNameFallbackToTitle(t *testing.T) {
	html := `
	<div class="blocks_product">
		<a href="/product/3" title="iPad Pro 11"></a>
	</div>`

	products := NewParser(baseURL).ParseProducts(html, "")

	require.Len(t, products, 1)
	assert.Equal(t, "iPad Pro 11", products[0].Name)
}

func TestParseProductsSkipsCardsWithoutURLOrName(t *testing.T) {
	html := `
	<div class="blocks_product">
		<span>карточка без ссылки</span>
	</div>
	<div class="blocks_product">
		<a href="/product/4"></a>
	</div>
	<div class="blocks_product">
		<a href="/product/5">Валидный товар</a>
	</div>`

	products := NewParser(baseURL).ParseProducts(html, "")

	require.Len(t, products, 1)
	assert.Equal(t, "Валидный товар", products[0].Name)
}

func TestParseProductsMalformedHTMLDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		NewParser(baseURL).ParseProducts(`<div class="blocks_product"><a href=`, "")
		NewParser(baseURL).ParseProducts("", "x")
		NewParser(baseURL).ParseCategories("<<<<>>>>")
	})
}
