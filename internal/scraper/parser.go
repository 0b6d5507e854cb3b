package scraper

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"store77/pricetracker/logger"
)

// Selector cascades for store77.net, most specific first. The first
// strategy that yields any results wins entirely; later ones are never
// merged in.
var (
	categorySelectors = []string{
		".catalog_menu a",
		".main_menu a",
		`[class*="menu"] a[href^="/"]`,
	}

	productCardSelectors  = []string{".blocks_product"}
	productLinkSelectors  = []string{`a[href^="/"]`, "a"}
	productNameSelectors  = []string{".bp_text_info", ".bp_text a", "a[title]", "a"}
	productPriceSelectors = []string{".bp_text_price"}
	productImageSelectors = []string{".bp_product_img img", "img"}
	productDescSelectors  = []string{".bp_text_info"}

	imageAttrs = []string{"src", "data-src", "data-lazy-src"}
)

// excludedHrefParts marks links that are navigation chrome, not categories
var excludedHrefParts = []string{"javascript:", "login", "cart", "account"}

// Parser extracts categories and product cards from raw HTML. Malformed
// markup degrades to empty results, never errors.
type Parser struct {
	baseURL string
	log     *logger.Logger
}

// NewParser creates a parser resolving relative URLs against baseURL
func NewParser(baseURL string) *Parser {
	return &Parser{
		baseURL: baseURL,
		log:     logger.ForComponent("parser"),
	}
}

// ParseCategories extracts category links from the main page HTML
func (p *Parser) ParseCategories(html string) []ParsedCategory {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to parse category HTML")
		return nil
	}

	for _, selector := range categorySelectors {
		categories := p.categoriesFromSelector(doc, selector)
		if len(categories) > 0 {
			p.log.Debug().
				Str("selector", selector).
				Int("count", len(categories)).
				Msg("Found categories")
			return categories
		}
	}

	return nil
}

func (p *Parser) categoriesFromSelector(doc *goquery.Document, selector string) []ParsedCategory {
	var categories []ParsedCategory
	seenSlugs := make(map[string]bool)

	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		name := strings.TrimSpace(s.Text())

		if !ok || href == "" || name == "" || utf8.RuneCountInString(name) < 2 {
			return
		}
		if isExcludedHref(href) {
			return
		}

		slug := GenerateSlug(name)
		if seenSlugs[slug] {
			// First occurrence wins
			return
		}
		seenSlugs[slug] = true

		categories = append(categories, ParsedCategory{
			Name: name,
			URL:  ToAbsoluteURL(p.baseURL, href),
			Slug: slug,
		})
	})

	return categories
}

func isExcludedHref(href string) bool {
	if href == "#" {
		return true
	}
	for _, part := range excludedHrefParts {
		if strings.Contains(href, part) {
			return true
		}
	}
	return false
}

// ParseProducts extracts product cards from a category page. A card
// without a price or image is still emitted; only a card without a URL
// or name is skipped.
func (p *Parser) ParseProducts(html, categorySlug string) []ParsedProduct {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to parse product HTML")
		return nil
	}

	for _, cardSelector := range productCardSelectors {
		cards := doc.Find(cardSelector)
		if cards.Length() == 0 {
			continue
		}

		products := p.productsFromCards(cards, categorySlug)
		if len(products) > 0 {
			p.log.Debug().
				Str("selector", cardSelector).
				Int("count", len(products)).
				Msg("Found products")
			return products
		}
	}

	return nil
}

func (p *Parser) productsFromCards(cards *goquery.Selection, categorySlug string) []ParsedProduct {
	var products []ParsedProduct
	seenURLs := make(map[string]bool)

	cards.Each(func(_ int, card *goquery.Selection) {
		productURL := p.extractProductURL(card)
		if productURL == "" || seenURLs[productURL] {
			return
		}
		seenURLs[productURL] = true

		name := extractProductName(card)
		if name == "" {
			return
		}

		originalPrice := extractProductPrice(card)

		products = append(products, ParsedProduct{
			ExternalID:    ExtractExternalID(productURL),
			Name:          name,
			Description:   extractProductDescription(card),
			OriginalPrice: originalPrice,
			FinalPrice:    CalculateFinalPrice(originalPrice),
			ImageURL:      p.extractProductImage(card),
			ExternalURL:   productURL,
			CategorySlug:  categorySlug,
		})
	})

	return products
}

func (p *Parser) extractProductURL(card *goquery.Selection) string {
	for _, selector := range productLinkSelectors {
		href, ok := card.Find(selector).First().Attr("href")
		if ok && len(href) > 1 && !strings.HasPrefix(href, "#") {
			return ToAbsoluteURL(p.baseURL, href)
		}
	}
	return ""
}

func extractProductName(card *goquery.Selection) string {
	var name string
	for _, selector := range productNameSelectors {
		name = strings.TrimSpace(card.Find(selector).First().Text())
		if utf8.RuneCountInString(name) > 3 {
			break
		}
	}
	// Fall back to the first link's title attribute
	if utf8.RuneCountInString(name) < 3 {
		name, _ = card.Find("a").First().Attr("title")
		name = strings.TrimSpace(name)
	}
	return name
}

func extractProductPrice(card *goquery.Selection) int64 {
	for _, selector := range productPriceSelectors {
		priceText := strings.TrimSpace(card.Find(selector).First().Text())
		if priceText == "" {
			continue
		}
		// Zero means the selector hit decorative text; keep trying
		if price := ParsePriceToMinorUnits(priceText); price > 0 {
			return price
		}
	}
	return 0
}

func (p *Parser) extractProductImage(card *goquery.Selection) string {
	for _, selector := range productImageSelectors {
		img := card.Find(selector).First()
		if img.Length() == 0 {
			continue
		}
		for _, attr := range imageAttrs {
			if src, ok := img.Attr(attr); ok && src != "" {
				return ToAbsoluteURL(p.baseURL, src)
			}
		}
	}
	return ""
}

func extractProductDescription(card *goquery.Selection) string {
	for _, selector := range productDescSelectors {
		if desc := strings.TrimSpace(card.Find(selector).First().Text()); desc != "" {
			return desc
		}
	}
	return ""
}
