package scraper

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"store77/pricetracker/logger"
)

// PriceDiscountMinor is the fixed discount applied to every product,
// in minor units: 1000 rubles = 100000 kopecks.
const PriceDiscountMinor int64 = 100000

var (
	priceCharsRe = regexp.MustCompile(`[^\d.,]`)

	slugInvalidRe    = regexp.MustCompile(`(?i)[^\w\sа-яё-]`)
	slugSeparatorRe  = regexp.MustCompile(`[\s_]+`)
	slugMultiDashRe  = regexp.MustCompile(`-+`)
	slugEdgeDashRe   = regexp.MustCompile(`^-|-$`)

	// Ordered by priority: explicit product path, numeric path segment,
	// id query parameter, short product path.
	externalIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)/product/(\d+)`),
		regexp.MustCompile(`/(\d+)(?:/|$)`),
		regexp.MustCompile(`(?i)[?&]id=(\d+)`),
		regexp.MustCompile(`(?i)/p(\d+)`),
	}
)

// ParsePriceToMinorUnits converts a human price string like "1 234 567 ₽"
// or "1234,50" to minor units. Unparseable input yields 0.
func ParsePriceToMinorUnits(priceStr string) int64 {
	cleaned := priceCharsRe.ReplaceAllString(priceStr, "")
	cleaned = strings.TrimSpace(cleaned)
	// Comma is treated as the decimal separator
	cleaned = strings.Replace(cleaned, ",", ".", 1)

	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		logger.Warnf("Failed to parse price: %q", priceStr)
		return 0
	}

	return int64(math.Round(price * 100))
}

// GenerateSlug derives a URL-safe, lowercase, hyphenated identifier from
// a display name. Cyrillic letters are preserved.
func GenerateSlug(text string) string {
	slug := strings.TrimSpace(strings.ToLower(text))
	slug = slugInvalidRe.ReplaceAllString(slug, "")
	slug = slugSeparatorRe.ReplaceAllString(slug, "-")
	slug = slugMultiDashRe.ReplaceAllString(slug, "-")
	slug = slugEdgeDashRe.ReplaceAllString(slug, "")
	return slug
}

// ToAbsoluteURL resolves a possibly relative path against the site origin
func ToAbsoluteURL(baseURL, path string) string {
	if strings.HasPrefix(path, "http") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(baseURL, "/") + path
}

// ExtractExternalID pulls the site's numeric product id out of a product
// URL, trying each known URL shape in priority order. Nil when no shape
// matches.
func ExtractExternalID(url string) *string {
	for _, pattern := range externalIDPatterns {
		if m := pattern.FindStringSubmatch(url); len(m) > 1 {
			id := m[1]
			return &id
		}
	}
	return nil
}

// CalculateFinalPrice applies the fixed discount, flooring at zero
func CalculateFinalPrice(originalMinor int64) int64 {
	final := originalMinor - PriceDiscountMinor
	if final < 0 {
		return 0
	}
	return final
}
