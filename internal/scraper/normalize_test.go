package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriceToMinorUnits(t *testing.T) {
	testCases := []struct {
		input    string
		expected int64
	}{
		{"5000", 500000},
		{"5000 ₽", 500000},
		{"1 234 567 ₽", 123456700},
		{"1234.50", 123450},
		{"1234,50", 123450},
		{"99 990 руб.", 9999000},
		{"invalid", 0},
		{"", 0},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, ParsePriceToMinorUnits(tc.input), "input: %q", tc.input)
	}
}

func TestGenerateSlug(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"Product (New!) @2024", "product-new-2024"},
		{"Телефон iPhone", "телефон-iphone"},
		{"  Spaced   out  ", "spaced-out"},
		{"under_score_name", "under-score-name"},
		{"--edgy--", "edgy"},
		{"MacBook Pro 16", "macbook-pro-16"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, GenerateSlug(tc.input), "input: %q", tc.input)
	}
}

func TestGenerateSlugIsIdempotent(t *testing.T) {
	inputs := []string{"Product (New!) @2024", "Телефон iPhone", "simple", "A  B__C"}
	for _, input := range inputs {
		once := GenerateSlug(input)
		assert.Equal(t, once, GenerateSlug(once), "input: %q", input)
	}
}

func TestToAbsoluteURL(t *testing.T) {
	base := "https://store77.net"

	assert.Equal(t, "https://store77.net/telefony/", ToAbsoluteURL(base, "/telefony/"))
	assert.Equal(t, "https://store77.net/telefony/", ToAbsoluteURL(base, "telefony/"))
	assert.Equal(t, "https://other.com/x", ToAbsoluteURL(base, "https://other.com/x"))
	// Exactly one slash joins base and path
	assert.Equal(t, "https://store77.net/x", ToAbsoluteURL("https://store77.net/", "/x"))
}

func TestExtractExternalID(t *testing.T) {
	testCases := []struct {
		url      string
		expected string
	}{
		{"https://x/product/12345", "12345"},
		{"https://x/catalog/98765/", "98765"},
		{"https://x/item?id=555", "555"},
		{"https://x/p777", "777"},
	}

	for _, tc := range testCases {
		id := ExtractExternalID(tc.url)
		require.NotNil(t, id, "url: %q", tc.url)
		assert.Equal(t, tc.expected, *id, "url: %q", tc.url)
	}

	assert.Nil(t, ExtractExternalID("https://x/catalog"))
}

func TestCalculateFinalPrice(t *testing.T) {
	assert.Equal(t, int64(400000), CalculateFinalPrice(500000))
	assert.Equal(t, int64(0), CalculateFinalPrice(100000))
	assert.Equal(t, int64(0), CalculateFinalPrice(50000))
	assert.Equal(t, int64(0), CalculateFinalPrice(0))
}
