package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"store77/pricetracker/pkg/models"
	"store77/pricetracker/services/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type categoryJSON struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	URL          string    `json:"url"`
	ProductCount int       `json:"productCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type productJSON struct {
	ID            string   `json:"id"`
	ExternalID    *string  `json:"externalId"`
	Name          string   `json:"name"`
	Slug          string   `json:"slug"`
	Description   *string  `json:"description"`
	OriginalPrice float64  `json:"originalPrice"`
	FinalPrice    float64  `json:"finalPrice"`
	OriginalUSD   *float64 `json:"originalPriceUsd"`
	FinalUSD      *float64 `json:"finalPriceUsd"`
	ImageURL      *string  `json:"imageUrl"`
	ExternalURL   string   `json:"externalUrl"`
	CategoryID    *string  `json:"categoryId"`
	IsActive      bool     `json:"isActive"`

	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Server) handleTriggerScrape(c *gin.Context) {
	if s.scrapes.Status().IsRunning {
		c.JSON(http.StatusConflict, gin.H{"error": "scrape already running"})
		return
	}

	// Detached from the request context; the run outlives the response
	go func() {
		if stats := s.scrapes.TriggerScrape(context.Background()); stats == nil {
			s.log.Warn().Msg("Triggered scrape was ignored, another run won the race")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "scrape started"})
}

func (s *Server) handleScrapeStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.scrapes.Status())
}

func (s *Server) handleListCategories(c *gin.Context) {
	ctx := c.Request.Context()

	categories, err := s.categories.FindAll(ctx)
	if err != nil {
		s.serverError(c, err)
		return
	}
	counts, err := s.categories.CountProducts(ctx)
	if err != nil {
		s.serverError(c, err)
		return
	}

	out := make([]categoryJSON, 0, len(categories))
	for _, cat := range categories {
		out = append(out, categoryJSON{
			ID:           cat.ID,
			Name:         cat.Name,
			Slug:         cat.Slug,
			URL:          cat.URL,
			ProductCount: counts[cat.ID],
			UpdatedAt:    cat.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "total": len(out)})
}

func (s *Server) handleListProducts(c *gin.Context) {
	ctx := c.Request.Context()

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	query := store.ListQuery{
		CategorySlug: c.Query("category"),
		Search:       c.Query("search"),
		Limit:        limit,
		Offset:       (page - 1) * limit,
	}

	products, err := s.products.List(ctx, query)
	if err != nil {
		s.serverError(c, err)
		return
	}
	total, err := s.products.Count(ctx, query)
	if err != nil {
		s.serverError(c, err)
		return
	}

	rate := s.rateOrZero(ctx)
	out := make([]productJSON, 0, len(products))
	for _, p := range products {
		out = append(out, toProductJSON(p, rate))
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  out,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (s *Server) handleGetProduct(c *gin.Context) {
	ctx := c.Request.Context()

	p, err := s.products.GetByID(ctx, c.Param("id"))
	if err != nil {
		s.serverError(c, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	c.JSON(http.StatusOK, toProductJSON(*p, s.rateOrZero(ctx)))
}

func (s *Server) handleCurrencyRate(c *gin.Context) {
	if s.currency == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "currency service is disabled"})
		return
	}

	rate, err := s.currency.GetRate(c.Request.Context())
	if err != nil {
		s.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rate": rate, "pair": "USDT/RUB"})
}

func (s *Server) handleCurrencyRefresh(c *gin.Context) {
	if s.currency == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "currency service is disabled"})
		return
	}

	rate, err := s.currency.RefreshRate(c.Request.Context())
	if err != nil {
		s.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rate": rate, "pair": "USDT/RUB"})
}

func (s *Server) handleGetImage(c *gin.Context) {
	if s.images == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image proxy is disabled"})
		return
	}

	imageURL := c.Query("url")
	if imageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}

	img, err := s.images.GetImage(c.Request.Context(), imageURL)
	if err != nil {
		s.log.Warn().Err(err).Str("url", imageURL).Msg("Image fetch failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch image"})
		return
	}

	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, contentType, img.Data)
}

func (s *Server) serverError(c *gin.Context, err error) {
	s.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// rateOrZero resolves the exchange rate for price conversion. Listings
// must not fail because the exchange is unreachable, so errors degrade
// to rubles-only output.
func (s *Server) rateOrZero(ctx context.Context) float64 {
	if s.currency == nil {
		return 0
	}
	rate, err := s.currency.GetRate(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Exchange rate unavailable, serving prices without USD")
		return 0
	}
	return rate
}

func toProductJSON(p models.Product, rate float64) productJSON {
	out := productJSON{
		ID:            p.ID,
		ExternalID:    p.ExternalID,
		Name:          p.Name,
		Slug:          p.Slug,
		Description:   p.Description,
		OriginalPrice: float64(p.OriginalPrice) / 100,
		FinalPrice:    float64(p.FinalPrice) / 100,
		ImageURL:      p.ImageURL,
		ExternalURL:   p.ExternalURL,
		CategoryID:    p.CategoryID,
		IsActive:      p.IsActive,
		UpdatedAt:     p.UpdatedAt,
	}
	if rate > 0 {
		original := roundCents(out.OriginalPrice / rate)
		final := roundCents(out.FinalPrice / rate)
		out.OriginalUSD = &original
		out.FinalUSD = &final
	}
	return out
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
