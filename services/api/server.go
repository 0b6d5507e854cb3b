package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"store77/pricetracker/internal/browser"
	"store77/pricetracker/internal/scheduler"
	"store77/pricetracker/internal/scraper"
	"store77/pricetracker/logger"
	"store77/pricetracker/services/store"
)

// ScrapeController triggers scrape runs and reports their state
type ScrapeController interface {
	TriggerScrape(ctx context.Context) *scraper.Stats
	Status() scheduler.Status
}

// CurrencyService resolves the USDT/RUB exchange rate
type CurrencyService interface {
	GetRate(ctx context.Context) (float64, error)
	RefreshRate(ctx context.Context) (float64, error)
}

// ImageService fetches product images from the target site
type ImageService interface {
	GetImage(ctx context.Context, imageURL string) (*browser.Image, error)
}

// Server exposes the scraped catalog and pipeline controls over HTTP
type Server struct {
	categories *store.CategoryRepo
	products   *store.ProductRepo
	scrapes    ScrapeController
	currency   CurrencyService
	images     ImageService
	log        *logger.Logger

	http *http.Server
}

// NewServer creates the API server. currency and images may be nil; the
// corresponding endpoints then report the feature as unavailable.
func NewServer(addr string, categories *store.CategoryRepo, products *store.ProductRepo,
	scrapes ScrapeController, currency CurrencyService, images ImageService) *Server {

	s := &Server{
		categories: categories,
		products:   products,
		scrapes:    scrapes,
		currency:   currency,
		images:     images,
		log:        logger.ForComponent("api"),
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the gin engine with all routes registered
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/scraper/trigger", s.handleTriggerScrape)
		apiGroup.GET("/scraper/status", s.handleScrapeStatus)

		apiGroup.GET("/categories", s.handleListCategories)
		apiGroup.GET("/products", s.handleListProducts)
		apiGroup.GET("/products/:id", s.handleGetProduct)

		apiGroup.GET("/currency/rate", s.handleCurrencyRate)
		apiGroup.POST("/currency/refresh", s.handleCurrencyRefresh)

		apiGroup.GET("/images", s.handleGetImage)
	}

	return r
}

// Start begins serving. It blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("API server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}
