package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"store77/pricetracker/config"
	"store77/pricetracker/internal/browser"
	"store77/pricetracker/internal/scheduler"
	"store77/pricetracker/internal/scraper"
	"store77/pricetracker/logger"
	"store77/pricetracker/services/api"
	"store77/pricetracker/services/cache"
	"store77/pricetracker/services/currency"
	"store77/pricetracker/services/images"
	"store77/pricetracker/services/store"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("base_url", cfg.BaseURL).
		Str("schedule", cfg.ScrapeSchedule).
		Bool("browser", cfg.BrowserEnabled).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	// Wire the scraping pipeline
	fetcher := scraper.NewPageFetcher(cfg.BaseURL, browserClient(services.Browser))
	pipeline := scraper.NewService(cfg.BaseURL, fetcher, services.Categories, services.Products)

	sched := scheduler.New(pipeline, cfg.ScrapeSchedule)
	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer sched.Stop()

	if cfg.ScrapeOnStart {
		go func() {
			log.Info().Dur("delay", cfg.StartDelay).Msg("Initial scrape scheduled")
			select {
			case <-time.After(cfg.StartDelay):
			case <-ctx.Done():
				return
			}
			sched.TriggerScrape(ctx)
		}()
	}

	// Start the HTTP API
	var imageService api.ImageService
	if services.Browser != nil {
		imageService = images.NewService(cfg.BaseURL, services.Browser, services.Cache)
	}
	server := api.NewServer(cfg.HTTPAddr, services.Categories, services.Products,
		sched, services.Currency, imageService)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-serverDone:
		if err != nil {
			log.Error().Err(err).Msg("API server exited with error")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server shutdown failed")
	}
	cancel()
}

// Services holds all the initialized services
type Services struct {
	DB         *sql.DB
	Cache      cache.CacheService
	Categories *store.CategoryRepo
	Products   *store.ProductRepo
	Browser    *browser.Manager
	Currency   *currency.Service
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Browser != nil {
		s.Browser.Close()
	}
	if closer, ok := s.Cache.(interface{ Close() error }); ok {
		closer.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	db, err := store.Open(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	if err := store.InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	services.DB = db
	services.Categories = store.NewCategoryRepo(db)
	services.Products = store.NewProductRepo(db)
	logger.Infof("Opened sqlite database at %s", cfg.SQLitePath)

	// Initialize cache service
	switch cfg.CacheBackend {
	case "memcache":
		services.Cache = cache.NewMemcacheService(cfg.MemcacheAddr)
		logger.Infof("Connected to Memcache at %s", cfg.MemcacheAddr)
	default:
		services.Cache = cache.NewRedisService(ctx, cfg.RedisAddr, cfg.RedisDB)
		logger.Infof("Connected to Redis at %s (DB: %d)", cfg.RedisAddr, cfg.RedisDB)
	}

	// Initialize headless browser
	if cfg.BrowserEnabled {
		services.Browser = browser.NewManager(browser.Options{
			Headless: cfg.BrowserHeadless,
			Proxy:    cfg.BrowserProxy,
			BaseURL:  cfg.BaseURL,
		})
	}

	services.Currency = currency.NewService(cfg.GrinexDepthURL, nil, services.Cache)

	return services, nil
}

// browserClient adapts an optional manager to the fetcher interface. A
// typed nil pointer inside a non-nil interface would defeat the
// fetcher's nil check.
func browserClient(m *browser.Manager) scraper.BrowserClient {
	if m == nil {
		return nil
	}
	return m
}
