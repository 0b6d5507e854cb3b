package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"store77/pricetracker/logger"
	apperrors "store77/pricetracker/pkg/errors"
	"store77/pricetracker/services/cache"
)

const (
	cacheKey = "currency:usdt_rub_rate"
	cacheTTL = 5 * time.Minute

	// Exchanges quote slightly above the effective cash rate; the spread
	// correction keeps converted prices in line with what buyers pay.
	rateSpread = 0.10

	requestTimeout = 10 * time.Second
)

type depthResponse struct {
	Bids []struct {
		Price string `json:"price"`
	} `json:"bids"`
}

// Service resolves the USDT/RUB exchange rate from the Grinex order book
// and converts ruble prices to USD. Rates are cached for a short window
// so API traffic does not hit the exchange on every product listing.
type Service struct {
	depthURL string
	client   *http.Client
	cache    cache.CacheService
	log      *logger.Logger
}

// NewService creates a currency service. cache may be nil, in which case
// every lookup goes to the exchange.
func NewService(depthURL string, client *http.Client, cacheService cache.CacheService) *Service {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &Service{
		depthURL: depthURL,
		client:   client,
		cache:    cacheService,
		log:      logger.ForComponent("currency"),
	}
}

// GetRate returns the current USDT/RUB rate, serving from cache when the
// cached value is still fresh.
func (s *Service) GetRate(ctx context.Context) (float64, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(cacheKey); err == nil && len(data) > 0 {
			if rate, err := strconv.ParseFloat(string(data), 64); err == nil && rate > 0 {
				return rate, nil
			}
		}
	}
	return s.RefreshRate(ctx)
}

// RefreshRate fetches the order book and recomputes the rate, bypassing
// and repopulating the cache.
func (s *Service) RefreshRate(ctx context.Context) (float64, error) {
	rate, err := s.fetchRate(ctx)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		value := strconv.FormatFloat(rate, 'f', 2, 64)
		if err := s.cache.Set(cacheKey, []byte(value), cacheTTL); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache exchange rate")
		}
	}

	s.log.Info().Float64("rate", rate).Msg("Refreshed USDT/RUB rate")
	return rate, nil
}

// ConvertToUSD converts a ruble amount in minor units (kopecks) to US
// dollars at the given rate, rounded to cents.
func ConvertToUSD(minorRub int64, rate float64) (float64, error) {
	if rate <= 0 {
		return 0, fmt.Errorf("invalid exchange rate: %f", rate)
	}
	rubles := float64(minorRub) / 100
	return math.Round(rubles/rate*100) / 100, nil
}

// ConvertToUSD converts kopecks to dollars at the current rate
func (s *Service) ConvertToUSD(ctx context.Context, minorRub int64) (float64, error) {
	rate, err := s.GetRate(ctx)
	if err != nil {
		return 0, err
	}
	return ConvertToUSD(minorRub, rate)
}

func (s *Service) fetchRate(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.depthURL, nil)
	if err != nil {
		return 0, apperrors.NewFetch(s.depthURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, apperrors.NewFetch(s.depthURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, apperrors.NewFetch(s.depthURL, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, apperrors.NewFetch(s.depthURL, err)
	}

	var depth depthResponse
	if err := json.Unmarshal(body, &depth); err != nil {
		return 0, apperrors.NewParse("failed to decode order book", err)
	}
	if len(depth.Bids) == 0 {
		return 0, apperrors.NewParse("order book has no bids", nil)
	}

	bid, err := strconv.ParseFloat(depth.Bids[0].Price, 64)
	if err != nil {
		return 0, apperrors.NewParse(fmt.Sprintf("bad bid price %q", depth.Bids[0].Price), err)
	}

	rate := math.Round((bid-rateSpread)*100) / 100
	if rate <= 0 {
		return 0, apperrors.NewParse(fmt.Sprintf("computed rate %.2f is not positive", rate), nil)
	}
	return rate, nil
}
