package images

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"store77/pricetracker/internal/browser"
	"store77/pricetracker/logger"
	apperrors "store77/pricetracker/pkg/errors"
	"store77/pricetracker/services/cache"
)

const (
	cacheTTL = 24 * time.Hour

	// Product images above this size are not worth caching or proxying
	maxImageSize = 1 << 20
)

// Downloader fetches an image through the headless browser
type Downloader interface {
	DownloadImage(ctx context.Context, imageURL string) (*browser.Image, error)
}

// Service proxies product images from the target site through the
// browser session, so image requests carry the same fingerprint as page
// fetches. Downloaded images are cached to spare the site repeat hits.
type Service struct {
	siteHost   string
	downloader Downloader
	cache      cache.CacheService
	log        *logger.Logger
}

type cachedImage struct {
	Data        []byte `json:"data"`
	ContentType string `json:"contentType"`
}

// NewService creates an image proxy service. cache may be nil.
func NewService(baseURL string, downloader Downloader, cacheService cache.CacheService) *Service {
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return &Service{
		siteHost:   host,
		downloader: downloader,
		cache:      cacheService,
		log:        logger.ForComponent("images"),
	}
}

// GetImage returns the image at imageURL. Only URLs on the target site
// are served; anything else is rejected before any fetch happens.
func (s *Service) GetImage(ctx context.Context, imageURL string) (*browser.Image, error) {
	if err := s.validateURL(imageURL); err != nil {
		return nil, err
	}

	key := "image:" + imageURL
	if s.cache != nil {
		if data, err := s.cache.Get(key); err == nil && len(data) > 0 {
			var cached cachedImage
			if err := json.Unmarshal(data, &cached); err == nil {
				s.log.Debug().Str("url", imageURL).Msg("Image served from cache")
				return &browser.Image{Data: cached.Data, ContentType: cached.ContentType}, nil
			}
		}
	}

	if s.downloader == nil {
		return nil, apperrors.NewBrowser(imageURL, "browser fetching is disabled", nil)
	}

	img, err := s.downloader.DownloadImage(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	if img == nil || len(img.Data) == 0 {
		return nil, apperrors.NewFetch(imageURL, errors.New("image download produced no data"))
	}

	if s.cache != nil && len(img.Data) <= maxImageSize {
		data, err := json.Marshal(cachedImage{Data: img.Data, ContentType: img.ContentType})
		if err == nil {
			if err := s.cache.Set(key, data, cacheTTL); err != nil {
				s.log.Warn().Err(err).Str("url", imageURL).Msg("Failed to cache image")
			}
		}
	}

	return img, nil
}

func (s *Service) validateURL(imageURL string) error {
	u, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewConfiguration(fmt.Sprintf("invalid image url %q", imageURL), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apperrors.NewConfiguration(fmt.Sprintf("unsupported image url scheme %q", u.Scheme), nil)
	}
	if !strings.EqualFold(u.Host, s.siteHost) {
		return apperrors.NewConfiguration(fmt.Sprintf("image host %q is not allowed", u.Host), nil)
	}
	return nil
}
