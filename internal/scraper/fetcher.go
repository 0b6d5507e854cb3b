package scraper

import (
	"context"
	"net/url"
	"strings"

	"store77/pricetracker/helpers"
	"store77/pricetracker/logger"
	apperrors "store77/pricetracker/pkg/errors"
)

// BrowserClient is the headless browser surface used by the fetcher
type BrowserClient interface {
	GetPageContent(ctx context.Context, url, waitForSelector string) (string, error)
	Active() bool
}

// PageFetcher retrieves raw HTML, choosing between a direct HTTP GET and
// the headless browser per target host. The protected target domain is
// always fetched through the browser when one is available.
type PageFetcher struct {
	targetHost string
	browser    BrowserClient
	log        *logger.Logger
}

// NewPageFetcher creates a page fetcher. browser may be nil, in which
// case all fetches go over plain HTTP.
func NewPageFetcher(baseURL string, browser BrowserClient) *PageFetcher {
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return &PageFetcher{
		targetHost: host,
		browser:    browser,
		log:        logger.ForComponent("fetcher"),
	}
}

// FetchPage retrieves the HTML of a page. No retries happen at this
// layer; callers decide.
func (f *PageFetcher) FetchPage(ctx context.Context, pageURL string, useBrowser bool) (string, error) {
	if useBrowser && f.browser != nil && strings.Contains(pageURL, f.targetHost) {
		f.log.Debug().Str("url", pageURL).Msg("Fetching page with browser")
		return f.browser.GetPageContent(ctx, pageURL, "")
	}

	f.log.Debug().Str("url", pageURL).Msg("Fetching page with HTTP")
	body, err := helpers.FetchWithBrowserHeaders(ctx, pageURL)
	if err != nil {
		return "", apperrors.NewFetch(pageURL, err)
	}

	f.log.Debug().Str("url", pageURL).Int("bytes", len(body)).Msg("Fetched page")
	return body, nil
}

// BrowserActive reports whether browser-based fetching is currently live
func (f *PageFetcher) BrowserActive() bool {
	return f.browser != nil && f.browser.Active()
}
