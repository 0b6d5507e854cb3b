// Package browser owns the single long-lived headless Chrome process used
// to fetch pages from targets with JS-based bot protection. All chromedp
// work is isolated here; callers only see HTML strings and image bytes.
package browser

import (
	"context"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"store77/pricetracker/logger"
	apperrors "store77/pricetracker/pkg/errors"
)

const (
	// pageTimeout bounds a single navigation
	pageTimeout = 30 * time.Second
	// jsSettleWait gives the page's scripts time to run after load
	jsSettleWait = 3 * time.Second
	// imageTimeout bounds a direct image navigation
	imageTimeout = 15 * time.Second

	delayMin = 500 * time.Millisecond
	delayMax = 2 * time.Second

	imageMaxAttempts = 2
)

// userAgents is the fixed pool a fingerprint is randomly drawn from
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// Options configures the browser manager
type Options struct {
	Headless bool
	Proxy    string
	// BaseURL is used as the Referer when downloading images, to defeat
	// hotlink checks on the target site.
	BaseURL string
}

// Image is a downloaded image with its content type
type Image struct {
	Data        []byte
	ContentType string
}

// Manager owns one headless browser instance. Launch is single-flighted:
// concurrent callers of Init share one in-flight launch instead of
// spawning multiple Chrome processes. A dead browser is relaunched on the
// next use.
type Manager struct {
	opts Options
	log  *logger.Logger

	// launch is swappable in tests
	launch func() (context.Context, context.CancelFunc, error)

	mu      sync.Mutex
	browser context.Context
	cancel  context.CancelFunc
	initCh  chan struct{}
	initErr error
}

// NewManager creates a new browser manager; the browser itself is
// launched lazily on first use.
func NewManager(opts Options) *Manager {
	m := &Manager{
		opts: opts,
		log:  logger.ForComponent("browser"),
	}
	m.launch = m.launchBrowser
	return m
}

// Init ensures the browser is running and returns its context. If a
// connected instance exists it is returned immediately; a disconnected
// one is discarded and relaunched. Concurrent callers during a launch all
// wait for the same attempt.
func (m *Manager) Init(ctx context.Context) (context.Context, error) {
	for {
		m.mu.Lock()
		if m.browser != nil && m.browser.Err() == nil {
			b := m.browser
			m.mu.Unlock()
			return b, nil
		}
		if m.browser != nil {
			// Disconnected instance, discard before relaunching
			m.log.Warn().Msg("Browser disconnected, reinitializing")
			m.dropLocked()
		}
		if m.initCh != nil {
			ch := m.initCh
			m.mu.Unlock()
			select {
			case <-ch:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			m.mu.Lock()
			b, err := m.browser, m.initErr
			m.mu.Unlock()
			if err != nil {
				return nil, err
			}
			if b != nil && b.Err() == nil {
				return b, nil
			}
			continue
		}

		ch := make(chan struct{})
		m.initCh = ch
		m.mu.Unlock()

		m.log.Info().Msg("Initializing browser")
		browser, cancel, err := m.launch()

		m.mu.Lock()
		if err == nil {
			m.browser = browser
			m.cancel = cancel
			go m.watch(browser)
		} else {
			err = apperrors.NewBrowser("", "failed to launch browser", err)
		}
		m.initErr = err
		m.initCh = nil
		close(ch)
		m.mu.Unlock()

		if err != nil {
			return nil, err
		}
		return browser, nil
	}
}

// launchBrowser starts Chrome, attempting a stealth-augmented launch
// first and falling back to plain flags.
func (m *Manager) launchBrowser() (context.Context, context.CancelFunc, error) {
	browser, cancel, err := m.launchWithFlags(true)
	if err != nil {
		m.log.Warn().Err(err).Msg("Stealth launch failed, retrying without stealth flags")
		browser, cancel, err = m.launchWithFlags(false)
	}
	return browser, cancel, err
}

func (m *Manager) launchWithFlags(stealth bool) (context.Context, context.CancelFunc, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-accelerated-2d-canvas", true),
		chromedp.Flag("disable-gpu", true),
	)
	if m.opts.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(m.opts.Proxy))
	}
	if stealth {
		opts = append(opts,
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("exclude-switches", "enable-automation"),
		)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	startCtx, startCancel := context.WithTimeout(browserCtx, pageTimeout)
	defer startCancel()
	if err := chromedp.Run(startCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, nil, err
	}

	m.log.Info().Bool("stealth", stealth).Msg("Browser initialized")
	return browserCtx, cancel, nil
}

// watch clears the handle when the browser process dies so the next Init
// relaunches it.
func (m *Manager) watch(browser context.Context) {
	<-browser.Done()
	m.mu.Lock()
	if m.browser == browser {
		m.log.Warn().Msg("Browser disconnected unexpectedly")
		m.browser = nil
		m.cancel = nil
	}
	m.mu.Unlock()
}

func (m *Manager) dropLocked() {
	if m.cancel != nil {
		m.cancel()
	}
	m.browser = nil
	m.cancel = nil
}

// Invalidate drops the current browser handle; the next use relaunches
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.dropLocked()
	m.mu.Unlock()
}

// Active reports whether a connected browser instance exists
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser != nil && m.browser.Err() == nil
}

// Close shuts the browser down
func (m *Manager) Close() {
	m.mu.Lock()
	if m.browser != nil {
		m.log.Info().Msg("Closing browser")
	}
	m.dropLocked()
	m.mu.Unlock()
}

// newTab opens an isolated tab with a randomized fingerprint: a user
// agent from the fixed pool, a fixed viewport, Russian locale and
// timezone, cleared cookies, and optional extra headers.
func (m *Manager) newTab(ctx context.Context, extraHeaders map[string]interface{}) (context.Context, context.CancelFunc, error) {
	browser, err := m.Init(ctx)
	if err != nil {
		return nil, nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(browser)

	tasks := chromedp.Tasks{
		network.Enable(),
		network.ClearBrowserCookies(),
		emulation.SetUserAgentOverride(randomUserAgent()).
			WithAcceptLanguage("ru-RU,ru;q=0.9,en-US;q=0.8").
			WithPlatform("Win32"),
		emulation.SetTimezoneOverride("Europe/Moscow"),
		chromedp.EmulateViewport(1920, 1080),
	}
	if len(extraHeaders) > 0 {
		tasks = append(tasks, network.SetExtraHTTPHeaders(network.Headers(extraHeaders)))
	}

	if err := chromedp.Run(tabCtx, tasks); err != nil {
		tabCancel()
		return nil, nil, apperrors.NewBrowser("", "failed to prepare browser tab", err)
	}

	return tabCtx, tabCancel, nil
}

// GetPageContent navigates to the URL in a fresh tab and returns the full
// HTML after script execution. The tab is torn down on every exit path.
func (m *Manager) GetPageContent(ctx context.Context, url, waitForSelector string) (string, error) {
	tabCtx, tabCancel, err := m.newTab(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tabCancel()

	// Jitter before navigation to avoid a mechanical request rhythm
	if err := RandomDelay(ctx, delayMin, delayMax); err != nil {
		return "", err
	}

	m.log.Debug().Str("url", url).Msg("Navigating")

	navCtx, navCancel := context.WithTimeout(tabCtx, pageTimeout)
	defer navCancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return "", apperrors.NewFetch(url, err)
	}

	// Let the JS protection scripts run before reading the DOM
	if err := chromedp.Run(tabCtx, chromedp.Sleep(jsSettleWait)); err != nil {
		return "", apperrors.NewFetch(url, err)
	}

	if waitForSelector != "" {
		selCtx, selCancel := context.WithTimeout(tabCtx, pageTimeout)
		err := chromedp.Run(selCtx, chromedp.WaitReady(waitForSelector, chromedp.ByQuery))
		selCancel()
		if err != nil {
			return "", apperrors.NewFetch(url, err)
		}
	}

	if err := RandomDelay(ctx, delayMin, delayMax); err != nil {
		return "", err
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", apperrors.NewFetch(url, err)
	}

	m.log.Debug().Str("url", url).Int("bytes", len(html)).Msg("Page loaded")
	return html, nil
}

// DownloadImage fetches an image through the browser to bypass hotlink
// protection. Up to two attempts; a dead browser handle is invalidated so
// the retry relaunches. Exhausted retries yield nil, not an error.
func (m *Manager) DownloadImage(ctx context.Context, imageURL string) (*Image, error) {
	headers := map[string]interface{}{
		"Referer": m.opts.BaseURL + "/",
		"Accept":  "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8",
	}

	for attempt := 1; attempt <= imageMaxAttempts; attempt++ {
		img, err := m.downloadImageOnce(ctx, imageURL, headers)
		if err == nil {
			return img, nil
		}

		m.log.Error().
			Err(err).
			Str("url", imageURL).
			Int("attempt", attempt).
			Msg("Failed to download image")

		if isBrowserDead(err) {
			m.Invalidate()
		}
		if attempt == imageMaxAttempts {
			break
		}
		if derr := RandomDelay(ctx, 500*time.Millisecond, time.Second); derr != nil {
			return nil, derr
		}
	}

	return nil, nil
}

func (m *Manager) downloadImageOnce(ctx context.Context, imageURL string, headers map[string]interface{}) (*Image, error) {
	tabCtx, tabCancel, err := m.newTab(ctx, headers)
	if err != nil {
		return nil, err
	}
	defer tabCancel()

	var mu sync.Mutex
	var requestID network.RequestID
	var contentType string

	// The image URL is navigated to directly, so its response arrives as
	// the document of this tab.
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		e, ok := ev.(*network.EventResponseReceived)
		if !ok {
			return
		}
		if e.Type == network.ResourceTypeDocument || e.Type == network.ResourceTypeImage || e.Response.URL == imageURL {
			mu.Lock()
			requestID = e.RequestID
			contentType = e.Response.MimeType
			mu.Unlock()
		}
	})

	navCtx, navCancel := context.WithTimeout(tabCtx, imageTimeout)
	defer navCancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(imageURL)); err != nil {
		return nil, apperrors.NewFetch(imageURL, err)
	}

	mu.Lock()
	id, ctype := requestID, contentType
	mu.Unlock()

	if id == "" {
		return nil, apperrors.NewFetch(imageURL, nil)
	}
	if !strings.HasPrefix(ctype, "image/") {
		return nil, apperrors.New(apperrors.ErrorTypeFetch, imageURL, "response is not an image: "+ctype, nil)
	}

	var data []byte
	err = chromedp.Run(navCtx, chromedp.ActionFunc(func(c context.Context) error {
		var berr error
		data, berr = network.GetResponseBody(id).Do(c)
		return berr
	}))
	if err != nil {
		return nil, apperrors.NewFetch(imageURL, err)
	}

	m.log.Debug().Str("url", imageURL).Int("bytes", len(data)).Msg("Downloaded image")
	return &Image{Data: data, ContentType: ctype}, nil
}

// isBrowserDead reports whether an error indicates the browser process is
// gone rather than a per-page failure.
func isBrowserDead(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "context canceled") ||
		strings.Contains(msg, "browser has been closed") ||
		strings.Contains(msg, "websocket") ||
		strings.Contains(msg, "target closed")
}

// RandomDelay sleeps for a random duration in [min, max], honoring
// context cancellation.
func RandomDelay(ctx context.Context, min, max time.Duration) error {
	d := min + time.Duration(mathrand.Int63n(int64(max-min)+1))
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func randomUserAgent() string {
	return userAgents[mathrand.Intn(len(userAgents))]
}
