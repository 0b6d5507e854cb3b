package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "store77/pricetracker/pkg/errors"
)

type stubBrowser struct {
	html   string
	err    error
	calls  int
	active bool
}

func (b *stubBrowser) GetPageContent(ctx context.Context, url, waitForSelector string) (string, error) {
	b.calls++
	return b.html, b.err
}

func (b *stubBrowser) Active() bool { return b.active }

func TestFetchPageRoutesTargetHostToBrowser(t *testing.T) {
	browser := &stubBrowser{html: "<html>browser</html>", active: true}
	f := NewPageFetcher("https://store77.net", browser)

	html, err := f.FetchPage(context.Background(), "https://store77.net/telefony/", true)
	require.NoError(t, err)

	assert.Equal(t, "<html>browser</html>", html)
	assert.Equal(t, 1, browser.calls)
}

func TestFetchPageUsesHTTPForOtherHosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>direct</html>"))
	}))
	defer server.Close()

	browser := &stubBrowser{html: "<html>browser</html>", active: true}
	f := NewPageFetcher("https://store77.net", browser)

	html, err := f.FetchPage(context.Background(), server.URL, true)
	require.NoError(t, err)

	assert.Equal(t, "<html>direct</html>", html)
	assert.Zero(t, browser.calls, "non-target hosts must not go through the browser")
}

func TestFetchPageHonorsUseBrowserFlag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	browser := &stubBrowser{active: true}
	// Target host matches the test server so the flag is the deciding factor
	f := NewPageFetcher(server.URL, browser)

	_, err := f.FetchPage(context.Background(), server.URL, false)
	require.NoError(t, err)
	assert.Zero(t, browser.calls)
}

func TestFetchPageWithoutBrowserManager(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain"))
	}))
	defer server.Close()

	f := NewPageFetcher(server.URL, nil)

	html, err := f.FetchPage(context.Background(), server.URL, true)
	require.NoError(t, err)
	assert.Equal(t, "plain", html)
	assert.False(t, f.BrowserActive())
}

func TestFetchPageErrorIncludesURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := NewPageFetcher("https://store77.net", nil)

	_, err := f.FetchPage(context.Background(), server.URL, true)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeFetch))
	assert.Contains(t, err.Error(), server.URL)
}
