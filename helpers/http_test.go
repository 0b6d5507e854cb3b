package helpers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWithBrowserHeaders(t *testing.T) {
	var gotUA, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>Телефоны</body></html>"))
	}))
	defer server.Close()

	body, err := FetchWithBrowserHeaders(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Contains(t, body, "Телефоны")
	assert.Contains(t, userAgents, gotUA)
	assert.Contains(t, referers, gotReferer)
}

func TestFetchWithBrowserHeadersNonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := FetchWithBrowserHeaders(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), server.URL)
}

func TestFetchWithBrowserHeadersConnectionError(t *testing.T) {
	_, err := FetchWithBrowserHeaders(context.Background(), "http://127.0.0.1:1")
	assert.Error(t, err)
}
