package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleister1102/webmirror/internal/config"
	"github.com/aleister1102/webmirror/internal/errorwrapper"
)

func newTestFetcher() *Fetcher {
	return NewFetcher(config.NewDefaultFetcherConfig(), zerolog.Nop())
}

func TestFetcher_Fetch(t *testing.T) {
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	resp, err := newTestFetcher().Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.ContentType)
	assert.Contains(t, string(resp.Body), "ok")
	assert.Equal(t, config.DefaultFetcherUserAgent, gotUserAgent)
}

func TestFetcher_FetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	resp, err := newTestFetcher().Fetch(context.Background(), server.URL+"/missing")
	require.Error(t, err)

	var httpErr *errorwrapper.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	// The response is still returned for callers that inspect it.
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetcher_FetchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // Refuse connections.

	_, err := newTestFetcher().Fetch(context.Background(), server.URL)
	require.Error(t, err)

	var netErr *errorwrapper.NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestFetcher_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("landed"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := newTestFetcher().Fetch(context.Background(), server.URL+"/start")
	require.NoError(t, err)
	assert.Contains(t, resp.FinalURL, "/final")
	assert.Equal(t, "landed", string(resp.Body))
}

func TestFetcher_MaxBodyBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 4096))
	}))
	defer server.Close()

	f := newTestFetcher()
	f.MaxBodyBytes = 100

	resp, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, resp.Body, 100)
}

func TestFetcher_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher().Fetch(ctx, server.URL)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, errorwrapper.ErrTimeout, "cancellation is not a timeout")
}

func TestFetcher_DeadlineTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestFetcher().Fetch(ctx, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, errorwrapper.ErrTimeout)

	var nerr *errorwrapper.NetworkError
	assert.ErrorAs(t, err, &nerr)
}

func TestIsHTML(t *testing.T) {
	assert.True(t, IsHTML("text/html"))
	assert.True(t, IsHTML("application/xhtml+xml"))
	assert.False(t, IsHTML("application/json"))
	assert.False(t, IsHTML(""))
}

func TestDecodeHTML(t *testing.T) {
	// ISO-8859-1 bytes: "café" with 0xE9.
	raw := []byte("<html><body>caf\xe9</body></html>")
	decoded, err := DecodeHTML(raw, "text/html; charset=iso-8859-1")
	require.NoError(t, err)
	assert.Contains(t, decoded, "café")

	utf8Doc := "<html><body>héllo</body></html>"
	decoded, err = DecodeHTML([]byte(utf8Doc), "text/html; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, utf8Doc, decoded)
}
