package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleister1102/webmirror/internal/archiver"
	"github.com/aleister1102/webmirror/internal/config"
	"github.com/aleister1102/webmirror/internal/fetcher"
	"github.com/aleister1102/webmirror/internal/filter"
	"github.com/aleister1102/webmirror/internal/pipeline"
	"github.com/aleister1102/webmirror/internal/policy"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	policyCfg := config.NewDefaultPolicyConfig()
	signatures, err := policy.NewSignatureMatcher(policyCfg.Signatures)
	require.NoError(t, err)
	trust := policy.NewTrustPolicy(policyCfg)
	scripts := filter.NewScriptAnalyzer(signatures, zerolog.Nop())
	f := fetcher.NewFetcher(config.NewDefaultFetcherConfig(), zerolog.Nop())
	pl := pipeline.New(f, trust, signatures, scripts, config.NewDefaultMirrorConfig(), zerolog.Nop())

	srv := New(config.NewDefaultServerConfig(), pl, archiver.New(zerolog.Nop()), t.TempDir(), zerolog.Nop())
	api := httptest.NewServer(srv.Router())
	t.Cleanup(api.Close)
	return api
}

func serveOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><img src="/logo.png"/></body></html>`))
	})
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	origin := httptest.NewServer(mux)
	t.Cleanup(origin.Close)
	return origin
}

func postMirror(t *testing.T, api *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(api.URL+"/api/mirror", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_Mirror(t *testing.T) {
	api := newTestServer(t)
	origin := serveOrigin(t)

	resp := postMirror(t, api, `{"url":"`+origin.URL+`/"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "website_")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".zip")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	reader, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)

	names := map[string]bool{}
	for _, file := range reader.File {
		names[file.Name] = true
	}
	assert.True(t, names["index.html"], "archive carries the page")
	require.Len(t, reader.File, 2, "page plus one localized image")
}

func TestServer_MirrorValidation(t *testing.T) {
	api := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{}`},
		{"malformed url", `{"url":"not a url"}`},
		{"hostless url", `{"url":"http://"}`},
		{"bad json", `{"url":`},
		{"one-sided domain list", `{"url":"https://example.com","originalDomain":"example.com"}`},
		{"mismatched domain lists", `{"url":"https://example.com","originalDomain":"a.com,b.com","replacementDomain":"c.com"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postMirror(t, api, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var payload map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
			assert.NotEmpty(t, payload["error"])
		})
	}
}

func TestServer_MirrorSchemelessURL(t *testing.T) {
	api := newTestServer(t)

	origin := serveOrigin(t)
	host := strings.TrimPrefix(origin.URL, "http://")

	// A scheme-less URL passes validation and gets https assumed; the
	// plain-http origin then rejects the TLS handshake, so the failure is
	// upstream (502), not a validation error (400).
	resp := postMirror(t, api, `{"url":"`+host+`/"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestServer_MirrorUpstreamFailure(t *testing.T) {
	api := newTestServer(t)

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	url := origin.URL
	origin.Close()

	// Closed origin: connection refused surfaces as 502.
	resp := postMirror(t, api, `{"url":"`+url+`/"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestServer_MirrorNonHTMLTarget(t *testing.T) {
	api := newTestServer(t)

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{0x00, 0x01})
	}))
	t.Cleanup(origin.Close)

	resp := postMirror(t, api, `{"url":"`+origin.URL+`/"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestServer_Health(t *testing.T) {
	api := newTestServer(t)

	resp, err := http.Get(api.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "ok", payload["status"])
}
