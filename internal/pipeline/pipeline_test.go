package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleister1102/webmirror/internal/config"
	"github.com/aleister1102/webmirror/internal/errorwrapper"
	"github.com/aleister1102/webmirror/internal/fetcher"
	"github.com/aleister1102/webmirror/internal/filter"
	"github.com/aleister1102/webmirror/internal/policy"
	"github.com/aleister1102/webmirror/internal/rewriter"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	policyCfg := config.NewDefaultPolicyConfig()
	signatures, err := policy.NewSignatureMatcher(policyCfg.Signatures)
	require.NoError(t, err)
	trust := policy.NewTrustPolicy(policyCfg)
	scripts := filter.NewScriptAnalyzer(signatures, zerolog.Nop())
	f := fetcher.NewFetcher(config.NewDefaultFetcherConfig(), zerolog.Nop())
	return New(f, trust, signatures, scripts, config.NewDefaultMirrorConfig(), zerolog.Nop())
}

func serveMirrorSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head>
			<link rel="stylesheet" href="/style.css"/>
			<style>.hero{background:url('/bg.png')}</style>
		</head><body>
			<img src="/logo.png"/>
			<img src="/logo.png" data-src="/logo.png"/>
			<script src="/app.js"></script>
			<a href="/contact">contact</a>
		</body></html>`))
	})
	mux.HandleFunc("/style.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte(`body { background: url("bg.png"); }`))
	})
	mux.HandleFunc("/bg.png", servePNG)
	mux.HandleFunc("/logo.png", servePNG)
	mux.HandleFunc("/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(`console.log("hello");`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func servePNG(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
}

func TestPipeline_Run_MirrorsPage(t *testing.T) {
	server := serveMirrorSite(t)
	outputDir := t.TempDir()

	result, err := newTestPipeline(t).Run(context.Background(), Request{URL: server.URL + "/"}, outputDir)
	require.NoError(t, err)

	// logo.png, bg.png, style.css, app.js: every duplicate reference
	// collapses onto one stored copy.
	assert.Equal(t, 4, result.AssetCount)

	index, err := os.ReadFile(result.IndexPath)
	require.NoError(t, err)
	html := string(index)

	imageRef := regexp.MustCompile(`images/[0-9a-f]{10}\.png`)
	assert.Regexp(t, imageRef, html)
	assert.Regexp(t, `css/[0-9a-f]{10}\.css`, html)
	assert.Regexp(t, `js/[0-9a-f]{10}\.js`, html)
	assert.NotContains(t, html, server.URL, "no absolute references back to the origin")

	images, err := filepath.Glob(filepath.Join(outputDir, "images", "*.png"))
	require.NoError(t, err)
	assert.Len(t, images, 2, "logo and background stored once each")

	// The downloaded stylesheet references its image one level up.
	sheets, err := filepath.Glob(filepath.Join(outputDir, "css", "*.css"))
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	sheet, err := os.ReadFile(sheets[0])
	require.NoError(t, err)
	assert.Regexp(t, `url\(\.\./images/[0-9a-f]{10}\.png\)`, string(sheet))

	// The inline style block resolves from the bundle root.
	assert.Regexp(t, `\.hero\{background:url\(images/[0-9a-f]{10}\.png\)\}`, html)
}

func TestPipeline_Run_RejectsNonHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	_, err := newTestPipeline(t).Run(context.Background(), Request{URL: server.URL}, t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, errorwrapper.ErrNotHTML)
}

func TestPipeline_Run_FailedAssetKeepsReference(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><img src="/gone.png"/></body></html>`))
	})
	mux.HandleFunc("/gone.png", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	outputDir := t.TempDir()
	result, err := newTestPipeline(t).Run(context.Background(), Request{URL: server.URL + "/"}, outputDir)
	require.NoError(t, err, "a failed asset never fails the job")

	index, err := os.ReadFile(result.IndexPath)
	require.NoError(t, err)
	assert.Contains(t, string(index), "/gone.png")
	assert.Equal(t, 0, result.AssetCount)
}

func TestPipeline_Run_DomainRewrite(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
			<a href="https://www.example.com/shop">shop</a>
			<p>Contact us at example.com</p>
		</body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	rules, err := rewriter.ParseRules("example.com", "mirror.test")
	require.NoError(t, err)

	result, err := newTestPipeline(t).Run(context.Background(), Request{
		URL:   server.URL + "/",
		Rules: rules,
	}, t.TempDir())
	require.NoError(t, err)

	index, err := os.ReadFile(result.IndexPath)
	require.NoError(t, err)
	html := string(index)
	assert.NotContains(t, html, "example.com")
	assert.Contains(t, html, "https://mirror.test/shop")
	assert.Contains(t, html, "Contact us at mirror.test")
}

func TestPipeline_Run_RemovesTrackingScripts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head>
			<script src="https://www.google-analytics.com/analytics.js"></script>
			<script src="/app.js"></script>
		</head><body></body></html>`))
	})
	mux.HandleFunc("/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(`var theme = "dark";`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	result, err := newTestPipeline(t).Run(context.Background(), Request{
		URL:   server.URL + "/",
		Flags: filter.Flags{RemoveTracking: true},
	}, t.TempDir())
	require.NoError(t, err)

	index, err := os.ReadFile(result.IndexPath)
	require.NoError(t, err)
	html := string(index)
	assert.NotContains(t, html, "google-analytics.com")
	assert.Regexp(t, `js/[0-9a-f]{10}\.js`, html)
}

func TestPipeline_Run_ScreensOutboundScripts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><script src="/beacon.js"></script></body></html>`))
	})
	mux.HandleFunc("/beacon.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(`fetch("/collect?id=1");`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	outputDir := t.TempDir()
	result, err := newTestPipeline(t).Run(context.Background(), Request{URL: server.URL + "/"}, outputDir)
	require.NoError(t, err)

	assert.Equal(t, 0, result.AssetCount, "screened script never enters the bundle")
	scripts, err := filepath.Glob(filepath.Join(outputDir, "js", "*"))
	require.NoError(t, err)
	assert.Empty(t, scripts)

	// The refused script's element is gone too; a same-origin relative
	// src must not survive pointing at a file the bundle lacks.
	index, err := os.ReadFile(result.IndexPath)
	require.NoError(t, err)
	assert.NotContains(t, string(index), "beacon.js")
	assert.NotContains(t, string(index), "<script")
}

func TestPipeline_Run_SkipsSameOriginTrackerFetch(t *testing.T) {
	trackerHits := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
			<script src="/analytics.js"></script>
			<script src="/app.js"></script>
		</body></html>`))
	})
	mux.HandleFunc("/analytics.js", func(w http.ResponseWriter, r *http.Request) {
		trackerHits++
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(`var t = 1;`))
	})
	mux.HandleFunc("/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(`var theme = "dark";`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	result, err := newTestPipeline(t).Run(context.Background(), Request{
		URL:   server.URL + "/",
		Flags: filter.Flags{RemoveTracking: true},
	}, t.TempDir())
	require.NoError(t, err)

	assert.Zero(t, trackerHits, "tracking endpoint is never contacted")
	assert.Equal(t, 1, result.AssetCount)

	index, err := os.ReadFile(result.IndexPath)
	require.NoError(t, err)
	assert.NotContains(t, string(index), "analytics.js")
	assert.Regexp(t, `js/[0-9a-f]{10}\.js`, string(index))
}

func TestPipeline_Run_StoresIconsUnderIcons(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head>
			<link rel="icon" href="/favicon"/>
		</head><body></body></html>`))
	})
	mux.HandleFunc("/favicon", servePNG)
	server := httptest.NewServer(mux)
	defer server.Close()

	outputDir := t.TempDir()
	result, err := newTestPipeline(t).Run(context.Background(), Request{URL: server.URL + "/"}, outputDir)
	require.NoError(t, err)
	require.Equal(t, 1, result.AssetCount)

	// Extensionless icon reference: the link-icon hint wins the category
	// and the stored extension comes from the content type.
	icons, err := filepath.Glob(filepath.Join(outputDir, "icons", "*.png"))
	require.NoError(t, err)
	assert.Len(t, icons, 1)

	index, err := os.ReadFile(result.IndexPath)
	require.NoError(t, err)
	assert.Regexp(t, `icons/[0-9a-f]{10}\.png`, string(index))
}

func TestPipeline_Run_PreservesTrustedCDNReferences(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head>
			<link rel="stylesheet" href="http://fonts.googleapis.com/css?family=Roboto"/>
		</head><body></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	result, err := newTestPipeline(t).Run(context.Background(), Request{URL: server.URL + "/"}, t.TempDir())
	require.NoError(t, err)

	index, err := os.ReadFile(result.IndexPath)
	require.NoError(t, err)
	// Trusted CDN references stay remote, upgraded to https.
	assert.Contains(t, string(index), "https://fonts.googleapis.com/css?family=Roboto")
	assert.Equal(t, 0, result.AssetCount)
}

func TestRewriteFilesIn_MissingDirIsFine(t *testing.T) {
	rules, err := rewriter.ParseRules("a.com", "b.com")
	require.NoError(t, err)
	assert.NoError(t, rewriteFilesIn(filepath.Join(t.TempDir(), "css"), rewriter.NewRewriter(rules)))
}

func TestLooksLikeURL(t *testing.T) {
	assert.True(t, looksLikeURL("https://example.com/x.png"))
	assert.True(t, looksLikeURL("//example.com/x.png"))
	assert.True(t, looksLikeURL("/x.png"))
	assert.False(t, looksLikeURL("width=device-width"))
	assert.False(t, looksLikeURL(strings.Repeat("a", 3)))
}
