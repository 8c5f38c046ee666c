package pipeline

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/aleister1102/webmirror/internal/assets"
	"github.com/aleister1102/webmirror/internal/cache"
	"github.com/aleister1102/webmirror/internal/config"
	"github.com/aleister1102/webmirror/internal/errorwrapper"
	"github.com/aleister1102/webmirror/internal/fetcher"
	"github.com/aleister1102/webmirror/internal/filter"
	"github.com/aleister1102/webmirror/internal/policy"
	"github.com/aleister1102/webmirror/internal/rewriter"
)

// errCircularStylesheet breaks @import cycles; the repeated reference
// stays absolute.
var errCircularStylesheet = errors.New("circular stylesheet reference")

// errSkippedTracker marks script references on known tracking endpoints,
// which are never fetched.
var errSkippedTracker = errors.New("tracking endpoint skipped")

// Request describes one mirror job.
type Request struct {
	URL   string
	Rules []rewriter.RewriteRule
	Flags filter.Flags
}

// Result reports where the finished bundle landed.
type Result struct {
	OutputDir  string
	IndexPath  string
	FinalURL   string
	AssetCount int
}

// Pipeline turns one page URL into a self-contained bundle on disk:
// fetch, parse, localize assets, rewrite domains, filter trackers,
// serialize. Stateless across jobs; each Run gets its own cache and
// output directory.
type Pipeline struct {
	fetcher    *fetcher.Fetcher
	trust      *policy.TrustPolicy
	signatures *policy.SignatureMatcher
	scripts    *filter.ScriptAnalyzer
	classifier *assets.Classifier
	cfg        config.MirrorConfig
	logger     zerolog.Logger
}

func New(
	f *fetcher.Fetcher,
	trust *policy.TrustPolicy,
	signatures *policy.SignatureMatcher,
	scripts *filter.ScriptAnalyzer,
	cfg config.MirrorConfig,
	logger zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		fetcher:    f,
		trust:      trust,
		signatures: signatures,
		scripts:    scripts,
		classifier: assets.NewClassifier(),
		cfg:        cfg,
		logger:     logger.With().Str("component", "Pipeline").Logger(),
	}
}

// Run executes the full pipeline for one request, writing the bundle
// under outputDir. The page itself becomes outputDir/index.html.
func (p *Pipeline) Run(ctx context.Context, req Request, outputDir string) (*Result, error) {
	resp, err := p.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	if !fetcher.IsHTML(resp.ContentType) {
		return nil, errorwrapper.WrapError(errorwrapper.ErrNotHTML, "content type "+resp.ContentType)
	}

	htmlText, err := fetcher.DecodeHTML(resp.Body, resp.ContentType)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to decode page body")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to parse page")
	}

	base, err := url.Parse(resp.FinalURL)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "invalid final URL")
	}

	dc := cache.NewDownloadCache(p.fetcher, outputDir, p.logger)
	css := newCSSProcessor(dc, p.trust, p.classifier, p.logger)
	localizer := newAssetLocalizer(dc, css, p.trust, p.classifier, p.signatures, p.scripts, base, req.Flags, p.cfg.AssetWorkers, p.logger)
	if err := localizer.Run(ctx, doc); err != nil {
		return nil, err
	}

	if len(req.Rules) > 0 {
		doc, err = p.rewriteDomains(doc, req.Rules, outputDir)
		if err != nil {
			return nil, err
		}
	}

	tf := filter.NewTrackingFilter(resp.FinalURL, p.trust, p.signatures, p.scripts, p.logger)
	tf.Apply(doc, req.Flags)

	serialized, err := doc.Html()
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to serialize page")
	}

	indexPath := filepath.Join(outputDir, "index.html")
	if err := os.WriteFile(indexPath, []byte(serialized), 0o644); err != nil {
		return nil, errorwrapper.WrapError(err, "failed to write index.html")
	}

	result := &Result{
		OutputDir:  outputDir,
		IndexPath:  indexPath,
		FinalURL:   resp.FinalURL,
		AssetCount: len(dc.Records()),
	}
	p.logger.Info().
		Str("url", req.URL).
		Int("assets", result.AssetCount).
		Msg("Mirror job completed")
	return result, nil
}

// rewriteDomains applies the domain replacement rules to the serialized
// page and to every downloaded text asset, then reparses the page so the
// filter stage sees the rewritten references.
func (p *Pipeline) rewriteDomains(doc *goquery.Document, rules []rewriter.RewriteRule, outputDir string) (*goquery.Document, error) {
	rw := rewriter.NewRewriter(rules)

	serialized, err := doc.Html()
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to serialize page for rewriting")
	}

	rewritten, err := goquery.NewDocumentFromReader(strings.NewReader(rw.Apply(serialized)))
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to reparse rewritten page")
	}

	for _, category := range []assets.Category{assets.CategoryCSS, assets.CategoryJS} {
		if err := rewriteFilesIn(filepath.Join(outputDir, category.Dir()), rw); err != nil {
			return nil, err
		}
	}
	return rewritten, nil
}

func rewriteFilesIn(dir string, rw *rewriter.Rewriter) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errorwrapper.WrapError(err, "failed to list asset directory")
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		body, err := os.ReadFile(path)
		if err != nil {
			return errorwrapper.WrapError(err, "failed to read asset for rewriting")
		}
		if rewritten := rw.Apply(string(body)); rewritten != string(body) {
			if err := os.WriteFile(path, []byte(rewritten), 0o644); err != nil {
				return errorwrapper.WrapError(err, "failed to write rewritten asset")
			}
		}
	}
	return nil
}
