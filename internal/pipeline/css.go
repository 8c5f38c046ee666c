package pipeline

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aleister1102/webmirror/internal/assets"
	"github.com/aleister1102/webmirror/internal/cache"
	"github.com/aleister1102/webmirror/internal/policy"
	"github.com/aleister1102/webmirror/internal/urlhandler"
)

// cssURLPattern matches url(...) tokens in stylesheet text, with or
// without quotes around the reference.
var cssURLPattern = regexp.MustCompile(`url\(\s*['"]?([^'")]+?)['"]?\s*\)`)

// cssProcessor localizes assets referenced from stylesheet text: inline
// style attributes, <style> blocks and downloaded .css files, including
// stylesheets nested through @import.
type cssProcessor struct {
	cache      *cache.DownloadCache
	trust      *policy.TrustPolicy
	classifier *assets.Classifier
	logger     zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

func newCSSProcessor(dc *cache.DownloadCache, trust *policy.TrustPolicy, classifier *assets.Classifier, logger zerolog.Logger) *cssProcessor {
	return &cssProcessor{
		cache:      dc,
		trust:      trust,
		classifier: classifier,
		logger:     logger.With().Str("component", "CSSProcessor").Logger(),
		inFlight:   make(map[string]bool),
	}
}

// LocalizeStylesheet downloads one stylesheet, rewriting its url()
// references to localized copies before it is stored. Circular @import
// chains are broken by leaving the repeated reference absolute.
func (cp *cssProcessor) LocalizeStylesheet(ctx context.Context, canonicalURL string) (string, error) {
	cp.mu.Lock()
	if cp.inFlight[canonicalURL] {
		cp.mu.Unlock()
		return "", errCircularStylesheet
	}
	cp.inFlight[canonicalURL] = true
	cp.mu.Unlock()

	defer func() {
		cp.mu.Lock()
		delete(cp.inFlight, canonicalURL)
		cp.mu.Unlock()
	}()

	sheetURL, err := url.Parse(canonicalURL)
	if err != nil {
		return "", err
	}

	return cp.cache.LocalizeWith(ctx, canonicalURL, assets.CategoryCSS, cache.LocalizeOptions{
		Transform: func(body []byte) []byte {
			// Stored stylesheets live under css/, one level below the
			// bundle root the local paths are relative to.
			return []byte(cp.RewriteBlock(ctx, string(body), sheetURL, "../"))
		},
	})
}

// RewriteBlock rewrites every url() reference in a block of stylesheet
// text. References are resolved against base; localized paths are
// prefixed with pathPrefix to stay correct from the block's location.
func (cp *cssProcessor) RewriteBlock(ctx context.Context, cssText string, base *url.URL, pathPrefix string) string {
	return cssURLPattern.ReplaceAllStringFunc(cssText, func(match string) string {
		groups := cssURLPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		reference := strings.TrimSpace(groups[1])

		if urlhandler.IsNonFetchable(reference) {
			return match
		}

		resolved := urlhandler.Resolve(reference, base)
		if resolved == "" {
			return match
		}
		if cp.trust.IsTrusted(resolved) {
			return "url(" + policy.PreservedForm(resolved) + ")"
		}

		localPath, err := cp.localizeReference(ctx, resolved)
		if err != nil {
			cp.logger.Warn().Err(err).Str("url", resolved).Msg("Leaving stylesheet reference remote")
			return "url(" + resolved + ")"
		}
		return "url(" + pathPrefix + localPath + ")"
	})
}

func (cp *cssProcessor) localizeReference(ctx context.Context, resolved string) (string, error) {
	category := cp.classifier.Classify(resolved, "")
	if category == assets.CategoryCSS {
		return cp.LocalizeStylesheet(ctx, resolved)
	}
	return cp.cache.Localize(ctx, resolved, category)
}
