package filter

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/aleister1102/webmirror/internal/policy"
	"github.com/aleister1102/webmirror/internal/urlhandler"
)

// Flags select which removal passes run. The external-script and
// outbound-call screens run regardless of flags.
type Flags struct {
	RemoveTracking       bool
	RemoveCustomTracking bool
	RemoveRedirects      bool
}

// TrackingFilter removes tracking scripts, verification tags, tracking
// pixels and cross-origin redirect targets from a document. It must run
// after asset localization so host comparisons see final reference forms:
// localized assets are relative paths, preserved CDN references are
// absolute https.
type TrackingFilter struct {
	originURL  string
	trust      *policy.TrustPolicy
	signatures *policy.SignatureMatcher
	scripts    *ScriptAnalyzer
	logger     zerolog.Logger
}

// NewTrackingFilter creates a filter for one job's origin URL
func NewTrackingFilter(
	originURL string,
	trust *policy.TrustPolicy,
	signatures *policy.SignatureMatcher,
	scripts *ScriptAnalyzer,
	logger zerolog.Logger,
) *TrackingFilter {
	return &TrackingFilter{
		originURL:  originURL,
		trust:      trust,
		signatures: signatures,
		scripts:    scripts,
		logger:     logger.With().Str("component", "TrackingFilter").Logger(),
	}
}

// Apply mutates the document in place according to the flags. All
// removals are structural; scripts are never patched.
func (tf *TrackingFilter) Apply(doc *goquery.Document, flags Flags) {
	tf.filterScripts(doc, flags)

	if flags.RemoveTracking {
		tf.removeTrackingMetas(doc)
		tf.removeTrackingNoscripts(doc)
		tf.stripTrackingEventHandlers(doc)
	}

	if flags.RemoveRedirects {
		tf.removeCrossOriginAnchors(doc)
	}
}

// filterScripts applies the per-script removal decisions in one pass.
func (tf *TrackingFilter) filterScripts(doc *goquery.Document, flags Flags) {
	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		body := s.Text()

		if reason := tf.scriptRemovalReason(src, body, flags); reason != "" {
			tf.logger.Debug().Str("src", src).Str("reason", reason).Msg("Removing script element")
			s.Remove()
		}
	})
}

// scriptRemovalReason returns a non-empty reason when a script element
// must be removed.
func (tf *TrackingFilter) scriptRemovalReason(src, body string, flags Flags) string {
	// Unconditional safety net: externally hosted scripts that survived
	// localization are either trusted CDN references or failed
	// localizations, and only the trusted ones may stay.
	if isExternalReference(src) {
		if !tf.trust.IsTrusted(src) {
			return "external non-trusted script"
		}
		if flags.RemoveRedirects && !urlhandler.SameHost(src, tf.originURL) {
			return "cross-origin script"
		}
	}

	// Unconditional safety net for inline bodies performing network
	// calls or dynamic code loading.
	if src == "" && tf.scripts.HasOutboundCalls(body) {
		return "outbound network call in inline script"
	}

	if flags.RemoveTracking {
		if tf.signatures.MatchesTrackingURL(src) {
			return "tracking vendor src"
		}
		if src == "" && tf.signatures.MatchesTrackingBody(body) {
			return "tracking call in inline script"
		}
	}

	if flags.RemoveCustomTracking {
		if tf.signatures.MatchesCustomTrackingURL(src) {
			return "custom tracking filename"
		}
		if src == "" && tf.signatures.MatchesCustomTrackingBody(body) {
			return "custom tracking token in inline script"
		}
	}

	return ""
}

// removeTrackingMetas drops verification meta tags.
func (tf *TrackingFilter) removeTrackingMetas(doc *goquery.Document) {
	doc.Find("meta[name]").Each(func(i int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		if tf.signatures.IsTrackingMeta(name) {
			tf.logger.Debug().Str("name", name).Msg("Removing tracking meta tag")
			s.Remove()
		}
	})
}

// removeTrackingNoscripts drops noscript blocks carrying tracking pixels.
func (tf *TrackingFilter) removeTrackingNoscripts(doc *goquery.Document) {
	doc.Find("noscript").Each(func(i int, s *goquery.Selection) {
		content, err := goquery.OuterHtml(s)
		if err != nil {
			content = s.Text()
		}
		if tf.signatures.MatchesNoscript(content) {
			tf.logger.Debug().Msg("Removing tracking noscript block")
			s.Remove()
		}
	})
}

// stripTrackingEventHandlers strips on* attributes whose value carries
// tracking calls.
func (tf *TrackingFilter) stripTrackingEventHandlers(doc *goquery.Document) {
	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		if len(s.Nodes) == 0 {
			return
		}
		var toRemove []string
		for _, attr := range s.Nodes[0].Attr {
			if strings.HasPrefix(strings.ToLower(attr.Key), "on") && tf.signatures.MatchesEventHandler(attr.Val) {
				toRemove = append(toRemove, attr.Key)
			}
		}
		for _, key := range toRemove {
			tf.logger.Debug().Str("attr", key).Msg("Stripping tracking event handler")
			s.RemoveAttr(key)
		}
	})
}

// removeCrossOriginAnchors drops anchors whose href leads off the job's
// origin host.
func (tf *TrackingFilter) removeCrossOriginAnchors(doc *goquery.Document) {
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if isExternalReference(href) && !urlhandler.SameHost(href, tf.originURL) {
			tf.logger.Debug().Str("href", href).Msg("Removing cross-origin anchor")
			s.Remove()
		}
	})
}

// isExternalReference reports whether a post-localization reference still
// points off the bundle: absolute or protocol-relative URLs.
func isExternalReference(ref string) bool {
	lower := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "//")
}
