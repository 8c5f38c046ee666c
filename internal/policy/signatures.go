package policy

import (
	"regexp"
	"strings"

	"github.com/aleister1102/webmirror/internal/config"
	"github.com/aleister1102/webmirror/internal/errorwrapper"
)

// SignatureMatcher matches script sources and bodies against the versioned
// signature table. Matching is heuristic by design: URL patterns are
// case-insensitive regular expressions, body tokens are case-insensitive
// substrings.
type SignatureMatcher struct {
	table          config.SignatureTable
	trackingURLs   []*regexp.Regexp
	customFileURLs []*regexp.Regexp
}

// NewSignatureMatcher compiles the signature table
func NewSignatureMatcher(table config.SignatureTable) (*SignatureMatcher, error) {
	trackingURLs, err := compilePatterns(table.TrackingURLPatterns)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "invalid tracking URL pattern")
	}

	customFileURLs, err := compilePatterns(table.CustomTrackingFiles)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "invalid custom tracking file pattern")
	}

	return &SignatureMatcher{
		table:          table,
		trackingURLs:   trackingURLs,
		customFileURLs: customFileURLs,
	}, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Version returns the signature table version
func (sm *SignatureMatcher) Version() string {
	return sm.table.Version
}

// MatchesTrackingURL reports whether a script src points at a known
// tracking vendor.
func (sm *SignatureMatcher) MatchesTrackingURL(src string) bool {
	return matchAny(sm.trackingURLs, src)
}

// MatchesTrackingBody reports whether an inline script body contains a
// known tracking call token.
func (sm *SignatureMatcher) MatchesTrackingBody(body string) bool {
	return containsAnyFold(body, sm.table.TrackingCallTokens)
}

// MatchesCustomTrackingURL reports whether a script src follows site-local
// tracking filename conventions.
func (sm *SignatureMatcher) MatchesCustomTrackingURL(src string) bool {
	return matchAny(sm.customFileURLs, src)
}

// MatchesCustomTrackingBody reports whether an inline script body carries
// the custom tracking token.
func (sm *SignatureMatcher) MatchesCustomTrackingBody(body string) bool {
	if sm.table.CustomInlineToken == "" {
		return false
	}
	return strings.Contains(strings.ToLower(body), strings.ToLower(sm.table.CustomInlineToken))
}

// MatchesNetworkCall reports whether a script body carries an outbound
// network-call or dynamic-code signature. This screen is unconditional and
// intentionally over-broad; see the signature table.
func (sm *SignatureMatcher) MatchesNetworkCall(body string) bool {
	return containsAnyFold(body, sm.table.NetworkCallSignatures)
}

// IsTrackingMeta reports whether a meta tag name is a tracking
// verification tag.
func (sm *SignatureMatcher) IsTrackingMeta(name string) bool {
	for _, candidate := range sm.table.TrackingMetaNames {
		if strings.EqualFold(name, candidate) {
			return true
		}
	}
	return false
}

// MatchesNoscript reports whether noscript content mentions a known
// tracker.
func (sm *SignatureMatcher) MatchesNoscript(content string) bool {
	return containsAnyFold(content, sm.table.NoscriptTrackerTokens)
}

// MatchesEventHandler reports whether an on* attribute value carries a
// tracking call.
func (sm *SignatureMatcher) MatchesEventHandler(value string) bool {
	lower := strings.ToLower(value)
	if sm.table.CustomInlineToken != "" && strings.Contains(lower, strings.ToLower(sm.table.CustomInlineToken)) {
		return true
	}
	return containsAnyFold(lower, sm.table.TrackingCallTokens)
}

func matchAny(patterns []*regexp.Regexp, value string) bool {
	if value == "" {
		return false
	}
	for _, re := range patterns {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

func containsAnyFold(value string, tokens []string) bool {
	if value == "" {
		return false
	}
	lower := strings.ToLower(value)
	for _, token := range tokens {
		if token != "" && strings.Contains(lower, strings.ToLower(token)) {
			return true
		}
	}
	return false
}
