package policy

import (
	"strings"

	"github.com/aleister1102/webmirror/internal/config"
	"github.com/aleister1102/webmirror/internal/urlhandler"
)

// Route is the decision for one asset reference.
type Route int

const (
	// RouteLocalize hands the reference to the download cache.
	RouteLocalize Route = iota
	// RoutePreserve keeps the reference external, rewritten to its
	// absolute https form.
	RoutePreserve
	// RoutePassthrough leaves the reference byte-for-byte untouched
	// (data URIs, fragments, unresolvable references).
	RoutePassthrough
)

// TrustPolicy decides whether an asset is mirrored or referenced directly.
// The allow-list is fixed configuration, checked by host suffix; no
// reachability or reputation logic is attempted.
type TrustPolicy struct {
	cdnSuffixes []string
}

// NewTrustPolicy builds a TrustPolicy from the configured allow-list
func NewTrustPolicy(cfg config.PolicyConfig) *TrustPolicy {
	suffixes := make([]string, 0, len(cfg.TrustedCDNHosts))
	for _, host := range cfg.TrustedCDNHosts {
		if trimmed := strings.ToLower(strings.TrimSpace(host)); trimmed != "" {
			suffixes = append(suffixes, trimmed)
		}
	}
	return &TrustPolicy{cdnSuffixes: suffixes}
}

// IsTrusted reports whether a resolved URL's host matches the CDN
// allow-list by suffix.
func (tp *TrustPolicy) IsTrusted(resolvedURL string) bool {
	host, err := urlhandler.ExtractHostname(resolvedURL)
	if err != nil {
		return false
	}
	host = strings.ToLower(host)
	for _, suffix := range tp.cdnSuffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// RouteReference routes one raw reference with its resolved canonical URL.
// An empty resolvedURL means the resolver rejected the reference (data:,
// fragment, malformed) and it passes through untouched.
func (tp *TrustPolicy) RouteReference(reference, resolvedURL string) Route {
	if resolvedURL == "" || urlhandler.IsNonFetchable(reference) {
		return RoutePassthrough
	}
	if tp.IsTrusted(resolvedURL) {
		return RoutePreserve
	}
	return RouteLocalize
}

// PreservedForm returns the absolute https form used when a reference is
// preserved rather than localized.
func PreservedForm(resolvedURL string) string {
	if strings.HasPrefix(resolvedURL, "http://") {
		return "https://" + strings.TrimPrefix(resolvedURL, "http://")
	}
	return resolvedURL
}
