package urlhandler

import (
	"net/url"
	"strings"

	"github.com/aleister1102/webmirror/internal/errorwrapper"
)

// nonFetchableSchemes are reference prefixes that never denote a network
// resource. References starting with any of these resolve to nothing.
var nonFetchableSchemes = []string{"data:", "mailto:", "javascript:", "tel:", "about:"}

// IsNonFetchable reports whether a raw reference can never be fetched
// over HTTP (data URIs, mail links, inline javascript, same-document
// fragments).
func IsNonFetchable(reference string) bool {
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, prefix := range nonFetchableSchemes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Resolve converts any reference found in a document into a canonical
// absolute URL against the given base. It returns an empty string when the
// reference is not a fetchable network resource: non-HTTP schemes,
// fragment-only references, malformed input, or a result without a host.
// The function performs no IO and never fails for malformed input.
func Resolve(reference string, base *url.URL) string {
	trimmed := strings.TrimSpace(reference)
	if IsNonFetchable(trimmed) {
		return ""
	}

	// Protocol-relative references are upgraded to https.
	if strings.HasPrefix(trimmed, "//") {
		trimmed = "https:" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}

	var resolved *url.URL
	if base != nil {
		resolved = base.ResolveReference(parsed)
	} else {
		resolved = parsed
	}

	if resolved.Scheme == "" {
		resolved.Scheme = "https"
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	if resolved.Host == "" {
		return ""
	}

	return resolved.String()
}

// NormalizeURL normalizes a URL by adding scheme if missing and lowercasing the domain
func NormalizeURL(rawURL string) (string, error) {
	trimmedURL := strings.TrimSpace(rawURL)
	if trimmedURL == "" {
		return "", errorwrapper.NewError("URL is empty")
	}

	if !strings.HasPrefix(trimmedURL, "http://") && !strings.HasPrefix(trimmedURL, "https://") {
		trimmedURL = "https://" + trimmedURL
	}

	parsedURL, err := url.Parse(trimmedURL)
	if err != nil {
		return "", errorwrapper.WrapError(err, "could not parse URL '"+trimmedURL+"'")
	}
	if parsedURL.Host == "" {
		return "", errorwrapper.NewError("URL has no host: '" + trimmedURL + "'")
	}

	parsedURL.Host = strings.ToLower(parsedURL.Host)

	return parsedURL.String(), nil
}

// ExtractHostname extracts hostname without port from a URL string
func ExtractHostname(urlString string) (string, error) {
	if urlString == "" {
		return "", errorwrapper.NewError("URL string is empty")
	}

	parsedURL, err := url.Parse(urlString)
	if err != nil {
		return "", errorwrapper.WrapError(err, "could not parse URL '"+urlString+"'")
	}

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return "", errorwrapper.NewError("URL has no hostname component: " + urlString)
	}

	return hostname, nil
}

// NormalizeDomain lowercases a domain and strips a leading "www." so that
// matching treats www and bare forms as the same site.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	return strings.TrimPrefix(d, "www.")
}

// SameHost reports whether two absolute URLs share a hostname, ignoring a
// leading "www." on either side.
func SameHost(a, b string) bool {
	hostA, errA := ExtractHostname(a)
	hostB, errB := ExtractHostname(b)
	if errA != nil || errB != nil {
		return false
	}
	return NormalizeDomain(hostA) == NormalizeDomain(hostB)
}
