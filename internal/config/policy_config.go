package config

// PolicyConfig carries the trust and content-screening tables consulted by
// the routing and filtering stages. The tables are data, not code: they can
// be replaced wholesale from a config file without touching pipeline logic.
type PolicyConfig struct {
	// TrustedCDNHosts are host suffixes whose assets are referenced
	// directly (rewritten to absolute https) instead of mirrored.
	TrustedCDNHosts []string       `json:"trusted_cdn_hosts,omitempty" yaml:"trusted_cdn_hosts,omitempty"`
	Signatures      SignatureTable `json:"signatures,omitempty" yaml:"signatures,omitempty"`
}

// SignatureTable is the versioned catalogue of tracking and outbound
// network-call signatures used by the tracking filter and the download
// cache's script screen.
type SignatureTable struct {
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// TrackingURLPatterns match script src attributes of known
	// tracking-vendor resources (regular expressions, case-insensitive).
	TrackingURLPatterns []string `json:"tracking_url_patterns,omitempty" yaml:"tracking_url_patterns,omitempty"`
	// TrackingCallTokens match inline script bodies by substring
	// (case-insensitive function-call tokens).
	TrackingCallTokens []string `json:"tracking_call_tokens,omitempty" yaml:"tracking_call_tokens,omitempty"`
	// TrackingMetaNames are meta tag name attributes removed as
	// verification/tracking tags.
	TrackingMetaNames []string `json:"tracking_meta_names,omitempty" yaml:"tracking_meta_names,omitempty"`
	// NoscriptTrackerTokens match noscript block contents that carry
	// tracking pixels.
	NoscriptTrackerTokens []string `json:"noscript_tracker_tokens,omitempty" yaml:"noscript_tracker_tokens,omitempty"`
	// CustomTrackingFiles match site-local tracking script filename
	// conventions (regular expressions).
	CustomTrackingFiles []string `json:"custom_tracking_files,omitempty" yaml:"custom_tracking_files,omitempty"`
	// CustomInlineToken flags inline scripts under the custom-tracking
	// flag by substring.
	CustomInlineToken string `json:"custom_inline_token,omitempty" yaml:"custom_inline_token,omitempty"`
	// NetworkCallSignatures match script bodies that perform outbound
	// network calls or dynamic code loading. Matching bodies are removed
	// unconditionally. The bare "https" token is intentionally broad;
	// relaxing it is a config change, not a code change.
	NetworkCallSignatures []string `json:"network_call_signatures,omitempty" yaml:"network_call_signatures,omitempty"`
}

// NewDefaultPolicyConfig returns the default trust list and signature table
func NewDefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		TrustedCDNHosts: []string{
			"ajax.googleapis.com",
			"cdnjs.cloudflare.com",
			"cdn.jsdelivr.net",
			"unpkg.com",
			"fonts.googleapis.com",
			"fonts.gstatic.com",
			"stackpath.bootstrapcdn.com",
			"maxcdn.bootstrapcdn.com",
			"code.jquery.com",
		},
		Signatures: NewDefaultSignatureTable(),
	}
}

// NewDefaultSignatureTable returns the built-in signature catalogue
func NewDefaultSignatureTable() SignatureTable {
	return SignatureTable{
		Version: "2024-06",
		TrackingURLPatterns: []string{
			// Meta pixel
			`connect\.facebook\.net/[^/]+/fbevents\.js`,
			`facebook-jssdk`,
			`fb-root`,
			// Google Analytics / Tag Manager
			`google-analytics\.com/analytics\.js`,
			`googletagmanager\.com/gtag/js`,
			`googletagmanager\.com/gtm\.js`,
			`\bga\.js`,
			`gtag`,
			`gtm\.js`,
			// Call tracking
			`ringba\.com`,
			`ringba\.js`,
			// Session replay and generic analytics vendors
			`analytics`,
			`pixel\.js`,
			`tracking\.js`,
			`mixpanel`,
			`segment\.com`,
			`hotjar\.com`,
		},
		TrackingCallTokens: []string{
			"fbq(",
			"gtag(",
			"ga(",
			"_ringba",
			"mixpanel",
		},
		TrackingMetaNames: []string{
			"facebook-domain-verification",
			"google-site-verification",
		},
		NoscriptTrackerTokens: []string{
			"facebook",
			"gtm",
			"google-analytics",
		},
		CustomTrackingFiles: []string{
			`track\.js`,
			`tracking\.js`,
			`tracker\.js`,
		},
		CustomInlineToken: "track",
		NetworkCallSignatures: []string{
			"fetch(",
			"xmlhttprequest",
			"$.ajax",
			"navigator.sendbeacon",
			"eval(",
			"new function(",
			"import(",
			"require(",
			"https",
		},
	}
}
