package config

import "time"

// DefaultFetcherUserAgent is the browser identity presented to upstream
// servers. Matching a real browser keeps asset servers from serving
// bot-specific variants.
const DefaultFetcherUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// FetcherConfig holds configuration for the upstream HTTP fetch collaborator
type FetcherConfig struct {
	ConnectTimeoutSecs int               `json:"connect_timeout_secs,omitempty" yaml:"connect_timeout_secs,omitempty" validate:"gt=0"`
	ReadTimeoutSecs    int               `json:"read_timeout_secs,omitempty" yaml:"read_timeout_secs,omitempty" validate:"gt=0"`
	UserAgent          string            `json:"user_agent,omitempty" yaml:"user_agent,omitempty" validate:"required"`
	FollowRedirects    bool              `json:"follow_redirects,omitempty" yaml:"follow_redirects,omitempty"`
	MaxRedirects       int               `json:"max_redirects,omitempty" yaml:"max_redirects,omitempty" validate:"gte=0"`
	InsecureSkipVerify bool              `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`
	CustomHeaders      map[string]string `json:"custom_headers,omitempty" yaml:"custom_headers,omitempty"`
}

// NewDefaultFetcherConfig returns the default fetcher configuration
func NewDefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		ConnectTimeoutSecs: 10,
		ReadTimeoutSecs:    30,
		UserAgent:          DefaultFetcherUserAgent,
		FollowRedirects:    true,
		MaxRedirects:       10,
		CustomHeaders: map[string]string{
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.5",
			"Connection":                "keep-alive",
			"Upgrade-Insecure-Requests": "1",
		},
	}
}

// ConnectTimeout returns the dial timeout as a duration
func (fc FetcherConfig) ConnectTimeout() time.Duration {
	return time.Duration(fc.ConnectTimeoutSecs) * time.Second
}

// ReadTimeout returns the overall request timeout as a duration
func (fc FetcherConfig) ReadTimeout() time.Duration {
	return time.Duration(fc.ReadTimeoutSecs) * time.Second
}
