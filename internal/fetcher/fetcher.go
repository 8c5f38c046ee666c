package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleister1102/webmirror/internal/config"
	"github.com/aleister1102/webmirror/internal/errorwrapper"
)

// Response is the outcome of one upstream fetch: status, headers and the
// full body, plus the URL the transport ended up at after redirects.
type Response struct {
	StatusCode  int
	Headers     http.Header
	Body        []byte
	ContentType string // media type without parameters, lowercased
	FinalURL    string
}

// IsSuccess reports whether the response carries a 2xx status
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher performs upstream HTTP requests with browser-like headers,
// connect and read timeouts, and redirect following.
type Fetcher struct {
	client *http.Client
	cfg    config.FetcherConfig
	logger zerolog.Logger

	// MaxBodyBytes caps how much of a response body is read. Zero means
	// no cap.
	MaxBodyBytes int64
}

// NewFetcher builds a Fetcher from configuration
func NewFetcher(cfg config.FetcherConfig, logger zerolog.Logger) *Fetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout(),
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout(),
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.ReadTimeout(),
	}

	if cfg.FollowRedirects {
		maxRedirects := cfg.MaxRedirects
		if maxRedirects <= 0 {
			maxRedirects = 10
		}
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errorwrapper.NewError("stopped after %d redirects", maxRedirects)
			}
			return nil
		}
	} else {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &Fetcher{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "Fetcher").Logger(),
	}
}

// Fetch performs a GET request and reads the full body. Transport failures
// return a NetworkError; non-2xx statuses return the response alongside an
// HTTPError so callers can decide how to degrade.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to build request for '"+rawURL+"'")
	}

	req.Header.Set("User-Agent", f.cfg.UserAgent)
	for key, value := range f.cfg.CustomHeaders {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, errorwrapper.NewNetworkError(rawURL, "request timed out", errorwrapper.ErrTimeout)
		}
		return nil, errorwrapper.NewNetworkError(rawURL, "request failed", err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if f.MaxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, f.MaxBodyBytes)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		if isTimeout(err) {
			return nil, errorwrapper.NewNetworkError(rawURL, "response body timed out", errorwrapper.ErrTimeout)
		}
		return nil, errorwrapper.NewNetworkError(rawURL, "failed to read response body", err)
	}

	result := &Response{
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header,
		Body:        body,
		ContentType: mediaType(resp.Header.Get("Content-Type")),
		FinalURL:    resp.Request.URL.String(),
	}

	f.logger.Debug().
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Int("body_bytes", len(body)).
		Str("content_type", result.ContentType).
		Msg("Fetched resource")

	if !result.IsSuccess() {
		return result, errorwrapper.NewHTTPErrorWithURL(resp.StatusCode, "unexpected status", rawURL)
	}

	return result, nil
}

// isTimeout reports whether a transport error is a deadline expiry, from
// either the dialer, the response-header timer or the request context.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// mediaType normalizes a Content-Type header to its bare media type.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return parsed
}
