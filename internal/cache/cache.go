package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/aleister1102/webmirror/internal/assets"
	"github.com/aleister1102/webmirror/internal/errorwrapper"
	"github.com/aleister1102/webmirror/internal/fetcher"
)

// ErrScreened marks an asset refused by a content screen rather than a
// fetch failure. The caller removes the referencing element instead of
// leaving the original reference.
var ErrScreened = errors.New("asset refused by content screen")

// AssetRecord maps one canonical URL to its stored location. Immutable
// once created; the cache owns the mapping for the job's lifetime.
type AssetRecord struct {
	CanonicalURL string
	LocalPath    string // bundle-relative, e.g. "images/d41d8cd98f.png"
	Category     assets.Category
}

// LocalizeOptions tune a single localization.
type LocalizeOptions struct {
	// Screen, when set, inspects the fetched body; returning true
	// refuses the asset with ErrScreened and records nothing.
	Screen func(body []byte) bool
	// Transform, when set, rewrites the body before it is stored. Used
	// for stylesheet bodies whose nested url() references must point at
	// their localized copies.
	Transform func(body []byte) []byte
}

// DownloadCache is the identity and deduplication layer of one mirror job:
// at most one fetch per canonical URL, and every reference to that URL
// resolves to the same local path. Safe for concurrent use; concurrent
// requests for the same URL collapse into a single fetch.
type DownloadCache struct {
	fetch      *fetcher.Fetcher
	classifier *assets.Classifier
	outputDir  string
	logger     zerolog.Logger

	mu      sync.RWMutex
	records map[string]AssetRecord
	group   singleflight.Group
}

// NewDownloadCache creates a cache writing under outputDir
func NewDownloadCache(fetch *fetcher.Fetcher, outputDir string, logger zerolog.Logger) *DownloadCache {
	return &DownloadCache{
		fetch:      fetch,
		classifier: assets.NewClassifier(),
		outputDir:  outputDir,
		records:    make(map[string]AssetRecord),
		logger:     logger.With().Str("component", "DownloadCache").Logger(),
	}
}

// Lookup returns the record for a canonical URL, if one exists
func (dc *DownloadCache) Lookup(canonicalURL string) (AssetRecord, bool) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	record, ok := dc.records[canonicalURL]
	return record, ok
}

// Records returns a snapshot of all records created so far
func (dc *DownloadCache) Records() []AssetRecord {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	out := make([]AssetRecord, 0, len(dc.records))
	for _, record := range dc.records {
		out = append(out, record)
	}
	return out
}

// Localize returns the local path for a canonical URL, fetching and
// storing the asset on first sight.
func (dc *DownloadCache) Localize(ctx context.Context, canonicalURL string, category assets.Category) (string, error) {
	return dc.LocalizeWith(ctx, canonicalURL, category, LocalizeOptions{})
}

// LocalizeWith is Localize with a screen and/or transform applied on first
// fetch. Options only run when the asset is actually fetched; cache hits
// return the already-stored path untouched.
func (dc *DownloadCache) LocalizeWith(ctx context.Context, canonicalURL string, category assets.Category, opts LocalizeOptions) (string, error) {
	if record, ok := dc.Lookup(canonicalURL); ok {
		return record.LocalPath, nil
	}

	result, err, _ := dc.group.Do(canonicalURL, func() (interface{}, error) {
		// A concurrent duplicate may have completed between the lookup
		// and joining the flight.
		if record, ok := dc.Lookup(canonicalURL); ok {
			return record.LocalPath, nil
		}
		return dc.fetchAndStore(ctx, canonicalURL, category, opts)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// fetchAndStore performs the single fetch for a canonical URL and writes
// the asset into its category directory.
func (dc *DownloadCache) fetchAndStore(ctx context.Context, canonicalURL string, category assets.Category, opts LocalizeOptions) (string, error) {
	resp, err := dc.fetch.Fetch(ctx, canonicalURL)
	if err != nil {
		dc.logger.Warn().Err(err).Str("url", canonicalURL).Msg("Asset fetch failed")
		return "", err
	}

	body := resp.Body
	if opts.Screen != nil && opts.Screen(body) {
		dc.logger.Info().Str("url", canonicalURL).Msg("Asset refused by content screen")
		return "", ErrScreened
	}
	if opts.Transform != nil {
		body = opts.Transform(body)
	}

	// An uncategorized reference gets a second chance now that the
	// response content type is known.
	if category == assets.CategoryOther {
		category = dc.classifier.Classify(canonicalURL, resp.ContentType)
	}

	filename := hashedFilename(canonicalURL, dc.classifier.Extension(canonicalURL, resp.ContentType))
	localPath := category.Dir() + "/" + filename

	fullPath := filepath.Join(dc.outputDir, category.Dir(), filename)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", errorwrapper.WrapError(err, "failed to create asset directory")
	}
	if err := os.WriteFile(fullPath, body, 0644); err != nil {
		return "", errorwrapper.WrapError(err, "failed to write asset '"+localPath+"'")
	}

	record := AssetRecord{
		CanonicalURL: canonicalURL,
		LocalPath:    localPath,
		Category:     category,
	}

	dc.mu.Lock()
	dc.records[canonicalURL] = record
	dc.mu.Unlock()

	dc.logger.Debug().
		Str("url", canonicalURL).
		Str("local_path", localPath).
		Str("category", string(category)).
		Msg("Asset localized")

	return localPath, nil
}

// hashedFilename derives a collision-resistant, per-URL-stable filename:
// the first 10 hex characters of the URL hash plus the chosen extension.
func hashedFilename(canonicalURL, extension string) string {
	sum := md5.Sum([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])[:10] + extension
}
