// Package cache stores scraped product records keyed by a hash of the
// normalized product URL, so the same listing reached through different
// tracking links shares one entry.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/fetchwise/product-scraper/internal/models"
)

// ErrCacheMiss is returned when no live entry exists for a key.
var ErrCacheMiss = errors.New("cache miss")

const (
	keyPrefix = "scrape_cache:"

	// DefaultTTL keeps a scrape fresh for an hour; prices move slower than
	// that on the storefronts we target.
	DefaultTTL = time.Hour
)

// Cache is the storage contract the pipeline consumes.
type Cache interface {
	Get(ctx context.Context, key string) (*models.ProductRecord, error)
	Set(ctx context.Context, key string, record *models.ProductRecord, ttl time.Duration) error
	Close() error
}

// NormalizeURL canonicalizes a product URL before hashing: scheme and host
// lowercased, fragment dropped, tracking parameters stripped. The order of
// the remaining query parameters is preserved, since some storefronts treat
// it as significant.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if u.RawQuery != "" {
		kept := make([]string, 0, 4)
		for _, pair := range strings.Split(u.RawQuery, "&") {
			if pair == "" {
				continue
			}
			name := pair
			if i := strings.IndexByte(pair, '='); i >= 0 {
				name = pair[:i]
			}
			if isTrackingParam(name) {
				continue
			}
			kept = append(kept, pair)
		}
		u.RawQuery = strings.Join(kept, "&")
	}

	return u.String()
}

func isTrackingParam(name string) bool {
	name = strings.ToLower(name)
	if strings.HasPrefix(name, "utm_") {
		return true
	}
	switch name {
	case "ref", "tag", "fbclid", "gclid":
		return true
	}
	return false
}

// Hash returns the hex digest of the normalized URL. It doubles as the
// primary key for persisted products.
func Hash(rawURL string) string {
	sum := md5.Sum([]byte(NormalizeURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

// Key derives the storage key for a product URL.
func Key(rawURL string) string {
	return keyPrefix + Hash(rawURL)
}
