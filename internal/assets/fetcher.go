// Package assets implements the Asset Fetcher: retrieving tenant footer HTML
// and logo assets from S3-compatible object storage, with bounded retry and
// a TTL cache so repeated sends for the same tenant don't re-fetch per email.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eventforge/batchjobs/internal/logger"
)

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = time.Second
	prewarmMaxAttempts  = 5
	prewarmInitialDelay = 2 * time.Second
	cacheMaxEntries     = 1000
	cacheTTL            = time.Hour
	logoPlaceholder     = "{{LOGO_URL}}"
)

// Fetcher retrieves footer HTML from S3 and substitutes the tenant's logo
// URL, caching results per (tenantID, logoImageURL).
type Fetcher struct {
	client *s3.Client

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
}

type cacheKey struct {
	tenantID     string
	logoImageURL string
}

type cacheEntry struct {
	html      string
	expiresAt time.Time
}

// New builds a Fetcher using the default AWS credential chain for the given
// region.
func New(ctx context.Context, region string) (*Fetcher, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Fetcher{
		client: s3.NewFromConfig(awsCfg),
		cache:  make(map[cacheKey]cacheEntry),
	}, nil
}

// FetchFooterHTML retrieves the footer HTML object referenced by footerURL
// (an s3:// or https:// virtual-hosted URL) and substitutes logoImageURL for
// the {{LOGO_URL}} placeholder. It never returns an error to the caller: on
// persistent failure it returns an empty string so email dispatch can fall
// back to the content builder's no-footer path.
func (f *Fetcher) FetchFooterHTML(ctx context.Context, tenantID, footerURL, logoImageURL string) string {
	if footerURL == "" {
		return ""
	}

	key := cacheKey{tenantID: tenantID, logoImageURL: logoImageURL}
	if html, ok := f.cached(key); ok {
		return html
	}

	html, err := f.fetchWithRetry(ctx, footerURL, defaultMaxAttempts, defaultInitialDelay)
	if err != nil {
		logger.FromContext(ctx).Warn("asset fetch failed, continuing without footer",
			"tenant_id", tenantID, "error", err)
		return ""
	}

	html = strings.ReplaceAll(html, logoPlaceholder, logoImageURL)
	f.store(key, html)
	return html
}

// Prewarm eagerly populates the cache ahead of a bulk send, using a larger
// retry budget since it runs once per job rather than per recipient and the
// caller supplies its own deadline via ctx.
func (f *Fetcher) Prewarm(ctx context.Context, tenantID, footerURL, logoImageURL string) {
	if footerURL == "" {
		return
	}
	key := cacheKey{tenantID: tenantID, logoImageURL: logoImageURL}
	if _, ok := f.cached(key); ok {
		return
	}

	html, err := f.fetchWithRetry(ctx, footerURL, prewarmMaxAttempts, prewarmInitialDelay)
	if err != nil {
		logger.FromContext(ctx).Warn("asset prewarm failed", "tenant_id", tenantID, "error", err)
		return
	}

	html = strings.ReplaceAll(html, logoPlaceholder, logoImageURL)
	f.store(key, html)
}

func (f *Fetcher) cached(key cacheKey) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.html, true
}

func (f *Fetcher) store(key cacheKey, html string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.cache) >= cacheMaxEntries {
		f.evictOneLocked()
	}
	f.cache[key] = cacheEntry{html: html, expiresAt: time.Now().Add(cacheTTL)}
}

// evictOneLocked drops one expired entry if it finds one, otherwise an
// arbitrary entry (not necessarily the oldest). Map iteration order is
// randomized in Go, which is sufficient for a soft size bound; this is not
// an LRU.
func (f *Fetcher) evictOneLocked() {
	now := time.Now()
	for k, v := range f.cache {
		if now.After(v.expiresAt) {
			delete(f.cache, k)
			return
		}
	}
	for k := range f.cache {
		delete(f.cache, k)
		return
	}
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, rawURL string, maxAttempts int, initialDelay time.Duration) (string, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return "", err
	}

	delay := initialDelay
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, err := f.getObject(ctx, bucket, key)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return "", fmt.Errorf("fetch %s after %d attempts: %w", rawURL, maxAttempts, lastErr)
}

func (f *Fetcher) getObject(ctx context.Context, bucket, key string) (string, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseS3URL accepts either s3://bucket/key or a virtual-hosted
// https://bucket.s3.amazonaws.com/key style URL.
func parseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse asset url: %w", err)
	}

	if u.Scheme == "s3" {
		return u.Host, strings.TrimPrefix(u.Path, "/"), nil
	}

	host := u.Host
	if idx := strings.Index(host, ".s3"); idx > 0 {
		return host[:idx], strings.TrimPrefix(u.Path, "/"), nil
	}

	return "", "", errors.New("unrecognized asset url scheme: " + raw)
}
