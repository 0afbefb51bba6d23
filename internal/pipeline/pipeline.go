// Package pipeline runs one URL end to end: cache lookup, browser fetch with
// block recovery, platform detection, source extraction, and fusion into a
// single product record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fetchwise/product-scraper/internal/cache"
	"github.com/fetchwise/product-scraper/internal/extract"
	"github.com/fetchwise/product-scraper/internal/fusion"
	"github.com/fetchwise/product-scraper/internal/models"
	"github.com/fetchwise/product-scraper/internal/normalize"
	"github.com/fetchwise/product-scraper/internal/proxy"
	"github.com/fetchwise/product-scraper/internal/session"
)

var (
	ErrInvalidURL    = errors.New("invalid product URL")
	ErrNoProductData = errors.New("no product data extracted")
)

// Request describes one scrape. Zero values mean "use the pipeline default".
type Request struct {
	URL          string
	Proxy        string
	UserAgent    string
	BlockImages  *bool
	ForceRefresh bool
}

// Result carries the fused record and the run's diagnostics.
type Result struct {
	Record      *models.ProductRecord
	Diagnostics models.Diagnostics
}

// Options tune pipeline behavior; zero values fall back to package defaults.
type Options struct {
	MaxRotations  int
	NavTimeout    time.Duration
	ContentFloor  int
	CacheTTL      time.Duration
	BlockImages   bool
	MinImageWidth int
}

type Pipeline struct {
	factory  session.DriverFactory
	recovery *session.Controller
	pool     *proxy.Pool
	agents   *proxy.UserAgents
	cache    cache.Cache
	detector *extract.Detector
	registry *extract.Registry
	logger   *slog.Logger
	opts     Options
}

// New wires a pipeline. store may be nil to disable caching.
func New(factory session.DriverFactory, pool *proxy.Pool, store cache.Cache, logger *slog.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = cache.DefaultTTL
	}
	return &Pipeline{
		factory:  factory,
		recovery: session.NewController(pool, logger),
		pool:     pool,
		agents:   proxy.NewUserAgents(),
		cache:    store,
		detector: extract.NewDetector(),
		registry: extract.NewRegistry(),
		logger:   logger.With("component", "pipeline"),
		opts:     opts,
	}
}

// Platforms lists the storefronts with dedicated extraction support.
func (p *Pipeline) Platforms() []string {
	return p.registry.Platforms()
}

// Run scrapes one URL. Partial records are success; ErrNoProductData means
// the page yielded nothing at all.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := validateURL(req.URL); err != nil {
		return nil, err
	}

	key := cache.Key(req.URL)
	if p.cache != nil && !req.ForceRefresh {
		if record, err := p.cache.Get(ctx, key); err == nil {
			det := p.detector.Detect(req.URL, "")
			p.logger.Info("cache hit", "url", req.URL, "platform", det.Platform)
			return &Result{
				Record: record,
				Diagnostics: models.Diagnostics{
					OriginalURL:        req.URL,
					FinalURL:           req.URL,
					Platform:           det.Platform,
					PlatformConfidence: det.Confidence,
					CacheHit:           true,
					ScrapedAt:          time.Now(),
				},
			}, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			p.logger.Warn("cache lookup failed", "url", req.URL, "error", err)
		}
	}

	sess := session.New(p.factory, p.recovery, p.logger, p.sessionOptions(req))
	defer sess.Close(ctx)

	content, finalURL, err := sess.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	det := p.detector.Detect(finalURL, content)
	p.logger.Debug("platform detected",
		"url", req.URL,
		"platform", det.Platform,
		"confidence", det.Confidence)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing page html: %w", err)
	}

	adapter := p.registry.Adapter(det.Platform)
	sources, srcErrs := adapter.Sources(doc, finalURL)
	for _, srcErr := range srcErrs {
		p.logger.Debug("source extraction issue", "url", req.URL, "error", srcErr)
	}

	record, prov, fieldErrs := fusion.Fuse(sources, fusion.Options{
		Domain:        normalize.Domain(finalURL),
		PageURL:       finalURL,
		MinImageWidth: p.opts.MinImageWidth,
	})
	for _, fieldErr := range fieldErrs {
		p.logger.Warn("field dropped during fusion", "url", req.URL, "error", fieldErr)
	}

	if record.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ErrNoProductData, req.URL)
	}

	diag := models.Diagnostics{
		OriginalURL:        req.URL,
		FinalURL:           finalURL,
		Redirected:         finalURL != req.URL,
		Platform:           det.Platform,
		PlatformConfidence: det.Confidence,
		Provenance:         provenanceStrings(prov),
		RotationAttempts:   sess.Rotations(),
		BlockedRequests:    sess.BlockedRequests(),
		ScrapedAt:          time.Now(),
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, record, p.opts.CacheTTL); err != nil {
			p.logger.Warn("cache write failed", "url", req.URL, "error", err)
		}
	}

	p.logger.Info("scrape complete",
		"url", req.URL,
		"platform", det.Platform,
		"title", record.Title,
		"sources", len(sources),
		"rotations", sess.Rotations())

	return &Result{Record: record, Diagnostics: diag}, nil
}

func (p *Pipeline) sessionOptions(req Request) session.Options {
	proxyURL := req.Proxy
	if proxyURL == "" && p.pool.Size() > 0 {
		if next, err := p.pool.Next(); err == nil {
			proxyURL = next
		}
	}

	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = p.agents.ForDomain(normalize.Domain(req.URL))
	}

	blockImages := p.opts.BlockImages
	if req.BlockImages != nil {
		blockImages = *req.BlockImages
	}

	return session.Options{
		URL:          req.URL,
		Proxy:        proxyURL,
		UserAgent:    userAgent,
		BlockImages:  blockImages,
		MaxRotations: p.opts.MaxRotations,
		NavTimeout:   p.opts.NavTimeout,
		ContentFloor: p.opts.ContentFloor,
	}
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return nil
}

func provenanceStrings(prov fusion.Provenance) map[string]string {
	if len(prov) == 0 {
		return nil
	}
	out := make(map[string]string, len(prov))
	for field, kind := range prov {
		out[field] = string(kind)
	}
	return out
}
