// Package worker runs scrape tasks through the pipeline. A Pool pulls tasks
// from a TaskSource, paces itself with a shared rate limiter, and fans each
// outcome out to the optional task store, event publisher and result sink.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fetchwise/product-scraper/internal/cache"
	"github.com/fetchwise/product-scraper/internal/database"
	"github.com/fetchwise/product-scraper/internal/models"
	"github.com/fetchwise/product-scraper/internal/pipeline"
	"github.com/fetchwise/product-scraper/internal/proxy"
	"github.com/fetchwise/product-scraper/internal/queue"
	"github.com/fetchwise/product-scraper/internal/ratelimit"
	"github.com/fetchwise/product-scraper/internal/session"
)

// Scraper is the part of the pipeline a worker needs.
type Scraper interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// TaskStore records task state transitions. database.TaskRepository
// satisfies it.
type TaskStore interface {
	MarkCompleted(ctx context.Context, id, platform string) error
	MarkFailed(ctx context.Context, id, errorMessage string) error
}

// Publisher emits an event for every freshly scraped product.
// events.Publisher satisfies it.
type Publisher interface {
	PublishProductScraped(ctx context.Context, product *database.StoredProduct, diag *models.Diagnostics) error
}

// ResultSink collects per-URL outcomes. storage.ResultStore satisfies it.
type ResultSink interface {
	Complete(urlHash string, record *models.ProductRecord, diag *models.Diagnostics) error
	Fail(urlHash, errorMsg string) error
}

// Options configure a Pool. Limiter, Tasks, Publisher and Results are all
// optional; a nil hook is skipped.
type Options struct {
	Workers   int
	Limiter   *ratelimit.AdaptiveRateLimiter
	Tasks     TaskStore
	Publisher Publisher
	Results   ResultSink
}

// Pool runs a fixed number of workers over a TaskSource.
type Pool struct {
	scraper    Scraper
	source     TaskSource
	limiter    *ratelimit.AdaptiveRateLimiter
	tasks      TaskStore
	publisher  Publisher
	results    ResultSink
	logger     *slog.Logger
	size       int
	retryDelay time.Duration
	wg         sync.WaitGroup
}

func NewPool(scraper Scraper, source TaskSource, logger *slog.Logger, opts Options) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	size := opts.Workers
	if size <= 0 {
		size = 1
	}

	return &Pool{
		scraper:    scraper,
		source:     source,
		limiter:    opts.Limiter,
		tasks:      opts.Tasks,
		publisher:  opts.Publisher,
		results:    opts.Results,
		logger:     logger.With("component", "worker"),
		size:       size,
		retryDelay: time.Second,
	}
}

// Start launches the workers. They run until ctx ends or the source is
// drained and closed; Wait blocks until the last one returns.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("worker pool started", "workers", p.size)

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, p.logger.With("worker", id))
		}(i)
	}
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, log *slog.Logger) {
	for {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				log.Info("worker stopped", "reason", err)
				return
			}
		}

		task, err := p.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrQueueClosed) ||
				errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info("worker stopped", "reason", err)
				return
			}

			log.Warn("failed to fetch next task", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.retryDelay):
			}
			continue
		}

		p.process(ctx, log, task)
	}
}

func (p *Pool) process(ctx context.Context, log *slog.Logger, task *models.ScrapeTask) {
	log.Info("processing task", "task_id", task.ID, "url", task.URL)

	result, err := p.scraper.Run(ctx, pipeline.Request{
		URL:          task.URL,
		Proxy:        task.Proxy,
		UserAgent:    task.UserAgent,
		BlockImages:  task.BlockImages,
		ForceRefresh: task.ForceRefresh,
	})
	if err != nil {
		if p.limiter != nil && isBlockError(err) {
			p.limiter.RecordBlock()
		}
		log.Error("task failed", "task_id", task.ID, "url", task.URL, "error", err)
		p.fail(ctx, task, err)
		return
	}

	// Cache hits never touched the site, so they say nothing about pacing.
	if p.limiter != nil && !result.Diagnostics.CacheHit {
		p.limiter.RecordSuccess()
	}

	p.complete(ctx, log, task, result)
}

func (p *Pool) complete(ctx context.Context, log *slog.Logger, task *models.ScrapeTask, result *pipeline.Result) {
	diag := &result.Diagnostics
	hash := taskHash(task)

	if p.tasks != nil {
		if err := p.tasks.MarkCompleted(ctx, task.ID, diag.Platform); err != nil {
			log.Error("failed to update task status", "task_id", task.ID, "error", err)
		}
	}

	if p.publisher != nil && !diag.CacheHit {
		product := &database.StoredProduct{
			URLHash:    hash,
			URL:        task.URL,
			Platform:   diag.Platform,
			Title:      result.Record.Title,
			Record:     *result.Record,
			Provenance: diag.Provenance,
			ScrapedAt:  diag.ScrapedAt,
		}
		if err := p.publisher.PublishProductScraped(ctx, product, diag); err != nil {
			log.Error("failed to publish product event", "task_id", task.ID, "url_hash", hash, "error", err)
		}
	}

	if p.results != nil {
		if err := p.results.Complete(hash, result.Record, diag); err != nil {
			log.Warn("failed to record result", "task_id", task.ID, "error", err)
		}
	}

	log.Info("task completed",
		"task_id", task.ID,
		"url", task.URL,
		"platform", diag.Platform,
		"title", result.Record.Title,
		"cache_hit", diag.CacheHit)
}

func (p *Pool) fail(ctx context.Context, task *models.ScrapeTask, taskErr error) {
	if p.tasks != nil {
		if err := p.tasks.MarkFailed(ctx, task.ID, taskErr.Error()); err != nil {
			p.logger.Error("failed to update task status", "task_id", task.ID, "error", err)
		}
	}

	if p.results != nil {
		if err := p.results.Fail(taskHash(task), taskErr.Error()); err != nil {
			p.logger.Warn("failed to record result", "task_id", task.ID, "error", err)
		}
	}
}

func taskHash(task *models.ScrapeTask) string {
	if task.ProductHash != "" {
		return task.ProductHash
	}
	return cache.Hash(task.URL)
}

// isBlockError reports whether a failure came from the site pushing back
// rather than from bad input. Only those count against the rate limiter.
func isBlockError(err error) bool {
	var blocked *session.BlockDetectedError
	var nav *session.NavigationError
	return errors.As(err, &blocked) || errors.As(err, &nav) || errors.Is(err, proxy.ErrProxyExhausted)
}
