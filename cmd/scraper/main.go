package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fetchwise/product-scraper/internal/browser"
	"github.com/fetchwise/product-scraper/internal/cache"
	"github.com/fetchwise/product-scraper/internal/config"
	"github.com/fetchwise/product-scraper/internal/models"
	"github.com/fetchwise/product-scraper/internal/pipeline"
	"github.com/fetchwise/product-scraper/internal/proxy"
	"github.com/fetchwise/product-scraper/internal/queue"
	"github.com/fetchwise/product-scraper/internal/ratelimit"
	"github.com/fetchwise/product-scraper/internal/storage"
	"github.com/fetchwise/product-scraper/internal/worker"
	"github.com/fetchwise/product-scraper/pkg/logger"
)

func main() {
	var (
		urls      = flag.String("urls", "", "Comma-separated list of product URLs to scrape")
		inputFile = flag.String("file", "", "File containing URLs (one per line, # lines skipped)")
		output    = flag.String("output", "stdout", "Output: stdout or a JSON file path")
		headless  = flag.Bool("headless", true, "Run browser in headless mode")
		proxies   = flag.String("proxy", "", "Comma-separated proxy URLs")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logg.Info("shutdown signal received")
		cancel()
	}()

	urlList, err := loadURLs(*urls, *inputFile)
	if err != nil {
		logg.Error("failed to load urls", "error", err)
		os.Exit(1)
	}
	if len(urlList) == 0 {
		fmt.Println("No URLs to scrape. Use -urls or -file to specify products.")
		flag.Usage()
		os.Exit(1)
	}

	storeFile := ""
	if *output != "stdout" {
		storeFile = *output
	}
	store, err := storage.NewResultStore(storeFile)
	if err != nil {
		logg.Error("failed to open result store", "file", storeFile, "error", err)
		os.Exit(1)
	}

	factory, err := browser.NewFactory(logg, *headless && cfg.Browser.Headless)
	if err != nil {
		logg.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer factory.Close()

	proxyURLs := cfg.Proxy.URLs
	if *proxies != "" {
		proxyURLs = splitList(*proxies)
	}

	pipe := pipeline.New(factory, proxy.NewPool(proxyURLs), cache.NewMemoryCache(), logg, pipeline.Options{
		MaxRotations:  cfg.Scraper.MaxRotations,
		NavTimeout:    cfg.Browser.NavTimeout,
		ContentFloor:  cfg.Browser.ContentFloor,
		CacheTTL:      cfg.Scraper.CacheTTL,
		BlockImages:   cfg.Scraper.BlockImages,
		MinImageWidth: cfg.Scraper.MinImageWidth,
	})

	taskQueue := queue.NewInMemoryQueue()
	queued := enqueue(taskQueue, store, urlList, logg)
	taskQueue.Close()

	if queued == 0 {
		logg.Error("no tasks could be queued")
		os.Exit(1)
	}

	limiter := ratelimit.NewAdaptiveRateLimiter(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax)

	pool := worker.NewPool(pipe, worker.NewQueueSource(taskQueue), logg, worker.Options{
		Workers: cfg.Scraper.Workers,
		Limiter: limiter,
		Results: store,
	})

	logg.Info("starting scrape", "tasks", queued, "workers", cfg.Scraper.Workers)
	pool.Start(ctx)
	pool.Wait()

	if *output == "stdout" {
		printResults(store.Results())
	} else {
		logg.Info("results written", "file", *output)
	}

	stats := store.Stats()
	logg.Info("scraping completed",
		"total", stats["total"],
		"completed", stats["completed"],
		"failed", stats["failed"])
}

func loadURLs(urls, inputFile string) ([]string, error) {
	var list []string

	if urls != "" {
		list = append(list, splitList(urls)...)
	}

	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				list = append(list, line)
			}
		}
	}

	return list, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func enqueue(q queue.Queue, store *storage.ResultStore, urls []string, logg *slog.Logger) int {
	queued := 0
	for _, u := range urls {
		res, err := store.Register(u)
		if err != nil {
			logg.Warn("skipping url", "url", u, "error", err)
			continue
		}

		task := &models.ScrapeTask{
			ID:          res.TaskID,
			URL:         u,
			Status:      models.TaskStatusPending,
			ProductHash: res.URLHash,
			CreatedAt:   time.Now(),
		}
		if err := q.Push(task); err != nil {
			logg.Warn("failed to queue url", "url", u, "error", err)
			continue
		}
		queued++
	}
	return queued
}

func printResults(results []*storage.ScrapeResult) {
	for _, res := range results {
		if res.Status == models.TaskStatusCompleted && res.Record != nil {
			fmt.Printf("Product: %s\n", res.Record.Title)
			if res.Record.Price != nil {
				fmt.Printf("Price: %.2f %s\n", *res.Record.Price, res.Record.Currency)
			}
			if res.Diagnostics != nil {
				fmt.Printf("Platform: %s\n", res.Diagnostics.Platform)
			}
			fmt.Printf("URL: %s\n", res.URL)
		} else {
			fmt.Printf("Failed: %s\n", res.URL)
			if res.Error != "" {
				fmt.Printf("Error: %s\n", res.Error)
			}
		}
		fmt.Println("---")
	}
}
