package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fetchwise/product-scraper/internal/cache"
	"github.com/fetchwise/product-scraper/internal/database"
	"github.com/fetchwise/product-scraper/internal/models"
	"github.com/fetchwise/product-scraper/internal/pipeline"
	"github.com/fetchwise/product-scraper/internal/proxy"
	"github.com/fetchwise/product-scraper/internal/queue"
	"github.com/fetchwise/product-scraper/internal/session"
	"github.com/fetchwise/product-scraper/internal/storage"
)

type mockScraper struct {
	mock.Mock
}

func (m *mockScraper) Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*pipeline.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockTaskStore struct {
	mock.Mock
}

func (m *mockTaskStore) MarkCompleted(ctx context.Context, id, platform string) error {
	args := m.Called(ctx, id, platform)
	return args.Error(0)
}

func (m *mockTaskStore) MarkFailed(ctx context.Context, id, errorMessage string) error {
	args := m.Called(ctx, id, errorMessage)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishProductScraped(ctx context.Context, product *database.StoredProduct, diag *models.Diagnostics) error {
	args := m.Called(ctx, product, diag)
	return args.Error(0)
}

type scriptedStep struct {
	task *models.ScrapeTask
	err  error
}

// scriptedSource replays a fixed sequence of Next outcomes and reports the
// queue as closed once the script runs out.
type scriptedSource struct {
	mu    sync.Mutex
	steps []scriptedStep
}

func (s *scriptedSource) Next(ctx context.Context) (*models.ScrapeTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.steps) == 0 {
		return nil, queue.ErrQueueClosed
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step.task, step.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func queueTask(id, url string) *models.ScrapeTask {
	return &models.ScrapeTask{
		ID:          id,
		URL:         url,
		Status:      models.TaskStatusPending,
		ProductHash: cache.Hash(url),
		CreatedAt:   time.Now(),
	}
}

func scrapeResult(url, platform string) *pipeline.Result {
	price := 49.95
	return &pipeline.Result{
		Record: &models.ProductRecord{
			Title:    "Aurora Desk Lamp",
			Price:    &price,
			Currency: "EUR",
			Images:   []string{"https://cdn.example.com/img/lamp.jpg"},
		},
		Diagnostics: models.Diagnostics{
			OriginalURL:        url,
			FinalURL:           url,
			Platform:           platform,
			PlatformConfidence: 0.8,
			Provenance:         map[string]string{"title": "meta_tags"},
			ScrapedAt:          time.Now(),
		},
	}
}

func TestPoolProcessesQueueTasks(t *testing.T) {
	urlA := "https://shop.example.com/p/lamp"
	urlB := "https://shop.example.com/p/chair"

	q := queue.NewInMemoryQueue()
	require.NoError(t, q.Push(queueTask("task-a", urlA)))
	require.NoError(t, q.Push(queueTask("task-b", urlB)))
	require.NoError(t, q.Close())

	store, err := storage.NewResultStore("")
	require.NoError(t, err)
	_, err = store.Register(urlA)
	require.NoError(t, err)
	_, err = store.Register(urlB)
	require.NoError(t, err)

	scraper := new(mockScraper)
	scraper.On("Run", mock.Anything, mock.MatchedBy(func(req pipeline.Request) bool {
		return req.URL == urlA
	})).Return(scrapeResult(urlA, "generic"), nil).Once()
	scraper.On("Run", mock.Anything, mock.MatchedBy(func(req pipeline.Request) bool {
		return req.URL == urlB
	})).Return(scrapeResult(urlB, "generic"), nil).Once()

	tasks := new(mockTaskStore)
	tasks.On("MarkCompleted", mock.Anything, "task-a", "generic").Return(nil).Once()
	tasks.On("MarkCompleted", mock.Anything, "task-b", "generic").Return(nil).Once()

	publisher := new(mockPublisher)
	publisher.On("PublishProductScraped", mock.Anything, mock.MatchedBy(func(p *database.StoredProduct) bool {
		return p.URLHash == cache.Hash(urlA) && p.Title == "Aurora Desk Lamp"
	}), mock.Anything).Return(nil).Once()
	publisher.On("PublishProductScraped", mock.Anything, mock.MatchedBy(func(p *database.StoredProduct) bool {
		return p.URLHash == cache.Hash(urlB)
	}), mock.Anything).Return(nil).Once()

	pool := NewPool(scraper, NewQueueSource(q), quietLogger(), Options{
		Workers:   1,
		Tasks:     tasks,
		Publisher: publisher,
		Results:   store,
	})

	pool.Start(context.Background())
	pool.Wait()

	scraper.AssertExpectations(t)
	tasks.AssertExpectations(t)
	publisher.AssertExpectations(t)

	res, ok := store.Get(cache.Hash(urlA))
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusCompleted, res.Status)
	require.NotNil(t, res.Record)
	assert.Equal(t, "Aurora Desk Lamp", res.Record.Title)

	stats := store.Stats()
	assert.Equal(t, 2, stats["completed"])
}

func TestPoolMarksTaskFailed(t *testing.T) {
	url := "https://shop.example.com/p/broken"

	q := queue.NewInMemoryQueue()
	require.NoError(t, q.Push(queueTask("task-x", url)))
	require.NoError(t, q.Close())

	store, err := storage.NewResultStore("")
	require.NoError(t, err)
	_, err = store.Register(url)
	require.NoError(t, err)

	scrapeErr := &session.NavigationError{URL: url, Err: errors.New("net::ERR_TIMED_OUT")}

	scraper := new(mockScraper)
	scraper.On("Run", mock.Anything, mock.Anything).Return(nil, scrapeErr).Once()

	tasks := new(mockTaskStore)
	tasks.On("MarkFailed", mock.Anything, "task-x", scrapeErr.Error()).Return(nil).Once()

	publisher := new(mockPublisher)

	pool := NewPool(scraper, NewQueueSource(q), quietLogger(), Options{
		Workers:   1,
		Tasks:     tasks,
		Publisher: publisher,
		Results:   store,
	})

	pool.Start(context.Background())
	pool.Wait()

	scraper.AssertExpectations(t)
	tasks.AssertExpectations(t)
	publisher.AssertNotCalled(t, "PublishProductScraped", mock.Anything, mock.Anything, mock.Anything)

	res, ok := store.Get(cache.Hash(url))
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusFailed, res.Status)
	assert.Contains(t, res.Error, "navigation to")
}

func TestPoolSkipsPublishOnCacheHit(t *testing.T) {
	url := "https://shop.example.com/p/cached"

	q := queue.NewInMemoryQueue()
	require.NoError(t, q.Push(queueTask("task-c", url)))
	require.NoError(t, q.Close())

	result := scrapeResult(url, "generic")
	result.Diagnostics.CacheHit = true

	scraper := new(mockScraper)
	scraper.On("Run", mock.Anything, mock.Anything).Return(result, nil).Once()

	tasks := new(mockTaskStore)
	tasks.On("MarkCompleted", mock.Anything, "task-c", "generic").Return(nil).Once()

	publisher := new(mockPublisher)

	pool := NewPool(scraper, NewQueueSource(q), quietLogger(), Options{
		Workers:   1,
		Tasks:     tasks,
		Publisher: publisher,
	})

	pool.Start(context.Background())
	pool.Wait()

	tasks.AssertExpectations(t)
	publisher.AssertNotCalled(t, "PublishProductScraped", mock.Anything, mock.Anything, mock.Anything)
}

func TestPoolContinuesAfterSourceError(t *testing.T) {
	url := "https://shop.example.com/p/flaky"

	source := &scriptedSource{steps: []scriptedStep{
		{err: errors.New("connection reset")},
		{task: queueTask("task-f", url)},
	}}

	scraper := new(mockScraper)
	scraper.On("Run", mock.Anything, mock.Anything).Return(scrapeResult(url, "generic"), nil).Once()

	pool := NewPool(scraper, source, quietLogger(), Options{Workers: 1})
	pool.retryDelay = 10 * time.Millisecond

	pool.Start(context.Background())
	pool.Wait()

	scraper.AssertExpectations(t)
}

func TestPoolStopsOnContextCancel(t *testing.T) {
	q := queue.NewInMemoryQueue()
	scraper := new(mockScraper)

	pool := NewPool(scraper, NewQueueSource(q), quietLogger(), Options{Workers: 2})

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not stop after cancellation")
	}
}

func TestIsBlockError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		block bool
	}{
		{"navigation failure", &session.NavigationError{URL: "https://x", Err: errors.New("timeout")}, true},
		{"block page", &session.BlockDetectedError{URL: "https://x", Indicator: "captcha"}, true},
		{"proxy exhausted", proxy.ErrProxyExhausted, true},
		{"wrapped proxy exhausted", fmt.Errorf("session gave up: %w", proxy.ErrProxyExhausted), true},
		{"no product data", pipeline.ErrNoProductData, false},
		{"invalid url", pipeline.ErrInvalidURL, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.block, isBlockError(tt.err))
		})
	}
}
