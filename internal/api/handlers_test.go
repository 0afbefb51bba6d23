package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fetchwise/product-scraper/internal/cache"
	"github.com/fetchwise/product-scraper/internal/database"
	"github.com/fetchwise/product-scraper/internal/models"
	"github.com/fetchwise/product-scraper/internal/pipeline"
	"github.com/fetchwise/product-scraper/internal/session"
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

func (m *mockScraper) Platforms() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

type mockTaskStore struct {
	mock.Mock
}

func (m *mockTaskStore) Insert(ctx context.Context, task *models.ScrapeTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockTaskStore) Get(ctx context.Context, id string) (*models.ScrapeTask, error) {
	args := m.Called(ctx, id)
	if task := args.Get(0); task != nil {
		return task.(*models.ScrapeTask), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTaskStore) Stats(ctx context.Context) (*database.Stats, error) {
	args := m.Called(ctx)
	if stats := args.Get(0); stats != nil {
		return stats.(*database.Stats), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockProductStore struct {
	mock.Mock
}

func (m *mockProductStore) Get(ctx context.Context, urlHash string) (*database.StoredProduct, error) {
	args := m.Called(ctx, urlHash)
	if p := args.Get(0); p != nil {
		return p.(*database.StoredProduct), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockOutboxMonitor struct {
	pending    int64
	deadLetter int64
}

func (m *mockOutboxMonitor) GetPendingCount(ctx context.Context) (int64, error) {
	return m.pending, nil
}

func (m *mockOutboxMonitor) GetDeadLetterCount(ctx context.Context) (int64, error) {
	return m.deadLetter, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandlers(scraper *mockScraper, tasks *mockTaskStore, products *mockProductStore, opts Options) *Handlers {
	return NewHandlers(scraper, tasks, products, quietLogger(), opts)
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateScrapeQueuesTask(t *testing.T) {
	url := "https://shop.example.com/p/lamp"

	tasks := new(mockTaskStore)
	tasks.On("Insert", mock.Anything, mock.MatchedBy(func(task *models.ScrapeTask) bool {
		return task.URL == url && task.Proxy == "http://proxy:8080"
	})).Run(func(args mock.Arguments) {
		task := args.Get(1).(*models.ScrapeTask)
		task.ID = "4f9c6d1e-8a7b-4f70-9d7c-0a1b2c3d4e5f"
		task.Status = models.TaskStatusPending
	}).Return(nil).Once()

	h := newTestHandlers(new(mockScraper), tasks, new(mockProductStore), Options{})

	rec := postJSON(t, h.Routes(), "/scrape", ScrapeRequest{
		URL:   url,
		Proxy: "http://proxy:8080",
	})

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp TaskCreatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "4f9c6d1e-8a7b-4f70-9d7c-0a1b2c3d4e5f", resp.TaskID)
	assert.Equal(t, "pending", resp.Status)
	tasks.AssertExpectations(t)
}

func TestCreateScrapeInline(t *testing.T) {
	url := "https://shop.example.com/p/lamp"
	price := 49.95

	scraper := new(mockScraper)
	scraper.On("Run", mock.Anything, mock.MatchedBy(func(req pipeline.Request) bool {
		return req.URL == url && req.ForceRefresh
	})).Return(&pipeline.Result{
		Record: &models.ProductRecord{Title: "Aurora Desk Lamp", Price: &price, Currency: "EUR"},
		Diagnostics: models.Diagnostics{
			OriginalURL: url,
			FinalURL:    url,
			Platform:    "generic",
			ScrapedAt:   time.Now(),
		},
	}, nil).Once()

	h := newTestHandlers(scraper, new(mockTaskStore), new(mockProductStore), Options{})

	rec := postJSON(t, h.Routes(), "/scrape", ScrapeRequest{
		URL:          url,
		ForceRefresh: true,
		Wait:         true,
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, cache.Hash(url), resp.URLHash)
	require.NotNil(t, resp.Product)
	assert.Equal(t, "Aurora Desk Lamp", resp.Product.Title)
	assert.Equal(t, "generic", resp.Diagnostics.Platform)
	scraper.AssertExpectations(t)
}

func TestCreateScrapeRejectsBadInput(t *testing.T) {
	h := newTestHandlers(new(mockScraper), new(mockTaskStore), new(mockProductStore), Options{})
	router := h.Routes()

	rec := postJSON(t, router, "/scrape", ScrapeRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "url is required")

	req := httptest.NewRequest(http.MethodPost, "/scrape", strings.NewReader("{not json"))
	raw := httptest.NewRecorder()
	router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestCreateScrapeInlineErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid url", fmt.Errorf("%w: ftp://x", pipeline.ErrInvalidURL), http.StatusBadRequest},
		{"no product data", fmt.Errorf("%w: https://x", pipeline.ErrNoProductData), http.StatusUnprocessableEntity},
		{"blocked", &session.BlockDetectedError{URL: "https://x", Indicator: "captcha"}, http.StatusBadGateway},
		{"navigation", &session.NavigationError{URL: "https://x", Err: errors.New("timeout")}, http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scraper := new(mockScraper)
			scraper.On("Run", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			h := newTestHandlers(scraper, new(mockTaskStore), new(mockProductStore), Options{})

			rec := postJSON(t, h.Routes(), "/scrape", ScrapeRequest{
				URL:  "https://shop.example.com/p/lamp",
				Wait: true,
			})

			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestGetTaskIncludesProductWhenDone(t *testing.T) {
	url := "https://shop.example.com/p/lamp"
	hash := cache.Hash(url)

	task := &models.ScrapeTask{
		ID:          "task-1",
		URL:         url,
		Status:      models.TaskStatusCompleted,
		Platform:    "generic",
		ProductHash: hash,
		CreatedAt:   time.Now(),
	}

	tasks := new(mockTaskStore)
	tasks.On("Get", mock.Anything, "task-1").Return(task, nil).Once()

	products := new(mockProductStore)
	products.On("Get", mock.Anything, hash).Return(&database.StoredProduct{
		URLHash: hash,
		URL:     url,
		Title:   "Aurora Desk Lamp",
		Record:  models.ProductRecord{Title: "Aurora Desk Lamp"},
	}, nil).Once()

	h := newTestHandlers(new(mockScraper), tasks, products, Options{})

	rec := get(h.Routes(), "/tasks/task-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "task-1", resp.ID)
	assert.Equal(t, models.TaskStatusCompleted, resp.Status)
	require.NotNil(t, resp.Product)
	assert.Equal(t, "Aurora Desk Lamp", resp.Product.Title)
}

func TestGetTaskPendingHasNoProduct(t *testing.T) {
	task := &models.ScrapeTask{
		ID:     "task-2",
		URL:    "https://shop.example.com/p/chair",
		Status: models.TaskStatusPending,
	}

	tasks := new(mockTaskStore)
	tasks.On("Get", mock.Anything, "task-2").Return(task, nil).Once()

	products := new(mockProductStore)

	h := newTestHandlers(new(mockScraper), tasks, products, Options{})

	rec := get(h.Routes(), "/tasks/task-2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"product"`)
	products.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestGetTaskNotFound(t *testing.T) {
	tasks := new(mockTaskStore)
	tasks.On("Get", mock.Anything, "missing").Return(nil, nil).Once()

	h := newTestHandlers(new(mockScraper), tasks, new(mockProductStore), Options{})

	rec := get(h.Routes(), "/tasks/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "task not found")
}

func TestGetProduct(t *testing.T) {
	hash := cache.Hash("https://shop.example.com/p/lamp")

	products := new(mockProductStore)
	products.On("Get", mock.Anything, hash).Return(&database.StoredProduct{
		URLHash:  hash,
		URL:      "https://shop.example.com/p/lamp",
		Platform: "generic",
		Title:    "Aurora Desk Lamp",
		Record:   models.ProductRecord{Title: "Aurora Desk Lamp"},
	}, nil).Once()

	h := newTestHandlers(new(mockScraper), new(mockTaskStore), products, Options{})

	rec := get(h.Routes(), "/products/"+hash)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp database.StoredProduct
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Aurora Desk Lamp", resp.Title)
	assert.Equal(t, "generic", resp.Platform)
}

func TestGetProductNotFound(t *testing.T) {
	products := new(mockProductStore)
	products.On("Get", mock.Anything, "deadbeef").Return(nil, nil).Once()

	h := newTestHandlers(new(mockScraper), new(mockTaskStore), products, Options{})

	rec := get(h.Routes(), "/products/deadbeef")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPlatforms(t *testing.T) {
	scraper := new(mockScraper)
	scraper.On("Platforms").Return([]string{"amazon", "bol", "generic"}).Once()

	h := newTestHandlers(scraper, new(mockTaskStore), new(mockProductStore), Options{})

	rec := get(h.Routes(), "/platforms")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["platforms"], "amazon")
	assert.Contains(t, resp["platforms"], "generic")
}

func TestGetStats(t *testing.T) {
	tasks := new(mockTaskStore)
	tasks.On("Stats", mock.Anything).Return(&database.Stats{
		TotalTasks:     10,
		CompletedTasks: 7,
		FailedTasks:    1,
		PendingTasks:   2,
		TotalProducts:  7,
		SuccessRate:    87.5,
	}, nil).Once()

	h := newTestHandlers(new(mockScraper), tasks, new(mockProductStore), Options{})

	rec := get(h.Routes(), "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp database.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.TotalTasks)
	assert.Equal(t, 7, resp.CompletedTasks)
	assert.InDelta(t, 87.5, resp.SuccessRate, 0.01)
}

func TestHealthAllComponentsUp(t *testing.T) {
	h := newTestHandlers(new(mockScraper), new(mockTaskStore), new(mockProductStore), Options{
		Checks: map[string]ComponentChecker{
			"database": func(ctx context.Context) error { return nil },
			"redis":    func(ctx context.Context) error { return nil },
		},
		Outbox: &mockOutboxMonitor{pending: 3},
	})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])

	components := resp["components"].(map[string]interface{})
	assert.Equal(t, "ok", components["database"])
	assert.Equal(t, "ok", components["redis"])
}

func TestHealthFailingComponent(t *testing.T) {
	h := newTestHandlers(new(mockScraper), new(mockTaskStore), new(mockProductStore), Options{
		Checks: map[string]ComponentChecker{
			"database": func(ctx context.Context) error { return nil },
			"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
		},
	})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp["status"])

	components := resp["components"].(map[string]interface{})
	assert.Equal(t, "connection refused", components["redis"])
}

func TestHealthDeadLetterBacklog(t *testing.T) {
	h := newTestHandlers(new(mockScraper), new(mockTaskStore), new(mockProductStore), Options{
		Outbox: &mockOutboxMonitor{deadLetter: 150},
	})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp["status"])
}
