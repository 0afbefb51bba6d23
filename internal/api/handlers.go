// Package api exposes the scraper over HTTP: submit scrapes (inline or as
// queued tasks), poll tasks, read stored products, and check service health.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fetchwise/product-scraper/internal/cache"
	"github.com/fetchwise/product-scraper/internal/database"
	"github.com/fetchwise/product-scraper/internal/models"
	"github.com/fetchwise/product-scraper/internal/pipeline"
	"github.com/fetchwise/product-scraper/internal/proxy"
	"github.com/fetchwise/product-scraper/internal/session"
)

// Scraper runs scrapes inline for wait=true requests.
type Scraper interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	Platforms() []string
}

// TaskStore creates and reads scrape tasks. database.TaskRepository
// satisfies it.
type TaskStore interface {
	Insert(ctx context.Context, task *models.ScrapeTask) error
	Get(ctx context.Context, id string) (*models.ScrapeTask, error)
	Stats(ctx context.Context) (*database.Stats, error)
}

// ProductStore reads stored products. database.ProductRepository satisfies it.
type ProductStore interface {
	Get(ctx context.Context, urlHash string) (*database.StoredProduct, error)
}

// ComponentChecker probes one dependency for the health endpoint.
type ComponentChecker func(ctx context.Context) error

// OutboxMonitor reports outbox backlog sizes. events.Relay satisfies it.
type OutboxMonitor interface {
	GetPendingCount(ctx context.Context) (int64, error)
	GetDeadLetterCount(ctx context.Context) (int64, error)
}

// Options carry the optional parts of the handler set. Checks and Outbox
// feed /health; both may be empty.
type Options struct {
	Checks map[string]ComponentChecker
	Outbox OutboxMonitor
}

type Handlers struct {
	scraper  Scraper
	tasks    TaskStore
	products ProductStore
	checks   map[string]ComponentChecker
	outbox   OutboxMonitor
	logger   *slog.Logger
}

func NewHandlers(scraper Scraper, tasks TaskStore, products ProductStore, logger *slog.Logger, opts Options) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		scraper:  scraper,
		tasks:    tasks,
		products: products,
		checks:   opts.Checks,
		outbox:   opts.Outbox,
		logger:   logger.With("component", "api"),
	}
}

// Routes returns the /api/v1 router. The caller mounts it and wires /health
// separately.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/scrape", h.CreateScrape)
	r.Get("/tasks/{taskID}", h.GetTask)
	r.Get("/products/{urlHash}", h.GetProduct)
	r.Get("/platforms", h.ListPlatforms)
	r.Get("/stats", h.GetStats)
	return r
}

// ScrapeRequest is the body of POST /scrape. With wait=true the scrape runs
// inside the request and the record comes back inline; otherwise the task is
// queued and the response carries its ID.
type ScrapeRequest struct {
	URL          string `json:"url"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
	Proxy        string `json:"proxy,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
	BlockImages  *bool  `json:"block_images,omitempty"`
	Wait         bool   `json:"wait,omitempty"`
}

// ScrapeResponse is the inline (wait=true) result.
type ScrapeResponse struct {
	URLHash     string                `json:"url_hash"`
	Product     *models.ProductRecord `json:"product"`
	Diagnostics models.Diagnostics    `json:"diagnostics"`
}

// TaskCreatedResponse acknowledges a queued scrape.
type TaskCreatedResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *Handlers) CreateScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	if req.Wait {
		h.scrapeInline(w, r, req)
		return
	}

	task := &models.ScrapeTask{
		URL:          req.URL,
		Proxy:        req.Proxy,
		UserAgent:    req.UserAgent,
		BlockImages:  req.BlockImages,
		ForceRefresh: req.ForceRefresh,
	}
	if err := h.tasks.Insert(r.Context(), task); err != nil {
		h.logger.Error("failed to create task", "url", req.URL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	h.respondJSON(w, http.StatusAccepted, TaskCreatedResponse{
		TaskID:  task.ID,
		Status:  string(task.Status),
		Message: "task accepted",
	})
}

func (h *Handlers) scrapeInline(w http.ResponseWriter, r *http.Request, req ScrapeRequest) {
	result, err := h.scraper.Run(r.Context(), pipeline.Request{
		URL:          req.URL,
		Proxy:        req.Proxy,
		UserAgent:    req.UserAgent,
		BlockImages:  req.BlockImages,
		ForceRefresh: req.ForceRefresh,
	})
	if err != nil {
		h.logger.Error("inline scrape failed", "url", req.URL, "error", err)
		h.respondError(w, scrapeStatus(err), err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, ScrapeResponse{
		URLHash:     cache.Hash(req.URL),
		Product:     result.Record,
		Diagnostics: result.Diagnostics,
	})
}

// TaskResponse is a task plus its product once the scrape finished.
type TaskResponse struct {
	models.ScrapeTask
	Product *database.StoredProduct `json:"product,omitempty"`
}

func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if taskID == "" {
		h.respondError(w, http.StatusBadRequest, "task ID is required")
		return
	}

	task, err := h.tasks.Get(r.Context(), taskID)
	if err != nil {
		h.logger.Error("failed to get task", "task_id", taskID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if task == nil {
		h.respondError(w, http.StatusNotFound, "task not found")
		return
	}

	resp := TaskResponse{ScrapeTask: *task}
	if task.Status == models.TaskStatusCompleted && h.products != nil {
		product, err := h.products.Get(r.Context(), task.ProductHash)
		if err != nil {
			h.logger.Error("failed to load task product", "task_id", taskID, "error", err)
		} else {
			resp.Product = product
		}
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	urlHash := chi.URLParam(r, "urlHash")
	if urlHash == "" {
		h.respondError(w, http.StatusBadRequest, "url hash is required")
		return
	}

	product, err := h.products.Get(r.Context(), urlHash)
	if err != nil {
		h.logger.Error("failed to get product", "url_hash", urlHash, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if product == nil {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

func (h *Handlers) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string][]string{
		"platforms": h.scraper.Platforms(),
	})
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tasks.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to get stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}

// Health reports per-component status plus the outbox backlog. Any failing
// component turns the response into a 503.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := "ok"
	code := http.StatusOK
	components := make(map[string]string, len(h.checks))

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = "error"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	health := map[string]interface{}{
		"status":     status,
		"components": components,
	}

	if h.outbox != nil {
		pending, _ := h.outbox.GetPendingCount(ctx)
		deadLetter, _ := h.outbox.GetDeadLetterCount(ctx)

		health["outbox"] = map[string]int64{
			"pending":     pending,
			"dead_letter": deadLetter,
		}

		if pending > 1000 && status == "ok" {
			health["status"] = "warning"
			health["message"] = "high number of pending outbox events"
		}
		if deadLetter > 100 {
			health["status"] = "error"
			health["message"] = "high number of dead letter events"
			code = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, code, health)
}

// scrapeStatus maps pipeline failures onto HTTP statuses: bad input is the
// caller's fault, site pushback is an upstream failure.
func scrapeStatus(err error) int {
	var blocked *session.BlockDetectedError
	var nav *session.NavigationError

	switch {
	case errors.Is(err, pipeline.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrNoProductData):
		return http.StatusUnprocessableEntity
	case errors.As(err, &blocked), errors.As(err, &nav), errors.Is(err, proxy.ErrProxyExhausted):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
