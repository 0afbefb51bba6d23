// Package storage is the CLI's file-backed result store. Batch runs write
// every outcome here so an interrupted run leaves a readable JSON file
// behind.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fetchwise/product-scraper/internal/cache"
	"github.com/fetchwise/product-scraper/internal/models"
)

// ScrapeResult is one URL's outcome in a batch run.
type ScrapeResult struct {
	TaskID      string                `json:"task_id"`
	URL         string                `json:"url"`
	URLHash     string                `json:"url_hash"`
	Status      models.TaskStatus     `json:"status"`
	Record      *models.ProductRecord `json:"record,omitempty"`
	Diagnostics *models.Diagnostics   `json:"diagnostics,omitempty"`
	Error       string                `json:"error,omitempty"`
	AddedAt     time.Time             `json:"added_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// NewTaskID builds the CLI bookkeeping ID for a URL.
func NewTaskID(url string) string {
	return fmt.Sprintf("task_%s_%d", cache.Hash(url), time.Now().Unix())
}

// ResultStore keeps results keyed by URL hash. With a filename it persists
// after every change; with an empty filename it is memory-only.
type ResultStore struct {
	mu       sync.RWMutex
	results  map[string]*ScrapeResult
	filename string
}

func NewResultStore(filename string) (*ResultStore, error) {
	rs := &ResultStore{
		results:  make(map[string]*ScrapeResult),
		filename: filename,
	}

	if filename != "" {
		if err := rs.load(); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	return rs, nil
}

// Register adds a pending entry for a URL and returns its task ID.
func (rs *ResultStore) Register(url string) (*ScrapeResult, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	now := time.Now()
	result := &ScrapeResult{
		TaskID:    NewTaskID(url),
		URL:       url,
		URLHash:   cache.Hash(url),
		Status:    models.TaskStatusPending,
		AddedAt:   now,
		UpdatedAt: now,
	}
	rs.results[result.URLHash] = result

	return result, rs.save()
}

// Complete records a successful scrape.
func (rs *ResultStore) Complete(urlHash string, record *models.ProductRecord, diag *models.Diagnostics) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	result, exists := rs.results[urlHash]
	if !exists {
		return fmt.Errorf("result not found: %s", urlHash)
	}

	result.Status = models.TaskStatusCompleted
	result.Record = record
	result.Diagnostics = diag
	result.Error = ""
	result.UpdatedAt = time.Now()

	return rs.save()
}

// Fail records a failed scrape.
func (rs *ResultStore) Fail(urlHash, errorMsg string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	result, exists := rs.results[urlHash]
	if !exists {
		return fmt.Errorf("result not found: %s", urlHash)
	}

	result.Status = models.TaskStatusFailed
	result.Error = errorMsg
	result.UpdatedAt = time.Now()

	return rs.save()
}

func (rs *ResultStore) Get(urlHash string) (*ScrapeResult, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	result, exists := rs.results[urlHash]
	return result, exists
}

// Results returns all entries in insertion order.
func (rs *ResultStore) Results() []*ScrapeResult {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	results := make([]*ScrapeResult, 0, len(rs.results))
	for _, r := range rs.results {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].AddedAt.Before(results[j].AddedAt)
	})
	return results
}

// Stats counts results per status, plus a total.
func (rs *ResultStore) Stats() map[string]int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	stats := make(map[string]int)
	for _, r := range rs.results {
		stats[string(r.Status)]++
	}
	stats["total"] = len(rs.results)
	return stats
}

func (rs *ResultStore) save() error {
	if rs.filename == "" {
		return nil
	}

	data, err := json.MarshalIndent(rs.results, "", "  ")
	if err != nil {
		return err
	}

	// Temp file plus rename keeps the file whole if we die mid-write.
	tmpFile := rs.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpFile, rs.filename)
}

func (rs *ResultStore) load() error {
	data, err := os.ReadFile(rs.filename)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &rs.results)
}
