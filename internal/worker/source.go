package worker

import (
	"context"
	"time"

	"github.com/fetchwise/product-scraper/internal/models"
	"github.com/fetchwise/product-scraper/internal/queue"
)

const defaultPollInterval = 2 * time.Second

// TaskSource hands the next task to a worker, blocking until one is
// available or ctx ends.
type TaskSource interface {
	Next(ctx context.Context) (*models.ScrapeTask, error)
}

// QueueSource feeds workers from an in-process queue. Used by the CLI, where
// all tasks are known up front.
type QueueSource struct {
	queue queue.Queue
}

func NewQueueSource(q queue.Queue) *QueueSource {
	return &QueueSource{queue: q}
}

func (s *QueueSource) Next(ctx context.Context) (*models.ScrapeTask, error) {
	return s.queue.Pop(ctx)
}

// TaskClaimer claims the oldest pending task, returning nil when there is
// none. database.TaskRepository satisfies it.
type TaskClaimer interface {
	ClaimNext(ctx context.Context) (*models.ScrapeTask, error)
}

// ClaimSource polls the database for pending tasks. Claiming uses
// FOR UPDATE SKIP LOCKED, so several instances can share one table.
type ClaimSource struct {
	tasks    TaskClaimer
	interval time.Duration
}

func NewClaimSource(tasks TaskClaimer, interval time.Duration) *ClaimSource {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &ClaimSource{tasks: tasks, interval: interval}
}

func (s *ClaimSource) Next(ctx context.Context) (*models.ScrapeTask, error) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		task, err := s.tasks.ClaimNext(ctx)
		if err != nil {
			return nil, err
		}
		if task != nil {
			return task, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
