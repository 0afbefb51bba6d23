// Package queue holds scrape tasks waiting for a worker. The CLI fills it up
// front; the API pushes as requests arrive.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/fetchwise/product-scraper/internal/models"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

type Queue interface {
	Push(task *models.ScrapeTask) error
	Pop(ctx context.Context) (*models.ScrapeTask, error)
	Size() int
	Close() error
}

// InMemoryQueue is a FIFO queue with a blocking, context-aware Pop. Closing
// lets consumers drain what is left before they see ErrQueueClosed.
type InMemoryQueue struct {
	tasks  []*models.ScrapeTask
	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	q := &InMemoryQueue{
		tasks: make([]*models.ScrapeTask, 0),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *InMemoryQueue) Push(task *models.ScrapeTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.tasks = append(q.tasks, task)
	q.cond.Signal()

	return nil
}

// Pop blocks until a task is available, the queue closes empty, or the
// context ends.
func (q *InMemoryQueue) Pop(ctx context.Context) (*models.ScrapeTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.tasks) == 0 && !q.closed && ctx.Err() == nil {
		// Wake every waiter when the context ends; cond.Wait cannot watch
		// the context itself.
		stop := context.AfterFunc(ctx, func() {
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		})
		q.cond.Wait()
		stop()
	}

	if err := ctx.Err(); err != nil && len(q.tasks) == 0 {
		return nil, err
	}

	if len(q.tasks) == 0 {
		if q.closed {
			return nil, ErrQueueClosed
		}
		return nil, ErrQueueEmpty
	}

	task := q.tasks[0]
	q.tasks = q.tasks[1:]

	return task, nil
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()

	return nil
}
