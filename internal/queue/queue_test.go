package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetchwise/product-scraper/internal/models"
)

func task(id string) *models.ScrapeTask {
	return &models.ScrapeTask{ID: id, URL: "https://www.example.com/" + id}
}

func TestQueueFIFO(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Push(task("a")))
	require.NoError(t, q.Push(task("b")))
	require.NoError(t, q.Push(task("c")))
	assert.Equal(t, 3, q.Size())

	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got.ID)
	}
	assert.Equal(t, 0, q.Size())
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	got := make(chan *models.ScrapeTask, 1)
	go func() {
		task, err := q.Pop(ctx)
		if err == nil {
			got <- task
		}
	}()

	// Give the consumer time to park.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Push(task("late")))

	select {
	case task := <-got:
		assert.Equal(t, "late", task.ID)
	case <-time.After(1 * time.Second):
		t.Fatal("pop did not wake on push")
	}
}

func TestQueuePopUnblocksOnCancel(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Pop(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(1 * time.Second):
		t.Fatal("pop did not wake on cancel")
	}
}

func TestQueueCloseDrains(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Push(task("a")))
	require.NoError(t, q.Push(task("b")))
	require.NoError(t, q.Close())

	// Push after close is refused, draining still works.
	assert.ErrorIs(t, q.Push(task("c")), ErrQueueClosed)

	first, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", first.ID)

	second, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", second.ID)

	_, err = q.Pop(ctx)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueCloseWakesWaiters(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Pop(ctx)
			errs <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Close())

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("close did not wake all waiters")
	}

	close(errs)
	for err := range errs {
		assert.ErrorIs(t, err, ErrQueueClosed)
	}
}

func TestQueueConcurrentProducersConsumers(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const producers, perProducer, consumers = 4, 25, 3

	var pushed sync.WaitGroup
	for p := 0; p < producers; p++ {
		pushed.Add(1)
		go func(p int) {
			defer pushed.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Push(task("t"))
			}
		}(p)
	}

	var mu sync.Mutex
	seen := 0
	var consumed sync.WaitGroup
	for c := 0; c < consumers; c++ {
		consumed.Add(1)
		go func() {
			defer consumed.Done()
			for {
				_, err := q.Pop(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen++
				mu.Unlock()
			}
		}()
	}

	pushed.Wait()
	require.NoError(t, q.Close())
	consumed.Wait()

	assert.Equal(t, producers*perProducer, seen)
}
