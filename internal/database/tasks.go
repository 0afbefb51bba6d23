package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fetchwise/product-scraper/internal/cache"
	"github.com/fetchwise/product-scraper/internal/models"
)

type TaskRepository struct {
	db *DB
}

func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, url, url_hash, status, force_refresh, block_images,
	COALESCE(proxy, ''), COALESCE(user_agent, ''),
	COALESCE(platform, ''), COALESCE(error_message, ''),
	created_at, started_at, finished_at`

// Insert stores a new task. ID, status, and URL hash are filled in when the
// caller left them empty.
func (r *TaskRepository) Insert(ctx context.Context, task *models.ScrapeTask) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.ProductHash == "" {
		task.ProductHash = cache.Hash(task.URL)
	}

	blockImages := true
	if task.BlockImages != nil {
		blockImages = *task.BlockImages
	}

	query := `
		INSERT INTO scrape_tasks (id, url, url_hash, status, force_refresh, block_images,
			proxy, user_agent, platform)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''))
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		task.ID, task.URL, task.ProductHash, string(task.Status),
		task.ForceRefresh, blockImages, task.Proxy, task.UserAgent, task.Platform,
	).Scan(&task.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

// Get loads a task by ID. A missing row returns (nil, nil).
func (r *TaskRepository) Get(ctx context.Context, id string) (*models.ScrapeTask, error) {
	query := `SELECT ` + taskColumns + ` FROM scrape_tasks WHERE id = $1`

	task, err := scanTask(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ClaimNext atomically takes the oldest pending task and marks it running.
// SKIP LOCKED lets concurrent workers claim without blocking each other.
// Returns (nil, nil) when no task is pending.
func (r *TaskRepository) ClaimNext(ctx context.Context) (*models.ScrapeTask, error) {
	query := `
		UPDATE scrape_tasks
		SET status = $1, started_at = now()
		WHERE id = (
			SELECT id FROM scrape_tasks
			WHERE status = $2
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + taskColumns

	task, err := scanTask(r.db.QueryRow(ctx, query,
		string(models.TaskStatusRunning), string(models.TaskStatusPending)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	return task, nil
}

// MarkCompleted finishes a task, recording the platform the pipeline settled
// on.
func (r *TaskRepository) MarkCompleted(ctx context.Context, id, platform string) error {
	query := `
		UPDATE scrape_tasks
		SET status = $1, platform = NULLIF($2, ''), finished_at = now()
		WHERE id = $3`

	tag, err := r.db.Exec(ctx, query, string(models.TaskStatusCompleted), platform, id)
	if err != nil {
		return fmt.Errorf("failed to mark task completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

// MarkFailed finishes a task with an error message.
func (r *TaskRepository) MarkFailed(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE scrape_tasks
		SET status = $1, error_message = $2, finished_at = now()
		WHERE id = $3`

	tag, err := r.db.Exec(ctx, query, string(models.TaskStatusFailed), errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to mark task failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

// Stats summarizes the task backlog and the product table.
type Stats struct {
	TotalTasks        int     `json:"total_tasks"`
	PendingTasks      int     `json:"pending_tasks"`
	RunningTasks      int     `json:"running_tasks"`
	CompletedTasks    int     `json:"completed_tasks"`
	FailedTasks       int     `json:"failed_tasks"`
	TotalProducts     int     `json:"total_products"`
	ProductsWithPrice int     `json:"products_with_price"`
	SuccessRate       float64 `json:"success_rate"`
}

// Stats counts tasks by status and totals the stored products.
func (r *TaskRepository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	query := `
		SELECT
			COUNT(*) as total_tasks,
			COUNT(CASE WHEN status = 'pending' THEN 1 END) as pending_tasks,
			COUNT(CASE WHEN status = 'running' THEN 1 END) as running_tasks,
			COUNT(CASE WHEN status = 'completed' THEN 1 END) as completed_tasks,
			COUNT(CASE WHEN status = 'failed' THEN 1 END) as failed_tasks
		FROM scrape_tasks`

	err := r.db.QueryRow(ctx, query).Scan(
		&stats.TotalTasks, &stats.PendingTasks, &stats.RunningTasks,
		&stats.CompletedTasks, &stats.FailedTasks,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	finished := stats.CompletedTasks + stats.FailedTasks
	if finished > 0 {
		stats.SuccessRate = float64(stats.CompletedTasks) / float64(finished) * 100
	}

	productQuery := `
		SELECT
			COUNT(*) as total,
			COUNT(CASE WHEN record ->> 'price' IS NOT NULL THEN 1 END) as with_price
		FROM products`

	if err := r.db.QueryRow(ctx, productQuery).Scan(&stats.TotalProducts, &stats.ProductsWithPrice); err != nil {
		return nil, fmt.Errorf("failed to get product stats: %w", err)
	}

	return stats, nil
}

func scanTask(row pgx.Row) (*models.ScrapeTask, error) {
	var (
		task        models.ScrapeTask
		blockImages bool
	)
	err := row.Scan(
		&task.ID, &task.URL, &task.ProductHash, &task.Status,
		&task.ForceRefresh, &blockImages, &task.Proxy, &task.UserAgent,
		&task.Platform, &task.Error,
		&task.CreatedAt, &task.StartedAt, &task.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	task.BlockImages = &blockImages
	return &task, nil
}
