package models

import "time"

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// ScrapeTask is a unit of work accepted through the API or CLI. Status moves
// pending -> running -> completed|failed; there are no other transitions.
type ScrapeTask struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	Status       TaskStatus `json:"status"`
	Platform     string     `json:"platform,omitempty"`
	Proxy        string     `json:"-"`
	UserAgent    string     `json:"-"`
	BlockImages  *bool      `json:"block_images,omitempty"`
	ForceRefresh bool       `json:"force_refresh,omitempty"`
	Error        string     `json:"error,omitempty"`
	ProductHash  string     `json:"product_hash,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}
