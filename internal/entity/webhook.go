package entity

import "time"

// Webhook is an external subscriber notified on task lifecycle events.
type Webhook struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	Actions   string    `json:"actions"` // comma-separated, e.g. "upload,completion"
}

// WebhookEvent is the body POSTed to subscribers.
type WebhookEvent struct {
	Action    string    `json:"action"`
	TaskID    int64     `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
}
