package async

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has begun.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job asks a worker to run one extraction task.
type Job struct {
	TaskID      int64
	SubmittedAt time.Time
	RequestID   string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Processor runs a task to completion. Implementations record the outcome
// themselves; the returned error is only logged.
type Processor interface {
	Run(ctx context.Context, taskID int64) error
}
