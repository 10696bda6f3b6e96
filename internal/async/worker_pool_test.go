package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/nfse-reader/internal/common"
)

type recordingProcessor struct {
	mu       sync.Mutex
	ran      []int64
	deadline bool
	taskIDs  []int64
	block    time.Duration
}

func (p *recordingProcessor) Run(ctx context.Context, taskID int64) error {
	if p.block > 0 {
		select {
		case <-time.After(p.block):
		case <-ctx.Done():
		}
	}
	_, hasDeadline := ctx.Deadline()
	id, _ := common.TaskIDFromContext(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.ran = append(p.ran, taskID)
	p.taskIDs = append(p.taskIDs, id)
	p.deadline = hasDeadline
	return ctx.Err()
}

func TestWorkerPoolRunsEveryJob(t *testing.T) {
	proc := &recordingProcessor{}
	q := NewWorkerPool(proc, nil, WithWorkers(3), WithQueueSize(2))

	for i := int64(1); i <= 10; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job{TaskID: i}))
	}
	q.Shutdown(context.Background())

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, proc.ran)
	assert.ElementsMatch(t, proc.ran, proc.taskIDs)
	assert.True(t, proc.deadline)
}

func TestWorkerPoolRejectsAfterShutdown(t *testing.T) {
	q := NewWorkerPool(&recordingProcessor{}, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{TaskID: 1})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestWorkerPoolTimeoutCancelsRun(t *testing.T) {
	proc := &recordingProcessor{block: 5 * time.Second}
	q := NewWorkerPool(proc, nil, WithWorkers(1), WithProcessTimeout(50*time.Millisecond))

	start := time.Now()
	require.NoError(t, q.Enqueue(context.Background(), Job{TaskID: 9}))
	q.Shutdown(context.Background())

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, []int64{9}, proc.ran)
}

func TestWorkerPoolEnqueueHonoursContextWhenFull(t *testing.T) {
	proc := &recordingProcessor{block: time.Second}
	q := NewWorkerPool(proc, nil, WithWorkers(1), WithQueueSize(1))
	defer q.Shutdown(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), Job{TaskID: 1}))
	// give the worker time to pick up job 1 so job 2 fills the buffer
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{TaskID: 2}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, Job{TaskID: 3})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
