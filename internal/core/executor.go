package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/joseph-ayodele/nfse-reader/constants"
	"github.com/joseph-ayodele/nfse-reader/internal/async"
	"github.com/joseph-ayodele/nfse-reader/internal/common"
	"github.com/joseph-ayodele/nfse-reader/internal/entity"
	"github.com/joseph-ayodele/nfse-reader/internal/repository"
)

type Extractor interface {
	Extract(ctx context.Context, path string) (*entity.ExtractedRecord, error)
}

type Notifier interface {
	Notify(ctx context.Context, action constants.Action, taskID int64) int
}

type FileStore interface {
	Save(name string, r io.Reader) (string, error)
	Remove(path string) error
}

type Scheduler interface {
	Enqueue(ctx context.Context, job async.Job) error
}

// Executor owns the task lifecycle: it accepts uploads, schedules them,
// runs extraction and records the terminal outcome.
type Executor struct {
	tasks     repository.TaskRepository
	extractor Extractor
	files     FileStore
	notifier  Notifier
	scheduler Scheduler
	logger    *slog.Logger

	bg sync.WaitGroup
}

func NewExecutor(
	tasks repository.TaskRepository,
	extractor Extractor,
	files FileStore,
	notifier Notifier,
	logger *slog.Logger,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		tasks:     tasks,
		extractor: extractor,
		files:     files,
		notifier:  notifier,
		logger:    logger,
	}
}

// UseScheduler sets where submitted tasks are queued. The worker pool needs
// the executor to exist first, so it is attached after construction.
func (e *Executor) UseScheduler(s Scheduler) {
	e.scheduler = s
}

// Submit stores the upload, creates a pending task and schedules it. The
// returned id is valid as soon as Submit returns, before extraction starts.
func (e *Executor) Submit(ctx context.Context, name string, r io.Reader) (int64, error) {
	log := common.WithContext(ctx, e.logger)
	if !constants.IsAllowedFile(name) {
		return 0, common.NewAppError("INVALID_INPUT", fmt.Sprintf("unsupported file %q: only PDF is accepted", name), common.ErrInvalidInput)
	}
	if e.scheduler == nil {
		return 0, common.NewAppError("INTERNAL", "no scheduler attached", common.ErrInternal)
	}

	path, err := e.files.Save(name, r)
	if err != nil {
		return 0, common.WrapError(err, "store upload")
	}
	task, err := e.tasks.Create(ctx, path)
	if err != nil {
		_ = e.files.Remove(path)
		return 0, err
	}
	log.Info("task submitted", "task_id", task.ID, "file", name)

	e.notifyAsync(ctx, constants.ActionUpload, task.ID)

	job := async.Job{TaskID: task.ID, SubmittedAt: time.Now(), RequestID: common.RequestIDFromContext(ctx)}
	if err := e.scheduler.Enqueue(ctx, job); err != nil {
		log.Error("task scheduling failed", "task_id", task.ID, "error", err)
		if ferr := e.tasks.Fail(context.WithoutCancel(ctx), task.ID, diagnostic(common.WrapError(err, "schedule task"), nil)); ferr != nil {
			log.Error("recording scheduling failure failed", "task_id", task.ID, "error", ferr)
		}
		_ = e.files.Remove(path)
		return task.ID, common.WrapError(err, "schedule task")
	}
	return task.ID, nil
}

// Run executes one task. Extraction problems, including panics and
// timeouts, end the task as failed and are not returned; only persistence
// errors and invalid lifecycle transitions are.
func (e *Executor) Run(ctx context.Context, taskID int64) error {
	ctx = common.WithTaskID(ctx, taskID)
	log := common.WithContext(ctx, e.logger)

	task, err := e.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if err := e.tasks.MarkRunning(ctx, taskID); err != nil {
		return err
	}
	defer func() {
		if err := e.files.Remove(task.SourceFilePath); err != nil {
			log.Warn("source file cleanup failed", "path", task.SourceFilePath, "error", err)
		}
	}()

	start := time.Now()
	payload, stack, runErr := e.extract(ctx, task.SourceFilePath)

	// terminal state must be recorded even when ctx timed out
	persistCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		log.Error("task failed", "error", runErr, "duration_ms", time.Since(start).Milliseconds())
		if err := e.tasks.Fail(persistCtx, taskID, diagnostic(runErr, stack)); err != nil {
			return err
		}
	} else {
		if err := e.tasks.Complete(persistCtx, taskID, string(payload)); err != nil {
			return err
		}
		log.Info("task completed", "duration_ms", time.Since(start).Milliseconds())
	}

	e.notifier.Notify(persistCtx, constants.ActionCompletion, taskID)
	return nil
}

// extract runs the extractor and encodes its result, turning a panic into an
// error with the goroutine's stack.
func (e *Executor) extract(ctx context.Context, path string) (payload, stack []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload, stack, err = nil, debug.Stack(), fmt.Errorf("panic during extraction: %v", r)
		}
	}()

	rec, err := e.extractor.Extract(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	payload, err = json.Marshal(rec)
	if err != nil {
		return nil, nil, fmt.Errorf("encode record: %w", err)
	}
	if err := ValidateRecordJSON(payload); err != nil {
		return nil, nil, errors.Join(common.ErrValidation, err)
	}
	return payload, nil, nil
}

// diagnostic is the stored error message: the error text with its cause
// chain, a newline, then the stack when one was captured.
func diagnostic(err error, stack []byte) string {
	return common.ErrorChain(err) + "\n" + string(stack)
}

// Status returns the task's status view, or nil when the task is unknown.
func (e *Executor) Status(ctx context.Context, taskID int64) (*entity.TaskStatusView, error) {
	task, err := e.tasks.Get(ctx, taskID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task.View(), nil
}

// Result returns the extracted record of a completed task, or nil when the
// task is unknown or has not completed.
func (e *Executor) Result(ctx context.Context, taskID int64) (*entity.ExtractedRecord, error) {
	task, err := e.tasks.Get(ctx, taskID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if task.Status != constants.TaskStatusCompleted || task.ResultJSON == nil {
		return nil, nil
	}
	var rec entity.ExtractedRecord
	if err := json.Unmarshal([]byte(*task.ResultJSON), &rec); err != nil {
		return nil, common.NewAppError("DB_ERROR", fmt.Sprintf("decode result of task %d", taskID), err)
	}
	return &rec, nil
}

func (e *Executor) notifyAsync(ctx context.Context, action constants.Action, taskID int64) {
	ctx = context.WithoutCancel(ctx)
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		e.notifier.Notify(ctx, action, taskID)
	}()
}

// Wait blocks until background notifications have been delivered.
func (e *Executor) Wait() {
	e.bg.Wait()
}

// Inline is a Scheduler that runs each task immediately on the caller's
// goroutine. Command-line tools use it instead of a worker pool.
type Inline struct {
	Exec    *Executor
	Timeout time.Duration
}

func (s Inline) Enqueue(ctx context.Context, job async.Job) error {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	return s.Exec.Run(ctx, job.TaskID)
}
