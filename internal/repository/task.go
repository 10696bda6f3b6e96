package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/nfse-reader/constants"
	"github.com/joseph-ayodele/nfse-reader/internal/common"
	"github.com/joseph-ayodele/nfse-reader/internal/entity"
)

const taskTable = "task"

var taskColumns = []string{"id", "status", "created_at", "completed_at", "source_file_path", "result_json", "error_message"}

type TaskRepository interface {
	Create(ctx context.Context, sourcePath string) (*entity.Task, error)
	Get(ctx context.Context, id int64) (*entity.Task, error)
	MarkRunning(ctx context.Context, id int64) error
	Complete(ctx context.Context, id int64, resultJSON string) error
	Fail(ctx context.Context, id int64, message string) error
	ListCompleted(ctx context.Context) ([]*entity.Task, error)
}

type taskRepo struct {
	db  *DB
	log *slog.Logger
}

func NewTaskRepository(db *DB, log *slog.Logger) TaskRepository {
	if log == nil {
		log = slog.Default()
	}
	return &taskRepo{db: db, log: log}
}

func (r *taskRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect)
}

func (r *taskRepo) Create(ctx context.Context, sourcePath string) (*entity.Task, error) {
	created := now()
	ins := r.builder().Insert(taskTable).
		Columns("status", "created_at", "source_file_path").
		Values(string(constants.TaskStatusPending), created, sourcePath)

	id, err := r.db.insertID(ctx, r.db.Driver, ins)
	if err != nil {
		r.log.Error("task create failed", "path", sourcePath, "err", err)
		return nil, common.NewAppError("DB_ERROR", "create task", errors.Join(common.ErrDatabase, err))
	}
	r.log.Info("task created", "task_id", id, "path", sourcePath)
	return &entity.Task{
		ID:             id,
		Status:         constants.TaskStatusPending,
		CreatedAt:      created,
		SourceFilePath: sourcePath,
	}, nil
}

func (r *taskRepo) Get(ctx context.Context, id int64) (*entity.Task, error) {
	return r.get(ctx, r.db.Driver, id)
}

func (r *taskRepo) get(ctx context.Context, conn dialect.ExecQuerier, id int64) (*entity.Task, error) {
	b := r.builder()
	t := b.Table(taskTable)
	query, args := b.Select(taskColumns...).From(t).Where(entsql.EQ(t.C("id"), id)).Query()

	tasks, err := queryTasks(ctx, conn, query, args)
	if err != nil {
		r.log.Error("task get failed", "task_id", id, "err", err)
		return nil, common.NewAppError("DB_ERROR", "get task", errors.Join(common.ErrDatabase, err))
	}
	if len(tasks) == 0 {
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("task %d", id), common.ErrNotFound)
	}
	return tasks[0], nil
}

func (r *taskRepo) MarkRunning(ctx context.Context, id int64) error {
	return r.transition(ctx, id, constants.TaskStatusRunning, func(u *entsql.UpdateBuilder) {})
}

func (r *taskRepo) Complete(ctx context.Context, id int64, resultJSON string) error {
	return r.transition(ctx, id, constants.TaskStatusCompleted, func(u *entsql.UpdateBuilder) {
		u.Set("result_json", resultJSON).
			Set("completed_at", now()).
			SetNull("error_message")
	})
}

func (r *taskRepo) Fail(ctx context.Context, id int64, message string) error {
	return r.transition(ctx, id, constants.TaskStatusFailed, func(u *entsql.UpdateBuilder) {
		u.Set("error_message", message).
			Set("completed_at", now()).
			SetNull("result_json")
	})
}

// transition moves a task to next only from a status that may precede it.
// The guard is part of the UPDATE, so concurrent writers cannot regress a
// terminal task.
func (r *taskRepo) transition(ctx context.Context, id int64, next constants.TaskStatus, set func(*entsql.UpdateBuilder)) error {
	var from []any
	for _, s := range []constants.TaskStatus{constants.TaskStatusPending, constants.TaskStatusRunning} {
		if s.CanTransition(next) {
			from = append(from, string(s))
		}
	}

	tx, err := r.db.Driver.Tx(ctx)
	if err != nil {
		return common.NewAppError("DB_ERROR", "begin transition", errors.Join(common.ErrDatabase, err))
	}

	upd := r.builder().Update(taskTable).
		Set("status", string(next)).
		Where(entsql.And(entsql.EQ("id", id), entsql.In("status", from...)))
	set(upd)
	query, args := upd.Query()

	var res sql.Result
	if err := tx.Exec(ctx, query, args, &res); err != nil {
		_ = tx.Rollback()
		r.log.Error("task transition failed", "task_id", id, "to", next, "err", err)
		return common.NewAppError("DB_ERROR", "update task", errors.Join(common.ErrDatabase, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return common.NewAppError("DB_ERROR", "update task", errors.Join(common.ErrDatabase, err))
	}
	if n == 0 {
		cur, err := r.get(ctx, tx, id)
		_ = tx.Rollback()
		if err != nil {
			return err
		}
		r.log.Warn("task transition rejected", "task_id", id, "from", cur.Status, "to", next)
		return common.NewAppError("INVALID_TRANSITION",
			fmt.Sprintf("task %d: %s -> %s", id, cur.Status, next), common.ErrInvalidTransition)
	}
	if err := tx.Commit(); err != nil {
		return common.NewAppError("DB_ERROR", "commit transition", errors.Join(common.ErrDatabase, err))
	}
	r.log.Info("task status changed", "task_id", id, "status", next)
	return nil
}

func (r *taskRepo) ListCompleted(ctx context.Context) ([]*entity.Task, error) {
	b := r.builder()
	t := b.Table(taskTable)
	query, args := b.Select(taskColumns...).From(t).
		Where(entsql.EQ(t.C("status"), string(constants.TaskStatusCompleted))).
		OrderBy(t.C("id")).
		Query()

	tasks, err := queryTasks(ctx, r.db.Driver, query, args)
	if err != nil {
		r.log.Error("list completed tasks failed", "err", err)
		return nil, common.NewAppError("DB_ERROR", "list tasks", errors.Join(common.ErrDatabase, err))
	}
	return tasks, nil
}

// queryTasks reads every row before returning so the connection is free
// for the next statement.
func queryTasks(ctx context.Context, conn dialect.ExecQuerier, query string, args []any) ([]*entity.Task, error) {
	var rows entsql.Rows
	if err := conn.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Task
	for rows.Next() {
		var (
			t                 entity.Task
			status            string
			created           nullTime
			completed         nullTime
			result, errorMesg sql.NullString
		)
		if err := rows.Scan(&t.ID, &status, &created, &completed, &t.SourceFilePath, &result, &errorMesg); err != nil {
			return nil, err
		}
		t.Status = constants.TaskStatus(status)
		t.CreatedAt = created.Time
		t.CompletedAt = completed.ptr()
		if result.Valid {
			t.ResultJSON = &result.String
		}
		if errorMesg.Valid {
			t.ErrorMessage = &errorMesg.String
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
