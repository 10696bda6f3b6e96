package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/nfse-reader/constants"
	"github.com/joseph-ayodele/nfse-reader/internal/common"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: "sqlite", DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { Close(db, nil) })
	require.NoError(t, Migrate(ctx, db, nil))
	return db
}

func TestSQLiteRepositories(t *testing.T) {
	runRepositorySuite(t, openTestDB(t))
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(context.Background(), db, nil))
	require.NoError(t, HealthCheck(context.Background(), db, time.Second, nil))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"}, nil)
	assert.ErrorContains(t, err, "unsupported database driver")
}

// runRepositorySuite exercises both repositories against a migrated database.
func runRepositorySuite(t *testing.T, db *DB) {
	ctx := context.Background()
	tasks := NewTaskRepository(db, nil)
	hooks := NewWebhookRepository(db, nil)

	t.Run("task lifecycle completed", func(t *testing.T) {
		task, err := tasks.Create(ctx, "/tmp/a_nota.pdf")
		require.NoError(t, err)
		assert.Positive(t, task.ID)
		assert.Equal(t, constants.TaskStatusPending, task.Status)

		got, err := tasks.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusPending, got.Status)
		assert.Equal(t, "/tmp/a_nota.pdf", got.SourceFilePath)
		assert.WithinDuration(t, task.CreatedAt, got.CreatedAt, time.Millisecond)
		assert.Nil(t, got.CompletedAt)
		assert.Nil(t, got.ResultJSON)

		require.NoError(t, tasks.MarkRunning(ctx, task.ID))
		require.NoError(t, tasks.Complete(ctx, task.ID, `{"issue_date":"2024-03-15"}`))

		got, err = tasks.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusCompleted, got.Status)
		require.NotNil(t, got.ResultJSON)
		assert.JSONEq(t, `{"issue_date":"2024-03-15"}`, *got.ResultJSON)
		require.NotNil(t, got.CompletedAt)
		assert.False(t, got.CompletedAt.Before(got.CreatedAt))
		assert.Nil(t, got.ErrorMessage)

		// terminal status never regresses
		err = tasks.MarkRunning(ctx, task.ID)
		assert.ErrorIs(t, err, common.ErrInvalidTransition)
		err = tasks.Fail(ctx, task.ID, "late failure")
		assert.ErrorIs(t, err, common.ErrInvalidTransition)

		got, err = tasks.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusCompleted, got.Status)
	})

	t.Run("task lifecycle failed", func(t *testing.T) {
		task, err := tasks.Create(ctx, "/tmp/b_nota.pdf")
		require.NoError(t, err)

		// a pending task cannot complete without running
		assert.ErrorIs(t, tasks.Complete(ctx, task.ID, `{}`), common.ErrInvalidTransition)

		require.NoError(t, tasks.MarkRunning(ctx, task.ID))
		require.NoError(t, tasks.Fail(ctx, task.ID, "render: document open failed\ntrace"))

		got, err := tasks.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusFailed, got.Status)
		require.NotNil(t, got.ErrorMessage)
		assert.Contains(t, *got.ErrorMessage, "document open failed")
		assert.Nil(t, got.ResultJSON)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("unknown task", func(t *testing.T) {
		_, err := tasks.Get(ctx, 999999)
		assert.ErrorIs(t, err, common.ErrNotFound)
		assert.ErrorIs(t, tasks.MarkRunning(ctx, 999999), common.ErrNotFound)
	})

	t.Run("ids are unique and increasing", func(t *testing.T) {
		a, err := tasks.Create(ctx, "a")
		require.NoError(t, err)
		b, err := tasks.Create(ctx, "b")
		require.NoError(t, err)
		assert.Greater(t, b.ID, a.ID)
	})

	t.Run("list completed", func(t *testing.T) {
		done, err := tasks.ListCompleted(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, done)
		for _, d := range done {
			assert.Equal(t, constants.TaskStatusCompleted, d.Status)
		}
	})

	t.Run("webhooks", func(t *testing.T) {
		up, err := hooks.Create(ctx, "http://a.example/hook", "Upload, completion")
		require.NoError(t, err)
		assert.Equal(t, "upload,completion", up.Actions)

		_, err = hooks.Create(ctx, "http://b.example/hook", "uploads")
		require.NoError(t, err)
		legacy, err := hooks.Create(ctx, "http://c.example/hook", "conclusao")
		require.NoError(t, err)

		forUpload, err := hooks.ListForAction(ctx, constants.ActionUpload)
		require.NoError(t, err)
		require.Len(t, forUpload, 1)
		assert.Equal(t, up.ID, forUpload[0].ID)

		forCompletion, err := hooks.ListForAction(ctx, constants.ActionCompletion)
		require.NoError(t, err)
		var ids []int64
		for _, h := range forCompletion {
			ids = append(ids, h.ID)
		}
		assert.ElementsMatch(t, []int64{up.ID, legacy.ID}, ids)

		all, err := hooks.List(ctx, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, legacy.ID, all[0].ID, "newest first")

		two, err := hooks.List(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, two, 2)
	})
}
