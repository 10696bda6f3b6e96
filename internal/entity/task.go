package entity

import (
	"time"

	"github.com/joseph-ayodele/nfse-reader/constants"
)

// Task represents one extraction attempt for an uploaded document.
type Task struct {
	ID             int64                `json:"id"`
	Status         constants.TaskStatus `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
	SourceFilePath string               `json:"-"`
	ResultJSON     *string              `json:"-"`
	ErrorMessage   *string              `json:"-"`
}

// TaskStatusView is the public view of a task's progress.
type TaskStatusView struct {
	ID          int64                `json:"id"`
	Status      constants.TaskStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	CompletedAt *time.Time           `json:"completed_at"`
}

// View projects t onto its public status view.
func (t *Task) View() *TaskStatusView {
	return &TaskStatusView{
		ID:          t.ID,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
	}
}
