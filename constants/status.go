package constants

// TaskStatus is the lifecycle state of an extraction task row.
type TaskStatus string

// Stable values (store these exact strings in DB).
const (
	TaskStatusPending   TaskStatus = "pending"   // accepted, waiting for a worker
	TaskStatusRunning   TaskStatus = "running"   // extraction in progress
	TaskStatusCompleted TaskStatus = "completed" // terminal, result stored
	TaskStatusFailed    TaskStatus = "failed"    // terminal, error message stored
)

// Terminal reports whether no further transition is allowed from s.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a task may move from s to next.
// pending -> running -> completed | failed. A pending task may also fail
// directly when it could not be scheduled.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusRunning || next == TaskStatusFailed
	case TaskStatusRunning:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	}
	return false
}
