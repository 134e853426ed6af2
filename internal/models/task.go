package models

import (
	"fmt"
	"time"

	"github.com/atinyakov/LittleHelper/internal/common"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	// StatusNotStarted is the initial state of every task.
	StatusNotStarted TaskStatus = "not_started"
	// StatusInProgress means the last time entry is open.
	StatusInProgress TaskStatus = "in_progress"
	// StatusPaused means work was started and every entry is closed.
	StatusPaused TaskStatus = "paused"
	// StatusCompleted is terminal.
	StatusCompleted TaskStatus = "completed"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// TimeEntry is one interval of active work. EndTime is nil while the entry is open.
type TimeEntry struct {
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

// Open reports whether the entry has not been closed yet.
func (e TimeEntry) Open() bool { return e.EndTime == nil }

// Duration returns the closed interval length in milliseconds, or 0 for an open entry.
func (e TimeEntry) Duration() int64 {
	if e.EndTime == nil {
		return 0
	}
	return max(e.EndTime.UnixMilli()-e.StartTime.UnixMilli(), 0)
}

// Task is a unit of work with time tracking.
type Task struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Status      TaskStatus  `json:"status"`
	Completed   bool        `json:"completed"`
	TimeEntries []TimeEntry `json:"timeEntries"`
	// TotalTime is the accumulated duration of closed entries in milliseconds.
	TotalTime int64 `json:"totalTime"`
	// Version is bumped on every write and guards tracking updates.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TaskPatch is a partial task update. Tracking fields are not part of it:
// they change only through Start, Pause and Complete.
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Transition names a state machine event.
type Transition string

const (
	TransitionStart    Transition = "start"
	TransitionPause    Transition = "pause"
	TransitionComplete Transition = "complete"
)

// Apply runs the transition tr at instant now.
func (t *Task) Apply(tr Transition, now time.Time) error {
	switch tr {
	case TransitionStart:
		return t.Start(now)
	case TransitionPause:
		return t.Pause(now)
	case TransitionComplete:
		return t.Complete(now)
	}
	return fmt.Errorf("%w: unknown transition %q", common.ErrValidation, tr)
}

// Start opens a new time entry and moves the task to in_progress.
func (t *Task) Start(now time.Time) error {
	switch t.Status {
	case StatusInProgress:
		return fmt.Errorf("%w: task is already in progress", common.ErrConflict)
	case StatusCompleted:
		return fmt.Errorf("%w: task is completed", common.ErrConflict)
	}
	t.TimeEntries = append(t.TimeEntries, TimeEntry{StartTime: instant(now)})
	t.Status = StatusInProgress
	t.Completed = false
	return nil
}

// Pause closes the open entry and accumulates its duration.
func (t *Task) Pause(now time.Time) error {
	if t.Status != StatusInProgress {
		return fmt.Errorf("%w: task is not in progress", common.ErrConflict)
	}
	t.closeOpenEntry(now)
	t.Status = StatusPaused
	return nil
}

// Complete finishes the task, closing the open entry first when it is running.
// Completing an already completed task fails with common.ErrConflict, which
// the API reports as 409.
func (t *Task) Complete(now time.Time) error {
	if t.Status == StatusCompleted {
		return fmt.Errorf("%w: task is already completed", common.ErrConflict)
	}
	if t.Status == StatusInProgress {
		t.closeOpenEntry(now)
	}
	t.Status = StatusCompleted
	t.Completed = true
	return nil
}

// closeOpenEntry is a no-op when the last entry is already closed or absent.
func (t *Task) closeOpenEntry(now time.Time) {
	n := len(t.TimeEntries)
	if n == 0 || !t.TimeEntries[n-1].Open() {
		return
	}
	end := instant(now)
	t.TimeEntries[n-1].EndTime = &end
	t.TotalTime += t.TimeEntries[n-1].Duration()
}

// OpenEntries counts entries without an end instant.
func (t *Task) OpenEntries() int {
	n := 0
	for _, e := range t.TimeEntries {
		if e.Open() {
			n++
		}
	}
	return n
}

// instant reduces t to the millisecond-resolution UTC timeline used for durations.
func instant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
