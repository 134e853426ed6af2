package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atinyakov/LittleHelper/internal/common"
	"github.com/atinyakov/LittleHelper/internal/models"
)

// TaskStore persists tasks. Time entries are kept as a JSON array column.
type TaskStore struct {
	store *Store
}

// NewTaskStore creates a TaskStore.
func NewTaskStore(store *Store) *TaskStore {
	return &TaskStore{store: store}
}

// Create inserts a task in the not_started state.
func (r *TaskStore) Create(ctx context.Context, t *models.Task) (*models.Task, error) {
	rec, err := r.store.Create(ctx, Tasks, Record{
		ColUserID:     t.UserID,
		"title":       t.Title,
		"description": t.Description,
		"status":      string(models.StatusNotStarted),
		"completed":   false,
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return taskFromRecord(rec)
}

// FindByID returns the task or nil when absent.
func (r *TaskStore) FindByID(ctx context.Context, id string) (*models.Task, error) {
	rec, ok, err := r.store.FindByID(ctx, Tasks, id)
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return taskFromRecord(rec)
}

// ListByOwner returns the owner's tasks, newest first unless sort says otherwise.
func (r *TaskStore) ListByOwner(ctx context.Context, ownerID string, sort Sort) ([]models.Task, error) {
	recs, err := r.store.Find(ctx, Tasks, Filter{ColUserID: ownerID}, sort)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasksFromRecords(recs)
}

// Update applies p and returns the updated task, or nil when absent.
func (r *TaskStore) Update(ctx context.Context, id string, p models.TaskPatch) (*models.Task, error) {
	fields := Record{}
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	rec, ok, err := r.store.Update(ctx, Tasks, id, fields)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return taskFromRecord(rec)
}

// SaveTracking writes the tracking fields of t if the stored version still
// equals t.Version. A concurrent write makes it fail with common.ErrConflict.
func (r *TaskStore) SaveTracking(ctx context.Context, t *models.Task) (*models.Task, error) {
	entries, err := json.Marshal(entriesOrEmpty(t.TimeEntries))
	if err != nil {
		return nil, fmt.Errorf("encode time entries: %w", err)
	}
	rec, err := r.store.CompareAndUpdate(ctx, Tasks, t.ID, t.Version, Record{
		"status":      string(t.Status),
		"completed":   t.Completed,
		"timeEntries": string(entries),
		"totalTime":   t.TotalTime,
	})
	if err != nil {
		return nil, fmt.Errorf("save task tracking: %w", err)
	}
	return taskFromRecord(rec)
}

// Delete removes the task and reports whether it existed.
func (r *TaskStore) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := r.store.Delete(ctx, Tasks, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return ok, nil
}

// List returns up to limit tasks of every owner.
func (r *TaskStore) List(ctx context.Context, limit int) ([]models.Task, error) {
	recs, err := r.store.List(ctx, Tasks, limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasksFromRecords(recs)
}

// Count returns the number of tasks.
func (r *TaskStore) Count(ctx context.Context) (int64, error) {
	return r.store.Count(ctx, Tasks)
}

func entriesOrEmpty(e []models.TimeEntry) []models.TimeEntry {
	if e == nil {
		return []models.TimeEntry{}
	}
	return e
}

func tasksFromRecords(recs []Record) ([]models.Task, error) {
	out := make([]models.Task, 0, len(recs))
	for _, rec := range recs {
		t, err := taskFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func taskFromRecord(rec Record) (*models.Task, error) {
	d := &decoder{table: Tasks.Name, rec: rec}
	t := &models.Task{
		ID:          d.str(ColID),
		UserID:      d.str(ColUserID),
		Title:       d.str("title"),
		Description: d.str("description"),
		Status:      models.TaskStatus(d.str("status")),
		Completed:   d.boolean("completed"),
		TotalTime:   d.integer("totalTime"),
		Version:     d.integer("version"),
		CreatedAt:   d.timestamp(ColCreatedAt),
		UpdatedAt:   d.timestamp(ColUpdatedAt),
	}
	if d.err != nil {
		return nil, d.err
	}
	if t.Status == "" {
		t.Status = models.StatusNotStarted
	}
	if !t.Status.Valid() {
		return nil, fmt.Errorf("%w: task %s has unknown status %q", common.ErrStorage, t.ID, t.Status)
	}

	t.TimeEntries = []models.TimeEntry{}
	if raw := d.str("timeEntries"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &t.TimeEntries); err != nil {
			return nil, fmt.Errorf("%w: decode time entries of task %s: %w", common.ErrStorage, t.ID, err)
		}
	}
	return t, nil
}
