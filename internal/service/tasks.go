package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atinyakov/LittleHelper/internal/common"
	"github.com/atinyakov/LittleHelper/internal/models"
	"github.com/atinyakov/LittleHelper/internal/repository"
	"go.uber.org/zap"
)

// maxTransitionAttempts bounds the reload-and-retry loop on version conflicts.
const maxTransitionAttempts = 3

// TaskRepository defines the persistence operations needed by TaskService.
type TaskRepository interface {
	Create(ctx context.Context, t *models.Task) (*models.Task, error)
	// FindByID returns nil, nil when the task does not exist.
	FindByID(ctx context.Context, id string) (*models.Task, error)
	ListByOwner(ctx context.Context, ownerID string, sort repository.Sort) ([]models.Task, error)
	Update(ctx context.Context, id string, p models.TaskPatch) (*models.Task, error)
	// SaveTracking fails with common.ErrConflict when the stored version
	// no longer matches t.Version.
	SaveTracking(ctx context.Context, t *models.Task) (*models.Task, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// TransitionRecorder observes state machine outcomes.
type TransitionRecorder interface {
	RecordTransition(tr models.Transition, outcome string)
}

// TaskService scopes task operations to their owner and drives time tracking.
type TaskService struct {
	repo     TaskRepository
	now      func() time.Time
	recorder TransitionRecorder
	log      *zap.Logger
}

// TaskOption customizes a TaskService.
type TaskOption func(*TaskService)

// WithTaskClock replaces time.Now for transition instants.
func WithTaskClock(now func() time.Time) TaskOption {
	return func(s *TaskService) { s.now = now }
}

// WithTransitionRecorder reports every transition outcome to r.
func WithTransitionRecorder(r TransitionRecorder) TaskOption {
	return func(s *TaskService) { s.recorder = r }
}

// NewTaskService constructs a TaskService.
func NewTaskService(repo TaskRepository, log *zap.Logger, opts ...TaskOption) *TaskService {
	s := &TaskService{repo: repo, now: time.Now, log: log}
	for _, o := range opts {
		o(s)
	}
	return s
}

// List returns the owner's tasks.
func (s *TaskService) List(ctx context.Context, userID string, sort repository.Sort) ([]models.Task, error) {
	return s.repo.ListByOwner(ctx, userID, sort)
}

// Create stores a not_started task for userID. The title is required.
func (s *TaskService) Create(ctx context.Context, userID string, t models.Task) (*models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return nil, fmt.Errorf("%w: please add a title", common.ErrValidation)
	}
	return s.repo.Create(ctx, &models.Task{
		UserID:      userID,
		Title:       t.Title,
		Description: t.Description,
	})
}

// Update changes the title or description of a task owned by userID.
func (s *TaskService) Update(ctx context.Context, userID, id string, p models.TaskPatch) (*models.Task, error) {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", common.ErrValidation)
	}
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	t, err := s.repo.Update(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("task %s: %w", id, common.ErrNotFound)
	}
	return t, nil
}

// Delete removes a task owned by userID.
func (s *TaskService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("task %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// Start opens a time entry on the task.
func (s *TaskService) Start(ctx context.Context, userID, id string) (*models.Task, error) {
	return s.transition(ctx, userID, id, models.TransitionStart)
}

// Pause closes the running time entry.
func (s *TaskService) Pause(ctx context.Context, userID, id string) (*models.Task, error) {
	return s.transition(ctx, userID, id, models.TransitionPause)
}

// Complete finishes the task. A task that is already completed yields
// common.ErrConflict.
func (s *TaskService) Complete(ctx context.Context, userID, id string) (*models.Task, error) {
	return s.transition(ctx, userID, id, models.TransitionComplete)
}

// transition loads the task, applies tr and saves it guarded by the task
// version. A concurrent write reloads the task and applies tr again, so
// the second of two racing starts fails on the state check.
func (s *TaskService) transition(ctx context.Context, userID, id string, tr models.Transition) (*models.Task, error) {
	var lastErr error
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		t, err := s.owned(ctx, userID, id)
		if err != nil {
			s.record(tr, err)
			return nil, err
		}
		if err := t.Apply(tr, s.now()); err != nil {
			s.record(tr, err)
			return nil, err
		}

		saved, err := s.repo.SaveTracking(ctx, t)
		if err == nil {
			s.record(tr, nil)
			return saved, nil
		}
		if !errors.Is(err, common.ErrConflict) {
			s.record(tr, err)
			return nil, err
		}
		lastErr = err
		s.log.Debug("task modified concurrently, retrying",
			zap.String("task", id),
			zap.String("transition", string(tr)),
			zap.Int("attempt", attempt),
		)
	}
	s.record(tr, lastErr)
	return nil, lastErr
}

func (s *TaskService) record(tr models.Transition, err error) {
	if s.recorder == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, common.ErrConflict):
		outcome = "conflict"
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrForbidden):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	s.recorder.RecordTransition(tr, outcome)
}

func (s *TaskService) owned(ctx context.Context, userID, id string) (*models.Task, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("task %s: %w", id, common.ErrNotFound)
	}
	if t.UserID != userID {
		return nil, fmt.Errorf("task %s: %w", id, common.ErrForbidden)
	}
	return t, nil
}
