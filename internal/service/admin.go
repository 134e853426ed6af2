package service

import (
	"context"
	"fmt"

	"github.com/atinyakov/LittleHelper/internal/common"
	"github.com/atinyakov/LittleHelper/internal/models"
	"go.uber.org/zap"
)

// DeleteAllConfirmation must accompany a bulk account deletion.
const DeleteAllConfirmation = "DELETE_ALL_USERS"

// DefaultContentsLimit caps each table in a contents dump.
const DefaultContentsLimit = 10

// AdminAccounts is the account side of AdminService.
type AdminAccounts interface {
	List(ctx context.Context, limit int) ([]models.Account, error)
	Count(ctx context.Context) (int64, error)
	// DeleteAll removes every account together with its notes and tasks.
	DeleteAll(ctx context.Context) (int64, error)
}

// AdminNotes is the note side of AdminService.
type AdminNotes interface {
	List(ctx context.Context, limit int) ([]models.Note, error)
	Count(ctx context.Context) (int64, error)
}

// AdminTasks is the task side of AdminService.
type AdminTasks interface {
	List(ctx context.Context, limit int) ([]models.Task, error)
	Count(ctx context.Context) (int64, error)
}

// TableDump is a bounded view of one table.
type TableDump[T any] struct {
	Count int64 `json:"count"`
	Items []T   `json:"items"`
}

// Contents is a bounded snapshot of the whole store.
type Contents struct {
	Users TableDump[models.Account] `json:"users"`
	Notes TableDump[models.Note]    `json:"notes"`
	Tasks TableDump[models.Task]    `json:"tasks"`
}

// AdminService implements maintenance operations guarded by the admin key.
type AdminService struct {
	accounts AdminAccounts
	notes    AdminNotes
	tasks    AdminTasks
	log      *zap.Logger
}

// NewAdminService constructs an AdminService.
func NewAdminService(accounts AdminAccounts, notes AdminNotes, tasks AdminTasks, log *zap.Logger) *AdminService {
	return &AdminService{accounts: accounts, notes: notes, tasks: tasks, log: log}
}

// Contents returns row counts and up to limit rows of every table.
// A non-positive limit means DefaultContentsLimit.
func (s *AdminService) Contents(ctx context.Context, limit int) (*Contents, error) {
	if limit <= 0 {
		limit = DefaultContentsLimit
	}
	var (
		c   Contents
		err error
	)
	if c.Users.Count, err = s.accounts.Count(ctx); err != nil {
		return nil, err
	}
	if c.Users.Items, err = s.accounts.List(ctx, limit); err != nil {
		return nil, err
	}
	if c.Notes.Count, err = s.notes.Count(ctx); err != nil {
		return nil, err
	}
	if c.Notes.Items, err = s.notes.List(ctx, limit); err != nil {
		return nil, err
	}
	if c.Tasks.Count, err = s.tasks.Count(ctx); err != nil {
		return nil, err
	}
	if c.Tasks.Items, err = s.tasks.List(ctx, limit); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteAllUsers removes every account when confirmation matches
// DeleteAllConfirmation and returns the number removed.
func (s *AdminService) DeleteAllUsers(ctx context.Context, confirmation string) (int64, error) {
	if confirmation != DeleteAllConfirmation {
		return 0, fmt.Errorf("%w: invalid confirmation code", common.ErrValidation)
	}
	n, err := s.accounts.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Warn("deleted all users", zap.Int64("count", n))
	return n, nil
}
