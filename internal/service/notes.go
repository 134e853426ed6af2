package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/atinyakov/LittleHelper/internal/common"
	"github.com/atinyakov/LittleHelper/internal/models"
	"github.com/atinyakov/LittleHelper/internal/repository"
)

// NoteRepository defines the persistence operations needed by NoteService.
type NoteRepository interface {
	Create(ctx context.Context, n *models.Note) (*models.Note, error)
	// FindByID returns nil, nil when the note does not exist.
	FindByID(ctx context.Context, id string) (*models.Note, error)
	ListByOwner(ctx context.Context, ownerID string, sort repository.Sort) ([]models.Note, error)
	Search(ctx context.Context, ownerID, q string) ([]models.Note, error)
	Update(ctx context.Context, id string, p models.NotePatch) (*models.Note, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// NoteService scopes note operations to their owner.
type NoteService struct {
	repo NoteRepository
}

// NewNoteService constructs a NoteService.
func NewNoteService(repo NoteRepository) *NoteService {
	return &NoteService{repo: repo}
}

// List returns the owner's notes in the requested order.
func (s *NoteService) List(ctx context.Context, userID string, sort repository.Sort) ([]models.Note, error) {
	return s.repo.ListByOwner(ctx, userID, sort)
}

// Search returns the owner's notes whose title or content contains q.
// An empty query is a validation error.
func (s *NoteService) Search(ctx context.Context, userID, q string) ([]models.Note, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("%w: search query is required", common.ErrValidation)
	}
	return s.repo.Search(ctx, userID, q)
}

// Create stores a note for userID. Title and content are required.
func (s *NoteService) Create(ctx context.Context, userID string, n models.Note) (*models.Note, error) {
	if strings.TrimSpace(n.Title) == "" || strings.TrimSpace(n.Content) == "" {
		return nil, fmt.Errorf("%w: please add a title and content", common.ErrValidation)
	}
	n.UserID = userID
	return s.repo.Create(ctx, &n)
}

// Update applies p to a note owned by userID.
func (s *NoteService) Update(ctx context.Context, userID, id string, p models.NotePatch) (*models.Note, error) {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", common.ErrValidation)
	}
	if p.Content != nil && strings.TrimSpace(*p.Content) == "" {
		return nil, fmt.Errorf("%w: content cannot be empty", common.ErrValidation)
	}
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	n, err := s.repo.Update(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	return n, nil
}

// Delete removes a note owned by userID.
func (s *NoteService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (s *NoteService) owned(ctx context.Context, userID, id string) (*models.Note, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	if n.UserID != userID {
		return nil, fmt.Errorf("note %s: %w", id, common.ErrForbidden)
	}
	return n, nil
}
