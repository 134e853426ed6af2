package repository

import (
	"context"
	"fmt"

	"github.com/atinyakov/LittleHelper/internal/models"
)

// NoteStore persists notes.
type NoteStore struct {
	store *Store
}

// NewNoteStore creates a NoteStore.
func NewNoteStore(store *Store) *NoteStore {
	return &NoteStore{store: store}
}

// Create inserts a note owned by n.UserID.
func (r *NoteStore) Create(ctx context.Context, n *models.Note) (*models.Note, error) {
	rec, err := r.store.Create(ctx, Notes, Record{
		ColUserID:  n.UserID,
		"title":    n.Title,
		"content":  n.Content,
		"isPublic": n.IsPublic,
	})
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	return noteFromRecord(rec)
}

// FindByID returns the note or nil when absent.
func (r *NoteStore) FindByID(ctx context.Context, id string) (*models.Note, error) {
	rec, ok, err := r.store.FindByID(ctx, Notes, id)
	if err != nil {
		return nil, fmt.Errorf("find note: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return noteFromRecord(rec)
}

// ListByOwner returns the owner's notes, most recently updated first unless
// sort names another column and direction.
func (r *NoteStore) ListByOwner(ctx context.Context, ownerID string, sort Sort) ([]models.Note, error) {
	recs, err := r.store.Find(ctx, Notes, Filter{ColUserID: ownerID}, sort)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notesFromRecords(recs)
}

// Search returns the owner's notes whose title or content contains q.
func (r *NoteStore) Search(ctx context.Context, ownerID, q string) ([]models.Note, error) {
	recs, err := r.store.Search(ctx, Notes, ownerID, q)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	return notesFromRecords(recs)
}

// Update applies p and returns the updated note, or nil when absent.
func (r *NoteStore) Update(ctx context.Context, id string, p models.NotePatch) (*models.Note, error) {
	fields := Record{}
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.Content != nil {
		fields["content"] = *p.Content
	}
	if p.IsPublic != nil {
		fields["isPublic"] = *p.IsPublic
	}
	rec, ok, err := r.store.Update(ctx, Notes, id, fields)
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return noteFromRecord(rec)
}

// Delete removes the note and reports whether it existed.
func (r *NoteStore) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := r.store.Delete(ctx, Notes, id)
	if err != nil {
		return false, fmt.Errorf("delete note: %w", err)
	}
	return ok, nil
}

// List returns up to limit notes of every owner.
func (r *NoteStore) List(ctx context.Context, limit int) ([]models.Note, error) {
	recs, err := r.store.List(ctx, Notes, limit)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notesFromRecords(recs)
}

// Count returns the number of notes.
func (r *NoteStore) Count(ctx context.Context) (int64, error) {
	return r.store.Count(ctx, Notes)
}

func notesFromRecords(recs []Record) ([]models.Note, error) {
	out := make([]models.Note, 0, len(recs))
	for _, rec := range recs {
		n, err := noteFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, nil
}

func noteFromRecord(rec Record) (*models.Note, error) {
	d := &decoder{table: Notes.Name, rec: rec}
	n := &models.Note{
		ID:        d.str(ColID),
		UserID:    d.str(ColUserID),
		Title:     d.str("title"),
		Content:   d.str("content"),
		IsPublic:  d.boolean("isPublic"),
		CreatedAt: d.timestamp(ColCreatedAt),
		UpdatedAt: d.timestamp(ColUpdatedAt),
	}
	if d.err != nil {
		return nil, d.err
	}
	return n, nil
}
