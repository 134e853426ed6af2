package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/atinyakov/LittleHelper/internal/common"
	"github.com/atinyakov/LittleHelper/internal/db"
	"github.com/atinyakov/LittleHelper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testStores struct {
	conn     *sql.DB
	store    *Store
	accounts *AccountStore
	notes    *NoteStore
	tasks    *TaskStore
}

func newTestStores(t *testing.T, opts ...Option) *testStores {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Init(ctx, db.SQLite, filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	s := NewStore(conn, db.SQLite, opts...)
	return &testStores{
		conn:     conn,
		store:    s,
		accounts: NewAccountStore(s, conn),
		notes:    NewNoteStore(s),
		tasks:    NewTaskStore(s),
	}
}

func (ts *testStores) account(t *testing.T, username string) *models.Account {
	t.Helper()
	a, err := ts.accounts.Create(context.Background(), &models.Account{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Name:         username,
	})
	require.NoError(t, err)
	return a
}

func TestAccountStore_CreateAndFind(t *testing.T) {
	ts := newTestStores(t)
	ctx := context.Background()

	alice := ts.account(t, "alice")
	assert.NotEmpty(t, alice.ID)
	assert.Equal(t, models.DefaultColorProfile, alice.ColorProfile)
	assert.Equal(t, alice.CreatedAt, alice.UpdatedAt)

	byEmail, err := ts.accounts.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, alice.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byName, err := ts.accounts.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, alice.ID, byName.ID)

	missing, err := ts.accounts.FindByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAccountStore_DuplicateIsConflict(t *testing.T) {
	ts := newTestStores(t)
	ts.account(t, "alice")

	_, err := ts.accounts.Create(context.Background(), &models.Account{
		Username:     "alice2",
		Email:        "alice@example.com",
		PasswordHash: "hash",
	})
	require.ErrorIs(t, err, common.ErrConflict)

	_, err = ts.accounts.Create(context.Background(), &models.Account{
		Username:     "alice",
		Email:        "alice2@example.com",
		PasswordHash: "hash",
	})
	require.ErrorIs(t, err, common.ErrConflict)

	n, err := ts.accounts.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAccountStore_UpdateColorProfile(t *testing.T) {
	ts := newTestStores(t)
	alice := ts.account(t, "alice")

	green := models.ColorProfile("green")
	updated, err := ts.accounts.Update(context.Background(), alice.ID, models.AccountPatch{ColorProfile: &green})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, green, updated.ColorProfile)
	assert.Equal(t, "alice", updated.Name)
	assert.True(t, updated.UpdatedAt.After(alice.UpdatedAt))

	gone, err := ts.accounts.Update(context.Background(), "nope", models.AccountPatch{ColorProfile: &green})
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestAccountStore_DeleteAllPurgesOwnedRecords(t *testing.T) {
	ts := newTestStores(t)
	ctx := context.Background()
	alice := ts.account(t, "alice")
	ts.account(t, "bob")

	_, err := ts.notes.Create(ctx, &models.Note{UserID: alice.ID, Title: "n", Content: "c"})
	require.NoError(t, err)
	_, err = ts.tasks.Create(ctx, &models.Task{UserID: alice.ID, Title: "t"})
	require.NoError(t, err)

	removed, err := ts.accounts.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	for _, table := range []*Table{Users, Notes, Tasks} {
		n, err := ts.store.Count(ctx, table)
		require.NoError(t, err)
		assert.Zero(t, n, table.Name)
	}
}

func TestStore_FindComposesFilters(t *testing.T) {
	ts := newTestStores(t)
	ctx := context.Background()
	alice := ts.account(t, "alice")
	bob := ts.account(t, "bob")

	for _, n := range []models.Note{
		{UserID: alice.ID, Title: "groceries", Content: "milk"},
		{UserID: alice.ID, Title: "work", Content: "deploy", IsPublic: true},
		{UserID: bob.ID, Title: "groceries", Content: "eggs"},
	} {
		_, err := ts.notes.Create(ctx, &n)
		require.NoError(t, err)
	}

	recs, err := ts.store.Find(ctx, Notes, Filter{ColUserID: alice.ID, "title": "groceries"}, Sort{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "milk", recs[0]["content"])

	recs, err = ts.store.Find(ctx, Notes, Filter{"isPublic": true}, Sort{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "work", recs[0]["title"])

	recs, err = ts.store.Find(ctx, Notes, Filter{"content": nil}, Sort{})
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = ts.store.Find(ctx, Notes, Filter{"owner": alice.ID}, Sort{})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestNoteStore_ListByOwnerOrdering(t *testing.T) {
	ts := newTestStores(t)
	ctx := context.Background()
	alice := ts.account(t, "alice")

	for _, title := range []string{"b", "c", "a"} {
		_, err := ts.notes.Create(ctx, &models.Note{UserID: alice.ID, Title: title, Content: "x"})
		require.NoError(t, err)
	}

	titles := func(notes []models.Note) []string {
		out := make([]string, len(notes))
		for i, n := range notes {
			out[i] = n.Title
		}
		return out
	}

	notes, err := ts.notes.ListByOwner(ctx, alice.ID, Sort{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, titles(notes))

	notes, err = ts.notes.ListByOwner(ctx, alice.ID, Sort{Field: "title", Direction: "asc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, titles(notes))

	notes, err = ts.notes.ListByOwner(ctx, alice.ID, Sort{Field: "nope", Direction: "asc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, titles(notes))
}

func TestNoteStore_PartialUpdate(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ts := newTestStores(t, WithClock(func() time.Time { return start }))
	ctx := context.Background()
	alice := ts.account(t, "alice")

	note, err := ts.notes.Create(ctx, &models.Note{UserID: alice.ID, Title: "draft", Content: "body"})
	require.NoError(t, err)

	title := "final"
	updated, err := ts.notes.Update(ctx, note.ID, models.NotePatch{Title: &title})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "final", updated.Title)
	assert.Equal(t, "body", updated.Content)
	assert.Equal(t, note.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(note.UpdatedAt))

	empty, err := ts.notes.Update(ctx, note.ID, models.NotePatch{})
	require.NoError(t, err)
	require.NotNil(t, empty)
	assert.Equal(t, "final", empty.Title)
	assert.True(t, empty.UpdatedAt.After(updated.UpdatedAt))
}

func TestStore_UpdateIgnoresImmutableColumns(t *testing.T) {
	ts := newTestStores(t)
	ctx := context.Background()
	alice := ts.account(t, "alice")
	bob := ts.account(t, "bob")

	note, err := ts.notes.Create(ctx, &models.Note{UserID: alice.ID, Title: "t", Content: "c"})
	require.NoError(t, err)

	rec, ok, err := ts.store.Update(ctx, Notes, note.ID, Record{
		ColUserID:    bob.ID,
		ColCreatedAt: "2000-01-01T00:00:00.000Z",
		"content":    "changed",
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, alice.ID, rec[ColUserID])
	assert.Equal(t, FormatTime(note.CreatedAt), rec[ColCreatedAt])
	assert.Equal(t, "changed", rec["content"])
}

func TestNoteStore_DeleteIsIdempotent(t *testing.T) {
	ts := newTestStores(t)
	ctx := context.Background()
	alice := ts.account(t, "alice")

	note, err := ts.notes.Create(ctx, &models.Note{UserID: alice.ID, Title: "t", Content: "c"})
	require.NoError(t, err)

	ok, err := ts.notes.Delete(ctx, note.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ts.notes.Delete(ctx, note.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := ts.notes.FindByID(ctx, note.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNoteStore_Search(t *testing.T) {
	ts := newTestStores(t)
	ctx := context.Background()
	alice := ts.account(t, "alice")
	bob := ts.account(t, "bob")

	for _, n := range []models.Note{
		{UserID: alice.ID, Title: "Shopping", Content: "100% organic"},
		{UserID: alice.ID, Title: "Budget", Content: "1000 dollars"},
		{UserID: alice.ID, Title: "snake_case", Content: "naming"},
		{UserID: bob.ID, Title: "shopping", Content: "bob's list"},
	} {
		_, err := ts.notes.Create(ctx, &n)
		require.NoError(t, err)
	}

	found, err := ts.notes.Search(ctx, alice.ID, "SHOP")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Shopping", found[0].Title)

	found, err = ts.notes.Search(ctx, alice.ID, "0%")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Shopping", found[0].Title)

	found, err = ts.notes.Search(ctx, alice.ID, "e_c")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "snake_case", found[0].Title)

	found, err = ts.notes.Search(ctx, alice.ID, "missing")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestTaskStore_Tracking(t *testing.T) {
	ts := newTestStores(t)
	ctx := context.Background()
	alice := ts.account(t, "alice")

	task, err := ts.tasks.Create(ctx, &models.Task{UserID: alice.ID, Title: "write report"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotStarted, task.Status)
	assert.Empty(t, task.TimeEntries)
	assert.Equal(t, int64(1), task.Version)

	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, task.Start(t0))
	require.NoError(t, task.Pause(t0.Add(5*time.Second)))

	saved, err := ts.tasks.SaveTracking(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, saved.Status)
	assert.Equal(t, int64(5000), saved.TotalTime)
	assert.Equal(t, int64(2), saved.Version)
	require.Len(t, saved.TimeEntries, 1)
	assert.True(t, saved.TimeEntries[0].StartTime.Equal(t0))
	require.NotNil(t, saved.TimeEntries[0].EndTime)

	// task still carries version 1
	_, err = ts.tasks.SaveTracking(ctx, task)
	require.ErrorIs(t, err, common.ErrConflict)

	reloaded, err := ts.tasks.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Version, reloaded.Version)

	task.ID = "missing"
	_, err = ts.tasks.SaveTracking(ctx, task)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestTaskStore_UpdateKeepsTracking(t *testing.T) {
	ts := newTestStores(t)
	ctx := context.Background()
	alice := ts.account(t, "alice")

	task, err := ts.tasks.Create(ctx, &models.Task{UserID: alice.ID, Title: "t", Description: "d"})
	require.NoError(t, err)
	require.NoError(t, task.Start(time.Now()))
	task, err = ts.tasks.SaveTracking(ctx, task)
	require.NoError(t, err)

	title := "renamed"
	updated, err := ts.tasks.Update(ctx, task.ID, models.TaskPatch{Title: &title})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, "d", updated.Description)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Len(t, updated.TimeEntries, 1)
	assert.Equal(t, task.Version+1, updated.Version)

	list, err := ts.tasks.ListByOwner(ctx, alice.ID, Sort{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	all, err := ts.tasks.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
