package api

import (
	"context"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atinyakov/LittleHelper/internal/auth"
	"github.com/atinyakov/LittleHelper/internal/common"
	"github.com/atinyakov/LittleHelper/internal/db"
	"github.com/atinyakov/LittleHelper/internal/models"
	"github.com/atinyakov/LittleHelper/internal/repository"
	handler "github.com/atinyakov/LittleHelper/internal/server/handler/http"
	"github.com/atinyakov/LittleHelper/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestServer serves the full API over a fresh sqlite database.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := zap.NewNop()
	conn, err := db.Init(context.Background(), db.SQLite, filepath.Join(t.TempDir(), "api.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	store := repository.NewStore(conn, db.SQLite)
	accounts := repository.NewAccountStore(store, conn)
	notes := repository.NewNoteStore(store)
	tasks := repository.NewTaskStore(store)
	tokens := auth.NewTokens("test-secret", auth.DefaultTokenTTL)

	router := handler.NewRouter(handler.Router{
		Accounts: &handler.AccountHandler{Accounts: service.NewAccountService(accounts, tokens), Log: log},
		Notes:    &handler.NoteHandler{Notes: service.NewNoteService(notes), Log: log},
		Tasks:    &handler.TaskHandler{Tasks: service.NewTaskService(tasks, log), Log: log},
		Admin:    &handler.AdminHandler{Admin: service.NewAdminService(accounts, notes, tasks, log), Log: log},
		Tokens:   tokens,
		Users:    accounts,
		AdminKey: "admin-secret",
		Logger:   log,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func loggedIn(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	ctx := context.Background()
	c := New(srv.URL, "")
	_, err := c.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "wonderland", Name: "Alice"})
	require.NoError(t, err)
	resp, err := c.Login(ctx, "alice@example.com", "wonderland")
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.Equal(t, resp.Token, c.Token)
	return c
}

func TestClient_AccountFlow(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	c := loggedIn(t, srv)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, models.DefaultColorProfile, me.ColorProfile)

	require.NoError(t, c.UpdateColorProfile(ctx, models.ColorProfile("green")))
	me, err = c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ColorProfile("green"), me.ColorProfile)

	err = c.ChangePassword(ctx, "wrong-password", "another-secret")
	assert.True(t, errors.Is(err, common.ErrUnauthorized), "got %v", err)
	require.NoError(t, c.ChangePassword(ctx, "wonderland", "looking-glass"))

	_, err = New(srv.URL, "").Login(ctx, "alice@example.com", "wonderland")
	assert.True(t, errors.Is(err, common.ErrUnauthorized))

	_, err = c.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "wonderland"})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Contains(t, apiErr.Message, "user already exists")
}

func TestClient_Notes(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	c := loggedIn(t, srv)

	first, err := c.CreateNote(ctx, "Groceries", "milk, eggs", false)
	require.NoError(t, err)
	_, err = c.CreateNote(ctx, "Ideas", "a 50% faster parser", true)
	require.NoError(t, err)

	notes, err := c.ListNotes(ctx, "title", "asc")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "Groceries", notes[0].Title)

	found, err := c.SearchNotes(ctx, "50%")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Ideas", found[0].Title)

	title := "Shopping"
	updated, err := c.UpdateNote(ctx, first.ID, models.NotePatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Shopping", updated.Title)
	assert.Equal(t, "milk, eggs", updated.Content)

	require.NoError(t, c.DeleteNote(ctx, first.ID))
	err = c.DeleteNote(ctx, first.ID)
	assert.True(t, errors.Is(err, common.ErrNotFound), "got %v", err)
}

func TestClient_UpdateNoteBlankContent(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	c := loggedIn(t, srv)

	n, err := c.CreateNote(ctx, "Groceries", "milk, eggs", false)
	require.NoError(t, err)

	blank := "   "
	_, err = c.UpdateNote(ctx, n.ID, models.NotePatch{Content: &blank})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)

	notes, err := c.ListNotes(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "milk, eggs", notes[0].Content)
}

func TestClient_TaskTracking(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	c := loggedIn(t, srv)

	task, err := c.CreateTask(ctx, "Write report", "quarterly")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotStarted, task.Status)

	task, err = c.Transition(ctx, task.ID, models.TransitionStart)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, task.Status)

	_, err = c.Transition(ctx, task.ID, models.TransitionStart)
	assert.True(t, errors.Is(err, common.ErrConflict), "got %v", err)

	task, err = c.Transition(ctx, task.ID, models.TransitionPause)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, task.Status)
	require.Len(t, task.TimeEntries, 1)
	assert.NotNil(t, task.TimeEntries[0].EndTime)

	task, err = c.Transition(ctx, task.ID, models.TransitionComplete)
	require.NoError(t, err)
	assert.True(t, task.Completed)

	_, err = c.Transition(ctx, task.ID, models.TransitionComplete)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Contains(t, apiErr.Message, "already completed")

	tasks, err := c.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, c.DeleteTask(ctx, task.ID))
	tasks, err = c.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestClient_Unauthorized(t *testing.T) {
	srv := newTestServer(t)

	_, err := New(srv.URL, "").ListNotes(context.Background(), "", "")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "not authorized, no token", apiErr.Message)
	assert.True(t, errors.Is(err, common.ErrUnauthorized))
}

func TestClient_DeletedAccountToken(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	c := loggedIn(t, srv)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, srv.URL+"/api/db/delete-all-users",
		strings.NewReader(`{"confirmationCode":"`+service.DeleteAllConfirmation+`"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("admin-key", "admin-secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = c.CreateNote(ctx, "Orphan", "should not be stored", false)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "not authorized, user not found", apiErr.Message)
	assert.True(t, errors.Is(err, common.ErrUnauthorized))
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "token").Me(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "bad gateway", apiErr.Message)
	assert.NoError(t, errors.Unwrap(apiErr))
}

func TestClient_TrustCA(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	caFile := filepath.Join(dir, "ca.crt")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o600))

	c := New(srv.URL, "tok")
	_, err := c.ListTasks(context.Background())
	require.Error(t, err, "unknown authority must be rejected")

	require.NoError(t, c.TrustCA(caFile))
	tasks, err := c.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)

	bad := filepath.Join(dir, "bad.crt")
	require.NoError(t, os.WriteFile(bad, []byte("not a pem"), 0o600))
	assert.Error(t, c.TrustCA(bad))
	assert.Error(t, c.TrustCA(filepath.Join(dir, "missing.crt")))
}
