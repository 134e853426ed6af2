package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/atinyakov/LittleHelper/internal/common"
	"github.com/atinyakov/LittleHelper/internal/metrics"
	"github.com/atinyakov/LittleHelper/internal/models"
	"github.com/atinyakov/LittleHelper/internal/repository"
	"github.com/atinyakov/LittleHelper/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTokens accepts "token-<userID>".
type fakeTokens struct{}

func (fakeTokens) Parse(raw string) (string, error) {
	id, ok := strings.CutPrefix(raw, "token-")
	if !ok || id == "" {
		return "", common.ErrInvalidToken
	}
	return id, nil
}

// fakeUsers knows every account except "ghost".
type fakeUsers struct{}

func (fakeUsers) FindByID(_ context.Context, id string) (*models.Account, error) {
	if id == "ghost" {
		return nil, nil
	}
	return &models.Account{ID: id}, nil
}

type fakeAccountService struct {
	registerErr error
	lastProfile models.ColorProfile
}

func (f *fakeAccountService) Register(_ context.Context, in service.RegisterInput) (*models.Account, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.Account{ID: "u1", Username: in.Username, Email: in.Email, Name: in.Name, PasswordHash: "hash"}, nil
}

func (f *fakeAccountService) Login(_ context.Context, email, password string) (*service.Session, error) {
	if email != "alice@example.com" || password != "s3cret" {
		return nil, fmt.Errorf("%w: invalid credentials", common.ErrUnauthorized)
	}
	return &service.Session{
		Account: &models.Account{ID: "alice", Email: email, PasswordHash: "hash", ColorProfile: "blue"},
		Token:   "token-alice",
	}, nil
}

func (f *fakeAccountService) Me(_ context.Context, userID string) (*models.Account, error) {
	return &models.Account{ID: userID, PasswordHash: "hash"}, nil
}

func (f *fakeAccountService) UpdateColorProfile(_ context.Context, userID string, p models.ColorProfile) (*models.Account, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: invalid color profile", common.ErrValidation)
	}
	f.lastProfile = p
	return &models.Account{ID: userID, ColorProfile: p}, nil
}

func (f *fakeAccountService) ChangePassword(_ context.Context, _, current, _ string) error {
	if current != "s3cret" {
		return fmt.Errorf("%w: current password is incorrect", common.ErrUnauthorized)
	}
	return nil
}

type fakeNoteService struct {
	lastSort repository.Sort
	lastUser string
}

func (f *fakeNoteService) List(_ context.Context, userID string, sort repository.Sort) ([]models.Note, error) {
	f.lastUser, f.lastSort = userID, sort
	return []models.Note{{ID: "n1", UserID: userID}}, nil
}

func (f *fakeNoteService) Search(_ context.Context, userID, q string) ([]models.Note, error) {
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("%w: search query is required", common.ErrValidation)
	}
	return []models.Note{{ID: "n1", UserID: userID, Title: q}}, nil
}

func (f *fakeNoteService) Create(_ context.Context, userID string, n models.Note) (*models.Note, error) {
	n.ID, n.UserID = "n2", userID
	return &n, nil
}

func (f *fakeNoteService) Update(_ context.Context, userID, id string, p models.NotePatch) (*models.Note, error) {
	if userID != "alice" {
		return nil, fmt.Errorf("note %s: %w", id, common.ErrForbidden)
	}
	n := &models.Note{ID: id, UserID: userID, Title: "old", Content: "old"}
	if p.Title != nil {
		n.Title = *p.Title
	}
	return n, nil
}

func (f *fakeNoteService) Delete(_ context.Context, _, id string) error {
	if id == "missing" {
		return fmt.Errorf("note %s: %w", id, common.ErrNotFound)
	}
	return nil
}

type fakeTaskService struct{}

func (fakeTaskService) List(context.Context, string, repository.Sort) ([]models.Task, error) {
	return []models.Task{}, nil
}

func (fakeTaskService) Create(_ context.Context, userID string, t models.Task) (*models.Task, error) {
	if t.Title == "" {
		return nil, fmt.Errorf("%w: please add a title", common.ErrValidation)
	}
	return &models.Task{ID: "t1", UserID: userID, Title: t.Title, Status: models.StatusNotStarted}, nil
}

func (fakeTaskService) Update(_ context.Context, userID, id string, p models.TaskPatch) (*models.Task, error) {
	return &models.Task{ID: id, UserID: userID, Title: *p.Title}, nil
}

func (fakeTaskService) Delete(context.Context, string, string) error { return nil }

func (fakeTaskService) Start(_ context.Context, userID, id string) (*models.Task, error) {
	switch id {
	case "running":
		return nil, fmt.Errorf("%w: task is already in progress", common.ErrConflict)
	case "missing":
		return nil, fmt.Errorf("task %s: %w", id, common.ErrNotFound)
	case "broken":
		return nil, errors.New("disk on fire")
	}
	return &models.Task{ID: id, UserID: userID, Status: models.StatusInProgress}, nil
}

func (fakeTaskService) Pause(_ context.Context, userID, id string) (*models.Task, error) {
	return &models.Task{ID: id, UserID: userID, Status: models.StatusPaused}, nil
}

func (fakeTaskService) Complete(_ context.Context, userID, id string) (*models.Task, error) {
	if id == "done" {
		return nil, fmt.Errorf("%w: task is already completed", common.ErrConflict)
	}
	return &models.Task{ID: id, UserID: userID, Status: models.StatusCompleted, Completed: true}, nil
}

type fakeAdminService struct {
	lastLimit int
}

func (f *fakeAdminService) Contents(_ context.Context, limit int) (*service.Contents, error) {
	f.lastLimit = limit
	return &service.Contents{}, nil
}

func (f *fakeAdminService) DeleteAllUsers(_ context.Context, code string) (int64, error) {
	if code != service.DeleteAllConfirmation {
		return 0, fmt.Errorf("%w: invalid confirmation code", common.ErrValidation)
	}
	return 4, nil
}

type testServer struct {
	handler  http.Handler
	accounts *fakeAccountService
	notes    *fakeNoteService
	admin    *fakeAdminService
}

func newTestServer() *testServer {
	log := zap.NewNop()
	ts := &testServer{
		accounts: &fakeAccountService{},
		notes:    &fakeNoteService{},
		admin:    &fakeAdminService{},
	}
	ts.handler = NewRouter(Router{
		Accounts: &AccountHandler{Accounts: ts.accounts, Log: log},
		Notes:    &NoteHandler{Notes: ts.notes, Log: log},
		Tasks:    &TaskHandler{Tasks: fakeTaskService{}, Log: log},
		Admin:    &AdminHandler{Admin: ts.admin, Log: log},
		Tokens:   fakeTokens{},
		Users:    fakeUsers{},
		AdminKey: "admin-secret",
		Metrics:  metrics.NewRecorder(),
		Logger:   log,
	})
	return ts
}

type call struct {
	method  string
	path    string
	body    string
	token   string
	headers map[string]string
}

func (ts *testServer) do(c call) *httptest.ResponseRecorder {
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRoutes(t *testing.T) {
	tests := []struct {
		name           string
		call           call
		expectedCode   int
		expectedSubstr string
	}{
		{"root", call{method: "GET", path: "/"}, http.StatusOK, "Welcome"},
		{"api test", call{method: "GET", path: "/api/test"}, http.StatusOK, "API is working"},
		{"register", call{method: "POST", path: "/api/users", body: `{"username":"alice","email":"a@x","password":"p","name":"A"}`}, http.StatusCreated, `"username":"alice"`},
		{"register alias", call{method: "POST", path: "/api/users/register", body: `{"username":"alice"}`}, http.StatusCreated, `"id":"u1"`},
		{"register bad json", call{method: "POST", path: "/api/users", body: `not json`}, http.StatusBadRequest, "invalid request body"},
		{"login", call{method: "POST", path: "/api/users/login", body: `{"email":"alice@example.com","password":"s3cret"}`}, http.StatusOK, `"token":"token-alice"`},
		{"login wrong password", call{method: "POST", path: "/api/users/login", body: `{"email":"alice@example.com","password":"nope"}`}, http.StatusUnauthorized, "invalid credentials"},
		{"me without token", call{method: "GET", path: "/api/users/me"}, http.StatusUnauthorized, "not authorized"},
		{"me with bad token", call{method: "GET", path: "/api/users/me", token: "forged"}, http.StatusUnauthorized, "token failed"},
		{"me of deleted account", call{method: "GET", path: "/api/users/me", token: "token-ghost"}, http.StatusUnauthorized, "user not found"},
		{"me", call{method: "GET", path: "/api/users/me", token: "token-alice"}, http.StatusOK, `"id":"alice"`},
		{"color profile", call{method: "PATCH", path: "/api/users/update-color-profile", body: `{"colorProfile":"teal"}`, token: "token-alice"}, http.StatusOK, `"colorProfile":"teal"`},
		{"color profile invalid", call{method: "PATCH", path: "/api/users/update-color-profile", body: `{"colorProfile":"mauve"}`, token: "token-alice"}, http.StatusBadRequest, "invalid color profile"},
		{"change password", call{method: "PATCH", path: "/api/users/change-password", body: `{"currentPassword":"s3cret","newPassword":"long-enough"}`, token: "token-alice"}, http.StatusOK, "Password updated"},
		{"change password wrong current", call{method: "PATCH", path: "/api/users/change-password", body: `{"currentPassword":"x","newPassword":"long-enough"}`, token: "token-alice"}, http.StatusUnauthorized, "incorrect"},
		{"notes need auth", call{method: "GET", path: "/api/notes"}, http.StatusUnauthorized, "not authorized"},
		{"create note", call{method: "POST", path: "/api/notes", body: `{"title":"t","content":"c"}`, token: "token-alice"}, http.StatusCreated, `"userId":"alice"`},
		{"create note for deleted account", call{method: "POST", path: "/api/notes", body: `{"title":"t","content":"c"}`, token: "token-ghost"}, http.StatusUnauthorized, "user not found"},
		{"update foreign note", call{method: "PUT", path: "/api/notes/n1", body: `{"title":"x"}`, token: "token-bob"}, http.StatusForbidden, "forbidden"},
		{"update note", call{method: "PUT", path: "/api/notes/n1", body: `{"title":"new"}`, token: "token-alice"}, http.StatusOK, `"title":"new"`},
		{"delete note", call{method: "DELETE", path: "/api/notes/n1", token: "token-alice"}, http.StatusOK, `{"id":"n1"}`},
		{"delete missing note", call{method: "DELETE", path: "/api/notes/missing", token: "token-alice"}, http.StatusNotFound, "not found"},
		{"search notes", call{method: "GET", path: "/api/notes/search?q=milk", token: "token-alice"}, http.StatusOK, `"title":"milk"`},
		{"search without query", call{method: "GET", path: "/api/notes/search", token: "token-alice"}, http.StatusBadRequest, "search query is required"},
		{"list tasks", call{method: "GET", path: "/api/tasks", token: "token-alice"}, http.StatusOK, `[]`},
		{"create task", call{method: "POST", path: "/api/tasks", body: `{"title":"t"}`, token: "token-alice"}, http.StatusCreated, `"status":"not_started"`},
		{"create task without title", call{method: "POST", path: "/api/tasks", body: `{}`, token: "token-alice"}, http.StatusBadRequest, "please add a title"},
		{"rename task", call{method: "PUT", path: "/api/tasks/t1", body: `{"title":"renamed"}`, token: "token-alice"}, http.StatusOK, `"title":"renamed"`},
		{"delete task", call{method: "DELETE", path: "/api/tasks/t1", token: "token-alice"}, http.StatusOK, `{"id":"t1"}`},
		{"start task", call{method: "PUT", path: "/api/tasks/t1/start", token: "token-alice"}, http.StatusOK, `"status":"in_progress"`},
		{"start running task", call{method: "PUT", path: "/api/tasks/running/start", token: "token-alice"}, http.StatusConflict, "already in progress"},
		{"start missing task", call{method: "PUT", path: "/api/tasks/missing/start", token: "token-alice"}, http.StatusNotFound, "not found"},
		{"start broken task", call{method: "PUT", path: "/api/tasks/broken/start", token: "token-alice"}, http.StatusInternalServerError, "internal error"},
		{"pause task", call{method: "PUT", path: "/api/tasks/t1/pause", token: "token-alice"}, http.StatusOK, `"status":"paused"`},
		{"complete task", call{method: "PUT", path: "/api/tasks/t1/complete", token: "token-alice"}, http.StatusOK, `"completed":true`},
		{"complete completed task", call{method: "PUT", path: "/api/tasks/done/complete", token: "token-alice"}, http.StatusConflict, "already completed"},
		{"admin without key", call{method: "GET", path: "/api/db/contents"}, http.StatusForbidden, "invalid admin key"},
		{"admin bad limit", call{method: "GET", path: "/api/db/contents?limit=abc", headers: map[string]string{"admin-key": "admin-secret"}}, http.StatusBadRequest, "limit"},
		{"delete all wrong code", call{method: "DELETE", path: "/api/db/delete-all-users", body: `{"confirmationCode":"yes"}`, headers: map[string]string{"admin-key": "admin-secret"}}, http.StatusBadRequest, "confirmation"},
		{"delete all", call{method: "DELETE", path: "/api/db/delete-all-users", body: `{"confirmationCode":"DELETE_ALL_USERS"}`, headers: map[string]string{"admin-key": "admin-secret"}}, http.StatusOK, `"deletedCount":4`},
	}

	ts := newTestServer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(tt.call)
			assert.Equal(t, tt.expectedCode, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.expectedSubstr)
		})
	}
}

func TestPasswordHashNeverSerialized(t *testing.T) {
	ts := newTestServer()

	for _, c := range []call{
		{method: "POST", path: "/api/users", body: `{"username":"alice"}`},
		{method: "POST", path: "/api/users/login", body: `{"email":"alice@example.com","password":"s3cret"}`},
		{method: "GET", path: "/api/users/me", token: "token-alice"},
	} {
		rec := ts.do(c)
		require.Less(t, rec.Code, 300, c.path)
		body := decodeBody(t, rec)
		assert.NotContains(t, body, "password", c.path)
		assert.NotContains(t, body, "PasswordHash", c.path)
	}
}

func TestNoteList_PassesSortAndOwner(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(call{method: "GET", path: "/api/notes?sort=title&order=asc", token: "token-alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", ts.notes.lastUser)
	assert.Equal(t, repository.Sort{Field: "title", Direction: "asc"}, ts.notes.lastSort)
}

func TestAdminContents_Limit(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(call{method: "GET", path: "/api/db/contents?limit=3", headers: map[string]string{"admin-key": "admin-secret"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, ts.admin.lastLimit)
	body := decodeBody(t, rec)
	assert.Contains(t, body, "users")
	assert.Contains(t, body, "tasks")
}

func TestRejectsNonJSONBody(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/users/login", strings.NewReader("email=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer()
	ts.do(call{method: "GET", path: "/api/test"})

	rec := ts.do(call{method: "GET", path: "/metrics"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `littlehelper_http_requests_total{code="200",method="GET",route="/api/test"} 1`)
}
