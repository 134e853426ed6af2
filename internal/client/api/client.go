// Package api is a typed client for the LittleHelper REST API.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/atinyakov/LittleHelper/internal/common"
	"github.com/atinyakov/LittleHelper/internal/models"
)

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 10 * time.Second

// Error is a non-2xx answer from the server.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap maps the status code back to the shared sentinel errors so callers
// can use errors.Is(err, common.ErrNotFound) and friends.
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return common.ErrValidation
	case http.StatusUnauthorized:
		return common.ErrUnauthorized
	case http.StatusForbidden:
		return common.ErrForbidden
	case http.StatusNotFound:
		return common.ErrNotFound
	case http.StatusConflict:
		return common.ErrConflict
	}
	return nil
}

// Client calls the API at BaseURL. Token, when set, is sent as a bearer token.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New returns a Client with a default http.Client.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: DefaultTimeout},
	}
}

// TrustCA makes the client accept server certificates signed by the PEM
// encoded CA in caFile.
func (c *Client) TrustCA(caFile string) error {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return fmt.Errorf("failed to read CA cert: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return errors.New("failed to parse CA cert")
	}
	c.HTTP.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: caPool, MinVersion: tls.VersionTLS12},
	}
	return nil
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginResponse is the account returned by login together with its token.
type LoginResponse struct {
	models.Account
	Token string `json:"token"`
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*models.Account, error) {
	var a models.Account
	if err := c.do(ctx, http.MethodPost, "/api/users/register", req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Login exchanges credentials for a token. The token is also stored on c.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/users/login", body, &resp); err != nil {
		return nil, err
	}
	c.Token = resp.Token
	return &resp, nil
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (*models.Account, error) {
	var a models.Account
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ChangePassword replaces the account password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"currentPassword": current, "newPassword": next}
	return c.do(ctx, http.MethodPatch, "/api/users/change-password", body, nil)
}

// UpdateColorProfile switches the account color theme.
func (c *Client) UpdateColorProfile(ctx context.Context, profile models.ColorProfile) error {
	body := map[string]models.ColorProfile{"colorProfile": profile}
	return c.do(ctx, http.MethodPatch, "/api/users/update-color-profile", body, nil)
}

// ListNotes returns the caller's notes. Empty sort values use the server default.
func (c *Client) ListNotes(ctx context.Context, sort, order string) ([]models.Note, error) {
	q := url.Values{}
	if sort != "" {
		q.Set("sort", sort)
	}
	if order != "" {
		q.Set("order", order)
	}
	path := "/api/notes"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var notes []models.Note
	if err := c.do(ctx, http.MethodGet, path, nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// SearchNotes returns notes whose title or content contains text.
func (c *Client) SearchNotes(ctx context.Context, text string) ([]models.Note, error) {
	var notes []models.Note
	path := "/api/notes/search?" + url.Values{"q": {text}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// CreateNote adds a note.
func (c *Client) CreateNote(ctx context.Context, title, content string, public bool) (*models.Note, error) {
	var n models.Note
	body := map[string]any{"title": title, "content": content, "isPublic": public}
	if err := c.do(ctx, http.MethodPost, "/api/notes", body, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateNote applies a partial update to a note.
func (c *Client) UpdateNote(ctx context.Context, id string, p models.NotePatch) (*models.Note, error) {
	var n models.Note
	if err := c.do(ctx, http.MethodPut, "/api/notes/"+url.PathEscape(id), p, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteNote removes a note.
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notes/"+url.PathEscape(id), nil, nil)
}

// ListTasks returns the caller's tasks, newest first.
func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask adds a task in the not_started state.
func (c *Client) CreateTask(ctx context.Context, title, description string) (*models.Task, error) {
	var t models.Task
	body := map[string]string{"title": title, "description": description}
	if err := c.do(ctx, http.MethodPost, "/api/tasks", body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask changes a task's title or description.
func (c *Client) UpdateTask(ctx context.Context, id string, p models.TaskPatch) (*models.Task, error) {
	var t models.Task
	if err := c.do(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(id), p, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
}

// Transition applies start, pause or complete to a task.
func (c *Client) Transition(ctx context.Context, id string, tr models.Transition) (*models.Task, error) {
	var t models.Task
	path := "/api/tasks/" + url.PathEscape(id) + "/" + string(tr)
	if err := c.do(ctx, http.MethodPut, path, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func readError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.Message == "" {
		msg.Message = strings.TrimSpace(string(data))
	}
	return &Error{Status: resp.StatusCode, Message: msg.Message}
}
