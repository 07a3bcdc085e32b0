package task

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-manager/internal/auth"
)

type memoryStore struct {
	mu    sync.Mutex
	tasks map[string]Task
	err   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{tasks: make(map[string]Task)}
}

func (s *memoryStore) List(_ context.Context, ownerID string) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Task, 0)
	for _, t := range s.tasks {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memoryStore) Get(_ context.Context, ownerID, id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Task{}, s.err
	}
	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (s *memoryStore) Create(_ context.Context, ownerID string, input CreateInput) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Task{}, s.err
	}
	now := time.Now().UTC()
	t := Task{
		ID: uuid.Must(uuid.NewV7()).String(), OwnerID: ownerID,
		Title: input.Title, Description: input.Description, Completed: input.Completed,
		CreatedAt: now, UpdatedAt: now,
	}
	s.tasks[t.ID] = t
	return t, nil
}

func (s *memoryStore) Update(_ context.Context, ownerID, id string, patch PatchInput) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Task{}, s.err
	}
	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return Task{}, ErrNotFound
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	s.tasks[id] = t
	return t, nil
}

func (s *memoryStore) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

var (
	alice = auth.User{ID: "0190f7a6-0000-7000-8000-000000000001", Username: "alice"}
	bob   = auth.User{ID: "0190f7a6-0000-7000-8000-000000000002", Username: "bob"}
)

// newTestRouter mounts the task routes behind a stub that authenticates as
// the user named in the X-Test-User header.
func newTestRouter(store Store) http.Handler {
	users := map[string]auth.User{alice.Username: alice, bob.Username: bob}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if user, ok := users[req.Header.Get("X-Test-User")]; ok {
				req = req.WithContext(auth.WithUser(req.Context(), user))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/api/task", NewHandler(store).Routes)
	return r
}

type taskEnvelope struct {
	Message   string `json:"message"`
	Task      Task   `json:"task"`
	Tasks     []Task `json:"tasks"`
	DeletedID string `json:"deleted_id"`
	Error     string `json:"error"`
}

func do(t *testing.T, h http.Handler, user, method, path, body string) (int, taskEnvelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env taskEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestHandler_CRUD(t *testing.T) {
	h := newTestRouter(newMemoryStore())

	code, env := do(t, h, "alice", http.MethodPost, "/api/task",
		`{"title":"Buy milk","description":"two litres, skimmed","completed":false}`)
	require.Equal(t, http.StatusCreated, code)
	created := env.Task
	assert.Equal(t, "Buy milk", created.Title)
	assert.NotEmpty(t, created.ID)

	code, env = do(t, h, "alice", http.MethodGet, "/api/task", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, env.Tasks, 1)
	assert.Equal(t, created.ID, env.Tasks[0].ID)

	code, env = do(t, h, "alice", http.MethodGet, "/api/task/"+created.ID, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "two litres, skimmed", env.Task.Description)

	code, env = do(t, h, "alice", http.MethodPatch, "/api/task/"+created.ID, `{"completed":true}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Task.Completed)
	assert.Equal(t, "Buy milk", env.Task.Title, "unset fields are kept")

	code, env = do(t, h, "alice", http.MethodDelete, "/api/task/"+created.ID, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, created.ID, env.DeletedID)

	code, _ = do(t, h, "alice", http.MethodGet, "/api/task/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandler_OwnerIsolation(t *testing.T) {
	h := newTestRouter(newMemoryStore())

	_, env := do(t, h, "alice", http.MethodPost, "/api/task",
		`{"title":"Secret plan","description":"nobody else should see this","completed":false}`)
	id := env.Task.ID

	code, env := do(t, h, "bob", http.MethodGet, "/api/task", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, env.Tasks)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		code, env = do(t, h, "bob", method, "/api/task/"+id, "")
		assert.Equal(t, http.StatusNotFound, code, method)
		assert.Equal(t, "task not found", env.Error)
	}

	code, _ = do(t, h, "bob", http.MethodPatch, "/api/task/"+id, `{"completed":true}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandler_BadRequests(t *testing.T) {
	h := newTestRouter(newMemoryStore())

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		message string
	}{
		{"short title", http.MethodPost, "/api/task", `{"title":"abc","description":"two litres, skimmed"}`, ErrInvalidTitle.Error()},
		{"short description", http.MethodPost, "/api/task", `{"title":"Buy milk","description":"milk"}`, ErrInvalidDescription.Error()},
		{"unknown field", http.MethodPost, "/api/task", `{"title":"Buy milk","owner_id":"x"}`, "invalid json body"},
		{"malformed id", http.MethodGet, "/api/task/42", "", "invalid task id"},
		{"patch short title", http.MethodPatch, "/api/task/" + uuid.NewString(), `{"title":"no"}`, ErrInvalidTitle.Error()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, env := do(t, h, "alice", tc.method, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, tc.message, env.Error)
		})
	}
}

func TestHandler_RequiresUser(t *testing.T) {
	h := newTestRouter(newMemoryStore())

	code, env := do(t, h, "", http.MethodGet, "/api/task", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "not authenticated", env.Error)
}

func TestHandler_StoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("database is down")
	h := newTestRouter(store)

	code, env := do(t, h, "alice", http.MethodGet, "/api/task", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "failed to list tasks", env.Error)

	code, _ = do(t, h, "alice", http.MethodDelete, "/api/task/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusInternalServerError, code)
}
