package task

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"task-manager/internal/auth"
)

const maxJSONBodyBytes = 1 << 20

// Handler serves the task routes. It expects auth.Guard to run first.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Routes mounts the task endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{task_id}", h.Get)
	r.Patch("/{task_id}", h.Update)
	r.Delete("/{task_id}", h.Delete)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	tasks, err := h.store.List(r.Context(), owner)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "tasks retrieved successfully", "tasks": tasks})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	t, err := h.store.Get(r.Context(), owner, id)
	if err != nil {
		h.writeStoreError(w, err, "failed to get task")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "task retrieved successfully", "task": t})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var input CreateInput
	if !decodeBody(w, r, &input) {
		return
	}
	input.Normalize()
	if err := input.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.store.Create(r.Context(), owner, input)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"message": "task added successfully", "task": t})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var patch PatchInput
	if !decodeBody(w, r, &patch) {
		return
	}
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.store.Update(r.Context(), owner, id, patch)
	if err != nil {
		h.writeStoreError(w, err, "failed to update task")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "task updated successfully", "task": t})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), owner, id); err != nil {
		h.writeStoreError(w, err, "failed to delete task")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "task deleted successfully", "deleted_id": id})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	sentry.CaptureException(err)
	writeError(w, http.StatusInternalServerError, message)
}

func ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return "", false
	}
	return user.ID, true
}

func taskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "task_id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return "", false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
