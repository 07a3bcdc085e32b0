package auth

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	sessions *Manager
	cookies  CookiePolicy
}

func NewHandler(sessions *Manager, cookies CookiePolicy) *Handler {
	return &Handler{sessions: sessions, cookies: cookies}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type meResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body RegisterRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	session, err := h.sessions.Register(r.Context(), body)
	if err != nil {
		switch {
		case IsValidationError(err):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrDuplicateEmail):
			writeError(w, http.StatusBadRequest, "email is already in use")
		case errors.Is(err, ErrDuplicateUsername):
			writeError(w, http.StatusBadRequest, "name already in use")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to register")
		}
		return
	}

	h.cookies.SetSession(w, session)
	writeJSON(w, http.StatusOK, map[string]string{"msg": "registered successfully"})
}

// Login accepts the OAuth2 password form (username, password) or the same
// fields as JSON.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	body, ok := parseLogin(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	h.cookies.SetSession(w, session)
	writeJSON(w, http.StatusOK, map[string]string{"msg": "logged in successfully"})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var refreshToken string
	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		refreshToken = cookie.Value
	}

	grant, err := h.sessions.Refresh(refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "not logged in")
		case errors.Is(err, ErrInvalidToken):
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to refresh token")
		}
		return
	}

	h.cookies.SetAccess(w, grant)
	writeJSON(w, http.StatusOK, map[string]string{"msg": "access token refreshed"})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout()
	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"msg": "logout successful"})
}

// Me must be mounted behind Guard.Middleware.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{ID: user.ID, Username: user.Username, Email: user.Email})
}

func parseLogin(w http.ResponseWriter, r *http.Request) (loginRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body loginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return loginRequest{}, false
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form body")
			return loginRequest{}, false
		}
		body.Username = r.PostForm.Get("username")
		body.Password = r.PostForm.Get("password")
	}

	if strings.TrimSpace(body.Username) == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return loginRequest{}, false
	}

	return body, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
