package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
)

type contextKey struct{}

// Guard resolves the access credential on a request to a user. It caches
// nothing: every call verifies the signature and queries the store.
type Guard struct {
	codec *Codec
	users UserStore
}

func NewGuard(codec *Codec, users UserStore) *Guard {
	return &Guard{codec: codec, users: users}
}

func (g *Guard) Authenticate(r *http.Request) (User, error) {
	credential := extractCredential(r)
	if credential == "" {
		return User{}, ErrUnauthenticated
	}

	claims, err := g.codec.Verify(credential)
	if err != nil || claims.Kind != KindAccess {
		return User{}, ErrInvalidToken
	}

	user, err := g.users.FindByUsername(r.Context(), claims.Subject)
	if err != nil {
		return User{}, err
	}

	return user, nil
}

// Middleware rejects requests that fail Authenticate and stores the resolved
// user in the request context for downstream handlers.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := g.Authenticate(r)
		if err != nil {
			switch {
			case errors.Is(err, ErrUnauthenticated):
				writeError(w, http.StatusUnauthorized, "not authenticated")
			case errors.Is(err, ErrInvalidToken):
				writeError(w, http.StatusUnauthorized, "invalid token")
			case errors.Is(err, ErrUserNotFound):
				writeError(w, http.StatusUnauthorized, "user not found")
			default:
				sentry.CaptureException(err)
				writeError(w, http.StatusInternalServerError, "failed to authenticate")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(contextKey{}).(User)
	return user, ok
}

// extractCredential prefers the access_token cookie and falls back to an
// Authorization: Bearer header.
func extractCredential(r *http.Request) string {
	if cookie, err := r.Cookie(AccessCookieName); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value
		}
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
