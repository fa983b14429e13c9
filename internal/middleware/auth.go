package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/roots/internal/handlers"
	"github.com/HammerMeetNail/roots/internal/models"
)

const sessionCookieName = "session_token"

type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*models.User, error)
}

type TokenValidator interface {
	Validate(token string) (*models.SessionInfo, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthMiddleware resolves the caller from a session cookie or a bearer token.
type AuthMiddleware struct {
	sessions SessionValidator
	tokens   TokenValidator
	users    UserLookup
}

func NewAuthMiddleware(sessions SessionValidator, tokens TokenValidator, users UserLookup) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, tokens: tokens, users: users}
}

// Authenticate validates the session and adds user to context if valid.
// Does not reject unauthenticated requests.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok {
			if user := m.userFromToken(r.Context(), token); user != nil {
				ctx := handlers.SetUserInContext(r.Context(), user)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" || m.sessions == nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.sessions.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := handlers.SetUserInContext(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) userFromToken(ctx context.Context, token string) *models.User {
	if m.tokens == nil || m.users == nil {
		return nil
	}
	info, err := m.tokens.Validate(token)
	if err != nil {
		return nil
	}
	user, err := m.users.GetByID(ctx, info.UserID)
	if err != nil {
		return nil
	}
	return user
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuth rejects unauthenticated requests with 401.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handlers.GetUserFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}
