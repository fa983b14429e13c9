package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/HammerMeetNail/roots/internal/logging"
	"github.com/HammerMeetNail/roots/internal/models"
	"github.com/HammerMeetNail/roots/internal/services"
)

const (
	sessionCookieName = "session_token"
	cookieMaxAge      = 30 * 24 * 60 * 60 // 30 days in seconds
)

type AuthHandler struct {
	userService         services.UserServiceInterface
	authService         services.AuthServiceInterface
	tokenService        services.TokenServiceInterface
	secure              bool // Use secure cookies (HTTPS only)
	sessionCheckTimeout time.Duration
}

func NewAuthHandler(
	userService services.UserServiceInterface,
	authService services.AuthServiceInterface,
	tokenService services.TokenServiceInterface,
	secure bool,
	sessionCheckTimeout time.Duration,
) *AuthHandler {
	return &AuthHandler{
		userService:         userService,
		authService:         authService,
		tokenService:        tokenService,
		secure:              secure,
		sessionCheckTimeout: sessionCheckTimeout,
	}
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User    *models.User `json:"user"`
	Message string       `json:"message,omitempty"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid email address")
		return
	}

	if err := validatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if len(req.DisplayName) < 2 || len(req.DisplayName) > 100 {
		writeError(w, http.StatusBadRequest, "Display name must be between 2 and 100 characters")
		return
	}

	passwordHash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		writeServiceError(w, "hashing password", err)
		return
	}

	user, err := h.userService.Create(r.Context(), models.CreateUserParams{
		Email:        req.Email,
		PasswordHash: passwordHash,
		DisplayName:  req.DisplayName,
		Timezone:     strings.TrimSpace(req.Timezone),
	})
	if errors.Is(err, services.ErrEmailAlreadyExists) {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	if err != nil {
		writeServiceError(w, "creating user", err)
		return
	}

	token, err := h.authService.CreateSession(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "creating session", err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, AuthResponse{User: user})
}

// authenticate checks credentials, writing 401 on any mismatch so unknown
// emails and wrong passwords look the same.
func (h *AuthHandler) authenticate(w http.ResponseWriter, r *http.Request) *models.User {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return nil
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	user, err := h.userService.GetByEmail(r.Context(), req.Email)
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return nil
	}
	if err != nil {
		writeServiceError(w, "getting user", err)
		return nil
	}

	if !h.authService.VerifyPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return nil
	}
	return user
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	user := h.authenticate(w, r)
	if user == nil {
		return
	}

	token, err := h.authService.CreateSession(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "creating session", err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, AuthResponse{User: user})
}

// Token exchanges credentials for a bearer token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	user := h.authenticate(w, r)
	if user == nil {
		return
	}

	token, expiresAt, err := h.tokenService.Issue(user)
	if err != nil {
		writeServiceError(w, "issuing token", err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token, ExpiresAt: expiresAt})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if err := h.authService.DeleteSession(r.Context(), cookie.Value); err != nil {
			logging.Warn("Error deleting session", map[string]interface{}{"error": err.Error()})
		}
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, AuthResponse{Message: "Logged out successfully"})
}

// Session reports the signed-in user, or a null user when there is none.
// The lookup is bounded so a slow session store reads as signed out.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	if user := GetUserFromContext(r.Context()); user != nil {
		writeJSON(w, http.StatusOK, AuthResponse{User: user})
		return
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusOK, AuthResponse{})
		return
	}

	user, err := h.authService.CheckSession(r.Context(), cookie.Value, h.sessionCheckTimeout)
	if err != nil {
		if !errors.Is(err, services.ErrSessionNotFound) && !errors.Is(err, services.ErrSessionExpired) {
			logging.Warn("Session check failed", map[string]interface{}{"error": err.Error()})
		}
		writeJSON(w, http.StatusOK, AuthResponse{})
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: user})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: user})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if !h.authService.VerifyPassword(user.PasswordHash, req.CurrentPassword) {
		writeError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	if err := validatePassword(req.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	newHash, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		writeServiceError(w, "hashing password", err)
		return
	}

	if err := h.userService.UpdatePassword(r.Context(), user.ID, newHash); err != nil {
		writeServiceError(w, "updating password", err)
		return
	}

	// Invalidate all other sessions
	if err := h.authService.DeleteAllUserSessions(r.Context(), user.ID); err != nil {
		logging.Warn("Error deleting sessions", map[string]interface{}{
			"user_id": user.ID.String(),
			"error":   err.Error(),
		})
	}

	token, err := h.authService.CreateSession(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "creating session", err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, AuthResponse{Message: "Password changed successfully"})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
	})
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if len([]byte(password)) > 72 {
		return errors.New("password must be at most 72 bytes")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return errors.New("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
