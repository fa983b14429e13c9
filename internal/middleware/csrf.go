package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"time"
)

const (
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfTokenLen   = 32
	csrfMaxAge     = 12 * 60 * 60
)

type CSRFMiddleware struct {
	secure bool
}

func NewCSRFMiddleware(secure bool) *CSRFMiddleware {
	return &CSRFMiddleware{secure: secure}
}

func (m *CSRFMiddleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			m.ensureToken(w, r)
			next.ServeHTTP(w, r)
			return
		}

		// Bearer requests are not cookie authenticated.
		if _, ok := bearerToken(r); ok {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil {
			writeError(w, http.StatusForbidden, "CSRF token missing")
			return
		}

		headerToken := r.Header.Get(csrfHeaderName)
		if headerToken == "" {
			writeError(w, http.StatusForbidden, "CSRF token header missing")
			return
		}

		if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(headerToken)) != 1 {
			writeError(w, http.StatusForbidden, "CSRF token mismatch")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *CSRFMiddleware) ensureToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(csrfCookieName)
	if err == nil && cookie.Value != "" {
		w.Header().Set(csrfHeaderName, cookie.Value)
		return
	}

	token, err := generateCSRFToken()
	if err != nil {
		return
	}
	m.setCookie(w, token)
	w.Header().Set(csrfHeaderName, token)
}

// setCookie stores token in a cookie readable by page scripts.
func (m *CSRFMiddleware) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   csrfMaxAge,
		HttpOnly: false,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(csrfMaxAge * time.Second),
	})
}

func generateCSRFToken() (string, error) {
	bytes := make([]byte, csrfTokenLen)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// GetToken serves GET /api/csrf.
func (m *CSRFMiddleware) GetToken(w http.ResponseWriter, r *http.Request) {
	token := ""
	if cookie, err := r.Cookie(csrfCookieName); err == nil {
		token = cookie.Value
	}
	if token == "" {
		var err error
		if token, err = generateCSRFToken(); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to generate CSRF token")
			return
		}
		m.setCookie(w, token)
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"token":"` + token + `"}`))
}
