package middleware

import (
	"net/http"
	"strings"
)

// CacheControl adds appropriate cache headers to responses.
type CacheControl struct {
	uploadsPrefix string
}

// NewCacheControl creates a new cache control middleware. uploadsPrefix is
// the path public objects are served under.
func NewCacheControl(uploadsPrefix string) *CacheControl {
	if uploadsPrefix == "" {
		return &CacheControl{}
	}
	return &CacheControl{uploadsPrefix: strings.TrimRight(uploadsPrefix, "/") + "/"}
}

// Apply adds cache headers based on the request path.
func (c *CacheControl) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		switch {
		case c.uploadsPrefix != "" && strings.HasPrefix(path, c.uploadsPrefix):
			// Avatars keep their path when replaced.
			w.Header().Set("Cache-Control", "public, max-age=300, must-revalidate")

		case strings.HasPrefix(path, "/api/"):
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
			w.Header().Set("Pragma", "no-cache")

		default:
			w.Header().Set("Cache-Control", "no-store")
		}

		next.ServeHTTP(w, r)
	})
}
