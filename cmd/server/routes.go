package main

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/HammerMeetNail/roots/internal/config"
	"github.com/HammerMeetNail/roots/internal/handlers"
	"github.com/HammerMeetNail/roots/internal/logging"
	"github.com/HammerMeetNail/roots/internal/metrics"
	"github.com/HammerMeetNail/roots/internal/middleware"
)

type routerDeps struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.Metrics

	health  *handlers.HealthHandler
	auth    *handlers.AuthHandler
	profile *handlers.ProfileHandler
	rituals *handlers.RitualHandler
	friends *handlers.FriendHandler
	feed    *handlers.FeedHandler

	authenticate *middleware.AuthMiddleware
	authLimiter  *middleware.RateLimiter
}

func newRouter(d routerDeps) http.Handler {
	csrf := middleware.NewCSRFMiddleware(d.cfg.Server.Secure)
	public := func(h http.HandlerFunc) http.Handler { return h }
	limited := func(h http.HandlerFunc) http.Handler { return d.authLimiter.Middleware(h) }
	private := func(h http.HandlerFunc) http.Handler { return d.authenticate.RequireAuth(h) }

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", d.health.Health)
	mux.HandleFunc("GET /ready", d.health.Ready)
	mux.HandleFunc("GET /live", d.health.Live)
	mux.Handle("GET /metrics", d.metrics.Handler())

	mux.Handle("GET /api/csrf", public(csrf.GetToken))

	mux.Handle("POST /api/auth/register", limited(d.auth.Register))
	mux.Handle("POST /api/auth/login", limited(d.auth.Login))
	mux.Handle("POST /api/auth/token", limited(d.auth.Token))
	mux.Handle("POST /api/auth/logout", public(d.auth.Logout))
	mux.Handle("GET /api/auth/session", public(d.auth.Session))
	mux.Handle("GET /api/auth/me", private(d.auth.Me))
	mux.Handle("PUT /api/auth/password", private(d.auth.ChangePassword))

	mux.Handle("PUT /api/profile", private(d.profile.Update))
	mux.Handle("PUT /api/profile/avatar", private(d.profile.UploadAvatar))

	mux.Handle("GET /api/rituals", private(d.rituals.List))
	mux.Handle("POST /api/rituals", private(d.rituals.Create))
	mux.Handle("GET /api/rituals/{id}", private(d.rituals.Get))
	mux.Handle("PUT /api/rituals/{id}", private(d.rituals.Update))
	mux.Handle("DELETE /api/rituals/{id}", private(d.rituals.Delete))
	mux.Handle("POST /api/rituals/{id}/complete", private(d.rituals.Complete))
	mux.Handle("POST /api/rituals/{id}/unchain", private(d.rituals.Unchain))
	mux.Handle("POST /api/chains", private(d.rituals.FormChain))
	mux.Handle("GET /api/garden", private(d.rituals.Garden))
	mux.Handle("GET /api/activity", private(d.rituals.Activity))

	mux.Handle("GET /api/friends", private(d.friends.List))
	mux.Handle("GET /api/friends/search", private(d.friends.Search))
	mux.Handle("POST /api/friends/requests", private(d.friends.SendRequest))
	mux.Handle("PUT /api/friends/requests/{id}/accept", private(d.friends.AcceptRequest))
	mux.Handle("PUT /api/friends/requests/{id}/decline", private(d.friends.DeclineRequest))
	mux.Handle("DELETE /api/friends/requests/{id}/cancel", private(d.friends.CancelRequest))
	mux.Handle("DELETE /api/friends/{id}", private(d.friends.Remove))
	mux.Handle("GET /api/friends/{id}/garden", private(d.friends.Garden))

	mux.Handle("GET /api/feed", private(d.feed.Stream))

	uploadsPrefix := localUploadsPrefix(d.cfg.Storage.PublicURL)
	if uploadsPrefix != "" {
		fs := http.FileServer(http.Dir(d.cfg.Storage.Dir))
		mux.Handle("GET "+uploadsPrefix, http.StripPrefix(uploadsPrefix, fs))
	}

	// Instrument wraps the mux directly so it sees the matched pattern.
	var handler http.Handler = middleware.NewInstrument(d.metrics).Apply(mux)
	handler = d.authenticate.Authenticate(handler)
	handler = csrf.Protect(handler)
	handler = middleware.NewCacheControl(uploadsPrefix).Apply(handler)
	handler = middleware.NewCompress().Apply(handler)
	handler = middleware.NewSecurityHeaders(d.cfg.Server.Secure, imageOrigin(d.cfg.Storage.PublicURL)).Apply(handler)
	handler = middleware.NewRequestLogger(d.logger).Apply(handler)
	return handler
}

// localUploadsPrefix returns the path prefix to serve stored objects under,
// or "" when they are served from another host.
func localUploadsPrefix(publicURL string) string {
	if !strings.HasPrefix(publicURL, "/") {
		return ""
	}
	return strings.TrimSuffix(publicURL, "/") + "/"
}

func imageOrigin(publicURL string) string {
	u, err := url.Parse(publicURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
