package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HammerMeetNail/roots/internal/config"
	"github.com/HammerMeetNail/roots/internal/database"
	"github.com/HammerMeetNail/roots/internal/handlers"
	"github.com/HammerMeetNail/roots/internal/logging"
	"github.com/HammerMeetNail/roots/internal/metrics"
	"github.com/HammerMeetNail/roots/internal/middleware"
	"github.com/HammerMeetNail/roots/internal/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New()
	if cfg.Server.IsDevelopment() {
		logger.SetFormat(logging.FormatText)
	}
	if cfg.Server.Debug {
		logger.SetLevel(logging.LevelDebug)
	}
	logging.Default = logger

	logger.Info("Starting Roots server...", map[string]interface{}{"env": cfg.Server.Environment})

	ctx := context.Background()

	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(ctx, cfg.Database.DSN(), database.DefaultPoolOptions)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN(), "migrations")
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	logger.Info("Connecting to Redis", map[string]interface{}{"addr": cfg.Redis.Addr()})
	redisDB, err := database.NewRedisDB(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()

	store, err := services.NewFSStore(cfg.Storage.Dir, cfg.Storage.PublicURL)
	if err != nil {
		return fmt.Errorf("opening object store: %w", err)
	}

	m := metrics.New()
	dbAdapter := services.NewPoolDB(db.Pool)
	feed := services.NewFeedService(redisDB.Client)

	userService := services.NewUserService(dbAdapter)
	authService := services.NewAuthService(dbAdapter, services.NewRedisAdapter(redisDB.Client))
	tokenService := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	emailService := services.NewEmailService(&cfg.Email)
	ritualService := services.NewRitualService(dbAdapter, feed, m)
	friendService := services.NewFriendService(dbAdapter, emailService, feed, m)
	avatarService := services.NewAvatarService(store, userService)

	handler := newRouter(routerDeps{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		health: handlers.NewHealthHandler(
			handlers.NamedCheck{Name: "postgres", Checker: db},
			handlers.NamedCheck{Name: "redis", Checker: redisDB},
		),
		auth:         handlers.NewAuthHandler(userService, authService, tokenService, cfg.Server.Secure, cfg.Auth.SessionCheckTimeout),
		profile:      handlers.NewProfileHandler(userService, avatarService),
		rituals:      handlers.NewRitualHandler(ritualService),
		friends:      handlers.NewFriendHandler(friendService, ritualService, userService),
		feed:         handlers.NewFeedHandler(feed, friendService, m),
		authenticate: middleware.NewAuthMiddleware(authService, tokenService, userService),
		authLimiter:  middleware.NewAuthRateLimiter(redisDB.Client, cfg.Auth.RateLimit),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{"addr": addr})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}
