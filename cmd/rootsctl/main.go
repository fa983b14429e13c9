package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/HammerMeetNail/roots/internal/config"
	"github.com/HammerMeetNail/roots/internal/database"
	"github.com/HammerMeetNail/roots/internal/logging"
	"github.com/HammerMeetNail/roots/internal/services"
)

type CLI struct {
	Migrations string `help:"Migrations directory." type:"path" default:"migrations"`

	Migrate MigrateCmd `cmd:"" help:"Manage database migrations."`
	Garden  GardenCmd  `cmd:"" help:"Print a user's garden as JSON."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("rootsctl"),
		kong.Description("Administrative tasks for the Roots server"),
		kong.UsageOnError(),
	)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		os.Exit(1)
	}

	appCtx := &Context{
		Out: os.Stdout,
		Now: time.Now,
		OpenMigrator: func() (Migrator, error) {
			m, err := database.NewMigrator(cfg.Database.DSN(), cli.Migrations)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		OpenServices: func(ctx context.Context) (*Services, error) {
			return openServices(ctx, cfg)
		},
	}

	if err := kctx.Run(appCtx); err != nil {
		logging.Error("rootsctl failed", map[string]interface{}{
			"command": kctx.Command(),
			"error":   err.Error(),
		})
		os.Exit(1)
	}
}

func openServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	db, err := database.NewPostgresDB(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: 2})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	pool := services.NewPoolDB(db.Pool)
	return &Services{
		Users:   services.NewUserService(pool),
		Rituals: services.NewRitualService(pool, nil, nil),
		Close:   db.Close,
	}, nil
}
