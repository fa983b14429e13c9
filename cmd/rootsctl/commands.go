package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/HammerMeetNail/roots/internal/rituals"
	"github.com/HammerMeetNail/roots/internal/services"
)

// Migrator is the subset of database.Migrator the CLI drives.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Version() (uint, bool, error)
	Close() error
}

type Services struct {
	Users   services.UserServiceInterface
	Rituals services.RitualServiceInterface
	Close   func()
}

// Context is bound into every command's Run method.
type Context struct {
	Out          io.Writer
	Now          func() time.Time
	OpenMigrator func() (Migrator, error)
	OpenServices func(ctx context.Context) (*Services, error)
}

func (c *Context) withMigrator(fn func(Migrator) error) error {
	m, err := c.OpenMigrator()
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer func() { _ = m.Close() }()
	return fn(m)
}

type MigrateCmd struct {
	Up      MigrateUpCmd      `cmd:"" help:"Apply all pending migrations."`
	Down    MigrateDownCmd    `cmd:"" help:"Roll back every migration."`
	Steps   MigrateStepsCmd   `cmd:"" help:"Apply (n>0) or roll back (n<0) n migrations."`
	Force   MigrateForceCmd   `cmd:"" help:"Set the version without running migrations."`
	Version MigrateVersionCmd `cmd:"" help:"Print the current version."`
}

type MigrateUpCmd struct{}

func (cmd *MigrateUpCmd) Run(ctx *Context) error {
	return ctx.withMigrator(func(m Migrator) error {
		if err := m.Up(); err != nil {
			return err
		}
		fmt.Fprintln(ctx.Out, "migrations applied")
		return nil
	})
}

type MigrateDownCmd struct{}

func (cmd *MigrateDownCmd) Run(ctx *Context) error {
	return ctx.withMigrator(func(m Migrator) error {
		if err := m.Down(); err != nil {
			return err
		}
		fmt.Fprintln(ctx.Out, "migrations rolled back")
		return nil
	})
}

type MigrateStepsCmd struct {
	N int `arg:"" help:"Number of steps; negative rolls back."`
}

func (cmd *MigrateStepsCmd) Run(ctx *Context) error {
	if cmd.N == 0 {
		return errors.New("steps must be non-zero")
	}
	return ctx.withMigrator(func(m Migrator) error {
		if err := m.Steps(cmd.N); err != nil {
			return err
		}
		fmt.Fprintf(ctx.Out, "migrated %d step(s)\n", cmd.N)
		return nil
	})
}

type MigrateForceCmd struct {
	Version int `arg:"" help:"Version to record."`
}

func (cmd *MigrateForceCmd) Run(ctx *Context) error {
	return ctx.withMigrator(func(m Migrator) error {
		if err := m.Force(cmd.Version); err != nil {
			return err
		}
		fmt.Fprintf(ctx.Out, "forced version %d\n", cmd.Version)
		return nil
	})
}

type MigrateVersionCmd struct{}

func (cmd *MigrateVersionCmd) Run(ctx *Context) error {
	return ctx.withMigrator(func(m Migrator) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if dirty {
			fmt.Fprintf(ctx.Out, "version %d (dirty)\n", version)
			return nil
		}
		fmt.Fprintf(ctx.Out, "version %d\n", version)
		return nil
	})
}

type GardenCmd struct {
	Email string `required:"" help:"Email of the garden's owner."`
	Date  string `help:"Evaluate as of this date (YYYY-MM-DD) instead of the owner's today."`
}

func (cmd *GardenCmd) Run(ctx *Context) error {
	bg := context.Background()
	svc, err := ctx.OpenServices(bg)
	if err != nil {
		return err
	}
	if svc.Close != nil {
		defer svc.Close()
	}

	user, err := svc.Users.GetByEmail(bg, cmd.Email)
	if err != nil {
		return fmt.Errorf("finding %s: %w", cmd.Email, err)
	}

	var today time.Time
	if cmd.Date != "" {
		today, err = time.Parse(time.DateOnly, cmd.Date)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	} else {
		loc, err := time.LoadLocation(user.Timezone)
		if err != nil {
			loc = time.UTC
		}
		today = rituals.Today(ctx.Now(), loc)
	}

	garden, err := svc.Rituals.Garden(bg, user.ID, today)
	if err != nil {
		return fmt.Errorf("loading garden: %w", err)
	}

	enc := json.NewEncoder(ctx.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(garden)
}
