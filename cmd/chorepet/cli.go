package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/chorepet/chorepet/internal/backup"
	"github.com/chorepet/chorepet/internal/chore"
	"github.com/chorepet/chorepet/internal/config"
	apperrors "github.com/chorepet/chorepet/internal/errors"
	"github.com/chorepet/chorepet/internal/middleware"
	"github.com/chorepet/chorepet/internal/model"
	"github.com/chorepet/chorepet/internal/server"
	ws "github.com/chorepet/chorepet/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

// env carries what every command needs.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	hub     *ws.Hub
	engine  *chore.Engine
	backups *backup.Manager
	out     io.Writer
}

// newCLIApp creates the CLI application. Running without a command serves
// HTTP.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:    "chorepet",
		Usage:   "Shared chore rotation with a pet to keep alive",
		Version: Version,
		Action:  serveAction(e),
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and WebSocket hub",
				Action: serveAction(e),
			},
			roommateCmd(e),
			choreCmd(e),
			decayCmd(e),
			backupCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func serveAction(e *env) cli.ActionFunc {
	return func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		limiter := middleware.NewRateLimiter(e.cfg.LoginRateLimit, time.Minute)
		go limiter.Run(ctx)

		if err := e.backups.Start(); err != nil {
			return err
		}
		defer e.backups.Stop()

		srv := server.New(e.engine, e.hub, e.backups, limiter, e.logger)
		httpServer := &http.Server{
			Addr:         ":" + e.cfg.Port,
			Handler:      srv.Router(),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			e.logger.Info("chorepet listening", "addr", httpServer.Addr, "store", e.cfg.Store, "backups", e.backups.Enabled())
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
		}

		e.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		e.hub.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func roommateCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:    "roommate",
		Aliases: []string{"user"},
		Usage:   "Manage roommates",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a roommate",
				ArgsUsage: "<username>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "health", Usage: "Starting pet health (default from config)"},
					&cli.IntFlag{Name: "capacity", Aliases: []string{"c"}, Usage: "Starting capacity score (default from config)"},
				},
				Action: func(c *cli.Context) error {
					in := chore.NewRoommate{Username: c.Args().First()}
					if c.IsSet("health") {
						v := c.Int("health")
						in.PetHealth = &v
					}
					if c.IsSet("capacity") {
						v := c.Int("capacity")
						in.CapacityScore = &v
					}
					r, err := e.engine.CreateRoommate(c.Context, in)
					if err != nil {
						return outputError(err)
					}
					return e.outputJSON(r)
				},
			},
			{
				Name:  "list",
				Usage: "List roommates with pet mood",
				Action: func(c *cli.Context) error {
					list, err := e.engine.ListRoommates(c.Context)
					if err != nil {
						return outputError(err)
					}
					return e.outputJSON(list)
				},
			},
			{
				Name:      "show",
				Usage:     "Show one roommate",
				ArgsUsage: "<username>",
				Action: func(c *cli.Context) error {
					r, err := e.engine.GetRoommate(c.Context, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return e.outputJSON(r)
				},
			},
			{
				Name:      "health",
				Usage:     "Adjust pet health by --change (may be negative)",
				ArgsUsage: "<username>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "change", Required: true, Usage: "Health delta, e.g. --change=-5"},
				},
				Action: func(c *cli.Context) error {
					r, err := e.engine.AdjustHealth(c.Context, c.Args().First(), c.Int("change"))
					if err != nil {
						return outputError(err)
					}
					return e.outputJSON(r)
				},
			},
			{
				Name:      "set-health",
				Usage:     "Set pet health to --value, clamped to 0-100",
				ArgsUsage: "<username>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "value", Required: true, Usage: "New pet health"},
				},
				Action: func(c *cli.Context) error {
					r, err := e.engine.SetHealth(c.Context, c.Args().First(), c.Int("value"))
					if err != nil {
						return outputError(err)
					}
					return e.outputJSON(r)
				},
			},
			{
				Name:      "rm",
				Usage:     "Delete a roommate with no chores",
				ArgsUsage: "<username>",
				Action: func(c *cli.Context) error {
					username := c.Args().First()
					if err := e.engine.DeleteRoommate(c.Context, username); err != nil {
						return outputError(err)
					}
					return e.outputJSON(map[string]string{"deleted": username})
				},
			},
		},
	}
}

func choreCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "chore",
		Usage: "Manage chores",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Create a chore and assign it",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "frequency", Aliases: []string{"f"}, Usage: "Steps per cycle (default 1)"},
					&cli.IntFlag{Name: "difficulty", Aliases: []string{"d"}, Usage: "Difficulty 1-5 (default 3)"},
				},
				Action: func(c *cli.Context) error {
					ch, err := e.engine.CreateChore(c.Context, chore.NewChore{
						Name:       c.Args().First(),
						Frequency:  c.Int("frequency"),
						Difficulty: c.Int("difficulty"),
					})
					if err != nil {
						return outputError(err)
					}
					return e.outputJSON(ch)
				},
			},
			{
				Name:  "list",
				Usage: "List chores, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "roommate", Aliases: []string{"r"}, Usage: "Only chores assigned to this username"},
					&cli.BoolFlag{Name: "completed", Usage: "Only completed chores"},
					&cli.BoolFlag{Name: "open", Usage: "Only incomplete chores"},
				},
				Action: func(c *cli.Context) error {
					f := chore.ChoreFilter{Roommate: c.String("roommate")}
					switch {
					case c.Bool("completed") && c.Bool("open"):
						return outputError(apperrors.NewInvalidRequest("--completed and --open are mutually exclusive"))
					case c.Bool("completed"):
						v := true
						f.Completed = &v
					case c.Bool("open"):
						v := false
						f.Completed = &v
					}
					list, err := e.engine.ListChores(c.Context, f)
					if err != nil {
						return outputError(err)
					}
					return e.outputJSON(list)
				},
			},
			{
				Name:      "show",
				Usage:     "Show one chore",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					ch, err := e.engine.GetChore(c.Context, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return e.outputJSON(ch)
				},
			},
			{
				Name:      "edit",
				Usage:     "Rename a chore or change its difficulty; weight is unchanged",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "New name"},
					&cli.IntFlag{Name: "difficulty", Aliases: []string{"d"}, Usage: "New difficulty 1-5"},
				},
				Action: func(c *cli.Context) error {
					var in chore.ChoreUpdate
					if c.IsSet("name") {
						v := c.String("name")
						in.Name = &v
					}
					if c.IsSet("difficulty") {
						v := c.Int("difficulty")
						in.Difficulty = &v
					}
					ch, err := e.engine.UpdateChore(c.Context, c.Args().First(), in)
					if err != nil {
						return outputError(err)
					}
					return e.outputJSON(ch)
				},
			},
			{
				Name:      "advance",
				Aliases:   []string{"done"},
				Usage:     "Record one completion step",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					res, err := e.engine.AdvanceChore(c.Context, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return e.outputJSON(res)
				},
			},
			{
				Name:      "reset",
				Usage:     "Clear progress and completion",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					ch, err := e.engine.ResetChore(c.Context, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return e.outputJSON(ch)
				},
			},
			{
				Name:      "rm",
				Usage:     "Delete a chore and return its weight to the assignee",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if err := e.engine.DeleteChore(c.Context, id); err != nil {
						return outputError(err)
					}
					return e.outputJSON(map[string]string{"deleted": id})
				},
			},
		},
	}
}

func decayCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "decay",
		Usage: "Apply today's pet health decay now",
		Action: func(c *cli.Context) error {
			deltas, err := e.engine.RunDecay(c.Context)
			if err != nil {
				return outputError(err)
			}
			if deltas == nil {
				deltas = []model.HealthDelta{}
			}
			return e.outputJSON(deltas)
		},
	}
}

func backupCmd(e *env) *cli.Command {
	requireEnabled := func(*cli.Context) error {
		if !e.backups.Enabled() {
			return cli.Exit("backups are not configured; set CHOREPET_BACKUP_S3_BUCKET, keys and CHOREPET_BACKUP_PASSPHRASE", 1)
		}
		return nil
	}

	return &cli.Command{
		Name:  "backup",
		Usage: "Encrypted snapshots in S3-compatible storage",
		Subcommands: []*cli.Command{
			{
				Name:   "now",
				Usage:  "Upload a snapshot immediately",
				Before: requireEnabled,
				Action: func(c *cli.Context) error {
					b, err := e.backups.RunNow(c.Context)
					if err != nil {
						return outputError(err)
					}
					return e.outputJSON(b)
				},
			},
			{
				Name:   "list",
				Usage:  "List snapshots, newest first",
				Before: requireEnabled,
				Action: func(c *cli.Context) error {
					list, err := e.backups.List(c.Context)
					if err != nil {
						return outputError(err)
					}
					if list == nil {
						list = []model.Backup{}
					}
					return e.outputJSON(list)
				},
			},
			{
				Name:      "restore",
				Usage:     "Replace the household with a snapshot",
				ArgsUsage: "<key>",
				Before:    requireEnabled,
				Action: func(c *cli.Context) error {
					key := c.Args().First()
					if err := e.backups.Restore(c.Context, key); err != nil {
						return outputError(err)
					}
					return e.outputJSON(map[string]string{"restored": key})
				},
			},
			{
				Name:   "prune",
				Usage:  "Delete snapshots older than --days",
				Before: requireEnabled,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Value: 30, Usage: "Retention in days"},
				},
				Action: func(c *cli.Context) error {
					if c.Int("days") < 0 {
						return outputError(apperrors.NewInvalidRequest("--days must not be negative"))
					}
					n, err := e.backups.Cleanup(c.Context, c.Int("days"))
					if err != nil {
						return outputError(err)
					}
					return e.outputJSON(map[string]int{"removed": n})
				},
			},
		},
	}
}

// outputJSON writes v to the command's output as indented JSON.
func (e *env) outputJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if appErr, ok := apperrors.As(err); ok {
		if cause := errors.Unwrap(appErr); cause != nil {
			return cli.Exit(fmt.Sprintf("[%s] %s: %v", appErr.Code, appErr.Message, cause), 1)
		}
		return cli.Exit(fmt.Sprintf("[%s] %s", appErr.Code, appErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
