package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/chorepet/chorepet/internal/backup"
	"github.com/chorepet/chorepet/internal/chore"
	"github.com/chorepet/chorepet/internal/clock"
	"github.com/chorepet/chorepet/internal/config"
	"github.com/chorepet/chorepet/internal/database"
	"github.com/chorepet/chorepet/internal/logging"
	"github.com/chorepet/chorepet/internal/store"
	ws "github.com/chorepet/chorepet/internal/websocket"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	rs, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open store", "store", cfg.Store, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	app := newCLIApp(newEnv(cfg, rs, clock.NewDemo(time.Now), logger))
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		closeStore()
		os.Exit(1)
	}
}

// openStore picks the record store backend. The returned close func is
// always non-nil.
func openStore(cfg *config.Config) (store.RecordStore, func() error, error) {
	switch cfg.Store {
	case config.StoreFile:
		fs, err := store.NewFileStore(cfg.DataFile)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() error { return nil }, nil
	default:
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return store.NewHouseholdStore(db), db.Close, nil
	}
}

func newEnv(cfg *config.Config, rs store.RecordStore, clk clock.Adjustable, logger *slog.Logger) *env {
	hub := ws.NewHub(logger)
	engine := chore.NewEngine(rs, clk, chore.Settings{
		Location:         cfg.Location(),
		DefaultPetHealth: cfg.DefaultPetHealth,
		DefaultCapacity:  cfg.DefaultCapacity,
	}, logger)

	backups := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		},
		Passphrase:    cfg.Backup.Passphrase,
		Schedule:      cfg.Backup.Schedule,
		RetentionDays: cfg.Backup.RetentionDays,
	}, rs, func(s backup.Status) {
		hub.Broadcast(ws.NewMessage(ws.EntityBackup, string(s.State), "", s))
	}, logger)

	return &env{
		cfg:     cfg,
		logger:  logger,
		hub:     hub,
		engine:  engine,
		backups: backups,
		out:     os.Stdout,
	}
}
