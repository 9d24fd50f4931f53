package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/coopsim/internal/ai"
	"github.com/udisondev/coopsim/internal/config"
	"github.com/udisondev/coopsim/internal/data"
	"github.com/udisondev/coopsim/internal/db"
	"github.com/udisondev/coopsim/internal/gameserver"
	"github.com/udisondev/coopsim/internal/model"
	"github.com/udisondev/coopsim/internal/persistence/eventindex"
	"github.com/udisondev/coopsim/internal/persistence/journal"
	"github.com/udisondev/coopsim/internal/sim"
)

const GameConfigPath = "config/gameserver.yaml"

const shutdownSaveTimeout = 10 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Конфиг грузим первым: от него зависит уровень логов
	cfgPath := GameConfigPath
	if p := os.Getenv("COOPSIM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadGameServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading game config: %w", err)
	}

	logLevel := config.ParseLogLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
	ai.EnableDebugLogging(logLevel == slog.LevelDebug)

	slog.Info("coopsim server starting",
		"log_level", cfg.LogLevel,
		"bind", cfg.BindAddress,
		"port", cfg.Port,
		"tick_rate", cfg.Simulation.TickRate)

	reg, err := data.Load(cfg.RegistryPath)
	if err != nil {
		return fmt.Errorf("loading registry: %w", err)
	}
	slog.Info("registry loaded",
		"maps", len(reg.Maps),
		"weapons", len(reg.Weapons),
		"enemies", len(reg.Enemies),
		"starting_map", reg.StartingMap)

	engine, err := sim.New(cfg.Simulation, reg)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	var profiles gameserver.ProfileStore
	if cfg.Database.Enabled {
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()
		slog.Info("database connected")

		if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		profiles = db.NewProfileRepository(database.Pool())
	} else {
		slog.Warn("database disabled, profiles are kept in memory")
		profiles = gameserver.NewMemoryProfileStore()
	}
	saver := gameserver.NewProfileSaver(profiles, cfg.Persistence.QueueSize)

	var sinks sim.MultiSink
	var index *eventindex.Index
	if cfg.Persistence.IndexPath != "" {
		index, err = eventindex.Open(cfg.Persistence.IndexPath, cfg.Persistence.QueueSize)
		if err != nil {
			return fmt.Errorf("opening event index: %w", err)
		}
		defer func() {
			if err := index.Close(); err != nil {
				slog.Error("closing event index", "error", err)
			}
		}()
		sinks = append(sinks, index)
		slog.Info("event index opened", "path", cfg.Persistence.IndexPath)
	}

	var jrnl *journal.Journal
	if cfg.Persistence.JournalDir != "" {
		jrnl = journal.New(cfg.Persistence.JournalDir, cfg.Persistence.QueueSize)
		sinks = append(sinks, jrnl)
		slog.Info("tick journal enabled", "dir", cfg.Persistence.JournalDir)
	}
	if len(sinks) > 0 {
		engine.SetSink(sinks)
	}

	srv := gameserver.NewServer(cfg, engine, profiles)

	engine.SetDespawnFunc(func(p model.Profile) {
		if !saver.Enqueue(p) {
			slog.Warn("profile save queue full", "username", p.Username)
		}
		srv.OnDespawn(p)
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting simulation engine", "interval", cfg.Simulation.TickInterval())
		if err := engine.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("simulation engine: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("starting game server", "addr", cfg.Addr())
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("game server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return saver.Run(gctx)
	})

	if jrnl != nil {
		g.Go(func() error {
			return jrnl.Run(gctx)
		})
	}

	waitErr := g.Wait()

	// Движок остановлен: оставшихся игроков сохраняем синхронно
	saveCtx, cancel := context.WithTimeout(context.Background(), shutdownSaveTimeout)
	defer cancel()
	remaining := engine.Profiles()
	saved := saver.SaveAll(saveCtx, remaining)
	slog.Info("profiles saved on shutdown", "saved", saved, "total", len(remaining))

	if index != nil {
		if err := index.Flush(saveCtx); err != nil {
			slog.Warn("flushing event index", "error", err)
		}
		if n := index.Dropped(); n > 0 {
			slog.Warn("event index dropped records", "count", n)
		}
	}

	if waitErr != nil {
		return fmt.Errorf("server error: %w", waitErr)
	}
	return nil
}
