// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mirefall/mirefall/internal/battle"
	"github.com/mirefall/mirefall/internal/command"
	"github.com/mirefall/mirefall/internal/command/handlers"
	"github.com/mirefall/mirefall/internal/config"
	"github.com/mirefall/mirefall/internal/content"
	"github.com/mirefall/mirefall/internal/core"
	"github.com/mirefall/mirefall/internal/gateway"
	"github.com/mirefall/mirefall/internal/logging"
	"github.com/mirefall/mirefall/internal/observability"
	"github.com/mirefall/mirefall/internal/sched"
	"github.com/mirefall/mirefall/internal/storage"
	"github.com/mirefall/mirefall/internal/world"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the game server",
		Long: `Start the game server: load the content catalog, seed the world,
open the client gateway, and serve until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}

	defaults := config.Default()
	cmd.Flags().String("server.addr", defaults.Server.Addr, "client listen address")
	cmd.Flags().String("observability.addr", defaults.Observability.Addr, "metrics/health HTTP address")
	cmd.Flags().String("database.url", defaults.Database.URL, "PostgreSQL URL (empty = in-memory store)")
	cmd.Flags().String("content.path", defaults.Content.Path, "content catalog file")
	cmd.Flags().String("log.format", defaults.Log.Format, "log format (json or text)")
	cmd.Flags().String("log.level", defaults.Log.Level, "log level (debug, info, warn, error)")
	cmd.Flags().Int("flood.burst", defaults.Flood.Burst, "flood guard burst capacity per connection")
	cmd.Flags().Float64("flood.rate", defaults.Flood.Rate, "flood guard sustained commands per second")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.SetDefault("mirefall", version, cfg.Log.Format, cfg.Log.Level)

	slog.Info("starting server",
		"addr", cfg.Server.Addr,
		"log_format", cfg.Log.Format,
	)

	catalog, err := content.Load(cfg.Content.Path)
	if err != nil {
		return fmt.Errorf("failed to load content catalog: %w", err)
	}

	w := world.NewWorld()
	seedWorld(w, catalog)

	var store storage.Store
	if cfg.Database.URL == "" {
		slog.Warn("no database configured, character data will not survive restarts")
		store = storage.NewMemoryStore()
	} else {
		pg, err := storage.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		store = pg
		slog.Info("connected to database")
	}
	defer store.Close()

	sessions := core.NewSessionManager()
	bcast := core.NewBroadcaster(sessions)
	scheduler := sched.New()
	defer scheduler.Shutdown()
	engine := battle.NewEngine(w, catalog, sessions, bcast, scheduler)

	services := &command.Services{
		Engine:   engine,
		World:    w,
		Sessions: sessions,
		Bcast:    bcast,
		Catalog:  catalog,
		Store:    store,
		Sched:    scheduler,
	}

	registry := command.NewRegistry()
	handlers.RegisterAll(registry)

	guard := command.NewFloodGuard(command.FloodGuardConfig{
		BurstCapacity: cfg.Flood.Burst,
		SustainedRate: cfg.Flood.Rate,
	})
	defer guard.Close()

	dispatcher, err := command.NewDispatcher(registry, services, command.WithFloodGuard(guard))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ready atomic.Bool
	obsServer := observability.NewServer(cfg.Observability.Addr, ready.Load)
	command.RegisterMetrics(obsServer.Registry())
	battle.RegisterMetrics(obsServer.Registry())
	obsServer.TrackSessions(sessions.Count)

	obsErrChan, err := obsServer.Start()
	if err != nil {
		return fmt.Errorf("failed to start observability server: %w", err)
	}
	go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	slog.Info("observability server started", "addr", obsServer.Addr())

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	srv := gateway.NewServer(cfg.Server.Addr, dispatcher, services)
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run(ctx)
	}()
	ready.Store(true)

	cmd.Println("Server started")
	slog.Info("server ready", "addr", cfg.Server.Addr)

	// Wait for shutdown signal or error
	gatewayDone := false
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errChan:
		gatewayDone = true
		if err != nil {
			return fmt.Errorf("gateway error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	slog.Info("shutting down...")
	ready.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Wait for the gateway accept loop to exit so in-flight teardowns
	// get a chance to save.
	if !gatewayDone {
		select {
		case err := <-errChan:
			if err != nil {
				slog.Warn("gateway exited with error", "error", err)
			}
		case <-shutdownCtx.Done():
			slog.Warn("timed out waiting for gateway to stop")
		}
	}

	if err := obsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// seedWorld creates the declared maps and places their initial monster
// population.
func seedWorld(w *world.World, catalog *content.Catalog) {
	for _, def := range catalog.Maps() {
		m := w.AddMap(def.ID)
		spawned := 0
		for _, sp := range def.Spawns {
			mon, ok := catalog.Monster(sp.MonsterID)
			if !ok {
				slog.Warn("spawn references unknown monster",
					"map_id", def.ID,
					"monster_id", sp.MonsterID,
				)
				continue
			}
			m.Spawn(mon.ID, mon.MaxHP, sp.X, sp.Y)
			spawned++
		}
		slog.Info("map seeded", "map_id", def.ID, "monsters", spawned)
	}
}

// monitorServerErrors monitors a server's error channel and cancels the
// context on error so a failed component takes the whole process down
// cleanly. It exits when an error arrives, the channel closes, or the
// context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
