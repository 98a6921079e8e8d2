package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/draft"
	liftmcp "github.com/claude/liftlog/internal/mcp"
	"github.com/claude/liftlog/internal/server"
	"github.com/claude/liftlog/internal/storage"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const draftPurgeInterval = time.Hour

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	log.Info("liftlog starting", "version", Version)

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Connect database
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	if cfg.Catalog.SeedBuiltins {
		n, err := db.SeedBuiltinExercises(ctx, cfg.Catalog.SystemOwnerID)
		if err != nil {
			log.Warn("built-in exercise seeding failed", "error", err)
		} else {
			log.Info("built-in exercises seeded", "inserted", n)
		}
	}

	// Draft storage
	var wg sync.WaitGroup
	drafts, closeDrafts, err := openDrafts(ctx, &wg, cfg.Drafts, log)
	if err != nil {
		log.Error("failed to open draft storage", "backend", cfg.Drafts.Backend, "error", err)
		os.Exit(1)
	}
	defer closeDrafts()

	// Create server
	srv := server.New(db, drafts, server.Options{
		APIKey:        cfg.Auth.APIKey,
		SystemOwnerID: cfg.Catalog.SystemOwnerID,
		ProLogins:     cfg.Auth.ProLogins,
		DraftDebounce: cfg.Drafts.Debounce,
	}, log)

	mcpSrv := liftmcp.New(db, cfg.Catalog.SystemOwnerID, Version, log)
	srv.Mount("/mcp", mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return liftmcp.WithUser(ctx, server.Login(r))
		}),
	))

	// Start server, tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	cancel()
	wg.Wait()
	log.Info("server stopped")
}

// openDrafts opens the configured draft backend. A nil backend disables the
// draft endpoints. The SQLite backend gets a purge worker that stops with ctx.
func openDrafts(ctx context.Context, wg *sync.WaitGroup, cfg config.DraftsConfig, log *slog.Logger) (draft.Backend, func(), error) {
	switch cfg.Backend {
	case config.DraftsRedis:
		b, err := draft.NewRedisBackend(cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("draft storage ready", "backend", "redis", "ttl", cfg.TTL)
		return b, func() { b.Close() }, nil

	case config.DraftsSQLite:
		b, err := draft.OpenSQLiteBackend(cfg.SQLiteDir)
		if err != nil {
			return nil, nil, err
		}
		log.Info("draft storage ready", "backend", "sqlite", "dir", cfg.SQLiteDir)
		startWorker(ctx, wg, log, "draft-purge", func(ctx context.Context) {
			purgeDrafts(ctx, b, cfg.TTL, log)
		})
		return b, func() { b.Close() }, nil
	}

	log.Info("draft storage disabled")
	return nil, func() {}, nil
}

func purgeDrafts(ctx context.Context, b *draft.SQLiteBackend, ttl time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(draftPurgeInterval)
	defer ticker.Stop()
	for {
		n, err := b.Purge(ctx, time.Now().Add(-ttl))
		if err != nil {
			log.Warn("draft purge failed", "error", err)
		} else if n > 0 {
			log.Info("stale drafts purged", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// startWorker launches a background goroutine tracked by wg.
func startWorker(ctx context.Context, wg *sync.WaitGroup, log *slog.Logger, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("worker started", "worker", name)
		fn(ctx)
		log.Info("worker stopped", "worker", name)
	}()
}
