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

	"realtycrm/internal/access"
	"realtycrm/internal/account"
	"realtycrm/internal/activity"
	"realtycrm/internal/announcement"
	"realtycrm/internal/audit"
	"realtycrm/internal/cache"
	"realtycrm/internal/config"
	"realtycrm/internal/daemon"
	"realtycrm/internal/database"
	"realtycrm/internal/database/migrations"
	"realtycrm/internal/lead"
	"realtycrm/internal/leave"
	"realtycrm/internal/logger"
	"realtycrm/internal/openfga"
	"realtycrm/internal/project"
	"realtycrm/internal/ratelimit"
	"realtycrm/internal/report"
	"realtycrm/internal/settings"
	"realtycrm/internal/storage"
	"realtycrm/internal/task"
	"realtycrm/internal/telemetry"
	"realtycrm/internal/user"
	"realtycrm/internal/web"

	"github.com/gofiber/storage/postgres/v3"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadEnvFile(".env"); err != nil {
		return err
	}
	cfg := config.NewConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "failed to flush telemetry:", err)
		}
	}()

	log := logger.New(*cfg)

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := migrate(log, cfg.Database.DSN()); err != nil {
			return err
		}
	}

	db := database.NewDatabase()
	if err := db.Connect(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)); err != nil {
		log.Error("Failed to initialize database", "error", err)
		return err
	}
	defer db.Close()

	// Redis backs the read snapshots and the login attempt counter. Without it both fall back to
	// process memory and reads that fail have no snapshot to serve.
	var kv cache.KV
	var counter ratelimit.Counter = ratelimit.NewMemoryCounter()
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unavailable, snapshots disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			kv = cache.NewRedisKV(redisClient)
			counter = ratelimit.NewRedisCounter(redisClient)
		}
	}
	snapshots := cache.NewSnapshots(log, kv, cfg.Redis.SnapshotTTL, metrics)
	loginLimiter := ratelimit.NewRateLimiter(counter, cfg.Auth.MaxLoginAttempts, cfg.Auth.LoginWindow)

	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to set up file storage: %w", err)
	}

	fga, err := openfga.NewClient(log, cfg.OpenFGA)
	if err != nil {
		return fmt.Errorf("failed to create OpenFGA client: %w", err)
	}
	var grants access.GrantChecker = access.NewStoreGrants(&db)
	var grantSync user.GrantSync
	if fga.IsEnabled() {
		if err := fga.Verify(ctx); err != nil {
			return fmt.Errorf("failed to reach OpenFGA store: %w", err)
		}
		fgaGrants := openfga.NewGrants(fga)
		grants = fgaGrants
		grantSync = fgaGrants
	}

	authorizer := access.NewAuthorizer(log, grants)
	authorizer.OnDenied(metrics)
	authorizer.CheckAccounts(&db)
	auditor := audit.NewAuditor(log, &db)
	dismissals := announcement.NewDismissals()

	announcements := announcement.NewManager(log, &db, dismissals, &authorizer, auditor, snapshots, metrics)
	leads := lead.NewManager(log, &db, &authorizer, auditor, snapshots, metrics)
	tasks := task.NewManager(log, &db, files, &authorizer, auditor, snapshots, metrics, task.Options{
		MaxFileSize: cfg.Storage.MaxFileSize,
		URLExpiry:   cfg.Storage.URLExpiry,
	})
	projects := project.NewManager(log, &db, files, &authorizer, auditor, snapshots, metrics, project.Options{
		MaxFileSize: cfg.Storage.MaxFileSize,
		URLExpiry:   cfg.Storage.URLExpiry,
	})
	leaves := leave.NewManager(log, &db, &authorizer, auditor, snapshots, metrics, cfg.Leave.ManagerScope)

	services := web.Services{
		Authorizer:    &authorizer,
		Accounts:      &db,
		Auth:          account.NewAuthenticator(log, &db, loginLimiter, announcements),
		Leads:         leads,
		Tasks:         tasks,
		Projects:      projects,
		Leaves:        leaves,
		Users:         user.NewManager(log, &db, grantSync, &authorizer, auditor, snapshots, metrics),
		Announcements: announcements,
		Activity:      activity.NewManager(log, &db, &authorizer, snapshots),
		Reports:       report.NewManager(log, &authorizer, leads, tasks, leaves, projects),
		Settings:      settings.NewManager(log, &db, &authorizer, auditor, snapshots, metrics),
	}

	health := map[string]web.HealthCheck{"database": db.Ping}
	if redisClient != nil {
		health["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if fga.IsEnabled() {
		health["openfga"] = fga.Verify
	}

	opts := web.Options{
		LoginRequests: cfg.Auth.MaxLoginAttempts * 4,
		LoginWindow:   cfg.Auth.LoginWindow,
		Health:        health,
	}
	if cfg.Storage.Type == "local" {
		opts.UploadsURL = cfg.Storage.LocalBaseURL
		opts.UploadsPath = cfg.Storage.LocalPath
	}

	sessionStorage := postgres.New(postgres.Config{
		DB:         db.Pool,
		Table:      "sessions",
		GCInterval: cfg.Session.GCInterval,
	})
	sessions := web.NewSessionStore(cfg.Session, sessionStorage)
	server := web.NewServer(log, sessions, services, opts)
	app := web.NewApp(cfg, log, server)

	manager := daemon.NewDaemonManager(log)
	manager.Add("dismissal-sweep", daemon.SweepTask(log, cfg.Session.GCInterval, func() int {
		return dismissals.Sweep(cfg.Session.Expiration)
	}))
	if mc, ok := counter.(*ratelimit.MemoryCounter); ok {
		manager.Add("login-counter-sweep", daemon.SweepTask(log, time.Minute, mc.Sweep))
	}

	log.Info("Starting supervised daemons...")
	manager.Start(ctx)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server...", "addr", cfg.Server.Addr())
		serverErr <- app.Listen(cfg.Server.Addr())
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error("HTTP server stopped", "error", err)
			stop()
			manager.Wait()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Error("Error shutting down HTTP server", "error", err)
	}
	manager.Wait()
	if err := sessionStorage.Close(); err != nil {
		log.Warn("Failed to close session storage", "error", err)
	}
	log.Info("Shutdown complete")
	return nil
}

func migrate(log *slog.Logger, dsn string) error {
	migrator, err := migrations.NewMigrator(log, dsn)
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	defer migrator.Close()
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
