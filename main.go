package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tasknotify/config"
	"tasknotify/connection"
	"tasknotify/model"
	"tasknotify/scanner"
	"tasknotify/scheduler"
	"tasknotify/services"
)

const operatorTokenTTL = 24 * time.Hour

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		return 1
	}

	log, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	if cfg.IssueToken != "" {
		token, err := services.CreateAccessToken(cfg.JWTSecret, cfg.IssueToken, model.RoleAdmin, operatorTokenTTL)
		if err != nil {
			log.Errorw("issuing token failed", "error", err)
			return 1
		}
		fmt.Fprintln(stdout, token)
		return 0
	}

	if err := cfg.Validate(); err != nil {
		log.Errorw("invalid configuration", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tasks, notifications, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalw("store initialization failed", "driver", cfg.StoreDriver, "error", err)
	}
	defer closeStore()
	log.Infow("store ready", "driver", cfg.StoreDriver)

	engine := scanner.New(tasks, notifications, log.Named("scanner"))

	if cfg.Once {
		runCtx := ctx
		if cfg.ScanTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, cfg.ScanTimeout)
			defer cancel()
		}
		engine.Run(runCtx)
		return 0
	}

	sched := scheduler.New(engine, cfg.ScanInterval, log.Named("scheduler"),
		scheduler.WithTimeout(cfg.ScanTimeout),
		scheduler.WithRunOnStart(cfg.ScanOnStart),
	)
	if err := sched.Start(ctx); err != nil {
		log.Errorw("starting scheduler failed", "error", err)
		return 1
	}
	defer sched.Stop()

	router := connection.NewRouter(cfg, log.Named("http"), notifications, sched)
	if err := connection.StartServer(ctx, cfg, router, log); err != nil {
		log.Errorw("server failed", "error", err)
		return 1
	}
	log.Infow("shutdown complete")
	return 0
}

func openStore(ctx context.Context, cfg config.Config) (services.TaskRepository, services.NotificationStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		store, err := services.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store, func() { _ = store.Close() }, nil
	case config.DriverFirestore:
		client, err := connection.FBConnection(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		return services.NewFirestoreTaskRepository(client),
			services.NewFirestoreNotificationStore(client),
			func() { _ = client.Close() },
			nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
