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

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Audatic07/collab-notes/internal/accounts"
	"github.com/Audatic07/collab-notes/internal/api"
	"github.com/Audatic07/collab-notes/internal/config"
	"github.com/Audatic07/collab-notes/internal/events"
	"github.com/Audatic07/collab-notes/internal/jobs"
	"github.com/Audatic07/collab-notes/internal/repositories"
	"github.com/Audatic07/collab-notes/internal/routers"
	"github.com/Audatic07/collab-notes/internal/session"
	"github.com/Audatic07/collab-notes/internal/utils"
)

var (
	newLogger      = utils.NewLogger
	openDatabase   = repositories.OpenPostgres
	listenAndServe = func(srv *http.Server) error { return srv.ListenAndServe() }
	exitFunc       = os.Exit
)

const (
	shutdownTimeout        = 30 * time.Second
	managerShutdownTimeout = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "collab-notes: %v\n", err)
		exitFunc(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer closeDatabase(db, logger)

	users := &repositories.UserRepository{DB: db}
	docs := &repositories.DocumentRepository{DB: db}
	verifier := accounts.NewVerifier(cfg.JWTSecret, users)

	opts := []session.Option{session.WithQueueSize(cfg.EventQueueSize)}
	if cfg.RedisAddr != "" {
		publisher := events.NewRedisPublisher(cfg.RedisAddr)
		defer func() { _ = publisher.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := publisher.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable, note saves will not be announced until it recovers",
				zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		cancel()
		opts = append(opts, session.WithPublisher(publisher))
	}

	manager := session.NewManager(logger, docs, opts...)
	go manager.Run()

	reporter := jobs.NewPresenceReporter(manager, logger, cfg.StatsSchedule)
	if err := reporter.Start(); err != nil {
		_ = manager.Shutdown(managerShutdownTimeout)
		return err
	}

	handlers := api.NewHandlers(logger, verifier, manager, cfg)
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           routers.New(handlers, cfg),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("collab-notes listening", zap.String("addr", server.Addr))
		serverErr <- listenAndServe(server)
	}()

	select {
	case err := <-serverErr:
		reporter.Stop()
		_ = manager.Shutdown(managerShutdownTimeout)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("collab-notes shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	reporter.Stop()
	if err := manager.Shutdown(managerShutdownTimeout); err != nil {
		logger.Error("session manager did not stop in time", zap.Error(err))
	}
	logger.Info("collab-notes exited")
	return nil
}

func closeDatabase(db *gorm.DB, logger *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("failed to close database", zap.Error(err))
	}
}
