// Package main starts the LittleHelper notes and tasks API server: it loads
// configuration, opens and migrates the database, wires repositories,
// services and handlers, and serves HTTP or HTTPS until interrupted.
package main

import (
	"cmp"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/LittleHelper/internal/auth"
	"github.com/atinyakov/LittleHelper/internal/config"
	"github.com/atinyakov/LittleHelper/internal/db"
	"github.com/atinyakov/LittleHelper/internal/logger"
	"github.com/atinyakov/LittleHelper/internal/metrics"
	"github.com/atinyakov/LittleHelper/internal/repository"
	"github.com/atinyakov/LittleHelper/internal/server/handler/http"
	"github.com/atinyakov/LittleHelper/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

func main() {
	options := config.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	zapLogger := log.Log
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options, zapLogger); err != nil {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, options *config.Options, zapLogger *zap.Logger) error {
	dialect, err := db.ParseDialect(options.DatabaseDriver)
	if err != nil {
		return err
	}
	conn, err := db.Init(ctx, dialect, options.DatabaseDSN, zapLogger)
	if err != nil {
		return fmt.Errorf("cannot init database: %w", err)
	}
	defer func() { _ = conn.Close() }()
	zapLogger.Info("database ready", zap.String("driver", string(dialect)))

	if options.CleanupInterval > 0 {
		scheduler, err := db.StartOrphanCleaner(ctx, conn, options.CleanupInterval, zapLogger)
		if err != nil {
			return fmt.Errorf("start orphan cleaner: %w", err)
		}
		defer func() { _ = scheduler.Shutdown() }()
	}

	secret := options.JWTSecret
	if secret == "" {
		if secret, err = randomSecret(); err != nil {
			return err
		}
		zapLogger.Warn("no JWT secret configured, using a random one; tokens will not survive a restart")
	}
	tokens := auth.NewTokens(secret, options.TokenTTL)

	recorder := metrics.NewRecorder()
	recorder.WatchDB(conn, string(dialect))

	// Repositories share one record store so timestamps stay monotonic.
	store := repository.NewStore(conn, dialect)
	accounts := repository.NewAccountStore(store, conn)
	notes := repository.NewNoteStore(store)
	tasks := repository.NewTaskStore(store)

	accountService := service.NewAccountService(accounts, tokens)
	noteService := service.NewNoteService(notes)
	taskService := service.NewTaskService(tasks, zapLogger, service.WithTransitionRecorder(recorder))
	adminService := service.NewAdminService(accounts, notes, tasks, zapLogger)

	router := http.NewRouter(http.Router{
		Accounts: &http.AccountHandler{Accounts: accountService, Log: zapLogger},
		Notes:    &http.NoteHandler{Notes: noteService, Log: zapLogger},
		Tasks:    &http.TaskHandler{Tasks: taskService, Log: zapLogger},
		Admin:    &http.AdminHandler{Admin: adminService, Log: zapLogger},
		Tokens:   tokens,
		Users:    accounts,
		AdminKey: options.AdminKey,
		Metrics:  recorder,
		Logger:   zapLogger,
	})
	if options.AdminKey == "" {
		zapLogger.Warn("no admin key configured, /api/db routes are disabled")
	}

	server := &nethttp.Server{
		Addr:              options.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if options.TLSCert != "" {
			server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			zapLogger.Info("starting HTTPS server", zap.String("addr", options.Address))
			errCh <- server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
			return
		}
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Address))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	zapLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
