package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"

	"github.com/ericfisherdev/mykeypanel/internal/adapter/driven/i18n"
	"github.com/ericfisherdev/mykeypanel/internal/adapter/driven/metrics"
	"github.com/ericfisherdev/mykeypanel/internal/adapter/driven/sshkey"
	sqliteadapter "github.com/ericfisherdev/mykeypanel/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/mykeypanel/internal/adapter/driving/http"
	"github.com/ericfisherdev/mykeypanel/internal/application"
	"github.com/ericfisherdev/mykeypanel/internal/config"
)

func main() {
	err := run()
	// Wipe every locked buffer still holding key material.
	memguard.Purge()
	if err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"unlock_startup", cfg.UnlockStartup,
		"default_language", cfg.DefaultLanguage,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	slog.Info("migrations complete", "version", version)

	// 5. Wire adapters.
	store := sqliteadapter.NewPubkeyRepo(db)
	codec := sshkey.NewCodec(cfg.KeyComment)
	recorder := metrics.NewRecorder(true)
	catalog, err := i18n.NewCatalog(cfg.DefaultLanguage)
	if err != nil {
		return err
	}

	// 6. Create keyring and unlock startup keys.
	keyring := application.NewKeyring(store, codec, recorder)
	defer keyring.LockAll()

	if cfg.UnlockStartup {
		n, err := keyring.UnlockStartupKeys(ctx)
		if err != nil {
			slog.Warn("some startup keys could not be unlocked", "error", err)
		}
		slog.Info("startup keys unlocked", "count", n)
	}

	// 7. Create service and HTTP handler.
	svc := application.NewPubkeyService(store, codec, codec, keyring, recorder)
	apiHandler := httphandler.NewHandler(svc, catalog, db, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, recorder.Handler(), slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 8. Log startup complete.
	slog.Info("mykeypanel started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		return err
	}

	// 10. Graceful shutdown.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	// 11. Log shutdown complete.
	slog.Info("shutdown complete")
	return nil
}
