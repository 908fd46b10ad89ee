package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/tablegate/tablegate/internal/cache"
	"github.com/tablegate/tablegate/internal/config"
	"github.com/tablegate/tablegate/internal/engine"
	"github.com/tablegate/tablegate/internal/exec"
	"github.com/tablegate/tablegate/internal/handler"
	"github.com/tablegate/tablegate/internal/middleware"
	"github.com/tablegate/tablegate/internal/schema"
)

func main() {
	root := &cobra.Command{
		Use:          "tablegate",
		Short:        "Config-driven query gateway over SQL tables",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "err", err)
		return err
	}

	var ex exec.Executor
	switch cfg.Driver {
	case "sqlite":
		ex, err = exec.NewSQLite(cfg.SQLitePath)
	default:
		ex, err = exec.NewPostgres(ctx, cfg.DatabaseURL)
	}
	if err != nil {
		log.Error("failed to connect to database", "driver", cfg.Driver, "err", err)
		return err
	}
	defer ex.Close()

	registry := schema.NewRegistry()
	if err := registry.LoadDir(cfg.TablesDir, engine.ValidateConfig); err != nil {
		log.Error("failed to load table configs", "dir", cfg.TablesDir, "err", err)
		return err
	}
	log.Info("table configs loaded", "dir", cfg.TablesDir, "tables", registry.Names())

	responseCache := cache.New(cfg.CacheTTL, cfg.CacheStale)

	r := mux.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.ContentType)
	handler.New(ex, registry, responseCache).Routes(r)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		srv.Shutdown(context.Background())
	}()

	log.Info("listening", "addr", cfg.Addr(), "dialect", ex.Dialect())
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Error("server error", "err", err)
		return err
	}
	return nil
}
