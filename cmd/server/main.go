package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"contactdir/internal/geo"
	"contactdir/internal/platform/config"
	"contactdir/internal/platform/httpserver"
	"contactdir/internal/platform/logger"
	"contactdir/internal/record/handler"
	"contactdir/internal/record/metrics"
	"contactdir/internal/record/service"
	"contactdir/internal/record/store"
	"contactdir/internal/record/store/memory"
	"contactdir/internal/record/store/postgres"
	"contactdir/internal/record/validate"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal record packages.
func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := geo.Load()
	if err != nil {
		log.Error("load geo catalog", "error", err)
		return
	}

	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("open store", "error", err)
		return
	}
	defer cleanup()

	engine := service.New(st, validate.New(catalog),
		service.WithMetrics(metrics.New()),
		service.WithLogger(log),
	)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Mount("/api", handler.NewHandler(engine, log).Routes())
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting contactdir", "addr", cfg.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
	}
}

// openStore selects the backing store: postgres when configured, the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg config.Server) (store.Store, func(), error) {
	if cfg.StoreDriver != "postgres" {
		return memory.New(), func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	pg := postgres.NewPostgres(db)
	if err := pg.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return pg, func() { _ = db.Close() }, nil
}
