package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/livepoll/cliparse"
	"github.com/danielhkuo/livepoll/db"
	"github.com/danielhkuo/livepoll/events"
	"github.com/danielhkuo/livepoll/middleware"
	"github.com/danielhkuo/livepoll/polls"
	"github.com/danielhkuo/livepoll/realtime"
	"github.com/danielhkuo/livepoll/router"
	"github.com/danielhkuo/livepoll/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional, real environment variables win
	if err := cliparse.LoadDotEnv(".env"); err != nil {
		slog.Error("Error loading .env", "error", err)
		os.Exit(1)
	}

	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "type", cfg.DatabaseType, "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := db.CreateSchema(dbConn); err != nil {
		logger.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Database schema ready", "type", cfg.DatabaseType)

	if err := run(ctx, cfg, dbConn, logger); err != nil {
		logger.Error("Server closed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server closed")
}

func run(ctx context.Context, cfg cliparse.Config, dbConn *sql.DB, logger *slog.Logger) error {
	st := store.New(dbConn, cfg.DatabaseType)

	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry, logger)
	notifier := realtime.NewNotifier(st, registry, dispatcher, logger)
	bus := events.NewBus(notifier.Handle, cfg.BusWorkers, cfg.BusQueue, logger)

	svc := polls.NewService(st, bus, time.Now, logger)
	subscriptions := realtime.NewHandler(registry, realtime.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		SendBuffer:     cfg.SendBuffer,
		WriteTimeout:   cfg.WriteTimeout,
	}, logger)

	mux := router.NewRouter(svc, subscriptions)
	server := &http.Server{
		Handler:           middleware.WithRequestID(middleware.CORS(cfg.AllowedOrigins)(mux)),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The bus outlives the HTTP server so votes accepted during shutdown
	// are still delivered.
	busCtx, stopBus := context.WithCancel(context.Background())
	defer stopBus()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return bus.Run(busCtx)
	})

	g.Go(func() error {
		logger.Info("Listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)

		closed := dispatcher.Shutdown()
		logger.Info("sessions closed", "count", closed)

		stopBus()
		return err
	})

	return g.Wait()
}

func newLogger(env string) *slog.Logger {
	switch env {
	case cliparse.EnvLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
