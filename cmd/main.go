package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/okunev/bookshelf-bot/internal/catalog"
	"github.com/okunev/bookshelf-bot/internal/config"
	"github.com/okunev/bookshelf-bot/internal/events"
	"github.com/okunev/bookshelf-bot/internal/httpapi"
	"github.com/okunev/bookshelf-bot/internal/jobs"
	"github.com/okunev/bookshelf-bot/internal/library"
	"github.com/okunev/bookshelf-bot/internal/persistence"
	"github.com/okunev/bookshelf-bot/internal/service"
	"github.com/okunev/bookshelf-bot/internal/users"
	"github.com/okunev/bookshelf-bot/pkg/log"
)

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	// .env is optional; environment variables win either way
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	level := log.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.File != "" {
		fileLogger, err := log.InitFileLogger(cfg.Logging.File, level)
		if err != nil {
			log.Fatal("Failed to open log file: %v", err)
		}
		defer fileLogger.Close()
	} else {
		log.InitLogger(level)
	}

	if err := cfg.EnsureDirs(); err != nil {
		log.Fatal("Failed to prepare directories: %v", err)
	}

	books := catalog.NewStore(cfg.Storage.BooksPath(), cfg.Storage.TTL())
	userStore := users.NewStore(cfg.Storage.UsersPath(), cfg.Storage.TTL())
	eventStore := events.NewStore(cfg.Storage.EventsPath(), cfg.Storage.TTL())

	jobStore, err := persistence.NewSQLiteStore(cfg.Storage.JobsDB)
	if err != nil {
		log.Fatal("Failed to open job store: %v", err)
	}
	defer jobStore.Close()

	queue := jobs.NewQueue(cfg.Convert.Workers, jobStore)
	scanner := library.NewScanner(cfg.Files.UploadDir, cfg.Files.UploadDir, books, queue,
		library.WithMaxFileSize(cfg.Files.MaxFileSize))

	cronInstance := cron.New()
	svc := service.NewBookService(*cfg, books, userStore, eventStore, queue, scanner, cronInstance)

	server := httpapi.NewServer(books, eventStore, queue, svc,
		httpapi.WithUI(cfg.HTTP.UIStaticDir, cfg.HTTP.UIEnabled))

	queue.Start(svc.Executor())
	defer queue.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runWithComponents(ctx, cfg, svc, cronInstance, server); err != nil {
		log.Fatal("Shutdown with error: %v", err)
	}
	log.Info("Bye")
}

// runWithComponents wires the schedules and the HTTP server together and
// blocks until the context is cancelled or the server fails.
func runWithComponents(
	ctx context.Context,
	cfg *config.Config,
	sched scheduler,
	cronInstance cronEngine,
	server httpServer,
) error {
	if err := sched.Schedule(ctx); err != nil {
		return err
	}
	cronInstance.Start()
	defer cronInstance.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP API listening on %s", cfg.HTTP.Addr)
		errCh <- server.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
