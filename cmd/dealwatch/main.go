package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bakkerme/dealwatch/internal/config"
	"github.com/bakkerme/dealwatch/internal/core"
	"github.com/bakkerme/dealwatch/internal/dedupe"
	"github.com/bakkerme/dealwatch/internal/observability/otelx"
	"github.com/bakkerme/dealwatch/internal/runner"
	"github.com/bakkerme/dealwatch/internal/runner/factory"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", slog.String("error", err.Error()))
	}
	env := config.LoadEnv()

	configPath := flag.String("config", env.WatchConfigPath, "path to watch document")
	watchID := flag.String("watch-id", env.WatchID, "watch identifier")
	runOnce := flag.Bool("run-once", env.RunOnce, "run a single pass and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: env.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := otelx.Init(ctx, logger, env.OTel)
	if err != nil {
		log.Fatalf("failed to init otel: %v", err)
	}

	err = run(ctx, logger, env, *configPath, *watchID, *runOnce)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if shutdownErr := shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("otel shutdown failed", slog.String("error", shutdownErr.Error()))
	}
	cancel()

	if err != nil {
		logger.Error("dealwatch failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, env config.EnvConfig, configPath, watchID string, runOnce bool) error {
	doc, err := loadDocument(logger, configPath)
	if err != nil {
		return err
	}
	if err := env.Validate(doc); err != nil {
		return err
	}

	store, err := openStore(env.Store, doc.Watch.Source.Name)
	if err != nil {
		return err
	}
	defer store.Close()

	watch, err := doc.ParseToWatchWithFactory(factory.NewFromEnvConfig(logger, env))
	if err != nil {
		return err
	}
	watch.ID = watchID

	r := runner.NewWithConfig(logger, store, runner.Config{PassTimeout: env.PassTimeout})
	if runOnce {
		result, err := r.RunOnce(ctx, watch)
		if err != nil {
			return err
		}
		if result.Status != core.RunStatusCompleted {
			return errors.New("pass did not complete")
		}
		return nil
	}

	if err := r.Start(ctx, watch); err != nil {
		return err
	}
	<-ctx.Done()
	for _, trigger := range watch.Triggers {
		_ = trigger.Stop()
	}
	r.Wait()
	return nil
}

// loadDocument falls back to the built-in watch when the document is absent.
func loadDocument(logger *slog.Logger, path string) (*config.WatchDocument, error) {
	doc, err := config.LoadDocument(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("Watch document not found, using defaults", slog.String("path", path))
		doc = config.DefaultDocument()
		return doc, doc.Validate()
	}
	return doc, err
}

// openStore does no I/O; the first pass creates the table within PASS_TIMEOUT.
func openStore(cfg config.StoreEnvConfig, source string) (dedupe.SeenStore, error) {
	opts := dedupe.Options{Driver: cfg.Driver, Source: source}
	switch cfg.Driver {
	case dedupe.DriverSQLite:
		opts.DSN = cfg.SQLitePath
	default:
		tls, err := dedupe.ParseTLSMode(cfg.TLS)
		if err != nil {
			return nil, err
		}
		opts.DSN = cfg.DatabaseURL
		opts.TLS = tls
	}
	return dedupe.Open(opts)
}
