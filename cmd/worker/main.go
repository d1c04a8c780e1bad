// Command worker runs the storage sweep on its own, for deployments where the
// API process has CLEANUP_ENABLED=false or several API replicas share one
// storage volume.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"imagestudio/internal/http/httpapi"
	"imagestudio/internal/infra"
	"imagestudio/internal/storage"
)

func main() {
	once := flag.Bool("once", false, "sweep a single time and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	store, err := storage.NewFileStore(cfg.StoragePath, cfg.PublicBasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}
	dirs := []string{store.BasePath(), filepath.Join(store.BasePath(), httpapi.IncomingDir)}
	sweeper := storage.NewSweeper(dirs, cfg.UploadMaxAge, cfg.CleanupInterval, &logger)

	if *once {
		removed, err := sweeper.SweepOnce()
		if err != nil {
			logger.Error().Err(err).Int("removed", removed).Msg("worker: sweep failed")
			os.Exit(1)
		}
		logger.Info().Int("removed", removed).Msg("worker: sweep finished")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Strs("dirs", dirs).
		Dur("max_age", sweeper.MaxAge).
		Dur("interval", sweeper.Interval).
		Msg("worker: started")
	if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
