package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"imagestudio/internal/artifacts"
	"imagestudio/internal/http/handlers"
	"imagestudio/internal/http/httpapi"
	"imagestudio/internal/infra"
	"imagestudio/internal/jobs"
	"imagestudio/internal/orchestrator"
	"imagestudio/internal/providers/bfl"
	"imagestudio/internal/providers/registry"
	"imagestudio/internal/providers/stability"
	"imagestudio/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	store, err := storage.NewFileStore(cfg.StoragePath, cfg.PublicBasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}
	ingest, err := handlers.NewUploadIngest(filepath.Join(store.BasePath(), httpapi.IncomingDir), cfg.UploadMaxBytes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure upload staging")
	}

	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}
	flux, err := bfl.NewClient(bfl.Options{
		APIKey:         cfg.BFLAPIKey,
		BaseURL:        cfg.BFLBaseURL,
		HTTPClient:     httpClient,
		Logger:         &logger,
		RequestTimeout: cfg.ProviderTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure bfl client")
	}
	upscaler, err := stability.NewClient(stability.Options{
		APIKey:         cfg.StabilityAPIKey,
		BaseURL:        cfg.StabilityBaseURL,
		HTTPClient:     httpClient,
		Logger:         &logger,
		RequestTimeout: cfg.ProviderTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure stability client")
	}
	if !flux.HasCredentials() {
		logger.Warn().Msg("BFL_API_KEY is not set; image operations will fail with AuthError")
	}
	if !upscaler.HasCredentials() {
		logger.Warn().Msg("STABILITY_API_KEY is not set; upscale will fail with AuthError")
	}

	providers := registry.New(flux, upscaler)
	poller := jobs.NewPoller(providers, cfg.PollMaxAttempts, cfg.PollInterval, &logger)
	retriever := artifacts.NewRetriever(providers, store, &logger)
	orch := orchestrator.New(providers, poller, retriever, cfg.Defaults, &logger)

	app := handlers.NewApp(orch, providers, upscaler, ingest, &logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          &logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StoragePath:     store.BasePath(),
		PublicBasePath:  cfg.PublicBasePath,
	})
	server := infra.NewHTTPServer(cfg, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.CleanupEnabled {
		sweeper := storage.NewSweeper([]string{store.BasePath(), ingest.Dir()}, cfg.UploadMaxAge, cfg.CleanupInterval, &logger)
		go func() {
			_ = sweeper.Run(ctx)
		}()
	}

	go func() {
		logger.Info().Str("storage", store.BasePath()).Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
