package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"copilot/api/internal/app"
	"copilot/api/internal/config"
	"copilot/api/internal/email"
	"copilot/api/internal/export"
	"copilot/api/internal/llm"
	"copilot/api/internal/logger"
	"copilot/api/internal/objectstore"
	"copilot/api/internal/workspace"
)

var version = "dev"

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "copilot-api",
		Version: version,
	})
	ctx := context.Background()

	var store workspace.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := workspace.NewRedisStore(cfg.RedisURL, cfg.WorkspaceTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		store = redisStore
		log.Info().Msg("using redis for workspace storage")
	} else {
		store = workspace.NewMemoryStore(cfg.WorkspaceTTL)
		log.Info().Msg("using process memory for workspace storage")
	}

	generator, err := llm.New(llm.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("llm provider setup failed")
	}
	log.Info().Str("provider", generator.Name()).Msg("text generation configured")

	var exportOpts []export.Option
	if strings.TrimSpace(cfg.S3Endpoint) != "" {
		artifacts, err := objectstore.New(objectstore.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("object store setup failed")
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := artifacts.EnsureBucket(bucketCtx); err != nil {
			log.Warn().Err(err).Msg("export bucket unavailable, exports will not be stored")
		} else {
			exportOpts = append(exportOpts, export.WithArtifactStore(artifacts))
		}
		cancel()
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, log)
	if !mailer.IsConfigured() {
		log.Info().Msg("smtp not configured, email sends will be simulated")
	}

	service := app.New(cfg, app.Deps{
		Store:    store,
		Writer:   llm.NewWriter(generator, cfg.LLMTimeout, log),
		Exporter: export.NewService(exportOpts...),
		Mailer:   mailer,
		Logger:   log,
	})
	defer service.Close()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, log)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("copilot api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
