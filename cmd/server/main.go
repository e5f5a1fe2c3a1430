package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"smartsite/edge-gateway/internal/config"
	"smartsite/edge-gateway/internal/infrastructure/logger"
	"smartsite/edge-gateway/internal/infrastructure/observability"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fallback := logger.GetLogger()
		fallback.Fatal().Err(err).Msg("load config")
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fallback := logger.GetLogger()
		fallback.Fatal().Err(err).Msg("configure logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("initialize observability")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown telemetry")
			}
		}()
	}

	application, err := CreateApplication(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create application")
	}

	if err := application.Start(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("application stopped")
	}
	log.Info().Msg("edge-gateway shut down")
}
