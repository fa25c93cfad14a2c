package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/doherty-labs/health-app-demo/pkg/common"
	"github.com/doherty-labs/health-app-demo/pkg/gateway"
	"github.com/doherty-labs/health-app-demo/pkg/types"
)

func main() {
	configManager, err := common.NewConfigManager[types.AppConfig]()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg := configManager.GetConfig()

	// Logging is configured before the component graph comes up so the
	// connection-time log lines already honor the config
	configureLogging(cfg.DebugMode, cfg.PrettyLogs)

	gw, err := gateway.NewGatewayFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize gateway")
	}

	if err := gw.CreateIndexes(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to provision indexes")
	}

	go func() {
		if err := gw.Start(); err != nil {
			log.Fatal().Err(err).Msg("gateway stopped unexpectedly")
		}
	}()

	terminate := make(chan os.Signal, 1)
	signal.Notify(terminate, os.Interrupt, syscall.SIGTERM)
	<-terminate

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := gw.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}

func configureLogging(debug, pretty bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
