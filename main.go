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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kiprutobrian/MSGARCH/config"
	c "github.com/kiprutobrian/MSGARCH/core"
	r "github.com/kiprutobrian/MSGARCH/repos"
)

func main() {
	// initialize context and signal handler, listen for interrupt and term signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// load in environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg(".env not loaded")
	}

	cfg := loadConfig()
	setupLogging(cfg)

	sc := c.ServiceContext{
		Context: ctx,
		Config:  cfg,
	}

	// run-history persistence is optional; without a database the service
	// still computes risk measures
	if cfg.Database.URL != "" {
		pg, err := r.GetPostgresConnection(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pg.Close()
		sc.PostgresConnection = pg
	} else {
		log.Warn().Msg("no database configured, risk runs will not be recorded")
	}

	// get http server, makes all of the endpoints and routes
	s := c.GetHttpServer(sc)

	go func() {
		log.Info().Str("addr", s.Addr).Msg("starting risk measure server")
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// wait here until the context is closed (ie, ctrl+C)
	<-ctx.Done()
	log.Info().Msg("received shutdown signal, shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}

func loadConfig() *config.Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.Default()
		}
		log.Fatal().Err(err).Str("path", path).Msg("failed to load config")
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
