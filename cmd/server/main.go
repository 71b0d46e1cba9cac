package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"agent-server/internal/config"
	"agent-server/internal/domain/model"
	"agent-server/internal/domain/router"
	"agent-server/internal/domain/session"
	"agent-server/internal/domain/token"
	"agent-server/internal/domain/usage"
	"agent-server/internal/infrastructure/cache"
	"agent-server/internal/infrastructure/crontab"
	"agent-server/internal/infrastructure/logger"
	"agent-server/internal/infrastructure/provider"
	"agent-server/internal/interfaces/httpserver"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.GetLogger()
		fallback.Fatal().Err(err).Msg("load config")
	}

	log, err := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fallback := logger.GetLogger()
		fallback.Fatal().Err(err).Msg("setup logger")
	}

	log.Info().Msg("starting agent server")

	// Shared resources are acquired once here and released at shutdown.
	redisCache, err := cache.NewRedisCache(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect session cache")
	}
	defer func() {
		if err := redisCache.Close(); err != nil {
			log.Error().Err(err).Msg("close session cache")
		}
	}()

	registry, err := model.NewRegistry(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build model registry")
	}

	ledger := usage.NewLedger(registry)
	counter := token.NewCounter()
	providerClient := provider.NewClient(cfg)

	modelRouter := router.New(registry, counter, ledger, providerClient, router.Options{
		MaxRetries:         cfg.MaxRetries,
		RequestTimeout:     cfg.RequestTimeout,
		DefaultMaxTokens:   cfg.DefaultMaxTokens,
		DefaultTemperature: cfg.DefaultTemperature,
	}, log)

	store := session.NewStore(redisCache, cfg.SessionTimeout, log)
	sweeper := crontab.New(store, redisCache.Client(), cfg.SweepIntervalMinutes)
	server := httpserver.NewHTTPServer(modelRouter, store, ledger, cfg, log)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: 2 * cfg.RequestTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var eg errgroup.Group
	eg.Go(func() error {
		log.Info().Int("port", cfg.HTTPPort).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cancel()
			return err
		}
		return nil
	})
	eg.Go(func() error {
		return sweeper.Run(ctx)
	})
	eg.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quit:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("server exited")
}
