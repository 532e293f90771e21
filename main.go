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

	"stream-proxy/domain/repository"
	"stream-proxy/infrastructure/cache"
	extractorclient "stream-proxy/infrastructure/clients/extractor"
	originclient "stream-proxy/infrastructure/clients/origin"
	"stream-proxy/infrastructure/configuration"
	"stream-proxy/infrastructure/logger"
	"stream-proxy/infrastructure/ratelimit"
	"stream-proxy/infrastructure/storage"
	httpHandler "stream-proxy/interfaces/http"
	"stream-proxy/server"
	"stream-proxy/usecase"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")
	cfg := configuration.C

	// Redis is optional: without it the rate limiter runs in-process.
	var limiter repository.IRateLimiter
	if cfg.RedisClient.Host != "" {
		redisClient, err := cache.NewRedisClient(
			ctx,
			fmt.Sprintf("%s:%s", cfg.RedisClient.Host, cfg.RedisClient.Port),
			cfg.RedisClient.Username,
			cfg.RedisClient.Password,
		)
		if err == nil {
			redisLimiter := ratelimit.NewRedisLimiter(redisClient,
				ratelimit.WithSeenTTL(time.Duration(cfg.RateLimit.IdleTTLSec)*time.Second),
			)
			redisLimiter.StartJanitor(ctx, time.Duration(cfg.RateLimit.CleanupSec)*time.Second)
			limiter = redisLimiter
			logger.GetLogger().Info("Rate limiter backed by redis")
		} else {
			logger.GetLogger().WithField("error", err).Warn("Redis unavailable, using in-memory rate limiter")
		}
	}
	if limiter == nil {
		memLimiter := ratelimit.NewMemoryLimiter(
			ratelimit.WithIdleTTL(time.Duration(cfg.RateLimit.IdleTTLSec)*time.Second),
			ratelimit.WithCleanupEvery(time.Duration(cfg.RateLimit.CleanupSec)*time.Second),
		)
		memLimiter.StartJanitor(ctx)
		limiter = memLimiter
	}

	extractor := extractorclient.NewClient(extractorclient.Config{
		BaseURL:       cfg.Extractor.URL,
		Timeout:       time.Duration(cfg.Extractor.TimeoutSec) * time.Second,
		OutboundRPS:   cfg.Extractor.OutboundRPS,
		OutboundBurst: cfg.Extractor.OutboundBurst,
	})

	streamCache := cache.NewStreamCache(
		extractor,
		time.Duration(cfg.Cache.TTLSec)*time.Second,
		time.Duration(cfg.Extractor.TimeoutSec)*time.Second,
		cache.WithNegativeTTL(time.Duration(cfg.Cache.NegativeTTLSec)*time.Second),
	)
	streamCache.StartJanitor(ctx, time.Duration(cfg.Cache.SweepSec)*time.Second)

	storageManager := storage.NewManager(cfg.Storage.Dir, cfg.Storage.QuotaBytes())
	if err := storageManager.Rebuild(); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Could not rebuild storage ledger from disk")
	}
	if evicted := storageManager.EnforceQuota(); len(evicted) > 0 {
		logger.GetLogger().WithField("evicted", evicted).Info("Cold-start quota enforcement evicted files")
	}

	policies := server.Policies{
		Read: repository.RatePolicy{
			Scope:       "api",
			Window:      cfg.RateLimit.RateWindow(),
			MaxRequests: cfg.RateLimit.MaxRequests,
		},
		Download: repository.RatePolicy{
			Scope:       "download",
			Window:      cfg.RateLimit.RateWindow(),
			MaxRequests: cfg.RateLimit.DownloadMax,
		},
	}

	streamUsecase := usecase.NewStreamUsecase(streamCache)
	downloadUsecase := usecase.NewDownloadUsecase(streamUsecase, originclient.NewFetcher(), storageManager, cfg.Storage.Dir)
	batchUsecase := usecase.NewBatchUsecase(streamCache, limiter, policies.Read, cfg.Batch.Concurrency, cfg.Batch.MaxItems)
	statsUsecase := usecase.NewStatsUsecase(streamCache, storageManager, limiter)

	streamHandler := httpHandler.NewStreamHandler(streamUsecase, downloadUsecase)
	batchHandler := httpHandler.NewBatchHandler(batchUsecase)
	adminHandler := httpHandler.NewAdminHandler(statsUsecase, streamUsecase)

	router := server.InitiateRouter(streamHandler, batchHandler, adminHandler, limiter, policies)

	port := cfg.App.Port
	logger.GetLogger().WithField("port", port).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}
