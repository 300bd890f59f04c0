// cmd/scoutd/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"community-scout/internal/app"
	"community-scout/internal/common/config"
	"community-scout/internal/common/logger"
	"community-scout/internal/common/observability"
	"community-scout/internal/server"
	"community-scout/internal/store"
)

func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting community-scout",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment))

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Entity sink (optional) ---
	var entityStore store.EntityStore
	if cfg.Database.Redis.Enabled {
		var redisStore *store.RedisStore
		err = retryWithBackoff(func() error {
			var err error
			redisStore, err = store.NewRedisStore(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redisStore.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisStore.Close()
		entityStore = redisStore
		zapLog.Info("redis entity sink connected")
	}

	// --- Run log (optional) ---
	var runLog store.RunLog
	if cfg.Database.Postgres.Enabled {
		var pgLog *store.PostgresRunLog
		err = retryWithBackoff(func() error {
			var err error
			pgLog, err = store.NewPostgresRunLog(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pgLog.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pgLog.Close()
		runLog = pgLog
		zapLog.Info("postgres run log connected")
	}

	pipe, err := app.BuildPipeline(cfg, entityStore, runLog, obs, log)
	if err != nil {
		zapLog.Fatal("pipeline init failed", zap.Error(err))
	}

	srv := server.New(cfg.Server, cfg.App.Environment, pipe, log)

	go func() {
		if err := srv.Start(); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("server shutdown failed", zap.Error(err))
	}
}
