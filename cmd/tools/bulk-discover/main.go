// cmd/tools/bulk-discover/main.go
//
// Runs the discovery pipeline for every query in a newline-separated file
// and upserts the merged entities into the configured sink. Useful for
// seeding the entity store across many locations at once.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"community-scout/internal/app"
	"community-scout/internal/common/config"
	"community-scout/internal/common/logger"
	"community-scout/internal/common/observability"
	"community-scout/internal/store"
)

func main() {
	queriesPath := flag.String("queries", "queries.txt", "path to a newline-separated query list")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, "console")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New(cfg.App.Name + "-bulk")
	defer obs.Shutdown()

	ctx := context.Background()

	var entityStore store.EntityStore
	if cfg.Database.Redis.Enabled {
		redisStore, err := store.NewRedisStore(cfg.Database.Redis)
		if err != nil {
			zapLog.Fatal("redis init failed", zap.Error(err))
		}
		if err := redisStore.Ping(ctx); err != nil {
			zapLog.Fatal("redis unreachable", zap.Error(err))
		}
		defer redisStore.Close()
		entityStore = redisStore
	}

	var runLog store.RunLog
	if cfg.Database.Postgres.Enabled {
		pgLog, err := store.NewPostgresRunLog(cfg.Database.Postgres)
		if err != nil {
			zapLog.Fatal("postgres init failed", zap.Error(err))
		}
		defer pgLog.Close()
		runLog = pgLog
	}

	pipe, err := app.BuildPipeline(cfg, entityStore, runLog, obs, log)
	if err != nil {
		zapLog.Fatal("pipeline init failed", zap.Error(err))
	}

	queries, err := readQueries(*queriesPath)
	if err != nil {
		zapLog.Fatal("query list unreadable", zap.Error(err))
	}
	if len(queries) == 0 {
		zapLog.Fatal("query list is empty", zap.String("path", *queriesPath))
	}

	failures := 0
	for i, query := range queries {
		result, err := pipe.Run(ctx, query)
		if err != nil {
			failures++
			zapLog.Error("run failed", zap.String("query", query), zap.Error(err))
			continue
		}

		errCount := 0
		if result.Debug != nil {
			errCount = len(result.Debug.Errors)
		}
		fmt.Printf("[%d/%d] %q: %d entities from %d candidates (%d errors, %dms)\n",
			i+1, len(queries), query,
			result.Meta.Entities, result.Meta.CandidatesScanned,
			errCount, result.Meta.ElapsedMS)
	}

	fmt.Printf("done: %d queries, %d failed\n", len(queries), failures)
	if failures > 0 {
		os.Exit(1)
	}
}

func readQueries(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var queries []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	return queries, scanner.Err()
}
