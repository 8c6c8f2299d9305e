package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"shorts-pipeline/internal/ai"
	"shorts-pipeline/internal/api"
	"shorts-pipeline/internal/config"
	"shorts-pipeline/internal/media"
	"shorts-pipeline/internal/ratelimit"
	"shorts-pipeline/internal/storage"
	"shorts-pipeline/internal/store"
	"shorts-pipeline/internal/worker"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	if cfg.ReclaimStaleAfter > 0 {
		if n, err := st.ReclaimStale(ctx, cfg.ReclaimStaleAfter); err != nil {
			log.Printf("reclaim stale jobs: %v", err)
		} else if n > 0 {
			log.Printf("reclaimed %d stale processing jobs", n)
		}
	}

	files, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}

	analyzer := ai.NewClient(cfg)
	tools := media.NewTools()

	pipeline := worker.NewPipeline(cfg, files, analyzer, tools)
	processor := worker.NewProcessor(st, pipeline, cfg.PollInterval, cfg.ErrorBackoff)

	// The worker runs in its own goroutine so the HTTP listener stays
	// responsive while a job blocks on transcription or rendering.
	go func() {
		log.Printf("worker started: poll=%s backoff=%s", cfg.PollInterval, cfg.ErrorBackoff)
		if err := processor.Run(ctx); err != nil {
			log.Printf("worker stopped: %v", err)
		}
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	limiter := ratelimit.NewTokenBucket(redisClient, cfg.RateLimitCapacity, cfg.RateLimitRefill, time.Hour)

	server := api.New(cfg, st, files, limiter)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	log.Printf("api listening on :%s", cfg.HTTPPort)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}
