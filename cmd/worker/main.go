package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"shorts-pipeline/internal/ai"
	"shorts-pipeline/internal/config"
	"shorts-pipeline/internal/media"
	"shorts-pipeline/internal/storage"
	"shorts-pipeline/internal/store"
	"shorts-pipeline/internal/worker"
)

// Standalone worker for horizontal scale-out. The atomic claim in the job
// store keeps multiple worker processes from double-processing a job.
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

	files, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}

	pipeline := worker.NewPipeline(cfg, files, ai.NewClient(cfg), media.NewTools())
	processor := worker.NewProcessor(st, pipeline, cfg.PollInterval, cfg.ErrorBackoff)

	log.Printf("worker started: poll=%s backoff=%s", cfg.PollInterval, cfg.ErrorBackoff)
	if err := processor.Run(ctx); err != nil {
		log.Printf("worker stopped: %v", err)
	}
}
