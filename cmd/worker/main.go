package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"classattend/internal/app"
	"classattend/internal/attendance"
	"classattend/internal/config"
	"classattend/internal/worker"
)

// Worker folds attendance events into the tally and expires QR codes.
func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if cfg.QueueBackend != "redis" {
		log.Fatalf("worker needs QUEUE_BACKEND=redis; with memory the api projects events itself")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	comps, err := app.Build(cfg)
	if err != nil {
		log.Fatalf("wiring failed: %v", err)
	}
	defer comps.Close()

	sched := cron.New()
	if _, err := worker.ScheduleExpiry(ctx, sched, cfg.QRExpiryCron, comps.Codes); err != nil {
		log.Fatalf("bad QR_EXPIRY_CRON %q: %v", cfg.QRExpiryCron, err)
	}
	sched.Start()
	defer sched.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics listener: %v", err)
		}
	}()
	defer metricsSrv.Close()

	if err := worker.Run(ctx, comps.Queue, attendance.NewProjector(comps.Repo, comps.Tally)); err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}
}
