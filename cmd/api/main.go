package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classattend/internal/app"
	"classattend/internal/attendance"
	"classattend/internal/cloudinary"
	"classattend/internal/config"
	"classattend/internal/handler"
	"classattend/internal/httpmiddleware"
)

const seedPassword = "password"

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	comps, err := app.Build(cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.AutoMigrate {
		if err := comps.Migrate(ctx); err != nil {
			return err
		}
	}
	if cfg.SeedOnStart {
		if _, err := comps.Seed(ctx, seedPassword); err != nil {
			return err
		}
	}

	// Without a shared queue nobody else can project events, so fold them here.
	if cfg.QueueBackend == "memory" {
		go project(ctx, comps)
	}

	// Cloudinary client (nil when not configured)
	var avatars handler.AvatarUploader
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		avatars = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	// Shared budget when Redis is around, per-process buckets otherwise.
	var limiter httpmiddleware.Limiter
	switch {
	case cfg.RateLimitPerMin <= 0:
	case comps.Redis != nil:
		limiter = httpmiddleware.NewWindowLimiter(comps.Redis.Client, cfg.RateLimitPerMin)
	default:
		buckets := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
		go func() {
			t := time.NewTicker(10 * time.Minute)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					buckets.Sweep(30 * time.Minute)
				}
			}
		}()
		limiter = buckets
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS(cfg.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.Metrics())
	r.Use(httpmiddleware.RateLimit(limiter))
	r.Use(httpmiddleware.Deadline(cfg.DBQueryTimeout))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		backends, ok := comps.Healthy(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "backends": backends})
	})

	handler.New(handler.Deps{
		Users:    comps.Users,
		Catalog:  comps.Catalog,
		Members:  comps.Members,
		Ledger:   comps.Ledger,
		Codes:    comps.Codes,
		Sessions: comps.Sessions(),
		Avatars:  avatars,
	}).Register(r)

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func project(ctx context.Context, comps *app.Components) {
	messages, err := comps.Queue.Consume(ctx)
	if err != nil {
		log.Printf("in-process projector not started: %v", err)
		return
	}
	p := attendance.NewProjector(comps.Repo, comps.Tally)
	for msg := range messages {
		if err := p.Handle(ctx, msg); err != nil {
			log.Printf("project %s: %v", msg.ID, err)
		}
	}
}
