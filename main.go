// Package main provides the main entry point for the lead manager API
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/lead-manager/app/handlers"
	"github.com/amirphl/lead-manager/app/router"
	businessflow "github.com/amirphl/lead-manager/business_flow"
	"github.com/amirphl/lead-manager/config"
	"github.com/amirphl/lead-manager/database"
	"github.com/amirphl/lead-manager/repository"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.AppConfig
	db        *gorm.DB
	cache     *redis.Client
	stopFuncs []func()
}

func main() {
	log.Println("Starting lead manager...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	configureLogging(cfg.Logging)

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	if app.cache != nil {
		_ = app.cache.Close()
	}
	if err := database.Close(app.db); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Server stopped")
}

// configureLogging sends the standard logger to stdout and, when configured, a rotated file
func configureLogging(cfg config.LoggingConfig) {
	log.SetFlags(log.LstdFlags | log.LUTC)
	if cfg.FilePath == "" {
		log.SetOutput(os.Stdout)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}))
}

// newGormLogger routes gorm logs through the standard logger at the configured level
func newGormLogger(cfg *config.AppConfig) logger.Interface {
	level := logger.Warn
	switch cfg.Logging.Level {
	case "silent":
		level = logger.Silent
	case "error":
		level = logger.Error
	case "info":
		level = logger.Info
	}

	return logger.New(log.Default(), logger.Config{
		SlowThreshold:             cfg.Database.SlowQueryTime,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis; the returned function stops it
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

func initializeApplication(cfg *config.AppConfig) (*Application, error) {
	db, err := database.Open(cfg.Database, newGormLogger(cfg))
	if err != nil {
		return nil, err
	}
	log.Printf("Database connection established (driver=%s)", cfg.Database.Driver)

	migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := database.Migrate(migrateCtx, db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	app := &Application{config: cfg, db: db}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		// The cache only accelerates reads; run without it
		log.Printf("Cache disabled: %v", err)
		rc = nil
	}
	if rc != nil {
		app.cache = rc
		app.stopFuncs = append(app.stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval))
	}

	leadRepo := repository.NewLeadRepository(db)
	leadFlow := businessflow.NewLeadFlow(leadRepo, rc, cfg.Cache)

	leadHandler := handlers.NewLeadHandler(leadFlow)
	healthHandler := handlers.NewHealthHandler(db, rc, cfg.Deployment.Version)

	app.router = router.NewFiberRouter(cfg, leadHandler, healthHandler)

	return app, nil
}
