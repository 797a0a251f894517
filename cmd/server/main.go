package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tilegate/internal/cache"
	"tilegate/internal/config"
	httphandlers "tilegate/internal/http"
	"tilegate/internal/logger"
	"tilegate/internal/metrics"
	"tilegate/internal/proxy"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting tilegate server",
		zap.Int("port", cfg.Port),
		zap.String("cache_dir", cfg.CacheDir),
		zap.String("upstream", cfg.UpstreamURL),
	)

	m := metrics.New()
	memory := cache.NewMemoryCache(cfg.MemoryMax, cfg.MemoryTTL, m)

	disk, err := cache.NewDiskStore(cfg.CacheDir, cfg.DiskTTL)
	if err != nil {
		log.Fatal("Failed to initialize disk store", zap.Error(err))
	}

	tileProxy := proxy.New(memory, disk, m, proxy.UpstreamOptions{
		URLTemplate: cfg.UpstreamURL,
		Timeout:     cfg.UpstreamTimeout,
		RPS:         cfg.UpstreamRPS,
	}, log)

	pruner := proxy.NewPruner(cfg.CacheDir, cfg.DiskTTL, cfg.DiskMaxEntries, cfg.DiskMaxBytes, cfg.PruneInterval, m, log)
	pruner.Start()

	handlers := httphandlers.New(cfg, log, tileProxy, memory, disk, m)

	mux := http.NewServeMux()
	mux.HandleFunc("/tiles/stats", handlers.HandleStats)
	mux.HandleFunc("/tiles/", handlers.HandleTile)
	mux.HandleFunc("/healthz", handlers.HandleHealthz)

	handler := handlers.CORSMiddleware(handlers.RequestLoggingMiddleware(mux))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	pruner.Stop()

	log.Info("Server stopped")
}
