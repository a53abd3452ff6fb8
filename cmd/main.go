package main

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"todoapi/internal/audit"
	"todoapi/internal/config"
	"todoapi/internal/database"
	"todoapi/internal/ratelimit"
	"todoapi/internal/routes"
	"todoapi/internal/store"
	"todoapi/internal/store/memory"
	"todoapi/internal/store/postgres"
	"todoapi/internal/worker"
	"todoapi/pkg/logger"
)

func main() {
	loadEnvFile(".env")

	ctx := context.Background()
	cfg := config.Get()

	var st store.Store
	if cfg.DatabaseURL != "" {
		db := database.DB(ctx)
		if db == nil {
			logger.Error(ctx, "Database not available; exiting")
			os.Exit(1)
		}
		if err := database.MigrateOrCreateSchema(ctx); err != nil {
			logger.Error(ctx, "Schema migration failed", "error", err)
			os.Exit(1)
		}
		st = postgres.NewStore(db)
	} else {
		logger.Warn(ctx, "DATABASE_URL not set; using in-memory store (data is lost on restart)")
		st = memory.NewStore()
	}

	// Rate limiter: Redis-backed when available, in-process otherwise.
	limiter := ratelimit.New(ratelimit.Client(ctx), cfg.AuthRateLimit,
		time.Duration(cfg.AuthRateWindow)*time.Second)
	if mem, ok := limiter.(*ratelimit.MemoryLimiter); ok {
		mem.StartJanitor(ctx, 2*time.Minute)
	}

	// Pre-warm audit producer and ensure topic exists (no-ops without brokers).
	audit.Producer(ctx)
	audit.EnsureTopic(ctx)

	// Sweep expired token rows in the background.
	go worker.Run(ctx, st)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      routes.Router(st, limiter),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info(ctx, "HTTP server listening", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Server shutdown error", "error", err)
	}
	logger.Info(ctx, "Server stopped")
}

// loadEnvFile reads a .env file and sets env vars (only if not already set).
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if strings.HasPrefix(val, `"`) && strings.HasSuffix(val, `"`) {
			val = strings.Trim(val, `"`)
		} else if strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'") {
			val = strings.Trim(val, "'")
		}
		if key != "" && os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
}
