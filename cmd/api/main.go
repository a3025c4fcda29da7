package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ecommerce-api/internal/app"
	"github.com/yourusername/ecommerce-api/internal/config"
	"github.com/yourusername/ecommerce-api/pkg/logger"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Env.IsProduction(), cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if cfg.App.Env.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Configuration loaded",
		zap.String("path", configPath),
		zap.String("env", string(cfg.App.Env)),
		zap.String("database_driver", cfg.Database.Driver),
	)

	// Останавливаемся по SIGINT/SIGTERM: контекст отменяется, App выполняет graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}

	if err := application.Run(ctx); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}
