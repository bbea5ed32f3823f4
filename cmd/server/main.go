package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/config"
	"github.com/garyjia/invoice-approval/internal/container"
	httpiface "github.com/garyjia/invoice-approval/internal/interfaces/http"
	"github.com/garyjia/invoice-approval/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting invoice approval service",
		zap.Int("port", cfg.Server.Port),
		zap.String("notification_transport", cfg.Notification.Transport),
		zap.String("ocr_provider", cfg.Extraction.OCRProvider),
		zap.String("lock_backend", cfg.Lock.Backend))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}

	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	services := c.Services()
	server := httpiface.NewServer(httpiface.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxUploadBytes:  cfg.Storage.MaxUploadBytes,
	}, httpiface.Services{
		Intake:   services.Intake,
		Query:    services.Query,
		Webhooks: services.Webhook,
		Engine:   c.Engine(),
		Verifier: c.Verifier(),
		Health:   c,
	}, c.AppLogger())

	if !c.Verifier().Enabled() {
		logger.Warn("Webhook signature verification disabled; set WEBHOOK_SECRET to enable it")
	}

	serveErr := server.Start(ctx)
	if serveErr != nil {
		logger.Error("HTTP server failed", zap.Error(serveErr))
	}

	logger.Info("Shutting down...")
	if err := c.Close(); err != nil {
		logger.Error("Container shutdown error", zap.Error(err))
	}

	if serveErr != nil {
		os.Exit(1)
	}
	logger.Info("Server exited successfully")
}
