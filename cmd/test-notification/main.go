package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/config"
	"github.com/garyjia/invoice-approval/internal/container"
	"github.com/garyjia/invoice-approval/pkg/utils"
)

// Sends the approval request for one stored invoice through the configured
// transport, so a transport can be checked without uploading a document.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	invoiceID := flag.Int64("invoice", 0, "Invoice ID to notify about")
	recipient := flag.String("to", "", "Recipient (email address, or Lark open_id for the lark transport)")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	if *invoiceID <= 0 || *recipient == "" {
		fmt.Fprintln(os.Stderr, "Usage: test-notification --invoice <id> --to <recipient> [--config configs/config.yaml]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{Level: "debug", OutputPath: "stderr", Format: "console"})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}
	if err := c.Start(ctx); err != nil {
		log.Fatalf("Failed to start container: %v", err)
	}
	defer c.Close()

	fmt.Printf("=== Notification Test (%s) ===\n", cfg.Notification.Transport)

	inv, err := c.Store().Get(ctx, *invoiceID)
	if err != nil {
		logger.Error("Failed to load invoice", zap.Int64("invoice_id", *invoiceID), zap.Error(err))
		os.Exit(1)
	}
	fmt.Printf("Invoice %d: %s [%s]\n", inv.ID, inv.DisplayName(), inv.State.Label())

	approveURL, rejectURL, err := c.Services().Notification.ActionLinks(inv.ID)
	if err != nil {
		log.Fatalf("Failed to build action links: %v", err)
	}
	fmt.Printf("  approve: %s\n  reject:  %s\n", approveURL, rejectURL)

	n, err := c.Services().Notification.Notify(ctx, inv, *recipient)
	if n != nil {
		fmt.Printf("Notification %d: status=%s attempts=%d\n", n.ID, n.Status, n.Attempts)
	}
	if err != nil {
		fmt.Printf("✗ Delivery failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Notification sent")
}
