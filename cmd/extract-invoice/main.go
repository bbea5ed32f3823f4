package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/config"
	"github.com/garyjia/invoice-approval/internal/container"
)

// Runs the text source and field extractor over a local file and prints the result.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	provider := flag.String("ocr", "", "Override extraction.ocr_provider (openai|azure|none)")
	timeout := flag.Duration("timeout", 2*time.Minute, "Extraction timeout")
	showText := flag.Bool("text", false, "Include the raw text in the output")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: extract-invoice [--ocr openai|azure|none] [--text] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *provider != "" {
		cfg.Extraction.OCRProvider = *provider
	}

	bundle, err := container.ProvideExtraction(&cfg.Extraction, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build extraction: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	text, err := bundle.TextSource.ExtractText(ctx, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: text extraction failed: %v\n", err)
		os.Exit(1)
	}

	out := map[string]interface{}{
		"file":      path,
		"extracted": bundle.Extractor.Extract(text),
		"elapsed":   time.Since(start).String(),
	}
	if *showText {
		out["text"] = text
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
		os.Exit(1)
	}
}
