package ocr

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/config"
)

// NewEngine builds the configured OCR engine; provider "none" yields nil
func NewEngine(cfg *config.ExtractionConfig, logger *zap.Logger) (Engine, error) {
	switch cfg.OCRProvider {
	case config.OCRProviderOpenAI:
		return NewOpenAIVision(cfg.OpenAIAPIKey, cfg.OpenAIModel, "", nil, logger), nil
	case config.OCRProviderAzure:
		return NewAzureOCR(cfg.AzureEndpoint, cfg.AzureKey, nil, logger), nil
	case config.OCRProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown ocr provider %q", cfg.OCRProvider)
	}
}

// NewTextSource wires the engine into a Router
func NewTextSource(cfg *config.ExtractionConfig, logger *zap.Logger) (*Router, error) {
	engine, err := NewEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewRouter(engine, Options{Preprocess: cfg.Preprocess, Timeout: cfg.Timeout}, logger), nil
}
