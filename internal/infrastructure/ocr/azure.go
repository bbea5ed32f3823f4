package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
	"go.uber.org/zap"
)

// AzureOCR reads printed text with Azure Computer Vision
type AzureOCR struct {
	client computervision.BaseClient
	logger *zap.Logger
}

// NewAzureOCR creates the engine. sender replaces the HTTP transport when non-nil.
func NewAzureOCR(endpoint, apiKey string, sender autorest.Sender, logger *zap.Logger) *AzureOCR {
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)
	if sender != nil {
		client.Sender = sender
	}
	return &AzureOCR{client: client, logger: logger}
}

func (a *AzureOCR) Name() string { return "azure" }

// Recognize returns one line of text per OCR line, in reading order
func (a *AzureOCR) Recognize(ctx context.Context, img []byte) (string, error) {
	result, err := a.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(bytes.NewReader(img)),
		computervision.OcrLanguages("unk"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}

	lines := ocrLines(result)
	a.logger.Debug("Azure OCR completed", zap.Int("lines", len(lines)))
	return strings.Join(lines, "\n"), nil
}

func ocrLines(result computervision.OcrResult) []string {
	var lines []string
	if result.Regions == nil {
		return lines
	}
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			words := make([]string, 0, len(*line.Words))
			for _, word := range *line.Words {
				if word.Text != nil {
					words = append(words, *word.Text)
				}
			}
			if len(words) > 0 {
				lines = append(lines, strings.Join(words, " "))
			}
		}
	}
	return lines
}
