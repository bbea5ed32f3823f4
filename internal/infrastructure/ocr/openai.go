package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const visionPrompt = `Transcribe all text on this invoice exactly as printed, line by line, top to bottom.
Keep numbers, dates and punctuation unchanged. Do not summarize or translate. Output plain text only.`

// OpenAIVision transcribes images with a vision-capable chat model
type OpenAIVision struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIVision creates the engine. baseURL and httpClient are optional.
func NewOpenAIVision(apiKey, model, baseURL string, httpClient *http.Client, logger *zap.Logger) *OpenAIVision {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIVision{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}
}

func (o *OpenAIVision) Name() string { return "openai" }

// Recognize sends the image as a data URI and returns the transcription
func (o *OpenAIVision) Recognize(ctx context.Context, img []byte) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		MaxTokens:   4096,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: visionPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURI(img),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from vision API")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	o.logger.Debug("Vision transcription received",
		zap.Int("content_length", len(text)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return text, nil
}

func dataURI(img []byte) string {
	mime := http.DetectContentType(img)
	if mime != "image/png" && mime != "image/jpeg" {
		mime = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(img))
}
