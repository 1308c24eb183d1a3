package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jwebster45206/drama-high/internal/metrics"
	"github.com/jwebster45206/drama-high/pkg/prompts"
	"github.com/jwebster45206/drama-high/pkg/state"
)

const (
	openAIProvider = "openai"

	DefaultOpenAITemperature = 0.9
	DefaultOpenAIMaxTokens   = 2048
)

// OpenAIGenerator implements Generator for OpenAI and compatible APIs.
type OpenAIGenerator struct {
	client       *openai.Client
	storyModel   string
	insightModel string
	imageModel   string
	logger       *slog.Logger
}

// Ensure OpenAIGenerator implements Generator interface
var _ Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator creates a client. baseURL may point at any
// OpenAI-compatible endpoint; empty uses the public API. An empty imageModel
// disables scene art.
func NewOpenAIGenerator(apiKey, baseURL, storyModel, insightModel, imageModel string, timeout time.Duration, logger *slog.Logger) *OpenAIGenerator {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	config.HTTPClient = &http.Client{Timeout: timeout}

	if insightModel == "" {
		insightModel = storyModel
	}
	return &OpenAIGenerator{
		client:       openai.NewClientWithConfig(config),
		storyModel:   storyModel,
		insightModel: insightModel,
		imageModel:   imageModel,
		logger:       logger,
	}
}

func (g *OpenAIGenerator) RequestTurn(ctx context.Context, req TurnRequest) (*state.TurnUnit, error) {
	start := time.Now()
	unit, err := g.requestTurn(ctx, req)
	metrics.ObserveGenerator(openAIProvider, OpTurn, err, time.Since(start))
	return unit, err
}

func (g *OpenAIGenerator) requestTurn(ctx context.Context, req TurnRequest) (*state.TurnUnit, error) {
	schema, err := state.TurnSchema()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	messages, err := buildTurnMessages(req, nil)
	if err != nil {
		return nil, err
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       g.storyModel,
		Messages:    toOpenAIMessages(messages),
		Temperature: DefaultOpenAITemperature,
		MaxTokens:   DefaultOpenAIMaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "story_turn",
				Schema: json.RawMessage(schema),
			},
		},
	}

	content, err := g.complete(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	return decodeTurn(content)
}

func (g *OpenAIGenerator) RequestInsight(ctx context.Context, narrative string) (string, error) {
	start := time.Now()
	content, err := g.complete(ctx, openai.ChatCompletionRequest{
		Model: g.insightModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompts.InsightPrompt(narrative)},
		},
		MaxTokens: 120,
	})
	metrics.ObserveGenerator(openAIProvider, OpInsight, err, time.Since(start))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (g *OpenAIGenerator) RequestArt(ctx context.Context, prompt string) (string, error) {
	if g.imageModel == "" || strings.TrimSpace(prompt) == "" {
		return "", nil
	}

	start := time.Now()
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompts.ArtPrompt(prompt),
		Model:          g.imageModel,
		N:              1,
		Size:           openai.CreateImageSize1792x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	metrics.ObserveGenerator(openAIProvider, OpArt, err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", ErrEmptyResponse
	}
	return dataURL("image/png", resp.Data[0].B64JSON), nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	g.logger.Debug("Sending OpenAI chat request", "model", req.Model, "message_count", len(req.Messages))

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	g.logger.Debug("OpenAI chat response received",
		"model", resp.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"total_tokens", resp.Usage.TotalTokens)

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
