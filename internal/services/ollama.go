package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/jwebster45206/drama-high/internal/metrics"
	"github.com/jwebster45206/drama-high/pkg/prompts"
	"github.com/jwebster45206/drama-high/pkg/state"
)

const ollamaProvider = "ollama"

// OllamaGenerator implements Generator for a self-hosted Ollama server.
// Turns use Ollama's structured output with the turn schema as format.
type OllamaGenerator struct {
	client       *api.Client
	storyModel   string
	insightModel string
	logger       *slog.Logger

	readyRetries int
	readyDelay   time.Duration
}

// Ensure OllamaGenerator implements Generator interface
var _ Generator = (*OllamaGenerator)(nil)

// NewOllamaGenerator creates a new Ollama generator. host is the server root,
// e.g. http://localhost:11434.
func NewOllamaGenerator(host, storyModel, insightModel string, timeout time.Duration, logger *slog.Logger) (*OllamaGenerator, error) {
	host = strings.TrimSuffix(strings.TrimSuffix(host, "/"), "/v1")
	parsedURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	if insightModel == "" {
		insightModel = storyModel
	}

	return &OllamaGenerator{
		client:       api.NewClient(parsedURL, &http.Client{Timeout: timeout}),
		storyModel:   storyModel,
		insightModel: insightModel,
		logger:       logger,
		readyRetries: 5,
		readyDelay:   2 * time.Second,
	}, nil
}

// InitModel waits for the server and pulls the model if it is not available.
func (g *OllamaGenerator) InitModel(ctx context.Context, modelName string) error {
	g.logger.Info("Initializing LLM model", "model", modelName)

	if err := g.waitForOllamaReady(ctx); err != nil {
		return fmt.Errorf("ollama service is not ready: %w", err)
	}

	ready, err := g.isModelReady(ctx, modelName)
	if err != nil {
		return fmt.Errorf("failed to check model readiness: %w", err)
	}
	if ready {
		g.logger.Info("Model already available", "model", modelName)
		return nil
	}

	g.logger.Info("Model not found, pulling it", "model", modelName)
	err = g.client.Pull(ctx, &api.PullRequest{Model: modelName}, func(p api.ProgressResponse) error {
		g.logger.Debug("Pull progress", "model", modelName, "status", p.Status, "completed", p.Completed, "total", p.Total)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to pull model: %w", err)
	}
	g.logger.Info("Model pulled successfully", "model", modelName)
	return nil
}

func (g *OllamaGenerator) RequestTurn(ctx context.Context, req TurnRequest) (*state.TurnUnit, error) {
	start := time.Now()
	unit, err := g.requestTurn(ctx, req)
	metrics.ObserveGenerator(ollamaProvider, OpTurn, err, time.Since(start))
	return unit, err
}

func (g *OllamaGenerator) requestTurn(ctx context.Context, req TurnRequest) (*state.TurnUnit, error) {
	schema, err := state.TurnSchema()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	messages, err := buildTurnMessages(req, nil)
	if err != nil {
		return nil, err
	}

	content, err := g.chat(ctx, &api.ChatRequest{
		Model:    g.storyModel,
		Messages: toOllamaMessages(messages),
		Format:   json.RawMessage(schema),
		Options: map[string]interface{}{
			"temperature": DefaultOpenAITemperature,
		},
	})
	if err != nil {
		return nil, err
	}
	return decodeTurn(content)
}

func (g *OllamaGenerator) RequestInsight(ctx context.Context, narrative string) (string, error) {
	start := time.Now()
	content, err := g.chat(ctx, &api.ChatRequest{
		Model: g.insightModel,
		Messages: []api.Message{
			{Role: "user", Content: prompts.InsightPrompt(narrative)},
		},
	})
	metrics.ObserveGenerator(ollamaProvider, OpInsight, err, time.Since(start))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// RequestArt returns "": Ollama serves text models only.
func (g *OllamaGenerator) RequestArt(ctx context.Context, prompt string) (string, error) {
	return "", nil
}

func (g *OllamaGenerator) chat(ctx context.Context, req *api.ChatRequest) (string, error) {
	req.Stream = func(b bool) *bool { return &b }(false)

	g.logger.Debug("Making Ollama chat request", "model", req.Model, "message_count", len(req.Messages))

	var resp api.ChatResponse
	err := g.client.Chat(ctx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	content := resp.Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// isModelReady checks if the specified model is available
func (g *OllamaGenerator) isModelReady(ctx context.Context, modelName string) (bool, error) {
	list, err := g.client.List(ctx)
	if err != nil {
		return false, err
	}
	for _, model := range list.Models {
		if model.Name == modelName || model.Model == modelName || strings.TrimSuffix(model.Name, ":latest") == modelName {
			return true, nil
		}
	}
	return false, nil
}

// waitForOllamaReady waits for Ollama service to be ready with retries
func (g *OllamaGenerator) waitForOllamaReady(ctx context.Context) error {
	for i := 0; i < g.readyRetries; i++ {
		err := g.client.Heartbeat(ctx)
		if err == nil {
			g.logger.Info("Ollama service is ready")
			return nil
		}
		g.logger.Debug("Ollama not ready yet", "error", err, "attempt", i+1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.readyDelay):
		}
	}

	return fmt.Errorf("ollama service did not become ready after %d attempts", g.readyRetries)
}
