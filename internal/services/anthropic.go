package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/drama-high/internal/metrics"
	"github.com/jwebster45206/drama-high/pkg/chat"
	"github.com/jwebster45206/drama-high/pkg/prompts"
	"github.com/jwebster45206/drama-high/pkg/state"
)

const (
	anthropicProvider = "anthropic"
	anthropicBaseURL  = "https://api.anthropic.com/v1"
	anthropicVersion  = "2023-06-01"

	DefaultAnthropicTemperature = 0.9
	DefaultAnthropicMaxTokens   = 2048
)

// AnthropicGenerator implements Generator for Anthropic Claude.
// Claude has no image output, so RequestArt always returns "".
type AnthropicGenerator struct {
	apiKey       string
	baseURL      string
	storyModel   string
	insightModel string
	httpClient   *http.Client
	logger       *slog.Logger
}

// Ensure AnthropicGenerator implements Generator interface
var _ Generator = (*AnthropicGenerator)(nil)

type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AnthropicChatRequest struct {
	Model         string             `json:"model"`
	MaxTokens     int                `json:"max_tokens"`
	Temperature   *float64           `json:"temperature,omitempty"`
	Messages      []AnthropicMessage `json:"messages"`
	System        string             `json:"system,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
}

type AnthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type AnthropicChatResponse struct {
	ID           string                  `json:"id"`
	Type         string                  `json:"type"`
	Role         string                  `json:"role"`
	Content      []AnthropicContentBlock `json:"content"`
	Model        string                  `json:"model"`
	StopReason   string                  `json:"stop_reason"`
	StopSequence *string                 `json:"stop_sequence"`
	Usage        struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewAnthropicGenerator(apiKey, storyModel, insightModel string, timeout time.Duration, logger *slog.Logger) *AnthropicGenerator {
	if insightModel == "" {
		insightModel = storyModel
	}
	return &AnthropicGenerator{
		apiKey:       apiKey,
		baseURL:      anthropicBaseURL,
		storyModel:   storyModel,
		insightModel: insightModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (a *AnthropicGenerator) RequestTurn(ctx context.Context, req TurnRequest) (*state.TurnUnit, error) {
	start := time.Now()
	unit, err := a.requestTurn(ctx, req)
	metrics.ObserveGenerator(anthropicProvider, OpTurn, err, time.Since(start))
	return unit, err
}

func (a *AnthropicGenerator) requestTurn(ctx context.Context, req TurnRequest) (*state.TurnUnit, error) {
	schema, err := state.TurnSchema()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	messages, err := buildTurnMessages(req, schema)
	if err != nil {
		return nil, err
	}

	content, err := a.chatCompletion(ctx, messages, a.storyModel, DefaultAnthropicMaxTokens)
	if err != nil {
		return nil, err
	}
	return decodeTurn(content)
}

func (a *AnthropicGenerator) RequestInsight(ctx context.Context, narrative string) (string, error) {
	start := time.Now()
	content, err := a.chatCompletion(ctx, []chat.ChatMessage{
		{Role: chat.ChatRolePlayer, Content: prompts.InsightPrompt(narrative)},
	}, a.insightModel, 120)
	metrics.ObserveGenerator(anthropicProvider, OpInsight, err, time.Since(start))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (a *AnthropicGenerator) RequestArt(ctx context.Context, prompt string) (string, error) {
	return "", nil
}

// toAnthropicMessages converts the turn log to user/assistant turns.
// The first turn must be the user's, so a log that opens with the narrator
// gets the opening prompt put back in front.
func toAnthropicMessages(messages []chat.ChatMessage) []AnthropicMessage {
	out := make([]AnthropicMessage, 0, len(messages)+1)
	for _, m := range messages {
		out = append(out, AnthropicMessage{Role: m.APIRole(), Content: m.Content})
	}
	if len(out) > 0 && out[0].Role == "assistant" {
		out = append([]AnthropicMessage{{Role: "user", Content: prompts.OpeningPrompt}}, out...)
	}
	return out
}

// chatCompletion makes a chat completion request to Anthropic with the specified model
func (a *AnthropicGenerator) chatCompletion(ctx context.Context, messages []chat.ChatMessage, modelName string, maxTokens int) (string, error) {
	// Extract system messages and convert to Anthropic format
	systemPrompt, conversationMessages := splitChatMessages(messages)

	temperature := DefaultAnthropicTemperature
	anthropicReq := AnthropicChatRequest{
		Model:       modelName,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		Messages:    toAnthropicMessages(conversationMessages),
		System:      systemPrompt,
	}

	reqBody, err := json.Marshal(anthropicReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	// Set required Anthropic headers
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")

	a.logger.Debug("Sending Anthropic request", "model", modelName, "message_count", len(anthropicReq.Messages))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to make request: %v", ErrGenerationFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response body: %v", ErrGenerationFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		a.logger.Error("Anthropic API returned error", "status_code", resp.StatusCode, "response_body", string(body))
		return "", fmt.Errorf("%w: API request failed with status %d", ErrGenerationFailed, resp.StatusCode)
	}

	var anthropicResp AnthropicChatResponse
	if err := json.Unmarshal(body, &anthropicResp); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", ErrGenerationFailed, err)
	}

	if anthropicResp.Error != nil {
		return "", fmt.Errorf("%w: API error: %s", ErrGenerationFailed, anthropicResp.Error.Message)
	}

	// Extract text content from the response
	var responseText string
	for _, content := range anthropicResp.Content {
		if content.Type == "text" {
			responseText += content.Text
		}
	}

	if strings.TrimSpace(responseText) == "" {
		return "", ErrEmptyResponse
	}

	a.logger.Debug("Anthropic response received",
		"stop_reason", anthropicResp.StopReason,
		"input_tokens", anthropicResp.Usage.InputTokens,
		"output_tokens", anthropicResp.Usage.OutputTokens)

	return responseText, nil
}
