package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/drama-high/internal/config"
	"github.com/jwebster45206/drama-high/pkg/textfilter"
)

// NewGenerator builds the generator selected by GENERATOR_PROVIDER, wrapped
// in a content filter when CONTENT_RATING asks for one.
func NewGenerator(cfg *config.Config, logger *slog.Logger) (Generator, error) {
	g, err := newProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	if textfilter.Restricts(cfg.ContentRating) {
		logger.Info("Filtering generated text", "content_rating", cfg.ContentRating)
		return NewFilteredGenerator(g, textfilter.New()), nil
	}
	return g, nil
}

func newProvider(cfg *config.Config, logger *slog.Logger) (Generator, error) {
	switch cfg.GeneratorProvider {
	case "openai":
		return NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.StoryModel, cfg.InsightModel, cfg.ImageModel, cfg.GeneratorTimeout, logger), nil
	case "anthropic":
		return NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.StoryModel, cfg.InsightModel, cfg.GeneratorTimeout, logger), nil
	case "ollama":
		return NewOllamaGenerator(cfg.OllamaHost, cfg.StoryModel, cfg.InsightModel, cfg.GeneratorTimeout, logger)
	case "mock":
		return NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("invalid generator provider %q", cfg.GeneratorProvider)
	}
}

// modelInitializer is implemented by generators that must prepare a model
// before the first request.
type modelInitializer interface {
	InitModel(ctx context.Context, modelName string) error
}

// InitModel prepares the story model when the generator needs it.
func InitModel(ctx context.Context, g Generator, modelName string) error {
	if f, ok := g.(*FilteredGenerator); ok {
		g = f.next
	}
	if mi, ok := g.(modelInitializer); ok {
		return mi.InitModel(ctx, modelName)
	}
	return nil
}
