package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string     `envconfig:"PORT" default:"8080"`
	Environment string     `envconfig:"ENVIRONMENT" default:"development"`
	LogLevelRaw string     `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string     `envconfig:"LOG_FILE"`
	LogLevel    slog.Level `ignored:"true"`

	GeneratorProvider string        `envconfig:"GENERATOR_PROVIDER" default:"openai"`
	StoryModel        string        `envconfig:"STORY_MODEL"`
	InsightModel      string        `envconfig:"INSIGHT_MODEL"`
	ImageModel        string        `envconfig:"IMAGE_MODEL"`
	OpenAIAPIKey      string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `envconfig:"OPENAI_BASE_URL"`
	AnthropicAPIKey   string        `envconfig:"ANTHROPIC_API_KEY"`
	OllamaHost        string        `envconfig:"OLLAMA_HOST" default:"http://localhost:11434"`
	GeneratorTimeout  time.Duration `envconfig:"GENERATOR_TIMEOUT" default:"120s"`
	ContentRating     string        `envconfig:"CONTENT_RATING"`

	Storage  string `envconfig:"STORAGE" default:"file"`
	RedisURL string `envconfig:"REDIS_URL" default:"localhost:6379"`
	SaveDir  string `envconfig:"SAVE_DIR" default:"./saves"`
	SaveSlot string `envconfig:"SAVE_SLOT" default:"dramahigh_save"`

	AudioEnabled     bool   `envconfig:"AUDIO_ENABLED" default:"true"`
	AudioCapturePath string `envconfig:"AUDIO_CAPTURE_PATH"`
	AudioSampleRate  int    `envconfig:"AUDIO_SAMPLE_RATE" default:"44100"`
}

// Default models per provider, used when STORY_MODEL or INSIGHT_MODEL is unset.
var defaultModels = map[string][2]string{
	"openai":    {"gpt-4o", "gpt-4o-mini"},
	"anthropic": {"claude-sonnet-4-20250514", "claude-3-5-haiku-latest"},
	"ollama":    {"llama3.1", "llama3.1"},
	"mock":      {"mock", "mock"},
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.GeneratorProvider = strings.ToLower(strings.TrimSpace(cfg.GeneratorProvider))
	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)

	if models, ok := defaultModels[cfg.GeneratorProvider]; ok {
		if cfg.StoryModel == "" {
			cfg.StoryModel = models[0]
		}
		if cfg.InsightModel == "" {
			cfg.InsightModel = models[1]
		}
	}
	if cfg.ImageModel == "" && cfg.GeneratorProvider == "openai" {
		cfg.ImageModel = "dall-e-3"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks provider keys and enumerated settings.
func (c *Config) Validate() error {
	switch c.GeneratorProvider {
	case "openai":
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when using openai provider")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when using anthropic provider")
		}
	case "ollama":
		if c.OllamaHost == "" {
			return fmt.Errorf("OLLAMA_HOST is required when using ollama provider")
		}
	case "mock":
	default:
		return fmt.Errorf("invalid generator provider %q (supported: openai, anthropic, ollama, mock)", c.GeneratorProvider)
	}

	switch c.Storage {
	case "redis", "memory", "file":
	default:
		return fmt.Errorf("invalid storage %q (supported: redis, memory, file)", c.Storage)
	}

	if c.SaveSlot == "" {
		return fmt.Errorf("SAVE_SLOT must not be empty")
	}
	if c.AudioSampleRate < 8000 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE must be at least 8000, got %d", c.AudioSampleRate)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
