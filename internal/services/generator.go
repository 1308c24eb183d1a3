package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/drama-high/pkg/chat"
	"github.com/jwebster45206/drama-high/pkg/prompts"
	"github.com/jwebster45206/drama-high/pkg/state"
)

var (
	// ErrEmptyResponse is returned when a provider answers with no content.
	ErrEmptyResponse = errors.New("empty response from generator")
	// ErrGenerationFailed wraps transport, provider and decoding failures.
	ErrGenerationFailed = errors.New("generation failed")
)

// Operation names used in logs and metrics.
const (
	OpTurn    = "turn"
	OpInsight = "insight"
	OpArt     = "art"
)

// TurnRequest carries everything the generator sees for one turn.
// An empty Choice with an empty History requests the opening turn.
type TurnRequest struct {
	History       []chat.ChatMessage
	Inventory     []string
	Quest         string
	Relationships state.RelationshipMap
	Choice        string
}

// Generator produces story turns, insight text and scene art.
type Generator interface {
	// RequestTurn returns the next TurnUnit for the given history and choice.
	RequestTurn(ctx context.Context, req TurnRequest) (*state.TurnUnit, error)

	// RequestInsight returns a one-sentence read of the scene. An empty string
	// means the generator had nothing to say.
	RequestInsight(ctx context.Context, narrative string) (string, error)

	// RequestArt returns a data URL for the prompt, or "" when the provider
	// produces no image.
	RequestArt(ctx context.Context, prompt string) (string, error)
}

// buildTurnMessages assembles the prompt for a turn. Providers without native
// structured output pass the schema so it is embedded in the system prompt.
func buildTurnMessages(req TurnRequest, schema []byte) ([]chat.ChatMessage, error) {
	return prompts.New().
		WithHistory(req.History).
		WithState(req.Inventory, req.Quest, req.Relationships).
		WithChoice(req.Choice).
		WithSchema(schema).
		Build()
}

// decodeTurn converts a raw completion into a TurnUnit.
func decodeTurn(content string) (*state.TurnUnit, error) {
	content = cleanJSONResponse(content)
	if content == "" {
		return nil, ErrEmptyResponse
	}
	unit, err := state.DecodeTurnUnit([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return unit, nil
}

// cleanJSONResponse trims narrative text some models print around the JSON
// object. Code fences are left for the decoder.
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "{") || strings.HasPrefix(s, "```") {
		return s
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// dataURL wraps base64 image bytes for display.
func dataURL(mime, b64 string) string {
	if b64 == "" {
		return ""
	}
	return "data:" + mime + ";base64," + b64
}
