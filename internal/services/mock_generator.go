package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/drama-high/pkg/state"
)

// MockGenerator is a mock implementation of Generator for testing
type MockGenerator struct {
	RequestTurnFunc    func(ctx context.Context, req TurnRequest) (*state.TurnUnit, error)
	RequestInsightFunc func(ctx context.Context, narrative string) (string, error)
	RequestArtFunc     func(ctx context.Context, prompt string) (string, error)

	// Track calls for testing
	TurnCalls    []TurnRequest
	InsightCalls []string
	ArtCalls     []string

	mu sync.Mutex // protects all fields above
}

// Ensure MockGenerator implements Generator interface
var _ Generator = (*MockGenerator)(nil)

// NewMockGenerator creates a new mock generator
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		TurnCalls:    make([]TurnRequest, 0),
		InsightCalls: make([]string, 0),
		ArtCalls:     make([]string, 0),
	}
}

// MockTurn returns the canned turn the mock produces by default.
func MockTurn() *state.TurnUnit {
	return &state.TurnUnit{
		NarrativeText: "Your alarm blares. The history test is in two hours.",
		Choices: []state.Choice{
			{ID: "study", Text: "Cram on the bus"},
			{ID: "text", Text: "Text Jess back first"},
		},
		Quest:     "Pass the History Test",
		Location:  "Bedroom",
		ArtPrompt: "A messy bedroom at sunrise, phone glowing on the pillow",
		SoundCue:  "phone_ping",
	}
}

// The func fields run without the lock held so tests can block inside them.

// RequestTurn mocks turn generation
func (m *MockGenerator) RequestTurn(ctx context.Context, req TurnRequest) (*state.TurnUnit, error) {
	m.mu.Lock()
	m.TurnCalls = append(m.TurnCalls, req)
	fn := m.RequestTurnFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	// Default behavior - canned turn
	return MockTurn(), nil
}

// RequestInsight mocks the vibe check
func (m *MockGenerator) RequestInsight(ctx context.Context, narrative string) (string, error) {
	m.mu.Lock()
	m.InsightCalls = append(m.InsightCalls, narrative)
	fn := m.RequestInsightFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, narrative)
	}
	return "Someone is definitely hiding something.", nil
}

// RequestArt mocks scene art generation
func (m *MockGenerator) RequestArt(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.ArtCalls = append(m.ArtCalls, prompt)
	fn := m.RequestArtFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	return "data:image/png;base64,bW9jaw==", nil
}

// SetTurn sets up the mock to return unit on every RequestTurn
func (m *MockGenerator) SetTurn(unit *state.TurnUnit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestTurnFunc = func(ctx context.Context, req TurnRequest) (*state.TurnUnit, error) {
		return unit, nil
	}
}

// SetTurnError sets up the mock to return an error on RequestTurn
func (m *MockGenerator) SetTurnError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestTurnFunc = func(ctx context.Context, req TurnRequest) (*state.TurnUnit, error) {
		return nil, err
	}
}

// SetInsightError sets up the mock to return an error on RequestInsight
func (m *MockGenerator) SetInsightError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestInsightFunc = func(ctx context.Context, narrative string) (string, error) {
		return "", err
	}
}

// SetArtError sets up the mock to return an error on RequestArt
func (m *MockGenerator) SetArtError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestArtFunc = func(ctx context.Context, prompt string) (string, error) {
		return "", err
	}
}

// Reset clears all call tracking
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TurnCalls = make([]TurnRequest, 0)
	m.InsightCalls = make([]string, 0)
	m.ArtCalls = make([]string, 0)
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockGenerator) GetCalls() ([]TurnRequest, []string, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	turnCalls := make([]TurnRequest, len(m.TurnCalls))
	copy(turnCalls, m.TurnCalls)

	insightCalls := make([]string, len(m.InsightCalls))
	copy(insightCalls, m.InsightCalls)

	artCalls := make([]string, len(m.ArtCalls))
	copy(artCalls, m.ArtCalls)

	return turnCalls, insightCalls, artCalls
}
