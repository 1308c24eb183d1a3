// Package session sequences a drama session: turn requests, merging, scene
// art, insight queries, sound cues and the save slot.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jwebster45206/drama-high/internal/metrics"
	"github.com/jwebster45206/drama-high/internal/services"
	"github.com/jwebster45206/drama-high/internal/storage"
	"github.com/jwebster45206/drama-high/pkg/audio"
	"github.com/jwebster45206/drama-high/pkg/save"
	"github.com/jwebster45206/drama-high/pkg/state"
)

// AudioPlayer is the part of the audio engine the session drives.
type AudioPlayer interface {
	Init() error
	Resume() error
	PlayCue(name string) bool
	ToggleMute() bool
	Muted() bool
}

// Ensure the audio engine satisfies AudioPlayer
var _ AudioPlayer = (*audio.Engine)(nil)

// Session owns the game state of a single player. All methods are safe for
// concurrent use; generator calls run without the lock held.
type Session struct {
	mu sync.Mutex

	generator services.Generator
	store     storage.BlobStore
	audio     AudioPlayer
	logger    *slog.Logger
	slot      string

	gs             *state.GameState
	phase          Phase
	imageLoading   bool
	insight        string
	insightLoading bool
	errMsg         string

	// Bumped whenever pending art or insight results stop applying.
	artGen     uint64
	insightGen uint64

	background sync.WaitGroup
}

// New creates an idle session. A nil player disables sound; an empty slot
// uses save.SlotKey.
func New(generator services.Generator, store storage.BlobStore, player AudioPlayer, slot string, logger *slog.Logger) *Session {
	if player == nil {
		player = audio.NewEngine(nil, audio.DefaultSampleRate, logger)
	}
	if slot == "" {
		slot = save.SlotKey
	}
	return &Session{
		generator: generator,
		store:     store,
		audio:     player,
		logger:    logger,
		slot:      slot,
		gs:        state.NewGameState(),
		phase:     PhaseIdle,
	}
}

// Start begins a new story with the opening turn. A failed opening leaves the
// current session as it was.
func (s *Session) Start(ctx context.Context) error {
	s.wakeAudio()
	return s.runTurn(ctx, func() (*state.GameState, string, error) {
		return state.NewGameState(), "", nil
	})
}

// Choose advances the story with the choice the player picked.
func (s *Session) Choose(ctx context.Context, choiceID string) error {
	return s.runTurn(ctx, func() (*state.GameState, string, error) {
		if err := s.checkAwaitingChoiceLocked(); err != nil {
			return nil, "", err
		}
		choice, ok := s.gs.Scene.FindChoice(choiceID)
		if !ok {
			return nil, "", fmt.Errorf("%w: %q", ErrUnknownChoice, choiceID)
		}
		return s.gs, choice.Text, nil
	})
}

// runTurn requests a turn on top of the state chosen by pick, which runs with
// the lock held. On success the merged result becomes the session state; on
// failure nothing but the error message changes.
func (s *Session) runTurn(ctx context.Context, pick func() (*state.GameState, string, error)) error {
	s.mu.Lock()
	if s.phase == PhaseAwaitingTurn || s.phase == PhaseRendering {
		s.mu.Unlock()
		return ErrTurnInFlight
	}
	base, choiceText, err := pick()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	prevPhase := s.phase
	s.phase = PhaseAwaitingTurn
	s.errMsg = ""
	s.insight = ""
	s.insightLoading = false
	s.insightGen++
	s.artGen++
	s.imageLoading = false

	req := services.TurnRequest{
		History:       base.Clone().TurnLog,
		Inventory:     append([]string(nil), base.Inventory...),
		Quest:         base.CurrentQuest,
		Relationships: base.Relationships.Clone(),
		Choice:        choiceText,
	}
	log := s.log(base)
	s.mu.Unlock()

	log.Info("Requesting turn", "chapter", base.Chapters()+1, "opening", choiceText == "")

	unit, err := s.generator.RequestTurn(ctx, req)
	if err == nil && (unit == nil || unit.NarrativeText == "") {
		err = services.ErrEmptyResponse
	}

	s.mu.Lock()
	if err != nil {
		s.phase = prevPhase
		s.errMsg = TurnErrorMessage
		s.mu.Unlock()
		metrics.IncTurn(metrics.OutcomeError)
		log.Error("Turn request failed", "error", err)
		return fmt.Errorf("turn request failed: %w", err)
	}

	next := state.NewDeltaWorker(base, unit, log).Apply()
	next.AppendExchange(choiceText, unit.NarrativeText)
	next.Scene = unit.Scene()
	next.StoryLog = append(next.StoryLog, state.StoryEntry{Text: unit.NarrativeText, ChoiceMade: choiceText})
	s.gs = next
	s.phase = PhaseRendering

	gen := s.artGen
	s.imageLoading = unit.ArtPrompt != ""
	s.mu.Unlock()

	metrics.IncTurn(metrics.OutcomeSuccess)
	log.Info("Turn applied", "chapter", next.Chapters(), "choices", len(unit.Choices), "cue", unit.SoundCue)

	s.playCue(unit.SoundCue)
	if unit.ArtPrompt != "" {
		s.background.Add(1)
		go s.fetchArt(context.WithoutCancel(ctx), gen, unit.ArtPrompt, log)
	}

	s.mu.Lock()
	if s.phase == PhaseRendering {
		s.phase = PhaseAwaitingChoice
	}
	s.mu.Unlock()
	return nil
}

// fetchArt resolves scene art and applies it only if no newer turn or load
// has happened since it was requested.
func (s *Session) fetchArt(ctx context.Context, gen uint64, prompt string, log *slog.Logger) {
	defer s.background.Done()

	image, err := s.generator.RequestArt(ctx, prompt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.artGen {
		metrics.IncArt(metrics.OutcomeStale)
		log.Debug("Discarding stale art", "generation", gen, "current", s.artGen)
		return
	}
	s.imageLoading = false

	switch {
	case err != nil:
		metrics.IncArt(metrics.OutcomeError)
		log.Warn("Art request failed", "error", err)
	case image == "":
		metrics.IncArt(metrics.OutcomeEmpty)
	default:
		metrics.IncArt(metrics.OutcomeSuccess)
		s.gs.Scene.Image = image
		if n := len(s.gs.StoryLog); n > 0 {
			s.gs.StoryLog[n-1].Image = image
		}
	}
}

// RequestInsight asks for a read on the current scene. The result is also
// kept in the view until the next turn or load. Generator failures produce
// the fallback text, not an error.
func (s *Session) RequestInsight(ctx context.Context) (string, error) {
	s.mu.Lock()
	if err := s.checkAwaitingChoiceLocked(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	if s.insightLoading {
		s.mu.Unlock()
		return "", ErrInsightInFlight
	}
	s.insightLoading = true
	s.insight = ""
	gen := s.insightGen
	narrative := s.gs.Scene.Text
	log := s.log(s.gs)
	s.mu.Unlock()

	s.playCue(string(audio.CuePhonePing))

	text, err := s.generator.RequestInsight(ctx, narrative)
	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		log.Warn("Insight request failed", "error", err)
		text = InsightFallback
		outcome = metrics.OutcomeError
	case text == "":
		text = InsightEmpty
		outcome = metrics.OutcomeEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.insightGen {
		metrics.IncInsight(metrics.OutcomeStale)
		return text, nil
	}
	metrics.IncInsight(outcome)
	s.insight = text
	s.insightLoading = false
	return text, nil
}

// Save writes the current state and scene to the save slot. A turn in
// flight does not block saving; the last completed scene is saved.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.gs.Scene.IsEmpty() {
		s.mu.Unlock()
		return ErrNothingToSave
	}
	blob, err := save.Encode(s.gs, s.gs.Scene)
	log := s.log(s.gs)
	s.mu.Unlock()
	if err != nil {
		metrics.IncSave("save", metrics.OutcomeError)
		return err
	}

	if err := s.store.Put(ctx, s.slot, blob); err != nil {
		metrics.IncSave("save", metrics.OutcomeError)
		log.Error("Failed to save", "error", err)
		return fmt.Errorf("failed to save: %w", err)
	}

	metrics.IncSave("save", metrics.OutcomeSuccess)
	log.Info("Game saved", "slot", s.slot, "bytes", len(blob))
	s.playCue(string(audio.CuePhonePing))
	return nil
}

// Load replaces the session with the saved one and restores its scene.
// A missing or unreadable save returns ErrNoSave and leaves the session
// untouched.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.phase == PhaseAwaitingTurn || s.phase == PhaseRendering {
		s.mu.Unlock()
		return ErrTurnInFlight
	}
	s.mu.Unlock()

	blob, err := s.store.Get(ctx, s.slot)
	if err != nil {
		metrics.IncSave("load", metrics.OutcomeError)
		return fmt.Errorf("failed to read save: %w", err)
	}
	if blob == nil {
		metrics.IncSave("load", metrics.OutcomeEmpty)
		s.setError(NoSaveMessage)
		return ErrNoSave
	}
	gs, scene, repairs, err := save.DecodeWithRepairs(blob)
	if err != nil {
		metrics.IncSave("load", metrics.OutcomeError)
		s.setError(NoSaveMessage)
		return fmt.Errorf("%w: %w", ErrNoSave, err)
	}

	s.wakeAudio()

	s.mu.Lock()
	if s.phase == PhaseAwaitingTurn || s.phase == PhaseRendering {
		s.mu.Unlock()
		return ErrTurnInFlight
	}
	gs.Scene = scene
	s.gs = gs
	s.phase = PhaseAwaitingChoice
	if scene.IsEmpty() {
		s.phase = PhaseIdle
	}
	s.imageLoading = false
	s.insight = ""
	s.insightLoading = false
	s.errMsg = ""
	s.artGen++
	s.insightGen++
	log := s.log(gs)
	s.mu.Unlock()

	metrics.IncSave("load", metrics.OutcomeSuccess)
	if len(repairs) > 0 {
		log.Warn("Repaired save on load", "slot", s.slot, "repairs", repairs)
	}
	log.Info("Game loaded", "slot", s.slot, "chapters", gs.Chapters())
	s.playCue(string(audio.CueSuccessChime))
	return nil
}

// ToggleMute flips global mute and returns the new state.
func (s *Session) ToggleMute() bool {
	return s.audio.ToggleMute()
}

// View returns a snapshot for rendering.
func (s *Session) View() View {
	muted := s.audio.Muted()

	s.mu.Lock()
	defer s.mu.Unlock()
	gs := s.gs
	scene := gs.Scene.Clone()
	return View{
		SessionID:      gs.ID.String(),
		Phase:          s.phase.String(),
		Text:           scene.Text,
		Choices:        scene.Choices,
		Image:          scene.Image,
		TurnInFlight:   s.phase == PhaseAwaitingTurn,
		ImageLoading:   s.imageLoading,
		Insight:        s.insight,
		InsightLoading: s.insightLoading,
		Muted:          muted,
		Inventory:      append([]string{}, gs.Inventory...),
		Relationships:  gs.Relationships.Sorted(),
		Quest:          gs.CurrentQuest,
		Location:       gs.CurrentLocation,
		Chapters:       gs.Chapters(),
		Error:          s.errMsg,
	}
}

// Phase returns the current main state.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// State returns a copy of the game state.
func (s *Session) State() *state.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gs.Clone()
}

// Wait blocks until background art requests have finished.
func (s *Session) Wait() {
	s.background.Wait()
}

func (s *Session) checkAwaitingChoiceLocked() error {
	switch s.phase {
	case PhaseAwaitingChoice:
		return nil
	case PhaseAwaitingTurn, PhaseRendering:
		return ErrTurnInFlight
	default:
		return ErrNotAwaitingChoice
	}
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
}

// wakeAudio acquires the audio backend on the first player action.
func (s *Session) wakeAudio() {
	if err := s.audio.Init(); err != nil {
		s.logger.Warn("Failed to initialize audio", "error", err)
		return
	}
	if err := s.audio.Resume(); err != nil && !errors.Is(err, audio.ErrNotInitialized) {
		s.logger.Warn("Failed to resume audio", "error", err)
	}
}

func (s *Session) playCue(name string) {
	if s.audio.PlayCue(name) {
		metrics.IncCue(string(audio.ParseCue(name)))
	}
}

func (s *Session) log(gs *state.GameState) *slog.Logger {
	return s.logger.With("session_id", gs.ID.String())
}
