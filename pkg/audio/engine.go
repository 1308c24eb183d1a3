// Package audio synthesizes the short cues and looping ambience that
// accompany a drama session. Every sound is generated from oscillators and
// filtered noise and routed through one master gain.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	DefaultSampleRate = 44100

	MasterGain       = 0.3
	MuteTimeConstant = 0.1
	AmbienceFadeIn   = 2.0
	AmbienceFadeOut  = 1.5
)

var ErrNotInitialized = errors.New("audio engine not initialized")

// Engine owns the mixer, the output backend and the single ambience voice.
// It starts uninitialized; Init acquires the backend on the first user
// gesture and the engine is never recreated afterwards.
type Engine struct {
	mu         sync.Mutex
	backend    Backend
	sampleRate int
	logger     *slog.Logger
	rng        *rand.Rand

	mixer       *Mixer
	muted       bool
	ambience    *Voice
	ambienceCue Cue
}

// NewEngine creates an uninitialized engine. A nil backend discards output.
func NewEngine(backend Backend, sampleRate int, logger *slog.Logger) *Engine {
	if backend == nil {
		backend = NewNullBackend()
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if logger == nil {
		logger = slog.Default()
	}
	seed := uint64(time.Now().UnixNano())
	return &Engine{
		backend:    backend,
		sampleRate: sampleRate,
		logger:     logger,
		rng:        rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// Init acquires the backend. Calling it again is a no-op.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mixer != nil {
		return nil
	}

	gain := MasterGain
	if e.muted {
		gain = 0
	}
	mixer := NewMixer(e.sampleRate, gain)
	if err := e.backend.Open(mixer, e.sampleRate); err != nil {
		return fmt.Errorf("failed to open audio backend: %w", err)
	}
	e.mixer = mixer
	e.logger.Info("Audio engine initialized", "sample_rate", e.sampleRate)
	return nil
}

// Resume restarts a suspended backend. It is a no-op when already running.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mixer == nil {
		return ErrNotInitialized
	}
	return e.backend.Resume()
}

// Suspend pauses output and the mixer clock.
func (e *Engine) Suspend() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mixer == nil {
		return ErrNotInitialized
	}
	return e.backend.Suspend()
}

// PlayCue triggers a cue without blocking. Requests made before Init or while
// muted are dropped and report false. Unknown names behave like the neutral
// cue.
func (e *Engine) PlayCue(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mixer == nil || e.muted {
		return false
	}
	if err := e.backend.Resume(); err != nil {
		e.logger.Warn("Failed to resume audio backend", "error", err)
	}

	cue := ParseCue(name)
	e.mixer.Do(func(now float64) {
		s := synth{sampleRate: e.sampleRate, now: now, rng: e.rng}
		switch {
		case cue.IsAmbience():
			e.startAmbienceLocked(s, cue)
		case cue == CueNeutral:
			e.stopAmbienceLocked(now)
		default:
			e.mixer.Add(oneShots[cue](s)...)
		}
	})
	e.logger.Debug("Cue played", "cue", cue)
	return true
}

// startAmbienceLocked keeps at most one ambience voice. The same variant is
// left alone; a different one is faded out while the new one fades in.
func (e *Engine) startAmbienceLocked(s synth, cue Cue) {
	if e.ambience != nil && e.ambienceCue == cue {
		return
	}
	e.stopAmbienceLocked(s.now)
	e.ambience = ambienceVoice(s, cue, AmbienceFadeIn)
	e.ambienceCue = cue
	e.mixer.Add(e.ambience)
}

func (e *Engine) stopAmbienceLocked(now float64) {
	if e.ambience == nil {
		return
	}
	e.ambience.Gain.CancelAndHoldAtTime(now)
	e.ambience.Gain.LinearRampToValueAtTime(0, now+AmbienceFadeOut)
	e.ambience.Stop = now + AmbienceFadeOut
	e.ambience = nil
	e.ambienceCue = ""
}

// ToggleMute flips the mute state and returns it. The master gain moves to
// its new level along a short exponential curve.
func (e *Engine) ToggleMute() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = !e.muted
	if e.mixer != nil {
		target := MasterGain
		if e.muted {
			target = 0
		}
		e.mixer.Do(func(now float64) {
			e.mixer.Master().SetTargetAtTime(target, now, MuteTimeConstant)
		})
	}
	return e.muted
}

func (e *Engine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// Ambience returns the active ambience variant, or "" when none is playing.
func (e *Engine) Ambience() Cue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ambienceCue
}

// Initialized reports whether Init has succeeded.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mixer != nil
}

// Close releases the backend.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mixer == nil {
		return nil
	}
	return e.backend.Close()
}
