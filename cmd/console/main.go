package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/drama-high/internal/config"
	"github.com/jwebster45206/drama-high/internal/logger"
	"github.com/jwebster45206/drama-high/internal/services"
	"github.com/jwebster45206/drama-high/internal/session"
	"github.com/jwebster45206/drama-high/internal/storage"
	"github.com/jwebster45206/drama-high/pkg/audio"
)

const defaultLogFile = "dramahigh-console.log"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	// stdout belongs to the alt screen
	if cfg.LogFile == "" {
		cfg.LogFile = defaultLogFile
	}
	log := logger.Setup(cfg)

	generator, err := services.NewGenerator(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create generator: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open save storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := services.InitModel(ctx, generator, cfg.StoryModel); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize story model %s: %v\n", cfg.StoryModel, err)
		os.Exit(1)
	}

	engine := newAudioEngine(cfg, log)
	defer engine.Close()

	sess := session.New(generator, store, engine, cfg.SaveSlot, log)
	defer sess.Wait()

	p := tea.NewProgram(NewConsoleUI(sess, log),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// newAudioEngine captures to a WAV file when AUDIO_CAPTURE_PATH is set;
// otherwise cues are rendered silently.
func newAudioEngine(cfg *config.Config, log *slog.Logger) *audio.Engine {
	var backend audio.Backend
	if cfg.AudioEnabled && cfg.AudioCapturePath != "" {
		backend = audio.NewWAVBackend(cfg.AudioCapturePath)
		log.Info("Capturing audio", "path", cfg.AudioCapturePath)
	}
	return audio.NewEngine(backend, cfg.AudioSampleRate, log)
}
