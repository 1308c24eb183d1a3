package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/drama-high/internal/config"
	"github.com/jwebster45206/drama-high/internal/handlers"
	"github.com/jwebster45206/drama-high/internal/logger"
	"github.com/jwebster45206/drama-high/internal/metrics"
	"github.com/jwebster45206/drama-high/internal/middleware"
	"github.com/jwebster45206/drama-high/internal/services"
	"github.com/jwebster45206/drama-high/internal/session"
	"github.com/jwebster45206/drama-high/internal/storage"
	"github.com/jwebster45206/drama-high/pkg/audio"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Drama High API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"generator_provider", cfg.GeneratorProvider,
		"story_model", cfg.StoryModel,
		"storage", cfg.Storage)

	generator, err := services.NewGenerator(cfg, log)
	if err != nil {
		log.Error("Failed to create generator", "error", err)
		os.Exit(1)
	}

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	store, err := storage.Open(storageCtx, cfg, log)
	if err != nil {
		log.Error("Failed to open save storage", "error", err)
		os.Exit(1)
	}
	log.Info("Save storage ready", "storage", cfg.Storage)

	// Initialize the model on startup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := services.InitModel(ctx, generator, cfg.StoryModel); err != nil {
		log.Error("Failed to initialize story model", "error", err, "model", cfg.StoryModel)
		os.Exit(1)
	}

	engine := newAudioEngine(cfg, log)
	sess := session.New(generator, store, engine, cfg.SaveSlot, log)

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(store, cfg.GeneratorProvider, log))
	mux.Handle("/metrics", metrics.Handler())

	sessionHandler := handlers.NewSessionHandler(sess, log)
	mux.Handle("/v1/session", sessionHandler)
	mux.Handle("/v1/session/", sessionHandler)
	mux.Handle("/v1/audio/mute", handlers.NewMuteHandler(sess, log))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log, mux),
		ReadTimeout: 15 * time.Second,
		// Turn requests can take as long as the generator does
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	sess.Wait()
	if err := engine.Close(); err != nil {
		log.Error("Error closing audio engine", "error", err)
	}
	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}

// newAudioEngine picks the backend: raw PCM on stdout for "-", WAV capture
// for any other path, otherwise the silent clocked backend. Disabled audio
// still tracks mute.
func newAudioEngine(cfg *config.Config, log *slog.Logger) *audio.Engine {
	var backend audio.Backend
	switch {
	case !cfg.AudioEnabled:
		log.Info("Audio disabled")
	case cfg.AudioCapturePath == "-":
		backend = audio.NewStreamBackend(os.Stdout)
		log.Info("Streaming PCM audio to stdout", "sample_rate", cfg.AudioSampleRate)
	case cfg.AudioCapturePath != "":
		backend = audio.NewWAVBackend(cfg.AudioCapturePath)
		log.Info("Capturing audio", "path", cfg.AudioCapturePath)
	}
	return audio.NewEngine(backend, cfg.AudioSampleRate, log)
}
