package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/drama-high/internal/session"
)

// SessionService is the part of session.Session the HTTP surface drives.
type SessionService interface {
	Start(ctx context.Context) error
	Choose(ctx context.Context, choiceID string) error
	RequestInsight(ctx context.Context) (string, error)
	Save(ctx context.Context) error
	Load(ctx context.Context) error
	ToggleMute() bool
	View() session.View
}

var _ SessionService = (*session.Session)(nil)

// ChoiceRequest is the body of POST /v1/session/choice.
type ChoiceRequest struct {
	ChoiceID string `json:"choice_id"`
}

type InsightResponse struct {
	Insight string `json:"insight"`
}

type MuteResponse struct {
	Muted bool `json:"muted"`
}

// SessionHandler serves the single drama session.
type SessionHandler struct {
	session SessionService
	logger  *slog.Logger
}

func NewSessionHandler(s SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		session: s,
		logger:  logger,
	}
}

// ServeHTTP handles HTTP requests for the session
// Routes:
// GET  /v1/session         - Current view
// POST /v1/session/start   - Start a new story
// POST /v1/session/choice  - Pick a choice by id
// POST /v1/session/insight - Ask for a vibe check
// POST /v1/session/save    - Save to the slot
// POST /v1/session/load    - Load from the slot
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/session"), "/")

	if action == "" {
		if r.Method != http.MethodGet {
			h.methodNotAllowed(w, r, http.MethodGet)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, h.session.View())
		return
	}

	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, r, http.MethodPost)
		return
	}

	switch action {
	case "start":
		h.respond(w, h.session.Start(r.Context()), http.StatusBadGateway)
	case "choice":
		h.handleChoice(w, r)
	case "insight":
		h.handleInsight(w, r)
	case "save":
		h.respond(w, h.session.Save(r.Context()), http.StatusInternalServerError)
	case "load":
		h.respond(w, h.session.Load(r.Context()), http.StatusInternalServerError)
	default:
		h.logger.Warn("Unknown session action", "action", action)
		writeError(w, h.logger, http.StatusNotFound, "Unknown session action")
	}
}

func (h *SessionHandler) handleChoice(w http.ResponseWriter, r *http.Request) {
	var request ChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'choice_id' field.")
		return
	}
	if request.ChoiceID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "choice_id cannot be empty.")
		return
	}
	h.respond(w, h.session.Choose(r.Context(), request.ChoiceID), http.StatusBadGateway)
}

func (h *SessionHandler) handleInsight(w http.ResponseWriter, r *http.Request) {
	text, err := h.session.RequestInsight(r.Context())
	if err != nil {
		status, msg := statusFor(err, http.StatusInternalServerError)
		writeError(w, h.logger, status, msg)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, InsightResponse{Insight: text})
}

// respond writes the view on success, or the mapped error.
func (h *SessionHandler) respond(w http.ResponseWriter, err error, fallback int) {
	if err != nil {
		status, msg := statusFor(err, fallback)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Session operation failed", "error", err)
		}
		writeError(w, h.logger, status, msg)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, h.session.View())
}

func (h *SessionHandler) methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	h.logger.Warn("Method not allowed for session endpoint", "method", r.Method, "path", r.URL.Path)
	w.Header().Set("Allow", allowed)
	writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only "+allowed+" is supported.")
}

// MuteHandler toggles global audio mute.
type MuteHandler struct {
	session SessionService
	logger  *slog.Logger
}

func NewMuteHandler(s SessionService, logger *slog.Logger) *MuteHandler {
	return &MuteHandler{session: s, logger: logger}
}

func (h *MuteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, MuteResponse{Muted: h.session.ToggleMute()})
}
