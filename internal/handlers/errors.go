package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/drama-high/internal/session"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// statusFor maps session errors to a status code and player-facing message.
// Errors the session does not name fall back to fallback.
func statusFor(err error, fallback int) (int, string) {
	switch {
	case errors.Is(err, session.ErrUnknownChoice):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, session.ErrTurnInFlight),
		errors.Is(err, session.ErrInsightInFlight),
		errors.Is(err, session.ErrNotAwaitingChoice),
		errors.Is(err, session.ErrNothingToSave):
		return http.StatusConflict, err.Error()
	case errors.Is(err, session.ErrNoSave):
		return http.StatusNotFound, session.NoSaveMessage
	case fallback == http.StatusBadGateway:
		return fallback, session.TurnErrorMessage
	default:
		return fallback, http.StatusText(fallback)
	}
}
