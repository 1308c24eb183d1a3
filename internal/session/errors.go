package session

import "errors"

var (
	ErrTurnInFlight      = errors.New("a turn is already in flight")
	ErrInsightInFlight   = errors.New("an insight request is already in flight")
	ErrNotAwaitingChoice = errors.New("session is not waiting for a choice")
	ErrUnknownChoice     = errors.New("unknown choice")
	ErrNoSave            = errors.New("no valid save found")
	ErrNothingToSave     = errors.New("nothing to save yet")
)

// Messages shown to the player.
const (
	TurnErrorMessage = "The connection is bad... (API Error). Check your signal (API Key)."
	InsightFallback  = "Too distracted to notice."
	InsightEmpty     = "You can't quite read the room."
	NoSaveMessage    = "No valid save found."
)
