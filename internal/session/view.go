package session

import (
	"github.com/jwebster45206/drama-high/pkg/state"
)

// Phase is the main turn state of a session.
type Phase int

const (
	PhaseIdle           Phase = iota // no content yet
	PhaseAwaitingTurn                // generator call in flight
	PhaseRendering                   // unit merged, cue and art being dispatched
	PhaseAwaitingChoice              // waiting for the player
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingTurn:
		return "awaiting_turn"
	case PhaseRendering:
		return "rendering"
	case PhaseAwaitingChoice:
		return "awaiting_choice"
	default:
		return "unknown"
	}
}

// View is everything the presentation layer renders. It is a copy; changing
// it does not affect the session.
type View struct {
	SessionID      string            `json:"session_id"`
	Phase          string            `json:"phase"`
	Text           string            `json:"text"`
	Choices        []state.Choice    `json:"choices"`
	Image          string            `json:"image,omitempty"`
	TurnInFlight   bool              `json:"turn_in_flight"`
	ImageLoading   bool              `json:"image_loading"`
	Insight        string            `json:"insight,omitempty"`
	InsightLoading bool              `json:"insight_loading"`
	Muted          bool              `json:"muted"`
	Inventory      []string          `json:"inventory"`
	Relationships  []state.Character `json:"relationships"`
	Quest          string            `json:"current_quest,omitempty"`
	Location       string            `json:"current_location,omitempty"`
	Chapters       int               `json:"chapters"`
	Error          string            `json:"error,omitempty"`
}

// HasScene reports whether there is a scene to show.
func (v View) HasScene() bool {
	return v.Text != ""
}
