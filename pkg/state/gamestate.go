package state

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/drama-high/pkg/chat"
)

// Choice is one option offered to the player for the current turn.
// ID is only meaningful for the turn that offered it.
type Choice struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	ActionSummary string `json:"action_summary,omitempty"`
}

// SceneSnapshot is the last fully rendered view. A reload restores the screen
// from it without replaying the turn log.
type SceneSnapshot struct {
	Text    string   `json:"text"`
	Choices []Choice `json:"choices"`
	Image   string   `json:"image,omitempty"` // art reference, empty when no art resolved
}

// IsEmpty reports whether nothing has been rendered yet.
func (s SceneSnapshot) IsEmpty() bool {
	return s.Text == "" && len(s.Choices) == 0 && s.Image == ""
}

// Clone returns a copy that shares no slices with s.
func (s SceneSnapshot) Clone() SceneSnapshot {
	out := s
	if s.Choices != nil {
		out.Choices = slices.Clone(s.Choices)
	}
	return out
}

// FindChoice looks up an offered choice by its id.
func (s SceneSnapshot) FindChoice(id string) (Choice, bool) {
	for _, c := range s.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// StoryEntry is one narrative passage that has been shown to the player.
type StoryEntry struct {
	Text       string `json:"text"`
	Image      string `json:"image,omitempty"`
	ChoiceMade string `json:"choice_made,omitempty"`
}

// GameState is the accumulated state of a drama session.
// It is mutated only by Merge and by the save codec.
type GameState struct {
	ID              uuid.UUID          `json:"id"`
	TurnLog         []chat.ChatMessage `json:"turn_log"`
	Inventory       []string           `json:"inventory"`
	Relationships   RelationshipMap    `json:"relationships"`
	CurrentQuest    string             `json:"current_quest,omitempty"`
	CurrentLocation string             `json:"current_location,omitempty"`
	StoryLog        []StoryEntry       `json:"story_log"`
	Scene           SceneSnapshot      `json:"scene_snapshot"`
}

func NewGameState() *GameState {
	return &GameState{
		ID:            uuid.New(),
		TurnLog:       make([]chat.ChatMessage, 0),
		Inventory:     make([]string, 0),
		Relationships: make(RelationshipMap),
		StoryLog:      make([]StoryEntry, 0),
		Scene:         SceneSnapshot{Choices: make([]Choice, 0)},
	}
}

// Normalize replaces nil collections with empty ones and repairs anything
// that breaks the state's invariants, so states decoded from older or
// hand-edited blobs behave the same as freshly created ones. It returns a
// description of each repair.
func (gs *GameState) Normalize() []string {
	if gs.TurnLog == nil {
		gs.TurnLog = make([]chat.ChatMessage, 0)
	}
	if gs.Inventory == nil {
		gs.Inventory = make([]string, 0)
	}
	if gs.Relationships == nil {
		gs.Relationships = make(RelationshipMap)
	}
	if gs.StoryLog == nil {
		gs.StoryLog = make([]StoryEntry, 0)
	}
	if gs.Scene.Choices == nil {
		gs.Scene.Choices = make([]Choice, 0)
	}

	var fixes []string
	inv := make([]string, 0, len(gs.Inventory))
	for _, item := range gs.Inventory {
		if slices.Contains(inv, item) {
			fixes = append(fixes, fmt.Sprintf("duplicate inventory item %q dropped", item))
			continue
		}
		inv = append(inv, item)
	}
	gs.Inventory = inv

	return append(fixes, gs.Relationships.repair()...)
}

// Clone returns a deep copy of the game state.
func (gs *GameState) Clone() *GameState {
	if gs == nil {
		return nil
	}
	out := *gs
	out.TurnLog = slices.Clone(gs.TurnLog)
	out.Inventory = slices.Clone(gs.Inventory)
	out.StoryLog = slices.Clone(gs.StoryLog)
	out.Relationships = gs.Relationships.Clone()
	out.Scene = gs.Scene.Clone()
	return &out
}

// DeepCopy creates a deep copy of the GameState via JSON, for callers that need
// a byte-level snapshot (e.g. comparing state before and after a failed turn).
func (gs *GameState) DeepCopy() (*GameState, error) {
	data, err := json.Marshal(gs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal game state: %w", err)
	}
	var out GameState
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game state: %w", err)
	}
	return &out, nil
}

// HasItem reports whether the inventory holds the named item.
func (gs *GameState) HasItem(item string) bool {
	return slices.Contains(gs.Inventory, item)
}

// AppendExchange records one completed turn in the turn log.
// An empty choice text records only the narrator entry (the opening turn).
func (gs *GameState) AppendExchange(choiceText, narrative string) {
	if choiceText != "" {
		gs.TurnLog = append(gs.TurnLog, chat.ChatMessage{Role: chat.ChatRolePlayer, Content: choiceText})
	}
	gs.TurnLog = append(gs.TurnLog, chat.ChatMessage{Role: chat.ChatRoleNarrator, Content: narrative})
}

// Chapters is the number of player/narrator exchanges played so far.
func (gs *GameState) Chapters() int {
	return chat.CountExchanges(gs.TurnLog)
}

func (gs *GameState) DescribeInventory() string {
	if len(gs.Inventory) == 0 {
		return "Your backpack is empty."
	}
	return "You have:\n- " + strings.Join(gs.Inventory, "\n- ")
}
