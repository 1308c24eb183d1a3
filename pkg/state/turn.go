package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
)

// ErrMalformedTurn is returned when a generator payload cannot be used as a turn.
var ErrMalformedTurn = errors.New("malformed turn payload")

// TurnPayload is the wire shape the generator is asked to produce.
// It is decoded here and never passed beyond DecodeTurnUnit.
type TurnPayload struct {
	StoryText           string                `json:"story_text" jsonschema:"required"`
	Choices             []ChoicePayload       `json:"choices" jsonschema:"required"`
	InventoryUpdates    *InventoryPayload     `json:"inventory_updates,omitempty"`
	RelationshipUpdates []RelationshipPayload `json:"relationship_updates,omitempty"`
	CurrentQuest        string                `json:"current_quest,omitempty"`
	VisualPrompt        string                `json:"visual_prompt" jsonschema:"required"`
	LocationName        string                `json:"location_name" jsonschema:"required"`
	SoundCue            string                `json:"sound_cue" jsonschema:"required,enum=neutral,enum=school_ambience,enum=party_ambience,enum=phone_ping,enum=heartbeat,enum=drama_sting,enum=school_bell,enum=gossip_whisper,enum=success_chime"`
}

type ChoicePayload struct {
	ID            string `json:"id" jsonschema:"required"`
	Text          string `json:"text" jsonschema:"required"`
	ActionSummary string `json:"action_summary,omitempty"`
}

type InventoryPayload struct {
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
}

type RelationshipPayload struct {
	ID      string   `json:"id" jsonschema:"required"`
	Name    string   `json:"name,omitempty"`
	Delta   *float64 `json:"delta,omitempty"`
	SetType string   `json:"setType,omitempty" jsonschema:"enum=friend,enum=crush,enum=rival,enum=enemy,enum=neutral"`
}

var turnSchema = sync.OnceValues(func() ([]byte, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
		ExpandedStruct:             true,
	}
	schema := reflector.Reflect(&TurnPayload{})
	if schema == nil {
		return nil, fmt.Errorf("failed to reflect turn schema")
	}
	schema.Version = ""
	return json.Marshal(schema)
})

// TurnSchema returns the JSON schema of TurnPayload, for providers that
// support structured output.
func TurnSchema() ([]byte, error) {
	return turnSchema()
}

// DecodeTurnUnit validates a raw generator payload and converts it to a TurnUnit.
// Missing optional fields are defaulted; entries that cannot be used are dropped.
func DecodeTurnUnit(data []byte) (*TurnUnit, error) {
	body := stripCodeFence(strings.TrimSpace(string(data)))
	if body == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedTurn)
	}

	var p TurnPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTurn, err)
	}
	return p.ToTurnUnit()
}

// ToTurnUnit converts an already-parsed payload.
func (p *TurnPayload) ToTurnUnit() (*TurnUnit, error) {
	text := strings.TrimSpace(p.StoryText)
	if text == "" {
		return nil, fmt.Errorf("%w: story_text is empty", ErrMalformedTurn)
	}

	unit := &TurnUnit{
		NarrativeText: text,
		Choices:       make([]Choice, 0, len(p.Choices)),
		Quest:         strings.TrimSpace(p.CurrentQuest),
		Location:      strings.TrimSpace(p.LocationName),
		ArtPrompt:     strings.TrimSpace(p.VisualPrompt),
		SoundCue:      strings.ToLower(strings.TrimSpace(p.SoundCue)),
	}
	if unit.SoundCue == "" {
		unit.SoundCue = DefaultSoundCue
	}

	seen := make(map[string]bool, len(p.Choices))
	for i, c := range p.Choices {
		choiceText := strings.TrimSpace(c.Text)
		if choiceText == "" {
			continue
		}
		id := strings.TrimSpace(c.ID)
		if id == "" || seen[id] {
			id = "choice_" + strconv.Itoa(i+1)
		}
		seen[id] = true
		unit.Choices = append(unit.Choices, Choice{
			ID:            id,
			Text:          choiceText,
			ActionSummary: strings.TrimSpace(c.ActionSummary),
		})
	}

	if p.InventoryUpdates != nil {
		unit.Inventory.Add = cleanNames(p.InventoryUpdates.Add)
		unit.Inventory.Remove = cleanNames(p.InventoryUpdates.Remove)
	}

	for _, r := range p.RelationshipUpdates {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			continue
		}
		d := RelationshipDelta{
			ID:          id,
			DisplayName: strings.TrimSpace(r.Name),
		}
		if r.Delta != nil && !math.IsNaN(*r.Delta) && !math.IsInf(*r.Delta, 0) {
			change := int(math.Round(max(-1000, min(1000, *r.Delta))))
			d.ScoreChange = &change
		}
		if kind, ok := ParseRelationshipKind(r.SetType); ok {
			d.NewKind = kind
		}
		unit.Relationships = append(unit.Relationships, d)
	}

	return unit, nil
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// stripCodeFence removes a surrounding markdown code fence, which some models
// add even when asked for bare JSON.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
