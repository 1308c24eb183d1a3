package save

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/jwebster45206/drama-high/pkg/chat"
	"github.com/jwebster45206/drama-high/pkg/state"
)

func sampleState() *state.GameState {
	gs := state.NewGameState()
	gs.TurnLog = []chat.ChatMessage{
		{Role: chat.ChatRoleNarrator, Content: "Monday morning."},
		{Role: chat.ChatRolePlayer, Content: "Check your phone"},
		{Role: chat.ChatRoleNarrator, Content: "Forty unread messages."},
	}
	gs.Inventory = []string{"Smartphone", "Notes"}
	gs.Relationships["jess"] = state.Character{ID: "jess", Name: "Jess", Kind: state.KindCrush, Score: 62}
	gs.CurrentQuest = "Survive the first day"
	gs.CurrentLocation = "Hallway"
	gs.StoryLog = []state.StoryEntry{{Text: "Monday morning."}, {Text: "Forty unread messages.", ChoiceMade: "Check your phone"}}
	return gs
}

func TestRoundTrip(t *testing.T) {
	gs := sampleState()
	scene := state.SceneSnapshot{
		Text:    "Forty unread messages.",
		Choices: []state.Choice{{ID: "a", Text: "Reply to Jess"}, {ID: "b", Text: "Ignore them", ActionSummary: "ghosted"}},
		Image:   "data:image/png;base64,AAAA",
	}

	data, err := Encode(gs, scene)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	loaded, loadedScene, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if !reflect.DeepEqual(loadedScene, scene) {
		t.Errorf("Scene mismatch:\nexpected %+v\ngot      %+v", scene, loadedScene)
	}

	expected := gs.Clone()
	expected.Scene = scene
	if !reflect.DeepEqual(loaded, expected) {
		t.Errorf("State mismatch:\nexpected %+v\ngot      %+v", expected, loaded)
	}
}

func TestEncode_DoesNotModifyInput(t *testing.T) {
	gs := sampleState()
	gs.Scene = state.SceneSnapshot{Text: "old", Choices: []state.Choice{}}
	if _, err := Encode(gs, state.SceneSnapshot{Text: "new"}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if gs.Scene.Text != "old" {
		t.Errorf("Expected input scene to be kept, got %q", gs.Scene.Text)
	}
}

func TestDecode_LegacyBlobs(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		check func(t *testing.T, gs *state.GameState, scene state.SceneSnapshot)
	}{
		{
			name: "missing relationships",
			data: `{"turn_log": [], "inventory": ["Notes"], "current_quest": "Q"}`,
			check: func(t *testing.T, gs *state.GameState, scene state.SceneSnapshot) {
				if gs.Relationships == nil || len(gs.Relationships) != 0 {
					t.Errorf("Expected empty relationships, got %v", gs.Relationships)
				}
				if gs.CurrentQuest != "Q" {
					t.Errorf("Expected quest Q, got %q", gs.CurrentQuest)
				}
			},
		},
		{
			name: "relationships as array",
			data: `{"relationships": [{"id": "m", "name": "Maya", "kind": "friend", "score": 55}]}`,
			check: func(t *testing.T, gs *state.GameState, scene state.SceneSnapshot) {
				if gs.Relationships["m"].Name != "Maya" {
					t.Errorf("Expected Maya, got %+v", gs.Relationships)
				}
			},
		},
		{
			name: "original field names",
			data: `{"relationships": [{"id": "a", "name": "Ava", "relationshipType": "crush", "value": 80}]}`,
			check: func(t *testing.T, gs *state.GameState, scene state.SceneSnapshot) {
				want := state.Character{ID: "a", Name: "Ava", Kind: state.KindCrush, Score: 80}
				if gs.Relationships["a"] != want {
					t.Errorf("Expected %+v, got %+v", want, gs.Relationships["a"])
				}
			},
		},
		{
			name: "score out of range and unknown kind",
			data: `{"relationships": {"b": {"name": "Ben", "kind": "bestie", "score": 250}, "c": {"name": "Cy", "score": -5}}}`,
			check: func(t *testing.T, gs *state.GameState, scene state.SceneSnapshot) {
				if b := gs.Relationships["b"]; b.Kind != state.KindNeutral || b.Score != state.MaxScore {
					t.Errorf("Expected neutral at %d, got %+v", state.MaxScore, b)
				}
				if c := gs.Relationships["c"]; c.Kind != state.KindNeutral || c.Score != state.MinScore {
					t.Errorf("Expected neutral at %d, got %+v", state.MinScore, c)
				}
			},
		},
		{
			name: "missing score",
			data: `{"relationships": {"d": {"name": "Dee", "kind": "Friend"}}}`,
			check: func(t *testing.T, gs *state.GameState, scene state.SceneSnapshot) {
				want := state.Character{ID: "d", Name: "Dee", Kind: state.KindFriend, Score: state.InitialScore}
				if gs.Relationships["d"] != want {
					t.Errorf("Expected %+v, got %+v", want, gs.Relationships["d"])
				}
			},
		},
		{
			name: "id differs from key",
			data: `{"relationships": {"c": {"id": "zed", "name": "Zed", "kind": "rival", "score": 30}}}`,
			check: func(t *testing.T, gs *state.GameState, scene state.SceneSnapshot) {
				if len(gs.Relationships) != 1 || gs.Relationships["c"].ID != "c" {
					t.Errorf("Expected id forced to key c, got %+v", gs.Relationships)
				}
			},
		},
		{
			name: "duplicate inventory",
			data: `{"inventory": ["Phone", "Notes", "Phone"]}`,
			check: func(t *testing.T, gs *state.GameState, scene state.SceneSnapshot) {
				if !slices.Equal(gs.Inventory, []string{"Phone", "Notes"}) {
					t.Errorf("Expected [Phone Notes], got %v", gs.Inventory)
				}
			},
		},
		{
			name: "missing scene and id",
			data: `{"inventory": null}`,
			check: func(t *testing.T, gs *state.GameState, scene state.SceneSnapshot) {
				if !scene.IsEmpty() {
					t.Errorf("Expected empty scene, got %+v", scene)
				}
				if scene.Choices == nil || gs.Inventory == nil || gs.TurnLog == nil || gs.StoryLog == nil {
					t.Error("Expected collections to be defaulted")
				}
				if gs.ID == uuid.Nil {
					t.Error("Expected a fresh id")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs, scene, err := Decode([]byte(tt.data))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			tt.check(t, gs, scene)
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "garbage", data: "not a save"},
		{name: "array", data: "[1,2,3]"},
		{name: "null", data: "null"},
		{name: "truncated", data: `{"inventory": ["Notes"`},
		{name: "wrong field type", data: `{"inventory": "Notes"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode([]byte(tt.data))
			if !errors.Is(err, ErrInvalidSave) {
				t.Errorf("Expected ErrInvalidSave, got %v", err)
			}
		})
	}
}

func TestEncode_Nil(t *testing.T) {
	if _, err := Encode(nil, state.SceneSnapshot{}); err == nil {
		t.Error("Expected error for nil state")
	}
}

func TestDecodeWithRepairs(t *testing.T) {
	data := `{"inventory": ["Phone", "Phone"], "relationships": {"b": {"id": "b", "name": "Ben", "kind": "friend", "score": 250}}}`
	_, _, repairs, err := DecodeWithRepairs([]byte(data))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(repairs) != 2 {
		t.Errorf("Expected 2 repairs, got %v", repairs)
	}

	_, _, repairs, err = DecodeWithRepairs([]byte(`{"inventory": ["Phone"]}`))
	if err != nil || len(repairs) != 0 {
		t.Errorf("Expected a clean decode, got %v, %v", repairs, err)
	}
}
