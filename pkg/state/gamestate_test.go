package state

import (
	"encoding/json"
	"testing"

	"github.com/jwebster45206/drama-high/pkg/chat"
)

func TestRelationshipMap_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		expected    RelationshipMap
		expectError bool
	}{
		{
			name:     "map form",
			data:     `{"jess": {"name": "Jess", "kind": "crush", "score": 70}}`,
			expected: RelationshipMap{"jess": {ID: "jess", Name: "Jess", Kind: KindCrush, Score: 70}},
		},
		{
			name: "array form",
			data: `[{"id": "jess", "name": "Jess", "kind": "crush", "score": 70}, {"name": "no id"}]`,
			expected: RelationshipMap{
				"jess": {ID: "jess", Name: "Jess", Kind: KindCrush, Score: 70},
			},
		},
		{
			name:     "original field names",
			data:     `[{"id": "ava", "name": "Ava", "relationshipType": "rival", "value": 15}]`,
			expected: RelationshipMap{"ava": {ID: "ava", Name: "Ava", Kind: KindRival, Score: 15}},
		},
		{
			name:     "null",
			data:     `null`,
			expected: RelationshipMap{},
		},
		{
			name:        "scalar",
			data:        `"friends"`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m RelationshipMap
			err := json.Unmarshal([]byte(tt.data), &m)
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(m) != len(tt.expected) {
				t.Fatalf("Expected %d entries, got %d", len(tt.expected), len(m))
			}
			for id, c := range tt.expected {
				if m[id] != c {
					t.Errorf("Expected %+v, got %+v", c, m[id])
				}
			}
		})
	}
}

func TestRelationshipMap_Sorted(t *testing.T) {
	m := RelationshipMap{
		"z": {ID: "z", Name: "zoe"},
		"a": {ID: "a", Name: "Ava"},
		"m": {ID: "m", Name: "Mr. K"},
	}
	sorted := m.Sorted()
	names := []string{sorted[0].Name, sorted[1].Name, sorted[2].Name}
	if names[0] != "Ava" || names[1] != "Mr. K" || names[2] != "zoe" {
		t.Errorf("Unexpected order %v", names)
	}
}

func TestParseRelationshipKind(t *testing.T) {
	if k, ok := ParseRelationshipKind(" Rival "); !ok || k != KindRival {
		t.Errorf("Expected rival, got %q %v", k, ok)
	}
	if _, ok := ParseRelationshipKind("bestie"); ok {
		t.Error("Expected unknown kind to be rejected")
	}
}

func TestGameState_AppendExchange(t *testing.T) {
	gs := NewGameState()
	gs.AppendExchange("", "The alarm rings.")
	gs.AppendExchange("Hit snooze", "You oversleep.")

	expected := []chat.ChatMessage{
		{Role: chat.ChatRoleNarrator, Content: "The alarm rings."},
		{Role: chat.ChatRolePlayer, Content: "Hit snooze"},
		{Role: chat.ChatRoleNarrator, Content: "You oversleep."},
	}
	if len(gs.TurnLog) != len(expected) {
		t.Fatalf("Expected %d entries, got %d", len(expected), len(gs.TurnLog))
	}
	for i := range expected {
		if gs.TurnLog[i] != expected[i] {
			t.Errorf("Entry %d: expected %+v, got %+v", i, expected[i], gs.TurnLog[i])
		}
	}
	if gs.Chapters() != 1 {
		t.Errorf("Expected 1 chapter, got %d", gs.Chapters())
	}
}

func TestGameState_CloneIsIndependent(t *testing.T) {
	gs := NewGameState()
	gs.Inventory = []string{"Notes"}
	gs.Relationships["a"] = Character{ID: "a", Name: "Ava", Score: 50}
	gs.Scene = SceneSnapshot{Text: "Hi", Choices: []Choice{{ID: "1", Text: "Go"}}}

	cp := gs.Clone()
	cp.Inventory[0] = "Changed"
	cp.Relationships["a"] = Character{ID: "a", Name: "Other"}
	cp.Scene.Choices[0].Text = "Stay"

	if gs.Inventory[0] != "Notes" {
		t.Error("Clone shares inventory")
	}
	if gs.Relationships["a"].Name != "Ava" {
		t.Error("Clone shares relationships")
	}
	if gs.Scene.Choices[0].Text != "Go" {
		t.Error("Clone shares scene choices")
	}
}

func TestSceneSnapshot_FindChoice(t *testing.T) {
	s := SceneSnapshot{Choices: []Choice{{ID: "a", Text: "Left"}, {ID: "b", Text: "Right"}}}
	if c, ok := s.FindChoice("b"); !ok || c.Text != "Right" {
		t.Errorf("Expected Right, got %+v %v", c, ok)
	}
	if _, ok := s.FindChoice("c"); ok {
		t.Error("Expected missing choice")
	}
}

func TestGameState_NormalizeRepairs(t *testing.T) {
	gs := &GameState{
		Inventory: []string{"Phone", "Phone", "Notes"},
		Relationships: RelationshipMap{
			"a": {ID: "a", Name: "Ava", Kind: "Crush", Score: 60},
			"b": {ID: "x", Name: "Ben", Kind: "bestie", Score: 101},
		},
	}

	fixes := gs.Normalize()

	if len(gs.Inventory) != 2 || gs.Inventory[0] != "Phone" || gs.Inventory[1] != "Notes" {
		t.Errorf("Expected [Phone Notes], got %v", gs.Inventory)
	}
	if a := gs.Relationships["a"]; a.Kind != KindCrush || a.Score != 60 {
		t.Errorf("Expected Ava untouched apart from kind case, got %+v", a)
	}
	want := Character{ID: "b", Name: "Ben", Kind: KindNeutral, Score: MaxScore}
	if gs.Relationships["b"] != want {
		t.Errorf("Expected %+v, got %+v", want, gs.Relationships["b"])
	}
	// duplicate item, id mismatch, kind, score
	if len(fixes) != 4 {
		t.Errorf("Expected 4 fixes, got %d: %v", len(fixes), fixes)
	}
	if again := gs.Normalize(); len(again) != 0 {
		t.Errorf("Expected a normalized state to need no repairs, got %v", again)
	}
}
