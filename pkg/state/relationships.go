package state

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

type RelationshipKind string

const (
	KindFriend  RelationshipKind = "friend"
	KindCrush   RelationshipKind = "crush"
	KindRival   RelationshipKind = "rival"
	KindEnemy   RelationshipKind = "enemy"
	KindNeutral RelationshipKind = "neutral"
)

const (
	MinScore     = 0
	MaxScore     = 100
	InitialScore = 50
)

// ParseRelationshipKind normalizes a kind name. Unknown names return false.
func ParseRelationshipKind(s string) (RelationshipKind, bool) {
	switch k := RelationshipKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindFriend, KindCrush, KindRival, KindEnemy, KindNeutral:
		return k, true
	default:
		return "", false
	}
}

// Character is a tracked relationship with a named NPC.
type Character struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Kind  RelationshipKind `json:"kind"`
	Score int              `json:"score"` // always within [MinScore, MaxScore]
}

// UnmarshalJSON also reads the older relationshipType and value field names.
// A character stored without any score starts at InitialScore.
func (c *Character) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID               string `json:"id"`
		Name             string `json:"name"`
		Kind             string `json:"kind"`
		RelationshipType string `json:"relationshipType"`
		Score            *int   `json:"score"`
		Value            *int   `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.ID = raw.ID
	c.Name = raw.Name
	c.Kind = RelationshipKind(cmp.Or(raw.Kind, raw.RelationshipType))
	switch {
	case raw.Score != nil:
		c.Score = *raw.Score
	case raw.Value != nil:
		c.Score = *raw.Value
	default:
		c.Score = InitialScore
	}
	return nil
}

// RelationshipMap holds characters keyed by their id.
type RelationshipMap map[string]Character

// UnmarshalJSON accepts either a map keyed by id or an array of characters.
// Array entries without an id are skipped; later duplicates win.
func (m *RelationshipMap) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = make(RelationshipMap)
		return nil
	}
	var asMap map[string]Character
	if err := json.Unmarshal(data, &asMap); err == nil {
		result := make(RelationshipMap, len(asMap))
		for id, c := range asMap {
			if c.ID == "" {
				c.ID = id
			}
			result[id] = c
		}
		*m = result
		return nil
	}
	var asArray []Character
	if err := json.Unmarshal(data, &asArray); err == nil {
		result := make(RelationshipMap, len(asArray))
		for _, c := range asArray {
			if c.ID == "" {
				continue
			}
			result[c.ID] = c
		}
		*m = result
		return nil
	}
	return fmt.Errorf("relationships: not a map or array: %s", string(data))
}

func (m RelationshipMap) Clone() RelationshipMap {
	if m == nil {
		return make(RelationshipMap)
	}
	return maps.Clone(m)
}

// Sorted returns the characters ordered by name, then id, for display.
func (m RelationshipMap) Sorted() []Character {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b Character) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// repair brings every character back within its invariants: the id matches
// the key, the kind is a known one (neutral otherwise) and the score is
// clamped. Each repair is described in the returned list.
func (m RelationshipMap) repair() []string {
	var fixes []string
	for _, id := range slices.Sorted(maps.Keys(m)) {
		c := m[id]
		if c.ID != id {
			fixes = append(fixes, fmt.Sprintf("relationship key %q had id %q", id, c.ID))
			c.ID = id
		}
		if k, ok := ParseRelationshipKind(string(c.Kind)); ok {
			c.Kind = k
		} else {
			fixes = append(fixes, fmt.Sprintf("relationship %s kind %q reset to %s", id, c.Kind, KindNeutral))
			c.Kind = KindNeutral
		}
		if clamped := clampScore(c.Score); clamped != c.Score {
			fixes = append(fixes, fmt.Sprintf("relationship %s score %d clamped to %d", id, c.Score, clamped))
			c.Score = clamped
		}
		m[id] = c
	}
	return fixes
}

func clampScore(v int) int {
	return max(MinScore, min(MaxScore, v))
}
