package state

import "slices"

// Merge folds a turn unit into the game state and returns the new state.
// The input state is never modified and Merge never fails. The turn log is
// left untouched; recording the exchange is the session's job.
func Merge(gs *GameState, unit *TurnUnit) *GameState {
	next := gs.Clone()
	if next == nil {
		next = NewGameState()
	}
	next.Normalize()
	if unit == nil {
		return next
	}

	next.Inventory = mergeInventory(next.Inventory, unit.Inventory)

	for _, d := range unit.Relationships {
		applyRelationshipDelta(next.Relationships, d)
	}

	// Clearing is never valid, so an empty value means "no update".
	if unit.Quest != "" {
		next.CurrentQuest = unit.Quest
	}
	if unit.Location != "" {
		next.CurrentLocation = unit.Location
	}

	return next
}

// mergeInventory applies adds with set semantics, then removes.
// Removing an absent item is a no-op.
func mergeInventory(inv []string, delta InventoryDelta) []string {
	for _, item := range delta.Add {
		if item == "" || slices.Contains(inv, item) {
			continue
		}
		inv = append(inv, item)
	}
	for _, item := range delta.Remove {
		if i := slices.Index(inv, item); i >= 0 {
			inv = slices.Delete(inv, i, i+1)
		}
	}
	return inv
}

func applyRelationshipDelta(rels RelationshipMap, d RelationshipDelta) {
	if d.ID == "" {
		return
	}
	change := 0
	if d.ScoreChange != nil {
		change = *d.ScoreChange
	}

	if existing, ok := rels[d.ID]; ok {
		existing.Score = clampScore(existing.Score + change)
		if d.DisplayName != "" {
			existing.Name = d.DisplayName
		}
		if d.NewKind != "" {
			existing.Kind = d.NewKind
		}
		rels[d.ID] = existing
		return
	}

	// A character cannot be materialized without a name.
	if d.DisplayName == "" {
		return
	}
	kind := d.NewKind
	if kind == "" {
		kind = KindNeutral
	}
	rels[d.ID] = Character{
		ID:    d.ID,
		Name:  d.DisplayName,
		Kind:  kind,
		Score: clampScore(InitialScore + change),
	}
}
