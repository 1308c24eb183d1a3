package state

import (
	"log/slog"
	"slices"
)

// DeltaWorker applies a turn unit to a game state and logs what changed.
// The merge itself is delegated to Merge, so the worker adds no semantics.
type DeltaWorker struct {
	gs     *GameState
	unit   *TurnUnit
	logger *slog.Logger
}

// NewDeltaWorker creates a new delta worker for applying a turn unit
func NewDeltaWorker(gs *GameState, unit *TurnUnit, logger *slog.Logger) *DeltaWorker {
	return &DeltaWorker{
		gs:     gs,
		unit:   unit,
		logger: logger,
	}
}

// Apply returns the merged state. The worker's input state is left as it was.
func (dw *DeltaWorker) Apply() *GameState {
	next := Merge(dw.gs, dw.unit)
	if dw.logger != nil && !dw.unit.IsEmpty() {
		dw.logChanges(next)
	}
	return next
}

func (dw *DeltaWorker) logChanges(next *GameState) {
	prev := dw.gs
	if prev == nil {
		prev = NewGameState()
	}

	for _, item := range next.Inventory {
		if !slices.Contains(prev.Inventory, item) {
			dw.logger.Info("Item acquired", "item", item)
		}
	}
	for _, item := range prev.Inventory {
		if !slices.Contains(next.Inventory, item) {
			dw.logger.Info("Item removed", "item", item)
		}
	}

	// Deltas dropped by the merge are only worth a debug line.
	for _, d := range dw.unit.Relationships {
		after, ok := next.Relationships[d.ID]
		if !ok {
			dw.logger.Debug("Relationship delta dropped",
				"character_id", d.ID,
				"reason", "unknown character without a name")
			continue
		}
		before, existed := prev.Relationships[d.ID]
		switch {
		case !existed:
			dw.logger.Info("Character introduced",
				"character_id", after.ID,
				"name", after.Name,
				"kind", after.Kind,
				"score", after.Score)
		case before != after:
			dw.logger.Info("Relationship changed",
				"character_id", after.ID,
				"from_kind", before.Kind,
				"to_kind", after.Kind,
				"from_score", before.Score,
				"to_score", after.Score)
		}
	}

	if next.CurrentQuest != prev.CurrentQuest {
		dw.logger.Info("Quest changed", "from", prev.CurrentQuest, "to", next.CurrentQuest)
	}
	if next.CurrentLocation != prev.CurrentLocation {
		dw.logger.Info("Location changed", "from", prev.CurrentLocation, "to", next.CurrentLocation)
	}
}
