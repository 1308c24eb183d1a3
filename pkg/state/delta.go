package state

// DefaultSoundCue is used when a turn does not name a cue.
const DefaultSoundCue = "neutral"

// InventoryDelta lists item names to add to and remove from the backpack.
type InventoryDelta struct {
	Add    []string
	Remove []string
}

// RelationshipDelta is a partial update for one character. Zero values mean
// "not supplied": an empty DisplayName or NewKind keeps the stored value and a
// nil ScoreChange leaves the score unchanged.
type RelationshipDelta struct {
	ID          string
	DisplayName string
	ScoreChange *int
	NewKind     RelationshipKind
}

// TurnUnit is one narrative unit produced by the generator. It is consumed
// once by Merge and never stored.
type TurnUnit struct {
	NarrativeText string
	Choices       []Choice
	Inventory     InventoryDelta
	Relationships []RelationshipDelta
	Quest         string
	Location      string
	ArtPrompt     string
	SoundCue      string
}

// IsEmpty reports whether the unit carries no state changes.
func (u *TurnUnit) IsEmpty() bool {
	return u == nil || (len(u.Inventory.Add) == 0 &&
		len(u.Inventory.Remove) == 0 &&
		len(u.Relationships) == 0 &&
		u.Quest == "" &&
		u.Location == "")
}

// Scene returns the snapshot that renders this unit, without art.
func (u *TurnUnit) Scene() SceneSnapshot {
	s := SceneSnapshot{Text: u.NarrativeText, Choices: make([]Choice, len(u.Choices))}
	copy(s.Choices, u.Choices)
	return s
}

// IntPtr is a convenience for building deltas.
func IntPtr(v int) *int {
	return &v
}
