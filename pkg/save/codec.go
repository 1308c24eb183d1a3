// Package save encodes a session and its rendered scene into a single blob
// for the one save slot, and decodes it back.
package save

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jwebster45206/drama-high/pkg/state"
)

// SlotKey is the fixed key under which the blob is stored.
const SlotKey = "dramahigh_save"

// FormatVersion is written into every blob. Decoding does not reject other
// versions; missing fields are defaulted instead.
const FormatVersion = 1

// ErrInvalidSave is returned when a blob cannot be parsed at all.
var ErrInvalidSave = errors.New("invalid save data")

type blob struct {
	Version int `json:"version"`
	*state.GameState
}

// Encode serializes the game state together with the scene currently on screen.
// The scene replaces whatever snapshot gs carries. gs is not modified.
func Encode(gs *state.GameState, scene state.SceneSnapshot) ([]byte, error) {
	if gs == nil {
		return nil, fmt.Errorf("cannot encode nil game state")
	}
	out := gs.Clone()
	out.Scene = scene.Clone()
	out.Normalize()

	data, err := json.Marshal(blob{Version: FormatVersion, GameState: out})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal save: %w", err)
	}
	return data, nil
}

// Decode restores the game state and the scene to show. Fields missing from
// older blobs are defaulted to empty values and out-of-range values are
// repaired; only unparseable input fails.
func Decode(data []byte) (*state.GameState, state.SceneSnapshot, error) {
	gs, scene, _, err := DecodeWithRepairs(data)
	return gs, scene, err
}

// DecodeWithRepairs is Decode, also reporting every value it had to repair
// to restore the state's invariants.
func DecodeWithRepairs(data []byte) (*state.GameState, state.SceneSnapshot, []string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, state.SceneSnapshot{}, nil, ErrInvalidSave
	}

	b := blob{GameState: &state.GameState{}}
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, state.SceneSnapshot{}, nil, fmt.Errorf("%w: %v", ErrInvalidSave, err)
	}

	gs := b.GameState
	repairs := gs.Normalize()
	if gs.ID == uuid.Nil {
		gs.ID = uuid.New()
	}
	return gs, gs.Scene.Clone(), repairs, nil
}
