package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/jwebster45206/drama-high/pkg/audio"
	"github.com/jwebster45206/drama-high/pkg/chat"
	"github.com/jwebster45206/drama-high/pkg/save"
	"github.com/jwebster45206/drama-high/pkg/state"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <save.json | turn.json>\n       %s -schema\n       %s -cue <name> <out.wav>\n", os.Args[0], os.Args[0], os.Args[0])
		os.Exit(1)
	}

	if os.Args[1] == "-cue" {
		if len(os.Args) < 4 {
			fmt.Fprintf(os.Stderr, "Usage: %s -cue <name> <out.wav>\n", os.Args[0])
			os.Exit(1)
		}
		if err := renderCue(os.Args[2], os.Args[3]); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render cue: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", os.Args[3])
		return
	}

	if os.Args[1] == "-schema" {
		schema, err := state.TurnSchema()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build schema: %v\n", err)
			os.Exit(1)
		}
		var out bytes.Buffer
		_ = json.Indent(&out, schema, "", "  ")
		fmt.Println(out.String())
		return
	}

	filename := os.Args[1]
	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read file %s: %v\n", filename, err)
		os.Exit(1)
	}

	validator := &Validator{}
	kind, err := validator.Validate(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed for %s: %v\n", filename, err)
		os.Exit(1)
	}

	for _, w := range validator.warnings {
		fmt.Println("warning:" + strings.TrimPrefix(w, "  -"))
	}
	fmt.Printf("%s file is valid!\n", kind)
}

// renderCue writes a preview of a sound cue so it can be auditioned
// outside a session.
func renderCue(name, path string) error {
	cue := audio.ParseCue(name)
	if string(cue) != strings.ToLower(strings.TrimSpace(name)) {
		return fmt.Errorf("unknown cue %q", name)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	samples := audio.RenderCue(string(cue), audio.DefaultSampleRate, cuePreviewSeconds)
	if err := audio.WriteWAV(f, samples, audio.DefaultSampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

const cuePreviewSeconds = 3

// Validator checks save blobs and raw turn payloads. Problems that the
// decoders tolerate or repair are reported as warnings; anything they reject
// is an error.
type Validator struct {
	errors   []string
	warnings []string
}

// Validate detects the file kind and validates it.
func (v *Validator) Validate(data []byte) (string, error) {
	v.errors = nil
	v.warnings = nil

	if !json.Valid(data) {
		return "", fmt.Errorf("file contains invalid JSON")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", fmt.Errorf("expected a JSON object: %w", err)
	}

	if _, ok := fields["story_text"]; ok {
		return "Turn payload", v.validateTurn(data)
	}
	return "Save", v.validateSave(data)
}

func (v *Validator) validateTurn(data []byte) error {
	var p state.TurnPayload
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&p); err != nil {
		return fmt.Errorf("failed strict JSON unmarshaling: %w", err)
	}

	unit, err := p.ToTurnUnit()
	if err != nil {
		return err
	}

	if len(unit.Choices) == 0 {
		v.addError("turn offers no usable choices")
	}
	if len(unit.Choices) < len(p.Choices) {
		v.addWarning(fmt.Sprintf("%d choice(s) with empty text will be dropped", len(p.Choices)-len(unit.Choices)))
	}
	for i, c := range p.Choices {
		if c.ID == "" {
			v.addWarning(fmt.Sprintf("choice %d has no id and will be renumbered", i+1))
			continue
		}
		v.validateIDFormat("choice id", c.ID)
	}

	if p.SoundCue != "" && string(audio.ParseCue(p.SoundCue)) != strings.ToLower(strings.TrimSpace(p.SoundCue)) {
		v.addWarning(fmt.Sprintf("unknown sound_cue '%s' will play as neutral", p.SoundCue))
	}
	if unit.ArtPrompt == "" {
		v.addWarning("visual_prompt is empty, no scene art will be requested")
	}

	for _, r := range p.RelationshipUpdates {
		if strings.TrimSpace(r.ID) == "" {
			v.addWarning("relationship update without id will be ignored")
			continue
		}
		v.validateIDFormat("relationship id", r.ID)
		if r.SetType != "" {
			if _, ok := state.ParseRelationshipKind(r.SetType); !ok {
				v.addWarning(fmt.Sprintf("relationship %s has unknown setType '%s'", r.ID, r.SetType))
			}
		}
	}

	return v.result()
}

func (v *Validator) validateSave(data []byte) error {
	gs, scene, repairs, err := save.DecodeWithRepairs(data)
	if err != nil {
		return err
	}
	for _, r := range repairs {
		v.addWarning(r + " on load")
	}

	for _, msg := range gs.TurnLog {
		if msg.Role != chat.ChatRolePlayer && msg.Role != chat.ChatRoleNarrator {
			v.addError(fmt.Sprintf("turn log entry has invalid role '%s'", msg.Role))
		}
	}

	seen := make(map[string]bool, len(scene.Choices))
	for _, c := range scene.Choices {
		if c.ID == "" {
			v.addError("scene choice without id")
		} else if seen[c.ID] {
			v.addError(fmt.Sprintf("duplicate scene choice id '%s'", c.ID))
		}
		seen[c.ID] = true
	}

	if scene.IsEmpty() {
		v.addWarning("save has no scene, loading it returns to the title screen")
	} else if scene.Text == "" {
		v.addError("scene has choices but no text")
	}

	return v.result()
}

func (v *Validator) result() error {
	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors:\n%s", strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *Validator) validateIDFormat(fieldName, id string) {
	if id == "" {
		return
	}

	if !isValidID(id) {
		v.addWarning(fmt.Sprintf("%s '%s' should be lowercase snake_case", fieldName, id))
	}
}

func (v *Validator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

func (v *Validator) addWarning(msg string) {
	v.warnings = append(v.warnings, "  - "+msg)
}

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}
