package audio

import (
	"math"
	"math/rand/v2"
	"strings"
)

// Cue is a symbolic sound name sent by the generator.
type Cue string

const (
	CueNeutral        Cue = "neutral"
	CueSchoolAmbience Cue = "school_ambience"
	CuePartyAmbience  Cue = "party_ambience"
	CuePhonePing      Cue = "phone_ping"
	CueHeartbeat      Cue = "heartbeat"
	CueDramaSting     Cue = "drama_sting"
	CueSchoolBell     Cue = "school_bell"
	CueGossipWhisper  Cue = "gossip_whisper"
	CueSuccessChime   Cue = "success_chime"
)

// Cues lists every known cue.
var Cues = []Cue{
	CueNeutral,
	CueSchoolAmbience,
	CuePartyAmbience,
	CuePhonePing,
	CueHeartbeat,
	CueDramaSting,
	CueSchoolBell,
	CueGossipWhisper,
	CueSuccessChime,
}

// ParseCue normalizes a cue name. Unknown names map to CueNeutral.
func ParseCue(name string) Cue {
	c := Cue(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := oneShots[c]; ok {
		return c
	}
	if c.IsAmbience() {
		return c
	}
	return CueNeutral
}

func (c Cue) IsAmbience() bool {
	return c == CueSchoolAmbience || c == CuePartyAmbience
}

const (
	noiseSeconds = 2.0

	schoolAmbienceLevel = 0.03
	partyAmbienceLevel  = 0.1
)

// synth carries what a cue builder needs to create its voices.
type synth struct {
	sampleRate int
	now        float64
	rng        *rand.Rand
}

type cueBuilder func(s synth) []*Voice

var oneShots = map[Cue]cueBuilder{
	CuePhonePing:     phonePing,
	CueSchoolBell:    schoolBell,
	CueHeartbeat:     heartbeat,
	CueDramaSting:    dramaSting,
	CueSuccessChime:  successChime,
	CueGossipWhisper: gossipWhisper,
}

func phonePing(s synth) []*Voice {
	now := s.now
	osc := NewOscillator(Sine, 800, s.sampleRate)
	osc.Frequency.SetValueAtTime(800, now)
	osc.Frequency.ExponentialRampToValueAtTime(1200, now+0.1)

	gain := NewParam(0)
	gain.SetValueAtTime(0, now)
	gain.LinearRampToValueAtTime(0.2, now+0.05)
	gain.ExponentialRampToValueAtTime(0.001, now+0.5)

	return []*Voice{{Name: string(CuePhonePing), Source: osc, Gain: gain, Start: now, Stop: now + 0.5}}
}

// schoolBell is a triangle tone rattled by a 15 Hz square wave on its pitch.
func schoolBell(s synth) []*Voice {
	now := s.now
	osc := NewOscillator(Triangle, 600, s.sampleRate)
	osc.Modulator = NewOscillator(Square, 15, s.sampleRate)
	osc.ModDepth = 200

	gain := NewParam(0)
	gain.SetValueAtTime(0, now)
	gain.LinearRampToValueAtTime(0.15, now+0.1)
	gain.LinearRampToValueAtTime(0.15, now+1.0)
	gain.LinearRampToValueAtTime(0, now+1.5)

	return []*Voice{{Name: string(CueSchoolBell), Source: osc, Gain: gain, Start: now, Stop: now + 1.5}}
}

func heartbeat(s synth) []*Voice {
	now := s.now
	osc := NewOscillator(Sine, 50, s.sampleRate)

	gain := NewParam(0)
	gain.SetValueAtTime(0, now)
	gain.LinearRampToValueAtTime(0.5, now+0.05)
	gain.ExponentialRampToValueAtTime(0.001, now+0.2)

	gain.SetValueAtTime(0, now+0.3)
	gain.LinearRampToValueAtTime(0.4, now+0.35)
	gain.ExponentialRampToValueAtTime(0.001, now+0.6)

	return []*Voice{{Name: string(CueHeartbeat), Source: osc, Gain: gain, Start: now, Stop: now + 0.7}}
}

func dramaSting(s synth) []*Voice {
	now := s.now
	osc := NewOscillator(Sawtooth, 100, s.sampleRate)
	osc.Frequency.SetValueAtTime(100, now)
	osc.Frequency.ExponentialRampToValueAtTime(50, now+1.0)

	gain := NewParam(0.3)
	gain.SetValueAtTime(0.3, now)
	gain.ExponentialRampToValueAtTime(0.001, now+1.5)

	return []*Voice{{Name: string(CueDramaSting), Source: osc, Gain: gain, Start: now, Stop: now + 1.5}}
}

// successChime is a C major arpeggio, one voice per note.
func successChime(s synth) []*Voice {
	now := s.now
	notes := []float64{523.25, 659.25, 783.99}
	voices := make([]*Voice, 0, len(notes))
	for i, freq := range notes {
		offset := float64(i) * 0.1
		gain := NewParam(0)
		gain.SetValueAtTime(0, now+offset)
		gain.LinearRampToValueAtTime(0.1, now+offset+0.1)
		gain.LinearRampToValueAtTime(0, now+offset+0.8)

		voices = append(voices, &Voice{
			Name:   string(CueSuccessChime),
			Source: NewOscillator(Sine, freq, s.sampleRate),
			Gain:   gain,
			Start:  now,
			Stop:   now + 2.0,
		})
	}
	return voices
}

func gossipWhisper(s synth) []*Voice {
	now := s.now
	noise := NewNoise(s.rng, s.sampleRate, noiseSeconds, false)

	gain := NewParam(0)
	gain.SetValueAtTime(0, now)
	gain.LinearRampToValueAtTime(0.1, now+0.5)
	gain.LinearRampToValueAtTime(0, now+1.5)

	return []*Voice{{
		Name:   string(CueGossipWhisper),
		Source: NewBiquad(noise, Bandpass, 800, 1, s.sampleRate),
		Gain:   gain,
		Start:  now,
		Stop:   now + 1.5,
	}}
}

// ambienceVoice builds a looping filtered noise bed that fades in to its
// level over fadeIn seconds. It plays until released.
func ambienceVoice(s synth, c Cue, fadeIn float64) *Voice {
	noise := NewNoise(s.rng, s.sampleRate, noiseSeconds, true)

	var src Source
	level := schoolAmbienceLevel
	if c == CuePartyAmbience {
		src = NewBiquad(noise, Lowpass, 150, 1, s.sampleRate)
		level = partyAmbienceLevel
	} else {
		src = NewBiquad(noise, Bandpass, 500, 1, s.sampleRate)
	}

	gain := NewParam(0)
	gain.SetValueAtTime(0, s.now)
	gain.LinearRampToValueAtTime(level, s.now+fadeIn)

	return &Voice{
		Name:   string(c),
		Source: src,
		Gain:   gain,
		Start:  s.now,
		Stop:   math.Inf(1),
	}
}
