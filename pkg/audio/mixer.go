package audio

import (
	"math"
	"slices"
	"sync"
)

// Voice is one scheduled sound routed through its own gain into the master.
// It plays on the half-open interval [Start, Stop) of the mixer clock.
type Voice struct {
	Name   string
	Source Source
	Gain   *Param
	Start  float64
	Stop   float64
}

// Mixer sums voices through a single master gain stage. Its clock is the
// number of frames rendered, so time only advances when a backend pulls.
type Mixer struct {
	mu         sync.Mutex
	sampleRate int
	frame      int64
	master     *Param
	voices     []*Voice
}

func NewMixer(sampleRate int, masterGain float64) *Mixer {
	return &Mixer{
		sampleRate: sampleRate,
		master:     NewParam(masterGain),
	}
}

func (m *Mixer) SampleRate() int {
	return m.sampleRate
}

// Do runs fn with the mixer locked and the current clock time. All voice and
// param changes go through Do so they never race with Render.
func (m *Mixer) Do(fn func(now float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.nowLocked())
}

// Now returns the current clock time in seconds.
func (m *Mixer) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nowLocked()
}

func (m *Mixer) nowLocked() float64 {
	return float64(m.frame) / float64(m.sampleRate)
}

// Master is the shared output gain. Callers must hold the lock via Do.
func (m *Mixer) Master() *Param {
	return m.master
}

// Add schedules voices. Callers must hold the lock via Do.
func (m *Mixer) Add(voices ...*Voice) {
	m.voices = append(m.voices, voices...)
}

// Render fills out with mono samples in [-1, 1] and advances the clock.
func (m *Mixer) Render(out []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dt := 1 / float64(m.sampleRate)
	for i := range out {
		t := float64(m.frame) * dt
		var sum float64
		for _, v := range m.voices {
			if t >= v.Start && t < v.Stop {
				sum += v.Source.Sample(t) * v.Gain.ValueAt(t)
			}
		}
		out[i] = float32(math.Max(-1, math.Min(1, sum*m.master.ValueAt(t))))
		m.frame++
	}

	now := m.nowLocked()
	m.voices = slices.DeleteFunc(m.voices, func(v *Voice) bool { return now >= v.Stop })
	m.master.Prune(now)
}

// Playing returns the names of voices that have not reached their stop time.
func (m *Mixer) Playing() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowLocked()
	var names []string
	for _, v := range m.voices {
		if now < v.Stop {
			names = append(names, v.Name)
		}
	}
	return names
}
