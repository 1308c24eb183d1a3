package audio

import (
	"math"
	"math/rand/v2"
)

// Source produces one sample per call for the mixer time t, in seconds.
// Sources are stateful and are called once per frame while their voice plays.
type Source interface {
	Sample(t float64) float64
}

type Waveform int

const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle
)

// at evaluates one cycle of the waveform at phase in [0, 1).
func (w Waveform) at(phase float64) float64 {
	switch w {
	case Square:
		if phase < 0.5 {
			return 1
		}
		return -1
	case Sawtooth:
		return 2*phase - 1
	case Triangle:
		return 1 - 4*math.Abs(phase-0.5)
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

// Oscillator is a periodic source with an automatable frequency in Hz.
// An optional modulator is added to the frequency, scaled by ModDepth.
type Oscillator struct {
	Type      Waveform
	Frequency *Param
	Modulator *Oscillator
	ModDepth  float64

	sampleRate float64
	phase      float64
}

func NewOscillator(w Waveform, freq float64, sampleRate int) *Oscillator {
	return &Oscillator{
		Type:       w,
		Frequency:  NewParam(freq),
		sampleRate: float64(sampleRate),
	}
}

func (o *Oscillator) Sample(t float64) float64 {
	f := o.Frequency.ValueAt(t)
	if o.Modulator != nil {
		f += o.ModDepth * o.Modulator.Sample(t)
	}
	v := o.Type.at(o.phase)
	o.phase += f / o.sampleRate
	o.phase -= math.Floor(o.phase)
	return v
}

// Noise plays a buffer of white noise, optionally looping.
type Noise struct {
	buf  []float64
	pos  int
	loop bool
}

// NewNoise fills a buffer of the given length with uniform noise in [-1, 1).
func NewNoise(rng *rand.Rand, sampleRate int, seconds float64, loop bool) *Noise {
	buf := make([]float64, int(float64(sampleRate)*seconds))
	for i := range buf {
		buf[i] = rng.Float64()*2 - 1
	}
	return &Noise{buf: buf, loop: loop}
}

func (n *Noise) Sample(float64) float64 {
	if n.pos >= len(n.buf) {
		if !n.loop || len(n.buf) == 0 {
			return 0
		}
		n.pos = 0
	}
	v := n.buf[n.pos]
	n.pos++
	return v
}

type FilterType int

const (
	Lowpass FilterType = iota
	Bandpass
)

// Biquad is a second order filter using the audio EQ cookbook coefficients.
// The bandpass variant has a constant 0 dB peak gain.
type Biquad struct {
	in Source

	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func NewBiquad(in Source, typ FilterType, freq, q float64, sampleRate int) *Biquad {
	if q <= 0 {
		q = 1
	}
	w0 := 2 * math.Pi * freq / float64(sampleRate)
	cos := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha

	f := &Biquad{in: in}
	switch typ {
	case Bandpass:
		f.b0 = alpha / a0
		f.b1 = 0
		f.b2 = -alpha / a0
	default:
		f.b0 = (1 - cos) / 2 / a0
		f.b1 = (1 - cos) / a0
		f.b2 = (1 - cos) / 2 / a0
	}
	f.a1 = -2 * cos / a0
	f.a2 = (1 - alpha) / a0
	return f
}

func (f *Biquad) Sample(t float64) float64 {
	x := f.in.Sample(t)
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}
