package audio

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// NewWAVBackend captures everything the engine plays into a 16-bit mono WAV
// file at path. The file header is finalized on Close.
func NewWAVBackend(path string) *Driver {
	var (
		f   *os.File
		enc *wav.Encoder
	)
	d := &Driver{Block: DefaultBlock}
	d.onOpen = func(sampleRate int) error {
		var err error
		f, err = os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create capture file: %w", err)
		}
		enc = wav.NewEncoder(f, sampleRate, wavBitDepth, 1, 1)
		return nil
	}
	d.sink = func(samples []float32) error {
		return enc.Write(intBuffer(samples, d.sampleRate))
	}
	d.onClose = func() error {
		if err := enc.Close(); err != nil {
			f.Close()
			return fmt.Errorf("failed to finalize capture file: %w", err)
		}
		return f.Close()
	}
	return d
}

// WriteWAV encodes samples as a 16-bit mono WAV stream.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, wavBitDepth, 1, 1)
	if err := enc.Write(intBuffer(samples, sampleRate)); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	return enc.Close()
}

// RenderCue renders a single cue offline, for previews and tests. Ambience
// cues are rendered as a fade-in of the looping bed.
func RenderCue(name string, sampleRate int, seconds float64) []float32 {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	e := NewEngine(offline{}, sampleRate, nil)
	if err := e.Init(); err != nil {
		return nil
	}
	e.PlayCue(name)

	out := make([]float32, int(float64(sampleRate)*seconds))
	e.mixer.Render(out)
	return out
}

// offline is a backend that never pulls; the caller renders directly.
type offline struct{}

func (offline) Open(Renderer, int) error { return nil }
func (offline) Resume() error            { return nil }
func (offline) Suspend() error           { return nil }
func (offline) Close() error             { return nil }

func intBuffer(samples []float32, sampleRate int) *goaudio.IntBuffer {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(toInt16(s))
	}
	return &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}
}
