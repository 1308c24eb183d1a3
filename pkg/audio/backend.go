package audio

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"time"
)

// Renderer is pulled by a backend for output frames. *Mixer implements it.
type Renderer interface {
	Render(out []float32)
}

// Backend drives a renderer in real time. Resume and Suspend are idempotent.
type Backend interface {
	Open(r Renderer, sampleRate int) error
	Resume() error
	Suspend() error
	Close() error
}

var (
	ErrBackendOpen   = errors.New("audio backend already open")
	ErrBackendClosed = errors.New("audio backend not open")
)

// DefaultBlock is the render period of a Driver.
const DefaultBlock = 20 * time.Millisecond

// Driver is a clocked backend: a goroutine pulls one block of frames per
// period and hands it to a sink. A nil sink discards the audio but still
// advances the mixer clock.
type Driver struct {
	Block time.Duration

	sink    func(samples []float32) error
	onOpen  func(sampleRate int) error
	onClose func() error

	mu         sync.Mutex
	r          Renderer
	sampleRate int
	stop       chan struct{}
	done       chan struct{}
	sinkErr    error
}

// NewNullBackend returns a driver that renders into nothing.
func NewNullBackend() *Driver {
	return &Driver{Block: DefaultBlock}
}

// NewStreamBackend writes signed 16-bit little-endian mono PCM to w, which
// can be piped to a player such as aplay or ffplay.
func NewStreamBackend(w io.Writer) *Driver {
	var scratch []int16
	return &Driver{
		Block: DefaultBlock,
		sink: func(samples []float32) error {
			scratch = scratch[:0]
			for _, s := range samples {
				scratch = append(scratch, toInt16(s))
			}
			return binary.Write(w, binary.LittleEndian, scratch)
		},
	}
}

func (d *Driver) Open(r Renderer, sampleRate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.r != nil {
		return ErrBackendOpen
	}
	if d.onOpen != nil {
		if err := d.onOpen(sampleRate); err != nil {
			return err
		}
	}
	d.r = r
	d.sampleRate = sampleRate
	d.startLocked()
	return nil
}

func (d *Driver) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.r == nil {
		return ErrBackendClosed
	}
	d.startLocked()
	return nil
}

func (d *Driver) Suspend() error {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

// Close stops the driver and finalizes the sink. It returns the first sink
// error seen while running, if any.
func (d *Driver) Close() error {
	if err := d.Suspend(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.r == nil {
		return nil
	}
	d.r = nil
	err := d.sinkErr
	if d.onClose != nil {
		if cerr := d.onClose(); err == nil {
			err = cerr
		}
	}
	return err
}

func (d *Driver) startLocked() {
	if d.stop != nil {
		return
	}
	block := d.Block
	if block <= 0 {
		block = DefaultBlock
	}
	frames := max(1, int(float64(d.sampleRate)*block.Seconds()))
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.loop(d.r, frames, block, d.stop, d.done)
}

func (d *Driver) loop(r Renderer, frames int, block time.Duration, stop, done chan struct{}) {
	defer close(done)
	buf := make([]float32, frames)
	ticker := time.NewTicker(block)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.Render(buf)
			if d.sink == nil {
				continue
			}
			if err := d.sink(buf); err != nil {
				d.mu.Lock()
				if d.sinkErr == nil {
					d.sinkErr = err
				}
				d.mu.Unlock()
			}
		}
	}
}

func toInt16(s float32) int16 {
	v := math.Max(-1, math.Min(1, float64(s)))
	return int16(math.Round(v * math.MaxInt16))
}
