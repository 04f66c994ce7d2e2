// Package malgo records from the system's default microphone through
// miniaudio (github.com/gen2brain/malgo).
//
// A fresh capture device is opened for every Record call, so the microphone
// is only held while the learner is speaking.
package malgo

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	ma "github.com/gen2brain/malgo"

	"github.com/MrWong99/elocute/pkg/audio"
	"github.com/MrWong99/elocute/pkg/audio/capture"
)

// drainGrace is how long Record waits past the requested duration for the
// driver to deliver the last frames before returning what it has.
const drainGrace = 500 * time.Millisecond

// Microphone is a [capture.Device] backed by the default input device.
type Microphone struct {
	mu    sync.Mutex
	mactx *ma.AllocatedContext
}

var _ capture.Device = (*Microphone)(nil)

// New initialises the audio backend. Call [Microphone.Close] when done.
func New() (*Microphone, error) {
	mactx, err := ma.InitContext(nil, ma.ContextConfig{}, func(msg string) {
		slog.Debug("miniaudio", "msg", msg)
	})
	if err != nil {
		return nil, fmt.Errorf("malgo: init context: %w", err)
	}
	return &Microphone{mactx: mactx}, nil
}

// Record captures duration of mono float32 audio at sampleRate. Cancelling
// ctx stops the device and discards the partial recording.
func (m *Microphone) Record(ctx context.Context, duration time.Duration, sampleRate int) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, audio.ErrInvalidSampleRate
	}
	if duration <= 0 {
		return nil, errors.New("malgo: capture duration must be positive")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mactx == nil {
		return nil, errors.New("malgo: microphone closed")
	}

	cfg := ma.DefaultDeviceConfig(ma.Capture)
	cfg.Capture.Format = ma.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(sampleRate)

	buf := newCollector(frames(duration, sampleRate))
	dev, err := ma.InitDevice(m.mactx.Context, cfg, ma.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) { buf.write(in) },
	})
	if err != nil {
		return nil, fmt.Errorf("malgo: open capture device: %w", err)
	}
	defer dev.Uninit()

	if err := dev.Start(); err != nil {
		return nil, fmt.Errorf("malgo: start capture: %w", err)
	}
	timer := time.NewTimer(duration + drainGrace)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		_ = dev.Stop()
		return nil, ctx.Err()
	case <-buf.full:
	case <-timer.C:
		slog.Warn("microphone delivered less audio than requested", "want", duration)
	}
	if err := dev.Stop(); err != nil {
		slog.Warn("failed to stop capture device", "err", err)
	}
	return buf.take(), nil
}

// Close releases the audio backend. Further Record calls fail.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mactx == nil {
		return nil
	}
	err := m.mactx.Uninit()
	m.mactx.Free()
	m.mactx = nil
	return err
}

func frames(d time.Duration, sampleRate int) int {
	return int(d.Seconds() * float64(sampleRate))
}

// collector gathers little-endian float32 frames from the driver callback
// until want frames arrived.
type collector struct {
	want int
	full chan struct{}

	mu      sync.Mutex
	samples []float32
	done    bool
}

func newCollector(want int) *collector {
	c := &collector{want: want, full: make(chan struct{}), samples: make([]float32, 0, want)}
	if want <= 0 {
		c.done = true
		close(c.full)
	}
	return c
}

func (c *collector) write(in []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	for i := 0; i+4 <= len(in) && len(c.samples) < c.want; i += 4 {
		c.samples = append(c.samples, math.Float32frombits(binary.LittleEndian.Uint32(in[i:])))
	}
	if len(c.samples) >= c.want {
		c.done = true
		close(c.full)
	}
}

// take returns the samples collected so far and stops accepting more.
func (c *collector) take() []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = true
	out := c.samples
	c.samples = nil
	return out
}
