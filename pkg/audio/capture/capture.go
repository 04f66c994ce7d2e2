// Package capture defines the Device interface for audio capture hardware and
// ships a WAV-file backed implementation.
//
// A Device performs one fixed-length, blocking capture per call. Recording
// length and sample rate are chosen by the caller, not the device, so the
// practice flow can keep both in configuration.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MrWong99/elocute/pkg/audio"
)

// Device is the abstraction over an audio input device.
//
// Record blocks for up to duration while capturing mono audio at sampleRate
// and returns the captured samples. It must return promptly with ctx.Err()
// when ctx is cancelled; a cancelled capture yields no samples.
// Implementations are not required to support concurrent Record calls.
type Device interface {
	Record(ctx context.Context, duration time.Duration, sampleRate int) ([]float32, error)
}

// FileDevice is a [Device] that replays a pre-recorded WAV file as if it had
// been captured live. It is used for scripted practice runs and for machines
// without a microphone.
type FileDevice struct {
	path     string
	realtime bool
}

// FileOption configures a [FileDevice].
type FileOption func(*FileDevice)

// WithRealtime makes Record block for the full capture duration, mimicking a
// live microphone. Without it Record returns as soon as the file is decoded.
func WithRealtime(enabled bool) FileOption {
	return func(d *FileDevice) {
		d.realtime = enabled
	}
}

// NewFileDevice returns a [FileDevice] reading from path. The file is opened on
// every Record call so it may be replaced between attempts.
func NewFileDevice(path string, opts ...FileOption) (*FileDevice, error) {
	if path == "" {
		return nil, errors.New("capture: path must not be empty")
	}
	d := &FileDevice{path: path}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Record decodes the WAV file, resamples it to sampleRate and truncates it to
// duration. Files shorter than duration are returned as-is.
func (d *FileDevice) Record(ctx context.Context, duration time.Duration, sampleRate int) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, audio.ErrInvalidSampleRate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("capture: open %q: %w", d.path, err)
	}
	defer f.Close()

	w, err := audio.ReadWAV(f)
	if err != nil {
		return nil, fmt.Errorf("capture: decode %q: %w", d.path, err)
	}
	w = audio.Resample(w, sampleRate)

	if limit := int(duration.Seconds() * float64(sampleRate)); duration > 0 && len(w.Samples) > limit {
		w.Samples = w.Samples[:limit]
	}

	if d.realtime && duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return w.Samples, nil
}

// Compile-time interface assertion.
var _ Device = (*FileDevice)(nil)
