// Package mock provides a test double for the capture.Device interface.
//
// Device returns configured samples, optionally blocking until the test
// releases it, which lets tests observe a capture that is still in flight.
//
// Example:
//
//	d := &mock.Device{Samples: []float32{0.1, 0.2}}
//	samples, err := d.Record(ctx, 5*time.Second, 44100)
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/elocute/pkg/audio/capture"
)

// RecordCall records a single invocation of Device.Record.
type RecordCall struct {
	// Duration is the requested capture length.
	Duration time.Duration
	// SampleRate is the requested sample rate.
	SampleRate int
}

// Device is a mock implementation of capture.Device.
type Device struct {
	mu sync.Mutex

	// Samples is returned by Record. A copy is handed out on every call.
	Samples []float32

	// Err, if non-nil, is returned by Record instead of Samples.
	Err error

	// Gate, if non-nil, makes Record block until Gate is closed or the
	// context is cancelled.
	Gate chan struct{}

	// Started, if non-nil, receives a value once Record has begun blocking.
	Started chan struct{}

	// RecordCalls records every invocation of Record in order.
	RecordCalls []RecordCall
}

// Record records the call, optionally waits on Gate, and returns Samples, Err.
func (d *Device) Record(ctx context.Context, duration time.Duration, sampleRate int) ([]float32, error) {
	d.mu.Lock()
	d.RecordCalls = append(d.RecordCalls, RecordCall{Duration: duration, SampleRate: sampleRate})
	gate, started := d.Gate, d.Started
	d.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	out := make([]float32, len(d.Samples))
	copy(out, d.Samples)
	return out, nil
}

// CallCount returns the number of Record calls. Thread-safe.
func (d *Device) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.RecordCalls)
}

// Ensure Device implements capture.Device at compile time.
var _ capture.Device = (*Device)(nil)
