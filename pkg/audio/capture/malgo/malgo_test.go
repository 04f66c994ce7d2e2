package malgo

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/MrWong99/elocute/pkg/audio"
)

func f32le(samples ...float32) []byte {
	b := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(s))
	}
	return b
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestCollector_StopsAtRequestedFrames(t *testing.T) {
	c := newCollector(3)

	c.write(f32le(0.5, -0.5))
	if isClosed(c.full) {
		t.Fatal("full signalled after 2 of 3 frames")
	}
	c.write(f32le(0.25, 1, 1))
	if !isClosed(c.full) {
		t.Fatal("full not signalled after 3 frames")
	}
	c.write(f32le(0.75))

	got := c.take()
	want := []float32{0.5, -0.5, 0.25}
	if len(got) != len(want) {
		t.Fatalf("samples = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCollector_IgnoresTrailingPartialFrame(t *testing.T) {
	c := newCollector(4)
	c.write(append(f32le(0.1), 0x01, 0x02))
	if got := c.take(); len(got) != 1 || got[0] != 0.1 {
		t.Errorf("samples = %v, want [0.1]", got)
	}
}

func TestCollector_TakeReturnsPartialAndStops(t *testing.T) {
	c := newCollector(10)
	c.write(f32le(0.1, 0.2))
	if got := c.take(); len(got) != 2 {
		t.Fatalf("partial take = %v, want 2 samples", got)
	}
	c.write(f32le(0.3))
	if got := c.take(); len(got) != 0 {
		t.Errorf("samples after take = %v, want none", got)
	}
}

func TestCollector_ZeroFramesIsFullAtOnce(t *testing.T) {
	if c := newCollector(0); !isClosed(c.full) {
		t.Error("collector for 0 frames is not full")
	}
}

func TestFrames(t *testing.T) {
	tests := []struct {
		d    time.Duration
		rate int
		want int
	}{
		{5 * time.Second, 16000, 80000},
		{1500 * time.Millisecond, 44100, 66150},
		{0, 16000, 0},
	}
	for _, tc := range tests {
		if got := frames(tc.d, tc.rate); got != tc.want {
			t.Errorf("frames(%s, %d) = %d, want %d", tc.d, tc.rate, got, tc.want)
		}
	}
}

func TestRecord_RejectsBadArgumentsWithoutHardware(t *testing.T) {
	m := &Microphone{}
	ctx := context.Background()

	if _, err := m.Record(ctx, time.Second, 0); !errors.Is(err, audio.ErrInvalidSampleRate) {
		t.Errorf("rate 0: error = %v, want ErrInvalidSampleRate", err)
	}
	if _, err := m.Record(ctx, 0, 16000); err == nil {
		t.Error("duration 0: expected error")
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := m.Record(cancelled, time.Second, 16000); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: error = %v, want context.Canceled", err)
	}
	if _, err := m.Record(ctx, time.Second, 16000); err == nil {
		t.Error("closed microphone: expected error")
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close on closed microphone = %v", err)
	}
}
