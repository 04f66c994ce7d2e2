// Package mock provides a test double for the stt.Transcriber interface.
//
// Use Transcriber to return a canned transcript (or error) and to inspect the
// WAV payloads and configurations the caller sent.
//
// Example:
//
//	tr := &mock.Transcriber{Result: stt.Transcript{Text: "hello world"}}
//	got, _ := tr.Transcribe(ctx, wav, stt.Config{Language: "en"})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/elocute/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	// WAV is a copy of the audio bytes passed to Transcribe.
	WAV []byte
	// Cfg is the Config passed to Transcribe.
	Cfg stt.Config
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Result is returned by Transcribe when Err is nil and Results is empty.
	Result stt.Transcript

	// Results, if non-empty, is consumed one entry per call before falling
	// back to Result. Useful for "fail once, then succeed" scenarios together
	// with Errs.
	Results []stt.Transcript

	// Errs, if non-empty, is consumed one entry per call. A nil entry means
	// that call succeeds.
	Errs []error

	// Err, if non-nil, is returned by every call once Errs is exhausted.
	Err error

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the next configured result.
func (t *Transcriber) Transcribe(ctx context.Context, wav []byte, cfg stt.Config) (stt.Transcript, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cp := make([]byte, len(wav))
	copy(cp, wav)
	t.TranscribeCalls = append(t.TranscribeCalls, TranscribeCall{WAV: cp, Cfg: cfg})

	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, err
	}
	if len(t.Errs) > 0 {
		err := t.Errs[0]
		t.Errs = t.Errs[1:]
		if err != nil {
			return stt.Transcript{}, err
		}
	} else if t.Err != nil {
		return stt.Transcript{}, t.Err
	}
	if len(t.Results) > 0 {
		r := t.Results[0]
		t.Results = t.Results[1:]
		return r, nil
	}
	return t.Result, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (t *Transcriber) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TranscribeCalls = nil
}

// Ensure Transcriber implements stt.Transcriber at compile time.
var _ stt.Transcriber = (*Transcriber)(nil)
