package assess

import (
	"errors"
	"fmt"
)

// Stage names the pipeline step an error originated from.
type Stage string

const (
	StageReference     Stage = "reference"
	StageCapture       Stage = "capture"
	StageRecord        Stage = "record"
	StageTranscription Stage = "transcription"
	StageScore         Stage = "score"
	StageAnalysis      Stage = "analysis"
)

// Sentinel causes carried inside the typed stage errors.
var (
	// ErrCapabilityUnavailable means the collaborator for a stage was never
	// configured.
	ErrCapabilityUnavailable = errors.New("assess: capability not configured")

	// ErrEmptyReference is returned for blank reference text.
	ErrEmptyReference = errors.New("assess: reference text is empty")

	// ErrEmptyTranscript means the transcriber heard nothing usable.
	ErrEmptyTranscript = errors.New("assess: transcript is empty")

	// ErrEmptyFeedback means the text generator replied with nothing.
	ErrEmptyFeedback = errors.New("assess: feedback is empty")

	// ErrInvalidTransition is the cause of every [SequenceError].
	ErrInvalidTransition = errors.New("assess: operation not allowed in current state")

	// ErrRecordingInProgress is returned by [Session.Record] while another
	// capture on the same session has not finished.
	ErrRecordingInProgress = errors.New("assess: a recording is already in progress")
)

// InputError reports caller-supplied data that cannot be processed: blank
// reference text or an empty or malformed waveform.
type InputError struct {
	Stage Stage
	Cause error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("assess: invalid %s input: %v", e.Stage, e.Cause)
}

func (e *InputError) Unwrap() error { return e.Cause }

// SynthesisError reports that the reference audio could not be produced.
type SynthesisError struct {
	Stage Stage
	Cause error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("assess: %s synthesis failed: %v", e.Stage, e.Cause)
}

func (e *SynthesisError) Unwrap() error { return e.Cause }

// CaptureError reports that the capture device failed or was cancelled.
type CaptureError struct {
	Stage Stage
	Cause error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("assess: %s failed: %v", e.Stage, e.Cause)
}

func (e *CaptureError) Unwrap() error { return e.Cause }

// TranscriptionError reports that the recording could not be turned into
// text, including the case where the transcriber returned nothing.
type TranscriptionError struct {
	Stage Stage
	Cause error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("assess: %s failed: %v", e.Stage, e.Cause)
}

func (e *TranscriptionError) Unwrap() error { return e.Cause }

// AnalysisError reports that no feedback could be generated. The score of
// the same assessment is still valid.
type AnalysisError struct {
	Stage Stage
	Cause error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("assess: %s failed: %v", e.Stage, e.Cause)
}

func (e *AnalysisError) Unwrap() error { return e.Cause }

// SequenceError reports an operation invoked before its prerequisites.
type SequenceError struct {
	Stage Stage
	// State is the session state at the time of the call.
	State State
	Cause error
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("assess: %s not allowed in state %s", e.Stage, e.State)
}

func (e *SequenceError) Unwrap() error { return e.Cause }
