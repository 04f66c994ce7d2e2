package assess

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/elocute/internal/observe"
	"github.com/MrWong99/elocute/internal/similarity"
	"github.com/MrWong99/elocute/pkg/audio"
	"github.com/MrWong99/elocute/pkg/audio/capture"
	"github.com/MrWong99/elocute/pkg/provider/tts"
)

// Capture defaults.
const (
	DefaultCaptureDuration = 5 * time.Second
	DefaultSampleRate      = 44100
)

// State is the position of a [Session] in the practice flow. States are
// ordered; a step that requires state S also accepts any later state.
type State int

const (
	StateIdle State = iota
	StateReferenceReady
	StateRecorded
	StateTranscribed
	StateScored
	StateAnalyzed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReferenceReady:
		return "reference_ready"
	case StateRecorded:
		return "recorded"
	case StateTranscribed:
		return "transcribed"
	case StateScored:
		return "scored"
	case StateAnalyzed:
		return "analyzed"
	default:
		return "unknown"
	}
}

// Assessment is the outcome of one [Session.ScoreAndAnalyze] call. When
// FeedbackErr is set the score is valid and Feedback is empty.
type Assessment struct {
	Score       float64
	Feedback    string
	Alignment   similarity.Alignment
	FeedbackErr error
}

// Snapshot is a read-only copy of a session handed to display layers.
type Snapshot struct {
	State          State
	ReferenceText  string
	ReferenceAudio audio.Waveform
	Recording      audio.Waveform
	Transcript     string
	// Score is nil until the attempt has been scored.
	Score     *float64
	Feedback  string
	Alignment *similarity.Alignment
}

// Session sequences one practice flow: reference synthesis, attempt
// capture, transcription, scoring and feedback. Re-running a step replaces
// its result and clears everything downstream of it.
//
// A Session is not safe for concurrent use, with one exception: a second
// [Session.Record] while a capture is in flight fails immediately with
// [ErrRecordingInProgress].
type Session struct {
	synth     tts.Synthesizer
	synthName string
	device    capture.Device
	gateway   *Gateway
	generator *FeedbackGenerator
	metrics   *observe.Metrics

	captureDuration time.Duration
	sampleRate      int
	recording       atomic.Bool

	state          State
	referenceText  string
	referenceAudio audio.Waveform
	lastRecording  audio.Waveform
	lastTranscript string
	lastScore      *float64
	lastFeedback   string
	lastAlignment  *similarity.Alignment
}

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithCaptureDevice sets the device used by [Session.Record].
func WithCaptureDevice(d capture.Device) SessionOption {
	return func(s *Session) { s.device = d }
}

// WithCaptureDuration sets how long [Session.Record] captures. Non-positive
// values are ignored.
func WithCaptureDuration(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.captureDuration = d
		}
	}
}

// WithSampleRate sets the capture sample rate. Non-positive values are
// ignored.
func WithSampleRate(hz int) SessionOption {
	return func(s *Session) {
		if hz > 0 {
			s.sampleRate = hz
		}
	}
}

// WithSynthesizerName sets the provider name reported in metrics.
func WithSynthesizerName(name string) SessionOption {
	return func(s *Session) { s.synthName = name }
}

// WithMetrics overrides the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// NewSession returns an idle session. Nil collaborators are accepted; the
// step that needs them fails with the matching stage error.
func NewSession(synth tts.Synthesizer, gw *Gateway, gen *FeedbackGenerator, opts ...SessionOption) *Session {
	s := &Session{
		synth:           synth,
		synthName:       "tts",
		gateway:         gw,
		generator:       gen,
		captureDuration: DefaultCaptureDuration,
		sampleRate:      DefaultSampleRate,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.gateway == nil {
		s.gateway = NewGateway(nil, WithGatewayMetrics(s.metrics))
	}
	if s.generator == nil {
		s.generator = NewFeedbackGenerator(nil, WithGeneratorMetrics(s.metrics))
	}
	return s
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// CaptureDuration returns the configured capture length.
func (s *Session) CaptureDuration() time.Duration { return s.captureDuration }

// SetReference synthesizes text as English speech and makes it the new
// reference. Any earlier attempt and its results are discarded. On failure
// the session is left unchanged.
func (s *Session) SetReference(ctx context.Context, text string) (err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return &InputError{Stage: StageReference, Cause: ErrEmptyReference}
	}
	if s.synth == nil {
		return &SynthesisError{Stage: StageReference, Cause: ErrCapabilityUnavailable}
	}

	ctx, span := observe.StartStage(ctx, observe.SpanSetReference, observe.Attr("provider", s.synthName))
	defer func() { observe.EndStage(span, err) }()

	start := time.Now()
	wave, err := s.synth.Synthesize(ctx, text, Language)
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("provider", s.synthName)))
	if err == nil {
		err = wave.Validate()
	}
	if err != nil {
		s.metrics.RecordProviderRequest(ctx, s.synthName, "tts", "error")
		s.metrics.RecordProviderError(ctx, s.synthName, "tts")
		observe.Logger(ctx).Warn("reference synthesis failed", "provider", s.synthName, "err", err)
		return &SynthesisError{Stage: StageReference, Cause: err}
	}
	s.metrics.RecordProviderRequest(ctx, s.synthName, "tts", "ok")

	s.clearFrom(StateReferenceReady)
	s.referenceText = text
	s.referenceAudio = wave
	s.state = StateReferenceReady
	return nil
}

// RecordAttempt stores an externally captured attempt. It requires a
// reference and discards any earlier transcript, score and feedback.
func (s *Session) RecordAttempt(w audio.Waveform) error {
	if s.state < StateReferenceReady {
		return s.sequenceErr(StageRecord)
	}
	if err := w.Validate(); err != nil {
		return &InputError{Stage: StageRecord, Cause: err}
	}
	s.clearFrom(StateRecorded)
	s.lastRecording = w
	s.state = StateRecorded
	return nil
}

// Record captures an attempt from the configured device and stores it as
// [Session.RecordAttempt] does. If ctx is cancelled, or the device fails,
// the session is left exactly as it was.
func (s *Session) Record(ctx context.Context) (err error) {
	if !s.recording.CompareAndSwap(false, true) {
		return ErrRecordingInProgress
	}
	defer s.recording.Store(false)

	if s.state < StateReferenceReady {
		return s.sequenceErr(StageRecord)
	}
	if s.device == nil {
		return &CaptureError{Stage: StageCapture, Cause: ErrCapabilityUnavailable}
	}

	ctx, span := observe.StartStage(ctx, observe.SpanRecord)
	defer func() { observe.EndStage(span, err) }()

	observe.Logger(ctx).Info("recording attempt", "duration", s.captureDuration, "sample_rate", s.sampleRate)
	start := time.Now()
	samples, err := s.device.Record(ctx, s.captureDuration, s.sampleRate)
	s.metrics.CaptureDuration.Record(ctx, time.Since(start).Seconds())
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return &CaptureError{Stage: StageCapture, Cause: err}
	}
	return s.RecordAttempt(audio.Waveform{Samples: samples, SampleRate: s.sampleRate})
}

// TranscribeAttempt transcribes the stored attempt. Calling it again
// re-transcribes the same recording. On failure the session stays in
// [StateRecorded] with no transcript.
func (s *Session) TranscribeAttempt(ctx context.Context) (string, error) {
	if s.state < StateRecorded {
		return "", s.sequenceErr(StageTranscription)
	}

	text, err := s.gateway.Transcribe(ctx, s.lastRecording)
	s.clearFrom(StateTranscribed)
	s.state = StateRecorded
	if err != nil {
		return "", err
	}
	s.lastTranscript = text
	s.state = StateTranscribed
	return text, nil
}

// ScoreAndAnalyze scores the transcript against the reference text and asks
// for feedback. If only the feedback fails, the session moves to
// [StateScored] and both the partial [Assessment] and the [AnalysisError]
// are returned.
func (s *Session) ScoreAndAnalyze(ctx context.Context) (res *Assessment, err error) {
	if s.state < StateTranscribed || s.referenceText == "" || s.lastTranscript == "" {
		return nil, s.sequenceErr(StageScore)
	}

	ctx, span := observe.StartStage(ctx, observe.SpanScoreAndAnalyze)
	defer func() { observe.EndStage(span, err) }()

	score := similarity.Score(s.referenceText, s.lastTranscript)
	al := similarity.AlignWords(s.referenceText, s.lastTranscript)

	s.clearFrom(StateScored)
	s.lastScore = &score
	s.lastAlignment = &al
	s.state = StateScored

	span.SetAttributes(attribute.Float64("elocute.score", score))
	res = &Assessment{Score: score, Alignment: al}
	feedback, err := s.generator.analyze(ctx, s.referenceText, s.lastTranscript, score, al)
	if err != nil {
		res.FeedbackErr = err
		s.metrics.RecordAssessment(ctx, score, "scored")
		return res, err
	}
	res.Feedback = feedback
	s.lastFeedback = feedback
	s.state = StateAnalyzed
	s.metrics.RecordAssessment(ctx, score, "analyzed")
	observe.Logger(ctx).Debug("attempt assessed", "score", score)
	return res, nil
}

// Snapshot returns a copy of the session's current contents.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:          s.state,
		ReferenceText:  s.referenceText,
		ReferenceAudio: s.referenceAudio.Clone(),
		Recording:      s.lastRecording.Clone(),
		Transcript:     s.lastTranscript,
		Feedback:       s.lastFeedback,
	}
	if s.lastScore != nil {
		v := *s.lastScore
		snap.Score = &v
	}
	if s.lastAlignment != nil {
		al := *s.lastAlignment
		snap.Alignment = &al
	}
	return snap
}

// Reset discards everything and returns the session to [StateIdle].
func (s *Session) Reset() {
	s.clearFrom(StateReferenceReady)
	s.referenceText = ""
	s.referenceAudio = audio.Waveform{}
	s.state = StateIdle
}

// clearFrom drops the results produced by state from and every later state.
func (s *Session) clearFrom(from State) {
	if from <= StateRecorded {
		s.lastRecording = audio.Waveform{}
	}
	if from <= StateTranscribed {
		s.lastTranscript = ""
	}
	if from <= StateScored {
		s.lastScore = nil
		s.lastAlignment = nil
	}
	s.lastFeedback = ""
}

func (s *Session) sequenceErr(stage Stage) error {
	return &SequenceError{Stage: stage, State: s.state, Cause: ErrInvalidTransition}
}
