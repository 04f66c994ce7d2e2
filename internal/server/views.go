package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrWong99/elocute/internal/assess"
	"github.com/MrWong99/elocute/internal/observe"
	"github.com/MrWong99/elocute/internal/similarity"
	"github.com/MrWong99/elocute/pkg/audio"
)

// audioView describes a waveform without shipping its samples.
type audioView struct {
	Samples    int   `json:"samples"`
	SampleRate int   `json:"sample_rate"`
	DurationMS int64 `json:"duration_ms"`
}

func newAudioView(w audio.Waveform) *audioView {
	if w.IsZero() {
		return nil
	}
	return &audioView{
		Samples:    len(w.Samples),
		SampleRate: w.SampleRate,
		DurationMS: w.Duration().Milliseconds(),
	}
}

type substitutionView struct {
	Reference   string `json:"reference"`
	Spoken      string `json:"spoken"`
	SoundsAlike bool   `json:"sounds_alike"`
}

type alignmentView struct {
	Exact         bool               `json:"exact"`
	Missing       []string           `json:"missing,omitempty"`
	Added         []string           `json:"added,omitempty"`
	Substitutions []substitutionView `json:"substitutions,omitempty"`
}

func newAlignmentView(al *similarity.Alignment) *alignmentView {
	if al == nil {
		return nil
	}
	v := &alignmentView{
		Exact:   al.Exact(),
		Missing: al.Missing(),
		Added:   al.Added(),
	}
	for _, s := range al.Substitutions() {
		v.Substitutions = append(v.Substitutions, substitutionView(s))
	}
	return v
}

type snapshotView struct {
	ID             string         `json:"id"`
	State          string         `json:"state"`
	ReferenceText  string         `json:"reference_text,omitempty"`
	ReferenceAudio *audioView     `json:"reference_audio,omitempty"`
	Recording      *audioView     `json:"recording,omitempty"`
	Transcript     string         `json:"transcript,omitempty"`
	Score          *float64       `json:"score,omitempty"`
	Feedback       string         `json:"feedback,omitempty"`
	Alignment      *alignmentView `json:"alignment,omitempty"`
}

func newSnapshotView(id string, s assess.Snapshot) snapshotView {
	return snapshotView{
		ID:             id,
		State:          s.State.String(),
		ReferenceText:  s.ReferenceText,
		ReferenceAudio: newAudioView(s.ReferenceAudio),
		Recording:      newAudioView(s.Recording),
		Transcript:     s.Transcript,
		Score:          s.Score,
		Feedback:       s.Feedback,
		Alignment:      newAlignmentView(s.Alignment),
	}
}

type assessmentView struct {
	Score         float64        `json:"score"`
	Feedback      string         `json:"feedback,omitempty"`
	FeedbackError string         `json:"feedback_error,omitempty"`
	Alignment     *alignmentView `json:"alignment"`
}

func newAssessmentView(a *assess.Assessment) assessmentView {
	v := assessmentView{
		Score:     a.Score,
		Feedback:  a.Feedback,
		Alignment: newAlignmentView(&a.Alignment),
	}
	if a.FeedbackErr != nil {
		v.FeedbackError = a.FeedbackErr.Error()
	}
	return v
}

type errorView struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// statusFor maps an operation error to its HTTP status and failing stage.
func statusFor(err error) (int, assess.Stage) {
	var (
		inErr  *assess.InputError
		seqErr *assess.SequenceError
		synErr *assess.SynthesisError
		capErr *assess.CaptureError
		trErr  *assess.TranscriptionError
		anErr  *assess.AnalysisError
	)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, ""
	case errors.Is(err, ErrTooManySessions):
		return http.StatusServiceUnavailable, ""
	case errors.As(err, &inErr):
		return http.StatusBadRequest, inErr.Stage
	case errors.As(err, &seqErr):
		return http.StatusConflict, seqErr.Stage
	case errors.Is(err, assess.ErrRecordingInProgress):
		return http.StatusConflict, assess.StageCapture
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ""
	case errors.As(err, &synErr):
		return http.StatusBadGateway, synErr.Stage
	case errors.As(err, &capErr):
		return http.StatusBadGateway, capErr.Stage
	case errors.As(err, &trErr):
		return http.StatusBadGateway, trErr.Stage
	case errors.As(err, &anErr):
		return http.StatusBadGateway, anErr.Stage
	}
	return http.StatusInternalServerError, ""
}

// writeError logs server-side failures and writes err as a JSON body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, stage := statusFor(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Warn("request failed", "path", r.URL.Path, "stage", stage, "err", err)
	}
	writeJSON(w, status, errorView{Error: err.Error(), Stage: string(stage)})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
