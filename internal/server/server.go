// Package server exposes practice sessions over an HTTP JSON API.
//
// Each session lives in a [Manager] behind its own mutex, so concurrent
// requests against one session are serialised while different sessions
// proceed in parallel. Attempts are uploaded as WAV files; the server never
// touches a local audio device.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrWong99/elocute/internal/assess"
	"github.com/MrWong99/elocute/internal/health"
	"github.com/MrWong99/elocute/internal/observe"
	"github.com/MrWong99/elocute/pkg/audio"
)

const (
	// maxAttemptBytes bounds uploaded WAV attempts (about 3 minutes of
	// 16-bit mono at 44.1 kHz).
	maxAttemptBytes = 16 << 20

	// maxReferenceBytes bounds the JSON body of a reference update.
	maxReferenceBytes = 64 << 10

	shutdownTimeout = 10 * time.Second
)

// Server routes the practice API to a [Manager].
type Server struct {
	sessions *Manager
	health   *health.Handler
	metrics  *observe.Metrics
	scrape   http.Handler
	mux      *http.ServeMux
}

// Option configures a [Server].
type Option func(*Server)

// WithHealth mounts /healthz and /readyz backed by h.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithServerMetrics overrides the metrics sink used by the request
// middleware. Defaults to [observe.DefaultMetrics].
func WithServerMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMetricsEndpoint serves h on GET /metrics.
func WithMetricsEndpoint(h http.Handler) Option {
	return func(s *Server) { s.scrape = h }
}

// New builds the route table.
func New(sessions *Manager, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		mux:      http.NewServeMux(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.health == nil {
		s.health = health.New()
	}

	s.mux.HandleFunc("POST /v1/sessions", s.handleCreate)
	s.mux.HandleFunc("GET /v1/sessions/{id}", withSession(s.handleGet))
	s.mux.HandleFunc("DELETE /v1/sessions/{id}", withSession(s.handleDelete))
	s.mux.HandleFunc("PUT /v1/sessions/{id}/reference", withSession(s.handleReference))
	s.mux.HandleFunc("GET /v1/sessions/{id}/reference.wav", withSession(s.handleReferenceAudio))
	s.mux.HandleFunc("POST /v1/sessions/{id}/attempt", withSession(s.handleAttempt))
	s.mux.HandleFunc("POST /v1/sessions/{id}/transcription", withSession(s.handleTranscription))
	s.mux.HandleFunc("POST /v1/sessions/{id}/assessment", withSession(s.handleAssessment))
	s.health.Register(s.mux)
	if s.scrape != nil {
		s.mux.Handle("GET /metrics", s.scrape)
	}
	return s
}

// withSession tags the request context with the {id} wildcard so stage
// spans and log lines name the session.
func withSession(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h(w, r.WithContext(observe.WithSessionID(r.Context(), r.PathValue("id"))))
	}
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return observe.Middleware(s.metrics)(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	slog.Info("practice API listening", "addr", addr)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: listen %q: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessions.Create(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	observe.Logger(r.Context()).Debug("session created", "session_id", id)
	w.Header().Set("Location", "/v1/sessions/"+id)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var snap assess.Snapshot
	err := s.sessions.With(id, func(sess *assess.Session) error {
		snap = sess.Snapshot()
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotView(id, snap))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type referenceRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	var body referenceRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReferenceBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, r, &assess.InputError{Stage: assess.StageReference, Cause: fmt.Errorf("decode body: %w", err)})
		return
	}

	id := r.PathValue("id")
	var snap assess.Snapshot
	err := s.sessions.With(id, func(sess *assess.Session) error {
		if err := sess.SetReference(r.Context(), body.Text); err != nil {
			return err
		}
		snap = sess.Snapshot()
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotView(id, snap))
}

func (s *Server) handleReferenceAudio(w http.ResponseWriter, r *http.Request) {
	var ref audio.Waveform
	err := s.sessions.With(r.PathValue("id"), func(sess *assess.Session) error {
		if sess.State() < assess.StateReferenceReady {
			return &assess.SequenceError{Stage: assess.StageReference, State: sess.State(), Cause: assess.ErrInvalidTransition}
		}
		ref = sess.Snapshot().ReferenceAudio
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := audio.EncodeWAV(ref)
	if err != nil {
		writeError(w, r, fmt.Errorf("server: encode reference: %w", err))
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleAttempt(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAttemptBytes))
	if err != nil {
		writeError(w, r, &assess.InputError{Stage: assess.StageRecord, Cause: fmt.Errorf("read body: %w", err)})
		return
	}
	rec, err := audio.DecodeWAV(data)
	if err != nil {
		writeError(w, r, &assess.InputError{Stage: assess.StageRecord, Cause: err})
		return
	}

	id := r.PathValue("id")
	var snap assess.Snapshot
	err = s.sessions.With(id, func(sess *assess.Session) error {
		if err := sess.RecordAttempt(rec); err != nil {
			return err
		}
		snap = sess.Snapshot()
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotView(id, snap))
}

func (s *Server) handleTranscription(w http.ResponseWriter, r *http.Request) {
	var text string
	err := s.sessions.With(r.PathValue("id"), func(sess *assess.Session) error {
		var err error
		text, err = sess.TranscribeAttempt(r.Context())
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"transcript": text})
}

func (s *Server) handleAssessment(w http.ResponseWriter, r *http.Request) {
	var res *assess.Assessment
	err := s.sessions.With(r.PathValue("id"), func(sess *assess.Session) error {
		var err error
		res, err = sess.ScoreAndAnalyze(r.Context())
		return err
	})
	var anErr *assess.AnalysisError
	if err != nil && (res == nil || !errors.As(err, &anErr)) {
		writeError(w, r, err)
		return
	}
	if res.FeedbackErr != nil {
		observe.Logger(r.Context()).Warn("feedback unavailable, returning score only", "err", res.FeedbackErr)
	}
	writeJSON(w, http.StatusOK, newAssessmentView(res))
}
