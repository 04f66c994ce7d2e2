package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MrWong99/elocute/internal/assess"
	"github.com/MrWong99/elocute/internal/config"
	"github.com/MrWong99/elocute/internal/observe"
	"github.com/MrWong99/elocute/pkg/audio/capture"
	"github.com/MrWong99/elocute/pkg/audio/playback"
)

// runPractice runs one full practice round: synthesize the reference, record
// the attempt, transcribe, score and analyze. The report goes to stdout.
func runPractice(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("practice", flag.ContinueOnError)
	text := fs.String("text", "", "reference sentence to practise (required)")
	input := fs.String("input", "", "WAV file to use as the attempt instead of the capture device")
	play := fs.Bool("play", false, "play the reference audio before recording")
	wait := fs.Int("countdown", 5, "seconds to count down before recording starts, 0 to start at once")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*text) == "" {
		fmt.Fprintln(os.Stderr, "elocute practice: -text is required")
		fs.Usage()
		return 2
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	metrics := observe.DefaultMetrics()
	ps, err := buildProviders(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	var device capture.Device
	if *input != "" {
		device, err = capture.NewFileDevice(*input)
	} else {
		device, err = buildCapture(cfg.Practice.Capture, reg)
	}
	if err != nil {
		slog.Error("failed to build capture device", "err", err)
		return 1
	}
	if device == nil {
		fmt.Fprintln(os.Stderr, "elocute practice: no capture device configured; set practice.capture or pass -input")
		return 1
	}
	if c, ok := device.(io.Closer); ok {
		defer c.Close()
	}

	sess := newSessionFactory(cfg.Practice, ps, device, metrics)()

	var player playback.Player
	if *play {
		sp, err := playback.NewSpeaker(0)
		if err != nil {
			slog.Warn("audio output unavailable, skipping playback", "err", err)
		} else {
			player = sp
		}
	}

	res, err := practiceRound(ctx, sess, *text, player, *wait, os.Stdout)
	if res != nil {
		printReport(os.Stdout, sess.Snapshot(), res)
	}
	if err != nil {
		var anErr *assess.AnalysisError
		if errors.As(err, &anErr) {
			return 0
		}
		if errors.Is(err, context.Canceled) {
			slog.Info("practice interrupted")
			return 130
		}
		slog.Error("practice failed", "err", err)
		return 1
	}
	return 0
}

// practiceRound drives sess through one round. Progress lines go to out. A
// non-nil Assessment is returned together with an [assess.AnalysisError]
// when only the feedback failed.
func practiceRound(ctx context.Context, sess *assess.Session, text string, player playback.Player, wait int, out io.Writer) (*assess.Assessment, error) {
	if err := sess.SetReference(ctx, text); err != nil {
		return nil, err
	}
	if player != nil {
		if err := player.Play(ctx, sess.Snapshot().ReferenceAudio); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("reference playback failed", "err", err)
		}
	}

	if err := countdown(ctx, out, wait); err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Recording for %s ...\n", sess.CaptureDuration())
	if err := sess.Record(ctx); err != nil {
		return nil, err
	}
	if _, err := sess.TranscribeAttempt(ctx); err != nil {
		return nil, err
	}
	return sess.ScoreAndAnalyze(ctx)
}

// countdownTick is the pause between countdown numbers.
var countdownTick = time.Second

// countdown prints from, from-1, ... 1 one tick apart so the learner can get
// ready before the microphone opens.
func countdown(ctx context.Context, out io.Writer, from int) error {
	if from <= 0 {
		return nil
	}
	fmt.Fprint(out, "Get ready:")
	t := time.NewTicker(countdownTick)
	defer t.Stop()
	for n := from; n > 0; n-- {
		fmt.Fprintf(out, " %d", n)
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()
		case <-t.C:
		}
	}
	fmt.Fprintln(out)
	return nil
}

// printReport writes the human-readable result of a round.
func printReport(w io.Writer, snap assess.Snapshot, res *assess.Assessment) {
	fmt.Fprintln(w, "────────────────────────────────────────")
	fmt.Fprintf(w, "Reference : %s\n", snap.ReferenceText)
	fmt.Fprintf(w, "Heard     : %s\n", snap.Transcript)
	fmt.Fprintf(w, "Similarity: %.2f%%\n", res.Score)

	if missing := res.Alignment.Missing(); len(missing) > 0 {
		fmt.Fprintf(w, "Missing   : %s\n", strings.Join(missing, ", "))
	}
	if added := res.Alignment.Added(); len(added) > 0 {
		fmt.Fprintf(w, "Added     : %s\n", strings.Join(added, ", "))
	}
	for _, s := range res.Alignment.Substitutions() {
		hint := ""
		if s.SoundsAlike {
			hint = " (sounds alike)"
		}
		fmt.Fprintf(w, "Heard as  : %q -> %q%s\n", s.Reference, s.Spoken, hint)
	}

	fmt.Fprintln(w, "────────────────────────────────────────")
	if res.FeedbackErr != nil {
		fmt.Fprintf(w, "Feedback unavailable: %v\n", res.FeedbackErr)
		return
	}
	fmt.Fprintln(w, res.Feedback)
}
