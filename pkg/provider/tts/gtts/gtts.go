// Package gtts synthesizes speech with Google Translate voices through the
// gtts-cli command, converting its MP3 output to PCM with ffmpeg. No API key
// is needed, but both binaries must be on PATH and the host must be online.
//
// Requests are rate limited because the upstream endpoint blocks clients
// that send too many in a short time.
package gtts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrWong99/elocute/pkg/audio"
	"github.com/MrWong99/elocute/pkg/provider/tts"
)

var _ tts.Synthesizer = (*Provider)(nil)

const (
	defaultRequestsPerMinute = 50
	defaultSampleRate        = 24000
	defaultTimeout           = 30 * time.Second

	// MaxTextLength is the longest text gtts-cli is asked to speak.
	MaxTextLength = 5000
)

// ErrTextTooLong is returned for texts over [MaxTextLength] characters.
var ErrTextTooLong = errors.New("gtts: text too long")

// Runner executes name with args, feeding stdin, and returns its stdout.
type Runner func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithSlow makes gtts-cli speak slowly.
func WithSlow(slow bool) Option {
	return func(p *Provider) { p.slow = slow }
}

// WithSampleRate sets the rate ffmpeg converts to. Defaults to 24000 Hz.
func WithSampleRate(hz int) Option {
	return func(p *Provider) {
		if hz > 0 {
			p.sampleRate = hz
		}
	}
}

// WithRequestsPerMinute caps how often gtts-cli is started. Defaults to 50.
func WithRequestsPerMinute(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.requestsPerMinute = n
		}
	}
}

// WithTimeout bounds each command run. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithRunner replaces command execution, skipping the PATH lookup in [New].
func WithRunner(r Runner) Option {
	return func(p *Provider) { p.run = r }
}

// Provider implements tts.Synthesizer on top of gtts-cli and ffmpeg. It is
// safe for concurrent use.
type Provider struct {
	slow              bool
	sampleRate        int
	requestsPerMinute int
	timeout           time.Duration
	run               Runner
	limiter           *rate.Limiter
}

// New returns a Provider. Unless a [Runner] is supplied it fails when
// gtts-cli or ffmpeg cannot be found on PATH.
func New(opts ...Option) (*Provider, error) {
	p := &Provider{
		sampleRate:        defaultSampleRate,
		requestsPerMinute: defaultRequestsPerMinute,
		timeout:           defaultTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	if p.run == nil {
		for _, bin := range []string{"gtts-cli", "ffmpeg"} {
			if _, err := exec.LookPath(bin); err != nil {
				return nil, fmt.Errorf("gtts: %s not found on PATH: %w", bin, err)
			}
		}
		p.run = execRunner(p.timeout)
	}
	p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(p.requestsPerMinute)), 1)
	return p, nil
}

// Synthesize renders text through gtts-cli and decodes ffmpeg's mono 16-bit
// PCM output.
func (p *Provider) Synthesize(ctx context.Context, text, language string) (audio.Waveform, error) {
	if strings.TrimSpace(text) == "" {
		return audio.Waveform{}, errors.New("gtts: text must not be empty")
	}
	if n := len([]rune(text)); n > MaxTextLength {
		return audio.Waveform{}, fmt.Errorf("%w: %d characters (max %d)", ErrTextTooLong, n, MaxTextLength)
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return audio.Waveform{}, fmt.Errorf("gtts: rate limit wait: %w", err)
	}

	args := []string{text, "-l", lang(language)}
	if p.slow {
		args = append(args, "--slow")
	}
	args = append(args, "-o", "-")
	mp3, err := p.run(ctx, nil, "gtts-cli", args...)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("gtts: %w", err)
	}
	if len(mp3) == 0 {
		return audio.Waveform{}, errors.New("gtts: gtts-cli produced no audio")
	}

	pcm, err := p.run(ctx, mp3, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le", "-ar", strconv.Itoa(p.sampleRate), "-ac", "1",
		"pipe:1",
	)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("gtts: convert mp3: %w", err)
	}
	w := audio.Waveform{Samples: audio.PCM16ToFloat32(pcm), SampleRate: p.sampleRate}
	if err := w.Validate(); err != nil {
		return audio.Waveform{}, fmt.Errorf("gtts: %w", err)
	}
	return w, nil
}

// lang maps a language tag such as "en-GB" to the code gtts-cli expects.
func lang(language string) string {
	base, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(language)), "-")
	if base == "" {
		return "en"
	}
	return base
}

func execRunner(timeout time.Duration) Runner {
	return func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdin = bytes.NewReader(stdin)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s: %w", name, ctx.Err())
			}
			return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
		}
		return stdout.Bytes(), nil
	}
}
