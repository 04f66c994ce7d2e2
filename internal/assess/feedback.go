package assess

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/elocute/internal/observe"
	"github.com/MrWong99/elocute/internal/similarity"
	"github.com/MrWong99/elocute/pkg/provider/llm"
)

// SystemPrompt frames every feedback request.
const SystemPrompt = "You are a helpful assistant that analyzes English pronunciation."

// DefaultFeedbackLanguage is the language feedback is written in unless
// configured otherwise.
const DefaultFeedbackLanguage = "English"

// FeedbackGenerator asks an [llm.Provider] for a prose critique of one
// attempt. The reply is passed through verbatim apart from trimming.
type FeedbackGenerator struct {
	provider    llm.Provider
	name        string
	language    string
	temperature float64
	maxTokens   int
	metrics     *observe.Metrics
}

// GeneratorOption configures a [FeedbackGenerator].
type GeneratorOption func(*FeedbackGenerator)

// WithFeedbackLanguage sets the natural language the critique is written in.
// Blank values are ignored.
func WithFeedbackLanguage(lang string) GeneratorOption {
	return func(f *FeedbackGenerator) {
		if lang = strings.TrimSpace(lang); lang != "" {
			f.language = lang
		}
	}
}

// WithTemperature sets the sampling temperature. Zero keeps the provider
// default.
func WithTemperature(t float64) GeneratorOption {
	return func(f *FeedbackGenerator) { f.temperature = t }
}

// WithMaxTokens caps the reply length. Zero keeps the provider default.
func WithMaxTokens(n int) GeneratorOption {
	return func(f *FeedbackGenerator) { f.maxTokens = n }
}

// WithGeneratorName sets the provider name reported in metrics.
func WithGeneratorName(name string) GeneratorOption {
	return func(f *FeedbackGenerator) { f.name = name }
}

// WithGeneratorMetrics overrides the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithGeneratorMetrics(m *observe.Metrics) GeneratorOption {
	return func(f *FeedbackGenerator) { f.metrics = m }
}

// NewFeedbackGenerator returns a generator backed by p. A nil p is accepted;
// every call then fails with an [AnalysisError].
func NewFeedbackGenerator(p llm.Provider, opts ...GeneratorOption) *FeedbackGenerator {
	f := &FeedbackGenerator{provider: p, name: "llm", language: DefaultFeedbackLanguage}
	for _, o := range opts {
		o(f)
	}
	if f.metrics == nil {
		f.metrics = observe.DefaultMetrics()
	}
	return f
}

// Language returns the configured feedback language.
func (f *FeedbackGenerator) Language() string { return f.language }

// Analyze critiques transcript against referenceText given their similarity
// score. It fails with an [AnalysisError] when the provider is missing,
// errors, or replies with blank text; no substitute text is ever produced.
func (f *FeedbackGenerator) Analyze(ctx context.Context, referenceText, transcript string, score float64) (string, error) {
	return f.analyze(ctx, referenceText, transcript, score, similarity.AlignWords(referenceText, transcript))
}

func (f *FeedbackGenerator) analyze(ctx context.Context, referenceText, transcript string, score float64, al similarity.Alignment) (text string, err error) {
	if f.provider == nil {
		return "", &AnalysisError{Stage: StageAnalysis, Cause: ErrCapabilityUnavailable}
	}

	ctx, span := observe.StartStage(ctx, observe.SpanAnalyze, observe.Attr("provider", f.name))
	defer func() { observe.EndStage(span, err) }()

	req := llm.CompletionRequest{
		SystemPrompt: SystemPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: BuildPrompt(referenceText, transcript, score, al, f.language),
		}},
		Temperature: f.temperature,
		MaxTokens:   f.maxTokens,
	}

	start := time.Now()
	resp, err := f.provider.Complete(ctx, req)
	f.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("provider", f.name)))
	if err != nil {
		f.metrics.RecordProviderRequest(ctx, f.name, "llm", "error")
		f.metrics.RecordProviderError(ctx, f.name, "llm")
		observe.Logger(ctx).Warn("feedback generation failed", "provider", f.name, "err", err)
		return "", &AnalysisError{Stage: StageAnalysis, Cause: err}
	}
	f.metrics.RecordProviderRequest(ctx, f.name, "llm", "ok")

	if resp != nil {
		text = strings.TrimSpace(resp.Content)
	}
	if text == "" {
		return "", &AnalysisError{Stage: StageAnalysis, Cause: ErrEmptyFeedback}
	}
	return text, nil
}

// BuildPrompt renders the user message for one feedback request.
func BuildPrompt(referenceText, transcript string, score float64, al similarity.Alignment, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reference text: %s\n", referenceText)
	fmt.Fprintf(&b, "Recognized text: %s\n", transcript)
	fmt.Fprintf(&b, "Text similarity: %.2f%%\n\n", score)

	b.WriteString("Word alignment:\n")
	writeAlignment(&b, al)

	b.WriteString("\nCompare the two texts above and analyze how accurately the reference was pronounced. Consider:\n")
	b.WriteString("1. Missing or added words\n")
	b.WriteString("2. Pronunciation differences, inferred only from where the recognized text diverges (no audio is available)\n")
	b.WriteString("3. Stress and intonation problems suggested by the text\n")
	b.WriteString("4. Overall fluency\n\n")
	fmt.Fprintf(&b, "Write the analysis in %s and include concrete advice for improvement.\n", language)
	return b.String()
}

func writeAlignment(b *strings.Builder, al similarity.Alignment) {
	if al.Exact() {
		b.WriteString("- the recognized text matches the reference word for word\n")
		return
	}
	if missing := al.Missing(); len(missing) > 0 {
		fmt.Fprintf(b, "- missing: %s\n", strings.Join(missing, ", "))
	}
	if added := al.Added(); len(added) > 0 {
		fmt.Fprintf(b, "- added: %s\n", strings.Join(added, ", "))
	}
	for _, e := range al.Edits {
		if e.Op != similarity.OpReplace {
			continue
		}
		for _, p := range e.Pairs {
			note := ""
			if p.SoundsAlike {
				note = " (sounds alike)"
			}
			fmt.Fprintf(b, "- %q heard as %q%s\n", p.Reference, p.Spoken, note)
		}
		if extra := e.Reference[len(e.Pairs):]; len(extra) > 0 {
			fmt.Fprintf(b, "- not recognized: %s\n", strings.Join(extra, ", "))
		}
		if extra := e.Spoken[len(e.Pairs):]; len(extra) > 0 {
			fmt.Fprintf(b, "- extra words heard: %s\n", strings.Join(extra, ", "))
		}
	}
}
