package assess

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/elocute/internal/similarity"
	"github.com/MrWong99/elocute/pkg/provider/llm"
	llmmock "github.com/MrWong99/elocute/pkg/provider/llm/mock"
)

func TestBuildPrompt(t *testing.T) {
	ref := "The quick brown fox"
	heard := "the quick brown"
	al := similarity.AlignWords(ref, heard)
	p := BuildPrompt(ref, heard, 88.2352941, al, "Korean")

	for _, want := range []string{
		"Reference text: The quick brown fox",
		"Recognized text: the quick brown",
		"Text similarity: 88.24%",
		"- missing: fox",
		"Missing or added words",
		"Pronunciation differences",
		"Stress and intonation",
		"Overall fluency",
		"Write the analysis in Korean",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestBuildPrompt_Substitutions(t *testing.T) {
	ref := "I think their plan works"
	heard := "I sink there plan works"
	p := BuildPrompt(ref, heard, 90, similarity.AlignWords(ref, heard), "English")

	if !strings.Contains(p, `"think" heard as "sink"`) {
		t.Errorf("prompt missing think/sink substitution:\n%s", p)
	}
	if !strings.Contains(p, `"their" heard as "there" (sounds alike)`) {
		t.Errorf("prompt missing homophone hint:\n%s", p)
	}
}

func TestBuildPrompt_ExactMatch(t *testing.T) {
	p := BuildPrompt("Hello world.", "hello world", 100, similarity.AlignWords("Hello world.", "hello world"), "English")
	if !strings.Contains(p, "matches the reference word for word") {
		t.Errorf("prompt should note exact match:\n%s", p)
	}
}

func TestFeedbackGenerator_Analyze(t *testing.T) {
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "\n  Good job, but you dropped \"fox\".  \n"}}
	f := NewFeedbackGenerator(p, WithGeneratorMetrics(testMetrics(t)), WithTemperature(0.4), WithMaxTokens(300))

	got, err := f.Analyze(context.Background(), "the quick brown fox", "the quick brown", 88.24)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got != `Good job, but you dropped "fox".` {
		t.Errorf("feedback = %q", got)
	}

	if p.CallCount() != 1 {
		t.Fatalf("call count = %d, want 1", p.CallCount())
	}
	req := p.CompleteCalls[0].Req
	if req.SystemPrompt != SystemPrompt {
		t.Errorf("system prompt = %q", req.SystemPrompt)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != llm.RoleUser {
		t.Fatalf("messages = %+v, want one user message", req.Messages)
	}
	if !strings.Contains(req.Messages[0].Content, "Write the analysis in English") {
		t.Errorf("default language not applied:\n%s", req.Messages[0].Content)
	}
	if req.Temperature != 0.4 || req.MaxTokens != 300 {
		t.Errorf("temperature/max tokens = %v/%d, want 0.4/300", req.Temperature, req.MaxTokens)
	}
}

func TestFeedbackGenerator_Language(t *testing.T) {
	if got := NewFeedbackGenerator(nil, WithFeedbackLanguage("  ")).Language(); got != DefaultFeedbackLanguage {
		t.Errorf("blank language = %q, want default", got)
	}
	if got := NewFeedbackGenerator(nil, WithFeedbackLanguage("Korean")).Language(); got != "Korean" {
		t.Errorf("language = %q, want Korean", got)
	}
}

func TestFeedbackGenerator_Errors(t *testing.T) {
	boom := errors.New("rate limited")
	tests := []struct {
		name      string
		provider  llm.Provider
		wantCause error
	}{
		{"no provider", nil, ErrCapabilityUnavailable},
		{"provider error", &llmmock.Provider{CompleteErr: boom}, boom},
		{"nil response", &llmmock.Provider{}, ErrEmptyFeedback},
		{"blank reply", &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "   "}}, ErrEmptyFeedback},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFeedbackGenerator(tc.provider, WithGeneratorMetrics(testMetrics(t)))
			got, err := f.Analyze(context.Background(), "a b", "a", 66.67)
			if got != "" {
				t.Errorf("feedback = %q, want empty", got)
			}
			var aErr *AnalysisError
			if !errors.As(err, &aErr) {
				t.Fatalf("error %v is not an AnalysisError", err)
			}
			if !errors.Is(err, tc.wantCause) {
				t.Errorf("error %v does not wrap %v", err, tc.wantCause)
			}
		})
	}
}
