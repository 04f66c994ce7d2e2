package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/elocute/pkg/provider/llm"
)

// ── convertMessage ────────────────────────────────────────────────────────────

// TestConvertMessage_Roles checks that role and content are carried through.
func TestConvertMessage_Roles(t *testing.T) {
	for _, role := range []string{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant} {
		t.Run(role, func(t *testing.T) {
			got := convertMessage(llm.Message{Role: role, Content: "Hello!"})
			if got.Role != role {
				t.Errorf("expected role %q, got %q", role, got.Role)
			}
			if got.ContentString() != "Hello!" {
				t.Errorf("expected content %q, got %q", "Hello!", got.ContentString())
			}
		})
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

// TestBuildParams_SystemPromptFirst checks the system prompt is prepended.
func TestBuildParams_SystemPromptFirst(t *testing.T) {
	p := &Provider{model: "claude-3-5-haiku-latest"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You analyse pronunciation.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "Compare."}},
		Temperature:  0.3,
		MaxTokens:    512,
	})
	if params.Model != "claude-3-5-haiku-latest" {
		t.Errorf("Model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first role = %q, want system", params.Messages[0].Role)
	}
	if params.Temperature == nil || *params.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 512 {
		t.Errorf("MaxTokens = %v, want 512", params.MaxTokens)
	}
}

// TestBuildParams_ZeroValuesOmitted checks that unset knobs stay nil.
func TestBuildParams_ZeroValuesOmitted(t *testing.T) {
	p := &Provider{model: "llama3"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
	})
	if params.Temperature != nil || params.MaxTokens != nil {
		t.Errorf("expected nil Temperature and MaxTokens, got %v %v", params.Temperature, params.MaxTokens)
	}
	if len(params.Messages) != 1 {
		t.Errorf("expected 1 message, got %d", len(params.Messages))
	}
}

// ── Constructor ───────────────────────────────────────────────────────────────

func TestNew_EmptyProviderName(t *testing.T) {
	if _, err := New("", "gpt-4o"); err == nil {
		t.Fatal("expected error for empty providerName")
	}
}

func TestNew_EmptyModel(t *testing.T) {
	if _, err := New("openai", ""); err == nil {
		t.Fatal("expected error for empty model")
	}
}

func TestNew_UnsupportedProvider(t *testing.T) {
	if _, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy")); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestNew_OpenAI_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New("openai", "gpt-4o"); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

// TestConvenienceConstructors checks the convenience constructors delegate correctly.
func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (*Provider, error)
	}{
		{"NewAnthropic", func() (*Provider, error) {
			return NewAnthropic("claude-3-5-haiku-latest", anyllmlib.WithAPIKey("sk-ant-test"))
		}},
		{"NewOllama", func() (*Provider, error) { return NewOllama("llama3") }},
		{"NewLlamaCpp", func() (*Provider, error) { return NewLlamaCpp("llama3") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.fn()
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tt.name, err)
			}
			if p == nil {
				t.Fatalf("%s: expected non-nil provider", tt.name)
			}
		})
	}
}
