package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/elocute/pkg/provider/llm"
)

// TestConvertMessage_Roles checks each supported role maps to the right union arm.
func TestConvertMessage_Roles(t *testing.T) {
	tests := []struct {
		role  string
		check func(t *testing.T, m llm.Message)
	}{
		{llm.RoleSystem, func(t *testing.T, m llm.Message) {
			p, err := convertMessage(m)
			if err != nil || p.OfSystem == nil {
				t.Fatalf("expected OfSystem, err=%v", err)
			}
		}},
		{llm.RoleUser, func(t *testing.T, m llm.Message) {
			p, err := convertMessage(m)
			if err != nil || p.OfUser == nil {
				t.Fatalf("expected OfUser, err=%v", err)
			}
		}},
		{llm.RoleAssistant, func(t *testing.T, m llm.Message) {
			p, err := convertMessage(m)
			if err != nil || p.OfAssistant == nil {
				t.Fatalf("expected OfAssistant, err=%v", err)
			}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.role, func(t *testing.T) {
			tc.check(t, llm.Message{Role: tc.role, Content: "hi"})
		})
	}
}

// TestConvertMessage_UnknownRole checks that unknown roles are rejected.
func TestConvertMessage_UnknownRole(t *testing.T) {
	if _, err := convertMessage(llm.Message{Role: "tool", Content: "x"}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

// TestNew_MissingAPIKey ensures constructor rejects an empty API key.
func TestNew_MissingAPIKey(t *testing.T) {
	if _, err := New("", "gpt-4o"); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

// TestNew_MissingModel ensures constructor rejects an empty model.
func TestNew_MissingModel(t *testing.T) {
	if _, err := New("sk-test", ""); err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_Options checks that optional settings are accepted without error.
func TestNew_Options(t *testing.T) {
	_, err := New("sk-test", "gpt-4o",
		WithBaseURL("https://custom.example.com"),
		WithOrganization("org-123"),
	)
	if err != nil {
		t.Fatalf("unexpected error with valid options: %v", err)
	}
}

// TestComplete_RoundTrip exercises Complete against a fake chat endpoint.
func TestComplete_RoundTrip(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Temperature float64 `json:"temperature"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-3.5-turbo",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Nice attempt."}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
		}`))
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-3.5-turbo", WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "You analyse pronunciation.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "Compare these."}},
		Temperature:  0.2,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Nice attempt." {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 13 {
		t.Errorf("TotalTokens = %d, want 13", resp.Usage.TotalTokens)
	}
	if got.Model != "gpt-3.5-turbo" {
		t.Errorf("model = %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if got.Temperature != 0.2 {
		t.Errorf("temperature = %v, want 0.2", got.Temperature)
	}
}

// TestComplete_NoMessages checks that an empty request fails before any I/O.
func TestComplete_NoMessages(t *testing.T) {
	p, _ := New("sk-test", "gpt-4o", WithBaseURL("http://127.0.0.1:1/"))
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{}); err == nil {
		t.Fatal("expected error for empty messages")
	}
}
