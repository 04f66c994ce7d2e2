// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (e.g., OpenAI, Anthropic,
// or a local Ollama instance) and exposes a single blocking completion call.
// elocute only needs one prose reply per assessment, so streaming and tool
// calling are not part of the contract.
//
// Implementors must be safe for concurrent use and must return promptly when
// ctx is cancelled.
package llm

import "context"

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	//
	// Returns an error if the request fails or if ctx is cancelled before
	// the completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
