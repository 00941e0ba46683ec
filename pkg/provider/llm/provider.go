// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (OpenAI, Anthropic, a
// local Ollama instance, ...) and exposes a single completion call so the
// suggestion engine can ask for replacement candidates without coupling to
// any specific SDK.
//
// Implementors must be safe for concurrent use and must return promptly when
// the supplied context is cancelled.
package llm

import "context"

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single message in a conversation with the model.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history.
	Messages []Message

	// SystemPrompt is an optional instruction sent before Messages as a
	// system-role message.
	SystemPrompt string

	// Temperature controls output randomness. Zero uses the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means no cap.
	MaxTokens int
}

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	// Content is the text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Model returns the model name requests are sent to.
	Model() string
}
