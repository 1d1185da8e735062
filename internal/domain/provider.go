package domain

import "context"

// Provider is a single AI completion backend.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Responder turns a prompt into a short reply. It never fails: when every
// provider is down it answers with a fixed apology.
type Responder interface {
	Respond(ctx context.Context, prompt string, maxTokens int) string
}

// Transcriber turns audio into text, degrading to a placeholder on failure.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) string
}

type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	// Temperature is sent only when set; zero is a valid value.
	Temperature *float64
}

type ChatResponse struct {
	Content   string
	Usage     Usage
	LatencyMs int64
}

type Message struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
