package provider

import (
	"context"
	"errors"

	"github.com/ClareAI/astra-voice-webhook/internal/domain"
)

// ProviderType represents the type of AI model provider
type ProviderType string

const (
	ProviderTypeOpenAI ProviderType = "openai"
)

// String returns the string representation of ProviderType
func (pt ProviderType) String() string {
	return string(pt)
}

// ErrEmptyCompletion is returned when the backend answers without any text
var ErrEmptyCompletion = errors.New("model returned no completion")

// ChatRequest is one round trip to a chat-completion backend
type ChatRequest struct {
	SystemPrompt string
	History      []domain.Turn
	UserInput    string
}

// ChatCompleter produces an assistant reply for a conversation
type ChatCompleter interface {
	// Complete blocks for the network round trip and returns the trimmed reply text
	Complete(ctx context.Context, req ChatRequest) (string, error)

	// GetProviderType returns the type of the provider
	GetProviderType() ProviderType
}
