package ai

import (
	"context"

	"ncapportal/pkg/domain"
)

// ChatGenerator produces an assistant reply for a conversation that ends in a
// user message. All providers (Gemini, OpenAI-compatible servers such as vLLM
// or Ollama's /v1 endpoint) implement this interface.
type ChatGenerator interface {
	GenerateChat(ctx context.Context, systemPrompt string, messages []domain.ChatMessage) (string, error)
}
