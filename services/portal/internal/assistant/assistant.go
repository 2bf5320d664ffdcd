// Package assistant answers citizen questions about the No Contact
// Apprehension Policy through a generative-AI backend.
package assistant

import (
	"context"
	"errors"
	"strings"

	"ncapportal/pkg/ai"
	"ncapportal/pkg/domain"
)

// ErrRetryable replaces any provider failure. The provider's own error text
// is logged server-side, never shown to the citizen.
var ErrRetryable = errors.New("the assistant is unavailable right now, please try again later")

// ErrBadConversation indicates a malformed conversation history.
var ErrBadConversation = errors.New("conversation must end with a user message")

const systemPrompt = `You are an AI assistant for the NCAP (No Contact Apprehension Policy) system in the Philippines. You are an expert in Philippine traffic laws and regulations, including Republic Act No. 4136 (Land Transportation and Traffic Code), RA 10913 (Anti-Distracted Driving Act), RA 8750 (Seat Belts Use Act), and RA 10586 (Anti-Drunk and Drugged Driving Act).

You can explain: how NCAP cameras capture violations and how evidence is verified; the violation types NCAP covers (beating the red light, illegal parking, over-speeding, illegal U-turns, counterflow, no seatbelt) and their fine amounts; payment methods and deadlines; the appeal process, valid grounds for appeal, required documentation, and appeal status tracking; LTO vehicle registration and driver's license procedures.

Be specific about laws and penalties, explain procedures clearly, and acknowledge limitations — when unsure, suggest contacting the LTO, MMDA, or the local traffic enforcement office directly.

IMPORTANT: Always provide a short, summarized answer (2-3 sentences max, no long explanations) unless the user specifically asks for more details.`

const maxHistory = 20

// Assistant is the advisory chat service.
type Assistant struct {
	generator ai.ChatGenerator
}

func New(generator ai.ChatGenerator) *Assistant {
	return &Assistant{generator: generator}
}

// Reply validates the conversation and returns the assistant's answer.
// Histories are truncated to the most recent turns before forwarding.
func (a *Assistant) Reply(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	messages = sanitize(messages)
	if len(messages) == 0 || messages[len(messages)-1].Role != "user" {
		return "", ErrBadConversation
	}
	if len(messages) > maxHistory {
		messages = messages[len(messages)-maxHistory:]
	}
	reply, err := a.generator.GenerateChat(ctx, systemPrompt, messages)
	if err != nil {
		return "", errors.Join(ErrRetryable, err)
	}
	return reply, nil
}

// sanitize drops empty turns and anything with an unknown role.
func sanitize(messages []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(messages))
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case "user", "assistant":
			out = append(out, domain.ChatMessage{Role: m.Role, Content: content})
		}
	}
	return out
}
