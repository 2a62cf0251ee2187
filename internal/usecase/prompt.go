package usecase

import (
	"strings"

	"eternyx-relay/internal/domain"
)

// buildPromptMessages returns the fixed persona followed by the user's message
// exactly as received.
func buildPromptMessages(message string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildPersonaPrompt()},
		{Role: domain.RoleUser, Content: message},
	}
}

func buildPersonaPrompt() string {
	return strings.Join([]string{
		"You are the ETERNYX AI Security Assistant, a highly advanced AI designed to provide expert cybersecurity advice, threat analysis, and recommendations.",
		"Be concise, helpful, and always prioritize security best practices.",
		"Your responses should be professional and technical, reflecting the persona of a GPT-5 level AI.",
	}, " ")
}
