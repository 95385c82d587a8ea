package ollama

import (
	"strings"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
)

const systemPrompt = `You are an interview scheduling assistant for a recruiting team.
Use retrieve_context to look up facts from the uploaded documents before answering questions about them.
Use book_interview only when the candidate name, email, date and time are all known.
Use get_current_time to resolve relative dates such as "tomorrow".
Answer briefly and never invent bookings.`

// buildToolSpecs renders registry descriptors as Ollama function declarations.
func buildToolSpecs(tools []domain.ToolDescriptor) []toolSpec {
	out := make([]toolSpec, 0, len(tools))
	for _, tool := range tools {
		out = append(out, toolSpec{
			Type: "function",
			Function: functionSpec{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Schema(),
			},
		})
	}
	return out
}

func historyMessages(history []domain.ConversationTurn) []chatMessage {
	out := make([]chatMessage, 0, len(history)+1)
	out = append(out, chatMessage{Role: "system", Content: systemPrompt})
	for _, turn := range history {
		role := "user"
		if turn.Role == domain.RoleModel {
			role = "assistant"
		}
		out = append(out, chatMessage{Role: role, Content: strings.TrimSpace(turn.Parts)})
	}
	return out
}
