package chat

import "strings"

const (
	ChatRoleSystem   = "system"   // Instructions for the generator, never stored in the turn log
	ChatRolePlayer   = "player"   // Choice text picked by the player
	ChatRoleNarrator = "narrator" // Narrative text produced by the generator
)

// ChatMessage is a single exchange entry in the turn log.
// The turn log is sent back to the generator as conversational context.
type ChatMessage struct {
	Role    string `json:"role"` // "player", "narrator"
	Content string `json:"content"`
}

// APIRole maps a role to the user/assistant/system vocabulary that chat
// completion APIs expect.
func (m ChatMessage) APIRole() string {
	switch m.Role {
	case ChatRolePlayer:
		return "user"
	case ChatRoleNarrator:
		return "assistant"
	default:
		return "system"
	}
}

// CountExchanges returns the number of completed player/narrator pairs in the log.
func CountExchanges(log []ChatMessage) int {
	return len(log) / 2
}

// FormatTranscript renders a turn log as plain text, one "Role: content" line per entry.
func FormatTranscript(log []ChatMessage) string {
	var b strings.Builder
	for i, msg := range log {
		if i > 0 {
			b.WriteString("\n")
		}
		switch msg.Role {
		case ChatRolePlayer:
			b.WriteString("You: ")
		default:
			b.WriteString("Narrator: ")
		}
		b.WriteString(msg.Content)
	}
	return b.String()
}
