package chat

import "github.com/google/uuid"

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one transcript entry. The ID is assigned at creation and never
// reused. Assistant content starts empty and grows only through the
// Reconciler's in-order appends until the exchange resolves.
type Message struct {
	ID      string   `json:"id"`
	Role    Role     `json:"role"`
	Content string   `json:"content"`
	Sources []string `json:"sources,omitempty"`
}

func newUserMessage(text string) Message {
	return Message{ID: uuid.New().String(), Role: RoleUser, Content: text}
}

func newAssistantPlaceholder() Message {
	return Message{ID: uuid.New().String(), Role: RoleAssistant}
}
