package model

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one appended message in a conversation. Turns are never
// mutated after append. Sources are only present on assistant turns.
type ConversationTurn struct {
	Role      string             `json:"role"`
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"created_at"`
	Sources   []RetrievedSnippet `json:"sources,omitempty"`
}

type Conversation struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	CreatedAt time.Time          `json:"created_at"`
	Turns     []ConversationTurn `json:"turns"`
}

// ConversationSummary is the listing projection. Title is derived once from
// the first user turn.
type ConversationSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	TurnCount   int       `json:"turn_count"`
	LastUpdated time.Time `json:"last_updated"`
}
