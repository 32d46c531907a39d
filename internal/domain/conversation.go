package domain

import "time"

// ConversationMessage is one turn of an advisor chat.
type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
