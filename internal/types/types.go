package types

import (
	"time"
)

type User struct {
	Id       string `json:"id"`
	Username string `json:"username,omitempty"`
}

// Conversation is the consumer-facing view of a buyer/seller thread:
// participants, the latest message and the unread counter for the
// requesting user.
type Conversation struct {
	Id           string        `json:"id"`
	ListingId    string        `json:"listing_id,omitempty"`
	Participants []User        `json:"participants"`
	LastMessage  *MessageEvent `json:"last_message,omitempty"`
	UnreadCount  int           `json:"unread_count"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// MessageEvent is the payload broadcast to a conversation's room. It is
// built from the persisted record, never ahead of it.
type MessageEvent struct {
	Id             string    `json:"id"`
	ConversationId string    `json:"conversation_id"`
	SenderId       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	Read           bool      `json:"read"`
}

type TypingSignal struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

type ReadReceipt struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
}
