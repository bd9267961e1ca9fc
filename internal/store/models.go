package store

import (
	"database/sql"
	"time"
)

type Conversation struct {
	Id            string         `db:"id"`
	ListingId     sql.NullString `db:"listing_id"`
	LastMessageAt time.Time      `db:"last_message_at"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	// Loaded relative to the requesting user.
	UnreadCount  int           `db:"unread_count"`
	Participants []Participant `db:"-"`
	LastMessage  *Message      `db:"-"`
}

type Participant struct {
	ConversationId string       `db:"conversation_id"`
	UserId         string       `db:"user_id"`
	Username       string       `db:"username"`
	UnreadCount    int          `db:"unread_count"`
	LastReadAt     sql.NullTime `db:"last_read_at"`
}

type Message struct {
	Id             string    `db:"id"`
	ConversationId string    `db:"conversation_id"`
	SenderId       string    `db:"sender_id"`
	Content        string    `db:"content"`
	Read           bool      `db:"read"`
	CreatedAt      time.Time `db:"created_at"`
}

type CreateConversationParams struct {
	ListingId    string
	Participants []Participant
}

type CreateMessageParams struct {
	ConversationId string
	SenderId       string
	Content        string
}
