package store

import "time"

type ChatRepository interface {
	Ping() error
	CreateConversation(params CreateConversationParams) (Conversation, error)
	GetConversation(id string) (Conversation, error)
	ListConversations(userId string) ([]Conversation, error)
	ConversationIdsForUser(userId string) ([]string, error)
	IsParticipant(conversationId, userId string) bool
	CreateMessage(params CreateMessageParams) (Message, error)
	ListMessages(conversationId string, before time.Time, limit int) ([]Message, error)
	MarkConversationRead(conversationId, userId string) error
}
