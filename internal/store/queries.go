package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/teris-io/shortid"
)

const insertParticipantQuery = "INSERT INTO conversation_participants (conversation_id, user_id, username, unread_count) " +
	"VALUES ($1, $2, $3, 0)"

func (db *PgChatRepository) CreateConversation(params CreateConversationParams) (Conversation, error) {
	if len(params.Participants) < 2 {
		return Conversation{}, fmt.Errorf("conversation requires at least two participants")
	}

	id, err := shortid.Generate()
	if err != nil {
		return Conversation{}, fmt.Errorf("generate conversation id: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	var conv Conversation
	err = tx.Get(&conv,
		"INSERT INTO conversations (id, listing_id, last_message_at, created_at, updated_at) "+
			"VALUES ($1, NULLIF($2, ''), $3, $3, $3) "+
			"RETURNING id, listing_id, last_message_at, created_at, updated_at",
		id,
		params.ListingId,
		now,
	)
	if err != nil {
		return Conversation{}, err
	}

	for _, p := range params.Participants {
		if _, err = tx.Exec(insertParticipantQuery, conv.Id, p.UserId, p.Username); err != nil {
			return Conversation{}, err
		}
		conv.Participants = append(conv.Participants, Participant{
			ConversationId: conv.Id,
			UserId:         p.UserId,
			Username:       p.Username,
		})
	}

	if err = tx.Commit(); err != nil {
		return Conversation{}, err
	}

	return conv, nil
}

func (db *PgChatRepository) GetConversation(id string) (Conversation, error) {
	var conv Conversation
	err := db.conn.Get(&conv,
		"SELECT id, listing_id, last_message_at, created_at, updated_at FROM conversations "+
			"WHERE id = $1 LIMIT 1",
		id,
	)
	if err != nil {
		return Conversation{}, err
	}

	if conv.Participants, err = db.participantsOf(conv.Id); err != nil {
		return Conversation{}, err
	}

	return conv, nil
}

// ListConversations returns the user's conversations newest-first, each with
// its participants, the latest message and the user's unread counter.
func (db *PgChatRepository) ListConversations(userId string) ([]Conversation, error) {
	var convs []Conversation
	err := db.conn.Select(&convs,
		"SELECT c.id, c.listing_id, c.last_message_at, c.created_at, c.updated_at, p.unread_count "+
			"FROM conversations c "+
			"JOIN conversation_participants p ON p.conversation_id = c.id "+
			"WHERE p.user_id = $1 "+
			"ORDER BY c.last_message_at DESC",
		userId,
	)
	if err != nil {
		return nil, err
	}

	for i := range convs {
		if convs[i].Participants, err = db.participantsOf(convs[i].Id); err != nil {
			return nil, err
		}

		var last Message
		err = db.conn.Get(&last,
			"SELECT id, conversation_id, sender_id, content, read, created_at FROM messages "+
				"WHERE conversation_id = $1 ORDER BY created_at DESC LIMIT 1",
			convs[i].Id,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, err
		}
		convs[i].LastMessage = &last
	}

	return convs, nil
}

func (db *PgChatRepository) ConversationIdsForUser(userId string) ([]string, error) {
	var ids []string
	err := db.conn.Select(&ids,
		"SELECT conversation_id FROM conversation_participants WHERE user_id = $1",
		userId,
	)

	return ids, err
}

func (db *PgChatRepository) IsParticipant(conversationId, userId string) bool {
	var exists bool
	err := db.conn.Get(&exists,
		"SELECT EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)",
		conversationId,
		userId,
	)

	return err == nil && exists
}

func (db *PgChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	id, err := shortid.Generate()
	if err != nil {
		return Message{}, fmt.Errorf("generate message id: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	var msg Message
	err = tx.Get(&msg,
		"INSERT INTO messages (id, conversation_id, sender_id, content, read, created_at) "+
			"VALUES ($1, $2, $3, $4, false, $5) "+
			"RETURNING id, conversation_id, sender_id, content, read, created_at",
		id,
		params.ConversationId,
		params.SenderId,
		params.Content,
		now,
	)
	if err != nil {
		return Message{}, err
	}

	// every other participant has one more unread message
	_, err = tx.Exec(
		"UPDATE conversation_participants SET unread_count = unread_count + 1 "+
			"WHERE conversation_id = $1 AND user_id <> $2",
		params.ConversationId,
		params.SenderId,
	)
	if err != nil {
		return Message{}, err
	}

	_, err = tx.Exec(
		"UPDATE conversations SET last_message_at = $2, updated_at = $2 WHERE id = $1",
		params.ConversationId,
		now,
	)
	if err != nil {
		return Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return Message{}, err
	}

	return msg, nil
}

func (db *PgChatRepository) ListMessages(conversationId string, before time.Time, limit int) ([]Message, error) {
	if before.IsZero() {
		before = time.Now().UTC().Add(time.Minute)
	}

	if limit <= 0 {
		limit = 20
	}

	var messages []Message
	err := db.conn.Select(&messages,
		"SELECT id, conversation_id, sender_id, content, read, created_at FROM messages "+
			"WHERE conversation_id = $1 AND created_at < $2 ORDER BY created_at DESC LIMIT $3",
		conversationId,
		before,
		limit,
	)

	return messages, err
}

func (db *PgChatRepository) MarkConversationRead(conversationId, userId string) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(
		"UPDATE conversation_participants SET unread_count = 0, last_read_at = $3 "+
			"WHERE conversation_id = $1 AND user_id = $2",
		conversationId,
		userId,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(
		"UPDATE messages SET read = true WHERE conversation_id = $1 AND sender_id <> $2 AND NOT read",
		conversationId,
		userId,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgChatRepository) participantsOf(conversationId string) ([]Participant, error) {
	var participants []Participant
	err := db.conn.Select(&participants,
		"SELECT conversation_id, user_id, username, unread_count, last_read_at FROM conversation_participants "+
			"WHERE conversation_id = $1",
		conversationId,
	)

	return participants, err
}
