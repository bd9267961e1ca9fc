package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"marketchat/internal/store"
	"marketchat/internal/types"
)

// maxPageSize bounds a single history fetch regardless of the limit the
// client asked for.
const maxPageSize = 100

type CreateConversationRequest struct {
	RecipientId       string `json:"recipient_id"`
	RecipientUsername string `json:"recipient_username,omitempty"`
	ListingId         string `json:"listing_id,omitempty"`
}

type CreateMessageRequest struct {
	ConversationId string `json:"conversation_id"`
	Content        string `json:"content"`
}

type MarkReadRequest struct {
	ConversationId string `json:"conversation_id"`
}

// createConversation starts a buyer/seller thread for a listing. The first
// message in it is what makes it show up in the other side's cache.
func (s *ChatApp) createConversation(w http.ResponseWriter, r *http.Request) {
	session, ok := UserSession(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RecipientId == "" || req.RecipientId == session.UserId {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conv, err := s.db.CreateConversation(store.CreateConversationParams{
		ListingId: req.ListingId,
		Participants: []store.Participant{
			{UserId: session.UserId, Username: session.Username},
			{UserId: req.RecipientId, Username: req.RecipientUsername},
		},
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, conversationView(conv))
}

func (s *ChatApp) listConversations(w http.ResponseWriter, r *http.Request) {
	session, ok := UserSession(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	convs, err := s.db.ListConversations(session.UserId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	views := make([]types.Conversation, 0, len(convs))
	for _, conv := range convs {
		views = append(views, conversationView(conv))
	}

	s.writeJson(w, http.StatusOK, views)
}

func (s *ChatApp) getConversation(w http.ResponseWriter, r *http.Request) {
	session, ok := UserSession(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conversationId := r.PathValue("id")
	if !s.db.IsParticipant(conversationId, session.UserId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conv, err := s.db.GetConversation(conversationId)
	if err != nil {
		errResp := NewInternalServerError(err)
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, conversationView(conv))
}

// markConversationRead is the REST counterpart of the socket mark_read
// command, used by polling clients: persist first, relay after.
func (s *ChatApp) markConversationRead(w http.ResponseWriter, r *http.Request) {
	session, ok := UserSession(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversationId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !s.db.IsParticipant(req.ConversationId, session.UserId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.MarkConversationRead(req.ConversationId, session.UserId); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.broadcaster.BroadcastRead(types.ReadReceipt{
		ConversationId: req.ConversationId,
		UserId:         session.UserId,
	})

	w.WriteHeader(http.StatusNoContent)
}

// getMessages pages a conversation's history newest-first. Doubles as the
// catch-up path for clients that missed broadcasts and as the polling
// fallback transport.
func (s *ChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	session, ok := UserSession(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conversationId := r.URL.Query().Get("conversation_id")
	if conversationId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !s.db.IsParticipant(conversationId, session.UserId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var before time.Time
	if rawBefore := r.URL.Query().Get("before"); rawBefore != "" {
		parsed, err := time.Parse(time.RFC3339Nano, rawBefore)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		before = parsed
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > maxPageSize {
		limit = maxPageSize
	}

	messages, err := s.db.ListMessages(conversationId, before, limit)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	events := make([]types.MessageEvent, 0, len(messages))
	for _, msg := range messages {
		events = append(events, messageView(msg))
	}

	s.writeJson(w, http.StatusOK, events)
}

// createMessage is the authenticated write path: persist the message, then
// hand the persisted record to the coordinator. Never the other way
// around, so no client can see a message a crash then causes to vanish.
func (s *ChatApp) createMessage(w http.ResponseWriter, r *http.Request) {
	session, ok := UserSession(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversationId == "" || req.Content == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !s.db.IsParticipant(req.ConversationId, session.UserId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.db.CreateMessage(store.CreateMessageParams{
		ConversationId: req.ConversationId,
		SenderId:       session.UserId,
		Content:        req.Content,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	event := messageView(msg)
	s.broadcaster.Broadcast(event)

	s.writeJson(w, http.StatusCreated, event)
}

func (s *ChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := s.gw.Accept(conn)
	go client.Write()
	go client.Read()
}

// health reports whether the process can reach its store. Load balancers
// poll it to pull an unhealthy gateway out of rotation.
func (s *ChatApp) health(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check:", err)
		errResp := NewServiceUnavailableError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func conversationView(conv store.Conversation) types.Conversation {
	view := types.Conversation{
		Id:           conv.Id,
		ListingId:    conv.ListingId.String,
		UnreadCount:  conv.UnreadCount,
		UpdatedAt:    conv.LastMessageAt,
		Participants: make([]types.User, 0, len(conv.Participants)),
	}

	for _, p := range conv.Participants {
		view.Participants = append(view.Participants, types.User{
			Id:       p.UserId,
			Username: p.Username,
		})
	}

	if conv.LastMessage != nil {
		lastMessage := messageView(*conv.LastMessage)
		view.LastMessage = &lastMessage
	}

	return view
}

func messageView(msg store.Message) types.MessageEvent {
	return types.MessageEvent{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
		Read:           msg.Read,
	}
}
