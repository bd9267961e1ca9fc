package gateway

import (
	"net/http"
	"time"

	"marketchat/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the envelope for commands accepted over the socket.
// Exactly one of the command fields is expected to be set.
type ClientMessage struct {
	BaseMessage
	Auth   *Auth   `json:"auth,omitempty"`
	Join   *Join   `json:"join,omitempty"`
	Leave  *Leave  `json:"leave,omitempty"`
	Typing *Typing `json:"typing,omitempty"`
	Read   *Read   `json:"read,omitempty"`
}

type Auth struct {
	UserId string `json:"user_id"`
}

type Join struct {
	ConversationId string `json:"conversation_id"`
}

type Leave struct {
	ConversationId string `json:"conversation_id"`
}

type Typing struct {
	ConversationId string `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}

type Read struct {
	ConversationId string `json:"conversation_id"`
}

// ServerMessage is the envelope for everything pushed to a socket: command
// responses, the authenticated acknowledgment and room events.
type ServerMessage struct {
	BaseMessage
	Response      *Response           `json:"response,omitempty"`
	Authenticated *Authenticated      `json:"authenticated,omitempty"`
	Message       *types.MessageEvent `json:"new_message,omitempty"`
	MessagesRead  *types.ReadReceipt  `json:"messages_read,omitempty"`
	UserTyping    *types.TypingSignal `json:"user_typing,omitempty"`
}

type Authenticated struct {
	UserId string `json:"user_id"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

func NewMessageEvent(ev types.MessageEvent) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Message:     &ev,
	}
}

func NewReadEvent(rec types.ReadReceipt) *ServerMessage {
	return &ServerMessage{
		BaseMessage:  BaseMessage{Timestamp: Now()},
		MessagesRead: &rec,
	}
}

func NewTypingEvent(sig types.TypingSignal) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		UserTyping:  &sig,
	}
}

func NewAuthenticated(id int, userId string) *ServerMessage {
	return &ServerMessage{
		BaseMessage:   BaseMessage{Id: id, Timestamp: Now()},
		Authenticated: &Authenticated{UserId: userId},
	}
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrUnauthorized(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusUnauthorized,
			Error:        "authentication required",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
