package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"marketchat/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one live transport session. It is owned exclusively by the
// process that accepted it; the user id stays empty until the handshake
// completes.
type Client struct {
	id       string
	conn     *websocket.Conn
	gateway  *Gateway
	log      *log.Logger
	Send     chan *ServerMessage
	stop     chan struct{}
	stopOnce sync.Once

	mu     sync.RWMutex
	userId string
}

func NewClient(id string, conn *websocket.Conn, gw *Gateway, l *log.Logger) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		gateway: gw,
		log:     l,
		Send:    make(chan *ServerMessage, 256),
		stop:    make(chan struct{}),
	}
}

func (c *Client) Id() string {
	return c.id
}

// UserId returns the authenticated user id, or "" before the handshake.
func (c *Client) UserId() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userId
}

func (c *Client) setUserId(userId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userId = userId
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("write exiting for connection %q", c.id)
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Printf("read exiting for connection %q", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.QueueMessage(ErrInvalidMessage(-1))
			continue
		}

		c.handleCommand(&msg)
	}
}

func (c *Client) handleCommand(msg *ClientMessage) {
	if msg.Auth != nil {
		c.handleAuth(msg)
		return
	}

	// every other command requires a completed handshake; an
	// unauthenticated connection stays alive but receives nothing
	if c.UserId() == "" {
		c.QueueMessage(ErrUnauthorized(msg.Id))
		return
	}

	switch {
	case msg.Join != nil:
		c.gateway.JoinRoom(c, msg.Join.ConversationId)
		c.QueueMessage(NoErrOK(msg.Id, nil))
	case msg.Leave != nil:
		c.gateway.LeaveRoom(c, msg.Leave.ConversationId)
		c.QueueMessage(NoErrOK(msg.Id, nil))
	case msg.Typing != nil:
		c.gateway.relay.EmitTyping(types.TypingSignal{
			ConversationId: msg.Typing.ConversationId,
			UserId:         c.UserId(),
			IsTyping:       msg.Typing.IsTyping,
		})
	case msg.Read != nil:
		c.handleMarkRead(msg)
	default:
		c.QueueMessage(ErrInvalidMessage(msg.Id))
	}
}

// handleAuth runs the post-connect handshake. A missing user id leaves the
// connection in the unauthenticated state with no response: the client
// detects failure by the absent authenticated ack.
func (c *Client) handleAuth(msg *ClientMessage) {
	if err := c.gateway.Authenticate(c, msg.Auth.UserId); err != nil {
		c.log.Printf("authenticate connection %q: %v", c.id, err)
		return
	}

	c.QueueMessage(NewAuthenticated(msg.Id, c.UserId()))
}

// handleMarkRead persists the read state first and relays the receipt only
// after the write succeeded.
func (c *Client) handleMarkRead(msg *ClientMessage) {
	userId := c.UserId()
	if err := c.gateway.db.MarkConversationRead(msg.Read.ConversationId, userId); err != nil {
		c.log.Println("MarkConversationRead:", err)
		c.QueueMessage(ErrInternalError(msg.Id))
		return
	}

	c.QueueMessage(NoErrOK(msg.Id, nil))
	c.gateway.relay.BroadcastRead(types.ReadReceipt{
		ConversationId: msg.Read.ConversationId,
		UserId:         userId,
	})
}

// QueueMessage enqueues a message for delivery without blocking. Delivery
// is best-effort: a full send buffer drops the message.
func (c *Client) QueueMessage(msg *ServerMessage) bool {
	select {
	case c.Send <- msg:
	default:
		c.log.Printf("send buffer full for connection %q, dropping message", c.id)
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

// Close stops the write pump, which closes the transport. Safe to call
// more than once.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.gateway.Disconnect(c)
	c.Close()
}
