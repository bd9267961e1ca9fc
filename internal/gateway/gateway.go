package gateway

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"

	"marketchat/internal/stats"
	"marketchat/internal/store"
	"marketchat/internal/types"
)

// Relay fans room events out beyond this process. The gateway hands it the
// signals originated by its own connections; the broadcast coordinator
// implements it.
type Relay interface {
	BroadcastRead(rec types.ReadReceipt)
	EmitTyping(sig types.TypingSignal)
}

// Gateway owns every live connection accepted by this process, the
// user->connections index and the room membership map. Connections are
// never shared across processes; only broadcast intent travels over the
// backbone.
type Gateway struct {
	log   *log.Logger
	db    store.ChatRepository
	rooms *RoomManager
	relay Relay
	stats stats.StatsProvider

	mu      sync.Mutex
	clients map[*Client]struct{}
	userMap map[string]map[*Client]struct{}
}

func NewGateway(logger *log.Logger, db store.ChatRepository, rooms *RoomManager, relay Relay, su stats.StatsProvider) (*Gateway, error) {
	g := &Gateway{
		log:     logger,
		db:      db,
		rooms:   rooms,
		relay:   relay,
		stats:   su,
		clients: make(map[*Client]struct{}),
		userMap: make(map[string]map[*Client]struct{}),
	}

	su.RegisterMetric("NumConnections")
	su.RegisterMetric("NumAuthenticatedSessions")

	return g, nil
}

// Accept registers a new connection in the connected-but-unauthenticated
// state. The caller starts the read/write pumps.
func (g *Gateway) Accept(conn *websocket.Conn) *Client {
	id, err := shortid.Generate()
	if err != nil {
		id = fmt.Sprintf("conn-%d", time.Now().UnixNano())
	}

	c := NewClient(id, conn, g, g.log)

	g.mu.Lock()
	g.clients[c] = struct{}{}
	g.mu.Unlock()

	g.stats.Incr("NumConnections")
	g.log.Printf("accepted connection %q", c.id)

	return c
}

// Authenticate binds a verified user id to the connection, indexes it under
// that user and hydrates room membership from the user's active
// conversations. Re-authenticating replaces the prior binding. A store
// failure during hydration leaves the connection authenticated with no
// rooms; membership is rebuilt on the next reconnect.
func (g *Gateway) Authenticate(c *Client, userId string) error {
	if userId == "" {
		return fmt.Errorf("empty user id")
	}

	g.mu.Lock()
	prev := c.UserId()
	if prev != "" {
		g.unbindUserLocked(c, prev)
		g.rooms.RemoveConnection(c)
	}

	c.setUserId(userId)
	if g.userMap[userId] == nil {
		g.userMap[userId] = make(map[*Client]struct{})
	}
	g.userMap[userId][c] = struct{}{}
	g.mu.Unlock()

	if prev == "" {
		g.stats.Incr("NumAuthenticatedSessions")
	}

	conversationIds, err := g.db.ConversationIdsForUser(userId)
	if err != nil {
		g.log.Printf("hydrate rooms for user %q: %v", userId, err)
		return nil
	}

	for _, conversationId := range conversationIds {
		g.rooms.Join(conversationId, c)
	}

	g.log.Printf("authenticated connection %q as user %q with %d rooms", c.id, userId, len(conversationIds))
	return nil
}

// JoinRoom adds the connection to a conversation room. Access control is
// enforced by the read/write API that handed the client the conversation
// id; this layer deliberately trusts the id. Implementers adding
// cross-tenant isolation must add the check at the API boundary, not here.
func (g *Gateway) JoinRoom(c *Client, conversationId string) {
	g.rooms.Join(conversationId, c)
}

func (g *Gateway) LeaveRoom(c *Client, conversationId string) {
	g.rooms.Leave(conversationId, c)
}

// Disconnect removes the connection from every room and from the user
// index. Idempotent: a second call for the same connection is a no-op.
func (g *Gateway) Disconnect(c *Client) {
	g.mu.Lock()
	if _, ok := g.clients[c]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.clients, c)

	userId := c.UserId()
	if userId != "" {
		g.unbindUserLocked(c, userId)
	}
	g.mu.Unlock()

	g.rooms.RemoveConnection(c)

	g.stats.Decr("NumConnections")
	if userId != "" {
		g.stats.Decr("NumAuthenticatedSessions")
	}

	g.log.Printf("removed connection %q", c.id)
}

// ClientsForUser returns every connection currently authenticated as the
// user on this process (a user may hold one per tab or device).
func (g *Gateway) ClientsForUser(userId string) []*Client {
	g.mu.Lock()
	defer g.mu.Unlock()

	clients := make([]*Client, 0, len(g.userMap[userId]))
	for c := range g.userMap[userId] {
		clients = append(clients, c)
	}
	return clients
}

func (g *Gateway) NumClients() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.clients)
}

// Shutdown stops every connection. The write pumps close the transports,
// which unwinds the read pumps through the normal disconnect path.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	clients := make([]*Client, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()

	g.log.Printf("stopping %d connections", len(clients))
	for _, c := range clients {
		c.Close()
	}
}

func (g *Gateway) unbindUserLocked(c *Client, userId string) {
	if userClients, ok := g.userMap[userId]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(g.userMap, userId)
		}
	}
}
