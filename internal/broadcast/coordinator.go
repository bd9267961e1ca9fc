package broadcast

import (
	"context"
	"log"
	"time"

	"marketchat/internal/backbone"
	"marketchat/internal/gateway"
	"marketchat/internal/stats"
	"marketchat/internal/types"
)

const publishTimeout = 5 * time.Second

// Coordinator delivers persisted message events and ephemeral signals to
// every connection in the target conversation's room, locally and through
// the backbone on every other process. It never persists anything: the
// write path calls Broadcast only after the durable write succeeded.
type Coordinator struct {
	log   *log.Logger
	rooms *gateway.RoomManager
	bb    backbone.Backbone
	stats stats.StatsProvider

	publishCh chan backbone.Envelope
}

func NewCoordinator(logger *log.Logger, rooms *gateway.RoomManager, bb backbone.Backbone, su stats.StatsProvider) *Coordinator {
	su.RegisterMetric("NumMessagesBroadcast")
	su.RegisterMetric("NumSignalsRelayed")

	co := &Coordinator{
		log:       logger,
		rooms:     rooms,
		bb:        bb,
		stats:     su,
		publishCh: make(chan backbone.Envelope, 256),
	}
	go co.publishLoop()

	return co
}

// Broadcast emits a persisted message event to the conversation's room.
// Delivery is best-effort per connection with no acknowledgment; a client
// that missed it catches up through the message fetch API.
func (co *Coordinator) Broadcast(ev types.MessageEvent) {
	co.deliverMessage(ev)
	co.publish(backbone.Envelope{Message: &ev})
}

// BroadcastRead tells the conversation's open tabs that the user has seen
// the messages. Persistence already happened on the write path.
func (co *Coordinator) BroadcastRead(rec types.ReadReceipt) {
	co.deliverRead(rec)
	co.publish(backbone.Envelope{Read: &rec})
}

// EmitTyping relays a typing signal to room members excluding the sender.
// No buffering, no ordering guarantee: last value wins.
func (co *Coordinator) EmitTyping(sig types.TypingSignal) {
	co.deliverTyping(sig)
	co.publish(backbone.Envelope{Typing: &sig})
}

// HandleRemote delivers an envelope that arrived over the backbone to
// locally-connected sockets. It never republishes.
func (co *Coordinator) HandleRemote(env backbone.Envelope) {
	switch {
	case env.Message != nil:
		co.deliverMessage(*env.Message)
	case env.Read != nil:
		co.deliverRead(*env.Read)
	case env.Typing != nil:
		co.deliverTyping(*env.Typing)
	}
}

func (co *Coordinator) deliverMessage(ev types.MessageEvent) {
	members := co.rooms.MembersOf(ev.ConversationId)
	if len(members) == 0 {
		// nobody connected here, the recipients catch up via fetch
		return
	}

	msg := gateway.NewMessageEvent(ev)
	for _, c := range members {
		c.QueueMessage(msg)
	}

	co.stats.Incr("NumMessagesBroadcast")
}

func (co *Coordinator) deliverRead(rec types.ReadReceipt) {
	members := co.rooms.MembersOf(rec.ConversationId)
	if len(members) == 0 {
		return
	}

	msg := gateway.NewReadEvent(rec)
	for _, c := range members {
		c.QueueMessage(msg)
	}
}

func (co *Coordinator) deliverTyping(sig types.TypingSignal) {
	msg := gateway.NewTypingEvent(sig)
	for _, c := range co.rooms.MembersOf(sig.ConversationId) {
		if c.UserId() == sig.UserId {
			continue
		}

		c.QueueMessage(msg)
	}

	co.stats.Incr("NumSignalsRelayed")
}

// publish enqueues the envelope for the publisher goroutine. The caller
// never blocks; a full queue drops the envelope, at-most-once across the
// backbone is accepted.
func (co *Coordinator) publish(env backbone.Envelope) {
	select {
	case co.publishCh <- env:
	default:
		co.log.Println("backbone publish queue full, delivery stays local")
	}
}

// publishLoop is the single writer to the backbone, so envelopes from this
// process go out in the order their broadcasts were invoked.
func (co *Coordinator) publishLoop() {
	for env := range co.publishCh {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := co.bb.Publish(ctx, env)
		cancel()

		if err != nil {
			co.log.Println("backbone publish failed, delivery stays local:", err)
		}
	}
}
