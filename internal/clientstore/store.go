package clientstore

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"marketchat/internal/types"
)

// SyncState tags whether an entry's unread counter matches what the server
// has confirmed.
type SyncState int

const (
	StateSynced SyncState = iota
	StatePendingConfirmation
)

// Entry is one conversation in the consumer-side cache, kept in recency
// order with a per-conversation unread counter.
type Entry struct {
	Id           string
	ListingId    string
	Participants []types.User
	LastMessage  *types.MessageEvent
	Unread       int
	UpdatedAt    time.Time
	State        SyncState
}

// Fetcher loads the authenticated user's conversation list from the read
// API.
type Fetcher interface {
	ListConversations(ctx context.Context, userId string) ([]types.Conversation, error)
}

// ReadMarker persists a mark-read through the write API.
type ReadMarker interface {
	MarkRead(ctx context.Context, conversationId, userId string) error
}

// Cache is the per-user in-memory conversation index. It merges live
// broadcast events into the fetched list and reconciles optimistic local
// mutations with eventual server confirmation.
type Cache struct {
	log     *log.Logger
	userId  string
	fetcher Fetcher
	marker  ReadMarker

	mu      sync.Mutex
	order   []string // conversation ids, most recent first
	entries map[string]*Entry
	total   int
}

func NewCache(logger *log.Logger, userId string, fetcher Fetcher, marker ReadMarker) *Cache {
	return &Cache{
		log:     logger,
		userId:  userId,
		fetcher: fetcher,
		marker:  marker,
		entries: make(map[string]*Entry),
	}
}

// Load fetches the conversation list and rebuilds the index. The global
// unread total is the sum of the per-conversation counters.
func (c *Cache) Load(ctx context.Context) error {
	convs, err := c.fetcher.ListConversations(ctx, c.userId)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.order = c.order[:0]
	c.entries = make(map[string]*Entry, len(convs))
	for _, conv := range convs {
		entry := &Entry{
			Id:           conv.Id,
			ListingId:    conv.ListingId,
			Participants: conv.Participants,
			LastMessage:  conv.LastMessage,
			Unread:       conv.UnreadCount,
			UpdatedAt:    conv.UpdatedAt,
			State:        StateSynced,
		}
		c.entries[conv.Id] = entry
		c.order = append(c.order, conv.Id)
	}
	c.recomputeTotalLocked()

	return nil
}

// ApplyMessage merges an inbound new_message event: bump the unread
// counter unless the local user sent it, and move the conversation to the
// front of the recency order. An event for a conversation missing from the
// cache means the list is stale (a conversation was just created), so the
// whole list is refetched rather than fabricating a partial entry.
func (c *Cache) ApplyMessage(ctx context.Context, ev types.MessageEvent) error {
	c.mu.Lock()

	entry, ok := c.entries[ev.ConversationId]
	if !ok {
		c.mu.Unlock()
		c.log.Printf("unknown conversation %q in message event, refetching list", ev.ConversationId)
		return c.Load(ctx)
	}

	entry.LastMessage = &ev
	entry.UpdatedAt = ev.CreatedAt
	if ev.SenderId != c.userId {
		entry.Unread++
	}

	c.moveToFrontLocked(ev.ConversationId)
	c.recomputeTotalLocked()
	c.mu.Unlock()

	return nil
}

// ApplyRead handles an inbound messages_read broadcast. Only a receipt from
// the local user (another tab or device) confirms the read state and zeroes
// the counter; receipts from other users carry no counter change here.
func (c *Cache) ApplyRead(rec types.ReadReceipt) {
	if rec.UserId != c.userId {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[rec.ConversationId]; ok {
		entry.Unread = 0
		entry.State = StateSynced
		c.recomputeTotalLocked()
	}
}

// MarkAsRead zeroes the unread counter optimistically and then issues the
// persistence call. A failed call does not roll the counter back: the entry
// stays tagged pendingConfirmation and the falsely-zeroed badge is accepted
// over a stale-unread flash.
func (c *Cache) MarkAsRead(ctx context.Context, conversationId string) error {
	c.mu.Lock()
	entry, ok := c.entries[conversationId]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("unknown conversation %q", conversationId)
	}

	entry.Unread = 0
	entry.State = StatePendingConfirmation
	c.recomputeTotalLocked()
	c.mu.Unlock()

	if err := c.marker.MarkRead(ctx, conversationId, c.userId); err != nil {
		c.log.Printf("mark read %q failed, keeping optimistic state: %v", conversationId, err)
		return err
	}

	c.mu.Lock()
	if entry, ok := c.entries[conversationId]; ok {
		entry.State = StateSynced
	}
	c.mu.Unlock()

	return nil
}

// TotalUnread returns the cached sum of per-conversation unread counters.
func (c *Cache) TotalUnread() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.total
}

// Entries returns a snapshot of the cache in recency order.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Entry, 0, len(c.order))
	for _, id := range c.order {
		entries = append(entries, *c.entries[id])
	}
	return entries
}

func (c *Cache) Entry(conversationId string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[conversationId]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

func (c *Cache) moveToFrontLocked(conversationId string) {
	for i, id := range c.order {
		if id == conversationId {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append([]string{conversationId}, c.order...)
}

func (c *Cache) recomputeTotalLocked() {
	total := 0
	for _, entry := range c.entries {
		total += entry.Unread
	}
	c.total = total
}
