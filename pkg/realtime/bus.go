// Package realtime implements the process-local pub/sub bus that fans
// committed operations out to per-vault subscribers, and the JSON envelopes
// spoken on the realtime wire.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/obsync/obsync/internal/logger"
)

// DefaultBufferSize is the per-subscriber channel capacity. A subscriber
// whose buffer is full is dropped rather than blocking the publisher.
const DefaultBufferSize = 64

// Event is one committed operation as seen by subscribers.
type Event struct {
	VaultID   string          `json:"vaultId"`
	Seq       int64           `json:"seq"`
	OpType    string          `json:"opType"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Subscriber receives events for a single vault. Events arrive in seq order.
// When the bus drops the subscriber (slow consumer), C is closed and
// Dropped() reports true; the client must reconnect and reconcile via pull.
type Subscriber struct {
	id      uint64
	vaultID string
	ch      chan Event

	mu      sync.Mutex
	closed  bool
	dropped bool
}

// C returns the subscriber's event channel. It is closed on unsubscribe or drop.
func (s *Subscriber) C() <-chan Event {
	return s.ch
}

// Dropped reports whether the bus closed this subscription because its
// buffer was full.
func (s *Subscriber) Dropped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// close closes the channel once. drop marks the reason.
func (s *Subscriber) close(drop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.dropped = drop
	close(s.ch)
}

// Bus is an in-process topic broker keyed by vault id.
//
// Publish never blocks: each subscriber has a bounded buffer and a
// non-blocking send; a full buffer drops the subscriber. In a multi-process
// deployment the bus would be bridged by an external notification channel;
// this implementation assumes a single process.
type Bus struct {
	mu         sync.RWMutex
	nextID     uint64
	bufferSize int
	subs       map[string]map[uint64]*Subscriber // vaultID -> subscriber set

	onDrop func() // optional metrics hook
}

// Option configures the bus.
type Option func(*Bus)

// WithBufferSize overrides the per-subscriber channel capacity.
func WithBufferSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithDropHook registers a callback invoked whenever a subscriber is dropped.
func WithDropHook(fn func()) Option {
	return func(b *Bus) {
		b.onDrop = fn
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		bufferSize: DefaultBufferSize,
		subs:       make(map[string]map[uint64]*Subscriber),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a subscriber for the vault. The caller owns the
// returned Subscriber and must Unsubscribe it when done.
func (b *Bus) Subscribe(vaultID string) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscriber{
		id:      b.nextID,
		vaultID: vaultID,
		ch:      make(chan Event, b.bufferSize),
	}

	if b.subs[vaultID] == nil {
		b.subs[vaultID] = make(map[uint64]*Subscriber)
	}
	b.subs[vaultID][sub.id] = sub
	return sub
}

// Unsubscribe deregisters the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	if set, ok := b.subs[sub.vaultID]; ok {
		delete(set, sub.id)
		if len(set) == 0 {
			delete(b.subs, sub.vaultID)
		}
	}
	b.mu.Unlock()

	sub.close(false)
}

// Publish delivers the event to every current subscriber of its vault.
// Delivery is best-effort and at-most-once per subscription: a subscriber
// whose buffer is full is dropped immediately so the publisher never blocks.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	set := b.subs[event.VaultID]
	targets := make([]*Subscriber, 0, len(set))
	for _, sub := range set {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	var dropped []*Subscriber
	for _, sub := range targets {
		select {
		case sub.ch <- event:
		default:
			dropped = append(dropped, sub)
		}
	}

	for _, sub := range dropped {
		logger.Warn("realtime subscriber dropped: send buffer full",
			"vault_id", sub.vaultID,
			"subscriber_id", sub.id,
		)
		b.remove(sub)
		sub.close(true)
		if b.onDrop != nil {
			b.onDrop()
		}
	}
}

// remove deregisters a subscriber without closing it.
func (b *Bus) remove(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[sub.vaultID]; ok {
		delete(set, sub.id)
		if len(set) == 0 {
			delete(b.subs, sub.vaultID)
		}
	}
}

// SubscriberCount returns the number of active subscriptions for a vault
// (for testing and metrics).
func (b *Bus) SubscriberCount(vaultID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[vaultID])
}
