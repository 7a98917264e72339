package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Topic names a collection whose changes are published
type Topic string

const (
	TopicLocation Topic = "location"
	TopicCatalog  Topic = "catalog"
	TopicCart     Topic = "cart"
	TopicWishlist Topic = "wishlist"
	TopicProducts Topic = "products"
)

var allTopics = []Topic{TopicLocation, TopicCatalog, TopicCart, TopicWishlist, TopicProducts}

// Event tells subscribers that a collection changed
type Event struct {
	Topic Topic     `json:"topic"`
	At    time.Time `json:"at"`
}

type subscription struct {
	topics map[Topic]bool
	ch     chan Event
}

// Broker fans change events out to subscribers. Delivery never blocks the
// publisher: a subscriber whose buffer is full misses the event. A Changes
// subscriber never misses a topic, repeated events for it are merged instead.
type Broker struct {
	mu      sync.RWMutex
	subs    map[string]*subscription
	changes map[string]*Changes
	logger  *zap.Logger
}

// NewBroker creates a new Broker
func NewBroker(logger *zap.Logger) *Broker {
	return &Broker{
		subs:    make(map[string]*subscription),
		changes: make(map[string]*Changes),
		logger:  logger,
	}
}

// Changes is the set of topics published since it was last taken
type Changes struct {
	mu    sync.Mutex
	dirty map[Topic]bool
	ready chan struct{}
}

// Ready is signalled when at least one topic is pending
func (c *Changes) Ready() <-chan struct{} {
	return c.ready
}

// Take returns the pending topics in declaration order and clears them
func (c *Changes) Take() []Topic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Topic, 0, len(c.dirty))
	for _, t := range allTopics {
		if c.dirty[t] {
			out = append(out, t)
		}
	}
	clear(c.dirty)
	return out
}

func (c *Changes) mark(topic Topic) {
	c.mu.Lock()
	c.dirty[topic] = true
	c.mu.Unlock()
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// SubscribeChanges registers a lossless subscriber for every topic
func (b *Broker) SubscribeChanges() (*Changes, func()) {
	c := &Changes{
		dirty: make(map[Topic]bool),
		ready: make(chan struct{}, 1),
	}
	id := uuid.NewString()
	b.mu.Lock()
	b.changes[id] = c
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.changes, id)
			b.mu.Unlock()
		})
	}
	return c, cancel
}

// Subscribe registers for the given topics, or all topics when none are
// given. The returned cancel func closes the channel.
func (b *Broker) Subscribe(buffer int, topics ...Topic) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscription{
		topics: make(map[Topic]bool, len(topics)),
		ch:     make(chan Event, buffer),
	}
	for _, t := range topics {
		sub.topics[t] = true
	}

	id := uuid.NewString()
	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish notifies every subscriber of topic
func (b *Broker) Publish(topic Topic) {
	if b == nil {
		return
	}
	event := Event{Topic: topic, At: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.changes {
		c.mark(topic)
	}
	for id, sub := range b.subs {
		if len(sub.topics) > 0 && !sub.topics[topic] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.logger.Debug("Dropped change event for slow subscriber",
				zap.String("subscriber", id),
				zap.String("topic", string(topic)),
			)
		}
	}
}

// Subscribers returns the number of active subscriptions
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs) + len(b.changes)
}
