package eventbus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ruteri/quorum-wallet/interfaces"
	"go.uber.org/atomic"
)

// DefaultBufferSize is the per-subscriber queue depth.
const DefaultBufferSize = 10

// Bus is a multi-topic broadcast facility. Every subscriber owns a bounded
// queue; Publish never blocks, and a message that does not fit into a
// subscriber's queue is dropped for that subscriber only (drop newest).
type Bus struct {
	mu         sync.RWMutex
	subs       map[interfaces.Topic]map[uint64]*Subscription
	nextID     uint64
	bufferSize int
	closed     bool

	published atomic.Uint64
	dropped   atomic.Uint64

	log *slog.Logger
	now func() time.Time
}

// Subscription receives events for one topic from the moment it was created.
type Subscription struct {
	id      uint64
	topic   interfaces.Topic
	ch      chan interfaces.Event
	bus     *Bus
	dropped atomic.Uint64
	once    sync.Once
}

// New creates a bus with the given per-subscriber buffer size.
func New(bufferSize int, log *slog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	subs := make(map[interfaces.Topic]map[uint64]*Subscription, len(interfaces.AllTopics))
	for _, topic := range interfaces.AllTopics {
		subs[topic] = make(map[uint64]*Subscription)
	}
	return &Bus{
		subs:       subs,
		bufferSize: bufferSize,
		log:        log,
		now:        time.Now,
	}
}

// Subscribe registers a new subscriber for topic.
func (b *Bus) Subscribe(topic interfaces.Topic) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("event bus closed")
	}
	topicSubs, ok := b.subs[topic]
	if !ok {
		return nil, fmt.Errorf("unknown topic %q", topic)
	}

	b.nextID++
	sub := &Subscription{
		id:    b.nextID,
		topic: topic,
		ch:    make(chan interfaces.Event, b.bufferSize),
		bus:   b,
	}
	topicSubs[sub.id] = sub
	return sub, nil
}

// Publish delivers message to every current subscriber of topic without blocking.
func (b *Bus) Publish(topic interfaces.Topic, message string) {
	event := interfaces.Event{Topic: topic, Message: message, At: b.now()}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	b.published.Inc()
	for _, sub := range b.subs[topic] {
		select {
		case sub.ch <- event:
		default:
			sub.dropped.Inc()
			b.dropped.Inc()
			b.log.Debug("Event dropped, subscriber queue full", "topic", topic, "subscriber", sub.id)
		}
	}
}

// Progress publishes a percentage on a progress topic.
func (b *Bus) Progress(topic interfaces.Topic, percent int) {
	b.Publish(topic, fmt.Sprintf("%d", percent))
}

// Published returns the total number of Publish calls accepted.
func (b *Bus) Published() uint64 {
	return b.published.Load()
}

// Dropped returns the total number of per-subscriber drops.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close unsubscribes everyone and rejects further subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, topicSubs := range b.subs {
		for id, sub := range topicSubs {
			delete(topicSubs, id)
			sub.once.Do(func() { close(sub.ch) })
		}
	}
}

// C returns the event channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan interfaces.Event {
	return s.ch
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() interfaces.Topic {
	return s.topic
}

// Dropped returns how many events this subscriber missed due to a full queue.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close removes the subscription from the bus. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	delete(s.bus.subs[s.topic], s.id)
	s.once.Do(func() { close(s.ch) })
}
