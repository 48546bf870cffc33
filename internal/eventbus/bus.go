package eventbus

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cortexvms/vms-core/internal/metrics"
)

// Topic names the event bus's fixed subject set. SPEC_FULL §4.5 defines
// exactly these seven; callers never need to register new ones.
type Topic string

const (
	TopicCameraAdded      Topic = "camera-added"
	TopicCameraUpdated    Topic = "camera-updated"
	TopicCameraDeleted    Topic = "camera-deleted"
	TopicCameraStatus     Topic = "camera-status"
	TopicRecordingStarted Topic = "recording-started"
	TopicRecordingStopped Topic = "recording-stopped"
	TopicANPREvent        Topic = "anpr-event"
)

// Event is a single published message: a topic tag and an opaque payload
// whose concrete type is agreed between publisher and subscriber out of
// band (e.g. *vmscore.Camera for camera-added, *vmscore.ANPREvent for
// anpr-event).
type Event struct {
	Topic   Topic
	Payload interface{}
}

const defaultQueueSize = 256

// Bus is the in-process publish/subscribe mechanism. The zero value is not
// usable; construct with New.
type Bus struct {
	mu          sync.RWMutex
	queueSize   int
	subscribers map[string]*Subscription
	byTopic     map[Topic]map[string]struct{}
}

// New returns a Bus whose subscriber queues hold queueSize messages before
// the drop-oldest policy engages. A non-positive queueSize falls back to
// the documented default of 256.
func New(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Bus{
		queueSize:   queueSize,
		subscribers: make(map[string]*Subscription),
		byTopic:     make(map[Topic]map[string]struct{}),
	}
}

// Subscription is a single subscriber's bounded inbox. Events arrives FIFO
// across all of the subscription's topics.
type Subscription struct {
	ID     string
	Events <-chan Event

	bus    *Bus
	ch     chan Event
	topics map[Topic]struct{}
	mu     sync.Mutex // guards ch against concurrent drop-oldest pushes
}

// Subscribe registers a new subscription for the given topics and returns
// it with its delivery channel open. The caller must eventually call
// Unsubscribe to release it.
func (b *Bus) Subscribe(topics ...Topic) *Subscription {
	ch := make(chan Event, b.queueSize)
	sub := &Subscription{
		ID:     uuid.New().String(),
		Events: ch,
		bus:    b,
		ch:     ch,
		topics: make(map[Topic]struct{}, len(topics)),
	}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}

	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	for t := range sub.topics {
		if b.byTopic[t] == nil {
			b.byTopic[t] = make(map[string]struct{})
		}
		b.byTopic[t][sub.ID] = struct{}{}
	}
	b.mu.Unlock()

	metrics.EventBusSubscribers.Set(float64(b.subscriberCount()))
	return sub
}

// Unsubscribe removes sub from the bus and closes its delivery channel.
// Safe to call more than once.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if _, ok := b.subscribers[sub.ID]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subscribers, sub.ID)
	for t := range sub.topics {
		delete(b.byTopic[t], sub.ID)
	}
	b.mu.Unlock()

	close(sub.ch)
	metrics.EventBusSubscribers.Set(float64(b.subscriberCount()))
}

func (b *Bus) subscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish delivers payload on topic to every current subscriber of that
// topic. Delivery never blocks: a subscriber whose queue is full has its
// oldest queued event dropped to make room, per SPEC_FULL §4.5.
func (b *Bus) Publish(topic Topic, payload interface{}) {
	evt := Event{Topic: topic, Payload: payload}

	b.mu.RLock()
	ids := b.byTopic[topic]
	targets := make([]*Subscription, 0, len(ids))
	for id := range ids {
		targets = append(targets, b.subscribers[id])
	}
	b.mu.RUnlock()

	metrics.EventBusPublishedTotal.WithLabelValues(string(topic)).Inc()

	for _, sub := range targets {
		sub.deliver(evt, topic)
	}
}

// deliver pushes evt onto the subscription's channel, dropping the oldest
// queued event first if the channel is full.
func (sub *Subscription) deliver(evt Event, topic Topic) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	select {
	case sub.ch <- evt:
		return
	default:
	}

	// Queue full: drop the oldest queued event, then enqueue the new one.
	select {
	case <-sub.ch:
		metrics.EventBusDroppedTotal.WithLabelValues(string(topic)).Inc()
	default:
	}
	select {
	case sub.ch <- evt:
	default:
		// Another goroutine drained concurrently; queue is momentarily
		// full again. Drop the new event rather than block the publisher.
		metrics.EventBusDroppedTotal.WithLabelValues(string(topic)).Inc()
	}
}
