package bus

import (
	"errors"
	"time"
)

var (
	ErrEmptyTopic    = errors.New("topic name is empty")
	ErrTopicConflict = errors.New("topic already declared with a different message type")
	ErrNilHandler    = errors.New("handler is nil")
)

// EventBus defines a thread-safe, in-process pub/sub event bus routed by topic.
//
// Key characteristics:
// - Topic fan-out: handlers subscribe to a topic name; SubscribeAll receives every topic.
// - Typed topics: a topic may be declared with a message type; conflicting declarations fail.
// - Synchronous delivery: Publish calls handler callbacks in the caller goroutine.
// - Error aggregation: multiple handler errors are joined and returned from Publish.
// - Optional observability: metrics are produced only when observers are registered.
//
// Notes:
// - Publishing to a topic nobody declared or subscribed to is not an error; the event is dropped.
// - Handlers should be quick or offload heavy work to avoid blocking publishers.
// - All methods must be safe for concurrent use.
type EventBus interface {
	// Publish delivers the event synchronously to all active subscribers of topic
	// and to every SubscribeAll handler. If one or more handlers return an error,
	// a joined error is returned.
	Publish(topic string, event Event) error
	// Subscribe registers a handler for a topic and returns a Subscription handle
	// that can be used to cancel later.
	Subscribe(topic string, handler EventHandler) (Subscription, error)
	// SubscribeAll registers a handler that observes every published topic.
	SubscribeAll(handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. It is safe to call with nil; does nothing.
	Unsubscribe(Subscription) error

	// CreateTopic declares a topic. Repeat declarations are idempotent; declaring a
	// typed topic with a different type returns ErrTopicConflict.
	CreateTopic(name string, config TopicConfig) error
	// Topic returns the declared configuration of a topic.
	Topic(name string) (TopicConfig, bool)

	// AddObserver registers an observer to receive metrics callbacks.
	AddObserver(obs EventBusObserver)
	// RemoveObserver unregisters a previously added observer.
	RemoveObserver(obs EventBusObserver)
	// GetMetrics returns a best-effort snapshot of accumulated metrics. Metrics are only
	// collected when at least one observer is registered.
	GetMetrics() EventBusMetrics
	// GetTopics returns a snapshot list of known topics.
	GetTopics() []TopicInfo
}

// Event is an immutable message transported by the EventBus.
//
// Fields:
// - Type: message type name of the payload.
// - Source: identifier of the publisher (free-form).
// - Timestamp: wall-clock creation time of the event.
// - Data: the payload.
//
// Implementations should treat Event values as read-only.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

type (
	// EventHandler is a user callback invoked per delivered event. If it returns an
	// error, Publish aggregates and returns it.
	EventHandler func(topic string, event Event) error
)

// Subscription represents a registered handler bound to a topic.
// Use Cancel or EventBus.Unsubscribe to stop receiving events.
type Subscription interface {
	// ID is a unique identifier for this subscription.
	ID() string
	// Topic returns the topic this subscription listens to; empty for SubscribeAll.
	Topic() string
	// IsActive reports whether this subscription is still registered.
	IsActive() bool
	// Cancel de-registers the handler from the bus. Multiple calls are safe.
	Cancel() error
}

// TopicConfig describes topic-level settings. An empty MessageType leaves the
// topic untyped until someone declares it with a type.
type TopicConfig struct {
	MessageType string
}

// EventBusObserver is notified about deliveries and errors. Implementations can
// export metrics, tracing, or logs. Observers should return quickly.
type EventBusObserver interface {
	OnPublish(topic string, event Event)
	OnDelivered(topic string, handlers int, err error, duration time.Duration)
}

// EventBusMetrics represents a minimal set of counters; it is updated only when
// at least one observer is registered.
type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
	Topics            uint64
}

// TopicInfo provides a minimal snapshot about a topic.
type TopicInfo struct {
	Name        string
	MessageType string
	Subs        int
}
