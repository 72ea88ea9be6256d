// Package transport gives sensors a typed publish/subscribe API on top of the
// in-process event bus.
package transport

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/zeusync/simsensors/internal/core/events/bus"
	"github.com/zeusync/simsensors/internal/core/msgs"
)

var (
	ErrInvalidTopic      = errors.New("invalid topic name")
	ErrTopicTypeMismatch = errors.New("topic is bound to a different message type")
	ErrNotAdvertised     = errors.New("publisher is not advertised")
	ErrNodeClosed        = errors.New("node is closed")
)

// Node is a participant on the bus. It resolves relative topics against its
// namespace and remembers what it advertised and subscribed to.
type Node struct {
	bus       bus.EventBus
	namespace string
	id        string

	mu         sync.Mutex
	advertised map[string]string
	subs       []bus.Subscription
	closed     bool
}

type Option func(*Node)

func WithNamespace(ns string) Option {
	return func(n *Node) { n.namespace = ns }
}

// NewNode attaches a node to b, or to bus.Default() when b is nil.
func NewNode(b bus.EventBus, opts ...Option) *Node {
	if b == nil {
		b = bus.Default()
	}
	n := &Node{
		bus:        b,
		id:         uuid.NewString(),
		advertised: make(map[string]string),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Node) ID() string             { return n.id }
func (n *Node) Namespace() string      { return n.namespace }
func (n *Node) EventBus() bus.EventBus { return n.bus }

// AdvertisedTopics lists the fully qualified topics this node advertised, sorted.
func (n *Node) AdvertisedTopics() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.advertised))
	for topic := range n.advertised {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// Close cancels every subscription made through the node. Publishers created
// by the node stop being valid.
func (n *Node) Close() error {
	n.mu.Lock()
	subs := n.subs
	n.subs = nil
	n.advertised = make(map[string]string)
	n.closed = true
	n.mu.Unlock()

	var all error
	for _, s := range subs {
		all = errors.Join(all, s.Cancel())
	}
	return all
}

func (n *Node) isClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

func (n *Node) declare(topic, msgType string) (string, error) {
	if n.isClosed() {
		return "", ErrNodeClosed
	}
	fq, err := FullyQualifiedTopic(n.namespace, topic)
	if err != nil {
		return "", err
	}
	if err = n.bus.CreateTopic(fq, bus.TopicConfig{MessageType: msgType}); err != nil {
		if errors.Is(err, bus.ErrTopicConflict) {
			existing, _ := n.bus.Topic(fq)
			return "", fmt.Errorf("%w: %s carries %s, not %s", ErrTopicTypeMismatch, fq, existing.MessageType, msgType)
		}
		return "", err
	}
	return fq, nil
}

func (n *Node) track(sub bus.Subscription) {
	n.mu.Lock()
	n.subs = append(n.subs, sub)
	n.mu.Unlock()
}

// Publisher publishes messages of one type on one topic.
type Publisher[T msgs.Message] struct {
	node    *Node
	topic   string
	msgType string
}

// Advertise declares that n publishes T on topic.
func Advertise[T msgs.Message](n *Node, topic string) (*Publisher[T], error) {
	var zero T
	msgType := zero.TypeName()
	fq, err := n.declare(topic, msgType)
	if err != nil {
		return nil, fmt.Errorf("advertise %q: %w", topic, err)
	}
	n.mu.Lock()
	n.advertised[fq] = msgType
	n.mu.Unlock()
	return &Publisher[T]{node: n, topic: fq, msgType: msgType}, nil
}

// Valid reports whether the publisher can publish.
func (p *Publisher[T]) Valid() bool {
	return p != nil && p.node != nil && p.topic != "" && !p.node.isClosed()
}

func (p *Publisher[T]) Topic() string {
	if p == nil {
		return ""
	}
	return p.topic
}

// Publish delivers msg to every current subscriber of the topic. Errors are
// the joined subscriber failures, if any.
func (p *Publisher[T]) Publish(msg T) error {
	if !p.Valid() {
		return ErrNotAdvertised
	}
	return p.node.bus.Publish(p.topic, bus.NewEvent(p.msgType, p.node.id, msg))
}

// Subscribe calls cb for each T published on topic.
func Subscribe[T msgs.Message](n *Node, topic string, cb func(topic string, msg T)) (bus.Subscription, error) {
	if cb == nil {
		return nil, bus.ErrNilHandler
	}
	var zero T
	msgType := zero.TypeName()
	fq, err := n.declare(topic, msgType)
	if err != nil {
		return nil, fmt.Errorf("subscribe %q: %w", topic, err)
	}
	sub, err := n.bus.Subscribe(fq, func(topic string, e bus.Event) error {
		msg, ok := e.Data().(T)
		if !ok {
			return fmt.Errorf("%w: %s delivered %T", ErrTopicTypeMismatch, topic, e.Data())
		}
		cb(topic, msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	n.track(sub)
	return sub, nil
}

// SubscribeAll calls cb for every message published on any topic of the bus.
// Events whose payload is not a msgs.Message are skipped.
func (n *Node) SubscribeAll(cb func(topic string, msg msgs.Message)) (bus.Subscription, error) {
	if cb == nil {
		return nil, bus.ErrNilHandler
	}
	if n.isClosed() {
		return nil, ErrNodeClosed
	}
	sub, err := n.bus.SubscribeAll(func(topic string, e bus.Event) error {
		if msg, ok := e.Data().(msgs.Message); ok {
			cb(topic, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	n.track(sub)
	return sub, nil
}

// Topics returns every topic known to the underlying bus.
func (n *Node) Topics() []bus.TopicInfo {
	return n.bus.GetTopics()
}
