package bus

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

const defaultShardCount = 16

// simpleEvent is a basic implementation of Event.
type simpleEvent struct {
	typeStr string
	source  string
	ts      time.Time
	data    any
}

func (e simpleEvent) Type() string         { return e.typeStr }
func (e simpleEvent) Source() string       { return e.source }
func (e simpleEvent) Timestamp() time.Time { return e.ts }
func (e simpleEvent) Data() any            { return e.data }

// NewEvent creates a simple Event implementation.
func NewEvent(typ, src string, data any) Event {
	return simpleEvent{typeStr: typ, source: src, ts: time.Now(), data: data}
}

// subscription implements Subscription interface.
type subscription struct {
	id      string
	topic   string
	handler EventHandler
	active  atomic.Bool
	cancel  func()
	once    sync.Once
}

func (s *subscription) ID() string     { return s.id }
func (s *subscription) Topic() string  { return s.topic }
func (s *subscription) IsActive() bool { return s.active.Load() }
func (s *subscription) Cancel() error {
	s.once.Do(func() {
		s.active.Store(false)
		if s.cancel != nil {
			s.cancel()
		}
	})
	return nil
}

type topicState struct {
	config TopicConfig
	subs   map[string]*subscription
}

// shard owns a slice of the topic table; topics are spread over shards by hash.
type shard struct {
	mu     sync.RWMutex
	topics map[string]*topicState
}

// inMemoryBus is a thread-safe implementation of EventBus with sharded topics and observers.
type inMemoryBus struct {
	shards []*shard

	wildMu   sync.RWMutex
	wildcard map[string]*subscription

	obsMu     sync.RWMutex
	observers map[EventBusObserver]struct{}

	metricsMu sync.Mutex
	metrics   EventBusMetrics
}

type Option func(*inMemoryBus)

// WithShardCount overrides the number of topic shards. Values below one are ignored.
func WithShardCount(n int) Option {
	return func(b *inMemoryBus) {
		if n > 0 {
			b.shards = newShards(n)
		}
	}
}

func newShards(n int) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{topics: make(map[string]*topicState)}
	}
	return shards
}

// New creates a new EventBus instance.
func New(opts ...Option) EventBus {
	b := &inMemoryBus{
		shards:    newShards(defaultShardCount),
		wildcard:  make(map[string]*subscription),
		observers: make(map[EventBusObserver]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var (
	defaultBus     EventBus
	defaultBusOnce sync.Once
)

// Default returns the process-wide bus shared by nodes that were not given one.
func Default() EventBus {
	defaultBusOnce.Do(func() { defaultBus = New() })
	return defaultBus
}

func (b *inMemoryBus) shardFor(topic string) *shard {
	return b.shards[xxhash.Sum64String(topic)%uint64(len(b.shards))]
}

func (b *inMemoryBus) Publish(topic string, event Event) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	return b.deliver(topic, event)
}

func (b *inMemoryBus) Subscribe(topic string, handler EventHandler) (Subscription, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	sh := b.shardFor(topic)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	ts := sh.ensureTopicLocked(topic)
	id := uuid.NewString()
	s := &subscription{id: id, topic: topic, handler: handler}
	s.active.Store(true)
	s.cancel = func() {
		sh.mu.Lock()
		defer sh.mu.Unlock()
		if t, ok := sh.topics[topic]; ok {
			delete(t.subs, id)
		}
	}
	ts.subs[id] = s
	return s, nil
}

func (b *inMemoryBus) SubscribeAll(handler EventHandler) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	id := uuid.NewString()
	s := &subscription{id: id, handler: handler}
	s.active.Store(true)
	s.cancel = func() {
		b.wildMu.Lock()
		delete(b.wildcard, id)
		b.wildMu.Unlock()
	}
	b.wildMu.Lock()
	b.wildcard[id] = s
	b.wildMu.Unlock()
	return s, nil
}

func (b *inMemoryBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Cancel()
}

func (b *inMemoryBus) CreateTopic(name string, config TopicConfig) error {
	if name == "" {
		return ErrEmptyTopic
	}
	sh := b.shardFor(name)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	ts := sh.ensureTopicLocked(name)
	switch {
	case config.MessageType == "" || ts.config.MessageType == config.MessageType:
		return nil
	case ts.config.MessageType == "":
		ts.config.MessageType = config.MessageType
		return nil
	default:
		return ErrTopicConflict
	}
}

func (b *inMemoryBus) Topic(name string) (TopicConfig, bool) {
	sh := b.shardFor(name)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	ts, ok := sh.topics[name]
	if !ok {
		return TopicConfig{}, false
	}
	return ts.config, true
}

func (b *inMemoryBus) AddObserver(obs EventBusObserver) {
	b.obsMu.Lock()
	b.observers[obs] = struct{}{}
	b.obsMu.Unlock()
}

func (b *inMemoryBus) RemoveObserver(obs EventBusObserver) {
	b.obsMu.Lock()
	delete(b.observers, obs)
	b.obsMu.Unlock()
}

func (b *inMemoryBus) GetMetrics() EventBusMetrics {
	b.metricsMu.Lock()
	defer b.metricsMu.Unlock()
	return b.metrics
}

// GetTopics returns topics sorted by name.
func (b *inMemoryBus) GetTopics() []TopicInfo {
	var out []TopicInfo
	for _, sh := range b.shards {
		sh.mu.RLock()
		for name, ts := range sh.topics {
			out = append(out, TopicInfo{Name: name, MessageType: ts.config.MessageType, Subs: len(ts.subs)})
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *shard) ensureTopicLocked(topic string) *topicState {
	ts, ok := s.topics[topic]
	if !ok {
		ts = &topicState{subs: make(map[string]*subscription)}
		s.topics[topic] = ts
	}
	return ts
}

func (b *inMemoryBus) snapshotObservers() []EventBusObserver {
	b.obsMu.RLock()
	defer b.obsMu.RUnlock()
	if len(b.observers) == 0 {
		return nil
	}
	out := make([]EventBusObserver, 0, len(b.observers))
	for obs := range b.observers {
		out = append(out, obs)
	}
	return out
}

func (b *inMemoryBus) deliver(topic string, event Event) error {
	start := time.Now()

	sh := b.shardFor(topic)
	sh.mu.RLock()
	var subs []*subscription
	if ts := sh.topics[topic]; ts != nil {
		subs = make([]*subscription, 0, len(ts.subs))
		for _, s := range ts.subs {
			subs = append(subs, s)
		}
	}
	sh.mu.RUnlock()

	b.wildMu.RLock()
	for _, s := range b.wildcard {
		subs = append(subs, s)
	}
	b.wildMu.RUnlock()

	observers := b.snapshotObservers()
	for _, obs := range observers {
		obs.OnPublish(topic, event)
	}

	var all error
	delivered := 0
	for _, s := range subs {
		if !s.active.Load() {
			continue
		}
		delivered++
		if err := s.handler(topic, event); err != nil {
			all = errors.Join(all, err)
		}
	}

	if len(observers) > 0 {
		dur := time.Since(start)
		for _, obs := range observers {
			obs.OnDelivered(topic, delivered, all, dur)
		}
		b.updateMetrics(delivered, all != nil)
	}
	return all
}

// updateMetrics only runs while observing.
func (b *inMemoryBus) updateMetrics(delivered int, failed bool) {
	var topics, subsCount uint64
	for _, sh := range b.shards {
		sh.mu.RLock()
		topics += uint64(len(sh.topics))
		for _, ts := range sh.topics {
			subsCount += uint64(len(ts.subs))
		}
		sh.mu.RUnlock()
	}
	b.wildMu.RLock()
	subsCount += uint64(len(b.wildcard))
	b.wildMu.RUnlock()

	b.metricsMu.Lock()
	b.metrics.Published++
	b.metrics.DeliveredHandlers += uint64(delivered)
	if failed {
		b.metrics.Errors++
	}
	b.metrics.Topics = topics
	b.metrics.SubscribersActive = subsCount
	b.metricsMu.Unlock()
}
