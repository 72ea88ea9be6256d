package sensors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zeusync/simsensors/internal/core/observability/log"
	"github.com/zeusync/simsensors/pkg/concurrent"
)

// Manager owns a set of sensors and updates the ones that are due.
type Manager struct {
	mu      sync.RWMutex
	sensors map[string]Sensor
	order   []string
	workers int
	logger  log.Log
}

type ManagerOption func(*Manager)

// WithWorkers bounds how many sensors update concurrently. Zero means one
// goroutine per due sensor.
func WithWorkers(n int) ManagerOption {
	return func(m *Manager) { m.workers = n }
}

func WithManagerLogger(l log.Log) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		sensors: make(map[string]Sensor),
		logger:  log.Provide(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("sensors")
	return m
}

func (m *Manager) Add(s Sensor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sensors[s.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, s.ID())
	}
	m.sensors[s.ID()] = s
	m.order = append(m.order, s.ID())
	return nil
}

func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sensors[id]; !exists {
		return false
	}
	delete(m.sensors, id)
	for i, cur := range m.order {
		if cur == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

func (m *Manager) Sensor(id string) (Sensor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sensors[id]
	return s, ok
}

// Sensors returns the managed sensors in insertion order.
func (m *Manager) Sensors() []Sensor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Sensor, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sensors[id])
	}
	return out
}

// RunOnce updates every sensor that is due at now and schedules its next
// update. Sensors are updated concurrently; a failing sensor does not keep the
// others from updating, and all failures are returned joined.
func (m *Manager) RunOnce(ctx context.Context, now time.Duration) error {
	var due []Sensor
	for _, s := range m.Sensors() {
		if s.Due(now) {
			due = append(due, s)
		}
	}

	err := concurrent.ForEach(ctx, due, m.workers, func(ctx context.Context, s Sensor) error {
		defer s.AdvanceUpdateTime(now)
		if err := s.Update(ctx, now); err != nil {
			return fmt.Errorf("sensor %q: %w", s.Name(), err)
		}
		return nil
	})
	if err != nil {
		m.logger.Debug("sensor updates failed", log.Duration("sim_time", now), log.Error(err))
	}
	return err
}
