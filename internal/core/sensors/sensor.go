// Package sensors contains the lifecycle shared by every simulated sensor:
// configuration, update scheduling, a type registry and a manager that ticks
// sensors against simulation time.
package sensors

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/simsensors/internal/core/observability/log"
	"github.com/zeusync/simsensors/internal/core/systems/physics"
	"github.com/zeusync/simsensors/internal/core/transport"
)

// Sensor is implemented by every sensor model. Models embed Base and provide
// Update; they override Load/LoadElement when they need more configuration.
type Sensor interface {
	Name() string
	ID() string
	Type() string
	Topic() string
	Pose() physics.Pose
	UpdateRate() float64

	// Load configures the sensor from a structured descriptor.
	Load(cfg *Config) error
	// LoadElement configures the sensor from a generic YAML tree. It must behave
	// exactly like Load on the decoded descriptor.
	LoadElement(node *yaml.Node) error
	Init() error
	// Update produces one reading stamped with simulation time now.
	Update(ctx context.Context, now time.Duration) error

	NextDataUpdateTime() time.Duration
	Due(now time.Duration) bool
	AdvanceUpdateTime(now time.Duration)
}

// Env carries what a sensor needs from its host.
type Env struct {
	// Node publishes sensor output. Nil means a node on bus.Default().
	Node   *transport.Node
	Logger log.Log
}

// Base holds the state every sensor shares. It is not safe for concurrent use;
// the owner drives a sensor from one goroutine at a time.
type Base struct {
	node       *transport.Node
	rootLogger log.Log
	logger     log.Log

	name       string
	id         string
	typ        string
	topic      string
	updateRate float64
	pose       physics.Pose
	nextUpdate time.Duration
}

func NewBase(env Env) Base {
	node := env.Node
	if node == nil {
		node = transport.NewNode(nil)
	}
	logger := env.Logger
	if logger == nil {
		logger = log.Provide()
	}
	return Base{
		node:       node,
		rootLogger: logger,
		logger:     logger,
		pose:       physics.PoseIdent(),
	}
}

// Load validates cfg and copies the common settings. A configured topic must
// be a valid topic name.
func (b *Base) Load(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Topic != "" {
		if err := b.SetTopic(cfg.Topic); err != nil {
			return err
		}
	}

	b.name = cfg.Name
	b.typ = cfg.Type
	b.updateRate = cfg.UpdateRate
	b.pose = physics.Pose{Pos: cfg.Pose.Pos, Rot: cfg.Pose.Rot.Normalize()}
	b.id = uuid.NewString()
	b.nextUpdate = 0
	b.logger = b.rootLogger.With(
		log.String("sensor", b.name),
		log.String("type", b.typ),
		log.String("sensor_id", b.id),
	)
	return nil
}

func (b *Base) LoadElement(node *yaml.Node) error {
	cfg, err := DecodeElement(node)
	if err != nil {
		return err
	}
	return b.Load(cfg)
}

func (b *Base) Init() error { return nil }

func (b *Base) Name() string { return b.name }

func (b *Base) ID() string { return b.id }

func (b *Base) Type() string { return b.typ }

// Topic returns the configured topic, or "" when none was configured.
func (b *Base) Topic() string { return b.topic }

// SetTopic changes the topic the sensor will advertise on its next Load.
func (b *Base) SetTopic(topic string) error {
	if _, err := transport.FullyQualifiedTopic("", topic); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	b.topic = topic
	return nil
}

func (b *Base) UpdateRate() float64 { return b.updateRate }

func (b *Base) SetUpdateRate(hz float64) error {
	if hz < 0 {
		return fmt.Errorf("%w: update rate %v is negative", ErrInvalidConfig, hz)
	}
	b.updateRate = hz
	return nil
}

// Pose is the sensor pose relative to the entity it is attached to.
func (b *Base) Pose() physics.Pose { return b.pose }

func (b *Base) SetPose(p physics.Pose) { b.pose = p }

func (b *Base) Node() *transport.Node { return b.node }

func (b *Base) Logger() log.Log { return b.logger }

func (b *Base) NextDataUpdateTime() time.Duration { return b.nextUpdate }

// Due reports whether the sensor should update at simulation time now.
func (b *Base) Due(now time.Duration) bool {
	return b.updatePeriod() == 0 || now >= b.nextUpdate
}

// AdvanceUpdateTime schedules the next update one period later. A sensor that
// fell behind skips the missed periods instead of bursting.
func (b *Base) AdvanceUpdateTime(now time.Duration) {
	period := b.updatePeriod()
	if period == 0 {
		return
	}
	b.nextUpdate += period
	if b.nextUpdate <= now {
		b.nextUpdate = now + period
	}
}

func (b *Base) updatePeriod() time.Duration {
	if b.updateRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / b.updateRate)
}
