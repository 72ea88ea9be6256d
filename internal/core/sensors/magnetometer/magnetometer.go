// Package magnetometer implements a noiseless magnetometer. Each update it
// rotates the world magnetic field into the sensor body frame and publishes
// the result.
package magnetometer

import (
	"context"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/simsensors/internal/core/msgs"
	"github.com/zeusync/simsensors/internal/core/observability/log"
	"github.com/zeusync/simsensors/internal/core/observability/metrics"
	"github.com/zeusync/simsensors/internal/core/sensors"
	"github.com/zeusync/simsensors/internal/core/systems/physics"
	"github.com/zeusync/simsensors/internal/core/transport"
)

const (
	TypeName     = "magnetometer"
	DefaultTopic = "/magnetometer"
)

func init() {
	sensors.MustRegister(TypeName, func(env sensors.Env) sensors.Sensor { return New(env) })
}

// Sensor is a magnetometer. The owner sets the world pose and field and then
// calls Update, all from one goroutine.
type Sensor struct {
	sensors.Base

	pub         *transport.Publisher[msgs.Magnetometer]
	initialized bool

	worldPose  physics.Pose
	worldField physics.Vector3
	localField physics.Vector3
}

func New(env sensors.Env) *Sensor {
	return &Sensor{
		Base:      sensors.NewBase(env),
		worldPose: physics.PoseIdent(),
	}
}

// Load configures the sensor and advertises its output topic. The sensor
// publishes only after a successful Load.
func (s *Sensor) Load(cfg *sensors.Config) error {
	s.initialized = false

	if err := s.Base.Load(cfg); err != nil {
		return err
	}

	topic := s.Topic()
	if topic == "" {
		topic = DefaultTopic
		if err := s.SetTopic(topic); err != nil {
			return err
		}
	}

	pub, err := transport.Advertise[msgs.Magnetometer](s.Node(), topic)
	if err != nil {
		s.Logger().Error("unable to create publisher", log.String("topic", topic), log.Error(err))
		return err
	}
	s.pub = pub
	s.initialized = true

	s.Logger().Debug("magnetometer loaded", log.String("topic", pub.Topic()))
	return nil
}

// LoadElement decodes node and loads it exactly as Load would.
func (s *Sensor) LoadElement(node *yaml.Node) error {
	cfg, err := sensors.DecodeElement(node)
	if err != nil {
		return err
	}
	return s.Load(cfg)
}

func (s *Sensor) Init() error { return s.Base.Init() }

// Update computes the body-frame field for the current pose and publishes it
// stamped with now.
func (s *Sensor) Update(_ context.Context, now time.Duration) error {
	if !s.initialized {
		s.Logger().Error("not initialized, update ignored", log.Duration("sim_time", now))
		metrics.ObserveSensorUpdate(TypeName, metrics.ResultNotInitialized)
		return sensors.ErrNotInitialized
	}

	s.localField = s.worldPose.Rot.Inverse().Rotate(s.worldField)

	msg := msgs.Magnetometer{
		Header: msgs.Header{
			Stamp: msgs.TimeFromDuration(now),
			Data:  []msgs.HeaderEntry{{Key: "frame_id", Value: []string{s.Name()}}},
		},
		FieldTesla: msgs.Vector3dFrom(s.localField),
	}

	// Delivery failures belong to subscribers; the reading was still produced.
	if err := s.pub.Publish(msg); err != nil {
		s.Logger().Debug("magnetometer publish reported errors", log.Error(err))
	}
	metrics.ObserveSensorUpdate(TypeName, metrics.ResultOK)
	return nil
}

// SetWorldPose stores the sensor pose in the world frame verbatim.
func (s *Sensor) SetWorldPose(p physics.Pose) { s.worldPose = p }

func (s *Sensor) WorldPose() physics.Pose { return s.worldPose }

// SetWorldMagneticField stores the world-frame field in tesla verbatim.
func (s *Sensor) SetWorldMagneticField(field physics.Vector3) { s.worldField = field }

func (s *Sensor) WorldMagneticField() physics.Vector3 { return s.worldField }

// MagneticField returns the body-frame field computed by the last Update.
func (s *Sensor) MagneticField() physics.Vector3 { return s.localField }
