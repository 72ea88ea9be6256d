package magnetometer

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/simsensors/internal/core/events/bus"
	"github.com/zeusync/simsensors/internal/core/msgs"
	"github.com/zeusync/simsensors/internal/core/observability/log"
	"github.com/zeusync/simsensors/internal/core/sensors"
	"github.com/zeusync/simsensors/internal/core/systems/physics"
	"github.com/zeusync/simsensors/internal/core/transport"
)

const tolerance = 1e-12

type harness struct {
	node *transport.Node
	logs *observer.ObservedLogs
	env  sensors.Env
}

func newHarness() *harness {
	core, logs := observer.New(zapcore.DebugLevel)
	node := transport.NewNode(bus.New())
	return &harness{
		node: node,
		logs: logs,
		env:  sensors.Env{Node: node, Logger: log.NewWithCore(core)},
	}
}

// collect subscribes to topic and returns a pointer to the received messages.
// Delivery is synchronous, so the slice is complete once Update returns.
func (h *harness) collect(t *testing.T, topic string) *[]msgs.Magnetometer {
	t.Helper()
	var got []msgs.Magnetometer
	_, err := transport.Subscribe(h.node, topic, func(_ string, m msgs.Magnetometer) {
		got = append(got, m)
	})
	require.NoError(t, err)
	return &got
}

func loaded(t *testing.T, h *harness, cfg *sensors.Config) *Sensor {
	t.Helper()
	s := New(h.env)
	require.NoError(t, s.Load(cfg))
	require.NoError(t, s.Init())
	return s
}

func TestUpdate_BeforeLoadFails(t *testing.T) {
	h := newHarness()
	got := h.collect(t, DefaultTopic)

	s := New(h.env)
	s.SetWorldMagneticField(physics.Vec3(1, 2, 3))

	err := s.Update(context.Background(), time.Second)
	assert.ErrorIs(t, err, sensors.ErrNotInitialized)
	assert.Empty(t, *got)
	assert.Equal(t, physics.Vector3{}, s.MagneticField())
	assert.Equal(t, 1, h.logs.FilterMessage("not initialized, update ignored").Len())
}

func TestUpdate_PublishesOneStampedMessage(t *testing.T) {
	h := newHarness()
	got := h.collect(t, DefaultTopic)

	s := loaded(t, h, &sensors.Config{Name: "mag", Type: TypeName})
	assert.Equal(t, DefaultTopic, s.Topic())

	field := physics.Vec3(0.1, 0.2, 0.3)
	s.SetWorldMagneticField(field)

	require.NoError(t, s.Update(context.Background(), 3*time.Second+250*time.Millisecond))
	require.Len(t, *got, 1)

	msg := (*got)[0]
	assert.Equal(t, msgs.Time{Sec: 3, Nsec: 250_000_000}, msg.Header.Stamp)
	frame, ok := msg.Header.Get("frame_id")
	require.True(t, ok)
	assert.Equal(t, []string{"mag"}, frame)
	assert.Equal(t, field, msg.FieldTesla.Vector3())

	require.NoError(t, s.Update(context.Background(), 4*time.Second))
	assert.Len(t, *got, 2)
}

func TestUpdate_IdentityIsExact(t *testing.T) {
	h := newHarness()
	s := loaded(t, h, &sensors.Config{Name: "mag", Type: TypeName})

	field := physics.Vec3(2.1e-5, -4.7e-6, 4.3e-5)
	s.SetWorldPose(physics.PoseIdent())
	s.SetWorldMagneticField(field)
	require.NoError(t, s.Update(context.Background(), 0))
	assert.Equal(t, field, s.MagneticField())
}

func TestUpdate_RotatesIntoBodyFrame(t *testing.T) {
	h := newHarness()
	s := loaded(t, h, &sensors.Config{Name: "mag", Type: TypeName})

	// Yawed 90 degrees left, a field pointing along world +X appears along body -Y.
	s.SetWorldPose(physics.NewPose(0, 0, 0, 0, 0, math.Pi/2))
	s.SetWorldMagneticField(physics.Vec3(1, 0, 0))
	require.NoError(t, s.Update(context.Background(), 0))
	assert.True(t, s.MagneticField().Equal(physics.Vec3(0, -1, 0), tolerance), s.MagneticField().String())
}

func TestUpdate_PreservesMagnitude(t *testing.T) {
	h := newHarness()
	s := loaded(t, h, &sensors.Config{Name: "mag", Type: TypeName})

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		q := physics.Quaternion{
			W: rng.NormFloat64(),
			X: rng.NormFloat64(),
			Y: rng.NormFloat64(),
			Z: rng.NormFloat64(),
		}.Normalize()
		field := physics.Vec3(rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()).Scale(1e-4)

		s.SetWorldPose(physics.Pose{Pos: physics.Vec3(rng.Float64(), 0, 0), Rot: q})
		s.SetWorldMagneticField(field)
		require.NoError(t, s.Update(context.Background(), time.Duration(i)*time.Millisecond))

		assert.InDelta(t, field.Length(), s.MagneticField().Length(), 1e-15)
		back := q.Rotate(s.MagneticField())
		assert.True(t, back.Equal(field, 1e-15), "orientation %s", q)
	}
}

func TestUpdate_NonUnitOrientation(t *testing.T) {
	h := newHarness()
	s := loaded(t, h, &sensors.Config{Name: "mag", Type: TypeName})

	unit := physics.QuatFromEuler(0, 0, math.Pi/2)
	scaled := physics.Quaternion{W: 2 * unit.W, X: 2 * unit.X, Y: 2 * unit.Y, Z: 2 * unit.Z}
	s.SetWorldPose(physics.Pose{Rot: scaled})
	s.SetWorldMagneticField(physics.Vec3(1, 0, 0))
	require.NoError(t, s.Update(context.Background(), 0))

	assert.Equal(t, scaled, s.WorldPose().Rot)
	assert.True(t, s.MagneticField().Equal(physics.Vec3(0, -1, 0), tolerance), s.MagneticField().String())
	assert.InDelta(t, 1.0, s.MagneticField().Length(), tolerance)
}

func TestUpdate_ZeroOrientationKeepsWorldField(t *testing.T) {
	h := newHarness()
	got := h.collect(t, DefaultTopic)
	s := loaded(t, h, &sensors.Config{Name: "mag", Type: TypeName})

	field := physics.Vec3(2e-5, -1e-5, 4e-5)
	s.SetWorldPose(physics.Pose{})
	s.SetWorldMagneticField(field)
	require.NoError(t, s.Update(context.Background(), time.Second))

	assert.Equal(t, field, s.MagneticField())
	require.Len(t, *got, 1)
	assert.True(t, (*got)[0].FieldTesla.Vector3().IsFinite())
}

func TestMagneticField_StaleUntilUpdate(t *testing.T) {
	h := newHarness()
	s := loaded(t, h, &sensors.Config{Name: "mag", Type: TypeName})

	s.SetWorldMagneticField(physics.Vec3(1, 0, 0))
	require.NoError(t, s.Update(context.Background(), 0))

	s.SetWorldMagneticField(physics.Vec3(0, 0, 5))
	assert.Equal(t, physics.Vec3(1, 0, 0), s.MagneticField())
}

func TestSettersRoundTrip(t *testing.T) {
	s := New(newHarness().env)
	assert.Equal(t, physics.PoseIdent(), s.WorldPose())

	pose := physics.Pose{
		Pos: physics.Vec3(1, -2, 3.5),
		Rot: physics.Quaternion{W: 0.5, X: 0.5, Y: -0.5, Z: 0.5},
	}
	s.SetWorldPose(pose)
	assert.Equal(t, pose, s.WorldPose())

	field := physics.Vec3(math.SmallestNonzeroFloat64, -1e300, 0)
	s.SetWorldMagneticField(field)
	assert.Equal(t, field, s.WorldMagneticField())
}

func TestLoad_TopicOverride(t *testing.T) {
	h := newHarness()
	def := h.collect(t, DefaultTopic)
	custom := h.collect(t, "/robot/compass")

	s := loaded(t, h, &sensors.Config{Name: "mag", Type: TypeName, Topic: "/robot/compass"})
	require.NoError(t, s.Update(context.Background(), 0))

	assert.Empty(t, *def)
	assert.Len(t, *custom, 1)
}

func TestLoad_InvalidTopicStaysUninitialized(t *testing.T) {
	h := newHarness()
	s := New(h.env)

	err := s.Load(&sensors.Config{Name: "mag", Type: TypeName, Topic: "bad topic"})
	require.Error(t, err)
	assert.ErrorIs(t, s.Update(context.Background(), 0), sensors.ErrNotInitialized)
}

func TestLoad_AdvertiseFailure(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.node.EventBus().CreateTopic("/magnetometer", bus.TopicConfig{MessageType: "other.Type"}))

	s := New(h.env)
	err := s.Load(&sensors.Config{Name: "mag", Type: TypeName})
	assert.ErrorIs(t, err, transport.ErrTopicTypeMismatch)
	assert.ErrorIs(t, s.Update(context.Background(), 0), sensors.ErrNotInitialized)
	assert.Equal(t, 1, h.logs.FilterMessage("unable to create publisher").Len())
}

func TestLoadElement_MatchesLoad(t *testing.T) {
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(`
name: compass
type: magnetometer
topic: compass
update_rate: 100
pose:
  pos: [0, 0, 0.2]
`), &node))

	fromTree := New(newHarness().env)
	require.NoError(t, fromTree.LoadElement(&node))

	fromStruct := New(newHarness().env)
	require.NoError(t, fromStruct.Load(&sensors.Config{
		Name:       "compass",
		Type:       TypeName,
		Topic:      "compass",
		UpdateRate: 100,
		Pose:       physics.Pose{Pos: physics.Vec3(0, 0, 0.2)},
	}))

	for _, s := range []*Sensor{fromTree, fromStruct} {
		assert.Equal(t, "compass", s.Name())
		assert.Equal(t, "compass", s.Topic())
		assert.Equal(t, 100.0, s.UpdateRate())
		assert.Equal(t, physics.Pose{Pos: physics.Vec3(0, 0, 0.2), Rot: physics.QuatIdent()}, s.Pose())
		assert.Equal(t, []string{"/compass"}, s.Node().AdvertisedTopics())
	}
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, sensors.Registered(), TypeName)

	s, err := sensors.NewFactory(newHarness().env).Create(&sensors.Config{Name: "m", Type: TypeName})
	require.NoError(t, err)
	_, ok := s.(*Sensor)
	assert.True(t, ok)
}
