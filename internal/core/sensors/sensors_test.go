package sensors

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/simsensors/internal/core/events/bus"
	"github.com/zeusync/simsensors/internal/core/observability/log"
	"github.com/zeusync/simsensors/internal/core/systems/physics"
	"github.com/zeusync/simsensors/internal/core/transport"
)

const counterType = "test.counter"

var errCounterBroken = errors.New("counter broken")

type counterSensor struct {
	Base
	updates atomic.Int32
	fail    bool
	inits   int
}

func newCounter(env Env) Sensor {
	return &counterSensor{Base: NewBase(env)}
}

func (c *counterSensor) Init() error {
	c.inits++
	return nil
}

func (c *counterSensor) Update(context.Context, time.Duration) error {
	c.updates.Add(1)
	if c.fail {
		return errCounterBroken
	}
	return nil
}

func init() {
	MustRegister(counterType, newCounter)
}

func testEnv() Env {
	return Env{Node: transport.NewNode(bus.New()), Logger: log.NewNop()}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
		ok   bool
	}{
		{"nil", nil, false},
		{"missing name", &Config{Type: counterType}, false},
		{"missing type", &Config{Name: "c"}, false},
		{"negative rate", &Config{Name: "c", Type: counterType, UpdateRate: -1}, false},
		{"valid", &Config{Name: "c", Type: counterType, UpdateRate: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestBase_LoadAndTopic(t *testing.T) {
	b := NewBase(testEnv())
	assert.True(t, b.Pose().Equal(physics.PoseIdent(), 0))

	require.NoError(t, b.Load(&Config{Name: "mag", Type: counterType, Topic: "/robot/mag", UpdateRate: 50}))
	assert.Equal(t, "mag", b.Name())
	assert.Equal(t, counterType, b.Type())
	assert.Equal(t, "/robot/mag", b.Topic())
	assert.Equal(t, 50.0, b.UpdateRate())
	assert.NotEmpty(t, b.ID())
	assert.Equal(t, physics.QuatIdent(), b.Pose().Rot)

	assert.ErrorIs(t, b.SetTopic("bad topic"), ErrInvalidConfig)
	assert.Equal(t, "/robot/mag", b.Topic())

	err := b.Load(&Config{Name: "mag", Type: counterType, Topic: "a//b"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, transport.ErrInvalidTopic)
}

func TestBase_Schedule(t *testing.T) {
	b := NewBase(testEnv())
	require.NoError(t, b.Load(&Config{Name: "s", Type: counterType, UpdateRate: 50}))

	ms := time.Millisecond
	var fired []time.Duration
	for now := 10 * ms; now <= 100*ms; now += 10 * ms {
		if b.Due(now) {
			fired = append(fired, now)
			b.AdvanceUpdateTime(now)
		}
	}
	assert.Equal(t, []time.Duration{10 * ms, 20 * ms, 40 * ms, 60 * ms, 80 * ms, 100 * ms}, fired)

	// A stalled sensor resumes one period after the current time.
	b.AdvanceUpdateTime(time.Second)
	assert.Equal(t, time.Second+20*ms, b.NextDataUpdateTime())
}

func TestBase_ZeroRateAlwaysDue(t *testing.T) {
	b := NewBase(testEnv())
	require.NoError(t, b.Load(&Config{Name: "s", Type: counterType}))
	b.AdvanceUpdateTime(time.Second)
	assert.True(t, b.Due(0))
	assert.True(t, b.Due(time.Hour))
}

func TestRegistry(t *testing.T) {
	assert.ErrorIs(t, Register(counterType, newCounter), ErrDuplicateType)
	assert.ErrorIs(t, Register("", newCounter), ErrInvalidConfig)

	ctor, ok := Lookup(counterType)
	require.True(t, ok)
	assert.NotNil(t, ctor(testEnv()))

	_, ok = Lookup("nope")
	assert.False(t, ok)
	assert.Contains(t, Registered(), counterType)
}

func TestFactory_Create(t *testing.T) {
	f := NewFactory(testEnv())

	s, err := f.Create(&Config{Name: "c1", Type: counterType})
	require.NoError(t, err)
	assert.Equal(t, "c1", s.Name())
	assert.Equal(t, 1, s.(*counterSensor).inits)

	_, err = f.Create(&Config{Name: "c2", Type: "nope"})
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = f.Create(&Config{Type: counterType})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFactory_CreateFromElement(t *testing.T) {
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(`
name: c3
type: test.counter
topic: counter
update_rate: 5
pose: [1, 0, 0, 0, 0, 0]
`), &node))

	s, err := NewFactory(testEnv()).CreateFromElement(&node)
	require.NoError(t, err)
	assert.Equal(t, "c3", s.Name())
	assert.Equal(t, "counter", s.Topic())
	assert.Equal(t, 5.0, s.UpdateRate())
	assert.Equal(t, physics.Vec3(1, 0, 0), s.Pose().Pos)

	_, err = NewFactory(testEnv()).CreateFromElement(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestManager_RunOnce(t *testing.T) {
	f := NewFactory(testEnv())
	m := NewManager(WithWorkers(2), WithManagerLogger(log.NewNop()))

	fast, err := f.Create(&Config{Name: "fast", Type: counterType})
	require.NoError(t, err)
	slow, err := f.Create(&Config{Name: "slow", Type: counterType, UpdateRate: 10})
	require.NoError(t, err)

	require.NoError(t, m.Add(fast))
	require.NoError(t, m.Add(slow))
	assert.ErrorIs(t, m.Add(fast), ErrDuplicateID)

	ctx := context.Background()
	for now := time.Duration(0); now < time.Second; now += 10 * time.Millisecond {
		require.NoError(t, m.RunOnce(ctx, now))
	}
	assert.Equal(t, int32(100), fast.(*counterSensor).updates.Load())
	assert.Equal(t, int32(10), slow.(*counterSensor).updates.Load())

	assert.Equal(t, []Sensor{fast, slow}, m.Sensors())
	got, ok := m.Sensor(slow.ID())
	require.True(t, ok)
	assert.Same(t, slow, got)

	assert.True(t, m.Remove(fast.ID()))
	assert.False(t, m.Remove(fast.ID()))
	assert.Equal(t, []Sensor{slow}, m.Sensors())
}

func TestManager_RunOnceJoinsErrors(t *testing.T) {
	f := NewFactory(testEnv())
	m := NewManager(WithManagerLogger(log.NewNop()))

	broken, err := f.Create(&Config{Name: "broken", Type: counterType})
	require.NoError(t, err)
	broken.(*counterSensor).fail = true
	healthy, err := f.Create(&Config{Name: "healthy", Type: counterType})
	require.NoError(t, err)
	require.NoError(t, m.Add(broken))
	require.NoError(t, m.Add(healthy))

	err = m.RunOnce(context.Background(), time.Millisecond)
	assert.ErrorIs(t, err, errCounterBroken)
	assert.Contains(t, err.Error(), `"broken"`)
	assert.Equal(t, int32(1), healthy.(*counterSensor).updates.Load())
}
