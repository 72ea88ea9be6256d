package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/simsensors/internal/core/observability/log"
	"github.com/zeusync/simsensors/internal/core/sensors"
	"github.com/zeusync/simsensors/internal/core/systems/physics"
)

const worldYAML = `
log_level: debug
step: 2ms
duration: 5s
real_time_factor: 0
magnetic_field: [1.0e-5, 0, -4.0e-5]
listen: ":8090"
namespace: /sim
entities:
  - name: rover
    pose: [0, 0, 0.1, 0, 0, 1.5707963267948966]
    angular_velocity: [0, 0, 0.5]
    sensors:
      - name: compass
        type: magnetometer
        update_rate: 50
  - name: beacon
`

func TestLoadYAML(t *testing.T) {
	c, err := LoadYAML(strings.NewReader(worldYAML))
	require.NoError(t, err)

	assert.Equal(t, log.LevelDebug, c.Level())
	assert.Equal(t, 2*time.Millisecond, c.Step.Std())
	assert.Equal(t, 5*time.Second, c.Duration.Std())
	assert.Zero(t, c.RealTimeFactor)
	assert.Equal(t, physics.Vec3(1e-5, 0, -4e-5), c.MagneticField)
	assert.Equal(t, ":8090", c.Listen)
	assert.Equal(t, "/sim", c.Namespace)

	require.Len(t, c.Entities, 2)
	rover := c.Entities[0]
	assert.Equal(t, physics.Vec3(0, 0, 0.5), rover.AngularVelocity)
	require.Len(t, rover.Sensors, 1)

	sc, err := sensors.DecodeElement(&rover.Sensors[0])
	require.NoError(t, err)
	assert.Equal(t, "compass", sc.Name)
	assert.Equal(t, 50.0, sc.UpdateRate)

	// Entities without a pose start at the origin with identity orientation.
	assert.Equal(t, physics.PoseIdent(), c.Entities[1].Pose)
}

func TestLoadYAML_DefaultsFillGaps(t *testing.T) {
	c, err := LoadYAML(strings.NewReader("entities: []\n"))
	require.NoError(t, err)
	def := Default()
	assert.Equal(t, def.Step, c.Step)
	assert.Equal(t, def.MagneticField, c.MagneticField)
	assert.Equal(t, 1.0, c.RealTimeFactor)
	assert.Equal(t, log.LevelInfo, c.Level())

	c, err = LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, def, c)
}

func TestLoadYAML_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown field":    "stepp: 1ms\n",
		"zero step":        "step: 0s\n",
		"negative rtf":     "real_time_factor: -1\n",
		"bad level":        "log_level: loud\n",
		"bad namespace":    "namespace: 'a b'\n",
		"unnamed entity":   "entities: [{pose: [0,0,0,0,0,0]}]\n",
		"duplicate entity": "entities: [{name: a}, {name: a}]\n",
		"sensor no type":   "entities: [{name: a, sensors: [{name: s}]}]\n",
		"bad pose arity":   "entities: [{name: a, pose: [1, 2]}]\n",
		"float duration":   "step: 1.5\n",
		"bad duration":     "duration: soon\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadYAML(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad_JSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "world.json")
	doc := `{
  "step": "10ms",
  "magnetic_field": {"x": 0, "y": 2e-5, "z": 0},
  "entities": [{"name": "drone", "sensors": [{"name": "mag", "type": "magnetometer"}]}]
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, c.Step.Std())
	assert.Equal(t, physics.Vec3(0, 2e-5, 0), c.MagneticField)
	require.Len(t, c.Entities, 1)
	assert.Len(t, c.Entities[0].Sensors, 1)

	require.NoError(t, os.WriteFile(path, []byte("step: 10ms"), 0o600))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadJSON_NanosecondDurations(t *testing.T) {
	c, err := LoadJSON(strings.NewReader(`{"step": 10000000, "duration": 2500000000}`))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, c.Step.Std())
	assert.Equal(t, 2500*time.Millisecond, c.Duration.Std())

	c, err = LoadYAML(strings.NewReader("step: 250000\nduration: 1m\n"))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Microsecond, c.Step.Std())
	assert.Equal(t, time.Minute, c.Duration.Std())

	_, err = LoadJSON(strings.NewReader(`{"step": -5}`))
	assert.ErrorIs(t, err, ErrInvalid)
}
