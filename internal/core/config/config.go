// Package config loads the world description the simulator runs: timing, the
// world magnetic field, entities and the sensors mounted on them.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/simsensors/internal/core/observability/log"
	"github.com/zeusync/simsensors/internal/core/sensors"
	"github.com/zeusync/simsensors/internal/core/systems/physics"
	"github.com/zeusync/simsensors/internal/core/transport"
)

var ErrInvalid = errors.New("invalid world config")

// DefaultMagneticField is a mid-latitude geomagnetic field in tesla.
var DefaultMagneticField = physics.Vec3(5.5645e-6, 22.8758e-6, -42.3884e-6)

type Config struct {
	LogLevel string   `json:"log_level" yaml:"log_level"`
	Step     Duration `json:"step" yaml:"step"`
	// Duration of simulated time to run; zero runs until interrupted.
	Duration       Duration        `json:"duration" yaml:"duration"`
	RealTimeFactor float64         `json:"real_time_factor" yaml:"real_time_factor"`
	MagneticField  physics.Vector3 `json:"magnetic_field" yaml:"magnetic_field"`
	// Namespace prefixes relative sensor topics.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	// Listen is the bridge address; empty disables the bridge.
	Listen   string         `json:"listen,omitempty" yaml:"listen,omitempty"`
	Entities []EntityConfig `json:"entities" yaml:"entities"`
}

type EntityConfig struct {
	Name            string          `yaml:"name"`
	Pose            physics.Pose    `yaml:"pose"`
	AngularVelocity physics.Vector3 `yaml:"angular_velocity"`
	LinearVelocity  physics.Vector3 `yaml:"linear_velocity"`
	// Sensors are kept as raw trees and handed to each sensor's LoadElement.
	Sensors []yaml.Node `yaml:"sensors"`
}

func Default() *Config {
	return &Config{
		LogLevel:       "info",
		Step:           Duration(time.Millisecond),
		RealTimeFactor: 1,
		MagneticField:  DefaultMagneticField,
	}
}

// Load reads a world file. Files ending in .json are checked as JSON; anything
// else is read as YAML.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadJSON(f)
	}
	return LoadYAML(f)
}

// LoadYAML decodes a world file over Default and validates it.
func LoadYAML(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadJSON accepts the same document in JSON. Durations may be strings such
// as "10ms" or integer nanoseconds.
func LoadJSON(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalid)
	}
	return LoadYAML(strings.NewReader(string(data)))
}

// normalize fills in orientations left out of the file.
func (c *Config) normalize() {
	for i := range c.Entities {
		c.Entities[i].Pose.Rot = c.Entities[i].Pose.Rot.Normalize()
	}
}

func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Step <= 0 {
		return fmt.Errorf("%w: step must be positive, got %s", ErrInvalid, c.Step)
	}
	if c.Duration < 0 {
		return fmt.Errorf("%w: duration must not be negative, got %s", ErrInvalid, c.Duration)
	}
	if c.RealTimeFactor < 0 || math.IsNaN(c.RealTimeFactor) || math.IsInf(c.RealTimeFactor, 0) {
		return fmt.Errorf("%w: real_time_factor must be a finite, non-negative number", ErrInvalid)
	}
	if !c.MagneticField.IsFinite() {
		return fmt.Errorf("%w: magnetic_field must be finite", ErrInvalid)
	}
	if c.Namespace != "" && !transport.ValidTopic(c.Namespace) {
		return fmt.Errorf("%w: namespace %q is not a valid topic prefix", ErrInvalid, c.Namespace)
	}

	seen := make(map[string]struct{}, len(c.Entities))
	for i := range c.Entities {
		e := &c.Entities[i]
		if e.Name == "" {
			return fmt.Errorf("%w: entity %d has no name", ErrInvalid, i)
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("%w: entity %q declared twice", ErrInvalid, e.Name)
		}
		seen[e.Name] = struct{}{}

		for j := range e.Sensors {
			sc, err := sensors.DecodeElement(&e.Sensors[j])
			if err == nil {
				err = sc.Validate()
			}
			if err != nil {
				return fmt.Errorf("%w: entity %q sensor %d: %w", ErrInvalid, e.Name, j, err)
			}
		}
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() log.Level {
	lvl, _ := log.ParseLevel(c.LogLevel)
	return lvl
}
