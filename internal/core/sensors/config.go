package sensors

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/simsensors/internal/core/systems/physics"
)

// Config is the structured description of one sensor.
type Config struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
	// Topic overrides the sensor's default output topic.
	Topic string `json:"topic,omitempty" yaml:"topic,omitempty"`
	// UpdateRate in Hz. Zero means the sensor updates on every manager tick.
	UpdateRate float64 `json:"update_rate,omitempty" yaml:"update_rate,omitempty"`
	// Pose relative to the entity the sensor is attached to.
	Pose physics.Pose `json:"pose,omitempty" yaml:"pose,omitempty"`
}

// Validate validates the sensor configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	if c.Name == "" {
		return fmt.Errorf("%w: sensor name is required", ErrInvalidConfig)
	}

	if c.Type == "" {
		return fmt.Errorf("%w: sensor type is required", ErrInvalidConfig)
	}

	if c.UpdateRate < 0 || math.IsNaN(c.UpdateRate) || math.IsInf(c.UpdateRate, 0) {
		return fmt.Errorf("%w: update rate %v must be a finite, non-negative number", ErrInvalidConfig, c.UpdateRate)
	}

	return nil
}

// DecodeElement converts a generic YAML tree into a Config.
func DecodeElement(node *yaml.Node) (*Config, error) {
	if node == nil {
		return nil, fmt.Errorf("%w: element is nil", ErrInvalidConfig)
	}
	var cfg Config
	if err := node.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &cfg, nil
}
