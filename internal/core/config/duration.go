package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from either a duration string
// ("10ms", "1m30s") or an integer number of nanoseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	switch node.ShortTag() {
	case "!!int":
		var ns int64
		if err := node.Decode(&ns); err != nil {
			return err
		}
		*d = Duration(ns)
	case "!!str":
		parsed, err := time.ParseDuration(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("line %d: duration must be a string such as \"10ms\" or integer nanoseconds, got %q", node.Line, node.Value)
	}
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }
