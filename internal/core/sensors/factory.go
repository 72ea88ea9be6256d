package sensors

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/simsensors/internal/core/observability/log"
)

// Factory creates loaded and initialized sensors from configuration.
type Factory struct {
	env Env
}

func NewFactory(env Env) *Factory {
	if env.Logger == nil {
		env.Logger = log.Provide()
	}
	return &Factory{env: env}
}

// Create builds a sensor of cfg.Type, loads cfg into it and initializes it.
func (f *Factory) Create(cfg *Config) (Sensor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := f.construct(cfg.Type)
	if err != nil {
		return nil, err
	}
	if err = s.Load(cfg); err != nil {
		return nil, fmt.Errorf("load %s sensor %q: %w", cfg.Type, cfg.Name, err)
	}
	return f.init(s)
}

// CreateFromElement is Create for a generic YAML tree. The tree is handed to
// the sensor's LoadElement untouched.
func (f *Factory) CreateFromElement(node *yaml.Node) (Sensor, error) {
	cfg, err := DecodeElement(node)
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := f.construct(cfg.Type)
	if err != nil {
		return nil, err
	}
	if err = s.LoadElement(node); err != nil {
		return nil, fmt.Errorf("load %s sensor %q: %w", cfg.Type, cfg.Name, err)
	}
	return f.init(s)
}

func (f *Factory) construct(typeName string) (Sensor, error) {
	ctor, ok := Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownType, typeName, Registered())
	}
	return ctor(f.env), nil
}

func (f *Factory) init(s Sensor) (Sensor, error) {
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("init %s sensor %q: %w", s.Type(), s.Name(), err)
	}
	f.env.Logger.Debug("sensor created",
		log.String("sensor", s.Name()),
		log.String("type", s.Type()),
		log.String("sensor_id", s.ID()),
	)
	return s, nil
}
