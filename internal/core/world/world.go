// Package world drives sensors: it moves entities through simulation time and
// feeds each attached sensor its world pose and the magnetic field before the
// sensor manager runs.
package world

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zeusync/simsensors/internal/core/observability/log"
	"github.com/zeusync/simsensors/internal/core/observability/metrics"
	"github.com/zeusync/simsensors/internal/core/sensors"
	"github.com/zeusync/simsensors/internal/core/systems/physics"
)

var (
	ErrDuplicateEntity = errors.New("entity already exists")
	ErrUnknownEntity   = errors.New("unknown entity")
	ErrInvalidStep     = errors.New("step must be positive")
)

// PoseSetter is implemented by sensors that need their world pose.
type PoseSetter interface {
	SetWorldPose(physics.Pose)
}

// MagneticFieldSetter is implemented by sensors that need the world field.
type MagneticFieldSetter interface {
	SetWorldMagneticField(physics.Vector3)
}

type attachment struct {
	entity *Entity
	sensor sensors.Sensor
}

type World struct {
	mu          sync.Mutex
	field       physics.Vector3
	entities    []*Entity
	byName      map[string]*Entity
	attachments []attachment
	manager     *sensors.Manager
	simTime     time.Duration
	logger      log.Log
}

type Option func(*World)

// WithMagneticField sets the uniform world magnetic field in tesla.
func WithMagneticField(field physics.Vector3) Option {
	return func(w *World) { w.field = field }
}

func WithLogger(l log.Log) Option {
	return func(w *World) { w.logger = l }
}

func New(manager *sensors.Manager, opts ...Option) *World {
	if manager == nil {
		manager = sensors.NewManager()
	}
	w := &World{
		byName:  make(map[string]*Entity),
		manager: manager,
		logger:  log.Provide(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("world")
	return w
}

func (w *World) AddEntity(e *Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.byName[e.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateEntity, e.Name)
	}
	w.byName[e.Name] = e
	w.entities = append(w.entities, e)
	return nil
}

func (w *World) Entity(name string) (*Entity, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.byName[name]
	return e, ok
}

// Attach mounts s on the named entity and hands it to the sensor manager.
func (w *World) Attach(entity string, s sensors.Sensor) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.byName[entity]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
	if err := w.manager.Add(s); err != nil {
		return err
	}
	w.attachments = append(w.attachments, attachment{entity: e, sensor: s})
	w.logger.Debug("sensor attached",
		log.String("entity", entity),
		log.String("sensor", s.Name()),
		log.String("type", s.Type()),
	)
	return nil
}

func (w *World) Manager() *sensors.Manager { return w.manager }

func (w *World) MagneticField() physics.Vector3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.field
}

func (w *World) SetMagneticField(field physics.Vector3) {
	w.mu.Lock()
	w.field = field
	w.mu.Unlock()
}

func (w *World) SimTime() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.simTime
}

// Step advances simulation time by dt, moves every entity, pushes pose and
// field into the attached sensors and then updates the sensors that are due.
func (w *World) Step(ctx context.Context, dt time.Duration) error {
	if dt <= 0 {
		return ErrInvalidStep
	}
	start := time.Now()

	w.mu.Lock()
	w.simTime += dt
	now := w.simTime
	for _, e := range w.entities {
		e.Step(dt)
	}
	for _, a := range w.attachments {
		if ps, ok := a.sensor.(PoseSetter); ok {
			ps.SetWorldPose(a.entity.Pose.Compose(a.sensor.Pose()))
		}
		if fs, ok := a.sensor.(MagneticFieldSetter); ok {
			fs.SetWorldMagneticField(w.field)
		}
	}
	w.mu.Unlock()

	err := w.manager.RunOnce(ctx, now)

	metrics.SetSimTime(now)
	metrics.ObserveStep(time.Since(start))
	return err
}

// RunOptions controls Run.
type RunOptions struct {
	Step time.Duration
	// RealTimeFactor paces the loop against the wall clock. Zero or less runs
	// as fast as possible.
	RealTimeFactor float64
	// Duration stops the loop once simulation time reaches it. Zero runs until
	// ctx is done.
	Duration time.Duration
}

// Run steps the world until the configured duration is reached or ctx is done.
// Sensor update failures are logged and do not stop the loop.
func (w *World) Run(ctx context.Context, opts RunOptions) error {
	if opts.Step <= 0 {
		return ErrInvalidStep
	}

	var tick <-chan time.Time
	if opts.RealTimeFactor > 0 {
		if period := time.Duration(float64(opts.Step) / opts.RealTimeFactor); period > 0 {
			ticker := time.NewTicker(period)
			defer ticker.Stop()
			tick = ticker.C
		}
	}

	w.logger.Info("simulation started",
		log.Duration("step", opts.Step),
		log.Float64("real_time_factor", opts.RealTimeFactor),
		log.Duration("duration", opts.Duration),
	)

	for {
		if opts.Duration > 0 && w.SimTime() >= opts.Duration {
			w.logger.Info("simulation finished", log.Duration("sim_time", w.SimTime()))
			return nil
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := w.Step(ctx, opts.Step); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			w.logger.Warn("sensor update failed", log.Duration("sim_time", w.SimTime()), log.Error(err))
		}
	}
}
