package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/simsensors/internal/core/config"
	"github.com/zeusync/simsensors/internal/core/events/bus"
	"github.com/zeusync/simsensors/internal/core/observability/log"
	"github.com/zeusync/simsensors/internal/core/observability/metrics"
	"github.com/zeusync/simsensors/internal/core/sensors"
	"github.com/zeusync/simsensors/internal/core/transport"
	"github.com/zeusync/simsensors/internal/core/world"
	"github.com/zeusync/simsensors/internal/server"

	// Sensor models register themselves with the sensor registry.
	_ "github.com/zeusync/simsensors/internal/core/sensors/magnetometer"
)

// Runtime is everything the simulator needs to run one world.
type Runtime struct {
	Config *config.Config
	Logger log.Log
	Node   *transport.Node
	World  *world.World
	Bridge *server.Server
}

// Close releases the node's subscriptions and flushes the logger.
func (r *Runtime) Close() error {
	err := r.Node.Close()
	_ = r.Logger.Sync()
	return err
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideBus,
	ProvideNode,
	ProvideSensorEnv,
	ProvideFactory,
	ProvideManager,
	ProvideWorld,
	ProvideBridge,
	wire.Struct(new(Runtime), "*"),
)

func ProvideLogger(cfg *config.Config) log.Log {
	return log.New(cfg.Level())
}

// ProvideBus returns a bus whose traffic is exported as Prometheus metrics.
func ProvideBus() bus.EventBus {
	b := bus.New()
	b.AddObserver(metrics.BusObserver{})
	return b
}

func ProvideNode(b bus.EventBus, cfg *config.Config) *transport.Node {
	return transport.NewNode(b, transport.WithNamespace(cfg.Namespace))
}

func ProvideSensorEnv(node *transport.Node, logger log.Log) sensors.Env {
	return sensors.Env{Node: node, Logger: logger.Named("sensor")}
}

func ProvideFactory(env sensors.Env) *sensors.Factory {
	return sensors.NewFactory(env)
}

func ProvideManager(logger log.Log) *sensors.Manager {
	return sensors.NewManager(sensors.WithManagerLogger(logger))
}

// ProvideWorld builds the entities of cfg and creates and attaches their
// sensors from the raw sensor elements.
func ProvideWorld(cfg *config.Config, manager *sensors.Manager, factory *sensors.Factory, logger log.Log) (*world.World, error) {
	w := world.New(manager, world.WithMagneticField(cfg.MagneticField), world.WithLogger(logger))

	for i := range cfg.Entities {
		ec := &cfg.Entities[i]
		entity := &world.Entity{
			Name:            ec.Name,
			Pose:            ec.Pose,
			AngularVelocity: ec.AngularVelocity,
			LinearVelocity:  ec.LinearVelocity,
		}
		if err := w.AddEntity(entity); err != nil {
			return nil, err
		}
		for j := range ec.Sensors {
			s, err := factory.CreateFromElement(&ec.Sensors[j])
			if err != nil {
				return nil, err
			}
			if err = w.Attach(ec.Name, s); err != nil {
				return nil, err
			}
		}
	}
	return w, nil
}

func ProvideBridge(cfg *config.Config, node *transport.Node, logger log.Log) *server.Server {
	sc := server.DefaultServerConfig()
	if cfg.Listen != "" {
		sc.ListenAddr = cfg.Listen
	}
	return server.NewServer(sc, node, logger)
}
