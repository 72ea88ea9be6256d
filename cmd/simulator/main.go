package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeusync/simsensors/internal/core/config"
	"github.com/zeusync/simsensors/internal/core/observability/log"
	"github.com/zeusync/simsensors/internal/core/systems/physics"
	"github.com/zeusync/simsensors/internal/core/world"
	"github.com/zeusync/simsensors/internal/injector"
)

type fieldReader interface {
	MagneticField() physics.Vector3
}

func main() {
	configPath := flag.String("config", "", "world file (YAML or JSON); built-in defaults when empty")
	listen := flag.String("listen", "", "bridge address, overrides the world file")
	duration := flag.Duration("duration", -1, "simulated time to run, overrides the world file (0 runs until interrupted)")
	flag.Parse()

	if err := run(*configPath, *listen, *duration); err != nil {
		fmt.Fprintln(os.Stderr, "simulator:", err)
		os.Exit(1)
	}
}

func run(configPath, listen string, duration time.Duration) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if duration >= 0 {
		cfg.Duration = config.Duration(duration)
	}

	rt, err := injector.InitializeRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Listen != "" {
		if err = rt.Bridge.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := rt.Bridge.Stop(shutdownCtx); err != nil {
				rt.Logger.Warn("Bridge shutdown failed", log.Error(err))
			}
		}()
	}

	err = rt.World.Run(ctx, world.RunOptions{
		Step:           cfg.Step.Std(),
		RealTimeFactor: cfg.RealTimeFactor,
		Duration:       cfg.Duration.Std(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	for _, s := range rt.World.Manager().Sensors() {
		if r, ok := s.(fieldReader); ok {
			rt.Logger.Info("final reading",
				log.String("sensor", s.Name()),
				log.String("topic", s.Topic()),
				log.Duration("sim_time", rt.World.SimTime()),
				log.String("field_tesla", r.MagneticField().String()),
			)
		}
	}
	return nil
}
