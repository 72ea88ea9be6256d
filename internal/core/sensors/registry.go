package sensors

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor builds an unconfigured sensor.
type Constructor func(env Env) Sensor

// The registry is process-wide. Sensor packages register from init(), so every
// type is known before main runs; lookups after that are read-only.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register makes a sensor type available to Factory under typeName.
func Register(typeName string, ctor Constructor) error {
	if typeName == "" || ctor == nil {
		return fmt.Errorf("%w: register needs a type name and a constructor", ErrInvalidConfig)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[typeName]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, typeName)
	}
	registry[typeName] = ctor
	return nil
}

// MustRegister is Register for init functions.
func MustRegister(typeName string, ctor Constructor) {
	if err := Register(typeName, ctor); err != nil {
		panic(err)
	}
}

func Lookup(typeName string) (Constructor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[typeName]
	return ctor, ok
}

// Registered returns the registered type names, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
