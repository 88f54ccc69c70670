// Package store persists workflow instances behind pluggable drivers.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/darmiel/lastword/internal/config"
	"github.com/darmiel/lastword/internal/core"
)

// Driver is an InstanceStore with a lifecycle.
type Driver interface {
	core.InstanceStore

	Name() string
	Init(ctx context.Context) error
	Close() error
}

// DriverConfig holds configuration for driver selection and initialization.
type DriverConfig struct {
	// Driver is the driver name: memory, sqlite
	Driver string

	// DataDir is the directory for data files (sqlite db)
	DataDir string
}

// DriverConfigFrom converts the store section of the server config.
func DriverConfigFrom(c config.StoreConfig) *DriverConfig {
	return &DriverConfig{Driver: c.Driver, DataDir: c.DataDir}
}

// DriverFactory is a function that creates a driver instance.
type DriverFactory func(cfg *DriverConfig) (Driver, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// Register registers a driver factory by name.
// This is typically called from init() in driver packages.
func Register(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// New creates a driver instance based on the configuration.
func New(cfg *DriverConfig) (Driver, error) {
	driversMu.RLock()
	factory, ok := drivers[cfg.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
	return factory(cfg)
}

// Open creates and initializes a driver.
func Open(ctx context.Context, cfg *DriverConfig) (Driver, error) {
	d, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := d.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing store driver %s: %w", d.Name(), err)
	}
	return d, nil
}

// AvailableDrivers returns the sorted list of registered driver names.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
