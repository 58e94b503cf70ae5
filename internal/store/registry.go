package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// DriverConfig holds configuration for driver selection and initialization.
type DriverConfig struct {
	// Driver is the driver name: memory, sqlite, mysql
	Driver string `json:"driver" toml:"driver"`

	// DataDir is the directory for the sqlite database file.
	DataDir string `json:"data_dir" toml:"data_dir"`

	// MySQL configuration (only used when Driver == "mysql")
	MySQL MySQLConfig `json:"mysql" toml:"mysql"`
}

// MySQLConfig holds connection settings for the mysql driver.
type MySQLConfig struct {
	Addr     string `json:"addr" toml:"addr"`
	User     string `json:"user" toml:"user"`
	Password string `json:"-" toml:"password"`
	Database string `json:"database" toml:"database"`
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

// New creates an uninitialised driver for cfg.Driver.
func New(cfg *DriverConfig) (Driver, error) {
	driversMu.RLock()
	factory, ok := drivers[cfg.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown store driver %q (available: %v)", cfg.Driver, AvailableDrivers())
	}
	return factory(cfg)
}

// Open is New followed by Init. A driver that fails Init is closed.
func Open(ctx context.Context, cfg *DriverConfig) (Driver, error) {
	d, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := d.Init(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("init %s store: %w", d.Name(), err), d.Close())
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
	slices.Sort(names)
	return names
}
