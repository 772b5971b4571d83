package config

import (
	"errors"
	"fmt"
	"time"
)

// Defaults applied when a numeric node setting is missing or malformed.
const (
	DefaultMinConnections  = 5
	DefaultInitConnections = 5
	DefaultMaxConnections  = 30
	DefaultWaitInterval    = 500 * time.Millisecond
	DefaultTimeout         = 2000 * time.Millisecond

	DefaultMaintenanceDelay    = 1 * time.Second
	DefaultMaintenanceInterval = 5 * time.Second
	DefaultStatsInterval       = 1 * time.Second
)

// NodeConfig holds the settings of one backend node. It is not modified
// after loading.
type NodeConfig struct {
	Name     string
	URL      string
	Driver   string
	User     string
	Password string

	MinConnections  int
	InitConnections int
	MaxConnections  int

	// WaitInterval bounds a single wait for a free slot when the pool is at
	// capacity.
	WaitInterval time.Duration
	// Timeout bounds the whole acquire call; zero waits indefinitely.
	Timeout time.Duration
}

// DefaultNodeConfig returns a node configuration with default sizing and
// no connection settings.
func DefaultNodeConfig(name string) NodeConfig {
	return NodeConfig{
		Name:            name,
		MinConnections:  DefaultMinConnections,
		InitConnections: DefaultInitConnections,
		MaxConnections:  DefaultMaxConnections,
		WaitInterval:    DefaultWaitInterval,
		Timeout:         DefaultTimeout,
	}
}

// String omits the password.
func (c NodeConfig) String() string {
	return fmt.Sprintf("NodeConfig{name=%s driver=%s url=%s user=%s min=%d init=%d max=%d wait=%s timeout=%s}",
		c.Name, c.Driver, c.URL, c.User, c.MinConnections, c.InitConnections, c.MaxConnections,
		c.WaitInterval, c.Timeout)
}

// ScheduleConfig controls the background maintenance and stats tasks.
type ScheduleConfig struct {
	MaintenanceDelay    time.Duration
	MaintenanceInterval time.Duration
	StatsInterval       time.Duration
}

// DefaultScheduleConfig returns the default task schedule
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		MaintenanceDelay:    DefaultMaintenanceDelay,
		MaintenanceInterval: DefaultMaintenanceInterval,
		StatsInterval:       DefaultStatsInterval,
	}
}

// ErrMissingField is wrapped by ConfigError for absent required settings.
var ErrMissingField = errors.New("required setting is missing")

// ConfigError reports a node whose configuration cannot be used.
type ConfigError struct {
	Node  string
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.Node, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError checks if an error is a node configuration error
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}
