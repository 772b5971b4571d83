package config

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/magiconair/properties"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/guileen/nodepool/logger"
)

// Configuration keys. Node keys are prefixed with "<node>.".
const (
	KeyNodeNames       = "nodename"
	KeyURL             = "url"
	KeyDriver          = "driver"
	KeyUser            = "user"
	KeyPassword        = "password"
	KeyMinConnections  = "minconnections"
	KeyInitConnections = "initconnections"
	KeyMaxConnections  = "maxconnections"
	KeyWaitInterval    = "conninterval"
	KeyTimeout         = "timeout"

	KeyMaintenanceDelay    = "maintenance.delay"
	KeyMaintenanceInterval = "maintenance.interval"
	KeyStatsInterval       = "stats.interval"

	// EnvPrefix prefixes environment overrides, e.g. NODEPOOL_PRIMARY_URL.
	EnvPrefix = "NODEPOOL"
)

// Source resolves node configurations by name.
type Source struct {
	v   *viper.Viper
	log *slog.Logger
}

// Load reads a configuration file. The format follows the extension:
// .properties, .yaml/.yml, .toml or .json.
func Load(path string) (*Source, error) {
	if strings.EqualFold(filepath.Ext(path), ".properties") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", filepath.Base(path), err)
		}
		return Read(bytes.NewReader(data), "properties")
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", filepath.Base(path), err)
	}
	return newSource(v), nil
}

// Read parses configuration of the given type ("properties", "yaml", ...)
// from r.
func Read(r io.Reader, configType string) (*Source, error) {
	v := newViper()
	if configType == "properties" {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read properties config: %w", err)
		}
		settings, err := parseProperties(data)
		if err != nil {
			return nil, err
		}
		if err := v.MergeConfigMap(settings); err != nil {
			return nil, fmt.Errorf("merge properties config: %w", err)
		}
		return newSource(v), nil
	}

	v.SetConfigType(configType)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("parse %s config: %w", configType, err)
	}
	return newSource(v), nil
}

// parseProperties turns flat dotted keys into the nested shape viper uses
// for the other formats.
func parseProperties(data []byte) (map[string]any, error) {
	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	props, err := loader.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse properties config: %w", err)
	}

	root := make(map[string]any)
	for _, key := range props.Keys() {
		value, _ := props.Get(key)
		path := strings.Split(strings.ToLower(key), ".")
		m := root
		for _, part := range path[:len(path)-1] {
			child, ok := m[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				m[part] = child
			}
			m = child
		}
		m[path[len(path)-1]] = value
	}
	return root, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func newSource(v *viper.Viper) *Source {
	return &Source{
		v:   v,
		log: logger.With(logger.Component("config")),
	}
}

// NodeNames returns the configured node names in declaration order.
func (s *Source) NodeNames() []string {
	var names []string
	switch raw := s.v.Get(KeyNodeNames).(type) {
	case []any:
		for _, item := range raw {
			names = append(names, cast.ToString(item))
		}
	default:
		names = strings.Split(cast.ToString(raw), ",")
	}

	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Node resolves the configuration of one node. A missing url, driver, user
// or password yields a *ConfigError; malformed numeric settings fall back to
// their defaults.
func (s *Source) Node(name string) (NodeConfig, error) {
	cfg := DefaultNodeConfig(name)

	required := []struct {
		key string
		dst *string
	}{
		{KeyURL, &cfg.URL},
		{KeyDriver, &cfg.Driver},
		{KeyUser, &cfg.User},
		{KeyPassword, &cfg.Password},
	}
	for _, field := range required {
		key := nodeKey(name, field.key)
		if !s.v.IsSet(key) {
			return NodeConfig{}, &ConfigError{Node: name, Field: field.key, Err: ErrMissingField}
		}
		*field.dst = s.v.GetString(key)
	}

	cfg.MinConnections = s.count(name, KeyMinConnections, DefaultMinConnections, 0)
	cfg.InitConnections = s.count(name, KeyInitConnections, DefaultInitConnections, 0)
	cfg.MaxConnections = s.count(name, KeyMaxConnections, DefaultMaxConnections, 1)
	cfg.WaitInterval = s.millis(nodeKey(name, KeyWaitInterval), DefaultWaitInterval, 1)
	cfg.Timeout = s.millis(nodeKey(name, KeyTimeout), DefaultTimeout, 0)

	return cfg, nil
}

// Schedule returns the background task schedule.
func (s *Source) Schedule() ScheduleConfig {
	return ScheduleConfig{
		MaintenanceDelay:    s.millis(KeyMaintenanceDelay, DefaultMaintenanceDelay, 0),
		MaintenanceInterval: s.millis(KeyMaintenanceInterval, DefaultMaintenanceInterval, 1),
		StatsInterval:       s.millis(KeyStatsInterval, DefaultStatsInterval, 1),
	}
}

func (s *Source) count(node, field string, def, min int) int {
	key := nodeKey(node, field)
	n, ok := s.integer(key, min)
	if !ok {
		s.log.Warn("invalid setting, using default", logger.Node(node), "key", key, "default", def)
		return def
	}
	return n
}

func (s *Source) millis(key string, def time.Duration, min int) time.Duration {
	n, ok := s.integer(key, min)
	if !ok {
		s.log.Warn("invalid setting, using default", "key", key, "default", def.String())
		return def
	}
	return time.Duration(n) * time.Millisecond
}

func (s *Source) integer(key string, min int) (int, bool) {
	if !s.v.IsSet(key) {
		return 0, false
	}
	raw := s.v.Get(key)
	if str, ok := raw.(string); ok {
		raw = strings.TrimSpace(str)
	}
	n, err := cast.ToIntE(raw)
	if err != nil || n < min {
		return 0, false
	}
	return n, true
}

func nodeKey(node, field string) string {
	return strings.ToLower(node) + "." + field
}
