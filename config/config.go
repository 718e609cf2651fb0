// Package config loads the configuration of a catalog server
package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/jrife/tablets/storage/kv"
	"github.com/jrife/tablets/storage/kv/plugins"
	"github.com/jrife/tablets/storage/kv/plugins/bbolt"
	"github.com/jrife/tablets/storage/kv/plugins/memory"
	"gopkg.in/yaml.v2"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid config")

// Config configures a catalog server. Always be
// explicit about yaml field names.
type Config struct {
	ListenAddress             string        `yaml:"listen_address"`
	Storage                   StorageConfig `yaml:"storage"`
	ReplicationFactor         int           `yaml:"replication_factor"`
	HeartbeatTimeout          time.Duration `yaml:"heartbeat_timeout"`
	ReplacedTabletGracePeriod time.Duration `yaml:"replaced_tablet_grace_period"`
	DeletedTabletRetention    time.Duration `yaml:"deleted_tablet_retention"`
	RequestRecordTTL          time.Duration `yaml:"request_record_ttl"`
	GCInterval                time.Duration `yaml:"gc_interval"`
	LogLevel                  string        `yaml:"log_level"`
}

// StorageConfig selects the kv plugin that
// stores the catalog's metadata
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	NoSync bool   `yaml:"no_sync"`
}

// Default returns the default configuration
func Default() Config {
	return Config{
		ListenAddress: "127.0.0.1:7070",
		Storage: StorageConfig{
			Driver: memory.DriverName,
		},
		ReplicationFactor:         3,
		HeartbeatTimeout:          3 * time.Second,
		ReplacedTabletGracePeriod: 30 * time.Second,
		DeletedTabletRetention:    5 * time.Minute,
		RequestRecordTTL:          time.Minute,
		GCInterval:                time.Second,
		LogLevel:                  "info",
	}
}

// Parse parses a YAML configuration. Fields missing
// from data keep their default values. Unknown fields
// are rejected.
func Parse(data []byte) (Config, error) {
	config := Default()

	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return Config{}, fmt.Errorf("could not parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Load reads and parses a YAML configuration file
func Load(path string) (Config, error) {
	data, err := ioutil.ReadFile(path)

	if err != nil {
		return Config{}, fmt.Errorf("could not read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Validate checks that the configuration is usable
func (config Config) Validate() error {
	if config.ListenAddress == "" {
		return fmt.Errorf("%w: listen_address is required", ErrInvalidConfig)
	}

	if plugins.Plugin(config.Storage.Driver) == nil {
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, config.Storage.Driver)
	}

	if config.Storage.Driver == bbolt.DriverName && config.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path is required by the %s driver", ErrInvalidConfig, bbolt.DriverName)
	}

	if config.ReplicationFactor < 1 {
		return fmt.Errorf("%w: replication_factor must be at least 1", ErrInvalidConfig)
	}

	durations := map[string]time.Duration{
		"heartbeat_timeout":            config.HeartbeatTimeout,
		"replaced_tablet_grace_period": config.ReplacedTabletGracePeriod,
		"deleted_tablet_retention":     config.DeletedTabletRetention,
		"request_record_ttl":           config.RequestRecordTTL,
		"gc_interval":                  config.GCInterval,
	}

	for name, duration := range durations {
		if duration <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}

	return nil
}

// OpenStore opens the configured kv store
func (config Config) OpenStore() (kv.Store, error) {
	plugin := plugins.Plugin(config.Storage.Driver)

	if plugin == nil {
		return nil, fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, config.Storage.Driver)
	}

	options := kv.PluginOptions{}

	if config.Storage.Path != "" {
		options["path"] = config.Storage.Path
	}

	if config.Storage.NoSync {
		options["no_sync"] = true
	}

	return plugin.NewStore(options)
}
