// Package config contains go-meshsync node configuration definitions
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/meshsync/go-meshsync/node"
)

const defaultConfigFileName = "./config.toml"

// Transport kinds.
const (
	TransportUDP    = "udp"
	TransportStream = "stream"
	// TransportLoopback only makes sense inside a simulation.
	TransportLoopback = "loopback"
)

// Config defines the top level configuration for a mesh node
type Config struct {
	BaseConfig `mapstructure:"main"`
	Node       node.Config     `mapstructure:"node"`
	Transport  TransportConfig `mapstructure:"transport"`
	LOGGING    LoggerConfig    `mapstructure:"logging"`
}

// BaseConfig defines the process level options of a node.
type BaseConfig struct {
	ConfigFile string `mapstructure:"config"`
	// FileLock is held for the lifetime of the process so that two nodes never
	// share a snapshot. Empty disables locking.
	FileLock string `mapstructure:"filelock"`

	CollectMetrics bool `mapstructure:"metrics"`
	MetricsPort    int  `mapstructure:"metrics-port"`
	// MetricsPush is a pushgateway url. Empty disables pushing.
	MetricsPush       string        `mapstructure:"metrics-push"`
	MetricsPushPeriod time.Duration `mapstructure:"metrics-push-period"`
}

// TransportConfig selects and configures the link layer.
type TransportConfig struct {
	Kind string `mapstructure:"transport"`
	// Peers are udp destinations, usually a broadcast address.
	Peers []string `mapstructure:"peers"`
	// BufferSize is the number of received frames buffered before Receive.
	BufferSize int `mapstructure:"buffer-size"`
}

// DefaultConfig returns the default configuration for a mesh node
func DefaultConfig() Config {
	return Config{
		BaseConfig: defaultBaseConfig(),
		Node:       node.DefaultConfig(),
		Transport: TransportConfig{
			Kind:       TransportUDP,
			Peers:      []string{"255.255.255.255:7400"},
			BufferSize: 256,
		},
		LOGGING: defaultLoggingConfig(),
	}
}

func defaultBaseConfig() BaseConfig {
	return BaseConfig{
		ConfigFile:        defaultConfigFileName,
		MetricsPort:       1010,
		MetricsPushPeriod: time.Minute,
	}
}

// Validate checks options that cannot be checked by the components themselves.
func (cfg *Config) Validate() error {
	switch cfg.Transport.Kind {
	case TransportUDP, TransportStream, TransportLoopback:
	default:
		return fmt.Errorf("unknown transport %q", cfg.Transport.Kind)
	}
	if cfg.Node.ID == 0 || cfg.Node.ID == 0xffff {
		return fmt.Errorf("%w: %#04x", node.ErrInvalidID, cfg.Node.ID)
	}
	if cfg.Node.Endpoint == "" {
		return errors.New("node endpoint is empty")
	}
	if cfg.Node.Scheduler.LiveEvery <= 0 {
		return fmt.Errorf("scheduler live-every must be positive, got %d", cfg.Node.Scheduler.LiveEvery)
	}
	return nil
}

// LoadConfig load the config file
func LoadConfig(fileLocation string, vip *viper.Viper) error {
	if fileLocation == "" {
		fileLocation = defaultConfigFileName
	}
	vip.SetConfigFile(fileLocation)
	if err := vip.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %w", err)
	}
	return nil
}

// DecodeHook converts the string forms viper hands out into config field types.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// Unmarshal decodes vip on top of conf.
func Unmarshal(vip *viper.Viper, conf *Config) error {
	if err := vip.Unmarshal(conf, viper.DecodeHook(DecodeHook())); err != nil {
		return fmt.Errorf("unmarshal viper: %w", err)
	}
	return nil
}
