package metal

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
)

// DeviceConfig holds the startup-time overrides read from a TOML file,
// mirroring the shape the teacher's asset loaders use for their own
// configuration blobs.
type DeviceConfig struct {
	LogLevel             string `toml:"log_level"`
	EnableValidation     bool   `toml:"enable_validation"`
	PreferredDeviceName  string `toml:"preferred_device_name"`
	EventPollTimeoutMS   int    `toml:"event_poll_timeout_ms"`
	DisableDiscreteGPU   bool   `toml:"disable_discrete_gpu"`
	RequireFeatureFloor  string `toml:"require_feature_floor"`
}

// DefaultDeviceConfig returns the config used when no file is supplied.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		LogLevel:           "info",
		EnableValidation:   false,
		EventPollTimeoutMS: 16,
	}
}

// Validate checks for an internally consistent config, matching the
// teacher's loader-validation step before it is handed to a constructor.
func (c *DeviceConfig) Validate() error {
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("unknown log_level: %s", c.LogLevel)
	}
	if c.EventPollTimeoutMS < 0 {
		return fmt.Errorf("event_poll_timeout_ms must be >= 0, got %d", c.EventPollTimeoutMS)
	}
	return nil
}

func (c *DeviceConfig) logLevel() log.Level {
	switch c.LogLevel {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// LoadDeviceConfig reads and validates a DeviceConfig from a TOML file at
// path, falling back to DefaultDeviceConfig for any field the file omits.
func LoadDeviceConfig(path string) (DeviceConfig, error) {
	cfg := DefaultDeviceConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return DeviceConfig{}, newError("LoadDeviceConfig", KindInvalidUsage, err)
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return DeviceConfig{}, newError("LoadDeviceConfig", KindInvalidUsage, err)
	}
	if err := cfg.Validate(); err != nil {
		return DeviceConfig{}, newError("LoadDeviceConfig", KindInvalidUsage, err)
	}
	SetLogLevel(cfg.logLevel())
	return cfg, nil
}
