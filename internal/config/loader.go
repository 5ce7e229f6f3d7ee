package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default values for Config.
const (
	DefaultStorePath                = ".pacer/pacer.db"
	DefaultBurstWindowSeconds       = 20
	DefaultBurstLimit               = 3
	DefaultGlobalCooldownSeconds    = 60
	DefaultInstanceCooldownSeconds  = 10
	DefaultEmergencyEventThreshold  = 5
	DefaultEmergencyFlagThreshold   = 3
	DefaultEmergencyDurationSeconds = 1800
	DefaultWakeOverrideSeconds      = 60
	DefaultDeferredBatch            = 3
	DefaultReflectCycleInterval     = 30
	DefaultReflectTimeSeconds       = 3600
	DefaultReflectDurationSeconds   = 240
	DefaultPauseSeconds             = 300
	DefaultDreamSeconds             = 450
	DefaultPollIntervalSeconds      = 1
	DefaultTickSleepSeconds         = 2
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		StorePath: DefaultStorePath,
		Burst: Burst{
			WindowSeconds:           DefaultBurstWindowSeconds,
			Limit:                   DefaultBurstLimit,
			GlobalCooldownSeconds:   DefaultGlobalCooldownSeconds,
			InstanceCooldownSeconds: DefaultInstanceCooldownSeconds,
		},
		Emergency: Emergency{
			EventThreshold:  DefaultEmergencyEventThreshold,
			FlagThreshold:   DefaultEmergencyFlagThreshold,
			DurationSeconds: DefaultEmergencyDurationSeconds,
		},
		Wake: Wake{
			OverrideSeconds: DefaultWakeOverrideSeconds,
			DeferredBatch:   DefaultDeferredBatch,
		},
		Reflect: Reflect{
			CycleInterval:       DefaultReflectCycleInterval,
			TimeIntervalSeconds: DefaultReflectTimeSeconds,
			DurationSeconds:     DefaultReflectDurationSeconds,
		},
		Modes: Modes{
			PauseSeconds: DefaultPauseSeconds,
			DreamSeconds: DefaultDreamSeconds,
		},
		Loop: Loop{
			PollIntervalSeconds: DefaultPollIntervalSeconds,
			TickSleepSeconds:    DefaultTickSleepSeconds,
		},
		Worker: Worker{
			Command: []string{"claude", "-p", "--dangerously-skip-permissions"},
		},
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Load reads and parses .pacer/config.yaml from the given base path.
// If the file doesn't exist, returns default config. Fields missing from
// the file keep their defaults. PACER_DB overrides store_path.
func Load(basePath string) (*Config, error) {
	configPath := filepath.Join(basePath, ".pacer", "config.yaml")

	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if db := os.Getenv("PACER_DB"); db != "" {
		cfg.StorePath = db
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that all config values are valid.
func Validate(cfg *Config) error {
	if cfg.StorePath == "" {
		return ValidationError{Field: "store_path", Message: "must not be empty"}
	}
	if cfg.Burst.WindowSeconds <= 0 {
		return ValidationError{Field: "burst.window_seconds", Message: "must be positive"}
	}
	if cfg.Burst.Limit <= 0 {
		return ValidationError{Field: "burst.limit", Message: "must be positive"}
	}
	if cfg.Burst.GlobalCooldownSeconds <= 0 {
		return ValidationError{Field: "burst.global_cooldown_seconds", Message: "must be positive"}
	}
	if cfg.Burst.InstanceCooldownSeconds <= 0 {
		return ValidationError{Field: "burst.instance_cooldown_seconds", Message: "must be positive"}
	}
	if cfg.Emergency.EventThreshold <= 0 {
		return ValidationError{Field: "emergency.event_threshold", Message: "must be positive"}
	}
	if cfg.Emergency.FlagThreshold <= 0 {
		return ValidationError{Field: "emergency.flag_threshold", Message: "must be positive"}
	}
	if cfg.Emergency.DurationSeconds <= 0 {
		return ValidationError{Field: "emergency.duration_seconds", Message: "must be positive"}
	}
	if cfg.Wake.OverrideSeconds <= 0 {
		return ValidationError{Field: "wake.override_seconds", Message: "must be positive"}
	}
	if cfg.Wake.DeferredBatch <= 0 {
		return ValidationError{Field: "wake.deferred_batch", Message: "must be positive"}
	}
	if cfg.Reflect.CycleInterval <= 0 {
		return ValidationError{Field: "reflect.cycle_interval", Message: "must be positive"}
	}
	if cfg.Reflect.TimeIntervalSeconds <= 0 {
		return ValidationError{Field: "reflect.time_interval_seconds", Message: "must be positive"}
	}
	if cfg.Reflect.DurationSeconds <= 0 {
		return ValidationError{Field: "reflect.duration_seconds", Message: "must be positive"}
	}
	if cfg.Modes.PauseSeconds <= 0 {
		return ValidationError{Field: "modes.pause_seconds", Message: "must be positive"}
	}
	if cfg.Modes.DreamSeconds <= 0 {
		return ValidationError{Field: "modes.dream_seconds", Message: "must be positive"}
	}
	if cfg.Loop.PollIntervalSeconds <= 0 {
		return ValidationError{Field: "loop.poll_interval_seconds", Message: "must be positive"}
	}
	if cfg.Loop.TickSleepSeconds <= 0 {
		return ValidationError{Field: "loop.tick_sleep_seconds", Message: "must be positive"}
	}
	if len(cfg.Worker.Command) == 0 {
		return ValidationError{Field: "worker.command", Message: "must not be empty"}
	}
	return nil
}
