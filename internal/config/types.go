package config

import "time"

// Burst defines the sliding-window restart rate limit.
type Burst struct {
	WindowSeconds           int `yaml:"window_seconds"`
	Limit                   int `yaml:"limit"`
	GlobalCooldownSeconds   int `yaml:"global_cooldown_seconds"`
	InstanceCooldownSeconds int `yaml:"instance_cooldown_seconds"`
}

// Emergency defines thresholds for fleet-wide overheat suppression.
type Emergency struct {
	EventThreshold  int `yaml:"event_threshold"`
	FlagThreshold   int `yaml:"flag_threshold"`
	DurationSeconds int `yaml:"duration_seconds"`
}

// Wake defines wake-signal arbitration tunables.
type Wake struct {
	OverrideSeconds int `yaml:"override_seconds"`
	DeferredBatch   int `yaml:"deferred_batch"`
}

// Reflect defines when an instance drops into periodic self-reflection.
type Reflect struct {
	CycleInterval       int `yaml:"cycle_interval"`
	TimeIntervalSeconds int `yaml:"time_interval_seconds"`
	DurationSeconds     int `yaml:"duration_seconds"`
}

// Modes defines default durations for the resting operating modes.
type Modes struct {
	PauseSeconds int `yaml:"pause_seconds"`
	DreamSeconds int `yaml:"dream_seconds"`
}

// Loop defines tick cadence for the driver.
type Loop struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	TickSleepSeconds    int `yaml:"tick_sleep_seconds"`
}

// Worker defines how the opaque worker process is started.
type Worker struct {
	Command []string `yaml:"command"`
	Prompt  string   `yaml:"prompt,omitempty"`
}

// Config represents the .pacer/config.yaml file.
type Config struct {
	StorePath string    `yaml:"store_path"`
	Burst     Burst     `yaml:"burst"`
	Emergency Emergency `yaml:"emergency"`
	Wake      Wake      `yaml:"wake"`
	Reflect   Reflect   `yaml:"reflect"`
	Modes     Modes     `yaml:"modes"`
	Loop      Loop      `yaml:"loop"`
	Worker    Worker    `yaml:"worker"`
}

// Duration accessors. YAML carries plain integer seconds; callers want
// time.Duration.

func (b Burst) Window() time.Duration           { return secs(b.WindowSeconds) }
func (b Burst) GlobalCooldown() time.Duration   { return secs(b.GlobalCooldownSeconds) }
func (b Burst) InstanceCooldown() time.Duration { return secs(b.InstanceCooldownSeconds) }

func (e Emergency) Duration() time.Duration { return secs(e.DurationSeconds) }

func (w Wake) Override() time.Duration { return secs(w.OverrideSeconds) }

func (r Reflect) TimeInterval() time.Duration { return secs(r.TimeIntervalSeconds) }
func (r Reflect) Duration() time.Duration     { return secs(r.DurationSeconds) }

func (m Modes) Pause() time.Duration { return secs(m.PauseSeconds) }
func (m Modes) Dream() time.Duration { return secs(m.DreamSeconds) }

func (l Loop) PollInterval() time.Duration { return secs(l.PollIntervalSeconds) }
func (l Loop) TickSleep() time.Duration    { return secs(l.TickSleepSeconds) }

func secs(n int) time.Duration { return time.Duration(n) * time.Second }
