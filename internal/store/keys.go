// keys.go centralizes the shared key and log-name layout so every package
// (and every concurrently running instance) addresses the same entries.
package store

// Windowed event keys.
const (
	// KeyRestarts is the fleet-wide restart-event multiset. All instances
	// append to it, so bursts are detected across the fleet.
	KeyRestarts = "restarts"
)

// Flag key prefixes. Cooldown-like flags share the "cooldown" prefixes so
// the emergency damper can count active throttles with one prefix scan.
const (
	FlagGlobalCooldown = "cooldown:global"

	prefixInstanceCooldown = "cooldown:instance:"
	prefixEmergency        = "emergency:"
	prefixOverride         = "override:"
	prefixMode             = "mode:"
	prefixReflectedAt      = "reflected_at:"
)

// PrefixCooldown covers the global and per-instance cooldown flags.
const PrefixCooldown = "cooldown:"

// PrefixEmergency covers the per-instance emergency suppression flags.
const PrefixEmergency = prefixEmergency

// FlagInstanceCooldown returns the per-instance cooldown flag key.
func FlagInstanceCooldown(instance string) string { return prefixInstanceCooldown + instance }

// FlagEmergency returns the per-instance emergency suppression flag key.
func FlagEmergency(instance string) string { return prefixEmergency + instance }

// FlagOverride returns the per-instance cooldown-override flag key set by
// a due priority-tier wake signal.
func FlagOverride(instance string) string { return prefixOverride + instance }

// FlagMode returns the per-instance operating-mode flag key.
func FlagMode(instance string) string { return prefixMode + instance }

// FlagReflectedAt returns the per-instance last-reflection timestamp key.
func FlagReflectedAt(instance string) string { return prefixReflectedAt + instance }

// Broadcast log names.
const (
	LogWakeImmediate = "wake:immediate"
	LogWakePriority  = "wake:priority"
	LogWakeScheduled = "wake:scheduled"
	LogWakeDeferred  = "wake:deferred"
	LogControl       = "control"
)

// CounterCycles returns the per-instance tick counter key.
func CounterCycles(instance string) string { return "cycles:" + instance }
