// Package wake implements wake-signal arbitration: four tiered broadcast
// logs that external actors append to, and an arbiter each instance polls
// to decide whether a signal authorizes bypassing the current cooldown.
package wake

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/thruflo/pacer/internal/store"
)

// Tier is the priority class of a wake signal.
type Tier string

const (
	TierImmediate Tier = "immediate"
	TierPriority  Tier = "priority"
	TierScheduled Tier = "scheduled"
	TierDeferred  Tier = "deferred"
)

// Valid reports whether t is a recognized tier.
func (t Tier) Valid() bool {
	switch t {
	case TierImmediate, TierPriority, TierScheduled, TierDeferred:
		return true
	default:
		return false
	}
}

// LogName returns the broadcast log a tier's signals are appended to.
func (t Tier) LogName() string {
	switch t {
	case TierImmediate:
		return store.LogWakeImmediate
	case TierPriority:
		return store.LogWakePriority
	case TierScheduled:
		return store.LogWakeScheduled
	case TierDeferred:
		return store.LogWakeDeferred
	default:
		return ""
	}
}

// Signal is one immutable wake record. ScheduledFor is only meaningful for
// the priority and scheduled tiers, where it is required.
type Signal struct {
	Tier         Tier       `json:"tier"`
	Message      string     `json:"message"`
	Reason       string     `json:"reason,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

// ParseError describes a malformed wake record. Per the error design,
// malformed records are skipped with the cursor advanced past them; they
// never stall the arbiter.
type ParseError struct {
	RecordID int64
	Message  string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("malformed wake record %d: %s", e.RecordID, e.Message)
}

// parseSignal decodes and validates a record from one of the wake logs.
func parseSignal(rec store.Record, want Tier) (Signal, error) {
	var sig Signal
	if err := json.Unmarshal(rec.Payload, &sig); err != nil {
		return Signal{}, ParseError{RecordID: rec.ID, Message: "invalid json: " + err.Error()}
	}
	if !sig.Tier.Valid() {
		return Signal{}, ParseError{RecordID: rec.ID, Message: "unknown tier " + string(sig.Tier)}
	}
	if sig.Tier != want {
		return Signal{}, ParseError{RecordID: rec.ID, Message: fmt.Sprintf("tier %s in %s log", sig.Tier, want)}
	}
	if sig.Message == "" {
		return Signal{}, ParseError{RecordID: rec.ID, Message: "missing message"}
	}
	if (sig.Tier == TierPriority || sig.Tier == TierScheduled) && sig.ScheduledFor == nil {
		return Signal{}, ParseError{RecordID: rec.ID, Message: "missing scheduled_for"}
	}
	return sig, nil
}

// Append validates a signal and appends it to its tier's broadcast log.
// External actors (the CLI, other tools) use this to steer running loops.
func Append(s store.Store, sig Signal) (int64, error) {
	if !sig.Tier.Valid() {
		return 0, fmt.Errorf("unknown tier %q", sig.Tier)
	}
	if sig.Message == "" {
		return 0, fmt.Errorf("message is required")
	}
	if (sig.Tier == TierPriority || sig.Tier == TierScheduled) && sig.ScheduledFor == nil {
		return 0, fmt.Errorf("tier %s requires scheduled_for", sig.Tier)
	}
	payload, err := json.Marshal(sig)
	if err != nil {
		return 0, fmt.Errorf("marshal signal: %w", err)
	}
	return s.AppendLog(sig.Tier.LogName(), payload)
}
