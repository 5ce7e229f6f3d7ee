// Package mode tracks the per-instance operating mode: whether the loop
// keeps restarting the worker, rests, or exits.
//
// Mode is stored as an expiring flag in the shared store and driven by
// control messages on a broadcast log. Self-expiring modes (pause with a
// duration, reflect, dream) revert to CONTINUE when their flag lapses;
// manual and stopped persist until explicitly cleared.
package mode

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/thruflo/pacer/internal/config"
	"github.com/thruflo/pacer/internal/logging"
	"github.com/thruflo/pacer/internal/store"
)

// Status is the operating mode of one loop instance.
type Status string

const (
	StatusContinue Status = "CONTINUE"
	StatusPause    Status = "PAUSE"
	StatusReflect  Status = "REFLECT"
	StatusDream    Status = "DREAM"
	StatusManual   Status = "MANUAL"
	StatusStopped  Status = "STOPPED"
)

// Resting reports whether the loop holds its restart cadence in this mode.
func (s Status) Resting() bool {
	switch s {
	case StatusPause, StatusReflect, StatusDream, StatusManual:
		return true
	default:
		return false
	}
}

// Control message actions, in ascending precedence. When conflicting
// messages arrive in the same drained batch, the highest-precedence one
// wins: stop beats everything, manual beats the resting modes, and resume
// only applies when nothing stronger arrived with it.
const (
	ActionResume = "resume"
	ActionDream  = "dream"
	ActionPause  = "pause"
	ActionManual = "manual"
	ActionStop   = "stop"
)

var actionRank = map[string]int{
	ActionResume: 1,
	ActionDream:  2,
	ActionPause:  3,
	ActionManual: 4,
	ActionStop:   5,
}

// Message is one control record on the broadcast control log. An empty
// Target addresses every instance.
type Message struct {
	Action          string `json:"action"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Target          string `json:"target,omitempty"`
}

// Send validates and appends a control message to the broadcast log.
func Send(s store.Store, msg Message) (int64, error) {
	if _, ok := actionRank[msg.Action]; !ok {
		return 0, fmt.Errorf("unknown control action %q", msg.Action)
	}
	if msg.DurationSeconds < 0 {
		return 0, fmt.Errorf("duration must not be negative")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("marshal control message: %w", err)
	}
	return s.AppendLog(store.LogControl, payload)
}

// Machine evaluates the operating mode for one instance each tick.
type Machine struct {
	store    store.Store
	instance string
	reflect  config.Reflect
	modes    config.Modes
	log      *logging.Logger
}

// NewMachine creates a Machine for one instance.
func NewMachine(s store.Store, instance string, reflect config.Reflect, modes config.Modes) *Machine {
	return &Machine{
		store:    s,
		instance: instance,
		reflect:  reflect,
		modes:    modes,
		log:      logging.With("instance", instance),
	}
}

// Evaluate drains pending control messages, applies the winning one, and
// returns the current mode. cycle is the instance's tick counter, used for
// the periodic auto-reflection trigger.
func (m *Machine) Evaluate(now time.Time, cycle int64) (Status, error) {
	if err := m.applyControl(); err != nil {
		return StatusContinue, err
	}

	current, err := m.current()
	if err != nil {
		return StatusContinue, err
	}
	if current != StatusContinue {
		return current, nil
	}

	triggered, err := m.maybeReflect(now, cycle)
	if err != nil {
		return StatusContinue, err
	}
	if triggered {
		return StatusReflect, nil
	}
	return StatusContinue, nil
}

// Current returns the mode without draining control messages or running
// the reflection trigger.
func (m *Machine) Current() (Status, error) { return m.current() }

func (m *Machine) current() (Status, error) {
	value, present, err := m.store.GetFlag(store.FlagMode(m.instance))
	if err != nil {
		return StatusContinue, err
	}
	if !present {
		return StatusContinue, nil
	}
	switch Status(value) {
	case StatusPause, StatusReflect, StatusDream, StatusManual, StatusStopped:
		return Status(value), nil
	default:
		// Unrecognized stored mode: treat as CONTINUE rather than wedge.
		m.log.Warn("unrecognized mode flag, treating as CONTINUE", "value", value)
		return StatusContinue, nil
	}
}

// applyControl drains this instance's view of the control log and applies
// the highest-precedence message addressed to it.
func (m *Machine) applyControl() error {
	cursor := m.store.GetCursor(m.instance, store.LogControl)
	records, newCursor, err := m.store.ReadLog(store.LogControl, cursor, 50)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	var winner *Message
	for _, rec := range records {
		var msg Message
		if err := json.Unmarshal(rec.Payload, &msg); err != nil {
			m.store.EmitAudit("control_malformed", map[string]any{
				"instance": m.instance,
				"record":   rec.ID,
				"error":    err.Error(),
			})
			continue
		}
		if _, ok := actionRank[msg.Action]; !ok {
			m.store.EmitAudit("control_malformed", map[string]any{
				"instance": m.instance,
				"record":   rec.ID,
				"error":    "unknown action " + msg.Action,
			})
			continue
		}
		if msg.Target != "" && msg.Target != m.instance {
			continue
		}
		if winner == nil || actionRank[msg.Action] >= actionRank[winner.Action] {
			msg := msg
			winner = &msg
		}
	}

	if err := m.store.SetCursor(m.instance, store.LogControl, newCursor); err != nil {
		return err
	}
	if winner == nil {
		return nil
	}
	return m.apply(*winner)
}

func (m *Machine) apply(msg Message) error {
	key := store.FlagMode(m.instance)

	var err error
	switch msg.Action {
	case ActionStop:
		// Terminal; persists until explicitly cleared.
		err = m.store.SetFlag(key, string(StatusStopped), 0)
	case ActionManual:
		err = m.store.SetFlag(key, string(StatusManual), 0)
	case ActionPause:
		ttl := m.modes.Pause()
		if msg.DurationSeconds > 0 {
			ttl = time.Duration(msg.DurationSeconds) * time.Second
		}
		err = m.store.SetFlag(key, string(StatusPause), ttl)
	case ActionDream:
		ttl := m.modes.Dream()
		if msg.DurationSeconds > 0 {
			ttl = time.Duration(msg.DurationSeconds) * time.Second
		}
		err = m.store.SetFlag(key, string(StatusDream), ttl)
	case ActionResume:
		err = m.store.DeleteFlag(key)
	}
	if err != nil {
		return err
	}

	m.store.EmitAudit("mode_change", map[string]any{
		"instance": m.instance,
		"action":   msg.Action,
		"duration": msg.DurationSeconds,
	})
	m.log.Info("control message applied", "action", msg.Action)
	return nil
}

// maybeReflect enters REFLECT when the cycle counter hits a multiple of
// the configured interval, or when too much time has passed since the
// last reflection.
func (m *Machine) maybeReflect(now time.Time, cycle int64) (bool, error) {
	lastKey := store.FlagReflectedAt(m.instance)

	lastStr, present, err := m.store.GetFlag(lastKey)
	if err != nil {
		return false, err
	}
	if !present {
		// First sighting: baseline the timer instead of reflecting
		// immediately on a fresh instance.
		return false, m.store.SetFlag(lastKey, now.UTC().Format(time.RFC3339Nano), 0)
	}

	byCycle := cycle > 0 && cycle%int64(m.reflect.CycleInterval) == 0
	byTime := false
	if last, perr := time.Parse(time.RFC3339Nano, lastStr); perr == nil {
		byTime = now.Sub(last) > m.reflect.TimeInterval()
	}
	if !byCycle && !byTime {
		return false, nil
	}

	if err := m.store.SetFlag(store.FlagMode(m.instance), string(StatusReflect), m.reflect.Duration()); err != nil {
		return false, err
	}
	if err := m.store.SetFlag(lastKey, now.UTC().Format(time.RFC3339Nano), 0); err != nil {
		return false, err
	}
	m.store.EmitAudit("reflect_triggered", map[string]any{
		"instance": m.instance,
		"cycle":    cycle,
		"by_cycle": byCycle,
		"by_time":  byTime,
	})
	m.log.Info("reflection triggered", "cycle", cycle, "by_cycle", byCycle, "by_time", byTime)
	return true, nil
}

// Interrupt forces an instantaneous transition to CONTINUE, overriding any
// remaining self-expiry. Used when an immediate-tier wake signal arrives
// during a resting mode: urgency outranks scheduled rest. STOPPED is
// terminal and is not interrupted.
func (m *Machine) Interrupt(reason string) error {
	current, err := m.current()
	if err != nil {
		return err
	}
	if current == StatusStopped || current == StatusContinue {
		return nil
	}
	if err := m.store.DeleteFlag(store.FlagMode(m.instance)); err != nil {
		return err
	}
	m.store.EmitAudit("mode_interrupted", map[string]any{
		"instance": m.instance,
		"was":      string(current),
		"reason":   reason,
	})
	m.log.Info("resting mode interrupted", "was", string(current), "reason", reason)
	return nil
}
