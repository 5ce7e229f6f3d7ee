package wake

import (
	"time"

	"github.com/thruflo/pacer/internal/config"
	"github.com/thruflo/pacer/internal/logging"
	"github.com/thruflo/pacer/internal/store"
)

// BypassScope says how far a decision's cooldown bypass reaches.
type BypassScope string

const (
	// BypassAll clears the global cooldown, the instance cooldown, and
	// the burst counters. Immediate tier only.
	BypassAll BypassScope = "all"
	// BypassInstance suppresses cooldown enforcement for this instance
	// via a short override flag. Priority tier.
	BypassInstance BypassScope = "instance"
	// BypassNone authorizes one restart under currently-relaxed
	// conditions without touching any flag. Scheduled tier.
	BypassNone BypassScope = "none"
)

// Decision is an actionable wake verdict for this tick.
type Decision struct {
	Tier        Tier
	Message     string
	Reason      string
	BypassScope BypassScope
}

// readBatch bounds how many records one poll examines per tier.
const readBatch = 10

// Arbiter polls the tiered wake logs for one instance. Each tier is
// consumed through this instance's own cursor, so concurrent instances
// each see every record: tiers are broadcast channels, not competing
// queues.
type Arbiter struct {
	store    store.Store
	instance string
	cfg      config.Wake
	log      *logging.Logger
}

// NewArbiter creates an Arbiter for one instance.
func NewArbiter(s store.Store, instance string, cfg config.Wake) *Arbiter {
	return &Arbiter{
		store:    s,
		instance: instance,
		cfg:      cfg,
		log:      logging.With("instance", instance),
	}
}

// Poll evaluates the actionable tiers highest first and returns the first
// decision, or nil when nothing fires. Lower tiers are not evaluated once
// a higher tier fires. The deferred side channel is separate; see
// InspectDeferred.
func (a *Arbiter) Poll(now time.Time) (*Decision, error) {
	if d, err := a.PollImmediate(now); err != nil || d != nil {
		return d, err
	}
	if d, err := a.pollDue(TierPriority, now); err != nil || d != nil {
		return d, err
	}
	return a.pollDue(TierScheduled, now)
}

// PollImmediate checks only the immediate tier. Any valid record is an
// unconditional bypass: it clears the global cooldown, this instance's
// cooldown, and the burst counters. This is the cheap fast path the driver
// runs even while resting or dampened.
func (a *Arbiter) PollImmediate(now time.Time) (*Decision, error) {
	logName := TierImmediate.LogName()
	cursor := a.store.GetCursor(a.instance, logName)
	records, _, err := a.store.ReadLog(logName, cursor, readBatch)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		sig, perr := parseSignal(rec, TierImmediate)
		if perr != nil {
			a.skipMalformed(logName, rec, perr)
			continue
		}

		if err := a.store.DeleteFlag(store.FlagGlobalCooldown); err != nil {
			return nil, err
		}
		if err := a.store.DeleteFlag(store.FlagInstanceCooldown(a.instance)); err != nil {
			return nil, err
		}
		if err := a.store.PurgeWindow(store.KeyRestarts); err != nil {
			return nil, err
		}
		if err := a.store.SetCursor(a.instance, logName, rec.ID); err != nil {
			return nil, err
		}
		a.store.EmitAudit("wake_immediate", map[string]any{
			"instance": a.instance,
			"record":   rec.ID,
			"reason":   sig.Reason,
		})
		a.log.Info("immediate wake signal, cooldowns cleared",
			"record", rec.ID, "reason", sig.Reason)
		return &Decision{
			Tier:        TierImmediate,
			Message:     sig.Message,
			Reason:      sig.Reason,
			BypassScope: BypassAll,
		}, nil
	}
	return nil, nil
}

// pollDue handles the priority and scheduled tiers, which share due-time
// semantics: a record only becomes actionable once now reaches its
// scheduled_for. The cursor never advances past a not-yet-due record, so
// it is re-examined next tick and consumed exactly once when due. Records
// behind it wait their turn.
func (a *Arbiter) pollDue(tier Tier, now time.Time) (*Decision, error) {
	logName := tier.LogName()
	cursor := a.store.GetCursor(a.instance, logName)
	records, _, err := a.store.ReadLog(logName, cursor, readBatch)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		sig, perr := parseSignal(rec, tier)
		if perr != nil {
			a.skipMalformed(logName, rec, perr)
			continue
		}
		if now.Before(*sig.ScheduledFor) {
			return nil, nil
		}

		if err := a.store.SetCursor(a.instance, logName, rec.ID); err != nil {
			return nil, err
		}
		scope := BypassNone
		if tier == TierPriority {
			// Short override suppressing cooldown enforcement for this
			// instance only.
			if err := a.store.SetFlag(store.FlagOverride(a.instance), "1", a.cfg.Override()); err != nil {
				return nil, err
			}
			scope = BypassInstance
		}
		a.store.EmitAudit("wake_"+string(tier), map[string]any{
			"instance": a.instance,
			"record":   rec.ID,
			"reason":   sig.Reason,
		})
		a.log.Info("wake signal due", "tier", string(tier), "record", rec.ID)
		return &Decision{
			Tier:        tier,
			Message:     sig.Message,
			Reason:      sig.Reason,
			BypassScope: scope,
		}, nil
	}
	return nil, nil
}

// InspectDeferred reads a small batch of pending deferred records so the
// driver can surface them into the instance's local work record. It always
// runs independently of the other tiers and never affects restart
// admission.
func (a *Arbiter) InspectDeferred(now time.Time) ([]Signal, error) {
	logName := TierDeferred.LogName()
	cursor := a.store.GetCursor(a.instance, logName)
	records, newCursor, err := a.store.ReadLog(logName, cursor, a.cfg.DeferredBatch)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	var signals []Signal
	for _, rec := range records {
		sig, perr := parseSignal(rec, TierDeferred)
		if perr != nil {
			a.skipMalformed(logName, rec, perr)
			continue
		}
		signals = append(signals, sig)
	}
	if err := a.store.SetCursor(a.instance, logName, newCursor); err != nil {
		return nil, err
	}
	return signals, nil
}

// HasOverride reports whether this instance currently holds a
// priority-tier cooldown override.
func (a *Arbiter) HasOverride() (bool, error) {
	_, present, err := a.store.GetFlag(store.FlagOverride(a.instance))
	return present, err
}

func (a *Arbiter) skipMalformed(logName string, rec store.Record, perr error) {
	if err := a.store.SetCursor(a.instance, logName, rec.ID); err != nil {
		a.log.Warn("failed to skip malformed record", "log", logName, "record", rec.ID, "error", err)
		return
	}
	a.store.EmitAudit("wake_malformed", map[string]any{
		"instance": a.instance,
		"log":      logName,
		"record":   rec.ID,
		"error":    perr.Error(),
	})
	a.log.Warn("skipped malformed wake record", "log", logName, "record", rec.ID, "error", perr)
}
