// Package guard implements restart admission control: the sliding-window
// burst limiter and the emergency damper that sits above it.
//
// Both operate on the shared store, so a breach detected by one instance
// throttles the whole fleet. Flag installs are idempotent upserts; when two
// instances race to install the same cooldown, the TTL lands wherever the
// last write put it, which is acceptable.
package guard

import (
	"time"

	"github.com/thruflo/pacer/internal/config"
	"github.com/thruflo/pacer/internal/logging"
	"github.com/thruflo/pacer/internal/store"
)

// Denial reasons reported in a Verdict.
const (
	DenyBurst            = "burst"
	DenyGlobalCooldown   = "global_cooldown"
	DenyInstanceCooldown = "instance_cooldown"
)

// Verdict is the rate limiter's decision for one restart attempt.
type Verdict struct {
	Allow       bool
	ActiveCount int    // restart events currently inside the window
	Reason      string // empty when allowed
}

// Limiter detects restart bursts using a sliding time window over the
// fleet-wide restart-event multiset.
type Limiter struct {
	store    store.Store
	instance string
	cfg      config.Burst
	log      *logging.Logger
}

// NewLimiter creates a Limiter for one instance.
func NewLimiter(s store.Store, instance string, cfg config.Burst) *Limiter {
	return &Limiter{
		store:    s,
		instance: instance,
		cfg:      cfg,
		log:      logging.With("instance", instance),
	}
}

// RecordAndCheck records a restart attempt at now and decides whether this
// attempt may proceed.
//
// The attempt always lands in the shared multiset first, so a crashing
// worker restarting rapidly still counts toward burst detection. Up to
// `limit` attempts inside the window proceed; the attempt that pushes the
// count past the limit installs the global cooldown and is denied, which
// blocks every instance until the cooldown expires or a wake signal
// clears it.
func (l *Limiter) RecordAndCheck(now time.Time) (Verdict, error) {
	count, err := l.store.IncrInWindow(store.KeyRestarts, now, l.cfg.Window())
	if err != nil {
		return Verdict{}, err
	}

	if count > l.cfg.Limit {
		if err := l.store.SetFlag(store.FlagGlobalCooldown, "1", l.cfg.GlobalCooldown()); err != nil {
			return Verdict{}, err
		}
		l.store.EmitAudit("burst_cooldown_installed", map[string]any{
			"instance": l.instance,
			"count":    count,
			"limit":    l.cfg.Limit,
			"cooldown": l.cfg.GlobalCooldown().String(),
		})
		l.log.Warn("restart burst detected, global cooldown installed",
			"count", count, "limit", l.cfg.Limit)
		return Verdict{Allow: false, ActiveCount: count, Reason: DenyBurst}, nil
	}

	if _, present, err := l.store.GetFlag(store.FlagGlobalCooldown); err != nil {
		return Verdict{}, err
	} else if present {
		return Verdict{Allow: false, ActiveCount: count, Reason: DenyGlobalCooldown}, nil
	}

	if _, present, err := l.store.GetFlag(store.FlagInstanceCooldown(l.instance)); err != nil {
		return Verdict{}, err
	} else if present {
		return Verdict{Allow: false, ActiveCount: count, Reason: DenyInstanceCooldown}, nil
	}

	return Verdict{Allow: true, ActiveCount: count}, nil
}

// MarkRestart installs the short per-instance cooldown after an actual
// restart, so one instance can't immediately re-trigger itself.
func (l *Limiter) MarkRestart() error {
	return l.store.SetFlag(store.FlagInstanceCooldown(l.instance), "1", l.cfg.InstanceCooldown())
}
