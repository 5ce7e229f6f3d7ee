package guard

import (
	"time"

	"github.com/thruflo/pacer/internal/config"
	"github.com/thruflo/pacer/internal/logging"
	"github.com/thruflo/pacer/internal/store"
)

// Damper is the emergency suppression layer above the rate limiter.
//
// It watches for systemic overheat: either the fleet-wide restart multiset
// running hot, or several independent throttles already active at once.
// On trigger it installs a long per-instance emergency flag that outranks
// any limiter verdict. The flag clears on expiry, or early once the global
// cooldown is observed absent — ordinary cooldown expiry alone never
// clears it.
type Damper struct {
	store    store.Store
	instance string
	cfg      config.Emergency
	window   time.Duration // burst window, shared with the limiter
	log      *logging.Logger
}

// NewDamper creates a Damper for one instance. window is the burst
// limiter's sliding window, used to bound the event count probe.
func NewDamper(s store.Store, instance string, cfg config.Emergency, window time.Duration) *Damper {
	return &Damper{
		store:    s,
		instance: instance,
		cfg:      cfg,
		window:   window,
		log:      logging.With("instance", instance),
	}
}

// Evaluate is called once per tick before the limiter's verdict is
// trusted. It returns true while this instance is under emergency
// suppression.
func (d *Damper) Evaluate(now time.Time) (bool, error) {
	flag := store.FlagEmergency(d.instance)

	if _, engaged, err := d.store.GetFlag(flag); err != nil {
		return false, err
	} else if engaged {
		// Recovery: only the observed absence of the global cooldown
		// clears the emergency early.
		if _, cooling, err := d.store.GetFlag(store.FlagGlobalCooldown); err != nil {
			return true, err
		} else if !cooling {
			if err := d.store.DeleteFlag(flag); err != nil {
				return true, err
			}
			d.store.EmitAudit("emergency_cleared", map[string]any{"instance": d.instance})
			d.log.Info("emergency suppression cleared, global cooldown gone")
			return false, nil
		}
		return true, nil
	}

	events, err := d.store.CountInWindow(store.KeyRestarts, now, d.window)
	if err != nil {
		return false, err
	}
	throttles, err := d.store.CountFlags(store.PrefixCooldown)
	if err != nil {
		return false, err
	}

	if events <= d.cfg.EventThreshold && throttles <= d.cfg.FlagThreshold {
		return false, nil
	}

	if err := d.store.SetFlag(flag, "1", d.cfg.Duration()); err != nil {
		return false, err
	}
	d.store.EmitAudit("emergency_engaged", map[string]any{
		"instance":  d.instance,
		"events":    events,
		"throttles": throttles,
		"duration":  d.cfg.Duration().String(),
	})
	d.log.Warn("emergency suppression engaged",
		"events", events, "throttles", throttles, "duration", d.cfg.Duration())
	return true, nil
}
