package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/pacer/internal/config"
	"github.com/thruflo/pacer/internal/store"
)

func emergencyConfig() config.Emergency {
	return config.Emergency{
		EventThreshold:  5,
		FlagThreshold:   3,
		DurationSeconds: 1800,
	}
}

func TestDamperEvaluate(t *testing.T) {
	window := 5 * time.Second

	t.Run("quiet system stays disengaged", func(t *testing.T) {
		s := newTestStore(t)
		d := NewDamper(s, "a", emergencyConfig(), window)

		engaged, err := d.Evaluate(time.Now())
		require.NoError(t, err)
		assert.False(t, engaged)
	})

	t.Run("thresholds are strictly greater than", func(t *testing.T) {
		s := newTestStore(t)
		d := NewDamper(s, "a", emergencyConfig(), window)
		now := time.Now()

		// Exactly at both thresholds: 5 events, 3 cooldown flags.
		for i := 0; i < 5; i++ {
			_, err := s.IncrInWindow(store.KeyRestarts, now, window)
			require.NoError(t, err)
		}
		require.NoError(t, s.SetFlag(store.FlagGlobalCooldown, "1", time.Minute))
		require.NoError(t, s.SetFlag(store.FlagInstanceCooldown("a"), "1", time.Minute))
		require.NoError(t, s.SetFlag(store.FlagInstanceCooldown("b"), "1", time.Minute))

		engaged, err := d.Evaluate(now)
		require.NoError(t, err)
		assert.False(t, engaged)
	})

	t.Run("event threshold breach engages", func(t *testing.T) {
		s := newTestStore(t)
		d := NewDamper(s, "a", emergencyConfig(), window)
		now := time.Now()

		for i := 0; i < 6; i++ {
			_, err := s.IncrInWindow(store.KeyRestarts, now, window)
			require.NoError(t, err)
		}

		engaged, err := d.Evaluate(now)
		require.NoError(t, err)
		assert.True(t, engaged)

		_, present, err := s.GetFlag(store.FlagEmergency("a"))
		require.NoError(t, err)
		assert.True(t, present)
	})

	t.Run("flag threshold breach engages", func(t *testing.T) {
		s := newTestStore(t)
		d := NewDamper(s, "a", emergencyConfig(), window)

		require.NoError(t, s.SetFlag(store.FlagGlobalCooldown, "1", time.Minute))
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, s.SetFlag(store.FlagInstanceCooldown(id), "1", time.Minute))
		}

		engaged, err := d.Evaluate(time.Now())
		require.NoError(t, err)
		assert.True(t, engaged)
	})

	t.Run("stays engaged while global cooldown active", func(t *testing.T) {
		s := newTestStore(t)
		d := NewDamper(s, "a", emergencyConfig(), window)

		require.NoError(t, s.SetFlag(store.FlagEmergency("a"), "1", time.Hour))
		require.NoError(t, s.SetFlag(store.FlagGlobalCooldown, "1", time.Minute))

		engaged, err := d.Evaluate(time.Now())
		require.NoError(t, err)
		assert.True(t, engaged)
	})

	t.Run("clears once global cooldown is absent", func(t *testing.T) {
		s := newTestStore(t)
		d := NewDamper(s, "a", emergencyConfig(), window)

		require.NoError(t, s.SetFlag(store.FlagEmergency("a"), "1", time.Hour))

		engaged, err := d.Evaluate(time.Now())
		require.NoError(t, err)
		assert.False(t, engaged)

		_, present, err := s.GetFlag(store.FlagEmergency("a"))
		require.NoError(t, err)
		assert.False(t, present)
	})

	t.Run("emergency is per instance", func(t *testing.T) {
		s := newTestStore(t)

		require.NoError(t, s.SetFlag(store.FlagEmergency("a"), "1", time.Hour))
		require.NoError(t, s.SetFlag(store.FlagGlobalCooldown, "1", time.Minute))

		engaged, err := NewDamper(s, "a", emergencyConfig(), window).Evaluate(time.Now())
		require.NoError(t, err)
		assert.True(t, engaged)

		// Instance b has no emergency flag, and one active cooldown is
		// below its thresholds.
		engaged, err = NewDamper(s, "b", emergencyConfig(), window).Evaluate(time.Now())
		require.NoError(t, err)
		assert.False(t, engaged)
	})
}
