package wake

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/pacer/internal/config"
	"github.com/thruflo/pacer/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "pacer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func wakeConfig() config.Wake {
	return config.Wake{OverrideSeconds: 60, DeferredBatch: 3}
}

func appendSignal(t *testing.T, s store.Store, sig Signal) int64 {
	t.Helper()
	id, err := Append(s, sig)
	require.NoError(t, err)
	return id
}

func due(d time.Duration) *time.Time {
	at := time.Now().Add(d)
	return &at
}

func TestPollImmediate(t *testing.T) {
	t.Run("clears cooldowns and burst counters", func(t *testing.T) {
		s := newTestStore(t)
		a := NewArbiter(s, "a", wakeConfig())
		now := time.Now()

		require.NoError(t, s.SetFlag(store.FlagGlobalCooldown, "1", time.Minute))
		require.NoError(t, s.SetFlag(store.FlagInstanceCooldown("a"), "1", time.Minute))
		_, err := s.IncrInWindow(store.KeyRestarts, now, time.Minute)
		require.NoError(t, err)

		appendSignal(t, s, Signal{Tier: TierImmediate, Message: "go now", Reason: "deploy"})

		d, err := a.PollImmediate(now)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, TierImmediate, d.Tier)
		assert.Equal(t, BypassAll, d.BypassScope)
		assert.Equal(t, "go now", d.Message)

		_, present, err := s.GetFlag(store.FlagGlobalCooldown)
		require.NoError(t, err)
		assert.False(t, present)
		_, present, err = s.GetFlag(store.FlagInstanceCooldown("a"))
		require.NoError(t, err)
		assert.False(t, present)
		count, err := s.CountInWindow(store.KeyRestarts, now, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("consumed exactly once per instance", func(t *testing.T) {
		s := newTestStore(t)
		a := NewArbiter(s, "a", wakeConfig())
		now := time.Now()

		appendSignal(t, s, Signal{Tier: TierImmediate, Message: "go"})

		d, err := a.PollImmediate(now)
		require.NoError(t, err)
		require.NotNil(t, d)

		d, err = a.PollImmediate(now)
		require.NoError(t, err)
		assert.Nil(t, d)

		// A different instance still sees the record.
		b := NewArbiter(s, "b", wakeConfig())
		d, err = b.PollImmediate(now)
		require.NoError(t, err)
		assert.NotNil(t, d)
	})

	t.Run("malformed records are skipped", func(t *testing.T) {
		s := newTestStore(t)
		a := NewArbiter(s, "a", wakeConfig())

		_, err := s.AppendLog(store.LogWakeImmediate, []byte(`not json`))
		require.NoError(t, err)
		appendSignal(t, s, Signal{Tier: TierImmediate, Message: "valid"})

		d, err := a.PollImmediate(time.Now())
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, "valid", d.Message)

		// Cursor moved past both; nothing left.
		d, err = a.PollImmediate(time.Now())
		require.NoError(t, err)
		assert.Nil(t, d)
	})
}

func TestPollDueTiers(t *testing.T) {
	t.Run("priority installs override and bypasses instance", func(t *testing.T) {
		s := newTestStore(t)
		a := NewArbiter(s, "a", wakeConfig())

		appendSignal(t, s, Signal{Tier: TierPriority, Message: "rerun", ScheduledFor: due(-time.Second)})

		d, err := a.Poll(time.Now())
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, TierPriority, d.Tier)
		assert.Equal(t, BypassInstance, d.BypassScope)

		has, err := a.HasOverride()
		require.NoError(t, err)
		assert.True(t, has)

		// The override is per instance.
		has, err = NewArbiter(s, "b", wakeConfig()).HasOverride()
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("scheduled authorizes without touching flags", func(t *testing.T) {
		s := newTestStore(t)
		a := NewArbiter(s, "a", wakeConfig())

		appendSignal(t, s, Signal{Tier: TierScheduled, Message: "routine", ScheduledFor: due(-time.Second)})

		d, err := a.Poll(time.Now())
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, TierScheduled, d.Tier)
		assert.Equal(t, BypassNone, d.BypassScope)

		has, err := a.HasOverride()
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("not yet due records block without advancing", func(t *testing.T) {
		s := newTestStore(t)
		a := NewArbiter(s, "a", wakeConfig())

		appendSignal(t, s, Signal{Tier: TierPriority, Message: "later", ScheduledFor: due(time.Hour)})
		appendSignal(t, s, Signal{Tier: TierPriority, Message: "now", ScheduledFor: due(-time.Second)})

		// Head of the log is not due, so nothing fires even though a
		// later record already is.
		d, err := a.Poll(time.Now())
		require.NoError(t, err)
		assert.Nil(t, d)

		// Once the head is due it is consumed first.
		d, err = a.Poll(time.Now().Add(2 * time.Hour))
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, "later", d.Message)

		d, err = a.Poll(time.Now().Add(2 * time.Hour))
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, "now", d.Message)
	})

	t.Run("immediate outranks due priority", func(t *testing.T) {
		s := newTestStore(t)
		a := NewArbiter(s, "a", wakeConfig())

		appendSignal(t, s, Signal{Tier: TierPriority, Message: "p", ScheduledFor: due(-time.Second)})
		appendSignal(t, s, Signal{Tier: TierImmediate, Message: "i"})

		d, err := a.Poll(time.Now())
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, TierImmediate, d.Tier)

		// The priority record is still pending for the next poll.
		d, err = a.Poll(time.Now())
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, TierPriority, d.Tier)
	})
}

func TestInspectDeferred(t *testing.T) {
	s := newTestStore(t)
	a := NewArbiter(s, "a", wakeConfig())

	for i := 0; i < 5; i++ {
		appendSignal(t, s, Signal{Tier: TierDeferred, Message: "pending work"})
	}

	t.Run("reads at most the configured batch", func(t *testing.T) {
		sigs, err := a.InspectDeferred(time.Now())
		require.NoError(t, err)
		assert.Len(t, sigs, 3)
	})

	t.Run("next inspect continues where it left off", func(t *testing.T) {
		sigs, err := a.InspectDeferred(time.Now())
		require.NoError(t, err)
		assert.Len(t, sigs, 2)

		sigs, err = a.InspectDeferred(time.Now())
		require.NoError(t, err)
		assert.Empty(t, sigs)
	})

	t.Run("never produces a restart decision", func(t *testing.T) {
		appendSignal(t, s, Signal{Tier: TierDeferred, Message: "more"})
		d, err := a.Poll(time.Now())
		require.NoError(t, err)
		assert.Nil(t, d)
	})
}

func TestSignalValidation(t *testing.T) {
	s := newTestStore(t)

	t.Run("append rejects missing message", func(t *testing.T) {
		_, err := Append(s, Signal{Tier: TierImmediate})
		assert.Error(t, err)
	})

	t.Run("append rejects undated priority", func(t *testing.T) {
		_, err := Append(s, Signal{Tier: TierPriority, Message: "m"})
		assert.Error(t, err)
	})

	t.Run("append rejects unknown tier", func(t *testing.T) {
		_, err := Append(s, Signal{Tier: "urgent", Message: "m"})
		assert.Error(t, err)
	})

	t.Run("wrong tier in log is malformed on read", func(t *testing.T) {
		a := NewArbiter(s, "a", wakeConfig())

		// A scheduled-tier payload sitting in the immediate log.
		_, err := s.AppendLog(store.LogWakeImmediate, []byte(`{"tier":"scheduled","message":"m","scheduled_for":"2026-01-01T00:00:00Z"}`))
		require.NoError(t, err)

		d, err := a.PollImmediate(time.Now())
		require.NoError(t, err)
		assert.Nil(t, d)
	})
}
