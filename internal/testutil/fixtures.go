package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thruflo/pacer/internal/store"
	"github.com/thruflo/pacer/internal/wake"
)

// SampleSignal returns a valid wake signal for the given tier. Priority
// and scheduled signals are due immediately.
func SampleSignal(tier wake.Tier) wake.Signal {
	sig := wake.Signal{
		Tier:    tier,
		Message: "sample " + string(tier) + " signal",
		Reason:  "test",
	}
	if tier == wake.TierPriority || tier == wake.TierScheduled {
		at := time.Now().Add(-time.Second)
		sig.ScheduledFor = &at
	}
	return sig
}

// SampleDueSignal returns a priority or scheduled signal due at the given
// time.
func SampleDueSignal(tier wake.Tier, at time.Time) wake.Signal {
	return wake.Signal{
		Tier:         tier,
		Message:      "sample " + string(tier) + " signal",
		ScheduledFor: &at,
	}
}

// AppendSignals appends signals to their tier logs, failing the test on
// error.
func AppendSignals(t *testing.T, s store.Store, sigs ...wake.Signal) {
	t.Helper()
	for _, sig := range sigs {
		_, err := wake.Append(s, sig)
		require.NoError(t, err)
	}
}
