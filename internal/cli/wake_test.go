package cli

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thruflo/pacer/internal/store"
	"github.com/thruflo/pacer/internal/wake"
)

// chtmp switches the working directory to a fresh temp dir for the test.
func chtmp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	originalDir, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(originalDir) })
	require.NoError(t, os.Chdir(tmpDir))
	return tmpDir
}

func resetWakeFlags() {
	wakeMessage = ""
	wakeReason = ""
	wakeAt = ""
	wakeIn = 0
}

func TestWakeCommand(t *testing.T) {
	chtmp(t)

	t.Run("appends immediate signal", func(t *testing.T) {
		resetWakeFlags()
		wakeMessage = "deploy finished"
		wakeReason = "ci"

		err := runWake(wakeCmd, []string{"immediate"})
		require.NoError(t, err)

		s, err := store.Open(".pacer/pacer.db")
		require.NoError(t, err)
		defer s.Close()

		records, _, err := s.ReadLog(store.LogWakeImmediate, 0, 10)
		require.NoError(t, err)
		require.Len(t, records, 1)

		var sig wake.Signal
		require.NoError(t, json.Unmarshal(records[0].Payload, &sig))
		assert.Equal(t, wake.TierImmediate, sig.Tier)
		assert.Equal(t, "deploy finished", sig.Message)
		assert.Equal(t, "ci", sig.Reason)
	})

	t.Run("priority requires due time", func(t *testing.T) {
		resetWakeFlags()
		wakeMessage = "rerun tests"

		err := runWake(wakeCmd, []string{"priority"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--at or --in")
	})

	t.Run("priority with relative due time", func(t *testing.T) {
		resetWakeFlags()
		wakeMessage = "rerun tests"
		wakeIn = 5 * time.Minute

		err := runWake(wakeCmd, []string{"priority"})
		require.NoError(t, err)

		s, err := store.Open(".pacer/pacer.db")
		require.NoError(t, err)
		defer s.Close()

		records, _, err := s.ReadLog(store.LogWakePriority, 0, 10)
		require.NoError(t, err)
		require.Len(t, records, 1)

		var sig wake.Signal
		require.NoError(t, json.Unmarshal(records[0].Payload, &sig))
		require.NotNil(t, sig.ScheduledFor)
		assert.WithinDuration(t, time.Now().Add(5*time.Minute), *sig.ScheduledFor, 10*time.Second)
	})

	t.Run("rejects unknown tier", func(t *testing.T) {
		resetWakeFlags()
		wakeMessage = "hello"

		err := runWake(wakeCmd, []string{"urgent"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown tier")
	})

	t.Run("rejects conflicting due time flags", func(t *testing.T) {
		resetWakeFlags()
		wakeMessage = "hello"
		wakeAt = time.Now().Format(time.RFC3339)
		wakeIn = time.Minute

		err := runWake(wakeCmd, []string{"scheduled"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mutually exclusive")
	})
}
